package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/lingowing/lingowing/answerkey"
	"github.com/lingowing/lingowing/assist"
	"github.com/lingowing/lingowing/autopilot"
	"github.com/lingowing/lingowing/models"
	"github.com/lingowing/lingowing/pkg/logger"
	"github.com/lingowing/lingowing/storage"
)

const defaultAttemptLimit = 50

// Autopilot 答题控制器
type Autopilot interface {
	SetEnabled(enabled bool)
	SetPronunciation(enabled bool)
	Status() autopilot.Status
	Exercise() *models.ExerciseSet
}

// Browser 浏览器生命周期
type Browser interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	IsRunning() bool
	Status() map[string]interface{}
}

// Exercises 练习数据入口，与网络拦截共用
type Exercises interface {
	Push(ctx context.Context, set *models.ExerciseSet) error
	CurrentURL() string
	PageState(url string) string
}

// Store 开关与作答记录的持久化
type Store interface {
	SetPreference(key string, enabled bool) error
	ListAttempts(limit int) ([]*models.Attempt, error)
	ClearAttempts() error
}

// Advisor 开放题答案建议
type Advisor interface {
	Analyze(ctx context.Context, q assist.Question) (*assist.Suggestion, error)
}

type Handler struct {
	autopilot Autopilot
	browser   Browser
	exercises Exercises
	store     Store
	advisor   Advisor
	renderer  *answerkey.Renderer
}

// NewHandler advisor 可为 nil
func NewHandler(ap Autopilot, browserMgr Browser, exercises Exercises, store Store, advisor Advisor) *Handler {
	return &Handler{
		autopilot: ap,
		browser:   browserMgr,
		exercises: exercises,
		store:     store,
		advisor:   advisor,
		renderer:  answerkey.NewRenderer(),
	}
}

type toggleRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

// ============= 自动答题 =============

// AutopilotStatus 控制器状态
func (h *Handler) AutopilotStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.autopilot.Status())
}

// ToggleAutopilot 保存开关并通知控制器
func (h *Handler) ToggleAutopilot(c *gin.Context) {
	var req toggleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "error.invalidRequest"})
		return
	}

	if err := h.store.SetPreference(storage.PrefAutopilot, *req.Enabled); err != nil {
		logger.Error(c.Request.Context(), "Failed to save autopilot preference: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "error.savePreferenceFailed"})
		return
	}
	h.autopilot.SetEnabled(*req.Enabled)

	logger.Info(c.Request.Context(), "Autopilot toggled: %v", *req.Enabled)
	c.JSON(http.StatusOK, gin.H{"enabled": *req.Enabled})
}

// TogglePronunciation 手动切换发音练习
func (h *Handler) TogglePronunciation(c *gin.Context) {
	var req toggleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "error.invalidRequest"})
		return
	}

	if err := h.store.SetPreference(storage.PrefPronunciation, *req.Enabled); err != nil {
		logger.Error(c.Request.Context(), "Failed to save pronunciation preference: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "error.savePreferenceFailed"})
		return
	}
	h.autopilot.SetPronunciation(*req.Enabled)
	c.JSON(http.StatusOK, gin.H{"enabled": *req.Enabled})
}

// ============= 练习数据 =============

// GetExercise 当前练习数据
func (h *Handler) GetExercise(c *gin.Context) {
	set := h.autopilot.Exercise()
	if set == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "error.exerciseNotFound"})
		return
	}
	c.JSON(http.StatusOK, set)
}

// PushExercise 手动提交练习数据
func (h *Handler) PushExercise(c *gin.Context) {
	var set models.ExerciseSet
	if err := c.ShouldBindJSON(&set); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "error.invalidRequest", "detail": err.Error()})
		return
	}
	if err := h.exercises.Push(c.Request.Context(), &set); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "error.invalidExercise", "detail": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "success.exerciseAccepted",
		"items":   len(set.Items()),
	})
}

// AnswerKey 答案面板数据
func (h *Handler) AnswerKey(c *gin.Context) {
	pageState := h.exercises.PageState(h.exercises.CurrentURL())
	c.JSON(http.StatusOK, h.renderer.Build(h.autopilot.Exercise(), pageState))
}

// ============= 作答记录 =============

// ListAttempts 作答记录，最新的在前
func (h *Handler) ListAttempts(c *gin.Context) {
	limit := defaultAttemptLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "error.invalidLimit"})
			return
		}
		limit = n
	}

	attempts, err := h.store.ListAttempts(limit)
	if err != nil {
		logger.Error(c.Request.Context(), "Failed to list attempts: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "error.listAttemptsFailed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"attempts": attempts, "total": len(attempts)})
}

// ClearAttempts 清空作答记录
func (h *Handler) ClearAttempts(c *gin.Context) {
	if err := h.store.ClearAttempts(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "error.clearAttemptsFailed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "success.attemptsCleared"})
}

// ============= 答案建议 =============

type assistRequest struct {
	// Index 当前练习中的题目序号（从 0 开始），与 Question 二选一
	Index    *int             `json:"index"`
	Question *assist.Question `json:"question"`
}

// Assist 为开放题请求答案建议
func (h *Handler) Assist(c *gin.Context) {
	if h.advisor == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "error.advisorNotConfigured"})
		return
	}

	var req assistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "error.invalidRequest"})
		return
	}

	var q assist.Question
	switch {
	case req.Question != nil:
		q = *req.Question
	case req.Index != nil:
		items := h.autopilot.Exercise().Items()
		if *req.Index < 0 || *req.Index >= len(items) {
			c.JSON(http.StatusNotFound, gin.H{"error": "error.questionNotFound"})
			return
		}
		q = assist.FromItem(&items[*req.Index])
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "error.invalidRequest"})
		return
	}

	s, err := h.advisor.Analyze(c.Request.Context(), q)
	switch {
	case errors.Is(err, assist.ErrDuplicateQuestion):
		c.JSON(http.StatusConflict, gin.H{"error": "error.duplicateQuestion"})
	case errors.Is(err, assist.ErrNotConfigured):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "error.advisorNotConfigured"})
	case err != nil:
		c.JSON(http.StatusBadRequest, gin.H{"error": "error.invalidQuestion", "detail": err.Error()})
	default:
		c.JSON(http.StatusOK, s)
	}
}

// ============= 浏览器控制 =============

// StartBrowser 启动浏览器
func (h *Handler) StartBrowser(c *gin.Context) {
	if h.browser.IsRunning() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "error.browserAlreadyRunning"})
		return
	}

	if err := h.browser.Start(c.Request.Context()); err != nil {
		logger.Error(c.Request.Context(), "Failed to start browser: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "error.startBrowserFailed", "detail": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "success.browserStarted",
		"status":  h.browser.Status(),
	})
}

// StopBrowser 停止浏览器
func (h *Handler) StopBrowser(c *gin.Context) {
	if !h.browser.IsRunning() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "error.browserNotRunning"})
		return
	}

	if err := h.browser.Stop(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "error.stopBrowserFailed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "success.browserStopped",
	})
}

// BrowserStatus 获取浏览器状态
func (h *Handler) BrowserStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.browser.Status())
}
