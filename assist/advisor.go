package assist

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"google.golang.org/genai"

	"github.com/lingowing/lingowing/config"
	"github.com/lingowing/lingowing/models"
	"github.com/lingowing/lingowing/pkg/logger"
)

var (
	// ErrDuplicateQuestion 与上一次分析的题目相同
	ErrDuplicateQuestion = errors.New("question already analyzed")
	// ErrNotConfigured 没有配置 API key
	ErrNotConfigured = errors.New("advisor is not configured")
)

const errorAnswer = "Error analyzing question"

// Question 待分析的开放题
type Question struct {
	UUID    string   `json:"uuid"`
	Type    string   `json:"type,omitempty"`
	Text    string   `json:"text"`
	Options []string `json:"options,omitempty"`
	Gaps    int      `json:"gaps,omitempty"`
}

// Suggestion 模型给出的答案建议
type Suggestion struct {
	Answer      string  `json:"answer"`
	Explanation string  `json:"explanation"`
	Confidence  float64 `json:"confidence"`
}

// Model 文本生成接口，返回 JSON 文本
type Model interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Advisor 对开放题给出答案建议，连续重复的题目只分析一次
type Advisor struct {
	model Model

	mu     sync.Mutex
	lastID string
}

func NewAdvisor(model Model) *Advisor {
	return &Advisor{model: model}
}

// FromItem 由题目数据构造分析请求
func FromItem(item *models.Item) Question {
	q := Question{
		UUID: item.UUID,
		Type: string(item.Type),
		Text: item.Question,
		Gaps: len(item.CorrectAnswers),
	}
	if frags := item.CandidateFragments(); len(frags) > 0 {
		q.Options = frags
	}
	return q
}

// Analyze 分析题目。模型调用或解析失败时返回置信度为 0 的错误建议，不返回 error
func (a *Advisor) Analyze(ctx context.Context, q Question) (*Suggestion, error) {
	if a == nil || a.model == nil {
		return nil, ErrNotConfigured
	}
	if strings.TrimSpace(q.Text) == "" && len(q.Options) == 0 {
		return nil, errors.New("question text is empty")
	}

	a.mu.Lock()
	if q.UUID != "" && q.UUID == a.lastID {
		a.mu.Unlock()
		logger.Info(ctx, "Skipping duplicate question analysis: %s", q.UUID)
		return nil, ErrDuplicateQuestion
	}
	if q.UUID != "" {
		a.lastID = q.UUID
	}
	a.mu.Unlock()

	raw, err := a.model.Generate(ctx, buildPrompt(q))
	if err != nil {
		logger.Warn(ctx, "Advisor request failed: %v", err)
		return failed(err), nil
	}
	s, err := parseSuggestion(raw)
	if err != nil {
		logger.Warn(ctx, "Advisor returned an unreadable answer: %v", err)
		return failed(err), nil
	}
	logger.Info(ctx, "Advisor answered question %s (confidence %.2f)", q.UUID, s.Confidence)
	return s, nil
}

func failed(err error) *Suggestion {
	return &Suggestion{
		Answer:      errorAnswer,
		Explanation: fmt.Sprintf("An error occurred: %v", err),
		Confidence:  0,
	}
}

func buildPrompt(q Question) string {
	var b strings.Builder
	b.WriteString("Answer this language exercise question. Reply with JSON containing answer, explanation and confidence (0 to 1).\n")
	fmt.Fprintf(&b, "Question: %s\n", q.Text)
	if len(q.Options) > 0 {
		fmt.Fprintf(&b, "Options: %s\n", strings.Join(q.Options, " | "))
	}
	if q.Gaps > 1 {
		fmt.Fprintf(&b, "Gaps to fill: %d\n", q.Gaps)
	}
	return b.String()
}

func parseSuggestion(raw string) (*Suggestion, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")

	var s Suggestion
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &s); err != nil {
		return nil, errors.Wrap(err, "decode suggestion")
	}
	if s.Answer == "" {
		return nil, errors.New("suggestion has no answer")
	}
	if s.Confidence < 0 {
		s.Confidence = 0
	}
	if s.Confidence > 1 {
		s.Confidence = 1
	}
	return &s, nil
}

// geminiModel 基于 Gemini 的 Model 实现
type geminiModel struct {
	client *genai.Client
	model  string
}

// NewGemini 创建 Gemini 模型；未配置 API key 时返回 ErrNotConfigured
func NewGemini(ctx context.Context, cfg *config.LLMConfig) (Model, error) {
	if cfg == nil || cfg.APIKey == "" {
		return nil, ErrNotConfigured
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create Gemini client: %w", err)
	}
	model := cfg.Model
	if model == "" {
		model = "gemini-2.0-flash"
	}
	return &geminiModel{client: client, model: model}, nil
}

func (g *geminiModel) Generate(ctx context.Context, prompt string) (string, error) {
	cfg := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"answer":      {Type: genai.TypeString},
				"explanation": {Type: genai.TypeString},
				"confidence":  {Type: genai.TypeNumber},
			},
			Required: []string{"answer", "explanation", "confidence"},
		},
	}
	result, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), cfg)
	if err != nil {
		return "", err
	}
	return result.Text(), nil
}
