package browser

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/lingowing/lingowing/config"
	"github.com/lingowing/lingowing/models"
	"github.com/lingowing/lingowing/pkg/logger"
)

// ExerciseSink 接收拦截到的练习数据和页面跳转
type ExerciseSink interface {
	PushExercise(set *models.ExerciseSet)
	NotifyNavigation(url string, onActivity bool)
}

// ExerciseStore 持久化最近一次的练习数据
type ExerciseStore interface {
	SaveExercise(set *models.ExerciseSet) error
}

// probeEmbeddedJS 读取页面初始状态中已有的练习数据
const probeEmbeddedJS = `() => {
	try {
		const data = (window.__NEXT_DATA__ && window.__NEXT_DATA__.props && window.__NEXT_DATA__.props.pageProps && window.__NEXT_DATA__.props.pageProps.activity)
			|| (window.__INITIAL_STATE__ && window.__INITIAL_STATE__.activity)
			|| (window.appData && window.appData.activity);
		return data ? JSON.stringify(data) : "";
	} catch (e) {
		return "";
	}
}`

// Interceptor 监听平台接口响应，解析出练习数据后交给控制器
type Interceptor struct {
	lessonAPI    *regexp.Regexp
	exerciseAPI  *regexp.Regexp
	activityPage *regexp.Regexp
	lessonPage   *regexp.Regexp

	store ExerciseStore
	sink  ExerciseSink

	// RepushDelay 进入练习页后重新推送缓存数据前的等待
	RepushDelay time.Duration

	mu      sync.Mutex
	latest  *models.ExerciseSet
	lastURL string
	pending map[proto.NetworkRequestID]pendingResponse
}

type pendingResponse struct {
	url    string
	status int
}

// NewInterceptor 编译地址规则；store 可为 nil
func NewInterceptor(cfg *config.PlatformConfig, store ExerciseStore, sink ExerciseSink) (*Interceptor, error) {
	compile := func(name, pattern string) (*regexp.Regexp, error) {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid %s pattern %q: %w", name, pattern, err)
		}
		return re, nil
	}

	i := &Interceptor{
		store:       store,
		sink:        sink,
		RepushDelay: time.Second,
		pending:     make(map[proto.NetworkRequestID]pendingResponse),
	}
	var err error
	if i.lessonAPI, err = compile("lesson api", cfg.LessonAPIPattern); err != nil {
		return nil, err
	}
	if i.exerciseAPI, err = compile("exercise api", cfg.ExerciseAPIPattern); err != nil {
		return nil, err
	}
	if i.activityPage, err = compile("activity page", cfg.ActivityPagePattern); err != nil {
		return nil, err
	}
	if i.lessonPage, err = compile("lesson page", cfg.LessonPagePattern); err != nil {
		return nil, err
	}
	return i, nil
}

// IsDataURL 是否为课程或练习接口
func (i *Interceptor) IsDataURL(url string) bool {
	return i.exerciseAPI.MatchString(url) || i.lessonAPI.MatchString(url)
}

func (i *Interceptor) IsActivityPage(url string) bool {
	return i.activityPage.MatchString(url)
}

func (i *Interceptor) IsLessonPage(url string) bool {
	return i.lessonPage.MatchString(url)
}

// Latest 最近一次拦截到的练习数据
func (i *Interceptor) Latest() *models.ExerciseSet {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.latest
}

// Restore 启动时恢复缓存，不推送
func (i *Interceptor) Restore(set *models.ExerciseSet) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.latest = set
}

// DecodeExercise 解析接口响应，要求存在 content.items
func DecodeExercise(body []byte) (*models.ExerciseSet, error) {
	var set models.ExerciseSet
	if err := json.Unmarshal(body, &set); err != nil {
		return nil, fmt.Errorf("decode exercise payload: %w", err)
	}
	if err := set.Validate(); err != nil {
		return nil, err
	}
	return &set, nil
}

// HandleResponse 处理一次接口响应，只接受状态码 200 的合法练习数据
func (i *Interceptor) HandleResponse(ctx context.Context, url string, status int, body []byte) error {
	if !i.IsDataURL(url) {
		return nil
	}
	if status != 200 {
		logger.Debug(ctx, "Ignoring %s response with status %d", url, status)
		return nil
	}
	set, err := DecodeExercise(body)
	if err != nil {
		return err
	}
	set.SourceURL = url
	i.accept(ctx, set)
	return nil
}

// Push 手动提交练习数据，与拦截到的数据走同一路径
func (i *Interceptor) Push(ctx context.Context, set *models.ExerciseSet) error {
	if err := set.Validate(); err != nil {
		return err
	}
	i.accept(ctx, set)
	return nil
}

// accept 整体替换缓存并推送给控制器
func (i *Interceptor) accept(ctx context.Context, set *models.ExerciseSet) {
	if set.CapturedAt.IsZero() {
		set.CapturedAt = time.Now()
	}
	i.mu.Lock()
	i.latest = set
	i.mu.Unlock()

	logger.Info(ctx, "Exercise data intercepted: %s (%d items)", set.Title, len(set.Items()))
	if i.store != nil {
		if err := i.store.SaveExercise(set); err != nil {
			logger.Warn(ctx, "Failed to persist exercise data: %v", err)
		}
	}
	i.sink.PushExercise(set)
}

// HandleURLChange 页面地址变化：进入练习页时重新推送缓存，离开时通知控制器
func (i *Interceptor) HandleURLChange(ctx context.Context, url string) {
	i.mu.Lock()
	if url == i.lastURL {
		i.mu.Unlock()
		return
	}
	first := i.lastURL == ""
	i.lastURL = url
	cached := i.latest
	i.mu.Unlock()

	if first {
		return
	}
	logger.Info(ctx, "URL changed to %s", url)

	if !i.IsActivityPage(url) {
		i.sink.NotifyNavigation(url, false)
		return
	}
	i.sink.NotifyNavigation(url, true)
	if cached == nil {
		return
	}
	go func() {
		t := time.NewTimer(i.RepushDelay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
		i.mu.Lock()
		current, still := i.latest, i.lastURL == url
		i.mu.Unlock()
		if still && current != nil {
			logger.Info(ctx, "Re-sending stored exercise data after navigation")
			i.sink.PushExercise(current)
		}
	}()
}

// PageState 当前页面所处阶段，用于答案面板的提示
func (i *Interceptor) PageState(url string) string {
	switch {
	case i.IsActivityPage(url):
		return "activity"
	case i.IsLessonPage(url):
		return "lesson"
	default:
		return "other"
	}
}

// CurrentURL 最近一次观察到的页面地址
func (i *Interceptor) CurrentURL() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.lastURL
}

// Attach 开启网络监听，响应体在加载完成后读取
func (i *Interceptor) Attach(ctx context.Context, page *rod.Page) error {
	if err := (proto.NetworkEnable{}).Call(page); err != nil {
		return fmt.Errorf("failed to enable network monitoring: %w", err)
	}

	wait := page.Context(ctx).EachEvent(
		func(e *proto.NetworkResponseReceived) {
			if e.Response == nil || !i.IsDataURL(e.Response.URL) {
				return
			}
			i.mu.Lock()
			i.pending[e.RequestID] = pendingResponse{url: e.Response.URL, status: e.Response.Status}
			i.mu.Unlock()
		},
		func(e *proto.NetworkLoadingFinished) {
			i.mu.Lock()
			resp, ok := i.pending[e.RequestID]
			delete(i.pending, e.RequestID)
			i.mu.Unlock()
			if ok {
				go i.fetchBody(ctx, page, e.RequestID, resp)
			}
		},
		func(e *proto.NetworkLoadingFailed) {
			i.mu.Lock()
			delete(i.pending, e.RequestID)
			i.mu.Unlock()
		},
	)
	go wait()

	logger.Info(ctx, "Network interceptor attached")
	return nil
}

func (i *Interceptor) fetchBody(ctx context.Context, page *rod.Page, id proto.NetworkRequestID, resp pendingResponse) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error(ctx, "Panic while reading response body: %v", r)
		}
	}()

	res, err := proto.NetworkGetResponseBody{RequestID: id}.Call(page.Context(ctx))
	if err != nil {
		logger.Warn(ctx, "Failed to read response body for %s: %v", resp.url, err)
		return
	}
	body := []byte(res.Body)
	if res.Base64Encoded {
		if body, err = base64.StdEncoding.DecodeString(res.Body); err != nil {
			logger.Warn(ctx, "Failed to decode response body for %s: %v", resp.url, err)
			return
		}
	}
	if err := i.HandleResponse(ctx, resp.url, resp.status, body); err != nil {
		logger.Warn(ctx, "Error parsing response from %s: %v", resp.url, err)
	}
}

// Probe 检查页面初始状态中已有的练习数据
func (i *Interceptor) Probe(ctx context.Context, page *rod.Page) {
	defer func() {
		if r := recover(); r != nil {
			logger.Warn(ctx, "Panic while probing page state: %v", r)
		}
	}()

	res, err := page.Context(ctx).Eval(probeEmbeddedJS)
	if err != nil || res == nil || res.Value.Str() == "" {
		return
	}
	set, err := DecodeExercise([]byte(res.Value.Str()))
	if err != nil {
		logger.Debug(ctx, "Embedded page state is not an exercise: %v", err)
		return
	}
	logger.Info(ctx, "Found existing exercise data on page")
	i.accept(ctx, set)
}
