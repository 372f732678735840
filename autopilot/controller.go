package autopilot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lingowing/lingowing/matcher"
	"github.com/lingowing/lingowing/models"
	"github.com/lingowing/lingowing/pkg/logger"
)

// Event 驱动控制器的外部事件
type Event interface {
	eventName() string
}

// ExerciseEvent 拦截到新的练习数据，整体替换旧数据
type ExerciseEvent struct {
	Set *models.ExerciseSet
}

// ToggleEvent 用户切换自动答题开关
type ToggleEvent struct {
	Enabled bool
}

// MutationEvent 页面 DOM 发生变化
type MutationEvent struct{}

// PronunciationEvent 手动切换发音练习模式
type PronunciationEvent struct {
	Enabled bool
}

// NavigationEvent 页面地址变化
type NavigationEvent struct {
	URL        string
	OnActivity bool
}

func (ExerciseEvent) eventName() string   { return "exercise" }
func (ToggleEvent) eventName() string     { return "toggle" }
func (MutationEvent) eventName() string   { return "mutation" }
func (NavigationEvent) eventName() string { return "navigation" }

func (PronunciationEvent) eventName() string { return "pronunciation" }

// AttemptRecorder 保存作答记录
type AttemptRecorder interface {
	SaveAttempt(attempt *models.Attempt) error
}

// Status 控制器当前状态快照
type Status struct {
	Enabled       bool            `json:"enabled"`
	State         string          `json:"state"`
	InFlight      bool            `json:"in_flight"`
	HasExercise   bool            `json:"has_exercise"`
	ExerciseTitle string          `json:"exercise_title,omitempty"`
	ActivityType  string          `json:"activity_type,omitempty"`
	Items         int             `json:"items"`
	Pronunciation bool            `json:"pronunciation"`
	Words         int             `json:"pronunciation_words"`
	LastWord      string          `json:"last_word,omitempty"`
	LastAttempt   *models.Attempt `json:"last_attempt,omitempty"`
}

// Controller 答题流程控制器。
//
// 所有外部触发通过 Post 进入事件队列，由 Run 串行分发；每次作答在独立的
// goroutine 中执行，等待可被取消。flow 保证同一时间至多一个作答在进行。
type Controller struct {
	settings      *Settings
	executors     map[Variant]Executor
	recorder      AttemptRecorder
	pronunciation *Pronunciation

	events chan Event
	flow   flow
	wg     sync.WaitGroup

	mu         sync.Mutex
	page       Page
	base       context.Context
	enabled    bool
	exercise   *models.ExerciseSet
	generation int
	cancel     context.CancelFunc
	last       *models.Attempt
}

// NewController 创建控制器，recorder 可为 nil
func NewController(page Page, settings *Settings, recorder AttemptRecorder) *Controller {
	if settings == nil {
		settings = DefaultSettings()
	}
	return &Controller{
		settings:      settings,
		executors:     DefaultExecutors(),
		recorder:      recorder,
		pronunciation: NewPronunciation(page, &settings.Pronunciation),
		events:        make(chan Event, 64),
		page:          page,
		base:          context.Background(),
	}
}

// SetExecutor 替换某一题型的作答器
func (c *Controller) SetExecutor(v Variant, e Executor) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.executors[v] = e
}

// SetPage 浏览器重启后切换页面
func (c *Controller) SetPage(page Page) {
	c.mu.Lock()
	c.page = page
	c.mu.Unlock()
	c.pronunciation.SetPage(page)
}

// Pronunciation 发音练习执行器
func (c *Controller) Pronunciation() *Pronunciation {
	return c.pronunciation
}

// Post 投递事件；队列已满时丢弃 DOM 变化事件，其它事件阻塞等待
func (c *Controller) Post(ev Event) {
	select {
	case c.events <- ev:
		return
	default:
	}
	if _, ok := ev.(MutationEvent); ok {
		return
	}
	c.events <- ev
}

func (c *Controller) PushExercise(set *models.ExerciseSet) { c.Post(ExerciseEvent{Set: set}) }
func (c *Controller) SetEnabled(enabled bool)              { c.Post(ToggleEvent{Enabled: enabled}) }
func (c *Controller) NotifyMutation()                      { c.Post(MutationEvent{}) }
func (c *Controller) SetPronunciation(enabled bool)        { c.Post(PronunciationEvent{Enabled: enabled}) }

func (c *Controller) NotifyNavigation(url string, onActivity bool) {
	c.Post(NavigationEvent{URL: url, OnActivity: onActivity})
}

// Run 分发事件直到 ctx 结束，结束时取消进行中的作答
func (c *Controller) Run(ctx context.Context) {
	ctx = logger.WithComponent(ctx, "autopilot")
	c.mu.Lock()
	c.base = ctx
	c.mu.Unlock()

	logger.Info(ctx, "Autopilot controller started")
	for {
		select {
		case <-ctx.Done():
			c.cancelInFlight()
			logger.Info(ctx, "Autopilot controller stopped")
			return
		case ev := <-c.events:
			c.handle(ctx, ev)
		}
	}
}

// Wait 等待所有作答和定时器退出
func (c *Controller) Wait() {
	c.wg.Wait()
	c.pronunciation.Wait()
}

func (c *Controller) handle(ctx context.Context, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error(ctx, "Panic while handling %s event: %v", ev.eventName(), r)
		}
	}()

	switch e := ev.(type) {
	case ExerciseEvent:
		c.onExercise(ctx, e.Set)
	case ToggleEvent:
		c.onToggle(ctx, e.Enabled)
	case MutationEvent:
		c.onMutation(ctx)
		c.pronunciation.OnMutation(ctx)
	case NavigationEvent:
		c.onNavigation(ctx, e)
	case PronunciationEvent:
		c.pronunciation.SetActive(ctx, e.Enabled)
	}
}

func (c *Controller) onExercise(ctx context.Context, set *models.ExerciseSet) {
	if set == nil {
		return
	}
	c.mu.Lock()
	c.exercise = set
	c.mu.Unlock()

	logger.Info(ctx, "Received exercise data: %s (%d items)", set.Title, len(set.Items()))
	c.pronunciation.SetActive(ctx, set.IsPronunciation())
	if set.IsPronunciation() {
		return
	}
	if c.isEnabled() {
		c.schedule(c.settings.Delays.Initial())
	}
}

func (c *Controller) onToggle(ctx context.Context, enabled bool) {
	c.mu.Lock()
	c.enabled = enabled
	c.mu.Unlock()

	if !enabled {
		logger.Info(ctx, "Autopilot disabled")
		c.flow.settle(StateIdle)
		return
	}
	logger.Info(ctx, "Autopilot enabled")
	if c.answerable() {
		c.schedule(c.settings.Delays.Initial())
	}
}

// onMutation 空闲时点击出现的继续按钮；处于空闲态且有数据时重新识别题目。
// 发音练习期间页面交给 Pronunciation 处理。
func (c *Controller) onMutation(ctx context.Context) {
	if !c.isEnabled() || c.pronouncing() {
		return
	}
	state, busy := c.flow.snapshot()
	if busy {
		return
	}

	btn, err := c.currentPage().Query(ctx, c.settings.Selectors.ContinueButton)
	if err != nil {
		logger.Debug(ctx, "Query continue button failed: %v", err)
		return
	}
	if btn != nil {
		c.clickContinue(btn)
		return
	}
	if state == StateIdle && c.answerable() {
		c.schedule(c.settings.Delays.Initial())
	}
}

func (c *Controller) onNavigation(ctx context.Context, e NavigationEvent) {
	if e.OnActivity {
		logger.Debug(ctx, "Navigated to activity page: %s", e.URL)
		return
	}
	logger.Info(ctx, "Left activity page, clearing exercise data: %s", e.URL)
	c.mu.Lock()
	c.exercise = nil
	c.generation++
	c.mu.Unlock()

	c.cancelInFlight()
	c.flow.settle(StateIdle)
	c.pronunciation.SetActive(ctx, false)
}

// schedule 空闲时延迟 delay 后触发一次处理；已有等待中的触发则忽略
func (c *Controller) schedule(delay time.Duration) {
	if !c.flow.settleFrom(StateAwaitingQuestion, StateIdle, StateAwaitingContinue) {
		return
	}
	c.after(delay)
}

func (c *Controller) after(delay time.Duration) {
	gen := c.currentGeneration()
	base := c.baseContext()
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if sleep(base, delay) != nil || c.currentGeneration() != gen {
			return
		}
		c.Process(base)
	}()
}

// Process 尝试开始处理当前题目。未启用或已有作答进行中时返回 false。
func (c *Controller) Process(parent context.Context) bool {
	c.mu.Lock()
	enabled, set, page := c.enabled, c.exercise, c.page
	c.mu.Unlock()

	if !enabled || set.IsPronunciation() {
		c.flow.settle(StateIdle)
		return false
	}
	if !c.flow.acquire(StateDetecting) {
		return false
	}

	ctx, cancel := context.WithCancel(parent)
	ctx = logger.WithTraceID(ctx, uuid.NewString())
	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()

	logger.Info(ctx, "Processing current question")
	c.wg.Add(1)
	go c.attempt(ctx, cancel, page, set)
	return true
}

func (c *Controller) attempt(ctx context.Context, cancel context.CancelFunc, page Page, set *models.ExerciseSet) {
	defer c.wg.Done()

	record := &models.Attempt{
		ID:        uuid.NewString(),
		Variant:   string(VariantUnknown),
		Outcome:   models.AttemptAborted,
		StartedAt: time.Now(),
	}
	if set != nil {
		record.Exercise = set.Title
	}

	next, chain := StateIdle, false
	defer func() {
		if r := recover(); r != nil {
			logger.Error(ctx, "Attempt panicked: %v", r)
			record.Outcome = models.AttemptAborted
			record.Reason = fmt.Sprint(r)
			next, chain = StateIdle, false
		}
		if ctx.Err() != nil {
			next, chain = StateIdle, false
		}
		cancel()
		c.finish(ctx, record)
		c.release(next)
		if chain {
			c.Process(c.baseContext())
		}
	}()

	next, chain = c.runAttempt(ctx, page, set, record)
}

// runAttempt 识别题型并调用作答器，返回释放锁后的状态以及是否立即处理下一题
func (c *Controller) runAttempt(ctx context.Context, page Page, set *models.ExerciseSet, record *models.Attempt) (FlowState, bool) {
	variant, err := Detect(ctx, page, c.settings.Selectors)
	if err != nil {
		c.abort(ctx, record, err)
		return StateAwaitingContinue, false
	}
	record.Variant = string(variant)
	if variant == VariantUnknown {
		logger.Info(ctx, "Unknown question type")
		c.abort(ctx, record, ErrUnknownQuestionType)
		return StateIdle, false
	}
	logger.Info(ctx, "Detected %s question", variant)

	if err := sleep(ctx, c.settings.Delays.Click()); err != nil {
		c.abort(ctx, record, err)
		return StateIdle, false
	}

	c.mu.Lock()
	exec, ok := c.executors[variant]
	c.mu.Unlock()
	if !ok {
		c.abort(ctx, record, ErrUnknownQuestionType)
		return StateIdle, false
	}

	item, index := CurrentItem(ctx, page, c.settings.Selectors.Progress, set)
	record.ItemIndex = index
	c.flow.advance(StateExecuting)

	run := &Run{
		Variant:  variant,
		Item:     item,
		Index:    index,
		page:     page,
		settings: c.settings,
		policy:   matcher.Policy{Strict: c.settings.StrictMatching},
		flow:     &c.flow,
	}
	outcome, err := exec.Execute(ctx, run)
	record.Clicks = run.Clicks()
	if err != nil {
		c.abort(ctx, record, err)
		return StateAwaitingContinue, false
	}
	record.Outcome = outcome

	if outcome == models.AttemptCompleted {
		if err := sleep(ctx, c.settings.Delays.BetweenQuestions()); err != nil {
			return StateIdle, false
		}
		return StateAwaitingQuestion, true
	}
	return StateAwaitingContinue, false
}

func (c *Controller) abort(ctx context.Context, record *models.Attempt, err error) {
	record.Outcome = models.AttemptAborted
	record.Reason = AbortKind(err) + ": " + err.Error()
	logger.Warn(ctx, "Attempt aborted: %s", record.Reason)
}

// clickContinue 等待 continueDelay 后点击继续，释放锁后再等待 betweenQuestionDelay 处理下一题
func (c *Controller) clickContinue(btn Element) {
	if !c.flow.acquire(StateAwaitingContinue) {
		return
	}
	ctx := c.baseContext()
	gen := c.currentGeneration()
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		next := StateIdle
		defer func() {
			if r := recover(); r != nil {
				logger.Error(ctx, "Continue click panicked: %v", r)
				next = StateIdle
			}
			c.release(next)
			if next == StateAwaitingQuestion && c.currentGeneration() == gen {
				c.after(c.settings.Delays.BetweenQuestions())
			}
		}()

		if err := sleep(ctx, c.settings.Delays.Continue()); err != nil {
			return
		}
		if err := btn.Click(ctx); err != nil {
			logger.Warn(ctx, "Click continue button failed: %v", err)
			return
		}
		logger.Info(ctx, "Clicked continue button")
		next = StateAwaitingQuestion
	}()
}

// release 释放处理锁；已被禁用时回到空闲
func (c *Controller) release(next FlowState) {
	if !c.isEnabled() {
		next = StateIdle
	}
	c.mu.Lock()
	c.cancel = nil
	c.mu.Unlock()
	c.flow.release(next)
}

func (c *Controller) finish(ctx context.Context, record *models.Attempt) {
	record.FinishedAt = time.Now()
	c.mu.Lock()
	c.last = record
	c.mu.Unlock()

	if c.recorder == nil {
		return
	}
	if err := c.recorder.SaveAttempt(record); err != nil {
		logger.Warn(ctx, "Failed to save attempt: %v", err)
	}
}

func (c *Controller) cancelInFlight() {
	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (c *Controller) isEnabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enabled
}

// answerable 已有练习数据且不是发音练习
func (c *Controller) answerable() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.exercise != nil && !c.exercise.IsPronunciation()
}

func (c *Controller) pronouncing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.exercise.IsPronunciation()
}

func (c *Controller) currentPage() Page {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.page
}

func (c *Controller) baseContext() context.Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.base
}

func (c *Controller) currentGeneration() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

// Exercise 当前练习数据
func (c *Controller) Exercise() *models.ExerciseSet {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.exercise
}

// Status 当前状态
func (c *Controller) Status() Status {
	state, busy := c.flow.snapshot()
	c.mu.Lock()
	defer c.mu.Unlock()
	st := Status{
		Enabled:       c.enabled,
		State:         state.String(),
		InFlight:      busy,
		HasExercise:   c.exercise != nil,
		Items:         len(c.exercise.Items()),
		Pronunciation: c.pronunciation.Active(),
		Words:         c.pronunciation.Words(),
		LastWord:      c.pronunciation.LastWord(),
		LastAttempt:   c.last,
	}
	if c.exercise != nil {
		st.ExerciseTitle = c.exercise.Title
		st.ActivityType = c.exercise.ActivityType
	}
	return st
}
