package autopilot

import (
	"context"
	"errors"
	"sync"

	"github.com/lingowing/lingowing/models"
)

// fakePage 内存中的页面，记录每一次交互
type fakePage struct {
	mu       sync.Mutex
	elements map[string][]*fakeElement
	actions  []string
	queryErr error
}

func newFakePage() *fakePage {
	return &fakePage{elements: make(map[string][]*fakeElement)}
}

type fakeElement struct {
	page    *fakePage
	name    string
	text    string
	value   string
	onClick func()
}

func (p *fakePage) add(selector, name, text string) *fakeElement {
	p.mu.Lock()
	defer p.mu.Unlock()
	el := &fakeElement{page: p, name: name, text: text}
	p.elements[selector] = append(p.elements[selector], el)
	return el
}

func (p *fakePage) remove(selectors ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, s := range selectors {
		delete(p.elements, s)
	}
}

func (p *fakePage) record(action string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.actions = append(p.actions, action)
}

func (p *fakePage) Actions() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.actions...)
}

func (p *fakePage) QueryAll(_ context.Context, selector string) ([]Element, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.queryErr != nil {
		return nil, p.queryErr
	}
	out := make([]Element, 0, len(p.elements[selector]))
	for _, el := range p.elements[selector] {
		out = append(out, el)
	}
	return out, nil
}

func (p *fakePage) Query(ctx context.Context, selector string) (Element, error) {
	all, err := p.QueryAll(ctx, selector)
	if err != nil || len(all) == 0 {
		return nil, err
	}
	return all[0], nil
}

func (e *fakeElement) Text(context.Context) (string, error) {
	return e.text, nil
}

func (e *fakeElement) Click(context.Context) error {
	e.page.record("click:" + e.name)
	if e.onClick != nil {
		e.onClick()
	}
	return nil
}

func (e *fakeElement) Focus(context.Context) error {
	e.page.record("focus:" + e.name)
	return nil
}

func (e *fakeElement) SetValue(_ context.Context, value string) error {
	e.page.mu.Lock()
	e.value = value
	e.page.mu.Unlock()
	e.page.record("set:" + e.name + "=" + value)
	return nil
}

// fakeRecorder 收集作答记录
type fakeRecorder struct {
	mu       sync.Mutex
	attempts []*models.Attempt
}

func (r *fakeRecorder) SaveAttempt(a *models.Attempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts = append(r.attempts, a)
	return nil
}

func (r *fakeRecorder) all() []*models.Attempt {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*models.Attempt(nil), r.attempts...)
}

// testSettings 默认选择器，所有等待为 0
func testSettings() *Settings {
	s := DefaultSettings()
	s.Delays = Delays{}
	s.Pronunciation.Delays = PronunciationDelays{}
	return s
}

func exercise(items ...models.Item) *models.ExerciseSet {
	return &models.ExerciseSet{
		Title:        "Unit 1",
		ActivityType: "VOCABULARY",
		Content:      models.ExerciseContent{Items: items},
	}
}

// blockingExecutor 阻塞到 release 关闭或 ctx 取消
type blockingExecutor struct {
	mu      sync.Mutex
	calls   int
	started chan struct{}
	release chan struct{}
}

func newBlockingExecutor() *blockingExecutor {
	return &blockingExecutor{started: make(chan struct{}, 8), release: make(chan struct{})}
}

func (b *blockingExecutor) Execute(ctx context.Context, _ *Run) (models.AttemptOutcome, error) {
	b.mu.Lock()
	b.calls++
	b.mu.Unlock()
	b.started <- struct{}{}
	select {
	case <-b.release:
		return models.AttemptSubmitted, nil
	case <-ctx.Done():
		return models.AttemptAborted, ctx.Err()
	}
}

func (b *blockingExecutor) Calls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}

var errBoom = errors.New("boom")
