package browser

import (
	"context"
	_ "embed"
	"time"

	"github.com/go-rod/rod"

	"github.com/lingowing/lingowing/pkg/logger"
)

//go:embed scripts/observer.js
var observerScript string

// pageSnapshot 每次轮询读取的页面状态
type pageSnapshot struct {
	Href      string `json:"href"`
	Mutations int    `json:"mutations"`
	Installed bool   `json:"installed"`
}

// Observer 轮询页面中的 MutationObserver 计数和地址
type Observer struct {
	interval   time.Duration
	onMutation func()
	onURL      func(url string)

	lastHref      string
	lastMutations int
}

func NewObserver(interval time.Duration, onMutation func(), onURL func(url string)) *Observer {
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	return &Observer{interval: interval, onMutation: onMutation, onURL: onURL}
}

// observe 比较两次快照，页面刷新后计数归零也视为变化
func (o *Observer) observe(s pageSnapshot) (mutated, navigated bool) {
	navigated = s.Href != "" && s.Href != o.lastHref
	mutated = s.Mutations != o.lastMutations && (s.Mutations > 0 || o.lastMutations > 0)
	if s.Href != "" {
		o.lastHref = s.Href
	}
	o.lastMutations = s.Mutations
	return mutated, navigated
}

func (o *Observer) dispatch(s pageSnapshot) {
	mutated, navigated := o.observe(s)
	if navigated && o.onURL != nil {
		o.onURL(s.Href)
	}
	if mutated && o.onMutation != nil {
		o.onMutation()
	}
}

// Watch 持续轮询直到 ctx 取消
func (o *Observer) Watch(ctx context.Context, page *rod.Page) {
	ticker := time.NewTicker(o.interval)
	defer ticker.Stop()

	logger.Info(ctx, "Page observer started (interval %v)", o.interval)
	for {
		select {
		case <-ctx.Done():
			logger.Info(ctx, "Page observer stopped")
			return
		case <-ticker.C:
			s, err := o.poll(ctx, page)
			if err != nil {
				// 页面跳转期间执行上下文会短暂失效
				logger.Debug(ctx, "Observer poll failed: %v", err)
				continue
			}
			o.dispatch(s)
		}
	}
}

func (o *Observer) poll(ctx context.Context, page *rod.Page) (s pageSnapshot, err error) {
	defer recoverTo(&err, "observer poll")

	res, err := page.Context(ctx).Eval(observerScript)
	if err != nil {
		return s, err
	}
	err = res.Value.Unmarshal(&s)
	return s, err
}
