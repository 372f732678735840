package browser

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-rod/rod"

	"github.com/lingowing/lingowing/autopilot"
)

// ErrNotRunning 浏览器未启动
var ErrNotRunning = errors.New("browser is not running")

const (
	textContentJS = `() => this.textContent || ""`
	clickJS       = `() => { this.click(); return true; }`
	// setValueJS 直接赋值，并派发冒泡的 input 与 change 事件
	setValueJS = `(v) => {
		this.value = v;
		this.dispatchEvent(new Event('input', { bubbles: true }));
		this.dispatchEvent(new Event('change', { bubbles: true }));
		return true;
	}`
)

// RodPage 基于 rod 的页面访问器，查询不等待元素出现
type RodPage struct {
	page *rod.Page
}

func NewRodPage(page *rod.Page) *RodPage {
	return &RodPage{page: page}
}

func (p *RodPage) QueryAll(ctx context.Context, selector string) (els []autopilot.Element, err error) {
	defer recoverTo(&err, "query all")

	found, err := p.page.Context(ctx).Elements(selector)
	if err != nil {
		return nil, err
	}
	els = make([]autopilot.Element, 0, len(found))
	for _, el := range found {
		els = append(els, &rodElement{el: el})
	}
	return els, nil
}

func (p *RodPage) Query(ctx context.Context, selector string) (el autopilot.Element, err error) {
	defer recoverTo(&err, "query")

	has, found, err := p.page.Context(ctx).Has(selector)
	if err != nil {
		return nil, err
	}
	if !has {
		return nil, nil
	}
	return &rodElement{el: found}, nil
}

type rodElement struct {
	el *rod.Element
}

func (e *rodElement) Text(ctx context.Context) (text string, err error) {
	defer recoverTo(&err, "text")

	res, err := e.el.Context(ctx).Eval(textContentJS)
	if err != nil {
		return "", err
	}
	return res.Value.Str(), nil
}

// Click 派发合成点击事件，与页面脚本触发的点击一致
func (e *rodElement) Click(ctx context.Context) (err error) {
	defer recoverTo(&err, "click")

	_, err = e.el.Context(ctx).Eval(clickJS)
	return err
}

func (e *rodElement) Focus(ctx context.Context) (err error) {
	defer recoverTo(&err, "focus")

	return e.el.Context(ctx).Focus()
}

func (e *rodElement) SetValue(ctx context.Context, value string) (err error) {
	defer recoverTo(&err, "set value")

	_, err = e.el.Context(ctx).Eval(setValueJS, value)
	return err
}

// detachedPage 浏览器未启动时使用，所有查询返回 ErrNotRunning
type detachedPage struct{}

// Detached 返回未连接浏览器时的页面占位
func Detached() autopilot.Page {
	return detachedPage{}
}

func (detachedPage) QueryAll(context.Context, string) ([]autopilot.Element, error) {
	return nil, ErrNotRunning
}

func (detachedPage) Query(context.Context, string) (autopilot.Element, error) {
	return nil, ErrNotRunning
}

// recoverTo 捕获 rod 可能产生的 panic
func recoverTo(err *error, op string) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("panic during %s: %v", op, r)
	}
}
