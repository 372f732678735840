package autopilot

import (
	"context"
	"strings"
)

// Element 页面上的一个可交互元素
type Element interface {
	// Text 返回元素的 textContent
	Text(ctx context.Context) (string, error)
	// Click 触发点击
	Click(ctx context.Context) error
	Focus(ctx context.Context) error
	// SetValue 直接赋值并派发冒泡的 input、change 事件
	SetValue(ctx context.Context, value string) error
}

// Page 当前页面的 DOM 访问器，查询不等待元素出现
type Page interface {
	QueryAll(ctx context.Context, selector string) ([]Element, error)
	// Query 返回第一个匹配元素，不存在时返回 (nil, nil)
	Query(ctx context.Context, selector string) (Element, error)
}

// elementTexts 读取元素文本；读取失败的元素文本记为空串
func elementTexts(ctx context.Context, elements []Element) []string {
	texts := make([]string, len(elements))
	for i, el := range elements {
		text, err := el.Text(ctx)
		if err != nil {
			continue
		}
		texts[i] = text
	}
	return texts
}

func trimAll(texts []string) []string {
	out := make([]string, len(texts))
	for i, t := range texts {
		out[i] = strings.TrimSpace(t)
	}
	return out
}
