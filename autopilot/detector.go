package autopilot

import (
	"context"
	"fmt"
)

// Variant 题型
type Variant string

const (
	VariantDragAndDrop    Variant = "drag-and-drop"
	VariantMultipleChoice Variant = "multiple-choice"
	VariantTextInput      Variant = "text-input"
	VariantUnknown        Variant = "unknown"
)

// Detect 按优先级判断当前题型：拖拽 > 选择 > 填空。
// 第一个存在元素的类别胜出，不做打分。
func Detect(ctx context.Context, page Page, sel Selectors) (Variant, error) {
	rules := []struct {
		selector string
		variant  Variant
	}{
		{sel.DragElement, VariantDragAndDrop},
		{sel.ChoiceOption, VariantMultipleChoice},
		{sel.TextInput, VariantTextInput},
	}

	for _, rule := range rules {
		if rule.selector == "" {
			continue
		}
		elements, err := page.QueryAll(ctx, rule.selector)
		if err != nil {
			return VariantUnknown, fmt.Errorf("query %s: %w", rule.selector, err)
		}
		if len(elements) > 0 {
			return rule.variant, nil
		}
	}
	return VariantUnknown, nil
}
