package matcher

import "strings"

// Policy 匹配失败时的取舍策略。
//
// 默认（非严格）模式沿用旧行为：找不到位置的片段静默丢弃，找不到元素的片段
// 跳过，选择题找不到答案时选第一个选项。这些行为可能给出错误答案，
// 严格模式下改为返回失败，由调用方中止本次作答。
type Policy struct {
	Strict bool `json:"strict" toml:"strict"`
}

// PartialMatch 精确文本查找失败后的兜底：按 texts 的顺序返回第一个与片段
// 互为子串的下标（区分大小写，不打分）。找不到返回 -1。
func (p Policy) PartialMatch(fragment string, texts []string) int {
	for i, text := range texts {
		if strings.Contains(fragment, text) || strings.Contains(text, fragment) {
			return i
		}
	}
	return -1
}

// ChooseOption 选择题：返回第一个与标准答案互为子串的选项下标。
// 没有命中时非严格模式返回 0（第一个选项），严格模式返回 -1。
func (p Policy) ChooseOption(answer string, options []string) int {
	for i, option := range options {
		if strings.Contains(option, answer) || strings.Contains(answer, option) {
			return i
		}
	}
	if p.Strict || len(options) == 0 {
		return -1
	}
	return 0
}
