// Package matcher 从标准答案与候选片段还原拖拽题的点击顺序。
//
// 所有函数都是纯函数：不修改入参，相同输入得到相同输出。
package matcher

import (
	"sort"
	"strings"
)

// MatchedFragment 片段及其在标准答案中的起始词位置
type MatchedFragment struct {
	Text     string `json:"text"`
	Position int    `json:"position"`
}

// tokenize 按单个空格切词，与后端答案的拼接方式一致
func tokenize(s string) []string {
	return strings.Split(s, " ")
}

// Match 在标准答案中为每个候选片段找到位置，并按位置排序返回。
//
// 多词片段优先匹配，避免短片段先占用属于长片段的位置。已匹配的词被标记为
// 已用但保留下标。找不到连续位置的片段直接丢弃。
func Match(canonical string, fragments []string) []MatchedFragment {
	if len(fragments) == 0 {
		return []MatchedFragment{}
	}

	words := tokenize(canonical)
	used := make([]bool, len(words))

	sorted := make([]string, len(fragments))
	copy(sorted, fragments)
	sort.SliceStable(sorted, func(i, j int) bool {
		return len(tokenize(sorted[i])) > len(tokenize(sorted[j]))
	})

	matches := make([]MatchedFragment, 0, len(sorted))
	for _, fragment := range sorted {
		pos := findWindow(words, used, tokenize(fragment))
		if pos < 0 {
			continue
		}
		matches = append(matches, MatchedFragment{Text: fragment, Position: pos})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Position < matches[j].Position
	})
	return matches
}

// findWindow 从左到右寻找第一个未被占用且逐词相等的窗口，找到后标记占用
func findWindow(words []string, used []bool, fragmentWords []string) int {
	for i := 0; i+len(fragmentWords) <= len(words); i++ {
		ok := true
		for j, w := range fragmentWords {
			if used[i+j] || words[i+j] != w {
				ok = false
				break
			}
		}
		if !ok {
			continue
		}
		for j := range fragmentWords {
			used[i+j] = true
		}
		return i
	}
	return -1
}

// MatchElements 没有后端候选片段时，直接用页面元素文本还原顺序。
//
// 按词遍历标准答案：先找与单词完全相同的元素，再尝试两个词组成的元素。
// 最后把未匹配的元素按页面顺序追加到末尾，保证点击队列不短于元素数量。
// 返回值为 texts 的下标。
func MatchElements(canonical string, texts []string) []int {
	words := tokenize(canonical)
	remaining := make([]int, len(texts))
	for i := range texts {
		remaining[i] = i
	}

	queue := make([]int, 0, len(texts))
	take := func(span string) bool {
		for k, idx := range remaining {
			if strings.TrimSpace(texts[idx]) == span {
				queue = append(queue, idx)
				remaining = append(remaining[:k], remaining[k+1:]...)
				return true
			}
		}
		return false
	}

	for i := 0; i < len(words); i++ {
		if take(words[i]) {
			continue
		}
		if i < len(words)-1 && take(words[i]+" "+words[i+1]) {
			i++
		}
	}

	return append(queue, remaining...)
}

// Join 按顺序拼接片段文本
func Join(fragments []MatchedFragment) string {
	parts := make([]string, len(fragments))
	for i, f := range fragments {
		parts[i] = f.Text
	}
	return strings.Join(parts, " ")
}
