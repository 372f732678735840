package matcher

import "strings"

// Resolve 把已排序的片段映射到页面元素下标（texts 为各元素的文本）。
//
// 先按去除首尾空白后的文本精确查找；同文本的多个元素以最后一个为准。
// 精确查找失败时交给 policy.PartialMatch。仍然找不到的片段不进入点击队列，
// 以 unresolved 返回。
func Resolve(fragments []MatchedFragment, texts []string, policy Policy) (queue []int, unresolved []string) {
	index := make(map[string]int, len(texts))
	keys := make([]string, 0, len(texts))
	for i, t := range texts {
		key := strings.TrimSpace(t)
		if _, seen := index[key]; !seen {
			keys = append(keys, key)
		}
		index[key] = i
	}

	queue = make([]int, 0, len(fragments))
	for _, f := range fragments {
		if idx, ok := index[f.Text]; ok {
			queue = append(queue, idx)
			continue
		}
		if k := policy.PartialMatch(f.Text, keys); k >= 0 {
			queue = append(queue, index[keys[k]])
			continue
		}
		unresolved = append(unresolved, f.Text)
	}
	return queue, unresolved
}

// Dropped 返回未出现在 matches 中的候选片段（按出现次数计算）
func Dropped(fragments []string, matches []MatchedFragment) []string {
	counts := make(map[string]int, len(matches))
	for _, m := range matches {
		counts[m.Text]++
	}
	var dropped []string
	for _, f := range fragments {
		if counts[f] > 0 {
			counts[f]--
			continue
		}
		dropped = append(dropped, f)
	}
	return dropped
}
