package autopilot

import (
	"context"
	"regexp"
	"strconv"

	"github.com/lingowing/lingowing/models"
)

var progressPattern = regexp.MustCompile(`(\d+)\s*/\s*(\d+)`)

// ParseProgress 解析 "当前 / 总数" 进度文本，返回从 0 开始的题目下标。
// 无法解析或越界时返回 0。
func ParseProgress(text string, total int) int {
	m := progressPattern.FindStringSubmatch(text)
	if len(m) < 3 {
		return 0
	}
	current, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	idx := current - 1
	if idx < 0 || idx >= total {
		return 0
	}
	return idx
}

// CurrentIndex 从页面进度指示器读取当前题目下标，指示器不存在时返回 0
func CurrentIndex(ctx context.Context, page Page, selector string, total int) int {
	if selector == "" {
		return 0
	}
	el, err := page.Query(ctx, selector)
	if err != nil || el == nil {
		return 0
	}
	text, err := el.Text(ctx)
	if err != nil {
		return 0
	}
	return ParseProgress(text, total)
}

// CurrentItem 返回当前题目及其下标；没有练习数据时返回 nil
func CurrentItem(ctx context.Context, page Page, selector string, set *models.ExerciseSet) (*models.Item, int) {
	items := set.Items()
	if len(items) == 0 {
		return nil, 0
	}
	idx := CurrentIndex(ctx, page, selector, len(items))
	return &items[idx], idx
}
