package models

import (
	"encoding/json"
	"time"
)

// ItemType 题目类型（后端原样下发）
type ItemType string

const (
	ItemTypeDragAndDrop ItemType = "DRAG_AND_DROP"
	ItemTypeOpen        ItemType = "OPEN"
)

// ActivityPronunciation 发音练习的 activityType
const ActivityPronunciation = "PRONUNCIATION"

// ExerciseSet 一次拦截到的练习数据，整体替换，不做增量合并
type ExerciseSet struct {
	Title        string          `json:"title"`
	ActivityType string          `json:"activityType"`
	Content      ExerciseContent `json:"content"`
	CapturedAt   time.Time       `json:"capturedAt,omitempty"`
	SourceURL    string          `json:"sourceUrl,omitempty"`
}

// ExerciseContent 题目列表容器
type ExerciseContent struct {
	Items []Item `json:"items" validate:"required,min=1,dive"`
}

// Item 单个题目
type Item struct {
	UUID     string   `json:"uuid,omitempty"`
	Type     ItemType `json:"type,omitempty"`
	Question string   `json:"question,omitempty"`
	// CorrectAnswers 每个空位一组可接受答案，组内第一个为标准答案
	CorrectAnswers [][]string `json:"correctAnswers"`
	// Answers 候选项分组（拖拽题为打乱的片段，选择题为选项文本）
	Answers [][]string `json:"answers"`
}

// Items 题目列表，nil 安全
func (s *ExerciseSet) Items() []Item {
	if s == nil {
		return nil
	}
	return s.Content.Items
}

// IsPronunciation 是否为发音练习
func (s *ExerciseSet) IsPronunciation() bool {
	return s != nil && s.ActivityType == ActivityPronunciation
}

// PrimaryAnswer 第 gap 个空位的标准答案
func (i *Item) PrimaryAnswer(gap int) (string, bool) {
	if i == nil || gap < 0 || gap >= len(i.CorrectAnswers) {
		return "", false
	}
	group := i.CorrectAnswers[gap]
	if len(group) == 0 || group[0] == "" {
		return "", false
	}
	return group[0], true
}

// CanonicalAnswer 第一个空位的标准答案
func (i *Item) CanonicalAnswer() (string, bool) {
	return i.PrimaryAnswer(0)
}

// CandidateFragments 第一组候选片段，没有时返回 nil
func (i *Item) CandidateFragments() []string {
	if i == nil || len(i.Answers) == 0 || len(i.Answers[0]) == 0 {
		return nil
	}
	return i.Answers[0]
}

// ToJSON 转换为 JSON
func (s *ExerciseSet) ToJSON() ([]byte, error) {
	return json.Marshal(s)
}

// FromJSON 从 JSON 解析
func (s *ExerciseSet) FromJSON(data []byte) error {
	return json.Unmarshal(data, s)
}
