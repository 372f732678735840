package models

import "time"

// AttemptOutcome 一次作答的结果
type AttemptOutcome string

const (
	AttemptSubmitted AttemptOutcome = "submitted" // 已点击验证
	AttemptCompleted AttemptOutcome = "completed" // 已验证并点击继续
	AttemptAborted   AttemptOutcome = "aborted"   // 中止（数据缺失、元素缺失等）
)

// Attempt 作答记录
type Attempt struct {
	ID         string         `json:"id"`
	Variant    string         `json:"variant"`
	ItemIndex  int            `json:"item_index"`
	Exercise   string         `json:"exercise"`
	Outcome    AttemptOutcome `json:"outcome"`
	Reason     string         `json:"reason,omitempty"`
	Clicks     int            `json:"clicks"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
}

// Preference 持久化的开关
type Preference struct {
	Key       string    `json:"key"`
	Enabled   bool      `json:"enabled"`
	UpdatedAt time.Time `json:"updated_at"`
}
