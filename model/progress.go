package model

import "time"

// ProgressStatus 进度事件状态
type ProgressStatus string

const (
	ProgressInProgress ProgressStatus = "in_progress"
	ProgressCompleted  ProgressStatus = "completed"
	ProgressFailed     ProgressStatus = "failed"
)

// JobOutcome 单个子任务的结果
// 终止语义挂在 Status 上，子任务失败不能终止整个事件流，
// 所以结果单独用一个字段承载
type JobOutcome string

const (
	OutcomeCached  JobOutcome = "cached"
	OutcomeSkipped JobOutcome = "skipped"
	OutcomeFailed  JobOutcome = "failed"
)

// ProgressEvent 批量任务的进度事件，仅在内存中短暂存在
type ProgressEvent struct {
	TaskID    string         `json:"task_id"`
	Step      string         `json:"step"`
	Status    ProgressStatus `json:"status"`
	Outcome   JobOutcome     `json:"outcome,omitempty"`
	Message   string         `json:"message"`
	Current   int            `json:"current"`
	Total     int            `json:"total"`
	Timestamp time.Time      `json:"timestamp"`
}

// IsTerminal 判断事件是否为终止事件，终止后订阅流应当关闭
func (e *ProgressEvent) IsTerminal() bool {
	return e.Status == ProgressCompleted || e.Status == ProgressFailed
}
