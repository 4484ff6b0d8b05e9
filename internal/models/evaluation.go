package models

import (
	"time"

	"gorm.io/datatypes"
)

// Evaluation status values.
const (
	EvaluationStatusCompleted = "completed"
	EvaluationStatusFailed    = "failed"
)

// Evaluation records the terminal outcome of one repository evaluation.
type Evaluation struct {
	ID         string            `gorm:"primaryKey;size:36" json:"id"`
	RepoURL    string            `gorm:"size:2048;not null;index" json:"repo_url"`
	Title      string            `gorm:"size:128" json:"title"`
	Kind       string            `gorm:"size:32;index" json:"kind"`
	Status     string            `gorm:"size:16;not null;index" json:"status"`
	TotalScore int               `json:"total_score"`
	TotalMarks int               `json:"total_marks"`
	Analysis   string            `gorm:"type:text" json:"analysis"`
	Scores     datatypes.JSONMap `json:"scores"`
	Files      datatypes.JSON    `json:"files"`
	Warnings   datatypes.JSON    `json:"warnings"`
	Error      string            `gorm:"type:text" json:"error,omitempty"`
	Provider   string            `gorm:"size:32" json:"provider"`
	Cached     bool              `json:"cached"`
	DurationMS int64             `json:"duration_ms"`
	CreatedAt  time.Time         `gorm:"index" json:"created_at"`
}
