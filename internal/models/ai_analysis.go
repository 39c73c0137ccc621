package models

import "time"

type AIStatus string

const (
	AIStatusPending    AIStatus = "pending"
	AIStatusProcessing AIStatus = "processing"
	AIStatusCompleted  AIStatus = "completed"
	AIStatusFailed     AIStatus = "failed"
)

// AIAnalysis is embedded by every record the analysis worker writes to.
type AIAnalysis struct {
	AIStatus      AIStatus   `db:"ai_analysis_status"`
	AIDescription *string    `db:"ai_describe"`
	AIAnalyzedAt  *time.Time `db:"ai_analysis_date"`
}

func (a AIAnalysis) HasDescription() bool {
	return a.AIDescription != nil && *a.AIDescription != ""
}
