package chat

import "time"

type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
)

// Job is one asynchronous assistant reply for a thread.
type Job struct {
	ID string `gorm:"primaryKey;size:26"` // ULID length

	UserID   string `gorm:"size:36;not null;index:uniq_chat_job_idempo,unique,priority:1"`
	ThreadID string `gorm:"size:26;index;not null"`

	Prompt string `gorm:"type:text;not null"`

	IdempotencyKey *string `gorm:"type:varchar(128);index:uniq_chat_job_idempo,unique,priority:2"`

	Status JobStatus `gorm:"type:varchar(16);index;not null"`

	// Filled when succeeded
	ResultMessageID *string `gorm:"size:26"`

	// Filled when failed
	Error *string `gorm:"type:text"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Job) TableName() string { return "chat_jobs" }
