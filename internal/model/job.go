package model

import (
	"time"
)

const (
	JobStatusProcessing = "processing"
	JobStatusDone       = "done"
	JobStatusFailed     = "failed"
)

// AudioJob 一次上传对应一个任务，UserID 与 GuestID 二选一
type AudioJob struct {
	ID            int64      `gorm:"primaryKey" json:"id"`
	UserID        *int64     `gorm:"index" json:"user_id,omitempty"`
	GuestID       *int64     `gorm:"index" json:"guest_id,omitempty"`
	OriginalName  string     `gorm:"size:255" json:"original_name"`
	InputPath     string     `gorm:"size:500;not null" json:"input_path"`
	VocalsPath    string     `gorm:"size:500" json:"vocals_path,omitempty"`
	BacksoundPath string     `gorm:"size:500" json:"backsound_path,omitempty"`
	Status        string     `gorm:"size:20;not null;default:processing;index" json:"status"` // processing, done, failed
	ErrorMessage  string     `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt     time.Time  `gorm:"index" json:"created_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

func (AudioJob) TableName() string {
	return "audio_jobs"
}
