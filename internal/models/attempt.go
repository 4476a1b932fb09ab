package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Attempt status values. Transitions only go active -> one of the terminal
// states; terminal attempts are never mutated again.
const (
	AttemptActive      = "active"
	AttemptCompleted   = "completed"
	AttemptTerminated  = "terminated"
	AttemptTimeExpired = "time_expired"
)

// TerminalStatus reports whether status is one of the end states.
func TerminalStatus(status string) bool {
	switch status {
	case AttemptCompleted, AttemptTerminated, AttemptTimeExpired:
		return true
	}
	return false
}

// ExamAttempt is one student's tracked participation in one session.
// Attempts are retained for audit and never deleted by the pipeline.
type ExamAttempt struct {
	ID           string `gorm:"type:uuid;primaryKey"`
	SessionIDRef string `gorm:"type:uuid;index"`
	StudentName  string
	StudentID    string
	IPAddress    string `gorm:"size:45"`
	UserAgent    string `gorm:"type:text"`
	Status       string `gorm:"size:16;index"`
	StartedAt    time.Time
	EndedAt      *time.Time
	UpdatedAt    time.Time
}

func (a *ExamAttempt) BeforeCreate(tx *gorm.DB) (err error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}
