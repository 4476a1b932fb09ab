package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ExamSession is a scheduled exam a student can join with an access code.
// AllowedURLs is a jsonb array of absolute URLs the locked client may load.
type ExamSession struct {
	ID          string         `gorm:"type:uuid;primaryKey"`
	AdminIDRef  string         `gorm:"type:uuid;index"`
	Name        string
	Description string         `gorm:"type:text"`
	AllowedURLs datatypes.JSON `gorm:"type:jsonb"`
	AccessCode  string         `gorm:"size:6;uniqueIndex"`
	IsActive    bool           `gorm:"default:true"`
	StartTime   *time.Time
	EndTime     *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (s *ExamSession) BeforeCreate(tx *gorm.DB) (err error) {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

// URLList decodes the jsonb allowed-URL column. A corrupt column yields nil.
func (s *ExamSession) URLList() []string {
	var urls []string
	if err := json.Unmarshal(s.AllowedURLs, &urls); err != nil {
		return nil
	}
	return urls
}

// SetURLList encodes urls into the jsonb column.
func (s *ExamSession) SetURLList(urls []string) error {
	data, err := json.Marshal(urls)
	if err != nil {
		return err
	}
	s.AllowedURLs = datatypes.JSON(data)
	return nil
}

// Joinable reports whether a student may redeem this session's code at t:
// the session is active and t falls inside the optional start/end window.
func (s *ExamSession) Joinable(t time.Time) bool {
	if !s.IsActive {
		return false
	}
	if s.StartTime != nil && t.Before(*s.StartTime) {
		return false
	}
	if s.EndTime != nil && t.After(*s.EndTime) {
		return false
	}
	return true
}
