package pipeline

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/zaqqye/examguard/internal/models"
)

// GormStore is the Postgres-backed Store used by the server.
type GormStore struct {
	DB *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{DB: db}
}

func (s *GormStore) SessionByCode(code string) (*models.ExamSession, error) {
	var session models.ExamSession
	if err := s.DB.Where("access_code = ?", code).First(&session).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return &session, nil
}

func (s *GormStore) SessionByID(id string) (*models.ExamSession, error) {
	var session models.ExamSession
	if err := s.DB.Where("id = ?", id).First(&session).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return &session, nil
}

func (s *GormStore) CreateAttempt(a *models.ExamAttempt) error {
	return s.DB.Create(a).Error
}

func (s *GormStore) AttemptByID(id string) (*models.ExamAttempt, error) {
	var attempt models.ExamAttempt
	if err := s.DB.Where("id = ?", id).First(&attempt).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAttemptNotFound
		}
		return nil, err
	}
	return &attempt, nil
}

func (s *GormStore) AppendViolation(attemptID string, v *models.Violation) (*models.ExamAttempt, int, error) {
	var attempt models.ExamAttempt
	var count int64
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", attemptID).First(&attempt).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrAttemptNotFound
			}
			return err
		}
		if err := tx.Model(&models.Violation{}).
			Where("attempt_id_ref = ?", attemptID).
			Count(&count).Error; err != nil {
			return err
		}
		v.AttemptIDRef = attemptID
		v.Seq = int(count) + 1
		v.CreatedAt = time.Now().UTC()
		if err := tx.Create(v).Error; err != nil {
			return err
		}
		count++
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return &attempt, int(count), nil
}

func (s *GormStore) Violations(attemptID string) ([]models.Violation, error) {
	var violations []models.Violation
	if err := s.DB.Where("attempt_id_ref = ?", attemptID).
		Order("seq ASC").Find(&violations).Error; err != nil {
		return nil, err
	}
	return violations, nil
}

func (s *GormStore) EndAttempt(attemptID, status string, at time.Time) (*models.ExamAttempt, error) {
	var attempt models.ExamAttempt
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", attemptID).First(&attempt).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrAttemptNotFound
			}
			return err
		}
		if models.TerminalStatus(attempt.Status) {
			return ErrAttemptEnded
		}
		attempt.Status = status
		attempt.EndedAt = &at
		return tx.Save(&attempt).Error
	})
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}
