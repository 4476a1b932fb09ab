package pipeline

import (
	"time"

	"github.com/zaqqye/examguard/internal/models"
)

// Store is the persistence boundary of the attempt pipeline. Implementations
// must serialize concurrent writes to a single attempt: AppendViolation and
// EndAttempt are atomic read-modify-write operations per attempt.
type Store interface {
	// SessionByCode looks up a session by its normalized access code.
	// Returns ErrSessionNotFound if no session carries the code.
	SessionByCode(code string) (*models.ExamSession, error)

	// SessionByID returns ErrSessionNotFound for unknown ids.
	SessionByID(id string) (*models.ExamSession, error)

	CreateAttempt(a *models.ExamAttempt) error

	// AttemptByID returns ErrAttemptNotFound for unknown ids.
	AttemptByID(id string) (*models.ExamAttempt, error)

	// AppendViolation assigns v's Seq and CreatedAt under a per-attempt lock
	// and returns the owning attempt and the violation count after the
	// append. Client-supplied timestamps are never trusted.
	AppendViolation(attemptID string, v *models.Violation) (*models.ExamAttempt, int, error)

	// Violations returns an attempt's violations in receipt order.
	Violations(attemptID string) ([]models.Violation, error)

	// EndAttempt transitions an active attempt to the given terminal status.
	// Returns ErrAttemptEnded, leaving the attempt unchanged, if it is
	// already terminal.
	EndAttempt(attemptID, status string, at time.Time) (*models.ExamAttempt, error)
}
