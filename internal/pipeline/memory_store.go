package pipeline

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zaqqye/examguard/internal/models"
)

// MemoryStore is a thread-safe in-memory Store for tests and development.
type MemoryStore struct {
	mu         sync.Mutex
	sessions   map[string]*models.ExamSession // by id
	byCode     map[string]string              // access code -> session id
	attempts   map[string]*models.ExamAttempt
	violations map[string][]models.Violation // by attempt id, receipt order
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions:   make(map[string]*models.ExamSession),
		byCode:     make(map[string]string),
		attempts:   make(map[string]*models.ExamAttempt),
		violations: make(map[string][]models.Violation),
	}
}

// PutSession registers a session, for seeding tests and dev servers.
func (m *MemoryStore) PutSession(s *models.ExamSession) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	cp := *s
	m.sessions[cp.ID] = &cp
	m.byCode[cp.AccessCode] = cp.ID
}

func (m *MemoryStore) SessionByCode(code string) (*models.ExamSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byCode[code]
	if !ok {
		return nil, ErrSessionNotFound
	}
	cp := *m.sessions[id]
	return &cp, nil
}

func (m *MemoryStore) SessionByID(id string) (*models.ExamSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *MemoryStore) CreateAttempt(a *models.ExamAttempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	cp := *a
	m.attempts[cp.ID] = &cp
	return nil
}

func (m *MemoryStore) AttemptByID(id string) (*models.ExamAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attempts[id]
	if !ok {
		return nil, ErrAttemptNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *MemoryStore) AppendViolation(attemptID string, v *models.Violation) (*models.ExamAttempt, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attempts[attemptID]
	if !ok {
		return nil, 0, ErrAttemptNotFound
	}
	v.AttemptIDRef = attemptID
	v.Seq = len(m.violations[attemptID]) + 1
	v.CreatedAt = time.Now().UTC()
	m.violations[attemptID] = append(m.violations[attemptID], *v)
	cp := *a
	return &cp, len(m.violations[attemptID]), nil
}

func (m *MemoryStore) Violations(attemptID string) ([]models.Violation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Violation, len(m.violations[attemptID]))
	copy(out, m.violations[attemptID])
	return out, nil
}

func (m *MemoryStore) EndAttempt(attemptID, status string, at time.Time) (*models.ExamAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attempts[attemptID]
	if !ok {
		return nil, ErrAttemptNotFound
	}
	if models.TerminalStatus(a.Status) {
		return nil, ErrAttemptEnded
	}
	a.Status = status
	ended := at
	a.EndedAt = &ended
	cp := *a
	return &cp, nil
}
