package pipeline

import (
	"time"

	"github.com/zaqqye/examguard/internal/models"
	"github.com/zaqqye/examguard/internal/utils"
	"github.com/zaqqye/examguard/internal/ws"
)

// Notifier receives every attempt/violation event for fan-out to dashboards.
type Notifier interface {
	Publish(evt ws.Event)
}

// AgentNotifier pushes orders to the locked client owning an attempt.
type AgentNotifier interface {
	Notify(attemptID string, msg ws.AgentMessage)
}

// Pipeline is the sole writer of attempt state. Every mutation is persisted
// through the Store and then broadcast; observers that miss an event
// re-fetch current state instead of replaying.
type Pipeline struct {
	store  Store
	hub    Notifier
	agents AgentNotifier
}

func New(store Store, hub Notifier, agents AgentNotifier) *Pipeline {
	return &Pipeline{store: store, hub: hub, agents: agents}
}

// StatusInfo is the poll-based fallback for clients that miss a push.
type StatusInfo struct {
	Status          string
	ShouldTerminate bool
	EndTime         *time.Time
}

// Redeem resolves a raw access code to its session, evaluating the
// active/time-window checks at redemption time. Read-only: no attempt is
// created here.
func (p *Pipeline) Redeem(code string) (*models.ExamSession, error) {
	session, err := p.store.SessionByCode(utils.NormalizeCode(code))
	if err != nil {
		return nil, err
	}
	if !session.IsActive {
		return nil, ErrSessionInactive
	}
	now := time.Now().UTC()
	if session.StartTime != nil && now.Before(*session.StartTime) {
		return nil, ErrSessionNotStarted
	}
	if session.EndTime != nil && now.After(*session.EndTime) {
		return nil, ErrSessionEnded
	}
	return session, nil
}

// StartAttempt creates an active attempt for the session, capturing the
// caller's network identity, and announces the student to observers.
func (p *Pipeline) StartAttempt(sessionID, studentName, studentID, ipAddress, userAgent string) (*models.ExamAttempt, *models.ExamSession, error) {
	session, err := p.store.SessionByID(sessionID)
	if err != nil {
		return nil, nil, err
	}
	if !session.IsActive {
		return nil, nil, ErrSessionInactive
	}
	now := time.Now().UTC()
	if session.StartTime != nil && now.Before(*session.StartTime) {
		return nil, nil, ErrSessionNotStarted
	}
	if session.EndTime != nil && now.After(*session.EndTime) {
		return nil, nil, ErrSessionEnded
	}

	attempt := &models.ExamAttempt{
		SessionIDRef: session.ID,
		StudentName:  studentName,
		StudentID:    studentID,
		IPAddress:    ipAddress,
		UserAgent:    userAgent,
		Status:       models.AttemptActive,
		StartedAt:    time.Now().UTC(),
	}
	if err := p.store.CreateAttempt(attempt); err != nil {
		return nil, nil, err
	}

	p.publish(ws.Event{
		Type:      ws.EventStudentJoined,
		SessionID: session.ID,
		AttemptID: attempt.ID,
		Data: map[string]any{
			"student_name": attempt.StudentName,
			"student_id":   attempt.StudentID,
			"ip_address":   attempt.IPAddress,
			"started_at":   attempt.StartedAt,
		},
	})
	return attempt, session, nil
}

// ReportViolation appends the violation with a server-assigned timestamp and
// broadcasts it with the attempt's running violation count.
func (p *Pipeline) ReportViolation(attemptID string, vtype models.ViolationType, description, details string) (int, error) {
	v := &models.Violation{
		Type:        vtype,
		Description: description,
		Details:     details,
	}
	attempt, count, err := p.store.AppendViolation(attemptID, v)
	if err != nil {
		return 0, err
	}

	p.publish(ws.Event{
		Type:      ws.EventViolation,
		SessionID: attempt.SessionIDRef,
		AttemptID: attempt.ID,
		Data: map[string]any{
			"violation": map[string]any{
				"type":        v.Type,
				"description": v.Description,
				"details":     v.Details,
				"timestamp":   v.CreatedAt,
				"seq":         v.Seq,
			},
			"count": count,
		},
	})
	return count, nil
}

// EndAttempt transitions an active attempt to a terminal status derived from
// reason and announces the departure. Terminal attempts stay unchanged.
func (p *Pipeline) EndAttempt(attemptID, reason string) (*models.ExamAttempt, error) {
	attempt, err := p.store.EndAttempt(attemptID, statusForReason(reason), time.Now().UTC())
	if err != nil {
		return nil, err
	}

	p.publish(ws.Event{
		Type:      ws.EventStudentLeft,
		SessionID: attempt.SessionIDRef,
		AttemptID: attempt.ID,
		Data: map[string]any{
			"status":   attempt.Status,
			"reason":   reason,
			"ended_at": attempt.EndedAt,
		},
	})
	return attempt, nil
}

// Terminate ends an attempt on an administrator's or the scheduler's behalf
// and pushes a terminate order to the attempt's live client.
func (p *Pipeline) Terminate(attemptID, reason string) (*models.ExamAttempt, error) {
	attempt, err := p.EndAttempt(attemptID, reason)
	if err != nil {
		return nil, err
	}
	if p.agents != nil {
		p.agents.Notify(attemptID, ws.AgentMessage{
			Type:   ws.AgentTerminate,
			Reason: reason,
		})
	}
	return attempt, nil
}

// Heartbeat re-broadcasts liveness. Nothing is persisted; last-seen is an
// observer-side notion.
func (p *Pipeline) Heartbeat(attemptID string) error {
	attempt, err := p.store.AttemptByID(attemptID)
	if err != nil {
		return err
	}
	p.publish(ws.Event{
		Type:      ws.EventStudentHeartbeat,
		SessionID: attempt.SessionIDRef,
		AttemptID: attempt.ID,
	})
	return nil
}

// Status answers the client poll: whether the attempt should shut itself
// down because it ended, its session was deactivated, or time ran out.
func (p *Pipeline) Status(attemptID string) (*StatusInfo, error) {
	attempt, err := p.store.AttemptByID(attemptID)
	if err != nil {
		return nil, err
	}
	session, err := p.store.SessionByID(attempt.SessionIDRef)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	shouldTerminate := attempt.Status != models.AttemptActive ||
		!session.IsActive ||
		(session.EndTime != nil && now.After(*session.EndTime))

	return &StatusInfo{
		Status:          attempt.Status,
		ShouldTerminate: shouldTerminate,
		EndTime:         session.EndTime,
	}, nil
}

// Violations returns the attempt's full violation history in receipt order.
func (p *Pipeline) Violations(attemptID string) ([]models.Violation, error) {
	if _, err := p.store.AttemptByID(attemptID); err != nil {
		return nil, err
	}
	return p.store.Violations(attemptID)
}

func (p *Pipeline) publish(evt ws.Event) {
	if p.hub != nil {
		p.hub.Publish(evt)
	}
}

func statusForReason(reason string) string {
	switch reason {
	case "completed":
		return models.AttemptCompleted
	case "time_expired":
		return models.AttemptTimeExpired
	default:
		return models.AttemptTerminated
	}
}
