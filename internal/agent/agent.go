package agent

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/zaqqye/examguard/internal/lockdown"
	"github.com/zaqqye/examguard/internal/ws"
)

// EventKind discriminates agent events delivered to the control surface.
type EventKind int

const (
	EventViolation EventKind = iota
	EventEnded
)

// Event is pushed to the control surface for display.
type Event struct {
	Kind   EventKind
	Signal lockdown.Signal
	Reason string
}

// Agent ties the lockdown controller to the exam server: it forwards
// classified violations upstream, keeps the heartbeat alive, and shuts the
// lockdown down when the server or the student says so.
type Agent struct {
	cfg        Config
	client     *Client
	controller *lockdown.Controller

	mu      sync.Mutex
	attempt *AttemptInfo
	session *SessionInfo

	events chan Event
	done   chan struct{}
	wg     sync.WaitGroup
}

func New(cfg Config, adapter lockdown.PlatformAdapter) *Agent {
	a := &Agent{
		cfg:    cfg,
		client: NewClient(cfg.Server.BaseURL),
		events: make(chan Event, 64),
		done:   make(chan struct{}),
	}
	ctrl := lockdown.NewController(adapter, lockdown.ControllerConfig{
		Shortcuts:       cfg.Lockdown.Shortcuts,
		Keys:            cfg.Lockdown.Keys,
		AdminPassword:   cfg.Lockdown.AdminPassword,
		PenaltySchedule: cfg.PenaltySchedule(),
		Monitor:         cfg.MonitorSettings(),
	}, a.reportViolation, a.handleEnd)
	a.controller = ctrl
	return a
}

// Controller exposes the lockdown state machine for display.
func (a *Agent) Controller() *lockdown.Controller { return a.controller }

// Events delivers violation and shutdown notifications for the control
// surface.
func (a *Agent) Events() <-chan Event { return a.events }

// Done is closed once the exam has ended and lockdown is fully reverted.
func (a *Agent) Done() <-chan struct{} { return a.done }

// Session returns the joined session, nil before Join.
func (a *Agent) Session() *SessionInfo {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.session
}

// Join redeems the access code, registers an attempt, enters lockdown and
// starts the background loops.
func (a *Agent) Join(code, studentName, studentID string) error {
	session, err := a.client.ValidateCode(code)
	if err != nil {
		return err
	}
	attempt, err := a.client.StartAttempt(session.SessionID, studentName, studentID)
	if err != nil {
		return err
	}

	a.mu.Lock()
	a.session = session
	a.attempt = attempt
	a.mu.Unlock()

	examURL := ""
	if len(attempt.AllowedURLs) > 0 {
		examURL = attempt.AllowedURLs[0]
	}
	a.controller.Start(attempt.AttemptID, examURL, attempt.EndTime)

	a.wg.Add(3)
	go a.heartbeatLoop()
	go a.statusLoop()
	go a.pushLoop()
	return nil
}

// Submit ends the exam at the student's request.
func (a *Agent) Submit() {
	a.controller.End("completed")
}

// Override ends the exam via the local proctor password.
func (a *Agent) Override(password string) bool {
	return a.controller.AdminOverride(password)
}

func (a *Agent) attemptID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.attempt == nil {
		return ""
	}
	return a.attempt.AttemptID
}

// reportViolation is the controller's report sink: forward upstream, echo to
// the control surface. Upload failures are logged and dropped; the server
// rebuilds the authoritative record from what does arrive.
func (a *Agent) reportViolation(sig lockdown.Signal) {
	id := a.attemptID()
	if id == "" {
		return
	}
	go func() {
		if err := a.client.ReportViolation(id, sig.Type, sig.Description, sig.Details); err != nil {
			log.Printf("agent: violation upload failed: %v", err)
		}
	}()
	a.emit(Event{Kind: EventViolation, Signal: sig})
}

// handleEnd runs once per session when the controller leaves lockdown.
func (a *Agent) handleEnd(reason string) {
	if id := a.attemptID(); id != "" {
		if err := a.client.EndAttempt(id, reason); err != nil {
			// Already-ended is expected when the server initiated the
			// shutdown.
			log.Printf("agent: end report: %v", err)
		}
	}
	a.emit(Event{Kind: EventEnded, Reason: reason})
	close(a.done)
}

func (a *Agent) emit(evt Event) {
	select {
	case a.events <- evt:
	default:
	}
}

func (a *Agent) heartbeatLoop() {
	defer a.wg.Done()
	interval := time.Duration(a.cfg.Timing.HeartbeatSeconds) * time.Second
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-a.done:
			return
		case <-ticker.C:
			if err := a.client.Heartbeat(a.attemptID()); err != nil {
				log.Printf("agent: heartbeat failed: %v", err)
			}
		}
	}
}

// statusLoop is the pull-based fallback for missed terminate pushes.
func (a *Agent) statusLoop() {
	defer a.wg.Done()
	interval := time.Duration(a.cfg.Timing.StatusPollSeconds) * time.Second
	if interval <= 0 {
		interval = 15 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-a.done:
			return
		case <-ticker.C:
			st, err := a.client.Status(a.attemptID())
			if err != nil {
				log.Printf("agent: status poll failed: %v", err)
				continue
			}
			if st.ShouldTerminate {
				a.controller.End("terminated")
				return
			}
		}
	}
}

// pushLoop listens for terminate orders over the agent socket. On any socket
// error it gives up; the status poll covers the gap.
func (a *Agent) pushLoop() {
	defer a.wg.Done()
	conn, err := a.client.DialAgent(a.attemptID())
	if err != nil {
		log.Printf("agent: push channel unavailable: %v", err)
		return
	}
	defer conn.Close()

	go func() {
		<-a.done
		conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var msg ws.AgentMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		if msg.Type == ws.AgentTerminate {
			reason := msg.Reason
			if reason == "" {
				reason = "terminated"
			}
			a.controller.End(reason)
			return
		}
	}
}
