package lockdown

import (
	"sync"
	"time"

	"github.com/zaqqye/examguard/internal/models"
)

// DefaultPenaltySchedule maps penaltyLevel-1 to lock duration; levels past
// the end of the schedule use the last entry.
var DefaultPenaltySchedule = []time.Duration{
	120 * time.Second,
	300 * time.Second,
	600 * time.Second,
	900 * time.Second,
	1800 * time.Second,
}

// Escalator converts a running count of serious violations into a timed
// access lock with escalating duration. It is a deterrent display only; the
// controller does the actual blocking.
type Escalator struct {
	mu       sync.Mutex
	schedule []time.Duration

	serious   int
	level     int
	lockUntil time.Time
}

func NewEscalator(schedule []time.Duration) *Escalator {
	if len(schedule) == 0 {
		schedule = DefaultPenaltySchedule
	}
	return &Escalator{schedule: schedule}
}

func seriousViolation(t models.ViolationType) bool {
	return t == models.ViolationAppOpened || t == models.ViolationShortcutBlocked
}

// Record counts the violation and escalates the lock when warranted. Every
// second serious violation raises the level by one. A higher level
// overwrites a shorter lock in progress; a lower or equal deadline never
// shortens one.
func (e *Escalator) Record(t models.ViolationType, now time.Time) {
	if !seriousViolation(t) {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	e.serious++
	if e.serious%2 != 0 {
		return
	}
	e.level++

	idx := e.level - 1
	if idx >= len(e.schedule) {
		idx = len(e.schedule) - 1
	}
	until := now.Add(e.schedule[idx])
	if until.After(e.lockUntil) {
		e.lockUntil = until
	}
}

// Locked reports the current lock state as a wall-clock deadline check, so
// skipped or drifting ticks cannot stretch a lock.
func (e *Escalator) Locked(now time.Time) (bool, time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if now.Before(e.lockUntil) {
		return true, e.lockUntil
	}
	return false, time.Time{}
}

// Level returns the current penalty level.
func (e *Escalator) Level() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.level
}

// Reset clears all penalty state; called when lockdown ends.
func (e *Escalator) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.serious = 0
	e.level = 0
	e.lockUntil = time.Time{}
}
