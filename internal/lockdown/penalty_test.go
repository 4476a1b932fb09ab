package lockdown

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/zaqqye/examguard/internal/models"
)

func TestEscalatorEverySecondSeriousViolation(t *testing.T) {
	e := NewEscalator(nil)
	base := time.Now()

	e.Record(models.ViolationAppOpened, base)
	locked, _ := e.Locked(base)
	assert.False(t, locked, "first serious violation must not lock")
	assert.Equal(t, 0, e.Level())

	e.Record(models.ViolationShortcutBlocked, base)
	locked, until := e.Locked(base)
	assert.True(t, locked)
	assert.Equal(t, 1, e.Level())
	assert.Equal(t, base.Add(120*time.Second), until)
}

func TestEscalatorIgnoresMinorViolations(t *testing.T) {
	e := NewEscalator(nil)
	base := time.Now()

	for i := 0; i < 10; i++ {
		e.Record(models.ViolationFocusLost, base)
		e.Record(models.ViolationKeyBlocked, base)
	}
	locked, _ := e.Locked(base)
	assert.False(t, locked)
	assert.Equal(t, 0, e.Level())
}

func TestEscalatorScheduleProgression(t *testing.T) {
	e := NewEscalator(nil)
	base := time.Now()

	durations := []time.Duration{
		120 * time.Second, 300 * time.Second, 600 * time.Second,
		900 * time.Second, 1800 * time.Second,
		// Past the schedule the last entry repeats.
		1800 * time.Second, 1800 * time.Second,
	}
	for i, want := range durations {
		// Advance the clock past the previous lock so each level's
		// duration is observable on its own.
		now := base.Add(time.Duration(i) * time.Hour)
		e.Record(models.ViolationAppOpened, now)
		e.Record(models.ViolationAppOpened, now)
		_, until := e.Locked(now)
		assert.Equal(t, now.Add(want), until, "level %d", i+1)
	}
}

func TestEscalatorNeverShortensLock(t *testing.T) {
	schedule := []time.Duration{10 * time.Minute, time.Minute}
	e := NewEscalator(schedule)
	base := time.Now()

	e.Record(models.ViolationAppOpened, base)
	e.Record(models.ViolationAppOpened, base)
	_, first := e.Locked(base)

	// A later escalation whose deadline lands earlier must not pull the
	// existing deadline in.
	e.Record(models.ViolationAppOpened, base.Add(time.Second))
	e.Record(models.ViolationAppOpened, base.Add(time.Second))
	_, second := e.Locked(base)
	assert.Equal(t, first, second)
}

func TestEscalatorWallClockExpiry(t *testing.T) {
	e := NewEscalator([]time.Duration{time.Minute})
	base := time.Now()

	e.Record(models.ViolationShortcutBlocked, base)
	e.Record(models.ViolationShortcutBlocked, base)

	locked, _ := e.Locked(base.Add(59 * time.Second))
	assert.True(t, locked)
	locked, _ = e.Locked(base.Add(61 * time.Second))
	assert.False(t, locked, "the deadline is wall-clock, not tick-counted")
}

func TestEscalatorReset(t *testing.T) {
	e := NewEscalator(nil)
	base := time.Now()

	e.Record(models.ViolationAppOpened, base)
	e.Record(models.ViolationAppOpened, base)
	e.Reset()

	locked, _ := e.Locked(base)
	assert.False(t, locked)
	assert.Equal(t, 0, e.Level())

	// Post-reset the serious count starts over: one violation, no lock.
	e.Record(models.ViolationAppOpened, base)
	locked, _ = e.Locked(base)
	assert.False(t, locked)
}
