package lockdown

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zaqqye/examguard/internal/models"
)

type reportSink struct {
	mu      sync.Mutex
	signals []Signal
	ch      chan Signal
}

func newReportSink() *reportSink {
	return &reportSink{ch: make(chan Signal, 32)}
}

func (r *reportSink) report(sig Signal) {
	r.mu.Lock()
	r.signals = append(r.signals, sig)
	r.mu.Unlock()
	select {
	case r.ch <- sig:
	default:
	}
}

func (r *reportSink) all() []Signal {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Signal, len(r.signals))
	copy(out, r.signals)
	return out
}

type endSink struct {
	mu      sync.Mutex
	reasons []string
	ch      chan string
}

func newEndSink() *endSink {
	return &endSink{ch: make(chan string, 4)}
}

func (e *endSink) onEnd(reason string) {
	e.mu.Lock()
	e.reasons = append(e.reasons, reason)
	e.mu.Unlock()
	select {
	case e.ch <- reason:
	default:
	}
}

func (e *endSink) all() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, len(e.reasons))
	copy(out, e.reasons)
	return out
}

func newTestController(fake *fakeAdapter) (*Controller, *reportSink, *endSink) {
	reports := newReportSink()
	ends := newEndSink()
	ctrl := NewController(fake, ControllerConfig{
		Shortcuts:     []string{"alt+tab", "win+d"},
		Keys:          []string{"printscreen"},
		AdminPassword: "let-me-out",
	}, reports.report, ends.onEnd)
	return ctrl, reports, ends
}

func indexOf(calls []string, name string) int {
	for i, c := range calls {
		if c == name {
			return i
		}
	}
	return -1
}

func TestControllerEnterAppliesStepsInOrder(t *testing.T) {
	fake := newFakeAdapter()
	ctrl, _, _ := newTestController(fake)

	assert.Equal(t, StateActive, ctrl.Start("attempt-1", "https://exam.example.edu", nil))
	assert.Equal(t, StateActive, ctrl.State())
	defer ctrl.End("completed")

	calls := fake.callLog()
	order := []string{
		"SuppressSleep",
		"InstallInputInterception",
		"ApplyFeatureRestrictions",
		"CreatePinnedSurface",
		"CreateControlSurface",
	}
	prev := -1
	for _, name := range order {
		idx := indexOf(calls, name)
		require.GreaterOrEqual(t, idx, 0, "%s was not applied", name)
		assert.Greater(t, idx, prev, "%s applied out of order", name)
		prev = idx
	}
}

func TestControllerRejectsDoubleStart(t *testing.T) {
	fake := newFakeAdapter()
	ctrl, _, _ := newTestController(fake)

	ctrl.Start("attempt-1", "https://exam.example.edu", nil)
	defer ctrl.End("completed")

	assert.Equal(t, StateActive, ctrl.Start("attempt-2", "https://other.example.edu", nil))
	assert.Equal(t, 1, fake.countCalls("SuppressSleep"), "a rejected start must not re-apply restrictions")
	assert.Equal(t, 1, fake.countCalls("CreatePinnedSurface"))
}

func TestControllerEndReversesEverything(t *testing.T) {
	fake := newFakeAdapter()
	ctrl, _, ends := newTestController(fake)

	ctrl.Start("attempt-1", "https://exam.example.edu", nil)
	ctrl.End("completed")

	assert.Equal(t, StateIdle, ctrl.State())
	for _, name := range []string{
		"CloseSurfaces",
		"RevertFeatureRestrictions",
		"UninstallInputInterception",
		"ReleaseSleep",
	} {
		assert.Equal(t, 1, fake.countCalls(name), "%s missing from teardown", name)
	}
	assert.Equal(t, []string{"completed"}, ends.all())
	assert.False(t, ctrl.monitor.Running(), "monitoring must stop with the lockdown")
}

func TestControllerEndIsIdempotent(t *testing.T) {
	fake := newFakeAdapter()
	ctrl, _, ends := newTestController(fake)

	// Ending from Idle does nothing at all.
	ctrl.End("completed")
	assert.Empty(t, ends.all())
	assert.Equal(t, 0, fake.countCalls("ReleaseSleep"))

	ctrl.Start("attempt-1", "https://exam.example.edu", nil)
	ctrl.End("completed")
	ctrl.End("terminated")

	assert.Equal(t, []string{"completed"}, ends.all(), "only the first end wins")
	assert.Equal(t, 1, fake.countCalls("ReleaseSleep"))
}

func TestControllerRestartAfterEnd(t *testing.T) {
	fake := newFakeAdapter()
	ctrl, _, _ := newTestController(fake)

	ctrl.Start("attempt-1", "https://exam.example.edu", nil)
	ctrl.End("completed")
	assert.Equal(t, StateActive, ctrl.Start("attempt-2", "https://exam.example.edu", nil))
	ctrl.End("completed")
}

func TestControllerAdminOverride(t *testing.T) {
	fake := newFakeAdapter()
	ctrl, _, ends := newTestController(fake)

	ctrl.Start("attempt-1", "https://exam.example.edu", nil)

	assert.False(t, ctrl.AdminOverride("wrong"))
	assert.Equal(t, StateActive, ctrl.State(), "a wrong password changes nothing")

	assert.True(t, ctrl.AdminOverride("let-me-out"))
	assert.Equal(t, StateIdle, ctrl.State())
	assert.Equal(t, []string{"admin_override"}, ends.all())
}

func TestControllerAdminOverrideDisabledWhenUnset(t *testing.T) {
	fake := newFakeAdapter()
	reports := newReportSink()
	ends := newEndSink()
	ctrl := NewController(fake, ControllerConfig{}, reports.report, ends.onEnd)

	ctrl.Start("attempt-1", "https://exam.example.edu", nil)
	defer ctrl.End("completed")

	assert.False(t, ctrl.AdminOverride(""))
	assert.Equal(t, StateActive, ctrl.State())
}

func TestControllerBlockedInputBecomesViolation(t *testing.T) {
	fake := newFakeAdapter()
	ctrl, reports, _ := newTestController(fake)

	ctrl.Start("attempt-1", "https://exam.example.edu", nil)
	defer ctrl.End("completed")

	fake.onBlocked(InterceptShortcut, "alt+tab")
	fake.onBlocked(InterceptKey, "printscreen")

	signals := reports.all()
	require.Len(t, signals, 2)
	assert.Equal(t, models.ViolationShortcutBlocked, signals[0].Type)
	assert.Equal(t, "alt+tab", signals[0].Details)
	assert.Equal(t, models.ViolationKeyBlocked, signals[1].Type)
}

func TestControllerSuppressesDuplicateBursts(t *testing.T) {
	fake := newFakeAdapter()
	ctrl, reports, _ := newTestController(fake)

	ctrl.Start("attempt-1", "https://exam.example.edu", nil)
	defer ctrl.End("completed")

	fake.onBlocked(InterceptShortcut, "alt+tab")
	fake.onBlocked(InterceptShortcut, "alt+tab")
	fake.onBlocked(InterceptShortcut, "win+d")

	signals := reports.all()
	require.Len(t, signals, 2, "the repeat within the cooldown is dropped")
	assert.Equal(t, "alt+tab", signals[0].Details)
	assert.Equal(t, "win+d", signals[1].Details)
}

func TestControllerEscalatesOnSeriousViolations(t *testing.T) {
	fake := newFakeAdapter()
	ctrl, _, _ := newTestController(fake)

	ctrl.Start("attempt-1", "https://exam.example.edu", nil)
	defer ctrl.End("completed")

	fake.onBlocked(InterceptShortcut, "alt+tab")
	fake.onBlocked(InterceptShortcut, "win+d")

	assert.Equal(t, 1, ctrl.Escalator().Level())
	locked, _ := ctrl.Escalator().Locked(time.Now())
	assert.True(t, locked)
}

func TestControllerIgnoresSignalsWhenIdle(t *testing.T) {
	fake := newFakeAdapter()
	ctrl, reports, _ := newTestController(fake)

	ctrl.handleSignal(Signal{Type: models.ViolationFocusLost})
	assert.Empty(t, reports.all())
}

func TestControllerTimeExpiry(t *testing.T) {
	fake := newFakeAdapter()
	ctrl, _, ends := newTestController(fake)

	deadline := time.Now().Add(20 * time.Millisecond)
	ctrl.Start("attempt-1", "https://exam.example.edu", &deadline)

	select {
	case reason := <-ends.ch:
		assert.Equal(t, "time_expired", reason)
	case <-time.After(2 * time.Second):
		t.Fatal("expiry timer never fired")
	}
	assert.Equal(t, StateIdle, ctrl.State())
	assert.Equal(t, []string{"time_expired"}, ends.all())
}

func TestControllerFocusToleratesControlSurfaceHost(t *testing.T) {
	fake := newFakeAdapter()
	fake.setForeground("windowsterminal.exe", false)

	reports := newReportSink()
	ends := newEndSink()
	ctrl := NewController(fake, ControllerConfig{
		FocusInterval: 5 * time.Millisecond,
		Monitor: MonitorConfig{
			AllowedForeground:      []string{"windowsterminal.exe"},
			ForegroundScanInterval: 5 * time.Millisecond,
		},
	}, reports.report, ends.onEnd)

	ctrl.Start("attempt-1", "https://exam.example.edu", nil)
	time.Sleep(100 * time.Millisecond)
	ctrl.End("completed")

	// Focusing the terminal that hosts the control TUI is not an escape:
	// no focus steal, no violations.
	assert.Equal(t, 0, fake.countCalls("FocusPrimary"))
	assert.Empty(t, reports.all())
}

func TestControllerFocusReconciliation(t *testing.T) {
	fake := newFakeAdapter()
	fake.setForeground("chrome.exe", false)

	reports := newReportSink()
	ends := newEndSink()
	ctrl := NewController(fake, ControllerConfig{
		FocusInterval: 5 * time.Millisecond,
	}, reports.report, ends.onEnd)

	ctrl.Start("attempt-1", "https://exam.example.edu", nil)
	defer ctrl.End("completed")

	timeout := time.After(2 * time.Second)
	for {
		select {
		case sig := <-reports.ch:
			if sig.Type == models.ViolationFocusLost {
				assert.Greater(t, fake.countCalls("FocusPrimary"), 0)
				return
			}
		case <-timeout:
			t.Fatal("focus loss never reported")
		}
	}
}
