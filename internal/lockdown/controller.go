package lockdown

import (
	"context"
	"crypto/subtle"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/zaqqye/examguard/internal/models"
)

// State is the lockdown lifecycle phase.
type State int

const (
	StateIdle State = iota
	StateEntering
	StateActive
	StateExiting
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateEntering:
		return "entering"
	case StateActive:
		return "active"
	case StateExiting:
		return "exiting"
	default:
		return "unknown"
	}
}

// ControllerConfig carries the policy data the controller needs up front.
type ControllerConfig struct {
	// Shortcuts and Keys are the input combinations to intercept while
	// active.
	Shortcuts []string
	Keys      []string
	// AdminPassword unlocks the local override that ends lockdown without
	// the server's involvement.
	AdminPassword string
	// PenaltySchedule overrides the default escalation durations.
	PenaltySchedule []time.Duration
	// FocusInterval is the reconciliation cadence for the pinned surface;
	// defaults to one second.
	FocusInterval time.Duration
	ProbeTimeout  time.Duration

	Monitor MonitorConfig
}

func (c *ControllerConfig) fillDefaults() {
	if c.FocusInterval <= 0 {
		c.FocusInterval = time.Second
	}
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = 1500 * time.Millisecond
	}
}

// Controller drives the lockdown state machine: Idle -> Entering -> Active
// -> Exiting -> Idle. Entering applies the platform restrictions in a fixed
// order; each step is best-effort and a failed step never aborts the
// sequence. Exiting reverses every step under its own guard, so one failed
// reversal cannot strand the machine locked.
type Controller struct {
	adapter    PlatformAdapter
	cfg        ControllerConfig
	classifier *Classifier
	escalator  *Escalator
	monitor    *Monitor

	// report receives every classified violation; the agent wires it to the
	// server pipeline.
	report func(Signal)
	// onEnd is invoked once per session when lockdown ends, with the reason.
	onEnd func(reason string)

	mu        sync.Mutex
	state     State
	attemptID string
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	expiry    *time.Timer
}

func NewController(adapter PlatformAdapter, cfg ControllerConfig, report func(Signal), onEnd func(reason string)) *Controller {
	cfg.fillDefaults()
	c := &Controller{
		adapter:    adapter,
		cfg:        cfg,
		classifier: NewClassifier(DefaultCooldown),
		escalator:  NewEscalator(cfg.PenaltySchedule),
		report:     report,
		onEnd:      onEnd,
	}
	c.monitor = NewMonitor(adapter, cfg.Monitor, c.handleSignal)
	return c
}

// State returns the current lifecycle phase.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Escalator exposes the penalty state for display.
func (c *Controller) Escalator() *Escalator {
	return c.escalator
}

// Start enters lockdown for the given attempt. It is rejected unless the
// controller is Idle; the current state is returned either way.
func (c *Controller) Start(attemptID, examURL string, endTime *time.Time) State {
	c.mu.Lock()
	if c.state != StateIdle {
		s := c.state
		c.mu.Unlock()
		return s
	}
	c.state = StateEntering
	c.attemptID = attemptID
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.mu.Unlock()

	// Entering steps run in a fixed order. Failures are logged, never
	// fatal: a machine that half-locks is still supervised by the monitor
	// and by the proctor's live view.
	step := func(name string, fn func() error) {
		if err := fn(); err != nil {
			log.Printf("lockdown: %s failed: %v", name, err)
		}
	}
	step("sleep suppression", c.adapter.SuppressSleep)
	step("input interception", func() error {
		return c.adapter.InstallInputInterception(c.cfg.Shortcuts, c.cfg.Keys, c.handleBlockedInput)
	})
	step("feature restrictions", c.adapter.ApplyFeatureRestrictions)
	step("pinned surface", func() error { return c.adapter.CreatePinnedSurface(examURL) })
	step("control surface", c.adapter.CreateControlSurface)
	c.monitor.Start()

	c.wg.Add(1)
	go c.focusLoop(ctx)

	c.mu.Lock()
	c.state = StateActive
	if endTime != nil {
		d := time.Until(*endTime)
		if d < 0 {
			d = 0
		}
		c.expiry = time.AfterFunc(d, func() {
			c.End("time_expired")
		})
	}
	c.mu.Unlock()
	return StateActive
}

// End leaves lockdown, reversing every restriction. The first call with the
// machine Active wins; later calls and calls from Idle are no-ops. The
// configured onEnd callback fires exactly once per session, with reason.
func (c *Controller) End(reason string) {
	c.mu.Lock()
	if c.state != StateActive {
		c.mu.Unlock()
		return
	}
	c.state = StateExiting
	cancel := c.cancel
	c.cancel = nil
	if c.expiry != nil {
		c.expiry.Stop()
		c.expiry = nil
	}
	c.mu.Unlock()

	cancel()
	c.wg.Wait()
	c.monitor.Stop()

	// Each reversal is independently guarded so one failure cannot leave
	// the rest of the machine locked.
	step := func(name string, fn func() error) {
		if err := fn(); err != nil {
			log.Printf("lockdown: %s failed: %v", name, err)
		}
	}
	step("surface teardown", c.adapter.CloseSurfaces)
	step("feature restore", c.adapter.RevertFeatureRestrictions)
	step("input release", c.adapter.UninstallInputInterception)
	step("sleep release", c.adapter.ReleaseSleep)

	c.classifier.Reset()
	c.escalator.Reset()

	c.mu.Lock()
	c.state = StateIdle
	c.attemptID = ""
	c.mu.Unlock()

	if c.onEnd != nil {
		c.onEnd(reason)
	}
}

// AdminOverride ends lockdown locally when the supplied password matches the
// configured one. Comparison is constant-time.
func (c *Controller) AdminOverride(password string) bool {
	if c.cfg.AdminPassword == "" {
		return false
	}
	if subtle.ConstantTimeCompare([]byte(password), []byte(c.cfg.AdminPassword)) != 1 {
		return false
	}
	c.End("admin_override")
	return true
}

// handleBlockedInput is the interception callback: blocked combinations and
// keys become violation signals.
func (c *Controller) handleBlockedInput(kind, combo string) {
	t := models.ViolationShortcutBlocked
	desc := "Blocked shortcut: " + combo
	if kind == InterceptKey {
		t = models.ViolationKeyBlocked
		desc = "Blocked key: " + combo
	}
	c.handleSignal(Signal{Type: t, Description: desc, Details: combo})
}

// handleSignal routes every raw signal through the classifier and, if it
// survives dedup, into the escalator and the report callback.
func (c *Controller) handleSignal(sig Signal) {
	if c.State() != StateActive {
		return
	}
	now := time.Now()
	if !c.classifier.Classify(sig, now) {
		return
	}
	c.escalator.Record(sig.Type, now)
	if c.report != nil {
		c.report(sig)
	}
}

// focusLoop reconciles focus onto the pinned surface once per interval and
// turns sustained focus loss into focus_lost signals. Processes on the
// allowed-foreground list, such as the terminal hosting the control TUI, may
// hold focus without either a signal or a focus steal.
func (c *Controller) focusLoop(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.cfg.FocusInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			probeCtx, cancel := context.WithTimeout(ctx, c.cfg.ProbeTimeout)
			focused, err := c.adapter.SurfaceFocused(probeCtx)
			cancel()
			if err != nil || focused {
				continue
			}
			probeCtx, cancel = context.WithTimeout(ctx, c.cfg.ProbeTimeout)
			name, err := c.adapter.ForegroundProcess(probeCtx)
			cancel()
			if err == nil && contains(c.cfg.Monitor.AllowedForeground, strings.ToLower(name)) {
				continue
			}
			if err := c.adapter.FocusPrimary(); err != nil {
				log.Printf("lockdown: focus reassert failed: %v", err)
			}
			c.handleSignal(Signal{
				Type:        models.ViolationFocusLost,
				Description: "Exam window lost focus",
			})
		}
	}
}
