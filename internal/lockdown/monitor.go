package lockdown

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/zaqqye/examguard/internal/models"
)

// MonitorConfig carries the externally supplied blacklist and tuning data.
type MonitorConfig struct {
	// Blacklist holds process names (lowercase) that must not run during an
	// exam: screen recorders, VM tooling, remote desktop, chat clients, IDEs.
	Blacklist []string
	// VMProcesses are hypervisor guest-agent process names; VMMarkers are
	// substrings of the machine manufacturer/model that indicate a VM.
	VMProcesses []string
	VMMarkers   []string
	// FriendlyNames maps process names to display names for app_opened
	// reports; unmapped names pass through raw.
	FriendlyNames map[string]string
	// AllowedForeground are process names permitted to hold focus besides
	// the lockdown's own surfaces.
	AllowedForeground []string

	ProcessScanInterval    time.Duration
	ForegroundScanInterval time.Duration
	ProbeTimeout           time.Duration
}

func (c *MonitorConfig) fillDefaults() {
	if c.ProcessScanInterval <= 0 {
		c.ProcessScanInterval = 5 * time.Second
	}
	if c.ForegroundScanInterval <= 0 {
		c.ForegroundScanInterval = time.Second
	}
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = 1500 * time.Millisecond
	}
}

// Monitor samples OS-level signals while lockdown is active and feeds raw
// signals to its emit callback. All per-session scratch state (the detected-
// process set, the last foreground app) lives here and is reset wholesale on
// Stop, so nothing leaks across sessions.
type Monitor struct {
	adapter PlatformAdapter
	cfg     MonitorConfig
	emit    func(Signal)

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	seen       map[string]struct{}
	vmReported bool
	lastApp    string
}

func NewMonitor(adapter PlatformAdapter, cfg MonitorConfig, emit func(Signal)) *Monitor {
	cfg.fillDefaults()
	return &Monitor{
		adapter: adapter,
		cfg:     cfg,
		emit:    emit,
		seen:    make(map[string]struct{}),
	}
}

// Start launches the sampling loops. A second Start without an intervening
// Stop is a no-op.
func (m *Monitor) Start() {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.mu.Unlock()

	m.wg.Add(2)
	go m.processLoop(ctx)
	go m.foregroundLoop(ctx)
}

// Stop cancels all loops, waits for in-flight ticks, and discards the
// per-session state. After Stop returns no further signals are emitted.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	cancel := m.cancel
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()

	m.mu.Lock()
	m.seen = make(map[string]struct{})
	m.vmReported = false
	m.lastApp = ""
	m.mu.Unlock()
}

// Running reports the monitor's liveness flag.
func (m *Monitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// send emits sig unless the monitor was stopped while the tick was in flight.
func (m *Monitor) send(ctx context.Context, sig Signal) {
	if ctx.Err() != nil || !m.Running() {
		return
	}
	m.emit(sig)
}

func (m *Monitor) processLoop(ctx context.Context) {
	defer m.wg.Done()

	// Initial sweep plus the one-shot virtualization probe.
	m.scanProcesses(ctx)
	m.probeVM(ctx)

	ticker := time.NewTicker(m.cfg.ProcessScanInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.scanProcesses(ctx)
		}
	}
}

func (m *Monitor) scanProcesses(ctx context.Context) {
	probeCtx, cancel := context.WithTimeout(ctx, m.cfg.ProbeTimeout)
	procs, err := m.adapter.EnumerateProcesses(probeCtx)
	cancel()
	if err != nil {
		// No signal this tick; a flaky probe must not strand the student.
		log.Printf("monitor: process scan failed: %v", err)
		return
	}

	for _, proc := range procs {
		name := strings.ToLower(proc.Name)
		if !contains(m.cfg.Blacklist, name) {
			continue
		}
		m.mu.Lock()
		_, reported := m.seen[name]
		if !reported {
			m.seen[name] = struct{}{}
		}
		m.mu.Unlock()
		if reported {
			continue
		}

		m.send(ctx, Signal{
			Type:        models.ViolationBlacklistedProcess,
			Description: "Detected blacklisted process: " + name,
			Details:     name,
		})

		// Fire-and-forget kill; a repeated kill storm would itself disrupt.
		killCtx, killCancel := context.WithTimeout(context.Background(), m.cfg.ProbeTimeout)
		if err := m.adapter.TerminateProcess(killCtx, name); err != nil {
			log.Printf("monitor: failed to kill %s: %v", name, err)
		}
		killCancel()
	}
}

// probeVM reports virtual_machine at most once per session, checking both
// hypervisor guest-agent processes and machine manufacturer/model markers.
func (m *Monitor) probeVM(ctx context.Context) {
	m.mu.Lock()
	done := m.vmReported
	m.mu.Unlock()
	if done {
		return
	}

	probeCtx, cancel := context.WithTimeout(ctx, m.cfg.ProbeTimeout)
	procs, err := m.adapter.EnumerateProcesses(probeCtx)
	cancel()
	if err == nil {
		for _, proc := range procs {
			name := strings.ToLower(proc.Name)
			if contains(m.cfg.VMProcesses, name) {
				m.reportVM(ctx, "VM indicator process: "+name)
				return
			}
		}
	}

	probeCtx, cancel = context.WithTimeout(ctx, m.cfg.ProbeTimeout)
	info, err := m.adapter.MachineInfo(probeCtx)
	cancel()
	if err != nil {
		log.Printf("monitor: machine info probe failed: %v", err)
		return
	}
	lower := strings.ToLower(info)
	for _, marker := range m.cfg.VMMarkers {
		if strings.Contains(lower, marker) {
			m.reportVM(ctx, "System manufacturer/model indicates VM")
			return
		}
	}
}

func (m *Monitor) reportVM(ctx context.Context, details string) {
	m.mu.Lock()
	if m.vmReported {
		m.mu.Unlock()
		return
	}
	m.vmReported = true
	m.mu.Unlock()

	m.send(ctx, Signal{
		Type:        models.ViolationVirtualMachine,
		Description: "Virtual machine detected",
		Details:     details,
	})
}

func (m *Monitor) foregroundLoop(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.ForegroundScanInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.scanForeground(ctx)
		}
	}
}

func (m *Monitor) scanForeground(ctx context.Context) {
	probeCtx, cancel := context.WithTimeout(ctx, m.cfg.ProbeTimeout)
	focused, err := m.adapter.SurfaceFocused(probeCtx)
	cancel()
	if err != nil {
		log.Printf("monitor: focus probe failed: %v", err)
		return
	}
	if focused {
		// Focus came home; the next escape gets reported again.
		m.mu.Lock()
		m.lastApp = ""
		m.mu.Unlock()
		return
	}

	probeCtx, cancel = context.WithTimeout(ctx, m.cfg.ProbeTimeout)
	name, err := m.adapter.ForegroundProcess(probeCtx)
	cancel()
	if err != nil || name == "" {
		return
	}
	name = strings.ToLower(name)
	if contains(m.cfg.AllowedForeground, name) {
		return
	}

	// Always steal focus back, but only report a given app once per escape.
	if err := m.adapter.FocusPrimary(); err != nil {
		log.Printf("monitor: focus reassert failed: %v", err)
	}

	m.mu.Lock()
	repeated := name == m.lastApp
	m.lastApp = name
	m.mu.Unlock()
	if repeated {
		return
	}

	m.send(ctx, Signal{
		Type:        models.ViolationAppOpened,
		Description: "Opened application: " + m.friendlyName(name),
		Details:     name,
	})
}

func (m *Monitor) friendlyName(process string) string {
	if display, ok := m.cfg.FriendlyNames[process]; ok {
		return display
	}
	return process
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
