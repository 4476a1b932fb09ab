//go:build !windows

package lockdown

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync"
)

// PortableAdapter is the non-Windows implementation used for development
// and testing on Linux and macOS. Input interception and feature
// restrictions are not available outside Windows; those calls succeed as
// no-ops so the rest of the machine stays exercisable. Process and
// foreground probes use ps and xdotool where present.
type PortableAdapter struct {
	BrowserPath string

	mu      sync.Mutex
	browser *exec.Cmd
}

func NewPortableAdapter() *PortableAdapter { return &PortableAdapter{} }

// NewPlatformAdapter returns the adapter for the build's target OS.
func NewPlatformAdapter(browserPath string) PlatformAdapter {
	return &PortableAdapter{BrowserPath: browserPath}
}

func (a *PortableAdapter) SuppressSleep() error { return nil }
func (a *PortableAdapter) ReleaseSleep() error  { return nil }

func (a *PortableAdapter) InstallInputInterception(shortcuts, keys []string, onBlocked func(kind, combo string)) error {
	return nil
}
func (a *PortableAdapter) UninstallInputInterception() error { return nil }

func (a *PortableAdapter) ApplyFeatureRestrictions() error  { return nil }
func (a *PortableAdapter) RevertFeatureRestrictions() error { return nil }

func (a *PortableAdapter) browserExe() string {
	if a.BrowserPath != "" {
		return a.BrowserPath
	}
	return "chromium"
}

func (a *PortableAdapter) CreatePinnedSurface(url string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.browser != nil {
		return nil
	}
	cmd := exec.Command(a.browserExe(), "--kiosk", url)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("launch kiosk browser: %w", err)
	}
	a.browser = cmd
	return nil
}

func (a *PortableAdapter) CreateControlSurface() error { return nil }

func (a *PortableAdapter) CloseSurfaces() error {
	a.mu.Lock()
	cmd := a.browser
	a.browser = nil
	a.mu.Unlock()
	if cmd == nil || cmd.Process == nil {
		return nil
	}
	if err := cmd.Process.Kill(); err != nil {
		return fmt.Errorf("close kiosk browser: %w", err)
	}
	go cmd.Wait()
	return nil
}

func (a *PortableAdapter) FocusPrimary() error { return nil }

func (a *PortableAdapter) SurfaceFocused(ctx context.Context) (bool, error) {
	// Without a reliable cross-platform probe, assume focused so the
	// foreground loop stays quiet during development.
	return true, ctx.Err()
}

func (a *PortableAdapter) EnumerateProcesses(ctx context.Context) ([]ProcessInfo, error) {
	out, err := exec.CommandContext(ctx, "ps", "-eo", "pid=,comm=").Output()
	if err != nil {
		return nil, fmt.Errorf("ps: %w", err)
	}
	var procs []ProcessInfo
	for _, line := range strings.Split(string(out), "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		pid, err := strconv.Atoi(fields[0])
		if err != nil {
			continue
		}
		procs = append(procs, ProcessInfo{PID: pid, Name: strings.ToLower(fields[1])})
	}
	return procs, nil
}

func (a *PortableAdapter) TerminateProcess(ctx context.Context, name string) error {
	if err := exec.CommandContext(ctx, "pkill", "-x", name).Run(); err != nil {
		return fmt.Errorf("pkill %s: %w", name, err)
	}
	return nil
}

func (a *PortableAdapter) ForegroundProcess(ctx context.Context) (string, error) {
	return "", ctx.Err()
}

func (a *PortableAdapter) MachineInfo(ctx context.Context) (string, error) {
	out, err := exec.CommandContext(ctx, "uname", "-a").Output()
	if err != nil {
		return "", fmt.Errorf("uname: %w", err)
	}
	return string(out), nil
}
