package lockdown

import (
	"context"
	"sync"
)

// fakeAdapter records every call and serves canned probe answers.
type fakeAdapter struct {
	mu    sync.Mutex
	calls []string

	processes  []ProcessInfo
	foreground string
	focused    bool
	machine    string

	onBlocked func(kind, combo string)
}

func newFakeAdapter() *fakeAdapter {
	return &fakeAdapter{focused: true, machine: "Dell Inc. Latitude 5420"}
}

func (f *fakeAdapter) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeAdapter) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

func (f *fakeAdapter) countCalls(name string) int {
	n := 0
	for _, c := range f.callLog() {
		if c == name {
			n++
		}
	}
	return n
}

func (f *fakeAdapter) setProcesses(procs ...ProcessInfo) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.processes = procs
}

func (f *fakeAdapter) setForeground(name string, focused bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.foreground = name
	f.focused = focused
}

func (f *fakeAdapter) SuppressSleep() error { f.record("SuppressSleep"); return nil }
func (f *fakeAdapter) ReleaseSleep() error  { f.record("ReleaseSleep"); return nil }

func (f *fakeAdapter) InstallInputInterception(shortcuts, keys []string, onBlocked func(kind, combo string)) error {
	f.record("InstallInputInterception")
	f.mu.Lock()
	f.onBlocked = onBlocked
	f.mu.Unlock()
	return nil
}

func (f *fakeAdapter) UninstallInputInterception() error {
	f.record("UninstallInputInterception")
	return nil
}

func (f *fakeAdapter) ApplyFeatureRestrictions() error  { f.record("ApplyFeatureRestrictions"); return nil }
func (f *fakeAdapter) RevertFeatureRestrictions() error { f.record("RevertFeatureRestrictions"); return nil }

func (f *fakeAdapter) CreatePinnedSurface(url string) error {
	f.record("CreatePinnedSurface")
	return nil
}
func (f *fakeAdapter) CreateControlSurface() error { f.record("CreateControlSurface"); return nil }
func (f *fakeAdapter) CloseSurfaces() error        { f.record("CloseSurfaces"); return nil }

func (f *fakeAdapter) FocusPrimary() error { f.record("FocusPrimary"); return nil }

func (f *fakeAdapter) SurfaceFocused(ctx context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.focused, ctx.Err()
}

func (f *fakeAdapter) EnumerateProcesses(ctx context.Context) ([]ProcessInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]ProcessInfo, len(f.processes))
	copy(out, f.processes)
	return out, ctx.Err()
}

func (f *fakeAdapter) TerminateProcess(ctx context.Context, name string) error {
	f.record("TerminateProcess:" + name)
	return nil
}

func (f *fakeAdapter) ForegroundProcess(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.foreground, ctx.Err()
}

func (f *fakeAdapter) MachineInfo(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.machine, ctx.Err()
}
