package lockdown

import "context"

// ProcessInfo describes one running process from a platform scan.
type ProcessInfo struct {
	PID  int
	Name string
}

// Interception kinds passed to the input-interception callback.
const (
	InterceptShortcut = "shortcut"
	InterceptKey      = "key"
)

// PlatformAdapter is the capability boundary between the lockdown core and
// the operating system. Every operation is best-effort: callers log failures
// and move on, they never abort on one. Probing operations take a context
// and must respect its deadline; a timeout means "no signal this tick".
type PlatformAdapter interface {
	// SuppressSleep keeps the display and system awake until ReleaseSleep.
	SuppressSleep() error
	ReleaseSleep() error

	// InstallInputInterception grabs the given shortcut combinations
	// system-wide and invokes onBlocked(kind, combo) whenever one fires.
	// kind is InterceptShortcut for combinations and InterceptKey for
	// single blocked keys.
	InstallInputInterception(shortcuts, keys []string, onBlocked func(kind, combo string)) error
	UninstallInputInterception() error

	// ApplyFeatureRestrictions disables task switcher, lock screen and
	// similar OS affordances; RevertFeatureRestrictions restores them.
	ApplyFeatureRestrictions() error
	RevertFeatureRestrictions() error

	// CreatePinnedSurface opens the border-less, always-topmost primary
	// surface showing url. CreateControlSurface opens the small always-on-
	// top submit/terminate surface. CloseSurfaces tears both down.
	CreatePinnedSurface(url string) error
	CreateControlSurface() error
	CloseSurfaces() error

	// FocusPrimary forces input focus back onto the pinned surface.
	FocusPrimary() error
	// SurfaceFocused reports whether either lockdown surface holds focus.
	SurfaceFocused(ctx context.Context) (bool, error)

	EnumerateProcesses(ctx context.Context) ([]ProcessInfo, error)
	TerminateProcess(ctx context.Context, name string) error
	// ForegroundProcess returns the executable name owning the focused
	// window, lowercased.
	ForegroundProcess(ctx context.Context) (string, error)
	// MachineInfo returns the machine manufacturer/model string used by the
	// virtualization probe.
	MachineInfo(ctx context.Context) (string, error)
}
