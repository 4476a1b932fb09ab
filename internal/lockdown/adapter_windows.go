//go:build windows

package lockdown

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	user32                     = windows.NewLazySystemDLL("user32.dll")
	kernel32                   = windows.NewLazySystemDLL("kernel32.dll")
	procRegisterHotKey         = user32.NewProc("RegisterHotKey")
	procUnregisterHotKey       = user32.NewProc("UnregisterHotKey")
	procGetMessage             = user32.NewProc("GetMessageW")
	procPostThreadMessage      = user32.NewProc("PostThreadMessageW")
	procGetForegroundWindow    = user32.NewProc("GetForegroundWindow")
	procSetForegroundWindow    = user32.NewProc("SetForegroundWindow")
	procGetWindowThreadProcID  = user32.NewProc("GetWindowThreadProcessId")
	procEnumWindows            = user32.NewProc("EnumWindows")
	procIsWindowVisible        = user32.NewProc("IsWindowVisible")
	procSetThreadExecState     = kernel32.NewProc("SetThreadExecutionState")
	procGetCurrentThreadID     = kernel32.NewProc("GetCurrentThreadId")
	procGetConsoleWindow       = kernel32.NewProc("GetConsoleWindow")
	procQueryFullProcessImage  = kernel32.NewProc("QueryFullProcessImageNameW")
)

const (
	esContinuous      = 0x80000000
	esSystemRequired  = 0x00000001
	esDisplayRequired = 0x00000002

	wmHotkey = 0x0312
	wmQuit   = 0x0012

	modAlt     = 0x0001
	modControl = 0x0002
	modShift   = 0x0004
	modWin     = 0x0008
)

// Registry keys flipped while feature restrictions are applied. Each entry
// is reverted by deleting the value again on exit.
var featurePolicies = [][3]string{
	{`HKCU\Software\Microsoft\Windows\CurrentVersion\Policies\System`, "DisableTaskMgr", "1"},
	{`HKCU\Software\Microsoft\Windows\CurrentVersion\Policies\System`, "DisableLockWorkstation", "1"},
	{`HKCU\Software\Microsoft\Windows\CurrentVersion\Policies\Explorer`, "NoLogoff", "1"},
}

// WindowsAdapter implements PlatformAdapter on Windows. Surfaces are a
// browser launched in kiosk mode; the hotkey grab runs a dedicated message
// loop on a locked OS thread.
type WindowsAdapter struct {
	// BrowserPath points at the browser used for the pinned surface;
	// empty means msedge from PATH.
	BrowserPath string
	// ControlURL is served by the agent's local TUI; the control surface
	// on Windows is the TUI terminal itself, so this stays informational.
	ControlURL string

	mu        sync.Mutex
	browser   *exec.Cmd
	hotkeyTID uint32
	hotkeyWG  sync.WaitGroup
}

func NewWindowsAdapter() *WindowsAdapter { return &WindowsAdapter{} }

// NewPlatformAdapter returns the adapter for the build's target OS.
func NewPlatformAdapter(browserPath string) PlatformAdapter {
	return &WindowsAdapter{BrowserPath: browserPath}
}

func (a *WindowsAdapter) SuppressSleep() error {
	r, _, err := procSetThreadExecState.Call(uintptr(esContinuous | esSystemRequired | esDisplayRequired))
	if r == 0 {
		return fmt.Errorf("SetThreadExecutionState: %w", err)
	}
	return nil
}

func (a *WindowsAdapter) ReleaseSleep() error {
	r, _, err := procSetThreadExecState.Call(uintptr(esContinuous))
	if r == 0 {
		return fmt.Errorf("SetThreadExecutionState: %w", err)
	}
	return nil
}

// hotkeySpec is a parsed "ctrl+shift+esc" style combination.
type hotkeySpec struct {
	combo string
	kind  string
	mods  uintptr
	vk    uintptr
}

func (a *WindowsAdapter) InstallInputInterception(shortcuts, keys []string, onBlocked func(kind, combo string)) error {
	specs := make([]hotkeySpec, 0, len(shortcuts)+len(keys))
	for _, s := range shortcuts {
		spec, err := parseHotkey(s)
		if err != nil {
			continue
		}
		spec.kind = InterceptShortcut
		specs = append(specs, spec)
	}
	for _, k := range keys {
		spec, err := parseHotkey(k)
		if err != nil {
			continue
		}
		spec.kind = InterceptKey
		specs = append(specs, spec)
	}
	if len(specs) == 0 {
		return errors.New("no valid hotkeys to register")
	}

	ready := make(chan uint32, 1)
	a.hotkeyWG.Add(1)
	go a.hotkeyLoop(specs, onBlocked, ready)

	tid := <-ready
	if tid == 0 {
		a.hotkeyWG.Wait()
		return errors.New("hotkey registration failed")
	}
	a.mu.Lock()
	a.hotkeyTID = tid
	a.mu.Unlock()
	return nil
}

// hotkeyLoop registers the hotkeys and pumps messages until WM_QUIT.
// RegisterHotKey binds to the calling thread, so the loop owns one locked
// OS thread for its whole life.
func (a *WindowsAdapter) hotkeyLoop(specs []hotkeySpec, onBlocked func(kind, combo string), ready chan<- uint32) {
	defer a.hotkeyWG.Done()
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	registered := make(map[int]hotkeySpec)
	for i, spec := range specs {
		r, _, _ := procRegisterHotKey.Call(0, uintptr(i+1), spec.mods, spec.vk)
		if r != 0 {
			registered[i+1] = spec
		}
	}
	if len(registered) == 0 {
		ready <- 0
		return
	}
	tid, _, _ := procGetCurrentThreadID.Call()
	ready <- uint32(tid)

	var msg struct {
		HWND    uintptr
		Message uint32
		WParam  uintptr
		LParam  uintptr
		Time    uint32
		Pt      [2]int32
	}
	for {
		r, _, _ := procGetMessage.Call(uintptr(unsafe.Pointer(&msg)), 0, 0, 0)
		if int32(r) <= 0 {
			break
		}
		if msg.Message == wmHotkey {
			if spec, ok := registered[int(msg.WParam)]; ok {
				onBlocked(spec.kind, spec.combo)
			}
		}
	}
	for id := range registered {
		procUnregisterHotKey.Call(0, uintptr(id))
	}
}

func (a *WindowsAdapter) UninstallInputInterception() error {
	a.mu.Lock()
	tid := a.hotkeyTID
	a.hotkeyTID = 0
	a.mu.Unlock()
	if tid == 0 {
		return nil
	}
	procPostThreadMessage.Call(uintptr(tid), wmQuit, 0, 0)
	a.hotkeyWG.Wait()
	return nil
}

func (a *WindowsAdapter) ApplyFeatureRestrictions() error {
	var firstErr error
	for _, p := range featurePolicies {
		cmd := exec.Command("reg", "add", p[0], "/v", p[1], "/t", "REG_DWORD", "/d", p[2], "/f")
		if err := cmd.Run(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("reg add %s\\%s: %w", p[0], p[1], err)
		}
	}
	return firstErr
}

func (a *WindowsAdapter) RevertFeatureRestrictions() error {
	var firstErr error
	for _, p := range featurePolicies {
		cmd := exec.Command("reg", "delete", p[0], "/v", p[1], "/f")
		if err := cmd.Run(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("reg delete %s\\%s: %w", p[0], p[1], err)
		}
	}
	return firstErr
}

func (a *WindowsAdapter) browserExe() string {
	if a.BrowserPath != "" {
		return a.BrowserPath
	}
	return "msedge"
}

func (a *WindowsAdapter) CreatePinnedSurface(url string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.browser != nil {
		return nil
	}
	cmd := exec.Command(a.browserExe(), "--kiosk", url, "--edge-kiosk-type=fullscreen", "--no-first-run")
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("launch kiosk browser: %w", err)
	}
	a.browser = cmd
	return nil
}

func (a *WindowsAdapter) CreateControlSurface() error {
	// The agent's terminal TUI is the control surface on Windows; nothing
	// extra to launch.
	return nil
}

func (a *WindowsAdapter) CloseSurfaces() error {
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

func (a *WindowsAdapter) FocusPrimary() error {
	hwnd, err := a.browserWindow()
	if err != nil {
		return err
	}
	r, _, callErr := procSetForegroundWindow.Call(hwnd)
	if r == 0 {
		return fmt.Errorf("SetForegroundWindow: %w", callErr)
	}
	return nil
}

// SurfaceFocused treats both owned surfaces as in focus: the kiosk browser
// and the terminal hosting the agent's own control TUI.
func (a *WindowsAdapter) SurfaceFocused(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	hwnd, _, _ := procGetForegroundWindow.Call()
	if hwnd == 0 {
		return false, nil
	}
	if console, _, _ := procGetConsoleWindow.Call(); console != 0 && console == hwnd {
		return true, nil
	}
	var pid uint32
	procGetWindowThreadProcID.Call(hwnd, uintptr(unsafe.Pointer(&pid)))
	if pid == 0 {
		return false, nil
	}
	if int(pid) == os.Getpid() {
		return true, nil
	}
	name, err := processImage(pid)
	if err != nil {
		return false, err
	}
	return name == a.browserImage(), nil
}

// browserImage is the lowercased executable name of the pinned surface.
func (a *WindowsAdapter) browserImage() string {
	name := strings.ToLower(filepath.Base(a.browserExe()))
	if !strings.HasSuffix(name, ".exe") {
		name += ".exe"
	}
	return name
}

// enumWindowsCallback collects every visible top-level window into the slice
// passed through lparam. Created once; NewCallback allocations are permanent.
var enumWindowsCallback = windows.NewCallback(func(hwnd, lparam uintptr) uintptr {
	if visible, _, _ := procIsWindowVisible.Call(hwnd); visible == 0 {
		return 1
	}
	var pid uint32
	procGetWindowThreadProcID.Call(hwnd, uintptr(unsafe.Pointer(&pid)))
	if pid == 0 {
		return 1
	}
	image, err := processImage(pid)
	if err != nil {
		return 1
	}
	out := (*[]topWindow)(unsafe.Pointer(lparam))
	*out = append(*out, topWindow{handle: hwnd, pid: int(pid), image: image})
	return 1
})

func enumTopWindows() []topWindow {
	var wins []topWindow
	procEnumWindows.Call(enumWindowsCallback, uintptr(unsafe.Pointer(&wins)))
	return wins
}

// browserWindow locates the top-level window belonging to the kiosk browser,
// never whatever happens to hold the foreground.
func (a *WindowsAdapter) browserWindow() (uintptr, error) {
	a.mu.Lock()
	cmd := a.browser
	a.mu.Unlock()
	if cmd == nil || cmd.Process == nil {
		return 0, errors.New("no pinned surface")
	}
	hwnd, ok := pickOwnedWindow(enumTopWindows(), a.browserImage(), cmd.Process.Pid)
	if !ok {
		return 0, errors.New("pinned surface window not found")
	}
	return hwnd, nil
}

func (a *WindowsAdapter) EnumerateProcesses(ctx context.Context) ([]ProcessInfo, error) {
	out, err := exec.CommandContext(ctx, "tasklist", "/FO", "CSV", "/NH").Output()
	if err != nil {
		return nil, fmt.Errorf("tasklist: %w", err)
	}
	records, err := csv.NewReader(strings.NewReader(string(out))).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse tasklist output: %w", err)
	}
	procs := make([]ProcessInfo, 0, len(records))
	for _, rec := range records {
		if len(rec) < 2 {
			continue
		}
		pid, err := strconv.Atoi(rec[1])
		if err != nil {
			continue
		}
		procs = append(procs, ProcessInfo{PID: pid, Name: strings.ToLower(rec[0])})
	}
	return procs, nil
}

func (a *WindowsAdapter) TerminateProcess(ctx context.Context, name string) error {
	if err := exec.CommandContext(ctx, "taskkill", "/F", "/IM", name).Run(); err != nil {
		return fmt.Errorf("taskkill %s: %w", name, err)
	}
	return nil
}

func (a *WindowsAdapter) ForegroundProcess(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	hwnd, _, _ := procGetForegroundWindow.Call()
	if hwnd == 0 {
		return "", nil
	}
	var pid uint32
	procGetWindowThreadProcID.Call(hwnd, uintptr(unsafe.Pointer(&pid)))
	if pid == 0 {
		return "", nil
	}
	return processImage(pid)
}

// processImage resolves a PID to its lowercased executable base name.
func processImage(pid uint32) (string, error) {
	h, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, pid)
	if err != nil {
		return "", fmt.Errorf("OpenProcess %d: %w", pid, err)
	}
	defer windows.CloseHandle(h)

	var buf [windows.MAX_PATH]uint16
	size := uint32(len(buf))
	r, _, callErr := procQueryFullProcessImage.Call(uintptr(h), 0, uintptr(unsafe.Pointer(&buf[0])), uintptr(unsafe.Pointer(&size)))
	if r == 0 {
		return "", fmt.Errorf("QueryFullProcessImageName: %w", callErr)
	}
	full := windows.UTF16ToString(buf[:size])
	return strings.ToLower(filepath.Base(full)), nil
}

func (a *WindowsAdapter) MachineInfo(ctx context.Context) (string, error) {
	out, err := exec.CommandContext(ctx, "wmic", "computersystem", "get", "manufacturer,model").Output()
	if err != nil {
		return "", fmt.Errorf("wmic: %w", err)
	}
	return string(out), nil
}

// parseHotkey turns "ctrl+shift+esc" into RegisterHotKey modifiers and a
// virtual-key code.
func parseHotkey(combo string) (hotkeySpec, error) {
	spec := hotkeySpec{combo: combo}
	parts := strings.Split(strings.ToLower(combo), "+")
	for _, p := range parts {
		switch strings.TrimSpace(p) {
		case "ctrl", "control":
			spec.mods |= modControl
		case "alt":
			spec.mods |= modAlt
		case "shift":
			spec.mods |= modShift
		case "win", "meta", "super", "cmd":
			spec.mods |= modWin
		default:
			vk, ok := virtualKey(strings.TrimSpace(p))
			if !ok {
				return spec, fmt.Errorf("unknown key %q in %q", p, combo)
			}
			spec.vk = vk
		}
	}
	if spec.vk == 0 {
		return spec, fmt.Errorf("no key in %q", combo)
	}
	return spec, nil
}

func virtualKey(key string) (uintptr, bool) {
	switch key {
	case "esc", "escape":
		return 0x1B, true
	case "tab":
		return 0x09, true
	case "delete", "del":
		return 0x2E, true
	case "printscreen", "prtsc":
		return 0x2C, true
	case "space":
		return 0x20, true
	case "f1", "f2", "f3", "f4", "f5", "f6", "f7", "f8", "f9", "f10", "f11", "f12":
		n, err := strconv.Atoi(key[1:])
		if err != nil {
			return 0, false
		}
		return uintptr(0x70 + n - 1), true
	}
	if len(key) == 1 {
		ch := key[0]
		if ch >= 'a' && ch <= 'z' {
			return uintptr(ch - 'a' + 'A'), true
		}
		if ch >= '0' && ch <= '9' {
			return uintptr(ch), true
		}
	}
	return 0, false
}
