package agent

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/zaqqye/examguard/internal/lockdown"
)

// Config is the agent-side configuration, loaded from a TOML file layered
// over built-in defaults.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Lockdown LockdownConfig `toml:"lockdown"`
	Monitor  MonitorConfig  `toml:"monitor"`
	Penalty  PenaltyConfig  `toml:"penalty"`
	Timing   TimingConfig   `toml:"timing"`
}

type ServerConfig struct {
	// BaseURL is the exam server root, e.g. "https://exams.example.edu".
	BaseURL string `toml:"base_url"`
}

type LockdownConfig struct {
	// Shortcuts are intercepted combinations; Keys are single blocked keys.
	Shortcuts []string `toml:"shortcuts"`
	Keys      []string `toml:"keys"`
	// AdminPassword unlocks the local proctor override. Empty disables it.
	AdminPassword string `toml:"admin_password"`
	// BrowserPath overrides the kiosk browser binary.
	BrowserPath string `toml:"browser_path"`
}

type MonitorConfig struct {
	Blacklist         []string          `toml:"blacklist"`
	VMProcesses       []string          `toml:"vm_processes"`
	VMMarkers         []string          `toml:"vm_markers"`
	AllowedForeground []string          `toml:"allowed_foreground"`
	FriendlyNames     map[string]string `toml:"friendly_names"`
}

type PenaltyConfig struct {
	// ScheduleSeconds maps penalty level to lock duration.
	ScheduleSeconds []int `toml:"schedule_seconds"`
}

type TimingConfig struct {
	HeartbeatSeconds  int `toml:"heartbeat_seconds"`
	StatusPollSeconds int `toml:"status_poll_seconds"`
}

// DefaultConfig returns the built-in policy. The lists mirror the deployed
// proctoring policy: common capture, remote-access and chat tools plus the
// usual hypervisor guest agents.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			BaseURL: "http://localhost:8080",
		},
		Lockdown: LockdownConfig{
			Shortcuts: []string{
				"alt+tab", "alt+f4", "ctrl+shift+esc", "ctrl+esc",
				"win+d", "win+r", "win+tab", "win+e", "win+l",
				"ctrl+w", "ctrl+t", "ctrl+n", "ctrl+shift+n",
				"alt+esc", "ctrl+alt+tab", "f11",
			},
			Keys: []string{"printscreen", "f12"},
		},
		Monitor: MonitorConfig{
			Blacklist: []string{
				"obs64.exe", "obs32.exe", "bandicam.exe", "camtasia.exe",
				"sharex.exe", "snippingtool.exe", "screenclippinghost.exe",
				"teamviewer.exe", "anydesk.exe", "mstsc.exe",
				"discord.exe", "telegram.exe", "whatsapp.exe",
				"slack.exe", "zoom.exe", "skype.exe", "teams.exe",
			},
			VMProcesses: []string{
				"vboxservice.exe", "vboxtray.exe", "vmtoolsd.exe",
				"vmwaretray.exe", "vmwareuser.exe", "prl_tools.exe",
				"xenservice.exe", "qemu-ga.exe",
			},
			VMMarkers: []string{
				"virtualbox", "vmware", "qemu", "kvm", "parallels",
				"xen", "virtual machine", "hyper-v",
			},
			// Console hosts carry the agent's own control surface; focusing
			// them is not an escape.
			AllowedForeground: []string{
				"windowsterminal.exe", "openconsole.exe", "conhost.exe",
			},
			FriendlyNames: map[string]string{
				"obs64.exe":      "OBS Studio",
				"obs32.exe":      "OBS Studio",
				"discord.exe":    "Discord",
				"telegram.exe":   "Telegram",
				"whatsapp.exe":   "WhatsApp",
				"slack.exe":      "Slack",
				"zoom.exe":       "Zoom",
				"skype.exe":      "Skype",
				"teams.exe":      "Microsoft Teams",
				"teamviewer.exe": "TeamViewer",
				"anydesk.exe":    "AnyDesk",
				"mstsc.exe":      "Remote Desktop",
				"chrome.exe":     "Google Chrome",
				"firefox.exe":    "Firefox",
				"explorer.exe":   "Windows Explorer",
			},
		},
		Penalty: PenaltyConfig{
			ScheduleSeconds: []int{120, 300, 600, 900, 1800},
		},
		Timing: TimingConfig{
			HeartbeatSeconds:  30,
			StatusPollSeconds: 15,
		},
	}
}

// LoadConfig reads path over the defaults. A missing file is not an error;
// the defaults apply unchanged.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// PenaltySchedule converts the configured seconds into durations.
func (c Config) PenaltySchedule() []time.Duration {
	out := make([]time.Duration, 0, len(c.Penalty.ScheduleSeconds))
	for _, s := range c.Penalty.ScheduleSeconds {
		out = append(out, time.Duration(s)*time.Second)
	}
	return out
}

// MonitorSettings builds the lockdown monitor configuration.
func (c Config) MonitorSettings() lockdown.MonitorConfig {
	return lockdown.MonitorConfig{
		Blacklist:         c.Monitor.Blacklist,
		VMProcesses:       c.Monitor.VMProcesses,
		VMMarkers:         c.Monitor.VMMarkers,
		FriendlyNames:     c.Monitor.FriendlyNames,
		AllowedForeground: c.Monitor.AllowedForeground,
	}
}
