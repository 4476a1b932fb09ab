package agent

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.NotEmpty(t, cfg.Lockdown.Shortcuts)
	assert.Contains(t, cfg.Lockdown.Shortcuts, "alt+tab")
	assert.NotEmpty(t, cfg.Monitor.Blacklist)
	assert.Contains(t, cfg.Monitor.VMProcesses, "vboxservice.exe")
	assert.Equal(t, 30, cfg.Timing.HeartbeatSeconds)
	assert.Equal(t, 15, cfg.Timing.StatusPollSeconds)
}

func TestDefaultConfigAllowsOwnConsoleHosts(t *testing.T) {
	cfg := DefaultConfig()

	// The control TUI lives in a terminal; its hosts must never be treated
	// as foreground escapes.
	for _, host := range []string{"windowsterminal.exe", "openconsole.exe", "conhost.exe"} {
		assert.Contains(t, cfg.Monitor.AllowedForeground, host)
		assert.NotContains(t, cfg.Monitor.Blacklist, host)
	}
	assert.Contains(t, cfg.MonitorSettings().AllowedForeground, "conhost.exe")
}

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Server.BaseURL, cfg.Server.BaseURL)
}

func TestLoadConfigOverlaysFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "examguard.toml")
	data := `
[server]
base_url = "https://exams.example.edu"

[lockdown]
admin_password = "secret"

[timing]
heartbeat_seconds = 10
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "https://exams.example.edu", cfg.Server.BaseURL)
	assert.Equal(t, "secret", cfg.Lockdown.AdminPassword)
	assert.Equal(t, 10, cfg.Timing.HeartbeatSeconds)
	// Unmentioned sections keep their defaults.
	assert.Contains(t, cfg.Lockdown.Shortcuts, "alt+tab")
	assert.Equal(t, 15, cfg.Timing.StatusPollSeconds)
}

func TestLoadConfigRejectsBadTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("[server\n"), 0o600))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestPenaltySchedule(t *testing.T) {
	cfg := DefaultConfig()
	schedule := cfg.PenaltySchedule()
	require.Len(t, schedule, 5)
	assert.Equal(t, 2*time.Minute, schedule[0])
	assert.Equal(t, 30*time.Minute, schedule[4])
}
