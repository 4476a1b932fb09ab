package lockdown

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zaqqye/examguard/internal/models"
)

func testMonitorConfig() MonitorConfig {
	return MonitorConfig{
		Blacklist:   []string{"discord.exe", "obs64.exe"},
		VMProcesses: []string{"vboxservice.exe"},
		VMMarkers:   []string{"virtualbox", "vmware"},
		FriendlyNames: map[string]string{
			"discord.exe": "Discord",
		},
		AllowedForeground: []string{"examguard.exe"},
	}
}

// newTestMonitor returns a monitor whose scans can be driven directly,
// without the tickers.
func newTestMonitor(adapter PlatformAdapter) (*Monitor, *[]Signal) {
	var signals []Signal
	m := NewMonitor(adapter, testMonitorConfig(), func(sig Signal) {
		signals = append(signals, sig)
	})
	m.running = true
	return m, &signals
}

func TestMonitorReportsBlacklistedProcessOnce(t *testing.T) {
	fake := newFakeAdapter()
	fake.setProcesses(
		ProcessInfo{PID: 100, Name: "Discord.exe"},
		ProcessInfo{PID: 200, Name: "notepad.exe"},
	)
	m, signals := newTestMonitor(fake)
	ctx := context.Background()

	m.scanProcesses(ctx)
	m.scanProcesses(ctx)

	require.Len(t, *signals, 1, "a surviving process is reported once, not per tick")
	sig := (*signals)[0]
	assert.Equal(t, models.ViolationBlacklistedProcess, sig.Type)
	assert.Equal(t, "discord.exe", sig.Details)
	// A kill was attempted on each sighting.
	assert.Equal(t, 2, fake.countCalls("TerminateProcess:discord.exe"))
}

func TestMonitorReportsEachBlacklistedProcess(t *testing.T) {
	fake := newFakeAdapter()
	fake.setProcesses(
		ProcessInfo{PID: 100, Name: "discord.exe"},
		ProcessInfo{PID: 101, Name: "obs64.exe"},
	)
	m, signals := newTestMonitor(fake)

	m.scanProcesses(context.Background())
	assert.Len(t, *signals, 2)
}

func TestMonitorVMProbeByProcess(t *testing.T) {
	fake := newFakeAdapter()
	fake.setProcesses(ProcessInfo{PID: 50, Name: "VBoxService.exe"})
	m, signals := newTestMonitor(fake)
	ctx := context.Background()

	m.probeVM(ctx)
	m.probeVM(ctx)

	require.Len(t, *signals, 1, "virtual_machine is reported at most once")
	assert.Equal(t, models.ViolationVirtualMachine, (*signals)[0].Type)
}

func TestMonitorVMProbeByMachineInfo(t *testing.T) {
	fake := newFakeAdapter()
	fake.machine = "innotek GmbH VirtualBox"
	m, signals := newTestMonitor(fake)

	m.probeVM(context.Background())
	require.Len(t, *signals, 1)
	assert.Equal(t, models.ViolationVirtualMachine, (*signals)[0].Type)
}

func TestMonitorVMProbePhysicalMachine(t *testing.T) {
	fake := newFakeAdapter()
	m, signals := newTestMonitor(fake)

	m.probeVM(context.Background())
	assert.Empty(t, *signals)
}

func TestMonitorForegroundEscapeReportedOncePerEscape(t *testing.T) {
	fake := newFakeAdapter()
	m, signals := newTestMonitor(fake)
	ctx := context.Background()

	fake.setForeground("chrome.exe", false)
	m.scanForeground(ctx)
	m.scanForeground(ctx)

	require.Len(t, *signals, 1, "the same app is not re-reported while focus stays lost")
	sig := (*signals)[0]
	assert.Equal(t, models.ViolationAppOpened, sig.Type)
	assert.Equal(t, "chrome.exe", sig.Details)
	// Focus is reasserted on every unfocused tick regardless.
	assert.Equal(t, 2, fake.countCalls("FocusPrimary"))

	// Once focus returns, the next escape to the same app is a new report.
	fake.setForeground("", true)
	m.scanForeground(ctx)
	fake.setForeground("chrome.exe", false)
	m.scanForeground(ctx)
	assert.Len(t, *signals, 2)
}

func TestMonitorForegroundFriendlyName(t *testing.T) {
	fake := newFakeAdapter()
	m, signals := newTestMonitor(fake)

	fake.setForeground("discord.exe", false)
	m.scanForeground(context.Background())

	require.Len(t, *signals, 1)
	assert.Equal(t, "Opened application: Discord", (*signals)[0].Description)
}

func TestMonitorForegroundAllowedApp(t *testing.T) {
	fake := newFakeAdapter()
	m, signals := newTestMonitor(fake)

	fake.setForeground("examguard.exe", false)
	m.scanForeground(context.Background())
	assert.Empty(t, *signals)
}

func TestMonitorStopResetsState(t *testing.T) {
	fake := newFakeAdapter()
	fake.setProcesses(ProcessInfo{PID: 100, Name: "discord.exe"})

	var signals []Signal
	m := NewMonitor(fake, testMonitorConfig(), func(sig Signal) {
		signals = append(signals, sig)
	})

	m.Start()
	assert.True(t, m.Running())
	m.Stop()
	assert.False(t, m.Running())

	// A fresh session re-reports what the previous one already saw.
	m.running = true
	before := len(signals)
	m.scanProcesses(context.Background())
	assert.Greater(t, len(signals), before)
}
