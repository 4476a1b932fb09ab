package lockdown

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPickOwnedWindowPrefersExactPID(t *testing.T) {
	wins := []topWindow{
		{handle: 1, pid: 10, image: "explorer.exe"},
		{handle: 2, pid: 20, image: "msedge.exe"},
		{handle: 3, pid: 30, image: "msedge.exe"},
	}

	h, ok := pickOwnedWindow(wins, "msedge.exe", 30)
	assert.True(t, ok)
	assert.Equal(t, uintptr(3), h)
}

func TestPickOwnedWindowFallsBackToImageName(t *testing.T) {
	wins := []topWindow{
		{handle: 1, pid: 10, image: "explorer.exe"},
		{handle: 2, pid: 20, image: "msedge.exe"},
		{handle: 3, pid: 30, image: "msedge.exe"},
	}

	// The launched PID spawned children; the window belongs to one of them.
	h, ok := pickOwnedWindow(wins, "msedge.exe", 99)
	assert.True(t, ok)
	assert.Equal(t, uintptr(2), h)
}

func TestPickOwnedWindowNeverMatchesForeignWindows(t *testing.T) {
	wins := []topWindow{
		{handle: 1, pid: 10, image: "explorer.exe"},
		{handle: 2, pid: 20, image: "discord.exe"},
	}

	// A foreground window owned by another process must not be selected,
	// even when it is the only thing on screen.
	_, ok := pickOwnedWindow(wins, "msedge.exe", 99)
	assert.False(t, ok)

	_, ok = pickOwnedWindow(nil, "msedge.exe", 99)
	assert.False(t, ok)
}
