package tui

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zaqqye/examguard/internal/agent"
	"github.com/zaqqye/examguard/internal/lockdown"
)

func newTestModel() *Model {
	a := agent.New(agent.DefaultConfig(), lockdown.NewPlatformAdapter(""))
	return NewModel(a, "Ada Lovelace")
}

func keyMsg(s string) tea.KeyMsg {
	if s == "enter" {
		return tea.KeyMsg{Type: tea.KeyEnter}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestSubmitConfirmRunsAsCommand(t *testing.T) {
	m := newTestModel()

	_, cmd := m.handleKey(keyMsg("s"))
	assert.Nil(t, cmd)
	assert.Equal(t, modeConfirmSubmit, m.mode)

	// Confirming must hand the slow end sequence to the runtime instead of
	// executing it inline, so the screen keeps updating during teardown.
	_, cmd = m.handleKey(keyMsg("y"))
	require.NotNil(t, cmd)
	assert.Equal(t, modeExam, m.mode)
	assert.Nil(t, cmd())
}

func TestSubmitDeclineStaysInline(t *testing.T) {
	m := newTestModel()
	m.mode = modeConfirmSubmit

	_, cmd := m.handleKey(keyMsg("n"))
	assert.Nil(t, cmd)
	assert.Equal(t, modeExam, m.mode)
}

func TestOverrideRunsAsCommandAndReportsBadPassword(t *testing.T) {
	m := newTestModel()
	m.mode = modePassword
	m.password = "wrong"

	_, cmd := m.handleKey(keyMsg("enter"))
	require.NotNil(t, cmd)
	assert.Empty(t, m.password)
	assert.Equal(t, modePassword, m.mode, "the prompt stays up while the check runs")

	result, ok := cmd().(overrideResultMsg)
	require.True(t, ok)
	assert.False(t, bool(result))

	m.Update(result)
	assert.True(t, m.badPass)
	assert.Equal(t, modePassword, m.mode)
}
