package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/zaqqye/examguard/internal/agent"
)

var (
	frameStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(1, 2)
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	warnStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	lockStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("208"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	footerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	historyStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
)

// maxHistory bounds the on-screen violation ticker.
const maxHistory = 6

type mode int

const (
	modeExam mode = iota
	modeConfirmSubmit
	modePassword
	modeEnded
)

type tickMsg time.Time
type agentEventMsg agent.Event

// overrideResultMsg reports whether the proctor password was accepted.
type overrideResultMsg bool

// Model is the always-on-top control surface shown beside the pinned exam
// window: a clock, the violation ticker, the penalty lock countdown, and the
// submit/override controls. There is deliberately no quit key; leaving goes
// through submit or the proctor override.
type Model struct {
	agent       *agent.Agent
	studentName string

	mode      mode
	password  string
	badPass   bool
	endReason string

	now        time.Time
	violations []agent.Event
	count      int
}

func NewModel(a *agent.Agent, studentName string) *Model {
	return &Model{
		agent:       a,
		studentName: studentName,
		now:         time.Now(),
	}
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.tick(), m.waitEvent())
}

func (m *Model) tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m *Model) waitEvent() tea.Cmd {
	return func() tea.Msg {
		evt, ok := <-m.agent.Events()
		if !ok {
			return nil
		}
		return agentEventMsg(evt)
	}
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		m.now = time.Time(msg)
		return m, m.tick()

	case agentEventMsg:
		switch msg.Kind {
		case agent.EventViolation:
			m.count++
			m.violations = append(m.violations, agent.Event(msg))
			if len(m.violations) > maxHistory {
				m.violations = m.violations[len(m.violations)-maxHistory:]
			}
		case agent.EventEnded:
			m.mode = modeEnded
			m.endReason = msg.Reason
			return m, tea.Quit
		}
		return m, m.waitEvent()

	case overrideResultMsg:
		if bool(msg) {
			m.mode = modeExam
		} else {
			m.badPass = true
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.mode {
	case modeConfirmSubmit:
		switch msg.String() {
		case "y", "enter":
			m.mode = modeExam
			// Ending runs teardown plus a network report; keep it off
			// the update loop so the screen stays live.
			return m, func() tea.Msg {
				m.agent.Submit()
				return nil
			}
		case "n", "esc":
			m.mode = modeExam
		}
		return m, nil

	case modePassword:
		switch msg.String() {
		case "enter":
			password := m.password
			m.password = ""
			return m, func() tea.Msg {
				return overrideResultMsg(m.agent.Override(password))
			}
		case "esc":
			m.mode = modeExam
			m.password = ""
			m.badPass = false
		case "backspace":
			if len(m.password) > 0 {
				m.password = m.password[:len(m.password)-1]
			}
		default:
			if msg.Type == tea.KeyRunes {
				m.password += string(msg.Runes)
			}
		}
		return m, nil

	case modeExam:
		switch msg.String() {
		case "s":
			m.mode = modeConfirmSubmit
		case "o":
			m.mode = modePassword
			m.badPass = false
		}
	}
	return m, nil
}

func (m *Model) View() string {
	var b strings.Builder

	session := m.agent.Session()
	name := "exam"
	if session != nil {
		name = session.Name
	}
	b.WriteString(titleStyle.Render(name) + "\n")
	b.WriteString(labelStyle.Render("Student: ") + m.studentName + "\n")

	if session != nil && session.EndTime != nil {
		remaining := session.EndTime.Sub(m.now).Round(time.Second)
		if remaining < 0 {
			remaining = 0
		}
		b.WriteString(labelStyle.Render("Time remaining: ") + formatDuration(remaining) + "\n")
	}

	if locked, until := m.agent.Controller().Escalator().Locked(m.now); locked {
		b.WriteString("\n" + lockStyle.Render(fmt.Sprintf(
			"ACCESS LOCKED for %s (penalty level %d)",
			formatDuration(until.Sub(m.now).Round(time.Second)),
			m.agent.Controller().Escalator().Level(),
		)) + "\n")
	}

	b.WriteString("\n" + labelStyle.Render(fmt.Sprintf("Violations: %d", m.count)) + "\n")
	for _, evt := range m.violations {
		b.WriteString(historyStyle.Render("  • "+evt.Signal.Description) + "\n")
	}

	switch m.mode {
	case modeConfirmSubmit:
		b.WriteString("\n" + warnStyle.Render("Submit and end the exam? [y/n]") + "\n")
	case modePassword:
		prompt := "Proctor password: " + strings.Repeat("*", len(m.password))
		if m.badPass {
			prompt += "  " + warnStyle.Render("incorrect")
		}
		b.WriteString("\n" + prompt + "\n")
	case modeEnded:
		b.WriteString("\n" + okStyle.Render("Exam ended ("+m.endReason+"). Restrictions removed.") + "\n")
	default:
		b.WriteString("\n" + footerStyle.Render("[s] submit exam   [o] proctor override") + "\n")
	}

	return frameStyle.Render(b.String())
}

func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	h := int(d.Hours())
	mnt := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, mnt, s)
	}
	return fmt.Sprintf("%02d:%02d", mnt, s)
}
