// Package ui holds the interactive first-run prompt. It runs exactly once,
// before the browser starts, so it never competes with the watcher for the
// terminal.
package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/entrhq/visawatch/pkg/slots"
)

const dateLayout = "2006-01-02"

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FA8072")).
			Bold(true).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#AAAAAA"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5555"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666")).
			Italic(true)
)

// promptModel is the two-field date-range form. Leaving both fields empty
// disables filtering: any available day will then count.
type promptModel struct {
	inputs    [2]textinput.Model
	focused   int
	errText   string
	done      bool
	cancelled bool
}

func newPromptModel() promptModel {
	var m promptModel
	for i := range m.inputs {
		in := textinput.New()
		in.Placeholder = "YYYY-MM-DD"
		in.CharLimit = 10
		in.Width = 14
		m.inputs[i] = in
	}
	m.inputs[0].Focus()
	return m
}

func (m promptModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m promptModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.cancelled = true
			return m, tea.Quit

		case tea.KeyEnter:
			if m.focused == 0 {
				return m.focusField(1), nil
			}
			if err := m.validate(); err != nil {
				m.errText = err.Error()
				return m, nil
			}
			m.done = true
			return m, tea.Quit

		case tea.KeyTab, tea.KeyDown:
			return m.focusField((m.focused + 1) % len(m.inputs)), nil

		case tea.KeyShiftTab, tea.KeyUp:
			return m.focusField((m.focused + len(m.inputs) - 1) % len(m.inputs)), nil
		}
	}

	var cmd tea.Cmd
	m.inputs[m.focused], cmd = m.inputs[m.focused].Update(msg)
	m.errText = ""
	return m, cmd
}

func (m promptModel) focusField(i int) promptModel {
	m.inputs[m.focused].Blur()
	m.focused = i
	m.inputs[m.focused].Focus()
	return m
}

// validate checks the current field values as a preference: each field is
// empty or a well-formed date, both are set or neither, and the range is
// ordered.
func (m promptModel) validate() error {
	pref := m.preference()
	if err := pref.Validate(); err != nil {
		return err
	}
	if (pref.StartDate == "") != (pref.EndDate == "") {
		return fmt.Errorf("set both dates, or leave both empty to match any slot")
	}
	if pref.Filtering() {
		start, _ := time.Parse(dateLayout, pref.StartDate)
		end, _ := time.Parse(dateLayout, pref.EndDate)
		if end.Before(start) {
			return fmt.Errorf("end date is before start date")
		}
	}
	return nil
}

func (m promptModel) preference() slots.Preference {
	return slots.Preference{
		StartDate: strings.TrimSpace(m.inputs[0].Value()),
		EndDate:   strings.TrimSpace(m.inputs[1].Value()),
	}
}

func (m promptModel) View() string {
	if m.done || m.cancelled {
		return ""
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("Appointment date range"))
	b.WriteString("\n\n")
	b.WriteString(labelStyle.Render("Earliest acceptable date: "))
	b.WriteString(m.inputs[0].View())
	b.WriteString("\n")
	b.WriteString(labelStyle.Render("Latest acceptable date:   "))
	b.WriteString(m.inputs[1].View())
	b.WriteString("\n\n")

	if m.errText != "" {
		b.WriteString(errorStyle.Render(m.errText))
		b.WriteString("\n\n")
	}

	b.WriteString(helpStyle.Render("enter: next/confirm · tab: switch field · leave empty to match any date · esc: skip"))
	b.WriteString("\n")
	return b.String()
}

// PromptDateRange runs the first-run form and returns the chosen
// preference. Cancelling (esc or ctrl+c) returns an empty preference and
// ok=false; the caller decides whether to proceed unfiltered.
func PromptDateRange() (slots.Preference, bool, error) {
	final, err := tea.NewProgram(newPromptModel()).Run()
	if err != nil {
		return slots.Preference{}, false, fmt.Errorf("date prompt failed: %w", err)
	}

	m, ok := final.(promptModel)
	if !ok || m.cancelled {
		return slots.Preference{}, false, nil
	}
	return m.preference(), true, nil
}
