package ui

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func typeString(m promptModel, s string) promptModel {
	for _, r := range s {
		next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
		m = next.(promptModel)
	}
	return m
}

func press(m promptModel, key tea.KeyType) promptModel {
	next, _ := m.Update(tea.KeyMsg{Type: key})
	return next.(promptModel)
}

func TestPrompt_AcceptsValidRange(t *testing.T) {
	m := newPromptModel()

	m = typeString(m, "2026-01-15")
	m = press(m, tea.KeyEnter) // move to end date
	m = typeString(m, "2026-03-31")
	m = press(m, tea.KeyEnter) // confirm

	require.True(t, m.done)
	pref := m.preference()
	assert.Equal(t, "2026-01-15", pref.StartDate)
	assert.Equal(t, "2026-03-31", pref.EndDate)
	assert.True(t, pref.Filtering())
}

func TestPrompt_EmptyMeansNoFiltering(t *testing.T) {
	m := newPromptModel()

	m = press(m, tea.KeyEnter)
	m = press(m, tea.KeyEnter)

	require.True(t, m.done)
	assert.False(t, m.preference().Filtering())
}

func TestPrompt_RejectsMalformedDate(t *testing.T) {
	m := newPromptModel()

	m = typeString(m, "15/01/2026")
	m = press(m, tea.KeyEnter)
	m = press(m, tea.KeyEnter)

	assert.False(t, m.done)
	assert.NotEmpty(t, m.errText)
}

func TestPrompt_RejectsReversedRange(t *testing.T) {
	m := newPromptModel()

	m = typeString(m, "2026-03-31")
	m = press(m, tea.KeyEnter)
	m = typeString(m, "2026-01-15")
	m = press(m, tea.KeyEnter)

	assert.False(t, m.done)
	assert.Contains(t, m.errText, "before start date")
}

func TestPrompt_RejectsHalfOpenRange(t *testing.T) {
	m := newPromptModel()

	m = typeString(m, "2026-01-15")
	m = press(m, tea.KeyEnter)
	m = press(m, tea.KeyEnter) // end date left empty

	assert.False(t, m.done)
	assert.Contains(t, m.errText, "both")
}

func TestPrompt_EscapeCancels(t *testing.T) {
	m := newPromptModel()

	m = typeString(m, "2026-01-15")
	m = press(m, tea.KeyEsc)

	assert.True(t, m.cancelled)
	assert.False(t, m.done)
}
