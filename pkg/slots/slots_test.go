package slots

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPreference_Filtering(t *testing.T) {
	assert.False(t, Preference{}.Filtering())
	assert.False(t, Preference{StartDate: "2025-03-01"}.Filtering())
	assert.False(t, Preference{EndDate: "2025-03-31"}.Filtering())
	assert.True(t, Preference{StartDate: "2025-03-01", EndDate: "2025-03-31"}.Filtering())
}

func TestPreference_Validate(t *testing.T) {
	assert.NoError(t, Preference{}.Validate())
	assert.NoError(t, Preference{StartDate: "2025-03-01", EndDate: "2025-03-31"}.Validate())
	assert.Error(t, Preference{StartDate: "03/01/2025"}.Validate())
	assert.Error(t, Preference{EndDate: "2025-13-40"}.Validate())
	assert.Error(t, Preference{StartDate: "soon"}.Validate())
}

func TestFilter_InclusiveBoundaries(t *testing.T) {
	pref := Preference{StartDate: "2025-03-10", EndDate: "2025-03-20"}

	tests := []struct {
		name    string
		date    string
		matches bool
	}{
		{"before range", "2025-03-09", false},
		{"start boundary", "2025-03-10", true},
		{"inside range", "2025-03-15", true},
		{"end boundary", "2025-03-20", true},
		{"after range", "2025-03-21", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Filter([]Day{{Date: tt.date}}, pref)
			if tt.matches {
				assert.Len(t, got, 1)
			} else {
				assert.Empty(t, got)
			}
		})
	}
}

func TestFilter_NoPreferencePassesThrough(t *testing.T) {
	days := []Day{{Date: "2031-01-01"}, {Date: "1999-12-31"}}
	assert.Equal(t, days, Filter(days, Preference{}))
}

func TestFilter_UnparseableDaysExcluded(t *testing.T) {
	pref := Preference{StartDate: "2025-03-01", EndDate: "2025-03-31"}
	days := []Day{{Date: "not-a-date"}, {Date: "2025-03-15"}}

	got := Filter(days, pref)
	assert.Equal(t, []Day{{Date: "2025-03-15"}}, got)
}

func TestDecide_ScenarioA_DateInRange(t *testing.T) {
	body := []byte(`{"ScheduleDays":[{"Date":"2025-03-10"}]}`)
	pref := Preference{StartDate: "2025-03-01", EndDate: "2025-03-31"}

	assert.True(t, Decide(body, pref))
}

func TestDecide_ScenarioB_DateOutOfRange(t *testing.T) {
	body := []byte(`{"ScheduleDays":[{"Date":"2025-03-10"}]}`)
	pref := Preference{StartDate: "2025-04-01", EndDate: "2025-04-30"}

	assert.False(t, Decide(body, pref))
}

func TestDecide_ScenarioC_EmptyListNoPreference(t *testing.T) {
	body := []byte(`{"ScheduleDays":[]}`)

	assert.False(t, Decide(body, Preference{}))
}

func TestDecide_AnySlotCountsWithoutPreference(t *testing.T) {
	body := []byte(`{"ScheduleDays":[{"Date":"2030-06-01"}]}`)

	assert.True(t, Decide(body, Preference{}))
}

func TestDecide_MalformedBodiesAreNeverAvailability(t *testing.T) {
	pref := Preference{StartDate: "2025-03-01", EndDate: "2025-03-31"}

	for _, body := range []string{
		``,
		`not json`,
		`{"ScheduleDays": "nope"}`,
		`{"ScheduleDays": null}`,
		`{}`,
	} {
		assert.False(t, Decide([]byte(body), pref), "body %q", body)
		assert.False(t, Decide([]byte(body), Preference{}), "body %q without preference", body)
	}
}

func TestParseBody(t *testing.T) {
	days, err := ParseBody([]byte(`{"ScheduleDays":[{"Date":"2025-03-10"},{"Date":"2025-03-11"}]}`))
	assert.NoError(t, err)
	assert.Len(t, days, 2)

	_, err = ParseBody([]byte(`{`))
	assert.Error(t, err)
}
