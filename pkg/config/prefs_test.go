package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/visawatch/pkg/slots"
)

func TestPrefStore_LoadAbsent(t *testing.T) {
	store := NewPrefStore(filepath.Join(t.TempDir(), "slot_prefs.json"))

	_, ok, err := store.Load()
	require.NoError(t, err)
	assert.False(t, ok, "absent file means the user has never been asked")
}

func TestPrefStore_SaveAndLoad(t *testing.T) {
	store := NewPrefStore(filepath.Join(t.TempDir(), "slot_prefs.json"))

	want := slots.Preference{StartDate: "2025-03-01", EndDate: "2025-03-31"}
	require.NoError(t, store.Save(want))

	got, ok, err := store.Load()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, want, got)
}

func TestPrefStore_EmptyPreferenceRoundTrips(t *testing.T) {
	store := NewPrefStore(filepath.Join(t.TempDir(), "slot_prefs.json"))

	require.NoError(t, store.Save(slots.Preference{}))

	got, ok, err := store.Load()
	require.NoError(t, err)
	assert.True(t, ok, "an empty preference still records the user's choice")
	assert.False(t, got.Filtering())
}

func TestPrefStore_SaveRejectsInvalidDates(t *testing.T) {
	store := NewPrefStore(filepath.Join(t.TempDir(), "slot_prefs.json"))

	err := store.Save(slots.Preference{StartDate: "tomorrow", EndDate: "2025-03-31"})
	assert.Error(t, err)

	_, ok, loadErr := store.Load()
	require.NoError(t, loadErr)
	assert.False(t, ok, "a rejected save must not create the store file")
}

func TestPrefStore_SaveCreatesDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "slot_prefs.json")
	store := NewPrefStore(path)

	require.NoError(t, store.Save(slots.Preference{StartDate: "2025-06-01", EndDate: "2025-06-30"}))

	_, err := os.Stat(path)
	assert.NoError(t, err)
}

func TestPrefStore_LoadMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "slot_prefs.json")
	require.NoError(t, os.WriteFile(path, []byte("{oops"), 0600))

	_, _, err := NewPrefStore(path).Load()
	assert.Error(t, err)
}
