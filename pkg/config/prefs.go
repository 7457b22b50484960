package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/entrhq/visawatch/pkg/slots"
)

// PrefStore persists the user's slot date-range preference. The presence
// of the file records the user's previous choice; empty strings mean "no
// filtering". An absent file signals that the user must be asked.
type PrefStore struct {
	path string
}

// NewPrefStore creates a preference store backed by the given path.
func NewPrefStore(path string) *PrefStore {
	return &PrefStore{path: path}
}

// Path returns the file path of the store.
func (s *PrefStore) Path() string {
	return s.path
}

// Load reads the stored preference. ok is false when the file does not
// exist yet, meaning the user has never been prompted.
func (s *PrefStore) Load() (pref slots.Preference, ok bool, err error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return slots.Preference{}, false, nil
		}
		return slots.Preference{}, false, fmt.Errorf("failed to read preference store: %w", err)
	}

	if err := json.Unmarshal(data, &pref); err != nil {
		return slots.Preference{}, false, fmt.Errorf("failed to parse preference store: %w", err)
	}
	return pref, true, nil
}

// Save writes the preference atomically (temp file + rename) so a crash
// mid-write never leaves a truncated store behind.
func (s *PrefStore) Save(pref slots.Preference) error {
	if err := pref.Validate(); err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create preference directory: %w", err)
	}

	data, err := json.MarshalIndent(pref, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode preference: %w", err)
	}

	tempPath := s.path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temp preference file: %w", err)
	}

	if err := os.Rename(tempPath, s.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename temp preference file: %w", err)
	}
	return nil
}
