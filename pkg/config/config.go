// Package config loads the three external stores the watcher depends on:
// the YAML run configuration, the JSON credential store, and the JSON slot
// preference store.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Retry budgets shared by the CAPTCHA extractor and solver.
const (
	// MaxRetries bounds CAPTCHA extraction polls and solve attempts.
	MaxRetries = 5
	// RetryDelay is the base delay between bounded retries.
	RetryDelay = 2 * time.Second
)

// Config is the run configuration for the watcher. Every field has a
// working default for the production portal; a YAML file can override any
// of them.
type Config struct {
	// SchedulingURL is the canonical appointment page. The watcher
	// force-navigates here after login and the hook reloads it.
	SchedulingURL string `yaml:"scheduling_url"`

	// SchedulingDomain marks a URL as belonging to the scheduling site.
	SchedulingDomain string `yaml:"scheduling_domain"`

	// IdentityDomain marks a URL as belonging to the identity provider
	// that hosts the login challenge.
	IdentityDomain string `yaml:"identity_domain"`

	// TargetEndpoint is the URL substring of the appointment-days query
	// the interception hook watches for.
	TargetEndpoint string `yaml:"target_endpoint"`

	// WaitingRoomMarker is the background image asset name that
	// identifies the congestion waiting-room page.
	WaitingRoomMarker string `yaml:"waiting_room_marker"`

	// NotifyURL overrides the notification URL built from credentials.
	NotifyURL string `yaml:"notify_url"`

	// ProfileDir is the persistent browser profile directory. Cookies and
	// local storage survive across runs so the session stays logged in.
	ProfileDir string `yaml:"profile_dir"`

	// Headless launches the browser without a visible window.
	Headless bool `yaml:"headless"`

	// SolverModel is the vision model used to transcribe CAPTCHAs.
	SolverModel string `yaml:"solver_model"`

	// WaitingRoomPoll is the delay between waiting-room checks.
	WaitingRoomPoll time.Duration `yaml:"waiting_room_poll"`

	// HookReinstall is the cadence at which the supervisor re-injects the
	// interception hook.
	HookReinstall time.Duration `yaml:"hook_reinstall"`

	// PageReload is how long the hook waits before forcing a full page
	// reload to start a fresh poll cycle.
	PageReload time.Duration `yaml:"page_reload"`
}

// Default returns the configuration for the production portal.
func Default() *Config {
	return &Config{
		SchedulingURL:     "https://www.usvisascheduling.com/schedule/?reschedule=true",
		SchedulingDomain:  "usvisascheduling.com",
		IdentityDomain:    "b2clogin.com",
		TargetEndpoint:    "/custom-actions/?route=/api/v1/schedule-group/get-family-consular-schedule-days",
		WaitingRoomMarker: "waiting_room_background_en-US.png",
		ProfileDir:        "visa_profile",
		Headless:          false,
		SolverModel:       "gpt-4o-mini",
		WaitingRoomPoll:   5 * time.Second,
		HookReinstall:     3 * time.Second,
		PageReload:        5 * time.Minute,
	}
}

// Load reads a YAML config file over the defaults. A missing file is not
// an error; the defaults are returned unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration is usable.
func (c *Config) Validate() error {
	if c.SchedulingURL == "" {
		return fmt.Errorf("scheduling_url is required")
	}
	if c.SchedulingDomain == "" {
		return fmt.Errorf("scheduling_domain is required")
	}
	if c.IdentityDomain == "" {
		return fmt.Errorf("identity_domain is required")
	}
	if c.TargetEndpoint == "" {
		return fmt.Errorf("target_endpoint is required")
	}
	if c.ProfileDir == "" {
		return fmt.Errorf("profile_dir is required")
	}
	if c.WaitingRoomPoll <= 0 || c.HookReinstall <= 0 || c.PageReload <= 0 {
		return fmt.Errorf("poll intervals must be positive")
	}
	return nil
}
