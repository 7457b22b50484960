// Package browser wraps the Playwright driver behind the narrow capability
// set the watcher needs: one Chromium session with a persistent profile,
// plus the page operations (navigate, inspect, fill, click, evaluate,
// element screenshot) the other packages consume through their own
// interfaces.
package browser

import (
	"fmt"
	"io"
	"os"

	"github.com/playwright-community/playwright-go"
)

// DefaultTimeout is the driver-level default for page operations, in
// milliseconds. The watcher's own waits are bounded polls on top of this.
const DefaultTimeout = 5000.0

// Manager owns the Playwright runtime and the single browser session of a
// run. The session is created once at startup and never recreated; the
// persistent profile keeps cookies and local storage across runs so a
// completed login survives a restart.
type Manager struct {
	pw          *playwright.Playwright
	context     playwright.BrowserContext
	session     *Session
	initialized bool
}

// Options configures the single session.
type Options struct {
	// ProfileDir is the user-data directory persisted between runs.
	ProfileDir string
	// Headless launches the browser without a visible window. The
	// production portal is normally watched headful so the operator can
	// take over when automated login fails.
	Headless bool
}

// NewManager creates an uninitialized manager.
func NewManager() *Manager {
	return &Manager{}
}

// Start installs and launches Playwright, opens the persistent-profile
// context, and returns the run's session. It must be called exactly once.
func (m *Manager) Start(opts Options) (*Session, error) {
	if m.initialized {
		return nil, fmt.Errorf("browser manager already started")
	}

	if opts.ProfileDir == "" {
		return nil, fmt.Errorf("profile directory is required")
	}
	if err := os.MkdirAll(opts.ProfileDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create profile directory: %w", err)
	}

	// Install and run Playwright quietly so driver chatter does not mix
	// with the watcher's own output.
	runOpts := &playwright.RunOptions{
		Verbose: false,
		Stdout:  io.Discard,
		Stderr:  io.Discard,
	}

	if err := playwright.Install(runOpts); err != nil {
		return nil, fmt.Errorf("failed to install playwright: %w", err)
	}

	pw, err := playwright.Run(runOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	context, err := pw.Chromium.LaunchPersistentContext(opts.ProfileDir,
		playwright.BrowserTypeLaunchPersistentContextOptions{
			Headless: playwright.Bool(opts.Headless),
		})
	if err != nil {
		pw.Stop()
		return nil, fmt.Errorf("failed to launch persistent context: %w", err)
	}

	// A persistent context opens with an initial blank page; reuse it
	// instead of leaving an orphan tab around.
	var page playwright.Page
	if pages := context.Pages(); len(pages) > 0 {
		page = pages[0]
	} else {
		page, err = context.NewPage()
		if err != nil {
			context.Close()
			pw.Stop()
			return nil, fmt.Errorf("failed to create page: %w", err)
		}
	}

	page.SetDefaultTimeout(DefaultTimeout)

	m.pw = pw
	m.context = context
	m.session = &Session{page: page}
	m.initialized = true
	return m.session, nil
}

// Session returns the run's session, or nil before Start.
func (m *Manager) Session() *Session {
	return m.session
}

// Shutdown closes the session and stops Playwright. The persistent profile
// directory is left on disk for the next run.
func (m *Manager) Shutdown() error {
	if !m.initialized {
		return nil
	}

	if m.context != nil {
		_ = m.context.Close() // Ignore errors, continue cleanup
	}

	if m.pw != nil {
		if err := m.pw.Stop(); err != nil {
			return fmt.Errorf("failed to stop playwright: %w", err)
		}
	}

	m.initialized = false
	return nil
}
