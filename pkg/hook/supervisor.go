package hook

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/entrhq/visawatch/pkg/logging"
	"github.com/entrhq/visawatch/pkg/slots"
)

// Evaluator runs JavaScript in the page's script context.
type Evaluator interface {
	Evaluate(script string) (interface{}, error)
}

// ResponseSource registers network-response observers that survive page
// navigations.
type ResponseSource interface {
	OnResponse(fn func(url string, body func() ([]byte, error)))
}

// Install evaluates the interception script on the page. The script's
// guard flag makes repeat installs no-ops, so callers never need to check
// whether the hook is already present.
func Install(page Evaluator, cfg Config) error {
	script, err := Script(cfg)
	if err != nil {
		return err
	}
	if _, err := page.Evaluate(script); err != nil {
		return fmt.Errorf("hook install failed: %w", err)
	}
	return nil
}

// Supervisor keeps the hook alive for the lifetime of a run. Page reloads
// wipe the script context, so the supervisor reinstalls on a fixed
// interval forever; the guard flag turns redundant installs into no-ops.
type Supervisor struct {
	page     Evaluator
	cfg      Config
	interval time.Duration
	pref     slots.Preference
	log      *logging.Logger
}

// NewSupervisor creates a supervisor that reinstalls the hook on the page
// every interval.
func NewSupervisor(page Evaluator, cfg Config, interval time.Duration, pref slots.Preference, log *logging.Logger) *Supervisor {
	return &Supervisor{
		page:     page,
		cfg:      cfg,
		interval: interval,
		pref:     pref,
		log:      log,
	}
}

// Audit attaches a driver-side observer that mirrors the in-page decision
// into the run log. It is strictly observational: the in-page script owns
// notification, and a driver hiccup here costs at most a log line.
func (s *Supervisor) Audit(source ResponseSource) {
	source.OnResponse(func(url string, body func() ([]byte, error)) {
		if !strings.Contains(url, s.cfg.TargetSubstring) {
			return
		}
		raw, err := body()
		if err != nil {
			s.log.Warnf("could not read schedule-days response body: %v", err)
			return
		}
		if slots.Decide(raw, s.pref) {
			s.log.Infof("schedule-days response contains matching slots")
		} else {
			s.log.Infof("schedule-days response has no matching slots")
		}
	})
}

// Run installs the hook and reinstalls it on every tick until the context
// is cancelled. Install failures are logged and retried on the next tick;
// they are expected mid-navigation and never abort the run.
func (s *Supervisor) Run(ctx context.Context) {
	s.log.Infof("hook supervisor started (reinstall every %s)", s.interval)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if err := Install(s.page, s.cfg); err != nil {
			s.log.Warnf("hook reinstall failed: %v", err)
		}

		select {
		case <-ctx.Done():
			s.log.Infof("hook supervisor stopped")
			return
		case <-ticker.C:
		}
	}
}
