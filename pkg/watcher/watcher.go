// Package watcher is the top-level driver: it waits out the waiting room,
// runs the login flow when the portal demands it, parks the session on the
// scheduling page, and keeps the interception hook alive for the rest of
// the process lifetime. Nothing propagates past it; every component
// failure degrades to logging and manual fallback rather than a crash.
package watcher

import (
	"context"
	"time"

	"github.com/entrhq/visawatch/pkg/logging"
	"github.com/entrhq/visawatch/pkg/portal"
)

// idleInterval paces the orchestrator's keep-alive loop once the session
// is parked on the scheduling page.
const idleInterval = time.Minute

// Page is the full page surface the orchestrator drives. It is satisfied
// by browser.Session.
type Page interface {
	portal.Page
	Navigate(url string) error
	BringToFront() error
}

// Classifier decides which portal screen the page is on.
type Classifier interface {
	Classify(page portal.Page) (portal.PageState, error)
}

// LoginRunner executes one automated login attempt against the page.
type LoginRunner interface {
	Run(ctx context.Context) error
}

// SupervisorRunner keeps the interception hook installed until the
// context is cancelled.
type SupervisorRunner interface {
	Run(ctx context.Context)
}

// Watcher owns the single browser session for the process lifetime.
type Watcher struct {
	page          Page
	classifier    Classifier
	newLogin      func() LoginRunner
	supervisor    SupervisorRunner
	schedulingURL string
	waitingPoll   time.Duration
	log           *logging.Logger
}

// Options configures a watcher.
type Options struct {
	Page       Page
	Classifier Classifier
	// NewLogin builds a fresh login machine per attempt; the machine's
	// Failed sink is terminal, so attempts are never reused.
	NewLogin      func() LoginRunner
	Supervisor    SupervisorRunner
	SchedulingURL string
	// WaitingRoomPoll is the delay between waiting-room checks.
	WaitingRoomPoll time.Duration
	Log             *logging.Logger
}

// New creates a watcher.
func New(opts Options) *Watcher {
	return &Watcher{
		page:          opts.Page,
		classifier:    opts.Classifier,
		newLogin:      opts.NewLogin,
		supervisor:    opts.Supervisor,
		schedulingURL: opts.SchedulingURL,
		waitingPoll:   opts.WaitingRoomPoll,
		log:           opts.Log,
	}
}

// Run drives the session until the context is cancelled. It returns the
// context error on shutdown and nil never otherwise: component failures
// are absorbed here.
func (w *Watcher) Run(ctx context.Context) error {
	if err := w.page.Navigate(w.schedulingURL); err != nil {
		// A failed initial navigation is not fatal: the waiting-room
		// loop keeps classifying whatever the page landed on.
		w.log.Warnf("initial navigation failed: %v", err)
	}

	if err := w.awaitExitWaitingRoom(ctx); err != nil {
		return err
	}

	if w.classify() == portal.LoginChallenge {
		w.runLogin(ctx)
		if err := ctx.Err(); err != nil {
			return err
		}
	}

	// Post-login congestion shows up as a second waiting room.
	if err := w.awaitExitWaitingRoom(ctx); err != nil {
		return err
	}

	// The portal likes to land post-login sessions on profile or landing
	// pages; force the canonical scheduling URL before arming the hook.
	w.log.Infof("navigating to the scheduling page")
	if err := w.page.Navigate(w.schedulingURL); err != nil {
		w.log.Warnf("forced navigation failed: %v", err)
	}

	go w.supervisor.Run(ctx)

	return w.idle(ctx)
}

// classify inspects the page, mapping inspection failures to Unknown so
// callers retry instead of aborting.
func (w *Watcher) classify() portal.PageState {
	state, err := w.classifier.Classify(w.page)
	if err != nil {
		w.log.Debugf("page classification inconclusive: %v", err)
		return portal.Unknown
	}
	return state
}

// awaitExitWaitingRoom polls until the page is anything but the waiting
// room (or inconclusive). The wait is unbounded: congestion is expected
// to be transient but has no contractual upper bound.
func (w *Watcher) awaitExitWaitingRoom(ctx context.Context) error {
	announced := false
	for {
		state := w.classify()
		if state != portal.WaitingRoom && state != portal.Unknown {
			if announced {
				w.log.Infof("left the waiting room, page is now %s", state)
			}
			return nil
		}
		if !announced && state == portal.WaitingRoom {
			w.log.Infof("in the waiting room, polling every %s", w.waitingPoll)
			announced = true
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(w.waitingPoll):
		}
	}
}

// runLogin attempts one automated login. Failure is logged and absorbed:
// the session stays open so the operator can finish the login by hand,
// and the flow proceeds so the hook supervisor is already armed when the
// manual login lands on the scheduling page.
func (w *Watcher) runLogin(ctx context.Context) {
	w.log.Infof("login challenge detected, starting automated login")

	if err := w.page.BringToFront(); err != nil {
		w.log.Warnf("could not bring page to front: %v", err)
	}

	if err := w.newLogin().Run(ctx); err != nil {
		w.log.Errorf("automated login did not complete: %v", err)
		w.log.Infof("complete the login by hand in the open browser window")
		return
	}
	w.log.Infof("automated login completed")
}

// idle keeps the process alive while the hook does the actual watching
// inside the page.
func (w *Watcher) idle(ctx context.Context) error {
	w.log.Infof("watch active on %s, idling", w.schedulingURL)
	for {
		select {
		case <-ctx.Done():
			w.log.Infof("shutting down")
			return ctx.Err()
		case <-time.After(idleInterval):
			w.log.Debugf("session alive on %s", w.page.URL())
		}
	}
}
