// Package portal classifies which screen of the scheduling portal the
// browser is currently on. Classification is derived from the live page on
// every check and never cached: the portal can swap screens (waiting room,
// login redirect) without notice.
package portal

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"
)

// PageState identifies the screen the session is on.
type PageState int

const (
	// Unknown means the page could not be inspected, typically because a
	// navigation was in flight. Callers retry after a short delay.
	Unknown PageState = iota
	// WaitingRoom is the portal's congestion-control interstitial.
	WaitingRoom
	// LoginChallenge is the identity provider's two-step login flow.
	LoginChallenge
	// SchedulingPage is the authenticated appointment page, the default
	// once navigation settles and no other signal matches.
	SchedulingPage
)

// String returns a human-readable state name for logs.
func (s PageState) String() string {
	switch s {
	case WaitingRoom:
		return "waiting-room"
	case LoginChallenge:
		return "login-challenge"
	case SchedulingPage:
		return "scheduling-page"
	default:
		return "unknown"
	}
}

// Page is the read-only page surface the classifier inspects. It must not
// be mutated by classification.
type Page interface {
	URL() string
	HasElement(selector string) (bool, error)
	Evaluate(script string) (interface{}, error)
}

// Classifier decides the current PageState. Signals can co-occur
// transiently during transition animations, so the checks run in a fixed
// order and the first match wins.
type Classifier struct {
	identityDomain string
	waitingRoom    glob.Glob
}

// NewClassifier builds a classifier for the given identity-provider domain
// and waiting-room background asset marker.
func NewClassifier(identityDomain, waitingRoomMarker string) *Classifier {
	return &Classifier{
		identityDomain: identityDomain,
		waitingRoom:    glob.MustCompile("*" + waitingRoomMarker + "*"),
	}
}

// Classify inspects the page and returns its state. Inspection failures
// (mid-navigation DOM access, detached frames) return Unknown with the
// underlying error; the caller retries rather than treating it as fatal.
func (c *Classifier) Classify(page Page) (PageState, error) {
	// The identity provider hosts the challenge on its own authority, so
	// the URL alone is decisive.
	if containsDomain(page.URL(), c.identityDomain) {
		return LoginChallenge, nil
	}

	hasPassword, err := page.HasElement("input[type=password]")
	if err != nil {
		return Unknown, fmt.Errorf("password probe failed: %w", err)
	}
	if hasPassword {
		return LoginChallenge, nil
	}

	// The waiting room announces itself through an inline background
	// image on the body tag.
	style, err := page.Evaluate("document.body && document.body.getAttribute('style')")
	if err != nil {
		return Unknown, fmt.Errorf("body style probe failed: %w", err)
	}
	if s, ok := style.(string); ok && c.waitingRoom.Match(s) {
		return WaitingRoom, nil
	}

	return SchedulingPage, nil
}

func containsDomain(url, domain string) bool {
	return domain != "" && url != "" && strings.Contains(url, domain)
}
