// Package login drives the identity provider's two-step challenge: the
// credential form with an optional CAPTCHA, then the security-question
// screen. The flow is a linear state machine; any unmet precondition
// drops it into the Failed sink, and the watcher falls back to manual
// operator intervention rather than guessing.
package login

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/entrhq/visawatch/pkg/captcha"
	"github.com/entrhq/visawatch/pkg/logging"
	"github.com/entrhq/visawatch/pkg/poll"
)

// Login form selectors on the identity provider's challenge pages.
const (
	UsernameSelector = "#signInName"
	PasswordSelector = "#password"
	ContinueSelector = "#continue"
	// CaptchaAnswerSelector receives the transcription when the form
	// carries a CAPTCHA challenge.
	CaptchaAnswerSelector = "#extension_atlasCaptchaResponse"
)

// KBASelectors are the security-question answer inputs, in form order.
// A login round presents a subset of them.
var KBASelectors = []string{"#kba1_response", "#kba2_response", "#kba3_response"}

// ErrLoginFailed is the sink outcome: the flow could not complete and the
// session needs a human.
var ErrLoginFailed = errors.New("automated login failed")

// State is a position in the login flow.
type State int

const (
	// AwaitingCredentials is the initial state: the credential form has
	// not been submitted yet.
	AwaitingCredentials State = iota
	// AwaitingSecurityQuestions means credentials were submitted and the
	// flow is waiting on the security-question screen.
	AwaitingSecurityQuestions
	// Authenticated means the portal accepted the login and navigated to
	// the scheduling authority.
	Authenticated
	// Failed is the terminal sink; there are no transitions out of it.
	Failed
)

// String returns a human-readable state name for logs.
func (s State) String() string {
	switch s {
	case AwaitingCredentials:
		return "awaiting-credentials"
	case AwaitingSecurityQuestions:
		return "awaiting-security-questions"
	case Authenticated:
		return "authenticated"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// Page is the page surface the login flow drives. It embeds the CAPTCHA
// extractor's read surface because the credential form hosts the image.
type Page interface {
	captcha.Page
	URL() string
	ClearAndFill(selector, value string) error
	Click(selector string) error
}

// Extractor captures the CAPTCHA image from the page when one is present.
type Extractor interface {
	Extract(ctx context.Context, page captcha.Page) (*captcha.Payload, error)
}

// Solver transcribes a captured CAPTCHA image.
type Solver interface {
	Solve(ctx context.Context, payload *captcha.Payload) (string, error)
}

// Credentials is the secret material the flow types into the forms. None
// of it may ever reach a log.
type Credentials struct {
	Username string
	Password string
	// Answers maps a security-question input selector to its answer.
	Answers map[string]string
}

// Machine runs the login flow once per invocation. It is not reusable
// concurrently; the watcher creates one and calls Run when classification
// lands on the login challenge.
type Machine struct {
	page      Page
	extractor Extractor
	solver    Solver
	creds     Credentials

	schedulingDomain string
	identityDomain   string

	pollDelay      time.Duration
	formAttempts   uint
	screenAttempts uint

	state State
	log   *logging.Logger
}

// Options configures a login machine.
type Options struct {
	Page      Page
	Extractor Extractor
	Solver    Solver
	Creds     Credentials
	// SchedulingDomain and IdentityDomain decide when the post-login
	// navigation has settled on the right authority.
	SchedulingDomain string
	IdentityDomain   string
	Log              *logging.Logger
}

// NewMachine creates a login machine in the initial state.
func NewMachine(opts Options) *Machine {
	return &Machine{
		page:             opts.Page,
		extractor:        opts.Extractor,
		solver:           opts.Solver,
		creds:            opts.Creds,
		schedulingDomain: opts.SchedulingDomain,
		identityDomain:   opts.IdentityDomain,
		pollDelay:        time.Second,
		formAttempts:     10,
		screenAttempts:   30,
		state:            AwaitingCredentials,
		log:              opts.Log,
	}
}

// State returns the machine's current position in the flow.
func (m *Machine) State() State {
	return m.state
}

// Run drives the flow to completion. It returns nil once authenticated
// and ErrLoginFailed (wrapped with the failing step) on any dead end; the
// machine lands in the Failed sink and stays there.
func (m *Machine) Run(ctx context.Context) error {
	if err := m.submitCredentials(ctx); err != nil {
		return m.fail(err)
	}
	m.state = AwaitingSecurityQuestions
	m.log.Infof("login state: %s", m.state)

	if err := m.answerSecurityQuestions(ctx); err != nil {
		return m.fail(err)
	}

	if err := m.awaitSchedulingPage(ctx); err != nil {
		return m.fail(err)
	}
	m.state = Authenticated
	m.log.Infof("login state: %s", m.state)
	return nil
}

func (m *Machine) fail(err error) error {
	m.state = Failed
	m.log.Errorf("login failed: %v", err)
	return fmt.Errorf("%w: %v", ErrLoginFailed, err)
}

// submitCredentials waits for the credential form, types the username and
// password, solves the CAPTCHA when one renders, and submits.
func (m *Machine) submitCredentials(ctx context.Context) error {
	err := poll.Until(ctx, m.formAttempts, m.pollDelay, func() (bool, error) {
		for _, sel := range []string{UsernameSelector, PasswordSelector, ContinueSelector} {
			present, err := m.page.HasElement(sel)
			if err != nil || !present {
				return false, err
			}
		}
		return true, nil
	})
	if err != nil {
		return fmt.Errorf("credential form did not appear: %w", err)
	}

	if err := m.page.ClearAndFill(UsernameSelector, m.creds.Username); err != nil {
		return fmt.Errorf("could not fill username: %w", err)
	}
	if err := m.page.ClearAndFill(PasswordSelector, m.creds.Password); err != nil {
		return fmt.Errorf("could not fill password: %w", err)
	}
	m.log.Infof("credentials entered")

	if err := m.solveCaptchaIfPresent(ctx); err != nil {
		return err
	}

	if err := m.page.Click(ContinueSelector); err != nil {
		return fmt.Errorf("could not submit credential form: %w", err)
	}
	m.log.Infof("credential form submitted")
	return nil
}

// solveCaptchaIfPresent handles the form's optional CAPTCHA. A round with
// no CAPTCHA is normal and proceeds. Solve failures are recoverable: the
// form is submitted without an answer and the portal's rejection surfaces
// downstream, where the screen polls decide the round's fate.
func (m *Machine) solveCaptchaIfPresent(ctx context.Context) error {
	payload, err := m.extractor.Extract(ctx, m.page)
	if errors.Is(err, captcha.ErrNotFound) {
		m.log.Infof("no captcha on this login round")
		return nil
	}
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		m.log.Warnf("captcha extraction failed, submitting without an answer: %v", err)
		return nil
	}
	defer func() {
		if err := payload.Discard(); err != nil {
			m.log.Warnf("could not discard captcha debug image: %v", err)
		}
	}()

	text, err := m.solver.Solve(ctx, payload)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		m.log.Warnf("captcha solve failed, submitting without an answer: %v", err)
		return nil
	}

	present, err := m.page.HasElement(CaptchaAnswerSelector)
	if err != nil {
		m.log.Warnf("captcha answer probe failed, continuing: %v", err)
		return nil
	}
	if present {
		if err := m.page.ClearAndFill(CaptchaAnswerSelector, text); err != nil {
			return fmt.Errorf("could not fill captcha answer: %w", err)
		}
		m.log.Infof("captcha answer entered")
	} else {
		m.log.Warnf("captcha solved but answer field is missing, continuing without it")
	}
	return nil
}

// answerSecurityQuestions waits for the security-question screen, fills
// the rendered inputs from the configured answers, and submits.
func (m *Machine) answerSecurityQuestions(ctx context.Context) error {
	var rendered []string
	err := poll.Until(ctx, m.screenAttempts, m.pollDelay, func() (bool, error) {
		rendered = rendered[:0]
		for _, sel := range KBASelectors {
			present, err := m.page.HasElement(sel)
			if err != nil {
				return false, err
			}
			if present {
				rendered = append(rendered, sel)
			}
		}
		// The screen renders at least two questions; fewer means it is
		// still loading.
		return len(rendered) >= 2, nil
	})
	if err != nil {
		return fmt.Errorf("security-question screen did not appear: %w", err)
	}
	m.log.Infof("security-question screen rendered %d questions", len(rendered))

	for _, sel := range rendered {
		answer, ok := m.creds.Answers[sel]
		if !ok {
			m.log.Warnf("no configured answer for %s, submitting blank", sel)
		}
		if err := m.page.ClearAndFill(sel, answer); err != nil {
			return fmt.Errorf("could not fill %s: %w", sel, err)
		}
	}

	err = poll.Until(ctx, m.formAttempts, m.pollDelay, func() (bool, error) {
		return m.page.HasElement(ContinueSelector)
	})
	if err != nil {
		return fmt.Errorf("security-question submit button did not appear: %w", err)
	}
	if err := m.page.Click(ContinueSelector); err != nil {
		return fmt.Errorf("could not submit security questions: %w", err)
	}
	m.log.Infof("security questions submitted")
	return nil
}

// awaitSchedulingPage waits for the post-login navigation to settle on
// the scheduling authority, away from the identity provider.
func (m *Machine) awaitSchedulingPage(ctx context.Context) error {
	err := poll.Until(ctx, m.screenAttempts, m.pollDelay, func() (bool, error) {
		url := m.page.URL()
		return strings.Contains(url, m.schedulingDomain) &&
			!strings.Contains(url, m.identityDomain), nil
	})
	if err != nil {
		return fmt.Errorf("portal did not return to the scheduling page: %w", err)
	}
	return nil
}
