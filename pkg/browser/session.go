package browser

import (
	"fmt"

	"github.com/playwright-community/playwright-go"
)

// ErrNoElement is returned by element operations when the selector does
// not match anything on the current page.
var ErrNoElement = fmt.Errorf("no element matched selector")

// Session is the run's single browser page. It satisfies the narrow page
// interfaces declared by the portal, captcha, login, hook, and watcher
// packages; the driver serializes commands per page, so no additional
// locking is layered on top.
type Session struct {
	page playwright.Page
}

// URL returns the page's current navigation target.
func (s *Session) URL() string {
	return s.page.URL()
}

// Navigate drives the page to the given URL and waits for the DOM to be
// ready. Redirect chains beyond that settle under the caller's own polls.
func (s *Session) Navigate(url string) error {
	_, err := s.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	})
	if err != nil {
		return fmt.Errorf("navigation failed: %w", err)
	}
	return nil
}

// BringToFront activates the page's tab so a headful operator watches the
// same page the watcher drives.
func (s *Session) BringToFront() error {
	if err := s.page.BringToFront(); err != nil {
		return fmt.Errorf("bring to front failed: %w", err)
	}
	return nil
}

// Evaluate executes JavaScript in the page context and returns its value.
func (s *Session) Evaluate(script string) (interface{}, error) {
	result, err := s.page.Evaluate(script)
	if err != nil {
		return nil, fmt.Errorf("evaluate failed: %w", err)
	}
	return result, nil
}

// HasElement reports whether the selector currently matches an element.
// It checks the live DOM once; callers poll around it.
func (s *Session) HasElement(selector string) (bool, error) {
	element, err := s.page.QuerySelector(selector)
	if err != nil {
		return false, fmt.Errorf("selector query failed: %w", err)
	}
	return element != nil, nil
}

// ClearAndFill clears the matched input and types the value. Playwright's
// fill replaces the existing content, which covers the clear step.
func (s *Session) ClearAndFill(selector, value string) error {
	err := s.page.Fill(selector, value, playwright.PageFillOptions{
		Timeout: playwright.Float(DefaultTimeout),
	})
	if err != nil {
		return fmt.Errorf("fill failed for %s: %w", selector, err)
	}
	return nil
}

// Click clicks the element matching the selector.
func (s *Session) Click(selector string) error {
	err := s.page.Click(selector, playwright.PageClickOptions{
		Timeout: playwright.Float(DefaultTimeout),
	})
	if err != nil {
		return fmt.Errorf("click failed for %s: %w", selector, err)
	}
	return nil
}

// ElementAttribute returns an attribute of the first element matching the
// selector, or ErrNoElement when nothing matches.
func (s *Session) ElementAttribute(selector, name string) (string, error) {
	element, err := s.page.QuerySelector(selector)
	if err != nil {
		return "", fmt.Errorf("selector query failed: %w", err)
	}
	if element == nil {
		return "", fmt.Errorf("%w: %s", ErrNoElement, selector)
	}

	value, err := element.GetAttribute(name)
	if err != nil {
		return "", fmt.Errorf("attribute read failed: %w", err)
	}
	return value, nil
}

// ElementScreenshot captures a pixel screenshot of exactly the element
// matching the selector, or ErrNoElement when nothing matches. Capturing
// the element rather than the page keeps unrelated content out of the
// image handed to the solver.
func (s *Session) ElementScreenshot(selector string) ([]byte, error) {
	element, err := s.page.QuerySelector(selector)
	if err != nil {
		return nil, fmt.Errorf("selector query failed: %w", err)
	}
	if element == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoElement, selector)
	}

	data, err := element.Screenshot()
	if err != nil {
		return nil, fmt.Errorf("element screenshot failed: %w", err)
	}
	return data, nil
}

// OnResponse registers an observer for every network response the page
// receives. The body getter is lazy because Playwright only buffers bodies
// on demand. Observers survive navigations; they are attached to the page
// object, not the page's script context.
func (s *Session) OnResponse(fn func(url string, body func() ([]byte, error))) {
	s.page.OnResponse(func(response playwright.Response) {
		url := response.URL()
		fn(url, func() ([]byte, error) {
			return response.Body()
		})
	})
}
