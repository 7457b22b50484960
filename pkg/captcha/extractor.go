package captcha

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gobwas/glob"
	"github.com/google/uuid"

	"github.com/entrhq/visawatch/pkg/logging"
	"github.com/entrhq/visawatch/pkg/poll"
)

// ImageSelector locates the CAPTCHA image element on the login screen.
const ImageSelector = "#captchaImage"

// ErrNotFound is returned when no solvable CAPTCHA image appears within
// the polling budget. This is an expected outcome: some login rounds
// simply render no CAPTCHA, and the flow proceeds without one.
var ErrNotFound = errors.New("captcha image not found")

// Page is the page surface the extractor reads.
type Page interface {
	HasElement(selector string) (bool, error)
	ElementAttribute(selector, name string) (string, error)
	ElementScreenshot(selector string) ([]byte, error)
}

// Extractor rasterizes the CAPTCHA image element into a Payload once the
// element exists and its source has moved past the loading placeholder.
type Extractor struct {
	debugDir    string
	maxRetries  uint
	retryDelay  time.Duration
	placeholder glob.Glob
	log         *logging.Logger
}

// NewExtractor creates an extractor that writes debug copies under
// debugDir.
func NewExtractor(debugDir string, maxRetries uint, retryDelay time.Duration, log *logging.Logger) *Extractor {
	return &Extractor{
		debugDir:   debugDir,
		maxRetries: maxRetries,
		retryDelay: retryDelay,
		// Placeholder sources are generic loading GIFs served as data URLs.
		placeholder: glob.MustCompile("data:image/gif*"),
		log:         log,
	}
}

// Extract polls for a loaded CAPTCHA image and captures a pixel screenshot
// of exactly that element. It returns ErrNotFound after exhausting the
// polling budget, which callers treat as "no CAPTCHA this round".
func (e *Extractor) Extract(ctx context.Context, page Page) (*Payload, error) {
	attempt := 0
	payload, err := poll.UntilValue(ctx, e.maxRetries, e.retryDelay, func() (*Payload, bool, error) {
		attempt++

		present, err := page.HasElement(ImageSelector)
		if err != nil {
			return nil, false, err
		}
		if !present {
			e.log.Debugf("captcha image not found on attempt %d/%d", attempt, e.maxRetries)
			return nil, false, nil
		}

		src, err := page.ElementAttribute(ImageSelector, "src")
		if err != nil {
			return nil, false, err
		}
		if src == "" || e.placeholder.Match(src) {
			e.log.Debugf("captcha image not fully loaded on attempt %d/%d", attempt, e.maxRetries)
			return nil, false, nil
		}

		png, err := page.ElementScreenshot(ImageSelector)
		if err != nil {
			// The element can detach between the attribute read and the
			// screenshot; treat it as not ready yet.
			return nil, false, err
		}

		return &Payload{PNG: png, DebugPath: e.writeDebugCopy(png)}, true, nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		e.log.Infof("no solvable captcha image after %d attempts", e.maxRetries)
		return nil, ErrNotFound
	}

	e.log.Infof("captcha image extracted (%d bytes)", len(payload.PNG))
	return payload, nil
}

// writeDebugCopy persists the captured image for audit. Failure to write
// the copy is logged and swallowed; it never blocks solving.
func (e *Extractor) writeDebugCopy(png []byte) string {
	if e.debugDir == "" {
		return ""
	}
	if err := os.MkdirAll(e.debugDir, 0750); err != nil {
		e.log.Warnf("could not create captcha debug directory: %v", err)
		return ""
	}

	path := filepath.Join(e.debugDir, fmt.Sprintf("captcha_%s.png", uuid.New().String()))
	if err := os.WriteFile(path, png, 0600); err != nil {
		e.log.Warnf("could not save captcha debug image: %v", err)
		return ""
	}

	e.log.Debugf("captcha debug image saved to %s", path)
	return path
}
