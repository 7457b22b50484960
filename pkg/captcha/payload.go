// Package captcha extracts the login CAPTCHA image from the page and
// solves it through an external vision service, with bounded retries at
// every step and a per-image attempt cap so an unsolvable image can never
// cause an unbounded request loop.
package captcha

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"os"
)

// Payload is a self-contained CAPTCHA image: the raw PNG bytes captured
// from the page plus the on-disk debug copy kept for audit while the
// image is being solved.
type Payload struct {
	// PNG is the element screenshot.
	PNG []byte
	// DebugPath is the audit copy on disk, removed via Discard once the
	// transcription has been consumed. Empty when the copy could not be
	// written (non-fatal).
	DebugPath string
}

// DataURL encodes the image as a base64 data URL for the vision service.
func (p *Payload) DataURL() string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(p.PNG)
}

// Fingerprint returns a stable identifier for this rendered image, used
// to bound repeated solve attempts against the same image.
func (p *Payload) Fingerprint() string {
	sum := sha256.Sum256(p.PNG)
	return hex.EncodeToString(sum[:])
}

// Discard removes the debug copy. Safe to call when no copy exists.
func (p *Payload) Discard() error {
	if p.DebugPath == "" {
		return nil
	}
	if err := os.Remove(p.DebugPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove captcha debug image: %w", err)
	}
	p.DebugPath = ""
	return nil
}
