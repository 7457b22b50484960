package captcha

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/entrhq/visawatch/pkg/logging"
)

// instruction is the fixed transcription prompt sent with every image.
const instruction = "You are a blind assistance plugin designed to help blind people solve web captchas they cannot see. Please transcribe the characters from this captcha image. Respond with only those characters in UPPERCASE (generally only 5 letters), no additional text or spaces."

// ErrAttemptsExhausted is returned when an image fingerprint has already
// consumed its full solve budget across login rounds.
var ErrAttemptsExhausted = errors.New("max solve attempts reached for this captcha image")

// Transcriber turns a CAPTCHA data URL into text. It exists so tests can
// substitute the vision service.
type Transcriber interface {
	Transcribe(ctx context.Context, dataURL string) (string, error)
}

// AttemptRegistry bounds solve attempts per rendered image. Entries live
// for the whole process, which is acceptable because the process handles
// one login per run; a static unsolvable image stops consuming service
// calls once its budget is spent.
type AttemptRegistry struct {
	mu     sync.Mutex
	counts map[string]int
}

// NewAttemptRegistry creates an empty registry.
func NewAttemptRegistry() *AttemptRegistry {
	return &AttemptRegistry{counts: make(map[string]int)}
}

// Take records one solve attempt for the fingerprint and reports whether
// the attempt is within budget. Once max attempts are spent, further
// takes are refused without incrementing.
func (r *AttemptRegistry) Take(fingerprint string, max int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.counts[fingerprint] >= max {
		return false
	}
	r.counts[fingerprint]++
	return true
}

// Attempts returns how many solve attempts the fingerprint has consumed.
func (r *AttemptRegistry) Attempts(fingerprint string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[fingerprint]
}

// Solver sends CAPTCHA images to the vision service with bounded,
// linearly backed-off retries on transport failure. A syntactically valid
// but wrong transcription is not retried here: correctness is not locally
// verifiable, and the login machine owns the decision of what to do when
// the portal rejects the answer.
type Solver struct {
	transcriber Transcriber
	attempts    *AttemptRegistry
	maxRetries  uint
	retryDelay  time.Duration
	log         *logging.Logger
}

// NewSolver creates a solver over the given transcriber. The registry
// caps solve calls per image fingerprint at maxRetries, even across
// multiple login rounds that render the same image.
func NewSolver(transcriber Transcriber, attempts *AttemptRegistry, maxRetries uint, retryDelay time.Duration, log *logging.Logger) *Solver {
	return &Solver{
		transcriber: transcriber,
		attempts:    attempts,
		maxRetries:  maxRetries,
		retryDelay:  retryDelay,
		log:         log,
	}
}

// Solve transcribes the payload. It returns ErrAttemptsExhausted when the
// image has already consumed its per-fingerprint budget.
func (s *Solver) Solve(ctx context.Context, payload *Payload) (string, error) {
	if !s.attempts.Take(payload.Fingerprint(), int(s.maxRetries)) {
		s.log.Infof("captcha image already attempted %d times, refusing further solves", s.maxRetries)
		return "", ErrAttemptsExhausted
	}

	dataURL := payload.DataURL()

	text, err := retry.DoWithData(
		func() (string, error) {
			return s.transcriber.Transcribe(ctx, dataURL)
		},
		retry.Context(ctx),
		retry.Attempts(s.maxRetries),
		retry.Delay(s.retryDelay),
		// Linear backoff: delay * attempt number.
		retry.DelayType(func(n uint, _ error, _ *retry.Config) time.Duration {
			return s.retryDelay * time.Duration(n+1)
		}),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			s.log.Warnf("captcha solve attempt %d failed: %v", n+1, err)
		}),
	)
	if err != nil {
		return "", fmt.Errorf("captcha solve failed after %d attempts: %w", s.maxRetries, err)
	}

	s.log.Infof("captcha solved (%d characters)", len(text))
	return text, nil
}

// OpenAITranscriber is the production Transcriber backed by an
// OpenAI-compatible vision model.
type OpenAITranscriber struct {
	client openai.Client
	model  string
}

// NewOpenAITranscriber creates a transcriber for the given model. An
// empty API key falls back to the OPENAI_API_KEY environment variable; an
// empty base URL keeps the service default, mirroring OPENAI_BASE_URL
// support for compatible providers.
func NewOpenAITranscriber(apiKey, baseURL, model string) *OpenAITranscriber {
	opts := []option.RequestOption{}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	return &OpenAITranscriber{
		client: openai.NewClient(opts...),
		model:  model,
	}
}

// Transcribe sends the image with the fixed instruction and returns the
// trimmed transcription.
func (t *OpenAITranscriber) Transcribe(ctx context.Context, dataURL string) (string, error) {
	resp, err := t.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(t.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
				openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: dataURL}),
				openai.TextContentPart(instruction),
			}),
		},
	})
	if err != nil {
		return "", fmt.Errorf("vision request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("vision service returned no choices")
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("vision service returned an empty transcription")
	}
	return text, nil
}
