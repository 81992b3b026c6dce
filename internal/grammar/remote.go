package grammar

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"mdnotes/internal/common"
	"mdnotes/pkg/logger"

	"github.com/sethvargo/go-retry"
)

const (
	DefaultRemoteTimeout = 30 * time.Second
	DefaultRemoteRetries = 2
	defaultRetryBackoff  = 500 * time.Millisecond
)

// RemoteEngine asks a text-generation model to correct Markdown and parses
// the JSON object embedded in its reply.
type RemoteEngine struct {
	gen     TextGenerator
	timeout time.Duration
	retries uint64
	backoff time.Duration
}

type RemoteOption func(*RemoteEngine)

// WithTimeout bounds a whole correction request, retries included.
func WithTimeout(d time.Duration) RemoteOption {
	return func(e *RemoteEngine) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithRetries sets how many times a transient failure is retried.
func WithRetries(n uint64) RemoteOption {
	return func(e *RemoteEngine) { e.retries = n }
}

// WithBackoff sets the base delay of the exponential retry backoff.
func WithBackoff(d time.Duration) RemoteOption {
	return func(e *RemoteEngine) {
		if d > 0 {
			e.backoff = d
		}
	}
}

func NewRemoteEngine(gen TextGenerator, opts ...RemoteOption) *RemoteEngine {
	e := &RemoteEngine{
		gen:     gen,
		timeout: DefaultRemoteTimeout,
		retries: DefaultRemoteRetries,
		backoff: defaultRetryBackoff,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Check returns only the issues of a correction.
func (e *RemoteEngine) Check(ctx context.Context, text string) ([]Issue, error) {
	c, err := e.Correct(ctx, text)
	if err != nil {
		return nil, err
	}
	return c.Issues, nil
}

// Correct sends the correction prompt for text. Service failures wrap
// common.ErrRemoteServiceUnavailable; unusable replies wrap
// common.ErrRemoteResponseMalformed and are never retried.
func (e *RemoteEngine) Correct(ctx context.Context, text string) (*Correction, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	reply, err := e.generate(ctx, BuildPrompt(text))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrRemoteServiceUnavailable, err)
	}

	c, err := ParseCorrection(reply)
	if err != nil {
		logger.Sugar.Errorw("Unusable remote grammar reply", "error", err, "reply_bytes", len(reply))
		return nil, err
	}

	ix := newTextIndex(text)
	for i := range c.Issues {
		c.Issues[i].Column = -1
		if start, ok := ix.byteOffsetOfRune(c.Issues[i].Offset); ok {
			_, c.Issues[i].Column, _ = ix.position(start)
		}
	}
	return c, nil
}

func (e *RemoteEngine) generate(ctx context.Context, prompt string) (string, error) {
	var reply string
	attempt := 0
	backoff := retry.WithMaxRetries(e.retries, retry.NewExponential(e.backoff))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		out, err := e.gen.Generate(ctx, prompt)
		if err != nil {
			if IsTransient(err) {
				logger.Sugar.Warnf("Remote grammar attempt %d failed, retrying: %v", attempt, err)
				return retry.RetryableError(err)
			}
			return err
		}
		reply = out
		return nil
	})
	return reply, err
}

type wireIssue struct {
	Line        *int    `json:"line"`
	Offset      *int    `json:"offset"`
	Length      *int    `json:"length"`
	Original    *string `json:"original"`
	Suggestion  *string `json:"suggestion"`
	Explanation string  `json:"explanation"`
}

type wireCorrection struct {
	CorrectedText *string      `json:"correctedText"`
	Issues        *[]wireIssue `json:"issues"`
}

// ParseCorrection extracts the text between the first '{' and the last '}'
// of reply and decodes it. Issues keep the reply's content and order.
func ParseCorrection(reply string) (*Correction, error) {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start < 0 || end < start {
		return nil, fmt.Errorf("%w: no JSON object in reply", common.ErrRemoteResponseMalformed)
	}

	var wire wireCorrection
	if err := json.Unmarshal([]byte(reply[start:end+1]), &wire); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrRemoteResponseMalformed, err)
	}
	if wire.CorrectedText == nil {
		return nil, fmt.Errorf("%w: missing correctedText", common.ErrRemoteResponseMalformed)
	}
	if wire.Issues == nil {
		return nil, fmt.Errorf("%w: missing issues", common.ErrRemoteResponseMalformed)
	}

	c := &Correction{CorrectedText: *wire.CorrectedText, Issues: make([]Issue, 0, len(*wire.Issues))}
	for i, w := range *wire.Issues {
		if w.Line == nil || w.Offset == nil || w.Length == nil || w.Original == nil || w.Suggestion == nil {
			return nil, fmt.Errorf("%w: issue %d is missing a required field", common.ErrRemoteResponseMalformed, i)
		}
		c.Issues = append(c.Issues, Issue{
			Line:        *w.Line,
			Offset:      *w.Offset,
			Length:      *w.Length,
			Original:    *w.Original,
			Suggestion:  *w.Suggestion,
			Explanation: w.Explanation,
		})
	}
	return c, nil
}
