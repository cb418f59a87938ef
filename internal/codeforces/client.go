// Package codeforces reads a user's recent submissions from the Codeforces API
// and answers whether an accepted one falls on the user's local "today".
package codeforces

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/ykvlv/cf-streak-bot/internal/domain"
)

const (
	DefaultBaseURL = "https://codeforces.com/api"
	// DefaultCount bounds the single newest-first page we read. Only today's
	// submissions matter, but paging is not followed, so the page must comfortably
	// exceed a heavy day's submission count or an AC may fall off the end.
	DefaultCount   = 200
	DefaultTimeout = 20 * time.Second

	verdictAccepted = "OK"
	statusOK        = "OK"
	maxBodyBytes    = 8 << 20
)

// Result is the outcome of one feed check.
type Result int

const (
	NotSolved   Result = iota // feed answered, no accepted submission today
	Solved                    // at least one accepted submission today
	Unavailable               // transport error, timeout, or unexpected HTTP status
	Failed                    // API answered with status != OK
	Malformed                 // body could not be decoded
)

func (r Result) String() string {
	switch r {
	case NotSolved:
		return "not_solved"
	case Solved:
		return "solved"
	case Unavailable:
		return "unavailable"
	case Failed:
		return "failed"
	case Malformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// Config configures the client.
type Config struct {
	BaseURL string
	Count   int
	Timeout time.Duration
}

// Client is a Codeforces user.status client.
type Client struct {
	cfg        Config
	httpClient *http.Client
	log        *zap.Logger
	tz         *domain.Resolver
	now        func() time.Time
}

// New creates a client. Zero config fields take defaults.
func New(cfg Config, tz *domain.Resolver, log *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Count <= 0 {
		cfg.Count = DefaultCount
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		log:        log.With(zap.String("component", "codeforces")),
		tz:         tz,
		now:        time.Now,
	}
}

// WithClock replaces the clock; used by tests.
func (c *Client) WithClock(now func() time.Time) *Client {
	c.now = now
	return c
}

type submission struct {
	Verdict             string `json:"verdict"`
	CreationTimeSeconds *int64 `json:"creationTimeSeconds"`
}

type statusResponse struct {
	Status  string       `json:"status"`
	Comment string       `json:"comment"`
	Result  []submission `json:"result"`
}

// HasSolvedToday reports whether handle has an accepted submission dated today in tzName.
// Every outcome other than Solved maps to false: a reminder that may be unnecessary is
// preferred over hiding an unsolved day behind an ambiguous answer.
func (c *Client) HasSolvedToday(ctx context.Context, handle, tzName string) bool {
	return c.Check(ctx, handle, tzName) == Solved
}

// Check fetches the newest submissions of handle and classifies them against today in tzName.
func (c *Client) Check(ctx context.Context, handle, tzName string) Result {
	if handle == "" {
		return NotSolved
	}
	loc := c.tz.Resolve(tzName)
	today := domain.LocalDate(c.now(), loc)

	resp, err := c.fetch(ctx, handle)
	if err != nil {
		var de *decodeError
		if errors.As(err, &de) {
			c.log.Warn("malformed feed response", zap.String("handle", handle), zap.Error(err))
			return Malformed
		}
		c.log.Warn("feed unavailable", zap.String("handle", handle), zap.Error(err))
		return Unavailable
	}
	if resp.Status != statusOK {
		c.log.Warn("feed reported failure",
			zap.String("handle", handle),
			zap.String("status", resp.Status),
			zap.String("comment", resp.Comment),
		)
		return Failed
	}

	for _, s := range resp.Result {
		if s.Verdict != verdictAccepted || s.CreationTimeSeconds == nil {
			continue
		}
		if domain.LocalDate(time.Unix(*s.CreationTimeSeconds, 0), loc) == today {
			return Solved
		}
	}
	return NotSolved
}

type decodeError struct{ err error }

func (e *decodeError) Error() string { return "decode: " + e.err.Error() }
func (e *decodeError) Unwrap() error { return e.err }

func (c *Client) fetch(ctx context.Context, handle string) (*statusResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	q := url.Values{}
	q.Set("handle", handle)
	q.Set("from", "1")
	q.Set("count", strconv.Itoa(c.cfg.Count))
	fullURL := c.cfg.BaseURL + "/user.status?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var out statusResponse
	if err := json.Unmarshal(body, &out); err != nil {
		// Codeforces answers bad handles with 400 and a JSON FAILED body, so only
		// an undecodable body on a non-200 status counts as unavailable.
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
		}
		return nil, &decodeError{err: err}
	}
	if out.Status == "" {
		return nil, &decodeError{err: errors.New("missing status field")}
	}
	// A FAILED body is an answer at any status; an OK body on a non-2xx is not.
	if resp.StatusCode/100 != 2 && out.Status == statusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return &out, nil
}
