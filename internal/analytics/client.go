// Package analytics is a client for the prompt analytics API. It submits
// prompts, retrieves score time series, broadcasts prompts and fetches the
// resulting analysis records and ticker recommendations.
//
// Every call is a single request/response round trip: no retries, no
// caching, no pagination. Failures are returned to the caller unchanged.
package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/seenimoa/pianalytics/pkg/models"
)

// DefaultUserAgent is sent when Config.UserAgent is empty.
const DefaultUserAgent = "pianalytics/dev"

// API paths, relative to the base endpoint.
const (
	pathPrompts   = "/prompts"
	pathScores    = "/prompts/{prompt_id}/scores"
	pathBroadcast = "/prompts/broadcast"
	pathResults   = "/results/{prompt_id}"
)

// Config holds the construction-time settings of a Client.
type Config struct {
	// BaseURL is the API root, e.g. "https://pi.crunchdao.com/api". Required.
	BaseURL string

	// Timeout bounds each request at the transport level. Zero disables it.
	Timeout time.Duration

	UserAgent string

	// StrictPromptID turns a submission response without a prompt_id into
	// ErrMissingPromptID instead of an absent identifier.
	StrictPromptID bool

	Logger *zap.Logger
}

// Client talks to the analytics API. It holds no per-call state and is safe
// for concurrent use.
type Client struct {
	http    *resty.Client
	baseURL string
	strict  bool
	logger  *zap.Logger
}

// New builds a Client from cfg.
func New(cfg Config) (*Client, error) {
	base, err := normalizeBaseURL(cfg.BaseURL)
	if err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}

	rc := resty.New().
		SetBaseURL(base).
		SetTimeout(cfg.Timeout).
		SetRetryCount(0).
		SetHeader("User-Agent", ua).
		SetHeader("Accept", "application/json").
		SetLogger(logger.Named("resty").Sugar())

	return &Client{
		http:    rc,
		baseURL: base,
		strict:  cfg.StrictPromptID,
		logger:  logger,
	}, nil
}

// BaseURL returns the normalized API root the client targets.
func (c *Client) BaseURL() string { return c.baseURL }

// SubmitPrompt submits prompt text and returns the identifier the service
// assigned to it. A successful response without a prompt_id yields the
// absent identifier and no error, unless the client is strict.
func (c *Client) SubmitPrompt(ctx context.Context, prompt string) (models.PromptID, error) {
	return c.postPrompt(ctx, "submit prompt", pathPrompts, prompt)
}

// BroadcastPrompt submits prompt text to the broadcast pipeline. The returned
// identifier is later passed to GetAnalysisResults.
func (c *Client) BroadcastPrompt(ctx context.Context, prompt string) (models.PromptID, error) {
	return c.postPrompt(ctx, "broadcast prompt", pathBroadcast, prompt)
}

// GetScores returns the score time series for id exactly as the service sent
// it.
func (c *Client) GetScores(ctx context.Context, id models.PromptID) (*models.ScoreSeries, error) {
	const op = "get scores"
	if id.IsZero() {
		return nil, fmt.Errorf("%s: %w", op, ErrMissingPromptID)
	}
	var out models.ScoreSeries
	if err := c.do(ctx, op, http.MethodGet, pathScores, id, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetAnalysisResults returns the analysis records and recommended tickers for
// a broadcast prompt.
func (c *Client) GetAnalysisResults(ctx context.Context, id models.PromptID) (*models.AnalysisResult, error) {
	const op = "get analysis results"
	if id.IsZero() {
		return nil, fmt.Errorf("%s: %w", op, ErrMissingPromptID)
	}
	var out models.AnalysisResult
	if err := c.do(ctx, op, http.MethodGet, pathResults, id, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) postPrompt(ctx context.Context, op, path, prompt string) (models.PromptID, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", fmt.Errorf("%s: %w", op, ErrEmptyPrompt)
	}
	var out models.PromptResponse
	if err := c.do(ctx, op, http.MethodPost, path, "", models.PromptRequest{Prompt: prompt}, &out); err != nil {
		return "", err
	}
	if out.PromptID.IsZero() {
		if c.strict {
			return "", fmt.Errorf("%s: %w", op, ErrMissingPromptID)
		}
		c.logger.Warn("response carried no prompt_id", zap.String("op", op))
	}
	return out.PromptID, nil
}

// do sends one request and decodes a 2xx JSON body into out.
func (c *Client) do(ctx context.Context, op, method, path string, id models.PromptID, body, out any) error {
	req := c.http.R().SetContext(ctx)
	if !id.IsZero() {
		req.SetPathParam("prompt_id", id.String())
	}
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		// resty rewrites req.URL to the resolved URL before sending.
		target := req.URL
		if target == "" {
			target = path
		}
		return fmt.Errorf("%s: %s %s: %w", op, method, target, err)
	}

	c.logger.Debug("analytics request",
		zap.String("op", op),
		zap.String("method", method),
		zap.String("url", resp.Request.URL),
		zap.Int("status", resp.StatusCode()),
		zap.Duration("elapsed", resp.Time()),
	)

	if !resp.IsSuccess() {
		c.logger.Warn("analytics request failed",
			zap.String("op", op),
			zap.Int("status", resp.StatusCode()),
		)
		return &StatusError{
			Op:         op,
			StatusCode: resp.StatusCode(),
			Status:     reasonPhrase(resp),
			Body:       truncateBody(resp.Body()),
		}
	}

	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return &DecodeError{Op: op, Err: err}
	}
	return nil
}

// reasonPhrase returns the server's reason text without the leading code,
// or the standard text when the server sent none.
func reasonPhrase(resp *resty.Response) string {
	code := resp.StatusCode()
	reason := strings.TrimSpace(strings.TrimPrefix(resp.Status(), strconv.Itoa(code)))
	if reason == "" {
		reason = http.StatusText(code)
	}
	return reason
}

func normalizeBaseURL(raw string) (string, error) {
	raw = strings.TrimRight(strings.TrimSpace(raw), "/")
	if raw == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidBaseURL)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidBaseURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("%w: %q must be an absolute http(s) URL", ErrInvalidBaseURL, raw)
	}
	return raw, nil
}
