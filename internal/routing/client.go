package routing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrUnavailable covers transport failures and non-200 answers.
	ErrUnavailable = errors.New("routing service unavailable")
	// ErrEmptyRoute means the service answered but found no path.
	ErrEmptyRoute = errors.New("no path found")
)

const (
	defaultTimeout = 10 * time.Second
	defaultBackoff = 500 * time.Millisecond
)

// Request is the path planning query.
type Request struct {
	StartID       int     `json:"start_id"`
	GoalID        int     `json:"goal_id"`
	InterestNodes []int   `json:"interest_nodes"`
	Profile       Profile `json:"footprint_type"`
}

type response struct {
	Path []int `json:"path"`
}

// Result is an ordered list of node ids from start to goal. An empty list
// means no path exists.
type Result struct {
	Nodes []int
}

func (r Result) Empty() bool { return len(r.Nodes) == 0 }

type Config struct {
	URL     string
	Timeout time.Duration
	Retries int
	Backoff time.Duration
}

type Client struct {
	url     string
	http    *http.Client
	retries int
	backoff time.Duration
	log     *slog.Logger
}

func NewClient(cfg Config, log *slog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = defaultBackoff
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	return &Client{
		url:     cfg.URL,
		http:    &http.Client{Timeout: cfg.Timeout},
		retries: cfg.Retries,
		backoff: cfg.Backoff,
		log:     log,
	}
}

// Route asks the service for a path. Transport errors and 5xx answers are
// retried; every failure is reported wrapped in ErrUnavailable.
func (c *Client) Route(ctx context.Context, req Request) (Result, error) {
	if req.InterestNodes == nil {
		req.InterestNodes = []int{}
	}
	if req.Profile == "" {
		req.Profile = ProfileDefault
	}
	body, err := json.Marshal(req)
	if err != nil {
		return Result{}, fmt.Errorf("encoding route request: %w", err)
	}

	requestID := uuid.NewString()
	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return Result{}, fmt.Errorf("%w: %w", ErrUnavailable, ctx.Err())
			case <-time.After(time.Duration(attempt) * c.backoff):
			}
		}

		res, retry, err := c.do(ctx, body, requestID)
		if err == nil {
			c.log.Info("route received",
				"request_id", requestID,
				"start", req.StartID,
				"goal", req.GoalID,
				"profile", req.Profile,
				"nodes", len(res.Nodes),
			)
			return res, nil
		}
		lastErr = err
		c.log.Warn("route request failed",
			"request_id", requestID,
			"attempt", attempt+1,
			"err", err,
		)
		if !retry {
			break
		}
	}
	return Result{}, fmt.Errorf("%w: %w", ErrUnavailable, lastErr)
}

func (c *Client) do(ctx context.Context, body []byte, requestID string) (Result, bool, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return Result{}, false, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Request-ID", requestID)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return Result{}, ctx.Err() == nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		if _, err := io.Copy(io.Discard, resp.Body); err != nil {
			c.log.Debug("draining route response", "status", resp.StatusCode, "err", err)
		}
		return Result{}, resp.StatusCode >= 500, fmt.Errorf("status %d", resp.StatusCode)
	}

	var out response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Result{}, false, fmt.Errorf("decoding route response: %w", err)
	}
	if out.Path == nil {
		out.Path = []int{}
	}
	return Result{Nodes: out.Path}, false, nil
}
