package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/fekuna/omnipos-sync/internal/logger"
	"go.uber.org/zap"
)

const maxErrorBody = 512

type httpClient struct {
	cfg    Config
	http   *http.Client
	logger logger.ZapLogger
}

// NewHTTPClient builds the remote client. Timeouts are applied per request
// through the context, so hc should carry none of its own.
func NewHTTPClient(cfg Config, hc *http.Client, log logger.ZapLogger) Client {
	if hc == nil {
		hc = &http.Client{}
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 300
	}
	if cfg.MaxPageRetries <= 0 {
		cfg.MaxPageRetries = 8
	}
	if cfg.PageBackoffInitial <= 0 {
		cfg.PageBackoffInitial = 2 * time.Second
	}
	if cfg.PageBackoffMax <= 0 {
		cfg.PageBackoffMax = 60 * time.Second
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 400 * time.Millisecond
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	return &httpClient{cfg: cfg, http: hc, logger: log}
}

func (c *httpClient) Push(ctx context.Context, deviceID string, ops []Op) (*PushResponse, error) {
	if c.cfg.URL == "" {
		return nil, &TransportError{Op: "push", Err: ErrNotConfigured}
	}

	body, err := json.Marshal(pushRequest{Action: "batchPush", DeviceID: deviceID, Ops: ops})
	if err != nil {
		return nil, fmt.Errorf("failed to encode push batch: %w", err)
	}

	timeout := c.cfg.PushTimeout
	if timeout <= 0 {
		timeout = 9 * time.Second
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var resp PushResponse
	if err := c.do(req, "push", &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return &resp, &RejectionError{Op: "push", Message: orDefault(resp.Error, "success=false")}
	}
	return &resp, nil
}

func (c *httpClient) Pull(ctx context.Context, req *PullRequest) (*PullResponse, error) {
	if c.cfg.URL == "" {
		return nil, &TransportError{Op: "pull " + req.Entity, Err: ErrNotConfigured}
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(c.cfg.RetryDelay), uint64(c.cfg.Retries)),
		ctx,
	)
	return c.pullWithRetry(ctx, req, policy)
}

func (c *httpClient) PullAll(ctx context.Context, req *PullRequest) ([]Row, error) {
	if c.cfg.URL == "" {
		return nil, &TransportError{Op: "pull " + req.Entity, Err: ErrNotConfigured}
	}

	page := *req
	if page.Limit <= 0 {
		page.Limit = c.cfg.PageSize
	}

	var all []Row
	for pageNum := 1; ; pageNum++ {
		resp, err := c.pullWithRetry(ctx, &page, c.pageBackoff(ctx))
		if err != nil {
			c.logger.Error("Paged pull stopped",
				zap.String("entity", page.Entity),
				zap.Int("page", pageNum),
				zap.String("cursor", page.Cursor),
				zap.Int("rows_fetched", len(all)),
				zap.Error(err),
			)
			return nil, err
		}

		all = append(all, resp.Data...)
		c.logger.Debug("Pulled page",
			zap.String("entity", page.Entity),
			zap.Int("page", pageNum),
			zap.Int("rows", len(resp.Data)),
			zap.Int("total", len(all)),
		)

		next := string(resp.NextCursor)
		if resp.Done || next == "" {
			return all, nil
		}
		page.Cursor = next
	}
}

// pageBackoff waits min(max, initial × 1.6^n) between attempts at one page.
func (c *httpClient) pageBackoff(ctx context.Context) backoff.BackOffContext {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Duration(float64(c.cfg.PageBackoffInitial) * 1.6)
	b.Multiplier = 1.6
	b.RandomizationFactor = 0
	b.MaxInterval = c.cfg.PageBackoffMax
	b.MaxElapsedTime = 0
	b.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.cfg.MaxPageRetries-1)), ctx)
}

func (c *httpClient) pullWithRetry(ctx context.Context, req *PullRequest, policy backoff.BackOff) (*PullResponse, error) {
	var out *PullResponse
	attempt := 0

	operation := func() error {
		attempt++
		resp, err := c.pullOnce(ctx, req)
		if err != nil {
			if IsTransport(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		out = resp
		return nil
	}
	notify := func(err error, wait time.Duration) {
		c.logger.Warn("Pull failed, retrying",
			zap.String("entity", req.Entity),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	}

	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *httpClient) pullOnce(ctx context.Context, req *PullRequest) (*PullResponse, error) {
	q := url.Values{}
	q.Set("entity", req.Entity)
	q.Set("since", formatSince(req.Since))
	if req.Full || req.Cursor != "" || req.Limit > 0 {
		if req.Full {
			q.Set("full", "1")
		}
		if req.Cursor != "" {
			q.Set("cursor", req.Cursor)
		}
		limit := req.Limit
		if limit <= 0 {
			limit = c.cfg.PageSize
		}
		q.Set("limit", formatLimit(limit))
		if req.UnitLevel != "" {
			q.Set("unit_level", string(req.UnitLevel))
		}
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.cfg.timeoutFor(req.Entity))
	defer cancel()

	httpReq, err := http.NewRequestWithContext(reqCtx, http.MethodGet, c.cfg.URL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build pull request: %w", err)
	}

	op := "pull " + req.Entity
	var resp PullResponse
	if err := c.do(httpReq, op, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, &RejectionError{Op: op, Message: orDefault(resp.Error, "success=false")}
	}
	return &resp, nil
}

func (c *httpClient) Ping(ctx context.Context) error {
	if c.cfg.URL == "" {
		return &TransportError{Op: "ping", Err: ErrNotConfigured}
	}

	timeout := c.cfg.ProbeTimeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, c.cfg.URL+"?entity=test", nil)
	if err != nil {
		return err
	}
	res, err := c.http.Do(req)
	if err != nil {
		return &TransportError{Op: "ping", Err: err}
	}
	defer res.Body.Close()
	_, _ = io.Copy(io.Discard, res.Body)

	if res.StatusCode >= http.StatusInternalServerError {
		return &TransportError{Op: "ping", StatusCode: res.StatusCode, Err: errors.New(res.Status)}
	}
	return nil
}

// do sends req and decodes a JSON body into out, classifying failures.
func (c *httpClient) do(req *http.Request, op string, out any) error {
	res, err := c.http.Do(req)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	defer res.Body.Close()

	switch {
	case res.StatusCode >= http.StatusInternalServerError:
		return &TransportError{Op: op, StatusCode: res.StatusCode, Err: errors.New(readSnippet(res.Body))}
	case res.StatusCode >= http.StatusBadRequest:
		return &RejectionError{Op: op, StatusCode: res.StatusCode, Message: readSnippet(res.Body)}
	}

	dec := json.NewDecoder(res.Body)
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		// Non-JSON bodies come from proxies and login pages, not from the ledger.
		return &TransportError{Op: op, StatusCode: res.StatusCode, Err: fmt.Errorf("invalid response body: %w", err)}
	}
	return nil
}

func readSnippet(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, maxErrorBody))
	return string(bytes.TrimSpace(b))
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
