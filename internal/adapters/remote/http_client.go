package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"timekeeper/internal/domain"
	"timekeeper/internal/ports"
)

// ClientOptions configures the HTTP remote store
type ClientOptions struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// HTTPRemoteStore talks JSON to the backend sync API. Transient failures
// (timeouts, 429, 5xx) retry in-process with exponential backoff; anything
// still failing is returned to the caller, whose durable queue owns the
// long retry.
type HTTPRemoteStore struct {
	baseDelay  time.Duration
	baseURL    string
	httpClient *http.Client
	maxDelay   time.Duration
	maxRetries int
	token      string
}

var _ ports.RemoteStore = (*HTTPRemoteStore)(nil)

// NewHTTPRemoteStore creates a new HTTPRemoteStore
func NewHTTPRemoteStore(opts ClientOptions) *HTTPRemoteStore {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 20 * time.Second}
	}
	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	baseDelay := opts.BaseDelay
	if baseDelay <= 0 {
		baseDelay = 100 * time.Millisecond
	}
	maxDelay := opts.MaxDelay
	if maxDelay <= 0 {
		maxDelay = 2 * time.Second
	}
	return &HTTPRemoteStore{
		baseDelay:  baseDelay,
		baseURL:    strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/"),
		httpClient: httpClient,
		maxDelay:   maxDelay,
		maxRetries: maxRetries,
		token:      strings.TrimSpace(opts.Token),
	}
}

// PushSessions uploads local session records
func (c *HTTPRemoteStore) PushSessions(ctx context.Context, sessions []domain.WorkSession) error {
	return c.do(ctx, http.MethodPost, "/v1/sessions/batch", sessions, nil)
}

// PushSummaries uploads local day summaries
func (c *HTTPRemoteStore) PushSummaries(ctx context.Context, summaries []domain.DaySummary) error {
	return c.do(ctx, http.MethodPost, "/v1/summaries/batch", summaries, nil)
}

// PullChanges fetches records changed remotely since the sync watermark
func (c *HTTPRemoteStore) PullChanges(ctx context.Context, userID string, since domain.SyncState) (*domain.RemoteChanges, error) {
	path := fmt.Sprintf("/v1/changes?user_id=%s&since=%s",
		url.QueryEscape(userID),
		url.QueryEscape(since.LastSyncedAt.UTC().Format(time.RFC3339)))

	var changes domain.RemoteChanges
	if err := c.do(ctx, http.MethodGet, path, nil, &changes); err != nil {
		return nil, err
	}
	return &changes, nil
}

func (c *HTTPRemoteStore) do(ctx context.Context, method, path string, payload, out any) error {
	if c.baseURL == "" {
		return fmt.Errorf("sync backend URL is not configured")
	}

	var bodyBytes []byte
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		bodyBytes = data
	}
	fullURL := c.baseURL + path

	for attempt := 0; ; attempt++ {
		var body io.Reader
		if bodyBytes != nil {
			body = bytes.NewReader(bodyBytes)
		}
		req, err := http.NewRequestWithContext(ctx, method, fullURL, body)
		if err != nil {
			return err
		}
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if attempt < c.maxRetries {
				if waitErr := sleepContext(ctx, c.retryDelay(attempt+1, "")); waitErr != nil {
					return waitErr
				}
				continue
			}
			return err
		}

		respBody, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			return readErr
		}

		if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
			if out == nil {
				return nil
			}
			if err := json.Unmarshal(respBody, out); err != nil {
				return fmt.Errorf("invalid response from sync backend: %w", err)
			}
			return nil
		}

		if (resp.StatusCode == http.StatusTooManyRequests || (resp.StatusCode >= 500 && resp.StatusCode <= 599)) && attempt < c.maxRetries {
			if waitErr := sleepContext(ctx, c.retryDelay(attempt+1, resp.Header.Get("Retry-After"))); waitErr != nil {
				return waitErr
			}
			continue
		}

		message := strings.TrimSpace(string(respBody))
		var parsed map[string]any
		if json.Unmarshal(respBody, &parsed) == nil {
			if m, ok := parsed["message"].(string); ok && strings.TrimSpace(m) != "" {
				message = m
			}
		}
		return fmt.Errorf("sync request failed: status=%d message=%s", resp.StatusCode, message)
	}
}

func (c *HTTPRemoteStore) retryDelay(attempt int, retryAfterHeader string) time.Duration {
	if retryAfter := parseRetryAfterSeconds(retryAfterHeader); retryAfter > 0 {
		if retryAfter > c.maxDelay {
			return c.maxDelay
		}
		return retryAfter
	}
	delay := c.baseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= c.maxDelay {
			return c.maxDelay
		}
	}
	return delay
}

func parseRetryAfterSeconds(header string) time.Duration {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0
	}
	seconds, err := strconv.Atoi(header)
	if err != nil || seconds < 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

func sleepContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
