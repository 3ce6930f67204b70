package drive

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand/v2"
	"net/http"
	"strconv"
	"time"
)

// DefaultBaseURL is the production Google Drive v3 REST API endpoint.
const DefaultBaseURL = "https://www.googleapis.com/drive/v3"

// DefaultUploadBaseURL is the production Drive v3 upload endpoint used for
// multipart content uploads.
const DefaultUploadBaseURL = "https://www.googleapis.com/upload/drive/v3"

const (
	maxRetries     = 5
	baseBackoff    = 1 * time.Second
	maxBackoff     = 60 * time.Second
	backoffFactor  = 2.0
	jitterFraction = 0.25
	userAgent      = "gdrive-dormouse/0.1"
)

// TokenSource provides OAuth2 bearer tokens.
type TokenSource interface {
	Token() (string, error)
}

// httpClient is an HTTP client for the Google Drive API. It handles request
// construction, authentication, retry with exponential backoff, and error
// classification.
type httpClient struct {
	baseURL    string
	uploadURL  string
	httpClient *http.Client
	token      TokenSource
	logger     *slog.Logger

	// sleepFunc is called to wait between retries. Tests override it to
	// avoid real delays.
	sleepFunc func(ctx context.Context, d time.Duration) error
}

func newHTTPClient(baseURL, uploadURL string, hc *http.Client, token TokenSource, logger *slog.Logger) *httpClient {
	if logger == nil {
		logger = slog.Default()
	}

	if hc == nil {
		hc = http.DefaultClient
	}

	return &httpClient{
		baseURL:    baseURL,
		uploadURL:  uploadURL,
		httpClient: hc,
		token:      token,
		logger:     logger,
		sleepFunc:  timeSleep,
	}
}

// do executes an authenticated HTTP request against base with automatic
// retry on transient errors. The caller closes the response body on
// success. An HTTP error status is returned as a *APIError wrapping a
// sentinel; network, token and cancellation failures are returned as
// wrapped errors instead.
func (c *httpClient) do(ctx context.Context, method, base, path string, body io.Reader, contentType string) (*http.Response, error) {
	url := base + path

	var attempt int

	for {
		if err := rewindBody(body); err != nil {
			return nil, err
		}

		resp, err := c.doOnce(ctx, method, url, body, contentType)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("drive: request canceled: %w", ctx.Err())
			}

			if attempt < maxRetries {
				backoff := c.calcBackoff(attempt)
				c.logger.Warn("retrying after network error",
					slog.String("method", method),
					slog.String("path", path),
					slog.Int("attempt", attempt+1),
					slog.Duration("backoff", backoff),
					slog.String("error", err.Error()),
				)

				if sleepErr := c.sleepFunc(ctx, backoff); sleepErr != nil {
					return nil, fmt.Errorf("drive: request canceled: %w", sleepErr)
				}

				attempt++

				continue
			}

			return nil, fmt.Errorf("drive: %s %s failed after %d retries: %w", method, path, maxRetries, err)
		}

		if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
			c.logger.Debug("request succeeded",
				slog.String("method", method),
				slog.String("path", path),
				slog.Int("status", resp.StatusCode),
			)

			return resp, nil
		}

		errBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		if readErr != nil {
			errBody = []byte("(failed to read response body)")
		}

		if isRetryable(resp.StatusCode) && attempt < maxRetries {
			backoff := c.retryBackoff(resp, attempt)
			c.logger.Warn("retrying after HTTP error",
				slog.String("method", method),
				slog.String("path", path),
				slog.Int("status", resp.StatusCode),
				slog.Int("attempt", attempt+1),
				slog.Duration("backoff", backoff),
			)

			if err := c.sleepFunc(ctx, backoff); err != nil {
				return nil, fmt.Errorf("drive: request canceled: %w", err)
			}

			attempt++

			continue
		}

		return nil, c.terminalError(method, path, resp.StatusCode, errBody, attempt)
	}
}

func (c *httpClient) doOnce(ctx context.Context, method, url string, body io.Reader, contentType string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	tok, err := c.token.Token()
	if err != nil {
		return nil, fmt.Errorf("obtaining token: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+tok)
	req.Header.Set("User-Agent", userAgent)

	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("HTTP request failed",
			slog.String("method", method),
			slog.String("url", url),
			slog.String("error", err.Error()),
		)

		return nil, err
	}

	return resp, nil
}

func (c *httpClient) terminalError(method, path string, statusCode int, body []byte, attempt int) *APIError {
	apiErr := &APIError{
		StatusCode: statusCode,
		Message:    string(body),
		Err:        classifyStatus(statusCode),
	}

	if attempt > 0 {
		c.logger.Error("request failed after retries",
			slog.String("method", method),
			slog.String("path", path),
			slog.Int("status", statusCode),
			slog.Int("attempts", attempt+1),
		)
	} else {
		c.logger.Warn("request failed",
			slog.String("method", method),
			slog.String("path", path),
			slog.Int("status", statusCode),
		)
	}

	return apiErr
}

func (c *httpClient) retryBackoff(resp *http.Response, attempt int) time.Duration {
	if resp.StatusCode == http.StatusTooManyRequests {
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if seconds, err := strconv.Atoi(ra); err == nil && seconds > 0 {
				return time.Duration(seconds) * time.Second
			}
		}
	}

	return c.calcBackoff(attempt)
}

func (c *httpClient) calcBackoff(attempt int) time.Duration {
	backoff := float64(baseBackoff) * math.Pow(backoffFactor, float64(attempt))
	if backoff > float64(maxBackoff) {
		backoff = float64(maxBackoff)
	}

	jitter := backoff * jitterFraction * (rand.Float64()*2 - 1) //nolint:gosec // jitter does not need crypto rand
	backoff += jitter

	return time.Duration(backoff)
}

func rewindBody(body io.Reader) error {
	if body == nil {
		return nil
	}

	if seeker, ok := body.(io.Seeker); ok {
		if _, err := seeker.Seek(0, io.SeekStart); err != nil {
			return fmt.Errorf("drive: rewinding request body for retry: %w", err)
		}
	}

	return nil
}

func timeSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
