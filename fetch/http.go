package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"bid-analytics/models"
	"bid-analytics/utils"
)

// maxBodyBytes bounds a single payload.
const maxBodyBytes = 64 << 20

// HTTPFetcher retrieves sources over HTTP(S). Non-2xx responses become
// RetrievalErrors carrying the status code. Server errors and transport
// failures are retried when MaxAttempts > 1; client errors never are.
type HTTPFetcher struct {
	client *http.Client
	retry  *utils.RetryConfig
	logger *utils.Logger
}

// NewHTTPFetcher creates an HTTPFetcher with a per-request timeout.
func NewHTTPFetcher(timeout time.Duration, maxAttempts int, logger *utils.Logger) *HTTPFetcher {
	return &HTTPFetcher{
		client: &http.Client{Timeout: timeout},
		retry: &utils.RetryConfig{
			MaxAttempts: maxAttempts,
			BaseDelay:   500 * time.Millisecond,
			Logger:      logger,
			Retryable:   retryable,
		},
		logger: logger,
	}
}

// Fetch implements Fetcher.
func (h *HTTPFetcher) Fetch(ctx context.Context, sourceID string) ([]byte, error) {
	var body []byte
	err := h.retry.Do(ctx, "fetch "+sourceID, func() error {
		var err error
		body, err = h.get(ctx, sourceID)
		return err
	})
	if err != nil {
		var re *models.RetrievalError
		if errors.As(err, &re) {
			return nil, re
		}
		return nil, &models.RetrievalError{SourceID: sourceID, Err: err}
	}
	return body, nil
}

func (h *HTTPFetcher) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &models.RetrievalError{SourceID: url, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, &models.RetrievalError{SourceID: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &models.RetrievalError{SourceID: url, StatusCode: resp.StatusCode}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return nil, &models.RetrievalError{SourceID: url, StatusCode: resp.StatusCode, Err: err}
	}
	if len(data) > maxBodyBytes {
		return nil, &models.RetrievalError{SourceID: url, StatusCode: resp.StatusCode,
			Err: fmt.Errorf("body exceeds %d bytes", maxBodyBytes)}
	}
	h.logger.Debug("[fetch] GET %s: %d bytes", url, len(data))
	return data, nil
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var re *models.RetrievalError
	if errors.As(err, &re) && re.StatusCode != 0 {
		return re.StatusCode >= 500
	}
	return true
}
