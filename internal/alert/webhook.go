package alert

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"
)

const requestTimeout = 5 * time.Second

var httpClient = &http.Client{Timeout: requestTimeout}

// Send posts an alert event to a webhook endpoint. Single attempt: retries
// belong to whatever scheduler wraps the run.
func Send(ctx context.Context, cfg AlertConfig, event AlertEvent) error {
	body, err := FormatPayload(cfg.Format, event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range cfg.Headers {
		req.Header.Set(k, v)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request: %w", err)
	}
	resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook rejected: HTTP %d", resp.StatusCode)
	}
	return nil
}
