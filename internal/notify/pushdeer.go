// Package notify sends push notifications through PushDeer.
package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

const (
	// DefaultURL is the public PushDeer endpoint.
	DefaultURL = "https://api2.pushdeer.com/message/push"
	// DefaultTimeout bounds a single push.
	DefaultTimeout = 15 * time.Second

	EnvKey = "PUSHDEER_KEY"
	EnvURL = "PUSHDEER_URL"
)

// ErrMissingKey is returned before any network call when no push key is set.
var ErrMissingKey = errors.New("missing PUSHDEER_KEY (set env or pass --pushkey)")

// Message is one push.
type Message struct {
	Text string
	Desp string
}

// PushDeer posts messages to a PushDeer server.
type PushDeer struct {
	Key    string
	URL    string
	Client *http.Client
}

// FromEnv builds a PushDeer from explicit overrides, falling back to
// PUSHDEER_KEY and PUSHDEER_URL, then DefaultURL.
func FromEnv(key, endpoint string) *PushDeer {
	return &PushDeer{
		Key: firstTrimmed(key, os.Getenv(EnvKey)),
		URL: firstTrimmed(endpoint, os.Getenv(EnvURL), DefaultURL),
	}
}

// Send posts msg as a text push. Single attempt, no retries; any non-2xx
// response is an error.
func (p *PushDeer) Send(ctx context.Context, msg Message) error {
	key := strings.TrimSpace(p.Key)
	if key == "" {
		return ErrMissingKey
	}
	endpoint := firstTrimmed(p.URL, DefaultURL)
	client := p.Client
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}

	form := url.Values{
		"pushkey": {key},
		"text":    {msg.Text},
		"desp":    {msg.Desp},
		"type":    {"text"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("notify: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("notify: send: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("notify: push failed: status %d", resp.StatusCode)
	}
	return nil
}

func firstTrimmed(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
