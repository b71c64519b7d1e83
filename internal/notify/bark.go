package notify

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// BarkNotifier pushes notifications to a Bark endpoint.
type BarkNotifier struct {
	baseURL string
	client  *http.Client
}

// NewBarkNotifier creates a new Bark notifier.
func NewBarkNotifier(baseURL string) (*BarkNotifier, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("bark url is empty")
	}
	return &BarkNotifier{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}, nil
}

func (b *BarkNotifier) Send(ctx context.Context, title, body string) error {
	form := url.Values{}
	form.Set("title", title)
	form.Set("body", body)
	form.Set("group", "lockcycled")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL, nil)
	if err != nil {
		return fmt.Errorf("create bark request: %w", err)
	}
	req.URL.RawQuery = form.Encode()

	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("send bark notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("bark api returned status: %d", resp.StatusCode)
	}
	return nil
}
