package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultTimeout bounds a single webhook call.
const DefaultTimeout = 10 * time.Second

// maxErrorBody caps how much of a failed response is kept in the error.
const maxErrorBody = 512

// WebhookDeliverer delivers reminders as HTTP GET requests. Each call is
// attempted once; the next scheduled pass is the retry.
type WebhookDeliverer struct {
	httpClient *http.Client
}

// NewWebhookDeliverer creates a deliverer whose requests time out after
// timeout (DefaultTimeout when zero).
func NewWebhookDeliverer(timeout time.Duration) *WebhookDeliverer {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &WebhookDeliverer{
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Deliver implements Deliverer. Any 2xx response counts as success.
func (w *WebhookDeliverer) Deliver(ctx context.Context, endpoint, title, body string) error {
	target := BuildWebhookURL(endpoint, title, body)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("creating webhook request: %w", err)
	}

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("calling webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("webhook returned %d: %s",
			resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// BuildWebhookURL fills the {title} and {body} placeholders of endpoint
// with URL-encoded values. When endpoint has no {title} placeholder the
// values are appended as title and body query parameters instead.
func BuildWebhookURL(endpoint, title, body string) string {
	encTitle := encodeComponent(title)
	encBody := encodeComponent(body)

	if !strings.Contains(endpoint, "{title}") {
		endpoint = strings.ReplaceAll(endpoint, "{body}", encBody)
		sep := "?"
		if strings.Contains(endpoint, "?") {
			sep = "&"
		}
		return endpoint + sep + "title=" + encTitle + "&body=" + encBody
	}

	endpoint = strings.ReplaceAll(endpoint, "{title}", encTitle)
	return strings.ReplaceAll(endpoint, "{body}", encBody)
}

// encodeComponent percent-encodes s for use inside a path segment or a
// query value. Spaces become %20 so the result is valid in both places.
func encodeComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
