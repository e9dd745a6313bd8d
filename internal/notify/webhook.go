package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/andymarkow/cybexchange/internal/httpclient"
	"github.com/go-resty/resty/v2"
)

var _ Sender = (*WebhookSender)(nil)

var ErrWebhookRejected = errors.New("webhook rejected notification")

// WebhookSender posts notifications as JSON to an external delivery service.
type WebhookSender struct {
	client *resty.Client
	url    string
}

func NewWebhookSender(url string, client *resty.Client) *WebhookSender {
	if client == nil {
		client = httpclient.New()
	}

	return &WebhookSender{
		client: client,
		url:    url,
	}
}

func (s *WebhookSender) Send(ctx context.Context, n Notification) error {
	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(n).
		Post(s.url)
	if err != nil {
		return fmt.Errorf("client.R: %w", err)
	}

	if resp.IsError() {
		return fmt.Errorf("%w: status %d", ErrWebhookRejected, resp.StatusCode())
	}

	return nil
}

func (s *WebhookSender) Close() error {
	return nil
}
