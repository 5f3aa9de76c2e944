package clients

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"farm_telemetry/config"
	"farm_telemetry/internal/models"

	"github.com/go-resty/resty/v2"
)

var ErrNotifyRejected = errors.New("notification rejected")

// WebhookNotifier delivers notifications to an HTTP endpoint.
type WebhookNotifier struct {
	client *resty.Client
}

type authorizeResponse struct {
	Granted bool `json:"granted"`
}

func NewWebhookNotifier(conf config.NotifyConfig) *WebhookNotifier {
	client := resty.New().
		SetBaseURL(conf.URL).
		SetTimeout(10 * time.Second)
	if conf.Token != "" {
		client.SetAuthToken(conf.Token)
	}
	return &WebhookNotifier{client: client}
}

// RequestPermission asks the endpoint whether notifications may be shown.
func (n *WebhookNotifier) RequestPermission(ctx context.Context) (bool, error) {
	var out authorizeResponse
	resp, err := n.client.R().SetContext(ctx).SetResult(&out).Post("/authorize")
	if err != nil {
		return false, fmt.Errorf("request notification permission: %w", err)
	}
	if resp.StatusCode() == http.StatusForbidden {
		return false, nil
	}
	if resp.IsError() {
		return false, fmt.Errorf("authorize: status %d: %s", resp.StatusCode(), resp.String())
	}
	return out.Granted, nil
}

func (n *WebhookNotifier) Show(ctx context.Context, note models.Notification) error {
	resp, err := n.client.R().SetContext(ctx).SetBody(note).Post("/notify")
	if err != nil {
		return fmt.Errorf("send notification %s: %w", note.Tag, err)
	}
	if resp.IsError() {
		return fmt.Errorf("%w: %s status %d", ErrNotifyRejected, note.Tag, resp.StatusCode())
	}
	return nil
}
