package notify

import (
	"context"
	"fmt"
	"time"

	"resty.dev/v3"

	"nfse-pipeline/pkg/logger"
)

type WebhookPayload struct {
	SaleID   string `json:"saleId"`
	Protocol string `json:"protocol"`
	Status   string `json:"status"`
}

// WebhookSender POSTs terminal success notifications to an operator-configured
// URL. An unset URL is a silent no-op. There is no retry; the caller logs and
// swallows any returned error.
type WebhookSender struct {
	http   *resty.Client
	url    string
	logger *logger.Logger
}

func NewWebhookSender(url string, timeout time.Duration, log *logger.Logger) *WebhookSender {
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &WebhookSender{
		http:   resty.New().SetTimeout(timeout),
		url:    url,
		logger: log,
	}
}

func (w *WebhookSender) Send(ctx context.Context, payload WebhookPayload) error {
	if w.url == "" {
		w.logger.Debug(ctx, "Webhook URL not configured, skipping",
			"sale_id", payload.SaleID,
		)
		return nil
	}

	resp, err := w.http.R().
		SetContext(ctx).
		SetBody(payload).
		Post(w.url)
	if err != nil {
		return fmt.Errorf("webhook delivery: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("webhook endpoint returned status %d", resp.StatusCode())
	}

	w.logger.Info(ctx, "Webhook delivered",
		"sale_id", payload.SaleID,
	)
	return nil
}

func (w *WebhookSender) Close() error {
	return w.http.Close()
}
