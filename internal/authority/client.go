// Package authority talks to the prefeitura NFS-e endpoint. Transport
// failures are retried with exponential backoff inside a single Submit call;
// a structured rejection from the authority is definitive and never retried.
package authority

import (
	"context"
	"fmt"
	"time"

	"resty.dev/v3"

	"nfse-pipeline/pkg/logger"
	"nfse-pipeline/pkg/retry"
)

type Result struct {
	Success  bool   `json:"success"`
	Protocol string `json:"protocol,omitempty"`
	Error    string `json:"error,omitempty"`
}

type submitRequest struct {
	XML    string `json:"xml"`
	SaleID string `json:"saleId"`
}

type Config struct {
	BaseURL     string
	Timeout     time.Duration
	MaxAttempts int
}

type Client struct {
	http        *resty.Client
	baseURL     string
	maxAttempts int
	baseBackoff time.Duration
	logger      *logger.Logger
}

func NewClient(cfg Config, log *logger.Logger) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = 3
	}

	httpClient := resty.New().SetTimeout(cfg.Timeout)

	return &Client{
		http:        httpClient,
		baseURL:     cfg.BaseURL,
		maxAttempts: cfg.MaxAttempts,
		baseBackoff: 2 * time.Second,
		logger:      log,
	}
}

// Submit posts the signed document to the authority. The returned error is
// non-nil only when every attempt failed at the transport level; the caller
// treats that as transient. A rejection comes back as a Result with
// Success=false and a nil error.
func (c *Client) Submit(ctx context.Context, signedXML, saleID string) (*Result, error) {
	var result *Result
	attempt := 0

	err := retry.Do(ctx, func() error {
		attempt++

		res := &Result{}
		resp, err := c.http.R().
			SetContext(ctx).
			SetBody(submitRequest{XML: signedXML, SaleID: saleID}).
			SetResult(res).
			SetError(res).
			Post(c.baseURL + "/nfse/emitir")
		if err != nil {
			c.logger.Warn(ctx, "Prefeitura call failed, will retry",
				"sale_id", saleID,
				"attempt", attempt,
				"error", err,
			)
			return fmt.Errorf("prefeitura request: %w", err)
		}

		if resp.IsError() {
			// The authority answered; this is a business rejection,
			// not a reason to retry.
			res.Success = false
			if res.Error == "" {
				res.Error = "Prefeitura returned error"
			}
		}

		result = res
		return nil
	},
		retry.WithMaxAttempts(c.maxAttempts),
		retry.WithBaseDelay(c.baseBackoff),
	)
	if err != nil {
		return nil, fmt.Errorf("prefeitura unreachable: %w", err)
	}

	return result, nil
}

func (c *Client) Close() error {
	return c.http.Close()
}
