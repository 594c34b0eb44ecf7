// Package processor drives a sale from PROCESSING to a terminal state:
// lock, idempotency re-read, document build, optional signing, authority
// submission, terminal persistence, and post-commit fan-out. It implements
// the queue consumer contract: returning an error asks the queue to
// redeliver, returning nil acks the job.
package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"nfse-pipeline/internal/authority"
	"nfse-pipeline/internal/domain"
	"nfse-pipeline/internal/invoice"
	"nfse-pipeline/internal/lock"
	"nfse-pipeline/internal/notify"
	"nfse-pipeline/internal/queue"
	"nfse-pipeline/internal/signing"
	"nfse-pipeline/pkg/logger"
)

type Signer interface {
	Sign(xml string, cert *domain.Certificate) (string, error)
}

type AuthorityClient interface {
	Submit(ctx context.Context, signedXML, saleID string) (*authority.Result, error)
}

type Webhook interface {
	Send(ctx context.Context, payload notify.WebhookPayload) error
}

type Processor struct {
	repo      domain.Repository
	locker    lock.Locker
	signer    Signer
	authority AuthorityClient
	broker    notify.Broker
	webhook   Webhook
	logger    *logger.Logger
}

func New(
	repo domain.Repository,
	locker lock.Locker,
	signer Signer,
	authorityClient AuthorityClient,
	broker notify.Broker,
	webhook Webhook,
	log *logger.Logger,
) *Processor {
	return &Processor{
		repo:      repo,
		locker:    locker,
		signer:    signer,
		authority: authorityClient,
		broker:    broker,
		webhook:   webhook,
		logger:    log,
	}
}

// Consume handles one queue delivery for a sale.
func (p *Processor) Consume(ctx context.Context, job queue.Job) error {
	acquired, err := p.locker.Acquire(ctx, job.SaleID)
	if err != nil {
		// Lock backend unreachable; let the queue retry later.
		return fmt.Errorf("acquire sale lock: %w", err)
	}
	if !acquired {
		p.logger.Info(ctx, "Sale lock held by another attempt, skipping",
			"sale_id", job.SaleID,
		)
		return nil
	}
	defer p.locker.Release(context.WithoutCancel(ctx), job.SaleID)

	// Re-read authoritative state after taking the lock; never trust
	// anything captured before it.
	sale, err := p.repo.GetSale(ctx, job.SaleID)
	if errors.Is(err, domain.ErrSaleNotFound) {
		p.logger.Error(ctx, "Sale not found, dropping job",
			"sale_id", job.SaleID,
		)
		return nil
	}
	if err != nil {
		return fmt.Errorf("read sale: %w", err)
	}

	if sale.Status != domain.SaleStatusProcessing {
		p.logger.Info(ctx, "Sale already resolved, skipping",
			"sale_id", sale.ID,
			"status", sale.Status,
		)
		return nil
	}

	err = p.process(ctx, sale)
	if err == nil {
		return nil
	}

	if domain.IsTransient(err) {
		p.logger.Warn(ctx, "Transient failure, sale left for redelivery",
			"sale_id", sale.ID,
			"error", err,
		)
		return err
	}

	return p.failSale(ctx, sale.ID, err.Error())
}

func (p *Processor) process(ctx context.Context, sale *domain.Sale) error {
	xml := invoice.Generate(sale)

	var signedXML string
	cert, err := p.repo.LatestCertificate(ctx, sale.UserID)
	switch {
	case errors.Is(err, domain.ErrNoCertificate):
		// No credential configured is a policy fallback, not an error.
		p.logger.Info(ctx, "No certificate for user, submitting unsigned",
			"sale_id", sale.ID,
			"user_id", sale.UserID,
		)
		signedXML = signing.MarkUnsigned(xml)
	case err != nil:
		return domain.Transient(fmt.Errorf("read certificate: %w", err))
	default:
		signedXML, err = p.signer.Sign(xml, cert)
		if err != nil {
			return domain.Permanent(err)
		}
	}

	result, err := p.authority.Submit(ctx, signedXML, sale.ID)
	if err != nil {
		return domain.Transient(err)
	}

	if !result.Success {
		reason := result.Error
		if reason == "" {
			reason = "Prefeitura rejected the invoice"
		}
		return domain.Permanent(errors.New(reason))
	}

	protocol := result.Protocol
	if protocol == "" {
		protocol = uuid.New().String()
	}

	updated, err := p.repo.MarkSaleSuccess(ctx, sale.ID, protocol)
	if err != nil {
		return domain.Transient(fmt.Errorf("persist success: %w", err))
	}

	p.logger.Info(ctx, "Sale processed successfully",
		"sale_id", updated.ID,
		"protocol", updated.Protocol,
	)

	p.runPostCommit(ctx, updated.ID,
		effect{"live-update", func(ctx context.Context) error {
			return p.publishUpdate(ctx, updated)
		}},
		effect{"webhook", func(ctx context.Context) error {
			return p.webhook.Send(ctx, notify.WebhookPayload{
				SaleID:   updated.ID,
				Protocol: updated.Protocol,
				Status:   string(updated.Status),
			})
		}},
	)

	return nil
}

// failSale persists the terminal ERROR and publishes the update. The webhook
// fires on success paths only. A failed persist is returned as transient so
// the queue retries rather than losing the outcome.
func (p *Processor) failSale(ctx context.Context, saleID, errorMsg string) error {
	updated, err := p.repo.MarkSaleError(ctx, saleID, errorMsg)
	if err != nil {
		return fmt.Errorf("persist error status: %w", err)
	}

	p.logger.Info(ctx, "Sale marked as failed",
		"sale_id", updated.ID,
		"error_msg", updated.ErrorMsg,
	)

	p.runPostCommit(ctx, updated.ID,
		effect{"live-update", func(ctx context.Context) error {
			return p.publishUpdate(ctx, updated)
		}},
	)

	return nil
}

type effect struct {
	name string
	run  func(context.Context) error
}

// runPostCommit executes fan-out effects after the terminal state is
// persisted. Each is independently fallible; a failure is logged and never
// blocks the others or the processing outcome.
func (p *Processor) runPostCommit(ctx context.Context, saleID string, effects ...effect) {
	for _, e := range effects {
		if err := e.run(ctx); err != nil {
			p.logger.Error(ctx, "Post-commit effect failed",
				"sale_id", saleID,
				"effect", e.name,
				"error", err,
			)
		}
	}
}

func (p *Processor) publishUpdate(ctx context.Context, sale *domain.Sale) error {
	payload, err := json.Marshal(sale)
	if err != nil {
		return err
	}
	return p.broker.Publish(ctx, notify.UpdatesChannel(sale.UserID), payload)
}
