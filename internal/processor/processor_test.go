package processor

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nfse-pipeline/internal/authority"
	"nfse-pipeline/internal/domain"
	"nfse-pipeline/internal/lock"
	"nfse-pipeline/internal/notify"
	"nfse-pipeline/internal/queue"
	"nfse-pipeline/internal/storage"
	"nfse-pipeline/pkg/logger"
)

type fakeAuthority struct {
	mu      sync.Mutex
	calls   int
	lastXML string
	result  *authority.Result
	err     error
}

func (f *fakeAuthority) Submit(ctx context.Context, signedXML, saleID string) (*authority.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastXML = signedXML
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakeAuthority) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeSigner struct {
	err error
}

func (f *fakeSigner) Sign(xml string, cert *domain.Certificate) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return xml + "\n<!-- signed by Test CN, sha256:feed -->", nil
}

type fakeWebhook struct {
	mu    sync.Mutex
	calls []notify.WebhookPayload
	err   error
}

func (f *fakeWebhook) Send(ctx context.Context, payload notify.WebhookPayload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, payload)
	return f.err
}

func (f *fakeWebhook) sent() []notify.WebhookPayload {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]notify.WebhookPayload, len(f.calls))
	copy(out, f.calls)
	return out
}

// countingRepo tracks reads so tests can assert the no-op paths touch the
// store exactly as often as the contract allows.
type countingRepo struct {
	domain.Repository
	getSaleCalls int32
}

func (r *countingRepo) GetSale(ctx context.Context, saleID string) (*domain.Sale, error) {
	atomic.AddInt32(&r.getSaleCalls, 1)
	return r.Repository.GetSale(ctx, saleID)
}

type fixture struct {
	repo      *countingRepo
	store     *storage.MemoryStore
	locker    *lock.MemoryLocker
	authority *fakeAuthority
	signer    *fakeSigner
	webhook   *fakeWebhook
	broker    *notify.MemoryBroker
	processor *Processor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := storage.NewMemoryStore()
	f := &fixture{
		repo:      &countingRepo{Repository: store},
		store:     store,
		locker:    lock.NewMemoryLocker(time.Minute),
		authority: &fakeAuthority{result: &authority.Result{Success: true, Protocol: "NFSE-ABC123"}},
		signer:    &fakeSigner{},
		webhook:   &fakeWebhook{},
		broker:    notify.NewMemoryBroker(),
	}
	f.processor = New(f.repo, f.locker, f.signer, f.authority, f.broker, f.webhook, logger.NewNop())
	return f
}

func (f *fixture) createSale(t *testing.T) *domain.Sale {
	t.Helper()

	sale := &domain.Sale{
		ID:          "sale-1",
		UserID:      "user-1",
		Amount:      150.5,
		Description: "Consultoria de TI",
		Status:      domain.SaleStatusProcessing,
	}
	require.NoError(t, f.store.CreateSale(context.Background(), sale))
	return sale
}

func (f *fixture) job() queue.Job {
	return queue.Job{ID: "job-1", SaleID: "sale-1", UserID: "user-1", Attempt: 1}
}

func (f *fixture) subscribeUpdates(t *testing.T) <-chan string {
	t.Helper()

	messages, cancel, err := f.broker.Subscribe(context.Background(), notify.UpdatesChannel("user-1"))
	require.NoError(t, err)
	t.Cleanup(cancel)
	return messages
}

func TestConsume_Success(t *testing.T) {
	f := newFixture(t)
	f.createSale(t)
	updates := f.subscribeUpdates(t)

	err := f.processor.Consume(context.Background(), f.job())
	require.NoError(t, err)

	sale, gerr := f.store.GetSale(context.Background(), "sale-1")
	require.NoError(t, gerr)
	assert.Equal(t, domain.SaleStatusSuccess, sale.Status)
	assert.Equal(t, "NFSE-ABC123", sale.Protocol)
	assert.Empty(t, sale.ErrorMsg)

	// Webhook invoked exactly once with the terminal state.
	sent := f.webhook.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "sale-1", sent[0].SaleID)
	assert.Equal(t, "NFSE-ABC123", sent[0].Protocol)
	assert.Equal(t, "SUCCESS", sent[0].Status)

	// One live update carrying the full sale record.
	select {
	case msg := <-updates:
		var published domain.Sale
		require.NoError(t, json.Unmarshal([]byte(msg), &published))
		assert.Equal(t, domain.SaleStatusSuccess, published.Status)
		assert.Equal(t, "NFSE-ABC123", published.Protocol)
	case <-time.After(time.Second):
		t.Fatal("expected a live update")
	}

	assert.False(t, f.locker.Held("sale-1"), "lock must be released")
}

func TestConsume_BusinessRejection(t *testing.T) {
	f := newFixture(t)
	f.createSale(t)
	f.authority.result = &authority.Result{Success: false, Error: "CPF inválido"}
	updates := f.subscribeUpdates(t)

	err := f.processor.Consume(context.Background(), f.job())
	require.NoError(t, err, "a rejection is terminal, the job must be acked")

	sale, gerr := f.store.GetSale(context.Background(), "sale-1")
	require.NoError(t, gerr)
	assert.Equal(t, domain.SaleStatusError, sale.Status)
	assert.Equal(t, "CPF inválido", sale.ErrorMsg)
	assert.Empty(t, sale.Protocol)

	assert.Empty(t, f.webhook.sent(), "webhook fires on success paths only")

	select {
	case msg := <-updates:
		assert.Contains(t, msg, "ERROR")
	case <-time.After(time.Second):
		t.Fatal("expected a live update for the rejection")
	}

	assert.Equal(t, 1, f.authority.callCount())
	assert.False(t, f.locker.Held("sale-1"))
}

func TestConsume_TransportFailureIsTransient(t *testing.T) {
	f := newFixture(t)
	f.createSale(t)
	f.authority.err = errors.New("prefeitura unreachable: max retries (3) exceeded: connection refused")
	updates := f.subscribeUpdates(t)

	err := f.processor.Consume(context.Background(), f.job())
	require.Error(t, err, "transient failures propagate so the queue redelivers")

	sale, gerr := f.store.GetSale(context.Background(), "sale-1")
	require.NoError(t, gerr)
	assert.Equal(t, domain.SaleStatusProcessing, sale.Status, "status untouched across a retried attempt")
	assert.Empty(t, sale.Protocol)
	assert.Empty(t, sale.ErrorMsg)

	select {
	case msg := <-updates:
		t.Fatalf("no update may be published for a transient failure, got %s", msg)
	case <-time.After(50 * time.Millisecond):
	}

	assert.False(t, f.locker.Held("sale-1"), "lock released even on the transient path")
}

func TestConsume_LockHeld_NoOp(t *testing.T) {
	f := newFixture(t)
	f.createSale(t)

	acquired, err := f.locker.Acquire(context.Background(), "sale-1")
	require.NoError(t, err)
	require.True(t, acquired)

	err = f.processor.Consume(context.Background(), f.job())
	require.NoError(t, err, "lock contention is a no-op, not a failure")

	assert.EqualValues(t, 0, atomic.LoadInt32(&f.repo.getSaleCalls), "no store reads before owning the lock")
	assert.Equal(t, 0, f.authority.callCount())
	assert.True(t, f.locker.Held("sale-1"), "the other attempt's lock stays intact")
}

func TestConsume_AlreadyResolved_Idempotent(t *testing.T) {
	f := newFixture(t)
	f.createSale(t)

	require.NoError(t, f.processor.Consume(context.Background(), f.job()))
	require.Equal(t, 1, f.authority.callCount())

	// Redelivery of the same job after the terminal state is a no-op.
	err := f.processor.Consume(context.Background(), f.job())
	require.NoError(t, err)

	assert.Equal(t, 1, f.authority.callCount(), "no external calls after the idempotency check")
	assert.Len(t, f.webhook.sent(), 1)

	sale, gerr := f.store.GetSale(context.Background(), "sale-1")
	require.NoError(t, gerr)
	assert.Equal(t, "NFSE-ABC123", sale.Protocol, "record unchanged")
}

func TestConsume_SaleNotFound(t *testing.T) {
	f := newFixture(t)

	err := f.processor.Consume(context.Background(), f.job())
	require.NoError(t, err, "a missing sale is permanent, the job must not be retried")

	assert.Equal(t, 0, f.authority.callCount())
	assert.False(t, f.locker.Held("sale-1"))
}

func TestConsume_NoCertificate_SubmitsUnsigned(t *testing.T) {
	f := newFixture(t)
	f.createSale(t)

	require.NoError(t, f.processor.Consume(context.Background(), f.job()))

	assert.True(t, strings.HasSuffix(f.authority.lastXML, "<!-- mock-signed -->"),
		"missing credential falls back to the unsigned marker")

	sale, err := f.store.GetSale(context.Background(), "sale-1")
	require.NoError(t, err)
	assert.Equal(t, domain.SaleStatusSuccess, sale.Status)
}

func TestConsume_WithCertificate_SubmitsSigned(t *testing.T) {
	f := newFixture(t)
	f.createSale(t)
	require.NoError(t, f.store.CreateCertificate(context.Background(), &domain.Certificate{
		ID:       "cert-1",
		UserID:   "user-1",
		Filename: "cert.pfx",
	}))

	require.NoError(t, f.processor.Consume(context.Background(), f.job()))

	assert.Contains(t, f.authority.lastXML, "signed by Test CN")
	assert.NotContains(t, f.authority.lastXML, "mock-signed")
}

func TestConsume_SigningFailureIsPermanent(t *testing.T) {
	f := newFixture(t)
	f.createSale(t)
	require.NoError(t, f.store.CreateCertificate(context.Background(), &domain.Certificate{
		ID:       "cert-1",
		UserID:   "user-1",
		Filename: "cert.pfx",
	}))
	f.signer.err = errors.New("certificate signing failed: pkcs12: decryption password incorrect")

	err := f.processor.Consume(context.Background(), f.job())
	require.NoError(t, err, "permanent failures are swallowed after persisting ERROR")

	sale, gerr := f.store.GetSale(context.Background(), "sale-1")
	require.NoError(t, gerr)
	assert.Equal(t, domain.SaleStatusError, sale.Status)
	assert.Contains(t, sale.ErrorMsg, "certificate signing failed")

	assert.Equal(t, 0, f.authority.callCount(), "no submission after a signing failure")
	assert.Empty(t, f.webhook.sent())
	assert.False(t, f.locker.Held("sale-1"))
}

func TestConsume_ProtocolFallbackWhenOmitted(t *testing.T) {
	f := newFixture(t)
	f.createSale(t)
	f.authority.result = &authority.Result{Success: true}

	require.NoError(t, f.processor.Consume(context.Background(), f.job()))

	sale, err := f.store.GetSale(context.Background(), "sale-1")
	require.NoError(t, err)
	assert.Equal(t, domain.SaleStatusSuccess, sale.Status)
	assert.NotEmpty(t, sale.Protocol, "a locally generated protocol fills the gap")
}

func TestConsume_WebhookFailureDoesNotAffectOutcome(t *testing.T) {
	f := newFixture(t)
	f.createSale(t)
	f.webhook.err = errors.New("webhook endpoint returned status 500")

	err := f.processor.Consume(context.Background(), f.job())
	require.NoError(t, err)

	sale, gerr := f.store.GetSale(context.Background(), "sale-1")
	require.NoError(t, gerr)
	assert.Equal(t, domain.SaleStatusSuccess, sale.Status)
}

func TestConsume_ConcurrentAttemptsOnSameSale(t *testing.T) {
	f := newFixture(t)
	f.createSale(t)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := f.processor.Consume(context.Background(), f.job())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, f.authority.callCount(), "at most one attempt proceeds past the lock")
	assert.Len(t, f.webhook.sent(), 1)

	sale, err := f.store.GetSale(context.Background(), "sale-1")
	require.NoError(t, err)
	assert.Equal(t, domain.SaleStatusSuccess, sale.Status)
	assert.False(t, f.locker.Held("sale-1"))
}
