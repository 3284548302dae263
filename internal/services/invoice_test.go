package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"mutaengine_back_end/internal/models"
	"mutaengine_back_end/internal/repository"
	"mutaengine_back_end/internal/utils"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type invoiceFixture struct {
	jobs   repository.InvoiceJobRepository
	orders repository.OrderRepository
	users  repository.UserRepository
	store  *fakeStore
	mailer *fakeMailer
	audit  *fakeAudit
	order  *models.Order
}

func newInvoiceFixture(t *testing.T) *invoiceFixture {
	t.Helper()
	db := newTestDB(t)
	f := &invoiceFixture{
		jobs:   repository.NewInvoiceJobRepository(db),
		orders: repository.NewOrderRepository(db),
		users:  repository.NewUserRepository(db),
		store:  newFakeStore(),
		mailer: &fakeMailer{},
		audit:  &fakeAudit{},
	}
	ctx := context.Background()

	user := &models.User{ID: uuid.NewString(), Username: "alice", Email: "alice@x.io", FirstName: "Alice"}
	require.NoError(t, f.users.Create(ctx, user))

	f.order = &models.Order{
		ID:              uuid.NewString(),
		UserID:          user.ID,
		TotalAmount:     decimal.RequireFromString("20"),
		Status:          models.OrderStatusPending,
		ExternalOrderID: "cs_1",
	}
	require.NoError(t, f.orders.CreateWithItems(ctx, f.order, []models.OrderItem{{
		ID: uuid.NewString(), ProductID: "p1", ProductTitle: "Keyboard", Quantity: 2,
		UnitPrice: decimal.RequireFromString("10"), Price: decimal.RequireFromString("20"),
	}}))
	res, err := f.orders.Settle(ctx, repository.Settlement{EventID: "evt_1", ExternalOrderID: "cs_1", To: models.OrderStatusCompleted})
	require.NoError(t, err)
	require.True(t, res.Transitioned)
	return f
}

func (f *invoiceFixture) dispatcher(renderer PDFRenderer, maxAttempts int) *InvoiceDispatcher {
	return NewInvoiceDispatcher(f.jobs, f.orders, f.users, renderer, f.store, f.mailer, f.audit, InvoiceConfig{
		CompanyName:  "MutaEngine",
		SupportEmail: "support@muta.test",
		MaxAttempts:  maxAttempts,
		Backoff:      time.Minute,
	})
}

func TestInvoiceDispatcherSendsInvoice(t *testing.T) {
	f := newInvoiceFixture(t)
	ctx := context.Background()
	d := f.dispatcher(fakeRenderer{}, 3)

	assert.Equal(t, 1, d.ProcessDue(ctx))

	job, err := f.jobs.FindByOrderID(ctx, f.order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InvoiceJobSent, job.Status)
	assert.Equal(t, InvoiceKey(f.order.ID), job.ObjectKey)
	assert.Contains(t, f.store.objects, InvoiceKey(f.order.ID))

	require.Len(t, f.mailer.sent, 1)
	mail := f.mailer.sent[0]
	assert.Equal(t, "alice@x.io", mail.To)
	assert.Contains(t, mail.Subject, utils.InvoiceReference(f.order.ID))
	require.Len(t, mail.Attachments, 1)
	assert.Equal(t, utils.InvoiceReference(f.order.ID)+".pdf", mail.Attachments[0].Name)
	assert.Equal(t, []string{utils.ActionInvoiceSent}, f.audit.actions())

	// déjà envoyée : plus rien à faire
	assert.Zero(t, d.ProcessDue(ctx))
	assert.Len(t, f.mailer.sent, 1)
}

func TestInvoiceDispatcherRetriesWithBackoff(t *testing.T) {
	f := newInvoiceFixture(t)
	ctx := context.Background()
	renderer := &switchRenderer{err: errors.New("chrome crashed")}
	d := f.dispatcher(renderer, 3)

	assert.Zero(t, d.ProcessDue(ctx))
	job, err := f.jobs.FindByOrderID(ctx, f.order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InvoiceJobPending, job.Status)
	assert.Equal(t, 1, job.Attempts)
	assert.Contains(t, job.LastError, "chrome crashed")
	assert.True(t, job.NextAttemptAt.After(time.Now()))

	// pas encore échu
	assert.Zero(t, d.ProcessDue(ctx))
	job, err = f.jobs.FindByOrderID(ctx, f.order.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, job.Attempts)

	renderer.err = nil
	d.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	assert.Equal(t, 1, d.ProcessDue(ctx))
	job, err = f.jobs.FindByOrderID(ctx, f.order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InvoiceJobSent, job.Status)
	assert.Equal(t, []string{utils.ActionInvoiceSent}, f.audit.actions())
}

type flakyJobs struct {
	repository.InvoiceJobRepository
	failSent int
}

func (j *flakyJobs) MarkSent(ctx context.Context, id uint, objectKey string) error {
	if j.failSent > 0 {
		j.failSent--
		return errors.New("connection reset")
	}
	return j.InvoiceJobRepository.MarkSent(ctx, id, objectKey)
}

func TestInvoiceDispatcherDoesNotResendAfterLostMarkSent(t *testing.T) {
	f := newInvoiceFixture(t)
	ctx := context.Background()
	jobs := &flakyJobs{InvoiceJobRepository: f.jobs, failSent: 1}
	d := NewInvoiceDispatcher(jobs, f.orders, f.users, fakeRenderer{}, f.store, f.mailer, f.audit, InvoiceConfig{
		CompanyName: "MutaEngine",
		MaxAttempts: 3,
		Lease:       time.Minute,
	})

	assert.Zero(t, d.ProcessDue(ctx))
	require.Len(t, f.mailer.sent, 1)
	job, err := f.jobs.FindByOrderID(ctx, f.order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InvoiceJobSending, job.Status)
	require.NotNil(t, job.MailedAt)

	// bail expiré : le job est repris mais le mail ne repart pas
	d.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	assert.Equal(t, 1, d.ProcessDue(ctx))
	assert.Len(t, f.mailer.sent, 1)

	job, err = f.jobs.FindByOrderID(ctx, f.order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InvoiceJobSent, job.Status)
	assert.Equal(t, InvoiceKey(f.order.ID), job.ObjectKey)
	assert.Equal(t, []string{utils.ActionInvoiceSent}, f.audit.actions())
}

func TestInvoiceDispatcherGivesUp(t *testing.T) {
	f := newInvoiceFixture(t)
	ctx := context.Background()
	f.mailer.err = errors.New("smtp down")
	d := f.dispatcher(fakeRenderer{}, 1)

	assert.Zero(t, d.ProcessDue(ctx))
	job, err := f.jobs.FindByOrderID(ctx, f.order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InvoiceJobFailed, job.Status)
	assert.Contains(t, job.LastError, "smtp down")
	assert.Equal(t, []string{utils.ActionInvoiceFailed}, f.audit.actions())
}

func TestInvoiceDispatcherWakeDoesNotBlock(t *testing.T) {
	f := newInvoiceFixture(t)
	d := f.dispatcher(fakeRenderer{}, 3)
	d.Wake()
	d.Wake()
	assert.Len(t, d.wake, 1)
}

func TestInvoiceDispatcherRunStopsOnCancel(t *testing.T) {
	f := newInvoiceFixture(t)
	d := f.dispatcher(fakeRenderer{}, 3)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		job, err := f.jobs.FindByOrderID(context.Background(), f.order.ID)
		return err == nil && job.Status == models.InvoiceJobSent
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("dispatcher did not stop")
	}
}

type switchRenderer struct {
	err error
}

func (r *switchRenderer) RenderPDF(ctx context.Context, html string) ([]byte, error) {
	if r.err != nil {
		return nil, r.err
	}
	return fakeRenderer{}.RenderPDF(ctx, html)
}
