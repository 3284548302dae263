package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"mutaengine_back_end/internal/models"
	"mutaengine_back_end/internal/repository"
	"mutaengine_back_end/internal/utils"
)

type PDFRenderer interface {
	RenderPDF(ctx context.Context, html string) ([]byte, error)
}

type Mailer interface {
	Send(ctx context.Context, email utils.Email) error
}

type InvoiceConfig struct {
	CompanyName  string
	SupportEmail string
	PollInterval time.Duration
	MaxAttempts  int
	BatchSize    int
	Lease        time.Duration
	Backoff      time.Duration
}

func (c *InvoiceConfig) applyDefaults() {
	if c.PollInterval <= 0 {
		c.PollInterval = 30 * time.Second
	}
	if c.MaxAttempts < 1 {
		c.MaxAttempts = 5
	}
	if c.BatchSize < 1 {
		c.BatchSize = 20
	}
	if c.Lease <= 0 {
		c.Lease = 5 * time.Minute
	}
	if c.Backoff <= 0 {
		c.Backoff = time.Minute
	}
}

// InvoiceKey est la clé MinIO du PDF d'une commande
func InvoiceKey(orderID string) string {
	return "invoices/" + orderID + ".pdf"
}

// InvoiceDispatcher lit l'outbox des factures : rendu PDF, archivage, envoi mail.
// Il tourne sur un ticker et peut être réveillé par Wake après un paiement.
type InvoiceDispatcher struct {
	jobs     repository.InvoiceJobRepository
	orders   repository.OrderRepository
	users    repository.UserRepository
	renderer PDFRenderer
	store    ObjectStore
	mailer   Mailer
	audit    utils.AuditLogger
	cfg      InvoiceConfig
	wake     chan struct{}
	now      func() time.Time
}

func NewInvoiceDispatcher(
	jobs repository.InvoiceJobRepository,
	orders repository.OrderRepository,
	users repository.UserRepository,
	renderer PDFRenderer,
	store ObjectStore,
	mailer Mailer,
	audit utils.AuditLogger,
	cfg InvoiceConfig,
) *InvoiceDispatcher {
	cfg.applyDefaults()
	return &InvoiceDispatcher{
		jobs:     jobs,
		orders:   orders,
		users:    users,
		renderer: renderer,
		store:    store,
		mailer:   mailer,
		audit:    audit,
		cfg:      cfg,
		wake:     make(chan struct{}, 1),
		now:      time.Now,
	}
}

// Wake ne bloque jamais : un réveil en attente suffit
func (d *InvoiceDispatcher) Wake() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

func (d *InvoiceDispatcher) Run(ctx context.Context) {
	log.Printf("📧 Dispatcher de factures démarré (intervalle %s)", d.cfg.PollInterval)
	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()

	d.ProcessDue(ctx)
	for {
		select {
		case <-ctx.Done():
			log.Println("📧 Dispatcher de factures arrêté")
			return
		case <-ticker.C:
			d.ProcessDue(ctx)
		case <-d.wake:
			d.ProcessDue(ctx)
		}
	}
}

// ProcessDue traite un lot de jobs échus et retourne le nombre de factures envoyées
func (d *InvoiceDispatcher) ProcessDue(ctx context.Context) int {
	now := d.now()
	if released, err := d.jobs.ReleaseExpired(ctx, now); err != nil {
		log.Printf("❌ Libération des jobs facture expirés: %v", err)
	} else if released > 0 {
		log.Printf("⚠️ %d job(s) facture repris après expiration du bail", released)
	}

	jobs, err := d.jobs.ClaimDue(ctx, now, d.cfg.BatchSize, d.cfg.Lease)
	if err != nil {
		log.Printf("❌ Lecture des jobs facture: %v", err)
	}

	sent := 0
	for _, job := range jobs {
		if ctx.Err() != nil {
			break
		}
		if d.process(ctx, job) {
			sent++
		}
	}
	return sent
}

func (d *InvoiceDispatcher) process(ctx context.Context, job models.InvoiceJob) bool {
	key, err := d.send(ctx, job)
	if err == nil {
		if err := d.jobs.MarkSent(ctx, job.ID, key); err != nil {
			log.Printf("❌ Job facture %d envoyé mais non marqué: %v", job.ID, err)
			return false
		}
		log.Printf("✅ Facture de la commande %s envoyée", job.OrderID)
		d.audit.Record(ctx, utils.NewAuditEntry(models.User{}, utils.ActionInvoiceSent, utils.ResourceInvoice, job.OrderID, nil, map[string]string{"object_key": key}))
		return true
	}

	attempts := job.Attempts + 1
	if attempts >= d.cfg.MaxAttempts {
		log.Printf("❌ Facture %s abandonnée après %d tentatives: %v", job.OrderID, attempts, err)
		if markErr := d.jobs.MarkFailed(ctx, job.ID, err.Error()); markErr != nil {
			log.Printf("❌ Job facture %d non marqué failed: %v", job.ID, markErr)
		}
		d.audit.Record(ctx, utils.NewAuditEntry(models.User{}, utils.ActionInvoiceFailed, utils.ResourceInvoice, job.OrderID, nil, map[string]string{"error": err.Error()}))
		return false
	}

	next := d.now().Add(d.cfg.Backoff * time.Duration(attempts))
	log.Printf("⚠️ Facture %s: tentative %d échouée, nouvel essai à %s: %v", job.OrderID, attempts, next.Format(time.RFC3339), err)
	if markErr := d.jobs.MarkRetry(ctx, job.ID, err.Error(), next); markErr != nil {
		log.Printf("❌ Job facture %d non replanifié: %v", job.ID, markErr)
	}
	return false
}

// send est au moins une fois : seul un crash entre l'acceptation SMTP et MarkMailed,
// ou un envoi plus long que le bail, peut produire un doublon
func (d *InvoiceDispatcher) send(ctx context.Context, job models.InvoiceJob) (string, error) {
	if job.MailedAt != nil {
		log.Printf("📧 Facture %s déjà envoyée le %s, on termine le job", job.OrderID, job.MailedAt.Format(time.RFC3339))
		return InvoiceKey(job.OrderID), nil
	}
	order, err := d.orders.FindByID(ctx, job.OrderID)
	if err != nil {
		return "", fmt.Errorf("commande %s: %w", job.OrderID, err)
	}
	user, err := d.users.FindByID(ctx, order.UserID)
	if err != nil {
		return "", fmt.Errorf("client %s: %w", order.UserID, err)
	}

	html, err := utils.GenerateInvoiceHTML(utils.InvoiceData{
		Company:      d.cfg.CompanyName,
		SupportEmail: d.cfg.SupportEmail,
		Order:        *order,
		Customer:     *user,
	})
	if err != nil {
		return "", err
	}

	pdf, err := d.renderer.RenderPDF(ctx, html)
	if err != nil {
		return "", err
	}

	key := InvoiceKey(order.ID)
	if err := d.store.Put(ctx, key, pdf, "application/pdf"); err != nil {
		return "", err
	}

	ref := utils.InvoiceReference(order.ID)
	err = d.mailer.Send(ctx, utils.Email{
		To:          user.Email,
		Subject:     fmt.Sprintf("%s invoice %s", d.cfg.CompanyName, ref),
		HTML:        html,
		Attachments: []utils.Attachment{{Name: ref + ".pdf", Data: pdf}},
	})
	if err != nil {
		return "", fmt.Errorf("envoi mail: %w", err)
	}
	if err := d.jobs.MarkMailed(ctx, job.ID, d.now()); err != nil {
		log.Printf("⚠️ Job facture %d envoyé mais mailed_at non posé: %v", job.ID, err)
	}
	return key, nil
}
