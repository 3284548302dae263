package models

import "time"

type InvoiceJobStatus string

const (
	InvoiceJobPending InvoiceJobStatus = "pending"
	InvoiceJobSending InvoiceJobStatus = "sending"
	InvoiceJobSent    InvoiceJobStatus = "sent"
	InvoiceJobFailed  InvoiceJobStatus = "failed"
)

// InvoiceJob est la ligne outbox de l'envoi de facture.
// order_id unique : une commande ne peut avoir qu'une facture.
type InvoiceJob struct {
	ID            uint             `gorm:"primaryKey"`
	OrderID       string           `gorm:"size:36;uniqueIndex;not null"`
	Status        InvoiceJobStatus `gorm:"size:16;index;not null"`
	Attempts      int              `gorm:"not null;default:0"`
	NextAttemptAt time.Time        `gorm:"index;not null"`
	LockedUntil   *time.Time
	// MailedAt est posé dès que le SMTP a accepté le mail, avant MarkSent
	MailedAt      *time.Time
	LastError     string `gorm:"size:1000"`
	ObjectKey     string `gorm:"size:255"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// WebhookEvent garde la trace des événements provider qui ont fait avancer une commande
type WebhookEvent struct {
	EventID     string    `gorm:"primaryKey;size:255"`
	EventType   string    `gorm:"size:100;not null"`
	OrderID     string    `gorm:"size:36;index"`
	ProcessedAt time.Time `gorm:"not null"`
}
