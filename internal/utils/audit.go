package utils

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"mutaengine_back_end/internal/models"

	"github.com/gocql/gocql"
)

// Actions d'audit
const (
	ActionProductCreate  = "product.create"
	ActionProductUpdate  = "product.update"
	ActionProductDelete  = "product.delete"
	ActionOrderCompleted = "order.completed"
	ActionOrderFailed    = "order.failed"
	ActionInvoiceSent    = "invoice.sent"
	ActionInvoiceFailed  = "invoice.failed"

	ResourceProduct = "product"
	ResourceOrder   = "order"
	ResourceInvoice = "invoice"
)

// AuditLogger enregistre une action. Une erreur d'audit ne doit jamais faire échouer la requête.
type AuditLogger interface {
	Record(ctx context.Context, entry models.AuditLog)
}

// NewAuditEntry prépare une entrée avec un time UUID et la sérialisation des valeurs
func NewAuditEntry(actor models.User, action, resource, resourceID string, oldValue, newValue any) models.AuditLog {
	return models.AuditLog{
		ID:         gocql.TimeUUID(),
		UserID:     actor.ID,
		UserEmail:  actor.Email,
		Action:     action,
		Resource:   resource,
		ResourceID: resourceID,
		OldValue:   marshalValue(oldValue),
		NewValue:   marshalValue(newValue),
		Success:    true,
		Timestamp:  time.Now(),
	}
}

func marshalValue(v any) string {
	if v == nil {
		return ""
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

// ScyllaAuditLogger écrit dans la table audit_logs
type ScyllaAuditLogger struct {
	session *gocql.Session
}

func NewScyllaAuditLogger(session *gocql.Session) *ScyllaAuditLogger {
	return &ScyllaAuditLogger{session: session}
}

const insertAuditLog = `
	INSERT INTO audit_logs (
		id, user_id, user_email, action, resource, resource_id,
		old_value, new_value, ip_address, success, error_msg, timestamp
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

func (l *ScyllaAuditLogger) Record(ctx context.Context, e models.AuditLog) {
	err := l.session.Query(insertAuditLog,
		e.ID, e.UserID, e.UserEmail, e.Action, e.Resource, e.ResourceID,
		e.OldValue, e.NewValue, e.IPAddress, e.Success, e.ErrorMsg, e.Timestamp,
	).WithContext(ctx).Exec()
	if err != nil {
		log.Printf("❌ Erreur enregistrement log audit %s %s: %v", e.Action, e.ResourceID, err)
	}
}

// LogAuditLogger se contente du log standard quand Scylla n'est pas configuré
type LogAuditLogger struct{}

func (LogAuditLogger) Record(_ context.Context, e models.AuditLog) {
	log.Printf("📝 audit %s %s/%s par %s", e.Action, e.Resource, e.ResourceID, e.UserID)
}
