package models

import (
	"time"

	"github.com/gocql/gocql"
)

// Capacités vérifiées par middleware.RequireCapability
const (
	CapCatalogManage = "catalog.manage"
	CapCatalogView   = "catalog.view"
	CapOrdersOwn     = "orders.own"
)

// Capacités accordées à tout utilisateur authentifié
var defaultCapabilities = []string{CapCatalogView, CapOrdersOwn}

// AuditLog représente une entrée du journal d'audit
type AuditLog struct {
	ID         gocql.UUID `json:"id"`
	UserID     string     `json:"user_id"`
	UserEmail  string     `json:"user_email"`
	Action     string     `json:"action"`
	Resource   string     `json:"resource"`
	ResourceID string     `json:"resource_id,omitempty"`
	OldValue   string     `json:"old_value,omitempty"`
	NewValue   string     `json:"new_value,omitempty"`
	IPAddress  string     `json:"ip_address,omitempty"`
	Success    bool       `json:"success"`
	ErrorMsg   string     `json:"error_msg,omitempty"`
	Timestamp  time.Time  `json:"timestamp"`
}
