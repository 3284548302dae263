package models

import "time"

// Fournisseurs d'identité
const (
	ProviderLocal    = "local"
	ProviderGoogle   = "google"
	ProviderFacebook = "facebook"
)

type User struct {
	ID             string    `gorm:"primaryKey;size:36" json:"id"`
	Username       string    `gorm:"size:150;uniqueIndex;not null" json:"username"`
	Email          string    `gorm:"size:254;uniqueIndex;not null" json:"email"`
	FirstName      string    `gorm:"size:150" json:"first_name"`
	LastName       string    `gorm:"size:150" json:"last_name"`
	Password       string    `gorm:"size:255" json:"-"`
	IsSuperuser    bool      `gorm:"not null;default:false" json:"is_superuser"`
	Provider       string    `gorm:"size:32;not null;default:local" json:"provider"`
	ProviderUserID string    `gorm:"size:255" json:"-"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Can indique si l'utilisateur possède la capacité demandée.
// Les superusers ont toutes les capacités.
func (u User) Can(capability string) bool {
	if u.IsSuperuser {
		return true
	}
	for _, c := range defaultCapabilities {
		if c == capability {
			return true
		}
	}
	return false
}
