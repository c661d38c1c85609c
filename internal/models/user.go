package models

import "time"

// User mirrors an account in the external identity provider. Rows are
// created lazily the first time an external identity shows up.
type User struct {
	ID         string
	ExternalID string // identity provider's user key
	Name       string
	Email      string
	ImageURL   string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
