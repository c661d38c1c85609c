package models

import (
	"fmt"
	"strings"
	"time"
	"unicode"
)

// Project represents a tracked project owned by one organization.
// The organization itself lives in the external directory service; only
// its id is stored here.
type Project struct {
	ID             string
	OrganizationID string
	Name           string
	Key            string // short uppercase code, immutable once set
	Description    string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// maxKeyLength bounds the project key used as the sprint name prefix.
const maxKeyLength = 10

// ValidateProjectKey checks a project key: 1-10 characters, uppercase
// letters and digits only.
func ValidateProjectKey(key string) error {
	if key == "" {
		return fmt.Errorf("project key is required")
	}
	if len(key) > maxKeyLength {
		return fmt.Errorf("project key %q exceeds %d characters", key, maxKeyLength)
	}
	for _, r := range key {
		if !unicode.IsUpper(r) && !unicode.IsDigit(r) {
			return fmt.Errorf("project key %q must be uppercase letters and digits", key)
		}
	}
	return nil
}

// SprintName builds the conventional sprint name for the n-th sprint.
func (p *Project) SprintName(n int) string {
	return fmt.Sprintf("%s-%d", strings.ToUpper(p.Key), n)
}
