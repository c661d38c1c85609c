package identity

import (
	"context"
	"fmt"
	"sync"
)

// StaticDirectory is a Directory backed by an in-memory credential table.
// It stands in for a hosted identity provider in single-tenant and test
// deployments; entries come from the config file.
type StaticDirectory struct {
	mu      sync.RWMutex
	callers map[string]Caller // credential -> caller
}

// NewStaticDirectory creates an empty static directory.
func NewStaticDirectory() *StaticDirectory {
	return &StaticDirectory{callers: make(map[string]Caller)}
}

// AddCredential registers a credential and the caller it resolves to.
func (d *StaticDirectory) AddCredential(credential string, caller Caller) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.callers[credential] = caller
}

func (d *StaticDirectory) ResolveCaller(_ context.Context, credential string) (Caller, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	caller, ok := d.callers[credential]
	if !ok {
		return Caller{}, fmt.Errorf("unknown credential")
	}
	return caller, nil
}

func (d *StaticDirectory) ListOrgMembers(_ context.Context, orgID string) ([]Member, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	seen := make(map[string]bool)
	var members []Member
	for _, c := range d.callers {
		if c.OrganizationID != orgID || seen[c.UserID] {
			continue
		}
		seen[c.UserID] = true
		members = append(members, Member{UserID: c.UserID, Role: c.Role})
	}
	return members, nil
}
