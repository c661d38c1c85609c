package tracker

import (
	"errors"
	"fmt"

	"github.com/joescharf/zira/internal/models"
	"github.com/joescharf/zira/internal/store"
)

// Every operation reports failures through its error return. Callers
// branch with errors.Is / errors.As; nothing is panicked or signalled
// out of band.
var (
	// ErrUnauthorized means the request carried no resolvable caller or
	// no active organization.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden means the caller lacks the role an operation
	// requires (e.g. a non-admin starting a sprint).
	ErrForbidden = errors.New("forbidden")

	// ErrNotFound covers absent entities. Cross-organization lookups
	// also report ErrNotFound so that foreign ids leak nothing.
	ErrNotFound = store.ErrNotFound
)

// InvalidTransitionError is a recoverable business-rule rejection from
// the sprint lifecycle guards, distinct from the access faults above.
type InvalidTransitionError struct {
	SprintID string
	From     models.SprintStatus
	To       models.SprintStatus
	Reason   string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("sprint %s cannot move %s -> %s: %s", e.SprintID, e.From, e.To, e.Reason)
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
