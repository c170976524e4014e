package cascade

import (
	"errors"
	"fmt"

	"github.com/agencydesk/mdconsole/pkg/model"
)

// ValidationError is raised before any network call is made.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// Reconciliation says how the collections were brought back after a failed cascade.
type Reconciliation string

const (
	Refetched Reconciliation = "refetched"
	Restored  Reconciliation = "restored"
)

// CascadeError reports a cascade in which at least one mutation failed.
type CascadeError struct {
	Failed         []FailedMutation
	Reconciliation Reconciliation
	// ReloadErr is set when refetching authoritative state also failed.
	ReloadErr error
}

type FailedMutation struct {
	Type model.EntityType
	ID   int64
	Err  error
}

func (e *CascadeError) Error() string {
	first := e.Failed[0]
	return fmt.Sprintf("cascade failed: %d mutations rejected (first %s %d: %v), collections %s",
		len(e.Failed), first.Type, first.ID, first.Err, e.Reconciliation)
}

func (e *CascadeError) Unwrap() error {
	return e.Failed[0].Err
}
