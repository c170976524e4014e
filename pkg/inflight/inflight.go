// Package inflight guards records with an in-flight status change so that a second
// toggle on the same record is refused until the first one settles.
package inflight

import (
	"context"
	"errors"
	"fmt"

	"github.com/agencydesk/mdconsole/pkg/model"
)

var ErrInFlight = errors.New("a status change for this record is already in flight")

// Locker hands out exclusive, expiring leases keyed by record.
type Locker interface {
	// TryLock returns a release token, or ErrInFlight if the key is held.
	TryLock(ctx context.Context, key string) (string, error)
	Unlock(ctx context.Context, key, token string) error
}

func Key(compID int64, entityType model.EntityType, id int64) string {
	return fmt.Sprintf("md:inflight:%d:%s:%d", compID, entityType, id)
}

// ScopeKey guards the ordered children of one parent while their positions are read
// and rewritten.
func ScopeKey(compID int64, entityType model.EntityType, parentID int64) string {
	return fmt.Sprintf("md:inflight:%d:%s:scope:%d", compID, entityType, parentID)
}
