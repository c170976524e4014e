package store

import (
	"context"

	"github.com/agencydesk/mdconsole/pkg/model"
)

// Journal persists executed cascades. The postgres CascadeRepository is the
// production backend; a nil Journal disables journaling.
type Journal interface {
	// Record stores the run together with its outbox event.
	Record(ctx context.Context, run *model.CascadeRun, event *model.CascadeEvent) error

	// List returns a page of runs for one company, newest first, and the total count.
	List(ctx context.Context, compID int64, domain string, limit, offset int) ([]model.CascadeRun, int64, error)
}
