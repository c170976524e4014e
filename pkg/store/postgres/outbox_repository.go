package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/agencydesk/mdconsole/pkg/model"
)

// OutboxRepository reads and settles the cascade_events outbox.
type OutboxRepository struct {
	db *gorm.DB
}

func NewOutboxRepository(db *gorm.DB) *OutboxRepository {
	return &OutboxRepository{db: db}
}

// ListPending returns pending events oldest first. Ties on created_at are broken by
// company and event id so that a company's events always come back in the same order.
func (r *OutboxRepository) ListPending(ctx context.Context, limit int) ([]model.CascadeEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	var events []model.CascadeEvent
	err := r.db.WithContext(ctx).
		Where("status = ?", model.OutboxStatusPending).
		Order("created_at ASC, comp_id ASC, event_id ASC").
		Limit(limit).
		Find(&events).Error
	return events, err
}

func (r *OutboxRepository) MarkPublished(ctx context.Context, eventID uuid.UUID, publishedAt time.Time) error {
	return r.settle(ctx, eventID, map[string]interface{}{
		"status":       model.OutboxStatusPublished,
		"published_at": publishedAt,
	})
}

// RecordAttempt counts a failed publish and leaves the event pending for the next poll.
func (r *OutboxRepository) RecordAttempt(ctx context.Context, eventID uuid.UUID, reason string) error {
	return r.settle(ctx, eventID, map[string]interface{}{
		"attempts":   gorm.Expr("attempts + 1"),
		"last_error": reason,
	})
}

// MarkFailed parks an event that exhausted its attempts.
func (r *OutboxRepository) MarkFailed(ctx context.Context, eventID uuid.UUID, reason string) error {
	return r.settle(ctx, eventID, map[string]interface{}{
		"status":     model.OutboxStatusFailed,
		"last_error": reason,
	})
}

func (r *OutboxRepository) settle(ctx context.Context, eventID uuid.UUID, updates map[string]interface{}) error {
	return r.db.WithContext(ctx).
		Model(&model.CascadeEvent{}).
		Where("event_id = ?", eventID).
		Updates(updates).Error
}
