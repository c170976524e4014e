package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	OutboxStatusPending   = "pending"
	OutboxStatusPublished = "published"
	OutboxStatusFailed    = "failed"
)

const EventStatusChanged = "status_changed"

// CascadeEvent is the outbox row written with a journaled cascade. Events of one
// company are relayed in creation order; a row that keeps failing is parked as failed
// after the relay's attempt limit.
type CascadeEvent struct {
	EventID     uuid.UUID `gorm:"type:uuid;primary_key"`
	CompID      int64     `gorm:"not null;index:idx_cascade_events_pending"`
	EventType   string    `gorm:"not null"`
	Payload     JSONB     `gorm:"type:jsonb;not null"`
	Status      string    `gorm:"not null;default:'pending';index:idx_cascade_events_pending"`
	Attempts    int       `gorm:"not null;default:0"`
	LastError   string
	CreatedAt   time.Time `gorm:"autoCreateTime;not null"`
	PublishedAt *time.Time
}

func (CascadeEvent) TableName() string {
	return "cascade_events"
}
