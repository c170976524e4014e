package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type CascadeOutcome string

const (
	CascadeApplied   CascadeOutcome = "APPLIED"
	CascadeRefetched CascadeOutcome = "REFETCHED"
	CascadeRestored  CascadeOutcome = "RESTORED"
)

// CascadeRun is the journal row written for every executed status change.
type CascadeRun struct {
	ID           uuid.UUID      `gorm:"type:uuid;primary_key"`
	CompID       int64          `gorm:"not null;index:idx_cascade_runs_comp_time"`
	UserID       int64          `gorm:"default:0"`
	Domain       string         `gorm:"type:varchar(64);not null"`
	RootType     string         `gorm:"type:varchar(64);not null"`
	RootID       int64          `gorm:"not null"`
	NewStatus    int            `gorm:"not null"`
	Outcome      CascadeOutcome `gorm:"type:varchar(20);not null"`
	AffectedIDs  pq.Int64Array  `gorm:"type:bigint[]"`
	Mutations    JSONB          `gorm:"type:jsonb"`
	ErrorMessage string
	CreatedAt    time.Time `gorm:"autoCreateTime;index:idx_cascade_runs_comp_time"`
}

func (CascadeRun) TableName() string {
	return "cascade_runs"
}
