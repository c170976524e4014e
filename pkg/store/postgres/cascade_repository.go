package postgres

import (
	"context"

	"gorm.io/gorm"

	"github.com/agencydesk/mdconsole/pkg/model"
)

// CascadeRepository is the journal of executed status changes.
type CascadeRepository struct {
	db *gorm.DB
}

func NewCascadeRepository(db *gorm.DB) *CascadeRepository {
	return &CascadeRepository{db: db}
}

// Record writes the run and its outbox event in one transaction, so the relay never
// publishes an event for a run that was not journaled.
func (r *CascadeRepository) Record(ctx context.Context, run *model.CascadeRun, event *model.CascadeEvent) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(run).Error; err != nil {
			return err
		}
		if event == nil {
			return nil
		}
		return tx.Create(event).Error
	})
}

func (r *CascadeRepository) List(ctx context.Context, compID int64, domain string, limit, offset int) ([]model.CascadeRun, int64, error) {
	var runs []model.CascadeRun
	var total int64

	query := r.db.WithContext(ctx).Model(&model.CascadeRun{}).Where("comp_id = ?", compID)
	if domain != "" {
		query = query.Where("domain = ?", domain)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&runs).Error

	return runs, total, err
}
