package repository

import (
	"context"

	"backend/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TrackingRepository is the append-only trail store. Append is only ever
// called from inside the lifecycle service's transaction; entries are never
// updated or deleted.
type TrackingRepository interface {
	Append(ctx context.Context, entry *model.TrackingEntry) error
	ListForPR(ctx context.Context, prID uuid.UUID) ([]model.TrackingEntry, error)
	ListRecent(ctx context.Context, limit int) ([]model.TrackingEntry, error)
}

type trackingRepository struct {
	db *gorm.DB
}

func NewTrackingRepository(db *gorm.DB) TrackingRepository {
	return &trackingRepository{db: db}
}

func (r *trackingRepository) Append(ctx context.Context, entry *model.TrackingEntry) error {
	return GetDB(ctx, r.db).Create(entry).Error
}

// ListForPR returns the full trail of one purchase request oldest first, so
// the sequence reads as the walk the request took through the offices.
func (r *trackingRepository) ListForPR(ctx context.Context, prID uuid.UUID) ([]model.TrackingEntry, error) {
	var entries []model.TrackingEntry
	if err := GetDB(ctx, r.db).
		Where("pr_id = ?", prID).
		Order("created_at ASC").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// ListRecent returns the newest entries across all purchase requests for
// notification feeds, with the owning request preloaded for its pr_number.
func (r *trackingRepository) ListRecent(ctx context.Context, limit int) ([]model.TrackingEntry, error) {
	var entries []model.TrackingEntry
	if err := GetDB(ctx, r.db).
		Preload("PurchaseRequest").
		Order("created_at DESC").
		Limit(limit).
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
