package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"backend/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PRFilter narrows a purchase-request listing. Zero values mean "no filter".
type PRFilter struct {
	Status      string
	Designation string
	Search      string // matches against pr_number
	Page        int
	Limit       int
}

// PurchaseRequestRepository is the persistence boundary for purchase
// requests. UpdateState is the only write path for lifecycle state and is
// guarded by an optimistic version check.
type PurchaseRequestRepository interface {
	Create(ctx context.Context, pr *model.PurchaseRequest) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.PurchaseRequest, error)
	FindByNumber(ctx context.Context, prNumber string) (*model.PurchaseRequest, error)
	List(ctx context.Context, filter PRFilter) ([]model.PurchaseRequest, int64, error)
	UpdateState(ctx context.Context, id uuid.UUID, fromVersion int64, status model.PRStatus, designation model.Designation) error
}

type purchaseRequestRepository struct {
	db *gorm.DB
}

func NewPurchaseRequestRepository(db *gorm.DB) PurchaseRequestRepository {
	return &purchaseRequestRepository{db: db}
}

func (r *purchaseRequestRepository) Create(ctx context.Context, pr *model.PurchaseRequest) error {
	return GetDB(ctx, r.db).Create(pr).Error
}

func (r *purchaseRequestRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.PurchaseRequest, error) {
	var pr model.PurchaseRequest
	if err := GetDB(ctx, r.db).First(&pr, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, model.ErrPRNotFound
		}
		return nil, err
	}
	return &pr, nil
}

func (r *purchaseRequestRepository) FindByNumber(ctx context.Context, prNumber string) (*model.PurchaseRequest, error) {
	var pr model.PurchaseRequest
	if err := GetDB(ctx, r.db).First(&pr, "pr_number = ?", prNumber).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, model.ErrPRNotFound
		}
		return nil, err
	}
	return &pr, nil
}

func (r *purchaseRequestRepository) List(ctx context.Context, filter PRFilter) ([]model.PurchaseRequest, int64, error) {
	var prs []model.PurchaseRequest
	var total int64

	db := GetDB(ctx, r.db)
	query := db.Model(&model.PurchaseRequest{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Designation != "" {
		query = query.Where("current_designation = ?", filter.Designation)
	}
	if filter.Search != "" {
		query = query.Where("pr_number ILIKE ?", "%"+filter.Search+"%")
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (filter.Page - 1) * filter.Limit
	if err := query.Order("created_at DESC").Offset(offset).Limit(filter.Limit).Find(&prs).Error; err != nil {
		return nil, 0, err
	}

	return prs, total, nil
}

// UpdateState advances the denormalized lifecycle state with a
// compare-and-swap on the version column. A stale version means a
// concurrent transition won the race; the caller must reload and retry.
func (r *purchaseRequestRepository) UpdateState(ctx context.Context, id uuid.UUID, fromVersion int64, status model.PRStatus, designation model.Designation) error {
	res := GetDB(ctx, r.db).Model(&model.PurchaseRequest{}).
		Where("id = ? AND version = ?", id, fromVersion).
		Updates(map[string]interface{}{
			"status":              status,
			"current_designation": designation,
			"version":             gorm.Expr("version + 1"),
			"updated_at":          time.Now(),
		})
	if res.Error != nil {
		return fmt.Errorf("failed to update purchase request state: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return model.ErrConcurrentModification
	}
	return nil
}
