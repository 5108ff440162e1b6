package adjustments

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/reservation-engine/internal/repo"
	"github.com/angelmondragon/reservation-engine/pkg/db/models"
	"github.com/angelmondragon/reservation-engine/pkg/enums"
)

// Repository persists stock adjustments.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, adjustment *models.StockAdjustment) error
	Get(ctx context.Context, id uuid.UUID) (*models.StockAdjustment, error)
	List(ctx context.Context, filter ListFilter) ([]models.StockAdjustment, error)
	Resolve(ctx context.Context, id uuid.UUID, input resolution) (int64, error)
}

type resolution struct {
	Status          enums.AdjustmentStatus
	ReviewedBy      uuid.UUID
	RejectionReason *string
	At              time.Time
}

type repository struct {
	repo.Base
}

// NewRepository returns an adjustment repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{Base: repo.NewBase(tx)}
}

func (r *repository) Create(ctx context.Context, adjustment *models.StockAdjustment) error {
	return r.DB(ctx).Create(adjustment).Error
}

func (r *repository) Get(ctx context.Context, id uuid.UUID) (*models.StockAdjustment, error) {
	var adjustment models.StockAdjustment
	if err := r.DB(ctx).First(&adjustment, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &adjustment, nil
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]models.StockAdjustment, error) {
	query := r.DB(ctx)
	if filter.ProductID != nil {
		query = query.Where("product_id = ?", *filter.ProductID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.After != nil {
		query = query.Where("(created_at < ? OR (created_at = ? AND id < ?))",
			filter.After.CreatedAt, filter.After.CreatedAt, filter.After.ID)
	}
	var rows []models.StockAdjustment
	err := query.
		Order("created_at DESC").
		Order("id DESC").
		Limit(filter.Limit).
		Find(&rows).Error
	return rows, err
}

// Resolve moves a PENDING adjustment to a terminal status. Zero rows means the
// adjustment is missing or was already resolved.
func (r *repository) Resolve(ctx context.Context, id uuid.UUID, input resolution) (int64, error) {
	res := r.DB(ctx).
		Model(&models.StockAdjustment{}).
		Where("id = ? AND status = ?", id, enums.AdjustmentStatusPending).
		Updates(map[string]any{
			"status":           input.Status,
			"reviewed_by":      input.ReviewedBy,
			"rejection_reason": input.RejectionReason,
			"reviewed_at":      input.At,
			"updated_at":       input.At,
		})
	return res.RowsAffected, res.Error
}
