package inventory

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/reservation-engine/internal/repo"
	"github.com/angelmondragon/reservation-engine/pkg/db/models"
)

// Repository owns stock_records. Each mutation is one conditional UPDATE
// whose WHERE clause encodes 0 <= reserved_stock <= current_stock; the
// affected-row count reports whether the guard held.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Get(ctx context.Context, productID uuid.UUID) (*models.StockRecord, error)
	EnsureRecord(ctx context.Context, productID uuid.UUID) error
	Reserve(ctx context.Context, productID uuid.UUID, qty int, at time.Time) (int64, error)
	Release(ctx context.Context, productID uuid.UUID, qty int, at time.Time) (int64, error)
	Confirm(ctx context.Context, productID uuid.UUID, qty int, at time.Time) (int64, error)
	ReduceDirect(ctx context.Context, productID uuid.UUID, qty int, at time.Time) (int64, error)
	Adjust(ctx context.Context, productID uuid.UUID, delta int, at time.Time) (int64, error)
	Set(ctx context.Context, productID uuid.UUID, qty int, unitCost *decimal.Decimal, at time.Time) (int64, error)
	UpdateUnitCost(ctx context.Context, productID uuid.UUID, unitCost decimal.Decimal, at time.Time) (int64, error)
	ListLowStock(ctx context.Context, threshold, limit int) ([]models.StockRecord, error)
}

type repository struct {
	repo.Base
}

// NewRepository returns a stock repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{Base: repo.NewBase(tx)}
}

func (r *repository) Get(ctx context.Context, productID uuid.UUID) (*models.StockRecord, error) {
	var record models.StockRecord
	if err := r.DB(ctx).First(&record, "product_id = ?", productID).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

// EnsureRecord inserts a zero-stock row unless one exists.
func (r *repository) EnsureRecord(ctx context.Context, productID uuid.UUID) error {
	record := models.StockRecord{ProductID: productID, UnitCost: decimal.Zero}
	return r.DB(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&record).Error
}

func (r *repository) Reserve(ctx context.Context, productID uuid.UUID, qty int, at time.Time) (int64, error) {
	return r.update(ctx, productID,
		"current_stock - reserved_stock >= ?", []any{qty},
		map[string]any{"reserved_stock": gorm.Expr("reserved_stock + ?", qty)}, at)
}

func (r *repository) Release(ctx context.Context, productID uuid.UUID, qty int, at time.Time) (int64, error) {
	return r.update(ctx, productID,
		"reserved_stock >= ?", []any{qty},
		map[string]any{"reserved_stock": gorm.Expr("reserved_stock - ?", qty)}, at)
}

func (r *repository) Confirm(ctx context.Context, productID uuid.UUID, qty int, at time.Time) (int64, error) {
	return r.update(ctx, productID,
		"reserved_stock >= ?", []any{qty},
		map[string]any{
			"current_stock":  gorm.Expr("current_stock - ?", qty),
			"reserved_stock": gorm.Expr("reserved_stock - ?", qty),
		}, at)
}

func (r *repository) ReduceDirect(ctx context.Context, productID uuid.UUID, qty int, at time.Time) (int64, error) {
	return r.update(ctx, productID,
		"current_stock - reserved_stock >= ?", []any{qty},
		map[string]any{"current_stock": gorm.Expr("current_stock - ?", qty)}, at)
}

func (r *repository) Adjust(ctx context.Context, productID uuid.UUID, delta int, at time.Time) (int64, error) {
	return r.update(ctx, productID,
		"current_stock + ? >= reserved_stock AND current_stock + ? >= 0", []any{delta, delta},
		map[string]any{"current_stock": gorm.Expr("current_stock + ?", delta)}, at)
}

// Set overwrites current_stock, refusing values below what is already held.
func (r *repository) Set(ctx context.Context, productID uuid.UUID, qty int, unitCost *decimal.Decimal, at time.Time) (int64, error) {
	values := map[string]any{"current_stock": qty}
	if unitCost != nil {
		values["unit_cost"] = *unitCost
	}
	return r.update(ctx, productID, "reserved_stock <= ?", []any{qty}, values, at)
}

func (r *repository) UpdateUnitCost(ctx context.Context, productID uuid.UUID, unitCost decimal.Decimal, at time.Time) (int64, error) {
	return r.update(ctx, productID, "", nil, map[string]any{"unit_cost": unitCost}, at)
}

func (r *repository) ListLowStock(ctx context.Context, threshold, limit int) ([]models.StockRecord, error) {
	var rows []models.StockRecord
	err := r.DB(ctx).
		Where("current_stock - reserved_stock <= ?", threshold).
		Order("current_stock - reserved_stock ASC").
		Order("product_id ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *repository) update(ctx context.Context, productID uuid.UUID, guard string, args []any, values map[string]any, at time.Time) (int64, error) {
	values["updated_at"] = at
	query := r.DB(ctx).
		Model(&models.StockRecord{}).
		Where("product_id = ?", productID)
	if guard != "" {
		query = query.Where(guard, args...)
	}
	res := query.Updates(values)
	return res.RowsAffected, res.Error
}
