package slots

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/reservation-engine/internal/repo"
	"github.com/angelmondragon/reservation-engine/pkg/db/models"
	"github.com/angelmondragon/reservation-engine/pkg/enums"
)

const insertBatchSize = 200

// Repository persists time slots. Every mutating call returns the affected
// row count so callers can branch on compare-and-swap outcomes.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateBatch(ctx context.Context, slots []models.TimeSlot) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.TimeSlot, error)
	FindByProviderStart(ctx context.Context, providerID uuid.UUID, start time.Time) (*models.TimeSlot, error)
	FindByProviderAndIDs(ctx context.Context, providerID uuid.UUID, ids []uuid.UUID) ([]models.TimeSlot, error)
	FindByBookingID(ctx context.Context, bookingID uuid.UUID) ([]models.TimeSlot, error)
	ListIntersecting(ctx context.Context, providerID uuid.UUID, from, to time.Time) ([]models.TimeSlot, error)
	List(ctx context.Context, providerID uuid.UUID, filter ListFilter) ([]models.TimeSlot, error)
	ListStaleHolds(ctx context.Context, cutoff time.Time, limit int) ([]models.TimeSlot, error)
	DeleteAvailable(ctx context.Context, providerID uuid.UUID, ids []uuid.UUID) (int64, error)
	MarkBooked(ctx context.Context, id uuid.UUID, at time.Time) (int64, error)
	MarkAvailable(ctx context.Context, id uuid.UUID, guard ReleaseGuard, at time.Time) (int64, error)
	LinkBooking(ctx context.Context, id, bookingID uuid.UUID, at time.Time) (int64, error)
}

type repository struct {
	repo.Base
}

// NewRepository returns a slot repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{Base: repo.NewBase(tx)}
}

func (r *repository) CreateBatch(ctx context.Context, slots []models.TimeSlot) error {
	if len(slots) == 0 {
		return nil
	}
	return r.DB(ctx).CreateInBatches(&slots, insertBatchSize).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.TimeSlot, error) {
	var slot models.TimeSlot
	if err := r.DB(ctx).Where("id = ?", id).First(&slot).Error; err != nil {
		return nil, err
	}
	return &slot, nil
}

func (r *repository) FindByProviderStart(ctx context.Context, providerID uuid.UUID, start time.Time) (*models.TimeSlot, error) {
	var slot models.TimeSlot
	if err := r.DB(ctx).
		Where("provider_id = ? AND start_time = ?", providerID, start).
		First(&slot).Error; err != nil {
		return nil, err
	}
	return &slot, nil
}

func (r *repository) FindByProviderAndIDs(ctx context.Context, providerID uuid.UUID, ids []uuid.UUID) ([]models.TimeSlot, error) {
	var rows []models.TimeSlot
	if len(ids) == 0 {
		return rows, nil
	}
	err := r.DB(ctx).
		Where("provider_id = ? AND id IN ?", providerID, ids).
		Find(&rows).Error
	return rows, err
}

func (r *repository) FindByBookingID(ctx context.Context, bookingID uuid.UUID) ([]models.TimeSlot, error) {
	var rows []models.TimeSlot
	err := r.DB(ctx).
		Where("booking_id = ?", bookingID).
		Order("start_time ASC").
		Find(&rows).Error
	return rows, err
}

// ListIntersecting returns the provider's slots sharing any instant with [from, to).
func (r *repository) ListIntersecting(ctx context.Context, providerID uuid.UUID, from, to time.Time) ([]models.TimeSlot, error) {
	var rows []models.TimeSlot
	err := r.DB(ctx).
		Where("provider_id = ? AND start_time < ? AND end_time > ?", providerID, to, from).
		Order("start_time ASC").
		Find(&rows).Error
	return rows, err
}

func (r *repository) List(ctx context.Context, providerID uuid.UUID, filter ListFilter) ([]models.TimeSlot, error) {
	query := r.DB(ctx).Where("provider_id = ?", providerID)
	if filter.From != nil && filter.To != nil {
		query = query.Where("start_time < ? AND end_time > ?", *filter.To, *filter.From)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	var rows []models.TimeSlot
	err := query.Order("start_time ASC").Find(&rows).Error
	return rows, err
}

func (r *repository) ListStaleHolds(ctx context.Context, cutoff time.Time, limit int) ([]models.TimeSlot, error) {
	var rows []models.TimeSlot
	err := r.DB(ctx).
		Where("status = ? AND booking_id IS NULL AND booked_at < ?", enums.SlotStatusBooked, cutoff).
		Order("booked_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *repository) DeleteAvailable(ctx context.Context, providerID uuid.UUID, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, errors.New("slot ids required")
	}
	res := r.DB(ctx).
		Where("provider_id = ? AND id IN ? AND status = ?", providerID, ids, enums.SlotStatusAvailable).
		Delete(&models.TimeSlot{})
	return res.RowsAffected, res.Error
}

// MarkBooked flips AVAILABLE to BOOKED; zero rows means another caller won.
func (r *repository) MarkBooked(ctx context.Context, id uuid.UUID, at time.Time) (int64, error) {
	res := r.DB(ctx).
		Model(&models.TimeSlot{}).
		Where("id = ? AND status = ?", id, enums.SlotStatusAvailable).
		Updates(map[string]any{
			"status":     enums.SlotStatusBooked,
			"booked_at":  at,
			"updated_at": at,
		})
	return res.RowsAffected, res.Error
}

// ReleaseGuard narrows MarkAvailable to a slot still in the state the caller
// observed. The zero value releases unconditionally.
type ReleaseGuard struct {
	// BookingID requires the slot to still carry this booking.
	BookingID *uuid.UUID
	// HeldBefore requires an unlinked hold whose booked_at precedes it.
	HeldBefore *time.Time
}

func (r *repository) MarkAvailable(ctx context.Context, id uuid.UUID, guard ReleaseGuard, at time.Time) (int64, error) {
	query := r.DB(ctx).
		Model(&models.TimeSlot{}).
		Where("id = ?", id)
	if guard.BookingID != nil {
		query = query.Where("booking_id = ?", *guard.BookingID)
	}
	if guard.HeldBefore != nil {
		query = query.Where("status = ? AND booking_id IS NULL AND booked_at < ?", enums.SlotStatusBooked, *guard.HeldBefore)
	}
	res := query.Updates(map[string]any{
		"status":     enums.SlotStatusAvailable,
		"booking_id": nil,
		"booked_at":  nil,
		"updated_at": at,
	})
	return res.RowsAffected, res.Error
}

func (r *repository) LinkBooking(ctx context.Context, id, bookingID uuid.UUID, at time.Time) (int64, error) {
	res := r.DB(ctx).
		Model(&models.TimeSlot{}).
		Where("id = ? AND status = ?", id, enums.SlotStatusBooked).
		Updates(map[string]any{
			"booking_id": bookingID,
			"updated_at": at,
		})
	return res.RowsAffected, res.Error
}
