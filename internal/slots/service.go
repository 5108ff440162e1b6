package slots

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/angelmondragon/reservation-engine/pkg/db"
	"github.com/angelmondragon/reservation-engine/pkg/db/models"
	"github.com/angelmondragon/reservation-engine/pkg/enums"
	pkgerrors "github.com/angelmondragon/reservation-engine/pkg/errors"
	"github.com/angelmondragon/reservation-engine/pkg/logger"
	"github.com/angelmondragon/reservation-engine/pkg/metrics"
)

const metricResource = "slot"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service exposes slot generation, booking and cancellation.
type Service interface {
	GenerateSlots(ctx context.Context, providerID uuid.UUID, blocks []Block, defaultPriceCents int64) (int, error)
	ListSlots(ctx context.Context, providerID uuid.UUID, filter ListFilter) ([]models.TimeSlot, error)
	CancelSlot(ctx context.Context, providerID, slotID uuid.UUID) error
	CancelSlotsBatch(ctx context.Context, providerID uuid.UUID, slotIDs []uuid.UUID) (int, error)
	ReserveSlot(ctx context.Context, providerID uuid.UUID, start, end time.Time) (*models.TimeSlot, error)
	ReleaseSlot(ctx context.Context, slotID uuid.UUID) error
	ReleaseStaleHold(ctx context.Context, slotID uuid.UUID, cutoff time.Time) (bool, error)
	ReleaseSlotByBookingReference(ctx context.Context, bookingID uuid.UUID) (int, error)
	LinkSlotToBooking(ctx context.Context, slotID, bookingID uuid.UUID) error
	ListStaleHolds(ctx context.Context, cutoff time.Time, limit int) ([]models.TimeSlot, error)
}

// ServiceParams wires the slot service.
type ServiceParams struct {
	Repo    Repository
	Tx      txRunner
	Policy  Policy
	Metrics *metrics.ReservationMetrics
	Logger  *logger.Logger
	Now     func() time.Time
}

type service struct {
	repo    Repository
	tx      txRunner
	policy  Policy
	metrics *metrics.ReservationMetrics
	logg    *logger.Logger
	now     func() time.Time
}

// NewService builds the slot service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("slot repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Policy.MinDuration <= 0 {
		return nil, fmt.Errorf("minimum slot duration must be positive")
	}
	if params.Policy.MaxHorizon <= 0 {
		return nil, fmt.Errorf("slot horizon must be positive")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:    params.Repo,
		tx:      params.Tx,
		policy:  params.Policy,
		metrics: params.Metrics,
		logg:    params.Logger,
		now:     now,
	}, nil
}

func (s *service) GenerateSlots(ctx context.Context, providerID uuid.UUID, blocks []Block, defaultPriceCents int64) (int, error) {
	if providerID == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "provider id required")
	}
	if len(blocks) == 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "at least one availability block required")
	}
	if defaultPriceCents < 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "default price must not be negative")
	}

	now := s.clock()
	horizon := now.Add(s.policy.MaxHorizon)
	candidates := make([]Interval, 0)
	prices := make([]int64, 0)
	for i, block := range blocks {
		window := Interval{Start: normalize(block.Start), End: normalize(block.End)}
		if err := s.validateBlock(i, window, block, now, horizon); err != nil {
			return 0, err
		}
		price := defaultPriceCents
		if block.PriceCents != nil {
			price = *block.PriceCents
		}
		for _, piece := range Slice(window, time.Duration(block.DurationMinutes)*time.Minute) {
			candidates = append(candidates, piece)
			prices = append(prices, price)
		}
	}
	if len(candidates) == 0 {
		return 0, nil
	}

	if overlap := FindOverlap(candidates); overlap != nil {
		s.observe("generate", metrics.OutcomeConflict)
		return 0, overlapError("requested slots overlap", overlap.First, overlap.Second, nil)
	}

	minStart, maxEnd := candidates[0].Start, candidates[0].End
	for _, c := range candidates[1:] {
		if c.Start.Before(minStart) {
			minStart = c.Start
		}
		if c.End.After(maxEnd) {
			maxEnd = c.End
		}
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		existing, err := repo.ListIntersecting(ctx, providerID, minStart, maxEnd)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load existing slots")
		}
		if len(existing) > 0 {
			union := make([]Interval, 0, len(candidates)+len(existing))
			union = append(union, candidates...)
			for _, slot := range existing {
				union = append(union, Interval{Start: slot.StartTime.UTC(), End: slot.EndTime.UTC()})
			}
			if overlap := FindOverlap(union); overlap != nil {
				var existingID *uuid.UUID
				for _, idx := range []int{overlap.FirstIndex, overlap.SecondIndex} {
					if idx >= len(candidates) {
						id := existing[idx-len(candidates)].ID
						existingID = &id
						break
					}
				}
				return overlapError("slot conflicts with an existing slot", overlap.First, overlap.Second, existingID)
			}
		}

		rows := make([]models.TimeSlot, len(candidates))
		for i, c := range candidates {
			rows[i] = models.TimeSlot{
				ProviderID: providerID,
				StartTime:  c.Start,
				EndTime:    c.End,
				PriceCents: prices[i],
				Status:     enums.SlotStatusAvailable,
			}
		}
		if err := repo.CreateBatch(ctx, rows); err != nil {
			if dbpkg.IsConstraintViolation(err) {
				return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "slot was created concurrently")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert slots")
		}
		return nil
	})
	if err != nil {
		s.observeErr("generate", err)
		return 0, err
	}

	s.observe("generate", metrics.OutcomeSuccess)
	if s.logg != nil {
		logCtx := s.logg.WithProviderID(ctx, providerID.String())
		s.logg.Info(s.logg.WithField(logCtx, "slot_count", len(candidates)), "slots generated")
	}
	return len(candidates), nil
}

func (s *service) validateBlock(index int, window Interval, block Block, now, horizon time.Time) error {
	details := map[string]any{"block_index": index}
	if !window.End.After(window.Start) {
		return pkgerrors.New(pkgerrors.CodeValidation, "block end must be after block start").WithDetails(details)
	}
	if window.Start.Before(now) {
		return pkgerrors.New(pkgerrors.CodeValidation, "block start is in the past").WithDetails(details)
	}
	if window.Start.After(horizon) {
		details["max_horizon_hours"] = int(s.policy.MaxHorizon.Hours())
		return pkgerrors.New(pkgerrors.CodeValidation, "block start is beyond the booking horizon").WithDetails(details)
	}
	if time.Duration(block.DurationMinutes)*time.Minute < s.policy.MinDuration {
		details["min_duration_minutes"] = int(s.policy.MinDuration.Minutes())
		return pkgerrors.New(pkgerrors.CodeValidation, "slot duration below minimum").WithDetails(details)
	}
	if block.PriceCents != nil && *block.PriceCents < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "block price must not be negative").WithDetails(details)
	}
	return nil
}

func (s *service) ListSlots(ctx context.Context, providerID uuid.UUID, filter ListFilter) ([]models.TimeSlot, error) {
	if providerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "provider id required")
	}
	if (filter.From == nil) != (filter.To == nil) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "from and to must be provided together")
	}
	if filter.From != nil {
		from, to := normalize(*filter.From), normalize(*filter.To)
		if to.Before(from) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "to must not be before from")
		}
		filter.From, filter.To = &from, &to
	}
	if filter.Status != nil && !filter.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid slot status %q", *filter.Status))
	}
	rows, err := s.repo.List(ctx, providerID, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list slots")
	}
	return rows, nil
}

func (s *service) CancelSlot(ctx context.Context, providerID, slotID uuid.UUID) error {
	if providerID == uuid.Nil || slotID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "provider id and slot id required")
	}
	slot, err := s.repo.FindByID(ctx, slotID)
	if err != nil {
		if dbpkg.IsNotFound(err) {
			return slotNotFound(slotID)
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load slot")
	}
	if slot.ProviderID != providerID {
		return slotNotFound(slotID)
	}
	if !slot.Status.Deletable() {
		return slotBooked(slot)
	}
	deleted, err := s.repo.DeleteAvailable(ctx, providerID, []uuid.UUID{slotID})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete slot")
	}
	if deleted == 0 {
		return pkgerrors.New(pkgerrors.CodeConflict, "slot was booked or removed concurrently").
			WithDetails(map[string]any{"slot_id": slotID.String()})
	}
	return nil
}

func (s *service) CancelSlotsBatch(ctx context.Context, providerID uuid.UUID, slotIDs []uuid.UUID) (int, error) {
	if providerID == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "provider id required")
	}
	ids := dedupe(slotIDs)
	if len(ids) == 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "at least one slot id required")
	}

	var deleted int64
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		rows, err := repo.FindByProviderAndIDs(ctx, providerID, ids)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load slots")
		}
		byID := make(map[uuid.UUID]models.TimeSlot, len(rows))
		for _, row := range rows {
			byID[row.ID] = row
		}
		for _, id := range ids {
			slot, ok := byID[id]
			if !ok {
				return slotNotFound(id)
			}
			if !slot.Status.Deletable() {
				return slotBooked(&slot)
			}
		}
		deleted, err = repo.DeleteAvailable(ctx, providerID, ids)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete slots")
		}
		if deleted != int64(len(ids)) {
			return pkgerrors.New(pkgerrors.CodeConflict, "slots changed while cancelling; nothing was deleted").
				WithDetails(map[string]any{"requested": len(ids), "deletable": deleted})
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return int(deleted), nil
}

func (s *service) ReserveSlot(ctx context.Context, providerID uuid.UUID, start, end time.Time) (*models.TimeSlot, error) {
	if providerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "provider id required")
	}
	start, end = normalize(start), normalize(end)
	if !end.After(start) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "end time must be after start time")
	}

	slot, err := s.repo.FindByProviderStart(ctx, providerID, start)
	if err != nil {
		if dbpkg.IsNotFound(err) {
			s.observe("reserve", metrics.OutcomeRejected)
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "slot not found").
				WithDetails(map[string]any{"start_time": start.Format(timeLayout)})
		}
		s.observe("reserve", metrics.OutcomeError)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load slot")
	}
	if !slot.EndTime.Equal(end) {
		s.observe("reserve", metrics.OutcomeRejected)
		return nil, pkgerrors.New(pkgerrors.CodeBusinessRule, "requested end time does not match the slot").
			WithDetails(map[string]any{
				"slot_id":            slot.ID.String(),
				"slot_end_time":      slot.EndTime.UTC().Format(timeLayout),
				"requested_end_time": end.Format(timeLayout),
			})
	}
	if !slot.Status.CanTransitionTo(enums.SlotStatusBooked) {
		s.observe("reserve", metrics.OutcomeConflict)
		return nil, slotUnavailable(slot.ID)
	}

	at := s.clock()
	updated, err := s.repo.MarkBooked(ctx, slot.ID, at)
	if err != nil {
		s.observe("reserve", metrics.OutcomeError)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reserve slot")
	}
	if updated == 0 {
		s.observe("reserve", metrics.OutcomeConflict)
		return nil, slotUnavailable(slot.ID)
	}

	slot.Status = enums.SlotStatusBooked
	slot.BookedAt = &at
	slot.UpdatedAt = at
	s.observe("reserve", metrics.OutcomeSuccess)
	return slot, nil
}

// ReleaseSlot returns a slot to AVAILABLE and clears its booking link.
func (s *service) ReleaseSlot(ctx context.Context, slotID uuid.UUID) error {
	if slotID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "slot id required")
	}
	released, err := s.release(ctx, slotID, ReleaseGuard{})
	if err != nil {
		return err
	}
	if !released {
		return slotNotFound(slotID)
	}
	return nil
}

// ReleaseStaleHold releases the slot only while it is still an unlinked hold
// booked before cutoff. It reports false when a booking was linked or the
// slot was re-reserved since it was listed.
func (s *service) ReleaseStaleHold(ctx context.Context, slotID uuid.UUID, cutoff time.Time) (bool, error) {
	if slotID == uuid.Nil {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "slot id required")
	}
	cutoff = normalize(cutoff)
	return s.release(ctx, slotID, ReleaseGuard{HeldBefore: &cutoff})
}

// release is the single path back to AVAILABLE for API cancellations,
// booking cleanup and the hold expiry sweep.
func (s *service) release(ctx context.Context, slotID uuid.UUID, guard ReleaseGuard) (bool, error) {
	updated, err := s.repo.MarkAvailable(ctx, slotID, guard, s.clock())
	if err != nil {
		s.observe("release", metrics.OutcomeError)
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "release slot")
	}
	if updated == 0 {
		return false, nil
	}
	s.observe("release", metrics.OutcomeSuccess)
	return true, nil
}

func (s *service) ReleaseSlotByBookingReference(ctx context.Context, bookingID uuid.UUID) (int, error) {
	if bookingID == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "booking id required")
	}
	slots, err := s.repo.FindByBookingID(ctx, bookingID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find slots by booking")
	}
	released := 0
	for _, slot := range slots {
		ok, err := s.release(ctx, slot.ID, ReleaseGuard{BookingID: &bookingID})
		if err != nil {
			return released, err
		}
		if ok {
			released++
		}
	}
	return released, nil
}

func (s *service) LinkSlotToBooking(ctx context.Context, slotID, bookingID uuid.UUID) error {
	if slotID == uuid.Nil || bookingID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "slot id and booking id required")
	}
	updated, err := s.repo.LinkBooking(ctx, slotID, bookingID, s.clock())
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "link slot to booking")
	}
	if updated == 1 {
		return nil
	}
	if _, err := s.repo.FindByID(ctx, slotID); err != nil {
		if dbpkg.IsNotFound(err) {
			return slotNotFound(slotID)
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load slot")
	}
	return pkgerrors.New(pkgerrors.CodeBusinessRule, "slot is not booked").
		WithDetails(map[string]any{"slot_id": slotID.String()})
}

func (s *service) ListStaleHolds(ctx context.Context, cutoff time.Time, limit int) ([]models.TimeSlot, error) {
	if limit <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "limit must be positive")
	}
	rows, err := s.repo.ListStaleHolds(ctx, normalize(cutoff), limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list stale holds")
	}
	return rows, nil
}

func (s *service) clock() time.Time {
	return normalize(s.now())
}

func (s *service) observe(operation, outcome string) {
	s.metrics.Observe(metricResource, operation, outcome)
}

func (s *service) observeErr(operation string, err error) {
	if pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		s.observe(operation, metrics.OutcomeConflict)
		return
	}
	s.observe(operation, metrics.OutcomeError)
}

// normalize stores every instant in UTC at microsecond precision so that
// equality lookups on start_time behave the same across drivers.
func normalize(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func overlapError(message string, first, second Interval, existingID *uuid.UUID) error {
	details := map[string]any{
		"first_start":  first.Start.Format(timeLayout),
		"first_end":    first.End.Format(timeLayout),
		"second_start": second.Start.Format(timeLayout),
		"second_end":   second.End.Format(timeLayout),
	}
	if existingID != nil {
		details["existing_slot_id"] = existingID.String()
	}
	msg := fmt.Sprintf("%s: %s-%s and %s-%s", message,
		first.Start.Format(timeLayout), first.End.Format(timeLayout),
		second.Start.Format(timeLayout), second.End.Format(timeLayout))
	return pkgerrors.New(pkgerrors.CodeConflict, msg).WithDetails(details)
}

func slotNotFound(id uuid.UUID) error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "slot not found").
		WithDetails(map[string]any{"slot_id": id.String()})
}

func slotBooked(slot *models.TimeSlot) error {
	return pkgerrors.New(pkgerrors.CodeBusinessRule, "slot is booked; cancel the booking first").
		WithDetails(map[string]any{
			"slot_id":    slot.ID.String(),
			"start_time": slot.StartTime.UTC().Format(timeLayout),
		})
}

func slotUnavailable(id uuid.UUID) error {
	return pkgerrors.New(pkgerrors.CodeConflict, "slot is no longer available").
		WithDetails(map[string]any{"slot_id": id.String()})
}
