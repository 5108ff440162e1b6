package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/reservation-engine/pkg/db/models"
	"github.com/angelmondragon/reservation-engine/pkg/logger"
	"github.com/angelmondragon/reservation-engine/pkg/metrics"
)

const (
	defaultHoldTTL        = 15 * time.Minute
	defaultHoldSweepBatch = 200
)

type slotReleaser interface {
	ListStaleHolds(ctx context.Context, cutoff time.Time, limit int) ([]models.TimeSlot, error)
	ReleaseStaleHold(ctx context.Context, slotID uuid.UUID, cutoff time.Time) (bool, error)
}

// HoldExpiryJobParams configure the stale slot hold sweep.
type HoldExpiryJobParams struct {
	Logger    *logger.Logger
	Slots     slotReleaser
	Metrics   *metrics.ReservationMetrics
	HoldTTL   time.Duration
	BatchSize int
}

// NewHoldExpiryJob builds the job that frees BOOKED slots nobody attached a
// booking to within the hold TTL.
func NewHoldExpiryJob(params HoldExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Slots == nil {
		return nil, fmt.Errorf("slot service required")
	}
	ttl := params.HoldTTL
	if ttl <= 0 {
		ttl = defaultHoldTTL
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultHoldSweepBatch
	}
	return &holdExpiryJob{
		logg:    params.Logger,
		slots:   params.Slots,
		metrics: params.Metrics,
		ttl:     ttl,
		batch:   batch,
		now:     time.Now,
	}, nil
}

type holdExpiryJob struct {
	logg    *logger.Logger
	slots   slotReleaser
	metrics *metrics.ReservationMetrics
	ttl     time.Duration
	batch   int
	now     func() time.Time
}

func (j *holdExpiryJob) Name() string { return "slot-hold-expiry" }

func (j *holdExpiryJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.ttl)
	stale, err := j.slots.ListStaleHolds(ctx, cutoff, j.batch)
	if err != nil {
		return fmt.Errorf("query stale holds: %w", err)
	}

	var errs error
	released, skipped := 0, 0
	for _, slot := range stale {
		ok, err := j.slots.ReleaseStaleHold(ctx, slot.ID, cutoff)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("release slot %s: %w", slot.ID, err))
			continue
		}
		if !ok {
			// linked or re-reserved since the query
			skipped++
			continue
		}
		released++
	}
	j.metrics.AddExpiredHolds(released)

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":   cutoff,
		"found":    len(stale),
		"released": released,
		"skipped":  skipped,
	})
	j.logg.Info(logCtx, "slot hold expiry sweep complete")
	return errs
}
