package adjustments

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/reservation-engine/internal/inventory"
	dbpkg "github.com/angelmondragon/reservation-engine/pkg/db"
	"github.com/angelmondragon/reservation-engine/pkg/db/models"
	"github.com/angelmondragon/reservation-engine/pkg/enums"
	pkgerrors "github.com/angelmondragon/reservation-engine/pkg/errors"
	"github.com/angelmondragon/reservation-engine/pkg/logger"
	"github.com/angelmondragon/reservation-engine/pkg/metrics"
	"github.com/angelmondragon/reservation-engine/pkg/outbox"
	"github.com/angelmondragon/reservation-engine/pkg/outbox/payloads"
	"github.com/angelmondragon/reservation-engine/pkg/pagination"
)

const (
	metricResource   = "adjustment"
	defaultListLimit = 50
	maxListLimit     = 200
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service runs the stock adjustment approval queue.
type Service interface {
	RequestAdjustment(ctx context.Context, input RequestInput) (*models.StockAdjustment, error)
	ReviewAdjustment(ctx context.Context, id uuid.UUID, decision enums.ReviewDecision, reviewer uuid.UUID, rejectionReason *string) (*models.StockAdjustment, error)
	CancelAdjustment(ctx context.Context, id, actor uuid.UUID) (*models.StockAdjustment, error)
	GetAdjustment(ctx context.Context, id uuid.UUID) (*models.StockAdjustment, error)
	ListAdjustments(ctx context.Context, filter ListFilter) ([]models.StockAdjustment, string, error)
	RecordDirectSet(ctx context.Context, tx *gorm.DB, audit inventory.DirectSetAudit) (uuid.UUID, error)
}

// ServiceParams wires the adjustment service.
type ServiceParams struct {
	Repo      Repository
	Ledger    inventory.Repository
	Tx        txRunner
	Outbox    outboxPublisher
	Projector inventory.Projector
	Metrics   *metrics.ReservationMetrics
	Logger    *logger.Logger
	Now       func() time.Time
}

type service struct {
	repo      Repository
	ledger    inventory.Repository
	tx        txRunner
	outbox    outboxPublisher
	projector inventory.Projector
	metrics   *metrics.ReservationMetrics
	logg      *logger.Logger
	now       func() time.Time
}

// NewService builds the adjustment service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("adjustment repository required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("stock repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	projector := params.Projector
	if projector == nil {
		projector = inventory.NoopProjector{}
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:      params.Repo,
		ledger:    params.Ledger,
		tx:        params.Tx,
		outbox:    params.Outbox,
		projector: projector,
		metrics:   params.Metrics,
		logg:      params.Logger,
		now:       now,
	}, nil
}

func (s *service) RequestAdjustment(ctx context.Context, input RequestInput) (*models.StockAdjustment, error) {
	if err := validateRequest(&input); err != nil {
		return nil, err
	}

	previous := 0
	record, err := s.ledger.Get(ctx, input.ProductID)
	switch {
	case err == nil:
		previous = record.CurrentStock
	case dbpkg.IsNotFound(err):
	default:
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load stock")
	}

	adjustment := &models.StockAdjustment{
		ProductID:     input.ProductID,
		Type:          input.Type,
		Quantity:      input.Quantity,
		PreviousStock: previous,
		NewStock:      input.Type.Preview(previous, input.Quantity),
		Status:        enums.AdjustmentStatusPending,
		Reason:        input.Reason,
		RequestedBy:   input.RequestedBy,
		NewUnitCost:   input.NewUnitCost,
	}
	if err := s.repo.Create(ctx, adjustment); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create adjustment")
	}
	s.metrics.Observe(metricResource, "request", metrics.OutcomeSuccess)
	return adjustment, nil
}

func (s *service) ReviewAdjustment(ctx context.Context, id uuid.UUID, decision enums.ReviewDecision, reviewer uuid.UUID, rejectionReason *string) (*models.StockAdjustment, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "adjustment id required")
	}
	if !decision.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid decision %q", decision))
	}
	if reviewer == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reviewer id required")
	}
	var reason *string
	if decision == enums.ReviewDecisionReject {
		if rejectionReason == nil || strings.TrimSpace(*rejectionReason) == "" {
			return nil, pkgerrors.New(pkgerrors.CodeBusinessRule, "rejection requires a reason")
		}
		trimmed := strings.TrimSpace(*rejectionReason)
		reason = &trimmed
	}

	var adjustment *models.StockAdjustment
	var record *models.StockRecord
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		adjustment, err = s.resolve(ctx, tx, id, resolution{
			Status:          decision.TargetStatus(),
			ReviewedBy:      reviewer,
			RejectionReason: reason,
			At:              s.clock(),
		})
		if err != nil {
			return err
		}
		if decision == enums.ReviewDecisionApprove {
			record, err = s.apply(ctx, s.ledger.WithTx(tx), adjustment)
			if err != nil {
				return err
			}
		}
		return s.emitReviewed(ctx, tx, adjustment, reviewer)
	})
	if err != nil {
		s.observeErr(string(decision), err)
		return nil, err
	}

	s.metrics.Observe(metricResource, string(decision), metrics.OutcomeSuccess)
	if record != nil {
		inventory.PublishSellable(ctx, s.projector, s.logg, record)
	}
	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"adjustment_id": adjustment.ID.String(),
			"product_id":    adjustment.ProductID.String(),
			"status":        adjustment.Status,
		})
		s.logg.Info(logCtx, "stock adjustment reviewed")
	}
	return adjustment, nil
}

func (s *service) CancelAdjustment(ctx context.Context, id, actor uuid.UUID) (*models.StockAdjustment, error) {
	if id == uuid.Nil || actor == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "adjustment id and actor id required")
	}
	reason := WithdrawnReason

	var adjustment *models.StockAdjustment
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		existing, err := s.repo.WithTx(tx).Get(ctx, id)
		if err != nil {
			if dbpkg.IsNotFound(err) {
				return adjustmentNotFound(id)
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load adjustment")
		}
		if existing.RequestedBy != actor {
			return pkgerrors.New(pkgerrors.CodeBusinessRule, "only the requester may withdraw an adjustment").
				WithDetails(map[string]any{"adjustment_id": id.String()})
		}
		adjustment, err = s.resolve(ctx, tx, id, resolution{
			Status:          enums.AdjustmentStatusRejected,
			ReviewedBy:      actor,
			RejectionReason: &reason,
			At:              s.clock(),
		})
		if err != nil {
			return err
		}
		return s.emitReviewed(ctx, tx, adjustment, actor)
	})
	if err != nil {
		s.observeErr("cancel", err)
		return nil, err
	}
	s.metrics.Observe(metricResource, "cancel", metrics.OutcomeSuccess)
	return adjustment, nil
}

func (s *service) GetAdjustment(ctx context.Context, id uuid.UUID) (*models.StockAdjustment, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "adjustment id required")
	}
	adjustment, err := s.repo.Get(ctx, id)
	if err != nil {
		if dbpkg.IsNotFound(err) {
			return nil, adjustmentNotFound(id)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load adjustment")
	}
	return adjustment, nil
}

// ListAdjustments returns newest first along with the cursor for the next
// page, which is empty on the last page.
func (s *service) ListAdjustments(ctx context.Context, filter ListFilter) ([]models.StockAdjustment, string, error) {
	if filter.Status != nil && !filter.Status.IsValid() {
		return nil, "", pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid adjustment status %q", *filter.Status))
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	if filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}
	limit := filter.Limit
	filter.Limit++
	rows, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list adjustments")
	}
	page, next := pagination.Trim(rows, limit, func(a models.StockAdjustment) pagination.Cursor {
		return pagination.Cursor{CreatedAt: a.CreatedAt, ID: a.ID}
	})
	return page, next, nil
}

// RecordDirectSet writes the already-approved SET row that accompanies an
// administrative stock overwrite.
func (s *service) RecordDirectSet(ctx context.Context, tx *gorm.DB, audit inventory.DirectSetAudit) (uuid.UUID, error) {
	if tx == nil {
		return uuid.Nil, fmt.Errorf("transaction required")
	}
	at := s.clock()
	actor := audit.Actor
	adjustment := &models.StockAdjustment{
		ProductID:     audit.ProductID,
		Type:          enums.AdjustmentTypeSet,
		Quantity:      audit.NewStock,
		PreviousStock: audit.PreviousStock,
		NewStock:      audit.NewStock,
		Status:        enums.AdjustmentStatusApproved,
		Reason:        directSetReason,
		RequestedBy:   actor,
		ReviewedBy:    &actor,
		NewUnitCost:   audit.UnitCost,
		ReviewedAt:    &at,
	}
	if err := s.repo.WithTx(tx).Create(ctx, adjustment); err != nil {
		return uuid.Nil, err
	}
	return adjustment.ID, nil
}

// resolve flips a PENDING adjustment and returns the updated row. The
// conditional update is what makes a second review fail.
func (s *service) resolve(ctx context.Context, tx *gorm.DB, id uuid.UUID, input resolution) (*models.StockAdjustment, error) {
	if !enums.AdjustmentStatusPending.CanTransitionTo(input.Status) {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, fmt.Sprintf("adjustments cannot be resolved to %s", input.Status))
	}
	repo := s.repo.WithTx(tx)
	updated, err := repo.Resolve(ctx, id, input)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update adjustment status")
	}
	adjustment, err := repo.Get(ctx, id)
	if err != nil {
		if dbpkg.IsNotFound(err) {
			return nil, adjustmentNotFound(id)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load adjustment")
	}
	if updated == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeBusinessRule, "adjustment already reviewed").
			WithDetails(map[string]any{
				"adjustment_id": id.String(),
				"status":        adjustment.Status,
			})
	}
	return adjustment, nil
}

// apply mutates the stock record for an approved adjustment using the same
// guards as the direct stock operations.
func (s *service) apply(ctx context.Context, ledger inventory.Repository, adjustment *models.StockAdjustment) (*models.StockRecord, error) {
	at := s.clock()
	if err := ledger.EnsureRecord(ctx, adjustment.ProductID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create stock record")
	}

	var (
		updated int64
		err     error
		delta   int
	)
	switch adjustment.Type {
	case enums.AdjustmentTypeIncrease:
		delta = adjustment.Quantity
		updated, err = ledger.Adjust(ctx, adjustment.ProductID, delta, at)
	case enums.AdjustmentTypeDecrease:
		delta = -adjustment.Quantity
		updated, err = ledger.Adjust(ctx, adjustment.ProductID, delta, at)
	case enums.AdjustmentTypeSet:
		updated, err = ledger.Set(ctx, adjustment.ProductID, adjustment.Quantity, adjustment.NewUnitCost, at)
	default:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, fmt.Sprintf("unknown adjustment type %q", adjustment.Type))
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "apply adjustment")
	}

	record, err := ledger.Get(ctx, adjustment.ProductID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load stock")
	}
	if updated == 0 {
		if adjustment.Type == enums.AdjustmentTypeSet {
			return nil, pkgerrors.New(pkgerrors.CodeBusinessRule,
				fmt.Sprintf("cannot set stock to %d; %d units are held", adjustment.Quantity, record.ReservedStock)).
				WithDetails(map[string]any{
					"adjustment_id": adjustment.ID.String(),
					"held":          record.ReservedStock,
					"requested":     adjustment.Quantity,
				})
		}
		return nil, inventory.AdjustmentRejected(record, delta)
	}

	if adjustment.NewUnitCost != nil && adjustment.Type != enums.AdjustmentTypeSet {
		if _, err := ledger.UpdateUnitCost(ctx, adjustment.ProductID, *adjustment.NewUnitCost, at); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update unit cost")
		}
		record.UnitCost = *adjustment.NewUnitCost
	}
	return record, nil
}

func (s *service) emitReviewed(ctx context.Context, tx *gorm.DB, adjustment *models.StockAdjustment, actor uuid.UUID) error {
	eventType := enums.EventStockAdjustmentRejected
	if adjustment.Status == enums.AdjustmentStatusApproved {
		eventType = enums.EventStockAdjustmentApproved
	}
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateStockAdjustment,
		AggregateID:   adjustment.ID,
		Actor:         &outbox.ActorRef{UserID: actor},
		Data: payloads.StockAdjustmentReviewedEvent{
			AdjustmentID:    adjustment.ID,
			ProductID:       adjustment.ProductID,
			Type:            string(adjustment.Type),
			Quantity:        adjustment.Quantity,
			PreviousStock:   adjustment.PreviousStock,
			NewStock:        adjustment.NewStock,
			Status:          string(adjustment.Status),
			ReviewedBy:      actor,
			RejectionReason: adjustment.RejectionReason,
			NewUnitCost:     adjustment.NewUnitCost,
		},
	})
}

func (s *service) clock() time.Time {
	return s.now().UTC()
}

func (s *service) observeErr(operation string, err error) {
	outcome := metrics.OutcomeError
	if pkgerrors.IsCode(err, pkgerrors.CodeBusinessRule) {
		outcome = metrics.OutcomeRejected
	}
	s.metrics.Observe(metricResource, operation, outcome)
}

func validateRequest(input *RequestInput) error {
	if input.ProductID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if input.RequestedBy == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "requester id required")
	}
	if !input.Type.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid adjustment type %q", input.Type))
	}
	switch {
	case input.Type == enums.AdjustmentTypeSet && input.Quantity < 0:
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must not be negative")
	case input.Type != enums.AdjustmentTypeSet && input.Quantity <= 0:
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	input.Reason = strings.TrimSpace(input.Reason)
	if input.Reason == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "reason required")
	}
	if input.NewUnitCost != nil && input.NewUnitCost.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unit cost must not be negative")
	}
	return nil
}

func adjustmentNotFound(id uuid.UUID) error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "adjustment not found").
		WithDetails(map[string]any{"adjustment_id": id.String()})
}
