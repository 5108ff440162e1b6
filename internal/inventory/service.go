package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	dbpkg "github.com/angelmondragon/reservation-engine/pkg/db"
	"github.com/angelmondragon/reservation-engine/pkg/db/models"
	"github.com/angelmondragon/reservation-engine/pkg/enums"
	pkgerrors "github.com/angelmondragon/reservation-engine/pkg/errors"
	"github.com/angelmondragon/reservation-engine/pkg/logger"
	"github.com/angelmondragon/reservation-engine/pkg/metrics"
	"github.com/angelmondragon/reservation-engine/pkg/outbox"
	"github.com/angelmondragon/reservation-engine/pkg/outbox/payloads"
)

const (
	metricResource    = "stock"
	defaultListLimit  = 100
	maxLowStockResult = 500
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// AuditRecorder persists the APPROVED SET adjustment that accompanies a
// direct stock overwrite, inside the caller's transaction.
type AuditRecorder interface {
	RecordDirectSet(ctx context.Context, tx *gorm.DB, audit DirectSetAudit) (uuid.UUID, error)
}

// Service is the stock reservation facade.
type Service interface {
	ReserveStock(ctx context.Context, productID uuid.UUID, qty int) (ReserveResult, error)
	ReleaseReservation(ctx context.Context, productID uuid.UUID, qty int) (*models.StockRecord, error)
	ConfirmSale(ctx context.Context, productID uuid.UUID, qty int) (*models.StockRecord, error)
	ReduceStockDirect(ctx context.Context, productID uuid.UUID, qty int) (*models.StockRecord, error)
	SetStock(ctx context.Context, productID uuid.UUID, qty int, unitCost *decimal.Decimal, actor uuid.UUID) (*models.StockRecord, error)
	AdjustStock(ctx context.Context, productID uuid.UUID, delta int) (*models.StockRecord, error)
	GetStock(ctx context.Context, productID uuid.UUID) (*models.StockRecord, error)
	ListLowStock(ctx context.Context, threshold *int, limit int) ([]models.StockRecord, error)
}

// ServiceParams wires the stock service.
type ServiceParams struct {
	Repo              Repository
	Tx                txRunner
	Outbox            outboxPublisher
	Audit             AuditRecorder
	Projector         Projector
	Metrics           *metrics.ReservationMetrics
	Logger            *logger.Logger
	LowStockThreshold int
	Now               func() time.Time
}

type service struct {
	repo      Repository
	tx        txRunner
	outbox    outboxPublisher
	audit     AuditRecorder
	projector Projector
	metrics   *metrics.ReservationMetrics
	logg      *logger.Logger
	threshold int
	now       func() time.Time
}

// NewService builds the stock service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("stock repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Audit == nil {
		return nil, fmt.Errorf("audit recorder required")
	}
	projector := params.Projector
	if projector == nil {
		projector = NoopProjector{}
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:      params.Repo,
		tx:        params.Tx,
		outbox:    params.Outbox,
		audit:     params.Audit,
		projector: projector,
		metrics:   params.Metrics,
		logg:      params.Logger,
		threshold: params.LowStockThreshold,
		now:       now,
	}, nil
}

func (s *service) ReserveStock(ctx context.Context, productID uuid.UUID, qty int) (ReserveResult, error) {
	if err := validateQuantity(productID, qty); err != nil {
		return ReserveResult{}, err
	}
	updated, err := s.repo.Reserve(ctx, productID, qty, s.clock())
	if err != nil {
		s.observe("reserve", metrics.OutcomeError)
		return ReserveResult{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reserve stock")
	}

	if updated == 0 {
		s.observe("reserve", metrics.OutcomeInsufficient)
		record, err := s.repo.Get(ctx, productID)
		if err != nil {
			if dbpkg.IsNotFound(err) {
				return ReserveResult{Reserved: false, Reason: ReasonNoStockRecord}, nil
			}
			return ReserveResult{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load stock")
		}
		return ReserveResult{Reserved: false, Reason: ReasonInsufficientStock, Available: record.Sellable()}, nil
	}

	s.observe("reserve", metrics.OutcomeSuccess)
	record, err := s.reload(ctx, productID)
	if err != nil {
		if s.logg != nil {
			s.logg.Warn(s.logg.WithProductID(ctx, productID.String()), "reserved stock but could not reload record")
		}
		return ReserveResult{Reserved: true}, nil
	}
	return ReserveResult{Reserved: true, Available: record.Sellable()}, nil
}

func (s *service) ReleaseReservation(ctx context.Context, productID uuid.UUID, qty int) (*models.StockRecord, error) {
	if err := validateQuantity(productID, qty); err != nil {
		return nil, err
	}
	updated, err := s.repo.Release(ctx, productID, qty, s.clock())
	if err != nil {
		s.observe("release", metrics.OutcomeError)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "release reservation")
	}
	if updated == 0 {
		s.observe("release", metrics.OutcomeRejected)
		return nil, s.explain(ctx, s.repo, productID, func(record *models.StockRecord) bool {
			return record.ReservedStock >= qty
		}, func(record *models.StockRecord) error {
			return pkgerrors.New(pkgerrors.CodeBusinessRule,
				fmt.Sprintf("cannot release %d units; only %d held", qty, record.ReservedStock)).
				WithDetails(quantityDetails(record, qty))
		})
	}
	s.observe("release", metrics.OutcomeSuccess)
	return s.reload(ctx, productID)
}

func (s *service) ConfirmSale(ctx context.Context, productID uuid.UUID, qty int) (*models.StockRecord, error) {
	if err := validateQuantity(productID, qty); err != nil {
		return nil, err
	}
	updated, err := s.repo.Confirm(ctx, productID, qty, s.clock())
	if err != nil {
		s.observe("confirm", metrics.OutcomeError)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "confirm sale")
	}
	if updated == 0 {
		s.observe("confirm", metrics.OutcomeRejected)
		return nil, s.explain(ctx, s.repo, productID, func(record *models.StockRecord) bool {
			return record.ReservedStock >= qty
		}, func(record *models.StockRecord) error {
			details := quantityDetails(record, qty)
			details["shortfall"] = qty - record.ReservedStock
			return pkgerrors.New(pkgerrors.CodeBusinessRule,
				fmt.Sprintf("confirm exceeds held stock by %d units", qty-record.ReservedStock)).
				WithDetails(details)
		})
	}
	s.observe("confirm", metrics.OutcomeSuccess)
	return s.reload(ctx, productID)
}

func (s *service) ReduceStockDirect(ctx context.Context, productID uuid.UUID, qty int) (*models.StockRecord, error) {
	if err := validateQuantity(productID, qty); err != nil {
		return nil, err
	}
	updated, err := s.repo.ReduceDirect(ctx, productID, qty, s.clock())
	if err != nil {
		s.observe("reduce", metrics.OutcomeError)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reduce stock")
	}
	if updated == 0 {
		s.observe("reduce", metrics.OutcomeRejected)
		return nil, s.explain(ctx, s.repo, productID, func(record *models.StockRecord) bool {
			return record.Available() >= qty
		}, func(record *models.StockRecord) error {
			return pkgerrors.New(pkgerrors.CodeBusinessRule,
				fmt.Sprintf("cannot sell %d units; only %d available", qty, record.Sellable())).
				WithDetails(quantityDetails(record, qty))
		})
	}
	s.observe("reduce", metrics.OutcomeSuccess)
	return s.reload(ctx, productID)
}

func (s *service) SetStock(ctx context.Context, productID uuid.UUID, qty int, unitCost *decimal.Decimal, actor uuid.UUID) (*models.StockRecord, error) {
	if productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if actor == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "actor id required")
	}
	if qty < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must not be negative")
	}
	if unitCost != nil && unitCost.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unit cost must not be negative")
	}

	var record *models.StockRecord
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.EnsureRecord(ctx, productID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create stock record")
		}
		previous, err := repo.Get(ctx, productID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load stock")
		}
		updated, err := repo.Set(ctx, productID, qty, unitCost, s.clock())
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "set stock")
		}
		if updated == 0 {
			return pkgerrors.New(pkgerrors.CodeBusinessRule,
				fmt.Sprintf("cannot set stock to %d; %d units are held", qty, previous.ReservedStock)).
				WithDetails(map[string]any{
					"product_id": productID.String(),
					"held":       previous.ReservedStock,
					"requested":  qty,
				})
		}

		adjustmentID, err := s.audit.RecordDirectSet(ctx, tx, DirectSetAudit{
			ProductID:     productID,
			PreviousStock: previous.CurrentStock,
			NewStock:      qty,
			UnitCost:      unitCost,
			Actor:         actor,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record stock audit")
		}

		record, err = repo.Get(ctx, productID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload stock")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventStockSetDirect,
			AggregateType: enums.AggregateStockRecord,
			AggregateID:   productID,
			Actor:         &outbox.ActorRef{UserID: actor, Role: "admin"},
			Data: payloads.StockSetDirectEvent{
				ProductID:     productID,
				AdjustmentID:  adjustmentID,
				PreviousStock: previous.CurrentStock,
				NewStock:      record.CurrentStock,
				ReservedStock: record.ReservedStock,
				UnitCost:      record.UnitCost,
			},
		})
	})
	if err != nil {
		s.observeErr("set", err)
		return nil, err
	}
	s.observe("set", metrics.OutcomeSuccess)
	PublishSellable(ctx, s.projector, s.logg, record)
	return record, nil
}

func (s *service) AdjustStock(ctx context.Context, productID uuid.UUID, delta int) (*models.StockRecord, error) {
	if productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if delta == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delta must not be zero")
	}

	// A rejected delta rolls back the zero-stock row created for it.
	var record *models.StockRecord
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.EnsureRecord(ctx, productID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create stock record")
		}
		updated, err := repo.Adjust(ctx, productID, delta, s.clock())
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "adjust stock")
		}
		if updated == 0 {
			return s.explain(ctx, repo, productID, func(record *models.StockRecord) bool {
				next := record.CurrentStock + delta
				return next >= 0 && next >= record.ReservedStock
			}, func(record *models.StockRecord) error {
				return AdjustmentRejected(record, delta)
			})
		}
		record, err = repo.Get(ctx, productID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload stock")
		}
		return nil
	})
	if err != nil {
		s.observeErr("adjust", err)
		return nil, err
	}
	s.observe("adjust", metrics.OutcomeSuccess)
	PublishSellable(ctx, s.projector, s.logg, record)
	return record, nil
}

func (s *service) GetStock(ctx context.Context, productID uuid.UUID) (*models.StockRecord, error) {
	if productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	record, err := s.repo.Get(ctx, productID)
	if err != nil {
		if dbpkg.IsNotFound(err) {
			return nil, stockNotFound(productID)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load stock")
	}
	return record, nil
}

func (s *service) ListLowStock(ctx context.Context, threshold *int, limit int) ([]models.StockRecord, error) {
	value := s.threshold
	if threshold != nil {
		value = *threshold
	}
	if value < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "threshold must not be negative")
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxLowStockResult {
		limit = maxLowStockResult
	}
	rows, err := s.repo.ListLowStock(ctx, value, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list low stock")
	}
	return rows, nil
}

// explain loads the record after a rejected conditional update and builds the
// caller-facing error from its current counters. When those counters would
// have admitted the update, the row moved in between and the caller gets a
// retryable conflict instead of a shortfall it never had.
func (s *service) explain(ctx context.Context, repo Repository, productID uuid.UUID, allows func(*models.StockRecord) bool, build func(*models.StockRecord) error) error {
	record, err := repo.Get(ctx, productID)
	if err != nil {
		if dbpkg.IsNotFound(err) {
			return stockNotFound(productID)
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load stock")
	}
	if allows(record) {
		return pkgerrors.New(pkgerrors.CodeConflict, "stock changed concurrently; retry").
			WithDetails(map[string]any{
				"product_id": productID.String(),
				"current":    record.CurrentStock,
				"held":       record.ReservedStock,
			})
	}
	return build(record)
}

func (s *service) reload(ctx context.Context, productID uuid.UUID) (*models.StockRecord, error) {
	record, err := s.repo.Get(ctx, productID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload stock")
	}
	PublishSellable(ctx, s.projector, s.logg, record)
	return record, nil
}

func (s *service) clock() time.Time {
	return s.now().UTC()
}

func (s *service) observe(operation, outcome string) {
	s.metrics.Observe(metricResource, operation, outcome)
}

func (s *service) observeErr(operation string, err error) {
	switch {
	case pkgerrors.IsCode(err, pkgerrors.CodeBusinessRule):
		s.observe(operation, metrics.OutcomeRejected)
	case pkgerrors.IsCode(err, pkgerrors.CodeConflict):
		s.observe(operation, metrics.OutcomeConflict)
	default:
		s.observe(operation, metrics.OutcomeError)
	}
}

// AdjustmentRejected is the business error for a delta that would leave
// current stock negative or below what is held.
func AdjustmentRejected(record *models.StockRecord, delta int) error {
	return pkgerrors.New(pkgerrors.CodeBusinessRule,
		fmt.Sprintf("adjustment of %d would leave %d units against %d held", delta, record.CurrentStock+delta, record.ReservedStock)).
		WithDetails(map[string]any{
			"product_id": record.ProductID.String(),
			"current":    record.CurrentStock,
			"held":       record.ReservedStock,
			"delta":      delta,
		})
}

func validateQuantity(productID uuid.UUID, qty int) error {
	if productID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	return nil
}

func quantityDetails(record *models.StockRecord, requested int) map[string]any {
	return map[string]any{
		"product_id": record.ProductID.String(),
		"current":    record.CurrentStock,
		"held":       record.ReservedStock,
		"available":  record.Sellable(),
		"requested":  requested,
	}
}

func stockNotFound(productID uuid.UUID) error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "stock record not found").
		WithDetails(map[string]any{"product_id": productID.String()})
}
