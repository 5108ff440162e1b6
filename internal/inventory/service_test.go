package inventory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	dbpkg "github.com/angelmondragon/reservation-engine/pkg/db"
	"github.com/angelmondragon/reservation-engine/pkg/db/models"
	"github.com/angelmondragon/reservation-engine/pkg/enums"
	pkgerrors "github.com/angelmondragon/reservation-engine/pkg/errors"
	"github.com/angelmondragon/reservation-engine/pkg/outbox"
	"github.com/angelmondragon/reservation-engine/pkg/outbox/payloads"
)

var testNow = time.Date(2025, 2, 1, 10, 0, 0, 0, time.UTC)

type auditStub struct {
	calls []DirectSetAudit
}

func (a *auditStub) RecordDirectSet(ctx context.Context, tx *gorm.DB, audit DirectSetAudit) (uuid.UUID, error) {
	a.calls = append(a.calls, audit)
	actor := audit.Actor
	row := models.StockAdjustment{
		ProductID:     audit.ProductID,
		Type:          enums.AdjustmentTypeSet,
		Quantity:      audit.NewStock,
		PreviousStock: audit.PreviousStock,
		NewStock:      audit.NewStock,
		Status:        enums.AdjustmentStatusApproved,
		Reason:        "direct stock set",
		RequestedBy:   actor,
		ReviewedBy:    &actor,
	}
	if err := tx.WithContext(ctx).Create(&row).Error; err != nil {
		return uuid.Nil, err
	}
	return row.ID, nil
}

type memoryProjector struct {
	mu     sync.Mutex
	values map[uuid.UUID]int
}

func (p *memoryProjector) Publish(_ context.Context, productID uuid.UUID, sellable int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.values == nil {
		p.values = map[uuid.UUID]int{}
	}
	p.values[productID] = sellable
	return nil
}

func (p *memoryProjector) get(productID uuid.UUID) (int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.values[productID]
	return v, ok
}

type fixture struct {
	db        *gorm.DB
	svc       Service
	audit     *auditStub
	outbox    *outbox.Repository
	projector *memoryProjector
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	dsn := "file:inventory_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), dbpkg.GormConfig())
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&models.StockRecord{}, &models.StockAdjustment{}, &models.OutboxEvent{}))

	audit := &auditStub{}
	outboxRepo := outbox.NewRepository(db)
	projector := &memoryProjector{}
	svc, err := NewService(ServiceParams{
		Repo:              NewRepository(db),
		Tx:                dbpkg.NewFromConn(db),
		Outbox:            outbox.NewService(outboxRepo, nil),
		Audit:             audit,
		Projector:         projector,
		LowStockThreshold: 5,
		Now:               func() time.Time { return testNow },
	})
	require.NoError(t, err)
	return fixture{db: db, svc: svc, audit: audit, outbox: outboxRepo, projector: projector}
}

func (f fixture) seed(t *testing.T, current, reserved int) uuid.UUID {
	t.Helper()
	id := uuid.New()
	require.NoError(t, f.db.Create(&models.StockRecord{
		ProductID:     id,
		CurrentStock:  current,
		ReservedStock: reserved,
		UnitCost:      decimal.NewFromInt(3),
	}).Error)
	return id
}

func (f fixture) stock(t *testing.T, productID uuid.UUID) *models.StockRecord {
	t.Helper()
	record, err := f.svc.GetStock(context.Background(), productID)
	require.NoError(t, err)
	return record
}

func requireCode(t *testing.T, err error, code pkgerrors.Code) *pkgerrors.Error {
	t.Helper()
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed, "expected typed error, got %v", err)
	require.Equal(t, code, typed.Code(), "unexpected error: %v", err)
	return typed
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	db := newFixture(t).db
	tx := dbpkg.NewFromConn(db)
	emitter := outbox.NewService(outbox.NewRepository(db), nil)
	audit := &auditStub{}

	_, err := NewService(ServiceParams{Tx: tx, Outbox: emitter, Audit: audit})
	assert.Error(t, err)
	_, err = NewService(ServiceParams{Repo: NewRepository(db), Outbox: emitter, Audit: audit})
	assert.Error(t, err)
	_, err = NewService(ServiceParams{Repo: NewRepository(db), Tx: tx, Audit: audit})
	assert.Error(t, err)
	_, err = NewService(ServiceParams{Repo: NewRepository(db), Tx: tx, Outbox: emitter})
	assert.Error(t, err)
}

func TestReserveStockHoldsUnits(t *testing.T) {
	f := newFixture(t)
	productID := f.seed(t, 10, 2)

	res, err := f.svc.ReserveStock(context.Background(), productID, 3)
	require.NoError(t, err)
	assert.True(t, res.Reserved)
	assert.Equal(t, 5, res.Available)

	record := f.stock(t, productID)
	assert.Equal(t, 10, record.CurrentStock)
	assert.Equal(t, 5, record.ReservedStock)
	sellable, ok := f.projector.get(productID)
	require.True(t, ok)
	assert.Equal(t, 5, sellable)
}

func TestReserveStockNeverOversells(t *testing.T) {
	f := newFixture(t)
	productID := f.seed(t, 10, 8)

	res, err := f.svc.ReserveStock(context.Background(), productID, 3)
	require.NoError(t, err)
	assert.False(t, res.Reserved)
	assert.Equal(t, ReasonInsufficientStock, res.Reason)
	assert.Equal(t, 2, res.Available)
	assert.Equal(t, 8, f.stock(t, productID).ReservedStock)
}

func TestReserveStockWithoutRecord(t *testing.T) {
	f := newFixture(t)
	res, err := f.svc.ReserveStock(context.Background(), uuid.New(), 1)
	require.NoError(t, err)
	assert.False(t, res.Reserved)
	assert.Equal(t, ReasonNoStockRecord, res.Reason)
}

func TestReserveStockValidation(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.ReserveStock(context.Background(), uuid.New(), 0)
	requireCode(t, err, pkgerrors.CodeValidation)
	_, err = f.svc.ReserveStock(context.Background(), uuid.Nil, 1)
	requireCode(t, err, pkgerrors.CodeValidation)
}

func TestConcurrentReservesStopAtAvailable(t *testing.T) {
	f := newFixture(t)
	productID := f.seed(t, 10, 0)

	var reserved atomic.Int32
	var g errgroup.Group
	for i := 0; i < 25; i++ {
		g.Go(func() error {
			res, err := f.svc.ReserveStock(context.Background(), productID, 1)
			if err != nil {
				return err
			}
			if res.Reserved {
				reserved.Add(1)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, int32(10), reserved.Load())

	record := f.stock(t, productID)
	assert.Equal(t, 10, record.ReservedStock)
	assert.Equal(t, 0, record.Sellable())
}

func TestReleaseReservation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	productID := f.seed(t, 10, 4)

	record, err := f.svc.ReleaseReservation(ctx, productID, 3)
	require.NoError(t, err)
	assert.Equal(t, 1, record.ReservedStock)
	assert.Equal(t, 10, record.CurrentStock)

	_, err = f.svc.ReleaseReservation(ctx, productID, 2)
	typed := requireCode(t, err, pkgerrors.CodeBusinessRule)
	assert.Contains(t, typed.Message(), "only 1 held")
	assert.Equal(t, 1, f.stock(t, productID).ReservedStock)

	_, err = f.svc.ReleaseReservation(ctx, uuid.New(), 1)
	requireCode(t, err, pkgerrors.CodeNotFound)
}

func TestConfirmSaleConsumesHeldStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	productID := f.seed(t, 10, 0)

	res, err := f.svc.ReserveStock(ctx, productID, 4)
	require.NoError(t, err)
	require.True(t, res.Reserved)

	record, err := f.svc.ConfirmSale(ctx, productID, 4)
	require.NoError(t, err)
	assert.Equal(t, 6, record.CurrentStock)
	assert.Equal(t, 0, record.ReservedStock)

	_, err = f.svc.ConfirmSale(ctx, productID, 4)
	typed := requireCode(t, err, pkgerrors.CodeBusinessRule)
	details, ok := typed.Details().(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 4, details["shortfall"])

	record = f.stock(t, productID)
	assert.Equal(t, 6, record.CurrentStock)
	assert.Equal(t, 0, record.ReservedStock)
}

func TestReduceStockDirectUsesUnheldStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	productID := f.seed(t, 10, 7)

	record, err := f.svc.ReduceStockDirect(ctx, productID, 3)
	require.NoError(t, err)
	assert.Equal(t, 7, record.CurrentStock)
	assert.Equal(t, 7, record.ReservedStock)

	_, err = f.svc.ReduceStockDirect(ctx, productID, 1)
	requireCode(t, err, pkgerrors.CodeBusinessRule)
	assert.Equal(t, 7, f.stock(t, productID).CurrentStock)
}

func TestSetStockWritesAuditAndOutbox(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	productID := f.seed(t, 10, 2)
	actor := uuid.New()
	cost := decimal.RequireFromString("7.5")

	record, err := f.svc.SetStock(ctx, productID, 25, &cost, actor)
	require.NoError(t, err)
	assert.Equal(t, 25, record.CurrentStock)
	assert.Equal(t, 2, record.ReservedStock)
	assert.True(t, cost.Equal(record.UnitCost))

	require.Len(t, f.audit.calls, 1)
	assert.Equal(t, 10, f.audit.calls[0].PreviousStock)
	assert.Equal(t, 25, f.audit.calls[0].NewStock)

	var audits int64
	require.NoError(t, f.db.Model(&models.StockAdjustment{}).Where("product_id = ?", productID).Count(&audits).Error)
	assert.Equal(t, int64(1), audits)

	events, err := f.outbox.ListForAggregate(ctx, enums.AggregateStockRecord, productID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, enums.EventStockSetDirect, events[0].EventType)
	var data payloads.StockSetDirectEvent
	_, err = outbox.DecodeEnvelope(events[0], &data)
	require.NoError(t, err)
	assert.Equal(t, 10, data.PreviousStock)
	assert.Equal(t, 25, data.NewStock)

	sellable, ok := f.projector.get(productID)
	require.True(t, ok)
	assert.Equal(t, 23, sellable)
}

func TestSetStockCreatesMissingRecord(t *testing.T) {
	f := newFixture(t)
	productID := uuid.New()

	record, err := f.svc.SetStock(context.Background(), productID, 4, nil, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, 4, record.CurrentStock)
	require.Len(t, f.audit.calls, 1)
	assert.Equal(t, 0, f.audit.calls[0].PreviousStock)
}

func TestSetStockBelowHeldRollsBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	productID := f.seed(t, 10, 6)

	_, err := f.svc.SetStock(ctx, productID, 5, nil, uuid.New())
	typed := requireCode(t, err, pkgerrors.CodeBusinessRule)
	details, ok := typed.Details().(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 6, details["held"])
	assert.Equal(t, 5, details["requested"])

	assert.Equal(t, 10, f.stock(t, productID).CurrentStock)
	assert.Empty(t, f.audit.calls)
	events, err := f.outbox.ListForAggregate(ctx, enums.AggregateStockRecord, productID)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestSetStockValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	negative := decimal.NewFromInt(-2)

	_, err := f.svc.SetStock(ctx, uuid.New(), -1, nil, uuid.New())
	requireCode(t, err, pkgerrors.CodeValidation)
	_, err = f.svc.SetStock(ctx, uuid.New(), 1, nil, uuid.Nil)
	requireCode(t, err, pkgerrors.CodeValidation)
	_, err = f.svc.SetStock(ctx, uuid.New(), 1, &negative, uuid.New())
	requireCode(t, err, pkgerrors.CodeValidation)
}

func TestAdjustStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	productID := f.seed(t, 10, 4)

	record, err := f.svc.AdjustStock(ctx, productID, -6)
	require.NoError(t, err)
	assert.Equal(t, 4, record.CurrentStock)

	_, err = f.svc.AdjustStock(ctx, productID, -1)
	typed := requireCode(t, err, pkgerrors.CodeBusinessRule)
	details, ok := typed.Details().(map[string]any)
	require.True(t, ok)
	assert.Equal(t, -1, details["delta"])
	assert.Equal(t, 4, f.stock(t, productID).CurrentStock)

	_, err = f.svc.AdjustStock(ctx, productID, 0)
	requireCode(t, err, pkgerrors.CodeValidation)

	fresh := uuid.New()
	record, err = f.svc.AdjustStock(ctx, fresh, 8)
	require.NoError(t, err)
	assert.Equal(t, 8, record.CurrentStock)

	_, err = f.svc.AdjustStock(ctx, uuid.New(), -1)
	requireCode(t, err, pkgerrors.CodeBusinessRule)
}

func TestAdjustStockRejectionLeavesNoRecord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	productID := uuid.New()

	_, err := f.svc.AdjustStock(ctx, productID, -5)
	requireCode(t, err, pkgerrors.CodeBusinessRule)

	var count int64
	require.NoError(t, f.db.Model(&models.StockRecord{}).Where("product_id = ?", productID).Count(&count).Error)
	assert.Equal(t, int64(0), count)

	rows, err := f.svc.ListLowStock(ctx, nil, 0)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

// racingRepo lets another writer change the row right after a guarded
// confirm has been refused.
type racingRepo struct {
	Repository
	interleave func()
}

func (r racingRepo) Confirm(ctx context.Context, productID uuid.UUID, qty int, at time.Time) (int64, error) {
	updated, err := r.Repository.Confirm(ctx, productID, qty, at)
	if err == nil && updated == 0 {
		r.interleave()
	}
	return updated, err
}

func TestConfirmSaleReportsConflictWhenRowMovedAfterRefusal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	productID := f.seed(t, 10, 2)

	svc, err := NewService(ServiceParams{
		Repo: racingRepo{
			Repository: NewRepository(f.db),
			interleave: func() {
				require.NoError(t, f.db.Model(&models.StockRecord{}).
					Where("product_id = ?", productID).
					Update("reserved_stock", 5).Error)
			},
		},
		Tx:     dbpkg.NewFromConn(f.db),
		Outbox: outbox.NewService(f.outbox, nil),
		Audit:  f.audit,
		Now:    func() time.Time { return testNow },
	})
	require.NoError(t, err)

	_, err = svc.ConfirmSale(ctx, productID, 4)
	typed := requireCode(t, err, pkgerrors.CodeConflict)
	assert.NotContains(t, typed.Message(), "exceeds")

	record := f.stock(t, productID)
	assert.Equal(t, 10, record.CurrentStock)
	assert.Equal(t, 5, record.ReservedStock)
}

func TestGetStockNotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.GetStock(context.Background(), uuid.New())
	requireCode(t, err, pkgerrors.CodeNotFound)
}

func TestListLowStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	empty := f.seed(t, 3, 3)
	low := f.seed(t, 6, 2)
	f.seed(t, 40, 0)

	rows, err := f.svc.ListLowStock(ctx, nil, 0)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, empty, rows[0].ProductID)
	assert.Equal(t, low, rows[1].ProductID)

	zero := 0
	rows, err = f.svc.ListLowStock(ctx, &zero, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, empty, rows[0].ProductID)

	rows, err = f.svc.ListLowStock(ctx, nil, 1)
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	negative := -1
	_, err = f.svc.ListLowStock(ctx, &negative, 10)
	requireCode(t, err, pkgerrors.CodeValidation)
}
