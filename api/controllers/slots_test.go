package controllers

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/reservation-engine/internal/slots"
	"github.com/angelmondragon/reservation-engine/pkg/db/models"
	"github.com/angelmondragon/reservation-engine/pkg/enums"
	pkgerrors "github.com/angelmondragon/reservation-engine/pkg/errors"
)

type stubSlotService struct {
	slots.Service
	generateFn func(ctx context.Context, providerID uuid.UUID, blocks []slots.Block, price int64) (int, error)
	listFn     func(ctx context.Context, providerID uuid.UUID, filter slots.ListFilter) ([]models.TimeSlot, error)
	reserveFn  func(ctx context.Context, providerID uuid.UUID, start, end time.Time) (*models.TimeSlot, error)
	releaseFn  func(ctx context.Context, slotID uuid.UUID) error
	bookingFn  func(ctx context.Context, bookingID uuid.UUID) (int, error)
}

func (s *stubSlotService) GenerateSlots(ctx context.Context, providerID uuid.UUID, blocks []slots.Block, price int64) (int, error) {
	return s.generateFn(ctx, providerID, blocks, price)
}

func (s *stubSlotService) ListSlots(ctx context.Context, providerID uuid.UUID, filter slots.ListFilter) ([]models.TimeSlot, error) {
	return s.listFn(ctx, providerID, filter)
}

func (s *stubSlotService) ReserveSlot(ctx context.Context, providerID uuid.UUID, start, end time.Time) (*models.TimeSlot, error) {
	return s.reserveFn(ctx, providerID, start, end)
}

func (s *stubSlotService) ReleaseSlot(ctx context.Context, slotID uuid.UUID) error {
	return s.releaseFn(ctx, slotID)
}

func (s *stubSlotService) ReleaseSlotByBookingReference(ctx context.Context, bookingID uuid.UUID) (int, error) {
	return s.bookingFn(ctx, bookingID)
}

func TestGenerateSlotsCreated(t *testing.T) {
	providerID := uuid.New()
	svc := &stubSlotService{
		generateFn: func(_ context.Context, pid uuid.UUID, blocks []slots.Block, price int64) (int, error) {
			assert.Equal(t, providerID, pid)
			require.Len(t, blocks, 1)
			assert.Equal(t, 60, blocks[0].DurationMinutes)
			assert.EqualValues(t, 2500, price)
			return 2, nil
		},
	}
	body := `{"blocks":[{"start_time":"2026-03-01T09:00:00Z","end_time":"2026-03-01T11:05:00Z","duration_minutes":60}],"default_price_cents":2500}`
	req := newRequest(http.MethodPost, "/", body, requestOpts{params: map[string]string{"providerId": providerID.String()}})

	rec := serve(GenerateSlots(svc, testLogger()), req)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, 2, decodeData[map[string]int](t, rec)["created"])
}

func TestGenerateSlotsConflictSurfacesDetails(t *testing.T) {
	svc := &stubSlotService{
		generateFn: func(context.Context, uuid.UUID, []slots.Block, int64) (int, error) {
			return 0, pkgerrors.New(pkgerrors.CodeConflict, "slots overlap").WithDetails(map[string]any{"first": "09:00"})
		},
	}
	body := `{"blocks":[{"start_time":"2026-03-01T09:00:00Z","end_time":"2026-03-01T10:00:00Z","duration_minutes":60}]}`
	req := newRequest(http.MethodPost, "/", body, requestOpts{params: map[string]string{"providerId": uuid.NewString()}})

	rec := serve(GenerateSlots(svc, testLogger()), req)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, string(pkgerrors.CodeConflict), decodeErrorCode(t, rec))
}

func TestGenerateSlotsRejectsEmptyBlocks(t *testing.T) {
	svc := &stubSlotService{}
	req := newRequest(http.MethodPost, "/", `{"blocks":[]}`, requestOpts{params: map[string]string{"providerId": uuid.NewString()}})

	rec := serve(GenerateSlots(svc, testLogger()), req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListSlotsParsesFilters(t *testing.T) {
	providerID := uuid.New()
	slot := models.TimeSlot{
		ID:         uuid.New(),
		ProviderID: providerID,
		StartTime:  time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		EndTime:    time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		Status:     enums.SlotStatusAvailable,
	}
	svc := &stubSlotService{
		listFn: func(_ context.Context, pid uuid.UUID, filter slots.ListFilter) ([]models.TimeSlot, error) {
			require.NotNil(t, filter.From)
			require.NotNil(t, filter.To)
			require.NotNil(t, filter.Status)
			assert.Equal(t, enums.SlotStatusAvailable, *filter.Status)
			return []models.TimeSlot{slot}, nil
		},
	}
	req := newRequest(http.MethodGet, "/?from=2026-03-01T00:00:00Z&to=2026-03-02T00:00:00Z&status=available", "", requestOpts{
		params: map[string]string{"providerId": providerID.String()},
	})

	rec := serve(ListSlots(svc, testLogger()), req)
	require.Equal(t, http.StatusOK, rec.Code)
	views := decodeData[[]slotView](t, rec)
	require.Len(t, views, 1)
	assert.Equal(t, slot.ID, views[0].ID)
}

func TestListSlotsRejectsBadStatus(t *testing.T) {
	req := newRequest(http.MethodGet, "/?status=HELD", "", requestOpts{params: map[string]string{"providerId": uuid.NewString()}})
	rec := serve(ListSlots(&stubSlotService{}, testLogger()), req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReserveSlotConflict(t *testing.T) {
	svc := &stubSlotService{
		reserveFn: func(context.Context, uuid.UUID, time.Time, time.Time) (*models.TimeSlot, error) {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "slot no longer available")
		},
	}
	body := `{"start_time":"2026-03-01T09:00:00Z","end_time":"2026-03-01T10:00:00Z"}`
	req := newRequest(http.MethodPost, "/", body, requestOpts{params: map[string]string{"providerId": uuid.NewString()}})

	rec := serve(ReserveSlot(svc, testLogger()), req)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestReserveSlotSuccess(t *testing.T) {
	providerID := uuid.New()
	svc := &stubSlotService{
		reserveFn: func(_ context.Context, pid uuid.UUID, start, end time.Time) (*models.TimeSlot, error) {
			now := time.Now().UTC()
			return &models.TimeSlot{ID: uuid.New(), ProviderID: pid, StartTime: start, EndTime: end, Status: enums.SlotStatusBooked, BookedAt: &now}, nil
		},
	}
	body := `{"start_time":"2026-03-01T09:00:00Z","end_time":"2026-03-01T10:00:00Z"}`
	req := newRequest(http.MethodPost, "/", body, requestOpts{params: map[string]string{"providerId": providerID.String()}})

	rec := serve(ReserveSlot(svc, testLogger()), req)
	require.Equal(t, http.StatusOK, rec.Code)
	view := decodeData[slotView](t, rec)
	assert.Equal(t, enums.SlotStatusBooked, view.Status)
	assert.Equal(t, providerID, view.ProviderID)
}

func TestReleaseSlotRequiresUUID(t *testing.T) {
	req := newRequest(http.MethodPost, "/", "", requestOpts{params: map[string]string{"slotId": "nope"}})
	rec := serve(ReleaseSlot(&stubSlotService{}, testLogger()), req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReleaseBookingReportsCount(t *testing.T) {
	bookingID := uuid.New()
	svc := &stubSlotService{
		bookingFn: func(_ context.Context, id uuid.UUID) (int, error) {
			assert.Equal(t, bookingID, id)
			return 2, nil
		},
	}
	req := newRequest(http.MethodPost, "/", "", requestOpts{params: map[string]string{"bookingId": bookingID.String()}})

	rec := serve(ReleaseBooking(svc, testLogger()), req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, decodeData[map[string]int](t, rec)["released"])
}

func TestSlotHandlersWithoutService(t *testing.T) {
	req := newRequest(http.MethodPost, "/", "", requestOpts{params: map[string]string{"slotId": uuid.NewString()}})
	rec := serve(ReleaseSlot(nil, testLogger()), req)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
