package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/reservation-engine/internal/adjustments"
	"github.com/angelmondragon/reservation-engine/pkg/db/models"
	"github.com/angelmondragon/reservation-engine/pkg/enums"
	pkgerrors "github.com/angelmondragon/reservation-engine/pkg/errors"
	"github.com/angelmondragon/reservation-engine/pkg/pagination"
	"github.com/angelmondragon/reservation-engine/pkg/types"
)

type stubAdjustmentService struct {
	adjustments.Service
	requestFn func(ctx context.Context, input adjustments.RequestInput) (*models.StockAdjustment, error)
	reviewFn  func(ctx context.Context, id uuid.UUID, decision enums.ReviewDecision, reviewer uuid.UUID, reason *string) (*models.StockAdjustment, error)
	listFn    func(ctx context.Context, filter adjustments.ListFilter) ([]models.StockAdjustment, string, error)
}

func (s *stubAdjustmentService) RequestAdjustment(ctx context.Context, input adjustments.RequestInput) (*models.StockAdjustment, error) {
	return s.requestFn(ctx, input)
}

func (s *stubAdjustmentService) ReviewAdjustment(ctx context.Context, id uuid.UUID, decision enums.ReviewDecision, reviewer uuid.UUID, reason *string) (*models.StockAdjustment, error) {
	return s.reviewFn(ctx, id, decision, reviewer, reason)
}

func (s *stubAdjustmentService) ListAdjustments(ctx context.Context, filter adjustments.ListFilter) ([]models.StockAdjustment, string, error) {
	return s.listFn(ctx, filter)
}

func TestRequestAdjustmentCreated(t *testing.T) {
	actor := uuid.New()
	productID := uuid.New()
	svc := &stubAdjustmentService{
		requestFn: func(_ context.Context, input adjustments.RequestInput) (*models.StockAdjustment, error) {
			assert.Equal(t, actor, input.RequestedBy)
			assert.Equal(t, enums.AdjustmentTypeDecrease, input.Type)
			assert.Equal(t, "damaged", input.Reason)
			return &models.StockAdjustment{
				ID:            uuid.New(),
				ProductID:     input.ProductID,
				Type:          input.Type,
				Quantity:      input.Quantity,
				PreviousStock: 20,
				NewStock:      15,
				Status:        enums.AdjustmentStatusPending,
				Reason:        input.Reason,
				RequestedBy:   input.RequestedBy,
			}, nil
		},
	}
	body := `{"product_id":"` + productID.String() + `","type":"DECREASE","quantity":5,"reason":"  damaged "}`
	req := newRequest(http.MethodPost, "/", body, requestOpts{actor: actor.String()})

	rec := serve(RequestAdjustment(svc, testLogger()), req)
	require.Equal(t, http.StatusCreated, rec.Code)
	view := decodeData[adjustmentView](t, rec)
	assert.Equal(t, 15, view.NewStock)
	assert.Equal(t, enums.AdjustmentStatusPending, view.Status)
}

func TestRequestAdjustmentRejectsUnknownType(t *testing.T) {
	body := `{"product_id":"` + uuid.NewString() + `","type":"MULTIPLY","quantity":5,"reason":"x"}`
	req := newRequest(http.MethodPost, "/", body, requestOpts{actor: uuid.NewString()})
	rec := serve(RequestAdjustment(&stubAdjustmentService{}, testLogger()), req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRequestAdjustmentRejectsNonUUIDActor(t *testing.T) {
	body := `{"product_id":"` + uuid.NewString() + `","type":"INCREASE","quantity":5,"reason":"x"}`
	req := newRequest(http.MethodPost, "/", body, requestOpts{actor: "alice"})
	rec := serve(RequestAdjustment(&stubAdjustmentService{}, testLogger()), req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReviewAdjustmentSecondReviewIsBusinessRule(t *testing.T) {
	id := uuid.New()
	reviewer := uuid.New()
	calls := 0
	svc := &stubAdjustmentService{
		reviewFn: func(_ context.Context, got uuid.UUID, decision enums.ReviewDecision, who uuid.UUID, reason *string) (*models.StockAdjustment, error) {
			calls++
			assert.Equal(t, id, got)
			assert.Equal(t, enums.ReviewDecisionApprove, decision)
			assert.Equal(t, reviewer, who)
			if calls > 1 {
				return nil, pkgerrors.New(pkgerrors.CodeBusinessRule, "adjustment already reviewed")
			}
			return &models.StockAdjustment{ID: id, Status: enums.AdjustmentStatusApproved, ReviewedBy: &who}, nil
		},
	}
	handler := ReviewAdjustment(svc, testLogger())
	opts := requestOpts{params: map[string]string{"adjustmentId": id.String()}, actor: reviewer.String()}

	first := serve(handler, newRequest(http.MethodPost, "/", `{"decision":"approve"}`, opts))
	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, enums.AdjustmentStatusApproved, decodeData[adjustmentView](t, first).Status)

	second := serve(handler, newRequest(http.MethodPost, "/", `{"decision":"approve"}`, opts))
	assert.Equal(t, http.StatusUnprocessableEntity, second.Code)
}

func TestReviewAdjustmentRejectsUnknownDecision(t *testing.T) {
	opts := requestOpts{params: map[string]string{"adjustmentId": uuid.NewString()}, actor: uuid.NewString()}
	rec := serve(ReviewAdjustment(&stubAdjustmentService{}, testLogger()), newRequest(http.MethodPost, "/", `{"decision":"maybe"}`, opts))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListAdjustmentsFilters(t *testing.T) {
	productID := uuid.New()
	cursor := pagination.Cursor{CreatedAt: time.Now().UTC(), ID: uuid.New()}
	svc := &stubAdjustmentService{
		listFn: func(_ context.Context, filter adjustments.ListFilter) ([]models.StockAdjustment, string, error) {
			require.NotNil(t, filter.ProductID)
			assert.Equal(t, productID, *filter.ProductID)
			require.NotNil(t, filter.Status)
			assert.Equal(t, enums.AdjustmentStatusPending, *filter.Status)
			assert.Equal(t, 10, filter.Limit)
			require.NotNil(t, filter.After)
			assert.Equal(t, cursor.ID, filter.After.ID)
			return []models.StockAdjustment{{ID: uuid.New(), ProductID: productID}}, "next-token", nil
		},
	}
	req := newRequest(http.MethodGet, "/?product_id="+productID.String()+"&status=pending&limit=10&cursor="+cursor.Encode(), "", requestOpts{})

	rec := serve(ListAdjustments(svc, testLogger()), req)
	require.Equal(t, http.StatusOK, rec.Code)
	var envelope struct {
		Data []adjustmentView `json:"data"`
		Meta types.ListMeta   `json:"meta"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&envelope))
	assert.Len(t, envelope.Data, 1)
	assert.Equal(t, "next-token", envelope.Meta.NextCursor)
}

func TestListAdjustmentsRejectsBadCursor(t *testing.T) {
	req := newRequest(http.MethodGet, "/?cursor=%25%25", "", requestOpts{})
	rec := serve(ListAdjustments(&stubAdjustmentService{}, testLogger()), req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
