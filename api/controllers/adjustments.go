package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/reservation-engine/api/responses"
	"github.com/angelmondragon/reservation-engine/api/validators"
	"github.com/angelmondragon/reservation-engine/internal/adjustments"
	"github.com/angelmondragon/reservation-engine/pkg/enums"
	pkgerrors "github.com/angelmondragon/reservation-engine/pkg/errors"
	"github.com/angelmondragon/reservation-engine/pkg/logger"
	"github.com/angelmondragon/reservation-engine/pkg/pagination"
)

const (
	adjustmentsDefaultLimit = 50
	adjustmentsMaxLimit     = 200
	maxReasonLength         = 500
)

type requestAdjustmentRequest struct {
	ProductID   uuid.UUID        `json:"product_id" validate:"required"`
	Type        string           `json:"type" validate:"required,oneof=INCREASE DECREASE SET"`
	Quantity    int              `json:"quantity" validate:"gte=0"`
	Reason      string           `json:"reason" validate:"required"`
	NewUnitCost *decimal.Decimal `json:"new_unit_cost,omitempty"`
}

type reviewAdjustmentRequest struct {
	Decision        string  `json:"decision" validate:"required,oneof=approve reject"`
	RejectionReason *string `json:"rejection_reason,omitempty"`
}

// RequestAdjustment files a PENDING stock correction on behalf of the actor.
func RequestAdjustment(svc adjustments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("adjustments"))
			return
		}
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req requestAdjustmentRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		adj, err := svc.RequestAdjustment(r.Context(), adjustments.RequestInput{
			ProductID:   req.ProductID,
			Type:        enums.AdjustmentType(req.Type),
			Quantity:    req.Quantity,
			Reason:      validators.SanitizeString(req.Reason, maxReasonLength),
			RequestedBy: actor,
			NewUnitCost: req.NewUnitCost,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, toAdjustmentView(*adj))
	}
}

// ReviewAdjustment approves or rejects a pending adjustment.
func ReviewAdjustment(svc adjustments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("adjustments"))
			return
		}
		id, err := validators.ParseURLParamUUID(r, "adjustmentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		reviewer, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req reviewAdjustmentRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		decision, err := enums.ParseReviewDecision(req.Decision)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid decision"))
			return
		}

		adj, err := svc.ReviewAdjustment(r.Context(), id, decision, reviewer, req.RejectionReason)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toAdjustmentView(*adj))
	}
}

// CancelAdjustment withdraws the actor's own pending adjustment.
func CancelAdjustment(svc adjustments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("adjustments"))
			return
		}
		id, err := validators.ParseURLParamUUID(r, "adjustmentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		adj, err := svc.CancelAdjustment(r.Context(), id, actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toAdjustmentView(*adj))
	}
}

func GetAdjustment(svc adjustments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("adjustments"))
			return
		}
		id, err := validators.ParseURLParamUUID(r, "adjustmentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		adj, err := svc.GetAdjustment(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toAdjustmentView(*adj))
	}
}

func ListAdjustments(svc adjustments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("adjustments"))
			return
		}
		var filter adjustments.ListFilter
		var err error
		if filter.ProductID, err = validators.ParseQueryUUID(r, "product_id"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			status, err := enums.ParseAdjustmentStatus(strings.ToUpper(raw))
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter"))
				return
			}
			filter.Status = &status
		}
		if filter.Limit, err = validators.ParseQueryInt(r, "limit", adjustmentsDefaultLimit, 1, adjustmentsMaxLimit); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if filter.After, err = pagination.Parse(r.URL.Query().Get("cursor")); err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor"))
			return
		}

		rows, next, err := svc.ListAdjustments(r.Context(), filter)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		views := make([]adjustmentView, 0, len(rows))
		for _, row := range rows {
			views = append(views, toAdjustmentView(row))
		}
		responses.WriteCursorPage(w, views, filter.Limit, next)
	}
}
