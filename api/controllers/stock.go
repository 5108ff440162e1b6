package controllers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/reservation-engine/api/responses"
	"github.com/angelmondragon/reservation-engine/api/validators"
	"github.com/angelmondragon/reservation-engine/internal/inventory"
	"github.com/angelmondragon/reservation-engine/pkg/db/models"
	"github.com/angelmondragon/reservation-engine/pkg/logger"
)

const (
	lowStockDefaultLimit = 50
	lowStockMaxLimit     = 500
)

type quantityRequest struct {
	Quantity int `json:"quantity" validate:"gt=0"`
}

type setStockRequest struct {
	Quantity int              `json:"quantity" validate:"gte=0"`
	UnitCost *decimal.Decimal `json:"unit_cost,omitempty"`
}

type adjustStockRequest struct {
	Delta int `json:"delta"`
}

type stockMutation func(r *http.Request, productID uuid.UUID) (*models.StockRecord, error)

// stockHandler wraps the product-scoped mutations that all respond with the record.
func stockHandler(svc inventory.Service, logg *logger.Logger, run stockMutation) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("stock"))
			return
		}
		productID, err := validators.ParseURLParamUUID(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		record, err := run(r, productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toStockView(*record))
	}
}

func quantityMutation(call func(r *http.Request, productID uuid.UUID, qty int) (*models.StockRecord, error)) stockMutation {
	return func(r *http.Request, productID uuid.UUID) (*models.StockRecord, error) {
		var req quantityRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			return nil, err
		}
		return call(r, productID, req.Quantity)
	}
}

func GetStock(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return stockHandler(svc, logg, func(r *http.Request, productID uuid.UUID) (*models.StockRecord, error) {
		return svc.GetStock(r.Context(), productID)
	})
}

// ReserveStock holds units for a pending sale. Insufficient stock is a
// normal outcome and is answered with 200 and reserved=false.
func ReserveStock(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("stock"))
			return
		}
		productID, err := validators.ParseURLParamUUID(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req quantityRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.ReserveStock(r.Context(), productID, req.Quantity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func ReleaseStock(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return stockHandler(svc, logg, quantityMutation(func(r *http.Request, productID uuid.UUID, qty int) (*models.StockRecord, error) {
		return svc.ReleaseReservation(r.Context(), productID, qty)
	}))
}

func ConfirmStockSale(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return stockHandler(svc, logg, quantityMutation(func(r *http.Request, productID uuid.UUID, qty int) (*models.StockRecord, error) {
		return svc.ConfirmSale(r.Context(), productID, qty)
	}))
}

func ReduceStock(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return stockHandler(svc, logg, quantityMutation(func(r *http.Request, productID uuid.UUID, qty int) (*models.StockRecord, error) {
		return svc.ReduceStockDirect(r.Context(), productID, qty)
	}))
}

// SetStock overwrites current stock and records the acting admin in the audit trail.
func SetStock(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return stockHandler(svc, logg, func(r *http.Request, productID uuid.UUID) (*models.StockRecord, error) {
		actor, err := requireActor(r)
		if err != nil {
			return nil, err
		}
		var req setStockRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			return nil, err
		}
		return svc.SetStock(r.Context(), productID, req.Quantity, req.UnitCost, actor)
	})
}

func AdjustStock(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return stockHandler(svc, logg, func(r *http.Request, productID uuid.UUID) (*models.StockRecord, error) {
		var req adjustStockRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			return nil, err
		}
		return svc.AdjustStock(r.Context(), productID, req.Delta)
	})
}

// ListLowStock returns records whose sellable quantity is at or below the threshold.
func ListLowStock(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("stock"))
			return
		}
		threshold, err := validators.ParseOptionalQueryInt(r, "threshold", 0, 1_000_000)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", lowStockDefaultLimit, 1, lowStockMaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows, err := svc.ListLowStock(r.Context(), threshold, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		views := make([]stockView, 0, len(rows))
		for _, row := range rows {
			views = append(views, toStockView(row))
		}
		responses.WriteList(w, views, limit)
	}
}
