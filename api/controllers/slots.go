package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/reservation-engine/api/responses"
	"github.com/angelmondragon/reservation-engine/api/validators"
	"github.com/angelmondragon/reservation-engine/internal/slots"
	"github.com/angelmondragon/reservation-engine/pkg/enums"
	pkgerrors "github.com/angelmondragon/reservation-engine/pkg/errors"
	"github.com/angelmondragon/reservation-engine/pkg/logger"
)

type generateSlotsRequest struct {
	Blocks            []slots.Block `json:"blocks" validate:"required,min=1,dive"`
	DefaultPriceCents int64         `json:"default_price_cents" validate:"gte=0"`
}

type reserveSlotRequest struct {
	StartTime time.Time `json:"start_time" validate:"required"`
	EndTime   time.Time `json:"end_time" validate:"required"`
}

type cancelSlotsRequest struct {
	SlotIDs []uuid.UUID `json:"slot_ids" validate:"required,min=1"`
}

type linkSlotRequest struct {
	BookingID uuid.UUID `json:"booking_id" validate:"required"`
}

func serviceUnavailable(name string) error {
	return pkgerrors.New(pkgerrors.CodeInternal, name+" service unavailable")
}

// GenerateSlots slices the submitted availability blocks into bookable slots.
func GenerateSlots(svc slots.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("slots"))
			return
		}
		providerID, err := validators.ParseURLParamUUID(r, "providerId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req generateSlotsRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		created, err := svc.GenerateSlots(r.Context(), providerID, req.Blocks, req.DefaultPriceCents)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, map[string]int{"created": created})
	}
}

// ListSlots returns a provider's slots ordered by start time.
func ListSlots(svc slots.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("slots"))
			return
		}
		providerID, err := validators.ParseURLParamUUID(r, "providerId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var filter slots.ListFilter
		if filter.From, err = validators.ParseQueryTime(r, "from"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if filter.To, err = validators.ParseQueryTime(r, "to"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			status, err := enums.ParseSlotStatus(strings.ToUpper(raw))
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter"))
				return
			}
			filter.Status = &status
		}

		rows, err := svc.ListSlots(r.Context(), providerID, filter)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteList(w, toSlotViews(rows), 0)
	}
}

// ReserveSlot books the provider's slot matching the requested window exactly.
func ReserveSlot(svc slots.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("slots"))
			return
		}
		providerID, err := validators.ParseURLParamUUID(r, "providerId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req reserveSlotRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		slot, err := svc.ReserveSlot(r.Context(), providerID, req.StartTime, req.EndTime)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toSlotView(*slot))
	}
}

func CancelSlot(svc slots.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("slots"))
			return
		}
		providerID, err := validators.ParseURLParamUUID(r, "providerId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		slotID, err := validators.ParseURLParamUUID(r, "slotId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.CancelSlot(r.Context(), providerID, slotID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteNoContent(w)
	}
}

// CancelSlotsBatch deletes the AVAILABLE slots among the ids and reports how many went.
func CancelSlotsBatch(svc slots.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("slots"))
			return
		}
		providerID, err := validators.ParseURLParamUUID(r, "providerId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req cancelSlotsRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		deleted, err := svc.CancelSlotsBatch(r.Context(), providerID, req.SlotIDs)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]int{"deleted": deleted})
	}
}

func ReleaseSlot(svc slots.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("slots"))
			return
		}
		slotID, err := validators.ParseURLParamUUID(r, "slotId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.ReleaseSlot(r.Context(), slotID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": string(enums.SlotStatusAvailable)})
	}
}

func LinkSlotToBooking(svc slots.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("slots"))
			return
		}
		slotID, err := validators.ParseURLParamUUID(r, "slotId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req linkSlotRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.LinkSlotToBooking(r.Context(), slotID, req.BookingID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteNoContent(w)
	}
}

// ReleaseBooking frees every slot held for the booking reference.
func ReleaseBooking(svc slots.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("slots"))
			return
		}
		bookingID, err := validators.ParseURLParamUUID(r, "bookingId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		released, err := svc.ReleaseSlotByBookingReference(r.Context(), bookingID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]int{"released": released})
	}
}
