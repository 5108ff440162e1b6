package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/reservation-engine/api/controllers"
	"github.com/angelmondragon/reservation-engine/api/middleware"
	"github.com/angelmondragon/reservation-engine/internal/adjustments"
	"github.com/angelmondragon/reservation-engine/internal/inventory"
	"github.com/angelmondragon/reservation-engine/internal/slots"
	"github.com/angelmondragon/reservation-engine/pkg/config"
	"github.com/angelmondragon/reservation-engine/pkg/logger"
)

// Deps carries everything the HTTP surface needs. Readiness entries with a
// nil Pinger are skipped.
type Deps struct {
	Config      *config.Config
	Logger      *logger.Logger
	Slots       slots.Service
	Stock       inventory.Service
	Adjustments adjustments.Service
	Readiness   map[string]controllers.Pinger
	Gatherer    prometheus.Gatherer
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.CORS(cfg.App.CORSOrigins),
		middleware.Actor(),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.Readiness))
	})

	if deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/providers/{providerId}/slots", func(r chi.Router) {
			r.Get("/", controllers.ListSlots(deps.Slots, logg))
			r.Post("/", controllers.GenerateSlots(deps.Slots, logg))
			r.Post("/reserve", controllers.ReserveSlot(deps.Slots, logg))
			r.Post("/cancel", controllers.CancelSlotsBatch(deps.Slots, logg))
			r.Delete("/{slotId}", controllers.CancelSlot(deps.Slots, logg))
		})

		r.Route("/slots/{slotId}", func(r chi.Router) {
			r.Post("/release", controllers.ReleaseSlot(deps.Slots, logg))
			r.Post("/booking", controllers.LinkSlotToBooking(deps.Slots, logg))
		})

		r.Post("/bookings/{bookingId}/release", controllers.ReleaseBooking(deps.Slots, logg))

		r.Route("/products/{productId}/stock", func(r chi.Router) {
			r.Get("/", controllers.GetStock(deps.Stock, logg))
			r.Put("/", controllers.SetStock(deps.Stock, logg))
			r.Post("/reserve", controllers.ReserveStock(deps.Stock, logg))
			r.Post("/release", controllers.ReleaseStock(deps.Stock, logg))
			r.Post("/confirm", controllers.ConfirmStockSale(deps.Stock, logg))
			r.Post("/reduce", controllers.ReduceStock(deps.Stock, logg))
			r.Post("/adjust", controllers.AdjustStock(deps.Stock, logg))
		})

		r.Get("/stock/low", controllers.ListLowStock(deps.Stock, logg))

		r.Route("/adjustments", func(r chi.Router) {
			r.Get("/", controllers.ListAdjustments(deps.Adjustments, logg))
			r.Post("/", controllers.RequestAdjustment(deps.Adjustments, logg))
			r.Get("/{adjustmentId}", controllers.GetAdjustment(deps.Adjustments, logg))
			r.Post("/{adjustmentId}/review", controllers.ReviewAdjustment(deps.Adjustments, logg))
			r.Post("/{adjustmentId}/cancel", controllers.CancelAdjustment(deps.Adjustments, logg))
		})
	})

	return r
}
