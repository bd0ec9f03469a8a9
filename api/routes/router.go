package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/labeltrack-backend/api/controllers"
	labelcontrollers "github.com/angelmondragon/labeltrack-backend/api/controllers/labels"
	"github.com/angelmondragon/labeltrack-backend/api/middleware"
	"github.com/angelmondragon/labeltrack-backend/internal/labels"
	"github.com/angelmondragon/labeltrack-backend/pkg/config"
	"github.com/angelmondragon/labeltrack-backend/pkg/db"
	"github.com/angelmondragon/labeltrack-backend/pkg/enums"
	"github.com/angelmondragon/labeltrack-backend/pkg/logger"
	"github.com/angelmondragon/labeltrack-backend/pkg/redis"
)

// NewRouter wires the HTTP surface. redisClient and metricsHandler may be nil.
func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	labelService labels.Service,
	metricsHandler http.Handler,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	readiness := map[string]controllers.Pinger{"db": dbP}
	var idempotencyStore redis.IdempotencyStore
	if redisClient != nil {
		readiness["redis"] = redisClient
		idempotencyStore = redisClient
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readiness))
	})

	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}

	r.Route("/api/v1/labels", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(idempotencyStore, logg))

		managers := middleware.RequireRole(logg, enums.ActorRoleManager, enums.ActorRoleAdmin)

		r.Get("/", labelcontrollers.ListLabels(labelService, logg))
		r.Post("/scan", labelcontrollers.ScanLabel(labelService, logg))
		r.With(managers).Post("/batches", labelcontrollers.GenerateBatch(labelService, logg))
		r.Get("/batches/{batchId}", labelcontrollers.GetBatch(labelService, logg))

		r.Route("/{labelId}", func(r chi.Router) {
			r.Get("/", labelcontrollers.GetLabel(labelService, logg))
			r.Post("/assign", labelcontrollers.AssignLabel(labelService, logg))
			r.With(managers).Post("/retire", labelcontrollers.RetireLabel(labelService, logg))
			r.With(managers).Post("/reprint", labelcontrollers.ReprintLabel(labelService, logg))
			r.Get("/events", labelcontrollers.LabelHistory(labelService, logg))
			r.Get("/chain", labelcontrollers.LabelChain(labelService, logg))
			r.Get("/timeline", labelcontrollers.LabelTimeline(labelService, logg))
		})
	})

	return r
}
