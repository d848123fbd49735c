// internal/wire/wire.go
package wire

import (
	"paygate/internal/adaptor"
	"paygate/internal/data/repository"
	"paygate/internal/usecase"
	"paygate/pkg/metrics"
	"paygate/pkg/middleware"
	"paygate/pkg/utils"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// App menyimpan semua dependencies
type App struct {
	Router  *chi.Mux
	Service *usecase.Service
}

// Wiring menginisialisasi semua dependencies
func Wiring(
	repo *repository.Repository,
	infra usecase.Infra,
	checks []adaptor.HealthCheck,
	config *utils.Config,
	logger *zap.Logger,
) *App {
	service := usecase.NewService(repo, infra, config, logger)
	handler := adaptor.NewHandler(service, checks, logger)

	return &App{
		Router:  setupRouter(handler, config, logger),
		Service: service,
	}
}

// setupRouter konfigurasi Chi router
func setupRouter(handler *adaptor.Handler, config *utils.Config, logger *zap.Logger) *chi.Mux {
	r := chi.NewRouter()

	// Apply global middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Metrics)
	r.Use(middleware.Recover(logger))
	r.Use(middleware.CORS(config.CORS.AllowedOrigins))
	r.Use(middleware.Identity(config.JWT, logger))

	// Apply routes
	wireOTP(r, handler.OTP)
	wirePayment(r, handler.Payment)
	wirePassword(r, handler.Password)
	wireRPC(r, handler.RPC)

	// Health check endpoints
	r.Get("/health", handler.Health.Live)
	r.Get("/health/ready", handler.Health.Ready)
	r.Method("GET", "/metrics", metrics.Handler())

	return r
}
