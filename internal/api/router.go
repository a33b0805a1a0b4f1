package api

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/Harshitk-cp/wellspring/internal/api/handlers"
	mw "github.com/Harshitk-cp/wellspring/internal/api/middleware"
	"github.com/Harshitk-cp/wellspring/internal/buildconfig"
	"github.com/Harshitk-cp/wellspring/internal/domain"
	"github.com/Harshitk-cp/wellspring/internal/service"
	"github.com/Harshitk-cp/wellspring/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Options configures NewApp.
type Options struct {
	HistoryLimit   int
	RetentionDays  int
	APIKey         string
	RateLimitRPS   float64
	RateLimitBurst int
}

// App holds the router and background services for lifecycle management.
type App struct {
	Router       *chi.Mux
	Models       *service.ModelService
	Assessments  *service.AssessmentService
	Expirer      *service.ExpirerService
	Hub          *handlers.Hub
	startTime    time.Time
	requestCount atomic.Int64
	errorCount   atomic.Int64
}

func NewApp(models *service.ModelService, assessments domain.AssessmentStore, opts Options, logger *zap.Logger) *App {
	// Services
	inferenceSvc := service.NewInferenceService(models, logger)
	assessmentSvc := service.NewAssessmentService(inferenceSvc, assessments, logger)
	assessmentSvc.SetHistoryLimit(opts.HistoryLimit)
	expirerSvc := service.NewExpirerService(assessments, opts.RetentionDays, logger)

	hub := handlers.NewHub(logger)
	assessmentSvc.SetPublisher(hub)

	// Handlers
	inferenceHandler := handlers.NewInferenceHandler(inferenceSvc, logger)
	modelHandler := handlers.NewModelHandler(inferenceSvc, models, logger)
	assessmentHandler := handlers.NewAssessmentHandler(assessmentSvc, logger)

	r := chi.NewRouter()

	app := &App{
		Router:      r,
		Models:      models,
		Assessments: assessmentSvc,
		Expirer:     expirerSvc,
		Hub:         hub,
		startTime:   time.Now(),
	}

	metricsCollector := mw.NewMetricsCollector(&app.requestCount, &app.errorCount)

	// Global middleware (order matters)
	r.Use(mw.RequestID)
	r.Use(middleware.RealIP)
	r.Use(metricsCollector.Middleware)
	r.Use(mw.Logging(logger))
	r.Use(middleware.Recoverer)
	r.Use(mw.RateLimit(opts.RateLimitRPS, opts.RateLimitBurst))

	// Health and metrics (no auth)
	r.Get("/health", app.healthHandler())
	r.Get("/metrics", app.metricsHandler())
	r.Method(http.MethodGet, "/metrics/prometheus", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(mw.APIKeyAuth(opts.APIKey))

		r.Route("/model", func(r chi.Router) {
			r.Get("/variables", modelHandler.Variables)
			r.Get("/structure", modelHandler.Structure)
			r.Post("/reload", modelHandler.Reload)
		})

		r.Post("/query", inferenceHandler.Query)
		r.Post("/sensitivity", inferenceHandler.Sensitivity)
		r.Post("/scenario", inferenceHandler.Scenario)

		r.Route("/assessments", func(r chi.Router) {
			r.Post("/", assessmentHandler.Create)
			r.Get("/", assessmentHandler.List)
			r.Delete("/", assessmentHandler.Clear)
			r.Post("/pump", assessmentHandler.Pump)
			r.Get("/export", assessmentHandler.Export)
			r.Get("/stream", hub.Subscribe)
			r.Get("/{id}", assessmentHandler.GetByID)
		})
	})

	return app
}

// Start launches the background services.
func (app *App) Start() {
	app.Hub.Start()
	app.Models.Start()
	app.Expirer.Start()
}

// Stop halts the background services.
func (app *App) Stop() {
	app.Expirer.Stop()
	app.Models.Stop()
	app.Hub.Stop()
}

func (app *App) healthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m := app.Models.Current()
		resp := map[string]any{
			"status":       "ok",
			"model_loaded": m != nil,
			"build":        buildconfig.VersionInfo(),
		}
		if m != nil {
			resp["model"] = map[string]any{
				"name":      m.Name,
				"checksum":  m.Checksum,
				"loaded_at": m.LoadedAt,
				"nodes":     m.Network.Len(),
			}
		}

		status := http.StatusOK
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := app.Assessments.Ping(ctx); err != nil {
			status = http.StatusServiceUnavailable
			resp["status"] = "error"
			resp["error"] = err.Error()
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func (app *App) metricsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var memStats runtime.MemStats
		runtime.ReadMemStats(&memStats)

		uptime := time.Since(app.startTime)

		response := map[string]any{
			"uptime_seconds":   uptime.Seconds(),
			"uptime_human":     uptime.Round(time.Second).String(),
			"request_count":    app.requestCount.Load(),
			"error_count":      app.errorCount.Load(),
			"live_subscribers": app.Hub.Clients(),
			"goroutines":       runtime.NumGoroutine(),
			"memory": map[string]any{
				"alloc_mb":       float64(memStats.Alloc) / 1024 / 1024,
				"total_alloc_mb": float64(memStats.TotalAlloc) / 1024 / 1024,
				"sys_mb":         float64(memStats.Sys) / 1024 / 1024,
				"num_gc":         memStats.NumGC,
			},
			"go_version": runtime.Version(),
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(response)
	}
}

// Ensure stores satisfy interfaces at compile time.
var (
	_ domain.AssessmentStore = (*store.AssessmentStore)(nil)
	_ domain.AssessmentStore = (*store.InMemoryAssessmentStore)(nil)
	_ service.Publisher      = (*handlers.Hub)(nil)
)
