package internal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"procurement-api/internal/apperr"
	"procurement-api/internal/auth"
	"procurement-api/internal/config"
	"procurement-api/internal/handlers"
	"procurement-api/internal/logging"
	"procurement-api/internal/models"
	"procurement-api/internal/schema"
	"procurement-api/internal/service"
	"procurement-api/internal/store"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Role sets guarding write routes.
var (
	writers   = []string{models.RoleProcurementAdmin, models.RoleBuyer}
	approvers = []string{models.RoleProcurementAdmin, models.RoleApprover}
	admins    = []string{models.RoleProcurementAdmin}
)

type Server struct {
	Router     *chi.Mux
	Store      store.Store
	Services   *service.Services
	Schemas    *schema.Registry
	JWTManager *auth.JWTManager
	Metrics    *Metrics
	Logger     *zap.Logger

	backend string
	closers []func() error
}

// NewServer opens the store backend the configuration selects and builds
// the router on top of it.
func NewServer(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Server, error) {
	backend, closers, err := openBackend(ctx, cfg)
	if err != nil {
		return nil, err
	}
	s, err := NewServerWithStore(cfg, logger, backend, closers...)
	if err != nil {
		for _, c := range closers {
			_ = c()
		}
		return nil, err
	}
	return s, nil
}

func openBackend(ctx context.Context, cfg *config.Config) (store.Store, []func() error, error) {
	switch cfg.Backend() {
	case "demo":
		m, err := store.NewDemo()
		if err != nil {
			return nil, nil, fmt.Errorf("load demo dataset: %w", err)
		}
		return m, nil, nil
	case "crud":
		return store.NewCRUDClient(cfg.URLDataCRUD, cfg.CRUDTimeout), nil, nil
	default:
		pg, err := store.OpenPostgres(ctx, cfg.DBDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres: %w", err)
		}
		return pg, []func() error{pg.Close}, nil
	}
}

// NewServerWithStore wires services, schemas and routes over an already
// opened backend. closers run on Close.
func NewServerWithStore(cfg *config.Config, logger *zap.Logger, backend store.Store, closers ...func() error) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience, cfg.JWTExpiry)
	if err := jwtManager.ValidateConfig(); err != nil {
		return nil, fmt.Errorf("JWT configuration validation failed: %w", err)
	}

	schemas, err := schema.Load(cfg.SchemaDir)
	if err != nil {
		return nil, fmt.Errorf("load schemas: %w", err)
	}

	metrics := NewMetrics()

	var st store.Store = store.NewInstrumented(backend, cfg.Backend(), metrics.ObserveStore)
	if cfg.RedisURL != "" {
		client, err := store.NewRedisClient(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		closers = append(closers, client.Close)
		st = store.NewCached(st, client, cfg.CacheTTL)
	}

	s := &Server{
		Router:     chi.NewRouter(),
		Store:      st,
		Schemas:    schemas,
		JWTManager: jwtManager,
		Metrics:    metrics,
		Logger:     logger,
		backend:    cfg.Backend(),
		closers:    closers,
		Services: service.New(st, service.Options{
			TaxRate:  &cfg.TaxRate,
			Observer: metrics.ObserveTransition,
		}),
	}

	s.Router.Use(logging.Middleware(logger))
	if cfg.EnableMetrics {
		s.Router.Use(s.Metrics.Middleware())
		s.Router.Get("/metrics", s.Metrics.Handler().ServeHTTP)
	}
	s.Router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		apperr.WriteError(w, &apperr.AppError{Status: http.StatusNotFound, Code: apperr.CodeNotFound, Message: "route not found"})
	})
	s.Router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		apperr.WriteError(w, &apperr.AppError{Status: http.StatusMethodNotAllowed, Code: apperr.CodeMethodNotAllowed, Message: "method not allowed"})
	})

	// Public routes
	s.Router.Get("/health", s.health)
	s.Router.Get("/ready", s.ready)
	s.Router.Post("/auth/login", s.loginUser)

	s.Router.Group(func(r chi.Router) {
		r.Use(auth.AuthMiddleware(s.JWTManager))
		s.mountProtectedRoutes(r)
	})

	logger.Info("server configured",
		zap.String("backend", s.backend),
		zap.Bool("cache", cfg.RedisURL != ""),
		zap.Bool("metrics", cfg.EnableMetrics),
		zap.Int("schemas", len(schemas.List())))
	return s, nil
}

// Close releases the backend connections.
func (s *Server) Close(ctx context.Context) error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	apperr.WriteData(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ready reports whether the store backend answers.
func (s *Server) ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()
	if err := s.Store.Ping(ctx); err != nil {
		logging.FromContext(r.Context()).Warn("readiness check failed", zap.String("backend", s.backend), zap.Error(err))
		apperr.WriteJSON(w, http.StatusServiceUnavailable, apperr.Envelope{
			Success: false,
			Error:   &apperr.AppError{Code: apperr.CodeUpstream, Message: "store backend unavailable"},
			Meta:    map[string]any{"backend": s.backend},
		})
		return
	}
	apperr.WriteJSON(w, http.StatusOK, apperr.Envelope{
		Success: true,
		Data:    map[string]string{"status": "ready"},
		Meta:    map[string]any{"backend": s.backend},
	})
}

// mountProtectedRoutes mounts all routes that require a valid token
func (s *Server) mountProtectedRoutes(r chi.Router) {
	r.Get("/auth/profile", s.getUserProfile)
	r.Put("/auth/change-password", s.changePassword)

	r.Route("/vendors", func(r chi.Router) {
		r.Get("/", s.listVendors)
		r.With(auth.MustRole(writers...)).Post("/", s.createVendor)
		r.Get("/stats", s.vendorStats)
		r.Get("/{id}", s.getVendor)
		r.With(auth.MustRole(writers...)).Put("/{id}", s.updateVendor)
		r.With(auth.MustRole(admins...)).Delete("/{id}", s.deleteVendor)
		r.With(auth.MustRole(writers...)).Post("/{id}/status", s.changeVendorStatus)
	})

	r.Route("/tenders", func(r chi.Router) {
		r.Get("/", s.listTenders)
		r.With(auth.MustRole(writers...)).Post("/", s.createTender)
		r.Get("/{id}", s.getTender)
		r.With(auth.MustRole(writers...)).Put("/{id}", s.updateTender)
		r.With(auth.MustRole(admins...)).Delete("/{id}", s.deleteTender)
		r.With(auth.MustRole(writers...)).Post("/{id}/publish", s.publishTender)
		r.With(auth.MustRole(writers...)).Post("/{id}/close", s.closeTender)
		r.With(auth.MustRole(writers...)).Post("/{id}/cancel", s.cancelTender)
		r.Get("/{id}/quotations", s.listQuotations)
		r.With(auth.MustRole(writers...)).Post("/{id}/quotations", s.submitQuotation)
		r.Get("/{id}/evaluation", s.evaluateTender)
		r.With(auth.MustRole(writers...)).Post("/{id}/award", s.awardTender)
		r.With(auth.MustRole(writers...)).Post("/{id}/purchase-order", s.createTenderPurchaseOrder)
	})

	r.Route("/purchase-orders", func(r chi.Router) {
		r.Get("/", s.listPurchaseOrders)
		r.With(auth.MustRole(writers...)).Post("/", s.createPurchaseOrder)
		r.Get("/summary", s.purchaseOrderSummary)
		r.Get("/{id}", s.getPurchaseOrder)
		r.With(auth.MustRole(writers...)).Put("/{id}", s.updatePurchaseOrder)
		r.With(auth.MustRole(admins...)).Delete("/{id}", s.deletePurchaseOrder)
		r.With(auth.MustRole(writers...)).Post("/{id}/submit", s.submitPurchaseOrder)
		r.With(auth.MustRole(approvers...)).Post("/{id}/approve", s.approvePurchaseOrder)
		r.With(auth.MustRole(approvers...)).Post("/{id}/reject", s.rejectPurchaseOrder)
		r.With(auth.MustRole(writers...)).Post("/{id}/acknowledge", s.acknowledgePurchaseOrder)
		r.With(auth.MustRole(writers...)).Post("/{id}/start", s.startPurchaseOrder)
		r.With(auth.MustRole(writers...)).Post("/{id}/complete", s.completePurchaseOrder)
		r.With(auth.MustRole(writers...)).Post("/{id}/cancel", s.cancelPurchaseOrder)
	})

	r.Route("/schemas", func(r chi.Router) {
		r.Get("/", s.listSchemas)
		r.Get("/{id}", s.getSchema)
		r.Post("/{id}/validate", s.validateSchemaRecord)
		r.Get("/{id}/cards", s.schemaCards)
		r.Post("/{id}/card", s.schemaCard)
	})

	r.Route("/data/{collection}", func(r chi.Router) {
		r.Get("/", s.dataList)
		r.With(auth.MustRole(admins...)).Post("/", s.dataCreate)
		r.Get("/{id}", s.dataGet)
		r.With(auth.MustRole(admins...)).Put("/{id}", s.dataUpdate)
		r.With(auth.MustRole(admins...)).Delete("/{id}", s.dataDelete)
	})

	imports := handlers.NewImportsHandler(s.Services.Vendors)
	r.With(auth.MustRole(writers...)).Post("/imports/vendors", imports.UploadVendors)
}
