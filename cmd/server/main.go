package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	_ "github.com/danielgtaylor/huma/v2/formats/cbor"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/janisto/hive-profiles/internal/http/health"
	"github.com/janisto/hive-profiles/internal/http/v1/routes"
	"github.com/janisto/hive-profiles/internal/platform/config"
	"github.com/janisto/hive-profiles/internal/platform/firebase"
	"github.com/janisto/hive-profiles/internal/platform/kv"
	applog "github.com/janisto/hive-profiles/internal/platform/logging"
	"github.com/janisto/hive-profiles/internal/platform/metrics"
	appmiddleware "github.com/janisto/hive-profiles/internal/platform/middleware"
	"github.com/janisto/hive-profiles/internal/platform/respond"
	"github.com/janisto/hive-profiles/internal/service/deliverability"
	"github.com/janisto/hive-profiles/internal/service/directory"
	profilesvc "github.com/janisto/hive-profiles/internal/service/profile"
)

// Version can be overridden at build time: -ldflags "-X main.Version=1.2.3"
var Version = "dev"

const sweepInterval = time.Minute

// app is everything the router needs.
type app struct {
	cfg      *config.Config
	backend  kv.Store
	services routes.Services
	metrics  *metrics.Metrics
}

func main() {
	defer func() {
		if err := applog.Sync(); err != nil {
			applog.LogError(context.Background(), "logger sync error", err)
		}
	}()
	if err := applog.Err(); err != nil {
		applog.LogError(context.Background(), "logger init error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		applog.LogError(context.Background(), "invalid configuration", err)
		os.Exit(1)
	}
	if !applog.SetLevel(cfg.LogLevel) {
		applog.LogWarn(context.Background(), "unknown LOG_LEVEL, keeping info", zap.String("level", cfg.LogLevel))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backend, closeBackend, err := openBackend(ctx, cfg)
	if err != nil {
		applog.LogError(ctx, "storage init failed", err, zap.String("backend", cfg.StorageBackend))
		os.Exit(1)
	}
	defer func() {
		if err := closeBackend(); err != nil {
			applog.LogError(context.Background(), "storage close error", err)
		}
	}()

	a := newApp(cfg, backend, metrics.New(), http.DefaultClient)
	if cfg.ProfilesMigrateLegacy {
		n, err := a.services.Profiles.MigrateLegacy(ctx)
		if err != nil {
			applog.LogError(ctx, "legacy profile migration failed", err)
		} else {
			applog.LogInfo(ctx, "legacy profile migration done", zap.Int("imported", n))
		}
	}
	go a.services.Forms.Run(ctx, sweepInterval)

	respond.Install()

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           a.router(),
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
		// Submissions wait on the email lookup.
		WriteTimeout:   30 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 64 << 10, // 64 KB
	}

	listenErr := make(chan error, 1)
	go func() {
		applog.LogInfo(context.Background(), "server listening",
			zap.String("addr", srv.Addr),
			zap.String("backend", cfg.StorageBackend),
			zap.String("version", Version),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			listenErr <- err
		}
	}()

	// Graceful shutdown
	select {
	case err := <-listenErr:
		applog.LogError(context.Background(), "listen failed", err, zap.String("addr", srv.Addr))
		os.Exit(1)
	case <-ctx.Done():
		applog.LogInfo(context.Background(), "shutdown signal received")
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		applog.LogError(shutdownCtx, "server shutdown error", err)
	}
	applog.LogInfo(context.Background(), "server exited")
}

// openBackend connects the storage chosen by STORAGE_BACKEND.
func openBackend(ctx context.Context, cfg *config.Config) (kv.Store, func() error, error) {
	noop := func() error { return nil }
	switch cfg.StorageBackend {
	case config.BackendMemory:
		return kv.NewMemoryStore(), noop, nil
	case config.BackendFirestore:
		clients, err := firebase.InitializeClients(ctx, firebase.Config{
			ProjectID:                    cfg.FirebaseProjectID,
			GoogleApplicationCredentials: cfg.GoogleCredentials,
		})
		if err != nil {
			return nil, nil, err
		}
		return kv.NewFirestoreStore(clients.Firestore, ""), clients.Close, nil
	case config.BackendRedis:
		client, err := kv.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		return kv.NewRedisStore(client, ""), client.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}

// newApp builds the services over backend.
func newApp(cfg *config.Config, backend kv.Store, m *metrics.Metrics, httpClient *http.Client) *app {
	var checker profilesvc.EmailChecker
	if cfg.EmailAPIKey != "" {
		client := deliverability.NewClient(httpClient,
			deliverability.WithBaseURL(cfg.EmailAPIBaseURL),
			deliverability.WithAPIKey(cfg.EmailAPIKey),
			deliverability.WithTimeout(cfg.EmailCheckTimeout),
		)
		rc := deliverability.DefaultResilientConfig()
		rc.MaxAttempts = cfg.EmailCheckRetries
		rc.EnableCircuitBreaker = cfg.EmailCheckBreaker
		checker = deliverability.NewResilient(client, rc)
	} else {
		applog.LogWarn(context.Background(), "EMAIL_API_KEY not set, every email check will fail")
	}

	store := profilesvc.NewStore(backend,
		profilesvc.WithKey(cfg.ProfilesKey),
		profilesvc.WithStoreMetrics(m),
	)
	validator := profilesvc.NewValidator(checker, profilesvc.WithValidatorMetrics(m))
	forms := profilesvc.NewFormRegistry(func() *profilesvc.Form {
		return profilesvc.NewForm(validator, store,
			profilesvc.WithSubmittedDisplay(cfg.SubmittedDisplay),
			profilesvc.WithFormMetrics(m),
		)
	},
		profilesvc.WithIdleTimeout(cfg.FormIdleTimeout),
		profilesvc.WithRegistryMetrics(m),
	)
	dir := directory.NewClient(httpClient,
		directory.WithBaseURL(cfg.DirectoryBaseURL),
		directory.WithAPIKey(cfg.DirectoryAPIKey),
	)

	return &app{
		cfg:     cfg,
		backend: backend,
		metrics: m,
		services: routes.Services{
			Profiles:  store,
			Validator: validator,
			Forms:     forms,
			Directory: dir,
			Metrics:   m,
		},
	}
}

func (a *app) router() http.Handler {
	router := chi.NewRouter()
	router.NotFound(respond.NotFoundHandler())
	router.MethodNotAllowed(respond.MethodNotAllowedHandler())

	// Base middleware stack
	router.Use(
		appmiddleware.Security("/v1/api-docs"),
		appmiddleware.Vary(),
		appmiddleware.CORS(a.cfg.CORSOrigins...),
		appmiddleware.RequestID(),
		// RealIP extracts client IP from X-Real-IP or X-Forwarded-For headers.
		// SECURITY: Only use behind a trusted reverse proxy (e.g., Cloud Run, nginx).
		chimiddleware.RealIP,
		chimiddleware.RequestSize(1<<20), // 1 MB limit
		applog.RequestLogger(),
		applog.AccessLogger(),
		respond.Recoverer(),
	)

	router.Get("/health", health.Handler(func(ctx context.Context) error {
		return kv.Ping(ctx, a.backend)
	}))
	router.Handle("/metrics", a.metrics.Handler())

	router.Route("/v1", func(r chi.Router) {
		cfg := huma.DefaultConfig("Hive Profiles API", Version)
		cfg.DocsPath = "/api-docs"
		cfg.Servers = []*huma.Server{{URL: "/v1"}}
		api := humachi.New(r, cfg)

		api.OpenAPI().OnAddOperation = append(api.OpenAPI().OnAddOperation, addCBORContent)

		routes.Register(api, a.services)
	})

	return router
}

// addCBORContent advertises CBOR wherever an operation accepts or returns JSON.
func addCBORContent(_ *huma.OpenAPI, op *huma.Operation) {
	if op.RequestBody != nil && op.RequestBody.Content != nil {
		if jsonContent, ok := op.RequestBody.Content["application/json"]; ok {
			op.RequestBody.Content["application/cbor"] = jsonContent
		}
	}
	for _, resp := range op.Responses {
		if resp.Content == nil {
			continue
		}
		if jsonContent, ok := resp.Content["application/json"]; ok {
			resp.Content["application/cbor"] = jsonContent
		}
	}
}
