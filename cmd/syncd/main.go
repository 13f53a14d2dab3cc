package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storefront-sync-layer/internal/application"
	"storefront-sync-layer/internal/domain"
	"storefront-sync-layer/internal/infrastructure/remote"
	"storefront-sync-layer/internal/infrastructure/storage"
	"storefront-sync-layer/internal/infrastructure/transport"
	"storefront-sync-layer/internal/ports"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	// Initialize logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if err := godotenv.Load(); err != nil {
		logger.Warn().Msg("⚠️  Warning: .env file not found")
	}

	dataDir := getenv("DATA_DIR", "./data")
	redisAddr := os.Getenv("REDIS_ADDR")
	mongoURI := os.Getenv("MONGODB_URI")
	port := getenv("PORT", "8090")
	contextID := getenv("CONTEXT_ID", uuid.NewString())
	parentID := os.Getenv("PARENT_CONTEXT_ID")
	preferLocal := getenv("SYNC_PREFER_LOCAL", "false") == "true"

	ctx := context.Background()

	// Storage tiers
	durable, err := storage.NewFileTier(dataDir)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to open durable tier")
	}
	volatile := storage.NewMemoryTier()

	metrics := application.NewMetrics(prometheus.DefaultRegisterer)

	// Cross-context transports: Redis connects this process to sibling
	// contexts. Without Redis the daemon runs standalone.
	cfg := application.SyncManagerConfig{
		ContextID: contextID,
		Durable:   durable,
		Volatile:  volatile,
		Logger:    logger,
		Metrics:   metrics,
	}
	if parentID != "" {
		cfg.Parents = []string{parentID}
	}
	var rt *transport.RedisTransport
	if redisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: redisAddr})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		rt = transport.NewRedisTransport(redisClient, contextID, logger)
		cfg.Feed = rt
		cfg.Messenger = rt
	}

	syncMgr, err := application.NewSyncManager(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize sync manager")
	}

	// Remote backend behind the resilience guard
	guardCfg := application.RemoteGuardConfig{
		PreferLocal: preferLocal,
		Logger:      logger,
		Metrics:     metrics,
	}
	backend := remoteBackendOrNil(ctx, mongoURI, logger)
	if backend != nil {
		guardCfg.Probe = backend.Ping
	}
	guard := application.NewRemoteGuard(guardCfg)
	if preferLocal {
		logger.Info().Msg("Prefer-local mode: remote backend disabled until an explicit re-check")
	}

	store := application.NewEntityStore(syncMgr, logger)
	if backend != nil {
		store.AttachRemote(backend, guard)
	}
	waiter := application.NewWaiter(syncMgr, logger)
	resolver := application.NewIdentityResolver(durable, nil, logger)

	// Warm up: wait for store data from sibling contexts, then fall back to
	// a guarded remote pull if nothing arrived anywhere.
	stores := waiter.WaitForData(ctx, domain.EntityStore, "", 5*time.Second)
	if len(stores) == 0 && backend != nil {
		stores, _ = application.Guarded(ctx, guard,
			func(ctx context.Context) (domain.Collection, error) {
				return backend.PullCollection(ctx, domain.EntityStore, "")
			},
			func(context.Context) (domain.Collection, error) {
				return domain.Collection{}, nil
			},
			"pull_stores",
		)
		if len(stores) > 0 {
			syncMgr.ApplyUpdate(domain.EntityStore, stores)
		}
	}
	logger.Info().Str("contextId", contextID).Int("stores", len(stores)).Msg("Sync context ready")

	// Setup router
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/status", func(w http.ResponseWriter, req *http.Request) {
		counts := make(map[string]int, len(domain.EntityTypes))
		for _, typ := range domain.EntityTypes {
			counts[string(typ)] = len(store.List(typ, nil))
		}
		var currentIdentity string
		if identity := resolver.Current(); identity != nil {
			currentIdentity = identity.Email
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"contextId":       contextID,
			"remoteAvailable": guard.Available(),
			"preferLocal":     preferLocal,
			"collections":     counts,
			"currentIdentity": currentIdentity,
		})
	})

	srv := &http.Server{Addr: ":" + port, Handler: r}
	go func() {
		logger.Info().Str("port", port).Msg("🚀 Sync daemon listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Server stopped")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Failed to shut down server cleanly")
	}
	if rt != nil {
		if err := rt.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close transport")
		}
	}
}

func remoteBackendOrNil(ctx context.Context, mongoURI string, logger zerolog.Logger) ports.RemoteBackend {
	if mongoURI == "" {
		return nil
	}
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(mongoURI))
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to connect to MongoDB, running local-only")
		return nil
	}
	db := client.Database(getenv("MONGODB_DATABASE", "storefront"))
	return remote.NewMongoBackend(client, db)
}
