package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"eventhub/api/catalog"
	"eventhub/api/collab"
	"eventhub/api/compliance"
	"eventhub/api/config"
	"eventhub/api/database"
	"eventhub/api/handlers"
	"eventhub/api/logger"
	"eventhub/api/metrics"
	"eventhub/api/middleware"
	"eventhub/api/notify"
	"eventhub/api/recommend"
	"eventhub/api/store"
	"eventhub/api/store/memory"
	"eventhub/api/tasks"
	"eventhub/api/utils"
)

// backend is the set of stores the services run against.
type backend struct {
	users       handlers.UserAccounts
	userReader  recommend.UserReader
	interaction recommend.InteractionStore
	events      recommend.EventCatalog
	categories  catalog.Store
	collabs     collab.Store
	health      map[string]handlers.Pinger
	close       func()
}

func main() {
	dotEnvErr := config.LoadDotEnv()

	cfg, err := config.Load()
	if err != nil {
		bootLog, _ := logger.New("production")
		bootLog.Fatal("Invalid configuration", "error", err)
	}

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	if dotEnvErr != nil {
		log.Info("No .env file loaded", "reason", dotEnvErr.Error())
	}

	if cfg.GinMode == gin.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	be, err := openBackend(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to initialize store", "backend", cfg.StoreBackend, "error", err)
	}
	defer be.close()

	// --- Optional ClickHouse interaction log ---
	var sink recommend.InteractionLog
	var stats handlers.InteractionStats
	if cfg.ClickHouse.Enabled() {
		chClient, err := database.NewClickHouseDB(ctx, cfg.ClickHouse, log)
		if err != nil {
			log.Fatal("Failed to initialize ClickHouse database", "error", err)
		}
		defer chClient.Close()
		if err := chClient.EnsureSchema(ctx); err != nil {
			log.Fatal("Failed to prepare ClickHouse schema", "error", err)
		}
		analyticsStore := store.NewAnalyticsStore(chClient, log)
		sink, stats = analyticsStore, analyticsStore
		be.health["clickhouse"] = handlers.PingFunc(chClient.Conn.Ping)
	} else {
		log.Info("ClickHouse not configured, interaction log disabled")
	}

	// --- Optional Redis lock and cache ---
	var locker collab.Locker
	var trendingCache catalog.TrendingCache
	if cfg.RedisAddr != "" {
		rdb, err := database.NewRedis(ctx, cfg.RedisAddr, log)
		if err != nil {
			log.Fatal("Failed to initialize Redis", "error", err)
		}
		defer rdb.Close()
		locker = store.NewRedisLocker(rdb.Client)
		trendingCache = store.NewRedisTrendingCache(rdb.Client)
		be.health["redis"] = handlers.PingFunc(func(ctx context.Context) error { return rdb.Client.Ping(ctx).Err() })
	}

	// --- Notifications ---
	var dispatcher notify.Dispatcher = notify.NewLogDispatcher(log)
	if len(cfg.KafkaBrokers) > 0 {
		kd, err := notify.NewKafkaDispatcher(cfg.KafkaBrokers, cfg.KafkaNotificationTopic)
		if err != nil {
			log.Fatal("Failed to initialize Kafka dispatcher", "error", err)
		}
		defer kd.Close()
		dispatcher = kd
	}

	pool := tasks.NewPool(cfg.TaskWorkers, cfg.TaskQueueSize, 15*time.Second, log, m)

	// --- Services ---
	engine := recommend.NewEngine(be.userReader, be.events, recommend.EngineConfig{
		TopCategories: cfg.RecommendTopCategories,
		DecayHalfLife: cfg.RecommendDecayHalfLife,
	})
	tracker := recommend.NewTracker(be.userReader, be.events, be.interaction, sink, pool, m, log)
	reporter := recommend.NewReporter(be.userReader, be.events, engine)
	categories := catalog.NewService(be.categories, trendingCache, cfg.TrendingCacheTTL, m, log)
	collabs := collab.NewService(be.collabs, compliance.RegexScanner{}, dispatcher, pool, m, log, collab.Policy{
		BlockHighRisk:        cfg.CompliancePolicy == config.CompliancePolicyBlock,
		RenegotiateOnDecline: cfg.CounterRejectPolicy == config.CounterRejectRenegotiate,
		PendingTTL:           cfg.CollabPendingTTL,
	})
	sweeper := collab.NewSweeper(collabs, locker, cfg.CollabSweepInterval, log)

	// --- HTTP ---
	jwt, err := utils.NewJWTManager(cfg.JWTSecret, cfg.JWTTTL)
	if err != nil {
		log.Fatal("Failed to initialize JWT manager", "error", err)
	}
	if err := handlers.RegisterValidators(); err != nil {
		log.Fatal("Failed to register validators", "error", err)
	}

	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(log, m), middleware.CORS(cfg.FEOrigin))
	handlers.RegisterRoutes(r, handlers.Router{
		Auth:            handlers.NewAuthHandlers(be.users, jwt, cfg.IsAdminEmail, log),
		Recommendations: handlers.NewRecommendationHandlers(engine, tracker, reporter, stats, m, log),
		Categories:      handlers.NewCategoryHandlers(categories, log),
		Collaborations:  handlers.NewCollaborationHandlers(collabs, log),
		Health:          handlers.NewHealthHandlers(be.health),
		Metrics:         m.Handler(),
		Authenticated:   middleware.AuthRequired(jwt, cfg.ServiceAPIKey, log),
		AdminOnly:       middleware.RequireAdmin(),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	sweepDone := make(chan struct{})
	go func() {
		defer close(sweepDone)
		sweeper.Run(ctx)
	}()

	go func() {
		log.Info("API server starting", "port", cfg.Port, "store", cfg.StoreBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("API server failed to start", "error", err)
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}
	<-sweepDone
	if err := pool.Shutdown(shutdownCtx); err != nil {
		log.Warn("Task pool did not drain", "error", err)
	}
	log.Info("Server exiting")
}

func openBackend(ctx context.Context, cfg *config.Config, log *logger.Logger) (*backend, error) {
	if cfg.StoreBackend == "memory" {
		log.Warn("Using in-memory store, data is lost on restart")
		mem := memory.New()
		return &backend{
			users:       mem,
			userReader:  mem,
			interaction: mem,
			events:      mem,
			categories:  mem,
			collabs:     mem,
			health:      map[string]handlers.Pinger{"store": mem},
			close:       func() {},
		}, nil
	}

	dbClient, err := database.NewPostgresDB(ctx, cfg.DatabaseURL, log)
	if err != nil {
		return nil, err
	}
	if err := dbClient.Migrate(ctx); err != nil {
		dbClient.Close()
		return nil, err
	}
	users := store.NewUserStore(dbClient.DB)
	return &backend{
		users:       users,
		userReader:  users,
		interaction: users,
		events:      store.NewEventStore(dbClient.DB),
		categories:  store.NewCategoryStore(dbClient.DB),
		collabs:     store.NewCollaborationStore(dbClient.DB),
		health:      map[string]handlers.Pinger{"postgres": dbClient},
		close:       dbClient.Close,
	}, nil
}
