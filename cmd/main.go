package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"storefront-catalog-service/internal/api"
	"storefront-catalog-service/internal/auth"
	"storefront-catalog-service/internal/catalog"
	"storefront-catalog-service/internal/config"
	"storefront-catalog-service/internal/domain"
	"storefront-catalog-service/internal/i18n"
	"storefront-catalog-service/internal/logger"
	"storefront-catalog-service/internal/media"
	"storefront-catalog-service/internal/prefs"
	"storefront-catalog-service/internal/store"
)

func main() {
	if err := godotenv.Load(); err != nil {
		// The application can still proceed if environment variables are set in other ways.
		log.Println("INFO: .env file not found or error loading, relying on system environment variables.")
	}

	// --- Configuration Loading ---
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("FATAL: Error loading configuration: %v", err)
	}

	flush, err := logger.Initialize(cfg.AppEnv, cfg.LogLevel)
	if err != nil {
		log.Fatalf("FATAL: Error initializing logger: %v", err)
	}
	defer flush()
	zap.L().Info("Starting service",
		zap.String("env", cfg.AppEnv), zap.String("logLevel", cfg.LogLevel), zap.String("store", cfg.Store.Backend))

	ctx := context.Background()

	// --- Store Connection ---
	gateway, err := openStore(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize store", zap.Error(err))
	}

	// --- Image Storage ---
	s3Opts := media.S3Options{
		Region:          cfg.Storage.Region,
		Endpoint:        cfg.Storage.Endpoint,
		AccessKeyID:     cfg.Storage.AccessKeyID,
		SecretAccessKey: cfg.Storage.SecretAccessKey,
		Bucket:          cfg.Storage.Bucket,
		Prefix:          cfg.Storage.Prefix,
		CDNDomain:       cfg.Storage.CDNDomain,
	}
	s3Client, err := media.NewS3Client(ctx, s3Opts)
	if err != nil {
		zap.L().Fatal("Failed to initialize S3 client", zap.Error(err))
	}
	uploader := media.NewS3Uploader(s3Client, s3Opts)

	// --- Preferences ---
	var localeStore prefs.LocaleStore = prefs.NewMemoryLocaleStore()
	var redisClient *redis.Client
	if cfg.Redis.URL != "" {
		redisClient, err = prefs.Config{
			URL:          cfg.Redis.URL,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
			DialTimeout:  cfg.Redis.DialTimeout,
		}.NewClient(ctx)
		if err != nil {
			zap.L().Fatal("Failed to connect to redis", zap.Error(err))
		}
		localeStore = prefs.NewRedisLocaleStore(redisClient, cfg.Redis.PrefTTL)
		zap.L().Info("Locale preferences stored in redis")
	}

	translator, err := i18n.New()
	if err != nil {
		zap.L().Fatal("Failed to load translations", zap.Error(err))
	}

	// --- Catalog ---
	products := catalog.NewCollection()
	catalogSvc := catalog.NewService(gateway, uploader, products)
	editor := catalog.NewEditor(gateway, uploader, products)
	if err := catalogSvc.Load(ctx); err != nil {
		zap.L().Fatal("Failed to load catalog", zap.Error(err))
	}
	zap.L().Info("Catalog loaded", zap.Int("products", products.Len()), zap.Int("categories", len(catalogSvc.Categories())))

	sched := cron.New()
	if cfg.Catalog.RefreshInterval > 0 {
		if _, err := catalogSvc.ScheduleReload(sched, cfg.Catalog.RefreshInterval); err != nil {
			zap.L().Fatal("Failed to schedule catalog reload", zap.Error(err))
		}
	}
	sched.Start()

	// --- Auth ---
	authenticator := auth.NewAuthenticator(gateway, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if cfg.Auth.AdminEmail != "" {
		if err := authenticator.EnsureAdmin(ctx, cfg.Auth.AdminEmail, cfg.Auth.AdminPassword); err != nil {
			zap.L().Fatal("Failed to provision admin account", zap.Error(err))
		}
	}

	// --- Initialize API Handlers ---
	contact := api.ContactInfo{
		WhatsAppPhone: cfg.Contact.WhatsAppPhone,
		Phone:         cfg.Contact.Phone,
		Email:         cfg.Contact.Email,
		PublicBaseURL: cfg.Contact.PublicBaseURL,
	}
	defaultLocale := domain.ParseLocale(cfg.Catalog.DefaultLocale)
	httpAPIHandler := api.NewHTTPHandler(api.Deps{
		Catalog:       catalogSvc,
		Editor:        editor,
		Auth:          authenticator,
		Translator:    translator,
		Prefs:         localeStore,
		Contact:       contact,
		DefaultLocale: defaultLocale,
		MaxUploadMB:   cfg.HttpServer.MaxUploadMB,
		Health:        gateway.Ping,
	})
	grpcAPIHandler := api.NewGRPCHandler(catalogSvc, translator, contact, defaultLocale)

	// --- Setup & Start HTTP Server ---
	httpRouter := chi.NewRouter()
	api.SetupBaseMiddleware(httpRouter, 60*time.Second)
	httpAPIHandler.RegisterRoutes(httpRouter)

	httpServer := &http.Server{
		Addr:         ":" + cfg.HttpServer.Port,
		Handler:      httpRouter,
		ReadTimeout:  cfg.HttpServer.TimeoutRead,
		WriteTimeout: cfg.HttpServer.TimeoutWrite,
		IdleTimeout:  cfg.HttpServer.TimeoutIdle,
	}

	go func() {
		zap.L().Info("HTTP server listening", zap.String("port", cfg.HttpServer.Port))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zap.L().Fatal("HTTP server ListenAndServe error", zap.Error(err))
		}
		zap.L().Info("HTTP server has stopped")
	}()

	// --- Setup & Start gRPC Server ---
	grpcServer := setupGRPCServer(grpcAPIHandler)
	grpcListener, err := net.Listen("tcp", ":"+cfg.GrpcServer.Port)
	if err != nil {
		zap.L().Fatal("Failed to listen for gRPC", zap.String("port", cfg.GrpcServer.Port), zap.Error(err))
	}

	go func() {
		zap.L().Info("gRPC server listening", zap.String("port", cfg.GrpcServer.Port))
		if err := grpcServer.Serve(grpcListener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			zap.L().Fatal("gRPC server Serve error", zap.Error(err))
		}
		zap.L().Info("gRPC server has stopped")
	}()

	// --- Graceful Shutdown ---
	shutdownComplete := make(chan struct{})
	go waitForShutdown(httpServer, grpcServer, sched, gateway, redisClient, shutdownComplete)

	<-shutdownComplete
	zap.L().Info("Service shutdown sequence finished")
}

// openStore connects the configured backend and checks it is reachable.
func openStore(ctx context.Context, cfg *config.Config) (store.Gateway, error) {
	switch cfg.Store.Backend {
	case config.BackendPostgres:
		db, err := sql.Open("postgres", cfg.Postgres.DSN())
		if err != nil {
			return nil, err
		}
		pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := db.PingContext(pingCtx); err != nil {
			_ = db.Close()
			return nil, err
		}
		pgStore := store.NewPostgresStore(db)
		if err := pgStore.EnsureSchema(ctx); err != nil {
			_ = pgStore.Close()
			return nil, err
		}
		zap.L().Info("PostgreSQL connection established")
		return pgStore, nil
	default:
		mongoStore, err := store.ConnectMongo(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
		if err != nil {
			return nil, err
		}
		if err := mongoStore.EnsureIndexes(ctx); err != nil {
			_ = mongoStore.Close()
			return nil, err
		}
		zap.L().Info("MongoDB connection established", zap.String("database", cfg.Mongo.Database))
		return mongoStore, nil
	}
}

func setupGRPCServer(grpcAPIHandler *api.GRPCHandler) *grpc.Server {
	s := grpc.NewServer(grpc.ChainUnaryInterceptor(
		api.RecoveryUnaryInterceptor,
		api.LoggingUnaryInterceptor,
	))

	api.RegisterCatalogServer(s, grpcAPIHandler)
	zap.L().Info("Catalog gRPC service registered", zap.String("service", api.CatalogServiceName))

	// Register gRPC Health Checking Protocol service.
	grpc_health_v1.RegisterHealthServer(s, health.NewServer())

	// Enable gRPC server reflection (useful for tools like grpcurl).
	reflection.Register(s)

	return s
}

func waitForShutdown(
	httpServer *http.Server,
	grpcServer *grpc.Server,
	sched *cron.Cron,
	gateway store.Gateway,
	redisClient *redis.Client,
	shutdownComplete chan struct{},
) {
	defer close(shutdownComplete)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	receivedSignal := <-sigChan
	zap.L().Info("Received signal, starting graceful shutdown", zap.String("signal", receivedSignal.String()))

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	// Wait for a running reload to finish before the store goes away.
	<-sched.Stop().Done()

	stoppedGrpc := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(stoppedGrpc)
	}()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zap.L().Warn("HTTP server graceful shutdown failed", zap.Error(err))
	} else {
		zap.L().Info("HTTP server gracefully shut down")
	}

	select {
	case <-stoppedGrpc:
		zap.L().Info("gRPC server gracefully shut down")
	case <-shutdownCtx.Done():
		zap.L().Warn("gRPC server graceful shutdown timed out, forcing stop", zap.Error(shutdownCtx.Err()))
		grpcServer.Stop()
	}

	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			zap.L().Warn("Error closing redis client", zap.Error(err))
		}
	}
	if err := gateway.Close(); err != nil {
		zap.L().Warn("Error closing store", zap.Error(err))
	}

	zap.L().Info("Graceful shutdown sequence completed")
}
