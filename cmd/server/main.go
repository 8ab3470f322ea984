package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/recovery"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"

	"dental-storefront/internal/api"
	"dental-storefront/internal/auth"
	"dental-storefront/internal/config"
	"dental-storefront/internal/logging"
	"dental-storefront/internal/store"
	"dental-storefront/internal/upload"
)

const (
	defaultAppName  = "DentalStorefront"
	shutdownTimeout = 30 * time.Second
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("INFO: No .env file found or failed to load, relying on system environment")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("FATAL: Error loading configuration: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.AppEnv, defaultAppName)
	if err != nil {
		log.Fatalf("FATAL: Error building logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("service exited with error", zap.Error(err))
	}
	logger.Info("service shutdown sequence finished")
}

func run(cfg *config.Config, logger *zap.Logger) error {
	logger.Info("starting service",
		zap.String("app_env", cfg.AppEnv), zap.String("store_driver", cfg.StoreDriver))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dataStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := dataStore.Close(); err != nil {
			logger.Warn("error closing store", zap.Error(err))
		}
	}()

	if cfg.Catalog.SeedCSV != "" {
		n, err := seedCatalog(ctx, dataStore, cfg.Catalog.SeedCSV, logger)
		if err != nil {
			return fmt.Errorf("seed catalog: %w", err)
		}
		logger.Info("catalog seed finished", zap.Int("imported", n), zap.String("file", cfg.Catalog.SeedCSV))
	}

	images, err := upload.NewDiskStore(cfg.Uploads.Dir, cfg.Uploads.MaxBytes)
	if err != nil {
		return err
	}
	authSvc := auth.NewService(dataStore, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	httpAPIHandler := api.NewHTTPHandler(dataStore, authSvc, images, cfg.Uploads.MaxBytes, logger)
	grpcAPIHandler := api.NewGRPCHandler(dataStore, logger)

	httpRouter := chi.NewRouter()
	setupBaseMiddleware(httpRouter, cfg.HttpServer, logger)
	httpAPIHandler.RegisterRoutes(httpRouter, images.Dir())

	httpServer := &http.Server{
		Addr:         ":" + cfg.HttpServer.Port,
		Handler:      httpRouter,
		ReadTimeout:  cfg.HttpServer.TimeoutRead,
		WriteTimeout: cfg.HttpServer.TimeoutWrite,
		IdleTimeout:  cfg.HttpServer.TimeoutIdle,
	}

	grpcServer := setupGRPCServer(grpcAPIHandler, logger)
	grpcListener, err := net.Listen("tcp", ":"+cfg.GrpcServer.Port)
	if err != nil {
		return fmt.Errorf("listen for gRPC on port %s: %w", cfg.GrpcServer.Port, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("HTTP server listening", zap.String("port", cfg.HttpServer.Port))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server: %w", err)
		}
		logger.Info("HTTP server has stopped")
		return nil
	})
	g.Go(func() error {
		logger.Info("gRPC server listening", zap.String("port", cfg.GrpcServer.Port))
		if err := grpcServer.Serve(grpcListener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("gRPC server: %w", err)
		}
		logger.Info("gRPC server has stopped")
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		waitForShutdown(logger, httpServer, grpcServer)
		return nil
	})
	return g.Wait()
}

func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (store.Store, error) {
	if cfg.StoreDriver == config.StoreDriverMemory {
		logger.Warn("using in-memory store, data is lost on restart")
		ms, err := store.NewMemoryStore()
		if err != nil {
			return nil, err
		}
		return ms, nil
	}

	db, err := sql.Open("postgres", cfg.Postgres.DSN())
	if err != nil {
		return nil, fmt.Errorf("initialize database connection: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	pgStore := store.NewPostgresStore(db, logger)
	if err := pgStore.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	logger.Info("database connection established", zap.String("host", cfg.Postgres.Host))
	return pgStore, nil
}

func setupBaseMiddleware(router *chi.Mux, cfg config.ServerConfig, logger *zap.Logger) {
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(logging.RequestLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))
	logger.Debug("base HTTP middleware registered")
}

func setupGRPCServer(grpcAPIHandler *api.GRPCHandler, logger *zap.Logger) *grpc.Server {
	s := grpc.NewServer(grpc.ChainUnaryInterceptor(
		unaryLogger(logger),
		recovery.UnaryServerInterceptor(recovery.WithRecoveryHandlerContext(recoverPanic(logger))),
	))

	grpcAPIHandler.Register(s)
	grpc_health_v1.RegisterHealthServer(s, health.NewServer())
	reflection.Register(s)
	logger.Debug("gRPC services registered", zap.String("service", api.CatalogServiceName))
	return s
}

func unaryLogger(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		logger.Info("grpc request",
			zap.String("method", info.FullMethod),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err))
		return resp, err
	}
}

// recoverPanic turns a handler panic into codes.Internal so one request
// cannot take the process down.
func recoverPanic(logger *zap.Logger) recovery.RecoveryHandlerFuncContext {
	return func(ctx context.Context, p any) error {
		logger.Error("grpc handler panicked", zap.Any("panic", p), zap.Stack("stack"))
		return status.Error(codes.Internal, "internal error")
	}
}

func waitForShutdown(logger *zap.Logger, httpServer *http.Server, grpcServer *grpc.Server) {
	logger.Info("starting graceful shutdown")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	stoppedGrpc := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(stoppedGrpc)
	}()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP server graceful shutdown failed", zap.Error(err))
	} else {
		logger.Info("HTTP server gracefully shut down")
	}

	select {
	case <-stoppedGrpc:
		logger.Info("gRPC server gracefully shut down")
	case <-shutdownCtx.Done():
		logger.Warn("gRPC server graceful shutdown timed out, forcing stop", zap.Error(shutdownCtx.Err()))
		grpcServer.Stop()
	}
}
