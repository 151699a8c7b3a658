package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	sagasqlite "github.com/jcmexdev/gamestore-orders/internal/coordinator/sagalog/sqlite"
	"github.com/jcmexdev/gamestore-orders/internal/order-service/adapters/httpclient"
	"github.com/jcmexdev/gamestore-orders/internal/order-service/adapters/httpx"
	"github.com/jcmexdev/gamestore-orders/internal/order-service/adapters/postgres"
	"github.com/jcmexdev/gamestore-orders/internal/order-service/adapters/sqlite"
	"github.com/jcmexdev/gamestore-orders/internal/order-service/app"
	"github.com/jcmexdev/gamestore-orders/internal/order-service/ports"
	"github.com/jcmexdev/gamestore-orders/internal/pkg/cache"
	"github.com/jcmexdev/gamestore-orders/internal/pkg/config"
	"github.com/jcmexdev/gamestore-orders/internal/pkg/interceptors"
	"github.com/jcmexdev/gamestore-orders/internal/pkg/locator"
	"github.com/jcmexdev/gamestore-orders/internal/pkg/telemetry"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		telemetry.InitLogger("info")
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	telemetry.InitLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("order service stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config) error {
	shutdownTracer, err := telemetry.SetupTracer(ctx, telemetry.TracerConfig{
		ServiceName: cfg.ServiceName,
		Endpoint:    cfg.OTelEndpoint,
		Enabled:     cfg.OTelEnabled,
	})
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(shutdownCtx); err != nil {
			slog.Error("tracer shutdown error", "error", err)
		}
	}()

	repo, closeRepo, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeRepo()

	if err := ensureDir(cfg.SagaLogPath); err != nil {
		return err
	}
	sagaLog, err := sagasqlite.Open(cfg.SagaLogPath)
	if err != nil {
		return err
	}
	defer sagaLog.Close()

	var idem cache.Cache
	if cfg.RedisAddr != "" {
		rc := cache.NewRedisCache(cfg.RedisAddr, "order")
		defer rc.Close()
		if err := rc.Ping(ctx); err != nil {
			// Idempotency degrades per call; the service still starts.
			slog.Warn("redis not reachable at startup", "addr", cfg.RedisAddr, "error", err)
		}
		idem = rc
	}

	loc := locator.New(locator.NewHTTPClient(cfg.ConnectTimeout, cfg.ResponseTimeout), cfg.Services...)
	svc := app.NewService(repo, app.Collaborators{
		Catalog:   httpclient.NewCatalogClient(loc),
		Identity:  httpclient.NewIdentityClient(loc),
		Licensing: httpclient.NewLicensingClient(loc),
		Library:   httpclient.NewLibraryClient(loc),
		Reviews:   httpclient.NewReviewsClient(loc),
	}, sagaLog, idem, app.Options{
		TaxRate:            &cfg.TaxRate,
		PricingConcurrency: cfg.PricingConcurrency,
		SummaryConcurrency: cfg.SummaryConcurrency,
		IdempotencyTTL:     cfg.IdempotencyTTL,
	})

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           httpx.NewRouter(httpx.NewHandler(svc)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	grpcServer := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.UnaryInterceptor(interceptors.TraceServerInterceptor()),
	)
	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthSrv)

	grpcAddr := ":" + cfg.GRPCPort
	lis, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", grpcAddr, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("order service HTTP running", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		slog.Info("order service gRPC ops running", "addr", grpcAddr)
		return grpcServer.Serve(lis)
	})
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down")
		healthSrv.Shutdown()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := httpServer.Shutdown(shutdownCtx)
		grpcServer.GracefulStop()
		return err
	})

	return g.Wait()
}

// openStore picks the pgx store for postgres URLs and SQLite otherwise.
func openStore(ctx context.Context, cfg config.Config) (ports.OrderRepository, func(), error) {
	if cfg.UsesPostgres() {
		repo, err := postgres.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err := repo.Migrate(ctx); err != nil {
			repo.Close()
			return nil, nil, err
		}
		slog.Info("using postgres order store")
		return repo, repo.Close, nil
	}

	if err := ensureDir(cfg.DatabaseURL); err != nil {
		return nil, nil, err
	}
	repo, err := sqlite.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	slog.Info("using sqlite order store", "path", cfg.DatabaseURL)
	return repo, func() { _ = repo.Close() }, nil
}

func ensureDir(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create directory for %s: %w", path, err)
	}
	return nil
}
