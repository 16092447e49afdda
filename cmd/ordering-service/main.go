package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/jcmexdev/food-ordering/internal/app/cart"
	"github.com/jcmexdev/food-ordering/internal/app/order"
	"github.com/jcmexdev/food-ordering/internal/app/payment"
	"github.com/jcmexdev/food-ordering/internal/config"
	"github.com/jcmexdev/food-ordering/internal/coordinator/sagalog/sqlite"
	"github.com/jcmexdev/food-ordering/internal/core/ports"
	"github.com/jcmexdev/food-ordering/internal/infra/gateway/mockpg"
	"github.com/jcmexdev/food-ordering/internal/infra/httpx"
	"github.com/jcmexdev/food-ordering/internal/infra/messaging"
	"github.com/jcmexdev/food-ordering/internal/infra/storage/sqlstore"
	"github.com/jcmexdev/food-ordering/internal/pkg/auth"
	"github.com/jcmexdev/food-ordering/internal/pkg/cache"
	"github.com/jcmexdev/food-ordering/internal/pkg/interceptors"
	"github.com/jcmexdev/food-ordering/internal/pkg/keylock"
	"github.com/jcmexdev/food-ordering/internal/pkg/telemetry"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		slog.Error("ordering service stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		telemetry.InitLogger("info")
		return err
	}
	telemetry.InitLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdown, err := telemetry.SetupTracer(ctx, cfg.OTelServiceName, cfg.OTelEndpoint)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			slog.Error("tracer shutdown error", "error", err)
		}
	}()

	store, err := sqlstore.Open(ctx, cfg.DB.Driver, cfg.DB.DSN)
	if err != nil {
		return err
	}
	defer store.Close()

	catalog := store.Catalog()
	if cfg.SeedDemoData {
		if err := sqlstore.Seed(ctx, catalog); err != nil {
			return err
		}
		slog.Info("demo catalog seeded")
	}

	journal, err := sqlite.Open(cfg.DB.JournalPath)
	if err != nil {
		return err
	}
	defer journal.Close()

	publisher := connectBroker(ctx, cfg.AMQPURL)
	if closer, ok := publisher.(interface{ Close() error }); ok {
		defer closer.Close()
	}
	idempotency := connectCache(ctx, cfg.RedisAddr)

	gateway := mockpg.New(mockpg.Config{
		MinLatency:    cfg.MockPG.MinLatency,
		MaxLatency:    cfg.MockPG.MaxLatency,
		DeclinePrefix: cfg.MockPG.DeclinePrefix,
	})

	carts := cart.NewService(store, catalog, catalog, keylock.New())
	orders := order.NewService(store, catalog, carts, publisher)
	payments := payment.NewService(store, catalog, gateway, journal, publisher, payment.Config{
		GatewayTimeout: cfg.Payment.GatewayTimeout,
		AllowRetry:     cfg.Payment.AllowRetry,
	})

	router := httpx.NewRouter(httpx.NewHandler(carts, orders, payments), httpx.RouterOptions{
		Verifier: auth.NewVerifier(cfg.JWTSecret),
		Cache:    idempotency,
		Ready:    store.DB().PingContext,
	})
	httpServer := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcServer := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.UnaryInterceptor(interceptors.UnaryServerInterceptor()),
	)
	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthSrv)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("ordering service HTTP running", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		addr := ":" + cfg.GRPCPort
		lis, err := net.Listen("tcp", addr)
		if err != nil {
			return err
		}
		healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
		slog.Info("ordering service gRPC health running", "addr", addr)
		if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return payments.RunReconciler(gctx, payment.ReconcilerConfig{
			Interval:   cfg.Reconcile.Interval,
			StaleAfter: cfg.Reconcile.StaleAfter,
			BatchSize:  cfg.Reconcile.BatchSize,
		})
	})

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

// connectBroker falls back to logging events when no broker is configured or
// reachable.
func connectBroker(ctx context.Context, url string) ports.EventPublisher {
	if url == "" {
		slog.Info("AMQP_URL not set, events are only logged")
		return messaging.LogPublisher{}
	}
	p, err := messaging.Dial(ctx, url)
	if err != nil {
		slog.Warn("rabbitmq unavailable, events are only logged", "error", err)
		return messaging.LogPublisher{}
	}
	return p
}

func connectCache(ctx context.Context, addr string) cache.Cache {
	if addr == "" {
		return cache.NewMemoryCache("ordering")
	}
	c := cache.NewRedisCache(addr, "ordering")
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := cache.Ping(pingCtx, c); err != nil {
		slog.Warn("redis unavailable, idempotency keys kept in memory", "addr", addr, "error", err)
		return cache.NewMemoryCache("ordering")
	}
	return c
}
