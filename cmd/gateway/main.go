package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/akylbek/payment-system/sunny-gateway/internal/api"
	"github.com/akylbek/payment-system/sunny-gateway/internal/config"
	"github.com/akylbek/payment-system/sunny-gateway/internal/events"
	"github.com/akylbek/payment-system/sunny-gateway/internal/interfaces"
	"github.com/akylbek/payment-system/sunny-gateway/internal/middleware"
	"github.com/akylbek/payment-system/sunny-gateway/internal/preferences"
	"github.com/akylbek/payment-system/sunny-gateway/internal/repository"
	"github.com/akylbek/payment-system/sunny-gateway/internal/sandbox"
	"github.com/akylbek/payment-system/sunny-gateway/internal/telemetry"
)

func main() {
	// Initialize telemetry
	if err := telemetry.InitTelemetry("sunny-gateway"); err != nil {
		panic(fmt.Sprintf("Failed to initialize telemetry: %v", err))
	}
	defer telemetry.Shutdown(context.Background())

	cfg := config.Load()
	telemetry.Logger.Info("Starting Sunny gateway", zap.String("environment", cfg.Environment))

	repo, closeDB := openRepository(cfg)
	defer closeDB()

	var (
		cache interfaces.ResponseCache   = middleware.NewMemoryCache()
		prefs interfaces.PreferenceStore = preferences.NewMemoryStore()
	)
	if cfg.RedisURL != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisURL})
		defer redisClient.Close()
		cache = middleware.NewRedisCache(redisClient)
		prefs = preferences.NewRedisStore(redisClient)
		telemetry.Logger.Info("Using Redis for idempotency and preferences", zap.String("addr", cfg.RedisURL))
	}

	publisher := openPublisher(cfg)
	defer publisher.Close()

	sim := sandbox.New(repo, publisher, cfg.Sandbox)

	gin.SetMode(gin.ReleaseMode)
	r := api.NewRouter(api.Dependencies{
		Backend:     sim,
		Preferences: prefs,
		Cache:       cache,
		APIKeys:     cfg.APIKeys,
		Environment: cfg.Environment,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		telemetry.Logger.Info("Sunny gateway starting", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		telemetry.Logger.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		telemetry.Logger.Error("Server stopped with error", zap.Error(err))
		return
	}
	telemetry.Logger.Info("Server exited")
}

// openRepository connects to Postgres when DATABASE_URL is set and falls back
// to the in-memory store otherwise.
func openRepository(cfg *config.Config) (interfaces.PaymentRepository, func()) {
	if cfg.DatabaseURL == "" {
		telemetry.Logger.Info("DATABASE_URL not set, keeping payments in memory")
		return repository.NewMemoryPaymentRepository(), func() {}
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		telemetry.Logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	repo := repository.NewPaymentRepository(db)
	if err := repo.InitDB(); err != nil {
		telemetry.Logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	return repo, func() { db.Close() }
}

// openPublisher fans events out to every configured broker. Broker failures
// are logged, never returned to the request path.
func openPublisher(cfg *config.Config) interfaces.EventPublisher {
	var multi events.Multi
	if len(cfg.KafkaBrokers) > 0 {
		multi = append(multi, events.NewKafkaPublisher(cfg.KafkaBrokers...))
		telemetry.Logger.Info("Publishing payment events to Kafka", zap.Strings("brokers", cfg.KafkaBrokers))
	}
	if cfg.NATSURL != "" {
		conn, err := nats.Connect(cfg.NATSURL)
		if err != nil {
			telemetry.Logger.Error("Failed to connect to NATS, terminal notifications disabled", zap.Error(err))
		} else {
			multi = append(multi, events.NewNATSPublisher(conn))
			telemetry.Logger.Info("Publishing terminal notifications to NATS", zap.String("url", cfg.NATSURL))
		}
	}
	if len(multi) == 0 {
		return events.Nop{}
	}
	return events.Logged{Next: multi}
}
