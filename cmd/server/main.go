package main // Entry point package

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/iliyamo/concert-seat-reservation/internal/clock"
	"github.com/iliyamo/concert-seat-reservation/internal/config"
	"github.com/iliyamo/concert-seat-reservation/internal/database"
	"github.com/iliyamo/concert-seat-reservation/internal/handler"
	"github.com/iliyamo/concert-seat-reservation/internal/hold"
	"github.com/iliyamo/concert-seat-reservation/internal/inventory"
	"github.com/iliyamo/concert-seat-reservation/internal/middleware"
	"github.com/iliyamo/concert-seat-reservation/internal/queue"
	"github.com/iliyamo/concert-seat-reservation/internal/reclaim"
	"github.com/iliyamo/concert-seat-reservation/internal/repository"
	"github.com/iliyamo/concert-seat-reservation/internal/router"
	"github.com/iliyamo/concert-seat-reservation/internal/seed"
	"github.com/iliyamo/concert-seat-reservation/internal/service"
)

// stores groups the persistence ports for whichever driver is active.
type stores struct {
	concerts     service.Concerts
	reservations service.Reservations
	seats        inventory.SeatSource
	records      inventory.ReservationStore
	db           *sql.DB
}

func main() {
	cfg, err := config.Load() // Load environment config
	if err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger := middleware.NewLogger(os.Stdout, cfg.Log.Level, cfg.Production())
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open store", slog.String("driver", cfg.StoreDriver), slog.String("error", err.Error()))
		os.Exit(1)
	}
	if st.db != nil {
		defer st.db.Close()
	}

	clk := clock.NewRealClock()
	inv := inventory.New(st.seats, st.records, clk, logger)
	holds := hold.NewManager(inv, clk, cfg.Reservation.HoldTTL, logger)

	var publisher service.EventPublisher = service.NopPublisher{}
	if cfg.Events.Enabled {
		publisher = service.NewAMQPPublisher(cfg.Events.RabbitMQURL, logger)
	}
	coord := service.NewCoordinator(service.Deps{
		Concerts:     st.concerts,
		Reservations: st.reservations,
		Seats:        inv,
		Holds:        holds,
		Publisher:    publisher,
		Clock:        clk,
		Logger:       logger,
		MaxSeats:     cfg.Reservation.MaxSeats,
	})

	go reclaim.New(inv, holds, clk, cfg.Reservation.ReclaimInterval, logger).Run(ctx)

	if cfg.Events.Enabled && cfg.Events.ConsumerEnabled {
		consumer := queue.NewConsumer(cfg.Events.RabbitMQURL, queue.NewAuditLog(cfg.Events.AuditLogPath), logger)
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("audit consumer stopped", slog.String("error", err.Error()))
			}
		}()
	}

	rdb := config.NewRedisClient(cfg.Redis)
	if rdb == nil && cfg.RateLimit.Enabled {
		logger.Warn("redis unavailable, rate limiting disabled", slog.String("addr", cfg.Redis.Address()))
	}
	if rdb != nil {
		defer rdb.Close()
	}

	deps := router.Deps{
		Coord:     coord,
		Logger:    logger,
		JWTSecret: cfg.JWT.Secret,
		Limiter:   middleware.NewTokenBucket(cfg.RateLimit, rdb, logger),
	}
	if st.db != nil {
		deps.DB = handler.Pinger(st.db)
	}
	e := router.New(deps)

	addr := ":" + cfg.Port // Address string with port
	go func() {
		logger.Info("listening",
			slog.String("addr", addr),
			slog.String("env", cfg.Env),
			slog.String("store", cfg.StoreDriver),
			slog.Duration("hold_ttl", holds.TTL()),
		)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", slog.String("error", err.Error()))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.String("error", err.Error()))
	}
	coord.Wait()
}

func openStores(ctx context.Context, cfg config.Config, logger *slog.Logger) (stores, error) {
	if cfg.StoreDriver == config.StoreMemory {
		mem := repository.NewMemoryStore()
		f, err := seed.Load(cfg.SeedFile)
		if err != nil {
			return stores{}, err
		}
		n := f.Apply(mem)
		logger.Info("seeded memory store",
			slog.String("file", cfg.SeedFile),
			slog.Int("concerts", len(f.Concerts)),
			slog.Int("seats", n),
		)
		return stores{concerts: mem, reservations: mem, seats: mem, records: mem}, nil
	}

	db, err := database.Open(ctx, cfg.DB)
	if err != nil {
		return stores{}, err
	}
	res := repository.NewReservationRepo(db)
	return stores{
		concerts:     repository.NewConcertRepo(db),
		reservations: res,
		seats:        repository.NewSeatRepo(db),
		records:      res,
		db:           db,
	}, nil
}
