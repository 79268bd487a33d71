package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/movie-ticket-booking/internal/config"
	"github.com/iliyamo/movie-ticket-booking/internal/database"
	"github.com/iliyamo/movie-ticket-booking/internal/handler"
	"github.com/iliyamo/movie-ticket-booking/internal/middleware"
	"github.com/iliyamo/movie-ticket-booking/internal/observability"
	"github.com/iliyamo/movie-ticket-booking/internal/queue"
	"github.com/iliyamo/movie-ticket-booking/internal/repository"
	"github.com/iliyamo/movie-ticket-booking/internal/router"
	"github.com/iliyamo/movie-ticket-booking/internal/service"
)

func main() {
	config.LoadDotEnv()
	cfg := config.Load()
	log := observability.NewLogger(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.WithError(err).Fatal("server stopped")
	}
}

func run(ctx context.Context, cfg config.Config, log *logrus.Logger) error {
	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		return errors.Wrap(err, "open database")
	}
	defer func() { _ = db.Close() }()
	if cfg.AutoMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			return errors.Wrap(err, "migrate")
		}
	}

	// Cache and rate limiting are disabled when Redis is unreachable.
	var rdb redis.UniversalClient
	if c := config.NewRedisClient(); c != nil {
		rdb = c
		defer func() { _ = c.Close() }()
	} else {
		log.Warn("redis unavailable; cache and rate limiting disabled")
	}

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	movies := repository.NewMovieRepo(db)
	theatres := repository.NewTheatreRepo(db)
	seats := repository.NewSeatRepo(db)
	shows := repository.NewShowRepo(db)
	showSeats := repository.NewShowSeatRepo(db)
	bookingRepo := repository.NewBookingRepo(db)
	tx := repository.NewTransactor(db)

	var events service.EventPublisher = service.NopPublisher{}
	if cfg.Events.Enabled {
		events = queue.NewPublisher(cfg.Events.URL, log)
		go func() {
			err := queue.NewConsumer(cfg.Events.URL, cfg.Events.ConsumerLog, log).Run(ctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				log.WithError(err).Error("booking consumer stopped")
			}
		}()
	}

	ledger := service.NewLedger(tx, showSeats, cfg.Booking.LockTTL, nil)
	bookings := service.NewBookings(service.BookingDeps{
		Tx:       tx,
		Ledger:   ledger,
		Seats:    showSeats,
		Bookings: bookingRepo,
		Shows:    shows,
		Users:    users,
		Events:   events,
		Log:      log,
	})
	scheduler := service.NewScheduler(tx, ledger, shows, movies, theatres, seats, log)
	catalog := service.NewCatalog(tx, ledger, shows, movies, theatres, seats, log)
	dashboard := service.NewDashboard(repository.NewDashboardRepo(db), bookingRepo)

	sweeper := service.NewSweeper(bookings, cfg.Booking.SweepInterval, cfg.Booking.SweepBatch, log)
	if err := sweeper.Start(ctx); err != nil {
		return errors.Wrap(err, "start sweeper")
	}
	defer sweeper.Stop()

	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewValidator()
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(log))
	e.Use(echomw.Recover())

	opts := router.Options{JWTSecret: cfg.JWTSecret}
	if rdb != nil {
		opts.RateLimit = middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, log)
		opts.Cache = middleware.NewRedisCache(config.LoadCacheConfig(), rdb, log)
	}
	router.Register(e, router.Handlers{
		Auth:      handler.NewAuthHandler(cfg, users, tokens, repository.NewPasswordResetRepo(db), log),
		Catalog:   handler.NewCatalogHandler(catalog, log),
		Shows:     handler.NewShowHandler(scheduler, ledger, log),
		Bookings:  handler.NewBookingHandler(bookings, ledger, log),
		Dashboard: handler.NewDashboardHandler(dashboard, log),
		Health:    handler.Health(db),
	}, opts)

	addr := ":" + cfg.Port
	errc := make(chan error, 1)
	go func() {
		log.WithFields(logrus.Fields{"addr": addr, "env": cfg.Env}).Info("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	log.Info("shutting down")
	return e.Shutdown(shutdownCtx)
}
