package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"stagebook/internal/config"
	"stagebook/internal/database"
	"stagebook/internal/modules/booking"
	"stagebook/internal/modules/payment"
	"stagebook/internal/notification"
	jwtsvc "stagebook/internal/pkg/jwt"
	"stagebook/internal/pkg/lock"
	"stagebook/internal/platform/otel"
	"stagebook/internal/repository"
	"stagebook/internal/scheduler"
)

const lockPrefix = "stagebook:lock:"

type App struct {
	cfg *config.Config

	db     *gorm.DB
	rdb    *redis.Client
	hub    *notification.Hub
	amqp   *notification.AMQPPublisher
	tracer func(context.Context) error

	Ledger    *repository.BookingLedger
	Bookings  *booking.Service
	Refunds   *payment.RefundProcessor
	Scheduler *scheduler.Scheduler
	Tokens    *jwtsvc.Service
	Router    http.Handler

	httpServer *http.Server
}

// New wires every component from cfg. The caller owns Close.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{cfg: cfg}

	shutdown, err := otel.Setup(ctx, cfg.OTel.ServiceName, cfg.OTel.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}
	a.tracer = shutdown

	if err := a.initDB(); err != nil {
		_ = a.Close(ctx)
		return nil, fmt.Errorf("init db: %w", err)
	}
	if err := a.initServices(ctx); err != nil {
		_ = a.Close(ctx)
		return nil, fmt.Errorf("init services: %w", err)
	}
	return a, nil
}

func (a *App) initDB() error {
	db, err := database.Connect(a.cfg.Database.URL, database.Options{
		MaxOpenConns:    a.cfg.Database.MaxOpenConns,
		MaxIdleConns:    a.cfg.Database.MaxIdleConns,
		ConnMaxLifetime: a.cfg.Database.ConnMaxLifetime,
		Silent:          a.cfg.IsProdLike(),
	})
	if err != nil {
		return err
	}
	a.db = db

	if err := repository.AutoMigrate(db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	log.Printf("level=info msg=database_ready postgres=%t", database.IsPostgres(a.cfg.Database.URL))
	return nil
}

func (a *App) initServices(ctx context.Context) error {
	a.Ledger = repository.NewBookingLedger(a.db)

	locker, err := a.newLocker(ctx)
	if err != nil {
		return err
	}
	gateway := a.newGateway()

	rates, err := a.cfg.RateTable()
	if err != nil {
		return err
	}
	loc, err := a.cfg.Location()
	if err != nil {
		return err
	}
	machine := booking.NewMachine(booking.Policy{
		Rates:              rates,
		Refunds:            a.cfg.RefundPolicy(),
		FinalPaymentWindow: a.cfg.Booking.FinalPaymentWindow,
		Location:           loc,
	})
	guard := booking.NewGuard(locker, a.Ledger, a.cfg.Guard.LockWait)

	a.hub = notification.NewHub()
	publishers := []notification.Publisher{a.hub}
	if a.cfg.AMQP.URL != "" {
		a.amqp = notification.NewAMQPPublisher(a.cfg.AMQP.URL, a.cfg.AMQP.Queue, a.cfg.AMQP.Buffer)
		publishers = append(publishers, a.amqp)
	}

	a.Bookings = booking.NewService(a.Ledger, machine, guard, gateway, notification.NewFanout(publishers...), log.Printf)
	a.Refunds = payment.NewRefundProcessor(a.Ledger, gateway, payment.RefundConfig{
		BatchSize:   a.cfg.Scheduler.BatchSize,
		Lease:       a.cfg.Scheduler.RefundLease,
		MaxAttempts: a.cfg.Scheduler.RefundMaxAttempts,
	}, log.Printf)
	a.Scheduler = scheduler.New(a.Bookings, a.Refunds, scheduler.Config{
		CompletionInterval: a.cfg.Scheduler.CompletionInterval,
		RefundInterval:     a.cfg.Scheduler.RefundInterval,
		BatchSize:          a.cfg.Scheduler.BatchSize,
	}, log.Printf)

	a.Tokens = jwtsvc.New(a.cfg.JWT.Secret, a.cfg.JWT.TTL, a.cfg.JWT.Issuer)
	a.Router = a.newRouter()

	a.httpServer = &http.Server{
		Addr:         a.cfg.HTTP.Addr,
		Handler:      a.Router,
		ReadTimeout:  a.cfg.HTTP.ReadTimeout,
		WriteTimeout: a.cfg.HTTP.WriteTimeout,
	}
	return nil
}

func (a *App) newLocker(ctx context.Context) (lock.Locker, error) {
	if a.cfg.Guard.LockBackend != "redis" {
		return lock.NewKeyedMutex(), nil
	}
	rdb, err := lock.NewRedisClient(ctx, a.cfg.Redis.Addr, a.cfg.Redis.Password, a.cfg.Redis.DB)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	a.rdb = rdb
	return lock.NewRedisLocker(rdb, lockPrefix, a.cfg.Guard.LockTTL), nil
}

func (a *App) newGateway() payment.Gateway {
	var next payment.Gateway
	switch a.cfg.Gateway.Kind {
	case "http":
		next = payment.NewHTTPGateway(a.cfg.Gateway.BaseURL, a.cfg.Gateway.APIKey, &http.Client{})
	default:
		log.Printf("level=warn msg=sandbox_gateway_in_use")
		next = payment.NewSandboxGateway()
	}
	return payment.NewBounded(next, a.cfg.Gateway.Timeout)
}

// Run serves HTTP and the background loops until ctx is cancelled or a
// termination signal arrives, then shuts everything down.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	if a.amqp != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.amqp.Run(ctx)
		}()
	}
	if a.cfg.Scheduler.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.Scheduler.Start(ctx)
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("level=info msg=http_server_starting addr=%s", a.httpServer.Addr)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		log.Printf("level=info msg=shutdown_signal_received")
	case runErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		runErr = errors.Join(runErr, fmt.Errorf("http server shutdown: %w", err))
	}
	stop()
	wg.Wait()

	return errors.Join(runErr, a.Close(shutdownCtx))
}

// Close releases connections. It is safe on a partially built App.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.hub != nil {
		a.hub.Close()
	}
	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	if a.db != nil {
		if sqlDB, err := a.db.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close db: %w", err))
			}
		}
	}
	if a.tracer != nil {
		if err := a.tracer(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown tracing: %w", err))
		}
	}
	log.Printf("level=info msg=app_stopped")
	return errors.Join(errs...)
}
