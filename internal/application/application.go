// Package application assembles the API process from configuration: store,
// booking core, notification pipeline, rate limiter and HTTP server.
package application

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/ledwall/internal/config"
	"github.com/iliyamo/ledwall/internal/handler"
	"github.com/iliyamo/ledwall/internal/middleware"
	"github.com/iliyamo/ledwall/internal/notify"
	"github.com/iliyamo/ledwall/internal/queue"
	"github.com/iliyamo/ledwall/internal/repository"
	"github.com/iliyamo/ledwall/internal/router"
	"github.com/iliyamo/ledwall/internal/service"
)

// Options tune NewAPI beyond what the environment configures.
type Options struct {
	// Migrate applies schema migrations before serving.
	Migrate bool
	// WithWorker runs the notification consumer inside the API process
	// when the amqp transport is selected.
	WithWorker bool
}

// API is the HTTP application.
type API struct {
	cfg     config.Config
	opts    Options
	log     *zap.Logger
	echo    *echo.Echo
	store   repository.Store
	booking *service.Booking

	dispatcher *notify.Dispatcher
	publisher  *queue.Publisher
	rdb        *redis.Client
}

// NewAPI builds the application.  Nothing is started until Run.
func NewAPI(cfg config.Config, log *zap.Logger, opts Options) (*API, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	store, err := OpenStore(cfg, opts.Migrate || cfg.MigrateOnStart, log)
	if err != nil {
		return nil, err
	}
	a := &API{cfg: cfg, opts: opts, log: log, store: store}

	// Request paths only ever enqueue; the broker or SMTP relay is reached
	// from the dispatcher workers.
	var sender notify.Sender
	if cfg.Notify.Transport == config.TransportAMQP {
		a.publisher = queue.NewPublisher(cfg.Notify.AMQPURL, cfg.Notify.Queue, log)
		sender = a.publisher
	} else {
		sender = NewSender(cfg, log)
	}
	a.dispatcher = notify.NewDispatcher(sender, log, cfg.Notify.Buffer, cfg.Notify.Workers)

	a.booking, err = NewBooking(cfg, store, a.dispatcher, log)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	a.rdb = config.NewRedisClient(cfg.Redis)
	if a.rdb == nil && cfg.RateLimit.Enabled {
		log.Info("redis unavailable; rate limiting per process")
	}
	a.echo = a.newEcho()
	return a, nil
}

func (a *API) newEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.Use(echomw.RequestID())
	e.Use(echomw.Recover())
	e.Use(middleware.RequestLogger(a.log))

	auth := middleware.AdminAuthenticator{
		User:         a.cfg.Admin.User,
		PasswordHash: a.cfg.Admin.PasswordHash,
		Secret:       a.cfg.Admin.JWTSecret,
	}
	creds := handler.AdminCredentials{
		User:         a.cfg.Admin.User,
		PasswordHash: a.cfg.Admin.PasswordHash,
		JWTSecret:    a.cfg.Admin.JWTSecret,
		TokenTTL:     time.Duration(a.cfg.Admin.TokenTTLMin) * time.Minute,
	}
	router.Register(e, router.Handlers{
		Slots:  handler.NewSlotHandler(a.booking, a.log),
		Upload: handler.NewUploadHandler(a.booking, a.log),
		Admin:  handler.NewAdminHandler(a.booking, creds, a.log),
		Ready:  handler.Ready(a.booking.Ping),
	}, auth, middleware.NewTokenBucket(a.cfg.RateLimit, a.rdb, a.log))
	return e
}

// Handler exposes the HTTP handler, e.g. for httptest.
func (a *API) Handler() http.Handler { return a.echo }

// Booking exposes the booking core.
func (a *API) Booking() *service.Booking { return a.booking }

// Run starts the HTTP server and the background loops and blocks until ctx
// is cancelled; then it shuts everything down gracefully.
func (a *API) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if a.dispatcher != nil {
		a.dispatcher.Start()
	}
	var wg sync.WaitGroup
	if a.cfg.SweepInterval > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.booking.RunSweeper(ctx, a.cfg.SweepInterval)
		}()
	}
	if a.publisher != nil && a.opts.WithWorker {
		consumer := queue.NewConsumer(a.cfg.Notify.AMQPURL, a.cfg.Notify.Queue, NewSender(a.cfg, a.log), a.log)
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = consumer.Run(ctx)
		}()
	}

	srvErr := make(chan error, 1)
	go func() {
		a.log.Info("http server listening",
			zap.String("addr", a.cfg.Addr()),
			zap.String("env", a.cfg.Env),
			zap.String("store", a.cfg.StoreDriver),
			zap.String("notify", a.cfg.Notify.Transport))
		if err := a.echo.Start(a.cfg.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			srvErr <- err
		}
		close(srvErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case err, ok := <-srvErr:
		if ok {
			runErr = fmt.Errorf("http: %w", err)
		}
	}
	cancel()

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := a.echo.Shutdown(shutdownCtx); err != nil && runErr == nil {
		runErr = fmt.Errorf("http shutdown: %w", err)
	}
	wg.Wait()
	if err := a.Close(shutdownCtx); err != nil && runErr == nil {
		runErr = err
	}
	a.log.Info("shutdown complete")
	return runErr
}

// Close drains the notification pipeline and releases connections.
func (a *API) Close(ctx context.Context) error {
	var errs []error
	if a.dispatcher != nil {
		if err := a.dispatcher.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("notifications: %w", err))
		}
	}
	if a.publisher != nil {
		_ = a.publisher.Close()
	}
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
	if err := a.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("store: %w", err))
	}
	return errors.Join(errs...)
}
