package application

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/iliyamo/ledwall/internal/config"
	"github.com/iliyamo/ledwall/internal/database"
	"github.com/iliyamo/ledwall/internal/notify"
	"github.com/iliyamo/ledwall/internal/objectstore"
	"github.com/iliyamo/ledwall/internal/repository"
	"github.com/iliyamo/ledwall/internal/service"
)

// OpenStore returns the configured store.  For MySQL the schema is
// migrated first when migrate is set.
func OpenStore(cfg config.Config, migrate bool, log *zap.Logger) (repository.Store, error) {
	switch cfg.StoreDriver {
	case config.DriverMemory:
		log.Warn("using in-memory store; data is lost on exit")
		return repository.NewMemoryStore(), nil
	case config.DriverMySQL:
		if migrate {
			if err := database.MigrateUp(cfg.DB, log); err != nil {
				return nil, fmt.Errorf("migrate: %w", err)
			}
		}
		db, err := database.Open(cfg.DB)
		if err != nil {
			return nil, fmt.Errorf("database: %w", err)
		}
		return repository.NewMySQLStore(db), nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}

// NewSender returns the SMTP mailer when SMTP_HOST is set and a LogSender
// otherwise.  TransportLog always logs.
func NewSender(cfg config.Config, log *zap.Logger) notify.Sender {
	if cfg.Notify.Transport == config.TransportLog || cfg.SMTP.Host == "" {
		return notify.LogSender{Log: log}
	}
	return notify.NewMailer(cfg.SMTP)
}

// NewBooking wires the booking core.
func NewBooking(cfg config.Config, store repository.Store, notifier notify.Notifier, log *zap.Logger) (*service.Booking, error) {
	storage, err := objectstore.NewR2(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("object storage: %w", err)
	}
	return service.New(store, storage, notifier, log, cfg.Policy), nil
}

// discard is the notifier of one-shot commands that never notify.
var discard = notify.NotifierFunc(func(context.Context, notify.Message) {})

// Sweep releases expired reservations once and returns how many were
// released.  It backs the sweep command.
func Sweep(ctx context.Context, cfg config.Config, log *zap.Logger) (int, error) {
	store, err := OpenStore(cfg, false, log)
	if err != nil {
		return 0, err
	}
	defer store.Close()
	booking, err := NewBooking(cfg, store, discard, log)
	if err != nil {
		return 0, err
	}
	return booking.ReleaseExpired(ctx)
}
