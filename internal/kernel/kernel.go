// Package kernel wires the storefront's long-lived collaborators from
// config: the database, the change broker, the data source, the refresh
// pool and the services built on them.
//
// Both the HTTP server and the CLI boot through here so they share one
// picture of the running system.
package kernel

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/tommyfx/storefront/app/repositories"
	"github.com/tommyfx/storefront/app/services"
	"github.com/tommyfx/storefront/config"
	"github.com/tommyfx/storefront/pkg/database"
	"github.com/tommyfx/storefront/pkg/datastore"
	"github.com/tommyfx/storefront/pkg/livequery"
	"github.com/tommyfx/storefront/pkg/logger"
	"github.com/tommyfx/storefront/pkg/migration"
	"github.com/tommyfx/storefront/pkg/notification"
	"github.com/tommyfx/storefront/pkg/realtime"
	"github.com/tommyfx/storefront/pkg/workerpool"
)

// Kernel holds everything built at boot. Close releases it in reverse
// order.
type Kernel struct {
	DB     *gorm.DB
	Broker realtime.Broker
	Store  *datastore.GormStore
	Pool   *workerpool.Pool

	Auth         *services.Auth
	Moderation   *services.Moderation
	Testimonials *services.Testimonials
	Profile      *services.Profile

	closers []func() error
}

// Options tune Boot.
type Options struct {
	// Migrate applies pending migrations before anything else runs.
	Migrate bool
}

// Boot loads config and builds the kernel. On error everything opened so
// far is released.
func Boot(ctx context.Context, opts Options) (*Kernel, error) {
	if err := config.Load(); err != nil {
		return nil, err
	}

	k := &Kernel{}
	if err := k.boot(ctx, opts); err != nil {
		_ = k.Close()
		return nil, err
	}
	return k, nil
}

func (k *Kernel) boot(ctx context.Context, opts Options) error {
	db, err := database.Connect(ctx, config.DatabaseDriver(), config.DatabaseDSN())
	if err != nil {
		return err
	}
	k.DB = db
	k.closers = append(k.closers, func() error { return database.Close(db) })
	logger.Info("kernel: database connected", "driver", config.DatabaseDriver())

	if opts.Migrate {
		ran, err := migration.New(db).Run(ctx)
		if err != nil {
			return fmt.Errorf("kernel: migrate: %w", err)
		}
		if len(ran) > 0 {
			logger.Info("kernel: migrations applied", "count", len(ran))
		}
	}

	if err := k.openBroker(ctx); err != nil {
		return err
	}

	k.Store = datastore.NewGormStore(db, k.Broker)
	k.Pool = workerpool.New(config.RefreshWorkers())
	k.closers = append(k.closers, func() error { k.Pool.Shutdown(); return nil })

	deps := services.Deps{
		Store:    k.Store,
		Broker:   k.Broker,
		Notifier: Notifier(),
		Pool:     k.Pool,
		Policy:   livequery.ParsePolicy(config.MutationPolicy()),
	}
	k.Auth = services.NewAuth(repositories.NewProfileRepository(db))
	k.Moderation = services.NewModeration(deps)
	k.Testimonials = services.NewTestimonials(deps, config.TestimonialLimit())
	k.Profile = services.NewProfile(deps)

	logger.Info("kernel: booted",
		"realtime", config.RealtimeDriver(),
		"policy", deps.Policy.String(),
		"workers", config.RefreshWorkers(),
	)
	return nil
}

func (k *Kernel) openBroker(ctx context.Context) error {
	if config.RealtimeDriver() != "redis" {
		b := realtime.NewMemoryBroker()
		k.Broker = b
		k.closers = append(k.closers, b.Close)
		return nil
	}

	rdb, err := realtime.Dial(ctx, config.RedisAddr(), config.RedisPassword())
	if err != nil {
		return err
	}
	k.closers = append(k.closers, rdb.Close)

	b, err := realtime.NewRedisBroker(ctx, rdb, config.RealtimePrefix())
	if err != nil {
		return err
	}
	k.Broker = b
	k.closers = append(k.closers, b.Close)
	logger.Info("kernel: redis broker subscribed", "addr", config.RedisAddr(), "prefix", config.RealtimePrefix())
	return nil
}

// Notifier is the process-wide notifier: every notice is logged, and
// destructive ones also go to Slack when a webhook is configured.
func Notifier() notification.Notifier {
	if url := config.SlackWebhook(); url != "" {
		return notification.Fanout{notification.Log{}, notification.NewSlack(url)}
	}
	return notification.Log{}
}

// Probe reports whether the database still answers.
func (k *Kernel) Probe(ctx context.Context) error {
	return database.Ping(ctx, k.DB)
}

// Close releases everything Boot opened, newest first.
func (k *Kernel) Close() error {
	var errs []error
	for i := len(k.closers) - 1; i >= 0; i-- {
		if err := k.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	k.closers = nil
	return errors.Join(errs...)
}
