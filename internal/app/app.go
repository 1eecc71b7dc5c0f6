// Package app builds the long-lived services a crawl run needs from configuration and owns their shutdown.
package app

import (
	"context"
	"fmt"
	"net/http"

	gpubsub "cloud.google.com/go/pubsub"
	gstorage "cloud.google.com/go/storage"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/JakeFAU/store-locator-crawler/internal/config"
	"github.com/JakeFAU/store-locator-crawler/internal/crawler"
	"github.com/JakeFAU/store-locator-crawler/internal/extract"
	"github.com/JakeFAU/store-locator-crawler/internal/logging"
	"github.com/JakeFAU/store-locator-crawler/internal/publisher/pubsub"
	"github.com/JakeFAU/store-locator-crawler/internal/storage/gcs"
	"github.com/JakeFAU/store-locator-crawler/internal/storage/local"
	"github.com/JakeFAU/store-locator-crawler/internal/storage/mysql"
	"github.com/JakeFAU/store-locator-crawler/internal/storage/postgres"
	"github.com/JakeFAU/store-locator-crawler/internal/store"
)

// Sink is a record sink that can provision its table.
type Sink interface {
	EnsureTable(ctx context.Context) error
	Insert(ctx context.Context, rec store.Record) error
	Close()
}

// Option overrides a service that would otherwise be built from configuration.
type Option func(*App)

// WithClock sets the clock used for the run date and record stamps.
func WithClock(c clockwork.Clock) Option {
	return func(a *App) { a.clock = c }
}

// WithArchive supplies the page archive.
func WithArchive(archive extract.Archive) Option {
	return func(a *App) { a.archive = archive }
}

// WithSink supplies the record sink.
func WithSink(s Sink) Option {
	return func(a *App) { a.sink = s }
}

// WithPublisher supplies the notification publisher.
func WithPublisher(p crawler.Publisher) Option {
	return func(a *App) { a.publisher = p }
}

// WithTransport replaces the crawler's HTTP transport.
func WithTransport(rt http.RoundTripper) Option {
	return func(a *App) { a.transport = rt }
}

// App holds the services shared by one crawl run.
type App struct {
	cfg       config.Config
	logger    *zap.Logger
	clock     clockwork.Clock
	run       crawler.Run
	archive   extract.Archive
	sink      Sink
	publisher crawler.Publisher
	transport http.RoundTripper
	closers   []func()
}

// New derives the run from cfg and connects the archive, sink and publisher.
// The sink's table is created before New returns.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{cfg: cfg, clock: clockwork.NewRealClock()}
	for _, opt := range opts {
		opt(a)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate run id: %w", err)
	}
	a.run, err = crawler.NewRun(id.String(), cfg.Crawl.StartURL, a.clock.Now(), cfg.Crawl.StartID, cfg.Crawl.EndID)
	if err != nil {
		return nil, err
	}
	a.logger = logging.ForRun(logger, a.run.ID, a.run.Domain, a.run.TableName)

	if err := a.initArchive(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.initSink(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.initPublisher(ctx); err != nil {
		a.Close()
		return nil, err
	}
	a.logger.Info("application services initialized")
	return a, nil
}

func (a *App) initArchive(ctx context.Context) error {
	if a.archive != nil {
		return nil
	}
	switch a.cfg.Archive.Backend {
	case config.ArchiveGCS:
		client, err := gstorage.NewClient(ctx)
		if err != nil {
			return fmt.Errorf("create gcs client: %w", err)
		}
		a.closers = append(a.closers, func() {
			if err := client.Close(); err != nil {
				a.logger.Warn("error closing gcs client", zap.Error(err))
			}
		})
		archive, err := gcs.New(client, gcs.Config{Bucket: a.cfg.Archive.GCSBucket})
		if err != nil {
			return fmt.Errorf("init gcs archive: %w", err)
		}
		a.logger.Info("using gcs archive", zap.String("bucket", a.cfg.Archive.GCSBucket))
		a.archive = archive
	case config.ArchiveLocal:
		archive, err := local.New(local.Config{BaseDir: a.cfg.Archive.BaseDir})
		if err != nil {
			return fmt.Errorf("init local archive: %w", err)
		}
		a.logger.Info("using local archive", zap.String("base_dir", a.cfg.Archive.BaseDir))
		a.archive = archive
	default:
		return fmt.Errorf("unknown archive backend: %s", a.cfg.Archive.Backend)
	}
	return nil
}

func (a *App) initSink(ctx context.Context) error {
	if a.sink == nil {
		switch a.cfg.DB.Driver {
		case config.DriverPostgres:
			sink, err := postgres.NewSink(ctx, postgres.SinkConfig{
				DSN:      a.cfg.DB.DSN,
				Table:    a.run.TableName,
				MaxConns: int32(a.cfg.DB.MaxConns), //nolint:gosec // validated small positive value
			})
			if err != nil {
				return fmt.Errorf("init postgres sink: %w", err)
			}
			a.sink = sink
		case config.DriverMySQL:
			sink, err := mysql.NewSink(ctx, mysql.SinkConfig{
				DSN:          a.cfg.DB.DSN,
				Table:        a.run.TableName,
				MaxOpenConns: a.cfg.DB.MaxConns,
				MaxIdleConns: a.cfg.DB.MaxConns,
			})
			if err != nil {
				return fmt.Errorf("init mysql sink: %w", err)
			}
			a.sink = sink
		default:
			return fmt.Errorf("unknown db driver: %s", a.cfg.DB.Driver)
		}
	}
	sink := a.sink
	a.closers = append(a.closers, sink.Close)
	if err := sink.EnsureTable(ctx); err != nil {
		return err
	}
	a.logger.Info("store table ready", zap.String("driver", a.cfg.DB.Driver))
	return nil
}

func (a *App) initPublisher(ctx context.Context) error {
	if a.publisher != nil || a.cfg.PubSub.TopicName == "" {
		return nil
	}
	client, err := gpubsub.NewClient(ctx, a.cfg.PubSub.ProjectID)
	if err != nil {
		return fmt.Errorf("create pubsub client: %w", err)
	}
	pub := pubsub.New(client)
	a.closers = append(a.closers, func() {
		pub.Close()
		if err := client.Close(); err != nil {
			a.logger.Warn("error closing pubsub client", zap.Error(err))
		}
	})
	a.logger.Info("publishing store notifications", zap.String("topic", a.cfg.PubSub.TopicName))
	a.publisher = pub
	return nil
}

// Run returns the run this App was built for.
func (a *App) Run() crawler.Run {
	return a.run
}

// Logger returns the run-scoped logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Engine wires the extractor and crawl engine over the App's services.
func (a *App) Engine() (*crawler.Engine, error) {
	ex, err := extract.New(extract.Config{
		ArchiveDir: a.run.ArchiveDir(),
		Provider:   a.cfg.Site.Provider,
		Category:   a.cfg.Site.Category,
		Country:    a.cfg.Site.Country,
		Status:     a.cfg.Site.Status,
	}, a.archive, a.clock, a.logger.Named("extract"))
	if err != nil {
		return nil, fmt.Errorf("init extractor: %w", err)
	}

	var opts []crawler.Option
	if a.transport != nil {
		opts = append(opts, crawler.WithTransport(a.transport))
	}
	if a.publisher != nil {
		opts = append(opts, crawler.WithPublisher(a.publisher))
	}
	engine, err := crawler.NewEngine(crawler.Config{
		UserAgent:      a.cfg.Crawl.UserAgent,
		Concurrency:    a.cfg.Crawl.Concurrency,
		RequestTimeout: a.cfg.RequestTimeout(),
		Delay:          a.cfg.Delay(),
		RespectRobots:  a.cfg.Crawl.RespectRobots,
		RegionSelector: a.cfg.Site.RegionSelector,
		CitySelector:   a.cfg.Site.CitySelector,
		Topic:          a.cfg.PubSub.TopicName,
	}, a.run, ex, a.sink, a.logger.Named("engine"), opts...)
	if err != nil {
		return nil, fmt.Errorf("init engine: %w", err)
	}
	return engine, nil
}

// Close shuts services down in reverse order of creation.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
