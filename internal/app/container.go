package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/fabline/fabline/internal/auth"
	"github.com/fabline/fabline/internal/dispatch"
	"github.com/fabline/fabline/internal/inquiries"
	"github.com/fabline/fabline/internal/notifications"
	"github.com/fabline/fabline/internal/observability"
	"github.com/fabline/fabline/internal/orders"
	"github.com/fabline/fabline/internal/payments"
	"github.com/fabline/fabline/internal/platform/blob"
	"github.com/fabline/fabline/internal/platform/cache"
	"github.com/fabline/fabline/internal/platform/db"
	"github.com/fabline/fabline/internal/platform/httpx"
	"github.com/fabline/fabline/internal/platform/mongodb"
	"github.com/fabline/fabline/internal/quotations"
	"github.com/fabline/fabline/internal/rbac"
	"github.com/fabline/fabline/internal/realtime"
	"github.com/fabline/fabline/internal/sequence"
	"github.com/fabline/fabline/internal/users"
	"github.com/fabline/fabline/jobs"
	"github.com/fabline/fabline/report"
)

// Container holds the wired application graph.
type Container struct {
	Config  *Config
	Logger  *slog.Logger
	Metrics *observability.Metrics

	Redis *redis.Client
	Pool  *pgxpool.Pool
	Mongo *mongo.Database
	Blobs blob.Store

	// MemoryUsers is set when STORE_DRIVER=memory so callers can seed accounts.
	MemoryUsers *users.MemoryRepository

	Users         *users.Service
	Tokens        *auth.TokenStore
	Auth          *auth.Service
	Sequences     *sequence.Service
	Inquiries     *inquiries.Service
	Quotations    *quotations.Service
	Orders        *orders.Service
	Notifications *notifications.Service
	Gateway       payments.Gateway
	Publisher     *realtime.Publisher
	Dispatcher    *dispatch.Dispatcher
	Jobs          *jobs.Client
	Router        http.Handler

	closers []func()
}

// Option overrides a notifier, mainly for tests.
type Option func(*options)

type options struct {
	mailer dispatch.Mailer
	sms    dispatch.SMSSender
}

// WithMailer replaces the configured mail transport.
func WithMailer(m dispatch.Mailer) Option { return func(o *options) { o.mailer = m } }

// WithSMS replaces the configured SMS transport.
func WithSMS(s dispatch.SMSSender) Option { return func(o *options) { o.sms = s } }

type repositories struct {
	users         users.RepositoryPort
	sequences     sequence.Repository
	inquiries     inquiries.Repository
	quotations    quotations.Repository
	orders        orders.Repository
	notifications notifications.Repository
}

// Build connects the backing services selected by cfg and wires every
// component. Close releases what Build opened.
func Build(ctx context.Context, cfg *Config, logger *slog.Logger, opts ...Option) (_ *Container, err error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	c := &Container{Config: cfg, Logger: logger, Metrics: observability.NewMetrics()}
	httpx.ExposeInternalErrors(!cfg.IsProduction())
	defer func() {
		if err != nil {
			c.Close()
		}
	}()

	if c.Redis, err = cache.New(ctx, cfg.Redis()); err != nil {
		return nil, err
	}
	c.closers = append(c.closers, func() {
		if err := c.Redis.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	})

	repos, err := c.openStore(ctx)
	if err != nil {
		return nil, err
	}
	if c.Blobs, err = OpenBlobs(ctx, cfg); err != nil {
		return nil, err
	}
	if c.Gateway, err = openGateway(cfg, logger); err != nil {
		return nil, err
	}

	c.Users = users.NewService(repos.users)
	c.Tokens = auth.NewTokenStore(c.Redis, cfg.SessionSecret, cfg.SessionTTL)
	c.Auth = auth.NewService(c.Users, c.Tokens)
	c.Sequences = sequence.NewService(repos.sequences, logger)
	c.Inquiries = inquiries.NewService(repos.inquiries, c.Sequences, c.Blobs, logger)
	c.Quotations = quotations.NewService(quotations.Deps{
		Repo:      repos.quotations,
		Numbers:   c.Sequences,
		Inquiries: c.Inquiries,
		Customers: c.Users,
		Blobs:     c.Blobs,
		Renderer:  report.NewClient(cfg.GotenbergURL, cfg.GotenbergTimeout),
		Logger:    logger,
	})
	c.Orders = orders.NewService(orders.Deps{
		Repo:       repos.orders,
		Numbers:    c.Sequences,
		Quotations: c.Quotations,
		Inquiries:  c.Inquiries,
		Gateway:    c.Gateway,
		Logger:     logger,
	})
	c.Notifications = notifications.NewService(repos.notifications, logger)
	c.Publisher = realtime.NewPublisher(c.Redis)

	redisOpts := cfg.Queue()
	c.Jobs = jobs.NewClient(redisOpts)
	c.closers = append(c.closers, func() {
		if err := c.Jobs.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	})

	mailer, sms := c.notifiers(o)
	c.Dispatcher = dispatch.New(dispatch.Deps{
		Inquiries:     c.Inquiries,
		Quotations:    c.Quotations,
		Orders:        c.Orders,
		Directory:     c.Users,
		Mailer:        mailer,
		SMS:           sms,
		Pusher:        c.Publisher,
		Notifications: c.Notifications,
		Refunds:       c.Gateway,
		Blobs:         c.Blobs,
		Metrics:       dispatch.NewMetrics(c.Metrics.Registerer()),
		Logger:        logger,
		Config: dispatch.Config{
			MaxInflight:      cfg.DispatchMaxInflight,
			TaskTimeout:      cfg.DispatchTaskTimeout,
			BackofficeEmails: cfg.BackofficeEmails,
		},
	})

	inspector := asynq.NewInspector(redisOpts)
	c.closers = append(c.closers, func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	})

	authMW := auth.Middleware{Tokens: c.Tokens, Logger: logger}
	rbacMW := rbac.Middleware{Logger: logger}
	staffOnly := rbacMW.RequireAny(users.StaffRoles...)
	c.Router = NewRouter(RouterParams{
		Logger:              logger,
		Config:              cfg,
		Metrics:             c.Metrics,
		AuthMiddleware:      authMW,
		RBACMiddleware:      rbacMW,
		AuthHandler:         auth.NewHandler(logger, c.Auth, c.Users, authMW),
		InquiryHandler:      inquiries.NewHandler(logger, c.Inquiries, c.Dispatcher, staffOnly),
		QuotationHandler:    quotations.NewHandler(logger, c.Quotations, c.Dispatcher, staffOnly),
		OrderHandler:        orders.NewHandler(logger, c.Orders, c.Dispatcher, staffOnly),
		SequenceHandler:     sequence.NewHandler(logger, c.Sequences),
		NotificationHandler: notifications.NewHandler(logger, c.Notifications),
		RealtimeHandler:     realtime.NewStreamHandler(c.Redis, logger),
		JobHandler:          jobs.NewHandler(inspector, logger),
		HealthChecks:        c.healthChecks(),
	})
	return c, nil
}

func (c *Container) openStore(ctx context.Context) (repositories, error) {
	cfg := c.Config
	switch cfg.StoreDriver {
	case StorePostgres:
		if cfg.MigrateOnStart {
			if err := db.Migrate(cfg.PGDSN, c.Logger); err != nil {
				return repositories{}, err
			}
		}
		pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
		if err != nil {
			return repositories{}, err
		}
		c.Pool = pool
		c.closers = append(c.closers, pool.Close)
		return repositories{
			users:         users.NewPGRepository(pool),
			sequences:     sequence.NewPGRepository(pool),
			inquiries:     inquiries.NewPGRepository(pool),
			quotations:    quotations.NewPGRepository(pool),
			orders:        orders.NewPGRepository(pool),
			notifications: notifications.NewPGRepository(pool),
		}, nil
	case StoreMongo:
		client, database, err := mongodb.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return repositories{}, err
		}
		c.closers = append(c.closers, func() {
			if err := client.Disconnect(context.Background()); err != nil {
				c.Logger.Warn("mongo disconnect", slog.Any("error", err))
			}
		})
		if err := mongodb.EnsureIndexes(ctx, database); err != nil {
			return repositories{}, err
		}
		c.Mongo = database
		return repositories{
			users:         users.NewMongoRepository(database),
			sequences:     sequence.NewMongoRepository(database),
			inquiries:     inquiries.NewMongoRepository(database),
			quotations:    quotations.NewMongoRepository(database),
			orders:        orders.NewMongoRepository(database),
			notifications: notifications.NewMongoRepository(database),
		}, nil
	case StoreMemory:
		c.MemoryUsers = users.NewMemoryRepository()
		return repositories{
			users:         c.MemoryUsers,
			sequences:     sequence.NewMemoryRepository(),
			inquiries:     inquiries.NewMemoryRepository(),
			quotations:    quotations.NewMemoryRepository(),
			orders:        orders.NewMemoryRepository(),
			notifications: notifications.NewMemoryRepository(),
		}, nil
	}
	return repositories{}, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}

// OpenBlobs returns the file store selected by BLOB_DRIVER.
func OpenBlobs(ctx context.Context, cfg *Config) (blob.Store, error) {
	if cfg.BlobDriver == BlobS3 {
		store, err := blob.NewS3Store(ctx, blob.S3Config{
			Region:          cfg.S3Region,
			Bucket:          cfg.S3Bucket,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			PathStyle:       cfg.S3PathStyle,
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	}
	store, err := blob.NewLocalStore(cfg.BlobLocalDir)
	if err != nil {
		return nil, err
	}
	return store, nil
}

func openGateway(cfg *Config, logger *slog.Logger) (payments.Gateway, error) {
	if cfg.PaymentGatewayMock {
		logger.Warn("payment gateway mock enabled")
		return payments.NewMock(cfg.PaymentWebhookSecret), nil
	}
	gw, err := payments.NewMercadoPago(cfg.MercadoPagoAccessToken, cfg.PaymentWebhookSecret, logger)
	if errors.Is(err, payments.ErrMissingAccessToken) {
		logger.Warn("MERCADOPAGO_ACCESS_TOKEN not set, using mock gateway")
		return payments.NewMock(cfg.PaymentWebhookSecret), nil
	}
	if err != nil {
		return nil, err
	}
	return gw, nil
}

// notifiers picks queued delivery by default and in-process delivery when
// NOTIFY_SYNC is set.
func (c *Container) notifiers(o options) (dispatch.Mailer, dispatch.SMSSender) {
	cfg := c.Config
	var mailer dispatch.Mailer = jobs.QueuedMailer{Client: c.Jobs}
	var sms dispatch.SMSSender = jobs.QueuedSMS{Client: c.Jobs}
	if cfg.NotifySync {
		mailer = jobs.NewSMTPMailer(SMTPConfig(cfg), c.Blobs)
		sms = jobs.NewSMSGateway(cfg.SMSGatewayURL, cfg.SMSGatewayKey)
	}
	if o.mailer != nil {
		mailer = o.mailer
	}
	if o.sms != nil {
		sms = o.sms
	}
	return mailer, sms
}

// SMTPConfig extracts the SMTP settings.
func SMTPConfig(cfg *Config) jobs.SMTPConfig {
	return jobs.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		Timeout:  cfg.SMTPTimeout,
	}
}

func (c *Container) healthChecks() []HealthCheck {
	checks := []HealthCheck{{
		Name:  "redis",
		Probe: func(ctx context.Context) error { return c.Redis.Ping(ctx).Err() },
	}}
	if c.Pool != nil {
		checks = append(checks, HealthCheck{Name: "postgres", Probe: c.Pool.Ping})
	}
	if c.Mongo != nil {
		checks = append(checks, HealthCheck{Name: "mongo", Probe: func(ctx context.Context) error {
			return c.Mongo.Client().Ping(ctx, nil)
		}})
	}
	renderer := report.NewClient(c.Config.GotenbergURL, c.Config.GotenbergTimeout)
	checks = append(checks, HealthCheck{Name: "gotenberg", Probe: renderer.Ping, Optional: true})
	return checks
}

// Close releases resources in reverse order of acquisition.
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}
