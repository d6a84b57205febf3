package container

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/storage"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/fluxa/config"
	"github.com/oksasatya/fluxa/internal/application"
	"github.com/oksasatya/fluxa/internal/domain/repository"
	"github.com/oksasatya/fluxa/internal/infrastructure/google"
	pginfra "github.com/oksasatya/fluxa/internal/infrastructure/postgres"
	"github.com/oksasatya/fluxa/internal/infrastructure/redisstore"
	"github.com/oksasatya/fluxa/internal/infrastructure/search"
	stripeinfra "github.com/oksasatya/fluxa/internal/infrastructure/stripe"
	"github.com/oksasatya/fluxa/pkg/helpers"
)

// Container owns every process-wide client and the services built on them.
// Collaborators whose configuration is empty are left nil and the matching
// feature is disabled.
type Container struct {
	Config *config.Config
	Logger *logrus.Logger

	Pool   *pgxpool.Pool
	Redis  *redis.Client
	GCS    *storage.Client
	Rabbit *helpers.RabbitPublisher
	ES     *elasticsearch.Client

	IdentityStore repository.IdentityRepository
	ProjectStore  repository.ProjectRepository
	Hasher        *helpers.PasswordHasher
	Tokens        *helpers.TokenCodec
	Index         *search.IdentityIndex

	Auth     *application.AuthService
	Users    *application.UserService
	Billing  *application.BillingService
	Projects *application.ProjectService

	closers []func()
}

// Build connects to the configured backends. Postgres is mandatory; a
// configured Redis must answer a ping. The broker and the search cluster
// are best-effort.
func Build(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*Container, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Container{Config: cfg, Logger: logger}

	pool, err := pginfra.NewPool(ctx, cfg.PostgresDSN(), cfg.DBMaxConns, cfg.DBMinConns, cfg.DBMaxConnLife)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	c.Pool = pool
	c.onClose(pool.Close)
	c.IdentityStore = pginfra.NewIdentityRepository(pool)
	c.ProjectStore = pginfra.NewProjectRepository(pool)

	c.Hasher = helpers.NewPasswordHasher(cfg.BcryptCost)
	c.Tokens = helpers.NewTokenCodec(cfg.SecretKey, cfg.AccessTokenTTL)

	if err := c.connectRedis(ctx); err != nil {
		c.Close()
		return nil, err
	}
	if err := c.connectGCS(ctx); err != nil {
		c.Close()
		return nil, err
	}
	c.connectRabbit()
	c.connectSearch(ctx)

	verifier, err := c.googleVerifier(ctx)
	if err != nil {
		c.Close()
		return nil, err
	}

	c.Auth = application.NewAuthService(c.IdentityStore, c.Hasher, c.Tokens, verifier, logger)
	c.Users = application.NewUserService(c.IdentityStore, c.Hasher, nil, nil, nil, logger)
	c.Billing = application.NewBillingService(c.IdentityStore, nil, cfg.StripePrices(), logger)
	c.Projects = application.NewProjectService(c.ProjectStore, logger)

	// interface fields are assigned only for live backends; services nil-check them
	if c.Redis != nil {
		c.Auth.Denylist = redisstore.NewDenylist(c.Redis)
		c.Auth.Throttle = redisstore.NewThrottle(c.Redis, cfg.LoginMaxAttempts, cfg.LoginWindow)
	}
	if c.Rabbit != nil {
		c.Auth.Events = c.Rabbit
		c.Users.Events = c.Rabbit
	}
	if c.GCS != nil {
		c.Users.Avatars = helpers.NewGCSUploader(c.GCS, cfg.GCSBucket)
	}
	if c.Index != nil {
		c.Users.Index = c.Index
	}
	if cfg.StripeSecretKey != "" {
		c.Billing.Payments = stripeinfra.New(stripeinfra.Config{
			SecretKey:     cfg.StripeSecretKey,
			WebhookSecret: cfg.StripeWebhookSecret,
			SuccessURL:    cfg.CheckoutSuccessURL,
			CancelURL:     cfg.CheckoutCancelURL,
		})
	}
	return c, nil
}

func (c *Container) connectRedis(ctx context.Context) error {
	if c.Config.RedisAddr == "" {
		c.Logger.Warn("REDIS_ADDR empty; token revocation and login throttling disabled")
		return nil
	}
	rdb := helpers.NewRedisClient(c.Config.RedisAddr, c.Config.RedisPassword, c.Config.RedisDB)
	if err := helpers.PingRedis(ctx, rdb, 5*time.Second); err != nil {
		_ = rdb.Close()
		return fmt.Errorf("connect redis: %w", err)
	}
	c.Redis = rdb
	c.onClose(func() { _ = rdb.Close() })
	return nil
}

func (c *Container) connectGCS(ctx context.Context) error {
	if c.Config.GCSBucket == "" {
		return nil
	}
	client, err := helpers.NewGCSClient(ctx, c.Config.GCSCredentialsJSONPath)
	if err != nil {
		return fmt.Errorf("init gcs: %w", err)
	}
	c.GCS = client
	c.onClose(func() { _ = client.Close() })
	return nil
}

func (c *Container) connectRabbit() {
	if c.Config.RabbitMQURL == "" {
		return
	}
	pub, err := helpers.NewRabbitPublisher(c.Config.RabbitMQURL, c.Config.RabbitMQIdentityQueue)
	if err != nil {
		helpers.LogError(c.Logger, "rabbitmq unavailable; identity events disabled", err, nil)
		return
	}
	c.Rabbit = pub
	c.onClose(pub.Close)
}

func (c *Container) connectSearch(ctx context.Context) {
	addrs := c.Config.ESAddrs()
	if len(addrs) == 0 {
		return
	}
	es, err := helpers.NewESClient(addrs, c.Config.ElasticsearchUser, c.Config.ElasticsearchPass)
	if err != nil {
		helpers.LogError(c.Logger, "elasticsearch client init failed; search disabled", err, nil)
		return
	}
	index := search.NewIdentityIndex(es, c.Config.ESIdentitiesIndex)
	if err := index.EnsureIndex(ctx); err != nil {
		helpers.LogError(c.Logger, "elasticsearch unavailable; search disabled", err, nil)
		return
	}
	c.ES = es
	c.Index = index
}

func (c *Container) googleVerifier(ctx context.Context) (application.IdentityVerifier, error) {
	if c.Config.GoogleClientID == "" {
		return nil, nil
	}
	v, err := google.NewVerifier(ctx, c.Config.GoogleClientID, c.Config.GoogleVerifyTimeout, c.Logger)
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (c *Container) onClose(fn func()) { c.closers = append(c.closers, fn) }

// Close releases clients in reverse order of construction.
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}
