package bootstrap

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/syncai-intake/internal/booking"
	"github.com/wolfman30/syncai-intake/internal/catalog"
	appconfig "github.com/wolfman30/syncai-intake/internal/config"
	"github.com/wolfman30/syncai-intake/internal/conversation"
	"github.com/wolfman30/syncai-intake/internal/events"
	"github.com/wolfman30/syncai-intake/pkg/logging"
)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available", "error", err)
		_ = client.Close()
		return nil
	}
	return client
}

// BuildProcessedStore returns the Redis dedup store, or nil without Redis so
// the worker skips dedup entirely.
func BuildProcessedStore(redisClient *redis.Client, cfg *appconfig.Config) conversation.ProcessedStore {
	if redisClient == nil {
		return nil
	}
	ttl := events.DefaultProcessedTTL
	if cfg != nil && cfg.DedupTTL > 0 {
		ttl = cfg.DedupTTL
	}
	return events.NewProcessedStore(redisClient, ttl)
}

// BuildBookingStore connects to Postgres when DATABASE_URL is set and falls
// back to the in-memory store otherwise. The returned func releases the pool.
func BuildBookingStore(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (booking.Store, func(), error) {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg == nil || strings.TrimSpace(cfg.DatabaseURL) == "" {
		logger.Warn("DATABASE_URL not set; bookings are kept in memory")
		return booking.NewMemoryStore(), func() {}, nil
	}
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("bootstrap: connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("bootstrap: ping postgres: %w", err)
	}
	logger.Info("connected to postgres booking store")
	return booking.NewPostgresStore(pool), pool.Close, nil
}

// BuildCatalog loads the product catalog. A missing file yields an empty
// catalog so product queries still get a polite answer.
func BuildCatalog(cfg *appconfig.Config, logger *logging.Logger) (*catalog.Catalog, error) {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg == nil || strings.TrimSpace(cfg.ProductCatalogPath) == "" {
		logger.Warn("PRODUCT_CATALOG_PATH not set; product lookups return nothing")
		return catalog.Empty(), nil
	}
	c, err := catalog.Load(cfg.ProductCatalogPath)
	if errors.Is(err, os.ErrNotExist) {
		logger.Warn("product catalog not found", "path", cfg.ProductCatalogPath)
		return catalog.Empty(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("bootstrap: load catalog: %w", err)
	}
	logger.Info("product catalog loaded", "products", c.Len())
	return c, nil
}
