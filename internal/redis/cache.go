package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/heraldapp/herald/internal/db"
)

// DefaultTemplateTTL bounds how long a resolved template is served from
// cache before the store is consulted again.
const DefaultTemplateTTL = 60 * time.Minute

// TemplateCache caches resolved notification templates in Redis keyed by
// (name, type, language) with a bounded TTL.
type TemplateCache struct {
	client *Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewTemplateCache creates a template cache. A zero ttl falls back to
// DefaultTemplateTTL.
func NewTemplateCache(client *Client, ttl time.Duration, logger *zap.Logger) *TemplateCache {
	if ttl <= 0 {
		ttl = DefaultTemplateTTL
	}
	return &TemplateCache{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

func templateKey(name, templateType, language string) string {
	return fmt.Sprintf("template:%s:%s:%s", name, templateType, language)
}

// Get returns the cached template, or (nil, nil) on a miss. A corrupt
// cache entry is treated as a miss so resolution can repopulate it.
func (c *TemplateCache) Get(ctx context.Context, name, templateType, language string) (*db.NotificationTemplate, error) {
	key := templateKey(name, templateType, language)

	val, err := c.client.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}

	var tmpl db.NotificationTemplate
	if err := json.Unmarshal([]byte(val), &tmpl); err != nil {
		c.logger.Warn("discarding corrupt cached template",
			zap.String("key", key),
			zap.Error(err),
		)
		return nil, nil
	}

	c.logger.Debug("template cache hit", zap.String("key", key))
	return &tmpl, nil
}

// Set writes a template back to the cache with the configured TTL.
func (c *TemplateCache) Set(ctx context.Context, tmpl *db.NotificationTemplate) error {
	key := templateKey(tmpl.TemplateName, tmpl.TemplateType, tmpl.Language)

	data, err := json.Marshal(tmpl)
	if err != nil {
		return fmt.Errorf("marshal template: %w", err)
	}

	if err := c.client.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}

	return nil
}
