package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/freshfield/cleanbooking/config"
	"github.com/freshfield/cleanbooking/internal/domain"
	"github.com/redis/go-redis/v9"
)

type RedisCache struct {
	client     *redis.Client
	catalogTTL time.Duration
}

func NewRedisCache(cfg config.RedisConfig, catalogTTL time.Duration) *RedisCache {
	return &RedisCache{
		client:     redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}),
		catalogTTL: catalogTTL,
	}
}

// NewRedisCacheWithClient is used by tests running against miniredis.
func NewRedisCacheWithClient(client *redis.Client, catalogTTL time.Duration) *RedisCache {
	return &RedisCache{client: client, catalogTTL: catalogTTL}
}

func (c *RedisCache) GetServices(ctx context.Context) ([]domain.Service, error) {
	data, err := c.client.Get(ctx, servicesKey()).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}

	var services []domain.Service
	if err := json.Unmarshal(data, &services); err != nil {
		return nil, err
	}
	return services, nil
}

func (c *RedisCache) SetServices(ctx context.Context, services []domain.Service) error {
	payload, err := json.Marshal(services)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, servicesKey(), payload, c.catalogTTL).Err()
}

func (c *RedisCache) GetExtras(ctx context.Context) ([]domain.Extra, error) {
	data, err := c.client.Get(ctx, extrasKey()).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}

	var extras []domain.Extra
	if err := json.Unmarshal(data, &extras); err != nil {
		return nil, err
	}
	return extras, nil
}

func (c *RedisCache) SetExtras(ctx context.Context, extras []domain.Extra) error {
	payload, err := json.Marshal(extras)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, extrasKey(), payload, c.catalogTTL).Err()
}

// AcquireSlotHold takes a short-lived hold for one customer on one time slot
// so a double-submitted wizard cannot create two pending bookings.
func (c *RedisCache) AcquireSlotHold(ctx context.Context, slot time.Time, email string, ttl time.Duration) (bool, error) {
	return c.client.SetNX(ctx, slotHoldKey(slot, email), "held", ttl).Result()
}

func (c *RedisCache) ReleaseSlotHold(ctx context.Context, slot time.Time, email string) error {
	return c.client.Del(ctx, slotHoldKey(slot, email)).Err()
}

func servicesKey() string {
	return "cache:services"
}

func extrasKey() string {
	return "cache:extras"
}

func slotHoldKey(slot time.Time, email string) string {
	return fmt.Sprintf("hold:slot:%d:%s", slot.Unix(), email)
}
