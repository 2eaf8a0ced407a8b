package rediscache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nabezky/VoucherBox/internal/models"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

type RedisCache struct {
	c *redis.Client
}

func New(addr string) *RedisCache {
	return &RedisCache{
		c: redis.NewClient(&redis.Options{
			Addr: addr,
		}),
	}
}

// VoucherKey is the cache key holding the issued vouchers of one order.
func VoucherKey(orderID int64) string {
	return fmt.Sprintf("order:%d:vouchers", orderID)
}

// PollKey is the per-order key used to rate limit voucher status polling.
func PollKey(orderID int64) string {
	return fmt.Sprintf("order:%d:poll", orderID)
}

func (r *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := r.c.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, "redis get")
	}
	return val, true, nil
}

func (r *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := r.c.Set(ctx, key, value, ttl).Err(); err != nil {
		return errors.Wrap(err, "redis set")
	}
	return nil
}

// SetVoucherData кладёт ваучеры заказа в кеш, чтобы поллинг статуса
// не ходил в постгрес на каждый запрос.
func (r *RedisCache) SetVoucherData(ctx context.Context, orderID int64, data models.VoucherData, ttl time.Duration) error {
	b, err := json.Marshal(data)
	if err != nil {
		return errors.Wrap(err, "marshal voucher data")
	}
	return r.Set(ctx, VoucherKey(orderID), b, ttl)
}

func (r *RedisCache) GetVoucherData(ctx context.Context, orderID int64) (*models.VoucherData, error) {
	b, ok, err := r.Get(ctx, VoucherKey(orderID))
	if err != nil || !ok {
		return nil, err
	}
	var data models.VoucherData
	if err := json.Unmarshal(b, &data); err != nil {
		return nil, errors.Wrap(err, "unmarshal voucher data")
	}
	return &data, nil
}
