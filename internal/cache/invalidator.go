package cache

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Invalidator drops cached read views matching key patterns.
type Invalidator interface {
	Invalidate(ctx context.Context, patterns ...string) error
}

func AllocationsPattern(tenantID uuid.UUID) string {
	return fmt.Sprintf("allocations:%s:*", tenantID)
}

func VisitsPattern(tenantID uuid.UUID) string {
	return fmt.Sprintf("visits:%s:*", tenantID)
}

func JourneysPattern(tenantID uuid.UUID) string {
	return fmt.Sprintf("journeys:%s:*", tenantID)
}

func TicketsPattern(tenantID uuid.UUID) string {
	return fmt.Sprintf("parking_tickets:%s:*", tenantID)
}

type Noop struct{}

func (Noop) Invalidate(context.Context, ...string) error { return nil }

// scanner is the subset of the redis client the invalidator needs.
type scanner interface {
	Scan(ctx context.Context, cursor uint64, match string, count int64) *redis.ScanCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

type RedisInvalidator struct {
	rdb       scanner
	batchSize int64
}

func NewRedisInvalidator(rdb *redis.Client) *RedisInvalidator {
	return &RedisInvalidator{rdb: rdb, batchSize: 200}
}

// Invalidate walks each pattern with SCAN and deletes the matches batch by batch.
func (r *RedisInvalidator) Invalidate(ctx context.Context, patterns ...string) error {
	for _, pattern := range patterns {
		var cursor uint64
		for {
			keys, next, err := r.rdb.Scan(ctx, cursor, pattern, r.batchSize).Result()
			if err != nil {
				return fmt.Errorf("scan %q: %w", pattern, err)
			}
			if len(keys) > 0 {
				if err := r.rdb.Del(ctx, keys...).Err(); err != nil {
					return fmt.Errorf("delete %d keys for %q: %w", len(keys), pattern, err)
				}
			}
			cursor = next
			if cursor == 0 {
				break
			}
		}
	}
	return nil
}
