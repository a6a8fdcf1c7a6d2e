package cache

import (
	"context"
	"errors"
	"path"
	"testing"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type fakeRedis struct {
	keys    map[string]bool
	scanErr error
	page    int
}

func (f *fakeRedis) Scan(ctx context.Context, cursor uint64, match string, count int64) *redis.ScanCmd {
	cmd := redis.NewScanCmd(ctx, nil)
	if f.scanErr != nil {
		cmd.SetErr(f.scanErr)
		return cmd
	}

	var all []string
	for k := range f.keys {
		if ok, _ := path.Match(match, k); ok {
			all = append(all, k)
		}
	}
	start := int(cursor)
	end := start + f.page
	var next uint64
	if end < len(all) {
		next = uint64(end)
	} else {
		end = len(all)
	}
	cmd.SetVal(all[start:end], next)
	return cmd
}

func (f *fakeRedis) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	cmd := redis.NewIntCmd(ctx)
	for _, k := range keys {
		delete(f.keys, k)
	}
	cmd.SetVal(int64(len(keys)))
	return cmd
}

func TestPatterns(t *testing.T) {
	tenant := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	cases := []struct {
		got  string
		want string
	}{
		{AllocationsPattern(tenant), "allocations:00000000-0000-0000-0000-000000000001:*"},
		{VisitsPattern(tenant), "visits:00000000-0000-0000-0000-000000000001:*"},
		{JourneysPattern(tenant), "journeys:00000000-0000-0000-0000-000000000001:*"},
		{TicketsPattern(tenant), "parking_tickets:00000000-0000-0000-0000-000000000001:*"},
	}
	for _, c := range cases {
		if c.got != c.want {
			t.Errorf("got %q, want %q", c.got, c.want)
		}
	}
}

func TestRedisInvalidatorDeletesMatchingKeys(t *testing.T) {
	f := &fakeRedis{
		page: 100,
		keys: map[string]bool{
			"allocations:t1:list":   true,
			"allocations:t1:page:2": true,
			"visits:t1:list":        true,
			"allocations:t2:list":   true,
		},
	}
	inv := &RedisInvalidator{rdb: f, batchSize: 2}

	if err := inv.Invalidate(context.Background(), "allocations:t1:*", "visits:t1:*"); err != nil {
		t.Fatalf("Invalidate returned error: %v", err)
	}
	if len(f.keys) != 1 || !f.keys["allocations:t2:list"] {
		t.Errorf("expected only the other tenant's key to survive, got %v", f.keys)
	}
}

func TestRedisInvalidatorScanError(t *testing.T) {
	f := &fakeRedis{scanErr: errors.New("connection refused"), page: 10}
	inv := &RedisInvalidator{rdb: f, batchSize: 10}
	if err := inv.Invalidate(context.Background(), "visits:*"); err == nil {
		t.Fatal("expected scan error to be returned")
	}
}

func TestNoop(t *testing.T) {
	if err := (Noop{}).Invalidate(context.Background(), "anything:*"); err != nil {
		t.Fatalf("Noop returned error: %v", err)
	}
}
