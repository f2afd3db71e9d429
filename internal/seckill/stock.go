// Package seckill implements a small flash-sale service used to exercise the
// probe locally. It sells a single product from a Stock backend and reports
// every purchase decision through Prometheus.
package seckill

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// Stock is the inventory a purchase draws from.
type Stock interface {
	// TryAcquire takes one unit. ok is false when nothing was left; remaining
	// is the stock after the call.
	TryAcquire(ctx context.Context) (remaining int64, ok bool, err error)
	Remaining(ctx context.Context) (int64, error)
}

// AtomicStock decrements with a compare-and-swap loop and never sells more
// than it was given.
type AtomicStock struct {
	n atomic.Int64
}

func NewAtomicStock(initial int64) *AtomicStock {
	s := &AtomicStock{}
	s.n.Store(initial)
	return s
}

func (s *AtomicStock) TryAcquire(ctx context.Context) (int64, bool, error) {
	for {
		cur := s.n.Load()
		if cur <= 0 {
			return cur, false, nil
		}
		if s.n.CompareAndSwap(cur, cur-1) {
			return cur - 1, true, nil
		}
	}
}

func (s *AtomicStock) Remaining(ctx context.Context) (int64, error) {
	return s.n.Load(), nil
}

// RacyStock reads the stock, waits for Window and then writes back the
// decremented value. Concurrent buyers that read the same value all succeed,
// so it oversells under load.
type RacyStock struct {
	n      atomic.Int64
	Window time.Duration
}

func NewRacyStock(initial int64, window time.Duration) *RacyStock {
	s := &RacyStock{Window: window}
	s.n.Store(initial)
	return s
}

func (s *RacyStock) TryAcquire(ctx context.Context) (int64, bool, error) {
	cur := s.n.Load()
	if cur <= 0 {
		return cur, false, nil
	}
	if s.Window > 0 {
		select {
		case <-time.After(s.Window):
		case <-ctx.Done():
			return cur, false, ctx.Err()
		}
	}
	s.n.Store(cur - 1)
	return cur - 1, true, nil
}

func (s *RacyStock) Remaining(ctx context.Context) (int64, error) {
	return s.n.Load(), nil
}

// RedisEvaler is the subset of a Redis client RedisStock needs. Lua scripts
// keep each operation atomic on the server.
type RedisEvaler interface {
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) (interface{}, error)
}

// GoRedisEvaler adapts a go-redis client to RedisEvaler.
type GoRedisEvaler struct{ c redis.UniversalClient }

// NewGoRedisEvaler connects to a single Redis node at addr, e.g. "127.0.0.1:6379".
func NewGoRedisEvaler(addr string) *GoRedisEvaler {
	return &GoRedisEvaler{c: redis.NewClient(&redis.Options{Addr: addr})}
}

func (g *GoRedisEvaler) Eval(ctx context.Context, script string, keys []string, args ...interface{}) (interface{}, error) {
	return g.c.Eval(ctx, script, keys, args...).Result()
}

func (g *GoRedisEvaler) Close() error {
	return g.c.Close()
}

const (
	// KEYS[1]=stock key, ARGV[1]=initial units
	luaResetStock = `
redis.call('SET', KEYS[1], ARGV[1])
return tonumber(ARGV[1])
`
	// Returns the remaining units after a successful decrement, -1 when sold out.
	luaAcquireStock = `
local cur = tonumber(redis.call('GET', KEYS[1]) or '0')
if cur <= 0 then
  return -1
end
return redis.call('DECR', KEYS[1])
`
	luaRemainingStock = `
return tonumber(redis.call('GET', KEYS[1]) or '0')
`
)

// RedisStock keeps the stock in a Redis key so several server processes can
// share it.
type RedisStock struct {
	ev  RedisEvaler
	key string
}

// NewRedisStock resets key to initial and returns a stock bound to it.
func NewRedisStock(ctx context.Context, ev RedisEvaler, key string, initial int64) (*RedisStock, error) {
	if ev == nil {
		return nil, errors.New("seckill: redis client is required")
	}
	if key == "" {
		return nil, errors.New("seckill: redis key is required")
	}
	if _, err := ev.Eval(ctx, luaResetStock, []string{key}, initial); err != nil {
		return nil, fmt.Errorf("reset stock: %w", err)
	}
	return &RedisStock{ev: ev, key: key}, nil
}

func (s *RedisStock) TryAcquire(ctx context.Context) (int64, bool, error) {
	res, err := s.ev.Eval(ctx, luaAcquireStock, []string{s.key})
	if err != nil {
		return 0, false, fmt.Errorf("acquire stock: %w", err)
	}
	n, err := toInt64(res)
	if err != nil {
		return 0, false, fmt.Errorf("acquire stock: %w", err)
	}
	if n < 0 {
		return 0, false, nil
	}
	return n, true, nil
}

func (s *RedisStock) Remaining(ctx context.Context) (int64, error) {
	res, err := s.ev.Eval(ctx, luaRemainingStock, []string{s.key})
	if err != nil {
		return 0, fmt.Errorf("read stock: %w", err)
	}
	return toInt64(res)
}

func toInt64(v interface{}) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	default:
		return 0, fmt.Errorf("unexpected script result %T", v)
	}
}
