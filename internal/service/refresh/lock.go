package refresh

import (
	"context"
	"errors"
	"time"

	"github.com/countryhub/country-api/internal/util"
	"github.com/redis/go-redis/v9"
)

// ErrInProgress means another refresh pass holds the lock. Overlapping
// passes would interleave writes on the same rows, so they are serialized.
var ErrInProgress = errors.New("refresh already in progress")

const lockKey = "countryapi:refresh:lock"

// releaseScript deletes the lock only if we still own it, so a pass that
// outlived the TTL cannot release a successor's lock.
var releaseScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	end
	return 0
`)

// Locker serializes refresh passes.
type Locker interface {
	Acquire(ctx context.Context) (release func(), err error)
}

// RedisLock is a SETNX+TTL advisory lock. The TTL is a liveness backstop
// for a crashed holder, not a deadline for the pass itself.
type RedisLock struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisLock(rdb *redis.Client, ttl time.Duration) *RedisLock {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &RedisLock{rdb: rdb, ttl: ttl}
}

var _ Locker = (*RedisLock)(nil)

func (l *RedisLock) Acquire(ctx context.Context) (func(), error) {
	token := util.New()
	ok, err := l.rdb.SetNX(ctx, lockKey, token, l.ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInProgress
	}

	release := func() {
		// Release runs on the way out of the pass; the request ctx may
		// already be cancelled by then.
		rctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = releaseScript.Run(rctx, l.rdb, []string{lockKey}, token).Err()
	}
	return release, nil
}
