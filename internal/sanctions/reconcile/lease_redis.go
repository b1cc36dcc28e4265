package reconcile

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	dErrors "pldft/pkg/domain-errors"
)

const (
	defaultLeaseTTL     = 5 * time.Minute
	defaultLeasePrefix  = "pldft:lease:"
	leaseInitialBackoff = 50 * time.Millisecond
	leaseMaxBackoff     = time.Second
	leaseReleaseTimeout = 5 * time.Second
)

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// renewScript extends the TTL only while the key still holds our token.
var renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)

// RedisLeases coordinates holders across processes with SET NX PX. A held
// lease is renewed in the background until released, so a crashed holder
// frees the key after one TTL.
type RedisLeases struct {
	client redis.UniversalClient
	ttl    time.Duration
	prefix string
	logger *slog.Logger
}

type RedisLeaseOption func(*RedisLeases)

func WithLeaseTTL(ttl time.Duration) RedisLeaseOption {
	return func(r *RedisLeases) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

func WithLeasePrefix(prefix string) RedisLeaseOption {
	return func(r *RedisLeases) {
		r.prefix = prefix
	}
}

func WithLeaseLogger(logger *slog.Logger) RedisLeaseOption {
	return func(r *RedisLeases) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func NewRedisLeases(client redis.UniversalClient, opts ...RedisLeaseOption) *RedisLeases {
	r := &RedisLeases{
		client: client,
		ttl:    defaultLeaseTTL,
		prefix: defaultLeasePrefix,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Acquire polls with exponential backoff until the lease is granted or ctx
// is done.
func (r *RedisLeases) Acquire(ctx context.Context, key string) (func(), error) {
	redisKey := r.prefix + key
	token := uuid.NewString()
	backoff := leaseInitialBackoff

	for {
		ok, err := r.client.SetNX(ctx, redisKey, token, r.ttl).Result()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, dErrors.Wrap(ctxErr, dErrors.CodeTimeout, "wait for lease "+key)
			}
			return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "acquire lease "+key)
		}
		if ok {
			return r.hold(redisKey, token), nil
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, dErrors.Wrap(ctx.Err(), dErrors.CodeTimeout, "wait for lease "+key)
		case <-timer.C:
		}
		backoff = min(backoff*2, leaseMaxBackoff)
	}
}

func (r *RedisLeases) hold(redisKey, token string) func() {
	stop := make(chan struct{})
	done := make(chan struct{})
	go r.renew(redisKey, token, stop, done)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done
			ctx, cancel := context.WithTimeout(context.Background(), leaseReleaseTimeout)
			defer cancel()
			if err := releaseScript.Run(ctx, r.client, []string{redisKey}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
				r.logger.Warn("failed to release lease", "key", redisKey, "error", err)
			}
		})
	}
}

func (r *RedisLeases) renew(redisKey, token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(r.ttl / 3)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), leaseReleaseTimeout)
			n, err := renewScript.Run(ctx, r.client, []string{redisKey}, token, r.ttl.Milliseconds()).Int()
			cancel()
			if err != nil {
				r.logger.Warn("failed to renew lease", "key", redisKey, "error", err)
				continue
			}
			if n == 0 {
				r.logger.Error("lease lost before release", "key", redisKey)
				return
			}
		}
	}
}
