package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/oklog/ulid/v2"

	"launchpad/internal/domain"
	"launchpad/internal/domain/model"
	"launchpad/internal/domain/ports/repository"
)

var _ repository.SlidingWindowStore = (*SlidingWindow)(nil)

// luaSlidingWindow prunes, counts and records in one server-side step.
// Scores are unix milliseconds. Returns {admitted, count, oldest_ms}.
var luaSlidingWindow = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

redis.call("ZREMRANGEBYSCORE", key, "-inf", now - window)
local count = redis.call("ZCARD", key)
if count >= limit then
	local oldest = redis.call("ZRANGE", key, 0, 0, "WITHSCORES")
	return {0, count, tonumber(oldest[2])}
end
redis.call("ZADD", key, now, ARGV[4])
redis.call("PEXPIRE", key, window)
return {1, count + 1, 0}`)

// SlidingWindow is a SlidingWindowStore on Redis sorted sets.
type SlidingWindow struct {
	cli    *redis.Client
	prefix string
}

func NewSlidingWindow(c *Client, prefix string) *SlidingWindow {
	return &SlidingWindow{cli: c.cli, prefix: prefix}
}

func (w *SlidingWindow) key(k string) string {
	if w.prefix == "" {
		return k
	}
	return w.prefix + ":" + k
}

func (w *SlidingWindow) Hit(ctx context.Context, key string, now time.Time, rule model.RateLimitRule) (repository.WindowHit, error) {
	nowMs := now.UnixMilli()
	// the member must be unique so two hits in the same millisecond both count
	member := ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String()

	res, err := luaSlidingWindow.Run(ctx, w.cli, []string{w.key(key)},
		nowMs, rule.Window.Milliseconds(), rule.Limit, member,
	).Int64Slice()
	if err != nil {
		return repository.WindowHit{}, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	if len(res) != 3 {
		return repository.WindowHit{}, fmt.Errorf("%w: unexpected script reply %v", domain.ErrOperationFailed, res)
	}

	hit := repository.WindowHit{Admitted: res[0] == 1, Count: int(res[1])}
	if !hit.Admitted {
		hit.Oldest = time.UnixMilli(res[2])
	}
	return hit, nil
}
