package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const redisClaimPrefix = "settlement:claim:"

// releaseScript deletes the key only while it still holds the caller's claim
// token. Completed sessions and claims taken over after expiry stay put.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLedger keeps settlement claims as expiring Redis keys whose value is
// the claim token, or "completed" once the session is settled.
type RedisLedger struct {
	client   redis.UniversalClient
	newToken func() string
}

func NewRedisLedger(client redis.UniversalClient) *RedisLedger {
	return &RedisLedger{client: client, newToken: uuid.NewString}
}

func (l *RedisLedger) Claim(ctx context.Context, sessionID string, ttl time.Duration) (string, error) {
	token := l.newToken()
	ok, err := l.client.SetNX(ctx, redisClaimPrefix+sessionID, token, ttl).Result()
	if err != nil {
		return "", fmt.Errorf("claim session: %w", err)
	}
	if !ok {
		return "", nil
	}
	return token, nil
}

func (l *RedisLedger) Release(ctx context.Context, sessionID, token string) error {
	if err := releaseScript.Run(ctx, l.client, []string{redisClaimPrefix + sessionID}, token).Err(); err != nil {
		return fmt.Errorf("release session: %w", err)
	}
	return nil
}

func (l *RedisLedger) Complete(ctx context.Context, sessionID string) error {
	if err := l.client.Set(ctx, redisClaimPrefix+sessionID, claimStatusCompleted, completedRetention).Err(); err != nil {
		return fmt.Errorf("complete session: %w", err)
	}
	return nil
}
