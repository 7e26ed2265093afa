package cache

import (
	"context"
	"fmt"
	"time"

	"prakriti-service/internal/model"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultLeaderboardKey = "prakriti:leaderboard:points"

	appliedGuardTTL = 30 * 24 * time.Hour
)

// Leaderboard keeps user points in a Redis sorted set. Postgres remains the
// source of truth; the set can be rebuilt from it at any time.
type Leaderboard struct {
	client *redis.Client
	key    string
}

func NewLeaderboard(client *redis.Client, key string) *Leaderboard {
	if key == "" {
		key = DefaultLeaderboardKey
	}
	return &Leaderboard{client: client, key: key}
}

// incrementOnce applies ZINCRBY only when the award's guard key is new, so
// a redelivered reward event cannot count twice.
var incrementOnce = redis.NewScript(`
if redis.call('SET', KEYS[2], '1', 'NX', 'EX', ARGV[3]) then
	redis.call('ZINCRBY', KEYS[1], ARGV[1], ARGV[2])
	return 1
end
return 0
`)

// IncrementScoreOnce adds points for the award identified by awardID. It
// reports false when that award was already applied.
func (l *Leaderboard) IncrementScoreOnce(ctx context.Context, awardID string, userID uuid.UUID, points int) (bool, error) {
	guard := l.key + ":applied:" + awardID
	applied, err := incrementOnce.Run(ctx, l.client, []string{l.key, guard},
		points, userID.String(), int(appliedGuardTTL.Seconds())).Int()
	if err != nil {
		return false, fmt.Errorf("zincrby: %w", err)
	}
	return applied == 1, nil
}

// Top returns the n highest scores. Usernames and levels are not stored in
// Redis and are left empty.
func (l *Leaderboard) Top(ctx context.Context, n int) ([]model.LeaderboardEntry, error) {
	members, err := l.client.ZRevRangeWithScores(ctx, l.key, 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("zrevrange: %w", err)
	}

	entries := make([]model.LeaderboardEntry, 0, len(members))
	for i, m := range members {
		member, ok := m.Member.(string)
		if !ok {
			continue
		}
		id, err := uuid.Parse(member)
		if err != nil {
			continue
		}
		entries = append(entries, model.LeaderboardEntry{
			Rank:   i + 1,
			UserID: id,
			Points: int(m.Score),
		})
	}
	return entries, nil
}

// Rebuild replaces the set with the given entries atomically.
func (l *Leaderboard) Rebuild(ctx context.Context, entries []model.LeaderboardEntry) error {
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, l.key)
		if len(entries) == 0 {
			return nil
		}
		members := make([]redis.Z, len(entries))
		for i, e := range entries {
			members[i] = redis.Z{Score: float64(e.Points), Member: e.UserID.String()}
		}
		pipe.ZAdd(ctx, l.key, members...)
		return nil
	})
	if err != nil {
		return fmt.Errorf("rebuild leaderboard: %w", err)
	}
	return nil
}
