package redis

import (
	"context"
	"fmt"
	"strconv"

	"quiz-saga-service/internal/domain"

	"github.com/redis/go-redis/v9"
)

// LeaderboardStore keeps one sorted set per quiz mode:
// ZINCRBY leaderboard:{quizModeID} 1 {userID}
type LeaderboardStore struct {
	client *redis.Client
}

func NewLeaderboardStore(client *redis.Client) *LeaderboardStore {
	return &LeaderboardStore{client: client}
}

func (s *LeaderboardStore) IncrementScore(ctx context.Context, quizModeID string, userID int64) (int64, error) {
	score, err := s.client.ZIncrBy(ctx, s.key(quizModeID), 1, strconv.FormatInt(userID, 10)).Result()
	if err != nil {
		return 0, fmt.Errorf("increment leaderboard score: %w", err)
	}
	return int64(score), nil
}

func (s *LeaderboardStore) Top(ctx context.Context, quizModeID string, n int) ([]domain.LeaderboardEntry, error) {
	members, err := s.client.ZRevRangeWithScores(ctx, s.key(quizModeID), 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("load leaderboard: %w", err)
	}

	entries := make([]domain.LeaderboardEntry, 0, len(members))
	for _, member := range members {
		userID, err := strconv.ParseInt(member.Member.(string), 10, 64)
		if err != nil {
			// Foreign members in the set are skipped, not fatal.
			continue
		}
		entries = append(entries, domain.LeaderboardEntry{
			UserID: userID,
			Score:  int64(member.Score),
		})
	}
	return entries, nil
}

func (s *LeaderboardStore) key(quizModeID string) string {
	if quizModeID == "" {
		quizModeID = "global"
	}
	return "leaderboard:" + quizModeID
}
