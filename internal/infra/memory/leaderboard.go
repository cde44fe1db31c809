package memory

import (
	"context"
	"sort"
	"sync"

	"quiz-saga-service/internal/domain"
)

// LeaderboardStore keeps quiz-mode scores in memory. Redis is the real
// backing store; this exists for tests and redis-less deployments.
type LeaderboardStore struct {
	mu     sync.Mutex
	scores map[string]map[int64]int64 // quizModeID -> userID -> score
}

func NewLeaderboardStore() *LeaderboardStore {
	return &LeaderboardStore{scores: make(map[string]map[int64]int64)}
}

func (s *LeaderboardStore) IncrementScore(_ context.Context, quizModeID string, userID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	mode, ok := s.scores[quizModeID]
	if !ok {
		mode = make(map[int64]int64)
		s.scores[quizModeID] = mode
	}
	mode[userID]++
	return mode[userID], nil
}

func (s *LeaderboardStore) Top(_ context.Context, quizModeID string, n int) ([]domain.LeaderboardEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := []domain.LeaderboardEntry{}
	for userID, score := range s.scores[quizModeID] {
		entries = append(entries, domain.LeaderboardEntry{UserID: userID, Score: score})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].UserID < entries[j].UserID
	})
	if len(entries) > n {
		entries = entries[:n]
	}
	return entries, nil
}
