package memory

import (
	"context"
	"sync"

	"quiz-saga-service/internal/domain"
)

// AchievementStore tracks the per-user answer projection the achievement
// reactor evaluates its rules against, plus which achievements were already
// awarded so each one fires at most once per user.
type AchievementStore struct {
	mu      sync.Mutex
	tallies map[int64]*domain.UserTally
	awarded map[int64]map[int64]struct{} // userID -> achievementID
}

func NewAchievementStore() *AchievementStore {
	return &AchievementStore{
		tallies: make(map[int64]*domain.UserTally),
		awarded: make(map[int64]map[int64]struct{}),
	}
}

// RecordAnswer folds one answer into the user's tally and returns a copy of
// the updated tally.
func (s *AchievementStore) RecordAnswer(_ context.Context, userID int64, isCorrect bool, practical bool, difficulty string) (domain.UserTally, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tally, ok := s.tallies[userID]
	if !ok {
		tally = &domain.UserTally{UserID: userID}
		s.tallies[userID] = tally
	}
	tally.TotalAnswers++
	if isCorrect {
		tally.CorrectAnswers++
		if practical {
			tally.PracticalCorrect++
		}
		if difficulty == "hard" {
			tally.HardCorrect++
		}
	}
	return *tally, nil
}

// TryAward marks an achievement as awarded and reports whether this call
// was the first to do so.
func (s *AchievementStore) TryAward(_ context.Context, userID, achievementID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	userAwards, ok := s.awarded[userID]
	if !ok {
		userAwards = make(map[int64]struct{})
		s.awarded[userID] = userAwards
	}
	if _, done := userAwards[achievementID]; done {
		return false, nil
	}
	userAwards[achievementID] = struct{}{}
	return true, nil
}
