package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"quiz-saga-service/internal/domain"
)

type statsKey struct {
	userID     int64
	questionID int64
}

// StatsStore is an in-memory stats projection used when no Postgres URL is
// configured. The single mutex serializes concurrent increments for the
// same (user, question) pair, mirroring the row lock the SQL upsert implies.
type StatsStore struct {
	mu       sync.Mutex
	counters map[statsKey]*domain.StatsCounter
}

func NewStatsStore() *StatsStore {
	return &StatsStore{counters: make(map[statsKey]*domain.StatsCounter)}
}

func (s *StatsStore) Increment(_ context.Context, userID, questionID int64, isCorrect bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := statsKey{userID: userID, questionID: questionID}
	counter, ok := s.counters[key]
	if !ok {
		counter = &domain.StatsCounter{UserID: userID, QuestionID: questionID}
		s.counters[key] = counter
	}
	if isCorrect {
		counter.CorrectCount++
	} else {
		counter.IncorrectCount++
	}
	return nil
}

func (s *StatsStore) UserStats(_ context.Context, userID int64) (domain.UserStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var stats domain.UserStats
	stats.Questions = []domain.QuestionStats{}
	for key, counter := range s.counters {
		if key.userID != userID {
			continue
		}
		stats.Overall.TotalCorrect += counter.CorrectCount
		stats.Overall.TotalIncorrect += counter.IncorrectCount
		stats.Questions = append(stats.Questions, domain.QuestionStats{
			QuestionID:     key.questionID,
			CorrectCount:   counter.CorrectCount,
			IncorrectCount: counter.IncorrectCount,
			Accuracy:       accuracy(counter.CorrectCount, counter.CorrectCount+counter.IncorrectCount),
		})
	}
	sort.Slice(stats.Questions, func(i, j int) bool {
		return stats.Questions[i].QuestionID < stats.Questions[j].QuestionID
	})
	stats.Overall.TotalAttempts = stats.Overall.TotalCorrect + stats.Overall.TotalIncorrect
	stats.Overall.Accuracy = accuracy(stats.Overall.TotalCorrect, stats.Overall.TotalAttempts)
	return stats, nil
}

func (s *StatsStore) WrongQuestionIDs(_ context.Context, userID int64) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := []int64{}
	for key, counter := range s.counters {
		if key.userID == userID && counter.IncorrectCount > 0 {
			ids = append(ids, key.questionID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// Counter returns a copy of one counter. Test helper.
func (s *StatsStore) Counter(userID, questionID int64) (domain.StatsCounter, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counter, ok := s.counters[statsKey{userID: userID, questionID: questionID}]
	if !ok {
		return domain.StatsCounter{}, false
	}
	return *counter, true
}

func accuracy(correct, total int64) string {
	if total == 0 {
		return "0.00"
	}
	return fmt.Sprintf("%.2f", 100*float64(correct)/float64(total))
}
