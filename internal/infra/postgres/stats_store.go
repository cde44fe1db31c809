package postgres

import (
	"context"
	"fmt"

	"quiz-saga-service/internal/domain"

	"github.com/jackc/pgx/v4/pgxpool"
)

// StatsStore is the durable stats projection backed by Postgres. The upsert
// increments counters on conflict instead of overwriting, so concurrent
// submissions for the same (user, question) pair serialize on the row lock
// and no update is lost.
type StatsStore struct {
	pool *pgxpool.Pool
}

func NewStatsStore(pool *pgxpool.Pool) *StatsStore {
	return &StatsStore{pool: pool}
}

func (s *StatsStore) Increment(ctx context.Context, userID, questionID int64, isCorrect bool) error {
	correct, incorrect := 0, 1
	if isCorrect {
		correct, incorrect = 1, 0
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO user_question_stats (user_id, question_id, correct_count, incorrect_count)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, question_id)
		DO UPDATE SET
			correct_count = user_question_stats.correct_count + EXCLUDED.correct_count,
			incorrect_count = user_question_stats.incorrect_count + EXCLUDED.incorrect_count`,
		userID, questionID, correct, incorrect)
	if err != nil {
		return fmt.Errorf("increment stats: %w", err)
	}
	return nil
}

func (s *StatsStore) UserStats(ctx context.Context, userID int64) (domain.UserStats, error) {
	var stats domain.UserStats
	stats.Questions = []domain.QuestionStats{}

	err := s.pool.QueryRow(ctx, `
		SELECT
			COALESCE(SUM(correct_count), 0),
			COALESCE(SUM(incorrect_count), 0),
			COALESCE(ROUND(100.0 * SUM(correct_count) /
				NULLIF(SUM(correct_count + incorrect_count), 0), 2)::text, '0.00')
		FROM user_question_stats
		WHERE user_id = $1`, userID).
		Scan(&stats.Overall.TotalCorrect, &stats.Overall.TotalIncorrect, &stats.Overall.Accuracy)
	if err != nil {
		return domain.UserStats{}, fmt.Errorf("load overall stats: %w", err)
	}
	stats.Overall.TotalAttempts = stats.Overall.TotalCorrect + stats.Overall.TotalIncorrect

	rows, err := s.pool.Query(ctx, `
		SELECT
			question_id,
			correct_count,
			incorrect_count,
			COALESCE(ROUND(100.0 * correct_count /
				NULLIF(correct_count + incorrect_count, 0), 2)::text, '0.00')
		FROM user_question_stats
		WHERE user_id = $1
		ORDER BY question_id`, userID)
	if err != nil {
		return domain.UserStats{}, fmt.Errorf("load question stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var qs domain.QuestionStats
		if err := rows.Scan(&qs.QuestionID, &qs.CorrectCount, &qs.IncorrectCount, &qs.Accuracy); err != nil {
			return domain.UserStats{}, fmt.Errorf("scan question stats: %w", err)
		}
		stats.Questions = append(stats.Questions, qs)
	}
	if err := rows.Err(); err != nil {
		return domain.UserStats{}, fmt.Errorf("iterate question stats: %w", err)
	}
	return stats, nil
}

func (s *StatsStore) WrongQuestionIDs(ctx context.Context, userID int64) ([]int64, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT question_id
		FROM user_question_stats
		WHERE user_id = $1 AND incorrect_count > 0
		ORDER BY question_id`, userID)
	if err != nil {
		return nil, fmt.Errorf("load wrong questions: %w", err)
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan wrong question: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
