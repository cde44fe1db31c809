package domain

import "time"

// AnswerSubmission is the saga input: one user answering one question.
// Question metadata fields are optional hints from the caller; missing ones
// are filled from the question catalog when it is reachable.
type AnswerSubmission struct {
	UserID           int64  `json:"userId"`
	QuestionID       int64  `json:"questionId"`
	SelectedChoiceID *int64 `json:"selectedChoiceId,omitempty"`
	QuizModeID       string `json:"quizModeId,omitempty"`
	IsCorrect        bool   `json:"isCorrect"`
	QuestionType     string `json:"questionType,omitempty"`
	Practical        *bool  `json:"practical,omitempty"`
	Difficulty       string `json:"difficulty,omitempty"`
}

// Validate rejects malformed submissions before anything is written or published.
func (s AnswerSubmission) Validate() error {
	if s.UserID <= 0 {
		return &ValidationError{Reason: "userId must be a positive integer"}
	}
	if s.QuestionID <= 0 {
		return &ValidationError{Reason: "questionId must be a positive integer"}
	}
	return nil
}

// SubmissionResult is what the caller gets back. Success means the stats
// write and the initial announcements both went through; downstream
// processing (achievements, leaderboard) happens asynchronously.
type SubmissionResult struct {
	Success             bool          `json:"success"`
	CorrelationID       string        `json:"correlationId"`
	AwardedAchievements []Achievement `json:"awardedAchievements"`
	LeaderboardUpdated  bool          `json:"leaderboardUpdated"`
}

// StatsCounter holds the per-(user, question) answer tally.
// Counters only ever go up; replaying a submission counts again by design.
type StatsCounter struct {
	UserID         int64 `json:"userId"`
	QuestionID     int64 `json:"questionId"`
	CorrectCount   int64 `json:"correctCount"`
	IncorrectCount int64 `json:"incorrectCount"`
}

// QuestionStats is the per-question slice of a user's stats report.
type QuestionStats struct {
	QuestionID     int64  `json:"questionId"`
	CorrectCount   int64  `json:"correctCount"`
	IncorrectCount int64  `json:"incorrectCount"`
	Accuracy       string `json:"accuracyPercentage"`
}

// OverallStats aggregates every counter a user has.
type OverallStats struct {
	TotalCorrect   int64  `json:"totalCorrect"`
	TotalIncorrect int64  `json:"totalIncorrect"`
	TotalAttempts  int64  `json:"totalAttempts"`
	Accuracy       string `json:"overallAccuracy"`
}

// UserStats is the payload of the user stats reporting endpoint.
type UserStats struct {
	Overall   OverallStats    `json:"overall"`
	Questions []QuestionStats `json:"questions"`
}

// QuestionInfo is the metadata the question catalog returns for enrichment.
type QuestionInfo struct {
	ID           int64  `json:"id"`
	Question     string `json:"question"`
	Topic        string `json:"topic,omitempty"`
	Difficulty   string `json:"difficulty,omitempty"`
	QuestionType string `json:"questionType,omitempty"`
	Practical    *bool  `json:"practical,omitempty"`
}

// Achievement is a badge awarded to a user.
type Achievement struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

// UserTally is the running answer projection the achievement rules read.
type UserTally struct {
	UserID           int64
	TotalAnswers     int64
	CorrectAnswers   int64
	PracticalCorrect int64
	HardCorrect      int64
}

// LeaderboardEntry is one row of a quiz-mode ranking.
type LeaderboardEntry struct {
	UserID int64 `json:"userId"`
	Score  int64 `json:"score"`
}

// Leaderboard is the top-N ranking for one quiz mode.
type Leaderboard struct {
	QuizModeID string             `json:"quizModeId"`
	Entries    []LeaderboardEntry `json:"entries"`
	UpdatedAt  time.Time          `json:"updatedAt"`
}
