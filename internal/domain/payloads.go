package domain

// Payload structs for the events this service publishes or consumes.
// JSON field names match the platform wire contract (camelCase).

type AnswerSubmittedPayload struct {
	UserID           int64  `json:"userId"`
	QuestionID       int64  `json:"questionId"`
	SelectedChoiceID *int64 `json:"selectedChoiceId,omitempty"`
	QuizModeID       string `json:"quizModeId,omitempty"`
	IsCorrect        bool   `json:"isCorrect"`
	Timestamp        string `json:"timestamp"`
	CorrelationID    string `json:"correlationId"`
	QuestionType     string `json:"questionType,omitempty"`
	Practical        *bool  `json:"practical,omitempty"`
	Difficulty       string `json:"difficulty,omitempty"`
}

type AnswerSubmissionFailedPayload struct {
	UserID        int64  `json:"userId"`
	QuestionID    int64  `json:"questionId"`
	Error         string `json:"error"`
	CorrelationID string `json:"correlationId"`
}

type AchievementCheckPayload struct {
	UserID        int64  `json:"userId"`
	QuestionID    int64  `json:"questionId"`
	QuizModeID    string `json:"quizModeId,omitempty"`
	CorrelationID string `json:"correlationId"`
}

type AchievementUnlockedPayload struct {
	UserID           int64  `json:"userId"`
	AchievementID    int64  `json:"achievementId"`
	AchievementTitle string `json:"achievementTitle"`
}

type LeaderboardUpdatePayload struct {
	UserID        int64  `json:"userId"`
	QuizModeID    string `json:"quizModeId,omitempty"`
	CorrelationID string `json:"correlationId"`
}
