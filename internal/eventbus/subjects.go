package eventbus

import (
	"fmt"

	"quiz-saga-service/internal/domain"
)

// subjects is the static event-type → subject table. Subject names follow
// the canonical dot-separated domain.action convention; the older
// answer_submission.failed spelling is intentionally not supported.
var subjects = map[domain.EventType]string{
	domain.EventAnswerSubmitted:        "answer.submitted",
	domain.EventAnswerSubmissionFailed: "answer.submission.failed",
	domain.EventAchievementCheck:       "achievement.check",
	domain.EventAchievementUnlocked:    "achievement.unlocked",
	domain.EventLeaderboardUpdate:      "leaderboard.update",
	domain.EventQuestionCreated:        "question.created",
	domain.EventQuestionUpdated:        "question.updated",
	domain.EventQuestionDeleted:        "question.deleted",
	domain.EventUserLogin:              "user.login",
	domain.EventUserRoleUpdated:        "user.role.updated",
}

// Subject resolves the wire subject for an event type.
func Subject(eventType domain.EventType) (string, error) {
	subject, ok := subjects[eventType]
	if !ok {
		return "", fmt.Errorf("no subject mapped for event type %q", eventType)
	}
	return subject, nil
}

// ValidateSubjects verifies every known event type has a subject. Called at
// startup so an unmapped type fails fast instead of surfacing as an
// undefined subject at publish time.
func ValidateSubjects() error {
	for _, eventType := range domain.AllEventTypes() {
		if _, err := Subject(eventType); err != nil {
			return err
		}
	}
	return nil
}

// CompensationSubject returns the per-correlation subject reserved for saga
// compensation acknowledgments from downstream reactors.
func CompensationSubject(correlationID string) string {
	return "compensation." + correlationID
}
