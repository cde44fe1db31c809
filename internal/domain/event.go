package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// EventType enumerates every domain event the trivia platform publishes.
type EventType string

const (
	EventAnswerSubmitted        EventType = "answer.submitted"
	EventAnswerSubmissionFailed EventType = "answer.submission.failed"
	EventAchievementCheck       EventType = "achievement.check"
	EventAchievementUnlocked    EventType = "achievement.unlocked"
	EventLeaderboardUpdate      EventType = "leaderboard.update"
	EventQuestionCreated        EventType = "question.created"
	EventQuestionUpdated        EventType = "question.updated"
	EventQuestionDeleted        EventType = "question.deleted"
	EventUserLogin              EventType = "user.login"
	EventUserRoleUpdated        EventType = "user.role.updated"
)

// AllEventTypes returns the full set of known event types.
// Used at startup to verify the subject table is exhaustive.
func AllEventTypes() []EventType {
	return []EventType{
		EventAnswerSubmitted,
		EventAnswerSubmissionFailed,
		EventAchievementCheck,
		EventAchievementUnlocked,
		EventLeaderboardUpdate,
		EventQuestionCreated,
		EventQuestionUpdated,
		EventQuestionDeleted,
		EventUserLogin,
		EventUserRoleUpdated,
	}
}

// Event is the immutable envelope for every message on the bus.
// Consumers must treat Payload as opaque data matching the declared Type.
type Event struct {
	ID            string          `json:"id"`
	Type          EventType       `json:"type"`
	AggregateID   string          `json:"aggregateId"`
	AggregateType string          `json:"aggregateType"`
	Payload       json.RawMessage `json:"payload"`
	Timestamp     time.Time       `json:"timestamp"`
	Version       int             `json:"version"`
	CorrelationID string          `json:"correlationId"`
	CausationID   string          `json:"causationId,omitempty"`
	ServiceID     string          `json:"serviceId"`
}

// NewEvent builds an envelope around payload. An empty correlationID marks a
// root event and gets a fresh ID; child events pass the parent's correlation
// ID plus the parent's event ID as causationID.
func NewEvent(eventType EventType, aggregateID string, payload any, correlationID, causationID, serviceID string) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	return Event{
		ID:            uuid.NewString(),
		Type:          eventType,
		AggregateID:   aggregateID,
		AggregateType: aggregateTypeFor(eventType),
		Payload:       data,
		Timestamp:     time.Now().UTC(),
		Version:       1,
		CorrelationID: correlationID,
		CausationID:   causationID,
		ServiceID:     serviceID,
	}, nil
}

func aggregateTypeFor(eventType EventType) string {
	prefix, _, ok := strings.Cut(string(eventType), ".")
	if !ok {
		return "unknown"
	}
	return prefix
}
