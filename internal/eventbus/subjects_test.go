package eventbus

import (
	"strings"
	"testing"

	"quiz-saga-service/internal/domain"
)

func TestEveryEventTypeHasSubject(t *testing.T) {
	if err := ValidateSubjects(); err != nil {
		t.Fatalf("subject table incomplete: %v", err)
	}
	for _, eventType := range domain.AllEventTypes() {
		subject, err := Subject(eventType)
		if err != nil {
			t.Fatalf("subject for %s: %v", eventType, err)
		}
		if strings.Contains(subject, "_") {
			t.Fatalf("subject %q uses underscores, want dot-separated", subject)
		}
	}
}

func TestUnknownEventTypeFails(t *testing.T) {
	if _, err := Subject(domain.EventType("bogus.event")); err == nil {
		t.Fatalf("expected error for unmapped event type")
	}
}

func TestCompensationSubject(t *testing.T) {
	got := CompensationSubject("abc-123")
	if got != "compensation.abc-123" {
		t.Fatalf("got %q", got)
	}
}
