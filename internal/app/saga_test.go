package app_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"quiz-saga-service/internal/app"
	"quiz-saga-service/internal/domain"
	"quiz-saga-service/internal/eventbus"
	"quiz-saga-service/internal/infra/memory"
)

func TestCorrectSubmissionPublishesFanoutInOrder(t *testing.T) {
	ctx := context.Background()
	bus := newRecordingBus()
	stats := memory.NewStatsStore()
	saga := app.NewSaga(bus, stats, nil, nil, "quiz-saga-test", nil)

	result, err := saga.SubmitAnswer(ctx, domain.AnswerSubmission{UserID: 7, QuestionID: 42, IsCorrect: true})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !result.Success || !result.LeaderboardUpdated {
		t.Fatalf("expected successful result with leaderboard update, got %+v", result)
	}

	counter, ok := stats.Counter(7, 42)
	if !ok || counter.CorrectCount != 1 || counter.IncorrectCount != 0 {
		t.Fatalf("expected counter {1,0}, got %+v", counter)
	}

	events := bus.published()
	wantOrder := []domain.EventType{
		domain.EventAnswerSubmitted,
		domain.EventAchievementCheck,
		domain.EventLeaderboardUpdate,
	}
	if len(events) != len(wantOrder) {
		t.Fatalf("expected %d events, got %d: %+v", len(wantOrder), len(events), eventTypes(events))
	}
	for i, want := range wantOrder {
		if events[i].Type != want {
			t.Fatalf("event %d: expected %s, got %s", i, want, events[i].Type)
		}
	}

	root := events[0]
	if root.CorrelationID == "" {
		t.Fatalf("expected non-empty correlationId")
	}
	if root.CausationID != "" {
		t.Fatalf("root event must have no causationId, got %q", root.CausationID)
	}
	if result.CorrelationID != root.CorrelationID {
		t.Fatalf("result correlationId %q != event correlationId %q", result.CorrelationID, root.CorrelationID)
	}
	for _, child := range events[1:] {
		if child.CorrelationID != root.CorrelationID {
			t.Fatalf("child %s has correlationId %q, want %q", child.Type, child.CorrelationID, root.CorrelationID)
		}
		if child.CausationID != root.ID {
			t.Fatalf("child %s has causationId %q, want parent id %q", child.Type, child.CausationID, root.ID)
		}
	}
}

func TestIncorrectSubmissionSkipsFanout(t *testing.T) {
	ctx := context.Background()
	bus := newRecordingBus()
	stats := memory.NewStatsStore()
	saga := app.NewSaga(bus, stats, nil, nil, "quiz-saga-test", nil)

	if _, err := saga.SubmitAnswer(ctx, domain.AnswerSubmission{UserID: 7, QuestionID: 42, IsCorrect: true}); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	bus.reset()

	result, err := saga.SubmitAnswer(ctx, domain.AnswerSubmission{UserID: 7, QuestionID: 42, IsCorrect: false})
	if err != nil {
		t.Fatalf("second submit: %v", err)
	}
	if result.LeaderboardUpdated {
		t.Fatalf("incorrect answer must not update leaderboard")
	}

	counter, _ := stats.Counter(7, 42)
	if counter.CorrectCount != 1 || counter.IncorrectCount != 1 {
		t.Fatalf("expected counter {1,1}, got %+v", counter)
	}

	events := bus.published()
	if len(events) != 1 || events[0].Type != domain.EventAnswerSubmitted {
		t.Fatalf("expected only answer.submitted, got %+v", eventTypes(events))
	}
}

func TestValidationRejectsBeforeAnySideEffect(t *testing.T) {
	ctx := context.Background()
	bus := newRecordingBus()
	stats := memory.NewStatsStore()
	saga := app.NewSaga(bus, stats, nil, nil, "quiz-saga-test", nil)

	_, err := saga.SubmitAnswer(ctx, domain.AnswerSubmission{QuestionID: 42, IsCorrect: true})
	var validationErr *domain.ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(bus.published()) != 0 {
		t.Fatalf("nothing may be published for invalid input")
	}
	if _, ok := stats.Counter(0, 42); ok {
		t.Fatalf("nothing may be written for invalid input")
	}
}

func TestStoreOutagePublishesFailureEvent(t *testing.T) {
	ctx := context.Background()
	bus := newRecordingBus()
	saga := app.NewSaga(bus, failingStats{}, nil, nil, "quiz-saga-test", nil)

	_, err := saga.SubmitAnswer(ctx, domain.AnswerSubmission{UserID: 7, QuestionID: 42, IsCorrect: true})
	var persistenceErr *domain.PersistenceError
	if !errors.As(err, &persistenceErr) {
		t.Fatalf("expected PersistenceError, got %v", err)
	}

	events := bus.published()
	if len(events) != 1 || events[0].Type != domain.EventAnswerSubmissionFailed {
		t.Fatalf("expected only answer.submission.failed, got %+v", eventTypes(events))
	}
	var payload domain.AnswerSubmissionFailedPayload
	if err := json.Unmarshal(events[0].Payload, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.UserID != 7 || payload.QuestionID != 42 {
		t.Fatalf("failure payload must carry original ids, got %+v", payload)
	}
	if payload.CorrelationID == "" {
		t.Fatalf("failure payload must carry correlationId")
	}
}

func TestPublishFailureSurfacesButKeepsWrite(t *testing.T) {
	ctx := context.Background()
	bus := newRecordingBus()
	bus.failOn[domain.EventAnswerSubmitted] = errors.New("bus unreachable")
	stats := memory.NewStatsStore()
	saga := app.NewSaga(bus, stats, nil, nil, "quiz-saga-test", nil)

	_, err := saga.SubmitAnswer(ctx, domain.AnswerSubmission{UserID: 7, QuestionID: 42, IsCorrect: true})
	var publishErr *domain.PublishError
	if !errors.As(err, &publishErr) {
		t.Fatalf("expected PublishError, got %v", err)
	}

	// The durable write is deliberately not rolled back.
	counter, _ := stats.Counter(7, 42)
	if counter.CorrectCount != 1 {
		t.Fatalf("stats write must survive a publish failure, got %+v", counter)
	}

	events := bus.published()
	if len(events) != 1 || events[0].Type != domain.EventAnswerSubmissionFailed {
		t.Fatalf("expected best-effort failure event, got %+v", eventTypes(events))
	}
}

func TestReplayCountsAgain(t *testing.T) {
	ctx := context.Background()
	bus := newRecordingBus()
	stats := memory.NewStatsStore()
	saga := app.NewSaga(bus, stats, nil, nil, "quiz-saga-test", nil)

	submission := domain.AnswerSubmission{UserID: 7, QuestionID: 42, IsCorrect: true}
	first, err := saga.SubmitAnswer(ctx, submission)
	if err != nil {
		t.Fatalf("first submit: %v", err)
	}
	second, err := saga.SubmitAnswer(ctx, submission)
	if err != nil {
		t.Fatalf("second submit: %v", err)
	}

	// At-least-once by contract: replaying the same submission is a new
	// logical attempt, so the counter goes up again.
	counter, _ := stats.Counter(7, 42)
	if counter.CorrectCount != 2 {
		t.Fatalf("expected correctCount 2 after replay, got %+v", counter)
	}
	if first.CorrelationID == second.CorrelationID {
		t.Fatalf("each submission must get its own correlationId")
	}
}

func TestConcurrentSubmissionsSamePair(t *testing.T) {
	ctx := context.Background()
	bus := newRecordingBus()
	stats := memory.NewStatsStore()
	saga := app.NewSaga(bus, stats, nil, nil, "quiz-saga-test", nil)

	const total, correct = 24, 16
	var wg sync.WaitGroup
	for i := 0; i < total; i++ {
		wg.Add(1)
		go func(isCorrect bool) {
			defer wg.Done()
			if _, err := saga.SubmitAnswer(ctx, domain.AnswerSubmission{
				UserID: 7, QuestionID: 42, IsCorrect: isCorrect,
			}); err != nil {
				t.Errorf("submit: %v", err)
			}
		}(i < correct)
	}
	wg.Wait()

	counter, _ := stats.Counter(7, 42)
	if counter.CorrectCount != correct || counter.IncorrectCount != total-correct {
		t.Fatalf("expected {%d,%d}, got %+v", correct, total-correct, counter)
	}
}

func TestEnrichmentFillsMissingMetadata(t *testing.T) {
	ctx := context.Background()
	bus := newRecordingBus()
	saga := app.NewSaga(bus, memory.NewStatsStore(), stubCatalog{info: domain.QuestionInfo{
		ID: 42, Difficulty: "hard", QuestionType: "single_choice",
	}}, nil, "quiz-saga-test", nil)

	if _, err := saga.SubmitAnswer(ctx, domain.AnswerSubmission{UserID: 7, QuestionID: 42, IsCorrect: true}); err != nil {
		t.Fatalf("submit: %v", err)
	}

	var payload domain.AnswerSubmittedPayload
	if err := json.Unmarshal(bus.published()[0].Payload, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.Difficulty != "hard" || payload.QuestionType != "single_choice" {
		t.Fatalf("expected enriched payload, got %+v", payload)
	}
}

func TestEnrichmentTimeoutDegradesEvent(t *testing.T) {
	ctx := context.Background()
	bus := newRecordingBus()
	saga := app.NewSaga(bus, memory.NewStatsStore(), slowCatalog{delay: 200 * time.Millisecond}, nil, "quiz-saga-test", nil)
	saga.SetEnrichTimeout(10 * time.Millisecond)

	result, err := saga.SubmitAnswer(ctx, domain.AnswerSubmission{UserID: 7, QuestionID: 42, IsCorrect: true})
	if err != nil {
		t.Fatalf("enrichment timeout must not fail the submission: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success despite degraded enrichment")
	}

	var payload domain.AnswerSubmittedPayload
	if err := json.Unmarshal(bus.published()[0].Payload, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.Difficulty != "" {
		t.Fatalf("expected degraded payload without difficulty, got %+v", payload)
	}
}

// recordingBus captures published events in order. Publish fails for event
// types listed in failOn; PublishBestEffort drops those silently.
type recordingBus struct {
	mu     sync.Mutex
	events []domain.Event
	failOn map[domain.EventType]error
}

func newRecordingBus() *recordingBus {
	return &recordingBus{failOn: make(map[domain.EventType]error)}
}

func (b *recordingBus) Connect(context.Context) error { return nil }

func (b *recordingBus) Publish(_ context.Context, evt domain.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.failOn[evt.Type]; err != nil {
		return err
	}
	b.events = append(b.events, evt)
	return nil
}

func (b *recordingBus) PublishBestEffort(ctx context.Context, evt domain.Event) {
	_ = b.Publish(ctx, evt)
}

func (b *recordingBus) Subscribe(string, eventbus.Handler) (string, error) {
	return "", nil
}

func (b *recordingBus) Unsubscribe(string) error { return nil }
func (b *recordingBus) Close()                   {}

func (b *recordingBus) published() []domain.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]domain.Event, len(b.events))
	copy(out, b.events)
	return out
}

func (b *recordingBus) reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = nil
}

type failingStats struct{}

func (failingStats) Increment(context.Context, int64, int64, bool) error {
	return errors.New("store outage")
}

func (failingStats) UserStats(context.Context, int64) (domain.UserStats, error) {
	return domain.UserStats{}, errors.New("store outage")
}

func (failingStats) WrongQuestionIDs(context.Context, int64) ([]int64, error) {
	return nil, errors.New("store outage")
}

type stubCatalog struct {
	info domain.QuestionInfo
}

func (c stubCatalog) Question(context.Context, int64) (domain.QuestionInfo, error) {
	return c.info, nil
}

type slowCatalog struct {
	delay time.Duration
}

func (c slowCatalog) Question(ctx context.Context, _ int64) (domain.QuestionInfo, error) {
	select {
	case <-time.After(c.delay):
		return domain.QuestionInfo{ID: 42, Difficulty: "hard"}, nil
	case <-ctx.Done():
		return domain.QuestionInfo{}, ctx.Err()
	}
}

func eventTypes(events []domain.Event) []domain.EventType {
	types := make([]domain.EventType, len(events))
	for i, evt := range events {
		types[i] = evt.Type
	}
	return types
}
