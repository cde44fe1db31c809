package app

import (
	"context"
	"strconv"
	"time"

	"quiz-saga-service/internal/domain"
	"quiz-saga-service/internal/eventbus"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultEnrichTimeout bounds the synchronous question-catalog lookup.
// On timeout the saga proceeds with a degraded event, never a failure.
const DefaultEnrichTimeout = 2 * time.Second

// StatsStore is the durable projection of per-user answer counters. It is
// the only shared mutable resource in the saga; Increment must be an
// atomic upsert, never read-then-write.
type StatsStore interface {
	Increment(ctx context.Context, userID, questionID int64, isCorrect bool) error
	UserStats(ctx context.Context, userID int64) (domain.UserStats, error)
	WrongQuestionIDs(ctx context.Context, userID int64) ([]int64, error)
}

// QuestionCatalog looks up question metadata for event enrichment.
type QuestionCatalog interface {
	Question(ctx context.Context, questionID int64) (domain.QuestionInfo, error)
}

// EventLog durably records published events for replay and audit.
type EventLog interface {
	Append(ctx context.Context, evt domain.Event) error
}

// Saga orchestrates the answer-submission workflow: durable stats write,
// then asynchronous fan-out over the bus, with no distributed transaction.
// Catalog and eventLog may be nil; both are best-effort.
type Saga struct {
	bus           eventbus.Bus
	stats         StatsStore
	catalog       QuestionCatalog
	eventLog      EventLog
	serviceID     string
	enrichTimeout time.Duration
	logger        *zap.Logger
}

func NewSaga(bus eventbus.Bus, stats StatsStore, catalog QuestionCatalog, eventLog EventLog, serviceID string, logger *zap.Logger) *Saga {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Saga{
		bus:           bus,
		stats:         stats,
		catalog:       catalog,
		eventLog:      eventLog,
		serviceID:     serviceID,
		enrichTimeout: DefaultEnrichTimeout,
		logger:        logger,
	}
}

// SetEnrichTimeout overrides the catalog lookup bound.
func (s *Saga) SetEnrichTimeout(d time.Duration) {
	if d > 0 {
		s.enrichTimeout = d
	}
}

// SubmitAnswer runs the saga for one submission.
//
// The stats increment is the only step with a durability guarantee and must
// complete before anything is published. Publish failures after that point
// surface as errors even though the write stuck: local state is then ahead
// of the announcement and the caller retries, which re-counts the answer.
// That at-least-once semantic is the documented contract, not a bug.
func (s *Saga) SubmitAnswer(ctx context.Context, sub domain.AnswerSubmission) (domain.SubmissionResult, error) {
	if err := sub.Validate(); err != nil {
		return domain.SubmissionResult{}, err
	}

	correlationID := uuid.NewString()
	log := s.logger.With(
		zap.String("correlationId", correlationID),
		zap.Int64("userId", sub.UserID),
		zap.Int64("questionId", sub.QuestionID))
	log.Debug("starting answer submission saga")

	if err := s.stats.Increment(ctx, sub.UserID, sub.QuestionID, sub.IsCorrect); err != nil {
		perr := &domain.PersistenceError{Err: err}
		log.Error("stats write failed, aborting submission", zap.Error(err))
		s.reportFailure(ctx, sub, correlationID, perr)
		return domain.SubmissionResult{CorrelationID: correlationID}, perr
	}

	payload := s.enrichedPayload(ctx, sub, correlationID, log)
	submitted, err := domain.NewEvent(
		domain.EventAnswerSubmitted,
		strconv.FormatInt(sub.UserID, 10),
		payload, correlationID, "", s.serviceID)
	if err != nil {
		// The durable write already happened, so this failure follows the
		// same path as a rejected publish.
		perr := &domain.PublishError{Subject: string(domain.EventAnswerSubmitted), Err: err}
		log.Error("failed to build submission event, stats already recorded", zap.Error(err))
		s.reportFailure(ctx, sub, correlationID, perr)
		return domain.SubmissionResult{CorrelationID: correlationID}, perr
	}
	if err := s.publish(ctx, submitted); err != nil {
		log.Error("failed to announce submission, stats already recorded", zap.Error(err))
		s.reportFailure(ctx, sub, correlationID, err)
		return domain.SubmissionResult{CorrelationID: correlationID}, err
	}

	if sub.IsCorrect {
		if err := s.fanOut(ctx, sub, submitted); err != nil {
			log.Error("fan-out failed, stats already recorded", zap.Error(err))
			s.reportFailure(ctx, sub, correlationID, err)
			return domain.SubmissionResult{CorrelationID: correlationID}, err
		}
	}

	log.Info("answer submission saga completed")
	return domain.SubmissionResult{
		Success:             true,
		CorrelationID:       correlationID,
		AwardedAchievements: []domain.Achievement{},
		LeaderboardUpdated:  sub.IsCorrect,
	}, nil
}

// fanOut emits achievement.check then leaderboard.update, both children of
// the answer.submitted event. Emission order within one submission is
// fixed; nothing is guaranteed across submissions.
func (s *Saga) fanOut(ctx context.Context, sub domain.AnswerSubmission, parent domain.Event) error {
	check, err := domain.NewEvent(
		domain.EventAchievementCheck,
		strconv.FormatInt(sub.UserID, 10),
		domain.AchievementCheckPayload{
			UserID:        sub.UserID,
			QuestionID:    sub.QuestionID,
			QuizModeID:    sub.QuizModeID,
			CorrelationID: parent.CorrelationID,
		},
		parent.CorrelationID, parent.ID, s.serviceID)
	if err != nil {
		return &domain.PublishError{Subject: string(domain.EventAchievementCheck), Err: err}
	}
	if err := s.publish(ctx, check); err != nil {
		return err
	}

	update, err := domain.NewEvent(
		domain.EventLeaderboardUpdate,
		strconv.FormatInt(sub.UserID, 10),
		domain.LeaderboardUpdatePayload{
			UserID:        sub.UserID,
			QuizModeID:    sub.QuizModeID,
			CorrelationID: parent.CorrelationID,
		},
		parent.CorrelationID, parent.ID, s.serviceID)
	if err != nil {
		return &domain.PublishError{Subject: string(domain.EventLeaderboardUpdate), Err: err}
	}
	return s.publish(ctx, update)
}

func (s *Saga) publish(ctx context.Context, evt domain.Event) error {
	subject, err := eventbus.Subject(evt.Type)
	if err != nil {
		return err
	}
	if err := s.bus.Publish(ctx, evt); err != nil {
		return &domain.PublishError{Subject: subject, Err: err}
	}
	if s.eventLog != nil {
		if err := s.eventLog.Append(ctx, evt); err != nil {
			s.logger.Warn("event log append failed",
				zap.String("eventId", evt.ID), zap.Error(err))
		}
	}
	return nil
}

// reportFailure emits answer.submission.failed for observability. It is
// telemetry: if the bus itself is down this event is dropped too.
func (s *Saga) reportFailure(ctx context.Context, sub domain.AnswerSubmission, correlationID string, cause error) {
	evt, err := domain.NewEvent(
		domain.EventAnswerSubmissionFailed,
		strconv.FormatInt(sub.UserID, 10),
		domain.AnswerSubmissionFailedPayload{
			UserID:        sub.UserID,
			QuestionID:    sub.QuestionID,
			Error:         cause.Error(),
			CorrelationID: correlationID,
		},
		correlationID, "", s.serviceID)
	if err != nil {
		s.logger.Warn("could not build failure event", zap.Error(err))
		return
	}
	s.bus.PublishBestEffort(ctx, evt)
}

// enrichedPayload fills question metadata from the catalog under a bounded
// timeout. Caller-provided fields win; lookup failure degrades the event.
func (s *Saga) enrichedPayload(ctx context.Context, sub domain.AnswerSubmission, correlationID string, log *zap.Logger) domain.AnswerSubmittedPayload {
	payload := domain.AnswerSubmittedPayload{
		UserID:           sub.UserID,
		QuestionID:       sub.QuestionID,
		SelectedChoiceID: sub.SelectedChoiceID,
		QuizModeID:       sub.QuizModeID,
		IsCorrect:        sub.IsCorrect,
		Timestamp:        time.Now().UTC().Format(time.RFC3339),
		CorrelationID:    correlationID,
		QuestionType:     sub.QuestionType,
		Practical:        sub.Practical,
		Difficulty:       sub.Difficulty,
	}
	if s.catalog == nil {
		return payload
	}

	lookupCtx, cancel := context.WithTimeout(ctx, s.enrichTimeout)
	defer cancel()

	info, err := s.catalog.Question(lookupCtx, sub.QuestionID)
	if err != nil {
		log.Debug("catalog lookup failed, publishing degraded event", zap.Error(err))
		return payload
	}
	if payload.QuestionType == "" {
		payload.QuestionType = info.QuestionType
	}
	if payload.Difficulty == "" {
		payload.Difficulty = info.Difficulty
	}
	if payload.Practical == nil {
		payload.Practical = info.Practical
	}
	return payload
}
