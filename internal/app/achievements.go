package app

import (
	"context"
	"encoding/json"
	"strconv"

	"quiz-saga-service/internal/domain"
	"quiz-saga-service/internal/eventbus"

	"go.uber.org/zap"
)

// AchievementStore holds the answer projection and the set of already
// awarded achievements. TryAward must be first-writer-wins so an
// achievement unlocks at most once per user.
type AchievementStore interface {
	RecordAnswer(ctx context.Context, userID int64, isCorrect bool, practical bool, difficulty string) (domain.UserTally, error)
	TryAward(ctx context.Context, userID, achievementID int64) (bool, error)
}

type achievementRule struct {
	achievement domain.Achievement
	unlocked    func(tally domain.UserTally) bool
}

var achievementRules = []achievementRule{
	{
		achievement: domain.Achievement{ID: 1, Title: "First Steps"},
		unlocked:    func(t domain.UserTally) bool { return t.CorrectAnswers >= 1 },
	},
	{
		achievement: domain.Achievement{ID: 2, Title: "On a Roll"},
		unlocked:    func(t domain.UserTally) bool { return t.CorrectAnswers >= 10 },
	},
	{
		achievement: domain.Achievement{ID: 3, Title: "Quiz Master"},
		unlocked:    func(t domain.UserTally) bool { return t.CorrectAnswers >= 50 },
	},
	{
		achievement: domain.Achievement{ID: 4, Title: "Hands On"},
		unlocked:    func(t domain.UserTally) bool { return t.PracticalCorrect >= 10 },
	},
	{
		achievement: domain.Achievement{ID: 5, Title: "Hard Mode"},
		unlocked:    func(t domain.UserTally) bool { return t.HardCorrect >= 10 },
	},
}

// AchievementReactor consumes answer.submitted, folds each answer into the
// user's projection, and publishes achievement.unlocked for every rule that
// newly fires. It runs on its own subscription; a bad message is logged and
// skipped, never fatal.
type AchievementReactor struct {
	bus       eventbus.Bus
	store     AchievementStore
	serviceID string
	logger    *zap.Logger
	subID     string
}

func NewAchievementReactor(bus eventbus.Bus, store AchievementStore, serviceID string, logger *zap.Logger) *AchievementReactor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AchievementReactor{bus: bus, store: store, serviceID: serviceID, logger: logger}
}

func (r *AchievementReactor) Start() error {
	subject, err := eventbus.Subject(domain.EventAnswerSubmitted)
	if err != nil {
		return err
	}
	id, err := r.bus.Subscribe(subject, r.handle)
	if err != nil {
		return err
	}
	r.subID = id
	return nil
}

func (r *AchievementReactor) Stop() {
	if r.subID != "" {
		_ = r.bus.Unsubscribe(r.subID)
	}
}

func (r *AchievementReactor) handle(ctx context.Context, evt domain.Event) {
	var payload domain.AnswerSubmittedPayload
	if err := json.Unmarshal(evt.Payload, &payload); err != nil {
		r.logger.Error("skipping malformed answer.submitted payload",
			zap.String("eventId", evt.ID), zap.Error(err))
		return
	}
	if payload.UserID <= 0 || payload.QuestionID <= 0 {
		r.logger.Warn("skipping achievement check for invalid ids",
			zap.Int64("userId", payload.UserID), zap.Int64("questionId", payload.QuestionID))
		return
	}

	practical := payload.Practical != nil && *payload.Practical
	tally, err := r.store.RecordAnswer(ctx, payload.UserID, payload.IsCorrect, practical, payload.Difficulty)
	if err != nil {
		r.logger.Error("recording answer projection failed",
			zap.Int64("userId", payload.UserID), zap.Error(err))
		return
	}
	if !payload.IsCorrect {
		return
	}

	for _, rule := range achievementRules {
		if !rule.unlocked(tally) {
			continue
		}
		first, err := r.store.TryAward(ctx, payload.UserID, rule.achievement.ID)
		if err != nil {
			r.logger.Error("award failed",
				zap.Int64("achievementId", rule.achievement.ID), zap.Error(err))
			continue
		}
		if !first {
			continue
		}
		r.announce(ctx, evt, payload.UserID, rule.achievement)
	}
}

func (r *AchievementReactor) announce(ctx context.Context, cause domain.Event, userID int64, achievement domain.Achievement) {
	unlocked, err := domain.NewEvent(
		domain.EventAchievementUnlocked,
		strconv.FormatInt(userID, 10),
		domain.AchievementUnlockedPayload{
			UserID:           userID,
			AchievementID:    achievement.ID,
			AchievementTitle: achievement.Title,
		},
		cause.CorrelationID, cause.ID, r.serviceID)
	if err != nil {
		r.logger.Error("building achievement.unlocked failed", zap.Error(err))
		return
	}
	if err := r.bus.Publish(ctx, unlocked); err != nil {
		r.logger.Error("publishing achievement.unlocked failed",
			zap.Int64("achievementId", achievement.ID), zap.Error(err))
		return
	}
	r.logger.Info("achievement unlocked",
		zap.Int64("userId", userID), zap.String("title", achievement.Title))
}
