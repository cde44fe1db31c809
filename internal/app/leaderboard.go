package app

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"quiz-saga-service/internal/domain"
	"quiz-saga-service/internal/eventbus"

	"go.uber.org/zap"
)

// LeaderboardStore ranks users per quiz mode.
type LeaderboardStore interface {
	IncrementScore(ctx context.Context, quizModeID string, userID int64) (int64, error)
	Top(ctx context.Context, quizModeID string, n int) ([]domain.LeaderboardEntry, error)
}

// LeaderboardReactor consumes leaderboard.update, bumps the user's score,
// and recomputes the top-N ranking for the referenced quiz mode. Fresh
// snapshots are broadcast to in-process subscribers (the websocket stream).
type LeaderboardReactor struct {
	bus    eventbus.Bus
	store  LeaderboardStore
	topN   int
	logger *zap.Logger
	subID  string

	mu          sync.Mutex
	subscribers map[chan domain.Leaderboard]struct{}
}

func NewLeaderboardReactor(bus eventbus.Bus, store LeaderboardStore, topN int, logger *zap.Logger) *LeaderboardReactor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if topN <= 0 {
		topN = 10
	}
	return &LeaderboardReactor{
		bus:         bus,
		store:       store,
		topN:        topN,
		logger:      logger,
		subscribers: make(map[chan domain.Leaderboard]struct{}),
	}
}

func (r *LeaderboardReactor) Start() error {
	subject, err := eventbus.Subject(domain.EventLeaderboardUpdate)
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

func (r *LeaderboardReactor) Stop() {
	if r.subID != "" {
		_ = r.bus.Unsubscribe(r.subID)
	}
}

// Snapshot returns the current top-N for a quiz mode.
func (r *LeaderboardReactor) Snapshot(ctx context.Context, quizModeID string) (domain.Leaderboard, error) {
	entries, err := r.store.Top(ctx, quizModeID, r.topN)
	if err != nil {
		return domain.Leaderboard{}, err
	}
	return domain.Leaderboard{
		QuizModeID: quizModeID,
		Entries:    entries,
		UpdatedAt:  time.Now().UTC(),
	}, nil
}

// Subscribe returns a channel receiving leaderboard snapshots. The caller
// must invoke the cancel function to avoid leaks.
func (r *LeaderboardReactor) Subscribe() (<-chan domain.Leaderboard, func()) {
	ch := make(chan domain.Leaderboard, 8)

	r.mu.Lock()
	r.subscribers[ch] = struct{}{}
	r.mu.Unlock()

	cancel := func() {
		r.mu.Lock()
		if _, ok := r.subscribers[ch]; ok {
			delete(r.subscribers, ch)
			close(ch)
		}
		r.mu.Unlock()
	}
	return ch, cancel
}

func (r *LeaderboardReactor) handle(ctx context.Context, evt domain.Event) {
	var payload domain.LeaderboardUpdatePayload
	if err := json.Unmarshal(evt.Payload, &payload); err != nil {
		r.logger.Error("skipping malformed leaderboard.update payload",
			zap.String("eventId", evt.ID), zap.Error(err))
		return
	}
	if payload.UserID <= 0 {
		r.logger.Warn("skipping leaderboard update for invalid userId",
			zap.Int64("userId", payload.UserID))
		return
	}

	score, err := r.store.IncrementScore(ctx, payload.QuizModeID, payload.UserID)
	if err != nil {
		r.logger.Error("leaderboard increment failed",
			zap.Int64("userId", payload.UserID), zap.Error(err))
		return
	}
	r.logger.Debug("leaderboard score updated",
		zap.Int64("userId", payload.UserID),
		zap.String("quizModeId", payload.QuizModeID),
		zap.Int64("score", score),
		zap.String("correlationId", evt.CorrelationID))

	snapshot, err := r.Snapshot(ctx, payload.QuizModeID)
	if err != nil {
		r.logger.Error("leaderboard snapshot failed", zap.Error(err))
		return
	}
	r.broadcast(snapshot)
}

func (r *LeaderboardReactor) broadcast(lb domain.Leaderboard) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for ch := range r.subscribers {
		select {
		case ch <- lb:
		default:
			// Slow subscriber: replace its stale snapshot with the fresh one.
			select {
			case <-ch:
			default:
			}
			ch <- lb
		}
	}
}
