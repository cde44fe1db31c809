package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"quiz-saga-service/internal/app"
	"quiz-saga-service/internal/domain"
	"quiz-saga-service/internal/eventbus"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// WSHandler streams live leaderboard snapshots and achievement.unlocked
// notifications to connected clients.
type WSHandler struct {
	leaderboard *app.LeaderboardReactor
	bus         eventbus.Bus
	upgrader    websocket.Upgrader
	logger      *zap.Logger
}

func NewWSHandler(leaderboard *app.LeaderboardReactor, bus eventbus.Bus, logger *zap.Logger) *WSHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WSHandler{
		leaderboard: leaderboard,
		bus:         bus,
		logger:      logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

// ServeWS upgrades the request and streams updates until the client goes
// away. ?quizModeId= selects the leaderboard; ?userId= additionally filters
// achievement notifications to that user.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	quizModeID := r.URL.Query().Get("quizModeId")
	userFilter := r.URL.Query().Get("userId")

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	// send is never closed: shutdown is signaled through closeSignals, so a
	// goroutine caught mid-send can never hit a closed channel.
	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})

	// Single writer goroutine; Gorilla connections do not allow concurrent writes.
	go func() {
		defer close(writerDone)
		for {
			select {
			case msg := <-send:
				if err := conn.WriteJSON(msg); err != nil {
					h.logger.Debug("ws write error", zap.Error(err))
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	if snapshot, err := h.leaderboard.Snapshot(r.Context(), quizModeID); err == nil {
		send <- outboundMessage[any]{Type: "leaderboard", Payload: snapshot}
	}

	updates, cancelUpdates := h.leaderboard.Subscribe()
	defer cancelUpdates()

	updatesDone := make(chan struct{})
	go func() {
		defer close(updatesDone)
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}
				if update.QuizModeID != quizModeID {
					continue
				}
				select {
				case send <- outboundMessage[any]{Type: "leaderboard", Payload: update}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	var achievementSub string
	unlockedSubject, err := eventbus.Subject(domain.EventAchievementUnlocked)
	if err == nil {
		subID, subErr := h.bus.Subscribe(unlockedSubject, func(_ context.Context, evt domain.Event) {
			var payload domain.AchievementUnlockedPayload
			if err := json.Unmarshal(evt.Payload, &payload); err != nil {
				return
			}
			if userFilter != "" && userFilter != strconv.FormatInt(payload.UserID, 10) {
				return
			}
			select {
			case send <- outboundMessage[any]{Type: "achievement", Payload: payload}:
			case <-closeSignals:
			}
		})
		if subErr != nil {
			h.logger.Warn("achievement stream unavailable", zap.Error(subErr))
		} else {
			achievementSub = subID
		}
	}

	// Reader loop: clients send nothing meaningful; returning on error is
	// how we notice the peer is gone.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	if achievementSub != "" {
		_ = h.bus.Unsubscribe(achievementSub)
	}
	close(closeSignals)
	<-updatesDone
	<-writerDone
}
