package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"quiz-saga-service/internal/domain"
	"quiz-saga-service/internal/eventbus"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

const (
	connectTimeout = 10 * time.Second
	reconnectWait  = 2 * time.Second
	flushTimeout   = 5 * time.Second
)

// Bus implements eventbus.Bus over core NATS with JSON message bodies.
// The connection is acquired once at startup and injected; reconnects are
// handled by the client behind the same handle, invisible to callers.
type Bus struct {
	url    string
	name   string
	logger *zap.Logger

	mu   sync.Mutex
	nc   *nats.Conn
	subs map[string]*nats.Subscription
}

func NewBus(url, name string, logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{
		url:    url,
		name:   name,
		logger: logger,
		subs:   make(map[string]*nats.Subscription),
	}
}

// Connect dials the NATS server and fails when it is unreachable.
// Idempotent: a second call while a connection handle exists is a no-op.
// Once established, the reconnect options keep the handle alive through
// server restarts without the callers noticing.
func (b *Bus) Connect(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.nc != nil {
		return nil
	}

	nc, err := nats.Connect(
		b.url,
		nats.Name(b.name),
		nats.Timeout(connectTimeout),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(reconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			b.logger.Warn("nats disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			b.logger.Info("nats reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	)
	if err != nil {
		return fmt.Errorf("connect to nats at %s: %w", b.url, err)
	}
	b.nc = nc
	b.logger.Info("connected to nats", zap.String("url", b.url))
	return nil
}

func (b *Bus) conn() *nats.Conn {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.nc
}

// Publish sends a saga-critical event. The flush bounds how long a publish
// can hang on a dead connection before it is treated as a failure.
func (b *Bus) Publish(_ context.Context, evt domain.Event) error {
	nc := b.conn()
	if nc == nil || nc.IsClosed() {
		return eventbus.ErrNotConnected
	}

	subject, err := eventbus.Subject(evt.Type)
	if err != nil {
		return err
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", evt.ID, err)
	}
	if err := nc.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	if err := nc.FlushTimeout(flushTimeout); err != nil {
		return fmt.Errorf("flush %s: %w", subject, err)
	}
	b.logger.Debug("published event",
		zap.String("subject", subject), zap.String("eventId", evt.ID),
		zap.String("correlationId", evt.CorrelationID))
	return nil
}

// PublishBestEffort drops the event with a warning when the bus is down.
func (b *Bus) PublishBestEffort(ctx context.Context, evt domain.Event) {
	if err := b.Publish(ctx, evt); err != nil {
		b.logger.Warn("dropping best-effort event",
			zap.String("eventType", string(evt.Type)), zap.Error(err))
	}
}

func (b *Bus) Subscribe(subject string, handler eventbus.Handler) (string, error) {
	nc := b.conn()
	if nc == nil || nc.IsClosed() {
		return "", eventbus.ErrNotConnected
	}

	sub, err := nc.Subscribe(subject, func(msg *nats.Msg) {
		defer func() {
			if r := recover(); r != nil {
				b.logger.Error("handler panicked",
					zap.String("subject", subject), zap.Any("panic", r))
			}
		}()
		var evt domain.Event
		if err := json.Unmarshal(msg.Data, &evt); err != nil {
			b.logger.Error("skipping undecodable message",
				zap.String("subject", subject), zap.Error(err))
			return
		}
		handler(context.Background(), evt)
	})
	if err != nil {
		return "", fmt.Errorf("subscribe %s: %w", subject, err)
	}

	id := subject + "-" + uuid.NewString()
	b.mu.Lock()
	b.subs[id] = sub
	b.mu.Unlock()
	b.logger.Info("subscribed", zap.String("subject", subject), zap.String("subscriptionId", id))
	return id, nil
}

func (b *Bus) Unsubscribe(id string) error {
	b.mu.Lock()
	sub, ok := b.subs[id]
	if ok {
		delete(b.subs, id)
	}
	b.mu.Unlock()
	if !ok {
		return nil
	}
	// Unsubscribe stops new deliveries; a callback already running is
	// allowed to finish.
	return sub.Unsubscribe()
}

// Close drains the connection so in-flight messages are handled before the
// socket goes away.
func (b *Bus) Close() {
	b.mu.Lock()
	nc := b.nc
	b.nc = nil
	b.subs = make(map[string]*nats.Subscription)
	b.mu.Unlock()

	if nc == nil {
		return
	}
	if err := nc.Drain(); err != nil {
		b.logger.Warn("nats drain failed", zap.Error(err))
		nc.Close()
	}
}
