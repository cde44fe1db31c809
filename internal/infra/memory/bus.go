package memory

import (
	"context"
	"sync"

	"quiz-saga-service/internal/domain"
	"quiz-saga-service/internal/eventbus"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const busBufferSize = 1024

// Bus is an in-process implementation of eventbus.Bus for single-node
// deployments and tests. Each subscription owns a buffered channel drained
// by a long-lived goroutine, so handlers for one subject run in receipt
// order while subjects stay independent of each other.
type Bus struct {
	logger *zap.Logger

	mu        sync.Mutex
	connected bool
	subs      map[string]*busSubscription

	// pending tracks enqueued-but-unhandled deliveries so tests can wait
	// for quiescence via Flush.
	pending sync.WaitGroup
}

type busSubscription struct {
	id      string
	subject string
	ch      chan domain.Event
	done    chan struct{}
}

func NewBus(logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{
		logger: logger,
		subs:   make(map[string]*busSubscription),
	}
}

func (b *Bus) Connect(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.connected = true
	return nil
}

func (b *Bus) Publish(_ context.Context, evt domain.Event) error {
	subject, err := eventbus.Subject(evt.Type)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.connected {
		return eventbus.ErrNotConnected
	}
	for _, sub := range b.subs {
		if sub.subject != subject {
			continue
		}
		b.pending.Add(1)
		select {
		case sub.ch <- evt:
		default:
			// Full buffer: drop rather than block the publisher. The bus
			// promises at-most-once delivery, not delivery.
			b.pending.Done()
			b.logger.Warn("subscription buffer full, dropping event",
				zap.String("subject", subject), zap.String("eventId", evt.ID))
		}
	}
	return nil
}

func (b *Bus) PublishBestEffort(ctx context.Context, evt domain.Event) {
	if err := b.Publish(ctx, evt); err != nil {
		b.logger.Warn("dropping best-effort event",
			zap.String("eventType", string(evt.Type)), zap.Error(err))
	}
}

func (b *Bus) Subscribe(subject string, handler eventbus.Handler) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.connected {
		return "", eventbus.ErrNotConnected
	}

	sub := &busSubscription{
		id:      subject + "-" + uuid.NewString(),
		subject: subject,
		ch:      make(chan domain.Event, busBufferSize),
		done:    make(chan struct{}),
	}
	b.subs[sub.id] = sub

	go b.deliver(sub, handler)
	return sub.id, nil
}

// deliver runs until the subscription is cancelled. Handler failures are
// logged per message and never stop the loop.
func (b *Bus) deliver(sub *busSubscription, handler eventbus.Handler) {
	for {
		select {
		case <-sub.done:
			b.drain(sub)
			return
		case evt := <-sub.ch:
			b.invoke(sub, handler, evt)
		}
	}
}

func (b *Bus) invoke(sub *busSubscription, handler eventbus.Handler, evt domain.Event) {
	defer b.pending.Done()
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("handler panicked",
				zap.String("subject", sub.subject),
				zap.String("eventId", evt.ID),
				zap.Any("panic", r))
		}
	}()
	handler(context.Background(), evt)
}

// drain discards events still queued when the subscription is cancelled.
func (b *Bus) drain(sub *busSubscription) {
	for {
		select {
		case <-sub.ch:
			b.pending.Done()
		default:
			return
		}
	}
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
	close(sub.done)
	return nil
}

func (b *Bus) Close() {
	b.mu.Lock()
	ids := make([]string, 0, len(b.subs))
	for id := range b.subs {
		ids = append(ids, id)
	}
	b.connected = false
	b.mu.Unlock()

	for _, id := range ids {
		_ = b.Unsubscribe(id)
	}
}

// Flush blocks until every event published so far has been handled or
// discarded. Test helper, not part of eventbus.Bus.
func (b *Bus) Flush() {
	b.pending.Wait()
}
