package eventbus

import (
	"context"
	"errors"

	"quiz-saga-service/internal/domain"
)

// ErrNotConnected is returned by saga-critical publishes when the transport
// is down, so the caller can run its own failure path instead of losing the
// event silently.
var ErrNotConnected = errors.New("event bus not connected")

// Handler processes one received event. Handlers run once per message, in
// receipt order for their subject; errors and panics inside a handler are
// caught and logged by the bus and never stop delivery of later messages.
type Handler func(ctx context.Context, evt domain.Event)

// Bus is the publish/subscribe surface shared by the saga coordinator and
// the downstream reactors. The bus itself gives at-most-once delivery and
// no built-in retries; retry policy belongs to the caller.
type Bus interface {
	// Connect establishes the transport connection. Calling it again while
	// connected is a no-op.
	Connect(ctx context.Context) error
	// Publish serializes the event and sends it, failing fast when the
	// transport is unreachable. Use for saga-critical events.
	Publish(ctx context.Context, evt domain.Event) error
	// PublishBestEffort logs and drops on failure. Use for telemetry-only
	// events such as answer.submission.failed.
	PublishBestEffort(ctx context.Context, evt domain.Event)
	// Subscribe registers handler for a subject and returns a subscription
	// ID for Unsubscribe.
	Subscribe(subject string, handler Handler) (string, error)
	// Unsubscribe stops delivery. In-flight handler invocations complete.
	Unsubscribe(id string) error
	// Close tears down the connection, letting in-flight handlers drain.
	Close()
}
