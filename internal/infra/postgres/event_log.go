package postgres

import (
	"context"
	"fmt"
	"time"

	"quiz-saga-service/internal/domain"

	"github.com/uptrace/bun"
)

// StoredEvent is the bun model for the durable event log. The log is
// append-only and exists for replay and trace reconstruction; losing an
// append never fails a submission.
type StoredEvent struct {
	bun.BaseModel `bun:"table:stored_events"`

	ID            string    `bun:"id,pk"`
	EventType     string    `bun:"event_type,notnull"`
	AggregateID   string    `bun:"aggregate_id,notnull"`
	AggregateType string    `bun:"aggregate_type,notnull"`
	Payload       []byte    `bun:"payload,type:jsonb,notnull"`
	Timestamp     time.Time `bun:"ts,notnull"`
	Version       int       `bun:"version,notnull"`
	CorrelationID string    `bun:"correlation_id,notnull"`
	CausationID   string    `bun:"causation_id,nullzero"`
	ServiceID     string    `bun:"service_id,notnull"`
	CreatedAt     time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

// EventLog appends published events to the stored_events table.
type EventLog struct {
	db *bun.DB
}

func NewEventLog(db *bun.DB) *EventLog {
	return &EventLog{db: db}
}

func (l *EventLog) Append(ctx context.Context, evt domain.Event) error {
	stored := &StoredEvent{
		ID:            evt.ID,
		EventType:     string(evt.Type),
		AggregateID:   evt.AggregateID,
		AggregateType: evt.AggregateType,
		Payload:       []byte(evt.Payload),
		Timestamp:     evt.Timestamp,
		Version:       evt.Version,
		CorrelationID: evt.CorrelationID,
		CausationID:   evt.CausationID,
		ServiceID:     evt.ServiceID,
	}
	if _, err := l.db.NewInsert().Model(stored).Exec(ctx); err != nil {
		return fmt.Errorf("append event %s: %w", evt.ID, err)
	}
	return nil
}

// ByCorrelation loads the full event chain for one correlation ID, oldest
// first, for trace reconstruction.
func (l *EventLog) ByCorrelation(ctx context.Context, correlationID string) ([]StoredEvent, error) {
	var events []StoredEvent
	err := l.db.NewSelect().
		Model(&events).
		Where("correlation_id = ?", correlationID).
		Order("ts ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("load events for correlation %s: %w", correlationID, err)
	}
	return events, nil
}
