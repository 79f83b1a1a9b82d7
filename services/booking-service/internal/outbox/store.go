package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	otelx "github.com/md-rashed-zaman/salonagenda/libs/otel"
)

const appendEvent = `
	INSERT INTO outbox_events (event_id, aggregate_type, aggregate_id, event_type, payload, traceparent, tracestate)
	VALUES ($1, $2, $3, $4, $5, $6, $7)`

// Record is a pending outbox row as the publisher claims it.
type Record struct {
	ID            int64     `db:"id"`
	EventID       string    `db:"event_id"`
	AggregateType string    `db:"aggregate_type"`
	AggregateID   string    `db:"aggregate_id"`
	EventType     string    `db:"event_type"`
	Payload       []byte    `db:"payload"`
	Traceparent   string    `db:"traceparent"`
	Tracestate    string    `db:"tracestate"`
	CreatedAt     time.Time `db:"created_at"`
}

// Store reads and writes outbox_events. It holds no connection; every call runs in the caller's tx.
type Store struct{}

func NewStore() *Store { return &Store{} }

// Append queues evts in tx, so they commit or roll back with the booking state they describe.
// Every row carries the caller's trace context.
func (s *Store) Append(ctx context.Context, tx pgx.Tx, evts ...Event) error {
	if len(evts) == 0 {
		return nil
	}
	tc := otelx.CaptureTraceContext(ctx)
	batch := &pgx.Batch{}
	for _, evt := range evts {
		batch.Queue(appendEvent, uuid.NewString(), evt.AggregateType, evt.AggregateID, evt.EventType, evt.Payload, tc.Traceparent, tc.Tracestate)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("append outbox events: %w", err)
	}
	return nil
}

// Claim locks up to limit unpublished rows in id order. Rows another publisher holds are skipped.
func (s *Store) Claim(ctx context.Context, tx pgx.Tx, limit int) ([]Record, error) {
	rows, err := tx.Query(ctx, `
		SELECT id, event_id::text AS event_id, aggregate_type, aggregate_id, event_type,
			payload, traceparent, tracestate, created_at
		FROM outbox_events
		WHERE published_at IS NULL
		ORDER BY id
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("claim outbox events: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowToStructByName[Record])
}

func (s *Store) Ack(ctx context.Context, tx pgx.Tx, ids ...int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := tx.Exec(ctx, `UPDATE outbox_events SET published_at = now() WHERE id = ANY($1)`, ids)
	return err
}
