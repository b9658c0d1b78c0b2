package outbox

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/slotbook/libs/db"
)

// Repository stores events in the outbox_events table.
type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Insert(ctx context.Context, tx pgx.Tx, evt Event) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO outbox_events (event_id, aggregate_type, aggregate_id, event_type, payload, traceparent, tracestate)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, evt.ID, evt.AggregateType, evt.AggregateID, evt.EventType, evt.Payload, evt.Traceparent, evt.Tracestate)
	return err
}

// Drain claims up to limit unpublished rows, hands them to send and marks
// them published only when send succeeds. Concurrent publishers skip rows
// another publisher holds.
func (r *Repository) Drain(ctx context.Context, limit int, send SendFunc) (int, error) {
	n := 0
	err := r.pool.InTx(ctx, func(tx pgx.Tx) error {
		records, err := r.fetchUnpublished(ctx, tx, limit)
		if err != nil || len(records) == 0 {
			return err
		}
		if err := send(ctx, records); err != nil {
			return err
		}
		ids := make([]int64, 0, len(records))
		for _, rcd := range records {
			ids = append(ids, rcd.ID)
		}
		n = len(ids)
		return r.markPublished(ctx, tx, ids)
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (r *Repository) fetchUnpublished(ctx context.Context, tx pgx.Tx, limit int) ([]Record, error) {
	rows, err := tx.Query(ctx, `
		SELECT id, event_id::text, aggregate_type, aggregate_id, event_type, payload,
			COALESCE(traceparent, ''), COALESCE(tracestate, ''), created_at
		FROM outbox_events
		WHERE published_at IS NULL
		ORDER BY id
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rcd Record
		if err := rows.Scan(&rcd.ID, &rcd.Event.ID, &rcd.AggregateType, &rcd.AggregateID, &rcd.EventType, &rcd.Payload, &rcd.Traceparent, &rcd.Tracestate, &rcd.CreatedAt); err != nil {
			return nil, err
		}
		records = append(records, rcd)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return records, nil
}

func (r *Repository) markPublished(ctx context.Context, tx pgx.Tx, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := tx.Exec(ctx, `
		UPDATE outbox_events
		SET published_at = now()
		WHERE id = ANY($1)
	`, ids)
	return err
}
