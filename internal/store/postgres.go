package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arducoaching/slot-booking/internal/model"
)

// schema is applied at startup; both statements are idempotent.
const schema = `
CREATE TABLE IF NOT EXISTS slots (
	id           TEXT PRIMARY KEY,
	theme        TEXT NOT NULL,
	kind         TEXT NOT NULL,
	scheduled_at TIMESTAMPTZ NOT NULL,
	capacity     INT NOT NULL,
	booked_count INT NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS attendees (
	id         TEXT PRIMARY KEY,
	slot_id    TEXT NOT NULL REFERENCES slots(id) ON DELETE CASCADE,
	name       TEXT NOT NULL,
	phone      TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);`

// PostgresStore persists slots relationally. Reservations take a row-level
// lock (SELECT ... FOR UPDATE) on the slot inside a transaction, so the
// capacity check and the increment-plus-attendee-insert commit as one unit.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore connects a pool, applies the schema, and returns the store.
// Connection attempts are retried to accommodate containers starting up.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	// Sensible pool defaults for a small service.
	poolCfg.MaxConns = 20
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	var pool *pgxpool.Pool
	for attempt := 1; attempt <= 5; attempt++ {
		pool, err = pgxpool.NewWithConfig(ctx, poolCfg)
		if err == nil {
			pingErr := pool.Ping(ctx)
			if pingErr == nil {
				break
			}
			pool.Close()
			err = fmt.Errorf("ping: %w", pingErr)
		}
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &PostgresStore{db: pool}, nil
}

// List returns slots with their attendees, sorted ascending by scheduled_at.
func (s *PostgresStore) List(ctx context.Context, after *time.Time) ([]model.Slot, error) {
	query := `SELECT id, theme, kind, scheduled_at, capacity, booked_count
		 FROM slots`
	args := []any{}
	if after != nil {
		query += ` WHERE scheduled_at >= $1`
		args = append(args, *after)
	}
	query += ` ORDER BY scheduled_at ASC`

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: list slots: %v", ErrStorageUnavailable, err)
	}
	defer rows.Close()

	var slots []model.Slot
	index := make(map[string]int)
	for rows.Next() {
		var sl model.Slot
		if err := rows.Scan(&sl.ID, &sl.Theme, &sl.Kind, &sl.ScheduledAt, &sl.Capacity, &sl.BookedCount); err != nil {
			return nil, fmt.Errorf("%w: scan slot: %v", ErrStorageUnavailable, err)
		}
		sl.Attendees = []model.Attendee{}
		index[sl.ID] = len(slots)
		slots = append(slots, sl)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list slots: %v", ErrStorageUnavailable, err)
	}

	attRows, err := s.db.Query(ctx,
		`SELECT slot_id, name, phone FROM attendees ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("%w: list attendees: %v", ErrStorageUnavailable, err)
	}
	defer attRows.Close()
	for attRows.Next() {
		var slotID string
		var att model.Attendee
		if err := attRows.Scan(&slotID, &att.Name, &att.Phone); err != nil {
			return nil, fmt.Errorf("%w: scan attendee: %v", ErrStorageUnavailable, err)
		}
		if i, ok := index[slotID]; ok {
			slots[i].Attendees = append(slots[i].Attendees, att)
		}
	}
	if err := attRows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list attendees: %v", ErrStorageUnavailable, err)
	}

	if slots == nil {
		slots = []model.Slot{}
	}
	return slots, nil
}

// Publish inserts the new slot row.
func (s *PostgresStore) Publish(ctx context.Context, slot model.Slot) (model.Slot, error) {
	_, err := s.db.Exec(ctx,
		`INSERT INTO slots (id, theme, kind, scheduled_at, capacity, booked_count)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		slot.ID, slot.Theme, slot.Kind, slot.ScheduledAt, slot.Capacity, slot.BookedCount,
	)
	if err != nil {
		return model.Slot{}, fmt.Errorf("%w: insert slot: %v", ErrStorageUnavailable, err)
	}
	return slot, nil
}

// Reserve claims one seat inside a transaction.
//
// SELECT ... FOR UPDATE acquires an exclusive row-level lock on the slot, so
// concurrent reservations on the same slot queue behind each other while
// reservations on different slots proceed in parallel. Nothing is visible to
// other transactions until COMMIT, which keeps bookedCount equal to the
// number of attendee rows at all times.
func (s *PostgresStore) Reserve(ctx context.Context, slotID string, att model.Attendee) (model.Slot, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return model.Slot{}, fmt.Errorf("%w: begin transaction: %v", ErrStorageUnavailable, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	var slot model.Slot
	err = tx.QueryRow(ctx,
		`SELECT id, theme, kind, scheduled_at, capacity, booked_count
		 FROM slots
		 WHERE id = $1
		 FOR UPDATE`,
		slotID,
	).Scan(&slot.ID, &slot.Theme, &slot.Kind, &slot.ScheduledAt, &slot.Capacity, &slot.BookedCount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = ErrNotFound
			return model.Slot{}, err
		}
		err = fmt.Errorf("%w: lock slot row: %v", ErrStorageUnavailable, err)
		return model.Slot{}, err
	}

	if slot.IsFull() {
		err = ErrSlotFull
		return model.Slot{}, err
	}

	_, err = tx.Exec(ctx,
		`UPDATE slots SET booked_count = booked_count + 1 WHERE id = $1`,
		slotID,
	)
	if err != nil {
		err = fmt.Errorf("%w: increment booked_count: %v", ErrStorageUnavailable, err)
		return model.Slot{}, err
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO attendees (id, slot_id, name, phone, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		uuid.New().String(), slotID, att.Name, att.Phone, time.Now().UTC(),
	)
	if err != nil {
		err = fmt.Errorf("%w: insert attendee: %v", ErrStorageUnavailable, err)
		return model.Slot{}, err
	}

	slot.BookedCount++

	rows, err := tx.Query(ctx,
		`SELECT name, phone FROM attendees WHERE slot_id = $1 ORDER BY created_at ASC`,
		slotID,
	)
	if err != nil {
		err = fmt.Errorf("%w: list attendees: %v", ErrStorageUnavailable, err)
		return model.Slot{}, err
	}
	slot.Attendees, err = scanAttendees(rows)
	if err != nil {
		return model.Slot{}, err
	}

	if err = tx.Commit(ctx); err != nil {
		err = fmt.Errorf("%w: commit transaction: %v", ErrStorageUnavailable, err)
		return model.Slot{}, err
	}
	return slot, nil
}

// Remove deletes the slot row; attendees go with it via ON DELETE CASCADE.
// Deleting an absent id affects zero rows and still succeeds.
func (s *PostgresStore) Remove(ctx context.Context, slotID string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM slots WHERE id = $1`, slotID); err != nil {
		return fmt.Errorf("%w: delete slot: %v", ErrStorageUnavailable, err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.db.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	s.db.Close()
	return nil
}

func scanAttendees(rows pgx.Rows) ([]model.Attendee, error) {
	defer rows.Close()
	attendees := []model.Attendee{}
	for rows.Next() {
		var att model.Attendee
		if err := rows.Scan(&att.Name, &att.Phone); err != nil {
			return nil, fmt.Errorf("%w: scan attendee: %v", ErrStorageUnavailable, err)
		}
		attendees = append(attendees, att)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list attendees: %v", ErrStorageUnavailable, err)
	}
	return attendees, nil
}
