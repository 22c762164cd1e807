package audit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"credentialing-backend/internal/store"
)

var ErrOutboxStopped = errors.New("audit outbox stopped")

const outboxColumns = "id, action, primary_entity_id, owner_key, request_id, occurred_at"

// Outbox collects events in memory and periodically flushes them to the
// _audit_outbox table in one batch insert. A separate relay publishes rows.
type Outbox struct {
	mu      sync.Mutex
	events  []Event
	stopped bool

	db      *sql.DB
	dialect store.Dialect
	logger  *slog.Logger
	maxSize int
	ticker  *time.Ticker
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewOutbox creates a buffer that flushes on a timer or when full.
func NewOutbox(db *sql.DB, dialect store.Dialect, logger *slog.Logger, maxSize, flushIntervalMs int) *Outbox {
	if maxSize <= 0 {
		maxSize = 100
	}
	if flushIntervalMs <= 0 {
		flushIntervalMs = 250
	}
	o := &Outbox{
		db:      db,
		dialect: dialect,
		logger:  logger,
		maxSize: maxSize,
		ticker:  time.NewTicker(time.Duration(flushIntervalMs) * time.Millisecond),
		done:    make(chan struct{}),
	}
	o.wg.Add(1)
	go o.run()
	return o
}

func (o *Outbox) run() {
	defer o.wg.Done()
	for {
		select {
		case <-o.done:
			return
		case <-o.ticker.C:
			if err := o.Flush(context.Background()); err != nil {
				o.logger.Error("audit outbox flush", "error", err)
			}
		}
	}
}

// Emit enqueues the event. A full buffer triggers an asynchronous flush.
func (o *Outbox) Emit(_ context.Context, e Event) error {
	o.mu.Lock()
	if o.stopped {
		o.mu.Unlock()
		return ErrOutboxStopped
	}
	o.events = append(o.events, e)
	shouldFlush := len(o.events) >= o.maxSize
	o.mu.Unlock()

	if shouldFlush {
		go func() {
			if err := o.Flush(context.Background()); err != nil {
				o.logger.Error("audit outbox flush", "error", err)
			}
		}()
	}
	return nil
}

// Flush writes all buffered events in a single batch insert. On failure the
// batch is put back so the next tick retries it.
func (o *Outbox) Flush(ctx context.Context) error {
	o.mu.Lock()
	if len(o.events) == 0 {
		o.mu.Unlock()
		return nil
	}
	batch := o.events
	o.events = nil
	o.mu.Unlock()

	if err := o.insert(ctx, batch); err != nil {
		o.mu.Lock()
		o.events = append(batch, o.events...)
		o.mu.Unlock()
		return err
	}
	return nil
}

func (o *Outbox) insert(ctx context.Context, batch []Event) error {
	pb := o.dialect.NewParamBuilder()
	placeholders := make([]string, 0, len(batch))
	for _, e := range batch {
		var requestID any
		if e.RequestID != "" {
			requestID = e.RequestID
		}
		placeholders = append(placeholders, "("+strings.Join([]string{
			pb.Add(e.ID),
			pb.Add(string(e.Action)),
			pb.Add(e.PrimaryEntityID),
			pb.Add(e.OwnerKey),
			pb.Add(requestID),
			pb.Add(o.dialect.TimeParam(e.Timestamp)),
		}, ", ")+")")
	}

	sqlStr := fmt.Sprintf("INSERT INTO _audit_outbox (%s) VALUES %s", outboxColumns, strings.Join(placeholders, ", "))
	if _, err := o.db.ExecContext(ctx, sqlStr, pb.Params()...); err != nil {
		return fmt.Errorf("insert audit outbox batch: %w", err)
	}
	return nil
}

// Stop halts the background ticker and flushes remaining events.
func (o *Outbox) Stop(ctx context.Context) error {
	o.mu.Lock()
	if o.stopped {
		o.mu.Unlock()
		return nil
	}
	o.stopped = true
	o.mu.Unlock()

	o.ticker.Stop()
	close(o.done)
	o.wg.Wait()
	return o.Flush(ctx)
}

// Pending returns unpublished outbox rows, oldest first.
func Pending(ctx context.Context, q store.Querier, dialect store.Dialect, limit int) ([]Event, error) {
	sqlStr := fmt.Sprintf("SELECT %s FROM _audit_outbox WHERE published_at IS NULL ORDER BY occurred_at LIMIT %s",
		outboxColumns, dialect.Placeholder(1))
	rows, err := store.QueryRows(ctx, q, sqlStr, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending audit events: %w", err)
	}

	events := make([]Event, 0, len(rows))
	for _, row := range rows {
		e := Event{Action: Action(fmt.Sprint(row["action"]))}
		e.ID, _ = row["id"].(string)
		e.OwnerKey, _ = row["owner_key"].(string)
		e.RequestID, _ = row["request_id"].(string)
		e.PrimaryEntityID, _ = store.ToInt64(row["primary_entity_id"])
		e.Timestamp, _ = row["occurred_at"].(time.Time)
		events = append(events, e)
	}
	return events, nil
}

// MarkPublished stamps outbox rows as delivered.
func MarkPublished(ctx context.Context, q store.Querier, dialect store.Dialect, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	pb := dialect.NewParamBuilder()
	atPh := pb.Add(dialect.TimeParam(at))
	in := make([]string, len(ids))
	for i, id := range ids {
		in[i] = pb.Add(id)
	}
	sqlStr := fmt.Sprintf("UPDATE _audit_outbox SET published_at = %s WHERE id IN (%s)", atPh, strings.Join(in, ", "))
	if _, err := store.Exec(ctx, q, sqlStr, pb.Params()...); err != nil {
		return fmt.Errorf("mark audit events published: %w", err)
	}
	return nil
}

// PurgePublished deletes delivered rows older than the cutoff.
func PurgePublished(ctx context.Context, q store.Querier, dialect store.Dialect, before time.Time) (int64, error) {
	sqlStr := fmt.Sprintf("DELETE FROM _audit_outbox WHERE published_at IS NOT NULL AND published_at < %s", dialect.Placeholder(1))
	n, err := store.Exec(ctx, q, sqlStr, dialect.TimeParam(before))
	if err != nil {
		return 0, fmt.Errorf("purge audit outbox: %w", err)
	}
	return n, nil
}

// Relay forwards up to limit pending outbox rows to sink and marks the ones
// that were delivered. It stops at the first sink error.
func Relay(ctx context.Context, db *sql.DB, dialect store.Dialect, sink Sink, limit int, now func() time.Time) (int, error) {
	events, err := Pending(ctx, db, dialect, limit)
	if err != nil {
		return 0, err
	}

	sent := make([]string, 0, len(events))
	var sendErr error
	for _, e := range events {
		if sendErr = sink.Emit(ctx, e); sendErr != nil {
			break
		}
		sent = append(sent, e.ID)
	}

	if err := MarkPublished(ctx, db, dialect, sent, now()); err != nil {
		return 0, err
	}
	if sendErr != nil {
		return len(sent), fmt.Errorf("relay audit event: %w", sendErr)
	}
	return len(sent), nil
}
