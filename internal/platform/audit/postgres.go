package audit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of pgxpool.Pool the store uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore persists events into the audit_event table.
type PostgresStore struct {
	db DB
}

// NewPostgresStore wraps a pgx pool.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const eventColumns = `id, actor_id, occurred_at, resource_name, action, outcome, trace_id,
	subject, application, version, method, path, client_ip, user_agent,
	status_code, result_code, duration_ms`

func (s *PostgresStore) Append(ctx context.Context, ev Event) error {
	tag, err := s.db.Exec(ctx, `INSERT INTO audit_event (`+eventColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (id) DO NOTHING`,
		ev.ID, ev.ActorID, ev.Timestamp, ev.ResourceName, string(ev.Action), string(ev.Outcome), ev.TraceID,
		ev.Subject, ev.Application, ev.Version, ev.Method, ev.Path, ev.ClientIP, ev.UserAgent,
		ev.StatusCode, string(ev.ResultCode), ev.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDuplicate
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id uuid.UUID) (Event, error) {
	row := s.db.QueryRow(ctx, `SELECT `+eventColumns+` FROM audit_event WHERE id = $1`, id)
	ev, err := scanEvent(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Event{}, ErrNotFound
	}
	if err != nil {
		return Event{}, fmt.Errorf("get audit event: %w", err)
	}
	return ev, nil
}

func (s *PostgresStore) ListByActor(ctx context.Context, actorID string, offset, limit int) ([]Event, error) {
	return s.list(ctx, `actor_id = $1`, actorID, offset, limit)
}

func (s *PostgresStore) ListByResource(ctx context.Context, resource string, offset, limit int) ([]Event, error) {
	return s.list(ctx, `resource_name = $1`, resource, offset, limit)
}

func (s *PostgresStore) list(ctx context.Context, where, arg string, offset, limit int) ([]Event, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+eventColumns+` FROM audit_event WHERE `+where+`
		ORDER BY occurred_at DESC, id DESC LIMIT $2 OFFSET $3`,
		arg, clampLimit(limit), clampOffset(offset),
	)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	out := []Event{}
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return out, nil
}

func scanEvent(row pgx.Row) (Event, error) {
	var (
		ev                      Event
		action, outcome, result string
		durationMS              int64
	)
	err := row.Scan(
		&ev.ID, &ev.ActorID, &ev.Timestamp, &ev.ResourceName, &action, &outcome, &ev.TraceID,
		&ev.Subject, &ev.Application, &ev.Version, &ev.Method, &ev.Path, &ev.ClientIP, &ev.UserAgent,
		&ev.StatusCode, &result, &durationMS,
	)
	if err != nil {
		return Event{}, err
	}
	ev.Action = Action(action)
	ev.Outcome = Outcome(outcome)
	ev.ResultCode = ResultCode(result)
	ev.Duration = time.Duration(durationMS) * time.Millisecond
	ev.Timestamp = ev.Timestamp.UTC()
	return ev, nil
}
