package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Schema is the DDL of the table read and written by [SQLStore]. The users and
// applications tables belong to the external data layer; only their id, email
// and name columns are read.
const Schema = `
create table if not exists audit_events (
	id             text primary key,
	actor_id       text,
	application_id text,
	action         text not null,
	resource       text not null,
	resource_id    text,
	detail         jsonb,
	ip             text,
	user_agent     text,
	created_at     timestamptz not null
);
create index if not exists audit_events_created_at_idx on audit_events (created_at desc);
create index if not exists audit_events_application_idx on audit_events (application_id, created_at desc);
create index if not exists audit_events_actor_idx on audit_events (actor_id, created_at desc);
`

const selectEvents = `select e.id, coalesce(e.actor_id, ''), coalesce(u.email, ''),
	coalesce(e.application_id, ''), coalesce(a.name, ''), e.action, e.resource,
	coalesce(e.resource_id, ''), coalesce(e.detail::text, ''), coalesce(e.ip, ''),
	coalesce(e.user_agent, ''), e.created_at
from audit_events e
left join users u on u.id = e.actor_id
left join applications a on a.id = e.application_id`

var sortColumns = map[SortField]string{
	SortTimestamp: "e.created_at",
	SortAction:    "e.action",
	SortResource:  "e.resource",
}

var dimensionColumns = map[Dimension]string{
	DimensionAction:      "e.action",
	DimensionActor:       "e.actor_id",
	DimensionApplication: "e.application_id",
}

// SQLStore persists events in Postgres through database/sql.
type SQLStore struct {
	db *sql.DB
}

// OpenSQLStore opens a pgx-backed pool for dsn.
func OpenSQLStore(dsn string) (*SQLStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &SQLStore{db: db}, nil
}

// NewSQLStore wraps an existing pool.
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

func (s *SQLStore) Close() error { return s.db.Close() }

// Migrate creates the audit table and its indexes when missing.
func (s *SQLStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, Schema)
	return err
}

func (s *SQLStore) Insert(ctx context.Context, e Event) error {
	var detail any
	if len(e.Detail) > 0 {
		raw, err := json.Marshal(e.Detail)
		if err != nil {
			return fmt.Errorf("encode audit detail: %w", err)
		}
		detail = string(raw)
	}

	_, err := s.db.ExecContext(ctx, `
		insert into audit_events
			(id, actor_id, application_id, action, resource, resource_id, detail, ip, user_agent, created_at)
		values ($1, nullif($2, ''), nullif($3, ''), $4, $5, nullif($6, ''), $7, nullif($8, ''), nullif($9, ''), $10)
	`, e.ID, e.ActorID, e.ApplicationID, string(e.Action), e.Resource, e.ResourceID, detail, e.IP, e.UserAgent, e.Timestamp.UTC())
	return err
}

func (s *SQLStore) Find(ctx context.Context, f Filter, srt Sort, limit, offset int) ([]Event, int64, error) {
	if offset < 0 || limit < 0 {
		return nil, 0, fmt.Errorf("%w: negative limit or offset", ErrInvalidFilter)
	}
	total, err := s.Count(ctx, f)
	if err != nil {
		return nil, 0, err
	}

	w := buildWhere(f)
	srt = srt.Normalize()
	dir := "asc"
	if srt.Desc {
		dir = "desc"
	}
	query := selectEvents + w.sql() +
		" order by " + sortColumns[srt.Field] + " " + dir + ", e.id " + dir +
		" limit " + w.next(limit) + " offset " + w.next(offset)

	rows, err := s.db.QueryContext(ctx, query, w.args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	events := make([]Event, 0, limit)
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, 0, err
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return events, total, nil
}

func (s *SQLStore) Count(ctx context.Context, f Filter) (int64, error) {
	w := buildWhere(f)
	var n int64
	err := s.db.QueryRowContext(ctx, "select count(*) from audit_events e"+w.sql(), w.args...).Scan(&n)
	return n, err
}

func (s *SQLStore) Top(ctx context.Context, dim Dimension, f Filter, k int) ([]Count, error) {
	col, ok := dimensionColumns[dim]
	if !ok {
		return nil, fmt.Errorf("%w: unknown dimension %q", ErrInvalidFilter, dim)
	}

	w := buildWhere(f)
	w.add(col + " is not null and " + col + " <> ''")
	query := "select " + col + ", count(*) from audit_events e" + w.sql() +
		" group by 1 order by 2 desc, 1 asc limit " + w.next(k)

	rows, err := s.db.QueryContext(ctx, query, w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Count, 0, k)
	for rows.Next() {
		var c Count
		if err := rows.Scan(&c.Key, &c.Count); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *SQLStore) Daily(ctx context.Context, f Filter) ([]DayCount, error) {
	w := buildWhere(f)
	query := "select date_trunc('day', e.created_at at time zone 'UTC') as day, count(*) from audit_events e" +
		w.sql() + " group by 1 order by 1"

	rows, err := s.db.QueryContext(ctx, query, w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DayCount
	for rows.Next() {
		var dc DayCount
		if err := rows.Scan(&dc.Day, &dc.Count); err != nil {
			return nil, err
		}
		dc.Day = truncateDay(dc.Day)
		out = append(out, dc)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (Event, error) {
	var (
		e      Event
		action string
		detail string
	)
	if err := row.Scan(
		&e.ID, &e.ActorID, &e.ActorEmail, &e.ApplicationID, &e.ApplicationName,
		&action, &e.Resource, &e.ResourceID, &detail, &e.IP, &e.UserAgent, &e.Timestamp,
	); err != nil {
		return Event{}, err
	}
	e.Action = Action(action)
	e.Timestamp = e.Timestamp.UTC()
	if detail != "" {
		if err := json.Unmarshal([]byte(detail), &e.Detail); err != nil {
			return Event{}, errors.Join(fmt.Errorf("decode detail of event %s", e.ID), err)
		}
	}
	return e, nil
}

// where accumulates predicates with numbered placeholders.
type where struct {
	clauses []string
	args    []any
}

func (w *where) next(arg any) string {
	w.args = append(w.args, arg)
	return "$" + strconv.Itoa(len(w.args))
}

func (w *where) add(clause string) {
	w.clauses = append(w.clauses, clause)
}

func (w *where) eq(col string, v string) {
	if v != "" {
		w.add(col + " = " + w.next(v))
	}
}

func (w *where) in(col string, values []string) {
	if len(values) == 0 {
		return
	}
	ph := make([]string, len(values))
	for i, v := range values {
		ph[i] = w.next(v)
	}
	w.add(col + " in (" + strings.Join(ph, ", ") + ")")
}

func (w *where) sql() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " where " + strings.Join(w.clauses, " and ")
}

func buildWhere(f Filter) *where {
	w := &where{}
	w.eq("e.actor_id", f.ActorID)
	w.eq("e.application_id", f.ApplicationID)
	w.eq("e.resource_id", f.ResourceID)
	w.eq("e.ip", f.IP)
	if len(f.Actions) > 0 {
		actions := make([]string, len(f.Actions))
		for i, a := range f.Actions {
			actions[i] = string(a)
		}
		w.in("e.action", actions)
	}
	w.in("e.resource", f.Resources)
	if !f.From.IsZero() {
		w.add("e.created_at >= " + w.next(f.From.UTC()))
	}
	if !f.To.IsZero() {
		w.add("e.created_at < " + w.next(f.To.UTC()))
	}
	return w
}
