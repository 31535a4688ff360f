package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ironlog/ironlog/internal/schema"
)

// Querier is satisfied by both *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Syncable is the capability the sync pipelines need from a table. It is
// implemented once, generically, by Repository.
type Syncable interface {
	Table() schema.Table

	// Get returns the row with id, tombstones included.
	Get(ctx context.Context, q Querier, id string) (schema.Entity, error)

	// Put fully replaces (or inserts) the row, metadata included.
	Put(ctx context.Context, q Querier, e schema.Entity) error

	// ListDirty returns every row with unacknowledged local changes.
	ListDirty(ctx context.Context, q Querier) ([]schema.Entity, error)

	CountDirty(ctx context.Context, q Querier) (int, error)

	// MarkSynced clears the dirty flag of each acknowledged id whose version
	// still matches the acknowledged version. A row edited after the
	// snapshot was taken stays dirty. Returns the number of rows updated.
	MarkSynced(ctx context.Context, q Querier, acks map[string]int64, serverTime time.Time, owner string) (int, error)

	// Decode parses a wire row for this table.
	Decode(raw json.RawMessage) (schema.Entity, error)
}

var metaColumns = []string{
	"id", "created_at", "updated_at", "deleted_at", "version",
	"owner_user_id", "server_updated_at", "is_dirty", "last_synced_at",
}

func metaValues(m *schema.SyncMetadata) []any {
	dirty := 0
	if m.IsDirty {
		dirty = 1
	}
	return []any{
		m.ID,
		formatTime(m.CreatedAt),
		formatTime(m.UpdatedAt),
		timeToNullString(m.DeletedAt),
		m.Version,
		m.OwnerUserID,
		timeToNullString(m.ServerUpdatedAt),
		dirty,
		timeToNullString(m.LastSyncedAt),
	}
}

func metaTargets(m *schema.SyncMetadata) []any {
	return []any{
		&m.ID,
		timeCol{&m.CreatedAt},
		timeCol{&m.UpdatedAt},
		nullTimeCol{&m.DeletedAt},
		&m.Version,
		&m.OwnerUserID,
		nullTimeCol{&m.ServerUpdatedAt},
		&m.IsDirty,
		nullTimeCol{&m.LastSyncedAt},
	}
}

// tableDef maps an entity type's domain fields to its columns. values and
// targets must list fields in columns order.
type tableDef[T any] struct {
	table   schema.Table
	columns []string
	values  func(*T) []any
	targets func(*T) []any
}

// Repository is the typed store for one entity table.
type Repository[T any, P interface {
	*T
	schema.Entity
}] struct {
	def       tableDef[T]
	selectSQL string
	upsertSQL string
}

func newRepository[T any, P interface {
	*T
	schema.Entity
}](def tableDef[T]) *Repository[T, P] {
	cols := append(append([]string{}, metaColumns...), def.columns...)

	updates := make([]string, 0, len(cols)-1)
	for _, c := range cols[1:] {
		updates = append(updates, fmt.Sprintf("%s = excluded.%s", c, c))
	}

	return &Repository[T, P]{
		def:       def,
		selectSQL: fmt.Sprintf("SELECT %s FROM %s", strings.Join(cols, ", "), def.table),
		upsertSQL: fmt.Sprintf(
			"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT(id) DO UPDATE SET %s",
			def.table,
			strings.Join(cols, ", "),
			strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", "),
			strings.Join(updates, ", "),
		),
	}
}

// Table returns the table this repository stores.
func (r *Repository[T, P]) Table() schema.Table {
	return r.def.table
}

func (r *Repository[T, P]) scan(row interface{ Scan(...any) error }) (P, error) {
	var v T
	p := P(&v)
	targets := append(metaTargets(p.Meta()), r.def.targets(&v)...)
	if err := row.Scan(targets...); err != nil {
		return nil, err
	}
	return p, nil
}

// Find returns the row with id, including tombstones.
func (r *Repository[T, P]) Find(ctx context.Context, q Querier, id string) (P, error) {
	p, err := r.scan(q.QueryRowContext(ctx, r.selectSQL+" WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s %s: %w", r.def.table, id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s %s: %w", r.def.table, id, err)
	}
	return p, nil
}

// FindLive returns the row with id unless it is missing or soft-deleted.
func (r *Repository[T, P]) FindLive(ctx context.Context, q Querier, id string) (P, error) {
	p, err := r.Find(ctx, q, id)
	if err != nil {
		return nil, err
	}
	if p.Meta().IsDeleted() {
		return nil, fmt.Errorf("%s %s: %w", r.def.table, id, ErrNotFound)
	}
	return p, nil
}

// Select returns the rows matching where (a SQL boolean expression,
// optionally followed by ORDER BY / LIMIT clauses).
func (r *Repository[T, P]) Select(ctx context.Context, q Querier, where string, args ...any) ([]P, error) {
	rows, err := q.QueryContext(ctx, r.selectSQL+" WHERE "+where, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", r.def.table, err)
	}
	defer rows.Close()

	var out []P
	for rows.Next() {
		p, err := r.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", r.def.table, err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s rows: %w", r.def.table, err)
	}
	return out, nil
}

// Upsert writes p as-is, replacing every column of an existing row.
func (r *Repository[T, P]) Upsert(ctx context.Context, q Querier, p P) error {
	args := append(metaValues(p.Meta()), r.def.values((*T)(p))...)
	if _, err := q.ExecContext(ctx, r.upsertSQL, args...); err != nil {
		return fmt.Errorf("failed to upsert %s %s: %w", r.def.table, p.Meta().ID, err)
	}
	return nil
}

// Get implements Syncable.
func (r *Repository[T, P]) Get(ctx context.Context, q Querier, id string) (schema.Entity, error) {
	p, err := r.Find(ctx, q, id)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Put implements Syncable.
func (r *Repository[T, P]) Put(ctx context.Context, q Querier, e schema.Entity) error {
	p, ok := e.(P)
	if !ok {
		return fmt.Errorf("cannot put %T into %s", e, r.def.table)
	}
	return r.Upsert(ctx, q, p)
}

// ListDirty implements Syncable.
func (r *Repository[T, P]) ListDirty(ctx context.Context, q Querier) ([]schema.Entity, error) {
	rows, err := r.Select(ctx, q, "is_dirty = 1 ORDER BY id")
	if err != nil {
		return nil, err
	}
	out := make([]schema.Entity, 0, len(rows))
	for _, p := range rows {
		out = append(out, p)
	}
	return out, nil
}

// CountDirty implements Syncable.
func (r *Repository[T, P]) CountDirty(ctx context.Context, q Querier) (int, error) {
	var count int
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE is_dirty = 1", r.def.table)
	if err := q.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count dirty %s: %w", r.def.table, err)
	}
	return count, nil
}

// MarkSynced implements Syncable.
func (r *Repository[T, P]) MarkSynced(ctx context.Context, q Querier, acks map[string]int64, serverTime time.Time, owner string) (int, error) {
	stamp := formatTime(serverTime)
	query := fmt.Sprintf(`
	UPDATE %s SET
		is_dirty = 0,
		last_synced_at = ?,
		server_updated_at = ?,
		owner_user_id = CASE WHEN ? = '' THEN owner_user_id ELSE ? END
	WHERE id = ? AND version = ?`, r.def.table)

	marked := 0
	for id, version := range acks {
		res, err := q.ExecContext(ctx, query, stamp, stamp, owner, owner, id, version)
		if err != nil {
			return marked, fmt.Errorf("failed to mark %s %s synced: %w", r.def.table, id, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return marked, fmt.Errorf("failed to read rows affected: %w", err)
		}
		marked += int(n)
	}
	return marked, nil
}

// Decode implements Syncable.
func (r *Repository[T, P]) Decode(raw json.RawMessage) (schema.Entity, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("failed to decode %s row: %w", r.def.table, err)
	}
	p := P(&v)
	if p.Meta().ID == "" {
		return nil, fmt.Errorf("failed to decode %s row: missing id", r.def.table)
	}
	p.Meta().NormalizeTimes()
	return p, nil
}
