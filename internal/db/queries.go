package db

import (
	"context"
	"database/sql"
	"strings"

	"github.com/hpungsan/codyarch/internal/budget"
	"github.com/hpungsan/codyarch/internal/errors"
	"github.com/hpungsan/codyarch/internal/result"
)

// Record is one indexed, persisted document. Content lives on disk at Path.
type Record struct {
	ID         string        `json:"id"`
	Workspace  string        `json:"workspace"`
	Kind       result.Kind   `json:"kind"`
	Query      string        `json:"query"`
	Name       string        `json:"name"`
	Path       string        `json:"path"`
	Chars      int           `json:"chars"`
	Metric     budget.Metric `json:"metric"`
	Size       int           `json:"size"`
	Limit      int           `json:"limit"`
	Iterations int           `json:"iterations"`
	CreatedAt  int64         `json:"created_at"`
	UpdatedAt  int64         `json:"updated_at"`
}

// ListFilter narrows List. Empty fields match everything.
type ListFilter struct {
	Workspace string
	Kind      result.Kind
}

const recordColumns = `id, workspace, kind, query, name, path, chars, metric,
	size, size_limit, iterations, created_at, updated_at`

// Upsert stores r keyed by its path. When the path is already indexed the
// existing row is updated in place and keeps its ID and created_at; r is
// updated to reflect the stored row.
func Upsert(ctx context.Context, db *sql.DB, r *Record) error {
	query := `
		INSERT INTO results (` + recordColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			workspace = excluded.workspace,
			kind = excluded.kind,
			query = excluded.query,
			name = excluded.name,
			chars = excluded.chars,
			metric = excluded.metric,
			size = excluded.size,
			size_limit = excluded.size_limit,
			iterations = excluded.iterations,
			updated_at = excluded.updated_at
		RETURNING id, created_at
	`

	err := db.QueryRowContext(ctx, query,
		r.ID, r.Workspace, string(r.Kind), r.Query, r.Name, r.Path, r.Chars,
		string(r.Metric), r.Size, r.Limit, r.Iterations, r.CreatedAt, r.UpdatedAt,
	).Scan(&r.ID, &r.CreatedAt)
	if err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// GetByID retrieves a record by its ULID.
func GetByID(ctx context.Context, db *sql.DB, id string) (*Record, error) {
	row := db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM results WHERE id = ?`, id)
	r, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound(id)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return r, nil
}

// GetByPath retrieves a record by its file path.
func GetByPath(ctx context.Context, db *sql.DB, path string) (*Record, error) {
	row := db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM results WHERE path = ?`, path)
	r, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound(path)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return r, nil
}

// List returns records matching filter, newest first, plus the total match count.
func List(ctx context.Context, db *sql.DB, filter ListFilter, limit, offset int) ([]Record, int, error) {
	where, args := filter.clause()

	var total int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM results`+where, args...).Scan(&total); err != nil {
		return nil, 0, errors.NewInternal(err)
	}

	query := `SELECT ` + recordColumns + ` FROM results` + where +
		` ORDER BY updated_at DESC, id DESC LIMIT ? OFFSET ?`
	rows, err := db.QueryContext(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, errors.NewInternal(err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, 0, errors.NewInternal(err)
		}
		records = append(records, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errors.NewInternal(err)
	}

	return records, total, nil
}

// DeleteByID removes a record.
func DeleteByID(ctx context.Context, db *sql.DB, id string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM results WHERE id = ?`, id)
	if err != nil {
		return errors.NewInternal(err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return errors.NewInternal(err)
	}
	if rowsAffected == 0 {
		return errors.NewNotFound(id)
	}
	return nil
}

func (f ListFilter) clause() (string, []any) {
	var conds []string
	var args []any
	if ws := strings.TrimSpace(f.Workspace); ws != "" {
		conds = append(conds, "workspace = ?")
		args = append(args, ws)
	}
	if f.Kind != "" {
		conds = append(conds, "kind = ?")
		args = append(args, string(f.Kind))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

type scanner interface {
	Scan(dest ...any) error
}

// scanRecord scans a single row into a Record.
func scanRecord(row scanner) (*Record, error) {
	var (
		r      Record
		kind   string
		metric string
	)
	err := row.Scan(
		&r.ID, &r.Workspace, &kind, &r.Query, &r.Name, &r.Path, &r.Chars, &metric,
		&r.Size, &r.Limit, &r.Iterations, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	r.Kind = result.Kind(kind)
	r.Metric = budget.Metric(metric)
	return &r, nil
}
