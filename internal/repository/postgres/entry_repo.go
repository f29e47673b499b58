package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/and161185/reflekt/internal/errs"
	"github.com/and161185/reflekt/internal/model"
)

const entryColumns = `id, user_id, title, content, created_at, updated_at, import_source, import_date`

// EntryRepo implements EntryRepository using PostgreSQL.
type EntryRepo struct{ db *DB }

// NewEntryRepo constructs an entry repository.
func NewEntryRepo(db *DB) *EntryRepo { return &EntryRepo{db: db} }

func scanEntry(row pgx.Row) (*model.Entry, error) {
	var e model.Entry
	if err := row.Scan(&e.ID, &e.UserID, &e.Title, &e.Content, &e.CreatedAt, &e.UpdatedAt, &e.ImportSource, &e.ImportDate); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &e, nil
}

// Create inserts a new entry; created_at and updated_at are both set to now.
func (r *EntryRepo) Create(ctx context.Context, userID uuid.UUID, title, content string, now time.Time) (*model.Entry, error) {
	const q = `
INSERT INTO entries (user_id, title, content, created_at, updated_at)
VALUES ($1,$2,$3,$4,$4)
RETURNING ` + entryColumns
	e, err := scanEntry(r.db.Pool.QueryRow(ctx, q, userID, title, content, now))
	if err != nil {
		return nil, fmt.Errorf("insert entry: %w", err)
	}
	return e, nil
}

// Update overwrites title and content and refreshes updated_at.
func (r *EntryRepo) Update(ctx context.Context, userID uuid.UUID, id int64, title, content string, now time.Time) (*model.Entry, error) {
	const q = `
UPDATE entries SET title=$3, content=$4, updated_at=$5
WHERE id=$1 AND user_id=$2
RETURNING ` + entryColumns
	e, err := scanEntry(r.db.Pool.QueryRow(ctx, q, id, userID, title, content, now))
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("update entry %d: %w", id, err)
	}
	return e, nil
}

// Delete removes the entry row.
func (r *EntryRepo) Delete(ctx context.Context, userID uuid.UUID, id int64) error {
	const q = `DELETE FROM entries WHERE id=$1 AND user_id=$2`
	tag, err := r.db.Pool.Exec(ctx, q, id, userID)
	if err != nil {
		return fmt.Errorf("delete entry %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// GetByID returns a single entry owned by userID.
func (r *EntryRepo) GetByID(ctx context.Context, userID uuid.UUID, id int64) (*model.Entry, error) {
	const q = `SELECT ` + entryColumns + ` FROM entries WHERE id=$1 AND user_id=$2`
	return scanEntry(r.db.Pool.QueryRow(ctx, q, id, userID))
}

// GetForDay returns the newest entry created within [start, end].
func (r *EntryRepo) GetForDay(ctx context.Context, userID uuid.UUID, start, end time.Time) (*model.Entry, error) {
	const q = `
SELECT ` + entryColumns + `
FROM entries
WHERE user_id=$1 AND created_at>=$2 AND created_at<=$3
ORDER BY created_at DESC, id DESC
LIMIT 1`
	return scanEntry(r.db.Pool.QueryRow(ctx, q, userID, start, end))
}

// List returns one page of entries matching f, newest first.
func (r *EntryRepo) List(ctx context.Context, userID uuid.UUID, f model.Filter, limit, offset int) ([]model.Entry, error) {
	where, args := entryWhere(userID, f)
	args = append(args, limit, offset)
	q := fmt.Sprintf(`SELECT %s FROM entries WHERE %s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		entryColumns, where, len(args)-1, len(args))
	return r.queryEntries(ctx, q, args...)
}

// Count returns the number of entries matching f.
func (r *EntryRepo) Count(ctx context.Context, userID uuid.UUID, f model.Filter) (int, error) {
	where, args := entryWhere(userID, f)
	var n int64
	if err := r.db.Pool.QueryRow(ctx, `SELECT count(*) FROM entries WHERE `+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count entries: %w", err)
	}
	return int(n), nil
}

// Recent returns the newest entries of a user.
func (r *EntryRepo) Recent(ctx context.Context, userID uuid.UUID, limit int) ([]model.Entry, error) {
	const q = `SELECT ` + entryColumns + ` FROM entries WHERE user_id=$1 ORDER BY created_at DESC, id DESC LIMIT $2`
	return r.queryEntries(ctx, q, userID, limit)
}

// Import inserts legacy entries in a single transaction.
func (r *EntryRepo) Import(
	ctx context.Context, userID uuid.UUID, source string, entries []model.ImportedEntry, at time.Time,
) (n int, err error) {
	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if e := tx.Commit(ctx); e != nil {
			n, err = 0, e
		}
	}()

	const ins = `
INSERT INTO entries (user_id, title, content, created_at, updated_at, import_source, import_date)
VALUES ($1,$2,$3,$4,$4,$5,$6)`
	for i, e := range entries {
		if _, err = tx.Exec(ctx, ins, userID, e.Title, e.Content, e.CreatedAt, source, at); err != nil {
			return 0, fmt.Errorf("entry[%d]: %w", i, err)
		}
		n++
	}
	return n, nil
}

func (r *EntryRepo) queryEntries(ctx context.Context, q string, args ...any) ([]model.Entry, error) {
	rows, err := r.db.Pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	out := []model.Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

// entryWhere builds the conjunctive archive predicate and its positional args.
func entryWhere(userID uuid.UUID, f model.Filter) (string, []any) {
	conds := []string{"user_id=$1"}
	args := []any{userID}
	if f.Query != "" {
		args = append(args, "%"+escapeLike(f.Query)+"%")
		conds = append(conds, fmt.Sprintf(`title ILIKE $%d ESCAPE '\'`, len(args)))
	}
	if !f.CreatedFrom.IsZero() {
		args = append(args, f.CreatedFrom)
		conds = append(conds, fmt.Sprintf("created_at>=$%d", len(args)))
	}
	if !f.CreatedUntil.IsZero() {
		args = append(args, f.CreatedUntil)
		conds = append(conds, fmt.Sprintf("created_at<=$%d", len(args)))
	}
	return strings.Join(conds, " AND "), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string { return likeEscaper.Replace(s) }
