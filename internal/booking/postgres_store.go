package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type pgxQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const recordColumns = `id, name, contact, mobile, subject, requested_date, requested_time, status, created_at`

// PostgresStore stores bookings in the bookings table.
type PostgresStore struct {
	db pgxQuerier
}

// NewPostgresStore wraps a pgx pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	if pool == nil {
		panic("booking: pgx pool required")
	}
	return &PostgresStore{db: pool}
}

func newPostgresStoreWithDB(db pgxQuerier) *PostgresStore {
	if db == nil {
		panic("booking: db required")
	}
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Save(ctx context.Context, c Candidate, opts ...SaveOption) (*Record, error) {
	rec, err := prepareNew(c, opts...)
	if err != nil {
		return nil, err
	}
	query := `
		INSERT INTO bookings (name, contact, mobile, subject, requested_date, requested_time, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`
	if err := s.db.QueryRow(ctx, query,
		rec.Name,
		rec.Contact,
		rec.Mobile,
		rec.Subject,
		rec.RequestedDate,
		rec.RequestedTime,
		string(rec.Status),
	).Scan(&rec.ID, &rec.CreatedAt); err != nil {
		return nil, fmt.Errorf("booking: insert failed: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) FindLatestByContact(ctx context.Context, contact string) (*Record, error) {
	query := `SELECT ` + recordColumns + `
		FROM bookings
		WHERE contact = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1`
	rec, err := scanRecord(s.db.QueryRow(ctx, query, NormalizeContact(contact)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("booking: latest by contact: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) GetByID(ctx context.Context, id int64) (*Record, error) {
	query := `SELECT ` + recordColumns + ` FROM bookings WHERE id = $1`
	rec, err := scanRecord(s.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("booking: select failed: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]*Record, error) {
	query := `SELECT ` + recordColumns + ` FROM bookings ORDER BY created_at DESC, id DESC`
	return s.queryRecords(ctx, "list", query)
}

func (s *PostgresStore) ListByStatus(ctx context.Context, status Status) ([]*Record, error) {
	status, err := canonicalStatus(status)
	if err != nil {
		return nil, err
	}
	query := `SELECT ` + recordColumns + `
		FROM bookings
		WHERE status = $1
		ORDER BY created_at DESC, id DESC`
	return s.queryRecords(ctx, "list by status", query, string(status))
}

func (s *PostgresStore) Search(ctx context.Context, term string) ([]*Record, error) {
	pattern := "%" + escapeLike(strings.TrimSpace(term)) + "%"
	query := `SELECT ` + recordColumns + `
		FROM bookings
		WHERE name ILIKE $1 OR contact ILIKE $1 OR mobile ILIKE $1 OR subject ILIKE $1 OR status ILIKE $1
		ORDER BY created_at DESC, id DESC`
	return s.queryRecords(ctx, "search", query, pattern)
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, id int64, status Status) (*Record, error) {
	status, err := canonicalStatus(status)
	if err != nil {
		return nil, err
	}
	return s.UpdateFields(ctx, id, Patch{Status: &status})
}

func (s *PostgresStore) UpdateFields(ctx context.Context, id int64, patch Patch) (*Record, error) {
	patch, err := checkPatch(patch)
	if err != nil {
		return nil, err
	}

	var (
		sets []string
		args []any
	)
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if patch.Name != nil {
		add("name", *patch.Name)
	}
	if patch.Contact != nil {
		add("contact", *patch.Contact)
	}
	if patch.Mobile != nil {
		add("mobile", *patch.Mobile)
	}
	if patch.Subject != nil {
		add("subject", *patch.Subject)
	}
	if patch.Date != nil {
		add("requested_date", *patch.Date)
	}
	if patch.Time != nil {
		add("requested_time", *patch.Time)
	}
	if patch.Status != nil {
		add("status", string(*patch.Status))
	}
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE bookings SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(sets, ", "), len(args), recordColumns)
	rec, err := scanRecord(s.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("booking: update failed: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) Reschedule(ctx context.Context, id int64, date, timeOfDay string) (*Record, error) {
	patch, err := rescheduleFields(date, timeOfDay)
	if err != nil {
		return nil, err
	}
	return s.UpdateFields(ctx, id, patch)
}

func (s *PostgresStore) Delete(ctx context.Context, id int64) error {
	ct, err := s.db.Exec(ctx, `DELETE FROM bookings WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("booking: delete failed: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Stats counts every status in one statement so the numbers agree.
func (s *PostgresStore) Stats(ctx context.Context) (Stats, error) {
	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'Pending'),
			COUNT(*) FILTER (WHERE status = 'Scheduled'),
			COUNT(*) FILTER (WHERE status = 'Completed'),
			COUNT(*) FILTER (WHERE status = 'Cancelled'),
			COUNT(*) FILTER (WHERE status = 'Rescheduled')
		FROM bookings
	`
	stats := newStats()
	var pending, scheduled, completed, cancelled, rescheduled int64
	if err := s.db.QueryRow(ctx, query).Scan(
		&stats.Total,
		&pending,
		&scheduled,
		&completed,
		&cancelled,
		&rescheduled,
	); err != nil {
		return Stats{}, fmt.Errorf("booking: stats failed: %w", err)
	}
	stats.ByStatus[StatusPending] = pending
	stats.ByStatus[StatusScheduled] = scheduled
	stats.ByStatus[StatusCompleted] = completed
	stats.ByStatus[StatusCancelled] = cancelled
	stats.ByStatus[StatusRescheduled] = rescheduled
	return stats, nil
}

func (s *PostgresStore) queryRecords(ctx context.Context, op, query string, args ...any) ([]*Record, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("booking: %s: %w", op, err)
	}
	defer rows.Close()

	out := []*Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("booking: %s scan: %w", op, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("booking: %s rows: %w", op, err)
	}
	return out, nil
}

func scanRecord(row pgx.Row) (*Record, error) {
	var (
		rec    Record
		status string
	)
	if err := row.Scan(
		&rec.ID,
		&rec.Name,
		&rec.Contact,
		&rec.Mobile,
		&rec.Subject,
		&rec.RequestedDate,
		&rec.RequestedTime,
		&status,
		&rec.CreatedAt,
	); err != nil {
		return nil, err
	}
	rec.Status = Status(status)
	return &rec, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string { return likeEscaper.Replace(s) }
