package limiter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"
)

func newLimiter(t *testing.T) (*PG, pgxmock.PgxPoolIface, time.Time) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	l := NewPG(mock, 15*time.Minute, 3, 10*time.Minute)
	now := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	return l, mock, now
}

func TestAllow(t *testing.T) {
	l, mock, now := newLimiter(t)
	ctx := context.Background()
	h := HashIP("10.0.0.1")

	mock.ExpectQuery(`SELECT blocked_until FROM login_attempts WHERE email=\$1 AND ip_hash=\$2`).
		WithArgs("a@b.c", h).WillReturnError(pgx.ErrNoRows)
	ok, wait, err := l.Allow(ctx, "a@b.c", h)
	require.NoError(t, err)
	require.True(t, ok)
	require.Zero(t, wait)

	mock.ExpectQuery(`SELECT blocked_until`).
		WithArgs("a@b.c", h).
		WillReturnRows(pgxmock.NewRows([]string{"blocked_until"}).AddRow(now.Add(5 * time.Minute)))
	ok, wait, err = l.Allow(ctx, "a@b.c", h)
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, 5*time.Minute, wait)

	mock.ExpectQuery(`SELECT blocked_until`).
		WithArgs("a@b.c", h).
		WillReturnRows(pgxmock.NewRows([]string{"blocked_until"}).AddRow(now.Add(-time.Minute)))
	ok, _, err = l.Allow(ctx, "a@b.c", h)
	require.NoError(t, err)
	require.True(t, ok)

	mock.ExpectQuery(`SELECT blocked_until`).
		WithArgs("a@b.c", h).WillReturnError(errors.New("down"))
	_, _, err = l.Allow(ctx, "a@b.c", h)
	require.Error(t, err)
}

func TestFailure_BelowAndAtThreshold(t *testing.T) {
	l, mock, now := newLimiter(t)
	ctx := context.Background()
	h := HashIP("10.0.0.1")

	mock.ExpectQuery(`RETURNING fail_count`).
		WithArgs("a@b.c", h, 15*time.Minute).
		WillReturnRows(pgxmock.NewRows([]string{"fail_count"}).AddRow(2))
	blocked, _, err := l.Failure(ctx, "a@b.c", h)
	require.NoError(t, err)
	require.False(t, blocked)

	mock.ExpectQuery(`RETURNING fail_count`).
		WithArgs("a@b.c", h, 15*time.Minute).
		WillReturnRows(pgxmock.NewRows([]string{"fail_count"}).AddRow(3))
	mock.ExpectExec(`UPDATE login_attempts SET blocked_until=\$3 WHERE email=\$1 AND ip_hash=\$2`).
		WithArgs("a@b.c", h, now.Add(10*time.Minute)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	blocked, wait, err := l.Failure(ctx, "a@b.c", h)
	require.NoError(t, err)
	require.True(t, blocked)
	require.Equal(t, 10*time.Minute, wait)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFailure_Errors(t *testing.T) {
	l, mock, _ := newLimiter(t)
	ctx := context.Background()
	h := HashIP("x")

	mock.ExpectQuery(`RETURNING fail_count`).
		WithArgs("a@b.c", h, 15*time.Minute).
		WillReturnError(errors.New("q"))
	_, _, err := l.Failure(ctx, "a@b.c", h)
	require.Error(t, err)

	mock.ExpectQuery(`RETURNING fail_count`).
		WithArgs("a@b.c", h, 15*time.Minute).
		WillReturnRows(pgxmock.NewRows([]string{"fail_count"}).AddRow(5))
	mock.ExpectExec(`UPDATE login_attempts`).WillReturnError(errors.New("u"))
	_, _, err = l.Failure(ctx, "a@b.c", h)
	require.Error(t, err)
}

func TestSuccess(t *testing.T) {
	l, mock, _ := newLimiter(t)
	h := HashIP("x")

	mock.ExpectExec(`INSERT INTO login_attempts .* ON CONFLICT \(email, ip_hash\) DO UPDATE SET fail_count=0`).
		WithArgs("a@b.c", h).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, l.Success(context.Background(), "a@b.c", h))
}

func TestHashIP_Stable(t *testing.T) {
	require.Equal(t, HashIP("1.2.3.4"), HashIP("1.2.3.4"))
	require.NotEqual(t, HashIP("1.2.3.4"), HashIP("1.2.3.5"))
	require.Len(t, HashIP(""), 32)
}
