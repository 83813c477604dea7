package db

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestIsDuplicateKeyErr(t *testing.T) {
	assert.False(t, IsDuplicateKeyErr(nil))
	assert.True(t, IsDuplicateKeyErr(gorm.ErrDuplicatedKey))
	assert.True(t, IsDuplicateKeyErr(&pgconn.PgError{Code: "23505"}))
	assert.False(t, IsDuplicateKeyErr(&pgconn.PgError{Code: "23503"}))
	assert.True(t, IsDuplicateKeyErr(errors.New("UNIQUE constraint failed: invoices.invoice_number")))
}

func TestIsForeignKeyErr(t *testing.T) {
	assert.True(t, IsForeignKeyErr(&pgconn.PgError{Code: "23503"}))
	assert.True(t, IsForeignKeyErr(errors.New("FOREIGN KEY constraint failed")))
	assert.False(t, IsForeignKeyErr(errors.New("boom")))
}

func TestRetryReadRetriesTransientOnce(t *testing.T) {
	calls := 0
	err := RetryRead(context.Background(), func(ctx context.Context) error {
		calls++
		return &pgconn.PgError{Code: "08006"}
	})
	assert.Error(t, err)
	assert.Equal(t, 2, calls)
}

func TestRetryReadDoesNotRetryPermanent(t *testing.T) {
	calls := 0
	err := RetryRead(context.Background(), func(ctx context.Context) error {
		calls++
		return errors.New("syntax error")
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryReadSucceedsSecondAttempt(t *testing.T) {
	calls := 0
	err := RetryRead(context.Background(), func(ctx context.Context) error {
		calls++
		if calls == 1 {
			return errors.New("driver: bad connection")
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 2, calls)
}
