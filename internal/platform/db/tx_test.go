package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/quoteflow/quoteflow/internal/shared"
)

func TestIsSerializationFailure(t *testing.T) {
	err := fmt.Errorf("update: %w", &pgconn.PgError{Code: "40001"})
	assert.True(t, IsSerializationFailure(err))
	assert.False(t, IsSerializationFailure(&pgconn.PgError{Code: "23505"}))
	assert.False(t, IsSerializationFailure(errors.New("boom")))
	assert.ErrorIs(t, ErrSerialization, shared.ErrConflict)
}
