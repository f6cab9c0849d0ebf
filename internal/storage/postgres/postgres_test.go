package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptions(t *testing.T) {
	cfg, err := pgxpool.ParseConfig("postgres://u:p@localhost:5432/minter?sslmode=disable")
	require.NoError(t, err)

	WithMaxConns(9)(cfg)
	WithMaxConns(0)(cfg)
	WithApplicationName("batch")(cfg)

	assert.Equal(t, int32(9), cfg.MaxConns)
	assert.Equal(t, "batch", cfg.ConnConfig.RuntimeParams["application_name"])
}

func TestUniqueViolation(t *testing.T) {
	err := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505", ConstraintName: "mint_records_mint_key"})
	constraint, ok := uniqueViolation(err)
	assert.True(t, ok)
	assert.Equal(t, "mint_records_mint_key", constraint)

	_, ok = uniqueViolation(&pgconn.PgError{Code: "23503"})
	assert.False(t, ok)
	_, ok = uniqueViolation(errors.New("boom"))
	assert.False(t, ok)

	assert.True(t, isNotFoundError(fmt.Errorf("get: %w", pgx.ErrNoRows)))
}
