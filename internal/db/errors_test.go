package db

import (
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
)

func TestIsUniqueViolation_Postgres(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"}
	assert.True(t, IsUniqueViolation(pgErr))
	assert.True(t, IsUniqueViolation(eris.Wrap(pgErr, "contacts: insert")), "wrapped errors classify")
}

func TestIsUniqueViolation_PostgresOtherCode(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23503", Message: "foreign key violation"}
	assert.False(t, IsUniqueViolation(pgErr))
}

func TestIsUniqueViolation_SQLite(t *testing.T) {
	err := fmt.Errorf("constraint failed: UNIQUE constraint failed: contacts.email (2067)")
	assert.True(t, IsUniqueViolation(err))
}

func TestIsUniqueViolation_Other(t *testing.T) {
	assert.False(t, IsUniqueViolation(nil))
	assert.False(t, IsUniqueViolation(fmt.Errorf("connection refused")))
}
