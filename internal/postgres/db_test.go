package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestPgErrorClassification(t *testing.T) {
	dup := fmt.Errorf("insert product: %w", &pgconn.PgError{Code: "23505"})
	fk := &pgconn.PgError{Code: "23503"}

	assert.True(t, IsUniqueViolation(dup))
	assert.False(t, IsUniqueViolation(fk))
	assert.True(t, IsForeignKeyViolation(fk))
	assert.False(t, IsUniqueViolation(errors.New("boom")))
	assert.False(t, IsUniqueViolation(nil))

	bad := fmt.Errorf("get order: %w", &pgconn.PgError{Code: "22P02"})
	assert.True(t, IsInvalidText(bad))
	assert.False(t, IsInvalidText(dup))

	idx := &pgconn.PgError{Code: "23505", ConstraintName: "order_assignments_rider_active_idx"}
	assert.Equal(t, "order_assignments_rider_active_idx", Constraint(fmt.Errorf("wrap: %w", idx)))
	assert.Empty(t, Constraint(errors.New("boom")))
}

func TestSchemaEmbedded(t *testing.T) {
	assert.Contains(t, schema, "CREATE TABLE IF NOT EXISTS orders")
	assert.Contains(t, schema, "CHECK (total = subtotal + delivery_fee)")
	assert.Contains(t, schema, "order_assignments_rider_active_idx")
}
