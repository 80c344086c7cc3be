package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestIsUniqueViolation(t *testing.T) {
	pgxErr := &pgconn.PgError{Code: "23505", ConstraintName: "idempotency_keys_key_scope_key"}
	pqErr := &pq.Error{Code: "23505", Constraint: "shipments_awb_key"}

	cases := []struct {
		name       string
		err        error
		constraint string
		want       bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "pgx any", err: fmt.Errorf("insert: %w", pgxErr), want: true},
		{name: "pgx named", err: pgxErr, constraint: "idempotency_keys_key_scope_key", want: true},
		{name: "pgx other constraint", err: pgxErr, constraint: "shipments_awb_key", want: false},
		{name: "pq named", err: pqErr, constraint: "shipments_awb_key", want: true},
		{name: "pgx other code", err: &pgconn.PgError{Code: "23503"}, want: false},
		{name: "gorm translated", err: gorm.ErrDuplicatedKey, want: true},
		{name: "sqlite", err: errors.New("UNIQUE constraint failed: idempotency_keys.key, idempotency_keys.scope"), want: true},
		{name: "sqlite named", err: errors.New("UNIQUE constraint failed: idempotency_keys.key"), constraint: "idempotency_keys", want: true},
		{name: "unrelated", err: errors.New("connection reset"), want: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsUniqueViolation(tc.err, tc.constraint))
		})
	}
}
