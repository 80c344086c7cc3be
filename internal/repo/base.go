// Package repo holds the connection handling shared by domain repositories.
package repo

import (
	"context"

	"gorm.io/gorm"
)

// Base carries a connection that is either the pool or an open transaction.
type Base struct {
	db *gorm.DB
}

func NewBase(db *gorm.DB) Base {
	return Base{db: db}
}

// DB returns the connection scoped to ctx. A nil ctx yields the raw handle.
func (b Base) DB(ctx context.Context) *gorm.DB {
	if ctx == nil {
		return b.db
	}
	return b.db.WithContext(ctx)
}

// Bind returns a Base running on tx, or b itself when tx is nil, so callers
// can pass an optional transaction straight through.
func (b Base) Bind(tx *gorm.DB) Base {
	if tx == nil {
		return b
	}
	return Base{db: tx}
}

// InTx reports whether b is bound to a transaction rather than the pool.
func (b Base) InTx() bool {
	if b.db == nil || b.db.Statement == nil {
		return false
	}
	_, ok := b.db.Statement.ConnPool.(gorm.TxCommitter)
	return ok
}
