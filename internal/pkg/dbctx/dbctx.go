package dbctx

import (
	"context"

	"gorm.io/gorm"
)

// Context carries the request context and, inside a transaction, the tx handle.
type Context struct {
	Ctx context.Context
	Tx  *gorm.DB
}

// DB returns the active transaction, or base when none is open, bound to Ctx.
func (c Context) DB(base *gorm.DB) *gorm.DB {
	db := c.Tx
	if db == nil {
		db = base
	}
	if c.Ctx == nil {
		return db
	}
	return db.WithContext(c.Ctx)
}
