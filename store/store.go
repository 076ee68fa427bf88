// Package store persists products and the sales ledger with bun.
//
// Every stock mutation is a conditional UPDATE executed inside a transaction,
// so a check-then-write race between two requests cannot over-sell a product
// regardless of the isolation level of the underlying database.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"
)

type Store struct {
	db  *bun.DB
	now func() time.Time
}

type Option func(*Store)

// WithClock overrides time.Now for sale timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

func New(db *bun.DB, opts ...Option) *Store {
	s := &Store{db: db, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func (s *Store) DB() *bun.DB { return s.db }

// Init creates the products and sales tables when they do not exist.
func (s *Store) Init(ctx context.Context) error {
	models := []any{(*Product)(nil), (*Sale)(nil)}
	for _, m := range models {
		if _, err := s.db.NewCreateTable().Model(m).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create table for %T: %w", m, err)
		}
	}

	if _, err := s.db.NewCreateIndex().
		Model((*Sale)(nil)).
		Index("idx_sales_sold_at").
		Column("sold_at").
		IfNotExists().
		Exec(ctx); err != nil {
		return fmt.Errorf("create sales index: %w", err)
	}
	return nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) inTx(ctx context.Context, op string, fn func(ctx context.Context, tx bun.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrStoreTransaction, op, err)
	}
	err := s.db.RunInTx(ctx, nil, fn)
	if err == nil || isDomainError(err) {
		return err
	}
	if errors.Is(err, ErrStoreTransaction) {
		return err
	}
	return fmt.Errorf("%w: %s: %v", ErrStoreTransaction, op, err)
}

func isDomainError(err error) bool {
	return errors.Is(err, ErrProductNotFound) ||
		errors.Is(err, ErrInsufficientStock) ||
		errors.Is(err, ErrInvalidQuantity) ||
		errors.Is(err, ErrInvalidProduct)
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrProductNotFound
	}
	return err
}

// escapeLike quotes LIKE metacharacters for use with ESCAPE '\'.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
