// Package storetest opens isolated in-memory stores for tests.
package storetest

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tanpawarit/kirana-assistant/pkg/database"
	"github.com/tanpawarit/kirana-assistant/store"
)

var seq atomic.Int64

// New returns an initialised SQLite-backed store that is closed with the test.
func New(t testing.TB, opts ...store.Option) *store.Store {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared&_busy_timeout=5000", name, seq.Add(1))

	db, err := database.Open(database.Config{Driver: database.DriverSQLite, DSN: dsn})
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}

	s := store.New(db, opts...)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Init(ctx); err != nil {
		t.Fatalf("init test store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// MustCreate inserts a product and fails the test on error.
func MustCreate(t testing.TB, s *store.Store, name string, price float64, stock, maxStock int) store.Product {
	t.Helper()
	p, err := s.CreateProduct(context.Background(), store.ProductInput{
		Name:     name,
		Category: "Test",
		Price:    price,
		Stock:    stock,
		MaxStock: &maxStock,
	})
	if err != nil {
		t.Fatalf("create product %q: %v", name, err)
	}
	return p
}
