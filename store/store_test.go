package store_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sourcegraph/conc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tanpawarit/kirana-assistant/store"
	"github.com/tanpawarit/kirana-assistant/store/storetest"
)

func TestRecordSaleDecrementsStockAndAppendsLedger(t *testing.T) {
	ctx := context.Background()
	s := storetest.New(t)
	milk := storetest.MustCreate(t, s, "Milk", 27, 5, 50)

	receipt, err := s.RecordSale(ctx, milk.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, receipt.Product.Stock)
	assert.Equal(t, 2, receipt.Sale.Quantity)
	assert.InDelta(t, 54.0, receipt.Sale.TotalAmount, 0.001)
	assert.NotZero(t, receipt.Sale.ID)

	got, err := s.GetProduct(ctx, milk.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Stock)

	n, err := s.CountSales(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRecordSaleInsufficientStockLeavesStoreUnchanged(t *testing.T) {
	ctx := context.Background()
	s := storetest.New(t)
	milk := storetest.MustCreate(t, s, "Milk", 27, 5, 50)

	_, err := s.RecordSale(ctx, milk.ID, 6)
	require.Error(t, err)
	assert.True(t, errors.Is(err, store.ErrInsufficientStock))

	var stockErr *store.InsufficientStockError
	require.True(t, errors.As(err, &stockErr))
	assert.Equal(t, 6, stockErr.Requested)
	assert.Equal(t, 5, stockErr.Available)

	got, err := s.GetProduct(ctx, milk.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, got.Stock)

	n, err := s.CountSales(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRecordSaleRejectsBadInput(t *testing.T) {
	ctx := context.Background()
	s := storetest.New(t)
	milk := storetest.MustCreate(t, s, "Milk", 27, 5, 50)

	_, err := s.RecordSale(ctx, milk.ID, 0)
	assert.ErrorIs(t, err, store.ErrInvalidQuantity)

	_, err = s.RecordSale(ctx, milk.ID+100, 1)
	assert.ErrorIs(t, err, store.ErrProductNotFound)
}

// The SQLite test handle has a single connection, so these callers reach the
// database one at a time. TestDecrementStockRejectsStaleQuantity covers the
// check-then-write race directly.
func TestRecordSaleConcurrentCallersNeverOversell(t *testing.T) {
	ctx := context.Background()
	s := storetest.New(t)
	rice := storetest.MustCreate(t, s, "Rice", 55, 20, 200)

	const callers = 10
	var (
		wg         conc.WaitGroup
		succeeded  atomic.Int32
		outOfStock atomic.Int32
		other      atomic.Int32
	)
	for i := 0; i < callers; i++ {
		wg.Go(func() {
			_, err := s.RecordSale(ctx, rice.ID, 3)
			switch {
			case err == nil:
				succeeded.Add(1)
			case errors.Is(err, store.ErrInsufficientStock):
				outOfStock.Add(1)
			default:
				other.Add(1)
			}
		})
	}
	wg.Wait()

	assert.Equal(t, int32(6), succeeded.Load())
	assert.Equal(t, int32(4), outOfStock.Load())
	assert.Zero(t, other.Load())

	got, err := s.GetProduct(ctx, rice.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Stock)

	n, err := s.CountSales(ctx)
	require.NoError(t, err)
	assert.Equal(t, 6, n)
}

func TestDecrementStockRejectsStaleQuantity(t *testing.T) {
	ctx := context.Background()
	s := storetest.New(t)
	milk := storetest.MustCreate(t, s, "Milk", 27, 5, 50)

	seen, err := s.GetProduct(ctx, milk.ID)
	require.NoError(t, err)
	require.GreaterOrEqual(t, seen.Stock, 4, "first caller sees enough stock for 4")

	_, err = s.RecordSale(ctx, milk.ID, 3)
	require.NoError(t, err)

	applied, err := s.DecrementStock(ctx, milk.ID, 4)
	require.NoError(t, err)
	assert.False(t, applied)

	got, err := s.GetProduct(ctx, milk.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Stock)

	applied, err = s.DecrementStock(ctx, milk.ID, 2)
	require.NoError(t, err)
	assert.True(t, applied)

	got, err = s.GetProduct(ctx, milk.ID)
	require.NoError(t, err)
	assert.Zero(t, got.Stock)
}

func TestAdjustStock(t *testing.T) {
	ctx := context.Background()
	s := storetest.New(t)
	dal := storetest.MustCreate(t, s, "Toor Dal", 120, 4, 100)

	p, err := s.AdjustStock(ctx, dal.ID, 10)
	require.NoError(t, err)
	assert.Equal(t, 14, p.Stock)

	p, err = s.AdjustStock(ctx, dal.ID, -14)
	require.NoError(t, err)
	assert.Equal(t, 0, p.Stock)

	_, err = s.AdjustStock(ctx, dal.ID, -1)
	assert.ErrorIs(t, err, store.ErrInsufficientStock)

	_, err = s.AdjustStock(ctx, dal.ID, 0)
	assert.ErrorIs(t, err, store.ErrInvalidQuantity)

	_, err = s.AdjustStock(ctx, dal.ID+99, 1)
	assert.ErrorIs(t, err, store.ErrProductNotFound)

	got, err := s.GetProduct(ctx, dal.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Stock)
}

func TestFindByNameLikeTieBreak(t *testing.T) {
	ctx := context.Background()
	s := storetest.New(t)
	storetest.MustCreate(t, s, "Milk Powder", 300, 5, 10)
	storetest.MustCreate(t, s, "Milk (500ml)", 27, 20, 50)
	storetest.MustCreate(t, s, "Buttermilk", 15, 10, 20)
	storetest.MustCreate(t, s, "Tata Salt", 25, 100, 100)

	p, err := s.FindByNameLike(ctx, "MILK")
	require.NoError(t, err)
	assert.Equal(t, "Buttermilk", p.Name, "shortest name wins")

	p, err = s.FindByNameLike(ctx, "milk (")
	require.NoError(t, err)
	assert.Equal(t, "Milk (500ml)", p.Name)

	for _, term := range []string{"paneer", "tata salt 1kg", "buttermilk lassi"} {
		_, err = s.FindByNameLike(ctx, term)
		assert.ErrorIs(t, err, store.ErrProductNotFound, term)
	}

	_, err = s.FindByNameLike(ctx, "   ")
	assert.ErrorIs(t, err, store.ErrProductNotFound)
}

func TestFindByNameLikeLexicographicTieBreak(t *testing.T) {
	ctx := context.Background()
	s := storetest.New(t)
	storetest.MustCreate(t, s, "Dal B", 1, 1, 1)
	storetest.MustCreate(t, s, "dal a", 1, 1, 1)

	p, err := s.FindByNameLike(ctx, "dal")
	require.NoError(t, err)
	assert.Equal(t, "dal a", p.Name)
}

func TestFindByNameLikeEscapesWildcards(t *testing.T) {
	ctx := context.Background()
	s := storetest.New(t)
	storetest.MustCreate(t, s, "Soap", 30, 5, 10)

	_, err := s.FindByNameLike(ctx, "%")
	assert.ErrorIs(t, err, store.ErrProductNotFound)
}

func TestLowStockBoundaries(t *testing.T) {
	assert.True(t, store.IsLowStock(25, 50))
	assert.False(t, store.IsLowStock(26, 50))
	assert.True(t, store.IsCriticalStock(10, 50))
	assert.False(t, store.IsCriticalStock(11, 50))
	assert.True(t, store.IsCriticalStock(3, 50))

	ctx := context.Background()
	s := storetest.New(t)
	storetest.MustCreate(t, s, "At Half", 1, 25, 50)
	storetest.MustCreate(t, s, "Above Half", 1, 26, 50)
	storetest.MustCreate(t, s, "Empty", 1, 0, 10)

	low, err := s.LowStock(ctx, 10)
	require.NoError(t, err)
	require.Len(t, low, 2)
	assert.Equal(t, "Empty", low[0].Name)
	assert.Equal(t, "At Half", low[1].Name)
}

func TestBulkMergeMatchesCaseInsensitively(t *testing.T) {
	ctx := context.Background()
	s := storetest.New(t)
	sugar := storetest.MustCreate(t, s, "Sugar", 42, 10, 150)

	out, err := s.BulkMerge(ctx, []store.ProductInput{
		{Name: "SUGAR", Stock: 5, Price: 45},
		{Name: "sugar", Stock: 1, Price: 0},
		{Name: "Jaggery", Category: "Essentials", Stock: 7, Price: 60},
	})
	require.NoError(t, err)
	require.Len(t, out, 3)

	got, err := s.GetProduct(ctx, sugar.ID)
	require.NoError(t, err)
	assert.Equal(t, 16, got.Stock)
	assert.InDelta(t, 45.0, got.Price, 0.001)

	j, err := s.FindByNameLike(ctx, "jaggery")
	require.NoError(t, err)
	assert.Equal(t, 7, j.Stock)
	assert.Equal(t, store.DefaultMaxStock, j.MaxStock)
}

func TestBulkMergeRejectsInvalidBatch(t *testing.T) {
	ctx := context.Background()
	s := storetest.New(t)

	_, err := s.BulkMerge(ctx, []store.ProductInput{
		{Name: "Ok", Stock: 1},
		{Name: "Bad", Stock: -1},
	})
	assert.ErrorIs(t, err, store.ErrInvalidProduct)

	n, err := s.CountProducts(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestUpdateShelfPositions(t *testing.T) {
	ctx := context.Background()
	s := storetest.New(t)
	curd := storetest.MustCreate(t, s, "Curd", 35, 15, 30)

	n, err := s.UpdateShelfPositions(ctx, []store.ShelfAssignment{
		{Name: "curd", Shelf: "Fridge-2"},
		{Name: "unknown thing", Shelf: "Z9"},
		{Name: "", Shelf: "A1"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := s.GetProduct(ctx, curd.ID)
	require.NoError(t, err)
	assert.Equal(t, "Fridge-2", got.ShelfPosition)
}

func TestRevenueOnCountsOnlyThatDay(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	clock := now
	s := storetest.New(t, store.WithClock(func() time.Time { return clock }))
	atta := storetest.MustCreate(t, s, "Atta", 210, 40, 40)

	clock = now.AddDate(0, 0, -1)
	_, err := s.RecordSale(ctx, atta.ID, 1)
	require.NoError(t, err)

	clock = now
	_, err = s.RecordSale(ctx, atta.ID, 2)
	require.NoError(t, err)

	rev, err := s.RevenueOn(ctx, now)
	require.NoError(t, err)
	assert.InDelta(t, 420.0, rev.Total, 0.001)
	assert.Equal(t, 1, rev.Count)

	prodRev, units, err := s.ProductRevenueOn(ctx, atta.ID, now)
	require.NoError(t, err)
	assert.Equal(t, 2, units)
	assert.InDelta(t, 420.0, prodRev.Total, 0.001)

	sales, err := s.ListSales(ctx, 10)
	require.NoError(t, err)
	require.Len(t, sales, 2)
	assert.Equal(t, "Atta", sales[0].ProductName)
	assert.Equal(t, 2, sales[0].Quantity)
}

func TestCrudLifecycle(t *testing.T) {
	ctx := context.Background()
	s := storetest.New(t)

	p, err := s.CreateProduct(ctx, store.ProductInput{Name: "  Ghee ", Category: "Dairy", Price: 550, Stock: 3})
	require.NoError(t, err)
	assert.Equal(t, "Ghee", p.Name)
	assert.Equal(t, store.DefaultMaxStock, p.MaxStock)

	maxStock := 10
	p, err = s.UpdateProduct(ctx, p.ID, store.ProductInput{Name: "Ghee 1L", Price: 600, Stock: 4, MaxStock: &maxStock})
	require.NoError(t, err)
	assert.Equal(t, "Ghee 1L", p.Name)
	assert.Equal(t, 10, p.MaxStock)

	list, err := s.ListProducts(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.NoError(t, s.DeleteProduct(ctx, p.ID))
	assert.ErrorIs(t, s.DeleteProduct(ctx, p.ID), store.ErrProductNotFound)

	_, err = s.CreateProduct(ctx, store.ProductInput{Name: "Bad", Price: -1})
	assert.ErrorIs(t, err, store.ErrInvalidProduct)
}

func TestSeedOnlyWhenEmpty(t *testing.T) {
	ctx := context.Background()
	s := storetest.New(t)

	seeded, err := s.Seed(ctx)
	require.NoError(t, err)
	assert.True(t, seeded)

	seeded, err = s.Seed(ctx)
	require.NoError(t, err)
	assert.False(t, seeded)

	n, err := s.CountProducts(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(store.DefaultProducts), n)
}
