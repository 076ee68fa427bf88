package store

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"
)

// RecordSale decrements stock and appends the ledger row in one transaction.
// The decrement only applies while stock >= qty, which serialises concurrent
// sales of the same product on the row itself.
func (s *Store) RecordSale(ctx context.Context, productID int64, qty int) (SaleReceipt, error) {
	if qty <= 0 {
		return SaleReceipt{}, ErrInvalidQuantity
	}

	var receipt SaleReceipt
	err := s.inTx(ctx, "record sale", func(ctx context.Context, tx bun.Tx) error {
		applied, err := decrementStock(ctx, tx, productID, qty)
		if err != nil {
			return err
		}

		var p Product
		if err := tx.NewSelect().Model(&p).Where("p.id = ?", productID).Scan(ctx); err != nil {
			return notFound(err)
		}
		if !applied {
			return &InsufficientStockError{ProductID: p.ID, Product: p.Name, Requested: qty, Available: p.Stock}
		}

		sale := Sale{
			ProductID:   p.ID,
			Quantity:    qty,
			TotalAmount: roundMoney(float64(qty) * p.Price),
			SoldAt:      s.now().UTC(),
		}
		if _, err := tx.NewInsert().Model(&sale).Exec(ctx); err != nil {
			return fmt.Errorf("append sale: %w", err)
		}

		receipt = SaleReceipt{Sale: sale, Product: p}
		return nil
	})
	if err != nil {
		return SaleReceipt{}, err
	}
	return receipt, nil
}

// decrementStock subtracts qty only while the row still holds at least qty,
// whatever the caller read earlier. It reports whether the row changed.
func decrementStock(ctx context.Context, db bun.IDB, productID int64, qty int) (bool, error) {
	res, err := db.NewUpdate().
		Model((*Product)(nil)).
		Set("stock = stock - ?", qty).
		Where("id = ?", productID).
		Where("stock >= ?", qty).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("decrement stock: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("decrement stock rows: %w", err)
	}
	return affected > 0, nil
}

// RevenueBetween sums ledger rows with from <= sold_at < to.
func (s *Store) RevenueBetween(ctx context.Context, from, to time.Time) (Revenue, error) {
	var rev Revenue
	err := s.db.NewSelect().
		Model((*Sale)(nil)).
		ColumnExpr("COALESCE(SUM(s.total_amount), 0)").
		ColumnExpr("COUNT(*)").
		Where("s.sold_at >= ?", from.UTC()).
		Where("s.sold_at < ?", to.UTC()).
		Scan(ctx, &rev.Total, &rev.Count)
	if err != nil {
		return Revenue{}, fmt.Errorf("sum revenue: %w", err)
	}
	rev.Total = roundMoney(rev.Total)
	return rev, nil
}

// RevenueOn sums the calendar day containing day, in day's location.
func (s *Store) RevenueOn(ctx context.Context, day time.Time) (Revenue, error) {
	from := StartOfDay(day)
	return s.RevenueBetween(ctx, from, from.AddDate(0, 0, 1))
}

// ProductRevenueOn is RevenueOn restricted to one product.
func (s *Store) ProductRevenueOn(ctx context.Context, productID int64, day time.Time) (Revenue, int, error) {
	from := StartOfDay(day)
	var (
		rev   Revenue
		units int
	)
	err := s.db.NewSelect().
		Model((*Sale)(nil)).
		ColumnExpr("COALESCE(SUM(s.total_amount), 0)").
		ColumnExpr("COUNT(*)").
		ColumnExpr("COALESCE(SUM(s.quantity), 0)").
		Where("s.product_id = ?", productID).
		Where("s.sold_at >= ?", from.UTC()).
		Where("s.sold_at < ?", from.AddDate(0, 0, 1).UTC()).
		Scan(ctx, &rev.Total, &rev.Count, &units)
	if err != nil {
		return Revenue{}, 0, fmt.Errorf("sum product revenue: %w", err)
	}
	rev.Total = roundMoney(rev.Total)
	return rev, units, nil
}

// ListSales returns the most recent ledger rows with their product names.
func (s *Store) ListSales(ctx context.Context, limit int) ([]SaleView, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	var sales []SaleView
	err := s.db.NewSelect().
		Model((*Sale)(nil)).
		ColumnExpr("s.*").
		ColumnExpr("p.name AS product_name").
		Join("LEFT JOIN products AS p ON p.id = s.product_id").
		OrderExpr("s.sold_at DESC, s.id DESC").
		Limit(limit).
		Scan(ctx, &sales)
	if err != nil {
		return nil, fmt.Errorf("list sales: %w", err)
	}
	return sales, nil
}

func (s *Store) CountSales(ctx context.Context) (int, error) {
	n, err := s.db.NewSelect().Model((*Sale)(nil)).Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count sales: %w", err)
	}
	return n, nil
}

func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
