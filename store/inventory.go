package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/uptrace/bun"
)

const (
	DefaultListLimit = 100
	maxListLimit     = 500
)

func (s *Store) GetProduct(ctx context.Context, id int64) (Product, error) {
	var p Product
	if err := s.db.NewSelect().Model(&p).Where("p.id = ?", id).Scan(ctx); err != nil {
		return Product{}, notFound(err)
	}
	return p, nil
}

func (s *Store) ListProducts(ctx context.Context, offset, limit int) ([]Product, error) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	products := make([]Product, 0, limit)
	err := s.db.NewSelect().
		Model(&products).
		OrderExpr("p.id ASC").
		Offset(offset).
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return products, nil
}

func (s *Store) CountProducts(ctx context.Context) (int, error) {
	n, err := s.db.NewSelect().Model((*Product)(nil)).Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count products: %w", err)
	}
	return n, nil
}

// FindByNameLike returns the best product whose name contains term,
// case-insensitively. Ties go to the shortest name, then the
// lexicographically smallest lower-cased name, then the lowest id. A term
// that no name contains is ErrProductNotFound, even when a product name
// appears inside the term.
func (s *Store) FindByNameLike(ctx context.Context, term string) (Product, error) {
	return findByNameLike(ctx, s.db, term)
}

func findByNameLike(ctx context.Context, db bun.IDB, term string) (Product, error) {
	needle := strings.ToLower(strings.TrimSpace(term))
	if needle == "" {
		return Product{}, ErrProductNotFound
	}

	var p Product
	err := db.NewSelect().
		Model(&p).
		Where(`LOWER(p.name) LIKE ? ESCAPE '\'`, "%"+escapeLike(needle)+"%").
		OrderExpr("LENGTH(p.name) ASC, LOWER(p.name) ASC, p.id ASC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err = notFound(err); errors.Is(err, ErrProductNotFound) {
			return Product{}, err
		}
		return Product{}, fmt.Errorf("find product %q: %w", term, err)
	}
	return p, nil
}

// LowStock lists products at or below half of max_stock, emptiest first.
func (s *Store) LowStock(ctx context.Context, limit int) ([]Product, error) {
	if limit <= 0 {
		limit = 10
	}
	var products []Product
	err := s.db.NewSelect().
		Model(&products).
		Where("2 * p.stock <= p.max_stock").
		OrderExpr("p.stock ASC, LOWER(p.name) ASC, p.id ASC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list low stock: %w", err)
	}
	return products, nil
}

// SearchByKeywords returns up to limit products whose name contains any of
// the tokens.
func (s *Store) SearchByKeywords(ctx context.Context, tokens []string, limit int) ([]Product, error) {
	if len(tokens) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 5
	}

	var products []Product
	err := s.db.NewSelect().
		Model(&products).
		WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			for _, tok := range tokens {
				q = q.WhereOr(`LOWER(p.name) LIKE ? ESCAPE '\'`, "%"+escapeLike(strings.ToLower(tok))+"%")
			}
			return q
		}).
		OrderExpr("p.id ASC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("search products: %w", err)
	}
	return products, nil
}

func (s *Store) CreateProduct(ctx context.Context, in ProductInput) (Product, error) {
	in, err := in.normalize()
	if err != nil {
		return Product{}, err
	}

	var p Product
	in.apply(&p)
	if _, err := s.db.NewInsert().Model(&p).Exec(ctx); err != nil {
		return Product{}, fmt.Errorf("insert product: %w", err)
	}
	return p, nil
}

func (s *Store) UpdateProduct(ctx context.Context, id int64, in ProductInput) (Product, error) {
	in, err := in.normalize()
	if err != nil {
		return Product{}, err
	}

	var out Product
	err = s.inTx(ctx, "update product", func(ctx context.Context, tx bun.Tx) error {
		var p Product
		if err := tx.NewSelect().Model(&p).Where("p.id = ?", id).Scan(ctx); err != nil {
			return notFound(err)
		}
		in.apply(&p)
		if _, err := tx.NewUpdate().Model(&p).WherePK().Exec(ctx); err != nil {
			return fmt.Errorf("update product: %w", err)
		}
		out = p
		return nil
	})
	return out, err
}

func (s *Store) DeleteProduct(ctx context.Context, id int64) error {
	res, err := s.db.NewDelete().Model((*Product)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrProductNotFound
	}
	return nil
}

// BulkMerge inserts new products and merges existing ones matched by exact,
// case-insensitive name: stock is added and a positive price replaces the
// stored one. The whole batch commits or rolls back together.
func (s *Store) BulkMerge(ctx context.Context, inputs []ProductInput) ([]Product, error) {
	normalized := make([]ProductInput, 0, len(inputs))
	for i, in := range inputs {
		n, err := in.normalize()
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		normalized = append(normalized, n)
	}

	out := make([]Product, 0, len(normalized))
	err := s.inTx(ctx, "bulk merge", func(ctx context.Context, tx bun.Tx) error {
		for _, in := range normalized {
			var existing Product
			err := tx.NewSelect().
				Model(&existing).
				Where("LOWER(p.name) = ?", strings.ToLower(in.Name)).
				OrderExpr("p.id ASC").
				Limit(1).
				Scan(ctx)
			switch {
			case err == nil:
				existing.Stock += in.Stock
				if in.Price > 0 {
					existing.Price = in.Price
				}
				if _, err := tx.NewUpdate().
					Model(&existing).
					Column("stock", "price").
					WherePK().
					Exec(ctx); err != nil {
					return fmt.Errorf("merge %q: %w", in.Name, err)
				}
				out = append(out, existing)
			case errors.Is(notFound(err), ErrProductNotFound):
				var p Product
				in.apply(&p)
				if _, err := tx.NewInsert().Model(&p).Exec(ctx); err != nil {
					return fmt.Errorf("insert %q: %w", in.Name, err)
				}
				out = append(out, p)
			default:
				return fmt.Errorf("lookup %q: %w", in.Name, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateShelfPositions fuzzy-matches each name and stores its shelf label.
// Unknown names and blank entries are skipped; the count of updated rows is
// returned.
func (s *Store) UpdateShelfPositions(ctx context.Context, items []ShelfAssignment) (int, error) {
	updated := 0
	err := s.inTx(ctx, "update shelves", func(ctx context.Context, tx bun.Tx) error {
		updated = 0
		for _, item := range items {
			name := strings.TrimSpace(item.Name)
			shelf := strings.TrimSpace(item.Shelf)
			if name == "" || shelf == "" {
				continue
			}
			p, err := findByNameLike(ctx, tx, name)
			if errors.Is(err, ErrProductNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			if _, err := tx.NewUpdate().
				Model((*Product)(nil)).
				Set("shelf_position = ?", shelf).
				Where("id = ?", p.ID).
				Exec(ctx); err != nil {
				return fmt.Errorf("update shelf for %q: %w", p.Name, err)
			}
			updated++
		}
		return nil
	})
	return updated, err
}

// AdjustStock adds delta to a product's stock. A negative delta larger than
// the current stock fails with *InsufficientStockError and changes nothing.
func (s *Store) AdjustStock(ctx context.Context, id int64, delta int) (Product, error) {
	if delta == 0 {
		return Product{}, ErrInvalidQuantity
	}

	var out Product
	err := s.inTx(ctx, "adjust stock", func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().
			Model((*Product)(nil)).
			Set("stock = stock + ?", delta).
			Where("id = ?", id).
			Where("stock + ? >= 0", delta).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("adjust stock: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("adjust stock rows: %w", err)
		}

		var p Product
		if err := tx.NewSelect().Model(&p).Where("p.id = ?", id).Scan(ctx); err != nil {
			return notFound(err)
		}
		if affected == 0 {
			return &InsufficientStockError{ProductID: p.ID, Product: p.Name, Requested: -delta, Available: p.Stock}
		}
		out = p
		return nil
	})
	return out, err
}
