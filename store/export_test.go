package store

import "context"

// DecrementStock exposes the conditional decrement to the external tests.
func (s *Store) DecrementStock(ctx context.Context, productID int64, qty int) (bool, error) {
	return decrementStock(ctx, s.db, productID, qty)
}
