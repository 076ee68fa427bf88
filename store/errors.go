package store

import (
	"errors"
	"fmt"
)

var (
	ErrProductNotFound   = errors.New("product not found")
	ErrInvalidQuantity   = errors.New("quantity must be a positive whole number")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrStoreTransaction  = errors.New("store transaction failed")
	ErrInvalidProduct    = validationError("invalid product")
)

type validationError string

func (e validationError) Error() string { return string(e) }

func (e validationError) with(detail string) error {
	return fmt.Errorf("%w: %s", e, detail)
}

// InsufficientStockError carries the figures reported back to the caller.
type InsufficientStockError struct {
	ProductID int64
	Product   string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: requested %d, available %d", e.Product, e.Requested, e.Available)
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}
