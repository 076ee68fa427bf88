package store

import (
	"context"
	"fmt"
)

func intPtr(v int) *int { return &v }

// DefaultProducts is the starter catalogue of a small grocery.
var DefaultProducts = []ProductInput{
	{Name: "Sona Masoori Rice", Category: "Grains", Price: 55, Stock: 100, MaxStock: intPtr(200), ShelfPosition: "A1"},
	{Name: "Toor Dal", Category: "Pulses", Price: 120, Stock: 50, MaxStock: intPtr(100), ShelfPosition: "B2"},
	{Name: "Sunflower Oil (1L)", Category: "Oil", Price: 145, Stock: 30, MaxStock: intPtr(50), ShelfPosition: "C1"},
	{Name: "Atta (5kg)", Category: "Flour", Price: 210, Stock: 20, MaxStock: intPtr(40), ShelfPosition: "A2"},
	{Name: "Sugar", Category: "Essentials", Price: 42, Stock: 80, MaxStock: intPtr(150), ShelfPosition: "B1"},
	{Name: "Tata Salt", Category: "Essentials", Price: 25, Stock: 100, MaxStock: intPtr(100), ShelfPosition: "B3"},
	{Name: "Red Chilli Powder", Category: "Spices", Price: 60, Stock: 40, MaxStock: intPtr(80), ShelfPosition: "D1"},
	{Name: "Turmeric Powder", Category: "Spices", Price: 35, Stock: 45, MaxStock: intPtr(90), ShelfPosition: "D2"},
	{Name: "Milk (500ml)", Category: "Dairy", Price: 27, Stock: 20, MaxStock: intPtr(50), ShelfPosition: "Fridge"},
	{Name: "Curd", Category: "Dairy", Price: 35, Stock: 15, MaxStock: intPtr(30), ShelfPosition: "Fridge"},
	{Name: "Maggi Noodles", Category: "Snacks", Price: 14, Stock: 100, MaxStock: intPtr(200), ShelfPosition: "E1"},
	{Name: "Good Day Biscuits", Category: "Snacks", Price: 20, Stock: 60, MaxStock: intPtr(120), ShelfPosition: "E2"},
}

// Seed inserts DefaultProducts when the catalogue is empty. It reports
// whether anything was inserted.
func (s *Store) Seed(ctx context.Context) (bool, error) {
	n, err := s.CountProducts(ctx)
	if err != nil {
		return false, err
	}
	if n > 0 {
		return false, nil
	}
	if _, err := s.BulkMerge(ctx, DefaultProducts); err != nil {
		return false, fmt.Errorf("seed products: %w", err)
	}
	return true, nil
}
