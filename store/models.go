package store

import (
	"math"
	"strings"
	"time"

	"github.com/uptrace/bun"
)

const DefaultMaxStock = 50

type Product struct {
	bun.BaseModel `bun:"table:products,alias:p"`

	ID            int64   `bun:"id,pk,autoincrement" json:"id"`
	Name          string  `bun:"name,notnull" json:"name"`
	Category      string  `bun:"category,notnull,default:''" json:"category"`
	Price         float64 `bun:"price,notnull,default:0" json:"price"`
	Stock         int     `bun:"stock,notnull,default:0" json:"stock"`
	MaxStock      int     `bun:"max_stock,notnull,default:50" json:"max_stock"`
	ShelfPosition string  `bun:"shelf_position,nullzero" json:"shelf_position,omitempty"`
	ImageURL      string  `bun:"image_url,nullzero" json:"image_url,omitempty"`
	IconName      string  `bun:"icon_name,nullzero" json:"icon_name,omitempty"`
}

// LowStock reports stock <= 50% of max_stock.
func (p Product) LowStock() bool { return IsLowStock(p.Stock, p.MaxStock) }

// CriticalStock reports stock <= 20% of max_stock.
func (p Product) CriticalStock() bool { return IsCriticalStock(p.Stock, p.MaxStock) }

// IsLowStock and IsCriticalStock use integer arithmetic so the 50% and 20%
// boundaries are exact.
func IsLowStock(stock, maxStock int) bool { return 2*stock <= maxStock }

func IsCriticalStock(stock, maxStock int) bool { return 5*stock <= maxStock }

type Sale struct {
	bun.BaseModel `bun:"table:sales,alias:s"`

	ID          int64     `bun:"id,pk,autoincrement" json:"id"`
	ProductID   int64     `bun:"product_id,notnull" json:"product_id"`
	Quantity    int       `bun:"quantity,notnull" json:"quantity"`
	TotalAmount float64   `bun:"total_amount,notnull" json:"total_amount"`
	SoldAt      time.Time `bun:"sold_at,notnull" json:"timestamp"`
}

// SaleView is a ledger row joined with the product label.
type SaleView struct {
	Sale
	ProductName string `bun:"product_name" json:"product_name,omitempty"`
}

// SaleReceipt is the outcome of a committed sale transaction.
type SaleReceipt struct {
	Sale    Sale    `json:"sale"`
	Product Product `json:"product"`
}

// ProductInput is the create/update/bulk-merge payload.
type ProductInput struct {
	Name          string  `json:"name"`
	Category      string  `json:"category"`
	Price         float64 `json:"price"`
	Stock         int     `json:"stock"`
	MaxStock      *int    `json:"max_stock,omitempty"`
	ShelfPosition string  `json:"shelf_position,omitempty"`
	ImageURL      string  `json:"image_url,omitempty"`
	IconName      string  `json:"icon_name,omitempty"`
}

func (in ProductInput) normalize() (ProductInput, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Category = strings.TrimSpace(in.Category)
	in.ShelfPosition = strings.TrimSpace(in.ShelfPosition)
	if in.Name == "" {
		return in, ErrInvalidProduct.with("name is required")
	}
	if in.Price < 0 || math.IsNaN(in.Price) || math.IsInf(in.Price, 0) {
		return in, ErrInvalidProduct.with("price must be >= 0")
	}
	if in.Stock < 0 {
		return in, ErrInvalidProduct.with("stock must be >= 0")
	}
	if in.MaxStock != nil && *in.MaxStock < 0 {
		return in, ErrInvalidProduct.with("max_stock must be >= 0")
	}
	return in, nil
}

func (in ProductInput) apply(p *Product) {
	p.Name = in.Name
	p.Category = in.Category
	p.Price = in.Price
	p.Stock = in.Stock
	p.MaxStock = DefaultMaxStock
	if in.MaxStock != nil {
		p.MaxStock = *in.MaxStock
	}
	p.ShelfPosition = in.ShelfPosition
	p.ImageURL = strings.TrimSpace(in.ImageURL)
	p.IconName = strings.TrimSpace(in.IconName)
}

// ShelfAssignment maps a fuzzy product name to a shelf label.
type ShelfAssignment struct {
	Name  string `json:"name"`
	Shelf string `json:"shelf"`
}

// Revenue aggregates ledger rows in a time window.
type Revenue struct {
	Total float64 `json:"total"`
	Count int     `json:"count"`
}

func roundMoney(v float64) float64 {
	return math.Round(v*100) / 100
}
