// Package grounding builds the read-only store snapshot sent to the model
// together with each message.
package grounding

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sourcegraph/conc/pool"

	contractx "github.com/tanpawarit/kirana-assistant/agent/contract"
	"github.com/tanpawarit/kirana-assistant/store"
)

const (
	DefaultLowStockLimit = 10
	DefaultRelevantLimit = 5
	maxTokens            = 12
)

// Source is the slice of the store the assembler reads.
type Source interface {
	CountProducts(ctx context.Context) (int, error)
	LowStock(ctx context.Context, limit int) ([]store.Product, error)
	SearchByKeywords(ctx context.Context, tokens []string, limit int) ([]store.Product, error)
	RevenueOn(ctx context.Context, day time.Time) (store.Revenue, error)
}

type Item struct {
	Name          string
	Stock         int
	MaxStock      int
	Price         float64
	HasPrice      bool
	ShelfPosition string
}

func (i Item) Low() bool      { return store.IsLowStock(i.Stock, i.MaxStock) }
func (i Item) Critical() bool { return store.IsCriticalStock(i.Stock, i.MaxStock) }

// Bundle is the assembled context for one message.
type Bundle struct {
	Date          time.Time
	TotalProducts int
	LowStock      []Item
	Revenue       store.Revenue
	Relevant      []Item
	FromSnapshot  bool
}

func (b Bundle) Empty() bool { return b.TotalProducts == 0 }

type Assembler struct {
	src           Source
	now           func() time.Time
	loc           *time.Location
	lowLimit      int
	relevantLimit int
}

type Option func(*Assembler)

func WithClock(now func() time.Time) Option {
	return func(a *Assembler) {
		if now != nil {
			a.now = now
		}
	}
}

// WithLocation sets the time zone that decides what "today" is.
func WithLocation(loc *time.Location) Option {
	return func(a *Assembler) {
		if loc != nil {
			a.loc = loc
		}
	}
}

func WithLimits(lowStock, relevant int) Option {
	return func(a *Assembler) {
		if lowStock > 0 {
			a.lowLimit = lowStock
		}
		if relevant > 0 {
			a.relevantLimit = relevant
		}
	}
}

func New(src Source, opts ...Option) *Assembler {
	a := &Assembler{
		src:           src,
		now:           time.Now,
		loc:           time.Local,
		lowLimit:      DefaultLowStockLimit,
		relevantLimit: DefaultRelevantLimit,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Assemble gathers low stock items, today's revenue and products relevant to
// message. When snapshot is non-nil the inventory part comes from it instead of
// the store; revenue always comes from the ledger.
func (a *Assembler) Assemble(ctx context.Context, message string, snapshot []contractx.InventoryItem) (Bundle, error) {
	today := a.now().In(a.loc)
	tokens := Tokenize(message, maxTokens)

	b := Bundle{Date: today}
	p := pool.New().WithContext(ctx).WithCancelOnError()

	p.Go(func(ctx context.Context) error {
		rev, err := a.src.RevenueOn(ctx, today)
		if err != nil {
			return fmt.Errorf("today's revenue: %w", err)
		}
		b.Revenue = rev
		return nil
	})

	if snapshot != nil {
		b.FromSnapshot = true
		b.TotalProducts, b.LowStock, b.Relevant = fromSnapshot(snapshot, tokens, a.lowLimit, a.relevantLimit)
	} else {
		p.Go(func(ctx context.Context) error {
			n, err := a.src.CountProducts(ctx)
			if err != nil {
				return fmt.Errorf("count products: %w", err)
			}
			b.TotalProducts = n
			return nil
		})
		p.Go(func(ctx context.Context) error {
			low, err := a.src.LowStock(ctx, a.lowLimit)
			if err != nil {
				return fmt.Errorf("low stock: %w", err)
			}
			b.LowStock = toItems(low)
			return nil
		})
		p.Go(func(ctx context.Context) error {
			rel, err := a.src.SearchByKeywords(ctx, tokens, a.relevantLimit)
			if err != nil {
				return fmt.Errorf("relevant products: %w", err)
			}
			b.Relevant = toItems(rel)
			return nil
		})
	}

	if err := p.Wait(); err != nil {
		return Bundle{}, err
	}
	return b, nil
}

func toItems(products []store.Product) []Item {
	if len(products) == 0 {
		return nil
	}
	items := make([]Item, 0, len(products))
	for _, p := range products {
		items = append(items, Item{
			Name:          p.Name,
			Stock:         p.Stock,
			MaxStock:      p.MaxStock,
			Price:         p.Price,
			HasPrice:      true,
			ShelfPosition: p.ShelfPosition,
		})
	}
	return items
}

func fromSnapshot(snapshot []contractx.InventoryItem, tokens []string, lowLimit, relevantLimit int) (int, []Item, []Item) {
	var low, relevant []Item
	total := 0
	for _, in := range snapshot {
		name := strings.TrimSpace(in.Name)
		if name == "" {
			continue
		}
		total++
		item := Item{Name: name, Stock: in.Stock, MaxStock: in.MaxStock, ShelfPosition: in.ShelfPosition}
		if item.Low() {
			low = append(low, item)
		}
		if len(relevant) < relevantLimit && matchesAny(name, tokens) {
			relevant = append(relevant, item)
		}
	}

	sort.SliceStable(low, func(i, j int) bool { return low[i].Stock < low[j].Stock })
	if len(low) > lowLimit {
		low = low[:lowLimit]
	}
	return total, low, relevant
}

func matchesAny(name string, tokens []string) bool {
	lower := strings.ToLower(name)
	for _, tok := range tokens {
		if strings.Contains(lower, tok) {
			return true
		}
	}
	return false
}
