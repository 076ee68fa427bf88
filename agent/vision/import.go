package vision

import (
	"math"
	"strings"

	"github.com/tanpawarit/kirana-assistant/store"
)

// ImportCategory is assigned to products created from a bill.
const ImportCategory = "Uncategorized"

// BillInputs converts bill lines into bulk-merge inputs: the bought quantity
// becomes stock and the unit price becomes the price. A missing unit price
// is derived from the line total.
func BillInputs(lines []BillLine) []store.ProductInput {
	out := make([]store.ProductInput, 0, len(lines))
	for _, l := range lines {
		name := strings.TrimSpace(l.Name)
		if name == "" {
			continue
		}
		qty := int(math.Round(l.Quantity.Float()))
		if qty < 0 {
			qty = 0
		}
		price := l.UnitPrice.Float()
		if price <= 0 && qty > 0 && l.TotalPrice.Float() > 0 {
			price = math.Round(l.TotalPrice.Float()/float64(qty)*100) / 100
		}
		if price < 0 {
			price = 0
		}
		out = append(out, store.ProductInput{
			Name:     name,
			Category: ImportCategory,
			Price:    price,
			Stock:    qty,
		})
	}
	return out
}

// ShelfAssignments places every seen product on shelf. A blank shelf yields
// nothing.
func ShelfAssignments(entries []ShelfEntry, shelf string) []store.ShelfAssignment {
	shelf = strings.TrimSpace(shelf)
	if shelf == "" {
		return nil
	}
	out := make([]store.ShelfAssignment, 0, len(entries))
	for _, e := range entries {
		if name := strings.TrimSpace(e.Name); name != "" {
			out = append(out, store.ShelfAssignment{Name: name, Shelf: shelf})
		}
	}
	return out
}
