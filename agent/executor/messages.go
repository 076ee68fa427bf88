package executor

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tanpawarit/kirana-assistant/agent/grounding"
	"github.com/tanpawarit/kirana-assistant/store"
)

const (
	msgTryAgain    = "Something went wrong while saving that. Nothing was changed, please try again."
	msgTryAgainTTS = "Sorry, please try again."
	msgNoData      = "I don't have any data for that right now."
	msgDidNotCatch = "Sorry, I didn't catch that. Could you say it again?"
)

func productNotFound(name string) (string, string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "Which product do you mean? I couldn't tell from the message.", "Which product?"
	}
	return fmt.Sprintf("I couldn't find %q in your inventory. Nothing was changed.", name),
		fmt.Sprintf("I couldn't find %s.", name)
}

func invalidQuantity(product string) (string, string) {
	return fmt.Sprintf("Please give a whole number quantity for %s. Nothing was changed.", product),
		"How many?"
}

func insufficientStock(e *store.InsufficientStockError) (string, string) {
	return fmt.Sprintf("Not enough stock of %s: you asked for %d but only %d available. Nothing was changed.",
			e.Product, e.Requested, e.Available),
		fmt.Sprintf("Only %d %s left.", e.Available, e.Product)
}

func criticalWarning(p store.Product) string {
	return fmt.Sprintf("Warning: %s is critically low (%d of %d), reorder soon.", p.Name, p.Stock, p.MaxStock)
}

// stockWarning is the warning a reply about p must carry, or "".
func stockWarning(p store.Product) string {
	if !p.CriticalStock() {
		return ""
	}
	return criticalWarning(p)
}

func saleConfirmation(r store.SaleReceipt) (response, speech string, facts []string) {
	qty := strconv.Itoa(r.Sale.Quantity)
	amount := grounding.Money(r.Sale.TotalAmount)
	left := strconv.Itoa(r.Product.Stock)

	response = fmt.Sprintf("Recorded sale of %s %s for %s. %s left in stock.", qty, r.Product.Name, amount, left)
	speech = fmt.Sprintf("Sold %s %s. %s left.", qty, r.Product.Name, left)
	if w := stockWarning(r.Product); w != "" {
		response += " " + w
		speech += " Stock is critically low."
	}
	return response, speech, []string{qty, amount, left}
}

func stockConfirmation(p store.Product, delta int) (response, speech string, facts []string) {
	n := delta
	verb, prep := "Added", "to"
	if delta < 0 {
		n = -delta
		verb, prep = "Removed", "from"
	}
	count := strconv.Itoa(n)
	now := strconv.Itoa(p.Stock)

	response = fmt.Sprintf("%s %s %s %s stock. Now %s in stock.", verb, count, p.Name, prep, now)
	speech = fmt.Sprintf("%s %s %s. Now %s.", verb, count, p.Name, now)
	if w := stockWarning(p); w != "" {
		response += " " + w
	}
	return response, speech, []string{count, now}
}

func stockAnswer(p store.Product) (response, speech string, facts []string) {
	stock := strconv.Itoa(p.Stock)
	response = fmt.Sprintf("%s has %s in stock out of %d", p.Name, stock, p.MaxStock)
	if p.ShelfPosition != "" {
		response += fmt.Sprintf(" (shelf %s)", p.ShelfPosition)
	}
	response += "."
	switch {
	case p.CriticalStock():
		response += " " + criticalWarning(p)
	case p.LowStock():
		response += " It is running low."
	}
	return response, fmt.Sprintf("%s %s in stock.", stock, p.Name), []string{stock}
}

func lowStockAnswer(products []store.Product) (string, string) {
	if len(products) == 0 {
		return "All products are well stocked.", "Everything is well stocked."
	}
	parts := make([]string, 0, len(products))
	for _, p := range products {
		parts = append(parts, fmt.Sprintf("%s (%d/%d)", p.Name, p.Stock, p.MaxStock))
	}
	return "Running low: " + strings.Join(parts, ", ") + ".",
		fmt.Sprintf("%d items are running low.", len(products))
}

func salesAnswer(rev store.Revenue) (response, speech string, facts []string) {
	amount := grounding.Money(rev.Total)
	count := strconv.Itoa(rev.Count)
	return fmt.Sprintf("Today's sales: %s from %s sale(s).", amount, count),
		fmt.Sprintf("Today's sales are %s.", amount),
		[]string{amount, count}
}

func productSalesAnswer(p store.Product, rev store.Revenue, units int) (response, speech string, facts []string) {
	amount := grounding.Money(rev.Total)
	sold := strconv.Itoa(units)
	return fmt.Sprintf("Today you sold %s %s for %s.", sold, p.Name, amount),
		fmt.Sprintf("%s %s sold today.", sold, p.Name),
		[]string{sold, amount}
}
