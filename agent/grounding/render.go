package grounding

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

const (
	EmptyMarker = "INVENTORY EMPTY"
	LowTag      = "[LOW STOCK]"
	maxNameLen  = 60
)

// Tokenize lower-cases message and returns its distinct words longer than
// two characters, at most limit of them.
func Tokenize(message string, limit int) []string {
	words := strings.FieldsFunc(strings.ToLower(message), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r) && !unicode.IsMark(r)
	})

	seen := make(map[string]struct{}, len(words))
	tokens := make([]string, 0, len(words))
	for _, w := range words {
		if len([]rune(w)) <= 2 {
			continue
		}
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		tokens = append(tokens, w)
		if limit > 0 && len(tokens) == limit {
			break
		}
	}
	return tokens
}

// Render formats the bundle as the context block of the system prompt.
func (b Bundle) Render() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Date: %s\n", b.Date.Format("2006-01-02"))
	fmt.Fprintf(&sb, "Today's sales: %s from %d sale(s)\n", Money(b.Revenue.Total), b.Revenue.Count)

	if b.Empty() {
		sb.WriteString(EmptyMarker)
		sb.WriteString(": no products are recorded yet.")
		return sb.String()
	}

	fmt.Fprintf(&sb, "Total products: %d\n", b.TotalProducts)

	sb.WriteString("Low stock items:")
	if len(b.LowStock) == 0 {
		sb.WriteString(" none\n")
	} else {
		sb.WriteString("\n")
		for _, it := range b.LowStock {
			writeItem(&sb, it)
		}
	}

	sb.WriteString("Products relevant to the message:")
	if len(b.Relevant) == 0 {
		sb.WriteString(" none")
	} else {
		sb.WriteString("\n")
		for _, it := range b.Relevant {
			writeItem(&sb, it)
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

func writeItem(sb *strings.Builder, it Item) {
	fmt.Fprintf(sb, "- %s: %d/%d", truncate(it.Name, maxNameLen), it.Stock, it.MaxStock)
	if it.HasPrice {
		fmt.Fprintf(sb, ", price %s", Money(it.Price))
	}
	if it.ShelfPosition != "" {
		fmt.Fprintf(sb, ", shelf %s", truncate(it.ShelfPosition, 20))
	}
	if it.Low() {
		sb.WriteString(" ")
		sb.WriteString(LowTag)
	}
	sb.WriteString("\n")
}

// Money formats rupees without trailing zeros for whole amounts.
func Money(v float64) string {
	if v == float64(int64(v)) {
		return "₹" + strconv.FormatInt(int64(v), 10)
	}
	return "₹" + strconv.FormatFloat(v, 'f', 2, 64)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
