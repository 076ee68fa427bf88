// Package action describes the intents the model may return: their
// parameters, the prompt text that lists them and the JSON schema replies are
// validated against.
package action

import (
	"fmt"
	"strings"

	contractx "github.com/tanpawarit/kirana-assistant/agent/contract"
)

type ParamType string

const (
	ParamString ParamType = "string"
	ParamNumber ParamType = "number"
)

type Param struct {
	Name     string
	Type     ParamType
	Desc     string
	Required bool
	Enum     []string
	Nullable bool
}

type Spec struct {
	Action contractx.Action
	Desc   string
	Params []Param
}

var catalog = []Spec{
	{
		Action: contractx.ActionRecordSale,
		Desc:   "The owner sold items to a customer.",
		Params: []Param{
			{Name: "product", Type: ParamString, Desc: "Product name as the owner said it", Required: true},
			{Name: "quantity", Type: ParamNumber, Desc: "Units sold, a positive whole number", Required: true},
			{Name: "unit", Type: ParamString, Desc: "Unit word if spoken (packet, kg, litre)", Nullable: true},
		},
	},
	{
		Action: contractx.ActionUpdateStock,
		Desc:   "The owner received new stock or corrects a count. Negative quantity removes stock.",
		Params: []Param{
			{Name: "product", Type: ParamString, Desc: "Product name as the owner said it", Required: true},
			{Name: "quantity", Type: ParamNumber, Desc: "Signed whole number of units to add", Required: true},
			{Name: "unit", Type: ParamString, Desc: "Unit word if spoken", Nullable: true},
		},
	},
	{
		Action: contractx.ActionGetInfo,
		Desc:   "The owner asks about stock, sales or the store in general. Nothing is changed.",
		Params: []Param{
			{
				Name: "query_type",
				Type: ParamString,
				Desc: "Kind of question",
				Enum: []string{
					string(contractx.QueryStockCheck),
					string(contractx.QuerySalesReport),
					string(contractx.QueryGeneral),
				},
			},
			{Name: "product", Type: ParamString, Desc: "Product the question is about, if any", Nullable: true},
		},
	},
	{
		Action: contractx.ActionNone,
		Desc:   "Small talk, or the request is unclear. Ask a short clarification question in response.",
	},
}

// Catalog returns the supported actions in prompt order.
func Catalog() []Spec {
	out := make([]Spec, len(catalog))
	copy(out, catalog)
	return out
}

func Lookup(a contractx.Action) (Spec, bool) {
	for _, spec := range catalog {
		if spec.Action == a {
			return spec, true
		}
	}
	return Spec{}, false
}

// Describe renders the catalog for the system prompt.
func Describe() string {
	var b strings.Builder
	for _, spec := range catalog {
		fmt.Fprintf(&b, "- %s: %s\n", spec.Action, spec.Desc)
		if len(spec.Params) == 0 {
			b.WriteString("  params: {}\n")
			continue
		}
		for _, p := range spec.Params {
			fmt.Fprintf(&b, "  params.%s (%s", p.Name, p.Type)
			if p.Required {
				b.WriteString(", required")
			}
			b.WriteString(")")
			if len(p.Enum) > 0 {
				fmt.Fprintf(&b, " one of %s", strings.Join(p.Enum, "|"))
			}
			fmt.Fprintf(&b, ": %s\n", p.Desc)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
