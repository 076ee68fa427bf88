package action

import (
	"errors"
	"strings"
	"testing"

	contractx "github.com/tanpawarit/kirana-assistant/agent/contract"
)

func TestCatalogListsEveryAction(t *testing.T) {
	t.Parallel()

	specs := Catalog()
	if len(specs) != 4 {
		t.Fatalf("expected 4 actions, got %d", len(specs))
	}
	for _, a := range []contractx.Action{
		contractx.ActionRecordSale,
		contractx.ActionUpdateStock,
		contractx.ActionGetInfo,
		contractx.ActionNone,
	} {
		if _, ok := Lookup(a); !ok {
			t.Fatalf("action %s missing from catalog", a)
		}
	}

	text := Describe()
	for _, want := range []string{"RECORD_SALE", "params.quantity (number, required)", "stock_check|sales_report|general"} {
		if !strings.Contains(text, want) {
			t.Fatalf("describe output missing %q:\n%s", want, text)
		}
	}
}

func TestValidateAcceptsWellFormedReplies(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"sale":          `{"action":"RECORD_SALE","params":{"product":"Milk","quantity":2},"speech":"Done","response":"Sold 2 milk"}`,
		"string qty":    `{"action":"RECORD_SALE","params":{"product":"Milk","quantity":"2","unit":null},"response":"ok"}`,
		"restock":       `{"action":"UPDATE_STOCK","params":{"product":"Dal","quantity":-3},"response":"ok"}`,
		"info no query": `{"action":"GET_INFO","params":{},"content":"Here you go"}`,
		"none":          `{"action":"NONE","response":"Which product?"}`,
	}
	for name, payload := range cases {
		if err := Validate([]byte(payload)); err != nil {
			t.Fatalf("%s: unexpected error: %v", name, err)
		}
	}
}

func TestValidateRejectsViolations(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"unknown action":   `{"action":"DELETE_ALL","response":"x"}`,
		"missing quantity": `{"action":"RECORD_SALE","params":{"product":"Milk"},"response":"x"}`,
		"missing params":   `{"action":"UPDATE_STOCK","response":"x"}`,
		"bad query type":   `{"action":"GET_INFO","params":{"query_type":"forecast"},"response":"x"}`,
		"no response":      `{"action":"NONE","speech":"hi"}`,
		"not json":         `{"action":`,
		"qty object":       `{"action":"RECORD_SALE","params":{"product":"Milk","quantity":{"n":2}},"response":"x"}`,
	}
	for name, payload := range cases {
		err := Validate([]byte(payload))
		if err == nil {
			t.Fatalf("%s: expected error", name)
		}
		if !errors.Is(err, contractx.ErrSchemaViolation) {
			t.Fatalf("%s: expected ErrSchemaViolation, got %v", name, err)
		}
	}
}
