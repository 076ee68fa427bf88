package contract

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

type Action string

const (
	ActionRecordSale  Action = "RECORD_SALE"
	ActionUpdateStock Action = "UPDATE_STOCK"
	ActionGetInfo     Action = "GET_INFO"
	ActionNone        Action = "NONE"
)

func (a Action) Valid() bool {
	switch a {
	case ActionRecordSale, ActionUpdateStock, ActionGetInfo, ActionNone:
		return true
	}
	return false
}

// Mutating reports whether the action writes to the store.
func (a Action) Mutating() bool {
	return a == ActionRecordSale || a == ActionUpdateStock
}

type QueryType string

const (
	QueryStockCheck  QueryType = "stock_check"
	QuerySalesReport QueryType = "sales_report"
	QueryGeneral     QueryType = "general"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type ChatTurn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// InventoryItem is a caller-supplied inventory row used instead of the live
// store when grounding a message.
type InventoryItem struct {
	Name          string `json:"name"`
	Stock         int    `json:"stock"`
	MaxStock      int    `json:"max_stock"`
	ShelfPosition string `json:"shelf_position,omitempty"`
}

type ChatRequest struct {
	Message   string          `json:"message"`
	History   []ChatTurn      `json:"history,omitempty"`
	Language  string          `json:"language,omitempty"`
	Inventory []InventoryItem `json:"inventory,omitempty"`
}

type ChatResponse struct {
	Response        string         `json:"response"`
	Speech          string         `json:"speech,omitempty"`
	ActionPerformed bool           `json:"action_performed"`
	Action          Action         `json:"action,omitempty"`
	Params          map[string]any `json:"params,omitempty"`
	Failure         FailureKind    `json:"failure,omitempty"`
}

// ResolvedIntent is the validated decision returned by the model. Command
// holds the typed form of Action and Params.
type ResolvedIntent struct {
	Action   Action         `json:"action"`
	Params   map[string]any `json:"params,omitempty"`
	Speech   string         `json:"speech,omitempty"`
	Response string         `json:"response"`
	Command  Command        `json:"-"`
	Failure  FailureKind    `json:"-"`
}

// Fallback reports whether the intent was produced by the resolver itself
// because the model could not be used.
func (r ResolvedIntent) Fallback() bool {
	return r.Failure == FailureModelUnavailable || r.Failure == FailureMalformedResponse
}

// Command is the tagged union of the four intents.
type Command interface {
	Action() Action
	isCommand()
}

type RecordSale struct {
	Product  string
	Quantity Quantity
	Unit     string
}

type UpdateStock struct {
	Product  string
	Quantity Quantity
	Unit     string
}

type GetInfo struct {
	QueryType QueryType
	Product   string
}

type NoAction struct{}

func (RecordSale) Action() Action  { return ActionRecordSale }
func (UpdateStock) Action() Action { return ActionUpdateStock }
func (GetInfo) Action() Action     { return ActionGetInfo }
func (NoAction) Action() Action    { return ActionNone }

func (RecordSale) isCommand()  {}
func (UpdateStock) isCommand() {}
func (GetInfo) isCommand()     {}
func (NoAction) isCommand()    {}

// Quantity keeps the raw model value; the executor decides what it accepts.
type Quantity struct {
	Raw any
}

// Int coerces the raw value to a whole number. Numbers and numeric strings
// with no fractional part are accepted.
func (q Quantity) Int() (int, bool) {
	var f float64
	switch v := q.Raw.(type) {
	case int:
		return v, true
	case int64:
		f = float64(v)
	case float64:
		f = v
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, false
	}
	return int(f), true
}

// Positive is Int restricted to values > 0.
func (q Quantity) Positive() (int, bool) {
	n, ok := q.Int()
	if !ok || n <= 0 {
		return 0, false
	}
	return n, true
}
