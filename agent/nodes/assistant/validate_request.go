package assistantnode

import (
	"errors"
	"strings"
	"time"

	contractx "github.com/tanpawarit/kirana-assistant/agent/contract"
	executorx "github.com/tanpawarit/kirana-assistant/agent/executor"
	"github.com/tanpawarit/kirana-assistant/agent/grounding"
)

var ErrInvalidMessage = errors.New("message is empty")

const DefaultLanguage = "en"

type GraphInput = contractx.ChatRequest

type GraphOutput = contractx.ChatResponse

type GraphState struct {
	Req contractx.ChatRequest
	Now time.Time

	Bundle      grounding.Bundle
	ContextText string
	Intent      contractx.ResolvedIntent
	Outcome     executorx.Outcome
}

// ValidateRequest trims the message and copies the history so later nodes
// never touch the caller's slices.
func ValidateRequest(in GraphInput, nowFn func() time.Time) (*GraphState, error) {
	message := strings.TrimSpace(in.Message)
	if message == "" {
		return nil, ErrInvalidMessage
	}

	history := make([]contractx.ChatTurn, 0, len(in.History))
	for _, turn := range in.History {
		if turn.Role != contractx.RoleUser && turn.Role != contractx.RoleAssistant {
			continue
		}
		if strings.TrimSpace(turn.Content) == "" {
			continue
		}
		history = append(history, turn)
	}

	language := strings.ToLower(strings.TrimSpace(in.Language))
	if language == "" {
		language = DefaultLanguage
	}

	var inventory []contractx.InventoryItem
	if in.Inventory != nil {
		inventory = append(make([]contractx.InventoryItem, 0, len(in.Inventory)), in.Inventory...)
	}

	return &GraphState{
		Req: contractx.ChatRequest{
			Message:   message,
			History:   history,
			Language:  language,
			Inventory: inventory,
		},
		Now: nowFn(),
	}, nil
}
