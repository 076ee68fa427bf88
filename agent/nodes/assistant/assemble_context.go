package assistantnode

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/kirana-assistant/agent/contract"
	"github.com/tanpawarit/kirana-assistant/agent/grounding"
)

const contextUnavailable = "Store data is unavailable right now. Do not state stock or sales figures."

type Assembler interface {
	Assemble(ctx context.Context, message string, snapshot []contractx.InventoryItem) (grounding.Bundle, error)
}

// AssembleContext never fails the request: a store read error is logged and
// the model is told that figures are unavailable.
func AssembleContext(ctx context.Context, in *GraphState, assembler Assembler) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	bundle, err := assembler.Assemble(ctx, in.Req.Message, in.Req.Inventory)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("assistant: context assembly failed")
		in.ContextText = contextUnavailable
		return in, nil
	}

	in.Bundle = bundle
	in.ContextText = bundle.Render()
	return in, nil
}
