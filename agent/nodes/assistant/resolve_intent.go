package assistantnode

import (
	"context"
	"fmt"

	contractx "github.com/tanpawarit/kirana-assistant/agent/contract"
)

func ResolveIntent(ctx context.Context, in *GraphState, resolver contractx.Resolver) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	in.Intent = resolver.Resolve(ctx, contractx.ResolveRequest{
		Message:  in.Req.Message,
		History:  in.Req.History,
		Language: in.Req.Language,
		Context:  in.ContextText,
	})
	return in, nil
}
