package assistantnode

import (
	"context"
	"fmt"

	contractx "github.com/tanpawarit/kirana-assistant/agent/contract"
	executorx "github.com/tanpawarit/kirana-assistant/agent/executor"
)

type Executor interface {
	Execute(ctx context.Context, intent contractx.ResolvedIntent, language string) executorx.Outcome
}

func ExecuteAction(ctx context.Context, in *GraphState, executor Executor) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	in.Outcome = executor.Execute(ctx, in.Intent, in.Req.Language)
	return in, nil
}
