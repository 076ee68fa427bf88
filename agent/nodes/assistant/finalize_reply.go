package assistantnode

import (
	"fmt"
	"strings"

	contractx "github.com/tanpawarit/kirana-assistant/agent/contract"
)

func FinalizeReply(in *GraphState) (GraphOutput, error) {
	if in == nil {
		return GraphOutput{}, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	reply := strings.TrimSpace(in.Outcome.Response)
	if reply == "" {
		return GraphOutput{}, fmt.Errorf("%w: executor returned empty response", contractx.ErrValidation)
	}
	speech := strings.TrimSpace(in.Outcome.Speech)
	if speech == "" {
		speech = strings.TrimSpace(in.Intent.Speech)
	}

	out := GraphOutput{
		Response:        reply,
		Speech:          speech,
		ActionPerformed: in.Outcome.ActionPerformed,
		Action:          in.Intent.Action,
		Failure:         in.Outcome.Failure,
	}
	if len(in.Intent.Params) > 0 {
		out.Params = in.Intent.Params
	}
	return out, nil
}
