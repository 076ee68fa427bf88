package resolver

import (
	"context"
	"fmt"
	"strings"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"

	contractx "github.com/tanpawarit/kirana-assistant/agent/contract"
	llmx "github.com/tanpawarit/kirana-assistant/agent/llm"
)

const phraseUserTemplate = "Action: {action}\nDraft: {draft}\nNumbers to keep: {facts}"

// Phraser rewrites executor drafts with the chat model. The executor checks
// the result still carries every fact.
type Phraser struct {
	runner  compose.Runnable[map[string]any, string]
	timeout time.Duration
}

var _ contractx.Phraser = (*Phraser)(nil)

func NewPhraser(ctx context.Context, chatModel einomodel.BaseChatModel, systemPrompt string, timeout time.Duration) (*Phraser, error) {
	if strings.TrimSpace(systemPrompt) == "" {
		return nil, fmt.Errorf("%w: phrase prompt", contractx.ErrPromptMissing)
	}
	runner, err := llmx.CompileTextGraph(ctx, chatModel, systemPrompt, phraseUserTemplate, "resolver.phrase_graph")
	if err != nil {
		return nil, fmt.Errorf("%w: compile phrase graph: %v", contractx.ErrModelInvoke, err)
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Phraser{runner: runner, timeout: timeout}, nil
}

func (p *Phraser) Phrase(ctx context.Context, req contractx.PhraseRequest) (string, error) {
	if strings.TrimSpace(req.Draft) == "" {
		return "", fmt.Errorf("%w: draft is required", contractx.ErrValidation)
	}
	language := strings.TrimSpace(req.Language)
	if language == "" {
		language = "en"
	}

	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	out, err := p.runner.Invoke(callCtx, map[string]any{
		"language": language,
		"action":   string(req.Action),
		"draft":    req.Draft,
		"facts":    strings.Join(req.Facts, ", "),
	})
	if err != nil {
		return "", fmt.Errorf("%w: phrase invoke: %v", contractx.ErrModelInvoke, err)
	}
	return out, nil
}
