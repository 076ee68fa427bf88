package resolver

import (
	"context"
	"fmt"

	einomodel "github.com/cloudwego/eino/components/model"

	contractx "github.com/tanpawarit/kirana-assistant/agent/contract"
	llmx "github.com/tanpawarit/kirana-assistant/agent/llm"
	promptx "github.com/tanpawarit/kirana-assistant/agent/prompt"
)

// Registry owns one chat model per role and the components built on them.
type Registry struct {
	resolver  *Resolver
	phraser   *Phraser
	vision    einomodel.ToolCallingChatModel
	translate einomodel.ToolCallingChatModel
	prompts   promptx.PromptSet
}

func (r *Registry) Resolver() contractx.Resolver {
	return r.resolver
}

// Phraser returns nil when phrasing is disabled.
func (r *Registry) Phraser() contractx.Phraser {
	if r.phraser == nil {
		return nil
	}
	return r.phraser
}

func (r *Registry) VisionModel() einomodel.ToolCallingChatModel    { return r.vision }
func (r *Registry) TranslateModel() einomodel.ToolCallingChatModel { return r.translate }
func (r *Registry) Prompts() promptx.PromptSet                     { return r.prompts }

func NewRegistry(ctx context.Context, cfg llmx.Config) (*Registry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	prompts := promptx.LoadPromptSet()
	if err := prompts.Validate(); err != nil {
		return nil, err
	}

	newModel := func(role llmx.Role) (einomodel.ToolCallingChatModel, error) {
		modelCfg := cfg.OpenRouterFor(role)
		m, err := modelCfg.New(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: create %s model: %v", contractx.ErrModelInvoke, role, err)
		}
		return m, nil
	}

	intentModel, err := newModel(llmx.RoleIntent)
	if err != nil {
		return nil, err
	}
	visionModel, err := newModel(llmx.RoleVision)
	if err != nil {
		return nil, err
	}
	translateModel, err := newModel(llmx.RoleTranslate)
	if err != nil {
		return nil, err
	}

	resolver, err := New(ctx, intentModel, prompts.Intent,
		WithTimeout(cfg.Timeout),
		WithHistoryTurns(cfg.HistoryTurns),
	)
	if err != nil {
		return nil, err
	}

	reg := &Registry{
		resolver:  resolver,
		vision:    visionModel,
		translate: translateModel,
		prompts:   prompts,
	}

	if cfg.PhraseEnabled {
		phraseModel, err := newModel(llmx.RolePhrase)
		if err != nil {
			return nil, err
		}
		reg.phraser, err = NewPhraser(ctx, phraseModel, prompts.Phrase, cfg.Timeout)
		if err != nil {
			return nil, err
		}
	}

	return reg, nil
}
