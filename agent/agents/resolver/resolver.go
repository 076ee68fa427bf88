// Package resolver turns a message, its history and the store context into a
// validated intent by asking the chat model.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"

	actionx "github.com/tanpawarit/kirana-assistant/agent/action"
	contractx "github.com/tanpawarit/kirana-assistant/agent/contract"
)

const (
	DefaultTimeout      = 30 * time.Second
	DefaultHistoryTurns = 20

	apologyUnavailable       = "I'm having trouble connecting to my brain right now. Please try again in a moment."
	apologyUnavailableSpeech = "Sorry, I can't connect right now."
	apologyMalformed         = "Sorry, I didn't understand that. Could you say it another way?"
	apologyMalformedSpeech   = "Sorry, please say that again."
)

type Resolver struct {
	runner       compose.Runnable[map[string]any, parsedIntent]
	timeout      time.Duration
	historyTurns int
}

var _ contractx.Resolver = (*Resolver)(nil)

type Option func(*Resolver)

func WithTimeout(d time.Duration) Option {
	return func(r *Resolver) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithHistoryTurns caps how many of the latest history turns reach the model.
func WithHistoryTurns(n int) Option {
	return func(r *Resolver) {
		if n >= 0 {
			r.historyTurns = n
		}
	}
}

func New(ctx context.Context, chatModel einomodel.BaseChatModel, systemPrompt string, opts ...Option) (*Resolver, error) {
	if strings.TrimSpace(systemPrompt) == "" {
		return nil, fmt.Errorf("%w: intent prompt", contractx.ErrPromptMissing)
	}
	runner, err := compileIntentGraph(ctx, chatModel, systemPrompt)
	if err != nil {
		return nil, fmt.Errorf("%w: compile intent graph: %v", contractx.ErrModelInvoke, err)
	}

	r := &Resolver{runner: runner, timeout: DefaultTimeout, historyTurns: DefaultHistoryTurns}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Resolve asks the model for an intent. A failed call, a timeout or a reply
// that does not match the schema yields a NONE intent carrying an apology.
func (r *Resolver) Resolve(ctx context.Context, req contractx.ResolveRequest) contractx.ResolvedIntent {
	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	language := strings.TrimSpace(req.Language)
	if language == "" {
		language = "en"
	}

	out, err := r.runner.Invoke(callCtx, map[string]any{
		"actions":  actionx.Describe(),
		"context":  req.Context,
		"language": language,
		"history":  historyMessages(req.History, r.historyTurns),
		"message":  req.Message,
	})
	if err != nil {
		log.Ctx(ctx).Error().Err(err).
			Bool("deadline_exceeded", errors.Is(callCtx.Err(), context.DeadlineExceeded)).
			Msg("resolver: model invoke failed")
		return fallback(contractx.FailureModelUnavailable)
	}
	if out.Err != nil {
		log.Ctx(ctx).Warn().Err(out.Err).Str("raw", truncate(out.Raw, 500)).Msg("resolver: malformed model reply")
		return fallback(contractx.FailureMalformedResponse)
	}

	intent, err := toIntent(out.Intent)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("resolver: reply rejected")
		return fallback(contractx.FailureMalformedResponse)
	}

	log.Ctx(ctx).Debug().Str("action", string(intent.Action)).Interface("params", intent.Params).Msg("resolver: intent resolved")
	return intent
}

func fallback(kind contractx.FailureKind) contractx.ResolvedIntent {
	response, speech := apologyMalformed, apologyMalformedSpeech
	if kind == contractx.FailureModelUnavailable {
		response, speech = apologyUnavailable, apologyUnavailableSpeech
	}
	return contractx.ResolvedIntent{
		Action:   contractx.ActionNone,
		Params:   map[string]any{},
		Speech:   speech,
		Response: response,
		Command:  contractx.NoAction{},
		Failure:  kind,
	}
}

// historyMessages converts the latest limit turns. Unknown roles and blank
// turns are skipped; the caller's slice is not modified.
func historyMessages(history []contractx.ChatTurn, limit int) []*schema.Message {
	if limit == 0 || len(history) == 0 {
		return []*schema.Message{}
	}
	if len(history) > limit {
		history = history[len(history)-limit:]
	}

	msgs := make([]*schema.Message, 0, len(history))
	for _, turn := range history {
		content := strings.TrimSpace(turn.Content)
		if content == "" {
			continue
		}
		switch turn.Role {
		case contractx.RoleUser:
			msgs = append(msgs, schema.UserMessage(content))
		case contractx.RoleAssistant:
			msgs = append(msgs, schema.AssistantMessage(content, nil))
		}
	}
	return msgs
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
