// Package translate renders product names in Indian languages through the
// chat model, with a cache in front.
package translate

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/kirana-assistant/agent/contract"
	llmx "github.com/tanpawarit/kirana-assistant/agent/llm"
)

// DefaultLanguages are used when the caller names none.
var DefaultLanguages = []string{"hi", "te", "ta", "kn", "ml", "gu", "mr", "bn", "pa"}

const userTemplate = "Product name: {text}\nLanguages: {languages}"

// Result is one translation request's answer.
type Result struct {
	Text         string            `json:"text"`
	Translations map[string]string `json:"translations"`
	Cached       bool              `json:"cached"`
}

type Translator struct {
	runner  compose.Runnable[map[string]any, string]
	cache   Cache
	timeout time.Duration
}

type Option func(*Translator)

func WithCache(c Cache) Option {
	return func(t *Translator) {
		if c != nil {
			t.cache = c
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(t *Translator) {
		if d > 0 {
			t.timeout = d
		}
	}
}

func New(ctx context.Context, chatModel einomodel.BaseChatModel, systemPrompt string, opts ...Option) (*Translator, error) {
	if strings.TrimSpace(systemPrompt) == "" {
		return nil, fmt.Errorf("%w: translate prompt", contractx.ErrPromptMissing)
	}
	runner, err := llmx.CompileTextGraph(ctx, chatModel, systemPrompt, userTemplate, "translate.product_name")
	if err != nil {
		return nil, err
	}

	t := &Translator{runner: runner, cache: NewMemoryCache(), timeout: 30 * time.Second}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Translate returns text in every requested language. A failed or unreadable
// model reply is not cached and yields text unchanged for each language.
func (t *Translator) Translate(ctx context.Context, text string, languages []string) (Result, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Result{}, fmt.Errorf("%w: text is required", contractx.ErrValidation)
	}
	langs := NormalizeLanguages(languages)
	key := CacheKey(text, langs)

	if cached, ok := t.cache.Get(ctx, key); ok {
		return Result{Text: text, Translations: cached, Cached: true}, nil
	}

	callCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	reply, err := t.runner.Invoke(callCtx, map[string]any{
		"text":      text,
		"languages": describeLanguages(langs),
	})
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Str("text", text).Msg("translate: model invoke failed")
		return Result{Text: text, Translations: passthrough(text, langs)}, nil
	}

	translations, err := parseTranslations(reply, text, langs)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("raw", reply).Msg("translate: malformed model reply")
		return Result{Text: text, Translations: passthrough(text, langs)}, nil
	}

	t.cache.Set(ctx, key, translations)
	return Result{Text: text, Translations: translations}, nil
}

// NormalizeLanguages lower-cases, de-duplicates and sorts language codes.
func NormalizeLanguages(languages []string) []string {
	out := make([]string, 0, len(languages))
	for _, l := range languages {
		l = strings.ToLower(strings.TrimSpace(l))
		if l != "" {
			out = append(out, l)
		}
	}
	if len(out) == 0 {
		out = append(out, DefaultLanguages...)
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// CacheKey is stable across letter case and language order.
func CacheKey(text string, langs []string) string {
	return strings.ToLower(strings.TrimSpace(text)) + "|" + strings.Join(langs, ",")
}

func describeLanguages(langs []string) string {
	parts := make([]string, 0, len(langs))
	for _, l := range langs {
		if name := contractx.LanguageName(l); name != "" {
			parts = append(parts, fmt.Sprintf("%s (%s)", l, name))
			continue
		}
		parts = append(parts, l)
	}
	return strings.Join(parts, ", ")
}

// parseTranslations keeps requested languages only; any language the model
// skipped falls back to text.
func parseTranslations(reply, text string, langs []string) (map[string]string, error) {
	payload, ok := llmx.ExtractJSON(reply, '{', '}')
	if !ok {
		return nil, fmt.Errorf("%w: no JSON object in reply", contractx.ErrSchemaViolation)
	}
	var raw map[string]any
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return nil, fmt.Errorf("%w: decode translations: %v", contractx.ErrSchemaViolation, err)
	}

	out := make(map[string]string, len(langs))
	for _, l := range langs {
		v, _ := raw[l].(string)
		v = strings.TrimSpace(v)
		if v == "" {
			v = text
		}
		out[l] = v
	}
	return out, nil
}

func passthrough(text string, langs []string) map[string]string {
	out := make(map[string]string, len(langs))
	for _, l := range langs {
		out[l] = text
	}
	return out
}
