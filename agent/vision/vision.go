// Package vision reads supplier bills and shelf photos with a vision-capable
// chat model.
package vision

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/kirana-assistant/agent/contract"
	llmx "github.com/tanpawarit/kirana-assistant/agent/llm"
	promptx "github.com/tanpawarit/kirana-assistant/agent/prompt"
)

const (
	DefaultTimeout = 60 * time.Second

	billInstruction  = "Extract the line items from this bill."
	shelfInstruction = "List the products on this shelf."
)

// Image is an uploaded photo. An empty MIMEType is sniffed from Data.
type Image struct {
	Data     []byte
	MIMEType string
}

func (img Image) dataURL() (string, error) {
	if len(img.Data) == 0 {
		return "", fmt.Errorf("%w: image is empty", contractx.ErrValidation)
	}
	mime := strings.TrimSpace(img.MIMEType)
	if mime == "" || mime == "application/octet-stream" {
		mime = http.DetectContentType(img.Data)
	}
	if !strings.HasPrefix(mime, "image/") {
		return "", fmt.Errorf("%w: unsupported content type %q", contractx.ErrValidation, mime)
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(img.Data), nil
}

// BillLine is one purchased item read from a bill.
type BillLine struct {
	Name       string     `json:"name"`
	Quantity   flexNumber `json:"quantity"`
	UnitPrice  flexNumber `json:"unit_price"`
	TotalPrice flexNumber `json:"total_price"`
}

// ShelfEntry is one product seen on a shelf.
type ShelfEntry struct {
	Name      string     `json:"name"`
	Count     flexNumber `json:"count"`
	Category  string     `json:"category"`
	Misplaced bool       `json:"misplaced"`
}

type Analyzer struct {
	runner      compose.Runnable[[]*schema.Message, string]
	ocrPrompt   string
	shelfPrompt string
	timeout     time.Duration
}

type Option func(*Analyzer)

func WithTimeout(d time.Duration) Option {
	return func(a *Analyzer) {
		if d > 0 {
			a.timeout = d
		}
	}
}

func New(ctx context.Context, chatModel einomodel.BaseChatModel, prompts promptx.PromptSet, opts ...Option) (*Analyzer, error) {
	if strings.TrimSpace(prompts.OCR) == "" {
		return nil, fmt.Errorf("%w: ocr prompt", contractx.ErrPromptMissing)
	}
	if strings.TrimSpace(prompts.Shelf) == "" {
		return nil, fmt.Errorf("%w: shelf prompt", contractx.ErrPromptMissing)
	}
	runner, err := compileVisionGraph(ctx, chatModel)
	if err != nil {
		return nil, err
	}

	a := &Analyzer{
		runner: runner,
		// Prompts are sent as plain messages, not FString templates.
		ocrPrompt:   unescapeBraces(prompts.OCR),
		shelfPrompt: unescapeBraces(prompts.Shelf),
		timeout:     DefaultTimeout,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

func (a *Analyzer) ReadBill(ctx context.Context, img Image) ([]BillLine, error) {
	var lines []BillLine
	if err := a.analyze(ctx, "ocr", a.ocrPrompt, billInstruction, img, &lines); err != nil {
		return nil, err
	}
	out := lines[:0]
	for _, l := range lines {
		l.Name = strings.TrimSpace(l.Name)
		if l.Name != "" {
			out = append(out, l)
		}
	}
	return out, nil
}

func (a *Analyzer) ReadShelf(ctx context.Context, img Image) ([]ShelfEntry, error) {
	var entries []ShelfEntry
	if err := a.analyze(ctx, "shelf", a.shelfPrompt, shelfInstruction, img, &entries); err != nil {
		return nil, err
	}
	out := entries[:0]
	for _, e := range entries {
		e.Name = strings.TrimSpace(e.Name)
		e.Category = strings.TrimSpace(e.Category)
		if e.Name != "" {
			out = append(out, e)
		}
	}
	return out, nil
}

func (a *Analyzer) analyze(ctx context.Context, kind, system, instruction string, img Image, dst any) error {
	url, err := img.dataURL()
	if err != nil {
		return err
	}

	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	reply, err := a.runner.Invoke(callCtx, []*schema.Message{
		schema.SystemMessage(system),
		{
			Role: schema.User,
			MultiContent: []schema.ChatMessagePart{
				{Type: schema.ChatMessagePartTypeText, Text: instruction},
				{
					Type:     schema.ChatMessagePartTypeImageURL,
					ImageURL: &schema.ChatMessageImageURL{URL: url, Detail: schema.ImageURLDetailAuto},
				},
			},
		},
	})
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Str("kind", kind).Msg("vision: model invoke failed")
		return fmt.Errorf("%w: %s: %v", contractx.ErrModelInvoke, kind, err)
	}

	payload, ok := llmx.ExtractJSON(reply, '[', ']')
	if !ok {
		log.Ctx(ctx).Warn().Str("kind", kind).Str("raw", reply).Msg("vision: no JSON array in reply")
		return fmt.Errorf("%w: %s: no JSON array in reply", contractx.ErrSchemaViolation, kind)
	}
	if err := json.Unmarshal([]byte(payload), dst); err != nil {
		return fmt.Errorf("%w: %s: %v", contractx.ErrSchemaViolation, kind, err)
	}
	return nil
}

func unescapeBraces(s string) string {
	return strings.NewReplacer("{{", "{", "}}", "}").Replace(s)
}
