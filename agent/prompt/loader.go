package prompt

import (
	_ "embed"
	"fmt"
	"strings"

	contractx "github.com/tanpawarit/kirana-assistant/agent/contract"
)

var (
	//go:embed template/intent.txt
	intentRaw string

	//go:embed template/phrase.txt
	phraseRaw string

	//go:embed template/ocr.txt
	ocrRaw string

	//go:embed template/shelf.txt
	shelfRaw string

	//go:embed template/translate.txt
	translateRaw string
)

// PromptSet holds loaded prompt content. Templates use FString syntax, so
// literal braces are doubled.
type PromptSet struct {
	Intent    string
	Phrase    string
	OCR       string
	Shelf     string
	Translate string
}

// LoadPromptSet returns a PromptSet with trimmed prompt strings.
func LoadPromptSet() PromptSet {
	return PromptSet{
		Intent:    strings.TrimSpace(intentRaw),
		Phrase:    strings.TrimSpace(phraseRaw),
		OCR:       strings.TrimSpace(ocrRaw),
		Shelf:     strings.TrimSpace(shelfRaw),
		Translate: strings.TrimSpace(translateRaw),
	}
}

func (p PromptSet) Validate() error {
	for name, v := range map[string]string{
		"intent":    p.Intent,
		"phrase":    p.Phrase,
		"ocr":       p.OCR,
		"shelf":     p.Shelf,
		"translate": p.Translate,
	} {
		if v == "" {
			return fmt.Errorf("%w: %s", contractx.ErrPromptMissing, name)
		}
	}
	return nil
}
