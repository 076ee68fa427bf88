package llm

import (
	"fmt"
	"strings"
	"time"

	contractx "github.com/tanpawarit/kirana-assistant/agent/contract"
	openrouterx "github.com/tanpawarit/kirana-assistant/pkg/openrouter"
)

// Role names one model use in the assistant.
type Role string

const (
	RoleIntent    Role = "intent"
	RolePhrase    Role = "phrase"
	RoleVision    Role = "vision"
	RoleTranslate Role = "translate"
)

type Config struct {
	BaseURL            string        `envconfig:"BASE_URL" split_words:"true" default:"https://openrouter.ai/api/v1"`
	APIKey             string        `envconfig:"API_KEY" split_words:"true" required:"true"`
	Model              string        `envconfig:"MODEL" split_words:"true" required:"true"`
	MaxCompletionToken int           `envconfig:"MAX_COMPLETION_TOKEN" split_words:"true" default:"1000"`
	Temperature        float32       `envconfig:"TEMPERATURE" split_words:"true" default:"0.2"`
	Timeout            time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"30s"`
	SiteURL            string        `envconfig:"SITE_URL" split_words:"true"`
	SiteName           string        `envconfig:"SITE_NAME" split_words:"true"`
	HistoryTurns       int           `envconfig:"HISTORY_TURNS" split_words:"true" default:"20"`
	PhraseEnabled      bool          `envconfig:"PHRASE_ENABLED" split_words:"true" default:"false"`

	IntentModel          string  `envconfig:"INTENT_MODEL" split_words:"true"`
	PhraseModel          string  `envconfig:"PHRASE_MODEL" split_words:"true"`
	VisionModel          string  `envconfig:"VISION_MODEL" split_words:"true"`
	TranslateModel       string  `envconfig:"TRANSLATE_MODEL" split_words:"true"`
	IntentTemperature    float32 `envconfig:"INTENT_TEMPERATURE" split_words:"true" default:"-1"`
	PhraseTemperature    float32 `envconfig:"PHRASE_TEMPERATURE" split_words:"true" default:"-1"`
	VisionTemperature    float32 `envconfig:"VISION_TEMPERATURE" split_words:"true" default:"-1"`
	TranslateTemperature float32 `envconfig:"TRANSLATE_TEMPERATURE" split_words:"true" default:"-1"`
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return fmt.Errorf("%w: openrouter api key is required", contractx.ErrValidation)
	}
	if strings.TrimSpace(c.Model) == "" {
		return fmt.Errorf("%w: default model is required", contractx.ErrValidation)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("%w: llm timeout must be positive", contractx.ErrValidation)
	}
	return nil
}

// OpenRouterFor resolves the model and temperature of role, falling back to
// the defaults when the role has no override.
func (c Config) OpenRouterFor(role Role) openrouterx.Config {
	modelName := strings.TrimSpace(c.Model)
	temp := c.Temperature

	override := func(model string, t float32) {
		if v := strings.TrimSpace(model); v != "" {
			modelName = v
		}
		if t >= 0 {
			temp = t
		}
	}

	switch role {
	case RoleIntent:
		override(c.IntentModel, c.IntentTemperature)
	case RolePhrase:
		override(c.PhraseModel, c.PhraseTemperature)
	case RoleVision:
		override(c.VisionModel, c.VisionTemperature)
	case RoleTranslate:
		override(c.TranslateModel, c.TranslateTemperature)
	}

	maxCompletionToken := c.MaxCompletionToken
	return openrouterx.Config{
		BaseURL:            strings.TrimSpace(c.BaseURL),
		APIKey:             strings.TrimSpace(c.APIKey),
		Model:              modelName,
		MaxCompletionToken: &maxCompletionToken,
		Temperature:        temp,
		Timeout:            c.Timeout,
		SiteURL:            strings.TrimSpace(c.SiteURL),
		SiteName:           strings.TrimSpace(c.SiteName),
	}
}
