package speech

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	openaisdk "github.com/openai/openai-go"

	contractx "github.com/tanpawarit/kirana-assistant/agent/contract"
)

// maxAudioBytes bounds one synthesized clip.
const maxAudioBytes = 20 << 20

// Synthesizer turns text into MP3 audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, language, voice string) ([]byte, error)
}

// OpenAISynthesizer calls the audio speech endpoint of an OpenAI-compatible
// API.
type OpenAISynthesizer struct {
	client *openaisdk.Client
	model  string
}

func NewOpenAISynthesizer(client *openaisdk.Client, model string) (*OpenAISynthesizer, error) {
	if client == nil {
		return nil, errors.New("speech: client is required")
	}
	model = strings.TrimSpace(model)
	if model == "" {
		return nil, errors.New("speech: model is required")
	}
	return &OpenAISynthesizer{client: client, model: model}, nil
}

func (s *OpenAISynthesizer) Synthesize(ctx context.Context, text, language, voice string) ([]byte, error) {
	params := openaisdk.AudioSpeechNewParams{
		Input:          text,
		Model:          openaisdk.SpeechModel(s.model),
		Voice:          openaisdk.AudioSpeechNewParamsVoice(voice),
		ResponseFormat: openaisdk.AudioSpeechNewParamsResponseFormatMP3,
	}
	// Only the gpt-4o speech models take instructions.
	if name := contractx.LanguageName(language); name != "" && strings.HasPrefix(s.model, "gpt-4o") {
		params.Instructions = openaisdk.String("Speak in " + name + " with a warm Indian accent, at a natural pace.")
	}

	resp, err := s.client.Audio.Speech.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("synthesize speech: %w", err)
	}
	defer resp.Body.Close()

	audio, err := io.ReadAll(io.LimitReader(resp.Body, maxAudioBytes))
	if err != nil {
		return nil, fmt.Errorf("read speech audio: %w", err)
	}
	if len(audio) == 0 {
		return nil, errors.New("synthesize speech: empty audio")
	}
	return audio, nil
}
