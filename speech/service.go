// Package speech synthesizes short spoken replies and keeps them in a file
// cache.
package speech

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/kirana-assistant/agent/contract"
)

const (
	ContentType  = "audio/mpeg"
	DefaultVoice = "alloy"
	maxTextRunes = 1000
)

type Audio struct {
	Data   []byte
	Voice  string
	Cached bool
}

type Service struct {
	cache        *FileCache
	synth        Synthesizer
	voices       map[string]string
	defaultVoice string
}

// NewService builds the cache-through synthesizer. voices maps a language
// code to a voice; unknown languages use defaultVoice.
func NewService(cache *FileCache, synth Synthesizer, voices map[string]string, defaultVoice string) (*Service, error) {
	if cache == nil {
		return nil, fmt.Errorf("%w: tts cache is required", contractx.ErrValidation)
	}
	if synth == nil {
		return nil, fmt.Errorf("%w: synthesizer is required", contractx.ErrValidation)
	}
	defaultVoice = strings.TrimSpace(defaultVoice)
	if defaultVoice == "" {
		defaultVoice = DefaultVoice
	}
	normalized := make(map[string]string, len(voices))
	for lang, voice := range voices {
		lang, voice = strings.ToLower(strings.TrimSpace(lang)), strings.TrimSpace(voice)
		if lang != "" && voice != "" {
			normalized[lang] = voice
		}
	}
	return &Service{cache: cache, synth: synth, voices: normalized, defaultVoice: defaultVoice}, nil
}

func (s *Service) Voice(language string) string {
	if v, ok := s.voices[strings.ToLower(strings.TrimSpace(language))]; ok {
		return v
	}
	return s.defaultVoice
}

// Speak returns cached audio when present, otherwise synthesizes and caches
// it. A cache write failure is logged; the audio is still returned.
func (s *Service) Speak(ctx context.Context, text, language string) (Audio, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Audio{}, fmt.Errorf("%w: text is required", contractx.ErrValidation)
	}
	if len([]rune(text)) > maxTextRunes {
		return Audio{}, fmt.Errorf("%w: text longer than %d characters", contractx.ErrValidation, maxTextRunes)
	}
	language = strings.ToLower(strings.TrimSpace(language))
	if language == "" {
		language = "en"
	}
	voice := s.Voice(language)
	key := Key(text, language, voice)

	if data, ok := s.cache.Get(key); ok {
		log.Ctx(ctx).Debug().Str("voice", voice).Int("bytes", len(data)).Msg("speech: cache hit")
		return Audio{Data: data, Voice: voice, Cached: true}, nil
	}

	data, err := s.synth.Synthesize(ctx, text, language, voice)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Str("voice", voice).Msg("speech: synthesis failed")
		return Audio{}, fmt.Errorf("%w: %v", contractx.ErrModelInvoke, err)
	}
	if err := s.cache.Set(key, text, language, voice, data); err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("speech: cache write failed")
	}
	return Audio{Data: data, Voice: voice}, nil
}

func (s *Service) Stats() Stats { return s.cache.Stats() }
