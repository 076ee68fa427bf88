package api

import (
	"encoding/base64"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog/hlog"

	"github.com/tanpawarit/kirana-assistant/agent/agents/assistant"
	contractx "github.com/tanpawarit/kirana-assistant/agent/contract"
	"github.com/tanpawarit/kirana-assistant/speech"
)

type voiceChatResponse struct {
	contractx.ChatResponse
	AudioBase64      string `json:"audio_base64,omitempty"`
	AudioContentType string `json:"audio_content_type,omitempty"`
}

func (s *Server) chat(w http.ResponseWriter, r *http.Request) {
	_, resp, ok := s.handleChat(w, r)
	if !ok {
		return
	}
	writeJSON(w, r, http.StatusOK, resp)
}

// voiceChat is chat plus the synthesized speech line. Speech failures only
// drop the audio.
func (s *Server) voiceChat(w http.ResponseWriter, r *http.Request) {
	req, resp, ok := s.handleChat(w, r)
	if !ok {
		return
	}

	out := voiceChatResponse{ChatResponse: resp}
	text := strings.TrimSpace(resp.Speech)
	if text == "" {
		text = resp.Response
	}
	if s.deps.Speech != nil && text != "" {
		audio, err := s.deps.Speech.Speak(r.Context(), text, req.Language)
		if err != nil {
			hlog.FromRequest(r).Warn().Err(err).Msg("voice chat: speech unavailable")
		} else {
			out.AudioBase64 = base64.StdEncoding.EncodeToString(audio.Data)
			out.AudioContentType = speech.ContentType
		}
	}
	writeJSON(w, r, http.StatusOK, out)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) (contractx.ChatRequest, contractx.ChatResponse, bool) {
	var req contractx.ChatRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, r, err)
		return req, contractx.ChatResponse{}, false
	}

	resp, err := s.deps.Chat.Chat(r.Context(), req)
	if errors.Is(err, assistant.ErrInvalidMessage) {
		writeError(w, r, http.StatusBadRequest, "message is required")
		return req, contractx.ChatResponse{}, false
	}
	if err != nil {
		writeErr(w, r, err)
		return req, contractx.ChatResponse{}, false
	}
	return req, resp, true
}
