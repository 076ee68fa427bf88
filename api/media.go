package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	contractx "github.com/tanpawarit/kirana-assistant/agent/contract"
	"github.com/tanpawarit/kirana-assistant/agent/vision"
	"github.com/tanpawarit/kirana-assistant/speech"
	"github.com/tanpawarit/kirana-assistant/store"
)

type ocrResponse struct {
	Items    []vision.BillLine `json:"items"`
	Imported []store.Product   `json:"imported,omitempty"`
}

type shelfResponse struct {
	Items   []vision.ShelfEntry `json:"items"`
	Shelf   string              `json:"shelf,omitempty"`
	Updated int                 `json:"updated"`
}

type translateRequest struct {
	Text      string   `json:"text"`
	Languages []string `json:"languages"`
}

func (s *Server) visionOCR(w http.ResponseWriter, r *http.Request) {
	if s.deps.Vision == nil {
		writeError(w, r, http.StatusServiceUnavailable, "vision is not configured")
		return
	}
	img, err := readImage(w, r)
	if err != nil {
		writeErr(w, r, err)
		return
	}

	lines, err := s.deps.Vision.ReadBill(r.Context(), img)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	out := ocrResponse{Items: lines}
	if out.Items == nil {
		out.Items = []vision.BillLine{}
	}

	if doImport, _ := strconv.ParseBool(r.FormValue("import")); doImport && len(lines) > 0 {
		out.Imported, err = s.deps.Inventory.BulkMerge(r.Context(), vision.BillInputs(lines))
		if err != nil {
			writeErr(w, r, err)
			return
		}
	}
	writeJSON(w, r, http.StatusOK, out)
}

func (s *Server) visionShelf(w http.ResponseWriter, r *http.Request) {
	if s.deps.Vision == nil {
		writeError(w, r, http.StatusServiceUnavailable, "vision is not configured")
		return
	}
	img, err := readImage(w, r)
	if err != nil {
		writeErr(w, r, err)
		return
	}

	entries, err := s.deps.Vision.ReadShelf(r.Context(), img)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	out := shelfResponse{Items: entries, Shelf: strings.TrimSpace(r.FormValue("shelf"))}
	if out.Items == nil {
		out.Items = []vision.ShelfEntry{}
	}

	if assignments := vision.ShelfAssignments(entries, out.Shelf); len(assignments) > 0 {
		out.Updated, err = s.deps.Inventory.UpdateShelfPositions(r.Context(), assignments)
		if err != nil {
			writeErr(w, r, err)
			return
		}
	}
	writeJSON(w, r, http.StatusOK, out)
}

func (s *Server) translate(w http.ResponseWriter, r *http.Request) {
	if s.deps.Translator == nil {
		writeError(w, r, http.StatusServiceUnavailable, "translation is not configured")
		return
	}
	var req translateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, r, err)
		return
	}
	res, err := s.deps.Translator.Translate(r.Context(), req.Text, req.Languages)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, res)
}

func (s *Server) tts(w http.ResponseWriter, r *http.Request) {
	if s.deps.Speech == nil {
		writeError(w, r, http.StatusServiceUnavailable, "speech is not configured")
		return
	}
	q := r.URL.Query()
	audio, err := s.deps.Speech.Speak(r.Context(), q.Get("text"), q.Get("language"))
	if err != nil {
		writeErr(w, r, err)
		return
	}

	cache := "MISS"
	if audio.Cached {
		cache = "HIT"
	}
	w.Header().Set("Content-Type", speech.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(audio.Data)))
	w.Header().Set("X-Cache", cache)
	w.Header().Set("X-Voice", audio.Voice)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(audio.Data)
}

func (s *Server) ttsStats(w http.ResponseWriter, r *http.Request) {
	if s.deps.Speech == nil {
		writeError(w, r, http.StatusServiceUnavailable, "speech is not configured")
		return
	}
	writeJSON(w, r, http.StatusOK, s.deps.Speech.Stats())
}

// readImage takes the "image" part of a multipart upload.
func readImage(w http.ResponseWriter, r *http.Request) (vision.Image, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImageBytes+(1<<20))
	if err := r.ParseMultipartForm(maxImageBytes); err != nil {
		return vision.Image{}, fmt.Errorf("%w: invalid multipart form: %v", contractx.ErrValidation, err)
	}
	file, header, err := r.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return vision.Image{}, fmt.Errorf("%w: image file is required", contractx.ErrValidation)
	}
	if err != nil {
		return vision.Image{}, fmt.Errorf("%w: read image: %v", contractx.ErrValidation, err)
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxImageBytes+1))
	if err != nil {
		return vision.Image{}, fmt.Errorf("%w: read image: %v", contractx.ErrValidation, err)
	}
	if len(data) > maxImageBytes {
		return vision.Image{}, fmt.Errorf("%w: image larger than %d MB", contractx.ErrValidation, maxImageBytes>>20)
	}
	return vision.Image{Data: data, MIMEType: header.Header.Get("Content-Type")}, nil
}
