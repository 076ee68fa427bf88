// Package api exposes the assistant and the inventory over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/kirana-assistant/agent/contract"
	"github.com/tanpawarit/kirana-assistant/agent/translate"
	"github.com/tanpawarit/kirana-assistant/agent/vision"
	"github.com/tanpawarit/kirana-assistant/speech"
	"github.com/tanpawarit/kirana-assistant/store"
)

const (
	requestIDHeader = "X-Request-ID"
	maxJSONBytes    = 1 << 20
	maxImageBytes   = 10 << 20
)

type Chatter interface {
	Chat(ctx context.Context, req contractx.ChatRequest) (contractx.ChatResponse, error)
}

type Inventory interface {
	ListProducts(ctx context.Context, offset, limit int) ([]store.Product, error)
	CreateProduct(ctx context.Context, in store.ProductInput) (store.Product, error)
	UpdateProduct(ctx context.Context, id int64, in store.ProductInput) (store.Product, error)
	DeleteProduct(ctx context.Context, id int64) error
	BulkMerge(ctx context.Context, inputs []store.ProductInput) ([]store.Product, error)
	UpdateShelfPositions(ctx context.Context, items []store.ShelfAssignment) (int, error)
	ListSales(ctx context.Context, limit int) ([]store.SaleView, error)
	RecordSale(ctx context.Context, productID int64, qty int) (store.SaleReceipt, error)
	Seed(ctx context.Context) (bool, error)
}

type Speaker interface {
	Speak(ctx context.Context, text, language string) (speech.Audio, error)
	Stats() speech.Stats
}

type ImageReader interface {
	ReadBill(ctx context.Context, img vision.Image) ([]vision.BillLine, error)
	ReadShelf(ctx context.Context, img vision.Image) ([]vision.ShelfEntry, error)
}

type Translator interface {
	Translate(ctx context.Context, text string, languages []string) (translate.Result, error)
}

// Deps are the services behind the routes. Chat and Inventory are required;
// the rest answer 503 when nil.
type Deps struct {
	Chat       Chatter
	Inventory  Inventory
	Speech     Speaker
	Vision     ImageReader
	Translator Translator
}

type Server struct {
	deps Deps
}

func New(deps Deps) *Server {
	return &Server{deps: deps}
}

func (s *Server) Router() http.Handler {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "route not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.HandleFunc("/", s.health).Methods(http.MethodGet)
	r.HandleFunc("/chat", s.chat).Methods(http.MethodPost)
	r.HandleFunc("/voice/chat", s.voiceChat).Methods(http.MethodPost)

	r.HandleFunc("/inventory", s.listProducts).Methods(http.MethodGet)
	r.HandleFunc("/inventory", s.createProduct).Methods(http.MethodPost)
	r.HandleFunc("/inventory/bulk", s.bulkMerge).Methods(http.MethodPost)
	r.HandleFunc("/inventory/shelf/bulk", s.bulkShelf).Methods(http.MethodPost)
	r.HandleFunc("/inventory/{id:[0-9]+}", s.updateProduct).Methods(http.MethodPut)
	r.HandleFunc("/inventory/{id:[0-9]+}", s.deleteProduct).Methods(http.MethodDelete)

	r.HandleFunc("/sales", s.listSales).Methods(http.MethodGet)
	r.HandleFunc("/sales", s.recordSale).Methods(http.MethodPost)

	r.HandleFunc("/vision/ocr", s.visionOCR).Methods(http.MethodPost)
	r.HandleFunc("/vision/shelf", s.visionShelf).Methods(http.MethodPost)
	r.HandleFunc("/translate", s.translate).Methods(http.MethodPost)
	r.HandleFunc("/tts", s.tts).Methods(http.MethodGet)
	r.HandleFunc("/tts/cache/stats", s.ttsStats).Methods(http.MethodGet)
	r.HandleFunc("/seed", s.seed).Methods(http.MethodPost)

	var h http.Handler = r
	h = hlog.AccessHandler(accessLog)(h)
	h = requestID(h)
	h = hlog.NewHandler(log.Logger)(h)
	return h
}

// requestID reuses an incoming X-Request-ID or issues a new one, and adds it
// to the request logger.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)

		logger := zerolog.Ctx(r.Context()).With().Str("request_id", id).Logger()
		next.ServeHTTP(w, r.WithContext(logger.WithContext(r.Context())))
	})
}

func accessLog(r *http.Request, status, size int, duration time.Duration) {
	evt := hlog.FromRequest(r).Info()
	if status >= http.StatusInternalServerError {
		evt = hlog.FromRequest(r).Error()
	}
	evt.Str("method", r.Method).
		Stringer("url", r.URL).
		Int("status", status).
		Int("size", size).
		Dur("duration", duration).
		Msg("http request")
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok", "service": "kirana-assistant"})
}
