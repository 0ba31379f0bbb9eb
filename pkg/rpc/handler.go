package rpc

import (
	"io"
	"net/http"
	"sync"

	"github.com/go-chi/chi"
	json "github.com/goccy/go-json"
	"github.com/kardianos/service"

	"github.com/BingHanLin/vscode-oneDev-browser/pkg/host"
	"github.com/BingHanLin/vscode-oneDev-browser/pkg/protocol"
)

// maximum size of an intent body; intents carry credentials and nothing else
const maxIntentSize = 64 << 10

// ContentType of an intent response: one envelope per line.
const ContentType = "application/x-ndjson"

// Handler is a set of http handlers exposing a host controller
type Handler struct {
	ctrl   *host.Controller
	logger service.Logger
}

// NewHandler creates a new handler around a controller
func NewHandler(ctrl *host.Controller, lg service.Logger) *Handler {
	return &Handler{
		ctrl:   ctrl,
		logger: lg,
	}
}

// Mount routes the handlers on a mux
func (h *Handler) Mount(mux *chi.Mux) {
	mux.Post("/intents", h.intentHandler)
	mux.Get("/state", h.stateHandler)
}

// intentHandler runs one intent to completion, streaming each message to the
// client as soon as it is posted.
func (h *Handler) intentHandler(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxIntentSize))
	if err != nil {
		http.Error(w, http.StatusText(400), 400)
		return
	}

	in, err := protocol.DecodeIntent(body)
	if err != nil {
		_ = h.logger.Warningf("rejected intent: %s", err)
		http.Error(w, err.Error(), 400)
		return
	}

	w.Header().Set("Content-Type", ContentType)
	w.WriteHeader(200)
	h.ctrl.Handle(r.Context(), in, newLineSink(w))
}

func (h *Handler) stateHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(h.ctrl.Snapshot()); err != nil {
		_ = h.logger.Error("encoding error", err)
	}
}

// lineSink writes envelopes as newline-delimited JSON, flushing after each
// one if the writer supports it.
type lineSink struct {
	m sync.Mutex
	w io.Writer
}

func newLineSink(w io.Writer) *lineSink {
	return &lineSink{w: w}
}

func (s *lineSink) Post(env protocol.Envelope) error {
	line, err := json.Marshal(env)
	if err != nil {
		return err
	}
	line = append(line, '\n')

	s.m.Lock()
	defer s.m.Unlock()
	if _, err := s.w.Write(line); err != nil {
		return err
	}
	if f, ok := s.w.(http.Flusher); ok {
		f.Flush()
	}
	return nil
}
