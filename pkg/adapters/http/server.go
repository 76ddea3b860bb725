package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/aretw0/tessera"
	"github.com/aretw0/tessera/internal/logging"
	"github.com/aretw0/tessera/pkg/actions"
	"github.com/aretw0/tessera/pkg/domain"
	"github.com/aretw0/tessera/pkg/segment"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Container is the part of tessera.Container the server uses.
type Container interface {
	ID() string
	Dispatch(action domain.Action) error
	Subscribe(listener func()) (func(), error)
	State() (any, error)
	Actions() (*actions.Tree, error)
	Diff(prev, next any) (*domain.StateDiff, error)
	Segments() ([]segment.Info, error)
	LoadSegment(ctx context.Context, id string, opts ...segment.LoadOption) (*tessera.Container, error)
}

// Server exposes a container over HTTP.
type Server struct {
	Container Container
	Streams   *StreamManager

	logger   *slog.Logger
	gatherer prometheus.Gatherer

	mu   sync.Mutex
	last any // state seen by the last broadcast
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMetrics serves gatherer on GET /metrics.
func WithMetrics(gatherer prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = gatherer
	}
}

// NewServer creates a server. Diffs reach SSE clients only once
// broadcastDiff is subscribed to c, which NewHandler does.
func NewServer(c Container, opts ...Option) (*Server, error) {
	s := &Server{
		Container: c,
		Streams:   NewStreamManager(),
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	state, err := c.State()
	if err != nil {
		return nil, err
	}
	s.last = state
	return s, nil
}

// NewHandler creates a new HTTP handler for the container. The returned
// function stops streaming diffs.
func NewHandler(c Container, opts ...Option) (http.Handler, func(), error) {
	s, err := NewServer(c, opts...)
	if err != nil {
		return nil, nil, err
	}
	unsubscribe, err := c.Subscribe(s.broadcastDiff)
	if err != nil {
		return nil, nil, err
	}
	return s.Routes(), unsubscribe, nil
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(enableCORS)

	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	r.Get("/state", s.GetState)
	r.Get("/state/{namespace}", s.GetState)
	r.Post("/dispatch", s.Dispatch)
	r.Get("/actions", s.ListActions)
	r.Post("/actions/{path}", s.CallAction)
	r.Get("/segments", s.ListSegments)
	r.Post("/segments/{id}/load", s.LoadSegment)
	r.Get("/events", s.SubscribeEvents)
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// DispatchResponse is returned by POST /dispatch and POST /actions/{path}.
type DispatchResponse struct {
	Changed    bool     `json:"changed"`
	Namespaces []string `json:"namespaces,omitempty"`
	Result     any      `json:"result,omitempty"`
}

// CallRequest is the body of POST /actions/{path}.
type CallRequest struct {
	Payload any `json:"payload,omitempty"`
	Meta    any `json:"meta,omitempty"`
}

// LoadRequest is the optional body of POST /segments/{id}/load.
type LoadRequest struct {
	Context      map[string]any `json:"context,omitempty"`
	SkipOnLoaded bool           `json:"skip_on_loaded,omitempty"`
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"app":          "tessera-http",
		"version":      strings.TrimSpace(tessera.Version),
		"container_id": s.Container.ID(),
	})
}

// GetState handles GET /state and GET /state/{namespace}. Namespace
// lookups need a map tree, as kept by the memory adapter.
func (s *Server) GetState(w http.ResponseWriter, r *http.Request) {
	state, err := s.Container.State()
	if err != nil {
		s.writeError(w, err)
		return
	}

	if ns := chi.URLParam(r, "namespace"); ns != "" {
		tree, ok := state.(map[string]any)
		slice, found := tree[ns]
		if !ok || !found {
			http.Error(w, fmt.Sprintf("namespace %q not found", ns), http.StatusNotFound)
			return
		}
		state = slice
	}
	s.writeJSON(w, http.StatusOK, state)
}

// Dispatch handles the POST /dispatch request. The body is an action.
func (s *Server) Dispatch(w http.ResponseWriter, r *http.Request) {
	var action domain.Action
	if err := json.NewDecoder(r.Body).Decode(&action); err != nil || action.Type == "" {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		s.logger.Warn("Dispatch: Invalid request body", "err", err)
		return
	}

	resp, err := s.track(func() (any, error) {
		return nil, s.Container.Dispatch(action)
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// ListActions handles GET /actions: method paths grouped by namespace
// ("" holds the root methods).
func (s *Server) ListActions(w http.ResponseWriter, r *http.Request) {
	tree, err := s.Container.Actions()
	if err != nil {
		s.writeError(w, err)
		return
	}

	out := map[string][]string{"": tree.Root().Names()}
	for _, ns := range tree.Namespaces() {
		b, _ := tree.Namespace(ns)
		out[ns] = b.Names()
	}
	s.writeJSON(w, http.StatusOK, out)
}

// CallAction handles POST /actions/{path}, path being "ns.method" or "method".
func (s *Server) CallAction(w http.ResponseWriter, r *http.Request) {
	var body CallRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			s.logger.Warn("CallAction: Invalid request body", "err", err)
			return
		}
	}

	tree, err := s.Container.Actions()
	if err != nil {
		s.writeError(w, err)
		return
	}

	path := chi.URLParam(r, "path")
	resp, err := s.track(func() (any, error) {
		return tree.Call(r.Context(), path, body.Payload, body.Meta)
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// ListSegments handles the GET /segments request.
func (s *Server) ListSegments(w http.ResponseWriter, r *http.Request) {
	infos, err := s.Container.Segments()
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, infos)
}

// LoadSegment handles the POST /segments/{id}/load request.
func (s *Server) LoadSegment(w http.ResponseWriter, r *http.Request) {
	var body LoadRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			s.logger.Warn("LoadSegment: Invalid request body", "err", err)
			return
		}
	}

	opts := []segment.LoadOption{}
	if body.Context != nil {
		opts = append(opts, segment.WithContext(body.Context))
	}
	if body.SkipOnLoaded {
		opts = append(opts, segment.SkipOnLoaded())
	}

	id := chi.URLParam(r, "id")
	if _, err := s.Container.LoadSegment(r.Context(), id, opts...); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, segment.Info{ID: id, Status: segment.StatusLoaded})
}

// track runs fn and reports how the state changed meanwhile.
func (s *Server) track(fn func() (any, error)) (*DispatchResponse, error) {
	before, err := s.Container.State()
	if err != nil {
		return nil, err
	}
	result, err := fn()
	if err != nil {
		return nil, err
	}
	after, err := s.Container.State()
	if err != nil {
		return nil, err
	}
	diff, err := s.Container.Diff(before, after)
	if err != nil {
		return nil, err
	}

	resp := &DispatchResponse{Result: result}
	if diff != nil {
		resp.Changed = true
		resp.Namespaces = diff.Namespaces
	}
	return resp, nil
}

// broadcastDiff is subscribed to the container.
func (s *Server) broadcastDiff() {
	state, err := s.Container.State()
	if err != nil {
		return
	}

	s.mu.Lock()
	prev := s.last
	s.last = state
	s.mu.Unlock()

	diff, err := s.Container.Diff(prev, state)
	if err != nil || diff == nil {
		return
	}
	bytes, err := json.Marshal(diff)
	if err != nil {
		s.logger.Error("Failed to encode state diff", "err", err)
		return
	}
	s.Streams.Broadcast(bytes, diff.Namespaces)
}

// SubscribeEvents handles the GET /events request (SSE). The optional
// "watch" query parameter is a comma-separated list of namespaces.
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		s.logger.Error("SubscribeEvents: Streaming not supported")
		return
	}

	var watch []string
	if v := r.URL.Query().Get("watch"); v != "" {
		for _, ns := range strings.Split(v, ",") {
			if ns = strings.TrimSpace(ns); ns != "" {
				watch = append(watch, ns)
			}
		}
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, cancel := s.Streams.Subscribe(watch)
	defer cancel()

	s.logger.Info("SSE: Client subscribed", "watch", watch)
	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Info("SSE: Client disconnected")
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Response encode failed", "err", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrUnregisteredSegment), errors.Is(err, domain.ErrUnknownMethod):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrDestroyed):
		status = http.StatusGone
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusRequestTimeout
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("Request failed", "err", err)
	}
	http.Error(w, err.Error(), status)
}
