// Package webui serves a browser flame graph over the shared session: a JSON
// API for listing traces and zooming, plus a WebSocket that pushes the view
// whenever the selection changes.
package webui

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/coder/websocket"

	"github.com/tobert/flamezoom/internal/profile"
	"github.com/tobert/flamezoom/internal/region"
	"github.com/tobert/flamezoom/internal/session"
	"github.com/tobert/flamezoom/internal/storage"
)

//go:embed static/index.html
var staticFiles embed.FS

// Server serves the embedded web UI, the JSON API and WebSocket updates.
type Server struct {
	storage *storage.TraceStorage
	session *session.Session
	verbose bool
}

// New creates a new web UI server.
func New(ts *storage.TraceStorage, sess *session.Session, verbose bool) *Server {
	return &Server{storage: ts, session: sess, verbose: verbose}
}

// RegisterRoutes attaches web UI routes to an existing ServeMux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", s.handleUIRedirect)
	mux.HandleFunc("GET /ui/", s.handleUI)
	mux.HandleFunc("GET /ui", s.handleUIRedirect)
	mux.HandleFunc("GET /api/traces", s.handleTraces)
	mux.HandleFunc("POST /api/load", s.handleLoad)
	mux.HandleFunc("GET /api/view", s.handleView)
	mux.HandleFunc("POST /api/select", s.handleSelect)
	mux.HandleFunc("POST /api/reset", s.handleReset)
	mux.HandleFunc("POST /api/back", s.handleBack)
	mux.HandleFunc("GET /ws", s.handleWebSocket)
}

// Handler returns a mux with every route registered.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return mux
}

// ListenAndServe runs a standalone HTTP server until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleUIRedirect(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/ui/", http.StatusMovedPermanently)
}

// handleUI serves the embedded index.html.
func (s *Server) handleUI(w http.ResponseWriter, r *http.Request) {
	data, err := staticFiles.ReadFile("static/index.html")
	if err != nil {
		http.Error(w, "UI not found", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(data)
}

// tracesResponse is the JSON shape for /api/traces.
type tracesResponse struct {
	Loaded string                 `json:"loaded,omitempty"`
	Stats  storage.StorageStats   `json:"stats"`
	Traces []storage.TraceSummary `json:"traces"`
}

// handleTraces lists buffered traces, optionally narrowed by ?service=,
// ?root_span= and ?limit=.
func (s *Server) handleTraces(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	writeJSON(w, http.StatusOK, tracesResponse{
		Loaded: s.session.TraceID(),
		Stats:  s.storage.Stats(),
		Traces: storage.FilterTraces(s.storage.Traces(), storage.FilterOptions{
			Service:  q.Get("service"),
			RootSpan: q.Get("root_span"),
			Limit:    limit,
		}),
	})
}

// handleLoad loads ?trace= into the session, or the latest trace without it.
func (s *Server) handleLoad(w http.ResponseWriter, r *http.Request) {
	traceID, err := s.session.LoadFrom(s.storage, r.URL.Query().Get("trace"))
	if err != nil {
		writeError(w, err)
		return
	}
	if s.verbose {
		log.Printf("🔥 webui: loaded trace %s", traceID)
	}
	s.handleView(w, r)
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	st, err := s.session.Snapshot()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// handleSelect zooms into ?node=<arena.index>.
func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	id, err := profile.ParseNodeID(r.URL.Query().Get("node"))
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.session.Select(id); err != nil {
		writeError(w, err)
		return
	}
	s.handleView(w, r)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.session.Reset(); err != nil {
		writeError(w, err)
		return
	}
	s.handleView(w, r)
}

func (s *Server) handleBack(w http.ResponseWriter, r *http.Request) {
	if _, err := s.session.Back(); err != nil {
		writeError(w, err)
		return
	}
	s.handleView(w, r)
}

// wsCommand is a client-sent message on the WebSocket.
type wsCommand struct {
	Action string `json:"action"` // select, reset, back, load
	Node   string `json:"node,omitempty"`
	Trace  string `json:"trace,omitempty"`
}

// wsUpdate is the server-sent message on the WebSocket. Exactly one of State
// or Error is set.
type wsUpdate struct {
	State *session.State `json:"state,omitempty"`
	Error string         `json:"error,omitempty"`
}

// handleWebSocket upgrades to WebSocket, sends the current view, then pushes a
// new one after every session change. Clients may also drive the session by
// sending wsCommand messages.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // Allow any origin for localhost dev
	})
	if err != nil {
		return
	}
	defer conn.CloseNow()

	ctx := r.Context()

	notifyCh, unsubscribe := s.session.Subscribe()
	defer unsubscribe()

	cmdCh := make(chan wsCommand, 4)
	go func() {
		defer close(cmdCh)
		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				return
			}
			var cmd wsCommand
			if json.Unmarshal(data, &cmd) == nil {
				select {
				case cmdCh <- cmd:
				default:
				}
			}
		}
	}()

	s.sendState(ctx, conn)

	keepalive := time.NewTicker(15 * time.Second)
	defer keepalive.Stop()

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "server shutting down")
			return

		case cmd, ok := <-cmdCh:
			if !ok {
				return
			}
			// Successful commands notify subscribers, this one included.
			if err := s.apply(cmd); err != nil {
				s.send(ctx, conn, wsUpdate{Error: err.Error()})
			}

		case <-notifyCh:
			s.sendState(ctx, conn)

		case <-keepalive.C:
			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

func (s *Server) apply(cmd wsCommand) error {
	switch cmd.Action {
	case "select":
		id, err := profile.ParseNodeID(cmd.Node)
		if err != nil {
			return err
		}
		return s.session.Select(id)
	case "reset":
		return s.session.Reset()
	case "back":
		_, err := s.session.Back()
		return err
	case "load":
		_, err := s.session.LoadFrom(s.storage, cmd.Trace)
		return err
	default:
		return errors.New("unknown action " + cmd.Action)
	}
}

func (s *Server) sendState(ctx context.Context, conn *websocket.Conn) {
	st, err := s.session.Snapshot()
	if errors.Is(err, session.ErrNoProfile) {
		// Nothing to show until a trace is loaded.
		return
	}
	if err != nil {
		s.send(ctx, conn, wsUpdate{Error: err.Error()})
		return
	}
	s.send(ctx, conn, wsUpdate{State: &st})
}

func (s *Server) send(ctx context.Context, conn *websocket.Conn, update wsUpdate) {
	data, err := json.Marshal(update)
	if err != nil {
		log.Printf("webui: failed to marshal update: %v", err)
		return
	}

	writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	// A failed write means the connection closed; the main loop cleans up.
	_ = conn.Write(writeCtx, websocket.MessageText, data)
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, profile.ErrUnknownNode),
		errors.Is(err, storage.ErrTraceNotFound),
		errors.Is(err, session.ErrNoProfile),
		errors.Is(err, session.ErrNoTraces):
		return http.StatusNotFound
	case errors.Is(err, profile.ErrZeroWidthNode),
		errors.Is(err, profile.ErrEmptyForest),
		errors.Is(err, region.ErrDegenerateWindow):
		return http.StatusUnprocessableEntity
	case errors.Is(err, profile.ErrBadNodeID):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("webui: failed to write JSON: %v", err)
	}
}
