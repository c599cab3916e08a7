package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/moznion/go-optional"
	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-indicator/internal/engine"
	"github.com/rxtech-lab/argo-indicator/internal/logger"
	"github.com/rxtech-lab/argo-indicator/internal/types"
	"github.com/rxtech-lab/argo-indicator/pkg/errors"
)

// Server exposes session management and the notification stream over HTTP.
type Server struct {
	engine   *engine.Engine
	logger   *logger.Logger
	router   *mux.Router
	upgrader websocket.Upgrader
	http     *http.Server
}

// NewServer creates a server around an initialized engine.
func NewServer(eng *engine.Engine, log *logger.Logger) *Server {
	s := &Server{
		engine: eng,
		logger: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}

	router := mux.NewRouter()
	router.HandleFunc("/sessions", s.handleCreateSession).Methods("POST")
	router.HandleFunc("/sessions", s.handleListSessions).Methods("GET")
	router.HandleFunc("/sessions/{id}", s.handleGetSession).Methods("GET")
	router.HandleFunc("/sessions/{id}", s.handleCancelSession).Methods("DELETE")
	router.HandleFunc("/notifications", s.handleNotifications).Methods("GET")
	router.HandleFunc("/healthz", s.handleHealth).Methods("GET")

	s.router = router

	return s
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe blocks serving on the given address until Shutdown.
func (s *Server) ListenAndServe(addr string) error {
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.logger.Info("api server listening", zap.String("addr", addr))

	return s.http.ListenAndServe()
}

// Shutdown stops the HTTP server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}

	return s.http.Shutdown(ctx)
}

type createSessionRequest struct {
	Symbol    string     `json:"symbol"`
	VariantID string     `json:"variant_id"`
	Mode      types.Mode `json:"mode"`
	Start     *float64   `json:"start,omitempty"`
	End       *float64   `json:"end,omitempty"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, errors.Wrap(errors.ErrCodeInvalidParameter, "invalid request body", err))

		return
	}

	if req.Symbol == "" || req.VariantID == "" {
		s.writeError(w, errors.New(errors.ErrCodeInvalidParameter, "symbol and variant_id are required"))

		return
	}

	timeRange := optional.None[types.TimeRange]()
	if req.Start != nil && req.End != nil {
		timeRange = optional.Some(types.TimeRange{Start: *req.Start, End: *req.End})
	}

	sess, err := s.engine.CreateSession(r.Context(), req.Symbol, req.VariantID, req.Mode, timeRange)
	if err != nil {
		s.writeError(w, err)

		return
	}

	s.writeJSON(w, http.StatusCreated, sess.Status())
}

func (s *Server) handleListSessions(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.engine.ListSessions())
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.engine.GetSession(mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, err)

		return
	}

	s.writeJSON(w, http.StatusOK, sess.Status())
}

func (s *Server) handleCancelSession(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := s.engine.CancelSession(id); err != nil {
		s.writeError(w, err)

		return
	}

	sess, err := s.engine.GetSession(id)
	if err != nil {
		s.writeError(w, err)

		return
	}

	s.writeJSON(w, http.StatusOK, sess.Status())
}

// handleNotifications upgrades to a websocket and streams computed-point
// notifications until the client disconnects or the hub drops it.
func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))

		return
	}
	defer conn.Close()

	notifications, cancel := s.engine.Hub().Subscribe()
	defer cancel()

	// Reads are discarded; a read error is the disconnect signal.
	disconnected := make(chan struct{})

	go func() {
		defer close(disconnected)

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-disconnected:
			return
		case n, ok := <-notifications:
			if !ok {
				return
			}

			if err := conn.WriteJSON(n); err != nil {
				return
			}
		}
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Warn("failed to encode response", zap.Error(err))
	}
}

type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := errors.GetCode(err)

	status := http.StatusInternalServerError

	switch {
	case errors.IsConfiguration(err):
		status = http.StatusBadRequest
	case code == errors.ErrCodeSessionNotFound:
		status = http.StatusNotFound
	case code == errors.ErrCodeSessionNotCancelable || code == errors.ErrCodeSessionTerminal:
		status = http.StatusConflict
	case code == errors.ErrCodeDataSourceUnavailable:
		status = http.StatusServiceUnavailable
	}

	s.writeJSON(w, status, errorResponse{Code: int(code), Message: err.Error()})
}
