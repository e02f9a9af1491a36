// Package health serves the HTTP surface of a running warren client: a liveness check
// backed by the Remote Store and a read-only view of the board.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/dyluth/warren/internal/store"
)

// Pinger is the part of the Remote Store the health check needs.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Board is the read side of the local store.
type Board interface {
	VisibleRooms(weekday int) []store.VisibleRoom
	ViewWeekday() int
}

// Server provides the /healthz and /rooms endpoints.
type Server struct {
	backend string
	pinger  Pinger
	board   Board
	logger  *zap.Logger
	server  *http.Server
}

// NewServer creates a server. backend names the Remote Store in health responses.
func NewServer(backend string, pinger Pinger, board Board, logger *zap.Logger) *Server {
	return &Server{
		backend: backend,
		pinger:  pinger,
		board:   board,
		logger:  logger.Named("health"),
	}
}

// Handler returns the routes, for mounting or testing.
func (h *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", h.healthCheckHandler)
	mux.HandleFunc("/rooms", h.roomsHandler)
	return mux
}

// Start listens on addr in the background.
func (h *Server) Start(addr string) {
	h.server = &http.Server{
		Addr:         addr,
		Handler:      h.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	go func() {
		if err := h.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			h.logger.Error("health server stopped", zap.String("addr", addr), zap.Error(err))
		}
	}()
	h.logger.Info("health server listening", zap.String("addr", addr))
}

// Shutdown gracefully shuts down the server.
func (h *Server) Shutdown(ctx context.Context) error {
	if h.server == nil {
		return nil
	}
	return h.server.Shutdown(ctx)
}

// HealthResponse is the JSON response structure for health checks.
type HealthResponse struct {
	Status  string `json:"status"`
	Backend string `json:"backend"`
	Store   string `json:"store"`
	Error   string `json:"error,omitempty"`
}

// healthCheckHandler handles GET /healthz.
// Returns 200 OK if the Remote Store answers, 503 Service Unavailable otherwise.
func (h *Server) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	response := HealthResponse{Status: "healthy", Backend: h.backend, Store: "connected"}
	code := http.StatusOK

	if err := h.pinger.Ping(ctx); err != nil {
		response.Status = "unhealthy"
		response.Store = "disconnected"
		response.Error = err.Error()
		code = http.StatusServiceUnavailable
	}

	writeJSON(w, code, response)
}

// RoomsResponse is the JSON body of GET /rooms.
type RoomsResponse struct {
	Weekday int                 `json:"weekday"`
	Rooms   []store.VisibleRoom `json:"rooms"`
}

// roomsHandler handles GET /rooms[?weekday=N]. Without a weekday the one on view is used.
func (h *Server) roomsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	weekday := h.board.ViewWeekday()
	if q := r.URL.Query().Get("weekday"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n < 0 || n > 6 {
			http.Error(w, "weekday must be 0-6", http.StatusBadRequest)
			return
		}
		weekday = n
	}

	rooms := h.board.VisibleRooms(weekday)
	if rooms == nil {
		rooms = []store.VisibleRoom{}
	}
	writeJSON(w, http.StatusOK, RoomsResponse{Weekday: weekday, Rooms: rooms})
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
