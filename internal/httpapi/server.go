// Package httpapi serves the REST and WebSocket API over the shared store:
// live-state reads, trade command submission, and a push feed of snapshot
// updates. The API never talks to the venue; the engine owns that side.
package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"fxpilot/internal/domain"
	"fxpilot/internal/store"
)

// Server serves the trading API.
type Server struct {
	snaps store.SnapshotStore
	cmds  store.CommandStore
	ping  store.Pinger
	hub   *Hub
	log   *slog.Logger

	now func() time.Time
}

// NewServer creates a Server over the given store. The hub may be nil when
// the WebSocket feed is not wanted.
func NewServer(snaps store.SnapshotStore, cmds store.CommandStore, ping store.Pinger, hub *Hub, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		snaps: snaps,
		cmds:  cmds,
		ping:  ping,
		hub:   hub,
		log:   log.With("component", "httpapi"),
		now:   time.Now,
	}
}

// RegisterRoutes registers all API routes on the given mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/live-state", s.handleLiveState)
	mux.HandleFunc("POST /api/trade", s.handleTrade)
	mux.HandleFunc("GET /api/trade-commands", s.handleCommands)
	mux.HandleFunc("GET /api/trade-commands/{id}", s.handleCommand)
	mux.HandleFunc("GET /api/health", s.handleHealth)
	if s.hub != nil {
		mux.HandleFunc("GET /ws/live", s.hub.HandleWebSocket)
	}
}

// Handler returns an http.Handler with CORS middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return corsMiddleware(mux)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding JSON response", "error", err)
	}
}

func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// handleLiveState returns the current snapshot document as published by the
// engine.
func (s *Server) handleLiveState(w http.ResponseWriter, r *http.Request) {
	snap, err := s.snaps.GetSnapshot(r.Context())
	if err != nil {
		if err == store.ErrNotFound {
			writeError(w, http.StatusNotFound, "no state published yet")
			return
		}
		s.log.Error("reading snapshot", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to read state")
		return
	}
	writeJSON(w, snap)
}

// handleTrade validates and enqueues a trade command. The command executes
// asynchronously on the engine's next drain; the 202 response only promises
// the command was queued.
func (s *Server) handleTrade(w http.ResponseWriter, r *http.Request) {
	var req TradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	cmd := &domain.TradeCommand{
		ID:             uuid.NewString(),
		Symbol:         req.Symbol,
		Action:         domain.TradeAction(req.Action),
		OrderType:      domain.OrderType(req.OrderType),
		Volume:         req.Volume,
		Price:          req.Price,
		TakeProfitPips: req.TakeProfit,
		StopLossPips:   req.StopLoss,
		TrailingStop:   req.TrailingStop,
		Status:         domain.StatusPending,
		SubmittedAt:    s.now().UTC(),
	}
	if err := cmd.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.cmds.InsertCommand(r.Context(), cmd); err != nil {
		s.log.Error("inserting command", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to queue command")
		return
	}

	s.log.Info("command queued",
		"command", cmd.ID,
		"symbol", cmd.Symbol,
		"action", cmd.Action,
		"orderType", cmd.OrderType,
		"volume", cmd.Volume,
	)
	writeJSONStatus(w, http.StatusAccepted, TradeResponse{ID: cmd.ID, Status: string(cmd.Status)})
}

// handleCommands returns recent commands, newest first. The limit query
// param defaults to 10.
func (s *Server) handleCommands(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	cmds, err := s.cmds.ListCommands(r.Context(), limit)
	if err != nil {
		s.log.Error("listing commands", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to list commands")
		return
	}
	if cmds == nil {
		cmds = []domain.TradeCommand{}
	}
	writeJSON(w, CommandsResponse{Commands: cmds})
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	cmd, err := s.cmds.GetCommand(r.Context(), id)
	if err != nil {
		if err == store.ErrNotFound {
			writeError(w, http.StatusNotFound, "command not found")
			return
		}
		s.log.Error("reading command", "command", id, "err", err)
		writeError(w, http.StatusInternalServerError, "failed to read command")
		return
	}
	writeJSON(w, cmd)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok", Store: "ok"}
	status := http.StatusOK
	if s.ping != nil {
		if err := s.ping.Ping(r.Context()); err != nil {
			resp.Status = "degraded"
			resp.Store = err.Error()
			status = http.StatusServiceUnavailable
		}
	}
	writeJSONStatus(w, status, resp)
}
