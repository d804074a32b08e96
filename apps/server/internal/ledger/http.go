package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"darts-lite/apps/server/internal/codec"
	"darts-lite/replay"
)

// HTTPHandler serves the read side of the ledger: history, replay documents,
// rebuilt tapes, event tapes and player statistics.
type HTTPHandler struct {
	ledger Service
	logger *zap.Logger
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

type eventView struct {
	EventItem
	Envelope json.RawMessage `json:"envelope,omitempty"`
}

func NewHTTPHandler(ledgerService Service, logger *zap.Logger) *HTTPHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPHandler{ledger: ledgerService, logger: logger.Named("ledger_http")}
}

func (h *HTTPHandler) Routes(r chi.Router) {
	r.Get("/history", h.handleHistory)
	r.Get("/games/{gameID}/replay", h.handleReplay)
	r.Get("/games/{gameID}/tape", h.handleTape)
	r.Get("/games/{gameID}/events", h.handleEvents)
	r.Get("/players/{name}/stats", h.handlePlayerStats)
}

// GET /api/history?limit=N
func (h *HTTPHandler) handleHistory(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	items, err := h.ledger.ListHistory(ctx, parseLimit(r.URL.Query().Get("limit")))
	if err != nil {
		h.logger.Error("list history failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "query history failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// GET /api/games/{gameID}/replay
func (h *HTTPHandler) handleReplay(w http.ResponseWriter, r *http.Request) {
	doc, ok := h.loadReplay(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// GET /api/games/{gameID}/tape rebuilds the stored game through the engine.
func (h *HTTPHandler) handleTape(w http.ResponseWriter, r *http.Request) {
	doc, ok := h.loadReplay(w, r)
	if !ok {
		return
	}
	tape, err := replay.Rebuild(doc)
	if err != nil {
		var replayErr *replay.ReplayError
		if errors.As(err, &replayErr) {
			writeJSON(w, http.StatusConflict, map[string]any{
				"game_id": doc.GameID,
				"error":   replayErr,
			})
			return
		}
		writeError(w, http.StatusInternalServerError, "rebuild failed")
		return
	}
	writeJSON(w, http.StatusOK, tape)
}

func (h *HTTPHandler) loadReplay(w http.ResponseWriter, r *http.Request) (replay.Document, bool) {
	gameID := strings.TrimSpace(chi.URLParam(r, "gameID"))
	if gameID == "" {
		writeError(w, http.StatusBadRequest, "missing game id")
		return replay.Document{}, false
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	doc, err := h.ledger.GetReplay(ctx, gameID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "game not found")
			return replay.Document{}, false
		}
		h.logger.Error("load replay failed", zap.String("game_id", gameID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "query game failed")
		return replay.Document{}, false
	}
	return doc, true
}

// GET /api/games/{gameID}/events
func (h *HTTPHandler) handleEvents(w http.ResponseWriter, r *http.Request) {
	gameID := strings.TrimSpace(chi.URLParam(r, "gameID"))
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	items, err := h.ledger.GetEvents(ctx, gameID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "game not found")
			return
		}
		h.logger.Error("load events failed", zap.String("game_id", gameID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "query game events failed")
		return
	}
	views := make([]eventView, 0, len(items))
	for _, item := range items {
		v := eventView{EventItem: item}
		if raw, err := decodeEnvelope(item.EnvelopeB64); err == nil {
			v.Envelope = raw
		}
		views = append(views, v)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"game_id": gameID,
		"events":  views,
	})
}

// GET /api/players/{name}/stats
func (h *HTTPHandler) handlePlayerStats(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(chi.URLParam(r, "name"))
	if name == "" {
		writeError(w, http.StatusBadRequest, "missing player name")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	stats, err := h.ledger.PlayerStats(ctx, name)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "player not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "query player statistics failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"statistics": stats})
}

func decodeEnvelope(b64 string) (json.RawMessage, error) {
	raw, err := codec.DecodeB64(b64)
	if err != nil {
		return nil, err
	}
	return codec.EnvelopeJSON(raw)
}

func parseLimit(raw string) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 20
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 20
	}
	if n > 100 {
		return 100
	}
	return n
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
