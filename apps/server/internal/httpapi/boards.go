package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"darts-lite/apps/server/internal/lobby"
	"darts-lite/darts"
)

// Handler exposes the live sessions: start a game, send commands, read state.
type Handler struct {
	lobby  *lobby.Lobby
	logger *zap.Logger
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type updateResponse struct {
	BoardID  string         `json:"board_id"`
	Snapshot darts.Snapshot `json:"snapshot"`
	Throw    *darts.Throw   `json:"throw,omitempty"`
	Advice   []string       `json:"throwout_advice,omitempty"`
}

func NewHandler(lby *lobby.Lobby, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{lobby: lby, logger: logger}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/boards", h.ListBoards)
	r.Get("/boards/{boardID}", h.GetBoard)
	r.Post("/boards/{boardID}/start", h.StartGame)
	r.Post("/boards/{boardID}/commands", h.PostCommand)
}

// GET /api/boards
func (h *Handler) ListBoards(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"items": h.lobby.List()})
}

// GET /api/boards/{boardID}
func (h *Handler) GetBoard(w http.ResponseWriter, r *http.Request) {
	boardID := chi.URLParam(r, "boardID")
	t := h.lobby.Get(boardID)
	if t == nil {
		writeError(w, lobby.ErrNoSession)
		return
	}
	writeJSON(w, http.StatusOK, updateResponse{BoardID: boardID, Snapshot: t.Snapshot()})
}

// POST /api/boards/{boardID}/start
func (h *Handler) StartGame(w http.ResponseWriter, r *http.Request) {
	boardID := strings.TrimSpace(chi.URLParam(r, "boardID"))
	var req lobby.StartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body", Code: "bad_request"})
		return
	}
	_, up, err := h.lobby.StartGame(r.Context(), boardID, req)
	if err != nil {
		h.logger.Debug("start game rejected", zap.String("board_id", boardID), zap.Error(err))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, updateResponse{BoardID: boardID, Snapshot: up.Snapshot})
}

// POST /api/boards/{boardID}/commands
func (h *Handler) PostCommand(w http.ResponseWriter, r *http.Request) {
	boardID := strings.TrimSpace(chi.URLParam(r, "boardID"))
	var cmd lobby.Command
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body", Code: "bad_request"})
		return
	}
	up, err := h.lobby.Execute(r.Context(), boardID, cmd)
	if err != nil {
		h.logger.Debug("command rejected",
			zap.String("board_id", boardID), zap.String("type", cmd.Type), zap.Error(err))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updateResponse{
		BoardID:  boardID,
		Snapshot: up.Snapshot,
		Throw:    up.Throw,
		Advice:   up.Snapshot.ThrowoutAdvice,
	})
}

// statusFor maps an error code to an HTTP status.
func statusFor(code string) int {
	switch code {
	case "invalid_config", "invalid_throw", "empty_roster", "unknown_command":
		return http.StatusBadRequest
	case "player_not_found", "no_session":
		return http.StatusNotFound
	case "game_not_active", "game_paused", "session_exists":
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error) {
	code := lobby.Code(err)
	msg := err.Error()
	if code == "internal" {
		msg = "internal error"
	}
	writeJSON(w, statusFor(code), errorResponse{Error: msg, Code: code})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
