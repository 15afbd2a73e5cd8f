package bulletinhandler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ruteri/feldman-vss-backend/interfaces"
	"github.com/ruteri/feldman-vss-backend/session"
)

// Handler serves public session material: bulletins and their group
// parameters. Bulletins contain everything a player needs to verify a share
// and nothing that helps recover the secret below the threshold, so these
// endpoints are unauthenticated by design.
type Handler struct {
	manager *session.Manager
	log     *slog.Logger
}

// NewHandler creates a public bulletin handler over the session manager.
func NewHandler(manager *session.Manager, log *slog.Logger) *Handler {
	return &Handler{
		manager: manager,
		log:     log,
	}
}

// RegisterRoutes attaches the handler's endpoints to the router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/api/public/sessions/{session_id}", h.HandleGetBulletin)
	r.Get("/api/public/sessions/{session_id}/parameters", h.HandleGetParameters)
}

// HandleGetBulletin serves a session's public bulletin.
//
// URL format: GET /api/public/sessions/{session_id}
func (h *Handler) HandleGetBulletin(w http.ResponseWriter, r *http.Request) {
	sess, err := h.sessionFromRequest(r)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, interfaces.ErrSessionNotFound) {
			status = http.StatusNotFound
		}
		http.Error(w, err.Error(), status)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(sess.Bulletin()); err != nil {
		h.log.Error("Failed to encode response", "err", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
}

// HandleGetParameters serves a session's group parameters alone.
//
// URL format: GET /api/public/sessions/{session_id}/parameters
func (h *Handler) HandleGetParameters(w http.ResponseWriter, r *http.Request) {
	sess, err := h.sessionFromRequest(r)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, interfaces.ErrSessionNotFound) {
			status = http.StatusNotFound
		}
		http.Error(w, err.Error(), status)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(sess.Parameters()); err != nil {
		h.log.Error("Failed to encode response", "err", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
}

func (h *Handler) sessionFromRequest(r *http.Request) (*session.SharingSession, error) {
	id, err := interfaces.ParseSessionID(chi.URLParam(r, "session_id"))
	if err != nil {
		return nil, fmt.Errorf("invalid session id: %w", err)
	}

	return h.manager.Get(id)
}
