package vsshandler

import (
	"crypto/ecdsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/go-chi/chi/v5"

	"github.com/ruteri/feldman-vss-backend/api"
	"github.com/ruteri/feldman-vss-backend/common"
	"github.com/ruteri/feldman-vss-backend/cryptoutils"
	"github.com/ruteri/feldman-vss-backend/interfaces"
	"github.com/ruteri/feldman-vss-backend/session"
	"github.com/ruteri/feldman-vss-backend/vss"
)

// Handler processes authenticated requests for the secret sharing service:
// session creation by the dealer, share retrieval and submission by players,
// dealer-only secret readout and retirement, and the player share inbox for
// pushed delivery.
//
// Every admin request is authenticated against the roster: the X-Player-ID
// header names the caller and X-Player-Signature carries an ECDSA signature
// over the request. Authorization beyond identity (dealer-only operations,
// share ownership) is enforced by the session layer.
type Handler struct {
	manager *session.Manager
	store   interfaces.StorageBackend
	log     *slog.Logger

	// inboxKey decrypts shares pushed to this process's inbox. Nil on
	// dealer-only deployments; the inbox route then rejects pushes.
	inboxKey    *ecdsa.PrivateKey
	inboxKeyPEM []byte
}

// NewHandler creates a request handler backed by the given session manager
// and bulletin storage.
func NewHandler(manager *session.Manager, store interfaces.StorageBackend, log *slog.Logger) *Handler {
	return &Handler{
		manager: manager,
		store:   store,
		log:     log,
	}
}

// WithInboxKey equips the handler to receive pushed shares: the private key
// opens ECIES ciphertexts sealed to this player's roster key.
func (h *Handler) WithInboxKey(privateKeyPEM []byte) (*Handler, error) {
	key, err := cryptoutils.ParsePrivateKey(privateKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("invalid inbox key: %w", err)
	}
	h.inboxKey = key
	h.inboxKeyPEM = privateKeyPEM
	return h, nil
}

// RegisterRoutes attaches the handler's endpoints to the router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/api/admin/sessions", h.HandleCreateSession)
	r.Get("/api/admin/sessions/{session_id}/share", h.HandleGetShare)
	r.Get("/api/admin/sessions/{session_id}/issued", h.HandleIssuedShares)
	r.Post("/api/admin/sessions/{session_id}/shares", h.HandleSubmitShare)
	r.Get("/api/admin/sessions/{session_id}/secret", h.HandleGetSecret)
	r.Post("/api/admin/sessions/{session_id}/retire", h.HandleRetire)
	r.Get("/api/admin/status", h.HandleStatus)
	r.Post("/api/inbox/share", h.HandleInboxShare)
}

// authenticate verifies the request signature against the caller's roster key
// and returns the caller's identity. The body is consumed and returned so
// handlers can parse it after verification.
func (h *Handler) authenticate(r *http.Request) (interfaces.PlayerID, []byte, error) {
	playerID, err := interfaces.NewPlayerID(r.Header.Get(api.PlayerIDHeader))
	if err != nil {
		return "", nil, fmt.Errorf("invalid %s header: %w", api.PlayerIDHeader, err)
	}

	signature, err := base64.StdEncoding.DecodeString(r.Header.Get(api.PlayerSignatureHeader))
	if err != nil {
		return "", nil, fmt.Errorf("invalid %s header: %w", api.PlayerSignatureHeader, err)
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return "", nil, fmt.Errorf("failed to read request body: %w", err)
	}

	ok, err := h.manager.Roster().VerifyRequest(playerID, r.Method, r.URL.Path, body, signature)
	if err != nil {
		return "", nil, err
	}
	if !ok {
		return "", nil, fmt.Errorf("signature verification failed for %s", playerID)
	}

	return playerID, body, nil
}

// HandleCreateSession processes dealer session creation requests.
//
// URL format: POST /api/admin/sessions
//
// The authenticated caller becomes the session's dealer. Group parameters are
// taken from the request if present (guarded by the expected fingerprint) or
// generated. Shares are dealt and sealed to the roster players immediately;
// the resulting bulletin is persisted to storage and returned.
func (h *Handler) HandleCreateSession(w http.ResponseWriter, r *http.Request) {
	dealer, body, err := h.authenticate(r)
	if err != nil {
		http.Error(w, fmt.Errorf("unauthorized: %w", err).Error(), http.StatusUnauthorized)
		return
	}

	var req api.CreateSessionRequest
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, fmt.Errorf("invalid request body: %w", err).Error(), http.StatusBadRequest)
		return
	}

	createReq := session.CreateRequest{
		Dealer:              dealer,
		TotalShares:         req.TotalShares,
		Threshold:           req.Threshold,
		Parameters:          req.Parameters,
		ExpectedFingerprint: req.ExpectedFingerprint,
		Bits:                req.Bits,
		Certainty:           req.Certainty,
	}
	if req.Secret != nil {
		createReq.Secret = req.Secret.ToInt()
	}

	sess, err := h.manager.Create(r.Context(), createReq)
	if err != nil {
		if errors.Is(err, vss.ErrInvalidInput) || errors.Is(err, vss.ErrInvalidParameters) || errors.Is(err, interfaces.ErrParameterMismatch) {
			http.Error(w, fmt.Errorf("could not create session: %w", err).Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, fmt.Errorf("could not create session: %w", err).Error(), http.StatusInternalServerError)
		return
	}

	bulletin := sess.Bulletin()
	response := api.CreateSessionResponse{
		SessionID: sess.ID(),
		Bulletin:  bulletin,
	}

	// Bulletin persistence is best effort: the session is live regardless,
	// and the bulletin stays served from memory.
	if bulletinJSON, err := json.Marshal(bulletin); err == nil {
		if id, err := h.store.Store(r.Context(), bulletinJSON, interfaces.BulletinType); err == nil {
			response.BulletinContentID = id.String()
		} else {
			h.log.Warn("Failed to persist bulletin", "err", err, slog.String("session", sess.ID().String()))
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.log.Error("Failed to encode response", "err", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
}

// HandleGetShare returns the caller's sealed share for a session.
//
// URL format: GET /api/admin/sessions/{session_id}/share
//
// The share is an ECIES ciphertext sealed to the caller's roster key, so a
// player can only ever obtain material it can actually open.
func (h *Handler) HandleGetShare(w http.ResponseWriter, r *http.Request) {
	player, _, err := h.authenticate(r)
	if err != nil {
		http.Error(w, fmt.Errorf("unauthorized: %w", err).Error(), http.StatusUnauthorized)
		return
	}

	sess, err := h.sessionFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	issued, err := sess.ShareFor(player)
	if err != nil {
		status := http.StatusForbidden
		if errors.Is(err, interfaces.ErrInvalidSessionState) {
			status = http.StatusConflict
		}
		http.Error(w, fmt.Errorf("could not fetch share: %w", err).Error(), status)
		return
	}

	response := api.GetShareResponse{
		SessionID:      sess.ID(),
		ShareIndex:     issued.Index,
		EncryptedShare: base64.StdEncoding.EncodeToString(issued.Encrypted),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.log.Error("Failed to encode response", "err", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
}

// HandleIssuedShares lists every sealed share of a session.
//
// URL format: GET /api/admin/sessions/{session_id}/issued
//
// Dealer-only; used to fan shares out to player inboxes. Ciphertexts are
// returned as issued, still sealed to their players.
func (h *Handler) HandleIssuedShares(w http.ResponseWriter, r *http.Request) {
	player, _, err := h.authenticate(r)
	if err != nil {
		http.Error(w, fmt.Errorf("unauthorized: %w", err).Error(), http.StatusUnauthorized)
		return
	}

	sess, err := h.sessionFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	issued, err := sess.IssuedShares(player)
	if err != nil {
		status := http.StatusForbidden
		if errors.Is(err, interfaces.ErrInvalidSessionState) {
			status = http.StatusConflict
		}
		http.Error(w, fmt.Errorf("could not list shares: %w", err).Error(), status)
		return
	}

	response := api.IssuedSharesResponse{SessionID: sess.ID()}
	for _, share := range issued {
		response.Shares = append(response.Shares, api.IssuedShareInfo{
			PlayerID:       share.PlayerID,
			ShareIndex:     share.Index,
			EncryptedShare: base64.StdEncoding.EncodeToString(share.Encrypted),
			Retrieved:      share.Retrieved,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.log.Error("Failed to encode response", "err", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
}

// HandleSubmitShare processes share submissions for reconstruction.
//
// URL format: POST /api/admin/sessions/{session_id}/shares
//
// The share is verified against the session commitments. A share that fails
// verification is answered with 200 and accepted=false; at threshold the
// session reconstructs and the response reflects the Reconstructed state.
func (h *Handler) HandleSubmitShare(w http.ResponseWriter, r *http.Request) {
	player, body, err := h.authenticate(r)
	if err != nil {
		http.Error(w, fmt.Errorf("unauthorized: %w", err).Error(), http.StatusUnauthorized)
		return
	}

	var req api.SubmitShareRequest
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, fmt.Errorf("invalid request body: %w", err).Error(), http.StatusBadRequest)
		return
	}

	sess, err := h.sessionFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	if len(req.ParametersFingerprint) > 0 {
		if err := sess.CheckFingerprint(req.ParametersFingerprint); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	accepted, err := sess.Submit(req.Share)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, interfaces.ErrInvalidSessionState) {
			status = http.StatusConflict
		}
		http.Error(w, fmt.Errorf("could not submit share: %w", err).Error(), status)
		return
	}

	h.log.Info("Share submission processed",
		slog.String("session", sess.ID().String()),
		slog.String("player", player.String()),
		slog.Bool("accepted", accepted))

	response := api.SubmitShareResponse{
		Accepted:  accepted,
		Collected: sess.Collected(),
		Threshold: sess.Threshold(),
		State:     sess.State().String(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.log.Error("Failed to encode response", "err", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
}

// HandleGetSecret returns the reconstructed secret to the session's dealer.
//
// URL format: GET /api/admin/sessions/{session_id}/secret
func (h *Handler) HandleGetSecret(w http.ResponseWriter, r *http.Request) {
	player, _, err := h.authenticate(r)
	if err != nil {
		http.Error(w, fmt.Errorf("unauthorized: %w", err).Error(), http.StatusUnauthorized)
		return
	}

	sess, err := h.sessionFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	secret, err := sess.Secret(player)
	if err != nil {
		status := http.StatusForbidden
		if errors.Is(err, interfaces.ErrInvalidSessionState) {
			status = http.StatusConflict
		}
		http.Error(w, fmt.Errorf("could not read secret: %w", err).Error(), status)
		return
	}

	response := api.SecretResponse{
		SessionID: sess.ID(),
		Secret:    (*hexutil.Big)(secret),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.log.Error("Failed to encode response", "err", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
}

// HandleRetire wipes a session's share material and secret.
//
// URL format: POST /api/admin/sessions/{session_id}/retire
//
// Dealer-only. Retirement is terminal: the session answers no further share
// or secret requests.
func (h *Handler) HandleRetire(w http.ResponseWriter, r *http.Request) {
	player, _, err := h.authenticate(r)
	if err != nil {
		http.Error(w, fmt.Errorf("unauthorized: %w", err).Error(), http.StatusUnauthorized)
		return
	}

	sess, err := h.sessionFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	if err := sess.Retire(player); err != nil {
		status := http.StatusForbidden
		if errors.Is(err, interfaces.ErrInvalidSessionState) {
			status = http.StatusConflict
		}
		http.Error(w, fmt.Errorf("could not retire session: %w", err).Error(), status)
		return
	}

	response := api.RetireResponse{
		SessionID: sess.ID(),
		State:     sess.State().String(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.log.Error("Failed to encode response", "err", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
}

// HandleStatus summarizes the service and every session's lifecycle state.
//
// URL format: GET /api/admin/status
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if _, _, err := h.authenticate(r); err != nil {
		http.Error(w, fmt.Errorf("unauthorized: %w", err).Error(), http.StatusUnauthorized)
		return
	}

	sessions := h.manager.Sessions()
	statuses := make([]api.SessionStatus, 0, len(sessions))
	for _, sess := range sessions {
		bulletin := sess.Bulletin()
		statuses = append(statuses, api.SessionStatus{
			SessionID:   sess.ID(),
			State:       bulletin.State,
			TotalShares: bulletin.TotalShares,
			Threshold:   bulletin.Threshold,
			Collected:   sess.Collected(),
		})
	}

	response := api.StatusResponse{
		Service:  common.PackageName,
		Version:  common.Version,
		Sessions: statuses,
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.log.Error("Failed to encode response", "err", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
}

// HandleInboxShare receives a share pushed by the dealer's fan-out.
//
// URL format: POST /api/inbox/share
//
// The handler opens the ciphertext with its inbox key, verifies the share
// against the bulletin commitments, persists the still-sealed record to local
// storage, and acks. A share failing verification is answered with 200 and
// accepted=false.
func (h *Handler) HandleInboxShare(w http.ResponseWriter, r *http.Request) {
	if h.inboxKey == nil {
		http.Error(w, "share inbox not configured", http.StatusNotImplemented)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}

	var req api.InboxShareRequest
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, fmt.Errorf("invalid request body: %w", err).Error(), http.StatusBadRequest)
		return
	}

	ciphertext, err := base64.StdEncoding.DecodeString(req.EncryptedShare)
	if err != nil {
		http.Error(w, fmt.Errorf("invalid encrypted share: %w", err).Error(), http.StatusBadRequest)
		return
	}

	shareJSON, err := cryptoutils.DecryptWithPrivateKey(h.inboxKeyPEM, ciphertext)
	if err != nil {
		http.Error(w, fmt.Errorf("could not open share: %w", err).Error(), http.StatusBadRequest)
		return
	}

	var share vss.Share
	if err := json.Unmarshal(shareJSON, &share); err != nil {
		http.Error(w, fmt.Errorf("invalid share payload: %w", err).Error(), http.StatusBadRequest)
		return
	}

	response := api.InboxShareResponse{ShareIndex: share.Index}

	if !vss.VerifyShare(share, req.Bulletin.Commitments, req.Bulletin.Parameters) {
		h.log.Warn("Pushed share failed verification",
			slog.String("session", req.SessionID.String()),
			slog.Int("index", share.Index))
	} else {
		response.Accepted = true

		// Persist the sealed record, never the plaintext share.
		record, err := json.Marshal(api.InboxShareRequest{
			SessionID:      req.SessionID,
			Bulletin:       req.Bulletin,
			EncryptedShare: req.EncryptedShare,
		})
		if err == nil {
			if id, err := h.store.Store(r.Context(), record, interfaces.ShareType); err == nil {
				response.ShareContentID = id.String()
			} else {
				h.log.Warn("Failed to persist pushed share", "err", err)
			}
		}

		h.log.Info("Pushed share accepted",
			slog.String("session", req.SessionID.String()),
			slog.Int("index", share.Index))
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
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

	sess, err := h.manager.Get(id)
	if err != nil {
		return nil, err
	}
	return sess, nil
}
