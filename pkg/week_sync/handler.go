package week_sync

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/baptistelechat/overti-me/internal/rest"
	"github.com/baptistelechat/overti-me/pkg/user"
	log "github.com/sirupsen/logrus"
)

type TokenIssuer interface {
	Issue(u user.User) (string, time.Time, error)
}

type StatusDTO struct {
	User          *SessionUser `json:"user"`
	SyncStatus    Status       `json:"syncStatus"`
	SyncError     string       `json:"syncError,omitempty"`
	LastSyncedAt  *time.Time   `json:"lastSyncedAt"`
	IsSyncing     bool         `json:"isSyncing"`
	AutoSync      bool         `json:"autoSync"`
	MergePolicy   MergePolicy  `json:"mergePolicy"`
	PendingPushes int          `json:"pendingPushes"`
}

type SessionDTO struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	Status    StatusDTO `json:"status"`
}

type Handler struct {
	engine *Engine
	users  user.Service
	tokens TokenIssuer
}

func NewHandler(engine *Engine, users user.Service, tokens TokenIssuer) *Handler {
	return &Handler{engine: engine, users: users, tokens: tokens}
}

// Login godoc
// @Summary Start a sync session
// @Description Authenticates the account, returns a bearer token and runs a first synchronization
// @Tags Session
// @Accept json
// @Produce json
// @Param credentials body user.CredentialsDTO true "Credentials"
// @Success 200 {object} SessionDTO
// @Failure 400 {object} rest.ErrorResponse "Invalid request"
// @Failure 401 {object} rest.ErrorResponse "Invalid credentials"
// @Router /api/session [post]
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var credentials user.CredentialsDTO
	if err := json.NewDecoder(r.Body).Decode(&credentials); err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid request body format", "")
		return
	}

	account, err := h.users.Authenticate(r.Context(), credentials.Email, credentials.Password)
	if err != nil {
		if errors.Is(err, user.ErrInvalidCredentials) {
			rest.WriteError(w, http.StatusUnauthorized, "Invalid credentials", "")
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	token, expiresAt, err := h.tokens.Issue(account)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	// The first sync outlives the request: its outcome is reported through the status.
	if err := h.engine.StartSession(context.WithoutCancel(r.Context()), account); err != nil {
		log.Warnf("first sync of session %s failed: %v", account.Uid, err)
	}

	rest.WriteJSON(w, http.StatusOK, SessionDTO{
		Token:     token,
		ExpiresAt: expiresAt,
		Status:    toStatusDTO(h.engine.Status()),
	})
}

// Logout godoc
// @Summary End the sync session
// @Tags Session
// @Success 204
// @Router /api/session [delete]
// @Security Bearer
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.engine.EndSession(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

// Sync godoc
// @Summary Synchronize now
// @Tags Sync
// @Produce json
// @Success 200 {object} StatusDTO
// @Failure 403 {object} rest.ErrorResponse "Token does not belong to the session"
// @Failure 409 {object} rest.ErrorResponse "No session or sync in progress"
// @Failure 502 {object} StatusDTO "Remote store failure"
// @Router /api/sync [post]
// @Security Bearer
func (h *Handler) Sync(w http.ResponseWriter, r *http.Request) {
	if !h.ownsSession(r.Context()) {
		rest.WriteError(w, http.StatusForbidden, "Token does not belong to the active session", "")
		return
	}

	err := h.engine.Sync(context.WithoutCancel(r.Context()))
	switch {
	case err == nil:
		rest.WriteJSON(w, http.StatusOK, toStatusDTO(h.engine.Status()))
	case errors.Is(err, ErrNoSession):
		rest.WriteError(w, http.StatusConflict, "No active session", "")
	case errors.Is(err, ErrSyncInProgress):
		rest.WriteError(w, http.StatusConflict, "Sync already in progress", "")
	case errors.Is(err, ErrSessionChanged):
		rest.WriteError(w, http.StatusConflict, "Session ended during sync", "")
	default:
		rest.WriteJSON(w, http.StatusBadGateway, toStatusDTO(h.engine.Status()))
	}
}

// GetStatus godoc
// @Summary Get the sync status
// @Tags Sync
// @Produce json
// @Success 200 {object} StatusDTO
// @Router /api/sync/status [get]
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	rest.WriteJSON(w, http.StatusOK, toStatusDTO(h.engine.Status()))
}

func (h *Handler) ownsSession(ctx context.Context) bool {
	current, err := user.CurrentUser(ctx)
	if err != nil {
		return false
	}
	status := h.engine.Status()
	return status.User == nil || status.User.Uid == current.Uid
}

func toStatusDTO(status StatusSnapshot) StatusDTO {
	return StatusDTO{
		User:          status.User,
		SyncStatus:    status.SyncStatus,
		SyncError:     status.SyncError,
		LastSyncedAt:  status.LastSyncedAt,
		IsSyncing:     status.IsSyncing,
		AutoSync:      status.AutoSyncOn,
		MergePolicy:   status.MergePolicy,
		PendingPushes: status.PendingPushes,
	}
}
