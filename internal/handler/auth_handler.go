package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"mediavault/internal/middleware"
	"mediavault/internal/model"
	"mediavault/internal/service"
)

type AuthHandler struct {
	auth     *service.AuthService
	accounts *service.AccountService
}

func NewAuthHandler(auth *service.AuthService, accounts *service.AccountService) *AuthHandler {
	return &AuthHandler{auth: auth, accounts: accounts}
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var payload model.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, fmt.Errorf("invalid JSON body: %w", model.ErrInvalidInput))
		return
	}

	token, user, err := h.auth.Login(r.Context(), payload.Username, payload.Secret)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]any{
		"token": token,
		"user":  user,
	})
}

// Register creates an account for a new external chat identity. The route
// is admin-gated; the chat transport calls it with its service account and
// relays the one-time plaintext secret to the end user.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var payload struct {
		ExternalID int64 `json:"external_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.ExternalID == 0 {
		writeError(w, fmt.Errorf("external_id is required: %w", model.ErrInvalidInput))
		return
	}

	user, secret, err := h.accounts.Register(r.Context(), payload.ExternalID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, map[string]any{
		"user":   user,
		"secret": secret,
	})
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, model.ErrInvalidCredentials)
		return
	}

	user, err := h.accounts.Get(r.Context(), claims.UserID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, user)
}
