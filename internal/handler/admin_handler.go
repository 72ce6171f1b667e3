package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"mediavault/internal/model"
	"mediavault/internal/service"
)

type AdminHandler struct {
	ledger *service.LedgerService
}

func NewAdminHandler(ledger *service.LedgerService) *AdminHandler {
	return &AdminHandler{ledger: ledger}
}

func (h *AdminHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r)
	if !ok {
		writeError(w, model.ErrInvalidCredentials)
		return
	}

	files, err := h.ledger.ListAllActive(r.Context(), actor)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, files)
}

func (h *AdminHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r)
	if !ok {
		writeError(w, model.ErrInvalidCredentials)
		return
	}

	key, err := fileKeyFromQuery(r)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.ledger.SoftDelete(r.Context(), actor, key); err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]any{"deleted": key.String()})
}

func (h *AdminHandler) PurgeUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r)
	if !ok {
		writeError(w, model.ErrInvalidCredentials)
		return
	}

	ownerID, err := strconv.ParseInt(chi.URLParam(r, "user_id"), 10, 64)
	if err != nil {
		writeError(w, fmt.Errorf("invalid user id: %w", model.ErrInvalidInput))
		return
	}

	count, err := h.ledger.PurgeAllForOwner(r.Context(), actor, ownerID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]any{"purged": count})
}

func (h *AdminHandler) SetRetention(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	actor, ok := actorFromRequest(r)
	if !ok {
		writeError(w, model.ErrInvalidCredentials)
		return
	}

	var payload model.RetentionChange
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, fmt.Errorf("invalid JSON body: %w", model.ErrInvalidInput))
		return
	}

	if err := h.ledger.SetRetention(r.Context(), actor, payload); err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]any{"file": payload.File.String(), "minutes": payload.Minutes})
}
