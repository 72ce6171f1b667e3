package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"mediavault/internal/model"
	"mediavault/internal/service"
)

type FileHandler struct {
	ledger   *service.LedgerService
	accounts *service.AccountService
}

func NewFileHandler(ledger *service.LedgerService, accounts *service.AccountService) *FileHandler {
	return &FileHandler{ledger: ledger, accounts: accounts}
}

func (h *FileHandler) Upload(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	actor, ok := actorFromRequest(r)
	if !ok {
		writeError(w, model.ErrInvalidCredentials)
		return
	}

	var payload model.UploadRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, fmt.Errorf("invalid JSON body: %w", model.ErrInvalidInput))
		return
	}

	rec, err := h.ledger.Upload(r.Context(), actor, payload)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, rec)
}

func (h *FileHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r)
	if !ok {
		writeError(w, model.ErrInvalidCredentials)
		return
	}

	files, err := h.ledger.ListActive(r.Context(), actor)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, files)
}

func (h *FileHandler) Search(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r)
	if !ok {
		writeError(w, model.ErrInvalidCredentials)
		return
	}

	files, err := h.ledger.Search(r.Context(), actor, r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, files)
}

func (h *FileHandler) Recent(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r)
	if !ok {
		writeError(w, model.ErrInvalidCredentials)
		return
	}

	limit := parseIntOrDefault(r.URL.Query().Get("limit"), 0)
	files, err := h.ledger.Recent(r.Context(), actor, limit)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, files)
}

func (h *FileHandler) Download(w http.ResponseWriter, r *http.Request) {
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

	ref, err := h.ledger.RecordDownload(r.Context(), actor, key)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]any{"ref": ref})
}

func (h *FileHandler) Delete(w http.ResponseWriter, r *http.Request) {
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

func (h *FileHandler) Purge(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r)
	if !ok {
		writeError(w, model.ErrInvalidCredentials)
		return
	}

	count, err := h.ledger.PurgeAllForOwner(r.Context(), actor, actor.UserID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]any{"purged": count})
}

func (h *FileHandler) EraseAccount(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r)
	if !ok {
		writeError(w, model.ErrInvalidCredentials)
		return
	}

	if err := h.accounts.Erase(r.Context(), actor.UserID); err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]any{"erased": true})
}

func fileKeyFromQuery(r *http.Request) (model.FileKey, error) {
	ref := strings.TrimSpace(r.URL.Query().Get("ref"))
	version := parseIntOrDefault(r.URL.Query().Get("version"), 0)
	if ref == "" || version < 1 {
		return model.FileKey{}, fmt.Errorf("ref and version query parameters are required: %w", model.ErrInvalidInput)
	}
	return model.FileKey{Ref: ref, Version: version}, nil
}
