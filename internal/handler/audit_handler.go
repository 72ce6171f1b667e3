package handler

import (
	"net/http"
	"strconv"
	"strings"

	"mediavault/internal/model"
	"mediavault/internal/service"
)

type AuditHandler struct {
	audit *service.AuditService
}

func NewAuditHandler(audit *service.AuditService) *AuditHandler {
	return &AuditHandler{audit: audit}
}

func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r)
	if !ok {
		writeError(w, model.ErrInvalidCredentials)
		return
	}

	query := r.URL.Query()
	q := model.AuditQuery{
		Action: model.AuditAction(strings.TrimSpace(query.Get("action"))),
		Limit:  parseIntOrDefault(query.Get("limit"), 100),
		Offset: parseIntOrDefault(query.Get("offset"), 0),
	}
	if raw := strings.TrimSpace(query.Get("user_id")); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, model.ErrInvalidInput)
			return
		}
		q.UserID = &id
	}

	entries, err := h.audit.Query(r.Context(), actor, q)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, entries)
}
