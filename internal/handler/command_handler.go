package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"mediavault/internal/model"
	"mediavault/internal/service"
)

// CommandHandler is the bridge for the chat transport: the collaborator
// decodes its callback payloads into engine commands and posts them here
// instead of driving the REST routes one by one.
type CommandHandler struct {
	dispatcher *service.Dispatcher
	accounts   *service.AccountService
}

func NewCommandHandler(dispatcher *service.Dispatcher, accounts *service.AccountService) *CommandHandler {
	return &CommandHandler{dispatcher: dispatcher, accounts: accounts}
}

func (h *CommandHandler) Execute(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	actor, ok := actorFromRequest(r)
	if !ok {
		writeError(w, model.ErrInvalidCredentials)
		return
	}

	var cmd model.Command
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		writeError(w, fmt.Errorf("invalid JSON body: %w", model.ErrInvalidInput))
		return
	}

	result, err := h.dispatcher.Do(r.Context(), actor, cmd)
	if err != nil {
		writeError(w, err)
		return
	}

	// command traffic counts as activity for the idle-logout window
	if cmd.Kind != model.CommandEraseAccount {
		_ = h.accounts.TouchActivity(r.Context(), actor.UserID)
	}

	writeSuccess(w, http.StatusOK, result)
}
