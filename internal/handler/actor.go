package handler

import (
	"net/http"

	"mediavault/internal/middleware"
	"mediavault/internal/model"
)

// actorFromRequest derives the acting principal from the validated claims
// the auth middleware stored on the context.
func actorFromRequest(r *http.Request) (model.Actor, bool) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		return model.Actor{}, false
	}

	kind := model.ActorOwner
	if claims.Admin {
		kind = model.ActorAdmin
	}
	return model.Actor{Kind: kind, UserID: claims.UserID}, true
}
