package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediavault/internal/model"
)

type stubValidator struct {
	claims *model.AuthClaims
}

func (v *stubValidator) ValidateToken(token string) (*model.AuthClaims, error) {
	if token == "good" && v.claims != nil {
		return v.claims, nil
	}
	return nil, errors.New("invalid token")
}

func TestAuthMiddleware_RequireAuth(t *testing.T) {
	mw := NewAuthMiddleware(&stubValidator{claims: &model.AuthClaims{UserID: 7, Username: "user0007"}})

	var seen *model.AuthClaims
	handler := mw.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = ClaimsFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("missing header", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/files", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("malformed header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/files", nil)
		req.Header.Set("Authorization", "Basic abc")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("bad token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/files", nil)
		req.Header.Set("Authorization", "Bearer bad")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("valid token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/files", nil)
		req.Header.Set("Authorization", "Bearer good")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		require.NotNil(t, seen)
		assert.Equal(t, int64(7), seen.UserID)
	})
}

func TestAuthMiddleware_RequireAdmin(t *testing.T) {
	mw := NewAuthMiddleware(&stubValidator{claims: &model.AuthClaims{UserID: 7, Admin: false}})
	chain := mw.RequireAuth(mw.RequireAdmin(okHandler()))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/files", nil)
	req.Header.Set("Authorization", "Bearer good")
	rec := httptest.NewRecorder()
	chain.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	mw = NewAuthMiddleware(&stubValidator{claims: &model.AuthClaims{UserID: 8, Admin: true}})
	chain = mw.RequireAuth(mw.RequireAdmin(okHandler()))

	req = httptest.NewRequest(http.MethodGet, "/api/v1/admin/files", nil)
	req.Header.Set("Authorization", "Bearer good")
	rec = httptest.NewRecorder()
	chain.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
