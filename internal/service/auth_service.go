package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"mediavault/internal/model"
	"mediavault/internal/repository"
)

// AuthService issues and validates the bearer tokens of the ops API. The
// chat transport authenticates by external identity instead and never goes
// through here.
type AuthService struct {
	users  repository.UserStore
	secret []byte
	ttl    time.Duration
}

func NewAuthService(users repository.UserStore, secret string, ttl time.Duration) (*AuthService, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("auth: signing secret must not be empty")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &AuthService{users: users, secret: []byte(secret), ttl: ttl}, nil
}

type tokenClaims struct {
	Username string `json:"username"`
	Admin    bool   `json:"admin"`
	jwt.RegisteredClaims
}

// Login verifies the generated credentials and returns a signed token.
// Unknown usernames and wrong secrets are indistinguishable to the caller;
// wrong secrets additionally bump the account's failed-login counter.
func (s *AuthService) Login(ctx context.Context, username, secret string) (string, model.User, error) {
	var u model.User
	err := withStoreRetry(ctx, func() error {
		var ferr error
		u, ferr = s.users.FindByUsername(ctx, username)
		return ferr
	})
	if errors.Is(err, model.ErrUserNotFound) {
		return "", model.User{}, model.ErrInvalidCredentials
	}
	if err != nil {
		return "", model.User{}, err
	}

	if bcrypt.CompareHashAndPassword([]byte(u.SecretHash), []byte(secret)) != nil {
		// Counter updates are advisory; a store hiccup here must not mask
		// the credential failure.
		_ = s.users.IncrementFailedLogins(ctx, u.ID)
		return "", model.User{}, model.ErrInvalidCredentials
	}

	_ = s.users.ResetFailedLogins(ctx, u.ID)
	_ = s.users.TouchActivity(ctx, u.ID, time.Now().UTC())

	token, err := s.issue(u)
	if err != nil {
		return "", model.User{}, err
	}
	return token, u, nil
}

// ValidateToken parses and verifies a bearer token, returning the identity
// it asserts.
func (s *AuthService) ValidateToken(tokenString string) (*model.AuthClaims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &tokenClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, model.ErrInvalidCredentials
	}

	claims, ok := parsed.Claims.(*tokenClaims)
	if !ok {
		return nil, model.ErrInvalidCredentials
	}
	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return nil, model.ErrInvalidCredentials
	}

	return &model.AuthClaims{
		UserID:   userID,
		Username: claims.Username,
		Admin:    claims.Admin,
		TokenID:  claims.ID,
	}, nil
}

func (s *AuthService) issue(u model.User) (string, error) {
	now := time.Now().UTC()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims{
		Username: u.Username,
		Admin:    u.IsAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(u.ID, 10),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	})

	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}
