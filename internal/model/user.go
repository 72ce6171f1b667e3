package model

import "time"

// User is one bot-level account bound to a single external chat identity.
// The credential secret is stored only as a bcrypt hash; the plaintext is
// handed to the caller exactly once, at registration.
type User struct {
	ID                  int64     `json:"id"`
	ExternalID          int64     `json:"external_id"`
	Username            string    `json:"username"`
	SecretHash          string    `json:"-"`
	IsAdmin             bool      `json:"is_admin"`
	FailedLoginAttempts int       `json:"failed_login_attempts"`
	Uploads             int64     `json:"uploads"`
	Downloads           int64     `json:"downloads"`
	LastActiveAt        time.Time `json:"last_active_at"`
	CreatedAt           time.Time `json:"created_at"`
}

// LoginRequest carries the generated credentials back for token exchange.
type LoginRequest struct {
	Username string `json:"username"`
	Secret   string `json:"secret"`
}

// AuthClaims is the validated identity behind an ops-API request.
type AuthClaims struct {
	UserID   int64
	Username string
	Admin    bool
	TokenID  string
}

// ActorKind identifies who is performing a mutation, for audit attribution.
type ActorKind string

const (
	ActorOwner  ActorKind = "owner"
	ActorAdmin  ActorKind = "admin"
	ActorSystem ActorKind = "system"
)

// Actor is the acting principal behind an engine operation. System actors
// (scheduler-driven expiry) carry no user ID.
type Actor struct {
	Kind   ActorKind
	UserID int64
}

func SystemActor() Actor {
	return Actor{Kind: ActorSystem}
}

// ActorFor derives the acting principal from a resolved user.
func ActorFor(u User) Actor {
	kind := ActorOwner
	if u.IsAdmin {
		kind = ActorAdmin
	}
	return Actor{Kind: kind, UserID: u.ID}
}

// AuditUserID returns the nullable user reference recorded on audit entries.
func (a Actor) AuditUserID() *int64 {
	if a.Kind == ActorSystem {
		return nil
	}
	id := a.UserID
	return &id
}
