package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"mediavault/internal/event"
	"mediavault/internal/model"
	"mediavault/internal/repository"
	"mediavault/internal/util"
)

// AccountService owns the external-identity to account mapping. Accounts
// are created lazily on first contact and removed only by explicit erasure.
type AccountService struct {
	users     repository.UserStore
	files     repository.FileStore
	retention Retention
	bus       event.Bus

	isAdmin     func(externalID int64) bool
	idleAfter   time.Duration
	newUsername func() string
}

// usernameAttempts bounds how often Register redraws a colliding display
// name before giving up. The name space is small (four digits), so
// collisions are expected; several in a row are not.
const usernameAttempts = 5

func NewAccountService(
	users repository.UserStore,
	files repository.FileStore,
	retention Retention,
	bus event.Bus,
	isAdmin func(externalID int64) bool,
	idleAfter time.Duration,
) *AccountService {
	if isAdmin == nil {
		isAdmin = func(int64) bool { return false }
	}
	if idleAfter <= 0 {
		idleAfter = 30 * time.Minute
	}
	return &AccountService{
		users:       users,
		files:       files,
		retention:   retention,
		bus:         bus,
		isAdmin:     isAdmin,
		idleAfter:   idleAfter,
		newUsername: util.GenerateUsername,
	}
}

// Register creates an account for a previously unseen external identity and
// returns the generated plaintext secret. The secret is never stored or
// recoverable afterwards; a second registration for the same identity fails
// with ErrAlreadyRegistered and the original credentials stay valid.
func (s *AccountService) Register(ctx context.Context, externalID int64) (model.User, string, error) {
	secret := util.GenerateSecret()
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return model.User{}, "", fmt.Errorf("hash secret: %w", err)
	}

	now := time.Now().UTC()
	u := model.User{
		ExternalID:   externalID,
		SecretHash:   string(hash),
		IsAdmin:      s.isAdmin(externalID),
		LastActiveAt: now,
		CreatedAt:    now,
	}

	// The display name is drawn from a small space and the store enforces
	// its uniqueness; redraw on a collision instead of failing the caller.
	var created model.User
	for attempt := 1; ; attempt++ {
		u.Username = s.newUsername()
		entry := model.AuditEntry{
			Action:     model.AuditRegister,
			Detail:     fmt.Sprintf("registered account %s", u.Username),
			OccurredAt: now,
		}

		err = withStoreRetry(ctx, func() error {
			var cerr error
			created, cerr = s.users.Create(ctx, u, entry)
			return cerr
		})
		if errors.Is(err, model.ErrUsernameTaken) && attempt < usernameAttempts {
			continue
		}
		break
	}
	if err != nil {
		return model.User{}, "", err
	}

	s.bus.Publish(event.Event{
		Type:    event.TypeUserRegistered,
		Actor:   string(model.ActorOwner),
		Payload: created.ID,
	})
	return created, secret, nil
}

// Resolve maps an external chat identity to its account.
func (s *AccountService) Resolve(ctx context.Context, externalID int64) (model.User, error) {
	var u model.User
	err := withStoreRetry(ctx, func() error {
		var ferr error
		u, ferr = s.users.FindByExternalID(ctx, externalID)
		return ferr
	})
	return u, err
}

// Get looks an account up by its internal ID.
func (s *AccountService) Get(ctx context.Context, id int64) (model.User, error) {
	var u model.User
	err := withStoreRetry(ctx, func() error {
		var ferr error
		u, ferr = s.users.FindByID(ctx, id)
		return ferr
	})
	return u, err
}

// TouchActivity bumps the account's last-activity timestamp.
func (s *AccountService) TouchActivity(ctx context.Context, id int64) error {
	return withStoreRetry(ctx, func() error {
		return s.users.TouchActivity(ctx, id, time.Now().UTC())
	})
}

// IsIdle reports whether the account has been inactive long enough for the
// transport to force a re-login.
func (s *AccountService) IsIdle(u model.User) bool {
	return time.Since(u.LastActiveAt) > s.idleAfter
}

// Erase removes the account and, by cascade, every file row and audit entry
// attached to it. No audit entry is written for the erasure itself since its
// own trail is part of what gets destroyed. Retention tasks for the erased
// files are cancelled after the delete commits; a task that fires in the gap
// finds nothing and treats that as success.
func (s *AccountService) Erase(ctx context.Context, userID int64) error {
	var pending []model.FileRecord
	err := withStoreRetry(ctx, func() error {
		var lerr error
		pending, lerr = s.files.ListActive(ctx, userID)
		return lerr
	})
	if err != nil {
		return err
	}

	if err := withStoreRetry(ctx, func() error { return s.users.Erase(ctx, userID) }); err != nil {
		return err
	}

	for _, rec := range pending {
		if rec.DeleteAfter != nil {
			s.retention.Cancel(rec.Key())
		}
	}

	s.bus.Publish(event.Event{
		Type:    event.TypeUserErased,
		Actor:   string(model.ActorOwner),
		Payload: userID,
	})
	return nil
}
