package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"artel/internal/content"
	"artel/internal/models"

	"github.com/c-pro/geche"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const nameCacheTTL = 5 * time.Minute

var (
	ErrUsernameTaken      = errors.New("username taken")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

type Store interface {
	UpsertUser(user models.User) error
	GetUser(userID string) (models.User, bool, error)
	GetUserByName(username string) (models.User, bool, error)
	GetUsers(userIDs []string) (map[string]models.User, error)
}

// Service owns durable accounts and the socket-level authenticate upsert.
type Service struct {
	store Store
	// names caches userID -> username for presence resolution.
	names geche.Geche[string, string]
	now   func() time.Time
}

func NewService(ctx context.Context, store Store) *Service {
	return &Service{
		store: store,
		names: geche.NewMapTTLCache[string, string](ctx, nameCacheTTL, time.Minute),
		now:   time.Now,
	}
}

// SignUp creates a new account. Usernames are unique.
func (s *Service) SignUp(username, password string) (models.Identity, error) {
	if err := content.ValidateUsername(username); err != nil {
		return models.Identity{}, fmt.Errorf("%w: %s", models.ErrValidation, err)
	}
	if password == "" {
		return models.Identity{}, fmt.Errorf("%w: missing password", models.ErrValidation)
	}

	if _, found, err := s.store.GetUserByName(username); err != nil {
		return models.Identity{}, fmt.Errorf("signup lookup failed: %w", err)
	} else if found {
		return models.Identity{}, ErrUsernameTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return models.Identity{}, fmt.Errorf("failed to hash password: %w", err)
	}

	now := s.now().UnixMilli()
	user := models.User{
		UserID:       uuid.NewString(),
		Username:     username,
		PasswordHash: string(hash),
		CreatedAt:    now,
		LastActive:   now,
	}
	if err := s.store.UpsertUser(user); err != nil {
		return models.Identity{}, fmt.Errorf("failed to store user: %w", err)
	}

	s.names.Set(user.UserID, user.Username)
	return models.Identity{UserID: user.UserID, Username: user.Username}, nil
}

// Login verifies a username/password pair.
func (s *Service) Login(username, password string) (models.Identity, error) {
	user, found, err := s.store.GetUserByName(username)
	if err != nil {
		return models.Identity{}, fmt.Errorf("login lookup failed: %w", err)
	}
	if !found || user.PasswordHash == "" {
		return models.Identity{}, ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return models.Identity{}, ErrInvalidCredentials
	}

	user.LastActive = s.now().UnixMilli()
	if err := s.store.UpsertUser(user); err != nil {
		slog.Warn("could not update last active", "user_id", user.UserID, "error", err)
	}

	s.names.Set(user.UserID, user.Username)
	return models.Identity{UserID: user.UserID, Username: user.Username}, nil
}

// Authenticate is the session-level upsert: an optional userID lets a
// reconnecting client reattach its identity, otherwise a new one is
// generated. Repeated calls with the same id are idempotent, and store
// failures do not prevent the session from being created.
func (s *Service) Authenticate(username, userID string) models.Identity {
	if username == "" {
		username = "guest"
	}
	if userID == "" {
		userID = uuid.NewString()
	}

	now := s.now().UnixMilli()
	user := models.User{
		UserID:     userID,
		Username:   username,
		CreatedAt:  now,
		LastActive: now,
	}
	if existing, found, err := s.store.GetUser(userID); err != nil {
		slog.Warn("authenticate lookup failed", "user_id", userID, "error", err)
	} else if found {
		user.PasswordHash = existing.PasswordHash
		user.CreatedAt = existing.CreatedAt
	}

	if err := s.store.UpsertUser(user); err != nil {
		slog.Warn("could not persist user on authenticate", "user_id", userID, "error", err)
	}

	s.names.Set(userID, username)
	return models.Identity{UserID: userID, Username: username}
}

// ResolveNames maps userIDs to display names, best effort. Missing ids
// are absent from the result; callers fall back to the raw id.
func (s *Service) ResolveNames(userIDs []string) map[string]string {
	resolved := make(map[string]string, len(userIDs))
	var misses []string
	for _, id := range userIDs {
		if name, err := s.names.Get(id); err == nil {
			resolved[id] = name
		} else {
			misses = append(misses, id)
		}
	}
	if len(misses) == 0 {
		return resolved
	}

	users, err := s.store.GetUsers(misses)
	if err != nil {
		slog.Warn("could not resolve usernames", "error", err)
		return resolved
	}
	for id, u := range users {
		resolved[id] = u.Username
		s.names.Set(id, u.Username)
	}
	return resolved
}

// ResolveName resolves one userID, falling back to the id itself.
func (s *Service) ResolveName(userID string) string {
	if name, ok := s.ResolveNames([]string{userID})[userID]; ok {
		return name
	}
	return userID
}
