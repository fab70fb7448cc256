package auth

import (
	"context"
	"errors"
	"sync"
	"testing"

	"artel/internal/models"

	"golang.org/x/crypto/bcrypt"
)

type fakeStore struct {
	mu        sync.Mutex
	users     map[string]models.User
	upsertErr error
	lookupErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{users: make(map[string]models.User)}
}

func (s *fakeStore) UpsertUser(user models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.upsertErr != nil {
		return s.upsertErr
	}
	s.users[user.UserID] = user
	return nil
}

func (s *fakeStore) GetUser(userID string) (models.User, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lookupErr != nil {
		return models.User{}, false, s.lookupErr
	}
	u, ok := s.users[userID]
	return u, ok, nil
}

func (s *fakeStore) GetUserByName(username string) (models.User, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lookupErr != nil {
		return models.User{}, false, s.lookupErr
	}
	for _, u := range s.users {
		if u.Username == username {
			return u, true, nil
		}
	}
	return models.User{}, false, nil
}

func (s *fakeStore) GetUsers(userIDs []string) (map[string]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]models.User)
	for _, id := range userIDs {
		if u, ok := s.users[id]; ok {
			out[id] = u
		}
	}
	return out, nil
}

func newTestService(t *testing.T, store Store) *Service {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return NewService(ctx, store)
}

func TestService_SignUpAndLogin(t *testing.T) {
	store := newFakeStore()
	s := newTestService(t, store)

	identity, err := s.SignUp("alice", "secret")
	if err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}
	if identity.UserID == "" || identity.Username != "alice" {
		t.Errorf("unexpected identity: %+v", identity)
	}

	// Stored hash must verify, and must not be the raw password.
	stored := store.users[identity.UserID]
	if stored.PasswordHash == "secret" {
		t.Error("password stored in the clear")
	}
	if bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("secret")) != nil {
		t.Error("stored hash does not verify")
	}

	if _, err := s.SignUp("alice", "other"); !errors.Is(err, ErrUsernameTaken) {
		t.Errorf("expected ErrUsernameTaken, got %v", err)
	}
	if _, err := s.SignUp("bad name!", "pw"); !errors.Is(err, models.ErrValidation) {
		t.Errorf("expected ErrValidation for bad username, got %v", err)
	}
	if _, err := s.SignUp("bob", ""); !errors.Is(err, models.ErrValidation) {
		t.Errorf("expected ErrValidation for empty password, got %v", err)
	}

	logged, err := s.Login("alice", "secret")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if logged.UserID != identity.UserID {
		t.Error("login resolved a different account")
	}

	if _, err := s.Login("alice", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := s.Login("nobody", "pw"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials for unknown user, got %v", err)
	}
}

func TestService_Authenticate(t *testing.T) {
	store := newFakeStore()
	s := newTestService(t, store)

	// Anonymous connect: server mints the identity.
	id1 := s.Authenticate("", "")
	if id1.Username != "guest" {
		t.Errorf("expected guest default, got %s", id1.Username)
	}
	if id1.UserID == "" {
		t.Error("userID not minted")
	}

	// Reconnect with the same id reattaches, idempotently.
	id2 := s.Authenticate("guest", id1.UserID)
	if id2.UserID != id1.UserID {
		t.Error("reconnect must keep the same identity")
	}

	// A registered account keeps its credentials through a socket
	// authenticate with a fresh display name.
	signed, err := s.SignUp("carol", "pw")
	if err != nil {
		t.Fatal(err)
	}
	hashBefore := store.users[signed.UserID].PasswordHash
	createdBefore := store.users[signed.UserID].CreatedAt

	s.Authenticate("carol-on-laptop", signed.UserID)
	after := store.users[signed.UserID]
	if after.PasswordHash != hashBefore {
		t.Error("authenticate must not drop the password hash")
	}
	if after.CreatedAt != createdBefore {
		t.Error("authenticate must not rewrite createdAt")
	}
	if after.Username != "carol-on-laptop" {
		t.Errorf("display name not updated: %s", after.Username)
	}
}

func TestService_Authenticate_StoreDown(t *testing.T) {
	store := newFakeStore()
	store.lookupErr = errors.New("store down")
	store.upsertErr = errors.New("store down")
	s := newTestService(t, store)

	// Session creation never fails on store errors.
	id := s.Authenticate("dave", "")
	if id.UserID == "" || id.Username != "dave" {
		t.Errorf("unexpected identity with store down: %+v", id)
	}
}

func TestService_ResolveNames(t *testing.T) {
	store := newFakeStore()
	s := newTestService(t, store)

	a := s.Authenticate("alice", "")
	store.users["cold"] = models.User{UserID: "cold", Username: "bob"}

	names := s.ResolveNames([]string{a.UserID, "cold", "missing"})
	if names[a.UserID] != "alice" {
		t.Errorf("cached name not resolved: %v", names)
	}
	if names["cold"] != "bob" {
		t.Errorf("store name not resolved: %v", names)
	}
	if _, ok := names["missing"]; ok {
		t.Error("missing id must be absent from the result")
	}

	if got := s.ResolveName("missing"); got != "missing" {
		t.Errorf("ResolveName must fall back to the raw id, got %s", got)
	}
}
