// Package auth implements owner account registration and bearer-token
// authentication. Passwords are stored as salted PBKDF2-SHA256 digests;
// tokens are opaque random strings persisted in the store and resolved on
// every authenticated request.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/pbkdf2"

	"github.com/dwarpal-ai/dwarpal/internal/model"
	"github.com/dwarpal-ai/dwarpal/internal/store"
)

const (
	pbkdf2Iterations = 100_000
	pbkdf2KeyLen     = sha256.Size
	saltLen          = 16
	tokenLen         = 32
)

// Service handles owner registration, login, and token verification.
type Service struct {
	store store.Store
	log   zerolog.Logger
}

func NewService(s store.Store, log zerolog.Logger) *Service {
	return &Service{store: s, log: log.With().Str("component", "auth").Logger()}
}

// Register creates a new owner account and issues its first token. A taken
// username returns model.ErrConflict.
func (s *Service) Register(ctx context.Context, username, password, displayName string) (*model.Owner, string, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, "", fmt.Errorf("%w: username and password are required", model.ErrValidation)
	}
	salt, err := randomHex(saltLen)
	if err != nil {
		return nil, "", err
	}
	owner, err := s.store.Owners().Create(ctx, &model.Owner{
		Username:     username,
		PasswordHash: hashPassword(password, salt),
		Salt:         salt,
		DisplayName:  strings.TrimSpace(displayName),
	})
	if err != nil {
		return nil, "", err
	}
	token, err := s.issueToken(ctx, owner.OwnerID)
	if err != nil {
		return nil, "", err
	}
	s.log.Info().Str("owner_id", owner.OwnerID).Msg("owner registered")
	return owner, token, nil
}

// Login verifies the password and issues a fresh token. Unknown usernames
// and wrong passwords are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, username, password string) (*model.Owner, string, error) {
	owner, err := s.store.Owners().GetByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, model.ErrNotFound) {
		return nil, "", ErrInvalidCredentials
	}
	if err != nil {
		return nil, "", err
	}
	if !verifyPassword(password, owner.Salt, owner.PasswordHash) {
		return nil, "", ErrInvalidCredentials
	}
	token, err := s.issueToken(ctx, owner.OwnerID)
	if err != nil {
		return nil, "", err
	}
	return owner, token, nil
}

// Logout revokes the token. Revoking a token that no longer exists is not
// an error.
func (s *Service) Logout(ctx context.Context, token string) error {
	err := s.store.Tokens().Delete(ctx, token)
	if errors.Is(err, model.ErrNotFound) {
		return nil
	}
	return err
}

// Verify resolves a bearer token to its owner.
func (s *Service) Verify(ctx context.Context, token string) (*model.Owner, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}
	owner, err := s.store.Tokens().GetOwner(ctx, token)
	if errors.Is(err, model.ErrNotFound) {
		return nil, ErrInvalidToken
	}
	return owner, err
}

func (s *Service) issueToken(ctx context.Context, ownerID string) (string, error) {
	raw := make([]byte, tokenLen)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	token := base64.RawURLEncoding.EncodeToString(raw)
	if err := s.store.Tokens().Create(ctx, &model.Token{Token: token, OwnerID: ownerID}); err != nil {
		return "", err
	}
	return token, nil
}

func hashPassword(password, salt string) string {
	key := pbkdf2.Key([]byte(password), []byte(salt), pbkdf2Iterations, pbkdf2KeyLen, sha256.New)
	return hex.EncodeToString(key)
}

func verifyPassword(password, salt, wantHash string) bool {
	got := hashPassword(password, salt)
	return subtle.ConstantTimeCompare([]byte(got), []byte(wantHash)) == 1
}

func randomHex(n int) (string, error) {
	raw := make([]byte, n)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	return hex.EncodeToString(raw), nil
}
