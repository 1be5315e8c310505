package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/DaylightLtd/minidex/pkg/observability"
)

// CredentialStore verifies and registers username/password credentials.
type CredentialStore struct {
	storage Storage
	cost    int
	log     *observability.Logger
}

// NewCredentialStore creates a credential store hashing secrets with the
// given bcrypt cost. Costs outside bcrypt's range fall back to its default.
func NewCredentialStore(storage Storage, cost int, log *observability.Logger) *CredentialStore {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	if log == nil {
		log = observability.NewNopLogger()
	}
	return &CredentialStore{storage: storage, cost: cost, log: log}
}

// Verify checks a candidate secret against the stored hash and returns the
// owning user's Principal. An unknown identifier and a wrong secret both
// yield ErrInvalidCredentials; only store failures produce other errors.
func (s *CredentialStore) Verify(ctx context.Context, identifier, secret string) (*Principal, error) {
	credential, user, err := s.storage.CredentialByIdentifier(ctx, CredentialUsernamePassword, identifier)
	if errors.Is(err, ErrNotFound) {
		s.log.Debug("credential verification failed: unknown identifier")
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("credential lookup: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(credential.SecretHash), []byte(secret)); err != nil {
		s.log.WithField("user_id", user.ID.String()).Debug("credential verification failed: secret mismatch")
		return nil, ErrInvalidCredentials
	}

	s.log.WithField("user_id", user.ID.String()).Debug("username/password verified")
	return &Principal{
		UserID:   user.ID,
		Roles:    user.Roles,
		IsActive: user.IsActive,
	}, nil
}

// Register creates a User and its Credential inside one unit of work. A
// duplicate identifier returns nil without creating anything, so callers
// cannot probe which identifiers exist.
func (s *CredentialStore) Register(ctx context.Context, identifier, secret, displayName string) error {
	if _, _, err := s.storage.CredentialByIdentifier(ctx, CredentialUsernamePassword, identifier); err == nil {
		s.log.Warnf("attempted to register with existing identifier %q", identifier)
		return nil
	} else if !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("credential lookup: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(secret), s.cost)
	if err != nil {
		return fmt.Errorf("hash secret: %w", err)
	}

	err = s.storage.WithinTx(ctx, func(ctx context.Context, tx Storage) error {
		user := &User{
			ID:          uuid.New(),
			DisplayName: displayName,
			IsActive:    true,
		}
		if err := tx.CreateUser(ctx, user); err != nil {
			return fmt.Errorf("create user: %w", err)
		}
		credential := &Credential{
			ID:         uuid.New(),
			UserID:     user.ID,
			Type:       CredentialUsernamePassword,
			Identifier: identifier,
			SecretHash: string(hash),
		}
		if err := tx.CreateCredential(ctx, credential); err != nil {
			return fmt.Errorf("create credential: %w", err)
		}
		return nil
	})
	if errors.Is(err, ErrDuplicate) {
		// Lost a race with a concurrent registration for the same
		// identifier. Same outcome as the duplicate check above.
		s.log.Warnf("concurrent registration for identifier %q", identifier)
		return nil
	}
	return err
}
