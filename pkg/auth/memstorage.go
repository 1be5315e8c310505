package auth

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemStorage is an in-memory Storage used by tests and single-process
// development. Uniqueness constraints match the relational schema:
// credential identifiers are unique per type, token values are globally
// unique.
type MemStorage struct {
	mu          sync.Mutex
	users       map[uuid.UUID]User
	credentials map[uuid.UUID]Credential
	tokens      map[uuid.UUID]Token
}

// NewMemStorage creates an empty in-memory store.
func NewMemStorage() *MemStorage {
	return &MemStorage{
		users:       make(map[uuid.UUID]User),
		credentials: make(map[uuid.UUID]Credential),
		tokens:      make(map[uuid.UUID]Token),
	}
}

// WithinTx implements Storage. The in-memory store has no rollback; fn
// runs under the store's lock-free handle and partial writes stick on
// error. Acceptable for the tests and dev flows this backs.
func (m *MemStorage) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Storage) error) error {
	return fn(ctx, m)
}

// CreateUser implements Storage.
func (m *MemStorage) CreateUser(ctx context.Context, user *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[user.ID]; ok {
		return ErrDuplicate
	}
	m.users[user.ID] = *user
	return nil
}

// CreateCredential implements Storage.
func (m *MemStorage) CreateCredential(ctx context.Context, credential *Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.credentials {
		if existing.Type == credential.Type && existing.Identifier == credential.Identifier {
			return ErrDuplicate
		}
	}
	m.credentials[credential.ID] = *credential
	return nil
}

// CredentialByIdentifier implements Storage.
func (m *MemStorage) CredentialByIdentifier(ctx context.Context, typ CredentialType, identifier string) (*Credential, *User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, credential := range m.credentials {
		if credential.Type == typ && credential.Identifier == identifier {
			user, ok := m.users[credential.UserID]
			if !ok {
				return nil, nil, ErrNotFound
			}
			c, u := credential, user
			return &c, &u, nil
		}
	}
	return nil, nil, ErrNotFound
}

// CreateToken implements Storage.
func (m *MemStorage) CreateToken(ctx context.Context, token *Token) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.tokens {
		if existing.Value == token.Value {
			return ErrDuplicate
		}
	}
	m.tokens[token.ID] = *token
	return nil
}

// TokenByValue implements Storage.
func (m *MemStorage) TokenByValue(ctx context.Context, value string) (*Token, *User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, token := range m.tokens {
		if token.Value == value {
			user, ok := m.users[token.UserID]
			if !ok {
				return nil, nil, ErrNotFound
			}
			t, u := token, user
			return &t, &u, nil
		}
	}
	return nil, nil, ErrNotFound
}

// MarkTokenRevoked implements Storage.
func (m *MemStorage) MarkTokenRevoked(ctx context.Context, tokenID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	token, ok := m.tokens[tokenID]
	if !ok {
		return ErrNotFound
	}
	token.IsRevoked = true
	m.tokens[tokenID] = token
	return nil
}

// MarkAllTokensRevoked implements Storage.
func (m *MemStorage) MarkAllTokensRevoked(ctx context.Context, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, token := range m.tokens {
		if token.UserID == userID && !token.IsRevoked {
			token.IsRevoked = true
			m.tokens[id] = token
		}
	}
	return nil
}

// ActiveTokens implements Storage.
func (m *MemStorage) ActiveTokens(ctx context.Context, userID uuid.UUID) ([]Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var active []Token
	for _, token := range m.tokens {
		if token.UserID == userID && !token.IsRevoked {
			active = append(active, token)
		}
	}
	return active, nil
}

// SetUserRoles updates a user's role bitmask. Test and dev helper; the
// production role assignment path is outside this core.
func (m *MemStorage) SetUserRoles(userID uuid.UUID, roles Roles) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if user, ok := m.users[userID]; ok {
		user.Roles = roles
		m.users[userID] = user
	}
}
