package repository

import (
	"context"
	"encoding/base64"
	"sync"
	"time"

	secretDomain "github.com/allisson/onetime/internal/secret/domain"
)

// memoryRecord is the stored value for a secret: the base64 envelope and the
// creation time in epoch milliseconds, plus retrieval bookkeeping.
type memoryRecord struct {
	Data           string
	CreatedAt      int64
	PassphraseHash string
	ExpiresAt      time.Time
}

// MemorySecretStore implements SecretStore with a mutex-protected in-process
// map. Intended for development and tests; records do not survive restarts.
//
// Keys are namespaced as "secret:" + id. A single mutex spans the whole
// retrieve-and-destroy sequence, including the guard, so concurrent
// retrievers of the same id serialize and exactly one wins.
type MemorySecretStore struct {
	mu      sync.Mutex
	records map[string]memoryRecord
	now     func() time.Time
}

// NewMemorySecretStore creates an empty in-memory secret store.
func NewMemorySecretStore() *MemorySecretStore {
	return &MemorySecretStore{
		records: make(map[string]memoryRecord),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the store clock. Used by tests to exercise expiry
// boundaries deterministically.
func (m *MemorySecretStore) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

func storageKey(id string) string {
	return "secret:" + id
}

// Put stores a new secret with the given lifetime.
func (m *MemorySecretStore) Put(
	_ context.Context,
	secret *secretDomain.Secret,
	ttl time.Duration,
) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	secret.ExpiresAt = now.Add(ttl)

	m.records[storageKey(secret.ID)] = memoryRecord{
		Data:           base64.StdEncoding.EncodeToString(secret.Envelope),
		CreatedAt:      secret.CreatedAt.UnixMilli(),
		PassphraseHash: secret.PassphraseHash,
		ExpiresAt:      secret.ExpiresAt,
	}
	return nil
}

// GetAndDelete atomically retrieves and destroys a secret.
func (m *MemorySecretStore) GetAndDelete(
	_ context.Context,
	id string,
	guard RetrievalGuard,
) (*secretDomain.Secret, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := storageKey(id)
	record, ok := m.records[key]
	if !ok {
		return nil, secretDomain.ErrSecretNotFound
	}

	// Expired records are indistinguishable from absent ones. They stay in
	// the map until CleanupExpired reclaims them.
	if !record.ExpiresAt.After(m.now()) {
		return nil, secretDomain.ErrSecretNotFound
	}

	envelope, err := base64.StdEncoding.DecodeString(record.Data)
	if err != nil {
		return nil, secretDomain.ErrSecretNotFound
	}

	secret := &secretDomain.Secret{
		ID:             id,
		Envelope:       envelope,
		PassphraseHash: record.PassphraseHash,
		CreatedAt:      time.UnixMilli(record.CreatedAt).UTC(),
		ExpiresAt:      record.ExpiresAt,
	}

	if guard != nil {
		if err := guard(secret); err != nil {
			return nil, err
		}
	}

	delete(m.records, key)
	return secret, nil
}

// CleanupExpired removes expired records and returns the affected count.
func (m *MemorySecretStore) CleanupExpired(_ context.Context, dryRun bool) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	var count int64
	for key, record := range m.records {
		if record.ExpiresAt.After(now) {
			continue
		}
		count++
		if !dryRun {
			delete(m.records, key)
		}
	}
	return count, nil
}

// Len reports how many records are currently stored, expired ones included.
func (m *MemorySecretStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}
