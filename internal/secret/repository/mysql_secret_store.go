package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/allisson/onetime/internal/database"
	apperrors "github.com/allisson/onetime/internal/errors"
	secretDomain "github.com/allisson/onetime/internal/secret/domain"
)

// MySQLSecretStore implements SecretStore for MySQL databases.
//
// MySQL has no DELETE ... RETURNING, so both retrieval paths run SELECT ...
// FOR UPDATE plus DELETE inside a transaction. The row lock serializes
// concurrent retrievers; losers find no row and get ErrSecretNotFound.
type MySQLSecretStore struct {
	db        *sql.DB
	txManager database.TxManager
}

// NewMySQLSecretStore creates a new MySQL secret store instance.
func NewMySQLSecretStore(db *sql.DB, txManager database.TxManager) *MySQLSecretStore {
	return &MySQLSecretStore{db: db, txManager: txManager}
}

// Put stores a new secret with the given lifetime.
func (m *MySQLSecretStore) Put(
	ctx context.Context,
	secret *secretDomain.Secret,
	ttl time.Duration,
) error {
	querier := database.GetTx(ctx, m.db)

	now := time.Now().UTC()
	secret.ExpiresAt = now.Add(ttl)

	query := `INSERT INTO secrets (id, envelope, passphrase_hash, created_at, expires_at)
			  VALUES (?, ?, ?, ?, ?)`

	_, err := querier.ExecContext(
		ctx,
		query,
		secret.ID,
		secret.Envelope,
		secret.PassphraseHash,
		secret.CreatedAt,
		secret.ExpiresAt,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to store secret")
	}
	return nil
}

// GetAndDelete atomically retrieves and destroys a secret.
func (m *MySQLSecretStore) GetAndDelete(
	ctx context.Context,
	id string,
	guard RetrievalGuard,
) (*secretDomain.Secret, error) {
	var secret secretDomain.Secret

	err := m.txManager.WithTx(ctx, func(ctx context.Context) error {
		querier := database.GetTx(ctx, m.db)

		query := `SELECT id, envelope, passphrase_hash, created_at, expires_at
				  FROM secrets
				  WHERE id = ? AND expires_at > ?
				  FOR UPDATE`

		err := querier.QueryRowContext(ctx, query, id, time.Now().UTC()).Scan(
			&secret.ID,
			&secret.Envelope,
			&secret.PassphraseHash,
			&secret.CreatedAt,
			&secret.ExpiresAt,
		)
		if err != nil {
			if err == sql.ErrNoRows {
				return secretDomain.ErrSecretNotFound
			}
			return apperrors.Wrap(err, "failed to retrieve secret")
		}

		if guard != nil {
			if err := guard(&secret); err != nil {
				return err
			}
		}

		if _, err := querier.ExecContext(ctx, `DELETE FROM secrets WHERE id = ?`, id); err != nil {
			return apperrors.Wrap(err, "failed to destroy secret")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &secret, nil
}

// CleanupExpired removes expired rows and returns the affected count.
func (m *MySQLSecretStore) CleanupExpired(ctx context.Context, dryRun bool) (int64, error) {
	querier := database.GetTx(ctx, m.db)
	now := time.Now().UTC()

	if dryRun {
		var count int64
		query := `SELECT COUNT(*) FROM secrets WHERE expires_at <= ?`
		if err := querier.QueryRowContext(ctx, query, now).Scan(&count); err != nil {
			return 0, apperrors.Wrap(err, "failed to count expired secrets")
		}
		return count, nil
	}

	result, err := querier.ExecContext(ctx, `DELETE FROM secrets WHERE expires_at <= ?`, now)
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to delete expired secrets")
	}

	count, err := result.RowsAffected()
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to count deleted secrets")
	}
	return count, nil
}
