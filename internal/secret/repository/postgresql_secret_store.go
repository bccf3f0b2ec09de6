package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/allisson/onetime/internal/database"
	apperrors "github.com/allisson/onetime/internal/errors"
	secretDomain "github.com/allisson/onetime/internal/secret/domain"
)

// PostgreSQLSecretStore implements SecretStore for PostgreSQL databases.
//
// Unguarded retrieval is a single DELETE ... RETURNING statement, so the
// row-level atomicity of the database guarantees at most one winner under
// concurrent retrieval without any explicit locking. Guarded retrieval runs
// SELECT ... FOR UPDATE, the guard, and the DELETE inside one transaction so
// a failed guard leaves the row untouched.
type PostgreSQLSecretStore struct {
	db        *sql.DB
	txManager database.TxManager
}

// NewPostgreSQLSecretStore creates a new PostgreSQL secret store instance.
func NewPostgreSQLSecretStore(db *sql.DB, txManager database.TxManager) *PostgreSQLSecretStore {
	return &PostgreSQLSecretStore{db: db, txManager: txManager}
}

// Put stores a new secret with the given lifetime.
func (p *PostgreSQLSecretStore) Put(
	ctx context.Context,
	secret *secretDomain.Secret,
	ttl time.Duration,
) error {
	querier := database.GetTx(ctx, p.db)

	now := time.Now().UTC()
	secret.ExpiresAt = now.Add(ttl)

	query := `INSERT INTO secrets (id, envelope, passphrase_hash, created_at, expires_at)
			  VALUES ($1, $2, $3, $4, $5)`

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
func (p *PostgreSQLSecretStore) GetAndDelete(
	ctx context.Context,
	id string,
	guard RetrievalGuard,
) (*secretDomain.Secret, error) {
	if guard == nil {
		return p.getAndDeleteUnguarded(ctx, id)
	}
	return p.getAndDeleteGuarded(ctx, id, guard)
}

// getAndDeleteUnguarded destroys and returns the row in a single statement.
func (p *PostgreSQLSecretStore) getAndDeleteUnguarded(
	ctx context.Context,
	id string,
) (*secretDomain.Secret, error) {
	querier := database.GetTx(ctx, p.db)

	query := `DELETE FROM secrets
			  WHERE id = $1 AND expires_at > $2
			  RETURNING id, envelope, passphrase_hash, created_at, expires_at`

	var secret secretDomain.Secret
	err := querier.QueryRowContext(ctx, query, id, time.Now().UTC()).Scan(
		&secret.ID,
		&secret.Envelope,
		&secret.PassphraseHash,
		&secret.CreatedAt,
		&secret.ExpiresAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, secretDomain.ErrSecretNotFound
		}
		return nil, apperrors.Wrap(err, "failed to retrieve secret")
	}

	return &secret, nil
}

// getAndDeleteGuarded locks the row, runs the guard, and only then deletes.
func (p *PostgreSQLSecretStore) getAndDeleteGuarded(
	ctx context.Context,
	id string,
	guard RetrievalGuard,
) (*secretDomain.Secret, error) {
	var secret secretDomain.Secret

	err := p.txManager.WithTx(ctx, func(ctx context.Context) error {
		querier := database.GetTx(ctx, p.db)

		query := `SELECT id, envelope, passphrase_hash, created_at, expires_at
				  FROM secrets
				  WHERE id = $1 AND expires_at > $2
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

		if err := guard(&secret); err != nil {
			return err
		}

		if _, err := querier.ExecContext(ctx, `DELETE FROM secrets WHERE id = $1`, id); err != nil {
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
func (p *PostgreSQLSecretStore) CleanupExpired(ctx context.Context, dryRun bool) (int64, error) {
	querier := database.GetTx(ctx, p.db)
	now := time.Now().UTC()

	if dryRun {
		var count int64
		query := `SELECT COUNT(*) FROM secrets WHERE expires_at <= $1`
		if err := querier.QueryRowContext(ctx, query, now).Scan(&count); err != nil {
			return 0, apperrors.Wrap(err, "failed to count expired secrets")
		}
		return count, nil
	}

	result, err := querier.ExecContext(ctx, `DELETE FROM secrets WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to delete expired secrets")
	}

	count, err := result.RowsAffected()
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to count deleted secrets")
	}
	return count, nil
}
