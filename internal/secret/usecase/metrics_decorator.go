package usecase

import (
	"context"
	"time"

	"github.com/allisson/onetime/internal/metrics"
	secretDomain "github.com/allisson/onetime/internal/secret/domain"
)

// secretUseCaseWithMetrics decorates SecretUseCase with metrics instrumentation.
type secretUseCaseWithMetrics struct {
	next    SecretUseCase
	metrics metrics.BusinessMetrics
}

// NewSecretUseCaseWithMetrics wraps a SecretUseCase with metrics recording.
func NewSecretUseCaseWithMetrics(useCase SecretUseCase, m metrics.BusinessMetrics) SecretUseCase {
	return &secretUseCaseWithMetrics{
		next:    useCase,
		metrics: m,
	}
}

// Create records metrics for secret creation operations.
func (s *secretUseCaseWithMetrics) Create(
	ctx context.Context,
	ciphertext []byte,
	expiresIn int64,
	passphrase string,
) (*secretDomain.Secret, error) {
	start := time.Now()
	secret, err := s.next.Create(ctx, ciphertext, expiresIn, passphrase)

	status := "success"
	if err != nil {
		status = "error"
	}

	s.metrics.RecordOperation(ctx, "secrets", "secret_create", status)
	s.metrics.RecordDuration(ctx, "secrets", "secret_create", time.Since(start), status)

	return secret, err
}

// Retrieve records metrics for retrieve-and-destroy operations.
func (s *secretUseCaseWithMetrics) Retrieve(
	ctx context.Context,
	id string,
	passphrase string,
) ([]byte, error) {
	start := time.Now()
	payload, err := s.next.Retrieve(ctx, id, passphrase)

	status := "success"
	if err != nil {
		status = "error"
	}

	s.metrics.RecordOperation(ctx, "secrets", "secret_retrieve", status)
	s.metrics.RecordDuration(ctx, "secrets", "secret_retrieve", time.Since(start), status)

	return payload, err
}
