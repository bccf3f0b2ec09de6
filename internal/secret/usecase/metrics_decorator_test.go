package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	secretDomain "github.com/allisson/onetime/internal/secret/domain"
)

// recordingMetrics captures metric calls for assertions.
type recordingMetrics struct {
	mu         sync.Mutex
	operations []string
	statuses   []string
	durations  int
}

func (r *recordingMetrics) RecordOperation(_ context.Context, _, operation, status string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.operations = append(r.operations, operation)
	r.statuses = append(r.statuses, status)
}

func (r *recordingMetrics) RecordDuration(_ context.Context, _, _ string, _ time.Duration, _ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.durations++
}

func TestSecretUseCaseWithMetrics(t *testing.T) {
	ctx := context.Background()
	payload := []byte("client-encrypted-payload")

	t.Run("records success and error statuses", func(t *testing.T) {
		f := newUseCaseFixture(t)
		recorder := &recordingMetrics{}
		decorated := NewSecretUseCaseWithMetrics(f.useCase, recorder)

		secret, err := decorated.Create(ctx, payload, 3600, "")
		require.NoError(t, err)

		got, err := decorated.Retrieve(ctx, secret.ID, "")
		require.NoError(t, err)
		assert.Equal(t, payload, got)

		_, err = decorated.Retrieve(ctx, secret.ID, "")
		assert.ErrorIs(t, err, secretDomain.ErrSecretNotFound)

		assert.Equal(t, []string{"secret_create", "secret_retrieve", "secret_retrieve"}, recorder.operations)
		assert.Equal(t, []string{"success", "success", "error"}, recorder.statuses)
		assert.Equal(t, 3, recorder.durations)
	})
}
