// Package integration provides end-to-end tests for the one-time secret API,
// exercising the full stack from the HTTP layer down to the configured store.
package integration

import (
	"bytes"
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/sync/errgroup"

	"github.com/allisson/onetime/internal/app"
	"github.com/allisson/onetime/internal/config"
	"github.com/allisson/onetime/internal/crypto/client"
	cryptoDomain "github.com/allisson/onetime/internal/crypto/domain"
	secretDTO "github.com/allisson/onetime/internal/secret/http/dto"
	"github.com/allisson/onetime/internal/testutil"
)

// TestMain verifies that no goroutines leak across the suite. Database-backed
// tests are skipped unless the test databases are reachable, so the default
// run exercises the in-memory stack only.
func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	goleak.VerifyTestMain(m,
		// database/sql keeps a connection opener per pool until Close; pools
		// opened by skipped reachability checks may still be winding down.
		goleak.IgnoreTopFunction("database/sql.(*DB).connectionOpener"),
	)
}

// integrationTestContext holds all dependencies and state for integration testing.
type integrationTestContext struct {
	container *app.Container
	db        *sql.DB
	server    *httptest.Server
}

// makeRequest performs an HTTP request and returns the response and body.
func (ctx *integrationTestContext) makeRequest(
	t *testing.T,
	method, path string,
	body interface{},
	headers map[string]string,
) (*http.Response, []byte) {
	t.Helper()

	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		require.NoError(t, err, "failed to marshal request body")
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequest(method, ctx.server.URL+path, bodyReader)
	require.NoError(t, err, "failed to create request")

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	httpClient := &http.Client{Timeout: 10 * time.Second}
	resp, err := httpClient.Do(req)
	require.NoError(t, err, "failed to perform request")

	respBody, err := io.ReadAll(resp.Body)
	require.NoError(t, err, "failed to read response body")
	require.NoError(t, resp.Body.Close())

	return resp, respBody
}

// createSecret submits a payload and returns the decoded creation response.
func (ctx *integrationTestContext) createSecret(
	t *testing.T,
	request secretDTO.CreateSecretRequest,
) secretDTO.CreateSecretResponse {
	t.Helper()

	resp, body := ctx.makeRequest(t, http.MethodPost, "/v1/secrets", request, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode, "unexpected create response: %s", body)

	var response secretDTO.CreateSecretResponse
	require.NoError(t, json.Unmarshal(body, &response))
	return response
}

// setTestMasterKey installs an ephemeral master key for the test.
func setTestMasterKey(t *testing.T) {
	t.Helper()

	key := make([]byte, cryptoDomain.MasterKeySize)
	_, err := rand.Read(key)
	require.NoError(t, err, "failed to generate master key")
	t.Setenv("MASTER_KEY", base64.StdEncoding.EncodeToString(key))
}

// setupIntegrationTest initializes the full application stack for the given
// store driver. For SQL drivers the test database must be reachable.
func setupIntegrationTest(t *testing.T, storeDriver string) *integrationTestContext {
	t.Helper()

	var db *sql.DB
	var dsn string
	switch storeDriver {
	case "postgres":
		testutil.SkipIfNoPostgres(t)
		db = testutil.SetupPostgresDB(t)
		dsn = testutil.GetPostgresTestDSN()
	case "mysql":
		testutil.SkipIfNoMySQL(t)
		db = testutil.SetupMySQLDB(t)
		dsn = testutil.GetMySQLTestDSN()
	}

	setTestMasterKey(t)

	cfg := &config.Config{
		LogLevel:             "error",
		StoreDriver:          storeDriver,
		DBConnectionString:   dsn,
		DBMaxOpenConnections: 10,
		DBMaxIdleConnections: 5,
		DBConnMaxLifetime:    time.Hour,
		ServerHost:           "localhost",
		ServerPort:           8080,
		EnvelopeAlgorithm:    "aes-gcm",
		MetricsNamespace:     "onetime_test",
	}

	container := app.NewContainer(cfg)

	httpSrv, err := container.HTTPServer()
	require.NoError(t, err, "failed to get HTTP server")

	testServer := httptest.NewServer(httpSrv.Router())

	ctx := &integrationTestContext{
		container: container,
		db:        db,
		server:    testServer,
	}

	t.Cleanup(func() {
		ctx.server.Close()
		// Drop keep-alive connections so their transport goroutines exit
		// before the leak check runs.
		http.DefaultTransport.(*http.Transport).CloseIdleConnections()
		require.NoError(t, ctx.container.Shutdown(context.Background()))
		if ctx.db != nil {
			testutil.TeardownDB(t, ctx.db)
		}
	})

	return ctx
}

// TestIntegration_SecretLifecycle exercises the end-to-end contract: the
// sender encrypts locally, submits the opaque payload, and the first
// retrieval both returns and destroys it.
func TestIntegration_SecretLifecycle(t *testing.T) {
	ctx := setupIntegrationTest(t, "memory")

	key, err := client.GenerateKey()
	require.NoError(t, err)

	plaintext := []byte("the vault combination is 12-34-56")
	payload, err := client.Encrypt(key, plaintext, cryptoDomain.AESGCM)
	require.NoError(t, err)

	created := ctx.createSecret(t, secretDTO.CreateSecretRequest{EncryptedData: payload})
	require.NotEmpty(t, created.ID)
	assert.GreaterOrEqual(t, len(created.ID), 8)
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), created.ExpiresAt, 5*time.Second)

	// First retrieval returns the exact payload the sender submitted
	resp, body := ctx.makeRequest(t, http.MethodGet, "/v1/secrets/"+created.ID, nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var retrieved secretDTO.RetrieveSecretResponse
	require.NoError(t, json.Unmarshal(body, &retrieved))
	assert.Equal(t, payload, retrieved.EncryptedData)

	decrypted, err := client.Decrypt(key, retrieved.EncryptedData, cryptoDomain.AESGCM)
	require.NoError(t, err)
	assert.Equal(t, plaintext, decrypted)

	// Second retrieval finds nothing
	resp, body = ctx.makeRequest(t, http.MethodGet, "/v1/secrets/"+created.ID, nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, string(body), "not_found")
}

// TestIntegration_ConcurrentRetrieval verifies that under concurrent access
// exactly one caller receives the secret.
func TestIntegration_ConcurrentRetrieval(t *testing.T) {
	ctx := setupIntegrationTest(t, "memory")

	key, err := client.GenerateKey()
	require.NoError(t, err)
	payload, err := client.Encrypt(key, []byte("single winner"), cryptoDomain.AESGCM)
	require.NoError(t, err)

	created := ctx.createSecret(t, secretDTO.CreateSecretRequest{EncryptedData: payload})

	var wins, misses atomic.Int64
	g := new(errgroup.Group)
	for range 20 {
		g.Go(func() error {
			req, err := http.NewRequest(http.MethodGet, ctx.server.URL+"/v1/secrets/"+created.ID, nil)
			if err != nil {
				return err
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				return err
			}
			defer func() { _ = resp.Body.Close() }()
			if _, err := io.Copy(io.Discard, resp.Body); err != nil {
				return err
			}

			switch resp.StatusCode {
			case http.StatusOK:
				wins.Add(1)
			case http.StatusNotFound:
				misses.Add(1)
			default:
				return fmt.Errorf("unexpected status %d", resp.StatusCode)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, int64(1), wins.Load(), "exactly one retrieval must win")
	assert.Equal(t, int64(19), misses.Load())
}

// TestIntegration_TTLClamping verifies that out-of-range lifetimes are clamped
// rather than rejected.
func TestIntegration_TTLClamping(t *testing.T) {
	ctx := setupIntegrationTest(t, "memory")

	key, err := client.GenerateKey()
	require.NoError(t, err)
	payload, err := client.Encrypt(key, []byte("clamped"), cryptoDomain.AESGCM)
	require.NoError(t, err)

	tests := []struct {
		name      string
		expiresIn int64
		want      time.Duration
	}{
		{"below minimum clamps to one minute", 30, time.Minute},
		{"above maximum clamps to seven days", 99999999, 7 * 24 * time.Hour},
		{"omitted defaults to one day", 0, 24 * time.Hour},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			created := ctx.createSecret(t, secretDTO.CreateSecretRequest{
				EncryptedData: payload,
				ExpiresIn:     tt.expiresIn,
			})
			assert.WithinDuration(t, time.Now().Add(tt.want), created.ExpiresAt, 5*time.Second)
		})
	}
}

// TestIntegration_ValidationErrors verifies the error taxonomy at the wire level.
func TestIntegration_ValidationErrors(t *testing.T) {
	ctx := setupIntegrationTest(t, "memory")

	t.Run("missing encryptedData", func(t *testing.T) {
		resp, body := ctx.makeRequest(t, http.MethodPost, "/v1/secrets", secretDTO.CreateSecretRequest{}, nil)
		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
		assert.Contains(t, string(body), "validation_error")
	})

	t.Run("payload is not base64", func(t *testing.T) {
		resp, body := ctx.makeRequest(t, http.MethodPost, "/v1/secrets", secretDTO.CreateSecretRequest{
			EncryptedData: "*** not base64 ***",
		}, nil)
		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
		assert.Contains(t, string(body), "validation_error")
	})

	t.Run("payload over the size cap", func(t *testing.T) {
		oversized := make([]byte, 100*1024+1)
		resp, body := ctx.makeRequest(t, http.MethodPost, "/v1/secrets", secretDTO.CreateSecretRequest{
			EncryptedData: base64.StdEncoding.EncodeToString(oversized),
		}, nil)
		assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
		assert.Contains(t, string(body), "payload_too_large")
	})

	t.Run("malformed id shapes are not found", func(t *testing.T) {
		for _, id := range []string{"abc", "with%20space", "0123456789abc"} {
			resp, _ := ctx.makeRequest(t, http.MethodGet, "/v1/secrets/"+id, nil, nil)
			assert.Equal(t, http.StatusNotFound, resp.StatusCode, "id %q", id)
		}
	})
}

// TestIntegration_PassphraseGuard verifies that a wrong passphrase never
// consumes the secret and the right one still retrieves it afterwards.
func TestIntegration_PassphraseGuard(t *testing.T) {
	ctx := setupIntegrationTest(t, "memory")

	key, err := client.GenerateKey()
	require.NoError(t, err)
	payload, err := client.Encrypt(key, []byte("guarded"), cryptoDomain.AESGCM)
	require.NoError(t, err)

	created := ctx.createSecret(t, secretDTO.CreateSecretRequest{
		EncryptedData: payload,
		Passphrase:    "open sesame",
	})

	// Wrong and missing passphrases are rejected without destroying the record
	resp, body := ctx.makeRequest(t, http.MethodGet, "/v1/secrets/"+created.ID, nil,
		map[string]string{"X-Passphrase": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Contains(t, string(body), "unauthorized")

	resp, _ = ctx.makeRequest(t, http.MethodGet, "/v1/secrets/"+created.ID, nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// The right passphrase retrieves and destroys it
	resp, body = ctx.makeRequest(t, http.MethodGet, "/v1/secrets/"+created.ID, nil,
		map[string]string{"X-Passphrase": "open sesame"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var retrieved secretDTO.RetrieveSecretResponse
	require.NoError(t, json.Unmarshal(body, &retrieved))
	assert.Equal(t, payload, retrieved.EncryptedData)

	resp, _ = ctx.makeRequest(t, http.MethodGet, "/v1/secrets/"+created.ID, nil,
		map[string]string{"X-Passphrase": "open sesame"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

// TestIntegration_SQLBackends runs the core lifecycle against real databases.
// Skipped automatically when the test databases are unreachable.
func TestIntegration_SQLBackends(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	testCases := []struct {
		name        string
		storeDriver string
	}{
		{"PostgreSQL", "postgres"},
		{"MySQL", "mysql"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := setupIntegrationTest(t, tc.storeDriver)

			key, err := client.GenerateKey()
			require.NoError(t, err)

			plaintext := []byte("database-backed secret")
			payload, err := client.Encrypt(key, plaintext, cryptoDomain.AESGCM)
			require.NoError(t, err)

			created := ctx.createSecret(t, secretDTO.CreateSecretRequest{
				EncryptedData: payload,
				Passphrase:    "db passphrase",
			})

			// Readiness reflects the live database
			resp, body := ctx.makeRequest(t, http.MethodGet, "/ready", nil, nil)
			assert.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Contains(t, string(body), `"database":"ok"`)

			// Wrong passphrase preserves the row
			resp, _ = ctx.makeRequest(t, http.MethodGet, "/v1/secrets/"+created.ID, nil,
				map[string]string{"X-Passphrase": "wrong"})
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

			// Correct passphrase retrieves and destroys
			resp, body = ctx.makeRequest(t, http.MethodGet, "/v1/secrets/"+created.ID, nil,
				map[string]string{"X-Passphrase": "db passphrase"})
			require.Equal(t, http.StatusOK, resp.StatusCode)

			var retrieved secretDTO.RetrieveSecretResponse
			require.NoError(t, json.Unmarshal(body, &retrieved))

			decrypted, err := client.Decrypt(key, retrieved.EncryptedData, cryptoDomain.AESGCM)
			require.NoError(t, err)
			assert.Equal(t, plaintext, decrypted)

			resp, _ = ctx.makeRequest(t, http.MethodGet, "/v1/secrets/"+created.ID, nil,
				map[string]string{"X-Passphrase": "db passphrase"})
			assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		})
	}
}
