package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	cryptoDomain "github.com/allisson/onetime/internal/crypto/domain"
	cryptoService "github.com/allisson/onetime/internal/crypto/service"
	"github.com/allisson/onetime/internal/metrics"
	secretHTTP "github.com/allisson/onetime/internal/secret/http"
	"github.com/allisson/onetime/internal/secret/repository"
	secretService "github.com/allisson/onetime/internal/secret/service"
	secretUseCase "github.com/allisson/onetime/internal/secret/usecase"
)

// TestMain sets Gin to test mode for all tests in this package.
func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestSecretHandler(t *testing.T) *secretHTTP.SecretHandler {
	t.Helper()

	masterKey, err := cryptoDomain.NewMasterKey(bytes.Repeat([]byte{0x11}, 32))
	require.NoError(t, err)

	useCase := secretUseCase.NewSecretUseCase(
		repository.NewMemorySecretStore(),
		cryptoService.NewEnvelopeCipher(cryptoService.NewAEADManager(), cryptoDomain.AESGCM),
		masterKey,
		secretService.NewPassphraseService(),
	)
	return secretHTTP.NewSecretHandler(useCase, discardLogger())
}

func newTestServer(t *testing.T, cfg RouterConfig) *Server {
	t.Helper()
	if cfg.SecretHandler == nil {
		cfg.SecretHandler = newTestSecretHandler(t)
	}
	server := NewServer(nil, "localhost", 8080, discardLogger())
	server.SetupRouter(cfg)
	return server
}

func TestServer_HealthEndpoint(t *testing.T) {
	server := newTestServer(t, RouterConfig{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	server.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "healthy", response["status"])
}

func TestServer_ReadyEndpoint(t *testing.T) {
	t.Run("memory store is always ready", func(t *testing.T) {
		server := newTestServer(t, RouterConfig{})

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/ready", nil)
		server.Router().ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("healthy database reports ok", func(t *testing.T) {
		db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		defer func() { _ = db.Close() }()
		mock.ExpectPing()

		server := NewServer(db, "localhost", 8080, discardLogger())
		server.SetupRouter(RouterConfig{SecretHandler: newTestSecretHandler(t)})

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/ready", nil)
		server.Router().ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"database":"ok"`)
	})

	t.Run("unreachable database reports not ready", func(t *testing.T) {
		db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		mock.ExpectClose()
		require.NoError(t, db.Close())

		server := NewServer(db, "localhost", 8080, discardLogger())
		server.SetupRouter(RouterConfig{SecretHandler: newTestSecretHandler(t)})

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/ready", nil)
		server.Router().ServeHTTP(w, req)

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Contains(t, w.Body.String(), "not_ready")
		assert.Contains(t, w.Body.String(), `"database":"error"`)
	})
}

func TestServer_RequestIDHeader(t *testing.T) {
	server := newTestServer(t, RouterConfig{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	server.Router().ServeHTTP(w, req)

	requestID := w.Header().Get("X-Request-Id")
	require.NotEmpty(t, requestID)

	parsed, err := uuid.Parse(requestID)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, parsed)
}

func TestServer_NotFoundEndpoint(t *testing.T) {
	server := newTestServer(t, RouterConfig{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/nonexistent", nil)
	server.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServer_NoMetricsEndpoint(t *testing.T) {
	// The API server must not expose /metrics; only the metrics server does.
	server := newTestServer(t, RouterConfig{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	server.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCustomLoggerMiddleware(t *testing.T) {
	router := gin.New()
	router.Use(requestid.New(requestid.WithGenerator(func() string {
		return uuid.Must(uuid.NewV7()).String()
	})))
	router.Use(CustomLoggerMiddleware(discardLogger()))
	router.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "test"})
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimitMiddleware(t *testing.T) {
	t.Run("disabled returns nil", func(t *testing.T) {
		assert.Nil(t, createRateLimitMiddleware(context.Background(), false, 10, 10, discardLogger()))
	})

	t.Run("requests over the burst are rejected", func(t *testing.T) {
		server := newTestServer(t, RouterConfig{
			RateLimitEnabled:        true,
			RateLimitRequestsPerSec: 1,
			RateLimitBurst:          2,
		})

		codes := make([]int, 0, 3)
		for range 3 {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/health", nil)
			server.Router().ServeHTTP(w, req)
			codes = append(codes, w.Code)
		}

		assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
	})

	t.Run("eviction loop stops on context cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())

		rl := &rateLimiter{
			clients: map[string]*clientLimiter{
				"192.0.2.1": {
					limiter:  rate.NewLimiter(1, 1),
					lastSeen: time.Now().Add(-10 * time.Minute),
				},
			},
			rps:   1,
			burst: 1,
		}

		done := make(chan struct{})
		go func() {
			rl.evictStale(ctx, 5*time.Millisecond)
			close(done)
		}()

		assert.Eventually(t, func() bool {
			rl.mu.Lock()
			defer rl.mu.Unlock()
			return len(rl.clients) == 0
		}, time.Second, 5*time.Millisecond)

		cancel()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("eviction goroutine did not stop after cancellation")
		}
	})
}

func TestCORSMiddleware(t *testing.T) {
	t.Run("disabled returns nil", func(t *testing.T) {
		assert.Nil(t, createCORSMiddleware(false, "https://example.com", discardLogger()))
	})

	t.Run("enabled without origins returns nil", func(t *testing.T) {
		assert.Nil(t, createCORSMiddleware(true, "", discardLogger()))
	})

	t.Run("allowed origin gets CORS headers", func(t *testing.T) {
		server := newTestServer(t, RouterConfig{
			CORSEnabled:      true,
			CORSAllowOrigins: "https://example.com",
		})

		// The request host must differ from the Origin, otherwise the
		// middleware treats it as same-origin and emits no headers.
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "http://api.internal/health", nil)
		req.Header.Set("Origin", "https://example.com")
		server.Router().ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "https://example.com", w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("disallowed origin gets no CORS headers", func(t *testing.T) {
		server := newTestServer(t, RouterConfig{
			CORSEnabled:      true,
			CORSAllowOrigins: "https://example.com",
		})

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "http://api.internal/health", nil)
		req.Header.Set("Origin", "https://evil.test")
		server.Router().ServeHTTP(w, req)

		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestParseOrigins(t *testing.T) {
	assert.Nil(t, parseOrigins(""))
	assert.Equal(t, []string{"https://a.com", "https://b.com"}, parseOrigins(" https://a.com, https://b.com "))
}

func TestMetricsServer_Endpoints(t *testing.T) {
	provider, err := metrics.NewProvider("test_app")
	require.NoError(t, err)
	defer func() {
		assert.NoError(t, provider.Shutdown(context.Background()))
	}()

	metricsServer := NewMetricsServer("localhost", 8081, discardLogger(), provider)
	require.NotNil(t, metricsServer)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	metricsServer.GetHandler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}
