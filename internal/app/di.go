// Package app provides dependency injection container for assembling application components.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/allisson/onetime/internal/config"
	cryptoDomain "github.com/allisson/onetime/internal/crypto/domain"
	cryptoService "github.com/allisson/onetime/internal/crypto/service"
	"github.com/allisson/onetime/internal/database"
	"github.com/allisson/onetime/internal/http"
	"github.com/allisson/onetime/internal/metrics"
	secretHTTP "github.com/allisson/onetime/internal/secret/http"
	"github.com/allisson/onetime/internal/secret/repository"
	secretService "github.com/allisson/onetime/internal/secret/service"
	secretUseCase "github.com/allisson/onetime/internal/secret/usecase"
)

// Container holds all application dependencies and provides methods to access them.
// It follows the lazy initialization pattern - components are created on first access.
type Container struct {
	// Configuration
	config *config.Config

	// Infrastructure
	logger          *slog.Logger
	db              *sql.DB
	txManager       database.TxManager
	metricsProvider *metrics.Provider

	// Crypto
	masterKey      *cryptoDomain.MasterKey
	envelopeCipher cryptoService.Envelope

	// Services
	passphraseService secretService.PassphraseService

	// Stores and Use Cases
	secretStore   repository.SecretStore
	secretUseCase secretUseCase.SecretUseCase

	// HTTP
	secretHandler *secretHTTP.SecretHandler
	httpServer    *http.Server
	metricsServer *http.MetricsServer

	// Initialization flags and mutex for thread-safety
	mu                    sync.Mutex
	loggerInit            sync.Once
	dbInit                sync.Once
	txManagerInit         sync.Once
	metricsProviderInit   sync.Once
	masterKeyInit         sync.Once
	envelopeCipherInit    sync.Once
	passphraseServiceInit sync.Once
	secretStoreInit       sync.Once
	secretUseCaseInit     sync.Once
	secretHandlerInit     sync.Once
	httpServerInit        sync.Once
	metricsServerInit     sync.Once
	initErrors            map[string]error
}

// NewContainer creates a new dependency injection container with the provided configuration.
func NewContainer(cfg *config.Config) *Container {
	return &Container{
		config:     cfg,
		initErrors: make(map[string]error),
	}
}

// Config returns the application configuration.
func (c *Container) Config() *config.Config {
	return c.config
}

// Logger returns the configured logger instance.
// It creates a new logger on first access based on the log level in configuration.
func (c *Container) Logger() *slog.Logger {
	c.loggerInit.Do(func() {
		c.logger = c.initLogger()
	})
	return c.logger
}

// DB returns the database connection. With the in-memory store driver there is
// no database and DB returns nil without error.
func (c *Container) DB() (*sql.DB, error) {
	c.dbInit.Do(func() {
		if c.config.StoreDriver == "memory" {
			return
		}
		db, err := c.initDB()
		if err != nil {
			c.initErrors["db"] = err
			return
		}
		c.db = db
	})
	if storedErr, exists := c.initErrors["db"]; exists {
		return nil, storedErr
	}
	return c.db, nil
}

// TxManager returns the transaction manager.
// It requires a database connection to be initialized first.
func (c *Container) TxManager() (database.TxManager, error) {
	c.txManagerInit.Do(func() {
		db, err := c.DB()
		if err != nil {
			c.initErrors["txManager"] = fmt.Errorf("failed to get database for tx manager: %w", err)
			return
		}
		if db == nil {
			c.initErrors["txManager"] = fmt.Errorf("tx manager requires a database, store driver is %q", c.config.StoreDriver)
			return
		}
		c.txManager = database.NewTxManager(db)
	})
	if storedErr, exists := c.initErrors["txManager"]; exists {
		return nil, storedErr
	}
	return c.txManager, nil
}

// MasterKey returns the envelope encryption master key loaded from the
// environment. When a KMS key URI is configured, the environment value is
// treated as KMS ciphertext and decrypted through the keeper.
func (c *Container) MasterKey() (*cryptoDomain.MasterKey, error) {
	c.masterKeyInit.Do(func() {
		masterKey, err := c.initMasterKey()
		if err != nil {
			c.initErrors["masterKey"] = err
			return
		}
		c.masterKey = masterKey
	})
	if storedErr, exists := c.initErrors["masterKey"]; exists {
		return nil, storedErr
	}
	return c.masterKey, nil
}

// EnvelopeCipher returns the server-side envelope cipher.
func (c *Container) EnvelopeCipher() (cryptoService.Envelope, error) {
	c.envelopeCipherInit.Do(func() {
		alg, err := cryptoDomain.ParseAlgorithm(c.config.EnvelopeAlgorithm)
		if err != nil {
			c.initErrors["envelopeCipher"] = fmt.Errorf("invalid envelope algorithm: %w", err)
			return
		}
		c.envelopeCipher = cryptoService.NewEnvelopeCipher(cryptoService.NewAEADManager(), alg)
	})
	if storedErr, exists := c.initErrors["envelopeCipher"]; exists {
		return nil, storedErr
	}
	return c.envelopeCipher, nil
}

// PassphraseService returns the passphrase hashing service.
func (c *Container) PassphraseService() secretService.PassphraseService {
	c.passphraseServiceInit.Do(func() {
		c.passphraseService = secretService.NewPassphraseService()
	})
	return c.passphraseService
}

// MetricsProvider returns the metrics provider, or nil when metrics are disabled.
func (c *Container) MetricsProvider() (*metrics.Provider, error) {
	c.metricsProviderInit.Do(func() {
		if !c.config.MetricsEnabled {
			return
		}
		provider, err := metrics.NewProvider(c.config.MetricsNamespace)
		if err != nil {
			c.initErrors["metricsProvider"] = fmt.Errorf("failed to create metrics provider: %w", err)
			return
		}
		c.metricsProvider = provider
	})
	if storedErr, exists := c.initErrors["metricsProvider"]; exists {
		return nil, storedErr
	}
	return c.metricsProvider, nil
}

// SecretStore returns the secret store selected by the store driver.
func (c *Container) SecretStore() (repository.SecretStore, error) {
	c.secretStoreInit.Do(func() {
		store, err := c.initSecretStore()
		if err != nil {
			c.initErrors["secretStore"] = err
			return
		}
		c.secretStore = store
	})
	if storedErr, exists := c.initErrors["secretStore"]; exists {
		return nil, storedErr
	}
	return c.secretStore, nil
}

// SecretUseCase returns the secret use case instance.
func (c *Container) SecretUseCase() (secretUseCase.SecretUseCase, error) {
	c.secretUseCaseInit.Do(func() {
		useCase, err := c.initSecretUseCase()
		if err != nil {
			c.initErrors["secretUseCase"] = err
			return
		}
		c.secretUseCase = useCase
	})
	if storedErr, exists := c.initErrors["secretUseCase"]; exists {
		return nil, storedErr
	}
	return c.secretUseCase, nil
}

// SecretHandler returns the secret HTTP handler instance.
func (c *Container) SecretHandler() (*secretHTTP.SecretHandler, error) {
	c.secretHandlerInit.Do(func() {
		useCase, err := c.SecretUseCase()
		if err != nil {
			c.initErrors["secretHandler"] = fmt.Errorf("failed to get secret use case for handler: %w", err)
			return
		}
		c.secretHandler = secretHTTP.NewSecretHandler(useCase, c.Logger())
	})
	if storedErr, exists := c.initErrors["secretHandler"]; exists {
		return nil, storedErr
	}
	return c.secretHandler, nil
}

// HTTPServer returns the HTTP API server instance.
func (c *Container) HTTPServer() (*http.Server, error) {
	c.httpServerInit.Do(func() {
		server, err := c.initHTTPServer()
		if err != nil {
			c.initErrors["httpServer"] = err
			return
		}
		c.httpServer = server
	})
	if storedErr, exists := c.initErrors["httpServer"]; exists {
		return nil, storedErr
	}
	return c.httpServer, nil
}

// MetricsServer returns the metrics server instance, or nil when metrics are disabled.
func (c *Container) MetricsServer() (*http.MetricsServer, error) {
	c.metricsServerInit.Do(func() {
		if !c.config.MetricsEnabled {
			return
		}
		provider, err := c.MetricsProvider()
		if err != nil {
			c.initErrors["metricsServer"] = fmt.Errorf("failed to get metrics provider for metrics server: %w", err)
			return
		}
		c.metricsServer = http.NewMetricsServer(
			c.config.ServerHost,
			c.config.MetricsPort,
			c.Logger(),
			provider,
		)
	})
	if storedErr, exists := c.initErrors["metricsServer"]; exists {
		return nil, storedErr
	}
	return c.metricsServer, nil
}

// Shutdown performs cleanup of all initialized resources.
// It should be called when the application is shutting down.
func (c *Container) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var shutdownErrors []error

	if c.httpServer != nil {
		if err := c.httpServer.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("http server shutdown: %w", err))
		}
	}

	if c.metricsServer != nil {
		if err := c.metricsServer.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("metrics server shutdown: %w", err))
		}
	}

	if c.metricsProvider != nil {
		if err := c.metricsProvider.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("metrics provider shutdown: %w", err))
		}
	}

	if c.db != nil {
		if err := c.db.Close(); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("database close: %w", err))
		}
	}

	// Zero the master key material last so in-flight requests finished above
	// never see a wiped key.
	if c.masterKey != nil {
		c.masterKey.Close()
	}

	if len(shutdownErrors) > 0 {
		return fmt.Errorf("shutdown errors: %v", shutdownErrors)
	}

	return nil
}

// initLogger creates and configures a structured logger based on the log level.
func (c *Container) initLogger() *slog.Logger {
	var logLevel slog.Level
	switch c.config.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})

	return slog.New(handler)
}

// initDB creates and configures the database connection.
func (c *Container) initDB() (*sql.DB, error) {
	db, err := database.Connect(database.Config{
		Driver:             c.config.StoreDriver,
		ConnectionString:   c.config.DBConnectionString,
		MaxOpenConnections: c.config.DBMaxOpenConnections,
		MaxIdleConnections: c.config.DBMaxIdleConnections,
		ConnMaxLifetime:    c.config.DBConnMaxLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// initMasterKey loads the master key from the environment, decrypting it
// through KMS when a key URI is configured.
func (c *Container) initMasterKey() (*cryptoDomain.MasterKey, error) {
	if c.config.KMSKeyURI == "" {
		masterKey, err := cryptoDomain.LoadMasterKeyFromEnv()
		if err != nil {
			return nil, fmt.Errorf("failed to load master key: %w", err)
		}
		return masterKey, nil
	}

	kmsService := cryptoService.NewKMSService()
	keeper, err := kmsService.OpenKeeper(context.Background(), c.config.KMSKeyURI)
	if err != nil {
		return nil, fmt.Errorf("failed to open KMS keeper: %w", err)
	}
	defer func() {
		if closeErr := keeper.Close(); closeErr != nil {
			c.Logger().Error("failed to close KMS keeper", slog.Any("error", closeErr))
		}
	}()

	masterKey, err := cryptoDomain.LoadMasterKeyFromEnvWithKMS(context.Background(), keeper)
	if err != nil {
		return nil, fmt.Errorf("failed to load KMS-wrapped master key: %w", err)
	}
	return masterKey, nil
}

// initSecretStore creates the secret store instance based on the store driver.
func (c *Container) initSecretStore() (repository.SecretStore, error) {
	switch c.config.StoreDriver {
	case "memory":
		return repository.NewMemorySecretStore(), nil
	case "postgres", "mysql":
		db, err := c.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get database for secret store: %w", err)
		}
		txManager, err := c.TxManager()
		if err != nil {
			return nil, fmt.Errorf("failed to get tx manager for secret store: %w", err)
		}
		if c.config.StoreDriver == "mysql" {
			return repository.NewMySQLSecretStore(db, txManager), nil
		}
		return repository.NewPostgreSQLSecretStore(db, txManager), nil
	default:
		return nil, fmt.Errorf("unsupported store driver: %s", c.config.StoreDriver)
	}
}

// initSecretUseCase creates the secret use case with all its dependencies,
// wrapping it with the metrics decorator when metrics are enabled.
func (c *Container) initSecretUseCase() (secretUseCase.SecretUseCase, error) {
	store, err := c.SecretStore()
	if err != nil {
		return nil, fmt.Errorf("failed to get secret store for secret use case: %w", err)
	}

	envelope, err := c.EnvelopeCipher()
	if err != nil {
		return nil, fmt.Errorf("failed to get envelope cipher for secret use case: %w", err)
	}

	masterKey, err := c.MasterKey()
	if err != nil {
		return nil, fmt.Errorf("failed to get master key for secret use case: %w", err)
	}

	useCase := secretUseCase.NewSecretUseCase(store, envelope, masterKey, c.PassphraseService())

	if !c.config.MetricsEnabled {
		return useCase, nil
	}

	provider, err := c.MetricsProvider()
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics provider for secret use case: %w", err)
	}
	businessMetrics, err := metrics.NewBusinessMetrics(provider.MeterProvider(), c.config.MetricsNamespace)
	if err != nil {
		return nil, fmt.Errorf("failed to create business metrics: %w", err)
	}
	return secretUseCase.NewSecretUseCaseWithMetrics(useCase, businessMetrics), nil
}

// initHTTPServer creates the HTTP server with all its dependencies.
func (c *Container) initHTTPServer() (*http.Server, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for http server: %w", err)
	}

	secretHandler, err := c.SecretHandler()
	if err != nil {
		return nil, fmt.Errorf("failed to get secret handler for http server: %w", err)
	}

	server := http.NewServer(db, c.config.ServerHost, c.config.ServerPort, c.Logger())

	routerConfig := http.RouterConfig{
		SecretHandler:           secretHandler,
		MetricsNamespace:        c.config.MetricsNamespace,
		CORSEnabled:             c.config.CORSEnabled,
		CORSAllowOrigins:        c.config.CORSAllowOrigins,
		RateLimitEnabled:        c.config.RateLimitEnabled,
		RateLimitRequestsPerSec: c.config.RateLimitRequestsPerSec,
		RateLimitBurst:          c.config.RateLimitBurst,
	}

	if c.config.MetricsEnabled {
		provider, err := c.MetricsProvider()
		if err != nil {
			return nil, fmt.Errorf("failed to get metrics provider for http server: %w", err)
		}
		routerConfig.MeterProvider = provider.MeterProvider()
	}

	server.SetupRouter(routerConfig)
	return server, nil
}
