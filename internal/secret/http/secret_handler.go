// Package http provides HTTP handlers for one-time secret operations.
// Secrets are submitted pre-encrypted by the client, wrapped in a server-side
// envelope at rest, and destroyed by their first successful retrieval.
package http

import (
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/allisson/onetime/internal/httputil"
	"github.com/allisson/onetime/internal/secret/http/dto"
	secretUseCase "github.com/allisson/onetime/internal/secret/usecase"
	customValidation "github.com/allisson/onetime/internal/validation"
)

// PassphraseHeader carries the optional retrieval passphrase. A header keeps
// the passphrase out of URLs and access logs.
const PassphraseHeader = "X-Passphrase"

// SecretHandler handles HTTP requests for one-time secret operations.
type SecretHandler struct {
	useCase secretUseCase.SecretUseCase
	logger  *slog.Logger
}

// NewSecretHandler creates a new secret handler with required dependencies.
func NewSecretHandler(useCase secretUseCase.SecretUseCase, logger *slog.Logger) *SecretHandler {
	return &SecretHandler{
		useCase: useCase,
		logger:  logger,
	}
}

// CreateHandler stores a client-encrypted payload.
// POST /v1/secrets
// Returns 201 Created with the minted id and effective expiry.
func (h *SecretHandler) CreateHandler(c *gin.Context) {
	var req dto.CreateSecretRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	ciphertext, err := base64.StdEncoding.DecodeString(req.EncryptedData)
	if err != nil {
		httputil.HandleValidationErrorGin(
			c,
			fmt.Errorf("invalid base64 encryptedData: %w", err),
			h.logger,
		)
		return
	}

	secret, err := h.useCase.Create(c.Request.Context(), ciphertext, req.ExpiresIn, req.Passphrase)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusCreated, dto.MapSecretToCreateResponse(secret))
}

// RetrieveHandler retrieves and destroys a secret by id.
// GET /v1/secrets/:id with an optional X-Passphrase header.
// Returns 200 OK with the original encrypted payload; any absent, expired, or
// already retrieved id returns 404.
func (h *SecretHandler) RetrieveHandler(c *gin.Context) {
	id := c.Param("id")
	passphrase := c.GetHeader(PassphraseHeader)

	payload, err := h.useCase.Retrieve(c.Request.Context(), id, passphrase)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.NewRetrieveSecretResponse(payload))
}
