package commands

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"

	cryptoDomain "github.com/allisson/onetime/internal/crypto/domain"
	cryptoService "github.com/allisson/onetime/internal/crypto/service"
)

// RunCreateMasterKey generates a cryptographically secure 32-byte master key for
// envelope encryption and prints it as environment variable assignments.
// Key material is zeroed from memory after encoding.
//
// Without a KMS key URI the key is printed as plain base64 for MASTER_KEY.
// With a KMS key URI the key is encrypted through the keeper first, so the
// environment only ever holds ciphertext. For local development use
// kmsKeyURI="base64key://<32-byte-base64-key>"; in production use a cloud KMS
// URI (gcpkms://..., awskms://..., azurekeyvault://..., hashivault://...).
func RunCreateMasterKey(ctx context.Context, kmsService cryptoService.KMSService, out io.Writer, kmsKeyURI string) error {
	// Generate a cryptographically secure 32-byte master key
	masterKey := make([]byte, cryptoDomain.MasterKeySize)
	if _, err := rand.Read(masterKey); err != nil {
		return fmt.Errorf("failed to generate master key: %w", err)
	}
	defer cryptoDomain.Zero(masterKey)

	if kmsKeyURI == "" {
		fmt.Fprintln(out, "# Master Key Configuration (plain mode)")
		fmt.Fprintln(out, "# Copy this environment variable to your .env file or secrets manager.")
		fmt.Fprintln(out, "# Anyone holding this value can decrypt every stored envelope; prefer")
		fmt.Fprintln(out, "# KMS mode (--kms-key-uri) outside local development.")
		fmt.Fprintln(out)
		fmt.Fprintf(out, "MASTER_KEY=\"%s\"\n", base64.StdEncoding.EncodeToString(masterKey))
		return nil
	}

	// Create KMS service and open keeper
	keeperInterface, err := kmsService.OpenKeeper(ctx, kmsKeyURI)
	if err != nil {
		return fmt.Errorf("failed to open KMS keeper: %w", err)
	}
	defer func() {
		if closeErr := keeperInterface.Close(); closeErr != nil {
			fmt.Fprintf(out, "# Warning: failed to close KMS keeper: %v\n", closeErr)
		}
	}()

	// The keeper interface only requires Decrypt; wrapping needs Encrypt too.
	keeper, ok := keeperInterface.(interface {
		Encrypt(ctx context.Context, plaintext []byte) ([]byte, error)
	})
	if !ok {
		return fmt.Errorf("KMS keeper does not support encryption")
	}

	ciphertext, err := keeper.Encrypt(ctx, masterKey)
	if err != nil {
		return fmt.Errorf("failed to encrypt master key with KMS: %w", err)
	}

	fmt.Fprintln(out, "# Master Key Configuration (KMS mode)")
	fmt.Fprintln(out, "# Copy these environment variables to your .env file or secrets manager.")
	fmt.Fprintln(out, "# MASTER_KEY holds KMS ciphertext and is decrypted at startup.")
	fmt.Fprintln(out)
	fmt.Fprintf(out, "KMS_KEY_URI=\"%s\"\n", kmsKeyURI)
	fmt.Fprintf(out, "MASTER_KEY=\"%s\"\n", base64.StdEncoding.EncodeToString(ciphertext))
	return nil
}
