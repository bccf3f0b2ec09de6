// Package main provides the entry point for the application with CLI commands.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/allisson/onetime/cmd/app/commands"
	"github.com/allisson/onetime/internal/app"
	"github.com/allisson/onetime/internal/config"
	cryptoService "github.com/allisson/onetime/internal/crypto/service"
)

const version = "1.0.0"

func main() {
	cmd := &cli.Command{
		Name:    "onetime",
		Usage:   "One-time secret delivery service",
		Version: version,
		Commands: []*cli.Command{
			{
				Name:  "server",
				Usage: "Start the HTTP server",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return commands.RunServer(ctx, version)
				},
			},
			{
				Name:  "migrate",
				Usage: "Run database migrations",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					cfg := config.Load()
					container := app.NewContainer(cfg)
					return commands.RunMigrations(container.Logger(), cfg.StoreDriver, cfg.DBConnectionString)
				},
			},
			{
				Name:  "create-master-key",
				Usage: "Generate a new master key for envelope encryption",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "kms-key-uri",
						Aliases: []string{"k"},
						Value:   "",
						Usage:   "KMS key URI used to wrap the master key (omit for plain base64 output)",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return commands.RunCreateMasterKey(
						ctx,
						cryptoService.NewKMSService(),
						os.Stdout,
						cmd.String("kms-key-uri"),
					)
				},
			},
			{
				Name:  "clean-expired-secrets",
				Usage: "Delete secrets whose TTL has elapsed",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    "dry-run",
						Aliases: []string{"n"},
						Value:   false,
						Usage:   "Show how many secrets would be deleted without deleting",
					},
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Value:   "text",
						Usage:   "Output format: 'text' or 'json'",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					cfg := config.Load()
					container := app.NewContainer(cfg)
					logger := container.Logger()
					defer func() {
						if err := container.Shutdown(context.Background()); err != nil {
							logger.Error("failed to shutdown container", slog.Any("error", err))
						}
					}()

					store, err := container.SecretStore()
					if err != nil {
						return fmt.Errorf("failed to initialize secret store: %w", err)
					}
					return commands.RunCleanExpiredSecrets(
						ctx,
						store,
						logger,
						os.Stdout,
						cmd.Bool("dry-run"),
						cmd.String("format"),
					)
				},
			},
			{
				Name:  "generate-key",
				Usage: "Generate a client key for sender-side encryption",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return commands.RunGenerateKey(os.Stdout)
				},
			},
			{
				Name:  "encrypt",
				Usage: "Encrypt a message with a client key, producing the encryptedData payload",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "key",
						Aliases:  []string{"k"},
						Required: true,
						Usage:    "Client key produced by generate-key",
					},
					&cli.StringFlag{
						Name:     "message",
						Aliases:  []string{"m"},
						Required: true,
						Usage:    "Plaintext message to encrypt",
					},
					&cli.StringFlag{
						Name:    "algorithm",
						Aliases: []string{"alg"},
						Value:   "aes-gcm",
						Usage:   "Encryption algorithm to use (aes-gcm or chacha20-poly1305)",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return commands.RunEncryptSecret(
						os.Stdout,
						cmd.String("key"),
						cmd.String("message"),
						cmd.String("algorithm"),
					)
				},
			},
			{
				Name:  "decrypt",
				Usage: "Decrypt a retrieved encryptedData payload with a client key",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "key",
						Aliases:  []string{"k"},
						Required: true,
						Usage:    "Client key produced by generate-key",
					},
					&cli.StringFlag{
						Name:     "payload",
						Aliases:  []string{"p"},
						Required: true,
						Usage:    "encryptedData payload returned by the API",
					},
					&cli.StringFlag{
						Name:    "algorithm",
						Aliases: []string{"alg"},
						Value:   "aes-gcm",
						Usage:   "Encryption algorithm to use (aes-gcm or chacha20-poly1305)",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return commands.RunDecryptSecret(
						os.Stdout,
						cmd.String("key"),
						cmd.String("payload"),
						cmd.String("algorithm"),
					)
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.Any("error", err))
		os.Exit(1)
	}
}
