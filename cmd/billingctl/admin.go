package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/prajwal851851/QRCODE-PROJECT/internal/auth"
	"github.com/prajwal851851/QRCODE-PROJECT/internal/bootstrap"
	"github.com/prajwal851851/QRCODE-PROJECT/internal/domain"
)

func reencryptCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reencrypt",
		Short: "Re-encrypt every stored gateway secret with the primary key",
		Long: `Decrypt every stored gateway credential with any configured key and
write it back encrypted with the primary key. Run after adding a new
primary key and moving the old one to ENCRYPTION_PREVIOUS_KEY_PATHS.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withComponents(cmd.Context(), func(ctx context.Context, c *bootstrap.Components) error {
				report, err := c.Vault.ReencryptAll(ctx)
				if err != nil {
					return fmt.Errorf("reencrypt: %w", err)
				}
				if err := printJSON(cmd.OutOrStdout(), report); err != nil {
					return err
				}
				if len(report.Failed) > 0 {
					return fmt.Errorf("%d credentials could not be decrypted with any configured key", len(report.Failed))
				}
				return nil
			})
		},
	}
}

func suspendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "suspend <admin-id>",
		Short: "Suspend a tenant's subscription",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withComponents(cmd.Context(), func(ctx context.Context, c *bootstrap.Components) error {
				sub, err := c.Billing.Suspend(ctx, args[0])
				if err != nil {
					return fmt.Errorf("suspend %s: %w", args[0], err)
				}
				return printJSON(cmd.OutOrStdout(), sub)
			})
		},
	}
}

func tokenCmd() *cobra.Command {
	var (
		email string
		ttl   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token <admin-id>",
		Short: "Issue an admin bearer token signed with JWT_SECRET",
		Long: `Issue an admin bearer token for support and local testing.
Refused in production.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.IsProduction() {
				return fmt.Errorf("token issuing is disabled in production")
			}
			if ttl <= 0 {
				ttl = cfg.Auth.TokenTTL
			}
			tokens, err := auth.NewJWTManager([]byte(cfg.Auth.JWTSecret), cfg.Auth.Issuer, ttl)
			if err != nil {
				return fmt.Errorf("JWT_SECRET must be set: %w", err)
			}
			token, err := tokens.GenerateToken(domain.Admin{ID: args[0], Email: email})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "email claim of the admin")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (default JWT_EXPIRY_MINUTES)")
	return cmd
}
