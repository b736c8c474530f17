package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/propertyhub/backoffice/internal/utils"
	"github.com/propertyhub/backoffice/pkg/jwt"
	"github.com/spf13/cobra"
)

func newGenSecretCmd() *cobra.Command {
	var size int

	cmd := &cobra.Command{
		Use:   "gen-secret",
		Short: "Generate a random JWT_SECRET",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if size < 32 {
				return fmt.Errorf("--bytes must be at least 32, got %d", size)
			}
			secret, err := utils.GenerateSecret(size)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "JWT_SECRET=%s\n", secret)
			return nil
		},
	}

	cmd.Flags().IntVar(&size, "bytes", 32, "number of random bytes")
	return cmd
}

// newDevTokenCmd issues access tokens for local testing; production tokens
// come from the identity service.
func newDevTokenCmd() *cobra.Command {
	var (
		secret string
		issuer string
		userID string
		email  string
		roles  []string
		ttl    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "dev-token",
		Short: "Issue an access token for local testing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				return fmt.Errorf("--secret or JWT_SECRET is required")
			}
			id := uuid.New()
			if userID != "" {
				parsed, err := uuid.Parse(userID)
				if err != nil {
					return fmt.Errorf("invalid --user: %s", userID)
				}
				id = parsed
			}

			token, err := jwt.NewService(secret, issuer, ttl).GenerateAccessToken(id, email, roles)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	defaultIssuer := os.Getenv("JWT_ISSUER")
	if defaultIssuer == "" {
		defaultIssuer = "propertyhub"
	}

	cmd.Flags().StringVar(&secret, "secret", os.Getenv("JWT_SECRET"), "signing secret")
	cmd.Flags().StringVar(&issuer, "issuer", defaultIssuer, "token issuer")
	cmd.Flags().StringVar(&userID, "user", "", "user id (random when empty)")
	cmd.Flags().StringVar(&email, "email", "", "email claim")
	cmd.Flags().StringSliceVar(&roles, "role", []string{"admin"}, "roles to grant")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	return cmd
}
