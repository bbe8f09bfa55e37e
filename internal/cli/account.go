package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/bjhnbjh/vibecoding-camera/internal/auth"
)

func newUsageCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "usage",
		Short: "Show plan usage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			u, err := c.Usage(cmd.Context())
			if err != nil {
				return err
			}
			printUsage(a.out, u)
			return nil
		},
	}
}

func newSummaryCommand(a *app) *cobra.Command {
	var date string

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Show completed meals and totals for a day",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var day time.Time
			if date != "" {
				d, err := time.Parse("2006-01-02", date)
				if err != nil {
					return fmt.Errorf("invalid --date %q, want YYYY-MM-DD", date)
				}
				day = d
			}

			c, err := a.client()
			if err != nil {
				return err
			}
			s, err := c.Summary(cmd.Context(), day)
			if err != nil {
				return err
			}
			printSummary(a.out, s)
			return nil
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "UTC day as YYYY-MM-DD (default today)")
	return cmd
}

// newTokenCommand mints a development token signed with the server's
// JWT_SECRET. Production tokens come from the identity provider.
func newTokenCommand(a *app) *cobra.Command {
	var (
		secret   string
		audience string
		userID   string
		email    string
		validity time.Duration
		save     bool
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a development access token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			secret = firstNonEmpty(secret, os.Getenv("JWT_SECRET"))
			if secret == "" {
				return fmt.Errorf("--secret or JWT_SECRET is required")
			}
			audience = firstNonEmpty(audience, os.Getenv("JWT_AUDIENCE"))

			id := uuid.New()
			if userID != "" {
				parsed, err := uuid.Parse(userID)
				if err != nil {
					return fmt.Errorf("invalid --user %q", userID)
				}
				id = parsed
			}

			tok, err := auth.GenerateToken(id, email, audience, []byte(secret), validity)
			if err != nil {
				return err
			}

			if !save {
				fmt.Fprintln(a.out, tok)
				return nil
			}

			cfg := a.file
			cfg.Token = tok
			cfg.Server = a.server
			if err := SaveFileConfig(a.configPath, cfg); err != nil {
				return err
			}
			goodColor.Fprintf(a.out, "Saved token for user %s to %s\n", id, a.configPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&secret, "secret", "", "HMAC secret (env JWT_SECRET)")
	cmd.Flags().StringVar(&audience, "audience", "", "audience claim (env JWT_AUDIENCE)")
	cmd.Flags().StringVar(&userID, "user", "", "user id (default random)")
	cmd.Flags().StringVar(&email, "email", "", "email claim")
	cmd.Flags().DurationVar(&validity, "ttl", 24*time.Hour, "token lifetime")
	cmd.Flags().BoolVar(&save, "save", false, "store the token in the config file")
	return cmd
}
