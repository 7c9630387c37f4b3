package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/tandem/internal/client/config"
	"github.com/dmitrijs2005/tandem/internal/server/auth"
	"github.com/dmitrijs2005/tandem/internal/server/models"
	"github.com/dmitrijs2005/tandem/internal/shared"
	"github.com/spf13/cobra"
)

func newTokenCmd(app *App) *cobra.Command {
	var (
		user string
		role string
		ttl  time.Duration
		save bool
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an access token with the coordinator's signing secret",
		Long:  "Mint an access token for local and operator use. The signing secret is read from the terminal without echo.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r := models.Role(role)
			switch r {
			case models.RoleLearner, models.RoleTutor, models.RoleAdmin:
			default:
				return fmt.Errorf("unknown role %q", role)
			}

			secret, err := GetSecret("Signing secret", cmd.InOrStdin(), cmd.ErrOrStderr())
			if err != nil {
				return fmt.Errorf("read secret: %w", err)
			}
			defer shared.WipeByteArray(secret)
			if len(secret) == 0 {
				return errors.New("signing secret is empty")
			}

			token, err := auth.GenerateToken(user, r, secret, ttl)
			if err != nil {
				return err
			}

			if save {
				if err := config.Set(app.configPath, config.KeyToken, token); err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "token saved to %s\n", app.configPath)
				return nil
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "user id")
	cmd.Flags().StringVar(&role, "role", string(models.RoleLearner), "learner, tutor or admin")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token validity")
	cmd.Flags().BoolVar(&save, "save", false, "store the token in the config file")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or change tandemctl settings",
	}

	cmd.AddCommand(&cobra.Command{
		Use:       "set <key> <value>",
		Short:     "Persist a setting",
		Args:      cobra.ExactArgs(2),
		ValidArgs: config.Keys,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Set(app.configPath, args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s updated\n", args[0])
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print the config file location",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), app.configPath)
			return err
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tok := "(unset)"
			if app.cfg.Token != "" {
				tok = "(set)"
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s = %s\n", config.KeyServer, app.cfg.ServerAddr)
			fmt.Fprintf(out, "%s = %s\n", config.KeyToken, tok)
			fmt.Fprintf(out, "%s = %s\n", config.KeyPollInterval, app.cfg.PollInterval)
			fmt.Fprintf(out, "%s = %s\n", config.KeyTimeout, app.cfg.Timeout)
			return nil
		},
	})

	return cmd
}
