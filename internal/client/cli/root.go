package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/dmitrijs2005/tandem/internal/buildinfo"
	"github.com/dmitrijs2005/tandem/internal/client/client"
	"github.com/dmitrijs2005/tandem/internal/client/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// App carries what every command needs once flags are parsed.
type App struct {
	v          *viper.Viper
	cfg        *config.Config
	configPath string
	newClient  func(cfg *config.Config) (client.Client, error)
}

func defaultClient(cfg *config.Config) (client.Client, error) {
	return client.NewTandemClientService(cfg.ServerAddr, cfg.Token)
}

// Execute runs tandemctl with os.Args.
func Execute(ctx context.Context) error {
	return newRootCmd(defaultClient).ExecuteContext(ctx)
}

func newRootCmd(newClient func(*config.Config) (client.Client, error)) *cobra.Command {
	app := &App{v: viper.New(), newClient: newClient}

	rootCmd := &cobra.Command{
		Use:           "tandemctl",
		Short:         "tandemctl: join practice sessions and manage bookings",
		Long:          "tandemctl talks to a Tandem coordinator: it joins the ad-hoc matchmaking queue, books scheduled sessions and drives their lifecycle.",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return app.load()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&app.configPath, "config", "", "config file (default ~/.config/tandem/cli.toml)")
	flags.String("server", "", "coordinator gRPC address")
	flags.String("token", "", "access token")
	_ = app.v.BindPFlag(config.KeyServer, flags.Lookup("server"))
	_ = app.v.BindPFlag(config.KeyToken, flags.Lookup("token"))

	rootCmd.AddCommand(
		newJoinCmd(app),
		newCancelCmd(app),
		newLeaveCmd(app),
		newPartnerCmd(app),
		newBookCmd(app),
		newTransitionCmd(app),
		newTokenCmd(app),
		newConfigCmd(app),
		&cobra.Command{
			Use:   "version",
			Short: "Print build information",
			Args:  cobra.NoArgs,
			PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
			Run: func(cmd *cobra.Command, _ []string) {
				buildinfo.PrintBuildData(cmd.OutOrStdout())
			},
		},
	)

	return rootCmd
}

func (a *App) load() error {
	if a.configPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("resolve home directory: %w", err)
		}
		a.configPath = config.DefaultPath(home)
	}

	cfg, err := config.Load(a.v, a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg
	return nil
}

// withClient opens a client for one command and closes it afterwards.
func (a *App) withClient(fn func(c client.Client) error) error {
	c, err := a.newClient(a.cfg)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", a.cfg.ServerAddr, err)
	}
	defer c.Close()
	return fn(c)
}

// callContext bounds a single RPC by the configured timeout.
func (a *App) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, a.cfg.Timeout)
}
