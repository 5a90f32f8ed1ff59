package cli

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/vk/munge/internal/app"
	"github.com/vk/munge/internal/hcl_adapter"
	"github.com/vk/munge/internal/warehouse"
)

// EnvPrefix prefixes every environment variable munge reads.
const EnvPrefix = "MUNGE"

const defaultConfigFile = "munge.yaml"

// command carries what every subcommand needs.
type command struct {
	v      *viper.Viper
	out    io.Writer
	logOut io.Writer
}

// NewRootCommand builds the munge command tree. Command output goes to out
// and logs to logOut.
func NewRootCommand(out, logOut io.Writer) *cobra.Command {
	c := &command{v: viper.New(), out: out, logOut: logOut}

	root := &cobra.Command{
		Use:   "munge",
		Short: "Build and publish the derived tables and views of a data warehouse.",
		Long: `munge resolves the dependency graph of the views and summary tables declared
in HCL manifests, builds them into staging objects in dependency order and
swaps them into production.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.readConfig()
		},
	}
	root.SetOut(out)
	root.SetErr(out)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError(err)
	})

	flags := root.PersistentFlags()
	flags.StringSliceP("manifest", "m", nil, "Manifest file or directory; repeatable.")
	flags.StringSlice("stage", nil, "Only load artifacts of these stages; repeatable. Empty loads every stage.")
	flags.String("driver", warehouse.DriverSQLite, "Warehouse driver. Options: 'sqlite' or 'postgres'.")
	flags.String("dsn", "", "Warehouse data source name.")
	flags.String("staging-prefix", warehouse.DefaultStagingPrefix, "Name prefix of staging objects.")
	flags.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	flags.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")
	flags.Int("healthcheck-port", 0, "Port for the HTTP health and status server during builds. 0 is disabled.")
	flags.String("config", "", "Config file. Defaults to ./"+defaultConfigFile+" when present.")
	c.bind(flags)

	root.AddCommand(
		c.newBuildCommand(),
		c.newUpdatesCommand(),
		c.newOrderCommand(),
		c.newDepsCommand(),
		c.newSQLCommand(),
		c.newSwapCommand(),
		c.newClearStagingCommand(),
		c.newCatalogCommand(),
	)
	return root
}

// Execute runs the command tree against args.
func Execute(ctx context.Context, out, logOut io.Writer, args []string) error {
	root := NewRootCommand(out, logOut)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

// bind exposes flags to viper under their own names.
func (c *command) bind(flags *pflag.FlagSet) {
	if err := c.v.BindPFlags(flags); err != nil {
		panic(err)
	}
}

// readConfig layers the config file and the environment under the flags.
func (c *command) readConfig() error {
	c.v.SetEnvPrefix(EnvPrefix)
	c.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	c.v.AutomaticEnv()

	path := c.v.GetString("config")
	explicit := path != ""
	if !explicit {
		path = defaultConfigFile
	}
	if _, err := os.Stat(path); err != nil {
		if explicit {
			return usageError(errors.Wrapf(err, "reading config file"))
		}
		return nil
	}

	c.v.SetConfigFile(path)
	if err := c.v.ReadInConfig(); err != nil {
		return usageError(errors.Wrapf(err, "reading config file %s", path))
	}
	return nil
}

// appConfig assembles the validated application configuration.
func (c *command) appConfig() (*app.Config, error) {
	cfg, err := app.NewConfig(app.Config{
		ManifestPaths:   c.v.GetStringSlice("manifest"),
		Stages:          c.v.GetStringSlice("stage"),
		Driver:          c.v.GetString("driver"),
		DSN:             c.v.GetString("dsn"),
		StagingPrefix:   c.v.GetString("staging-prefix"),
		Limit:           c.v.GetInt("limit"),
		LogFormat:       c.v.GetString("log-format"),
		LogLevel:        c.v.GetString("log-level"),
		HealthcheckPort: c.v.GetInt("healthcheck-port"),
	})
	return cfg, usageError(err)
}

// newApp loads the manifests into a ready application.
func (c *command) newApp() (*app.App, error) {
	cfg, err := c.appConfig()
	if err != nil {
		return nil, err
	}
	return app.NewApp(c.logOut, cfg, hcl_adapter.NewLoader())
}

// requireArgs wraps cobra's validator so that a wrong count is a usage error.
func requireArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		return usageError(cobra.MinimumNArgs(n)(cmd, args))
	}
}

func maxArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		return usageError(cobra.MaximumNArgs(n)(cmd, args))
	}
}
