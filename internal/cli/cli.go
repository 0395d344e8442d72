package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/specialistvlad/gridhost/internal/app"
	"github.com/specialistvlad/gridhost/internal/deployer"
	"github.com/specialistvlad/gridhost/internal/server"
	"github.com/specialistvlad/gridhost/internal/session"
)

// EnvPrefix prefixes every environment variable read by the CLI.
const EnvPrefix = "GRIDHOST"

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Parse processes command-line arguments. It returns a populated app.Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
//
// Values are resolved by viper in the order flag, GRIDHOST_* environment
// variable, --config file, default.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if args == nil {
		args = []string{}
	}

	var cfg *app.Config
	root := newRootCommand(v, &cfg)
	root.SetArgs(args)
	root.SetOut(output)
	root.SetErr(output)

	if err := root.Execute(); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			return nil, false, exitErr
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	if cfg == nil {
		slog.Debug("No command ran, exiting.")
		return nil, true, nil
	}

	slog.Debug("CLI parser finished successfully.", "mode", cfg.Mode)
	return cfg, false, nil
}

func newRootCommand(v *viper.Viper, out **app.Config) *cobra.Command {
	root := &cobra.Command{
		Use:   "gridhost",
		Short: "gridhost - hosts services declared in HCL source files.",
		Long: `gridhost deploys HCL source files and serves their services over HTTP,
binding clients to server-side sessions through a SESSIONID cookie.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.String("config", "", "Path to a configuration file (yaml, toml or json).")
	pf.String("log-format", "json", "Log output format. Options: 'text' or 'json'.")
	pf.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	pf.Int("healthcheck-port", 0, "Port for the HTTP health check server. 0 is disabled.")

	serve := &cobra.Command{
		Use:   "serve [DIR]",
		Short: "Deploy every source file in DIR and host its services.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := load(v, cmd.Flags()); err != nil {
				return err
			}
			dir := v.GetString("source-dir")
			if len(args) == 1 {
				dir = args[0]
			}
			return build(v, out, app.Config{Mode: app.ModeServe, SourceDir: dir, Watch: v.GetBool("watch")})
		},
	}
	serve.Flags().String("source-dir", ".", "Directory scanned for source files.")
	serve.Flags().Bool("watch", false, "Redeploy source files when they change.")
	addHostFlags(serve.Flags())

	run := &cobra.Command{
		Use:   "run FILE [ARGS...]",
		Short: "Deploy FILE and invoke its main function with ARGS, or host its services.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := load(v, cmd.Flags()); err != nil {
				return err
			}
			return build(v, out, app.Config{Mode: app.ModeRun, File: args[0], Args: args[1:]})
		},
	}
	run.Flags().SetInterspersed(false)
	addHostFlags(run.Flags())

	root.AddCommand(serve, run)
	return root
}

func addHostFlags(fs *pflag.FlagSet) {
	fs.String("address", server.DefaultAddress, "Address the HTTP host listens on.")
	fs.String("extension", deployer.DefaultExtension, "Extension of deployable source files.")
	fs.Duration("session-timeout", session.DefaultMaxInactiveInterval, "Maximum inactive interval of a session. Zero or negative never expires.")
	fs.String("session-sweep", session.DefaultSweepSchedule, "Cron schedule of the expired session sweep.")
	fs.Int("session-shards", session.DefaultShards, "Number of session map shards.")
}

// load binds the flags of the running command and reads the config file.
func load(v *viper.Viper, fs *pflag.FlagSet) error {
	if err := v.BindPFlags(fs); err != nil {
		return &ExitError{Code: 2, Message: fmt.Sprintf("binding flags: %v", err)}
	}
	if file := v.GetString("config"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return &ExitError{Code: 2, Message: fmt.Sprintf("reading config file %s: %v", file, err)}
		}
		slog.Debug("Config file loaded.", "file", file)
	}
	return nil
}

func build(v *viper.Viper, out **app.Config, base app.Config) error {
	base.Address = v.GetString("address")
	base.Extension = v.GetString("extension")
	base.SessionTimeout = v.GetDuration("session-timeout")
	if base.SessionTimeout <= 0 {
		base.SessionTimeout = session.NeverExpires
	}
	base.SessionSweep = v.GetString("session-sweep")
	base.SessionShards = v.GetInt("session-shards")
	base.LogFormat = v.GetString("log-format")
	base.LogLevel = v.GetString("log-level")
	base.HealthcheckPort = v.GetInt("healthcheck-port")

	cfg, err := app.NewConfig(base)
	if err != nil {
		return &ExitError{Code: 2, Message: err.Error()}
	}
	*out = cfg
	return nil
}
