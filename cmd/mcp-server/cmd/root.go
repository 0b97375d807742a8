// Package cmd implements the mcp-server command line.
package cmd

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"mcp-tools-go/internal/server"
)

type rootOptions struct {
	envFile string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "mcp-server",
		Short: "MCP tool server with precision arithmetic and weather lookups",
		Long: `mcp-server exposes MCP tools over the streamable HTTP transport.

Tools:
  add              - a + b rounded to NUMBER_PRECISION digits
  subtract         - a - b rounded to NUMBER_PRECISION digits
  current_weather  - current conditions from OpenWeather
  simple_forecast  - short forecast from OpenWeather

Running without a subcommand starts the server.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}

	rootCmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "file with KEY=VALUE settings loaded before the environment is read")

	rootCmd.AddCommand(newServeCmd(opts))
	rootCmd.AddCommand(newCalcCmd(opts))

	return rootCmd
}

// Execute runs the root command.
func Execute() error {
	return newRootCmd().Execute()
}

// loadConfig reads the .env file and the environment and returns the
// configuration along with a logger at the configured level.
func loadConfig(cmd *cobra.Command, opts *rootOptions) (server.Config, zerolog.Logger) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	logger := zerolog.New(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr(), TimeFormat: "15:04:05", NoColor: true}).
		With().
		Timestamp().
		Logger()

	if opts.envFile != "" {
		server.LoadDotEnv(opts.envFile, logger)
	}

	cfg := server.LoadConfigFromEnv(logger)
	level, err := server.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	return cfg, logger
}
