package main

import (
	"io"
	"log/slog"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/meigma/gitodb/internal/config"
)

// cli holds state shared by all commands of one invocation.
type cli struct {
	stdout  io.Writer
	stderr  io.Writer
	cfgFile string
	verbose bool
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	c := &cli{stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:           "gitodb",
		Short:         "Explode and verify git pack files",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError(err)
	})

	root.PersistentFlags().StringVar(&c.cfgFile, "config", "", "config file (default is ./gitodb.yaml or $XDG_CONFIG_HOME/gitodb/gitodb.yaml)")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(c.newPackCmd())
	root.AddCommand(c.newVersionCmd())
	return root
}

// loadConfig reads the configuration with cmd's flags taking precedence.
func (c *cli) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(c.cfgFile, cmd.Flags())
	if err != nil {
		return nil, usageError(err)
	}
	return cfg, nil
}

// logger returns the slog logger writing through charmbracelet/log.
func (c *cli) logger(verbose bool) *slog.Logger {
	level := log.InfoLevel
	if verbose {
		level = log.DebugLevel
	}
	handler := log.NewWithOptions(c.stderr, log.Options{
		Prefix: "gitodb",
		Level:  level,
	})
	return slog.New(handler)
}

// args wraps a cobra argument validator so violations exit as usage errors.
func args(validate cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, a []string) error {
		return usageError(validate(cmd, a))
	}
}
