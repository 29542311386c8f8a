package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/sitepipe/internal/config"
	"github.com/conneroisu/sitepipe/internal/logging"
	"github.com/conneroisu/sitepipe/internal/tasks"
)

// taskCommands are the pipeline tasks exposed as subcommands.
var taskCommands = []struct {
	name    string
	aliases []string
	short   string
	server  bool
}{
	{name: tasks.Clean, short: "Delete everything in the output directory"},
	{name: tasks.HTML, short: "Render pages to HTML"},
	{name: tasks.CSS, short: "Bundle, lint and format the stylesheet"},
	{name: tasks.JS, short: "Copy scripts, transpiling them when js.transpile is set"},
	{name: tasks.Fonts, short: "Copy fonts"},
	{name: tasks.Images, short: "Copy images"},
	{name: tasks.Videos, short: "Copy videos"},
	{name: tasks.Purge, short: "Build the stylesheet and drop rules no page uses"},
	{name: tasks.Build, aliases: []string{"b"}, short: "Clean, then run fonts, html, js, images and purge in order"},
	{name: tasks.Watch, aliases: []string{"w"}, short: "Serve the output and rerun tasks when sources change", server: true},
	{name: tasks.Dev, aliases: []string{"d"}, short: "Run fonts, html, css, js and images once, then watch", server: true},
}

func init() {
	for _, tc := range taskCommands {
		name := tc.name
		c := &cobra.Command{
			Use:     name,
			Aliases: tc.aliases,
			Short:   tc.short,
			Args:    cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runTask(cmd, name)
			},
		}
		if tc.server {
			addServerFlags(c)
		}
		rootCmd.AddCommand(c)
	}
}

// addServerFlags binds --host and --port to the server settings.
func addServerFlags(cmd *cobra.Command) {
	cmd.Flags().String("host", config.DefaultHost, "Host the dev server binds to")
	cmd.Flags().IntP("port", "p", config.DefaultPort, "Port the dev server listens on (0 picks a free one)")
	cmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		if err := viper.BindPFlag("server.host", cmd.Flags().Lookup("host")); err != nil {
			return err
		}
		return viper.BindPFlag("server.port", cmd.Flags().Lookup("port"))
	}
}

func runTask(cmd *cobra.Command, name string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := newLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	pipeline, err := tasks.New(cfg, logger, tasks.Options{})
	if err != nil {
		return err
	}

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = pipeline.Run(ctx, name)
	if err != nil && ctx.Err() != nil && errors.Is(err, context.Canceled) {
		return nil
	}
	if err != nil {
		return &taskError{task: name, err: err}
	}
	return nil
}

// taskError keeps the faults reachable with errors.As while printing only
// the task name; each fault was already logged where it happened.
type taskError struct {
	task string
	err  error
}

func (e *taskError) Error() string { return e.task + " failed" }

func (e *taskError) Unwrap() error { return e.err }

func newLogger(cfg *config.Config, out io.Writer) (logging.Logger, error) {
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	return logging.NewLogger(&logging.LoggerConfig{
		Level:  level,
		Format: cfg.Log.Format,
		Output: out,
	}), nil
}
