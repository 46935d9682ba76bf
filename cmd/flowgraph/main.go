package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rendis/flowgraph/internal/catalog"
	"github.com/rendis/flowgraph/internal/expressions"
	"github.com/rendis/flowgraph/internal/layout"
	"github.com/rendis/flowgraph/internal/logging"
	"github.com/rendis/flowgraph/internal/session"
	"github.com/rendis/flowgraph/internal/validation"
	"github.com/rendis/flowgraph/pkg/schema"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

// app carries the resolved configuration shared by the subcommands.
type app struct {
	cfg      Config
	logLevel string
	logger   *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "flowgraph",
		Short:         "Render workflow definitions and overlay execution status",
		Long:          `flowgraph turns a workflow task list into a node tree, binds execution records onto it and serves the result over MCP.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Override the configured log level (debug, info, warn, error)")

	root.AddCommand(newServeCmd(a), newInspectCmd(a), newVersionCmd())
	return root
}

// setup loads the layered config and builds the logger.
func (a *app) setup(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	a.cfg = cfg
	a.logger = logging.New(cfg.LogLevel)
	return nil
}

// builtins returns the configured built-in tool set, falling back to the
// embedded one.
func (a *app) builtins() ([]schema.ToolDefinition, error) {
	if a.cfg.BuiltinsPath != "" {
		return catalog.LoadBuiltIns(a.cfg.BuiltinsPath)
	}
	return catalog.DefaultBuiltIns()
}

// newSession wires a catalog seeded with the built-ins, the schema
// validator and the expression checkers into a fresh view.
func (a *app) newSession(extra ...session.Option) (*session.Session, error) {
	dir, err := layout.ParseDirection(a.cfg.Direction)
	if err != nil {
		return nil, err
	}
	density, err := layout.ParseDensity(a.cfg.Density)
	if err != nil {
		return nil, err
	}

	tools, err := a.builtins()
	if err != nil {
		return nil, err
	}
	cat := catalog.New(
		catalog.WithLogger(a.logger),
		catalog.WithCategoryOrder(a.cfg.CategoryOrder),
		catalog.WithRequired(catalog.SourceBuiltIns),
	)
	cat.UpdateBuiltIns(tools)

	validator, err := validation.NewJSONSchemaValidator()
	if err != nil {
		return nil, fmt.Errorf("create validator: %w", err)
	}
	checkers, err := expressions.NewCheckers()
	if err != nil {
		return nil, fmt.Errorf("create expression checkers: %w", err)
	}

	opts := []session.Option{
		session.WithLogger(a.logger),
		session.WithValidator(validator),
		session.WithCheckers(checkers),
		session.WithLayout(dir, density),
	}
	return session.New(cat, append(opts, extra...)...), nil
}
