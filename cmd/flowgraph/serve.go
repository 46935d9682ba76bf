package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/rendis/flowgraph/internal/metrics"
	"github.com/rendis/flowgraph/internal/panel"
	"github.com/rendis/flowgraph/internal/session"
	"github.com/rendis/flowgraph/internal/streaming"
	mcpserver "github.com/rendis/flowgraph/pkg/mcp"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "serve",
		Short:   "Run the MCP server on stdio",
		Args:    cobra.NoArgs,
		PreRunE: a.setup,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.serve(cmd.Context())
		},
	}
}

func (a *app) serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	hub := streaming.NewMemoryHub()
	m := metrics.New()
	sess, err := a.newSession(session.WithHub(hub), session.WithMetrics(m))
	if err != nil {
		return err
	}

	srv := mcpserver.NewFlowgraphServer(mcpserver.ServerDeps{
		Session: sess,
		Version: version,
		Logger:  a.logger,
	})

	notifier := mcpserver.NewNotifier(srv.MCPServer(), srv.Sessions(), a.logger)
	go func() {
		if err := notifier.Run(ctx, hub, streaming.EventFilter{SessionID: sess.ID()}); err != nil {
			a.logger.Error("notifier stopped", "error", err)
		}
	}()

	if a.cfg.MetricsAddr != "" {
		go func() {
			if err := m.Serve(ctx, a.cfg.MetricsAddr, a.logger); err != nil {
				a.logger.Error("metrics endpoint failed", "error", err)
			}
		}()
	}

	if a.cfg.PanelAddr != "" {
		p := panel.NewPanelServer(panel.PanelDeps{Session: sess, Hub: hub, Logger: a.logger})
		go func() {
			if err := p.Serve(ctx, a.cfg.PanelAddr); err != nil {
				a.logger.Error("panel failed", "error", err)
			}
		}()
	}

	a.logger.Info("flowgraph MCP server starting", "version", version, "session_id", sess.ID())
	return srv.Serve(ctx)
}
