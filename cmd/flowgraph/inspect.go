package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/rendis/flowgraph/internal/diagram"
	"github.com/rendis/flowgraph/internal/poller"
	"github.com/rendis/flowgraph/internal/session"
	"github.com/rendis/flowgraph/internal/streaming"
	"github.com/rendis/flowgraph/internal/tree"
	"github.com/rendis/flowgraph/pkg/schema"
)

type inspectOptions struct {
	execution string
	format    string
	output    string
	watch     bool
}

func newInspectCmd(a *app) *cobra.Command {
	var opts inspectOptions
	cmd := &cobra.Command{
		Use:   "inspect <workflow.json>",
		Short: "Print the node tree of a workflow definition",
		Long: `Load a workflow definition, optionally bind an execution record onto it,
and print the resulting nodes. With --watch the execution file is re-read on
the configured poll interval until the run reaches a terminal status.`,
		Args:    cobra.ExactArgs(1),
		PreRunE: a.setup,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.inspect(cmd.Context(), cmd.OutOrStdout(), args[0], opts)
		},
	}
	cmd.Flags().StringVarP(&opts.execution, "execution", "e", "", "Execution record JSON to bind")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "table", "Output format: table, ascii, mermaid or png")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Output file (required for png)")
	cmd.Flags().BoolVarP(&opts.watch, "watch", "w", false, "Keep re-reading the execution record")
	return cmd
}

func (a *app) inspect(ctx context.Context, w io.Writer, workflowPath string, opts inspectOptions) error {
	if opts.watch && opts.execution == "" {
		return errors.New("--watch requires --execution")
	}
	if opts.format == "png" && opts.output == "" {
		return errors.New("png output requires --output")
	}

	data, err := os.ReadFile(workflowPath)
	if err != nil {
		return fmt.Errorf("read workflow: %w", err)
	}
	def, err := schema.DecodeWorkflow(data)
	if err != nil {
		return err
	}

	hub := streaming.NewMemoryHub()
	sess, err := a.newSession(session.WithHub(hub))
	if err != nil {
		return err
	}
	sess.Load(ctx, *def)

	var fetcher poller.FileFetcher
	if opts.execution != "" {
		fetcher = poller.FileFetcher(opts.execution)
		rec, err := fetcher.Fetch(ctx)
		if err != nil {
			return err
		}
		sum := sess.Bind(ctx, rec)
		a.logger.Debug("execution bound", "workflow_id", sum.WorkflowID,
			"matched", sum.Matched, "unmatched", sum.Unmatched)
	}

	if err := a.render(ctx, w, sess, opts); err != nil {
		return err
	}
	if !opts.watch {
		return nil
	}
	return a.watch(ctx, w, sess, hub, fetcher, opts)
}

// watch re-renders after every poll that changed a node or the run status.
func (a *app) watch(ctx context.Context, w io.Writer, sess *session.Session, hub *streaming.MemoryHub, f poller.Fetcher, opts inspectOptions) error {
	schedule, err := poller.ParseSchedule(a.cfg.PollInterval)
	if err != nil {
		return err
	}

	events, unsubscribe, err := hub.Subscribe(ctx, streaming.EventFilter{
		SessionID:  sess.ID(),
		EventTypes: []string{streaming.EventNodeStatus, streaming.EventWorkflowStatus},
	})
	if err != nil {
		return err
	}
	defer unsubscribe()

	p := poller.New(f, sess, schedule, a.logger)
	if err := p.Start(ctx); err != nil {
		return err
	}
	defer func() { _ = p.Stop() }()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-p.Done():
			if drain(events) {
				return a.render(ctx, w, sess, opts)
			}
			return nil
		case <-events:
			drain(events)
			if err := a.render(ctx, w, sess, opts); err != nil {
				return err
			}
		}
	}
}

// drain empties the buffered events and reports whether there were any.
func drain(events <-chan streaming.StreamEvent) bool {
	got := false
	for {
		select {
		case _, ok := <-events:
			if !ok {
				return got
			}
			got = true
		default:
			return got
		}
	}
}

func (a *app) render(ctx context.Context, w io.Writer, sess *session.Session, opts inspectOptions) error {
	switch opts.format {
	case "table":
		writeNodeTable(w, sess.Nodes(), sess.Binder().WorkflowStatus())
		return nil
	case "ascii", "mermaid", "png":
		model := diagram.Build(sess.Tree(), sess.Definition().Name)
		switch opts.format {
		case "ascii":
			_, err := io.WriteString(w, diagram.RenderASCII(model))
			return err
		case "mermaid":
			_, err := io.WriteString(w, diagram.RenderMermaid(model))
			return err
		}
		png, err := diagram.RenderImage(ctx, model)
		if err != nil {
			return err
		}
		if err := os.WriteFile(opts.output, png, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", opts.output, err)
		}
		fmt.Fprintf(w, "wrote %s (%d bytes)\n", opts.output, len(png))
		return nil
	default:
		return fmt.Errorf("unknown format %q (want table, ascii, mermaid or png)", opts.format)
	}
}

func writeNodeTable(w io.Writer, nodes []session.NodeView, status schema.WorkflowStatus) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"NODE", "KIND", "TOOL", "STATUS", "ITER", "RETRIES", "ISSUES"})

	for _, n := range nodes {
		tool := ""
		switch {
		case n.Tool != nil:
			tool = n.Tool.Name
		case n.Unsupported:
			tool = text.FgYellow.Sprint("unsupported")
		}
		t.AppendRow(table.Row{
			strings.Repeat("  ", n.Depth) + n.Label,
			n.Kind,
			tool,
			stateColor(n.Status.State).Sprint(string(n.Status.State)),
			counter(n.Status.Iterations),
			counter(n.Status.RetryCount),
			counter(len(n.Issues)),
		})
	}

	if status != "" {
		t.AppendFooter(table.Row{"", "", "WORKFLOW", string(status)})
	}
	t.Render()
}

func stateColor(s tree.State) text.Colors {
	switch s {
	case tree.StateCompleted:
		return text.Colors{text.FgGreen}
	case tree.StateFailed:
		return text.Colors{text.FgRed}
	case tree.StateRunning, tree.StateScheduled:
		return text.Colors{text.FgCyan}
	case tree.StateCanceled, tree.StateSkipped:
		return text.Colors{text.FgHiBlack}
	default:
		return text.Colors{}
	}
}

func counter(n int) string {
	if n == 0 {
		return ""
	}
	return strconv.Itoa(n)
}
