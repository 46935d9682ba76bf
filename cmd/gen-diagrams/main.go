// gen-diagrams generates sample diagram outputs for README documentation.
// Run: go run ./cmd/gen-diagrams
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rendis/flowgraph/internal/catalog"
	"github.com/rendis/flowgraph/internal/diagram"
	"github.com/rendis/flowgraph/internal/session"
	"github.com/rendis/flowgraph/pkg/schema"
)

func main() {
	ctx := context.Background()

	// fetch → check-stock(in_stock | out_of_stock) → fan-out(label | invoice) → join → retry loop → ship
	def := schema.WorkflowDefinition{
		Name: "order_fulfillment",
		Tasks: []schema.Task{
			task("fetch_order", schema.TaskTypeHTTP),
			{
				Name: "check_stock", TaskReferenceName: "check_stock", Type: schema.TaskTypeSwitch,
				EvaluatorType: "value-param", Expression: "inStock",
				InputParameters: map[string]any{"inStock": "${fetch_order.output.response.body.inStock}"},
				DecisionCases: schema.DecisionCases{
					{Name: "true", Tasks: []schema.Task{task("reserve_items", schema.TaskTypeSimple)}},
					{Name: "false", Tasks: []schema.Task{task("notify_restock", schema.TaskTypeSimple)}},
				},
			},
			{
				Name: "fan_out", TaskReferenceName: "fan_out", Type: schema.TaskTypeForkJoin,
				ForkTasks: [][]schema.Task{
					{task("print_label", schema.TaskTypeSimple)},
					{task("send_invoice", schema.TaskTypeHTTP)},
				},
			},
			{Name: "fan_in", TaskReferenceName: "fan_in", Type: schema.TaskTypeJoin, JoinOn: []string{"print_label", "send_invoice"}},
			{
				Name: "pickup", TaskReferenceName: "pickup", Type: schema.TaskTypeDoWhile,
				LoopCondition:   "if ($.pickup['iteration'] < 3) { true; } else { false; }",
				InputParameters: map[string]any{"loopCount": 3},
				LoopOver:        []schema.Task{task("request_courier", schema.TaskTypeHTTP)},
			},
			task("ship", schema.TaskTypeSimple),
		},
	}

	run := &schema.Execution{
		WorkflowID: "sample-run",
		Status:     schema.WorkflowStatusRunning,
		Tasks: []schema.TaskExecution{
			done("fetch_order", schema.TaskTypeHTTP),
			done("check_stock", schema.TaskTypeSwitch),
			done("reserve_items", schema.TaskTypeSimple),
			done("fan_out", schema.TaskTypeForkJoin),
			done("print_label", schema.TaskTypeSimple),
			{ReferenceTaskName: "send_invoice", TaskType: string(schema.TaskTypeHTTP), Status: schema.TaskStatusFailed,
				ReasonForIncompletion: "invoice service unavailable", RetryCount: 2},
			{ReferenceTaskName: "fan_in", TaskType: string(schema.TaskTypeJoin), Status: schema.TaskStatusInProgress},
		},
	}

	cat := catalog.New(catalog.WithRequired(catalog.SourceBuiltIns))
	if tools, err := catalog.DefaultBuiltIns(); err == nil {
		cat.UpdateBuiltIns(tools)
	}
	sess := session.New(cat)
	sess.Load(ctx, def)
	sess.Bind(ctx, run)

	model := diagram.Build(sess.Tree(), def.Name)

	outDir := filepath.Join("docs", "assets")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "create %s: %v\n", outDir, err)
		os.Exit(1)
	}

	ascii := diagram.RenderASCII(model)
	write(filepath.Join(outDir, "diagram-ascii.txt"), []byte(ascii))
	fmt.Println("=== ASCII ===")
	fmt.Println(ascii)

	mermaid := diagram.RenderMermaid(model)
	write(filepath.Join(outDir, "diagram-mermaid.md"), []byte("```mermaid\n"+mermaid+"\n```\n"))
	fmt.Println("=== Mermaid ===")
	fmt.Println(mermaid)

	png, err := diagram.RenderImage(ctx, model)
	if err != nil {
		fmt.Fprintf(os.Stderr, "image error: %v\n", err)
		return
	}
	pngPath := filepath.Join(outDir, "diagram-sample.png")
	write(pngPath, png)
	fmt.Printf("=== Image (PNG) ===\nWritten: %s (%d bytes)\n", pngPath, len(png))
}

func task(ref string, typ schema.TaskType) schema.Task {
	return schema.Task{Name: ref, TaskReferenceName: ref, Type: typ}
}

func done(ref string, typ schema.TaskType) schema.TaskExecution {
	return schema.TaskExecution{ReferenceTaskName: ref, TaskType: string(typ), Status: schema.TaskStatusCompleted}
}

func write(path string, data []byte) {
	if err := os.WriteFile(path, data, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "write %s: %v\n", path, err)
	}
}
