// Package catalog merges the built-in, sub-workflow and dependent-workflow
// tool sources into one name-addressable registry.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	json "github.com/goccy/go-json"
	"github.com/rendis/flowgraph/internal/expressions"
	"github.com/rendis/flowgraph/internal/logging"
	"github.com/rendis/flowgraph/pkg/schema"
)

// Source identifies one of the three tool slices.
type Source int

const (
	SourceBuiltIns Source = iota
	SourceSubWorkflows
	SourceDependents
	sourceCount
)

func (s Source) String() string {
	switch s {
	case SourceBuiltIns:
		return "builtins"
	case SourceSubWorkflows:
		return "subworkflows"
	case SourceDependents:
		return "dependents"
	default:
		return fmt.Sprintf("source(%d)", int(s))
	}
}

// Default categories.
const (
	CategoryCore      = "Core"
	CategoryControl   = "Control"
	CategorySystem    = "System"
	CategoryWorkflows = "Workflows"
	CategoryExternal  = "External"
)

// DefaultCategoryOrder is the precedence built-ins are sorted by.
var DefaultCategoryOrder = []string{CategoryCore, CategoryControl, CategorySystem, CategoryWorkflows, CategoryExternal}

// Option configures a Catalog.
type Option func(*Catalog)

// WithLogger sets the catalog logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Catalog) { c.logger = logging.OrNop(l) }
}

// WithCategoryOrder overrides the built-in category precedence.
func WithCategoryOrder(order []string) Option {
	return func(c *Catalog) {
		if len(order) > 0 {
			c.categoryOrder = append([]string(nil), order...)
		}
	}
}

// WithRequired sets which sources must report before the catalog is ready.
// All three are required by default.
func WithRequired(sources ...Source) Option {
	return func(c *Catalog) {
		c.required = [sourceCount]bool{}
		for _, s := range sources {
			if s >= 0 && s < sourceCount {
				c.required[s] = true
			}
		}
	}
}

// Catalog is a per-session tool registry. Slices are replaced wholesale
// through the Update methods; every update re-merges synchronously once all
// required slices have reported. It is safe for concurrent use.
type Catalog struct {
	mu sync.RWMutex

	builtIns     []schema.ToolDefinition
	subWorkflows []schema.SubWorkflow
	dependents   []schema.ToolDefinition

	reported [sourceCount]bool
	required [sourceCount]bool
	updated  [sourceCount]uint64
	seq      uint64

	categoryOrder []string

	ready      bool
	generation uint64
	merged     []schema.ToolDefinition
	byName     map[string]int
	docs       []any // JSON form of merged, built lazily for path lookups

	paths  *expressions.PathLookup
	logger *slog.Logger
}

// New creates an empty catalog.
func New(opts ...Option) *Catalog {
	c := &Catalog{
		required:      [sourceCount]bool{true, true, true},
		categoryOrder: DefaultCategoryOrder,
		byName:        make(map[string]int),
		paths:         expressions.NewPathLookup(),
		logger:        logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// UpdateBuiltIns replaces the built-in slice.
func (c *Catalog) UpdateBuiltIns(tools []schema.ToolDefinition) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.builtIns = cloneTools(tools)
	c.markLocked(SourceBuiltIns)
}

// UpdateSubWorkflowTools replaces the sub-workflow slice. Tools are
// synthesized from the workflows at merge time.
func (c *Catalog) UpdateSubWorkflowTools(workflows []schema.SubWorkflow) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subWorkflows = append([]schema.SubWorkflow(nil), workflows...)
	c.markLocked(SourceSubWorkflows)
}

// UpdateDependentWorkflowTools replaces the dependent-workflow slice.
func (c *Catalog) UpdateDependentWorkflowTools(items []schema.ToolDefinition) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dependents = make([]schema.ToolDefinition, 0, len(items))
	for _, it := range cloneTools(items) {
		if it.Category == "" {
			it.Category = CategoryExternal
		}
		if it.Extra == nil {
			it.Extra = map[string]any{}
		}
		it.Extra["source"] = "dependent"
		c.dependents = append(c.dependents, it)
	}
	c.markLocked(SourceDependents)
}

func (c *Catalog) markLocked(s Source) {
	c.seq++
	c.reported[s] = true
	c.updated[s] = c.seq
	c.recomputeLocked(s)
}

func (c *Catalog) recomputeLocked(trigger Source) {
	for s := Source(0); s < sourceCount; s++ {
		if c.required[s] && !c.reported[s] {
			c.logger.Debug("catalog waiting for sources", "trigger", trigger.String(), "missing", s.String())
			return
		}
	}

	builtIns := cloneTools(c.builtIns)
	sort.SliceStable(builtIns, func(i, j int) bool {
		return c.categoryRank(builtIns[i].Category) < c.categoryRank(builtIns[j].Category)
	})

	workflows := make(map[string]schema.SubWorkflow, len(c.subWorkflows))
	for _, sw := range c.subWorkflows {
		workflows[sw.Name] = sw
	}
	// visiting breaks sub-workflow cycles; synthesized memoizes chained tails.
	visiting := make(map[string]bool)
	synthesized := make(map[string]schema.ToolDefinition)
	var resolve Resolver
	synthesize := func(sw schema.SubWorkflow) schema.ToolDefinition {
		if t, ok := synthesized[sw.Name]; ok {
			return t
		}
		visiting[sw.Name] = true
		t := SubWorkflowTool(sw, resolve)
		visiting[sw.Name] = false
		synthesized[sw.Name] = t
		return t
	}
	resolve = func(name string) (schema.ToolDefinition, bool) {
		for _, list := range [][]schema.ToolDefinition{c.builtIns, c.dependents} {
			for _, t := range list {
				if t.Name == name {
					return t, true
				}
			}
		}
		if sw, ok := workflows[name]; ok && !visiting[name] {
			return synthesize(sw), true
		}
		return schema.ToolDefinition{}, false
	}
	subTools := make([]schema.ToolDefinition, 0, len(c.subWorkflows))
	for _, sw := range c.subWorkflows {
		visiting[sw.Name] = true
		subTools = append(subTools, SubWorkflowTool(sw, resolve))
		visiting[sw.Name] = false
	}

	slices := []struct {
		src   Source
		tools []schema.ToolDefinition
	}{
		{SourceBuiltIns, builtIns},
		{SourceSubWorkflows, subTools},
		{SourceDependents, c.dependents},
	}

	merged := make([]schema.ToolDefinition, 0, len(builtIns)+len(subTools)+len(c.dependents))
	owner := make([]Source, 0, cap(merged))
	byName := make(map[string]int, cap(merged))
	for _, sl := range slices {
		for _, t := range sl.tools {
			if t.Name == "" {
				continue
			}
			idx, dup := byName[t.Name]
			if !dup {
				byName[t.Name] = len(merged)
				merged = append(merged, t)
				owner = append(owner, sl.src)
				continue
			}
			if c.updated[sl.src] > c.updated[owner[idx]] {
				merged[idx] = t
				owner[idx] = sl.src
			}
		}
	}

	c.merged = merged
	c.byName = byName
	c.docs = nil
	c.ready = true
	c.generation++
	c.logger.Debug("catalog recomputed",
		"trigger", trigger.String(), "generation", c.generation, "tools", len(merged))
}

func (c *Catalog) categoryRank(category string) int {
	for i, cat := range c.categoryOrder {
		if strings.EqualFold(cat, category) {
			return i
		}
	}
	return len(c.categoryOrder)
}

// Ready reports whether every required source has reported at least once.
func (c *Catalog) Ready() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ready
}

// Generation increments on every merge.
func (c *Catalog) Generation() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.generation
}

// Tools returns a copy of the merged tool list in merge order.
func (c *Catalog) Tools() []schema.ToolDefinition {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return cloneTools(c.merged)
}

// Len returns the number of merged tools.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.merged)
}

// Tool looks a tool up by name.
func (c *Catalog) Tool(name string) (schema.ToolDefinition, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	idx, ok := c.byName[name]
	if !ok {
		return schema.ToolDefinition{}, false
	}
	return c.merged[idx], true
}

// GetTool returns the first merged tool whose name equals value. With a
// path, the tool's value at that property path is compared instead. Path
// segments are joined with "."; a leading "." makes it a jq filter.
func (c *Catalog) GetTool(value string, path ...string) (schema.ToolDefinition, bool) {
	p := strings.Join(path, ".")
	if p == "" || p == "name" {
		return c.Tool(value)
	}

	c.mu.Lock()
	if c.docs == nil && len(c.merged) > 0 {
		c.docs = toolDocs(c.merged, c.logger)
	}
	docs := c.docs
	merged := c.merged
	c.mu.Unlock()

	for i, doc := range docs {
		v, ok, err := c.paths.Lookup(context.Background(), p, doc)
		if err != nil {
			c.logger.Debug("tool path lookup failed", "path", p, "tool", merged[i].Name, "error", err)
			continue
		}
		if ok && matches(v, value) {
			return merged[i], true
		}
	}
	return schema.ToolDefinition{}, false
}

func matches(v any, want string) bool {
	if s, ok := v.(string); ok {
		return s == want
	}
	return fmt.Sprint(v) == want
}

// toolDocs renders tools into the generic JSON form gojq operates on.
func toolDocs(tools []schema.ToolDefinition, logger *slog.Logger) []any {
	docs := make([]any, len(tools))
	for i, t := range tools {
		b, err := json.Marshal(t)
		if err != nil {
			logger.Warn("tool not serializable", "tool", t.Name, "error", err)
			continue
		}
		var doc any
		if err := json.Unmarshal(b, &doc); err != nil {
			continue
		}
		docs[i] = doc
	}
	return docs
}

func cloneTools(tools []schema.ToolDefinition) []schema.ToolDefinition {
	if tools == nil {
		return nil
	}
	out := make([]schema.ToolDefinition, len(tools))
	for i, t := range tools {
		out[i] = t.Clone()
	}
	return out
}
