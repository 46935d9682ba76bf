package expressions

import (
	"sort"
	"strings"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/rendis/flowgraph/pkg/schema"
)

// celBaseVars are always declared, on top of the task's own input keys.
var celBaseVars = []string{"workflow", "iteration"}

// CELChecker compile-checks SWITCH expressions written in CEL.
// Results are cached per expression and variable set.
type CELChecker struct {
	mu    sync.RWMutex
	cache map[string]error
}

// NewCELChecker creates a CEL checker.
func NewCELChecker() (*CELChecker, error) {
	return &CELChecker{cache: make(map[string]error)}, nil
}

// Name returns the evaluatorType this checker handles.
func (c *CELChecker) Name() string {
	return "cel"
}

// Check compiles expression in an environment declaring every name in vars
// as a dyn variable.
func (c *CELChecker) Check(expression string, vars []string) error {
	if strings.TrimSpace(expression) == "" {
		return schema.NewError(schema.ErrCodeExpression, "empty CEL expression")
	}
	names := varSet(vars, celBaseVars)
	key := strings.Join(names, ",") + "\x00" + expression

	c.mu.RLock()
	err, ok := c.cache[key]
	c.mu.RUnlock()
	if ok {
		return err
	}

	err = c.compile(expression, names)

	c.mu.Lock()
	c.cache[key] = err
	c.mu.Unlock()
	return err
}

func (c *CELChecker) compile(expression string, names []string) error {
	opts := make([]cel.EnvOption, 0, len(names))
	for _, n := range names {
		opts = append(opts, cel.Variable(n, cel.DynType))
	}
	env, err := cel.NewEnv(opts...)
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeExpression, "CEL environment: %s", err.Error()).WithCause(err)
	}
	if _, issues := env.Compile(expression); issues != nil && issues.Err() != nil {
		return schema.NewErrorf(schema.ErrCodeExpression,
			"CEL compile error in %q: %s", expression, issues.Err().Error()).
			WithCause(issues.Err()).
			WithDetails(map[string]any{"expression": expression})
	}
	return nil
}

// varSet returns the sorted union of vars and base, skipping names that are
// not valid identifiers.
func varSet(vars, base []string) []string {
	seen := make(map[string]bool, len(vars)+len(base))
	var out []string
	for _, list := range [][]string{base, vars} {
		for _, v := range list {
			if !isIdent(v) || seen[v] {
				continue
			}
			seen[v] = true
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}
