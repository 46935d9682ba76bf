package expressions

import (
	"strings"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/rendis/flowgraph/pkg/schema"
)

// ExprChecker compile-checks DO_WHILE conditions and SWITCH expressions
// written in expr-lang. Undeclared variables are allowed since loop
// conditions routinely reference task outputs unknown at edit time.
type ExprChecker struct {
	mu    sync.RWMutex
	cache map[string]error
}

// NewExprChecker creates an expr checker.
func NewExprChecker() *ExprChecker {
	return &ExprChecker{cache: make(map[string]error)}
}

// Name returns the evaluatorType this checker handles.
func (c *ExprChecker) Name() string {
	return "expr"
}

// Check compiles expression. vars is unused since every identifier is
// accepted.
func (c *ExprChecker) Check(expression string, _ []string) error {
	if strings.TrimSpace(expression) == "" {
		return schema.NewError(schema.ErrCodeExpression, "empty expr expression")
	}

	c.mu.RLock()
	err, ok := c.cache[expression]
	c.mu.RUnlock()
	if ok {
		return err
	}

	if _, cerr := expr.Compile(expression, expr.AllowUndefinedVariables()); cerr != nil {
		err = schema.NewErrorf(schema.ErrCodeExpression,
			"expr compile error in %q: %s", expression, cerr.Error()).
			WithCause(cerr).
			WithDetails(map[string]any{"expression": expression})
	}

	c.mu.Lock()
	c.cache[expression] = err
	c.mu.Unlock()
	return err
}
