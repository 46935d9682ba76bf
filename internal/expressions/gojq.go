package expressions

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"github.com/itchyny/gojq"
	"github.com/rendis/flowgraph/pkg/schema"
)

// PathLookup resolves property paths against JSON-shaped values with gojq.
// Thread-safe: compiled *Code objects are cached and reused across goroutines.
type PathLookup struct {
	mu    sync.RWMutex
	cache map[string]*gojq.Code
}

// NewPathLookup creates a PathLookup.
func NewPathLookup() *PathLookup {
	return &PathLookup{cache: make(map[string]*gojq.Code)}
}

// Lookup returns the first value the path yields on data. A path starting
// with "." is a jq filter; anything else is a dotted property path
// (e.g. "extra.workflow.name"). A null or missing result reports false.
func (p *PathLookup) Lookup(ctx context.Context, path string, data any) (any, bool, error) {
	code, err := p.getOrCompile(ToJQPath(path))
	if err != nil {
		return nil, false, err
	}
	iter := code.RunWithContext(ctx, data)
	v, ok := iter.Next()
	if !ok {
		return nil, false, nil
	}
	if err, isErr := v.(error); isErr {
		return nil, false, schema.NewErrorf(schema.ErrCodeExpression,
			"jq evaluation failed for %q: %s", path, err.Error()).
			WithCause(err)
	}
	return v, v != nil, nil
}

// ToJQPath converts a dotted property path into a jq filter. Segments that
// are not plain identifiers are quoted.
func ToJQPath(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return "."
	}
	if strings.HasPrefix(path, ".") {
		return path
	}
	var b strings.Builder
	for i, seg := range strings.Split(path, ".") {
		switch {
		case isIdent(seg):
			b.WriteString("." + seg)
		case i == 0:
			b.WriteString(".[" + strconv.Quote(seg) + "]")
		default:
			b.WriteString("[" + strconv.Quote(seg) + "]")
		}
	}
	return b.String()
}

func (p *PathLookup) getOrCompile(expression string) (*gojq.Code, error) {
	p.mu.RLock()
	if code, ok := p.cache[expression]; ok {
		p.mu.RUnlock()
		return code, nil
	}
	p.mu.RUnlock()

	p.mu.Lock()
	defer p.mu.Unlock()

	if code, ok := p.cache[expression]; ok {
		return code, nil
	}

	query, err := gojq.Parse(expression)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeExpression,
			"jq parse error in %q: %s", expression, err.Error()).
			WithCause(err)
	}

	code, err := gojq.Compile(query,
		// Sandbox: empty env blocks $ENV and env access.
		gojq.WithEnvironLoader(func() []string { return nil }),
	)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeExpression,
			"jq compile error in %q: %s", expression, err.Error()).
			WithCause(err)
	}

	p.cache[expression] = code
	return code, nil
}
