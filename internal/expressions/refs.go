package expressions

import (
	"sort"
	"strings"
)

// reservedRefRoots are ${...} roots that do not name a task.
var reservedRefRoots = map[string]bool{
	"workflow":             true,
	"CPEWF_TASK_ID":        true,
	"NUMBER_OF_ITERATIONS": true,
}

// TaskRefs returns the task reference names a value mentions through
// ${<ref>.output...} or ${<ref>.input...} placeholders, sorted.
// Maps and arrays are walked recursively.
func TaskRefs(v any) []string {
	found := make(map[string]bool)
	collectRefs(v, found)
	out := make([]string, 0, len(found))
	for r := range found {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}

func collectRefs(v any, found map[string]bool) {
	switch val := v.(type) {
	case string:
		for _, r := range extractRefs(val) {
			found[r] = true
		}
	case map[string]any:
		for _, item := range val {
			collectRefs(item, found)
		}
	case []any:
		for _, item := range val {
			collectRefs(item, found)
		}
	}
}

func extractRefs(s string) []string {
	var refs []string
	for {
		idx := strings.Index(s, "${")
		if idx == -1 {
			return refs
		}
		rest := s[idx+2:]
		closeIdx := strings.IndexByte(rest, '}')
		if closeIdx == -1 {
			return refs
		}
		body := strings.TrimSpace(rest[:closeIdx])
		s = rest[closeIdx+1:]

		root, tail, ok := strings.Cut(body, ".")
		if !ok || root == "" || reservedRefRoots[root] {
			continue
		}
		if strings.HasPrefix(tail, "output") || strings.HasPrefix(tail, "input") {
			refs = append(refs, root)
		}
	}
}
