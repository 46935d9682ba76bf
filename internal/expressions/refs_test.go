package expressions

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTaskRefs(t *testing.T) {
	params := map[string]any{
		"url":     "${fetch.output.response.body.url}",
		"static":  "plain text ${unclosed",
		"mixed":   "id=${workflow.input.id} and ${lookup.input.key}",
		"nested":  map[string]any{"list": []any{"${transform.output.result}", 3}},
		"counter": "${loop_1.output.iteration}",
		"ignored": "${NUMBER_OF_ITERATIONS.value} ${bare}",
	}
	assert.Equal(t, []string{"fetch", "lookup", "loop_1", "transform"}, TaskRefs(params))
	assert.Empty(t, TaskRefs(nil))
	assert.Empty(t, TaskRefs("no refs"))
}
