package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// DecisionCase is one named arm of a SWITCH task.
type DecisionCase struct {
	Name  string
	Tasks []Task
}

// DecisionCases is the ordered form of the engine's decisionCases object.
// The JSON object's key order is the order the editor presents the arms in,
// so it is preserved on decode and reproduced on encode.
type DecisionCases []DecisionCase

// Get returns the tasks of the named case.
func (c DecisionCases) Get(name string) ([]Task, bool) {
	for _, dc := range c {
		if dc.Name == name {
			return dc.Tasks, true
		}
	}
	return nil, false
}

// Index returns the position of the named case, or -1.
func (c DecisionCases) Index(name string) int {
	for i, dc := range c {
		if dc.Name == name {
			return i
		}
	}
	return -1
}

// MarshalJSON writes the cases as a JSON object in slice order.
func (c DecisionCases) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, dc := range c {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(dc.Name)
		if err != nil {
			return nil, err
		}
		tasks := dc.Tasks
		if tasks == nil {
			tasks = []Task{}
		}
		val, err := json.Marshal(tasks)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a JSON object keeping its key order.
func (c *DecisionCases) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*c = nil
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("decisionCases: expected object, got %v", tok)
	}
	out := DecisionCases{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := tok.(string)
		if !ok {
			return fmt.Errorf("decisionCases: expected string key, got %v", tok)
		}
		var tasks []Task
		if err := dec.Decode(&tasks); err != nil {
			return fmt.Errorf("decisionCases[%s]: %w", name, err)
		}
		if tasks == nil {
			tasks = []Task{}
		}
		out = append(out, DecisionCase{Name: name, Tasks: tasks})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*c = out
	return nil
}
