// Package normalize turns an engine task array into a nested intermediate
// representation with synthetic containers for decision cases and fork
// branches, healing stale join selections on the way.
package normalize

import (
	"fmt"
	"strconv"
)

// Kind is the closed set of item variants.
type Kind int

const (
	KindTask        Kind = iota // leaf call task
	KindLoop                    // DO_WHILE; children are the loop body
	KindDecision                // SWITCH / DECISION; children are KindCase
	KindCase                    // synthetic decision case or default arm
	KindFork                    // FORK_JOIN; children are KindBranch
	KindBranch                  // synthetic fork branch
	KindJoin                    // JOIN
	KindSubWorkflow             // SUB_WORKFLOW reference, never expanded
	KindTerminate               // TERMINATE
	KindUnsupported             // opaque leaf for anything unrecognized
	KindStart                   // root start marker
	KindEnd                     // root end marker
)

var kindNames = [...]string{
	KindTask:        "task",
	KindLoop:        "loop",
	KindDecision:    "decision",
	KindCase:        "case",
	KindFork:        "fork",
	KindBranch:      "branch",
	KindJoin:        "join",
	KindSubWorkflow: "subworkflow",
	KindTerminate:   "terminate",
	KindUnsupported: "unsupported",
	KindStart:       "start",
	KindEnd:         "end",
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// MarshalText renders the kind name.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// IsContainer reports whether items of this kind own children.
func (k Kind) IsContainer() bool {
	switch k {
	case KindLoop, KindDecision, KindCase, KindFork, KindBranch:
		return true
	default:
		return false
	}
}

// IsSynthetic reports whether the kind has no engine task behind it.
func (k Kind) IsSynthetic() bool {
	switch k {
	case KindCase, KindBranch, KindStart, KindEnd:
		return true
	default:
		return false
	}
}

// Marker ids bracketing the root sequence.
const (
	StartID = "__start__"
	EndID   = "__end__"
)

// CaseID is the id of a named decision case container.
func CaseID(decisionRef, name string) string {
	return decisionRef + "#case:" + name
}

// DefaultCaseID is the id of a decision's default arm.
func DefaultCaseID(decisionRef string) string {
	return decisionRef + "#default"
}

// BranchID is the id of the i-th fork branch container.
func BranchID(forkRef string, i int) string {
	return forkRef + "#branch:" + strconv.Itoa(i)
}

// opaqueID is the derived id of a task with no usable reference name.
func opaqueID(path string) string {
	return "__task_" + path
}

// RootPath is the path of the top-level task array.
const RootPath = "tasks"

// IndexPath addresses the i-th task of the list at list.
func IndexPath(list string, i int) string {
	return list + "[" + strconv.Itoa(i) + "]"
}

// LoopPath is the loop body list of the task at task.
func LoopPath(task string) string {
	return task + ".loopOver"
}

// CasePath is the task list of a named decision case.
func CasePath(task, name string) string {
	return task + ".decisionCases[" + name + "]"
}

// DefaultCasePath is the default arm list of a decision.
func DefaultCasePath(task string) string {
	return task + ".defaultCase"
}

// BranchPath is the task list of the i-th fork branch.
func BranchPath(task string, i int) string {
	return task + ".forkTasks[" + strconv.Itoa(i) + "]"
}
