package vm

import (
	"fmt"
	"strings"
)

// StackFrame is one entry of a RuntimeError's call-stack trace: the
// frame's function name with "()" appended (or "script" for top-level
// code) and the source line active when the error fired.
type StackFrame struct {
	Name string
	Line int
}

// RuntimeError carries the message and the call stack at the moment it
// fired, innermost frame first.
type RuntimeError struct {
	Message    string
	StackTrace []StackFrame
}

// Error formats the message followed by one "[line N] in <name>()" (or
// "... in script") line per frame, innermost first.
func (e *RuntimeError) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)
	for _, f := range e.StackTrace {
		fmt.Fprintf(&b, "\n[line %d] in %s", f.Line, f.Name)
	}
	return b.String()
}
