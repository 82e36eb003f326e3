package compiler

import "fmt"

// CompileError is one diagnostic reported at an offending token:
// lexical, syntactic, or semantic. The compiler accumulates these but
// keeps parsing (the panic flag suppresses cascades, synchronize resumes at
// the next statement boundary) so a single source file can report more
// than one.
type CompileError struct {
	Line    int
	Lexeme  string
	Message string
}

func (e *CompileError) Error() string {
	if e.Lexeme == "" {
		return fmt.Sprintf("[line %d] Error: %s", e.Line, e.Message)
	}
	return fmt.Sprintf("[line %d] Error at '%s': %s", e.Line, e.Lexeme, e.Message)
}

// Errors is the set of compile errors fired during one Compile call;
// Compile returns failure whenever it is non-empty.
type Errors []*CompileError

func (es Errors) Error() string {
	if len(es) == 0 {
		return "no compile errors"
	}
	s := es[0].Error()
	for _, e := range es[1:] {
		s += "\n" + e.Error()
	}
	return s
}
