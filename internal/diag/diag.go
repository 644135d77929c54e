// Package diag implements the compiler's unified diagnostic sink (spec.md §7).
//
// Every phase reports failures through a Sink rather than returning ad-hoc
// errors, so the driver can print every diagnostic a phase produced before
// deciding whether to abort at the next phase boundary.
package diag

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind is one of the compile-time error kinds enumerated in spec.md §7.
type Kind string

const (
	Lex               Kind = "LEX"
	Parse             Kind = "PARSE"
	TypeMismatch      Kind = "TYPE_MISMATCH"
	NarrowingRequired Kind = "NARROWING_REQUIRED"
	Undefined         Kind = "UNDEFINED"
	Redefinition      Kind = "REDEFINITION"
	BadControlFlow    Kind = "BAD_CONTROL_FLOW"
	OptionViolation   Kind = "OPTION_VIOLATION"
	BackendInvariant  Kind = "BACKEND_INVARIANT"
)

// Location is a source position: 1-based line and column.
type Location struct {
	Line   int
	Column int
	File   string
}

func (l Location) String() string {
	if l.File == "" {
		return fmt.Sprintf("%d:%d", l.Line, l.Column)
	}
	return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
}

// Diagnostic is a single reported problem.
type Diagnostic struct {
	Kind    Kind
	Loc     Location
	Message string
	Fatal   bool // true aborts the phase immediately (structural errors)
}

func (d Diagnostic) Error() string {
	return fmt.Sprintf("%s: %s: %s", d.Loc, d.Kind, d.Message)
}

// Sink accumulates diagnostics for one compilation. It is threaded through
// every phase on CompilationContext; there is no package-level singleton.
type Sink struct {
	diags []Diagnostic
}

// NewSink returns an empty diagnostic sink.
func NewSink() *Sink {
	return &Sink{}
}

// Report records a non-fatal diagnostic and continues.
func (s *Sink) Report(kind Kind, loc Location, format string, args ...any) {
	s.diags = append(s.diags, Diagnostic{
		Kind:    kind,
		Loc:     loc,
		Message: fmt.Sprintf(format, args...),
	})
}

// Fatal records a diagnostic that aborts the current phase and returns an
// error wrapped with a stack trace so the phase boundary that aborted is
// visible in logs.
func (s *Sink) Fatal(kind Kind, loc Location, format string, args ...any) error {
	d := Diagnostic{
		Kind:    kind,
		Loc:     loc,
		Message: fmt.Sprintf(format, args...),
		Fatal:   true,
	}
	s.diags = append(s.diags, d)
	return errors.WithStack(d)
}

// HasErrors reports whether any diagnostic was recorded.
func (s *Sink) HasErrors() bool {
	return len(s.diags) > 0
}

// Diagnostics returns all recorded diagnostics in report order.
func (s *Sink) Diagnostics() []Diagnostic {
	return s.diags
}

// Strings renders every diagnostic as a one-line string, for CLI output.
func (s *Sink) Strings() []string {
	out := make([]string, 0, len(s.diags))
	for _, d := range s.diags {
		out = append(out, d.Error())
	}
	return out
}
