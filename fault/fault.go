// Package fault defines the error taxonomy shared by the material packages.
//
// Three kinds of failure exist:
//
//   - [AuthoringError]: fragment content is wrong (schema violation, duplicate
//     override, mismatched declarations). Fix the named file.
//   - [LookupError]: an id of 0, an out-of-range id or an unknown name was
//     passed to an interning table. This is an integration bug at the call site.
//   - [CompileError]: the shading compiler rejected generated text. The full
//     text is attached to the error value.
//
// None of them are retried: every operation is deterministic for its inputs.
package fault

import (
	"errors"
	"fmt"
	"strconv"
)

// Sentinel errors matched by the typed errors through errors.Is.
var (
	// ErrAuthoring matches every *AuthoringError.
	ErrAuthoring = errors.New("material: authoring error")

	// ErrLookup matches every *LookupError.
	ErrLookup = errors.New("material: lookup error")

	// ErrCompile matches every *CompileError.
	ErrCompile = errors.New("material: compile error")
)

// AuthoringError reports invalid fragment content.
type AuthoringError struct {
	// Source names the offending file, unit or fragment. May be empty when
	// the problem spans several fragments selected by one mask.
	Source string
	Reason string
	Err    error
}

// Authoringf builds an *AuthoringError with a formatted reason.
func Authoringf(source, format string, args ...any) *AuthoringError {
	return &AuthoringError{Source: source, Reason: fmt.Sprintf(format, args...)}
}

func (e *AuthoringError) Error() string {
	msg := "material: authoring: "
	if e.Source != "" {
		msg += e.Source + ": "
	}
	msg += e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *AuthoringError) Unwrap() error { return e.Err }

func (e *AuthoringError) Is(target error) bool { return target == ErrAuthoring }

// LookupError reports an invalid id or name passed to a table accessor.
type LookupError struct {
	Table string
	ID    uint64
	Name  string
}

func (e *LookupError) Error() string {
	if e.Name != "" {
		return "material: lookup: " + e.Table + ": unknown name " + strconv.Quote(e.Name)
	}
	if e.ID == 0 {
		return "material: lookup: " + e.Table + ": id 0 is invalid"
	}
	return "material: lookup: " + e.Table + ": id " + strconv.FormatUint(e.ID, 10) + " out of range"
}

func (e *LookupError) Is(target error) bool { return target == ErrLookup }

// CompileError reports source text rejected by the shading compiler.
type CompileError struct {
	Stage  string
	Name   string
	Source string
	Err    error
}

func (e *CompileError) Error() string {
	msg := "material: compile " + e.Stage + " shader " + strconv.Quote(e.Name)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *CompileError) Unwrap() error { return e.Err }

func (e *CompileError) Is(target error) bool { return target == ErrCompile }

// Listing returns the generated source with line numbers, for diagnostics.
func (e *CompileError) Listing() string {
	out := make([]byte, 0, len(e.Source)+len(e.Source)/8)
	line := 1
	start := true
	for i := 0; i < len(e.Source); i++ {
		if start {
			out = fmt.Appendf(out, "%4d | ", line)
			start = false
		}
		out = append(out, e.Source[i])
		if e.Source[i] == '\n' {
			line++
			start = true
		}
	}
	return string(out)
}
