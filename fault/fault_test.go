package fault

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestSentinelMatching(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
	}{
		{"authoring", Authoringf("a.msh", "bad"), ErrAuthoring},
		{"lookup", &LookupError{Table: "layouts"}, ErrLookup},
		{"compile", &CompileError{Stage: "vertex", Name: "x"}, ErrCompile},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("outer: %w", tt.err)
			if !errors.Is(wrapped, tt.sentinel) {
				t.Errorf("errors.Is(%v, %v) = false", wrapped, tt.sentinel)
			}
			for _, other := range []error{ErrAuthoring, ErrLookup, ErrCompile} {
				if other != tt.sentinel && errors.Is(wrapped, other) {
					t.Errorf("%v unexpectedly matches %v", wrapped, other)
				}
			}
		})
	}
}

func TestLookupErrorMessages(t *testing.T) {
	tests := []struct {
		err  *LookupError
		want string
	}{
		{&LookupError{Table: "layouts"}, "material: lookup: layouts: id 0 is invalid"},
		{&LookupError{Table: "layouts", ID: 7}, "material: lookup: layouts: id 7 out of range"},
		{&LookupError{Table: "masks", Name: "GRASS"}, `material: lookup: masks: unknown name "GRASS"`},
	}
	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.want {
			t.Errorf("Error() = %q, want %q", got, tt.want)
		}
	}
}

func TestAuthoringErrorUnwrap(t *testing.T) {
	inner := errors.New("boom")
	err := &AuthoringError{Source: "grass.msh", Reason: "schema", Err: inner}
	if !errors.Is(err, inner) {
		t.Error("AuthoringError does not unwrap to its cause")
	}
	if got := err.Error(); got != "material: authoring: grass.msh: schema: boom" {
		t.Errorf("Error() = %q", got)
	}

	var ae *AuthoringError
	if !errors.As(fmt.Errorf("load: %w", err), &ae) || ae.Source != "grass.msh" {
		t.Error("errors.As failed to recover the source file")
	}
}

func TestCompileErrorKeepsSource(t *testing.T) {
	src := "fn a() {}\nfn b() {}\n"
	err := &CompileError{Stage: "pixel", Name: "ps.BASE", Source: src, Err: errors.New("parse")}
	if strings.Contains(err.Error(), "fn a") {
		t.Error("Error() should stay on one line without the source")
	}
	listing := err.Listing()
	if !strings.Contains(listing, "   1 | fn a() {}") || !strings.Contains(listing, "   2 | fn b() {}") {
		t.Errorf("Listing() = %q", listing)
	}
}
