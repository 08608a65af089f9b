package material

import (
	"errors"

	"github.com/gogpu/material/fault"
)

// Error kinds, re-exported from package fault for callers that only import
// material.
var (
	ErrAuthoring = fault.ErrAuthoring
	ErrLookup    = fault.ErrLookup
	ErrCompile   = fault.ErrCompile
)

type (
	AuthoringError = fault.AuthoringError
	LookupError    = fault.LookupError
	CompileError   = fault.CompileError
)

// ErrClosed is returned by Builder methods called after Close.
var ErrClosed = errors.New("material: builder is closed")

// ErrNoHAL is returned by NewBuilder when the provider does not expose
// wgpu/hal device and queue.
var ErrNoHAL = errors.New("material: provider does not expose HAL types")
