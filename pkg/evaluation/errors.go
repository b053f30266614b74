// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package evaluation

import (
	"github.com/gomlx/seqeval/pkg/core/tensors"
	"github.com/pkg/errors"
)

// Errors returned (wrapped, with the offending name, type or shape) by this package. Use errors.Is to check for them.
var (
	// ErrNotLoaded is returned when no graph is given.
	ErrNotLoaded = errors.New("no graph loaded")

	// ErrDuplicateName is returned when two nodes of the same kind share a name.
	ErrDuplicateName = errors.New("duplicate node name")

	// ErrNodeNotFound is returned when a name doesn't match any node of the required kind.
	ErrNodeNotFound = errors.New("node not found")

	// ErrDimensionMismatch is returned when a sequence length is not a multiple of the node's sample size.
	ErrDimensionMismatch = errors.New("the number of elements in the sequence does not match the node dimension")

	// ErrUnsupportedDataType is returned for element types other than float32 or float64.
	ErrUnsupportedDataType = tensors.ErrUnsupportedDataType

	// ErrUnsupportedPlacement is returned when reading a value that is not on the host.
	ErrUnsupportedPlacement = errors.New("unsupported placement, only values on the host can be read")

	// ErrDataTypeMismatch is returned when the requested element type doesn't match the value's.
	ErrDataTypeMismatch = errors.New("the value data type does not match the requested type")

	// ErrUnsupportedStorageFormat is returned when reading a value that is not dense.
	ErrUnsupportedStorageFormat = errors.New("unsupported storage format, only dense values can be read")

	// ErrInvalidArgument is returned for arguments that are never valid, like a node kind that is
	// neither Input nor Output.
	ErrInvalidArgument = errors.New("invalid argument")
)

// ErrInternalConsistency is never returned: it is the panic value (wrapped) raised when a value handed over by a
// backend breaks the shape contract of its node. That is a bug in the backend, not a caller mistake, and
// silently returning wrong data would be worse than crashing.
var ErrInternalConsistency = errors.New("internal consistency violation")

// panicInternalf panics with an error wrapping ErrInternalConsistency.
func panicInternalf(format string, args ...any) {
	panic(errors.Wrapf(ErrInternalConsistency, format, args...))
}
