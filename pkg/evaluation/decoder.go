// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package evaluation

import (
	"github.com/gomlx/seqeval/pkg/core/tensors"
	"github.com/pkg/errors"
)

// CopyValueTo reads value, produced for or by the node with the given name, and appends its sequences to
// *sequences. Each sequence is a slice with the samples of the sequence, flattened in column-major order
// (the same layout taken by CreateValue). Padding samples are not included.
//
// The checks are done in order, and on failure nothing is appended:
//
//   - value must be on the host, otherwise ErrUnsupportedPlacement: use backends.Backend.Transfer first.
//   - T must match the value's dtype, otherwise ErrDataTypeMismatch.
//   - value must be dense, otherwise ErrUnsupportedStorageFormat.
//   - name must be an Input or Output node, otherwise ErrNodeNotFound.
//
// If value doesn't have rank `nodeRank + 2`, or its size doesn't match the node's sample size times the
// sequence axes, it panics with an error wrapping ErrInternalConsistency.
//
// The appended slices hold a copy of the data and are owned by the caller.
func CopyValueTo[T tensors.Float](r *Registry, name string, value *tensors.Value, sequences *[][]T) error {
	if value == nil || sequences == nil {
		return errors.Wrapf(ErrInvalidArgument, "CopyValueTo(%q) requires a non-nil value and output", name)
	}
	if !value.Device().IsHost() {
		return errors.Wrapf(ErrUnsupportedPlacement, "value %s for node %q is placed on %s", value, name, value.Device())
	}
	if want := tensors.DTypeFor[T](); value.DType() != want {
		return errors.Wrapf(ErrDataTypeMismatch, "value %s for node %q can't be read as %s", value, name, want)
	}
	if !value.IsDense() {
		return errors.Wrapf(ErrUnsupportedStorageFormat, "value %s for node %q", value, name)
	}
	node, err := r.Resolve(name)
	if err != nil {
		return err
	}

	nodeRank := node.Shape.Rank()
	if value.Rank() != nodeRank+2 {
		panicInternalf("value %s for node %q should have rank %d (node shape %s plus 2 sequence axes)",
			value, name, nodeRank+2, node.Shape)
	}
	sampleSize := node.Shape.Size()
	samplesPerSequence, numSequences := value.Shape().Dim(nodeRank), value.Shape().Dim(nodeRank+1)
	if sampleSize*samplesPerSequence*numSequences != value.Size() {
		panicInternalf("value %s for node %q has %d elements, but node size %d x %d samples x %d sequences = %d",
			value, name, value.Size(), sampleSize, samplesPerSequence, numSequences, sampleSize*samplesPerSequence*numSequences)
	}

	// Values are immutable, but the copy detaches the results from any buffer the backend may still reference.
	hostValue, err := value.CopyTo(tensors.HostDevice())
	if err != nil {
		return errors.WithMessagef(err, "copying value for node %q", name)
	}
	lengths := hostValue.SequenceLengths()
	chunkSize := sampleSize * samplesPerSequence
	results := make([][]T, 0, numSequences)
	err = tensors.ConstFlat(hostValue, func(flat []T) {
		for ii := range numSequences {
			start := ii * chunkSize
			end := start + chunkSize
			if lengths != nil {
				end = start + lengths[ii]*sampleSize
			}
			// Cap the capacity, so appending to one sequence never overwrites the next one.
			results = append(results, flat[start:end:end])
		}
	})
	if err != nil {
		return errors.WithMessagef(err, "reading value for node %q", name)
	}
	*sequences = append(*sequences, results...)
	return nil
}

// CopyValueToAny is the non-generic version of CopyValueTo: sequences must be a *[][]float32 or a *[][]float64,
// otherwise it fails with ErrUnsupportedDataType.
func CopyValueToAny(r *Registry, name string, value *tensors.Value, sequences any) error {
	switch typed := sequences.(type) {
	case *[][]float32:
		return CopyValueTo(r, name, value, typed)
	case *[][]float64:
		return CopyValueTo(r, name, value, typed)
	}
	return errors.Wrapf(ErrUnsupportedDataType, "cannot copy value for node %q into %T", name, sequences)
}
