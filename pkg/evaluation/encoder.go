// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package evaluation

import (
	"github.com/gomlx/seqeval/pkg/core/tensors"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// CreateValue builds a dense Value, placed on device, for the node with the given name from a batch of sequences.
//
// Each sequence holds zero or more samples of the node's shape, flattened in column-major order and concatenated,
// so its length must be a multiple of the node's sample size, otherwise it fails with ErrDimensionMismatch.
// It fails with ErrNodeNotFound if no Input or Output node has the given name.
//
// The Value has shape `[nodeShape..., maxSamples, len(sequences)]`, where maxSamples is the number of samples
// of the longest sequence. Shorter sequences are padded with zeros, and the Value records their lengths
// (see tensors.Value.SequenceLengths). An empty batch gives a Value of shape `[nodeShape..., 0, 0]`.
//
// The sequences are copied, the caller can reuse them afterward.
func CreateValue[T tensors.Float](r *Registry, name string, sequences [][]T, device tensors.Device) (*tensors.Value, error) {
	node, err := r.Resolve(name)
	if err != nil {
		return nil, err
	}
	sampleSize := node.Shape.Size()
	lengths := make([]int, len(sequences))
	maxSamples := 0
	for ii, sequence := range sequences {
		if sampleSize == 0 {
			if len(sequence) != 0 {
				return nil, errors.Wrapf(ErrDimensionMismatch,
					"sequence #%d for node %q has %d elements, but the node shape %s has no elements",
					ii, name, len(sequence), node.Shape)
			}
			continue
		}
		if len(sequence)%sampleSize != 0 {
			return nil, errors.Wrapf(ErrDimensionMismatch,
				"sequence #%d for node %q has %d elements, which is not a multiple of the node size %d (shape %s)",
				ii, name, len(sequence), sampleSize, node.Shape)
		}
		lengths[ii] = len(sequence) / sampleSize
		maxSamples = max(maxSamples, lengths[ii])
	}

	shape := node.Shape.Append(maxSamples, len(sequences))
	flat := make([]T, shape.Size())
	sequenceStride := shape.Strides()[shape.Rank()-1]
	padded := false
	for ii, sequence := range sequences {
		copy(flat[ii*sequenceStride:], sequence)
		if lengths[ii] != maxSamples {
			padded = true
		}
	}
	value, err := tensors.FromFlat(flat, shape, device)
	if err != nil {
		return nil, errors.WithMessagef(err, "creating value for node %q", name)
	}
	if padded {
		value, err = value.WithSequenceLengths(lengths)
		if err != nil {
			return nil, errors.WithMessagef(err, "creating value for node %q", name)
		}
	}
	if klog.V(2).Enabled() {
		klog.Infof("created %s for node %q from %d sequences", value, name, len(sequences))
	}
	return value, nil
}

// CreateValueFromAny is the non-generic version of CreateValue: sequences must be a [][]float32 or a [][]float64,
// otherwise it fails with ErrUnsupportedDataType.
func CreateValueFromAny(r *Registry, name string, sequences any, device tensors.Device) (*tensors.Value, error) {
	switch typed := sequences.(type) {
	case [][]float32:
		return CreateValue(r, name, typed, device)
	case [][]float64:
		return CreateValue(r, name, typed, device)
	}
	return nil, errors.Wrapf(ErrUnsupportedDataType, "cannot create a value for node %q from sequences of type %T", name, sequences)
}
