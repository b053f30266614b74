// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package tensors implements Value, the typed buffer exchanged with graph backends.
//
// A Value holds a flat slice of float32 or float64 elements, tagged with its shape, its storage
// format and its placement (see Device). Values fed to or produced by a graph node have
// rank `nodeRank + 2`: the node's sample axes followed by two implicit axes, the number of samples
// per sequence and the number of sequences.
//
// The data is laid out in column-major order (see shapes.Shape.Strides): the sequence axis varies
// slowest, so each sequence is a contiguous chunk of `sampleSize * samplesPerSequence` elements,
// and within a sequence the samples are stored one after the other.
//
// Sequences of different lengths are padded up to the longest one. In that case the Value carries
// the number of valid samples of each sequence (see Value.SequenceLengths), and the padding
// elements are zero.
//
// Values are not safe for concurrent mutation, but once constructed nothing in this module mutates them:
// constructors take ownership of the given flat slice, and accessors only give read-only views.
//
// There are various ways to construct a Value:
//
//   - FromFlat[T Float](flat []T, shape shapes.Shape, device Device): takes ownership of flat.
//   - FromFlatAny(flat any, shape shapes.Shape, device Device): same, but non-generic. It returns an error
//     wrapping ErrUnsupportedDataType if flat is not a []float32 or a []float64.
//   - Zeros(dtype dtypes.DType, shape shapes.Shape, device Device): zero-initialized.
//   - NewNonDense(dtype dtypes.DType, shape shapes.Shape, device Device): an opaque value in a non-dense
//     storage format, without accessible data.
package tensors

import (
	"fmt"
	"slices"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/seqeval/pkg/core/shapes"
	"github.com/pkg/errors"
)

// StorageFormat of the data of a Value.
type StorageFormat int

const (
	// Dense format: every element is materialized contiguously.
	Dense StorageFormat = iota

	// Sparse is any indexed format. Values in this format carry no accessible data.
	Sparse
)

// String implements fmt.Stringer.
func (f StorageFormat) String() string {
	switch f {
	case Dense:
		return "Dense"
	case Sparse:
		return "Sparse"
	}
	return fmt.Sprintf("StorageFormat(%d)", int(f))
}

// Value is a typed buffer with a shape, a storage format and a placement.
type Value struct {
	dtype  dtypes.DType
	format StorageFormat
	device Device
	shape  shapes.Shape

	// flat holds the data, a []float32 or a []float64 with shape.Size() elements. It is nil for non-dense values.
	flat any

	// sequenceLengths holds the number of valid samples of each sequence, if the value is padded.
	sequenceLengths []int
}

// FromFlat creates a dense Value with the given shape, placed on device, holding flat.
//
// The Value takes ownership of flat: the caller should not change it afterward.
func FromFlat[T Float](flat []T, shape shapes.Shape, device Device) (*Value, error) {
	if len(flat) != shape.Size() {
		return nil, errors.Errorf("FromFlat: flat data has %d elements, but shape %s requires %d", len(flat), shape, shape.Size())
	}
	return &Value{
		dtype:  DTypeFor[T](),
		format: Dense,
		device: device,
		shape:  shape.Clone(),
		flat:   flat,
	}, nil
}

// FromFlatAny is the non-generic version of FromFlat. flat must be a []float32 or a []float64.
func FromFlatAny(flat any, shape shapes.Shape, device Device) (*Value, error) {
	switch typed := flat.(type) {
	case []float32:
		return FromFlat(typed, shape, device)
	case []float64:
		return FromFlat(typed, shape, device)
	}
	_, err := dtypeOfFlat(flat)
	return nil, err
}

// Zeros creates a dense Value filled with zeros.
func Zeros(dtype dtypes.DType, shape shapes.Shape, device Device) (*Value, error) {
	flat, err := makeFlat(dtype, shape.Size())
	if err != nil {
		return nil, err
	}
	return FromFlatAny(flat, shape, device)
}

// NewNonDense creates an opaque Value in the Sparse storage format, with no accessible data.
//
// Backends use it to hand back results this module cannot read.
func NewNonDense(dtype dtypes.DType, shape shapes.Shape, device Device) (*Value, error) {
	if err := CheckDType(dtype); err != nil {
		return nil, err
	}
	return &Value{
		dtype:  dtype,
		format: Sparse,
		device: device,
		shape:  shape.Clone(),
	}, nil
}

// WithSequenceLengths returns a shallow copy of the Value (sharing the same data) with the number of
// valid samples of each sequence.
//
// The value must have rank >= 2, lengths must have one entry per sequence (the last axis), and each length
// must be between 0 and the number of samples per sequence (the second to last axis).
// A nil lengths removes the sequence lengths, meaning all sequences are full.
func (v *Value) WithSequenceLengths(lengths []int) (*Value, error) {
	if lengths != nil {
		rank := v.shape.Rank()
		if rank < 2 {
			return nil, errors.Errorf("WithSequenceLengths: value of shape %s has no sequence axes", v.shape)
		}
		numSequences, maxSamples := v.shape.Dim(-1), v.shape.Dim(-2)
		if len(lengths) != numSequences {
			return nil, errors.Errorf("WithSequenceLengths: got %d lengths for %d sequences (shape %s)", len(lengths), numSequences, v.shape)
		}
		for ii, length := range lengths {
			if length < 0 || length > maxSamples {
				return nil, errors.Errorf("WithSequenceLengths: length %d of sequence #%d is out of range [0, %d]", length, ii, maxSamples)
			}
		}
	}
	clone := *v
	clone.sequenceLengths = slices.Clone(lengths)
	return &clone, nil
}

// DType of the elements of the value.
func (v *Value) DType() dtypes.DType {
	if v == nil {
		return dtypes.InvalidDType
	}
	return v.dtype
}

// Format returns the storage format of the value.
func (v *Value) Format() StorageFormat { return v.format }

// IsDense is a shortcut to `v.Format() == Dense`.
func (v *Value) IsDense() bool { return v.format == Dense }

// Device where the value is placed.
func (v *Value) Device() Device { return v.device }

// Shape of the value. The returned shape must not be changed.
func (v *Value) Shape() shapes.Shape { return v.shape }

// Rank is a shortcut to `v.Shape().Rank()`.
func (v *Value) Rank() int { return v.shape.Rank() }

// Size is a shortcut to `v.Shape().Size()`.
func (v *Value) Size() int { return v.shape.Size() }

// SequenceLengths returns a copy of the number of valid samples of each sequence, or nil if all sequences
// are full (no padding).
func (v *Value) SequenceLengths() []int {
	return slices.Clone(v.sequenceLengths)
}

// CheckValid returns an error if the value is nil, or if its data doesn't match its shape.
func (v *Value) CheckValid() error {
	if v == nil {
		return errors.New("Value is nil")
	}
	if err := CheckDType(v.dtype); err != nil {
		return err
	}
	if v.format != Dense {
		return nil
	}
	flatDType, err := dtypeOfFlat(v.flat)
	if err != nil {
		return err
	}
	if flatDType != v.dtype {
		return errors.Errorf("Value of dtype %s holds data of dtype %s", v.dtype, flatDType)
	}
	if n := flatLen(v.flat); n != v.shape.Size() {
		return errors.Errorf("Value of shape %s holds %d elements, wanted %d", v.shape, n, v.shape.Size())
	}
	return nil
}

// ConstFlatData calls accessFn with the flat data of the value, a []float32 or a []float64.
//
// This provides accessFn with the actual data (not a copy), it should not be changed.
// It returns an error if the value is not dense.
func (v *Value) ConstFlatData(accessFn func(flat any)) error {
	if err := v.CheckValid(); err != nil {
		return err
	}
	if v.format != Dense {
		return errors.Errorf("cannot access the data of a value in %s storage format", v.format)
	}
	accessFn(v.flat)
	return nil
}

// ConstFlat is the generic version of Value.ConstFlatData. It returns an error if T doesn't match
// the value's dtype.
func ConstFlat[T Float](v *Value, accessFn func(flat []T)) error {
	if want := DTypeFor[T](); v.DType() != want {
		var t T
		return errors.Errorf("ConstFlat[%T] is incompatible with Value's dtype %s -- expected dtype %s", t, v.DType(), want)
	}
	return v.ConstFlatData(func(flat any) {
		accessFn(flat.([]T))
	})
}

// CopyTo returns a deep copy of the value placed on device. The sequence lengths are preserved.
//
// It is the building block backends use to implement transfers; a copy from host to host is still a copy.
func (v *Value) CopyTo(device Device) (*Value, error) {
	if err := v.CheckValid(); err != nil {
		return nil, err
	}
	clone := *v
	clone.device = device
	clone.shape = v.shape.Clone()
	clone.sequenceLengths = slices.Clone(v.sequenceLengths)
	switch flat := v.flat.(type) {
	case []float32:
		clone.flat = slices.Clone(flat)
	case []float64:
		clone.flat = slices.Clone(flat)
	}
	return &clone, nil
}

// String implements fmt.Stringer. It doesn't print the data.
func (v *Value) String() string {
	if v == nil {
		return "Value(nil)"
	}
	s := fmt.Sprintf("Value(%s%s, %s, %s)", v.dtype, v.shape, v.format, v.device)
	if v.sequenceLengths != nil {
		s = fmt.Sprintf("%s{lengths=%v}", s, v.sequenceLengths)
	}
	return s
}

func flatLen(flat any) int {
	switch typed := flat.(type) {
	case []float32:
		return len(typed)
	case []float64:
		return len(typed)
	}
	return -1
}
