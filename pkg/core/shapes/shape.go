// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package shapes defines Shape, the ordered list of axis dimensions of a graph node or of a tensor value.
//
// A Shape only describes the dimensions: the element type of a value is carried by the value itself
// (see package tensors), since the nodes of a loaded graph accept either float32 or float64 data.
//
// ## Glossary
//
//   - Rank: number of axes of a shape.
//   - Axis: the index of a dimension. Sometimes used interchangeably with dimension, but here we try to
//     refer to a dimension index as "axis" (plural axes), and its size as its dimension.
//   - Dimension: the extent of a shape in one of its axes. It can be 0, in which case the shape holds no elements.
//   - Size: the number of elements of the shape, the product of all its dimensions. 1 for a scalar.
//
// Example: the sample shape of a node taking 2x3 matrices is created with `shapes.Make(2, 3)`. Values fed to
// that node carry two extra trailing axes, the number of samples per sequence and the number of sequences,
// so a batch of 4 sequences of up to 10 samples each has shape `[2 3 10 4]`.
package shapes

import (
	"fmt"
	"slices"

	"github.com/gomlx/exceptions"
)

// Shape represents the dimensions of a node in a graph, or of a tensor value.
//
// Use Make to create a new shape. Shapes are treated as immutable: methods that derive a new shape
// always return a copy.
type Shape struct {
	Dimensions []int
}

// Make returns a Shape with the given dimensions.
//
// It panics if any of the dimensions is negative: that is a bug in the caller.
func Make(dimensions ...int) Shape {
	s := Shape{Dimensions: slices.Clone(dimensions)}
	for _, dim := range dimensions {
		if dim < 0 {
			exceptions.Panicf("shapes.Make(%v): cannot create a shape with an axis with negative dimension", dimensions)
		}
	}
	return s
}

// Scalar returns the shape with rank 0.
func Scalar() Shape {
	return Shape{}
}

// Rank of the shape, that is, the number of axes.
func (s Shape) Rank() int { return len(s.Dimensions) }

// IsScalar returns whether the shape has no axes.
func (s Shape) IsScalar() bool { return s.Rank() == 0 }

// Dim returns the dimension of the given axis. axis can take negative numbers, in which
// case it counts as starting from the end -- so axis=-1 refers to the last axis.
// Like with a slice indexing, it panics for an out-of-bound axis.
func (s Shape) Dim(axis int) int {
	adjustedAxis := axis
	if adjustedAxis < 0 {
		adjustedAxis += s.Rank()
	}
	if adjustedAxis < 0 || adjustedAxis >= s.Rank() {
		exceptions.Panicf("Shape.Dim(%d) out-of-bounds for rank %d (shape=%s)", axis, s.Rank(), s)
	}
	return s.Dimensions[adjustedAxis]
}

// Size returns the number of elements needed for this shape. It's the product of all dimensions.
func (s Shape) Size() (size int) {
	size = 1
	for _, d := range s.Dimensions {
		size *= d
	}
	return
}

// IsZeroSize returns whether any of the dimensions is 0, in which case the shape holds no elements.
func (s Shape) IsZeroSize() bool {
	return slices.Contains(s.Dimensions, 0)
}

// String implements stringer, pretty-prints the shape.
func (s Shape) String() string {
	if s.Rank() == 0 {
		return "[]"
	}
	return fmt.Sprintf("%v", s.Dimensions)
}

// Equal compares the dimensions of two shapes.
func (s Shape) Equal(s2 Shape) bool {
	return slices.Equal(s.Dimensions, s2.Dimensions)
}

// Clone returns a new deep copy of the shape.
func (s Shape) Clone() Shape {
	return Shape{Dimensions: slices.Clone(s.Dimensions)}
}

// Append returns a new shape with the given dimensions appended as trailing axes.
//
// It panics if any of the new dimensions is negative.
func (s Shape) Append(dimensions ...int) Shape {
	all := make([]int, 0, s.Rank()+len(dimensions))
	all = append(all, s.Dimensions...)
	all = append(all, dimensions...)
	return Make(all...)
}

// HasPrefix returns whether the leading axes of s have exactly the dimensions of prefix.
func (s Shape) HasPrefix(prefix Shape) bool {
	if s.Rank() < prefix.Rank() {
		return false
	}
	return slices.Equal(s.Dimensions[:prefix.Rank()], prefix.Dimensions)
}

// Strides returns the strides for each axis of the shape, in the column-major layout used by
// values exchanged with graphs: the first axis varies fastest, and the last axis (the sequence axis)
// is the slowest, so each sequence occupies a contiguous chunk of the flat data.
//
// Notice the strides are **not in bytes**, but in indices.
func (s Shape) Strides() (strides []int) {
	rank := s.Rank()
	if rank == 0 {
		return
	}
	strides = make([]int, rank)
	currentStride := 1
	for axis := 0; axis < rank; axis++ {
		strides[axis] = currentStride
		currentStride *= s.Dimensions[axis]
	}
	return
}
