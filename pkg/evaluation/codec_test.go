// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package evaluation

import (
	"testing"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/seqeval/pkg/core/shapes"
	"github.com/gomlx/seqeval/pkg/core/tensors"
	"github.com/gomlx/seqeval/pkg/model"
	"github.com/google/go-cmp/cmp"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// roundTrip encodes sequences for node "a" of testGraph, checks the value and decodes it back.
func roundTrip[T tensors.Float](t *testing.T, r *Registry, sequences [][]T, wantShape []int, wantLengths []int) {
	value, err := CreateValue(r, "a", sequences, tensors.HostDevice())
	require.NoError(t, err)
	assert.Equal(t, tensors.DTypeFor[T](), value.DType())
	assert.True(t, value.IsDense())
	assert.True(t, value.Device().IsHost())
	assert.Equal(t, wantShape, value.Shape().Dimensions)
	assert.Equal(t, wantLengths, value.SequenceLengths())

	var got [][]T
	require.NoError(t, CopyValueTo(r, "a", value, &got))
	if diff := cmp.Diff(sequences, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestRoundTrip(t *testing.T) {
	r := must.M1(NewRegistry(testGraph(t)))
	t.Run("float32", func(t *testing.T) {
		sequences := [][]float32{
			{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12},
			{-1, -2, -3, -4, -5, -6, -7, -8, -9, -10, -11, -12},
		}
		roundTrip(t, r, sequences, []int{2, 3, 2, 2}, nil)
	})
	t.Run("float64-variable-length", func(t *testing.T) {
		sequences := [][]float64{
			{1, 2, 3, 4, 5, 6},
			{},
			{0.5, 1.5, 2.5, 3.5, 4.5, 5.5, 6.5, 7.5, 8.5, 9.5, 10.5, 11.5, 12.5, 13.5, 14.5, 15.5, 16.5, 17.5},
		}
		roundTrip(t, r, sequences, []int{2, 3, 3, 3}, []int{1, 0, 3})
	})
}

func TestCreateValueLayout(t *testing.T) {
	r := must.M1(NewRegistry(testGraph(t)))
	value := must.M1(CreateValue(r, "b", [][]float32{{1, 2, 3, 4}, {5, 6, 7, 8, 9, 10, 11, 12}}, tensors.HostDevice()))
	assert.Equal(t, []int{4, 2, 2}, value.Shape().Dimensions)
	assert.Equal(t, []int{1, 2}, value.SequenceLengths())
	require.NoError(t, tensors.ConstFlat(value, func(flat []float32) {
		// Each sequence is a contiguous chunk, the first one padded with zeros.
		assert.Equal(t, []float32{1, 2, 3, 4, 0, 0, 0, 0, 5, 6, 7, 8, 9, 10, 11, 12}, flat)
	}))

	// The value doesn't share memory with the given sequences.
	sequences := [][]float64{{1, 2, 3, 4}}
	value = must.M1(CreateValue(r, "b_neg", sequences, tensors.AcceleratorDevice(0)))
	sequences[0][0] = 100
	assert.Equal(t, tensors.AcceleratorDevice(0), value.Device())
	require.NoError(t, tensors.ConstFlat(value, func(flat []float64) {
		assert.Equal(t, []float64{1, 2, 3, 4}, flat)
	}))
}

func TestCreateValueEmpty(t *testing.T) {
	r := must.M1(NewRegistry(testGraph(t)))
	for _, sequences := range [][][]float32{nil, {}} {
		value, err := CreateValue(r, "a", sequences, tensors.HostDevice())
		require.NoError(t, err)
		assert.Equal(t, []int{2, 3, 0, 0}, value.Shape().Dimensions)
		assert.Equal(t, 0, value.Size())

		var got [][]float32
		require.NoError(t, CopyValueTo(r, "a", value, &got))
		assert.Empty(t, got)
	}

	// Batch of empty sequences.
	value := must.M1(CreateValue(r, "b", [][]float64{{}, {}}, tensors.HostDevice()))
	assert.Equal(t, []int{4, 0, 2}, value.Shape().Dimensions)
	var got [][]float64
	require.NoError(t, CopyValueTo(r, "b", value, &got))
	assert.Equal(t, [][]float64{{}, {}}, got)
}

func TestCreateValueZeroSizeNode(t *testing.T) {
	g := must.M1(model.NewGraph("zero",
		model.NewInput("z", shapes.Make(3, 0)),
		model.NewOutput("out", shapes.Make(3, 0), "identity", "z"),
	))
	r := must.M1(NewRegistry(g))
	value, err := CreateValue(r, "z", [][]float32{{}, {}, {}}, tensors.HostDevice())
	require.NoError(t, err)
	assert.Equal(t, []int{3, 0, 0, 3}, value.Shape().Dimensions)

	_, err = CreateValue(r, "z", [][]float32{{}, {1}}, tensors.HostDevice())
	require.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestCreateValueErrors(t *testing.T) {
	g := must.M1(model.NewGraph("three",
		model.NewInput("x", shapes.Make(3)),
		model.NewOutput("y", shapes.Make(3), "identity", "x"),
	))
	r := must.M1(NewRegistry(g))

	_, err := CreateValue(r, "x", [][]float32{{1, 2, 3}, {1, 2, 3, 4, 5}}, tensors.HostDevice())
	require.ErrorIs(t, err, ErrDimensionMismatch)
	assert.Contains(t, err.Error(), "sequence #1")

	_, err = CreateValue(r, "missing", [][]float64{{1, 2, 3}}, tensors.HostDevice())
	require.ErrorIs(t, err, ErrNodeNotFound)

	_, err = CreateValueFromAny(r, "x", [][]int{{1, 2, 3}}, tensors.HostDevice())
	require.ErrorIs(t, err, ErrUnsupportedDataType)
	assert.Contains(t, err.Error(), "[][]int")

	value, err := CreateValueFromAny(r, "y", [][]float64{{1, 2, 3}}, tensors.HostDevice())
	require.NoError(t, err)
	assert.Equal(t, dtypes.Float64, value.DType())
	assert.Equal(t, []int{3, 1, 1}, value.Shape().Dimensions)
}

func TestCopyValueToErrors(t *testing.T) {
	r := must.M1(NewRegistry(testGraph(t)))
	sequences := [][]float64{{1, 2, 3, 4}}
	value := must.M1(CreateValue(r, "b", sequences, tensors.HostDevice()))

	// Nothing is appended on failure.
	got := [][]float32{{42}}
	err := CopyValueTo(r, "b", value, &got)
	require.ErrorIs(t, err, ErrDataTypeMismatch)
	assert.Equal(t, [][]float32{{42}}, got)

	sparse := must.M1(tensors.NewNonDense(dtypes.Float64, shapes.Make(4, 1, 1), tensors.HostDevice()))
	var got64 [][]float64
	require.ErrorIs(t, CopyValueTo(r, "b", sparse, &got64), ErrUnsupportedStorageFormat)

	onAccelerator := must.M1(value.CopyTo(tensors.AcceleratorDevice(0)))
	require.ErrorIs(t, CopyValueTo(r, "b", onAccelerator, &got64), ErrUnsupportedPlacement)

	// Placement is checked first, then data type, then storage format, then the node name.
	sparseOnAccelerator := must.M1(tensors.NewNonDense(dtypes.Float32, shapes.Make(4, 1, 1), tensors.AcceleratorDevice(0)))
	require.ErrorIs(t, CopyValueTo(r, "missing", sparseOnAccelerator, &got64), ErrUnsupportedPlacement)
	require.ErrorIs(t, CopyValueTo(r, "missing", sparse, &got), ErrDataTypeMismatch)
	require.ErrorIs(t, CopyValueTo(r, "missing", sparse, &got64), ErrUnsupportedStorageFormat)
	require.ErrorIs(t, CopyValueTo(r, "missing", value, &got64), ErrNodeNotFound)
	assert.Empty(t, got64)

	require.ErrorIs(t, CopyValueTo[float64](r, "b", nil, &got64), ErrInvalidArgument)
	require.ErrorIs(t, CopyValueTo[float64](r, "b", value, nil), ErrInvalidArgument)
	require.ErrorIs(t, CopyValueToAny(r, "b", value, &[][]int{}), ErrUnsupportedDataType)
	require.NoError(t, CopyValueToAny(r, "b", value, &got64))
	assert.Equal(t, sequences, got64)
}

func TestCopyValueToInternalConsistency(t *testing.T) {
	r := must.M1(NewRegistry(testGraph(t)))
	var got [][]float32

	// Node "b" has rank 1, so values must have rank 3.
	wrongRank := must.M1(tensors.FromFlat(make([]float32, 8), shapes.Make(4, 2), tensors.HostDevice()))
	err := exceptions.TryCatch[error](func() { _ = CopyValueTo(r, "b", wrongRank, &got) })
	require.ErrorIs(t, err, ErrInternalConsistency)

	// Right rank, but the sample axes don't match the size of "b".
	wrongSize := must.M1(tensors.FromFlat(make([]float32, 6), shapes.Make(3, 1, 2), tensors.HostDevice()))
	err = exceptions.TryCatch[error](func() { _ = CopyValueTo(r, "b", wrongSize, &got) })
	require.ErrorIs(t, err, ErrInternalConsistency)
	assert.Empty(t, got)
}

func TestCopyValueToOwnership(t *testing.T) {
	r := must.M1(NewRegistry(testGraph(t)))
	value := must.M1(CreateValue(r, "b", [][]float32{{1, 2, 3, 4}, {5, 6, 7, 8}}, tensors.HostDevice()))
	var got [][]float32
	require.NoError(t, CopyValueTo(r, "b", value, &got))
	require.Len(t, got, 2)

	// Appending to a sequence must not overwrite the next one, nor change the value.
	got[0] = append(got[0], 100)
	got[1][0] = 200
	assert.Equal(t, []float32{1, 2, 3, 4, 100}, got[0])
	assert.Equal(t, []float32{200, 6, 7, 8}, got[1])
	require.NoError(t, tensors.ConstFlat(value, func(flat []float32) {
		assert.Equal(t, []float32{1, 2, 3, 4, 5, 6, 7, 8}, flat)
	}))

	// A second copy appends.
	require.NoError(t, CopyValueTo(r, "b", value, &got))
	assert.Len(t, got, 4)
}
