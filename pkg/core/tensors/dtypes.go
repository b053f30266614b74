// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package tensors

import (
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
)

// Float is the closed set of Go element types values can hold: the graphs evaluated here only take
// float32 or float64 data.
type Float interface {
	float32 | float64
}

// ErrUnsupportedDataType is returned (wrapped) whenever an element type other than float32 or float64 is given.
var ErrUnsupportedDataType = errors.New("unsupported data type, only float32 or float64 are supported")

// DTypeFor returns the dtype corresponding to the Go type T.
func DTypeFor[T Float]() dtypes.DType {
	var v T
	switch any(v).(type) {
	case float32:
		return dtypes.Float32
	default:
		return dtypes.Float64
	}
}

// CheckDType returns an error wrapping ErrUnsupportedDataType if dtype is not Float32 or Float64.
func CheckDType(dtype dtypes.DType) error {
	switch dtype {
	case dtypes.Float32, dtypes.Float64:
		return nil
	}
	return errors.Wrapf(ErrUnsupportedDataType, "data type %s", dtype)
}

// dtypeOfFlat returns the dtype of a flat slice, or an error if it is not a []float32 or []float64.
func dtypeOfFlat(flat any) (dtypes.DType, error) {
	switch flat.(type) {
	case []float32:
		return dtypes.Float32, nil
	case []float64:
		return dtypes.Float64, nil
	}
	return dtypes.InvalidDType, errors.Wrapf(ErrUnsupportedDataType, "flat data of Go type %T", flat)
}

// makeFlat allocates a zero-initialized flat slice of the given dtype.
func makeFlat(dtype dtypes.DType, size int) (any, error) {
	switch dtype {
	case dtypes.Float32:
		return make([]float32, size), nil
	case dtypes.Float64:
		return make([]float64, size), nil
	}
	return nil, CheckDType(dtype)
}
