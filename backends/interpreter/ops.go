// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package interpreter

import (
	"math"
	"sort"

	"github.com/gomlx/seqeval/pkg/core/tensors"
)

// opDef defines an element-wise op: its number of arguments, the parameters it requires, and the function
// computing one output element from one element of each argument.
type opDef struct {
	arity  int
	params []string
	fn     func(x []float64, params map[string]float64) float64
}

var opsTable = map[string]opDef{
	"identity": {arity: 1, fn: func(x []float64, _ map[string]float64) float64 { return x[0] }},
	"neg":      {arity: 1, fn: func(x []float64, _ map[string]float64) float64 { return -x[0] }},
	"relu":     {arity: 1, fn: func(x []float64, _ map[string]float64) float64 { return math.Max(x[0], 0) }},
	"sigmoid":  {arity: 1, fn: func(x []float64, _ map[string]float64) float64 { return 1 / (1 + math.Exp(-x[0])) }},
	"tanh":     {arity: 1, fn: func(x []float64, _ map[string]float64) float64 { return math.Tanh(x[0]) }},
	"scale": {arity: 1, params: []string{"factor"},
		fn: func(x []float64, p map[string]float64) float64 { return x[0] * p["factor"] }},
	"shift": {arity: 1, params: []string{"offset"},
		fn: func(x []float64, p map[string]float64) float64 { return x[0] + p["offset"] }},
	"add": {arity: 2, fn: func(x []float64, _ map[string]float64) float64 { return x[0] + x[1] }},
	"sub": {arity: 2, fn: func(x []float64, _ map[string]float64) float64 { return x[0] - x[1] }},
	"mul": {arity: 2, fn: func(x []float64, _ map[string]float64) float64 { return x[0] * x[1] }},
}

// Ops returns the sorted names of the supported ops.
func Ops() []string {
	names := make([]string, 0, len(opsTable))
	for name := range opsTable {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// missingParam returns the first required parameter not present in params, if any.
func (op opDef) missingParam(params map[string]float64) (string, bool) {
	for _, name := range op.params {
		if _, found := params[name]; !found {
			return name, true
		}
	}
	return "", false
}

// applyChunk computes out[i] = op(args[0][i], args[1][i], ...) for i in [start, end).
func applyChunk[T tensors.Float](op opDef, params map[string]float64, args [][]T, out []T, start, end int) {
	x := make([]float64, len(args))
	for i := start; i < end; i++ {
		for argIdx, arg := range args {
			x[argIdx] = float64(arg[i])
		}
		out[i] = T(op.fn(x, params))
	}
}
