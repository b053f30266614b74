// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package interpreter

import (
	"slices"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/seqeval/pkg/core/shapes"
	"github.com/gomlx/seqeval/pkg/core/tensors"
	"github.com/gomlx/seqeval/pkg/model"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Run implements backends.Backend.
//
// Each requested Output node is computed element-wise from the values fed to the Input nodes named in its Args.
// All arguments must have the same sample shape as the output node, the same dtype and the same sequence axes.
// The result takes the dtype and sequence lengths of the first argument, and is placed on device.
//
// The outputs map is only updated if all outputs are computed successfully.
func (b *Backend) Run(graph *model.Graph, inputs map[*model.Node]*tensors.Value, outputs map[*model.Node]*tensors.Value, device tensors.Device) error {
	if graph == nil {
		return errors.New("interpreter: nil graph")
	}
	if err := b.checkDevice(device); err != nil {
		return err
	}
	graphOutputs := graph.Outputs()
	results := make(map[*model.Node]*tensors.Value, len(outputs))
	for node := range outputs {
		if !slices.Contains(graphOutputs, node) {
			return errors.Errorf("interpreter: %s is not an output of %s", node, graph)
		}
		result, err := b.computeOutput(graph, node, inputs, device)
		if err != nil {
			return errors.WithMessagef(err, "interpreter: computing output %q of graph %q", node.Name, graph.Name())
		}
		results[node] = result
	}
	for node, result := range results {
		outputs[node] = result
	}
	klog.V(2).Infof("interpreter: ran %s (id=%s) on %s, %d outputs", graph, graph.ID(), device, len(results))
	return nil
}

// findInput returns the first Input node of graph with the given name.
func findInput(graph *model.Graph, name string) *model.Node {
	for _, node := range graph.Inputs() {
		if node.Name == name {
			return node
		}
	}
	return nil
}

func (b *Backend) computeOutput(graph *model.Graph, node *model.Node, inputs map[*model.Node]*tensors.Value, device tensors.Device) (*tensors.Value, error) {
	op, found := opsTable[node.Op]
	if !found {
		return nil, errors.Errorf("unknown op %q, supported ops are %v", node.Op, Ops())
	}
	if len(node.Args) != op.arity {
		return nil, errors.Errorf("op %q takes %d arguments, got %d", node.Op, op.arity, len(node.Args))
	}
	if name, missing := op.missingParam(node.Params); missing {
		return nil, errors.Errorf("op %q requires parameter %q", node.Op, name)
	}

	args := make([]*tensors.Value, len(node.Args))
	for ii, argName := range node.Args {
		argNode := findInput(graph, argName)
		if argNode == nil {
			return nil, errors.Errorf("argument %q is not an input of the graph", argName)
		}
		value, found := inputs[argNode]
		if !found || value == nil {
			return nil, errors.Errorf("input %q was not fed", argName)
		}
		if err := value.CheckValid(); err != nil {
			return nil, errors.WithMessagef(err, "input %q", argName)
		}
		if !value.IsDense() {
			return nil, errors.Errorf("input %q in %s storage format is not supported", argName, value.Format())
		}
		if !argNode.Shape.Equal(node.Shape) {
			return nil, errors.Errorf("input %q has sample shape %s, but output has sample shape %s", argName, argNode.Shape, node.Shape)
		}
		if value.Rank() != argNode.Shape.Rank()+2 || !value.Shape().HasPrefix(argNode.Shape) {
			return nil, errors.Errorf("input %q value has shape %s, expected %s followed by the samples and sequences axes",
				argName, value.Shape(), argNode.Shape)
		}
		if ii > 0 {
			first := args[0]
			if value.DType() != first.DType() {
				return nil, errors.Errorf("input %q has dtype %s, but %q has dtype %s", argName, value.DType(), node.Args[0], first.DType())
			}
			if !value.Shape().Equal(first.Shape()) || !slices.Equal(value.SequenceLengths(), first.SequenceLengths()) {
				return nil, errors.Errorf("inputs %q and %q have different sequence axes: %s and %s", node.Args[0], argName, first, value)
			}
		}
		args[ii] = value
	}

	outputShape := args[0].Shape().Clone()
	var (
		result *tensors.Value
		err    error
	)
	switch args[0].DType() {
	case dtypes.Float32:
		result, err = compute[float32](b, op, node.Params, args, outputShape, device)
	case dtypes.Float64:
		result, err = compute[float64](b, op, node.Params, args, outputShape, device)
	default:
		err = tensors.CheckDType(args[0].DType())
	}
	if err != nil {
		return nil, err
	}
	return result.WithSequenceLengths(args[0].SequenceLengths())
}

// compute applies op over the flat data of args, one task per sequence.
func compute[T tensors.Float](b *Backend, op opDef, params map[string]float64, args []*tensors.Value, outputShape shapes.Shape, device tensors.Device) (*tensors.Value, error) {
	flats := make([][]T, len(args))
	for ii, arg := range args {
		if err := tensors.ConstFlat(arg, func(flat []T) { flats[ii] = flat }); err != nil {
			return nil, err
		}
	}
	out := make([]T, outputShape.Size())
	numSequences := outputShape.Dim(-1)
	if numSequences > 0 {
		chunkSize := len(out) / numSequences
		b.workers.ParallelFor(numSequences, func(seqIdx int) {
			start := seqIdx * chunkSize
			applyChunk(op, params, flats, out, start, start+chunkSize)
		})
	}
	return tensors.FromFlat(out, outputShape, device)
}
