// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package evaluation converts host batches of sequences to and from tensors.Value, and evaluates
// loaded graphs with a backend.
//
// The main pieces:
//
//   - Registry: resolves the Input and Output nodes of a model.Graph by name.
//   - CreateValue: builds a dense Value from a batch of sequences (`[][]float32` or `[][]float64`),
//     where each sequence holds zero or more samples of the node's shape, flattened.
//   - CopyValueTo: reads a Value back into a batch of sequences.
//   - Executor: evaluates a graph, with arguments and outputs given by node name.
//
// A Value for a node with sample shape `[d0, d1, ...]` has shape `[d0, d1, ..., samplesPerSequence, numSequences]`.
// Sequences shorter than the longest one are padded (see tensors.Value.SequenceLengths), and trimmed back when read.
//
// Example:
//
//	registry := must.M1(evaluation.NewRegistry(graph))
//	in := must.M1(evaluation.CreateValue(registry, "in", [][]float32{{1, 2}, {3, 4}}, tensors.HostDevice()))
//	outputs := map[string]*tensors.Value{"out": nil}
//	must.M(evaluation.NewExecutor(backend).Evaluate(graph, map[string]*tensors.Value{"in": in}, outputs, tensors.HostDevice()))
//	var results [][]float32
//	must.M(evaluation.CopyValueTo(registry, "out", outputs["out"], &results))
//
// Errors caused by the caller are returned, wrapping one of the ErrXXX variables of this package. Values from a
// backend that break the shape contract of their node cause a panic wrapping ErrInternalConsistency.
//
// Nothing in this package holds locks: Registry is immutable and can be shared, and whether one graph can be
// evaluated concurrently is up to the backend used (see backends.Backend).
package evaluation

import (
	"github.com/gomlx/seqeval/pkg/core/shapes"
	"github.com/gomlx/seqeval/pkg/model"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Registry resolves the nodes of a graph by name. It is immutable and safe for concurrent use.
type Registry struct {
	graph *model.Graph

	// byKind indexes the nodes of each kind by name, the first declared node wins.
	byKind map[model.Kind]map[string]*model.Node

	// duplicates holds the first repeated name found for each kind, if any.
	duplicates map[model.Kind]string
}

// NewRegistry indexes the Input and Output nodes of graph.
//
// Duplicate names don't fail here, but on NodesOfKind and SizesOfKind for the kind with the duplicate.
func NewRegistry(graph *model.Graph) (*Registry, error) {
	if graph == nil {
		return nil, errors.Wrap(ErrNotLoaded, "cannot create a node registry")
	}
	r := &Registry{
		graph:      graph,
		byKind:     make(map[model.Kind]map[string]*model.Node, 2),
		duplicates: make(map[model.Kind]string),
	}
	for _, kind := range []model.Kind{model.Input, model.Output} {
		nodes := graph.Nodes(kind)
		index := make(map[string]*model.Node, len(nodes))
		for _, node := range nodes {
			if _, found := index[node.Name]; found {
				if _, reported := r.duplicates[kind]; !reported {
					r.duplicates[kind] = node.Name
					klog.Warningf("graph %q has more than one %s node named %q, only the first one can be resolved",
						graph.Name(), kind, node.Name)
				}
				continue
			}
			index[node.Name] = node
		}
		r.byKind[kind] = index
	}
	return r, nil
}

// Graph returns the graph indexed by the registry.
func (r *Registry) Graph() *model.Graph { return r.graph }

// checkKind returns the nodes of the given kind, or an error if the kind is invalid or has duplicate names.
func (r *Registry) checkKind(kind model.Kind) (map[string]*model.Node, error) {
	index, found := r.byKind[kind]
	if !found {
		return nil, errors.Wrapf(ErrInvalidArgument, "node kind must be %s or %s, got %s", model.Input, model.Output, kind)
	}
	if name, found := r.duplicates[kind]; found {
		return nil, errors.Wrapf(ErrDuplicateName, "%s nodes of graph %q have duplicated name %q", kind, r.graph.Name(), name)
	}
	return index, nil
}

// NodesOfKind returns the sample shape of every node of the given kind, by name.
//
// It fails with ErrDuplicateName if two nodes of the kind share a name, and with ErrInvalidArgument
// if kind is not model.Input or model.Output.
func (r *Registry) NodesOfKind(kind model.Kind) (map[string]shapes.Shape, error) {
	index, err := r.checkKind(kind)
	if err != nil {
		return nil, err
	}
	nodeShapes := make(map[string]shapes.Shape, len(index))
	for name, node := range index {
		nodeShapes[name] = node.Shape.Clone()
	}
	return nodeShapes, nil
}

// SizesOfKind returns the number of elements of one sample of every node of the given kind, by name.
// It follows the same contract as NodesOfKind.
func (r *Registry) SizesOfKind(kind model.Kind) (map[string]int, error) {
	index, err := r.checkKind(kind)
	if err != nil {
		return nil, err
	}
	sizes := make(map[string]int, len(index))
	for name, node := range index {
		sizes[name] = node.Shape.Size()
	}
	return sizes, nil
}

// Resolve returns the node with the given name, searching first the Input nodes, then the Output nodes.
// It fails with ErrNodeNotFound if there is no such node.
func (r *Registry) Resolve(name string) (*model.Node, error) {
	if node, found := r.byKind[model.Input][name]; found {
		return node, nil
	}
	if node, found := r.byKind[model.Output][name]; found {
		return node, nil
	}
	return nil, errors.Wrapf(ErrNodeNotFound, "no input or output node named %q in graph %q", name, r.graph.Name())
}

// ResolveKind returns the node of the given kind with the given name.
// It fails with ErrNodeNotFound if there is no such node.
func (r *Registry) ResolveKind(kind model.Kind, name string) (*model.Node, error) {
	index, found := r.byKind[kind]
	if !found {
		return nil, errors.Wrapf(ErrInvalidArgument, "node kind must be %s or %s, got %s", model.Input, model.Output, kind)
	}
	node, found := index[name]
	if !found {
		return nil, errors.Wrapf(ErrNodeNotFound, "no %s node named %q in graph %q", kind, name, r.graph.Name())
	}
	return node, nil
}
