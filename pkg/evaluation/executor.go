// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package evaluation

import (
	"github.com/gomlx/seqeval/backends"
	"github.com/gomlx/seqeval/pkg/core/tensors"
	"github.com/gomlx/seqeval/pkg/model"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Executor evaluates graphs with a backend.
//
// It holds no state besides the backend: whether it can be used concurrently depends on the backend.
type Executor struct {
	backend backends.Backend
}

// NewExecutor returns an Executor that runs graphs with the given backend.
func NewExecutor(backend backends.Backend) *Executor {
	return &Executor{backend: backend}
}

// Backend used by the executor.
func (e *Executor) Backend() backends.Backend { return e.backend }

// Evaluate runs graph on device.
//
// The arguments map Input node names to the values fed to them. The outputs map Output node names
// to a placeholder, usually nil: after a successful evaluation each entry holds the value computed
// for that node. Both maps are keyed by name, and a name that doesn't match a node of the right kind
// fails with ErrNodeNotFound before anything is run. A nil graph fails with ErrNotLoaded.
//
// Errors from the backend are returned with context added, and the outputs map is left untouched.
func (e *Executor) Evaluate(graph *model.Graph, arguments, outputs map[string]*tensors.Value, device tensors.Device) error {
	registry, err := NewRegistry(graph)
	if err != nil {
		return err
	}
	return e.EvaluateWith(registry, arguments, outputs, device)
}

// EvaluateWith is like Evaluate, but it reuses a Registry for the graph to evaluate. A nil registry fails
// with ErrNotLoaded.
func (e *Executor) EvaluateWith(registry *Registry, arguments, outputs map[string]*tensors.Value, device tensors.Device) error {
	if e.backend == nil {
		return errors.Wrap(ErrInvalidArgument, "Executor has no backend")
	}
	if registry == nil {
		return errors.Wrap(ErrNotLoaded, "EvaluateWith requires a Registry")
	}
	graph := registry.Graph()
	inputsByNode := make(map[*model.Node]*tensors.Value, len(arguments))
	for name, value := range arguments {
		node, err := registry.ResolveKind(model.Input, name)
		if err != nil {
			return errors.WithMessage(err, "resolving evaluation arguments")
		}
		inputsByNode[node] = value
	}
	outputsByNode := make(map[*model.Node]*tensors.Value, len(outputs))
	for name, value := range outputs {
		node, err := registry.ResolveKind(model.Output, name)
		if err != nil {
			return errors.WithMessage(err, "resolving evaluation outputs")
		}
		outputsByNode[node] = value
	}

	klog.V(1).Infof("evaluating %s (id=%s) with backend %q on %s: %d arguments, %d outputs",
		graph, graph.ID(), e.backend.Name(), device, len(inputsByNode), len(outputsByNode))
	if err := e.backend.Run(graph, inputsByNode, outputsByNode, device); err != nil {
		return errors.WithMessagef(err, "failed to evaluate graph %q with backend %q", graph.Name(), e.backend.Name())
	}
	for node, value := range outputsByNode {
		outputs[node.Name] = value
	}
	return nil
}
