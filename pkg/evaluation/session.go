// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package evaluation

import (
	"context"

	"github.com/gomlx/seqeval/backends"
	"github.com/gomlx/seqeval/pkg/core/shapes"
	"github.com/gomlx/seqeval/pkg/core/tensors"
	"github.com/gomlx/seqeval/pkg/model"
	"github.com/pkg/errors"
)

// Session bundles a loaded graph with its Registry and an Executor, for the common case of evaluating one graph
// with one backend.
type Session struct {
	registry *Registry
	executor *Executor
}

// NewSession for graph, evaluated with backend.
func NewSession(graph *model.Graph, backend backends.Backend) (*Session, error) {
	registry, err := NewRegistry(graph)
	if err != nil {
		return nil, err
	}
	if backend == nil {
		return nil, errors.Wrap(ErrInvalidArgument, "NewSession requires a backend")
	}
	return &Session{registry: registry, executor: NewExecutor(backend)}, nil
}

// LoadSession loads the graph description in path (see model.Load) and creates a Session for it.
func LoadSession(ctx context.Context, path string, backend backends.Backend) (*Session, error) {
	graph, err := model.Load(ctx, path)
	if err != nil {
		return nil, err
	}
	return NewSession(graph, backend)
}

// Graph of the session.
func (s *Session) Graph() *model.Graph { return s.registry.Graph() }

// Registry of the session's graph, to use with CreateValue and CopyValueTo.
func (s *Session) Registry() *Registry { return s.registry }

// Backend of the session.
func (s *Session) Backend() backends.Backend { return s.executor.Backend() }

// NodesOfKind is a shortcut to Registry.NodesOfKind.
func (s *Session) NodesOfKind(kind model.Kind) (map[string]shapes.Shape, error) {
	return s.registry.NodesOfKind(kind)
}

// SizesOfKind is a shortcut to Registry.SizesOfKind.
func (s *Session) SizesOfKind(kind model.Kind) (map[string]int, error) {
	return s.registry.SizesOfKind(kind)
}

// Evaluate the session's graph, see Executor.Evaluate.
func (s *Session) Evaluate(arguments, outputs map[string]*tensors.Value, device tensors.Device) error {
	return s.executor.EvaluateWith(s.registry, arguments, outputs, device)
}

// Fetch returns value placed on the host, transferring it with the session's backend if needed.
// CopyValueTo only reads values on the host.
func (s *Session) Fetch(value *tensors.Value) (*tensors.Value, error) {
	if value == nil {
		return nil, errors.Wrap(ErrInvalidArgument, "cannot fetch a nil value")
	}
	if value.Device().IsHost() {
		return value, nil
	}
	return s.Backend().Transfer(value, tensors.HostDevice())
}
