// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package model defines Graph, the loaded computation graph handle, and its Input and Output nodes.
//
// A Graph is immutable after creation (see NewGraph, Load and Parse) and can be shared freely: there are no
// methods to mutate or clone it. Each node has a name and a sample shape: values fed to (or read from) a node
// carry two extra trailing axes, the samples per sequence and the number of sequences.
//
// Output nodes also describe how they are computed (Node.Op, Node.Args and Node.Params). That information
// is opaque to the evaluation layer, and only interpreted by the backends.
//
// Graph descriptions are stored as HCL files:
//
//	name = "doubler"
//
//	input "x" {
//	  shape = [2]
//	}
//
//	output "y" {
//	  shape = [2]
//	  op    = "scale"
//	  args  = ["x"]
//	  params {
//	    factor = 2.0
//	  }
//	}
package model

import (
	"fmt"
	"slices"
	"strings"

	"github.com/gomlx/seqeval/pkg/core/shapes"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Kind of node: Input or Output.
type Kind int

const (
	Input Kind = iota
	Output
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case Input:
		return "Input"
	case Output:
		return "Output"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Node is an input or output terminal of a Graph.
type Node struct {
	Name  string
	Kind  Kind
	Shape shapes.Shape

	// Op, Args and Params describe how an Output node is computed, from the nodes named in Args.
	Op     string
	Args   []string
	Params map[string]float64
}

// NewInput returns a new Input node with the given sample shape.
func NewInput(name string, shape shapes.Shape) *Node {
	return &Node{Name: name, Kind: Input, Shape: shape.Clone()}
}

// NewOutput returns a new Output node with the given sample shape, computed with op over the nodes named args.
func NewOutput(name string, shape shapes.Shape, op string, args ...string) *Node {
	return &Node{Name: name, Kind: Output, Shape: shape.Clone(), Op: op, Args: slices.Clone(args)}
}

// WithParam sets an op parameter and returns the node itself, so calls can be chained.
// It should only be used before the node is given to NewGraph.
func (n *Node) WithParam(name string, value float64) *Node {
	if n.Params == nil {
		n.Params = make(map[string]float64)
	}
	n.Params[name] = value
	return n
}

// String implements fmt.Stringer.
func (n *Node) String() string {
	if n.Kind == Output && n.Op != "" {
		return fmt.Sprintf("%s %q %s = %s(%s)", n.Kind, n.Name, n.Shape, n.Op, strings.Join(n.Args, ", "))
	}
	return fmt.Sprintf("%s %q %s", n.Kind, n.Name, n.Shape)
}

// Graph is a loaded computation graph: its list of Input and Output nodes, in declaration order.
//
// It is immutable and safe to share across goroutines.
type Graph struct {
	id      uuid.UUID
	name    string
	path    string
	inputs  []*Node
	outputs []*Node
}

// NewGraph creates a Graph with the given nodes. The graph takes ownership of the nodes.
//
// Duplicate names are accepted here: they are reported when the nodes are enumerated
// by the evaluation layer.
func NewGraph(name string, nodes ...*Node) (*Graph, error) {
	g := &Graph{
		id:   uuid.New(),
		name: name,
	}
	for ii, node := range nodes {
		if node == nil {
			return nil, errors.Errorf("NewGraph(%q): node #%d is nil", name, ii)
		}
		if node.Name == "" {
			return nil, errors.Errorf("NewGraph(%q): node #%d has no name", name, ii)
		}
		for _, dim := range node.Shape.Dimensions {
			if dim < 0 {
				return nil, errors.Errorf("NewGraph(%q): node %q has invalid shape %s", name, node.Name, node.Shape)
			}
		}
		switch node.Kind {
		case Input:
			g.inputs = append(g.inputs, node)
		case Output:
			g.outputs = append(g.outputs, node)
		default:
			return nil, errors.Errorf("NewGraph(%q): node %q has invalid kind %s", name, node.Name, node.Kind)
		}
	}
	return g, nil
}

// ID is a unique identifier of this loaded instance, used to tell graphs apart in logs.
func (g *Graph) ID() uuid.UUID { return g.id }

// Name of the graph.
func (g *Graph) Name() string { return g.name }

// Path from where the graph was loaded, if any.
func (g *Graph) Path() string { return g.path }

// Inputs returns the Input nodes, in declaration order. The nodes must not be modified.
func (g *Graph) Inputs() []*Node { return slices.Clone(g.inputs) }

// Outputs returns the Output nodes, in declaration order. The nodes must not be modified.
func (g *Graph) Outputs() []*Node { return slices.Clone(g.outputs) }

// Nodes returns the nodes of the given kind, or nil if kind is not Input or Output.
func (g *Graph) Nodes(kind Kind) []*Node {
	switch kind {
	case Input:
		return g.Inputs()
	case Output:
		return g.Outputs()
	}
	return nil
}

// String implements fmt.Stringer.
func (g *Graph) String() string {
	return fmt.Sprintf("Graph %q (%d inputs, %d outputs)", g.name, len(g.inputs), len(g.outputs))
}
