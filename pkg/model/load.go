// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package model

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/gomlx/seqeval/pkg/core/shapes"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/pkg/errors"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"
	"k8s.io/klog/v2"
)

// ErrFileNotFound is returned (wrapped) by Load when the graph file doesn't exist.
// It is the same as os.ErrNotExist, so either can be used with errors.Is.
var ErrFileNotFound = os.ErrNotExist

// DefaultOp is the op used by Output nodes that don't specify one.
const DefaultOp = "identity"

// hclGraphFile is the top-level structure of a graph description file.
type hclGraphFile struct {
	Name    string       `hcl:"name,optional"`
	Inputs  []*hclInput  `hcl:"input,block"`
	Outputs []*hclOutput `hcl:"output,block"`
}

type hclInput struct {
	Name  string `hcl:"name,label"`
	Shape []int  `hcl:"shape,optional"`
}

type hclOutput struct {
	Name   string     `hcl:"name,label"`
	Shape  []int      `hcl:"shape,optional"`
	Op     string     `hcl:"op,optional"`
	Args   []string   `hcl:"args,optional"`
	Params *hclParams `hcl:"params,block"`
}

// hclParams holds free-form numeric attributes, read with hcl.Body.JustAttributes.
type hclParams struct {
	Body hcl.Body `hcl:",remain"`
}

// Load reads the graph description at path, either a local file or a "gs://<bucket>/<object>" URL
// of an object in Google Cloud Storage.
//
// It returns an error wrapping ErrFileNotFound if the file or object doesn't exist.
func Load(ctx context.Context, path string) (*Graph, error) {
	var (
		src []byte
		err error
	)
	if isGCSPath(path) {
		src, err = readGCS(ctx, path)
	} else {
		src, err = os.ReadFile(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				err = errors.Wrapf(ErrFileNotFound, "graph file %q", path)
			} else {
				err = errors.Wrapf(err, "failed to read graph file %q", path)
			}
		}
	}
	if err != nil {
		return nil, err
	}
	g, err := Parse(path, src)
	if err != nil {
		return nil, err
	}
	g.path = path
	klog.V(1).Infof("loaded %s from %q (id=%s)", g, path, g.ID())
	return g, nil
}

// Parse a graph description in HCL format. filename is only used for error messages, and
// as the default graph name.
func Parse(filename string, src []byte) (*Graph, error) {
	parser := hclparse.NewParser()
	hclFile, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, errors.Wrapf(diags, "failed to parse graph file %q", filename)
	}
	var parsed hclGraphFile
	diags = gohcl.DecodeBody(hclFile.Body, nil, &parsed)
	if diags.HasErrors() {
		return nil, errors.Wrapf(diags, "failed to decode graph file %q", filename)
	}

	name := parsed.Name
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	}
	nodes := make([]*Node, 0, len(parsed.Inputs)+len(parsed.Outputs))
	for _, input := range parsed.Inputs {
		shape, err := shapeFromHCL(filename, input.Name, input.Shape)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, NewInput(input.Name, shape))
	}
	for _, output := range parsed.Outputs {
		shape, err := shapeFromHCL(filename, output.Name, output.Shape)
		if err != nil {
			return nil, err
		}
		op := output.Op
		if op == "" {
			op = DefaultOp
		}
		node := NewOutput(output.Name, shape, op, output.Args...)
		if output.Params != nil {
			if err := decodeParams(output.Params.Body, node); err != nil {
				return nil, errors.WithMessagef(err, "graph file %q, output %q", filename, output.Name)
			}
		}
		nodes = append(nodes, node)
	}
	return NewGraph(name, nodes...)
}

func shapeFromHCL(filename, nodeName string, dims []int) (shapes.Shape, error) {
	for _, dim := range dims {
		if dim < 0 {
			return shapes.Shape{}, errors.Errorf("graph file %q: node %q has negative dimension in shape %v", filename, nodeName, dims)
		}
	}
	return shapes.Make(dims...), nil
}

// decodeParams converts every attribute of body to a float64 parameter of node.
func decodeParams(body hcl.Body, node *Node) error {
	attrs, diags := body.JustAttributes()
	if diags.HasErrors() {
		return diags
	}
	for name, attr := range attrs {
		value, diags := attr.Expr.Value(nil)
		if diags.HasErrors() {
			return diags
		}
		number, err := convert.Convert(value, cty.Number)
		if err != nil {
			return errors.Wrapf(err, "parameter %q must be a number", name)
		}
		if number.IsNull() || !number.IsKnown() {
			return errors.Errorf("parameter %q has no value", name)
		}
		var f float64
		if err := gocty.FromCtyValue(number, &f); err != nil {
			return errors.Wrapf(err, "parameter %q", name)
		}
		node.WithParam(name, f)
	}
	return nil
}
