// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package model

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/gomlx/seqeval/pkg/core/shapes"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const doublerHCL = `
name = "doubler"

input "x" {
  shape = [2, 3]
}

input "bias" {
  shape = [2, 3]
}

output "y" {
  shape = [2, 3]
  op    = "scale"
  args  = ["x"]
  params {
    factor = 2
  }
}

output "copy" {
  shape = [2, 3]
  args  = ["x"]
}
`

func TestParse(t *testing.T) {
	g, err := Parse("doubler.hcl", []byte(doublerHCL))
	require.NoError(t, err)
	assert.Equal(t, "doubler", g.Name())
	assert.NotEmpty(t, g.ID().String())

	inputs := g.Inputs()
	require.Len(t, inputs, 2)
	assert.Equal(t, "x", inputs[0].Name)
	assert.Equal(t, Input, inputs[0].Kind)
	assert.True(t, inputs[0].Shape.Equal(shapes.Make(2, 3)))
	assert.Equal(t, "bias", inputs[1].Name)

	outputs := g.Nodes(Output)
	require.Len(t, outputs, 2)
	assert.Equal(t, "scale", outputs[0].Op)
	assert.Equal(t, []string{"x"}, outputs[0].Args)
	assert.Equal(t, map[string]float64{"factor": 2}, outputs[0].Params)
	assert.Equal(t, DefaultOp, outputs[1].Op)
	assert.Nil(t, outputs[1].Params)

	assert.Nil(t, g.Nodes(Kind(7)))
}

func TestParseDefaults(t *testing.T) {
	g, err := Parse("some/dir/scalar.hcl", []byte(`
input "x" {}
output "y" {
  args = ["x"]
}
`))
	require.NoError(t, err)
	assert.Equal(t, "scalar", g.Name())
	require.Len(t, g.Inputs(), 1)
	assert.True(t, g.Inputs()[0].Shape.IsScalar())
}

func TestParseKeepsDuplicates(t *testing.T) {
	g, err := Parse("dup.hcl", []byte(`
input "x" {
  shape = [1]
}
input "x" {
  shape = [2]
}
`))
	require.NoError(t, err)
	require.Len(t, g.Inputs(), 2)
}

func TestParseErrors(t *testing.T) {
	for name, src := range map[string]string{
		"syntax":         `input "x" {`,
		"unknown_block":  `layer "x" {}`,
		"negative_dim":   `input "x" { shape = [2, -1] }`,
		"non_numeric":    "output \"y\" {\n  params {\n    factor = \"big\"\n  }\n}\n",
		"non_list_shape": `input "x" { shape = "abc" }`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(name+".hcl", []byte(src))
			require.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "doubler.hcl")
	must.M(os.WriteFile(path, []byte(doublerHCL), 0o644))

	g, err := Load(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, path, g.Path())
	assert.Len(t, g.Outputs(), 2)

	_, err = Load(ctx, filepath.Join(dir, "missing.hcl"))
	require.ErrorIs(t, err, ErrFileNotFound)
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadGCS(t *testing.T) {
	original := readGCSObject
	defer func() { readGCSObject = original }()
	readGCSObject = func(_ context.Context, bucket, object string) ([]byte, error) {
		if bucket == "models" && object == "nlp/doubler.hcl" {
			return []byte(doublerHCL), nil
		}
		return nil, ErrFileNotFound
	}

	ctx := context.Background()
	g, err := Load(ctx, "gs://models/nlp/doubler.hcl")
	require.NoError(t, err)
	assert.Equal(t, "doubler", g.Name())
	assert.Equal(t, "gs://models/nlp/doubler.hcl", g.Path())

	_, err = Load(ctx, "gs://models/missing.hcl")
	require.ErrorIs(t, err, ErrFileNotFound)

	_, err = Load(ctx, "gs://models")
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrFileNotFound)
}

func TestNewGraph(t *testing.T) {
	in := NewInput("in", shapes.Make(2))
	out := NewOutput("out", shapes.Make(2), "shift", "in").WithParam("offset", 1)
	g, err := NewGraph("g", in, out)
	require.NoError(t, err)
	assert.Equal(t, `Output "out" [2] = shift(in)`, out.String())
	assert.Equal(t, `Graph "g" (1 inputs, 1 outputs)`, g.String())

	// Returned slices are copies.
	inputs := g.Inputs()
	inputs[0] = nil
	assert.NotNil(t, g.Inputs()[0])

	_, err = NewGraph("bad", &Node{Name: "x", Kind: Kind(3)})
	require.Error(t, err)
	_, err = NewGraph("bad", &Node{Kind: Input})
	require.Error(t, err)
	_, err = NewGraph("bad", nil)
	require.Error(t, err)
	_, err = NewGraph("bad", &Node{Name: "x", Shape: shapes.Shape{Dimensions: []int{-1}}})
	require.Error(t, err)
}
