// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/gomlx/seqeval/backends/interpreter"
	"github.com/gomlx/seqeval/pkg/core/tensors"
	"github.com/gomlx/seqeval/pkg/evaluation"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const negateHCL = `
name = "negate"

input "x" {
  shape = [2]
}

output "neg_x" {
  shape = [2]
  op    = "neg"
  args  = ["x"]
}

output "x" {
  shape = [2]
  args  = ["x"]
}
`

func writeFile(t *testing.T, dir, name, contents string) string {
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func newTestSession(t *testing.T, config string) *evaluation.Session {
	dir := t.TempDir()
	path := writeFile(t, dir, "negate.hcl", negateHCL)
	backend := must.M1(interpreter.New(config))
	return must.M1(evaluation.LoadSession(context.Background(), path, backend))
}

func TestInputsFlag(t *testing.T) {
	f := inputsFlag{}
	require.NoError(t, f.Set("x=batch.json"))
	assert.Equal(t, "x=batch.json", f.String())
	for _, value := range []string{"x=other.json", "x", "=batch.json", "y="} {
		require.Errorf(t, f.Set(value), "value %q", value)
	}
	assert.Equal(t, []string{"a", "b"}, splitNames(" a,, b ,"))
	assert.Nil(t, splitNames(""))
}

func TestReportNodes(t *testing.T) {
	session := newTestSession(t, "")
	var buf bytes.Buffer
	require.NoError(t, reportNodes(&buf, session))
	report := buf.String()
	assert.Contains(t, report, "negate")
	assert.Contains(t, report, "neg_x")
	assert.Contains(t, report, "Input nodes (2 elements per sample)")
	assert.Contains(t, report, "Output nodes (4 elements per sample)")
}

func TestEvaluate(t *testing.T) {
	for _, config := range []struct{ backend, device, dtype string }{
		{"", "host", "float32"},
		{"accelerators=2", "accelerator:1", "float64"},
	} {
		session := newTestSession(t, config.backend)
		batchPath := writeFile(t, t.TempDir(), "x.json", `[[1, 2, 3, 4], [5, 6]]`)
		device := must.M1(tensors.ParseDevice(config.device))

		var buf bytes.Buffer
		require.NoError(t, evaluate(&buf, session, map[string]string{"x": batchPath}, []string{"neg_x"}, config.dtype, device))
		var got map[string][][]float64
		require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
		assert.Equal(t, map[string][][]float64{"neg_x": {{-1, -2, -3, -4}, {-5, -6}}}, got)

		// All outputs by default.
		buf.Reset()
		require.NoError(t, evaluate(&buf, session, map[string]string{"x": batchPath}, nil, config.dtype, device))
		got = nil
		require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
		assert.Len(t, got, 2)
		assert.Equal(t, [][]float64{{1, 2, 3, 4}, {5, 6}}, got["x"])
	}
}

func TestEvaluateErrors(t *testing.T) {
	session := newTestSession(t, "")
	dir := t.TempDir()
	good := writeFile(t, dir, "good.json", `[[1, 2]]`)
	var buf bytes.Buffer

	err := evaluate(&buf, session, map[string]string{"x": writeFile(t, dir, "odd.json", `[[1, 2, 3]]`)}, nil, "float32", tensors.HostDevice())
	require.ErrorIs(t, err, evaluation.ErrDimensionMismatch)
	err = evaluate(&buf, session, map[string]string{"x": writeFile(t, dir, "bad.json", `{"x": 1}`)}, nil, "float32", tensors.HostDevice())
	require.Error(t, err)
	err = evaluate(&buf, session, map[string]string{"x": good}, nil, "int8", tensors.HostDevice())
	require.ErrorIs(t, err, evaluation.ErrUnsupportedDataType)
	err = evaluate(&buf, session, map[string]string{"missing": good}, nil, "float32", tensors.HostDevice())
	require.ErrorIs(t, err, evaluation.ErrNodeNotFound)
	err = evaluate(&buf, session, map[string]string{"x": good}, []string{"missing"}, "float32", tensors.HostDevice())
	require.ErrorIs(t, err, evaluation.ErrNodeNotFound)
	assert.Zero(t, buf.Len())
}

func TestEvaluateNonFinite(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "square.hcl", `
input "x" {
  shape = [1]
}

output "square" {
  shape = [1]
  op    = "mul"
  args  = ["x", "x"]
}
`)
	session := must.M1(evaluation.LoadSession(context.Background(), path, must.M1(interpreter.New(""))))
	batchPath := writeFile(t, dir, "x.json", `[[1, 1e30]]`)

	var buf bytes.Buffer
	err := evaluate(&buf, session, map[string]string{"x": batchPath}, nil, "float32", tensors.HostDevice())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"square"`)
	assert.Contains(t, err.Error(), "+Inf")
	assert.Zero(t, buf.Len())

	// In float64 the same values fit.
	require.NoError(t, evaluate(&buf, session, map[string]string{"x": batchPath}, nil, "float64", tensors.HostDevice()))
	var got map[string][][]float64
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	require.Len(t, got["square"], 1)
	assert.InEpsilonSlice(t, []float64{1, 1e60}, got["square"][0], 1e-9)
}
