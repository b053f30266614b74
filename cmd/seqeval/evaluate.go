// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"io"
	"math"
	"os"
	"slices"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/seqeval/pkg/core/tensors"
	"github.com/gomlx/seqeval/pkg/evaluation"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// readBatch reads a JSON list of sequences from path, as [][]float32 or [][]float64 depending on dtype.
func readBatch(path, dtype string) (any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading input batch")
	}
	switch dtype {
	case "float32":
		return unmarshalBatch[float32](path, data)
	case "float64":
		return unmarshalBatch[float64](path, data)
	}
	return nil, errors.Wrapf(evaluation.ErrUnsupportedDataType, "dtype %q, use float32 or float64", dtype)
}

func unmarshalBatch[T tensors.Float](path string, data []byte) ([][]T, error) {
	var batch [][]T
	if err := json.Unmarshal(data, &batch); err != nil {
		return nil, errors.Wrapf(err, "parsing input batch %q", path)
	}
	return batch, nil
}

// checkFinite returns an error naming the output if batch holds a NaN or an infinity, which JSON can't represent.
func checkFinite[T tensors.Float](name string, batch [][]T) error {
	for seqIdx, sequence := range batch {
		for ii, x := range sequence {
			f := float64(x)
			if math.IsNaN(f) || math.IsInf(f, 0) {
				return errors.Errorf("output %q has non-finite value %v (sequence #%d, element #%d), which can't be written as JSON",
					name, f, seqIdx, ii)
			}
		}
	}
	return nil
}

// evaluate creates values from the JSON batches in inputs (node name to file path), evaluates the
// session's graph and writes the requested outputs as a JSON object, from node name to batch.
// If outputNames is empty, all Output nodes are evaluated.
func evaluate(w io.Writer, session *evaluation.Session, inputs map[string]string, outputNames []string,
	dtype string, device tensors.Device) error {
	registry := session.Registry()
	arguments := make(map[string]*tensors.Value, len(inputs))
	for name, path := range inputs {
		batch, err := readBatch(path, dtype)
		if err != nil {
			return errors.WithMessagef(err, "input %q", name)
		}
		value, err := evaluation.CreateValueFromAny(registry, name, batch, device)
		if err != nil {
			return err
		}
		klog.V(1).Infof("input %q: %s", name, value)
		arguments[name] = value
	}

	if len(outputNames) == 0 {
		for _, node := range session.Graph().Outputs() {
			if !slices.Contains(outputNames, node.Name) {
				outputNames = append(outputNames, node.Name)
			}
		}
	}
	outputs := make(map[string]*tensors.Value, len(outputNames))
	for _, name := range outputNames {
		outputs[name] = nil
	}
	if err := session.Evaluate(arguments, outputs, device); err != nil {
		return err
	}

	results := make(map[string]any, len(outputs))
	for name, value := range outputs {
		value, err := session.Fetch(value)
		if err != nil {
			return errors.WithMessagef(err, "fetching output %q", name)
		}
		var batch any
		switch value.DType() {
		case dtypes.Float32:
			batch = &[][]float32{}
		case dtypes.Float64:
			batch = &[][]float64{}
		default:
			return errors.Wrapf(evaluation.ErrUnsupportedDataType, "output %q has dtype %s", name, value.DType())
		}
		if err := evaluation.CopyValueToAny(registry, name, value, batch); err != nil {
			return err
		}
		switch typed := batch.(type) {
		case *[][]float32:
			err = checkFinite(name, *typed)
		case *[][]float64:
			err = checkFinite(name, *typed)
		}
		if err != nil {
			return err
		}
		results[name] = batch
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return errors.Wrap(encoder.Encode(results), "writing outputs")
}
