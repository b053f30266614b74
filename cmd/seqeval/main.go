// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// seqeval inspects and evaluates graph descriptions (see package model for the format).
//
// To list the input and output nodes of a graph:
//
//	seqeval -nodes model.hcl
//
// To evaluate it on batches of sequences given in JSON files (`[[1, 2], [3, 4, 5, 6]]`), printing the outputs as JSON:
//
//	seqeval -input in=batch.json -output out model.hcl
//
// Graphs stored in Google Cloud Storage can be given as "gs://bucket/path/model.hcl".
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/gomlx/seqeval/backends"
	_ "github.com/gomlx/seqeval/backends/default"
	"github.com/gomlx/seqeval/pkg/core/tensors"
	"github.com/gomlx/seqeval/pkg/evaluation"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// inputsFlag collects repeated "-input <name>=<file.json>" flags.
type inputsFlag map[string]string

// String implements flag.Value.
func (f inputsFlag) String() string {
	parts := make([]string, 0, len(f))
	for name, path := range f {
		parts = append(parts, name+"="+path)
	}
	return strings.Join(parts, ",")
}

// Set implements flag.Value.
func (f inputsFlag) Set(value string) error {
	name, path, found := strings.Cut(value, "=")
	if !found || name == "" || path == "" {
		return errors.Errorf("invalid input %q, expected <name>=<file.json>", value)
	}
	if _, duplicate := f[name]; duplicate {
		return errors.Errorf("input %q given more than once", name)
	}
	f[name] = path
	return nil
}

var (
	flagNodes   = flag.Bool("nodes", false, "Lists the input and output nodes of the graph, with their shapes and sizes.")
	flagInputs  = inputsFlag{}
	flagOutputs = flag.String("output", "", "Comma-separated list of output nodes to evaluate. "+
		"If empty and -input is given, all output nodes are evaluated.")
	flagBackend = flag.String("backend", "", fmt.Sprintf(
		"Backend configuration, in the format \"<name>:<config>\". If empty, it is read from $%s, "+
			"or the first registered backend is used.", backends.ConfigEnvVar))
	flagDevice = flag.String("device", "host", "Device where to evaluate the graph: \"host\" or \"accelerator:<index>\".")
	flagDType  = flag.String("dtype", "float32", "Element type of the values created from the JSON inputs: float32 or float64.")
)

func init() {
	flag.Var(flagInputs, "input", "Input batch, in the format <name>=<file.json>, where the file holds a JSON list "+
		"of sequences. Can be repeated. Outputs are printed as JSON, so evaluations producing NaN or infinite "+
		"values fail, naming the output.")
}

func main() {
	klog.InitFlags(nil)
	flag.Parse()

	args := flag.Args()
	if len(args) != 1 {
		klog.Errorf("Expected exactly one graph description file. See 'seqeval -help'.")
		os.Exit(1)
	}
	if !*flagNodes && len(flagInputs) == 0 {
		klog.Errorf("Nothing to do, use -nodes and/or -input. See 'seqeval -help'.")
		os.Exit(1)
	}

	ctx := context.Background()
	backend := must.M1(newBackend(*flagBackend))
	session := must.M1(evaluation.LoadSession(ctx, args[0], backend))
	klog.V(1).Infof("loaded %s from %q, backend %s", session.Graph(), args[0], backend.Description())

	if *flagNodes {
		must.M(reportNodes(os.Stdout, session))
	}
	if len(flagInputs) > 0 {
		device := must.M1(tensors.ParseDevice(*flagDevice))
		must.M(evaluate(os.Stdout, session, flagInputs, splitNames(*flagOutputs), *flagDType, device))
	}
}

// newBackend creates the backend from the given configuration, or from the default configuration if empty.
func newBackend(config string) (backends.Backend, error) {
	if config == "" {
		return backends.New()
	}
	return backends.NewWithConfig(config)
}

// splitNames splits a comma-separated list, dropping empty entries.
func splitNames(list string) []string {
	var names []string
	for _, name := range strings.Split(list, ",") {
		if name = strings.TrimSpace(name); name != "" {
			names = append(names, name)
		}
	}
	return names
}
