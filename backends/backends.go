// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package backends defines the interface a graph execution engine needs to implement to evaluate
// loaded graphs, and a registry of the available implementations.
//
// A backend owns the numeric execution of a graph: the evaluation layer (package evaluation) only resolves
// node names, validates shapes and moves data in and out of tensors.Value. Backends also own the
// transfer of values between the host and their accelerators (see Backend.Transfer): values are never
// moved implicitly.
//
// Implementations register themselves during package initialization, typically:
//
//	import _ "github.com/gomlx/seqeval/backends/interpreter"
package backends

import (
	"os"
	"slices"
	"strings"
	"sync"

	"github.com/gomlx/seqeval/pkg/core/tensors"
	"github.com/gomlx/seqeval/pkg/model"
	"github.com/pkg/errors"
)

// Backend is the API that needs to be implemented by an execution engine.
//
// Concurrency: the evaluation layer adds no synchronization of its own, so whether one Graph can be
// evaluated concurrently depends entirely on the backend. Implementations must document it.
type Backend interface {
	// Name returns the short name of the backend. E.g.: "interpreter".
	Name() string

	// Description is a longer description of the Backend that can be used to pretty-print.
	Description() string

	// NumAccelerators returns the number of accelerators available, the valid indices for tensors.AcceleratorDevice.
	// It can be 0, in which case only the host is available.
	NumAccelerators() int

	// Run executes graph with the given inputs, placing the results on device.
	//
	// The inputs map holds values for Input nodes, and the outputs map has one entry per requested Output node:
	// Run replaces each entry with the computed value. The keys of outputs are never added or removed.
	Run(graph *model.Graph, inputs map[*model.Node]*tensors.Value, outputs map[*model.Node]*tensors.Value, device tensors.Device) error

	// Transfer returns a copy of value placed on device. This is the only way values move between the host and
	// accelerators.
	Transfer(value *tensors.Value, device tensors.Device) (*tensors.Value, error)
}

// Constructor takes a config string (optionally empty) and returns a Backend.
type Constructor func(config string) (Backend, error)

var (
	muRegistry             sync.Mutex
	registeredConstructors = make(map[string]Constructor)
	firstRegistered        string
)

// Register backend with the given name, and a default constructor that takes as input a configuration string that is
// passed along to the backend constructor.
//
// To be safe, call Register during initialization of a package.
func Register(name string, constructor Constructor) {
	muRegistry.Lock()
	defer muRegistry.Unlock()
	if len(registeredConstructors) == 0 {
		firstRegistered = name
	}
	registeredConstructors[name] = constructor
}

// List returns the sorted names of the registered backends.
func List() []string {
	muRegistry.Lock()
	defer muRegistry.Unlock()
	names := make([]string, 0, len(registeredConstructors))
	for name := range registeredConstructors {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// DefaultConfig is the name of the default backend configuration to use if specified.
//
// See NewWithConfig for the format of the configuration string.
var DefaultConfig string

// ConfigEnvVar is the environment variable with the default backend configuration to use.
//
// The format of config is "<backend_name>:<backend_configuration>".
// The "<backend_name>" is the name of a registered backend (e.g.: "interpreter") and
// "<backend_configuration>" is backend specific (e.g.: for the interpreter, "accelerators=2").
const ConfigEnvVar = "SEQEVAL_BACKEND"

// New returns a new default Backend.
//
// The default is:
//
// 1. The environment ConfigEnvVar is used as a configuration if defined.
// 2. Next the variable DefaultConfig is used as a configuration if defined.
// 3. The first registered backend is used with an empty configuration.
//
// It returns an error if no backend was registered.
func New() (Backend, error) {
	config, found := os.LookupEnv(ConfigEnvVar)
	if found {
		return NewWithConfig(config)
	}
	if DefaultConfig != "" {
		return NewWithConfig(DefaultConfig)
	}
	return NewWithConfig("")
}

// NewWithConfig takes a configurations string formated as "<backend_name>:<backend_configuration>".
//
// The "<backend_name>" is the name of a registered backend (e.g.: "interpreter") and
// "<backend_configuration>" is backend specific. If there is no ":", the whole config is taken as the
// backend name. An empty config selects the first registered backend.
func NewWithConfig(config string) (Backend, error) {
	muRegistry.Lock()
	if len(registeredConstructors) == 0 {
		muRegistry.Unlock()
		return nil, errors.New(`no registered backends -- maybe import the default one with import _ "github.com/gomlx/seqeval/backends/interpreter"?`)
	}
	backendName := firstRegistered
	backendConfig := ""
	if config != "" {
		backendName = config
		if idx := strings.Index(config, ":"); idx != -1 {
			backendName = config[:idx]
			backendConfig = config[idx+1:]
		}
	}
	constructor, found := registeredConstructors[backendName]
	muRegistry.Unlock()
	if !found {
		return nil, errors.Errorf("can't find backend %q for configuration %q given, registered backends: %v", backendName, config, List())
	}
	backend, err := constructor(backendConfig)
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to create backend %q", backendName)
	}
	return backend, nil
}
