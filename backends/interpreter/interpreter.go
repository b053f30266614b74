// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package interpreter implements a pure Go backend that evaluates graphs made of element-wise ops.
//
// It registers itself as "interpreter". Its configuration is a comma-separated list of options:
//
//   - "accelerators=N": number of simulated accelerators (default 0). Values placed on an accelerator are
//     kept in Go memory, but tagged with the accelerator device, and must be transferred back to the host
//     with Backend.Transfer before being read.
//   - "parallelism=N": maximum number of sequences processed in parallel (default runtime.NumCPU(),
//     0 to disable parallelism, -1 for unlimited).
//
// The Backend is safe for concurrent use: Run keeps no state between calls, so one Graph can be
// evaluated concurrently from multiple goroutines.
package interpreter

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gomlx/seqeval/backends"
	"github.com/gomlx/seqeval/internal/workerspool"
	"github.com/gomlx/seqeval/pkg/core/tensors"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// BackendName to be used in SEQEVAL_BACKEND to select this backend.
const BackendName = "interpreter"

func init() {
	backends.Register(BackendName, func(config string) (backends.Backend, error) {
		return New(config)
	})
}

// Backend implements backends.Backend.
type Backend struct {
	config          string
	numAccelerators int
	workers         *workerspool.Pool
}

// Compile-time check that Backend implements backends.Backend.
var _ backends.Backend = (*Backend)(nil)

// New constructs a new interpreter Backend. See package documentation for the config format.
func New(config string) (*Backend, error) {
	b := &Backend{
		config:  config,
		workers: workerspool.New(),
	}
	for _, option := range strings.Split(config, ",") {
		option = strings.TrimSpace(option)
		if option == "" {
			continue
		}
		key, value, found := strings.Cut(option, "=")
		if !found {
			return nil, errors.Errorf("interpreter: invalid option %q in config %q, expected <key>=<value>", option, config)
		}
		n, err := strconv.Atoi(value)
		if err != nil {
			return nil, errors.Wrapf(err, "interpreter: option %q in config %q", option, config)
		}
		switch key {
		case "accelerators":
			if n < 0 {
				return nil, errors.Errorf("interpreter: number of accelerators must be >= 0, got %d", n)
			}
			b.numAccelerators = n
		case "parallelism":
			b.workers.SetMaxParallelism(n)
		default:
			return nil, errors.Errorf("interpreter: unknown option %q in config %q", key, config)
		}
	}
	klog.V(1).Infof("created %s", b.Description())
	return b, nil
}

// Name implements backends.Backend.
func (b *Backend) Name() string { return BackendName }

// Description implements backends.Backend.
func (b *Backend) Description() string {
	return fmt.Sprintf("pure Go element-wise interpreter (%d simulated accelerators, parallelism %d)",
		b.numAccelerators, b.workers.MaxParallelism())
}

// NumAccelerators implements backends.Backend.
func (b *Backend) NumAccelerators() int { return b.numAccelerators }

// checkDevice returns an error if device is not the host or one of the simulated accelerators.
func (b *Backend) checkDevice(device tensors.Device) error {
	switch device.Kind {
	case tensors.Host:
		return nil
	case tensors.Accelerator:
		if device.Index < 0 || device.Index >= b.numAccelerators {
			return errors.Errorf("interpreter: invalid device %s, there are %d accelerators", device, b.numAccelerators)
		}
		return nil
	}
	return errors.Errorf("interpreter: invalid device kind %s", device.Kind)
}

// Transfer implements backends.Backend. It always copies the data.
func (b *Backend) Transfer(value *tensors.Value, device tensors.Device) (*tensors.Value, error) {
	if err := b.checkDevice(device); err != nil {
		return nil, err
	}
	if err := value.CheckValid(); err != nil {
		return nil, err
	}
	if !value.IsDense() {
		return nil, errors.Errorf("interpreter: cannot transfer value in %s storage format", value.Format())
	}
	klog.V(2).Infof("interpreter: transferring %s to %s", value, device)
	return value.CopyTo(device)
}
