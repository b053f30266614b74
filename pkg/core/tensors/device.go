// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package tensors

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// DeviceKind enumerates where a value's buffer can live.
type DeviceKind int

const (
	// Host memory, directly addressable by Go.
	Host DeviceKind = iota

	// Accelerator memory, only reachable through a backend transfer.
	Accelerator
)

// String implements fmt.Stringer.
func (k DeviceKind) String() string {
	switch k {
	case Host:
		return "Host"
	case Accelerator:
		return "Accelerator"
	}
	return fmt.Sprintf("DeviceKind(%d)", int(k))
}

// Device is the placement token of a value: the host, or one of the accelerators (identified by Index).
//
// The zero value is the host.
type Device struct {
	Kind  DeviceKind
	Index int
}

// HostDevice returns the Device of host memory.
func HostDevice() Device { return Device{Kind: Host} }

// AcceleratorDevice returns the Device for the accelerator with the given index.
func AcceleratorDevice(index int) Device { return Device{Kind: Accelerator, Index: index} }

// IsHost returns whether the device is the host.
func (d Device) IsHost() bool { return d.Kind == Host }

// String implements fmt.Stringer.
func (d Device) String() string {
	if d.IsHost() {
		return "host"
	}
	return fmt.Sprintf("accelerator:%d", d.Index)
}

// ParseDevice parses the format generated by Device.String: "host" or "accelerator:<index>".
// A bare "accelerator" is the accelerator 0.
func ParseDevice(s string) (Device, error) {
	name, index, hasIndex := strings.Cut(strings.ToLower(strings.TrimSpace(s)), ":")
	switch name {
	case "", "host":
		if hasIndex {
			return Device{}, errors.Errorf("invalid device %q: host takes no index", s)
		}
		return HostDevice(), nil
	case "accelerator":
		if !hasIndex {
			return AcceleratorDevice(0), nil
		}
		n, err := strconv.Atoi(index)
		if err != nil || n < 0 {
			return Device{}, errors.Errorf("invalid device %q: accelerator index must be a non-negative integer", s)
		}
		return AcceleratorDevice(n), nil
	}
	return Device{}, errors.Errorf("invalid device %q, expected \"host\" or \"accelerator:<index>\"", s)
}
