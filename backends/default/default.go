// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package _default includes the default backends, currently only the interpreter.
//
// To use it simply include:
//
//	import _ "github.com/gomlx/seqeval/backends/default"
package _default

import (
	_ "github.com/gomlx/seqeval/backends/interpreter"
)
