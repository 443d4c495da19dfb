// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

//go:build deadlock

// Package syncutil provides mutex types that can optionally use deadlock detection.
// This file is compiled when building with -tags=deadlock.
package syncutil

import deadlock "github.com/sasha-s/go-deadlock"

// Mutex wraps deadlock.Mutex
type Mutex struct {
	deadlock.Mutex
}

// RWMutex wraps deadlock.RWMutex
type RWMutex struct {
	deadlock.RWMutex
}
