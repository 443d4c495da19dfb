// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

//go:build !deadlock

// Package syncutil provides mutex types that can optionally use deadlock detection.
// By default the standard sync.Mutex and sync.RWMutex are used.
// Build with -tags=deadlock to enable detection via github.com/sasha-s/go-deadlock.
package syncutil

import "sync"

// Mutex wraps sync.Mutex
type Mutex struct {
	sync.Mutex
}

// RWMutex wraps sync.RWMutex
type RWMutex struct {
	sync.RWMutex
}
