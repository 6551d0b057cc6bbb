// SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company and IronCore contributors
// SPDX-License-Identifier: Apache-2.0

package topology

import "errors"

var (
	// ErrUninitialized is returned when the engine is queried before a tree was built.
	ErrUninitialized = errors.New("topology not initialized")
	// ErrInvalidArgument is returned for nil or out-of-domain inputs and outputs.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrInvalidDeviceID is returned when an ordinal or BDF is not part of the tree.
	ErrInvalidDeviceID = errors.New("invalid device id")
	// ErrMalformedTopology is returned when the enumeration snapshot is structurally inconsistent.
	ErrMalformedTopology = errors.New("malformed topology")
	// ErrInsufficientSpace is returned when an output buffer is smaller than the result set.
	ErrInsufficientSpace = errors.New("insufficient space")
	// ErrUnsupportedVersion is returned when the caller's API version cannot be served.
	ErrUnsupportedVersion = errors.New("unsupported api version")
	// ErrPlatformAffinityUnsupported is returned when the OS cannot pin threads to CPUs.
	ErrPlatformAffinityUnsupported = errors.New("platform cpu affinity unsupported")
	// ErrUnknown wraps unexpected platform failures.
	ErrUnknown = errors.New("unknown error")
	// ErrNotFound is returned by lookups that have no match.
	ErrNotFound = errors.New("not found")
)
