// SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company and IronCore contributors
// SPDX-License-Identifier: Apache-2.0

package devtopo

import (
	"fmt"

	"github.com/ironcore-dev/metal-topology/internal/topology"
)

// Version is the API version a caller was written against.
type Version int

const (
	Version1 Version = iota + 1
	Version2
	Version3
	Version4
	Version5

	// CurrentVersion is the newest version served by this library.
	CurrentVersion = Version5
)

// Minimum versions per entry point group.
const (
	relationshipVersion = Version1
	affinityVersion     = Version2
	nearestVersion      = Version3
	nodeVersion         = Version4
	numaVersion         = Version5
)

func requireVersion(v, minimum Version) error {
	if v < Version1 || v > CurrentVersion {
		return fmt.Errorf("%w: version %d is not in [%d,%d]", topology.ErrUnsupportedVersion, v, Version1, CurrentVersion)
	}
	if v < minimum {
		return fmt.Errorf("%w: version %d predates this call, need at least %d", topology.ErrUnsupportedVersion, v, minimum)
	}
	return nil
}
