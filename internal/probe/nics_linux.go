// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and IronCore contributors
// SPDX-License-Identifier: Apache-2.0

package probe

import (
	"fmt"

	"github.com/safchain/ethtool"
)

// collectNICDrivers returns the driver name of every interface that ethtool
// can query. Interfaces without driver info are skipped.
func collectNICDrivers(interfaces []string) (map[string]string, error) {
	ethHandle, err := ethtool.NewEthtool()
	if err != nil {
		return nil, fmt.Errorf("failed to open ethtool handle: %w", err)
	}
	defer ethHandle.Close()

	drivers := map[string]string{}
	for _, name := range interfaces {
		drvInfo, err := ethHandle.DriverInfo(name)
		if err != nil {
			continue
		}
		drivers[name] = drvInfo.Driver
	}
	return drivers, nil
}
