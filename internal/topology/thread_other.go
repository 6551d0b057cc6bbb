// SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company and IronCore contributors
// SPDX-License-Identifier: Apache-2.0

//go:build !linux

package topology

func setThreadAffinity(Bitmap) error {
	return ErrPlatformAffinityUnsupported
}

func clearThreadAffinity(Bitmap) error {
	return ErrPlatformAffinityUnsupported
}
