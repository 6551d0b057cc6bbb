// SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company and IronCore contributors
// SPDX-License-Identifier: Apache-2.0

//go:build linux

package topology

import (
	"fmt"
	"runtime"
	"sync"

	"golang.org/x/sys/unix"
)

// cpuSetSize is the number of CPUs a unix.CPUSet can address.
const cpuSetSize = 1024

// pinnedThreads holds the ids of OS threads locked by setThreadAffinity, so
// that repeated calls hold a single runtime.LockOSThread.
var pinnedThreads sync.Map

func toCPUSet(cpus Bitmap) (unix.CPUSet, error) {
	var set unix.CPUSet
	set.Zero()
	for _, cpu := range cpus.CPUs() {
		if cpu >= cpuSetSize {
			return set, fmt.Errorf("%w: cpu %d exceeds the kernel cpu set size", ErrPlatformAffinityUnsupported, cpu)
		}
		set.Set(cpu)
	}
	return set, nil
}

func setThreadAffinity(cpus Bitmap) error {
	set, err := toCPUSet(cpus)
	if err != nil {
		return err
	}
	runtime.LockOSThread()
	tid := unix.Gettid()
	_, pinned := pinnedThreads.LoadOrStore(tid, struct{}{})
	if pinned {
		runtime.UnlockOSThread()
	}
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		if !pinned {
			pinnedThreads.Delete(tid)
			runtime.UnlockOSThread()
		}
		return fmt.Errorf("%w: sched_setaffinity: %v", ErrPlatformAffinityUnsupported, err)
	}
	return nil
}

func clearThreadAffinity(all Bitmap) error {
	set, err := toCPUSet(all)
	if err != nil {
		return err
	}
	defer func() {
		if _, pinned := pinnedThreads.LoadAndDelete(unix.Gettid()); pinned {
			runtime.UnlockOSThread()
		}
	}()
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		return fmt.Errorf("%w: sched_setaffinity: %v", ErrPlatformAffinityUnsupported, err)
	}
	return nil
}
