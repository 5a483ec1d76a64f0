//go:build linux
// +build linux

// Package affinity pins the calling goroutine's OS thread to a logical
// core. Linux implementation backed by sched_setaffinity.
package affinity

import (
	"runtime"

	"golang.org/x/sys/unix"
)

// PinCurrentThread locks the calling goroutine to its current OS thread
// and restricts that thread to the given logical core. The lock must be
// released by the caller via runtime.UnlockOSThread when the pinned work
// is done (typically: never, for a long-lived pool worker).
func PinCurrentThread(coreID int) error {
	runtime.LockOSThread()

	var set unix.CPUSet
	set.Zero()
	set.Set(coreID)
	return unix.SchedSetaffinity(0, &set)
}

// Available reports whether pinning is supported on this platform.
func Available() bool {
	return true
}
