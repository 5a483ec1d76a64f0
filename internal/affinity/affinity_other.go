//go:build !linux
// +build !linux

// Package affinity pins the calling goroutine's OS thread to a logical
// core. This file is the no-op stub for platforms without
// sched_setaffinity.
package affinity

// PinCurrentThread is a no-op outside Linux; callers should treat pinning
// as a best-effort optimization, never a correctness requirement.
func PinCurrentThread(coreID int) error {
	return nil
}

// Available reports whether pinning is supported on this platform.
func Available() bool {
	return false
}
