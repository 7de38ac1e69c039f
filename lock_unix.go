//go:build linux || darwin || freebsd || openbsd || netbsd || dragonfly

package gitodb

import "golang.org/x/sys/unix"

// sharedLock takes a shared (LOCK_SH) advisory lock on f for the duration of
// one pack/idx read, per §5's "shared advisory file-range lock" contract.
// Generalized from the teacher-adjacent kubernetes pkg/util/flock, which
// takes an exclusive, process-lifetime lock; here the lock is shared and
// scoped to a single call, released by the returned func.
func sharedLock(fd uintptr) (unlock func(), err error) {
	if err := unix.Flock(int(fd), unix.LOCK_SH); err != nil {
		return nil, err
	}
	return func() {
		_ = unix.Flock(int(fd), unix.LOCK_UN)
	}, nil
}
