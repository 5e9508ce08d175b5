//go:build linux

package daemon

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

func lock(f *os.File) error {
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		if errors.Is(err, unix.EWOULDBLOCK) {
			return ErrLocked
		}
		return fmt.Errorf("lock pid file: %w", err)
	}
	return nil
}

func chown(f *os.File, id identity) error {
	if id.uid < 0 && id.gid < 0 {
		return nil
	}
	return unix.Fchown(int(f.Fd()), id.uid, id.gid)
}

// dropPrivileges switches group before user; after Setuid the process could
// no longer change its group.
func dropPrivileges(id identity) error {
	if id.gid >= 0 {
		if err := unix.Setgroups([]int{id.gid}); err != nil {
			return fmt.Errorf("setgroups: %w", err)
		}
		if err := unix.Setgid(id.gid); err != nil {
			return fmt.Errorf("setgid %d: %w", id.gid, err)
		}
	}
	if id.uid >= 0 {
		if err := unix.Setuid(id.uid); err != nil {
			return fmt.Errorf("setuid %d: %w", id.uid, err)
		}
	}
	return nil
}
