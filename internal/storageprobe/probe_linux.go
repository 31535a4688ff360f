//go:build linux

package storageprobe

import (
	"fmt"

	"golang.org/x/sys/unix"
)

func filesystemPersists(dir string) (*bool, string) {
	var st unix.Statfs_t
	if err := unix.Statfs(dir, &st); err != nil {
		return nil, fmt.Sprintf("statfs %s: %v", dir, err)
	}

	persisted := true
	detail := fmt.Sprintf("filesystem type 0x%x", uint32(st.Type))
	switch uint32(st.Type) {
	case uint32(unix.TMPFS_MAGIC):
		persisted = false
		detail = "database is on tmpfs and is lost on reboot"
	case uint32(unix.RAMFS_MAGIC):
		persisted = false
		detail = "database is on ramfs and is lost on reboot"
	}
	return &persisted, detail
}
