//go:build !linux

package storageprobe

import "runtime"

func filesystemPersists(string) (*bool, string) {
	return nil, "filesystem type is not inspected on " + runtime.GOOS
}
