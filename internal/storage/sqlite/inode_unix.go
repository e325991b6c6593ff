//go:build !windows

package sqlite

import (
	"os"
	"syscall"
)

// getFileInode extracts the inode number from a Unix Stat_t, used by
// FreshnessChecker to tell a file replacement apart from an in-place write.
func getFileInode(info os.FileInfo) uint64 {
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return 0
	}
	return uint64(stat.Ino)
}
