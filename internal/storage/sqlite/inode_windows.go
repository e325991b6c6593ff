//go:build windows

package sqlite

import "os"

// getFileInode is unavailable on Windows; FreshnessChecker falls back to
// mtime-only detection there.
func getFileInode(info os.FileInfo) uint64 {
	return 0
}
