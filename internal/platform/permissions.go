package platform

import (
	"io/fs"
	"os"
	"runtime"
)

// Permission modes applied to extracted package files.
const (
	FilePerm = fs.FileMode(0644)
	ExecPerm = fs.FileMode(0755)
)

// Chmod sets file permissions. On Windows this is a no-op because Windows
// does not support Unix-style permission bits.
func Chmod(path string, mode os.FileMode) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	return os.Chmod(path, mode)
}

// NormalizePerm maps an archived file mode to ExecPerm when any execute bit
// is set and to FilePerm otherwise.
func NormalizePerm(mode fs.FileMode) fs.FileMode {
	if mode&0111 != 0 {
		return ExecPerm
	}
	return FilePerm
}

// IsExecutable reports whether path is a regular file the current platform
// will run.
func IsExecutable(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return false, err
	}
	if !info.Mode().IsRegular() {
		return false, nil
	}
	if runtime.GOOS == "windows" {
		return true, nil
	}
	return info.Mode().Perm()&0111 != 0, nil
}
