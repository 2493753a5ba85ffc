package util

import (
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
)

func ensureParent(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

// WriteFileWithDirs creates parent directories (0755) and writes the file with perm.
func WriteFileWithDirs(path string, data []byte, perm fs.FileMode) error {
	if err := ensureParent(path); err != nil {
		return err
	}
	return os.WriteFile(path, data, perm)
}

func WriteStringWithDirs(path, content string, perm fs.FileMode) error {
	return WriteFileWithDirs(path, []byte(content), perm)
}

// CreateWithDirs creates or truncates path for writing, making parent
// directories as needed.
func CreateWithDirs(path string) (*os.File, error) {
	if err := ensureParent(path); err != nil {
		return nil, err
	}
	return os.Create(path)
}

// HeapAllocMB returns the current heap allocation in MB.
func HeapAllocMB() uint64 {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return m.Alloc >> 20
}
