package launcher

import (
	"fmt"
	"os"
	"path/filepath"
)

// DirResolver resolves resources below an installation directory.
type DirResolver struct {
	Root string
}

// Resolve joins Root and resource and checks that a regular file exists there.
func (r DirResolver) Resolve(resource string) (string, error) {
	if resource == "" {
		return "", fmt.Errorf("empty resource path")
	}

	path, err := filepath.Abs(filepath.Join(r.Root, filepath.FromSlash(resource)))
	if err != nil {
		return "", err
	}

	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		return "", fmt.Errorf("%s is a directory", path)
	}
	return path, nil
}

// ExecutableRoot returns the directory of the running executable.
func ExecutableRoot() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", err
	}
	exe, err = filepath.EvalSymlinks(exe)
	if err != nil {
		return "", err
	}
	return filepath.Dir(exe), nil
}
