package vos

import (
	"errors"
	"io/fs"
	"os/exec"
	"path"
	"path/filepath"
	"strings"
)

// ErrNotFound is the error resulting if a path search failed to find an executable file.
var ErrNotFound = exec.ErrNotFound

func findExecutable(vfs VFS, file string) error {
	d, err := vfs.Stat(file)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return ErrNotFound
	case err != nil:
		return err
	}
	if m := d.Mode(); !m.IsDir() && m&0111 != 0 {
		return nil
	}
	return fs.ErrPermission
}

// LookPath searches for an executable named file in the directories named by
// pathList, the value of $PATH. If file contains a slash, it is tried directly
// and the PATH is not consulted. Relative results are resolved against dir
// before touching the filesystem but returned as found.
//
// A file that exists but is not executable is reported with
// fs.ErrPermission so callers can tell "not found" from "not executable".
func LookPath(vfs VFS, dir, pathList, file string) (string, error) {
	if strings.Contains(file, "/") {
		err := findExecutable(vfs, Abs(dir, file))
		if err == nil {
			return file, nil
		}
		return "", err
	}

	var denied error
	for _, elem := range filepath.SplitList(pathList) {
		if elem == "" {
			// Unix shell semantics: path element "" means "."
			elem = "."
		}
		candidate := path.Join(elem, file)
		switch err := findExecutable(vfs, Abs(dir, candidate)); {
		case err == nil:
			return candidate, nil
		case errors.Is(err, fs.ErrPermission) && denied == nil:
			denied = err
		}
	}
	if denied != nil {
		return "", denied
	}
	return "", ErrNotFound
}
