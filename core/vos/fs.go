package vos

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"
	"syscall"

	"github.com/spf13/afero"
)

// VFS is the filesystem seen by the shell and by the processes it starts.
type VFS = afero.Fs

// NewMemFs creates an empty in-memory filesystem with a root directory.
func NewMemFs() VFS {
	mem := afero.NewMemMapFs()
	_ = mem.MkdirAll("/", 0755)
	return mem
}

// NewOsFs returns the host filesystem.
func NewOsFs() VFS {
	return afero.NewOsFs()
}

// maxSymlinkHops bounds link resolution, as the kernel does with ELOOP.
const maxSymlinkHops = 40

// EvalSymlinks returns the physical form of the absolute path name, with
// every symbolic link along it resolved. Filesystems that cannot read links
// only have name checked for existence.
func EvalSymlinks(vfs VFS, name string) (string, error) {
	lstater, ok := vfs.(afero.Lstater)
	reader, canRead := vfs.(afero.LinkReader)
	if !ok || !canRead {
		if _, err := vfs.Stat(name); err != nil {
			return "", err
		}
		return path.Clean(name), nil
	}

	resolved := "/"
	pending := strings.Split(name, "/")
	hops := 0
	for len(pending) > 0 {
		part := pending[0]
		pending = pending[1:]
		switch part {
		case "", ".":
			continue
		case "..":
			resolved = path.Dir(resolved)
			continue
		}

		next := path.Join(resolved, part)
		info, _, err := lstater.LstatIfPossible(next)
		if err != nil {
			return "", err
		}
		if info.Mode()&fs.ModeSymlink == 0 {
			resolved = next
			continue
		}

		if hops++; hops > maxSymlinkHops {
			return "", &fs.PathError{Op: "readlink", Path: name, Err: syscall.ELOOP}
		}
		target, err := reader.ReadlinkIfPossible(next)
		if err != nil {
			return "", err
		}
		if path.IsAbs(target) {
			resolved = "/"
		}
		pending = append(strings.Split(target, "/"), pending...)
	}
	return resolved, nil
}

// SeedFs writes each file in files into vfs, creating parent directories.
// Paths ending in "/" create directories. Files placed under a "bin"
// directory are made executable.
func SeedFs(vfs VFS, files map[string]string) error {
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if strings.HasSuffix(name, "/") {
			if err := vfs.MkdirAll(path.Clean(name), 0755); err != nil {
				return err
			}
			continue
		}
		if err := vfs.MkdirAll(path.Dir(name), 0755); err != nil {
			return err
		}
		mode := fs.FileMode(0644)
		if path.Base(path.Dir(name)) == "bin" {
			mode = 0755
		}
		if err := afero.WriteFile(vfs, name, []byte(files[name]), mode); err != nil {
			return err
		}
		if err := vfs.Chmod(name, mode); err != nil {
			return err
		}
	}
	return nil
}

// ExtractTarGzToVFS unpacks a gzipped tarball into vfs.
func ExtractTarGzToVFS(vfs VFS, r io.Reader) error {
	gr, err := gzip.NewReader(r)
	if err != nil {
		return err
	}
	defer gr.Close()
	return ExtractTarToVFS(vfs, tar.NewReader(gr))
}

// ExtractTarToVFS unpacks a tarball into vfs. Symlinks are skipped because
// the in-memory filesystem has no link support.
func ExtractTarToVFS(vfs VFS, t *tar.Reader) error {
	for {
		hdr, err := t.Next()
		switch {
		case err == io.EOF:
			return nil
		case err != nil:
			return err
		}

		if err := (func() error {
			hdr.Name = "/" + strings.TrimPrefix(strings.TrimSuffix(hdr.Name, "/"), "/")

			// Make parents
			if err := vfs.MkdirAll(path.Dir(hdr.Name), 0755); err != nil {
				return err
			}

			mode := hdr.FileInfo().Mode()
			switch {
			case mode&fs.ModeDir > 0:
				err := vfs.Mkdir(hdr.Name, mode.Perm())
				switch {
				case os.IsExist(err):
					// Do nothing
				case err != nil:
					return err
				}
			case mode&fs.ModeSymlink > 0:
				return nil
			default:
				fd, err := vfs.OpenFile(hdr.Name, os.O_RDWR|os.O_CREATE|os.O_TRUNC, mode.Perm())
				if err != nil {
					return err
				}
				// Don't defer the close because it'll update the modification time.
				if _, err := io.CopyN(fd, t, hdr.Size); err != nil {
					fd.Close()
					return err
				}
				fd.Close()
			}

			if err := vfs.Chmod(hdr.Name, mode.Perm()); err != nil {
				return err
			}
			return vfs.Chtimes(hdr.Name, hdr.FileInfo().ModTime(), hdr.FileInfo().ModTime())
		}()); err != nil {
			return fmt.Errorf("extracting %q: %v", hdr.Name, err)
		}
	}
}

// Abs resolves name against dir the way a process with working directory dir
// would.
func Abs(dir, name string) string {
	if path.IsAbs(name) {
		return path.Clean(name)
	}
	return path.Join(dir, name)
}
