package flatfat

import (
	"bytes"
	"errors"
	"os"
	"path"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/afero"
)

// Fs exposes a Volume as afero.Fs. The volume has a single flat root directory, so
// every path is a file name optionally prefixed with "/".
type Fs struct {
	v *Volume
}

// NewFs wraps v. The Fs uses v directly, v must not be used concurrently.
func NewFs(v *Volume) *Fs {
	return &Fs{v: v}
}

// pathError keeps the sentinels of os for missing and existing files, so os.IsNotExist
// and os.IsExist work on the returned errors.
func pathError(op, name string, err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		err = os.ErrNotExist
	case errors.Is(err, ErrAlreadyExists):
		err = os.ErrExist
	}
	return &os.PathError{Op: op, Path: name, Err: err}
}

// resolve turns a path into a file name. It returns "" for the root directory.
func resolve(name string) string {
	name = path.Clean("/" + filepath.ToSlash(name))
	return strings.TrimPrefix(name, "/")
}

func (fs *Fs) root() *File {
	return &File{
		fs: fs.v,
		entry: Entry{
			Slot:         -1,
			Name:         ".",
			StartCluster: fs.v.header.RootDir,
			Kind:         KindDirectory,
		},
		isDirectory: true,
	}
}

func (fs *Fs) Create(name string) (afero.File, error) {
	return fs.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0666)
}

func (fs *Fs) Mkdir(name string, perm os.FileMode) error {
	return &os.PathError{Op: "mkdir", Path: name, Err: ErrUnsupported}
}

// MkdirAll only succeeds for the root directory.
func (fs *Fs) MkdirAll(path string, perm os.FileMode) error {
	if resolve(path) == "" {
		return nil
	}
	return &os.PathError{Op: "mkdir", Path: path, Err: ErrUnsupported}
}

func (fs *Fs) Open(name string) (afero.File, error) {
	return fs.OpenFile(name, os.O_RDONLY, 0)
}

// OpenFile opens name for reading or, with os.O_WRONLY, for writing.
// os.O_RDWR is not supported as written data is only visible after Sync or Close.
func (fs *Fs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	file := resolve(name)
	write := flag&(os.O_WRONLY|os.O_RDWR) != 0

	if file == "" {
		if write {
			return nil, &os.PathError{Op: "open", Path: name, Err: syscall.EISDIR}
		}
		return fs.root(), nil
	}

	if strings.Contains(file, "/") {
		return nil, &os.PathError{Op: "open", Path: name, Err: os.ErrNotExist}
	}

	entry, err := fs.v.Stat(file)
	exists := err == nil
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, pathError("open", name, err)
	}

	if !write {
		if !exists {
			return nil, pathError("open", name, err)
		}
		return &File{fs: fs.v, entry: entry}, nil
	}

	if flag&os.O_RDWR != 0 {
		return nil, &os.PathError{Op: "open", Path: name, Err: ErrUnsupported}
	}

	switch {
	case exists && flag&os.O_CREATE != 0 && flag&os.O_EXCL != 0:
		return nil, pathError("open", name, ErrAlreadyExists)
	case !exists && flag&os.O_CREATE == 0:
		return nil, pathError("open", name, err)
	case !exists:
		// The file is visible right away, even before anything is written.
		if entry, err = fs.v.CreateFile(file); err != nil {
			return nil, pathError("open", name, err)
		}
	}

	f := &File{fs: fs.v, entry: entry, writable: true, buffer: []byte{}}
	switch {
	case flag&os.O_TRUNC != 0:
		f.dirty = exists && entry.Size > 0
	case entry.Size > 0:
		data, err := fs.v.readFileAt(entry.StartCluster, entry.Size, 0, entry.Size)
		if err != nil {
			return nil, pathError("open", name, err)
		}
		f.buffer = data
	}
	if flag&os.O_APPEND != 0 {
		f.offset = int64(len(f.buffer))
	}
	return f, nil
}

func (fs *Fs) Remove(name string) error {
	file := resolve(name)
	if file == "" {
		return &os.PathError{Op: "remove", Path: name, Err: syscall.EISDIR}
	}
	if err := fs.v.Delete(file); err != nil {
		return pathError("remove", name, err)
	}
	return nil
}

// RemoveAll removes every file if path is the root directory.
// Like os.RemoveAll it returns nil if path does not exist.
func (fs *Fs) RemoveAll(path string) error {
	file := resolve(path)
	if file == "" {
		file = MatchAll
	}
	err := fs.v.Delete(file)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return pathError("removeall", path, err)
	}
	return nil
}

// Rename moves oldname to newname and replaces newname if it exists.
func (fs *Fs) Rename(oldname, newname string) error {
	from, to := resolve(oldname), resolve(newname)
	if from == "" || to == "" {
		return &os.LinkError{Op: "rename", Old: oldname, New: newname, Err: syscall.EISDIR}
	}

	var err error
	if from == to {
		_, err = fs.v.Stat(from)
	} else {
		err = fs.v.Move(from, to, InVolume, InVolume)
	}
	if err != nil {
		return &os.LinkError{Op: "rename", Old: oldname, New: newname, Err: err}
	}
	return nil
}

func (fs *Fs) Stat(name string) (os.FileInfo, error) {
	file := resolve(name)
	if file == "" {
		return fs.root().entry.FileInfo(), nil
	}

	entry, err := fs.v.Stat(file)
	if err != nil {
		return nil, pathError("stat", name, err)
	}
	return entry.FileInfo(), nil
}

func (fs *Fs) Name() string {
	return "flatfat"
}

func (fs *Fs) Chmod(name string, mode os.FileMode) error {
	return &os.PathError{Op: "chmod", Path: name, Err: ErrUnsupported}
}

func (fs *Fs) Chown(name string, uid, gid int) error {
	return &os.PathError{Op: "chown", Path: name, Err: ErrUnsupported}
}

func (fs *Fs) Chtimes(name string, atime time.Time, mtime time.Time) error {
	return &os.PathError{Op: "chtimes", Path: name, Err: ErrUnsupported}
}

// WriteFile replaces the content of name in a single step.
func (fs *Fs) WriteFile(name string, data []byte) error {
	file := resolve(name)
	if file == "" {
		return &os.PathError{Op: "write", Path: name, Err: syscall.EISDIR}
	}
	if _, err := fs.v.Import(file, bytes.NewReader(data)); err != nil {
		return pathError("write", name, err)
	}
	return nil
}
