package flatfat

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"syscall"

	"github.com/aligator/flatfat/checkpoint"
	"github.com/spf13/afero"
)

// These errors may occur while processing a file.
var (
	ErrReadFile    = errors.New("could not read file completely")
	ErrWriteFile   = errors.New("could not write file")
	ErrSeekFile    = errors.New("could not seek inside of the file")
	ErrReadDir     = errors.New("could not read the directory")
	ErrUnsupported = fmt.Errorf("not supported by the volume: %w", errors.ErrUnsupported)
)

// fileSource provides all methods needed from a volume for File.
// It mainly exists to be able to mock the Volume in tests.
// Generated mock using mockgen:
//
//	mockgen -source=file.go -destination=file_mock.go -package flatfat
type fileSource interface {
	readFileAt(start uint32, fileSize int64, offset int64, readSize int64) ([]byte, error)
	Entries() []Entry
	Import(name string, r io.Reader) (Entry, error)
}

// File is an open file or the root directory of a volume.
//
// A File opened for writing only buffers the written data. The buffer replaces the
// content of the file on Sync and Close, so readers see either the old or the new content.
type File struct {
	fs    fileSource
	entry Entry

	isDirectory bool
	writable    bool
	dirty       bool
	buffer      []byte

	offset int64
}

func (f *File) size() int64 {
	if f.writable {
		return int64(len(f.buffer))
	}
	return f.entry.Size
}

func (f *File) Close() error {
	if f.fs == nil {
		return nil
	}

	err := f.Sync()

	f.fs = nil
	f.entry = Entry{}
	f.isDirectory = false
	f.writable = false
	f.dirty = false
	f.buffer = nil
	f.offset = 0

	return err
}

func (f *File) Read(p []byte) (n int, err error) {
	if f.fs == nil {
		return 0, afero.ErrFileClosed
	}
	if len(p) == 0 {
		return 0, nil
	}
	if f.isDirectory {
		return 0, checkpoint.Wrap(syscall.EISDIR, ErrReadFile)
	}
	if f.writable {
		return 0, checkpoint.Wrap(ErrUnsupported, ErrReadFile)
	}

	// Reading a file if the size has been already reached, makes no sense.
	if f.entry.Size <= f.offset {
		return 0, io.EOF
	}

	data, err := f.fs.readFileAt(f.entry.StartCluster, f.entry.Size, f.offset, int64(len(p)))
	n = copy(p, data)
	f.offset += int64(n)

	// Reaching the end of the file is reported by the next Read.
	if err == io.EOF && n > 0 {
		return n, nil
	}
	if err != nil {
		return n, checkpoint.Wrap(err, ErrReadFile)
	}
	return n, nil
}

func (f *File) ReadAt(p []byte, off int64) (n int, err error) {
	if f.fs == nil {
		return 0, afero.ErrFileClosed
	}
	if f.isDirectory {
		return 0, checkpoint.Wrap(syscall.EISDIR, ErrReadFile)
	}
	if f.writable {
		return 0, checkpoint.Wrap(ErrUnsupported, ErrReadFile)
	}
	if off < 0 {
		return 0, checkpoint.Wrap(syscall.EINVAL, ErrReadFile)
	}
	if len(p) == 0 {
		return 0, nil
	}

	// Reading over the end makes no sense.
	if f.entry.Size <= off {
		return 0, io.EOF
	}

	data, err := f.fs.readFileAt(f.entry.StartCluster, f.entry.Size, off, int64(len(p)))
	n = copy(p, data)

	if err == io.EOF {
		return n, io.EOF
	}
	if err != nil {
		return n, checkpoint.Wrap(err, ErrReadFile)
	}
	return n, nil
}

// Seek jumps to a specific offset in the file. This affects all Read and Write operations except ReadAt and WriteAt.
// May return a syscall.EINVAL error if the whence value is invalid or the resulting offset is negative.
func (f *File) Seek(offset int64, whence int) (int64, error) {
	if f.fs == nil {
		return 0, afero.ErrFileClosed
	}

	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		offset = f.offset + offset
	case io.SeekEnd:
		offset = f.size() + offset
	default:
		return 0, checkpoint.Wrap(ErrSeekFile, fmt.Errorf("%w, offset: %v, whence: %v", syscall.EINVAL, offset, whence))
	}

	if offset < 0 {
		return 0, checkpoint.Wrap(ErrSeekFile, fmt.Errorf("%w, offset: %v, whence: %v", syscall.EINVAL, offset, whence))
	}

	f.offset = offset
	return offset, nil
}

func (f *File) Write(p []byte) (n int, err error) {
	n, err = f.WriteAt(p, f.offset)
	f.offset += int64(n)
	return n, err
}

// WriteAt writes p into the buffer at off. Gaps are filled with zeros.
func (f *File) WriteAt(p []byte, off int64) (n int, err error) {
	if f.fs == nil {
		return 0, afero.ErrFileClosed
	}
	if !f.writable {
		return 0, checkpoint.Wrap(syscall.EBADF, ErrWriteFile)
	}
	if off < 0 {
		return 0, checkpoint.Wrap(syscall.EINVAL, ErrWriteFile)
	}

	end := off + int64(len(p))
	if end > int64(len(f.buffer)) {
		f.buffer = append(f.buffer, make([]byte, end-int64(len(f.buffer)))...)
	}
	copy(f.buffer[off:], p)
	f.dirty = true
	return len(p), nil
}

func (f *File) Name() string {
	return f.entry.Name
}

// Readdir reads the contents of a directory.
// May return syscall.ENOTDIR if the current File is no directory.
func (f *File) Readdir(count int) ([]os.FileInfo, error) {
	if f.fs == nil {
		return nil, afero.ErrFileClosed
	}
	if !f.isDirectory {
		return nil, checkpoint.Wrap(syscall.ENOTDIR, ErrReadDir)
	}

	content := f.fs.Entries()

	start := int(f.offset)
	if start > len(content) {
		start = len(content)
	}
	content = content[start:]

	if count > 0 {
		if len(content) == 0 {
			return nil, io.EOF
		}
		if count < len(content) {
			content = content[:count]
		}
	}
	f.offset += int64(len(content))

	result := make([]os.FileInfo, len(content))
	for i := range content {
		result[i] = content[i].FileInfo()
	}

	return result, nil
}

func (f *File) Readdirnames(count int) ([]string, error) {
	content, err := f.Readdir(count)
	if err == io.EOF {
		return nil, io.EOF
	}
	if err != nil {
		return nil, checkpoint.Wrap(err, ErrReadDir)
	}

	names := make([]string, len(content))
	for i, entry := range content {
		names[i] = entry.Name()
	}

	return names, nil
}

func (f *File) Stat() (os.FileInfo, error) {
	if f.fs == nil {
		return nil, afero.ErrFileClosed
	}

	entry := f.entry
	entry.Size = f.size()
	return entry.FileInfo(), nil
}

// Sync replaces the file content on the volume with the buffer if anything was written.
func (f *File) Sync() error {
	if f.fs == nil {
		return afero.ErrFileClosed
	}
	if !f.dirty {
		return nil
	}

	entry, err := f.fs.Import(f.entry.Name, bytes.NewReader(f.buffer))
	if err != nil {
		return checkpoint.Wrap(err, ErrWriteFile)
	}
	f.entry = entry
	f.dirty = false
	return nil
}

func (f *File) Truncate(size int64) error {
	if f.fs == nil {
		return afero.ErrFileClosed
	}
	if !f.writable {
		return checkpoint.Wrap(syscall.EBADF, ErrWriteFile)
	}
	if size < 0 {
		return checkpoint.Wrap(syscall.EINVAL, ErrWriteFile)
	}

	if size <= int64(len(f.buffer)) {
		f.buffer = f.buffer[:size]
	} else {
		f.buffer = append(f.buffer, make([]byte, size-int64(len(f.buffer)))...)
	}
	f.dirty = true
	return nil
}

func (f *File) WriteString(s string) (ret int, err error) {
	return f.Write([]byte(s))
}
