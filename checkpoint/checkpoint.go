// Package checkpoint decorates errors with the location they passed through, which results
// in something similar to a stacktrace of the volume operation that failed.
// Each error added to a checkpoint can be checked by errors.Is and retrieved by errors.As.
package checkpoint

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"runtime"
	"strings"
)

// From wraps an error by a new checkpoint which adds the caller location to the error.
// It returns nil, if err == nil.
func From(err error) error {
	// io.EOF must be returned as io.EOF directly
	// https://github.com/golang/go/issues/39155
	if err == nil || err == io.EOF {
		return err
	}

	return newCheckpoint(err, nil, 2)
}

// Wrap adds a checkpoint to prev and accepts another error which further describes it.
// Returns nil if prev == nil, and io.EOF unchanged.
// This allows to use predefined sentinels as the description:
//
//	var ErrNoSpace = errors.New("no space left")
//
//	func allocate() error {
//		err := findCluster()
//		return checkpoint.Wrap(err, ErrNoSpace)
//	}
//
// Both errors.Is(err, ErrNoSpace) and errors.Is for the error returned by findCluster work.
func Wrap(prev, err error) error {
	// io.EOF must be returned as io.EOF directly
	// https://github.com/golang/go/issues/39155
	if prev == nil || prev == io.EOF {
		return prev
	}

	return newCheckpoint(err, prev, 2)
}

// Newf creates a checkpoint for the sentinel err with a formatted detail message.
// errors.Is(result, err) reports true.
//
//	return checkpoint.Newf(ErrNotFound, "no entry named %q", name)
func Newf(err error, format string, args ...interface{}) error {
	return newCheckpoint(fmt.Errorf(format, args...), err, 2)
}

func newCheckpoint(err, prev error, skip int) *checkpoint {
	_, file, line, ok := runtime.Caller(skip)

	return &checkpoint{
		err:  err,
		prev: prev,

		callerOk: ok,
		file:     filepath.Base(file),
		line:     line,
	}
}

type checkpoint struct {
	err  error
	prev error

	callerOk bool
	file     string
	line     int
}

func (e *checkpoint) location() string {
	if !e.callerOk {
		return "unknown"
	}
	return fmt.Sprintf("%s:%d", e.file, e.line)
}

// Error renders the chain as one line per checkpoint, the innermost error last.
func (e *checkpoint) Error() string {
	var b strings.Builder
	b.WriteString(e.location())
	b.WriteString(": ")
	if e.err != nil {
		b.WriteString(e.err.Error())
	}

	if e.prev == nil {
		return b.String()
	}

	b.WriteString("\n")
	if _, ok := e.prev.(*checkpoint); ok {
		b.WriteString(e.prev.Error())
	} else {
		b.WriteString("unknown: ")
		b.WriteString(strings.ReplaceAll(e.prev.Error(), "\n", "\n\t"))
	}
	return b.String()
}

func (e *checkpoint) Unwrap() error {
	return e.prev
}

func (e *checkpoint) Is(target error) bool {
	return e.err != nil && errors.Is(e.err, target)
}

func (e *checkpoint) As(target interface{}) bool {
	return e.err != nil && errors.As(e.err, target)
}
