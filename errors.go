package flatfat

import (
	"errors"
	"fmt"
	"io/fs"
)

// These errors describe the outcome of volume operations. Check them with errors.Is.
var (
	ErrInvalidParameters = errors.New("invalid parameters")
	ErrNotAVolume        = errors.New("not a volume")
	ErrIO                = errors.New("volume i/o failed")
	ErrNotFound          = fmt.Errorf("file not found: %w", fs.ErrNotExist)
	ErrAlreadyExists     = fmt.Errorf("file already exists: %w", fs.ErrExist)
	ErrSameLocation      = errors.New("source and destination are the same")
	ErrNoSpace           = errors.New("no space left on volume")
	ErrCorrupt           = errors.New("volume is corrupt")
)
