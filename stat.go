package flatfat

import (
	"os"
	"time"
)

func (e Entry) FileInfo() os.FileInfo {
	return entryFileInfo{e}
}

type entryFileInfo struct {
	entry Entry
}

func (e entryFileInfo) Name() string {
	return e.entry.Name
}

func (e entryFileInfo) Size() int64 {
	return e.entry.Size
}

func (e entryFileInfo) Mode() os.FileMode {
	if e.IsDir() {
		return os.ModeDir | 0555
	}
	return 0444
}

// ModTime returns the creation time as files are never modified in place.
func (e entryFileInfo) ModTime() time.Time {
	return e.entry.Created
}

func (e entryFileInfo) IsDir() bool {
	return e.entry.Kind == KindDirectory
}

func (e entryFileInfo) Sys() interface{} {
	return e.entry
}
