package flatfat

import (
	"io/fs"

	"github.com/spf13/afero"
)

// NewGoFS exposes v as fs.FS. It just wraps the afero implementation with afero.IOFS,
// which also provides fs.ReadDirFS, fs.ReadFileFS, fs.StatFS and fs.GlobFS.
func NewGoFS(v *Volume) fs.FS {
	return afero.NewIOFS(NewFs(v))
}
