package flatfat

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/aligator/flatfat/checkpoint"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// Volume is an open volume. All tables are held in memory and written back after every
// successful change. A Volume must only be used by one goroutine at a time and assumes
// exclusive ownership of its backing file.
type Volume struct {
	name   string
	store  clusterDevice
	header volumeHeader

	fat *allocationTable
	dir *directoryTable

	host afero.Fs
	log  *zap.Logger
	now  func() time.Time
}

// Option configures a Volume in Create and Open.
type Option func(v *Volume)

// WithLogger sets the logger used for operation events. It defaults to a no-op logger.
func WithLogger(log *zap.Logger) Option {
	return func(v *Volume) {
		v.log = log
	}
}

// WithHost sets the filesystem used for the External side of Copy and Move.
// It defaults to the operating system filesystem.
func WithHost(host afero.Fs) Option {
	return func(v *Volume) {
		v.host = host
	}
}

// WithClock replaces time.Now for creation timestamps.
func WithClock(now func() time.Time) Option {
	return func(v *Volume) {
		v.now = now
	}
}

func newVolume(name string, opts []Option) *Volume {
	v := &Volume{
		name: name,
		host: afero.NewOsFs(),
		log:  zap.NewNop(),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	v.log = v.log.With(zap.String("volume", name))
	return v
}

// validate checks the header against the geometry limits.
func (h volumeHeader) validate() error {
	switch {
	case h.ClusterSize < MinClusterSize || h.ClusterSize > MaxClusterSize:
		return fmt.Errorf("cluster size %d outside of [%d, %d]", h.ClusterSize, MinClusterSize, MaxClusterSize)
	case h.ClusterSize%dirEntrySize != 0:
		return fmt.Errorf("cluster size %d is not a multiple of %d", h.ClusterSize, dirEntrySize)
	case h.TotalSize < MinVolumeSize || h.TotalSize > MaxVolumeSize:
		return fmt.Errorf("volume size %d outside of [%d, %d]", h.TotalSize, MinVolumeSize, MaxVolumeSize)
	case h.TotalSize < h.ClusterSize:
		return fmt.Errorf("volume size %d smaller than cluster size %d", h.TotalSize, h.ClusterSize)
	}
	return nil
}

// validateLayout checks that the tables start where the volume can hold them.
func (h volumeHeader) validateLayout() error {
	n := h.numClusters()
	fatEnd := h.AllocTable + fatClusters(n, h.ClusterSize)
	switch {
	case h.AllocTable == 0 || fatEnd > n:
		return fmt.Errorf("allocation table at cluster %d does not fit into %d clusters", h.AllocTable, n)
	case h.RootDir == 0 || h.RootDir >= n:
		return fmt.Errorf("root directory at cluster %d outside of %d clusters", h.RootDir, n)
	case h.RootDir >= h.AllocTable && h.RootDir < fatEnd:
		return fmt.Errorf("root directory at cluster %d overlaps the allocation table", h.RootDir)
	}
	return nil
}

func (h volumeHeader) numClusters() uint32 {
	return h.TotalSize / h.ClusterSize
}

// Create formats a new volume of totalSize bytes with clusters of clusterSize bytes at path.
// An existing file at path is overwritten.
func Create(fsys afero.Fs, path string, totalSize, clusterSize uint32, opts ...Option) (*Volume, error) {
	header := volumeHeader{
		ClusterSize: clusterSize,
		TotalSize:   totalSize,
		AllocTable:  1,
	}
	if err := header.validate(); err != nil {
		return nil, checkpoint.Wrap(err, ErrInvalidParameters)
	}
	n := header.numClusters()
	header.RootDir = header.AllocTable + fatClusters(n, clusterSize)

	file, err := fsys.Create(path)
	if err != nil {
		return nil, checkpoint.Wrap(err, ErrIO)
	}
	if err := file.Truncate(int64(totalSize)); err != nil {
		file.Close()
		return nil, checkpoint.Wrap(err, ErrIO)
	}

	v := newVolume(path, opts)
	v.store = newFileStore(file, clusterSize)
	v.header = header

	v.fat = newAllocationTable(n)
	v.fat.set(0, reservedEntry)
	for c := header.AllocTable; c < header.RootDir; c++ {
		v.fat.set(c, reservedEntry)
	}
	v.fat.set(header.RootDir, endOfChainEntry)

	v.dir = newDirectoryTable(clusterSize)
	v.dir.grow()

	if err := v.writeHeader(); err != nil {
		v.store.Close()
		return nil, err
	}
	if err := v.persist(); err != nil {
		v.store.Close()
		return nil, err
	}

	v.log.Info("created volume",
		zap.Uint32("totalSize", totalSize),
		zap.Uint32("clusterSize", clusterSize),
		zap.Uint32("clusters", n),
	)
	return v, nil
}

// Open opens the volume stored at path and loads its tables.
// If the header does not describe a valid volume, ErrNotAVolume is returned.
func Open(fsys afero.Fs, path string, opts ...Option) (*Volume, error) {
	file, err := fsys.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, checkpoint.Wrap(err, ErrIO)
	}

	v, err := open(file, path, opts)
	if err != nil {
		file.Close()
		return nil, err
	}
	return v, nil
}

func open(file afero.File, path string, opts []Option) (*Volume, error) {
	header, err := readHeader(file)
	if err != nil {
		return nil, err
	}

	stat, err := file.Stat()
	if err != nil {
		return nil, checkpoint.Wrap(err, ErrIO)
	}
	if stat.Size() < int64(header.numClusters())*int64(header.ClusterSize) {
		return nil, checkpoint.Newf(ErrNotAVolume, "backing file has %d bytes, header needs %d", stat.Size(), header.TotalSize)
	}

	v := newVolume(path, opts)
	v.store = newFileStore(file, header.ClusterSize)
	v.header = header
	v.fat = newAllocationTable(header.numClusters())
	v.dir = newDirectoryTable(header.ClusterSize)

	if err := v.fat.load(v.store, header.AllocTable, header.ClusterSize); err != nil {
		return nil, checkpoint.Wrap(err, ErrNotAVolume)
	}
	if err := v.dir.load(v.store, v.fat, header.RootDir, header.ClusterSize); err != nil {
		return nil, checkpoint.Wrap(err, ErrNotAVolume)
	}

	v.log.Debug("opened volume",
		zap.Uint32("clusters", header.numClusters()),
		zap.Int("slots", len(v.dir.slots)),
		zap.Int("files", v.dir.count()),
	)
	return v, nil
}

func readHeader(r io.ReadSeeker) (volumeHeader, error) {
	var header volumeHeader

	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return header, checkpoint.Wrap(err, ErrIO)
	}

	data := make([]byte, headerSize)
	if _, err := io.ReadFull(r, data); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return header, checkpoint.Wrap(err, ErrNotAVolume)
	}

	err := binary.Read(bytes.NewReader(data), binary.LittleEndian, &header)
	if err != nil {
		return header, checkpoint.Wrap(err, ErrNotAVolume)
	}

	if err := header.validate(); err != nil {
		return header, checkpoint.Wrap(err, ErrNotAVolume)
	}
	if err := header.validateLayout(); err != nil {
		return header, checkpoint.Wrap(err, ErrNotAVolume)
	}
	return header, nil
}

// writeHeader writes cluster 0. The rest of the cluster is zeroed.
func (v *Volume) writeHeader() error {
	var buf bytes.Buffer
	err := binary.Write(&buf, binary.LittleEndian, v.header)
	if err != nil {
		return checkpoint.From(err)
	}
	buf.Write(make([]byte, int(v.header.ClusterSize)-buf.Len()))

	return v.store.writeCluster(0, buf.Bytes())
}

// persist writes the allocation table and then the directory table.
func (v *Volume) persist() error {
	if err := v.fat.store(v.store, v.header.AllocTable, v.header.ClusterSize); err != nil {
		return err
	}
	return v.dir.store(v.store, v.fat, v.header.RootDir, v.header.ClusterSize)
}

// tables is an in-memory copy of both tables used to roll back failed operations.
type tables struct {
	fat []fatEntry
	dir []dirRecord
}

func (v *Volume) snapshot() tables {
	return tables{
		fat: v.fat.snapshot(),
		dir: v.dir.snapshot(),
	}
}

func (v *Volume) restore(t tables) {
	v.fat.restore(t.fat)
	v.dir.restore(t.dir)
}

// commit persists the tables. If that fails the tables are restored to t.
func (v *Volume) commit(t tables) error {
	if err := v.persist(); err != nil {
		v.restore(t)
		v.log.Warn("could not persist tables, changes discarded", zap.Error(err))
		return err
	}
	return nil
}

// Close releases the backing file. The tables are already persisted at this point.
func (v *Volume) Close() error {
	return v.store.Close()
}

// Name returns the path the volume was opened from.
func (v *Volume) Name() string {
	return v.name
}

// Geometry describes the layout of a volume.
type Geometry struct {
	ClusterSize       uint32
	TotalSize         uint32
	Clusters          uint32
	AllocTableCluster uint32
	AllocTableLength  uint32
	RootDirCluster    uint32
	EntriesPerCluster int
}

func (v *Volume) Geometry() Geometry {
	n := v.header.numClusters()
	return Geometry{
		ClusterSize:       v.header.ClusterSize,
		TotalSize:         v.header.TotalSize,
		Clusters:          n,
		AllocTableCluster: v.header.AllocTable,
		AllocTableLength:  fatClusters(n, v.header.ClusterSize),
		RootDirCluster:    v.header.RootDir,
		EntriesPerCluster: v.dir.perCluster,
	}
}
