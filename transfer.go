package flatfat

import (
	"bytes"
	"errors"
	"io"
	"os"

	"github.com/aligator/flatfat/checkpoint"
	"go.uber.org/zap"
)

// Location tells whether a path of Copy and Move is a file on the volume or on the host filesystem.
type Location uint8

const (
	InVolume Location = iota
	External
)

func (l Location) String() string {
	if l == External {
		return "external"
	}
	return "volume"
}

// Copy copies src to dst. An existing destination is overwritten.
//
// If the volume runs out of clusters, or anything else fails while writing to the
// volume, the tables stay exactly as they were before the call.
func (v *Volume) Copy(src, dst string, from, to Location) error {
	var err error
	if from == InVolume {
		if src, err = cleanName(src); err != nil {
			return err
		}
	}
	if to == InVolume {
		if dst, err = cleanName(dst); err != nil {
			return err
		}
	}

	switch {
	case from == to && src == dst:
		return checkpoint.Newf(ErrSameLocation, "%v %q", from, src)
	case from == External && to == External:
		return checkpoint.Newf(ErrInvalidParameters, "neither %q nor %q is on the volume", src, dst)
	case from == InVolume && to == External:
		return v.export(src, dst)
	case from == External && to == InVolume:
		return v.importHost(src, dst)
	default:
		return v.copyWithin(src, dst)
	}
}

// Move copies src to dst and removes src afterwards. Nothing is removed if the copy fails.
func (v *Volume) Move(src, dst string, from, to Location) error {
	if err := v.Copy(src, dst, from, to); err != nil {
		return err
	}

	if from == InVolume {
		return v.Delete(src)
	}
	if err := v.host.Remove(src); err != nil {
		return checkpoint.Wrap(err, ErrIO)
	}
	return nil
}

// Import writes everything read from r into the file called name. An existing file is
// deleted first and the content goes to a fresh file, so it reuses the clusters of the
// old one.
func (v *Volume) Import(name string, r io.Reader) (Entry, error) {
	name, err := cleanName(name)
	if err != nil {
		return Entry{}, err
	}

	existing, available, err := v.room(name)
	if err != nil {
		return Entry{}, err
	}
	src, size, err := sized(r, available*int64(v.header.ClusterSize))
	if err != nil {
		return Entry{}, err
	}

	snap := v.snapshot()

	slot, err := v.recreate(name, existing, v.clustersFor(size), available)
	if err != nil {
		v.rollback(snap, "import", name, err)
		return Entry{}, err
	}

	size, err = v.writeChain(v.dir.slots[slot].StartCluster, src)
	if err != nil {
		v.rollback(snap, "import", name, err)
		return Entry{}, err
	}
	v.dir.slots[slot].Size = uint32(size)

	if err := v.commit(snap); err != nil {
		return Entry{}, err
	}

	entry := v.dir.slots[slot].entry(slot)
	v.log.Debug("imported file", zap.String("name", name), zap.Int64("size", size), zap.Uint32("cluster", entry.StartCluster))
	return entry, nil
}

func (v *Volume) rollback(snap tables, op, name string, err error) {
	v.restore(snap)
	v.log.Warn("rolled back", zap.String("op", op), zap.String("name", name), zap.Error(err))
}

// room returns the slot of the file called name, or -1 if there is none, and the number
// of clusters a new file of that name can occupy: the free ones plus the ones the old
// file releases.
func (v *Volume) room(name string) (int, int64, error) {
	available := int64(v.Usage().Free)

	slot, ok := v.dir.find(name)
	if !ok {
		return -1, available, nil
	}
	old, err := v.fat.chainClusters(v.dir.slots[slot].StartCluster)
	if err != nil {
		return -1, 0, checkpoint.Wrap(err, checkpoint.Newf(ErrCorrupt, "entry %q", name))
	}
	return slot, available + int64(len(old)), nil
}

// clustersFor returns the length of the chain holding size bytes. Empty files own one cluster.
func (v *Volume) clustersFor(size int64) int64 {
	cs := int64(v.header.ClusterSize)
	if size <= cs {
		return 1
	}
	return (size + cs - 1) / cs
}

// recreate deletes the entry at existing, if any, and creates the file name again with
// a single cluster. It fails before changing anything if need exceeds available, as the
// clusters of the deleted file may be overwritten afterwards.
// The caller restores the tables if it fails.
func (v *Volume) recreate(name string, existing int, need, available int64) (int, error) {
	if need > available {
		return -1, checkpoint.Newf(ErrNoSpace, "%q needs %d clusters, %d are available", name, need, available)
	}
	if existing >= 0 {
		if err := v.deleteSlot(existing); err != nil {
			return -1, err
		}
	}
	return v.createEntry(name)
}

// sized returns a reader with the remaining content of r and its length. Readers which
// cannot tell their length are read into memory, at most limit+1 bytes so that a too
// large input is still detected.
func sized(r io.Reader, limit int64) (io.Reader, int64, error) {
	if l, ok := r.(interface{ Len() int }); ok {
		return r, int64(l.Len()), nil
	}

	if f, ok := r.(interface {
		io.Seeker
		Stat() (os.FileInfo, error)
	}); ok {
		info, err := f.Stat()
		if err == nil && info.Mode().IsRegular() {
			offset, err := f.Seek(0, io.SeekCurrent)
			if err == nil && offset <= info.Size() {
				return r, info.Size() - offset, nil
			}
		}
	}

	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, 0, checkpoint.Wrap(err, ErrIO)
	}
	return bytes.NewReader(data), int64(len(data)), nil
}

// chainBuilder fills a chain starting with the single cluster of a fresh entry.
type chainBuilder struct {
	v       *Volume
	last    uint32
	written int
}

func (v *Volume) newChainBuilder(start uint32) *chainBuilder {
	return &chainBuilder{v: v, last: start}
}

// append stores data, which must be a whole cluster, in the first cluster of the chain
// or, once that is written, in the next free cluster.
func (b *chainBuilder) append(data []byte) error {
	if b.written > 0 {
		cluster, err := b.v.fat.findFree()
		if err != nil {
			return err
		}
		b.v.fat.set(cluster, endOfChainEntry)
		b.v.fat.set(b.last, nextEntry(cluster))
		b.last = cluster
	}
	b.written++
	return b.v.store.writeCluster(b.last, data)
}

// writeChain stores everything read from r in the chain at start and returns the number
// of bytes read. Empty input still overwrites the first cluster.
func (v *Volume) writeChain(start uint32, r io.Reader) (int64, error) {
	b := v.newChainBuilder(start)
	buf := make([]byte, v.header.ClusterSize)
	var size int64

	for {
		n, err := io.ReadFull(r, buf)
		if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
			return 0, checkpoint.Wrap(err, ErrIO)
		}
		if n == 0 && b.written > 0 {
			break
		}

		clear(buf[n:])
		if err := b.append(buf); err != nil {
			return 0, err
		}
		size += int64(n)

		if n < len(buf) {
			break
		}
	}
	return size, nil
}

// copyChain copies the clusters of a source chain into the chain at start.
func (v *Volume) copyChain(start uint32, source []uint32) error {
	b := v.newChainBuilder(start)
	buf := make([]byte, v.header.ClusterSize)

	for _, cluster := range source {
		if err := v.store.readCluster(cluster, buf); err != nil {
			return err
		}
		if err := b.append(buf); err != nil {
			return err
		}
	}
	return nil
}

// copyWithin deletes dst if it exists, creates it again and copies the clusters of src.
func (v *Volume) copyWithin(src, dst string) error {
	slot, ok := v.dir.find(src)
	if !ok {
		return checkpoint.Newf(ErrNotFound, "%q", src)
	}
	source := v.dir.slots[slot]
	chain, err := v.fat.chainClusters(source.StartCluster)
	if err != nil {
		return checkpoint.Wrap(err, checkpoint.Newf(ErrCorrupt, "entry %q", src))
	}

	existing, available, err := v.room(dst)
	if err != nil {
		return err
	}

	snap := v.snapshot()

	target, err := v.recreate(dst, existing, int64(len(chain)), available)
	if err != nil {
		v.rollback(snap, "copy", dst, err)
		return err
	}
	if err := v.copyChain(v.dir.slots[target].StartCluster, chain); err != nil {
		v.rollback(snap, "copy", dst, err)
		return err
	}
	v.dir.slots[target].Size = source.Size

	if err := v.commit(snap); err != nil {
		return err
	}
	v.log.Debug("copied file", zap.String("source", src), zap.String("destination", dst), zap.Uint32("size", source.Size))
	return nil
}

// export writes the file src to dst on the host. The tables are not touched.
func (v *Volume) export(src, dst string) error {
	entry, err := v.Stat(src)
	if err != nil {
		return err
	}

	out, err := v.host.Create(dst)
	if err != nil {
		return checkpoint.Wrap(err, ErrIO)
	}

	_, err = io.Copy(out, v.newChainReader(entry.StartCluster, entry.Size))
	closeErr := out.Close()
	if err != nil {
		if errors.Is(err, ErrCorrupt) || errors.Is(err, ErrIO) {
			return err
		}
		return checkpoint.Wrap(err, ErrIO)
	}
	if closeErr != nil {
		return checkpoint.Wrap(closeErr, ErrIO)
	}

	v.log.Debug("exported file", zap.String("source", src), zap.String("destination", dst), zap.Int64("size", entry.Size))
	return nil
}

func (v *Volume) importHost(src, dst string) error {
	in, err := v.host.Open(src)
	if err != nil {
		if os.IsNotExist(err) {
			return checkpoint.Wrap(err, ErrNotFound)
		}
		return checkpoint.Wrap(err, ErrIO)
	}
	defer in.Close()

	_, err = v.Import(dst, in)
	return err
}
