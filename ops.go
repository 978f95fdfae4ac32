package flatfat

import (
	"io"

	"github.com/aligator/flatfat/checkpoint"
	"go.uber.org/zap"
)

// allocateSlot returns a slot for the new entry name. If the directory is full it grows
// by one cluster appended to the directory chain.
// Nothing is changed if it fails.
func (v *Volume) allocateSlot(name string) (int, error) {
	slot, err := v.dir.reusable(name)
	if err != nil {
		return -1, err
	}
	if slot >= 0 {
		return slot, nil
	}

	cluster, err := v.fat.findFree()
	if err != nil {
		return -1, err
	}
	last, err := v.fat.last(v.header.RootDir)
	if err != nil {
		return -1, err
	}

	v.fat.set(cluster, endOfChainEntry)
	v.fat.set(last, nextEntry(cluster))
	slot = v.dir.grow()

	v.log.Debug("grew directory", zap.Uint32("cluster", cluster), zap.Int("slots", len(v.dir.slots)))
	return slot, nil
}

// bind fills slot with a fresh file entry.
func (v *Volume) bind(slot int, name string, start uint32, size int64) {
	r := &v.dir.slots[slot]
	r.setName(name)
	r.StartCluster = start
	r.Size = uint32(size)
	r.Kind = uint32(KindFile)
	r.Created = MakeTimestamp(v.now())
}

// createEntry adds an empty file without persisting the tables.
func (v *Volume) createEntry(name string) (int, error) {
	cluster, err := v.fat.findFree()
	if err != nil {
		return -1, err
	}

	// Reserve the cluster before the slot, growing the directory must not take it.
	v.fat.set(cluster, endOfChainEntry)

	slot, err := v.allocateSlot(name)
	if err != nil {
		v.fat.set(cluster, freeEntry)
		return -1, err
	}

	v.bind(slot, name, cluster, 0)
	return slot, nil
}

// CreateFile adds an empty file which owns a single cluster.
func (v *Volume) CreateFile(name string) (Entry, error) {
	name, err := cleanName(name)
	if err != nil {
		return Entry{}, err
	}

	snap := v.snapshot()
	slot, err := v.createEntry(name)
	if err != nil {
		v.restore(snap)
		return Entry{}, err
	}
	if err := v.commit(snap); err != nil {
		return Entry{}, err
	}

	entry := v.dir.slots[slot].entry(slot)
	v.log.Debug("created file", zap.String("name", name), zap.Int("slot", slot), zap.Uint32("cluster", entry.StartCluster))
	return entry, nil
}

// deleteSlot tombstones the slot and frees its chain.
func (v *Volume) deleteSlot(slot int) error {
	if err := v.fat.release(v.dir.slots[slot].StartCluster); err != nil {
		return checkpoint.Wrap(err, checkpoint.Newf(ErrCorrupt, "entry %q", v.dir.slots[slot].name()))
	}
	v.dir.tombstone(slot)
	return nil
}

// Delete removes the file called name, or every file if name is MatchAll.
func (v *Volume) Delete(name string) error {
	snap := v.snapshot()

	if name == MatchAll {
		deleted := 0
		for i := range v.dir.slots {
			if v.dir.slots[i].state() != slotLive {
				continue
			}
			if err := v.deleteSlot(i); err != nil {
				v.restore(snap)
				return err
			}
			deleted++
		}
		if deleted == 0 {
			return nil
		}
		if err := v.commit(snap); err != nil {
			return err
		}
		v.log.Debug("deleted all files", zap.Int("count", deleted))
		return nil
	}

	name, err := cleanName(name)
	if err != nil {
		return err
	}
	slot, ok := v.dir.find(name)
	if !ok {
		return checkpoint.Newf(ErrNotFound, "%q", name)
	}

	if err := v.deleteSlot(slot); err != nil {
		v.restore(snap)
		return err
	}
	if err := v.commit(snap); err != nil {
		return err
	}
	v.log.Debug("deleted file", zap.String("name", name), zap.Int("slot", slot))
	return nil
}

// Read returns a reader over the content of the file called name.
// The reader is lazy, reads each cluster only when it is needed, and can be consumed once.
func (v *Volume) Read(name string) (io.Reader, error) {
	entry, err := v.Stat(name)
	if err != nil {
		return nil, err
	}
	return v.newChainReader(entry.StartCluster, entry.Size), nil
}

// Stat returns the entry of the file called name.
func (v *Volume) Stat(name string) (Entry, error) {
	name, err := cleanName(name)
	if err != nil {
		return Entry{}, err
	}
	slot, ok := v.dir.find(name)
	if !ok {
		return Entry{}, checkpoint.Newf(ErrNotFound, "%q", name)
	}
	return v.dir.slots[slot].entry(slot), nil
}

// Entries lists every live entry ordered by slot.
func (v *Volume) Entries() []Entry {
	return v.dir.live()
}

// FileCount returns the number of live entries. It differs from the capacity of the
// directory, which also counts free and deleted slots.
func (v *Volume) FileCount() int {
	return v.dir.count()
}

// Usage summarizes the allocation table.
type Usage struct {
	ClusterSize uint32
	TotalSize   uint32
	Total       int
	Used        int
	Free        int
}

// UsedPercent returns the share of used clusters, rounded down.
func (u Usage) UsedPercent() int {
	if u.Total == 0 {
		return 0
	}
	return u.Used * 100 / u.Total
}

func (v *Volume) Usage() Usage {
	total := len(v.fat.entries)
	used := v.fat.countUsed()
	return Usage{
		ClusterSize: v.header.ClusterSize,
		TotalSize:   v.header.TotalSize,
		Total:       total,
		Used:        used,
		Free:        total - used,
	}
}

// AllocationTable dumps the state of every cluster ordered by index.
func (v *Volume) AllocationTable() []ClusterState {
	return v.fat.dump()
}
