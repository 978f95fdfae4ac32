package flatfat

import (
	"bytes"
	"encoding/binary"
	"strings"
	"time"

	"github.com/aligator/flatfat/checkpoint"
	"golang.org/x/text/unicode/norm"
)

// Kind tells files and directories apart. Only the root is a directory.
type Kind uint32

const (
	KindFile      Kind = 0x00
	KindDirectory Kind = 0xFF
)

func (k Kind) String() string {
	if k == KindDirectory {
		return "dir"
	}
	return "file"
}

// MatchAll selects every live entry in Delete.
const MatchAll = "*"

// Entry is a live directory entry.
type Entry struct {
	// Slot is the position in the directory table. It stays valid until the entry is deleted.
	Slot         int
	Name         string
	StartCluster uint32
	Size         int64
	Kind         Kind
	Created      time.Time
}

type slotState uint8

const (
	slotFree slotState = iota
	slotTombstoned
	slotLive
)

func (r *dirRecord) state() slotState {
	switch r.Name[0] {
	case slotFreeMarker:
		return slotFree
	case slotTombstoneMarker:
		return slotTombstoned
	default:
		return slotLive
	}
}

func (r *dirRecord) name() string {
	n := bytes.IndexByte(r.Name[:], 0)
	if n < 0 {
		n = len(r.Name)
	}
	return string(r.Name[:n])
}

func (r *dirRecord) setName(name string) {
	r.Name = [nameSize]byte{}
	copy(r.Name[:], name)
}

func (r *dirRecord) entry(slot int) Entry {
	return Entry{
		Slot:         slot,
		Name:         r.name(),
		StartCluster: r.StartCluster,
		Size:         int64(r.Size),
		Kind:         Kind(r.Kind),
		Created:      ParseTimestamp(r.Created),
	}
}

// cleanName normalizes a file name and checks that it can be stored in a slot.
func cleanName(name string) (string, error) {
	name = norm.NFC.String(name)
	switch {
	case name == "", name == ".", name == "..", name == MatchAll:
		return "", checkpoint.Newf(ErrInvalidParameters, "invalid file name %q", name)
	case len(name) > MaxNameLength:
		return "", checkpoint.Newf(ErrInvalidParameters, "file name %q longer than %d bytes", name, MaxNameLength)
	case strings.ContainsAny(name, "/\x00"):
		return "", checkpoint.Newf(ErrInvalidParameters, "file name %q contains '/' or NUL", name)
	case name[0] == slotTombstoneMarker:
		return "", checkpoint.Newf(ErrInvalidParameters, "file name %q starts with the deleted marker", name)
	}
	return name, nil
}

// directoryTable holds every slot of the root directory, including free and tombstoned ones.
// Slots never move: deleting only changes the state of the slot.
type directoryTable struct {
	slots      []dirRecord
	perCluster int
}

func newDirectoryTable(clusterSize uint32) *directoryTable {
	return &directoryTable{
		perCluster: int(clusterSize / dirEntrySize),
	}
}

// grow appends the slots of one more cluster and returns the first new slot.
func (d *directoryTable) grow() int {
	first := len(d.slots)
	d.slots = append(d.slots, make([]dirRecord, d.perCluster)...)
	return first
}

// find returns the slot of the live entry called name.
func (d *directoryTable) find(name string) (int, bool) {
	for i := range d.slots {
		if d.slots[i].state() == slotLive && d.slots[i].name() == name {
			return i, true
		}
	}
	return -1, false
}

// reusable returns the first free or tombstoned slot after checking in the same pass
// that no live slot is already called name.
func (d *directoryTable) reusable(name string) (int, error) {
	index := -1
	for i := range d.slots {
		switch d.slots[i].state() {
		case slotLive:
			if d.slots[i].name() == name {
				return -1, checkpoint.Newf(ErrAlreadyExists, "%q is stored in slot %d", name, i)
			}
		default:
			if index == -1 {
				index = i
			}
		}
	}
	return index, nil
}

func (d *directoryTable) tombstone(slot int) {
	d.slots[slot].Name[0] = slotTombstoneMarker
}

func (d *directoryTable) live() []Entry {
	var entries []Entry
	for i := range d.slots {
		if d.slots[i].state() == slotLive {
			entries = append(entries, d.slots[i].entry(i))
		}
	}
	return entries
}

func (d *directoryTable) count() int {
	n := 0
	for i := range d.slots {
		if d.slots[i].state() == slotLive {
			n++
		}
	}
	return n
}

func (d *directoryTable) snapshot() []dirRecord {
	slots := make([]dirRecord, len(d.slots))
	copy(slots, d.slots)
	return slots
}

func (d *directoryTable) restore(slots []dirRecord) {
	d.slots = slots
}

// load reads every cluster of the directory chain starting at first.
func (d *directoryTable) load(dev clusterDevice, fat *allocationTable, first, clusterSize uint32) error {
	d.slots = d.slots[:0]
	buf := make([]byte, clusterSize)

	it := fat.chain(first)
	for it.Next() {
		if err := dev.readCluster(it.Cluster(), buf); err != nil {
			return err
		}

		records := make([]dirRecord, d.perCluster)
		err := binary.Read(bytes.NewReader(buf), binary.LittleEndian, records)
		if err != nil {
			return checkpoint.Wrap(err, ErrCorrupt)
		}
		d.slots = append(d.slots, records...)
	}
	return it.Err()
}

// store writes the slots to the directory chain. The chain must already be long enough.
func (d *directoryTable) store(dev clusterDevice, fat *allocationTable, first, clusterSize uint32) error {
	clusters, err := fat.chainClusters(first)
	if err != nil {
		return err
	}
	if len(clusters)*d.perCluster != len(d.slots) {
		return checkpoint.Newf(ErrCorrupt, "directory holds %d slots but its chain has %d clusters", len(d.slots), len(clusters))
	}

	var buf bytes.Buffer
	buf.Grow(int(clusterSize))
	for i, c := range clusters {
		buf.Reset()
		err := binary.Write(&buf, binary.LittleEndian, d.slots[i*d.perCluster:(i+1)*d.perCluster])
		if err != nil {
			return checkpoint.From(err)
		}
		// Pad the rest of the cluster if it is not a multiple of the entry size.
		buf.Write(make([]byte, int(clusterSize)-buf.Len()))

		if err := dev.writeCluster(c, buf.Bytes()); err != nil {
			return err
		}
	}
	return nil
}
