package flatfat

import (
	"encoding/binary"
	"fmt"

	"github.com/aligator/flatfat/checkpoint"
)

// ClusterKind is the state of a single cluster in the allocation table.
type ClusterKind uint8

const (
	ClusterFree ClusterKind = iota
	ClusterEndOfChain
	ClusterReserved
	ClusterNext
)

func (k ClusterKind) String() string {
	switch k {
	case ClusterFree:
		return "free"
	case ClusterEndOfChain:
		return "end"
	case ClusterReserved:
		return "reserved"
	case ClusterNext:
		return "next"
	default:
		return fmt.Sprintf("ClusterKind(%d)", uint8(k))
	}
}

// fatEntry is one allocation table entry. next is only meaningful for ClusterNext.
type fatEntry struct {
	kind ClusterKind
	next uint32
}

var (
	freeEntry       = fatEntry{kind: ClusterFree}
	endOfChainEntry = fatEntry{kind: ClusterEndOfChain}
	reservedEntry   = fatEntry{kind: ClusterReserved}
)

func nextEntry(cluster uint32) fatEntry {
	return fatEntry{kind: ClusterNext, next: cluster}
}

func (e fatEntry) IsFree() bool {
	return e.kind == ClusterFree
}

func (e fatEntry) IsEOF() bool {
	return e.kind == ClusterEndOfChain
}

// encode returns the on-disk value of the entry.
func (e fatEntry) encode() uint32 {
	switch e.kind {
	case ClusterEndOfChain:
		return rawEndOfChain
	case ClusterReserved:
		return rawReserved
	case ClusterNext:
		return e.next
	default:
		return rawFree
	}
}

// decodeFatEntry parses an on-disk value. Links must point inside the volume and never to the header.
func decodeFatEntry(raw uint32, numClusters uint32) (fatEntry, error) {
	switch raw {
	case rawFree:
		return freeEntry, nil
	case rawEndOfChain:
		return endOfChainEntry, nil
	case rawReserved:
		return reservedEntry, nil
	}

	if raw >= numClusters {
		return fatEntry{}, checkpoint.Newf(ErrCorrupt, "allocation entry 0x%X outside of %d clusters", raw, numClusters)
	}
	return nextEntry(raw), nil
}

// ClusterState is a single line of the allocation table dump.
type ClusterState struct {
	Index uint32
	Kind  ClusterKind
	// Next is the following cluster of the chain if Kind is ClusterNext.
	Next uint32
}

func (s ClusterState) String() string {
	if s.Kind == ClusterNext {
		return fmt.Sprintf("%d:%d", s.Index, s.Next)
	}
	return fmt.Sprintf("%d:%v", s.Index, s.Kind)
}

// allocationTable is the in-memory copy of the whole allocation table.
type allocationTable struct {
	entries []fatEntry
}

func newAllocationTable(numClusters uint32) *allocationTable {
	return &allocationTable{
		entries: make([]fatEntry, numClusters),
	}
}

func (t *allocationTable) numClusters() uint32 {
	return uint32(len(t.entries))
}

func (t *allocationTable) get(cluster uint32) fatEntry {
	return t.entries[cluster]
}

func (t *allocationTable) set(cluster uint32, entry fatEntry) {
	t.entries[cluster] = entry
}

// findFree returns the lowest free cluster. Cluster 0 holds the header and is never returned.
func (t *allocationTable) findFree() (uint32, error) {
	for i := 1; i < len(t.entries); i++ {
		if t.entries[i].IsFree() {
			return uint32(i), nil
		}
	}
	return 0, checkpoint.Newf(ErrNoSpace, "all %d clusters are in use", len(t.entries))
}

// countUsed counts every cluster which is not free. Reserved clusters, links and chain ends are all used.
func (t *allocationTable) countUsed() int {
	used := 0
	for _, e := range t.entries {
		if !e.IsFree() {
			used++
		}
	}
	return used
}

// chain returns an iterator over the chain starting at start.
func (t *allocationTable) chain(start uint32) *chainIter {
	return &chainIter{
		fat:  t,
		next: start,
	}
}

// chainClusters collects all clusters of the chain starting at start.
func (t *allocationTable) chainClusters(start uint32) ([]uint32, error) {
	var clusters []uint32
	it := t.chain(start)
	for it.Next() {
		clusters = append(clusters, it.Cluster())
	}
	return clusters, it.Err()
}

// last returns the final cluster of the chain starting at start.
func (t *allocationTable) last(start uint32) (uint32, error) {
	var last uint32
	it := t.chain(start)
	for it.Next() {
		last = it.Cluster()
	}
	return last, it.Err()
}

// release frees every cluster of the chain starting at start.
// The chain is validated first so a corrupt chain is left untouched.
func (t *allocationTable) release(start uint32) error {
	clusters, err := t.chainClusters(start)
	if err != nil {
		return err
	}
	for _, c := range clusters {
		t.set(c, freeEntry)
	}
	return nil
}

func (t *allocationTable) snapshot() []fatEntry {
	entries := make([]fatEntry, len(t.entries))
	copy(entries, t.entries)
	return entries
}

func (t *allocationTable) restore(entries []fatEntry) {
	copy(t.entries, entries)
}

func (t *allocationTable) dump() []ClusterState {
	states := make([]ClusterState, len(t.entries))
	for i, e := range t.entries {
		states[i] = ClusterState{
			Index: uint32(i),
			Kind:  e.kind,
			Next:  e.next,
		}
	}
	return states
}

// fatClusters returns how many clusters the encoded table needs.
func fatClusters(numClusters, clusterSize uint32) uint32 {
	bytes := numClusters * fatEntrySize
	return (bytes + clusterSize - 1) / clusterSize
}

// marshal encodes the table into whole clusters.
func (t *allocationTable) marshal(clusterSize uint32) []byte {
	data := make([]byte, fatClusters(t.numClusters(), clusterSize)*clusterSize)
	for i, e := range t.entries {
		binary.LittleEndian.PutUint32(data[i*fatEntrySize:], e.encode())
	}
	return data
}

// unmarshal decodes the table from data which holds at least one value per cluster.
func (t *allocationTable) unmarshal(data []byte) error {
	n := t.numClusters()
	for i := range t.entries {
		raw := binary.LittleEndian.Uint32(data[i*fatEntrySize:])
		e, err := decodeFatEntry(raw, n)
		if err != nil {
			return checkpoint.Wrap(err, fmt.Errorf("cluster %d", i))
		}
		t.entries[i] = e
	}
	return nil
}

// load reads the table from the clusters starting at first.
func (t *allocationTable) load(dev clusterDevice, first, clusterSize uint32) error {
	count := fatClusters(t.numClusters(), clusterSize)
	data := make([]byte, count*clusterSize)
	for i := uint32(0); i < count; i++ {
		err := dev.readCluster(first+i, data[i*clusterSize:(i+1)*clusterSize])
		if err != nil {
			return err
		}
	}
	return t.unmarshal(data)
}

// store writes the whole table to the clusters starting at first.
func (t *allocationTable) store(dev clusterDevice, first, clusterSize uint32) error {
	data := t.marshal(clusterSize)
	count := uint32(len(data)) / clusterSize
	for i := uint32(0); i < count; i++ {
		err := dev.writeCluster(first+i, data[i*clusterSize:(i+1)*clusterSize])
		if err != nil {
			return err
		}
	}
	return nil
}

// chainIter walks a chain cluster by cluster. It stops with ErrCorrupt instead of
// looping if the chain is longer than the volume, leaves the volume or hits a cluster
// which is not part of any chain.
type chainIter struct {
	fat     *allocationTable
	next    uint32
	current uint32
	steps   int
	done    bool
	err     error
}

// Next advances to the next cluster of the chain and reports whether there is one.
func (it *chainIter) Next() bool {
	if it.done {
		return false
	}

	if it.next == 0 || it.next >= it.fat.numClusters() {
		return it.fail(checkpoint.Newf(ErrCorrupt, "chain points to cluster %d outside of the data area", it.next))
	}
	if it.steps >= len(it.fat.entries) {
		return it.fail(checkpoint.Newf(ErrCorrupt, "chain longer than %d clusters", len(it.fat.entries)))
	}

	e := it.fat.get(it.next)
	switch e.kind {
	case ClusterNext:
		it.current = it.next
		it.next = e.next
	case ClusterEndOfChain:
		it.current = it.next
		it.done = true
	default:
		return it.fail(checkpoint.Newf(ErrCorrupt, "chain reaches %v cluster %d", e.kind, it.next))
	}

	it.steps++
	return true
}

func (it *chainIter) fail(err error) bool {
	it.err = err
	it.done = true
	return false
}

// Cluster returns the cluster the iterator points at.
func (it *chainIter) Cluster() uint32 {
	return it.current
}

// Steps returns how many clusters have been visited.
func (it *chainIter) Steps() int {
	return it.steps
}

func (it *chainIter) Err() error {
	return it.err
}
