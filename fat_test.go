package flatfat

import (
	"errors"
	"reflect"
	"testing"
)

func Test_decodeFatEntry(t *testing.T) {
	tests := []struct {
		name    string
		raw     uint32
		want    fatEntry
		wantErr error
	}{
		{name: "free", raw: 0x0000, want: freeEntry},
		{name: "end of chain", raw: 0xFFFF, want: endOfChainEntry},
		{name: "reserved", raw: 0xFFFE, want: reservedEntry},
		{name: "link", raw: 42, want: nextEntry(42)},
		{name: "last cluster", raw: 1279, want: nextEntry(1279)},
		{name: "outside of the volume", raw: 1280, wantErr: ErrCorrupt},
		{name: "garbage", raw: 0xDEADBEEF, wantErr: ErrCorrupt},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeFatEntry(tt.raw, 1280)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("decodeFatEntry() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("decodeFatEntry() = %v, want %v", got, tt.want)
			}
			if err == nil && got.encode() != tt.raw {
				t.Errorf("fatEntry.encode() = 0x%X, want 0x%X", got.encode(), tt.raw)
			}
		})
	}
}

func TestClusterState_String(t *testing.T) {
	tests := []struct {
		state ClusterState
		want  string
	}{
		{state: ClusterState{Index: 0, Kind: ClusterReserved}, want: "0:reserved"},
		{state: ClusterState{Index: 2, Kind: ClusterEndOfChain}, want: "2:end"},
		{state: ClusterState{Index: 3, Kind: ClusterNext, Next: 4}, want: "3:4"},
		{state: ClusterState{Index: 9, Kind: ClusterFree}, want: "9:free"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("ClusterState.String() = %v, want %v", got, tt.want)
		}
	}
}

// testingTable builds a table of n clusters with cluster 0 reserved and the given entries.
func testingTable(n uint32, entries map[uint32]fatEntry) *allocationTable {
	fat := newAllocationTable(n)
	fat.set(0, reservedEntry)
	for c, e := range entries {
		fat.set(c, e)
	}
	return fat
}

func Test_allocationTable_chainClusters(t *testing.T) {
	tests := []struct {
		name    string
		entries map[uint32]fatEntry
		start   uint32
		want    []uint32
		wantErr error
	}{
		{
			name:    "single cluster",
			entries: map[uint32]fatEntry{3: endOfChainEntry},
			start:   3,
			want:    []uint32{3},
		},
		{
			name: "scattered chain",
			entries: map[uint32]fatEntry{
				3: nextEntry(7),
				7: nextEntry(5),
				5: endOfChainEntry,
			},
			start: 3,
			want:  []uint32{3, 7, 5},
		},
		{
			name: "cycle",
			entries: map[uint32]fatEntry{
				3: nextEntry(4),
				4: nextEntry(3),
			},
			start:   3,
			want:    nil,
			wantErr: ErrCorrupt,
		},
		{
			name:    "self loop",
			entries: map[uint32]fatEntry{3: nextEntry(3)},
			start:   3,
			wantErr: ErrCorrupt,
		},
		{
			name:    "reaches a free cluster",
			entries: map[uint32]fatEntry{3: nextEntry(4)},
			start:   3,
			wantErr: ErrCorrupt,
		},
		{
			name:    "reaches a reserved cluster",
			entries: map[uint32]fatEntry{3: nextEntry(1), 1: reservedEntry},
			start:   3,
			wantErr: ErrCorrupt,
		},
		{
			name:    "starts at the header",
			start:   0,
			wantErr: ErrCorrupt,
		},
		{
			name:    "starts outside of the volume",
			start:   16,
			wantErr: ErrCorrupt,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fat := testingTable(16, tt.entries)
			got, err := fat.chainClusters(tt.start)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("chainClusters() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && !reflect.DeepEqual(got, tt.want) {
				t.Errorf("chainClusters() = %v, want %v", got, tt.want)
			}
		})
	}
}

func Test_allocationTable_findFree(t *testing.T) {
	fat := testingTable(4, map[uint32]fatEntry{1: reservedEntry, 2: endOfChainEntry})
	got, err := fat.findFree()
	if err != nil || got != 3 {
		t.Errorf("findFree() = %v, %v, want 3", got, err)
	}

	fat.set(3, endOfChainEntry)
	if _, err := fat.findFree(); !errors.Is(err, ErrNoSpace) {
		t.Errorf("findFree() on a full table error = %v", err)
	}

	// Cluster 0 holds the header even if its entry is damaged.
	fat.set(0, freeEntry)
	if _, err := fat.findFree(); !errors.Is(err, ErrNoSpace) {
		t.Errorf("findFree() returned the header cluster, error = %v", err)
	}
}

func Test_allocationTable_release(t *testing.T) {
	fat := testingTable(16, map[uint32]fatEntry{
		1: reservedEntry,
		3: nextEntry(5),
		5: endOfChainEntry,
		6: endOfChainEntry,
	})
	if err := fat.release(3); err != nil {
		t.Fatal(err)
	}
	if !fat.get(3).IsFree() || !fat.get(5).IsFree() || fat.get(6).IsFree() {
		t.Errorf("release() = %v", fat.dump()[:7])
	}
	if used := fat.countUsed(); used != 3 {
		t.Errorf("countUsed() = %v, want 3", used)
	}

	// A corrupt chain is left alone.
	fat.set(7, nextEntry(8))
	fat.set(8, nextEntry(7))
	before := fat.snapshot()
	if err := fat.release(7); !errors.Is(err, ErrCorrupt) {
		t.Errorf("release() of a cycle error = %v", err)
	}
	if !reflect.DeepEqual(fat.entries, before) {
		t.Error("release() changed a corrupt chain")
	}
}

func Test_allocationTable_marshal(t *testing.T) {
	const clusterSize = 8 * KiB
	fat := testingTable(1280, map[uint32]fatEntry{
		1: reservedEntry,
		2: endOfChainEntry,
		3: nextEntry(4),
		4: endOfChainEntry,
	})

	data := fat.marshal(clusterSize)
	if len(data) != clusterSize {
		t.Fatalf("marshal() = %v bytes, want %v", len(data), clusterSize)
	}

	loaded := newAllocationTable(1280)
	if err := loaded.unmarshal(data); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(loaded.entries, fat.entries) {
		t.Error("unmarshal() differs from the marshaled table")
	}

	if got := fatClusters(6400, clusterSize); got != 4 {
		t.Errorf("fatClusters(6400) = %v, want 4", got)
	}
	if got := fatClusters(2048, clusterSize); got != 1 {
		t.Errorf("fatClusters(2048) = %v, want 1", got)
	}
	if got := fatClusters(2049, clusterSize); got != 2 {
		t.Errorf("fatClusters(2049) = %v, want 2", got)
	}
}

func Test_allocationTable_snapshot(t *testing.T) {
	fat := testingTable(8, nil)
	snap := fat.snapshot()

	fat.set(3, endOfChainEntry)
	if snap[3] != freeEntry {
		t.Error("snapshot() shares memory with the table")
	}

	fat.restore(snap)
	if !fat.get(3).IsFree() {
		t.Error("restore() did not restore the table")
	}
}
