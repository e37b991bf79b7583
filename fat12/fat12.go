// Package fat12 implements the packed 12-bit File Allocation Table: parsing,
// emission, and the allocate/extend/free/chain operations over it.
//
// The allocation scan is backed by a github.com/boljen/go-bitmap free-
// cluster bitmap kept in lockstep with the FAT entries, the way
// github.com/dargueta/disko's drivers/common/allocatormap.go Allocator
// tracks free blocks alongside a block device -- it turns "scan from
// cluster 2 upward for a free slot" into a bitmap scan instead of decoding
// a 12-bit entry per candidate.
package fat12

import (
	"fmt"

	"github.com/123swk123/pyfat/errs"
	"github.com/123swk123/pyfat/geometry"
	"github.com/boljen/go-bitmap"
)

// Size is the on-disk size, in bytes, of one FAT12 copy: 9 sectors * 512.
const Size = 4608

// Entries is the number of 12-bit slots packed into one FAT12 copy.
const Entries = Size * 2 / 3

// MediaDescriptorEntry is the fixed sentinel held in FAT entry 0.
const MediaDescriptorEntry = uint16(0xFF0)

// EndOfChain is the end-of-chain value this implementation emits. Any value
// in [firstEOCMarker, 0xFFF] is a valid end-of-chain marker on read.
const EndOfChain = uint16(0xFFF)

const firstEOCMarker = uint16(0xFF8)

func isEndOfChain(entry uint16) bool {
	return entry >= firstEOCMarker && entry <= 0xFFF
}

// Table is the in-memory, decoded FAT.
type Table struct {
	entries []uint16
	free    bitmap.Bitmap
}

// New produces a zeroed table with entries 0 and 1 holding their sentinels
// and every other cluster free.
func New() *Table {
	entries := make([]uint16, Entries)
	entries[0] = MediaDescriptorEntry
	entries[1] = EndOfChain

	free := bitmap.New(Entries)
	free.Set(0, true)
	free.Set(1, true)

	return &Table{entries: entries, free: free}
}

// Parse decodes a 4608-byte FAT12 copy. Entries 0 and 1 are forced to their
// sentinel values regardless of what's on disk.
func Parse(data []byte) (*Table, error) {
	if len(data) != Size {
		return nil, errs.InvalidFormat.WithMessage(
			fmt.Sprintf("FAT must be %d bytes, got %d", Size, len(data)))
	}

	entries := decodeEntries(data)
	entries[0] = MediaDescriptorEntry
	entries[1] = EndOfChain

	free := bitmap.New(Entries)
	free.Set(0, true)
	free.Set(1, true)
	for c := 2; c < Entries; c++ {
		if entries[c] != 0 {
			free.Set(c, true)
		}
	}

	return &Table{entries: entries, free: free}, nil
}

func decodeEntries(data []byte) []uint16 {
	entries := make([]uint16, Entries)
	for k := 0; k < Entries/2; k++ {
		b0, b1, b2 := data[3*k], data[3*k+1], data[3*k+2]
		entries[2*k] = uint16(b0) | (uint16(b1&0x0F) << 8)
		entries[2*k+1] = uint16(b1>>4) | (uint16(b2) << 4)
	}
	return entries
}

func encodeEntries(entries []uint16) []byte {
	data := make([]byte, Size)
	for k := 0; k < Entries/2; k++ {
		even, odd := entries[2*k], entries[2*k+1]
		data[3*k] = byte(even & 0xFF)
		data[3*k+1] = byte(((even >> 8) & 0x0F) | ((odd & 0x0F) << 4))
		data[3*k+2] = byte((odd >> 4) & 0xFF)
	}
	return data
}

// Emit encodes the table back to its 4608-byte on-disk form, with entries 0
// and 1 forced to the fixed sentinel pair (bytes F0 FF FF).
func (t *Table) Emit() []byte {
	t.entries[0] = MediaDescriptorEntry
	t.entries[1] = EndOfChain
	return encodeEntries(t.entries)
}

// EntryAt returns the raw 12-bit value of cluster i.
func (t *Table) EntryAt(i uint) uint16 {
	return t.entries[i]
}

// logicalChain follows the chain starting at first and returns every
// logical cluster number in it, in order, stopping at (but including) the
// cluster that links to an end-of-chain marker.
func (t *Table) logicalChain(first uint) ([]uint, error) {
	if first < 2 || first >= Entries {
		return nil, errs.InvalidFormat.WithMessage(
			fmt.Sprintf("cluster %d out of range [2, %d)", first, Entries))
	}

	chain := make([]uint, 0, 8)
	curr := first
	for steps := 0; ; steps++ {
		if steps > Entries {
			return nil, errs.InvalidFormat.WithMessage("cluster chain does not terminate")
		}
		chain = append(chain, curr)

		next := t.entries[curr]
		if isEndOfChain(next) {
			return chain, nil
		}
		if uint(next) < 2 || uint(next) >= Entries {
			return nil, errs.InvalidFormat.WithMessage(
				fmt.Sprintf("cluster %d links to out-of-range cluster 0x%03X", curr, next))
		}
		curr = uint(next)
	}
}

// Chain follows the cluster chain starting at the logical cluster first and
// returns the sequence of physical sectors it occupies.
func (t *Table) Chain(first uint) ([]uint, error) {
	logical, err := t.logicalChain(first)
	if err != nil {
		return nil, err
	}

	profile := geometry.Lookup1440()
	physical := make([]uint, len(logical))
	for i, cluster := range logical {
		physical[i] = profile.PhysicalSectorForCluster(cluster)
	}
	return physical, nil
}

func (t *Table) firstFreeCluster() (uint, bool) {
	for c := uint(2); c < Entries; c++ {
		if !t.free.Get(int(c)) {
			return c, true
		}
	}
	return 0, false
}

// Allocate reserves enough clusters to hold lengthBytes and returns the
// first logical cluster of the new chain. A zero-length request allocates
// nothing and returns cluster 0 (no data cluster assigned, matching a
// zero-byte DOS file). Allocation scans ascending from cluster 2 and links
// the clusters it finds in that order, so the assignment is deterministic.
// On failure the table is left completely unchanged.
func (t *Table) Allocate(lengthBytes uint) (uint, error) {
	if lengthBytes == 0 {
		return 0, nil
	}

	need := (lengthBytes + 511) / 512
	found := make([]uint, 0, need)
	for c := uint(2); c < Entries && uint(len(found)) < need; c++ {
		if !t.free.Get(int(c)) {
			found = append(found, c)
		}
	}
	if uint(len(found)) < need {
		return 0, errs.NoSpace.WithMessage(
			fmt.Sprintf("need %d free clusters, found %d", need, len(found)))
	}

	for i := 0; i < len(found)-1; i++ {
		t.entries[found[i]] = uint16(found[i+1])
	}
	t.entries[found[len(found)-1]] = EndOfChain
	for _, c := range found {
		t.free.Set(int(c), true)
	}

	return found[0], nil
}

// Extend appends one more cluster to the chain starting at first, for
// example when a directory needs room for its 17th, 33rd, ... entry.
func (t *Table) Extend(first uint) error {
	chain, err := t.logicalChain(first)
	if err != nil {
		return err
	}
	terminal := chain[len(chain)-1]

	next, ok := t.firstFreeCluster()
	if !ok {
		return errs.NoSpace.WithMessage("no free cluster available to extend chain")
	}

	t.entries[terminal] = uint16(next)
	t.entries[next] = EndOfChain
	t.free.Set(int(next), true)
	return nil
}

// Free walks the chain starting at first and marks every cluster in it,
// including the terminal one, as free (0x000).
func (t *Table) Free(first uint) error {
	chain, err := t.logicalChain(first)
	if err != nil {
		return err
	}
	for _, c := range chain {
		t.entries[c] = 0
		t.free.Set(int(c), false)
	}
	return nil
}

// ChainLength returns the number of clusters in the chain starting at
// first.
func (t *Table) ChainLength(first uint) (int, error) {
	chain, err := t.logicalChain(first)
	if err != nil {
		return 0, err
	}
	return len(chain), nil
}
