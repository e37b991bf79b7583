// Package image implements the open/new/write driver that ties the boot
// sector, the FAT, the directory tree, and each file's data reference
// together into one 1,474,560-byte floppy image.
//
// Grounded on github.com/dargueta/disko's driver.go Driver lifecycle (a
// state machine gating every operation on having been opened), and on
// file_systems/unixv1/format.go for the "stage into one buffer, then flush"
// write shape.
package image

import (
	"bytes"
	"io"

	"github.com/123swk123/pyfat/bootsector"
	"github.com/123swk123/pyfat/dirent"
	"github.com/123swk123/pyfat/errs"
	"github.com/123swk123/pyfat/fat12"
	"github.com/123swk123/pyfat/filedata"
	"github.com/123swk123/pyfat/geometry"
	"github.com/123swk123/pyfat/tree"
	"github.com/noxer/bytewriter"
)

// Source is the host collaborator an image is read from: seekable so the
// codec can jump straight to a sector, and also the backing store every
// OnOriginalImage FileDataRef reads from for the lifetime of the context.
type Source interface {
	io.Reader
	io.Seeker
}

// Sink is the host collaborator an image is written to. A Sink that also
// implements Truncater gets truncated/extended to the exact image size
// before the image bytes are written; otherwise the image is already
// emitted at its full fixed size, so no padding step is needed.
type Sink interface {
	io.Writer
}

// Truncater is the optional capability a Sink may offer to be truncated or
// extended to an exact size directly; any Sink that implements it (an
// *os.File does) is truncated to the image size before the image is
// written.
type Truncater interface {
	Truncate(size int64) error
}

type state int

const (
	uninitialized state = iota
	open
)

// Image is one FAT12 floppy image context: { Uninitialized -> Open (via
// Open/Create) -> Uninitialized (via Close) }.
type Image struct {
	state  state
	boot   *bootsector.BootSector
	fat    *fat12.Table
	tree   *tree.Tree
	source Source
}

// New returns a fresh, Uninitialized image context.
func New() *Image {
	return &Image{state: uninitialized}
}

func validateSizeKiB(sizeKiB int) (geometry.Profile, error) {
	if sizeKiB != 1440 {
		return geometry.Profile{}, errs.UnsupportedProfile.WithMessage(
			"only 1440 KiB floppy images are supported")
	}
	return geometry.Lookup1440(), nil
}

func readAt(source Source, offset int64, n int) ([]byte, error) {
	if _, err := source.Seek(offset, io.SeekStart); err != nil {
		return nil, errs.IO.WrapError(err)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(source, buf); err != nil {
		return nil, errs.IO.WrapError(err)
	}
	return buf, nil
}

func readSectors(source Source, sectors []uint, profile geometry.Profile) ([]byte, error) {
	buf := make([]byte, len(sectors)*int(profile.BytesPerSector))
	for i, sector := range sectors {
		offset := int64(sector) * int64(profile.BytesPerSector)
		chunk, err := readAt(source, offset, int(profile.BytesPerSector))
		if err != nil {
			return nil, err
		}
		copy(buf[i*int(profile.BytesPerSector):], chunk)
	}
	return buf, nil
}

// pendingDir is one breadth-first queue entry: a tree node already created
// for a subdirectory, and the physical sectors (one per cluster, since this
// profile has one sector per cluster) holding its own records.
type pendingDir struct {
	nodeIdx int
	sectors []uint
}

// parseDirectoryBlock decodes block left-to-right, 32 bytes at a time,
// stopping at the first 0x00-lead record and skipping 0xE5-lead ones.
// Subdirectories that aren't `.`/`..` are enqueued onto queue for a later
// breadth-first pass.
func parseDirectoryBlock(tr *tree.Tree, parentIdx int, block []byte, fat *fat12.Table, source Source, queue *[]pendingDir) error {
	for off := 0; off+dirent.Size <= len(block); off += dirent.Size {
		rec, result, err := dirent.Decode(block[off : off+dirent.Size])
		if err != nil {
			return err
		}
		switch result {
		case dirent.ScanEnd:
			return nil
		case dirent.ScanDeleted:
			continue
		}

		if rec.IsDir() {
			idx := tr.AppendParsedChild(parentIdx, rec, nil)
			if rec.IsDot() || rec.IsDotdot() {
				continue
			}
			chain, err := fat.Chain(uint(rec.FirstCluster))
			if err != nil {
				return err
			}
			*queue = append(*queue, pendingDir{nodeIdx: idx, sectors: chain})
			continue
		}

		var chain []uint
		if rec.FirstCluster != 0 {
			chain, err = fat.Chain(uint(rec.FirstCluster))
			if err != nil {
				return err
			}
		}
		data := filedata.NewOnOriginalImage(source, chain, rec.FileSize)
		tr.AppendParsedChild(parentIdx, rec, data)
	}
	return nil
}

// Open parses an existing image from source: the boot sector, both FAT
// copies (rejecting if they differ byte-for-byte), the root directory's
// fixed sectors, and every subdirectory chain, breadth-first.
func (img *Image) Open(source Source, sizeKiB int) error {
	if img.state != uninitialized {
		return errs.InvalidState.WithMessage("image is already open")
	}

	profile, err := validateSizeKiB(sizeKiB)
	if err != nil {
		return err
	}

	bootBytes, err := readAt(source, 0, bootsector.Size)
	if err != nil {
		return err
	}
	boot, err := bootsector.Parse(bootBytes)
	if err != nil {
		return err
	}

	fat1Offset := int64(profile.ReservedSectors) * int64(profile.BytesPerSector)
	fat1Bytes, err := readAt(source, fat1Offset, fat12.Size)
	if err != nil {
		return err
	}

	fat2Offset := fat1Offset + int64(profile.SectorsPerFAT)*int64(profile.BytesPerSector)
	fat2Bytes, err := readAt(source, fat2Offset, fat12.Size)
	if err != nil {
		return err
	}

	if !bytes.Equal(fat1Bytes, fat2Bytes) {
		return errs.InvalidFormat.WithMessage("the two FAT copies do not match")
	}

	fat, err := fat12.Parse(fat1Bytes)
	if err != nil {
		return err
	}

	tr := tree.New(fat)

	rootOffset := int64(profile.FirstRootDirSector()) * int64(profile.BytesPerSector)
	rootBytes, err := readAt(source, rootOffset, int(profile.RootDirSectors()*profile.BytesPerSector))
	if err != nil {
		return err
	}

	var queue []pendingDir
	if err := parseDirectoryBlock(tr, tree.RootIndex, rootBytes, fat, source, &queue); err != nil {
		return err
	}

	for len(queue) > 0 {
		pd := queue[0]
		queue = queue[1:]

		block, err := readSectors(source, pd.sectors, profile)
		if err != nil {
			return err
		}
		if err := parseDirectoryBlock(tr, pd.nodeIdx, block, fat, source, &queue); err != nil {
			return err
		}
	}

	img.boot = boot
	img.fat = fat
	img.tree = tr
	img.source = source
	img.state = open
	return nil
}

// Create initializes a fresh, empty image: default boot sector, a new FAT
// with no clusters allocated, and an empty root directory.
func (img *Image) Create(sizeKiB int) error {
	if img.state != uninitialized {
		return errs.InvalidState.WithMessage("image is already open")
	}
	if _, err := validateSizeKiB(sizeKiB); err != nil {
		return err
	}

	fat := fat12.New()
	img.boot = bootsector.NewDefault([448]byte{})
	img.fat = fat
	img.tree = tree.New(fat)
	img.state = open
	return nil
}

func (img *Image) requireOpen() error {
	if img.state != open {
		return errs.InvalidState.WithMessage("image is not open")
	}
	return nil
}

// Close releases the original image handle, if it implements io.Closer, and
// returns the context to Uninitialized.
func (img *Image) Close() error {
	if err := img.requireOpen(); err != nil {
		return err
	}

	if closer, ok := img.source.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			return errs.IO.WrapError(err)
		}
	}

	img.boot = nil
	img.fat = nil
	img.tree = nil
	img.source = nil
	img.state = uninitialized
	return nil
}

// AddFile adds a new regular file at path, reading length bytes from
// source.
func (img *Image) AddFile(path string, source filedata.Source, length uint32) error {
	if err := img.requireOpen(); err != nil {
		return err
	}
	return img.tree.AddFile(path, source, length)
}

// AddDir adds a new, empty subdirectory at path.
func (img *Image) AddDir(path string) error {
	if err := img.requireOpen(); err != nil {
		return err
	}
	return img.tree.AddDir(path)
}

// RemoveFile deletes the regular file at path.
func (img *Image) RemoveFile(path string) error {
	if err := img.requireOpen(); err != nil {
		return err
	}
	return img.tree.RemoveFile(path)
}

// RemoveDir deletes the empty subdirectory at path.
func (img *Image) RemoveDir(path string) error {
	if err := img.requireOpen(); err != nil {
		return err
	}
	return img.tree.RemoveDir(path)
}

// SetAttr sets one of the four mutable DOS attribute bits on the entry at
// path.
func (img *Image) SetAttr(path string, kind tree.AttrKind) error {
	if err := img.requireOpen(); err != nil {
		return err
	}
	return img.tree.SetAttr(path, kind)
}

// ClearAttr clears one of the four mutable DOS attribute bits on the entry
// at path.
func (img *Image) ClearAttr(path string, kind tree.AttrKind) error {
	if err := img.requireOpen(); err != nil {
		return err
	}
	return img.tree.ClearAttr(path, kind)
}

// List returns the display names of path's immediate children, excluding
// `.` and `..`, the way `ls` lists a directory.
func (img *Image) List(path string) ([]string, error) {
	if err := img.requireOpen(); err != nil {
		return nil, err
	}

	idx, err := img.tree.Lookup(path)
	if err != nil {
		return nil, err
	}
	node := img.tree.Node(idx)
	if idx != tree.RootIndex && !node.Record.IsDir() {
		return nil, errs.NotADirectory.WithMessage(path)
	}

	names := make([]string, 0, len(node.Children))
	for _, childIdx := range node.Children {
		child := img.tree.Node(childIdx)
		if child.Record.IsDot() || child.Record.IsDotdot() {
			continue
		}
		names = append(names, child.Record.DisplayName())
	}
	return names, nil
}

// Extract streams the regular file at path's data to dst, cluster by
// cluster.
func (img *Image) Extract(path string, dst io.Writer) error {
	if err := img.requireOpen(); err != nil {
		return err
	}

	idx, err := img.tree.Lookup(path)
	if err != nil {
		return err
	}
	node := img.tree.Node(idx)
	if node.Record.IsDir() {
		return errs.NotAFile.WithMessage(path)
	}
	if node.Data == nil {
		return nil
	}

	profile := geometry.Lookup1440()
	chunk := make([]byte, profile.BytesPerCluster())
	remaining := int(node.Data.Length())

	for i := uint(0); remaining > 0; i++ {
		n, err := node.Data.ReadChunk(i, chunk)
		if err != nil {
			return err
		}
		take := n
		if take > remaining {
			take = remaining
		}
		if _, err := dst.Write(chunk[:take]); err != nil {
			return errs.IO.WrapError(err)
		}
		remaining -= take
	}
	return nil
}

// serializeDirectory encodes nodeIdx's children into its on-disk records,
// writing them into buf at the physical sectors its (possibly fixed, for
// the root) cluster chain occupies.
func (img *Image) serializeDirectory(nodeIdx int, buf []byte, profile geometry.Profile) error {
	node := img.tree.Node(nodeIdx)

	var sectors []uint
	if nodeIdx == tree.RootIndex {
		first := profile.FirstRootDirSector()
		for s := uint(0); s < profile.RootDirSectors(); s++ {
			sectors = append(sectors, first+s)
		}
	} else {
		chain, err := img.fat.Chain(uint(node.Record.FirstCluster))
		if err != nil {
			return err
		}
		sectors = chain
	}

	recordsPerSector := int(profile.BytesPerSector) / dirent.Size
	if len(node.Children) > len(sectors)*recordsPerSector {
		return errs.InvalidState.WithMessage("directory holds more records than its cluster chain can carry")
	}

	for i, childIdx := range node.Children {
		encoded := img.tree.Node(childIdx).Record.Encode()
		sector := sectors[i/recordsPerSector]
		within := (i % recordsPerSector) * dirent.Size
		offset := int(sector)*int(profile.BytesPerSector) + within
		copy(buf[offset:offset+dirent.Size], encoded)
	}
	return nil
}

// writeFilePayload copies a regular file's data, cluster by cluster, from
// its FileDataRef into buf at its NEW cluster chain's physical positions.
func (img *Image) writeFilePayload(node *tree.Node, buf []byte, profile geometry.Profile) error {
	if node.Record.FirstCluster == 0 || node.Data == nil {
		return nil
	}

	chain, err := img.fat.Chain(uint(node.Record.FirstCluster))
	if err != nil {
		return err
	}

	bytesPerCluster := int(profile.BytesPerCluster())
	chunk := make([]byte, bytesPerCluster)
	remaining := int(node.Data.Length())

	for i, sector := range chain {
		if remaining <= 0 {
			break
		}
		n, err := node.Data.ReadChunk(uint(i), chunk)
		if err != nil {
			return err
		}
		take := n
		if take > remaining {
			take = remaining
		}
		offset := int(sector) * int(profile.BytesPerSector)
		copy(buf[offset:offset+take], chunk[:take])
		remaining -= take
	}
	return nil
}

// writeTree walks the tree depth-first, serializing every directory's
// records and every regular file's payload. It never recurses into `.` or
// `..`: those are real records in their parent's listing, but they are
// self/parent references, not independent subtrees.
func (img *Image) writeTree(nodeIdx int, buf []byte, profile geometry.Profile) error {
	node := img.tree.Node(nodeIdx)

	if nodeIdx != tree.RootIndex && !node.Record.IsDir() {
		return img.writeFilePayload(node, buf, profile)
	}

	if err := img.serializeDirectory(nodeIdx, buf, profile); err != nil {
		return err
	}
	for _, childIdx := range node.Children {
		child := img.tree.Node(childIdx)
		if child.Record.IsDot() || child.Record.IsDotdot() {
			continue
		}
		if err := img.writeTree(childIdx, buf, profile); err != nil {
			return err
		}
	}
	return nil
}

// Write emits the whole image to sink: boot sector, FAT copies, directory
// records, then file payloads, truncated/padded to the exact fixed image
// size.
//
// The boot sector and FAT copies are staged through a bytewriter.Writer,
// since those three regions are always written contiguously from offset
// zero with nothing in between; directory records and file payloads are
// written directly at their computed physical-sector offsets, since a
// directory's or file's NEW cluster chain is not necessarily contiguous
// with whatever was staged immediately before it. Either way, nothing
// reaches sink until the whole image is assembled in buf, so a failure
// partway through never touches the sink at all.
func (img *Image) Write(sink Sink) error {
	if err := img.requireOpen(); err != nil {
		return err
	}

	profile := geometry.Lookup1440()
	buf := make([]byte, profile.ImageSizeBytes())

	bw := bytewriter.New(buf)
	if _, err := bw.Write(img.boot.Emit()); err != nil {
		return errs.IO.WrapError(err)
	}
	fatBytes := img.fat.Emit()
	if _, err := bw.Write(fatBytes); err != nil {
		return errs.IO.WrapError(err)
	}
	if img.boot.NumFATs == 2 {
		if _, err := bw.Write(fatBytes); err != nil {
			return errs.IO.WrapError(err)
		}
	}

	if err := img.writeTree(tree.RootIndex, buf, profile); err != nil {
		return err
	}

	if seeker, ok := sink.(io.Seeker); ok {
		if _, err := seeker.Seek(0, io.SeekStart); err != nil {
			return errs.IO.WrapError(err)
		}
	}
	if truncater, ok := sink.(Truncater); ok {
		if err := truncater.Truncate(int64(len(buf))); err != nil {
			return errs.IO.WrapError(err)
		}
	}
	if _, err := sink.Write(buf); err != nil {
		return errs.IO.WrapError(err)
	}
	return nil
}
