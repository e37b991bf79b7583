// Package dirent decodes and encodes the 32-byte FAT directory record,
// grounded on github.com/dargueta/disko's drivers/fat/dirent.go
// RawDirent/Dirent split -- but, unlike that reader-only implementation,
// this package also encodes, since this codec writes images back out.
//
// A Record only carries the fields that live in the 32-byte on-disk layout.
// Parent/child tree structure and the file-data origin live one layer up,
// in package tree -- see its doc comment for why that split exists.
package dirent

import (
	"bytes"
	"encoding/binary"
	"strings"
	"time"

	"github.com/123swk123/pyfat/errs"
)

// Size is the fixed on-disk size of one directory record.
const Size = 32

// Attribute flag bits.
const (
	AttrReadOnly    = uint8(0x01)
	AttrHidden      = uint8(0x02)
	AttrSystem      = uint8(0x04)
	AttrVolumeLabel = uint8(0x08)
	AttrDirectory   = uint8(0x10)
	AttrArchive     = uint8(0x20)
)

// Record is the decoded form of a 32-byte directory entry.
type Record struct {
	Name           [8]byte
	Ext            [3]byte
	Attr           uint8
	CreationTime   uint16
	CreationDate   uint16
	LastAccessDate uint16
	LastWriteTime  uint16
	LastWriteDate  uint16
	FirstCluster   uint16
	FileSize       uint32
}

// raw mirrors the on-disk byte layout, including the two reserved slots
// that Record omits.
type raw struct {
	Name           [8]byte
	Ext            [3]byte
	Attr           uint8
	Reserved1      uint8
	CreationTime   uint16
	CreationDate   uint16
	LastAccessDate uint16
	Reserved2      uint16
	LastWriteTime  uint16
	LastWriteDate  uint16
	FirstCluster   uint16
	FileSize       uint32
}

// ScanResult tells a directory scanner what a decoded slot means.
type ScanResult int

const (
	// ScanOK means data held a live directory record.
	ScanOK ScanResult = iota
	// ScanEnd means the first byte was 0x00: stop scanning this
	// directory's data entirely.
	ScanEnd
	// ScanDeleted means the first byte was 0xE5: this slot is free,
	// continue to the next one.
	ScanDeleted
)

// Decode unpacks one 32-byte directory record. First-byte 0x00 means "end
// of this directory's records" and must stop a scanner even if later slots
// in the same cluster look valid; 0xE5 means "deleted, skip this slot and
// keep scanning." Neither produces a Record.
func Decode(data []byte) (*Record, ScanResult, error) {
	if len(data) != Size {
		return nil, ScanOK, errs.InvalidFormat.WithMessage("directory record must be 32 bytes")
	}

	switch data[0] {
	case 0x00:
		return nil, ScanEnd, nil
	case 0xE5:
		return nil, ScanDeleted, nil
	}

	var r raw
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, &r); err != nil {
		return nil, ScanOK, errs.IO.WrapError(err)
	}

	return &Record{
		Name:           r.Name,
		Ext:            r.Ext,
		Attr:           r.Attr,
		CreationTime:   r.CreationTime,
		CreationDate:   r.CreationDate,
		LastAccessDate: r.LastAccessDate,
		LastWriteTime:  r.LastWriteTime,
		LastWriteDate:  r.LastWriteDate,
		FirstCluster:   r.FirstCluster,
		FileSize:       r.FileSize,
	}, ScanOK, nil
}

// Encode re-packs the record into its 32-byte on-disk form. Name and Ext
// are re-padded with spaces to 8/3 bytes; the two reserved slots are always
// written as zero.
func (rec *Record) Encode() []byte {
	r := raw{
		Name:           padTo8(rec.Name[:]),
		Ext:            padTo3(rec.Ext[:]),
		Attr:           rec.Attr,
		CreationTime:   rec.CreationTime,
		CreationDate:   rec.CreationDate,
		LastAccessDate: rec.LastAccessDate,
		LastWriteTime:  rec.LastWriteTime,
		LastWriteDate:  rec.LastWriteDate,
		FirstCluster:   rec.FirstCluster,
		FileSize:       rec.FileSize,
	}

	buf := &bytes.Buffer{}
	buf.Grow(Size)
	_ = binary.Write(buf, binary.LittleEndian, &r)
	return buf.Bytes()
}

func padTo8(b []byte) [8]byte {
	var out [8]byte
	for i := range out {
		out[i] = ' '
	}
	copy(out[:], bytes.TrimRight(b, " \x00"))
	return out
}

func padTo3(b []byte) [3]byte {
	var out [3]byte
	for i := range out {
		out[i] = ' '
	}
	copy(out[:], bytes.TrimRight(b, " \x00"))
	return out
}

// EncodeDate packs a time.Time into the FAT date format:
// (year-1980)<<9 | month<<5 | day.
func EncodeDate(t time.Time) uint16 {
	return uint16((t.Year()-1980)<<9) | uint16(t.Month())<<5 | uint16(t.Day())
}

func stampTimestamps(rec *Record) {
	today := EncodeDate(time.Now())
	rec.CreationDate = today
	rec.LastAccessDate = today
	rec.LastWriteDate = today
}

// New8Dot3 validates and pads an 8.3 name/extension pair into their raw
// on-disk forms, uppercasing ASCII letters the way mkfs.msdos/mcopy do.
func New8Dot3(name, ext string) (n [8]byte, e [3]byte, err error) {
	if len(name) > 8 {
		return n, e, errs.NameTooLong.WithMessage("name \"" + name + "\" exceeds 8 characters")
	}
	if len(ext) > 3 {
		return n, e, errs.NameTooLong.WithMessage("extension \"" + ext + "\" exceeds 3 characters")
	}
	n = padTo8([]byte(strings.ToUpper(name)))
	e = padTo3([]byte(strings.ToUpper(ext)))
	return n, e, nil
}

// NewFileWithParts builds a regular-file record from already-validated,
// already-padded name/extension arrays. Used by callers (package tree) that
// must validate the name before allocating a cluster for it, so a
// NameTooLong failure never touches the FAT.
func NewFileWithParts(n [8]byte, e [3]byte, firstCluster uint16, size uint32) *Record {
	rec := &Record{Name: n, Ext: e, Attr: AttrArchive, FirstCluster: firstCluster, FileSize: size}
	stampTimestamps(rec)
	return rec
}

// NewDirWithParts builds a subdirectory record from already-validated,
// already-padded name/extension arrays.
func NewDirWithParts(n [8]byte, e [3]byte, firstCluster uint16) *Record {
	rec := &Record{Name: n, Ext: e, Attr: AttrDirectory, FirstCluster: firstCluster}
	stampTimestamps(rec)
	return rec
}

// NewFile constructs a regular-file record with the archive attribute set.
func NewFile(name, ext string, firstCluster uint16, size uint32) (*Record, error) {
	n, e, err := New8Dot3(name, ext)
	if err != nil {
		return nil, err
	}
	return NewFileWithParts(n, e, firstCluster, size), nil
}

// NewDir constructs a subdirectory record.
func NewDir(name, ext string, firstCluster uint16) (*Record, error) {
	n, e, err := New8Dot3(name, ext)
	if err != nil {
		return nil, err
	}
	return NewDirWithParts(n, e, firstCluster), nil
}

// dotName and dotdotName are the literal, space-padded 8-byte filename
// fields external tools write for `.` and `..`. Detection must compare
// against these padded forms, never a trimmed one.
var dotName = [8]byte{'.', ' ', ' ', ' ', ' ', ' ', ' ', ' '}
var dotdotName = [8]byte{'.', '.', ' ', ' ', ' ', ' ', ' ', ' '}
var blankExt = [3]byte{' ', ' ', ' '}

// NewDot constructs the mandatory `.` entry of a subdirectory, pointing at
// the directory's own first cluster.
func NewDot(selfCluster uint16) *Record {
	rec := &Record{Name: dotName, Ext: blankExt, Attr: AttrDirectory, FirstCluster: selfCluster}
	stampTimestamps(rec)
	return rec
}

// NewDotdot constructs the mandatory `..` entry, pointing at the parent
// directory's first cluster (0 if the parent is the root).
func NewDotdot(parentCluster uint16) *Record {
	rec := &Record{Name: dotdotName, Ext: blankExt, Attr: AttrDirectory, FirstCluster: parentCluster}
	stampTimestamps(rec)
	return rec
}

// NewRoot constructs the blank in-memory record standing in for the root
// directory, which occupies no slot of its own.
func NewRoot() *Record {
	var n [8]byte
	var e [3]byte
	for i := range n {
		n[i] = ' '
	}
	for i := range e {
		e[i] = ' '
	}
	return &Record{Name: n, Ext: e}
}

// IsDir reports whether the directory attribute bit is set.
func (rec *Record) IsDir() bool {
	return rec.Attr&AttrDirectory != 0
}

// IsDot reports whether this is the `.` self-reference entry, tested
// against the padded 8-byte filename field.
func (rec *Record) IsDot() bool {
	return rec.Name == dotName && rec.Ext == blankExt
}

// IsDotdot reports whether this is the `..` parent-reference entry.
func (rec *Record) IsDotdot() bool {
	return rec.Name == dotdotName && rec.Ext == blankExt
}

// DisplayName reconstructs the canonical NAME[.EXT] form used for path
// comparisons: rstrip(name) + ("." + rstrip(ext) if ext isn't blank).
func (rec *Record) DisplayName() string {
	name := strings.TrimRight(string(rec.Name[:]), " ")
	ext := strings.TrimRight(string(rec.Ext[:]), " ")
	if ext == "" {
		return name
	}
	return name + "." + ext
}

func (rec *Record) setAttr(bit uint8, on bool) {
	if on {
		rec.Attr |= bit
	} else {
		rec.Attr &^= bit
	}
}

// SetReadOnly and ClearReadOnly flip the read-only attribute bit.
func (rec *Record) SetReadOnly()   { rec.setAttr(AttrReadOnly, true) }
func (rec *Record) ClearReadOnly() { rec.setAttr(AttrReadOnly, false) }

// SetHidden and ClearHidden flip the hidden attribute bit.
func (rec *Record) SetHidden()   { rec.setAttr(AttrHidden, true) }
func (rec *Record) ClearHidden() { rec.setAttr(AttrHidden, false) }

// SetSystem and ClearSystem flip the system attribute bit.
func (rec *Record) SetSystem()   { rec.setAttr(AttrSystem, true) }
func (rec *Record) ClearSystem() { rec.setAttr(AttrSystem, false) }

// SetArchive and ClearArchive flip the archive attribute bit.
func (rec *Record) SetArchive()   { rec.setAttr(AttrArchive, true) }
func (rec *Record) ClearArchive() { rec.setAttr(AttrArchive, false) }
