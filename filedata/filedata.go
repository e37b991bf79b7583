// Package filedata implements the abstraction over "where do the bytes for
// this file currently live."
//
// The split between an original-image backing and an external backing is
// load-bearing for round-tripping: if the FAT is mutated between open and
// write (e.g. by a remove followed by an add), reading a file's bytes by
// its NEW cluster chain would read from the wrong place for any file whose
// chain no longer matches the one it had on disk. Capturing each file's ORIGINAL chain at open
// time, as a value distinct from whatever chain the FAT assigns it on
// write, is what avoids that.
package filedata

import (
	"io"

	"github.com/123swk123/pyfat/errs"
	"github.com/123swk123/pyfat/geometry"
)

// Source is the read side of the host collaborator interface: something
// that can be sought to an offset and read from sequentially.
type Source interface {
	io.Reader
	io.Seeker
}

// Ref is the interface ImageCodec and the extraction operation consume: the
// length of the file's data and its i-th bytesPerCluster-sized chunk.
type Ref interface {
	// Length returns the total length of the file's data in bytes.
	Length() uint32

	// ReadChunk fills buf with up to len(buf) bytes of the file's data
	// starting at logical chunk index i (0-based, chunks are
	// bytesPerCluster bytes). It returns the number of bytes read.
	ReadChunk(i uint, buf []byte) (int, error)
}

var bytesPerCluster = int(geometry.Lookup1440().BytesPerCluster())

// OnOriginalImage is the FileDataRef variant for a file whose bytes live at
// its ORIGINAL cluster-chain positions in the image that was open for
// reading. originalPhysicalSectors is that chain, captured once at open
// time.
type OnOriginalImage struct {
	source                   Source
	originalPhysicalSectors  []uint
	length                   uint32
}

// NewOnOriginalImage builds a FileDataRef bound to a file's position in the
// image that was open when it was discovered.
func NewOnOriginalImage(source Source, originalPhysicalSectors []uint, length uint32) *OnOriginalImage {
	return &OnOriginalImage{
		source:                  source,
		originalPhysicalSectors: originalPhysicalSectors,
		length:                  length,
	}
}

func (ref *OnOriginalImage) Length() uint32 { return ref.length }

func (ref *OnOriginalImage) ReadChunk(i uint, buf []byte) (int, error) {
	if int(i) >= len(ref.originalPhysicalSectors) {
		return 0, errs.IO.WithMessage("read past end of original cluster chain")
	}

	offset := int64(ref.originalPhysicalSectors[i]) * int64(bytesPerCluster)
	if _, err := ref.source.Seek(offset, io.SeekStart); err != nil {
		return 0, errs.IO.WrapError(err)
	}

	n, err := io.ReadFull(ref.source, buf)
	if err != nil && err != io.ErrUnexpectedEOF {
		return n, errs.IO.WrapError(err)
	}
	return n, nil
}

// External is the FileDataRef variant for a file whose bytes live in a
// foreign byte-stream source identified when the file was added.
type External struct {
	source Source
	length uint32
}

// NewExternal builds a FileDataRef over a foreign source holding length
// bytes of file data, read sequentially from offset 0.
func NewExternal(source Source, length uint32) *External {
	return &External{source: source, length: length}
}

func (ref *External) Length() uint32 { return ref.length }

func (ref *External) ReadChunk(i uint, buf []byte) (int, error) {
	offset := int64(i) * int64(bytesPerCluster)
	if _, err := ref.source.Seek(offset, io.SeekStart); err != nil {
		return 0, errs.IO.WrapError(err)
	}

	n, err := io.ReadFull(ref.source, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return n, errs.IO.WrapError(err)
	}
	return n, nil
}
