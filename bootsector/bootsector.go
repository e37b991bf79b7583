// Package bootsector parses and emits the 512-byte BIOS Parameter Block at
// the front of a FAT12 floppy image, grounded on github.com/dargueta/disko's
// drivers/fat/common.go boot sector reader, cut down to the single fixed
// 1.44 MB profile this codec supports.
package bootsector

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/123swk123/pyfat/errs"
	"github.com/123swk123/pyfat/geometry"
	multierror "github.com/hashicorp/go-multierror"
)

// Size is the fixed on-disk size of a boot sector.
const Size = 512

// signature is the fixed magic value at the end of every valid boot sector.
const signature = 0xAA55

// defaultBootCode reproduces the dosfstools "This is not a bootable disk"
// stub. It is what NewDefault uses when the caller doesn't supply its own
// bootstrap code.
var defaultBootCode = buildDefaultBootCode()

func buildDefaultBootCode() [448]byte {
	var code [448]byte
	prefix := []byte{
		0x0e, 0x1f, 0xbe, 0x5b, 0x7c, 0xac, 0x22, 0xc0, 0x74, 0x0b, 0x56, 0xb4,
		0x0e, 0xbb, 0x07, 0x00, 0xcd, 0x10, 0x5e, 0xeb, 0xf0, 0x32, 0xe4, 0xcd,
		0x16, 0xcd, 0x19, 0xeb, 0xfe,
	}
	message := "This is not a bootable disk.  Please insert a bootable floppy and\r\n" +
		"press any key to try again ... \r\n"

	n := copy(code[:], prefix)
	copy(code[n:], message)
	return code
}

// raw mirrors the on-disk layout field for field, in order, so
// encoding/binary can marshal/unmarshal it directly.
type raw struct {
	JmpBoot            [3]byte
	OEMName            [8]byte
	BytesPerSector     uint16
	SectorsPerCluster  uint8
	ReservedSectors    uint16
	NumFATs            uint8
	MaxRootDirEntries  uint16
	SectorCount16      uint16
	Media              uint8
	SectorsPerFAT      uint16
	SectorsPerTrack    uint16
	NumHeads           uint16
	HiddenSectors      uint32
	TotalSectorCount32 uint32
	DriveNum           uint8
	Reserved1          uint8
	BootSig            uint8
	VolumeID           uint32
	VolumeLabel        [11]byte
	FSType             [8]byte
	BootCode           [448]byte
	Signature          uint16
}

// BootSector is the parsed, user-friendly form of the BPB.
type BootSector struct {
	JmpBoot            [3]byte
	OEMName            [8]byte
	BytesPerSector     uint16
	SectorsPerCluster  uint8
	ReservedSectors    uint16
	NumFATs            uint8
	MaxRootDirEntries  uint16
	SectorCount16      uint16
	Media              uint8
	SectorsPerFAT      uint16
	SectorsPerTrack    uint16
	NumHeads           uint16
	HiddenSectors      uint32
	TotalSectorCount32 uint32
	DriveNum           uint8
	BootSig            uint8
	VolumeID           uint32
	VolumeLabel        [11]byte
	FSType             [8]byte
	BootCode           [448]byte
}

// Parse decodes a 512-byte boot sector, validating every BPB invariant this
// codec requires. All violations are collected and returned together under
// errs.InvalidFormat, rather than stopping at the first.
func Parse(data []byte) (*BootSector, error) {
	if len(data) != Size {
		return nil, errs.InvalidFormat.WithMessage(
			fmt.Sprintf("boot sector must be %d bytes, got %d", Size, len(data)))
	}

	var r raw
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, &r); err != nil {
		return nil, errs.IO.WrapError(err)
	}

	b := &BootSector{
		JmpBoot:            r.JmpBoot,
		OEMName:            r.OEMName,
		BytesPerSector:     r.BytesPerSector,
		SectorsPerCluster:  r.SectorsPerCluster,
		ReservedSectors:    r.ReservedSectors,
		NumFATs:            r.NumFATs,
		MaxRootDirEntries:  r.MaxRootDirEntries,
		SectorCount16:      r.SectorCount16,
		Media:              r.Media,
		SectorsPerFAT:      r.SectorsPerFAT,
		SectorsPerTrack:    r.SectorsPerTrack,
		NumHeads:           r.NumHeads,
		HiddenSectors:      r.HiddenSectors,
		TotalSectorCount32: r.TotalSectorCount32,
		DriveNum:           r.DriveNum,
		BootSig:            r.BootSig,
		VolumeID:           r.VolumeID,
		VolumeLabel:        r.VolumeLabel,
		FSType:             r.FSType,
		BootCode:           r.BootCode,
	}

	if err := validate(b, r.Signature); err != nil {
		return nil, err
	}

	return b, nil
}

func isValidMedia(media uint8) bool {
	if media == 0xF0 {
		return true
	}
	return media >= 0xF8
}

func isValidDriveNum(driveNum uint8) bool {
	return driveNum == 0x00 || driveNum == 0x80
}

// validate checks every BPB invariant this codec requires and joins every
// violation (via go-multierror) into a single errs.InvalidFormat.
func validate(b *BootSector, signatureField uint16) error {
	var result *multierror.Error

	if !isValidMedia(b.Media) {
		result = multierror.Append(result, fmt.Errorf("invalid media byte 0x%02X", b.Media))
	}
	if b.NumFATs != 1 && b.NumFATs != 2 {
		result = multierror.Append(result, fmt.Errorf("num_fats must be 1 or 2, got %d", b.NumFATs))
	}
	if !isValidDriveNum(b.DriveNum) {
		result = multierror.Append(result, fmt.Errorf("drive_num must be 0x00 or 0x80, got 0x%02X", b.DriveNum))
	}
	if b.SectorsPerFAT != 9 {
		result = multierror.Append(result, fmt.Errorf("sectors_per_fat must be 9, got %d", b.SectorsPerFAT))
	}
	if b.TotalSectorCount32 != 0 {
		result = multierror.Append(result, fmt.Errorf("total_sector_count_32 must be 0, got %d", b.TotalSectorCount32))
	}
	if string(b.FSType[:]) != "FAT12   " {
		result = multierror.Append(result, fmt.Errorf("fs_type must be %q, got %q", "FAT12   ", b.FSType[:]))
	}
	if signatureField != signature {
		result = multierror.Append(result, fmt.Errorf("signature must be 0x%04X, got 0x%04X", signature, signatureField))
	}
	if b.BytesPerSector != 512 {
		result = multierror.Append(result, fmt.Errorf("bytes_per_sector must be 512, got %d", b.BytesPerSector))
	}
	if b.SectorsPerCluster != 1 {
		result = multierror.Append(result, fmt.Errorf("sectors_per_cluster must be 1, got %d", b.SectorsPerCluster))
	}
	if b.MaxRootDirEntries != 224 {
		result = multierror.Append(result, fmt.Errorf("max_root_dir_entries must be 224, got %d", b.MaxRootDirEntries))
	}

	if result != nil {
		return errs.InvalidFormat.WithMessage(result.Error())
	}
	return nil
}

// NewDefault builds the boot sector for a freshly-created, empty image
// following the fixed 1.44 MB profile, using bootCode as the 448-byte
// bootstrap blob. A zero-value bootCode is replaced with the default
// dosfstools stub.
func NewDefault(bootCode [448]byte) *BootSector {
	profile := geometry.Lookup1440()
	if bootCode == ([448]byte{}) {
		bootCode = defaultBootCode
	}

	b := &BootSector{
		JmpBoot:            [3]byte{0xEB, 0x3C, 0x90},
		BytesPerSector:     uint16(profile.BytesPerSector),
		SectorsPerCluster:  uint8(profile.SectorsPerCluster),
		ReservedSectors:    uint16(profile.ReservedSectors),
		NumFATs:            uint8(profile.NumFATs),
		MaxRootDirEntries:  uint16(profile.MaxRootDirEntries),
		SectorCount16:      uint16(profile.TotalSectors),
		Media:              uint8(profile.Media),
		SectorsPerFAT:      uint16(profile.SectorsPerFAT),
		SectorsPerTrack:    uint16(profile.SectorsPerTrack),
		NumHeads:           uint16(profile.NumHeads),
		DriveNum:           0x00,
		BootSig:            0x29,
		VolumeID:           0xFD4B5C1D,
		BootCode:           bootCode,
	}
	copy(b.OEMName[:], "pyfat   ")
	copy(b.VolumeLabel[:], "NO NAME    ")
	copy(b.FSType[:], "FAT12   ")
	return b
}

// Emit serializes the boot sector back to its 512-byte on-disk form, with
// the 0xAA55 signature at offset 510.
func (b *BootSector) Emit() []byte {
	r := raw{
		JmpBoot:            b.JmpBoot,
		OEMName:            b.OEMName,
		BytesPerSector:     b.BytesPerSector,
		SectorsPerCluster:  b.SectorsPerCluster,
		ReservedSectors:    b.ReservedSectors,
		NumFATs:            b.NumFATs,
		MaxRootDirEntries:  b.MaxRootDirEntries,
		SectorCount16:      b.SectorCount16,
		Media:              b.Media,
		SectorsPerFAT:      b.SectorsPerFAT,
		SectorsPerTrack:    b.SectorsPerTrack,
		NumHeads:           b.NumHeads,
		HiddenSectors:      b.HiddenSectors,
		TotalSectorCount32: b.TotalSectorCount32,
		DriveNum:           b.DriveNum,
		BootSig:            b.BootSig,
		VolumeID:           b.VolumeID,
		VolumeLabel:        b.VolumeLabel,
		FSType:             b.FSType,
		BootCode:           b.BootCode,
		Signature:          signature,
	}

	buf := &bytes.Buffer{}
	buf.Grow(Size)
	// binary.Write never fails for a fixed-size struct of fixed-width
	// fields written to a bytes.Buffer.
	_ = binary.Write(buf, binary.LittleEndian, &r)
	return buf.Bytes()
}
