// Package geometry describes the fixed media profile this codec supports.
//
// Disk geometries are catalogued in an embedded CSV and parsed with gocsv,
// the way github.com/dargueta/disko's disks package catalogues floppy and
// disk geometries. This module supports exactly one row -- the 1.44 MB 3.5"
// floppy, the only medium this codec targets. bootsector.NewDefault takes
// its BPB values from this row, and fat12, tree and image take the sector
// layout (cluster size, root directory and data region positions) from it.
// bootsector's parse-time validation and fat12's table size use their own
// literal values.
package geometry

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/gocarina/gocsv"
)

//go:embed disk-geometries.csv
var rawCSV string

// Profile is one row of the disk geometry catalog, plus the values derived
// from it: root directory sectors, first data sector, and so on.
type Profile struct {
	Slug                string `csv:"slug"`
	Name                string `csv:"name"`
	BytesPerSector      uint   `csv:"bytes_per_sector"`
	SectorsPerCluster   uint   `csv:"sectors_per_cluster"`
	ReservedSectors     uint   `csv:"reserved_sectors"`
	NumFATs             uint   `csv:"num_fats"`
	MaxRootDirEntries   uint   `csv:"max_root_dir_entries"`
	TotalSectors        uint   `csv:"total_sectors"`
	Media               uint   `csv:"media"`
	SectorsPerFAT       uint   `csv:"sectors_per_fat"`
	SectorsPerTrack     uint   `csv:"sectors_per_track"`
	NumHeads            uint   `csv:"num_heads"`
}

// BytesPerCluster is SectorsPerCluster * BytesPerSector.
func (p Profile) BytesPerCluster() uint {
	return p.SectorsPerCluster * p.BytesPerSector
}

// RootDirSectors is the number of sectors occupied by the root directory:
// ceil(MaxRootDirEntries*32 / BytesPerSector).
func (p Profile) RootDirSectors() uint {
	entryBytes := p.MaxRootDirEntries * 32
	return (entryBytes + p.BytesPerSector - 1) / p.BytesPerSector
}

// FirstRootDirSector is the first physical sector of the root directory
// region: ReservedSectors + NumFATs*SectorsPerFAT.
func (p Profile) FirstRootDirSector() uint {
	return p.ReservedSectors + p.NumFATs*p.SectorsPerFAT
}

// FirstDataSector is the physical sector at which logical cluster 2 begins.
func (p Profile) FirstDataSector() uint {
	return p.FirstRootDirSector() + p.RootDirSectors()
}

// TotalClusters is the count-of-clusters value used to classify the FAT
// width: fewer than 4085 clusters means FAT12.
func (p Profile) TotalClusters() uint {
	dataSectors := p.TotalSectors - p.FirstDataSector()
	return dataSectors / p.SectorsPerCluster
}

// IsFAT12 reports whether this profile's cluster count falls in the FAT12
// range.
func (p Profile) IsFAT12() bool {
	return p.TotalClusters() < 4085
}

// ImageSizeBytes is the total size of an image following this profile.
func (p Profile) ImageSizeBytes() int64 {
	return int64(p.TotalSectors) * int64(p.BytesPerSector)
}

// PhysicalSectorForCluster maps a logical cluster number (>= 2) to its
// physical sector.
func (p Profile) PhysicalSectorForCluster(cluster uint) uint {
	return p.FirstDataSector() + (cluster-2)*p.SectorsPerCluster
}

var catalog map[string]Profile

func init() {
	catalog = map[string]Profile{}
	err := gocsv.UnmarshalToCallback(
		strings.NewReader(rawCSV),
		func(row Profile) error {
			if _, exists := catalog[row.Slug]; exists {
				return fmt.Errorf("duplicate disk geometry slug %q", row.Slug)
			}
			catalog[row.Slug] = row
			return nil
		},
	)
	if err != nil {
		panic(fmt.Sprintf("geometry: malformed embedded catalog: %s", err))
	}
}

// Lookup fetches a cataloged profile by slug.
func Lookup(slug string) (Profile, error) {
	profile, ok := catalog[slug]
	if !ok {
		return Profile{}, fmt.Errorf("no disk geometry cataloged with slug %q", slug)
	}
	return profile, nil
}

// Lookup1440 fetches the 1.44 MB 3.5" floppy profile, the only one this
// codec supports.
func Lookup1440() Profile {
	profile, err := Lookup("1440kb")
	if err != nil {
		panic(err)
	}
	return profile
}
