/*
   cbmimage - Commodore 8-bit disk image library
   Copyright (c) 2024, The OpenCBM team

   This file is part of cbmimage.

   cbmimage is free software: you can redistribute it and/or modify
   it under the terms of the GNU General Public License as published by
   the Free Software Foundation, either version 3 of the License, or
   (at your option) any later version.

   cbmimage is distributed in the hope that it will be useful,
   but WITHOUT ANY WARRANTY; without even the implied warranty of
   MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
   GNU General Public License for more details.

   You should have received a copy of the GNU General Public License
   along with cbmimage. If not, see <http://www.gnu.org/licenses/>.
*/

package cbmimage

// ImageType enumerates the disk image formats the library can process.
type ImageType int

//
const (
	TypeUnknown ImageType = iota
	TypeD40
	TypeD64
	TypeD64_40Track
	TypeD64_40TrackSpeedDOS
	TypeD64_40TrackDolphin
	TypeD64_40TrackPrologic
	TypeD64_42Track
	TypeD71
	TypeD81
	TypeD80
	TypeD82
	TypeD1M
	TypeD2M
	TypeD4M
	TypeCMDNative
)

// BAMState is the usage state of a block according to the BAM.
type BAMState int

//
const (
	BAMUnknown BAMState = iota
	// the BAM claims the block is free, and its payload still carries the
	// freshly-formatted pattern
	BAMReallyFree
	// the BAM claims the block is free, but it contains data
	BAMFree
	BAMUsed
	BAMDoesNotExist
)

//
func (s BAMState) String() string {
	switch s {
	case BAMReallyFree:
		return "really free"
	case BAMFree:
		return "free"
	case BAMUsed:
		return "used"
	case BAMDoesNotExist:
		return "does not exist"
	}
	return "unknown"
}

// DirType is the type of a directory entry. Within a CMD FD partition table,
// entries carry the partition row variants instead.
type DirType int

//
const (
	DirTypeDEL       DirType = 0
	DirTypeSEQ       DirType = 1
	DirTypePRG       DirType = 2
	DirTypeUSR       DirType = 3
	DirTypeREL       DirType = 4
	DirTypePart1581  DirType = 5
	DirTypeCMDNative DirType = 6

	dirTypePartOffset DirType = 0x100

	DirTypePartNone      = dirTypePartOffset
	DirTypePartCMDNative = dirTypePartOffset + 0x01
	DirTypePartD64       = dirTypePartOffset + 0x02
	DirTypePartD71       = dirTypePartOffset + 0x03
	DirTypePartD81       = dirTypePartOffset + 0x04
	DirTypePartSystem    = dirTypePartOffset + 0xFF
)

//
func (t DirType) String() string {
	switch t {
	case DirTypeDEL:
		return "DEL"
	case DirTypeSEQ:
		return "SEQ"
	case DirTypePRG:
		return "PRG"
	case DirTypeUSR:
		return "USR"
	case DirTypeREL:
		return "REL"
	case DirTypePart1581:
		return "CBM"
	case DirTypeCMDNative:
		return "NAT"
	case DirTypePartNone:
		return "NOP"
	case DirTypePartCMDNative:
		return "CNP"
	case DirTypePartD64:
		return "D64"
	case DirTypePartD71:
		return "D71"
	case DirTypePartD81:
		return "D81"
	case DirTypePartSystem:
		return "SYS"
	}
	return "   "
}

// GeosFiletype is the GEOS file type of a directory entry; GeosNonGeos for
// entries on non-GEOS disks.
type GeosFiletype int

//
const (
	GeosNonGeos         GeosFiletype = 0x00
	GeosBasic           GeosFiletype = 0x01
	GeosAssembler       GeosFiletype = 0x02
	GeosDataFile        GeosFiletype = 0x03
	GeosSystemFile      GeosFiletype = 0x04
	GeosDeskAccessory   GeosFiletype = 0x05
	GeosApplication     GeosFiletype = 0x06
	GeosApplicationData GeosFiletype = 0x07
	GeosFontFile        GeosFiletype = 0x08
	GeosPrinterDriver   GeosFiletype = 0x09
	GeosInputDriver     GeosFiletype = 0x0A
	GeosDiskDriver      GeosFiletype = 0x0B
	GeosSystemBootFile  GeosFiletype = 0x0C
	GeosTemporary       GeosFiletype = 0x0D
	GeosAutoExecFile    GeosFiletype = 0x0E
)

/*
	BlockAddress is an address on the disk, carried in both of its
	representations: (track, sector) with 1-based track and 0-based sector,
	and the 1-based linear block address (LBA). Both forms always describe
	the same block, or the address is the unused zero value.
*/
type BlockAddress struct {
	Track  int
	Sector int
	LBA    int
}

// blockUnused is the invalid/unused sentinel address.
var blockUnused = BlockAddress{}

//
func (b BlockAddress) IsUnused() bool {
	return b.LBA == 0 && b.Track == 0
}
