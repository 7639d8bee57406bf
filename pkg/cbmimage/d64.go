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

import (
	"fmt"
)

/*
	Sectors per track for the D40 (2040/3040) format. Track numbers index
	the table directly, so element 0 stays unused. Speed zone 1 (tracks 18
	to 24) has one sector more than on a D64.
*/
var sectorsInTrackD40 = []int{
	0,
	21, 21, 21, 21, 21, //  1 -  5
	21, 21, 21, 21, 21, //  6 - 10
	21, 21, 21, 21, 21, // 11 - 15
	21, 21, 20, 20, 20, // 16 - 20
	20, 20, 20, 20, 18, // 21 - 25
	18, 18, 18, 18, 18, // 26 - 30
	17, 17, 17, 17, 17, // 31 - 35
}

// Sectors per track for D64 images; used for 35, 40 and 42 track variants,
// which only differ in the highest track number.
var sectorsInTrackD64 = []int{
	0,
	21, 21, 21, 21, 21, //  1 -  5
	21, 21, 21, 21, 21, //  6 - 10
	21, 21, 21, 21, 21, // 11 - 15
	21, 21, 19, 19, 19, // 16 - 20
	19, 19, 19, 19, 18, // 21 - 25
	18, 18, 18, 18, 18, // 26 - 30
	17, 17, 17, 17, 17, // 31 - 35
	17, 17, 17, 17, 17, // 36 - 40
	17, 17, //             41 - 42
}

// Sectors per track for D71 images: the second side mirrors the D64 table.
var sectorsInTrackD71 = []int{
	0,
	21, 21, 21, 21, 21, //  1 -  5
	21, 21, 21, 21, 21, //  6 - 10
	21, 21, 21, 21, 21, // 11 - 15
	21, 21, 19, 19, 19, // 16 - 20
	19, 19, 19, 19, 18, // 21 - 25
	18, 18, 18, 18, 18, // 26 - 30
	17, 17, 17, 17, 17, // 31 - 35
	21, 21, 21, 21, 21, // 36 - 40
	21, 21, 21, 21, 21, // 41 - 45
	21, 21, 21, 21, 21, // 46 - 50
	21, 21, 19, 19, 19, // 51 - 55
	19, 19, 19, 19, 18, // 56 - 60
	18, 18, 18, 18, 18, // 61 - 65
	17, 17, 17, 17, 17, // 66 - 70
}

//
func zonedSectorsInTrack(s *settings, track int) int {
	if track > 0 && track <= s.maxTracks && track < len(s.sectorsPerTrack) {
		return s.sectorsPerTrack[track]
	}
	return 0
}

//
func tableTSToBlock(s *settings, b *BlockAddress) error {
	if b.Track <= 0 || b.Track > s.maxTracks ||
		b.Sector < 0 || b.Sector >= s.sectorsPerTrack[b.Track] {
		b.LBA = 0
		return fmt.Errorf("block %d/%d does not exist", b.Track, b.Sector)
	}
	b.LBA = s.trackLBAStart[b.Track] + b.Sector
	return nil
}

//
func tableLBAToBlock(s *settings, b *BlockAddress) error {

	track := 1
	for ; track <= s.maxTracks; track++ {
		if s.trackLBAStart[track] > b.LBA {
			break
		}
	}
	track--

	sector := b.LBA - s.trackLBAStart[track]

	if sector >= s.sectorsPerTrack[track] {
		b.Track = 0
		b.Sector = 0
		return fmt.Errorf("LBA %d does not exist", b.LBA)
	}

	b.Track = track
	b.Sector = sector

	return nil
}

// calculateTrackLBAStart precomputes the LBA of the first sector of every
// track, making both conversion directions O(1) resp. O(tracks).
func calculateTrackLBAStart(s *settings) {
	s.trackLBAStart = make([]int, s.maxTracks+1)
	block := 1
	for track := 1; track <= s.maxTracks; track++ {
		s.trackLBAStart[track] = block
		block += s.sectorsPerTrack[track]
	}
}

// d71SetBAM is the validator fixup for D71 images: the 1571 marks the
// second directory track (53) as occupied, so mimic that.
func d71SetBAM(s *settings) error {

	im := s.image
	ret := 0

	current, err := im.BlockFromTS(18+35, 0)
	if err != nil {
		return err
	}

	next := current
	im.Advance(&next)

	for lastRun := false; ; {
		if s.fat.IsUsed(current) {
			im.reportf(
				"====> Marking already marked block following from %d/%d(%03X) at %d/%d(%03X).",
				s.blockSubdirFirst.Track, s.blockSubdirFirst.Sector,
				s.blockSubdirFirst.LBA,
				current.Track, current.Sector, current.LBA)
			ret = -1
		}
		s.fat.Set(current, next)

		if lastRun {
			break
		}

		current = next

		if im.AdvanceInTrack(&next) != nil {
			next = blockUnused
			lastRun = true
		}
	}

	if ret != 0 {
		return fmt.Errorf("blocks of the second directory track are shared")
	}
	return nil
}

/*
	detectGeosInfo checks the info block for the GEOS signature and, when
	found, records the border block address. The border block is given at
	offsets 0xAB/0xAC of the info block.
*/
func detectGeosInfo(s *settings) bool {

	const geosSignature = "GEOS format V1."
	const geosSignatureOffset = 0xAD

	data := s.info.Data()

	if string(data[geosSignatureOffset:geosSignatureOffset+len(geosSignature)]) !=
		geosSignature {
		return false
	}

	s.geosBorder = blockFromTS(s, int(data[0xAB]), int(data[0xAC]))

	return true
}

//
var d64Functions = imageFunctions{
	sectorsInTrack: zonedSectorsInTrack,
	tsToBlock:      tableTSToBlock,
	lbaToBlock:     tableLBAToBlock,
}

//
var d71Functions = imageFunctions{
	sectorsInTrack: zonedSectorsInTrack,
	tsToBlock:      tableTSToBlock,
	lbaToBlock:     tableLBAToBlock,
	setBAM:         d71SetBAM,
}

/*
	initD40D64D71 sets up a settings frame for the D40/D64/D71 family. It is
	used when opening an image of these types, and again when chdir'ing
	into a D64 or D71 partition of a CMD FD image.
*/
func initD40D64D71(s *settings, typ ImageType) error {

	s.imagetype = typ
	s.infoOffsetDiskname = 0x90
	s.dirTracks[0] = 18
	s.dirTracks[1] = 0
	s.maxSectors = 21
	s.bytesInBlock = 256
	s.hasSuperSideSector = false

	switch typ {

	case TypeD40:
		s.name = "D40"
		s.fct = d64Functions
		s.maxTracks = 35
		s.sectorsPerTrack = sectorsInTrackD40
		s.bam = []bamSelector{
			{startTrack: 1, startOffset: 0x04 + 1, multiplier: 4, dataCount: 3,
				block: BlockAddress{Track: 18, Sector: 0}},
		}
		s.bamCounter = []bamSelector{
			{startTrack: 1, startOffset: 0x04, multiplier: 4,
				block: BlockAddress{Track: 18, Sector: 0}},
		}

	case TypeD64, TypeD64_40Track, TypeD64_40TrackSpeedDOS,
		TypeD64_40TrackDolphin, TypeD64_40TrackPrologic, TypeD64_42Track:
		s.fct = d64Functions
		s.sectorsPerTrack = sectorsInTrackD64
		switch typ {
		case TypeD64:
			s.name = "D64"
			s.maxTracks = 35
		case TypeD64_40Track:
			s.name = "D64_40TRACK"
			s.maxTracks = 40
		case TypeD64_40TrackSpeedDOS:
			s.name = "D64_40TRACK_SPEEDDOS"
			s.maxTracks = 40
		case TypeD64_40TrackDolphin:
			s.name = "D64_40TRACK_DOLPHIN"
			s.maxTracks = 40
		case TypeD64_40TrackPrologic:
			s.name = "D64_40TRACK_PROLOGIC"
			s.maxTracks = 40
		case TypeD64_42Track:
			s.name = "D64_42TRACK"
			s.maxTracks = 42
		}
		s.bam = []bamSelector{
			{startTrack: 1, startOffset: 0x04 + 1, multiplier: 4, dataCount: 3,
				block: BlockAddress{Track: 18, Sector: 0}},
		}
		s.bamCounter = []bamSelector{
			{startTrack: 1, startOffset: 0x04, multiplier: 4,
				block: BlockAddress{Track: 18, Sector: 0}},
		}

	case TypeD71:
		s.name = "D71"
		s.fct = d71Functions
		s.maxTracks = 70
		s.dirTracks[1] = 18 + 35
		s.sectorsPerTrack = sectorsInTrackD71
		s.bam = []bamSelector{
			{startTrack: 1, startOffset: 0x04 + 1, multiplier: 4, dataCount: 3,
				block: BlockAddress{Track: 18, Sector: 0}},
			{startTrack: 36, startOffset: 0x00, multiplier: 3, dataCount: 3,
				block: BlockAddress{Track: 18 + 35, Sector: 0}},
		}
		s.bamCounter = []bamSelector{
			{startTrack: 1, startOffset: 0x04, multiplier: 4,
				block: BlockAddress{Track: 18, Sector: 0}},
			{startTrack: 36, startOffset: 0xDD, multiplier: 1,
				block: BlockAddress{Track: 18, Sector: 0}},
		}

	default:
		return fmt.Errorf("not a D40/D64/D71 image type")
	}

	calculateTrackLBAStart(s)
	createLastBlock(s)

	var err error
	if s.info, err = newAccessor(s, 18, 0); err != nil {
		return err
	}

	s.dir = blockFromTS(s, 18, 1)

	s.isGeos = detectGeosInfo(s)

	if err := initBAMSelectors(s, s.bam); err != nil {
		return err
	}
	return initBAMSelectors(s, s.bamCounter)
}
