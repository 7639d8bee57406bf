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

// Sectors per track for D80 and D82 images; a D80 uses only the first half
// (tracks 1 - 77).
var sectorsInTrackD82 = []int{
	0,
	29, 29, 29, 29, 29, //   1 -   5
	29, 29, 29, 29, 29, //   6 -  10
	29, 29, 29, 29, 29, //  11 -  15
	29, 29, 29, 29, 29, //  16 -  20
	29, 29, 29, 29, 29, //  21 -  25
	29, 29, 29, 29, 29, //  26 -  30
	29, 29, 29, 29, 29, //  31 -  35
	29, 29, 29, 29, 27, //  36 -  40
	27, 27, 27, 27, 27, //  41 -  45
	27, 27, 27, 27, 27, //  46 -  50
	27, 27, 27, 25, 25, //  51 -  55
	25, 25, 25, 25, 25, //  56 -  60
	25, 25, 25, 25, 23, //  61 -  65
	23, 23, 23, 23, 23, //  66 -  70
	23, 23, 23, 23, 23, //  71 -  75
	23, 23, //             76 -  77

	29, 29, 29, 29, 29, //  78 -  82
	29, 29, 29, 29, 29, //  83 -  87
	29, 29, 29, 29, 29, //  88 -  92
	29, 29, 29, 29, 29, //  93 -  97
	29, 29, 29, 29, 29, //  98 - 102
	29, 29, 29, 29, 29, // 103 - 107
	29, 29, 29, 29, 29, // 108 - 112
	29, 29, 29, 29, 27, // 113 - 117
	27, 27, 27, 27, 27, // 118 - 122
	27, 27, 27, 27, 27, // 123 - 127
	27, 27, 27, 25, 25, // 128 - 132
	25, 25, 25, 25, 25, // 133 - 137
	25, 25, 25, 25, 23, // 138 - 142
	23, 23, 23, 23, 23, // 143 - 147
	23, 23, 23, 23, 23, // 148 - 152
	23, 23, //            153 - 154
}

//
var d80D82Functions = imageFunctions{
	sectorsInTrack: zonedSectorsInTrack,
	tsToBlock:      tableTSToBlock,
	lbaToBlock:     tableLBAToBlock,
}

// openD80D82 sets up a settings frame for a D80 (8050) or D82 (8250)
// image. The BAM spreads over two resp. four blocks on track 38.
func openD80D82(s *settings, typ ImageType) error {

	s.fct = d80D82Functions
	s.imagetype = typ

	s.infoOffsetDiskname = 0x06
	s.dirTracks[0] = 39
	s.dirTracks[1] = 38
	s.maxSectors = 29
	s.bytesInBlock = 256
	s.hasSuperSideSector = false
	s.sectorsPerTrack = sectorsInTrackD82

	bam := []bamSelector{
		{startTrack: 1, startOffset: 0x06 + 1, multiplier: 5, dataCount: 4,
			block: BlockAddress{Track: 38, Sector: 0}},
		{startTrack: 51, startOffset: 0x06 + 1, multiplier: 5, dataCount: 4,
			block: BlockAddress{Track: 38, Sector: 3}},
		{startTrack: 101, startOffset: 0x06 + 1, multiplier: 5, dataCount: 4,
			block: BlockAddress{Track: 38, Sector: 6}},
		{startTrack: 151, startOffset: 0x06 + 1, multiplier: 5, dataCount: 4,
			block: BlockAddress{Track: 38, Sector: 9}},
	}
	counter := []bamSelector{
		{startTrack: 1, startOffset: 0x06, multiplier: 5,
			block: BlockAddress{Track: 38, Sector: 0}},
		{startTrack: 51, startOffset: 0x06, multiplier: 5,
			block: BlockAddress{Track: 38, Sector: 3}},
		{startTrack: 101, startOffset: 0x06, multiplier: 5,
			block: BlockAddress{Track: 38, Sector: 6}},
		{startTrack: 151, startOffset: 0x06, multiplier: 5,
			block: BlockAddress{Track: 38, Sector: 9}},
	}

	switch typ {
	case TypeD80:
		s.name = "D80"
		s.maxTracks = 77
		s.bam = bam[:2]
		s.bamCounter = counter[:2]
	case TypeD82:
		s.name = "D82"
		s.maxTracks = 154
		s.bam = bam
		s.bamCounter = counter
	default:
		return fmt.Errorf("not a D80/D82 image type")
	}

	calculateTrackLBAStart(s)
	createLastBlock(s)

	var err error
	if s.info, err = newAccessor(s, 39, 0); err != nil {
		return err
	}

	s.dir = blockFromTS(s, 39, 1)

	if err := initBAMSelectors(s, s.bam); err != nil {
		return err
	}
	return initBAMSelectors(s, s.bamCounter)
}
