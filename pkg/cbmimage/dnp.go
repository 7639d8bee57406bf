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

// dnpChdir enters a native subdirectory: the entry's start block is the
// header block of the subdirectory, linking to its first directory block.
func dnpChdir(s *settings, e *DirEntry) error {

	first, _, _, err := partitionData(e)
	if err != nil {
		return err
	}

	if s.info, err = s.image.NewAccessor(first); err != nil {
		return err
	}

	next, _, err := s.info.NextBlock()
	if err != nil || next.IsUnused() {
		return fmt.Errorf("subdirectory header has no directory chain")
	}
	s.dir = next

	return nil
}

/*
	dnpSetBAM is the validator fixup for CMD native partitions: block 1/0
	(the C128 boot block) is always occupied, and the BAM blocks 1/3 to
	1/33 are not linked to anything, so mark them by hand.
*/
func dnpSetBAM(s *settings) error {

	im := s.image
	ret := 0

	current, err := im.BlockFromTS(1, 0)
	if err != nil {
		return err
	}
	next := blockUnused

	if s.fat.IsUsed(current) {
		im.reportf("====> Marking already marked C128 boot block at %d/%d(%03X).",
			current.Track, current.Sector, current.LBA)
		ret = -1
	}
	s.fat.Set(current, next)

	im.Advance(&current)
	im.Advance(&current)
	im.Advance(&current)
	next = current
	im.Advance(&next)

	for i := 3; i < 34; i++ {
		if s.fat.IsUsed(current) {
			im.reportf("====> Marking already marked BAM block at %d/%d(%03X).",
				current.Track, current.Sector, current.LBA)
			ret = -1
		}
		s.fat.Set(current, next)

		if next.LBA > 0 {
			current = next
			if im.Advance(&next) != nil || next.Sector == 34 {
				next = blockUnused
			}
		}
	}

	if ret != 0 {
		return fmt.Errorf("reserved blocks of the partition are shared")
	}
	return nil
}

//
var dnpFunctions = imageFunctions{
	chdir:  dnpChdir,
	setBAM: dnpSetBAM,
}

/*
	initDNP sets up a settings frame for a CMD native partition. The BAM
	spreads over blocks 1/2 to 1/33 with reversed bit order, one selector
	per eight tracks; there are no stored free-block counters. The real
	track count is read from the first BAM block.
*/
func initDNP(s *settings) error {

	s.fct = dnpFunctions
	s.imagetype = TypeCMDNative
	s.name = "DNP"

	s.infoOffsetDiskname = 0x04
	s.dirTracks[0] = 1
	s.dirTracks[1] = 0

	// preliminary, the real track count comes from the BAM block below
	s.maxTracks = 255
	s.maxSectors = 256
	s.bytesInBlock = 256

	s.hasSuperSideSector = true

	s.bam = make([]bamSelector, 32)
	s.bamCounter = nil

	s.bam[0] = bamSelector{startTrack: 1, startOffset: 0x20,
		multiplier: 0x20, dataCount: 0x20, reverseOrder: true,
		block: BlockAddress{Track: 1, Sector: 2}}

	template := bamSelector{startTrack: 8, startOffset: 0x00,
		multiplier: 0x20, dataCount: 0x20, reverseOrder: true,
		block: BlockAddress{Track: 1, Sector: 3}}

	for ix := 1; ix < len(s.bam); ix++ {
		s.bam[ix] = template
		template.startTrack += 8
		template.block.Sector++
	}

	createLastBlock(s)

	var err error
	if s.info, err = newAccessor(s, 1, 1); err != nil {
		return err
	}

	s.isGeos = detectGeosInfo(s)

	if err := initBAMSelectors(s, s.bam); err != nil {
		return err
	}

	maxTrack := int(s.bam[0].buf[8])
	if maxTrack == 0 {
		return fmt.Errorf("partition declares no tracks")
	}
	s.maxTracks = maxTrack

	createLastBlock(s)

	s.dir = blockFromTS(s, 1, 34)
	if s.dir.IsUnused() {
		return fmt.Errorf("cannot locate the partition directory")
	}

	return nil
}
