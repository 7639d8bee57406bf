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
	d81Chdir enters a 1581-style partition. The partition is a contiguous
	track-aligned area: it must start at sector 0 of its first track, end at
	the last sector of its last track, and must not cross the directory
	track of the enclosing volume. Addresses inside the partition stay
	absolute.
*/
func d81Chdir(s *settings, e *DirEntry) error {

	im := s.image

	if e.Type != DirTypePart1581 {
		return fmt.Errorf("entry is not a 1581 partition")
	}

	first, last, _, err := partitionData(e)
	if err != nil {
		return err
	}

	if first.Sector != 0 {
		im.reportf("Partition does not start on track boundary but at %d/%d(%03X).",
			first.Track, first.Sector, first.LBA)
		return fmt.Errorf("partition not track aligned")
	}

	if last.Sector != s.maxSectors-1 {
		im.reportf("Partition does not end on track boundary but at %d/%d(%03X).",
			last.Track, last.Sector, last.LBA)
		return fmt.Errorf("partition not track aligned")
	}

	trackDir := s.dirTracks[0]

	if first.Track == trackDir || last.Track == trackDir ||
		(first.Track < trackDir && last.Track > trackDir) {
		im.reportf("Partition from %d/%d(%03X) to %d/%d(%03X) crosses directory track!",
			first.Track, first.Sector, first.LBA,
			last.Track, last.Sector, last.LBA)
		return fmt.Errorf("partition crosses the directory track")
	}

	if err := setSubpartitionAbsolute(s, first, last); err != nil {
		return err
	}

	address := first

	if s.info, err = s.image.NewAccessor(address); err != nil {
		return err
	}

	advance(s, &address, false)
	s.bam = []bamSelector{
		{startTrack: 1, startOffset: 0x10 + 1, multiplier: 6, dataCount: 5,
			block: address},
		{},
	}
	s.bamCounter = []bamSelector{
		{startTrack: 1, startOffset: 0x10, multiplier: 6, block: address},
		{},
	}

	advance(s, &address, false)
	s.bam[1] = bamSelector{startTrack: 41, startOffset: 0x10 + 1,
		multiplier: 6, dataCount: 5, block: address}
	s.bamCounter[1] = bamSelector{startTrack: 41, startOffset: 0x10,
		multiplier: 6, block: address}

	advance(s, &address, false)
	s.dir = address

	s.subdirAbsolute = true

	if err := initBAMSelectors(s, s.bam); err != nil {
		return err
	}
	if err := initBAMSelectors(s, s.bamCounter); err != nil {
		return err
	}

	// the partition has no directory track of its own
	s.dirTracks[0] = 0
	s.dirTracks[1] = 0

	return nil
}

/*
	d81SetBAM is the validator fixup after chdir'ing into a 1581 partition:
	the 1581 marks all blocks outside of the partition as used, so mark
	them in the derived FAT as well.
*/
func d81SetBAM(s *settings) error {

	if !s.subdirAbsolute || s.blockSubdirFirst.LBA == 0 {
		return nil
	}

	im := s.image
	ret := 0

	current, err := im.BlockFromTS(1, 0)
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
		if im.Advance(&next) != nil {
			next = blockUnused
			lastRun = true
			continue
		}

		// skip over the partition area itself
		if next.LBA == s.blockSubdirFirst.LBA {
			next = s.blockSubdirLast
			if im.Advance(&next) != nil {
				next = blockUnused
				lastRun = true
			}
		}
	}

	if ret != 0 {
		return fmt.Errorf("blocks outside the partition are shared")
	}
	return nil
}

//
var d81Functions = imageFunctions{
	chdir:  d81Chdir,
	setBAM: d81SetBAM,
}

/*
	initD81 sets up a settings frame for a D81 (1581) image: 80 tracks of
	40 sectors, header on 40/0, BAM on 40/1 and 40/2, directory from 40/3.
	REL files on this format use a super side-sector.
*/
func initD81(s *settings) error {

	s.fct = d81Functions
	s.imagetype = TypeD81
	s.name = "D81"

	s.infoOffsetDiskname = 0x04
	s.dirTracks[0] = 40
	s.dirTracks[1] = 0

	s.maxTracks = 80
	s.maxSectors = 40
	s.bytesInBlock = 256

	s.hasSuperSideSector = true

	s.bam = []bamSelector{
		{startTrack: 1, startOffset: 0x10 + 1, multiplier: 6, dataCount: 5,
			block: BlockAddress{Track: 40, Sector: 1}},
		{startTrack: 41, startOffset: 0x10 + 1, multiplier: 6, dataCount: 5,
			block: BlockAddress{Track: 40, Sector: 2}},
	}
	s.bamCounter = []bamSelector{
		{startTrack: 1, startOffset: 0x10, multiplier: 6,
			block: BlockAddress{Track: 40, Sector: 1}},
		{startTrack: 41, startOffset: 0x10, multiplier: 6,
			block: BlockAddress{Track: 40, Sector: 2}},
	}

	createLastBlock(s)

	var err error
	if s.info, err = newAccessor(s, 40, 0); err != nil {
		return err
	}

	s.dir = blockFromTS(s, 40, 3)

	s.isGeos = detectGeosInfo(s)

	if err := initBAMSelectors(s, s.bam); err != nil {
		return err
	}
	return initBAMSelectors(s, s.bamCounter)
}
