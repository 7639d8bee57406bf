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
	d1mSetBAM is the validator fixup for the partition table of a CMD FD
	image: every partition listed in the table is marked as one contiguous
	run of blocks, like a 1581 partition. The rows carry global block
	addresses, so the shifted addressing of the system area is suspended
	while marking.
*/
func d1mSetBAM(s *settings) error {

	im := s.image

	dir, err := im.OpenDir()
	if err != nil {
		return err
	}
	defer dir.Close()

	problems := 0

	for dir.Next() {
		e := dir.Entry()
		if e.IsDeleted() {
			continue
		}

		shifted := s.subdirShifted
		s.subdirShifted = false

		if validate1581Partition(im, e.StartBlock, e.BlockCount) != nil {
			problems++
		}

		s.subdirShifted = shifted
	}

	if problems > 0 {
		return fmt.Errorf("%d partitions are inconsistent", problems)
	}
	return nil
}

/*
	d1mChdir enters a partition of a CMD FD image. The partition begins at
	LBA 1 of the new frame; the frame is then reinitialized for the
	partition's format (D64, D71, D81 or CMD native).
*/
func d1mChdir(s *settings, e *DirEntry) error {

	if !s.isPartitionTable {
		return fmt.Errorf("not at the partition table")
	}

	s.isPartitionTable = false

	first, _, _, err := partitionData(e)
	if err != nil {
		return err
	}

	s.subdirShifted = true
	s.subdirAbsolute = false

	if err := setSubpartitionShifted(s, first); err != nil {
		return err
	}

	switch e.Type {

	case DirTypePartCMDNative:
		return initDNP(s)

	case DirTypePartD64:
		return initD40D64D71(s, TypeD64)

	case DirTypePartD71:
		return initD40D64D71(s, TypeD71)

	case DirTypePartD81:
		return initD81(s)
	}

	return fmt.Errorf("cannot chdir into a %s partition", e.Type)
}

//
var d1mD2mD4mFunctions = imageFunctions{
	chdir:  d1mChdir,
	setBAM: d1mSetBAM,
}

/*
	openD1MD2MD4M sets up a CMD FD image (D1M, D2M or D4M). At the outer
	level these images present their partition table as the directory; the
	system area occupies blocks 81/8 to 81/39 and is addressed relative to
	its first block.
*/
func openD1MD2MD4M(s *settings, typ ImageType) error {

	s.fct = d1mD2mD4mFunctions
	s.imagetype = typ

	s.infoOffsetDiskname = 0xF0
	s.maxTracks = 81
	s.bytesInBlock = 256

	switch typ {
	case TypeD1M:
		s.name = "D1M"
		s.maxSectors = 40
	case TypeD2M:
		s.name = "D2M"
		s.maxSectors = 80
	case TypeD4M:
		s.name = "D4M"
		s.maxSectors = 160
	default:
		return fmt.Errorf("not a D1M/D2M/D4M image type")
	}

	s.isPartitionTable = true

	createLastBlock(s)

	var err error
	if s.info, err = newAccessor(s, 1, 0); err != nil {
		return err
	}

	s.dir = blockFromTS(s, 1, 0)

	first := blockFromTS(s, 81, 8)
	last := blockFromTS(s, 81, 39)

	s.blockSubdirFirst = first
	s.blockSubdirLast = last
	s.subdirShifted = true
	s.subdirAbsolute = false

	return nil
}
