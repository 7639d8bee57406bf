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

// super side-sector layout
const (
	superSSOffsetLinkTrack    = 0x00
	superSSOffsetLinkSector   = 0x01
	superSSOffsetLinkCount    = 0x02
	superSSOffsetGroup0Track  = 0x03
	superSSOffsetGroup0Sector = 0x04

	superSSLinkCountFixed = 0xFE
)

// side-sector layout
const (
	ssOffsetRecordSize = 0x03
	ssOffsetSS0Track   = 0x04
	ssOffsetSS0Sector  = 0x05
	ssOffsetChainTrack = 0x10

	ssMaxCount = 6
)

/*
	markGlobalAndLocal marks a block in the derived FAT and, when given, in
	the chain-local loop detector. The local detector finds loops within a
	single chain; a block already present in the FAT means two chains share
	it. Both conditions are reported, neither aborts.
*/
func markGlobalAndLocal(im *Image, loop *Loop,
	start, current, target BlockAddress) error {

	var ret error

	if loop != nil {
		if marked, err := loop.Mark(current); err != nil {
			return err
		} else if marked {
			im.reportf("====> Found loop following from %d/%d(%03X) at %d/%d(%03X).",
				start.Track, start.Sector, start.LBA,
				current.Track, current.Sector, current.LBA)
			ret = fmt.Errorf("loop at %d/%d", current.Track, current.Sector)
		}
	}

	fat := im.top().fat

	if fat.IsUsed(current) {
		im.reportf(
			"====> Marking already marked block following from %d/%d(%03X) at %d/%d(%03X).",
			start.Track, start.Sector, start.LBA,
			current.Track, current.Sector, current.LBA)
		ret = fmt.Errorf("block %d/%d is shared between chains",
			current.Track, current.Sector)
	}

	fat.Set(current, target)

	return ret
}

/*
	validateFollowChain walks a link chain from its start block, marking
	every visited block. Loops and block sharing are reported; the number
	of visited blocks is added to countBlocks when given.
*/
func validateFollowChain(im *Image, start BlockAddress,
	countBlocks *int) error {

	var ret error
	count := 0

	loop := im.NewLoop()

	chain, err := im.NewChain(start)
	if err != nil {
		return err
	}

	for ; !chain.IsDone(); chain.Advance() {
		if err := markGlobalAndLocal(
			im, loop, start, chain.Current(), chain.Next()); err != nil {
			ret = err
		}
		count++
	}

	if chain.IsLoop() {
		current := chain.Current()
		im.reportf("====> Found loop following from %d/%d(%03X) at %d/%d(%03X).",
			start.Track, start.Sector, start.LBA,
			current.Track, current.Sector, current.LBA)
		ret = fmt.Errorf("loop in chain from %d/%d", start.Track, start.Sector)
	}

	if countBlocks != nil {
		*countBlocks += count
	}

	return ret
}

/*
	validate1581Partition marks the contiguous run of blocks occupied by a
	1581-style partition. The blocks carry no structure of their own; they
	are linked consecutively in the derived FAT, and the chain inside them
	is not followed.
*/
func validate1581Partition(im *Image, start BlockAddress, count int) error {

	var ret error

	current := start
	next := current
	im.Advance(&next)

	for ; count > 0; count-- {
		if count == 1 {
			next = blockUnused
		}

		if err := markGlobalAndLocal(im, nil, start, current, next); err != nil {
			ret = err
		}

		if im.Advance(&current) != nil && count > 1 {
			im.reportf(
				"Partition at the end of the image that exceeds the end of disk by %d blocks.",
				count-1)
			ret = fmt.Errorf("partition exceeds the image")
			break
		}

		if count != 1 {
			im.Advance(&next)
		}
	}

	return ret
}

// checkBAMEquality compares, for every block of the image, the derived
// FAT against the BAM, reporting blocks free in the BAM but used by a
// chain, and vice versa.
func checkBAMEquality(im *Image) error {

	var ret error

	fat := im.top().fat

	block, err := im.BlockFromTS(1, 0)
	if err != nil {
		return err
	}

	for {
		usedInFAT := fat.IsUsed(block)
		usedInBAM := im.BAMState(block) == BAMUsed

		if usedInFAT && !usedInBAM {
			im.reportf(
				"Block %d/%d(%03X) is marked as used, but the BAM tells us it is empty.",
				block.Track, block.Sector, block.LBA)
			ret = fmt.Errorf("FAT and BAM disagree")
		} else if !usedInFAT && usedInBAM {
			im.reportf(
				"Block %d/%d(%03X) is not marked as used, but the BAM tells us it is used.",
				block.Track, block.Sector, block.LBA)
			ret = fmt.Errorf("FAT and BAM disagree")
		}

		if im.Advance(&block) != nil {
			break
		}
	}

	return ret
}

/*
	validateSuperSideSector checks the fixed structure of a super
	side-sector: its link must equal the first side-sector group, and its
	marker byte must be 0xFE.
*/
func validateSuperSideSector(im *Image, chain *Chain) error {

	var ret error

	data := chain.Data()
	sss := chain.Current()

	if data[superSSOffsetLinkTrack] != data[superSSOffsetGroup0Track] ||
		data[superSSOffsetLinkSector] != data[superSSOffsetGroup0Sector] {
		im.reportf(
			"Super side-sector at %d/%d(%03X) links to %d/%d, but gives the first group at %d/%d!",
			sss.Track, sss.Sector, sss.LBA,
			data[superSSOffsetLinkTrack], data[superSSOffsetLinkSector],
			data[superSSOffsetGroup0Track], data[superSSOffsetGroup0Sector])
		ret = fmt.Errorf("super side-sector is inconsistent")
	}

	if data[superSSOffsetLinkCount] != superSSLinkCountFixed {
		im.reportf(
			"Super side-sector block at %d/%d(%03X) is not marked as such, it has number 0x%02X instead of 0x%02X",
			sss.Track, sss.Sector, sss.LBA,
			data[superSSOffsetLinkCount], superSSLinkCountFixed)
		ret = fmt.Errorf("super side-sector marker is wrong")
	}

	return ret
}

// validateSuperSideSectorEnd checks that the super side-sector carries no
// data after its last populated group slot.
func validateSuperSideSectorEnd(im *Image, chain *Chain, offset int) error {

	data := chain.Data()
	sss := chain.Current()

	for ix := offset; ix < 0x100; ix++ {
		if data[ix] != 0 {
			im.reportf(
				"Super side-sector at %d/%d contains data after end at offset 0x%02X.",
				sss.Track, sss.Sector, ix)
			return fmt.Errorf("super side-sector carries extra data")
		}
	}

	return nil
}

/*
	validateSideSector checks a side-sector against the first side-sector
	of its group of six: the group member table must be identical, the
	side-sector's own address must appear at its slot, and the record
	length must match the directory.
*/
func validateSideSector(im *Image, chain *Chain, firstSS []byte,
	count, recordLength int) error {

	var ret error

	data := chain.Data()
	this := chain.Current()

	count %= ssMaxCount

	for ix := 0; ix < ssMaxCount; ix++ {
		if data[ssOffsetSS0Track+2*ix] != firstSS[ssOffsetSS0Track+2*ix] ||
			data[ssOffsetSS0Sector+2*ix] != firstSS[ssOffsetSS0Sector+2*ix] {
			im.reportf(
				"Side-sector %d differs from 1st in data of side-sector %d:\nIn 1st, it is %d/%d, but it is %d/%d here.",
				count, ix,
				firstSS[ssOffsetSS0Track+2*ix], firstSS[ssOffsetSS0Sector+2*ix],
				data[ssOffsetSS0Track+2*ix], data[ssOffsetSS0Sector+2*ix])
			ret = fmt.Errorf("side-sector group table differs")
		}
	}

	if int(data[ssOffsetSS0Track+2*count]) != this.Track ||
		int(data[ssOffsetSS0Sector+2*count]) != this.Sector {
		im.reportf(
			"Side-sector %d is not correctly mentioned in the side-sector common area!\nShould be %d/%d, but is %d/%d.",
			count, this.Track, this.Sector,
			data[ssOffsetSS0Track+2*count], data[ssOffsetSS0Sector+2*count])
		ret = fmt.Errorf("side-sector is not at its slot")
	}

	if int(data[ssOffsetRecordSize]) != recordLength {
		im.reportf(
			"Record-length in side-sector %d is wrong! Should be %d, but is %d.",
			count, recordLength, data[ssOffsetRecordSize])
		ret = fmt.Errorf("side-sector record length is wrong")
	}

	return ret
}

/*
	validateSideSectorChain checks the (track, sector) pairs at offsets
	0x10..0xFF of a side-sector against a chain walker advancing through
	the file in parallel: every pair must name the file's block at that
	position, and the (0,0) end marker must coincide with the end of the
	file chain.
*/
func validateSideSectorChain(im *Image, ssChain, fileChain *Chain) error {

	var ret error

	data := ssChain.Data()

	for offset := ssOffsetChainTrack; offset < 0x100; offset += 2 {

		current := fileChain.Current()

		if data[offset]|data[offset+1] != 0 {

			if fileChain.IsDone() {
				im.reportf("End of file, but link in side-sector to %d/%d.",
					data[offset], data[offset+1])
				ret = fmt.Errorf("side-sector links beyond the file")
			}

			if int(data[offset]) != current.Track ||
				int(data[offset+1]) != current.Sector {
				im.reportf(
					"File has block %d/%d, but the side-sector links to %d/%d.",
					current.Track, current.Sector, data[offset], data[offset+1])
				ret = fmt.Errorf("side-sector disagrees with the file chain")
			}

			fileChain.Advance()

		} else {

			if !fileChain.IsDone() {
				im.reportf(
					"Link in side-sector is done, but the file continues at %d/%d.",
					current.Track, current.Sector)
				ret = fmt.Errorf("file continues beyond the side-sector")
			}

			for ; offset < 0x100; offset += 2 {
				if data[offset]|data[offset+1] != 0 {
					im.reportf(
						"Extra data after end in side-sector block at %d/%d.",
						current.Track, current.Sector)
					ret = fmt.Errorf("side-sector carries extra data")
				}
			}
		}
	}

	return ret
}

/*
	validateRELFile walks the side-sector structure of a REL file: on
	images with a super side-sector, the directory points there, and its
	group slots enumerate the side-sector groups; otherwise the directory
	points at the first side-sector directly. The side-sector chain is
	checked against the data chain block by block.
*/
func validateRELFile(im *Image, e *DirEntry, countBlocks *int) error {

	var ret error
	blockCount := 0

	s := im.top()

	var ssBlock BlockAddress
	var superChain *Chain
	superOffset := 0

	if !s.hasSuperSideSector {
		ssBlock = e.RelSideSector
	} else {
		superBlock := e.RelSideSector

		var err error
		if superChain, err = im.NewChain(superBlock); err != nil {
			return err
		}

		if err := markGlobalAndLocal(
			im, nil, superBlock, superBlock, superChain.Next()); err != nil {
			ret = err
		}

		blockCount++

		if err := validateSuperSideSector(im, superChain); err != nil {
			ret = err
		}

		ssBlock = superChain.Next()

		superOffset = superSSOffsetGroup0Track
	}

	if ssBlock.IsUnused() {
		if countBlocks != nil {
			*countBlocks += blockCount
		}
		im.reportf("REL file at %d/%d(%03X) has no side-sector chain.",
			e.StartBlock.Track, e.StartBlock.Sector, e.StartBlock.LBA)
		return fmt.Errorf("REL file has no side-sectors")
	}

	loop := im.NewLoop()

	fileChain, err := im.NewChain(e.StartBlock)
	if err != nil {
		return err
	}

	ssChain, err := im.NewChain(ssBlock)
	if err != nil {
		return err
	}

	firstSS := make([]byte, im.BytesInBlock())
	var firstSSBlock BlockAddress

	for count := 0; !ssChain.IsDone(); ssChain.Advance() {

		blockCount++

		if err := markGlobalAndLocal(im, loop, e.RelSideSector,
			ssChain.Current(), ssChain.Next()); err != nil {
			ret = err
		}

		if count%ssMaxCount == 0 {
			// first side-sector of a six-group, remember it
			firstSSBlock = ssChain.Current()
			copy(firstSS, ssChain.Data())

			if superChain == nil {
				if count != 0 {
					im.reportf("We have side-sector no. %d at %d/%d(%03X)!",
						count, firstSSBlock.Track, firstSSBlock.Sector,
						firstSSBlock.LBA)
					ret = fmt.Errorf("too many side-sectors")
				}
			} else {
				if superOffset >= 0xFF {
					im.reportf("Super side-sector block is overflowed!")
					ret = fmt.Errorf("super side-sector overflow")
				} else {
					super := superChain.Data()
					if int(super[superOffset]) != firstSSBlock.Track ||
						int(super[superOffset+1]) != firstSSBlock.Sector {
						im.reportf(
							"Super side-sector says block is at %d/%d, but it is at %d/%d!",
							super[superOffset], super[superOffset+1],
							firstSSBlock.Track, firstSSBlock.Sector)
						ret = fmt.Errorf("super side-sector group is wrong")
					}
					superOffset += 2
				}
			}
		}

		if err := validateSideSector(
			im, ssChain, firstSS, count, e.RelRecordLength); err != nil {
			ret = err
		}

		if err := validateSideSectorChain(im, ssChain, fileChain); err != nil {
			ret = err
		}

		count++
	}

	if ssChain.IsLoop() {
		current := ssChain.Current()
		im.reportf("====> Found loop following from %d/%d(%03X) at %d/%d(%03X).",
			e.RelSideSector.Track, e.RelSideSector.Sector, e.RelSideSector.LBA,
			current.Track, current.Sector, current.LBA)
		ret = fmt.Errorf("loop in side-sector chain")
	}

	if superChain != nil {
		if err := validateSuperSideSectorEnd(
			im, superChain, superOffset); err != nil {
			ret = err
		}
	}

	if countBlocks != nil {
		*countBlocks += blockCount
	}

	return ret
}

/*
	validateGeosFile checks the GEOS specifics of a file: for VLIR files,
	the start block is a record map of up to 127 (track, sector) pairs;
	each present record is an independent chain. The info block is marked
	as used, too.
*/
func validateGeosFile(im *Image, e *DirEntry, countBlocks *int) error {

	var ret error
	blockCount := 0

	if !e.IsGeos {
		return nil
	}

	if e.GeosVLIR {

		recordChain, err := im.NewChain(e.StartBlock)
		if err != nil {
			return err
		}

		data := recordChain.Data()
		ix := 2

		for ; ix < 0x100; ix += 2 {
			track := int(data[ix])
			sector := int(data[ix+1])

			// (0,0) ends the record map
			if track == 0 && sector == 0 {
				break
			}

			// (0,0xFF) marks an absent record
			if track == 0 && sector == 0xFF {
				continue
			}

			record := blockFromTS(im.top(), track, sector)
			if record.IsUnused() {
				im.reportf(
					"VLIR record at offset %02X points to nonexistent block %d/%d.",
					ix, track, sector)
				ret = fmt.Errorf("VLIR record is invalid")
				continue
			}

			if err := validateFollowChain(im, record, &blockCount); err != nil {
				ret = err
			}
		}

		for ; ix < 0x100; ix += 2 {
			if data[ix] != 0 || data[ix+1] != 0 {
				im.reportf(
					"VLIR record block at %d/%d(%03X) contains data after offset %02X.",
					e.StartBlock.Track, e.StartBlock.Sector, e.StartBlock.LBA, ix)
				ret = fmt.Errorf("VLIR record map carries extra data")
				break
			}
		}
	}

	if e.GeosInfoBlock.LBA > 0 {
		info := e.GeosInfoBlock
		if err := markGlobalAndLocal(im, nil, info, info, blockUnused); err != nil {
			ret = err
		}
		blockCount++
	}

	if countBlocks != nil {
		*countBlocks += blockCount
	}

	return ret
}

/*
	validateProcessFile marks the blocks of one directory entry. Partitions
	are marked as contiguous runs without following links; regular files
	are followed along their chain; REL side-sectors and GEOS structures
	get their dedicated checks. Finally the entry's declared block count is
	compared against the number of blocks actually visited.
*/
func validateProcessFile(im *Image, e *DirEntry) error {

	var ret error
	blockCount := 0

	switch e.Type {

	case DirTypePartD64, DirTypePartD71, DirTypePartD81, DirTypePart1581:
		// a 1581 partition is a plain block run, do *not* follow chains
		if err := validate1581Partition(im, e.StartBlock, e.BlockCount); err != nil {
			ret = err
		}
		// the run carries no count of its own, accept the declared one
		blockCount = e.BlockCount

	case DirTypeCMDNative:
		// native sub-partition contents are validated within the partition

	default:
		if err := validateFollowChain(im, e.StartBlock, &blockCount); err != nil {
			ret = err
		}
	}

	if e.Type == DirTypeREL {
		if err := validateRELFile(im, e, &blockCount); err != nil {
			ret = err
		}
	}

	if e.IsGeos {
		if err := validateGeosFile(im, e, &blockCount); err != nil {
			ret = err
		}
	}

	if e.BlockCount != blockCount {
		name, _ := e.Name.Extract()
		im.reportf("File \"%s\" reports %d blocks, but occupies %d blocks.",
			name, e.BlockCount, blockCount)
		ret = fmt.Errorf("block count of \"%s\" is wrong", name)
	}

	return ret
}

/*
	Validate builds the derived FAT from the directory, the info and BAM
	blocks, the GEOS border and every file chain, then cross-checks it
	against the on-disk BAM. All findings are reported through the image's
	reporter and accumulated; nothing aborts the validation. The returned
	error summarizes whether any inconsistency was found.
*/
func (im *Image) Validate() error {

	s := im.top()

	if s.fat == nil {
		s.fat = im.NewFAT()
	} else {
		s.fat.reset()
	}

	problems := 0
	count := func(err error) {
		if err != nil {
			problems++
		}
	}

	if !s.isPartitionTable {

		count(im.CheckBAMConsistency())

		count(validateFollowChain(im, s.info.Block(), nil))

		if len(s.bam) > 0 {
			// the info and the BAM block coincide on some formats (D64,
			// D71, D40); only walk the BAM chain when it is separate
			if !s.fat.IsUsed(s.bam[0].block) {
				count(validateFollowChain(im, s.bam[0].block, nil))
			}
		}

		if s.geosBorder.LBA != 0 {
			count(validateFollowChain(im, s.geosBorder, nil))
		}

		dir, err := im.OpenDir()
		if err != nil {
			return err
		}

		for dir.Next() {
			e := dir.Entry()
			if e.IsDeleted() {
				continue
			}
			count(validateProcessFile(im, e))
		}
		dir.Close()
	}

	if s.fct.setBAM != nil {
		count(s.fct.setBAM(s))
	}

	if !s.isPartitionTable {
		count(checkBAMEquality(im))
	}

	if problems > 0 {
		return fmt.Errorf("validation found %d problems", problems)
	}
	return nil
}
