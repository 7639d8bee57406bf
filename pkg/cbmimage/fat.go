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
	"io"
)

//
const (
	// fatUnused marks a block not claimed by any chain
	fatUnused = 0x0000
	// fatLastBlock marks the last block of a chain
	fatLastBlock = 0xFFFF
)

/*
	FAT is the derived file allocation table: one entry per LBA, each either
	the LBA of the next block in the chain the block belongs to, the
	last-block sentinel, or unused. It represents allocation as derived from
	the directory and the link chains, not the on-disk BAM.
*/
type FAT struct {
	image   *Image
	entries []int
}

// NewFAT creates a FAT sized for the active volume, all entries unused.
func (im *Image) NewFAT() *FAT {
	return &FAT{
		image:   im,
		entries: make([]int, im.MaxLBA()+1),
	}
}

//
func (f *FAT) reset() {
	for ix := range f.entries {
		f.entries[ix] = fatUnused
	}
}

//
func (f *FAT) setLBA(block BlockAddress, targetLBA int) error {
	if block.LBA <= 0 || block.LBA >= len(f.entries) {
		return fmt.Errorf("block LBA %d is out of range for FAT", block.LBA)
	}
	f.entries[block.LBA] = targetLBA
	return nil
}

// Set links a block to its chain successor; the unused target marks the
// block as the last one of its chain.
func (f *FAT) Set(block, target BlockAddress) error {
	lba := target.LBA
	if lba == 0 {
		lba = fatLastBlock
	}
	return f.setLBA(block, lba)
}

// Clear marks a block as unused.
func (f *FAT) Clear(block BlockAddress) error {
	return f.setLBA(block, fatUnused)
}

//
func (f *FAT) targetLBA(block BlockAddress) int {
	if block.LBA <= 0 || block.LBA >= len(f.entries) {
		return fatUnused
	}
	return f.entries[block.LBA]
}

// IsUsed reports whether the block is claimed by some chain.
func (f *FAT) IsUsed(block BlockAddress) bool {
	return f.targetLBA(block) != fatUnused
}

/*
	Get returns the successor of a block. An unused block yields the unused
	address; the last block of a chain yields an address whose LBA is the
	last-block sentinel.
*/
func (f *FAT) Get(block BlockAddress) BlockAddress {

	switch lba := f.targetLBA(block); lba {

	case fatUnused:
		return blockUnused

	case fatLastBlock:
		return BlockAddress{LBA: fatLastBlock}

	default:
		target, err := f.image.BlockFromLBA(lba)
		if err != nil {
			return blockUnused
		}
		return target
	}
}

/*
	Dump writes the FAT to w. With trackLayout 0, entries are listed
	linearly by LBA; otherwise they are grouped by track, with at most
	trackLayout entries per line.
*/
func (f *FAT) Dump(w io.Writer, trackLayout int) error {

	fmt.Fprintf(w, "Dumping FAT:\nWe have %d=0x%04X elements.\n",
		len(f.entries), len(f.entries))

	if trackLayout > 0 {

		block, err := f.image.BlockFromLBA(1)
		if err != nil {
			return err
		}

		fmt.Fprintf(w, "\n%3d (%04X): %04X ", 0, 0, f.entries[0])
		count := 0
		for {
			if block.Sector == 0 {
				fmt.Fprintf(w, "\n%3d (%04X): ", block.Track, block.LBA)
				count = 0
			} else if count++; count >= trackLayout {
				fmt.Fprint(w, "\n            ")
				count = 0
			}
			fmt.Fprintf(w, "%04X ", f.entries[block.LBA])
			if f.image.Advance(&block) != nil {
				break
			}
		}
		fmt.Fprintln(w)

	} else {
		for ix, e := range f.entries {
			if ix%16 == 0 {
				fmt.Fprintf(w, "\n%04X: ", ix)
			}
			fmt.Fprintf(w, "%04X ", e)
		}
		fmt.Fprintln(w)
	}

	return nil
}

/*
	DumpFAT dumps the derived FAT of the image, validating first when no FAT
	has been built yet.
*/
func (im *Image) DumpFAT(w io.Writer, trackLayout int) error {

	if im.top().fat == nil {
		im.Validate()
	}
	if im.top().fat == nil {
		return fmt.Errorf("no FAT available")
	}

	return im.top().fat.Dump(w, trackLayout)
}
