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

// TSExists reports whether the track/sector combination exists on the
// active volume.
func (im *Image) TSExists(track, sector int) bool {
	return tsExists(im.top(), track, sector)
}

// LBAExists reports whether the LBA exists on the active volume.
func (im *Image) LBAExists(lba int) bool {
	return lbaExists(im.top(), lba)
}

//
func tsExists(s *settings, track, sector int) bool {
	return track > 0 &&
		track <= s.maxTracks &&
		sector >= 0 &&
		sector < s.maxSectors &&
		sector < sectorsInTrack(s, track)
}

//
func lbaExists(s *settings, lba int) bool {
	return lba > 0 && lba <= s.lastBlock.LBA
}

//
func sectorsInTrack(s *settings, track int) int {
	if s.fct.sectorsInTrack != nil {
		return s.fct.sectorsInTrack(s, track)
	}
	return s.maxSectors
}

// initFromTS fills in the LBA part of a block address whose track and
// sector are set.
func initFromTS(s *settings, b *BlockAddress) error {
	if s.fct.tsToBlock != nil {
		return s.fct.tsToBlock(s, b)
	}
	if !tsExists(s, b.Track, b.Sector) {
		b.LBA = 0
		return fmt.Errorf("block %d/%d does not exist", b.Track, b.Sector)
	}
	b.LBA = (b.Track-1)*s.maxSectors + b.Sector + 1
	return nil
}

// initFromLBA fills in the track/sector part of a block address whose LBA
// is set.
func initFromLBA(s *settings, b *BlockAddress) error {
	if s.fct.lbaToBlock != nil {
		return s.fct.lbaToBlock(s, b)
	}
	if b.LBA == 0 {
		return fmt.Errorf("LBA 0 does not exist")
	}
	track := (b.LBA-1)/s.maxSectors + 1
	sector := (b.LBA - 1) - (track-1)*s.maxSectors
	if track > s.maxTracks || sector >= s.maxSectors {
		b.Track = 0
		b.Sector = 0
		return fmt.Errorf("LBA %d does not exist", b.LBA)
	}
	b.Track = track
	b.Sector = sector
	return nil
}

// BlockFromTS creates a fully initialized block address from track and
// sector.
func (im *Image) BlockFromTS(track, sector int) (BlockAddress, error) {
	b := BlockAddress{Track: track, Sector: sector}
	if err := initFromTS(im.top(), &b); err != nil {
		return blockUnused, err
	}
	return b, nil
}

// BlockFromLBA creates a fully initialized block address from an LBA.
func (im *Image) BlockFromLBA(lba int) (BlockAddress, error) {
	b := BlockAddress{LBA: lba}
	if err := initFromLBA(im.top(), &b); err != nil {
		return blockUnused, err
	}
	return b, nil
}

// blockFromTS is the lenient variant used when parsing on-disk links that
// may be garbage; it returns the unused address instead of an error.
func blockFromTS(s *settings, track, sector int) BlockAddress {
	b := BlockAddress{Track: track, Sector: sector}
	if initFromTS(s, &b) != nil {
		return blockUnused
	}
	return b
}

//
func advance(s *settings, b *BlockAddress, inTrackOnly bool) error {

	track := b.Track
	sector := b.Sector

	if !lbaExists(s, b.LBA) {
		return fmt.Errorf("cannot advance from invalid block")
	}

	if s.subdirShifted {
		if b.LBA+s.blockSubdirFirst.LBA-1 >= s.lastBlock.LBA {
			return fmt.Errorf("cannot advance beyond the active partition")
		}
	}

	if sector++; sector >= sectorsInTrack(s, track) {
		if inTrackOnly {
			return fmt.Errorf("already at the last sector of track %d", track)
		}
		sector = 0
		if track++; track > s.maxTracks {
			return fmt.Errorf("already at the last block of the image")
		}
	}

	b.Track = track
	b.Sector = sector
	b.LBA++

	return nil
}

/*
	Advance moves the block address to the next block of the image, wrapping
	to the next track when the current track ends. It fails at the last
	block of the image, and, in a shifted partition, when crossing out of
	the active sub-area.
*/
func (im *Image) Advance(b *BlockAddress) error {
	return advance(im.top(), b, false)
}

// AdvanceInTrack moves the block address to the next block of the same
// track; it fails at the last sector of the track.
func (im *Image) AdvanceInTrack(b *BlockAddress) error {
	return advance(im.top(), b, true)
}

/*
	AddBlocks adds adder to result using LBA arithmetic:
	result = result + adder - 1, i.e. result is reinterpreted as if adder
	were block 1/0 of the image. This is the primitive behind partition
	address composition. If either operand is the unused address, the result
	is the other operand.
*/
func (im *Image) AddBlocks(result *BlockAddress, adder BlockAddress) error {
	return addBlocks(im.top(), result, adder)
}

//
func addBlocks(s *settings, result *BlockAddress, adder BlockAddress) error {

	if adder.LBA == 0 {
		return nil
	}
	if result.LBA == 0 {
		*result = adder
		return nil
	}

	sum := BlockAddress{LBA: result.LBA + adder.LBA - 1}
	if err := initFromLBA(s, &sum); err != nil {
		return err
	}
	*result = sum

	return nil
}
