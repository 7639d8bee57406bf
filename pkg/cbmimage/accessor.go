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
	adjustShiftedAddress converts a partition-relative address into the
	address of the enclosing image. With an active CMD-style partition, the
	blocks of the partition are named from 1/0, so resolving adds the LBA of
	the partition's first block.
*/
func adjustShiftedAddress(s *settings, b *BlockAddress) error {

	if !s.subdirShifted {
		return nil
	}

	if b.LBA >= s.blockSubdirLast.LBA {
		return fmt.Errorf("block %d/%d is outside of the active partition",
			b.Track, b.Sector)
	}

	b.LBA += s.blockSubdirFirst.LBA - 1
	return initFromLBA(s, b)
}

// offsetOfBlock resolves a block address to its byte offset into the raw
// image buffer, honouring the data offset of an active partition.
func offsetOfBlock(s *settings, block BlockAddress) (int, error) {

	if err := adjustShiftedAddress(s, &block); err != nil {
		return 0, err
	}

	if block.LBA <= 0 || block.LBA > s.lastBlock.LBA {
		return 0, fmt.Errorf("block LBA %d does not exist", block.LBA)
	}

	offset := (block.LBA-1)*s.bytesInBlock + s.subdirDataOffset
	if offset+s.bytesInBlock > len(s.image.buffer) {
		return 0, fmt.Errorf("block %d/%d lies beyond the image buffer",
			block.Track, block.Sector)
	}

	return offset, nil
}

// addressOfBlock resolves a block address to its byte range inside the raw
// image buffer.
func addressOfBlock(s *settings, block BlockAddress) ([]byte, error) {
	offset, err := offsetOfBlock(s, block)
	if err != nil {
		return nil, err
	}
	return s.image.buffer[offset : offset+s.bytesInBlock], nil
}

/*
	BlockAccessor pairs a block address with the slice of the raw buffer
	holding that block. It can be rebound to other blocks and reused; its
	lifetime is bounded by the image.
*/
type BlockAccessor struct {
	image *Image
	block BlockAddress
	data  []byte
}

// NewAccessor creates a block accessor positioned at the given block.
func (im *Image) NewAccessor(block BlockAddress) (*BlockAccessor, error) {
	a := &BlockAccessor{image: im}
	if err := a.SetTo(block); err != nil {
		return nil, err
	}
	return a, nil
}

//
func (im *Image) NewAccessorTS(track, sector int) (*BlockAccessor, error) {
	b, err := im.BlockFromTS(track, sector)
	if err != nil {
		return nil, err
	}
	return im.NewAccessor(b)
}

//
func (im *Image) NewAccessorLBA(lba int) (*BlockAccessor, error) {
	b, err := im.BlockFromLBA(lba)
	if err != nil {
		return nil, err
	}
	return im.NewAccessor(b)
}

// newAccessor creates an accessor during format setup, when the frame
// being initialized is the active one.
func newAccessor(s *settings, track, sector int) (*BlockAccessor, error) {
	b := BlockAddress{Track: track, Sector: sector}
	if err := initFromTS(s, &b); err != nil {
		return nil, err
	}
	return s.image.NewAccessor(b)
}

//
func (a *BlockAccessor) Block() BlockAddress {
	return a.block
}

// Data returns the bytes of the current block. The slice references the
// image buffer directly; writing to it modifies the image.
func (a *BlockAccessor) Data() []byte {
	return a.data
}

//
func (a *BlockAccessor) release() {
	a.data = nil
	a.block = blockUnused
}

// SetTo rebinds the accessor to another block.
func (a *BlockAccessor) SetTo(block BlockAddress) error {

	a.release()

	s := a.image.top()

	if block.Track <= 0 || block.Track > s.maxTracks ||
		block.Sector >= sectorsInTrack(s, block.Track) || block.LBA <= 0 {
		return fmt.Errorf("cannot bind accessor to invalid block %d/%d",
			block.Track, block.Sector)
	}

	data, err := addressOfBlock(s, block)
	if err != nil {
		return err
	}

	a.block = block
	a.data = data

	return nil
}

//
func (a *BlockAccessor) SetToTS(track, sector int) error {
	b, err := a.image.BlockFromTS(track, sector)
	if err != nil {
		return err
	}
	return a.SetTo(b)
}

//
func (a *BlockAccessor) SetToLBA(lba int) error {
	b, err := a.image.BlockFromLBA(lba)
	if err != nil {
		return err
	}
	return a.SetTo(b)
}

// Advance moves the accessor to the next physical block of the image; it is
// not chain-aware, see Follow for that.
func (a *BlockAccessor) Advance() error {

	block := a.block

	if err := a.image.Advance(&block); err != nil {
		a.release()
		return err
	}

	return a.SetTo(block)
}

/*
	NextBlock reads the (next-track, next-sector) link of the current block.
	When the chain continues, it returns the successor address and used 0.
	When the block is a terminator (next-track 0), it returns the unused
	address and the number of valid bytes in this block, with the raw value
	0 meaning a full 256 bytes. A link to a block that does not exist yields
	an error.
*/
func (a *BlockAccessor) NextBlock() (next BlockAddress, used int, err error) {

	if a.data == nil {
		return blockUnused, 0, fmt.Errorf("accessor is not bound to a block")
	}

	track := int(a.data[0])
	sector := int(a.data[1])

	if track == 0 {
		if sector == 0 {
			return blockUnused, 256, nil
		}
		return blockUnused, sector, nil
	}

	s := a.image.top()

	if track > s.maxTracks || sector >= sectorsInTrack(s, track) {
		return blockUnused, 0, fmt.Errorf(
			"link points to nonexistent block %d/%d", track, sector)
	}

	b := BlockAddress{Track: track, Sector: sector}
	if err := initFromTS(s, &b); err != nil {
		return blockUnused, 0, err
	}

	return b, 0, nil
}

// Follow moves the accessor along the chain link of its current block. At a
// terminator the accessor is released and an error returned.
func (a *BlockAccessor) Follow() error {

	next, used, err := a.NextBlock()
	if err != nil {
		a.release()
		return err
	}
	if used != 0 {
		a.release()
		return fmt.Errorf("already at the last block of the chain")
	}

	return a.SetTo(next)
}
