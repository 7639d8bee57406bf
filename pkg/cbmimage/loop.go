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
	Loop is a loop detector: a bitset over all LBAs of the image, marking
	blocks already visited during a traversal. It is single-use from a given
	traversal root.
*/
type Loop struct {
	image *Image
	bits  []byte
}

// NewLoop creates a loop detector sized for the active volume.
func (im *Image) NewLoop() *Loop {
	count := im.MaxLBA() + 1
	return &Loop{
		image: im,
		bits:  make([]byte, (count+7)/8),
	}
}

/*
	Mark records a visit of the given block. It returns true if the block
	had been visited before, i.e. a loop was just detected. Marking an
	address outside of the image is an error.
*/
func (l *Loop) Mark(block BlockAddress) (bool, error) {

	byteIx, bit, err := l.position(block)
	if err != nil {
		return false, err
	}

	marked := l.bits[byteIx]&(1<<bit) != 0
	l.bits[byteIx] |= 1 << bit

	if marked {
		l.image.reportf("Loop detected marking block %d/%d = %d.",
			block.Track, block.Sector, block.LBA)
	}

	return marked, nil
}

// Check reports whether the given block has been marked, without marking it.
func (l *Loop) Check(block BlockAddress) (bool, error) {

	byteIx, bit, err := l.position(block)
	if err != nil {
		return false, err
	}

	return l.bits[byteIx]&(1<<bit) != 0, nil
}

//
func (l *Loop) position(block BlockAddress) (int, uint, error) {

	if block.LBA <= 0 || block.LBA > l.image.MaxLBA() {
		return 0, 0, fmt.Errorf(
			"block LBA %d is out of range for loop detector", block.LBA)
	}

	return block.LBA / 8, uint(block.LBA % 8), nil
}
