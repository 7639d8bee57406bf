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
	ReadBlock copies a block out of the image into buf, which must hold at
	least BytesInBlock bytes. The return value describes the block's link:
	0 when the block is full and chains on, otherwise the stored number of
	valid bytes in this last block as it is (a terminator storing 0, which
	NextBlock reads as 256, also returns 0 here).
*/
func (im *Image) ReadBlock(block BlockAddress, buf []byte) (int, error) {

	s := im.top()

	if len(buf) < s.bytesInBlock {
		return 0, fmt.Errorf("buffer of %d bytes is too small for a block",
			len(buf))
	}

	data, err := addressOfBlock(s, block)
	if err != nil {
		return 0, err
	}

	copy(buf, data)

	if data[0] == 0 {
		return int(data[1]), nil
	}
	return 0, nil
}

// WriteBlock copies buf into a block of the image; buf must hold at least
// BytesInBlock bytes.
func (im *Image) WriteBlock(block BlockAddress, buf []byte) error {

	s := im.top()

	if len(buf) < s.bytesInBlock {
		return fmt.Errorf("buffer of %d bytes is too small for a block",
			len(buf))
	}

	data, err := addressOfBlock(s, block)
	if err != nil {
		return err
	}

	copy(data, buf[:s.bytesInBlock])
	return nil
}
