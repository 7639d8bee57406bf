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

package run

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/OpenCBM/libcbmimage/pkg/cbmimage"
)

//
func NewRead() *Read {

	r := &Read{}
	r.Runner = *NewRunner(
		"read [-f|--format {type}] [-c|--chdir {no}] {image file} {track/sector | lba}",
		"read a block of an image",
		`
Use the read command to dump a single block of a disk image. The block is
given either as track/sector, e.g. 18/0, or as a plain LBA number.
`,
		r.Run)

	r.AddBaseSettings()

	return r
}

//
type Read struct {
	Runner
}

//
func (r *Read) Run() error {

	r.ParseSettings()

	if len(r.Args) < 2 {
		return fmt.Errorf("no block address given")
	}

	im, err := r.openImage()
	if err != nil {
		return err
	}
	defer im.Close()

	block, err := parseBlockAddress(im, r.Args[1])
	if err != nil {
		return err
	}

	fmt.Printf("\nblock %d/%d = %d:\n\n", block.Track, block.Sector, block.LBA)

	buf := make([]byte, im.BytesInBlock())
	if _, err := im.ReadBlock(block, buf); err != nil {
		return err
	}

	dump(os.Stdout, buf)

	return nil
}

// parseBlockAddress accepts `track/sector` or a plain LBA number.
func parseBlockAddress(
	im *cbmimage.Image, arg string) (cbmimage.BlockAddress, error) {

	if t, s, ok := strings.Cut(arg, "/"); ok {
		track, err := strconv.Atoi(t)
		if err != nil {
			return cbmimage.BlockAddress{},
				fmt.Errorf("invalid track '%s'", t)
		}
		sector, err := strconv.Atoi(s)
		if err != nil {
			return cbmimage.BlockAddress{},
				fmt.Errorf("invalid sector '%s'", s)
		}
		return im.BlockFromTS(track, sector)
	}

	lba, err := strconv.Atoi(arg)
	if err != nil {
		return cbmimage.BlockAddress{}, fmt.Errorf("invalid LBA '%s'", arg)
	}
	return im.BlockFromLBA(lba)
}

// dump writes a hex dump of buffer to w, 16 bytes per row.
func dump(w io.Writer, buffer []byte) {

	for row := 0; row < len(buffer); row += 16 {
		fmt.Fprintf(w, "%04X:  ", row)

		end := row + 16
		if end > len(buffer) {
			end = len(buffer)
		}

		for col := row; col < end; col++ {
			fmt.Fprintf(w, "%02X ", buffer[col])
		}
		for col := end; col < row+16; col++ {
			fmt.Fprint(w, "   ")
		}

		for col := row; col < end; col++ {
			ch := buffer[col]
			if ch >= 0x20 && ch < 127 {
				fmt.Fprintf(w, "%c", ch)
			} else {
				fmt.Fprint(w, ".")
			}
		}
		fmt.Fprintln(w)
	}
}
