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

	"github.com/OpenCBM/libcbmimage/pkg/cbmimage"
)

//
func NewBAM() *BAM {

	b := &BAM{}
	b.Runner = *NewRunner(
		"bam [-f|--format {type}] [-c|--chdir {no}] {image file}",
		"show the BAM of an image",
		`
Use the bam command to show the block availability map of a disk image.
Each block is shown as one character:

	.	free, still in freshly formatted state
	:	free, but carries data
	*	used
	?	unknown
`,
		b.Run)

	b.AddBaseSettings()

	return b
}

//
type BAM struct {
	Runner
}

//
func (b *BAM) Run() error {

	b.ParseSettings()

	im, err := b.openImage()
	if err != nil {
		return err
	}
	defer im.Close()

	block, err := im.BlockFromTS(1, 0)
	if err != nil {
		return err
	}

	for {
		if block.Sector == 0 {
			fmt.Printf("\n%3d: (%2d) ",
				block.Track, im.FreeOnTrack(block.Track))
		}

		switch im.BAMState(block) {
		case cbmimage.BAMReallyFree:
			fmt.Print(".")
		case cbmimage.BAMFree:
			fmt.Print(":")
		case cbmimage.BAMUsed:
			fmt.Print("*")
		case cbmimage.BAMUnknown:
			fmt.Print("?")
		}

		if im.Advance(&block) != nil {
			break
		}
	}
	fmt.Println()

	return nil
}

//
func NewCheckBAM() *CheckBAM {

	c := &CheckBAM{}
	c.Runner = *NewRunner(
		"checkbam [-f|--format {type}] [-c|--chdir {no}] {image file}",
		"check the BAM for consistency",
		"\nUse the checkbam command to check the BAM of a disk image for consistency.",
		c.Run)

	c.AddBaseSettings()

	return c
}

//
type CheckBAM struct {
	Runner
}

//
func (c *CheckBAM) Run() error {

	c.ParseSettings()

	im, err := c.openImage()
	if err != nil {
		return err
	}
	defer im.Close()

	return im.CheckBAMConsistency()
}
