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
	"os"
)

//
func NewValidate() *Validate {

	v := &Validate{}
	v.Runner = *NewRunner(
		"validate [-f|--format {type}] [-c|--chdir {no}] {image file}",
		"validate an image",
		`
Use the validate command to cross-check the contents of a disk image
against its block availability map. All directory entries and their block
chains are followed; loops, blocks shared between files, defective REL
side-sectors and GEOS structures, and disagreements between the derived
allocation and the BAM are reported.
`,
		v.Run)

	v.AddBaseSettings()

	return v
}

//
type Validate struct {
	Runner
}

//
func (v *Validate) Run() error {

	v.ParseSettings()

	im, err := v.openImage()
	if err != nil {
		return err
	}
	defer im.Close()

	return im.Validate()
}

//
func NewFAT() *FAT {

	f := &FAT{}
	f.Runner = *NewRunner(
		"fat [--disklayout={width}] [-f|--format {type}] {image file}",
		"create and output the FAT of an image",
		`
Use the fat command to dump the file allocation table derived from the
link chains of a disk image. With --disklayout, the dump is arranged by
track, with at most the given number of entries per line.
`,
		f.Run)

	f.AddBaseSettings()

	f.BindInt(&f.DiskLayout, "disklayout", "l", 0,
		"arrange the dump by track, with this many entries per line", false)

	return f
}

//
type FAT struct {
	Runner

	DiskLayout int
}

//
func (f *FAT) Run() error {

	f.ParseSettings()

	im, err := f.openImage()
	if err != nil {
		return err
	}
	defer im.Close()

	return im.DumpFAT(os.Stdout, f.DiskLayout)
}
