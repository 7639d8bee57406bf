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
func NewDir() *Dir {

	d := &Dir{}
	d.Runner = *NewRunner(
		"dir [-f|--format {type}] [-c|--chdir {no}] {image file}",
		"show the directory of an image",
		"\nUse the dir command to list the directory of a disk image.",
		d.Run)

	d.AddBaseSettings()

	return d
}

//
type Dir struct {
	Runner
}

//
func (d *Dir) Run() error {

	d.ParseSettings()

	im, err := d.openImage()
	if err != nil {
		return err
	}
	defer im.Close()

	return printDir(im)
}

//
func printDir(im *cbmimage.Image) error {

	header := im.DirHeader()

	if header != nil {
		name, extra := header.Name.Extract()
		fmt.Printf("%5d \"%s\"%s\n", 0, name, extra)
	}

	dir, err := im.OpenDir()
	if err != nil {
		return err
	}
	defer dir.Close()

	for dir.Next() {

		e := dir.Entry()
		if e.IsDeleted() {
			continue
		}

		name, extra := e.Name.Extract()

		closed := " "
		if !e.Closed {
			closed = "*"
		}
		locked := " "
		if e.Locked {
			locked = "<"
		}

		fmt.Printf("%5d %-18s%s%s%s - %3d/%3d",
			e.BlockCount, fmt.Sprintf("\"%s\"%s", name, extra),
			closed, e.Type, locked,
			e.StartBlock.Track, e.StartBlock.Sector)

		if e.HasDatetime {
			fmt.Printf("   %02d.%02d.%04d %02d:%02d",
				e.Day, e.Month, e.Year, e.Hour, e.Minute)
		} else if e.IsGeos || e.Type == cbmimage.DirTypeREL {
			fmt.Printf("                   ")
		}

		if e.IsGeos {
			vlir := ""
			if e.GeosVLIR {
				vlir = "VLIR"
			}
			fmt.Printf(" - GEOS %-5s[%3d] %3d/%3d",
				vlir, e.GeosFiletype,
				e.GeosInfoBlock.Track, e.GeosInfoBlock.Sector)
		} else if e.Type == cbmimage.DirTypeREL {
			fmt.Printf(" - [%3d] %3d/%3d",
				e.RelRecordLength,
				e.RelSideSector.Track, e.RelSideSector.Sector)
		}

		fmt.Println()
	}

	if header != nil {
		fmt.Printf("%5d BLOCKS FREE\n", header.FreeBlocks)
	}

	return nil
}
