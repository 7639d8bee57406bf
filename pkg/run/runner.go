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
	"github.com/OpenCBM/libcbmimage/pkg/format"
)

/*
	Runner is the base for all commands that operate on a single image
	file. It carries the common settings: an optional image type hint, and
	a chdir path of partition numbers to descend into before the command
	runs.
*/
type Runner struct {
	Command

	FormatHint string
	Chdir      []int
}

//
func NewRunner(use, short, long string, exec func() error) *Runner {
	r := &Runner{}
	r.Command = *NewCommand(use, short, long, exec)
	return r
}

//
func (r *Runner) AddBaseSettings() {

	r.BindString(&r.FormatHint, "format", "f", "CBMIMAGE_FORMAT", "",
		"image format hint, e.g. D64 or D64_40; otherwise derived from file name and size",
		false)

	r.BindIntSlice(&r.Chdir, "chdir", "c",
		"partition numbers to chdir into, outermost first")
}

/*
	openImage loads the image file given as first command line argument,
	and descends into the partitions requested with --chdir. Diagnostics of
	subsequent operations go to stdout.
*/
func (r *Runner) openImage() (*cbmimage.Image, error) {

	if len(r.Args) < 1 {
		return nil, fmt.Errorf("no image file given")
	}

	hint := cbmimage.TypeUnknown
	if r.FormatHint != "" {
		if hint = cbmimage.TypeByName(r.FormatHint); hint == cbmimage.TypeUnknown {
			return nil, fmt.Errorf("unknown format: %s", r.FormatHint)
		}
	}

	im, err := format.Load(r.Args[0], hint)
	if err != nil {
		return nil, err
	}

	im.SetReporter(func(msg string) { fmt.Println(msg) })

	for _, no := range r.Chdir {
		if err := chdirNumber(im, no); err != nil {
			return nil, err
		}
	}

	return im, nil
}

// chdirNumber descends into the no-th live entry of the active directory.
func chdirNumber(im *cbmimage.Image, no int) error {

	dir, err := im.OpenDir()
	if err != nil {
		return err
	}
	defer dir.Close()

	counter := 0
	for dir.Next() {
		e := dir.Entry()
		if e.IsDeleted() {
			continue
		}
		if counter++; counter == no {
			name, _ := e.Name.Extract()
			if err := im.Chdir(e); err != nil {
				return fmt.Errorf("cannot chdir into \"%s\": %v", name, err)
			}
			return nil
		}
	}

	return fmt.Errorf("there is no directory entry no. %d", no)
}
