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
)

//
func NewShowFile() *ShowFile {

	s := &ShowFile{}
	s.Runner = *NewRunner(
		"showfile --numerical={no} [-f|--format {type}] [-c|--chdir {no}] {image file}",
		"show/extract a file from an image",
		`
Use the showfile command to dump the contents of a file stored on a disk
image. The file is selected by its position in the directory, counting
from 1.
`,
		s.Run)

	s.AddBaseSettings()

	s.BindInt(&s.Numerical, "numerical", "n", 0,
		"number of the file to show, counting from 1", true)

	return s
}

//
type ShowFile struct {
	Runner

	Numerical int
}

//
func (s *ShowFile) Run() error {

	s.ParseSettings()

	im, err := s.openImage()
	if err != nil {
		return err
	}
	defer im.Close()

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

		if counter++; counter != s.Numerical {
			continue
		}

		name, _ := e.Name.Extract()
		fmt.Printf("Opening file \"%s\":\n", name)

		f, err := im.OpenFile(e)
		if err != nil {
			return err
		}
		defer f.Close()

		buf := make([]byte, im.BytesInBlock())
		for {
			n, err := f.Read(buf)
			if n > 0 {
				dump(os.Stdout, buf[:n])
			}
			if err == io.EOF {
				return nil
			}
			if err != nil {
				return err
			}
		}
	}

	return fmt.Errorf("there is no file no. %d", s.Numerical)
}
