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
	"io"
)

/*
	File reads the contents of a file on the image by following its chain.
	It implements io.Reader; the two link bytes of each block are skipped,
	and the last block contributes only its valid bytes.
*/
type File struct {
	image *Image
	entry DirEntry
	chain *Chain

	offset int
	remain int
	failed bool
}

// OpenFile opens the file described by a directory entry for reading.
func (im *Image) OpenFile(e *DirEntry) (*File, error) {

	if e == nil || e.image != im {
		return nil, fmt.Errorf("entry does not belong to this image")
	}

	chain, err := im.NewChain(e.StartBlock)
	if err != nil {
		return nil, err
	}

	f := &File{
		image: im,
		entry: *e,
		chain: chain,
	}

	used, err := chain.LastResult()
	switch {
	case err != nil:
		f.failed = true
	case used == 0:
		f.offset = 2
		f.remain = im.BytesInBlock() - f.offset
	case used > 1:
		f.offset = 2
		f.remain = used - f.offset + 1
	default:
		// a last block claiming one used byte cannot even hold its own
		// link, treat it as defective
		f.failed = true
	}

	return f, nil
}

//
func (f *File) Entry() *DirEntry {
	return &f.entry
}

// Read reads from the file, advancing along the chain as needed. At the
// end of the file it returns io.EOF.
func (f *File) Read(p []byte) (int, error) {

	if f.failed {
		return 0, fmt.Errorf("file chain is defective")
	}

	read := 0

	for len(p) > 0 {

		if f.remain > 0 {
			n := f.remain
			if n > len(p) {
				n = len(p)
			}
			copy(p[:n], f.chain.Data()[f.offset:f.offset+n])
			f.offset += n
			f.remain -= n
			p = p[n:]
			read += n
			continue
		}

		if f.chain.IsDone() {
			break
		}

		used, err := f.chain.Advance()
		if err == nil && f.chain.IsDone() {
			// the current block already was the last one of the chain
			break
		}
		switch {
		case err != nil:
			f.failed = true
			if read > 0 {
				return read, nil
			}
			return 0, err
		case used == 0:
			f.offset = 2
			f.remain = f.image.BytesInBlock() - f.offset
		case used > 1:
			f.offset = 2
			f.remain = used - f.offset + 1
		default:
			// last block with a single used byte, nothing to deliver
			f.remain = 0
		}

		if f.chain.IsDone() && f.remain == 0 {
			break
		}
	}

	if read == 0 {
		return 0, io.EOF
	}
	return read, nil
}

// Close releases the file state.
func (f *File) Close() {
	f.chain = nil
	f.remain = 0
	f.failed = true
}
