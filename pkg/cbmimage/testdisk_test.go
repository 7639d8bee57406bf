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
	"testing"
)

// testDisk builds synthetic D64 images for the tests: an empty formatted
// disk plus helpers for placing files, directory entries and a BAM that
// matches the block usage.
type testDisk struct {
	t    *testing.T
	im   *Image
	used map[[2]int]bool

	dirEntries [][]byte
	messages   []string
}

//
func newTestD64(t *testing.T) *testDisk {
	t.Helper()

	im, err := Open(make([]byte, 174848), TypeD64)
	if err != nil {
		t.Fatalf("cannot open empty D64: %v", err)
	}

	d := &testDisk{
		t:    t,
		im:   im,
		used: map[[2]int]bool{},
	}

	im.SetReporter(func(msg string) {
		d.messages = append(d.messages, msg)
	})

	d.use(18, 0)
	d.use(18, 1)
	d.setLink(18, 0, 18, 1)
	d.setLink(18, 1, 0, 0xFF)

	return d
}

//
func (d *testDisk) use(track, sector int) {
	d.used[[2]int{track, sector}] = true
}

//
func (d *testDisk) block(track, sector int) []byte {
	d.t.Helper()

	b, err := d.im.BlockFromTS(track, sector)
	if err != nil {
		d.t.Fatalf("block %d/%d: %v", track, sector, err)
	}
	data, err := addressOfBlock(d.im.top(), b)
	if err != nil {
		d.t.Fatalf("block %d/%d: %v", track, sector, err)
	}
	return data
}

//
func (d *testDisk) setLink(track, sector, nextTrack, nextSector int) {
	data := d.block(track, sector)
	data[0] = byte(nextTrack)
	data[1] = byte(nextSector)
}

// chainFile links the given blocks into a chain, marking them used. The
// last block's link carries lastUsed as its used-bytes count.
func (d *testDisk) chainFile(blocks [][2]int, lastUsed byte) {
	for ix, b := range blocks {
		d.use(b[0], b[1])
		if ix < len(blocks)-1 {
			d.setLink(b[0], b[1], blocks[ix+1][0], blocks[ix+1][1])
		} else {
			d.setLink(b[0], b[1], 0, int(lastUsed))
		}
	}
}

// rawEntry builds a 32 byte directory entry.
func rawEntry(typ byte, startTrack, startSector int, name string,
	blockCount int) []byte {

	e := make([]byte, dirEntrySize)
	e[dirEntryTypeOffset] = typ
	e[dirEntryTrackOffset] = byte(startTrack)
	e[dirEntrySectorOffset] = byte(startSector)

	for ix := 0; ix < dirEntryNameLength; ix++ {
		e[dirEntryNameOffset+ix] = dirEntryNameShiftSpace
	}
	copy(e[dirEntryNameOffset:dirEntryNameOffset+dirEntryNameLength], name)

	e[dirEntryBlockCountLow] = byte(blockCount)
	e[dirEntryBlockCountHigh] = byte(blockCount >> 8)

	return e
}

// addEntry appends a directory entry; writeDir places all of them.
func (d *testDisk) addEntry(e []byte) {
	d.dirEntries = append(d.dirEntries, e)
}

/*
	writeDir writes the collected entries into the directory, spreading
	them over chained blocks on track 18 starting at 18/1 (eight entries
	per block).
*/
func (d *testDisk) writeDir() {
	d.t.Helper()

	sector := 1
	for ix := 0; ix < len(d.dirEntries) || ix == 0; ix += 8 {

		data := d.block(18, sector)
		for slot := 0; slot < 8 && ix+slot < len(d.dirEntries); slot++ {
			copy(data[slot*dirEntrySize:], d.dirEntries[ix+slot])
		}
		d.use(18, sector)

		if ix+8 < len(d.dirEntries) {
			// CBM DOS interleaves directory sectors by 3
			next := sector + 3
			d.setLink(18, sector, 18, next)
			sector = next
		} else {
			d.setLink(18, sector, 0, 0xFF)
		}
	}
}

// writeBAM derives the BAM of the image from the used-block set, with the
// standard 1541 layout on 18/0.
func (d *testDisk) writeBAM() {
	d.t.Helper()

	data := d.block(18, 0)
	data[0] = 18
	data[1] = 1
	data[2] = 0x41

	for track := 1; track <= 35; track++ {
		sectors := d.im.SectorsInTrack(track)
		free := 0
		var mask [3]byte
		for sector := 0; sector < sectors; sector++ {
			if !d.used[[2]int{track, sector}] {
				free++
				mask[sector/8] |= 1 << uint(sector%8)
			}
		}
		base := 4 * track
		data[base] = byte(free)
		data[base+1] = mask[0]
		data[base+2] = mask[1]
		data[base+3] = mask[2]
	}

	// disk name, padded with shifted spaces
	for ix := 0x90; ix <= 0xAA; ix++ {
		data[ix] = dirEntryNameShiftSpace
	}
	copy(data[0x90:], "TEST DISK")
	copy(data[0xA2:], "ID")
	copy(data[0xA5:], "2A")
}
