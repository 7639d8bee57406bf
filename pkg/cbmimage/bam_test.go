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
	"strings"
	"testing"
)

// S5: on an empty, freshly formatted D64, all data blocks are really free,
// the directory blocks are used, and 664 blocks are free
func TestBAMStateFormatted(t *testing.T) {

	d := newTestD64(t)
	d.writeBAM()
	im := d.im

	b, _ := im.BlockFromTS(1, 0)
	for {
		state := im.BAMState(b)

		switch {
		case b.Track == 18 && b.Sector <= 1:
			if state != BAMUsed {
				t.Errorf("block %d/%d is %v, want used", b.Track, b.Sector, state)
			}
		case b.Track == 18:
			if state != BAMReallyFree {
				t.Errorf("block %d/%d is %v, want really free",
					b.Track, b.Sector, state)
			}
		default:
			if state != BAMReallyFree {
				t.Errorf("block %d/%d is %v, want really free",
					b.Track, b.Sector, state)
			}
		}

		if im.Advance(&b) != nil {
			break
		}
	}

	if free := im.BlocksFree(); free != 664 {
		t.Errorf("blocks free is %d, want 664", free)
	}
}

// a block that is free in the BAM but carries data is free, not really free
func TestBAMStateFreeWithData(t *testing.T) {

	d := newTestD64(t)
	d.writeBAM()

	data := d.block(5, 3)
	data[10] = 0x42

	b, _ := d.im.BlockFromTS(5, 3)
	if state := d.im.BAMState(b); state != BAMFree {
		t.Errorf("block with data is %v, want free", state)
	}
}

// the 1541 leaves 0x?? 0x01 0x01 ... in formatted blocks; that still
// counts as really free
func TestBAMStateGCRResidue(t *testing.T) {

	d := newTestD64(t)
	d.writeBAM()

	data := d.block(5, 4)
	data[0] = 0x4B
	for ix := 1; ix < len(data); ix++ {
		data[ix] = 0x01
	}

	b, _ := d.im.BlockFromTS(5, 4)
	if state := d.im.BAMState(b); state != BAMReallyFree {
		t.Errorf("GCR residue block is %v, want really free", state)
	}
}

//
func TestBAMConsistency(t *testing.T) {

	d := newTestD64(t)
	d.writeBAM()

	if err := d.im.CheckBAMConsistency(); err != nil {
		t.Errorf("consistency check failed: %v", err)
	}
	if len(d.messages) != 0 {
		t.Errorf("consistency check reported: %v", d.messages)
	}
}

// a counter that does not match the bitmap popcount is reported
func TestBAMCounterMismatch(t *testing.T) {

	d := newTestD64(t)
	d.writeBAM()

	data := d.block(18, 0)
	data[4*5] = 7 // track 5 really has 21 free

	d.im.CheckBAMConsistency()

	if !containsMessage(d.messages, "Reported 7 free blocks") {
		t.Errorf("counter mismatch not reported: %v", d.messages)
	}
}

// bits for sectors beyond the end of the track are reported
func TestBAMIllegalBits(t *testing.T) {

	d := newTestD64(t)
	d.writeBAM()

	// track 20 has 19 sectors, bits 19..23 of its bitmap must stay clear
	data := d.block(18, 0)
	data[4*20+3] |= 0x80

	d.im.CheckBAMConsistency()

	if !containsMessage(d.messages, "Bits marked which are not allowed") {
		t.Errorf("illegal bits not reported: %v", d.messages)
	}
}

//
func TestFreeOnTrack(t *testing.T) {

	d := newTestD64(t)
	d.use(17, 0)
	d.use(17, 1)
	d.use(17, 2)
	d.writeBAM()

	if free := d.im.FreeOnTrack(17); free != 18 {
		t.Errorf("free on track 17 is %d, want 18", free)
	}
	if free := d.im.FreeOnTrack(18); free != 17 {
		t.Errorf("free on track 18 is %d, want 17", free)
	}
}

//
func containsMessage(messages []string, substr string) bool {
	for _, m := range messages {
		if strings.Contains(m, substr) {
			return true
		}
	}
	return false
}

//
func TestReverseBitOrder(t *testing.T) {

	for _, tc := range []struct{ in, want byte }{
		{0x00, 0x00},
		{0xFF, 0xFF},
		{0x01, 0x80},
		{0xFE, 0x7F},
		{0xA5, 0xA5},
		{0x12, 0x48},
	} {
		if got := reverseBitOrder(tc.in); got != tc.want {
			t.Errorf("reverse of %02X is %02X, want %02X", tc.in, got, tc.want)
		}
	}
}
