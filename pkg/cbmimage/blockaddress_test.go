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

//
func emptyImage(t *testing.T, typ ImageType) *Image {
	t.Helper()

	m := mappingForType(typ)
	if m == nil {
		t.Fatalf("no size mapping for type %d", typ)
	}

	im, err := Open(make([]byte, m.size), typ)
	if err != nil {
		t.Fatalf("cannot open empty %s: %v", m.name, err)
	}
	return im
}

//
func TestOpenD64(t *testing.T) {

	im := emptyImage(t, TypeD64)

	if im.MaxTrack() != 35 {
		t.Errorf("max track is %d, want 35", im.MaxTrack())
	}
	if im.MaxSectors() != 21 {
		t.Errorf("max sectors is %d, want 21", im.MaxSectors())
	}
	if im.SectorsInTrack(18) != 19 {
		t.Errorf("sectors in track 18 is %d, want 19", im.SectorsInTrack(18))
	}
	if im.MaxLBA() != 683 {
		t.Errorf("max LBA is %d, want 683", im.MaxLBA())
	}

	b, err := im.BlockFromTS(17, 20)
	if err != nil {
		t.Fatalf("block 17/20: %v", err)
	}
	if b.LBA != 357 {
		t.Errorf("LBA of 17/20 is %d, want 357", b.LBA)
	}
}

//
func TestOpenD40(t *testing.T) {

	im := emptyImage(t, TypeD40)

	if im.MaxTrack() != 35 {
		t.Errorf("max track is %d, want 35", im.MaxTrack())
	}
	if im.SectorsInTrack(18) != 20 {
		t.Errorf("sectors in track 18 is %d, want 20", im.SectorsInTrack(18))
	}
	if im.MaxLBA() != 690 {
		t.Errorf("max LBA is %d, want 690", im.MaxLBA())
	}
}

//
func TestOpenD71Mirror(t *testing.T) {

	im := emptyImage(t, TypeD71)

	if im.MaxTrack() != 70 {
		t.Fatalf("max track is %d, want 70", im.MaxTrack())
	}

	for track := 1; track <= 35; track++ {
		if im.SectorsInTrack(track) != im.SectorsInTrack(track+35) {
			t.Errorf("track %d has %d sectors, track %d has %d",
				track, im.SectorsInTrack(track),
				track+35, im.SectorsInTrack(track+35))
		}
	}
}

// every supported geometry must satisfy the basic addressing invariants
func TestAddressingInvariants(t *testing.T) {

	for _, typ := range []ImageType{
		TypeD40, TypeD64, TypeD64_40Track, TypeD64_42Track, TypeD71,
		TypeD81, TypeD80, TypeD82, TypeD1M, TypeD2M, TypeD4M,
	} {
		im := emptyImage(t, typ)
		name := im.TypeName()

		// per-track counts sum up to the highest LBA
		sum := 0
		for track := 1; track <= im.MaxTrack(); track++ {
			sum += im.SectorsInTrack(track)
		}
		if sum != im.MaxLBA() {
			t.Errorf("%s: sector counts sum to %d, want %d",
				name, sum, im.MaxLBA())
		}

		if im.IsPartitionTable() {
			// at the outer level of a CMD FD image, advancing is bounded
			// by the system area, so the full sweep does not apply
			continue
		}

		// advancing from 1/0 enumerates LBAs 1, 2, 3, ... in order
		b, err := im.BlockFromTS(1, 0)
		if err != nil {
			t.Fatalf("%s: block 1/0: %v", name, err)
		}
		if b.LBA != 1 {
			t.Errorf("%s: LBA of 1/0 is %d, want 1", name, b.LBA)
		}

		lba := 1
		for {
			// both representations round-trip
			fromTS, err := im.BlockFromTS(b.Track, b.Sector)
			if err != nil {
				t.Fatalf("%s: from TS %d/%d: %v", name, b.Track, b.Sector, err)
			}
			fromLBA, err := im.BlockFromLBA(b.LBA)
			if err != nil {
				t.Fatalf("%s: from LBA %d: %v", name, b.LBA, err)
			}
			if fromTS != b || fromLBA != b {
				t.Fatalf("%s: round trip of %v gives %v / %v",
					name, b, fromTS, fromLBA)
			}

			if err := im.Advance(&b); err != nil {
				break
			}
			if lba++; b.LBA != lba {
				t.Fatalf("%s: advance gave LBA %d, want %d", name, b.LBA, lba)
			}
		}

		if b.LBA != im.MaxLBA() {
			t.Errorf("%s: advance stopped at LBA %d, want %d",
				name, b.LBA, im.MaxLBA())
		}
	}
}

//
func TestAdvanceInTrack(t *testing.T) {

	im := emptyImage(t, TypeD64)

	b, _ := im.BlockFromTS(1, 19)
	if err := im.AdvanceInTrack(&b); err != nil {
		t.Fatalf("advance in track: %v", err)
	}
	if b.Track != 1 || b.Sector != 20 {
		t.Errorf("got %d/%d, want 1/20", b.Track, b.Sector)
	}

	if err := im.AdvanceInTrack(&b); err == nil {
		t.Error("advance past last sector of track succeeded")
	}

	last := BlockAddress{Track: 35, Sector: 16, LBA: 683}
	if err := im.Advance(&last); err == nil {
		t.Error("advance past last block of image succeeded")
	}
}

//
func TestAddBlocks(t *testing.T) {

	im := emptyImage(t, TypeD64)

	result, _ := im.BlockFromTS(2, 0) // LBA 22
	adder, _ := im.BlockFromTS(1, 9)  // LBA 10

	if err := im.AddBlocks(&result, adder); err != nil {
		t.Fatalf("add: %v", err)
	}
	if result.LBA != 31 {
		t.Errorf("add gave LBA %d, want 31", result.LBA)
	}

	// unused adder leaves the result alone
	keep := result
	if err := im.AddBlocks(&result, BlockAddress{}); err != nil {
		t.Fatalf("add unused: %v", err)
	}
	if result != keep {
		t.Errorf("adding the unused block changed the result to %v", result)
	}

	// unused result takes the adder
	result = BlockAddress{}
	if err := im.AddBlocks(&result, adder); err != nil {
		t.Fatalf("add to unused: %v", err)
	}
	if result != adder {
		t.Errorf("got %v, want %v", result, adder)
	}
}

//
func TestExistenceChecks(t *testing.T) {

	im := emptyImage(t, TypeD64)

	for _, tc := range []struct {
		track, sector int
		want          bool
	}{
		{1, 0, true},
		{1, 20, true},
		{1, 21, false},
		{18, 18, true},
		{18, 19, false},
		{35, 16, true},
		{35, 17, false},
		{36, 0, false},
		{0, 0, false},
	} {
		if got := im.TSExists(tc.track, tc.sector); got != tc.want {
			t.Errorf("TSExists(%d, %d) = %v, want %v",
				tc.track, tc.sector, got, tc.want)
		}
	}

	if im.LBAExists(0) {
		t.Error("LBA 0 must not exist")
	}
	if !im.LBAExists(1) || !im.LBAExists(683) {
		t.Error("LBAs 1 and 683 must exist")
	}
	if im.LBAExists(684) {
		t.Error("LBA 684 must not exist")
	}
}

// S4: write a geometry marker into every block, then check the raw buffer
func TestMarkerWriteBack(t *testing.T) {

	im := emptyImage(t, TypeD64)

	buf := make([]byte, im.BytesInBlock())

	b, _ := im.BlockFromTS(1, 0)
	for {
		for ix := range buf {
			buf[ix] = 0
		}
		buf[0] = byte(b.Track)
		buf[1] = byte(b.Sector)
		buf[2] = 0xFF
		buf[3] = 0xFF
		buf[4] = byte(b.LBA)
		buf[5] = byte(b.LBA >> 8)

		if err := im.WriteBlock(b, buf); err != nil {
			t.Fatalf("write block %v: %v", b, err)
		}

		if err := im.Advance(&b); err != nil {
			break
		}
	}

	raw := im.Raw()
	b, _ = im.BlockFromTS(1, 0)
	for {
		offset := (b.LBA - 1) * 256
		blk := raw[offset : offset+256]

		if int(blk[0]) != b.Track || int(blk[1]) != b.Sector ||
			blk[2] != 0xFF || blk[3] != 0xFF ||
			int(blk[4]) != b.LBA&0xFF || int(blk[5]) != b.LBA>>8 {
			t.Fatalf("block %v has marker % X", b, blk[:6])
		}
		for ix := 6; ix < 256; ix++ {
			if blk[ix] != 0 {
				t.Fatalf("block %v has stray byte at %d", b, ix)
			}
		}

		if err := im.Advance(&b); err != nil {
			break
		}
	}
}
