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
func TestGuessType(t *testing.T) {

	for _, tc := range []struct {
		size     int
		typ      ImageType
		errorMap bool
	}{
		{174848, TypeD64, false},
		{174848 + 683, TypeD64, true},
		{174848 + 5*17*256, TypeD64_40Track, false},
		{174848 + 7*17*256, TypeD64_42Track, false},
		{174848 + 7*256, TypeD40, false},
		{349696, TypeD71, false},
		{349696 + 1366, TypeD71, true},
		{819200, TypeD81, false},
		{533248, TypeD80, false},
		{1066496, TypeD82, false},
		{3240 * 256, TypeD1M, false},
		{3240 * 256 * 2, TypeD2M, false},
		{3240 * 256 * 4, TypeD4M, false},
	} {
		typ, errorMap, err := GuessType(tc.size)
		if err != nil {
			t.Errorf("size %d: %v", tc.size, err)
			continue
		}
		if typ != tc.typ || errorMap != tc.errorMap {
			t.Errorf("size %d gives type %d, error map %v",
				tc.size, typ, errorMap)
		}
	}

	if _, _, err := GuessType(175000 + 683); err == nil {
		t.Error("invalid size accepted")
	}
}

//
func TestOpenUnknownSize(t *testing.T) {
	if _, err := Open(make([]byte, 12345), TypeUnknown); err == nil {
		t.Error("opening a buffer of unknown size succeeded")
	}
}

//
func TestOpenWithErrorMap(t *testing.T) {

	buf := make([]byte, 174848+683)
	for ix := 0; ix < 683; ix++ {
		buf[174848+ix] = 0x01
	}

	im, err := Open(buf, TypeUnknown)
	if err != nil {
		t.Fatalf("cannot open D64 with error map: %v", err)
	}

	if im.Type() != TypeD64 {
		t.Errorf("type is %d, want D64", im.Type())
	}
	if len(im.Raw()) != 174848 {
		t.Errorf("raw size is %d, want 174848", len(im.Raw()))
	}

	em := im.ErrorMap()
	if len(em) != 683 {
		t.Fatalf("error map size is %d, want 683", len(em))
	}
	for ix, b := range em {
		if b != 0x01 {
			t.Fatalf("error map byte %d is %02X", ix, b)
		}
	}
}

// the 40 track variants share one size; only the hint tells them apart
func TestOpenHintedVariant(t *testing.T) {

	im, err := Open(make([]byte, 174848+5*17*256), TypeD64_40TrackSpeedDOS)
	if err != nil {
		t.Fatalf("cannot open SpeedDOS variant: %v", err)
	}

	if im.TypeName() != "D64_40TRACK_SPEEDDOS" {
		t.Errorf("type name is %q", im.TypeName())
	}
	if im.MaxTrack() != 40 {
		t.Errorf("max track is %d, want 40", im.MaxTrack())
	}
}

//
func TestOpenSizeMismatch(t *testing.T) {
	if _, err := Open(make([]byte, 174848), TypeD81); err == nil {
		t.Error("opening with a contradicting hint succeeded")
	}
}

//
func TestTypeByName(t *testing.T) {

	for _, tc := range []struct {
		name string
		typ  ImageType
	}{
		{"D64", TypeD64},
		{"d64", TypeD64},
		{"D64_40", TypeD64_40Track},
		{"d1m", TypeD1M},
		{"D82", TypeD82},
		{"floppy", TypeUnknown},
	} {
		if got := TypeByName(tc.name); got != tc.typ {
			t.Errorf("TypeByName(%q) = %d, want %d", tc.name, got, tc.typ)
		}
	}
}

//
func TestGeosDetection(t *testing.T) {

	buf := make([]byte, 174848)

	// GEOS signature and border block in the info block at 18/0
	const info = (358 - 1) * 256
	copy(buf[info+0xAD:], "GEOS format V1.")
	buf[info+0xAB] = 19
	buf[info+0xAC] = 4

	im, err := Open(buf, TypeD64)
	if err != nil {
		t.Fatalf("cannot open: %v", err)
	}

	if !im.IsGeos() {
		t.Fatal("GEOS image not detected")
	}

	border := im.top().geosBorder
	if border.Track != 19 || border.Sector != 4 {
		t.Errorf("border block is %v", border)
	}

	h := im.DirHeader()
	if h == nil || !h.IsGeos {
		t.Error("header does not report GEOS")
	}
}
