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

// writeRawD64BAM writes a formatted D64 BAM into a raw buffer at the given
// block offset, with the directory blocks 18/0 and 18/1 taken.
func writeRawD64BAM(buf []byte, offset int, diskname string) {

	bam := buf[offset : offset+256]
	bam[0] = 18
	bam[1] = 1
	bam[2] = 0x41

	for track := 1; track <= 35; track++ {
		sectors := sectorsInTrackD64[track]
		free := sectors
		var mask [3]byte
		for sector := 0; sector < sectors; sector++ {
			mask[sector/8] |= 1 << uint(sector%8)
		}
		if track == 18 {
			free -= 2
			mask[0] &^= 0x03
		}
		base := 4 * track
		bam[base] = byte(free)
		bam[base+1] = mask[0]
		bam[base+2] = mask[1]
		bam[base+3] = mask[2]
	}

	for ix := 0x90; ix <= 0xAA; ix++ {
		bam[ix] = dirEntryNameShiftSpace
	}
	copy(bam[0x90:], diskname)
}

/*
	S9: open a D1M image, read the partition table, chdir into a D64
	partition, enumerate its directory, and return to the partition table.
*/
func TestCMDPartitionTraversal(t *testing.T) {

	buf := make([]byte, 3240*256)

	// a D64 partition occupying the first 684 physical blocks
	const d64BAMOffset = (358 - 1) * 256
	const d64DirOffset = (359 - 1) * 256

	writeRawD64BAM(buf, d64BAMOffset, "PART ONE")
	buf[d64DirOffset] = 0
	buf[d64DirOffset+1] = 0xFF

	// the partition table lives in the system area at 81/8
	const tableOffset = (3209 - 1) * 256

	table := buf[tableOffset : tableOffset+256]
	table[0] = 0
	table[1] = 0xFF

	row := table[0:dirEntrySize]
	row[dirEntryTypeOffset] = 0x02 // D64 partition
	row[dirEntryPartStartLow] = 0
	row[dirEntryPartStartHigh] = 0
	for ix := 0; ix < dirEntryNameLength; ix++ {
		row[dirEntryNameOffset+ix] = dirEntryNameShiftSpace
	}
	copy(row[dirEntryNameOffset:], "PARTITION 1")
	row[dirEntryPartCountLow] = 0x56 // 342 * 2 = 684 blocks
	row[dirEntryPartCountHigh] = 0x01

	im, err := Open(buf, TypeD1M)
	if err != nil {
		t.Fatalf("cannot open D1M: %v", err)
	}

	if !im.IsPartitionTable() {
		t.Fatal("D1M root is not a partition table")
	}
	if im.MaxTrack() != 81 || im.MaxSectors() != 40 || im.MaxLBA() != 3240 {
		t.Fatalf("D1M geometry is %d/%d/%d",
			im.MaxTrack(), im.MaxSectors(), im.MaxLBA())
	}
	if im.DirHeader() != nil {
		t.Error("partition table has a directory header")
	}

	entries := liveEntries(t, im)
	if len(entries) != 1 {
		t.Fatalf("got %d partition rows, want 1", len(entries))
	}

	part := entries[0]
	if part.Type != DirTypePartD64 {
		t.Fatalf("partition type is %v, want D64", part.Type)
	}
	if part.StartBlock.LBA != 1 {
		t.Errorf("partition starts at LBA %d, want 1", part.StartBlock.LBA)
	}
	if part.BlockCount != 684 {
		t.Errorf("partition has %d blocks, want 684", part.BlockCount)
	}
	if name, _ := part.Name.Extract(); name != "PARTITION 1" {
		t.Errorf("partition name is %q", name)
	}

	if err := im.Chdir(&part); err != nil {
		t.Fatalf("chdir: %v", err)
	}

	if im.IsPartitionTable() {
		t.Error("partition still looks like a partition table")
	}
	if im.TypeName() != "D64" {
		t.Errorf("partition type name is %q", im.TypeName())
	}
	if im.MaxTrack() != 35 || im.SectorsInTrack(18) != 19 || im.MaxLBA() != 683 {
		t.Errorf("partition geometry is %d/%d/%d",
			im.MaxTrack(), im.SectorsInTrack(18), im.MaxLBA())
	}

	h := im.DirHeader()
	if h == nil {
		t.Fatal("partition has no directory header")
	}
	if name, _ := h.Name.Extract(); name != "PART ONE" {
		t.Errorf("partition disk name is %q", name)
	}
	if h.FreeBlocks != 664 {
		t.Errorf("partition has %d free blocks, want 664", h.FreeBlocks)
	}

	if inner := collectEntries(t, im); len(inner) != 0 {
		t.Errorf("empty partition directory yields %d entries", len(inner))
	}

	if err := im.ChdirClose(); err != nil {
		t.Fatalf("chdir close: %v", err)
	}

	if !im.IsPartitionTable() || im.MaxTrack() != 81 {
		t.Error("not back at the partition table")
	}
	if again := liveEntries(t, im); len(again) != 1 {
		t.Error("partition table lost after returning")
	}

	if err := im.ChdirClose(); err == nil {
		t.Error("popping the root frame succeeded")
	}
}

//
func TestD81PartitionChdir(t *testing.T) {

	buf := make([]byte, 819200)

	// root header and empty directory
	const rootInfo = (39*40 + 0) * 256
	const rootDir = (39*40 + 3) * 256

	for ix := 0x04; ix <= 0x1C; ix++ {
		buf[rootInfo+ix] = dirEntryNameShiftSpace
	}
	copy(buf[rootInfo+0x04:], "EIGHTY-ONE")
	buf[rootDir] = 0
	buf[rootDir+1] = 0xFF

	// a partition covering tracks 5 to 7
	entry := buf[rootDir : rootDir+dirEntrySize]
	entry[dirEntryTypeOffset] = 0x85
	entry[dirEntryTrackOffset] = 5
	entry[dirEntrySectorOffset] = 0
	for ix := 0; ix < dirEntryNameLength; ix++ {
		entry[dirEntryNameOffset+ix] = dirEntryNameShiftSpace
	}
	copy(entry[dirEntryNameOffset:], "PART")
	entry[dirEntryBlockCountLow] = 120

	// the partition's own header and directory
	const subInfo = (4*40 + 0) * 256
	const subDir = (4*40 + 3) * 256

	for ix := 0x04; ix <= 0x1C; ix++ {
		buf[subInfo+ix] = dirEntryNameShiftSpace
	}
	copy(buf[subInfo+0x04:], "SUB")
	buf[subDir] = 0
	buf[subDir+1] = 0xFF

	im, err := Open(buf, TypeD81)
	if err != nil {
		t.Fatalf("cannot open D81: %v", err)
	}

	if im.MaxTrack() != 80 || im.MaxSectors() != 40 || im.MaxLBA() != 3200 {
		t.Fatalf("D81 geometry is %d/%d/%d",
			im.MaxTrack(), im.MaxSectors(), im.MaxLBA())
	}

	entries := collectEntries(t, im)
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}

	part := entries[0]
	if part.Type != DirTypePart1581 {
		t.Fatalf("entry type is %v, want 1581 partition", part.Type)
	}

	if err := im.Chdir(&part); err != nil {
		t.Fatalf("chdir: %v", err)
	}

	h := im.DirHeader()
	if h == nil {
		t.Fatal("partition has no header")
	}
	if name, _ := h.Name.Extract(); name != "SUB" {
		t.Errorf("partition name is %q", name)
	}

	if inner := collectEntries(t, im); len(inner) != 0 {
		t.Errorf("empty partition directory yields %d entries", len(inner))
	}

	if err := im.ChdirClose(); err != nil {
		t.Fatalf("chdir close: %v", err)
	}

	if again := collectEntries(t, im); len(again) != 1 {
		t.Error("root directory lost after returning")
	}
}

// a partition that is not track aligned cannot be entered
func TestD81PartitionMisaligned(t *testing.T) {

	buf := make([]byte, 819200)

	const rootDir = (39*40 + 3) * 256
	buf[rootDir] = 0
	buf[rootDir+1] = 0xFF

	entry := buf[rootDir : rootDir+dirEntrySize]
	entry[dirEntryTypeOffset] = 0x85
	entry[dirEntryTrackOffset] = 5
	entry[dirEntrySectorOffset] = 1 // not at sector 0
	entry[dirEntryNameOffset] = 'P'
	entry[dirEntryBlockCountLow] = 120

	im, err := Open(buf, TypeD81)
	if err != nil {
		t.Fatalf("cannot open D81: %v", err)
	}

	entries := collectEntries(t, im)
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}

	if err := im.Chdir(&entries[0]); err == nil {
		t.Error("chdir into a misaligned partition succeeded")
	}
	if len(im.stack) != 1 {
		t.Error("failed chdir left a frame on the stack")
	}
}
