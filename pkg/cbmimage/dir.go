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
	"bytes"
	"fmt"
	"strings"
)

// directory entry layout, offsets into the 32 byte entry
const (
	dirEntryTypeOffset     = 0x02
	dirEntryTrackOffset    = 0x03
	dirEntrySectorOffset   = 0x04
	dirEntryNameOffset     = 0x05
	dirEntryNameLength     = 16
	dirEntrySSTrackOffset  = 0x15
	dirEntrySSSectorOffset = 0x16
	dirEntryRelRecordLen   = 0x17
	dirEntryGeosInfoTrack  = 0x15
	dirEntryGeosInfoSector = 0x16
	dirEntryGeosFiletype   = 0x17
	dirEntryGeosStructure  = 0x18
	dirEntryYear           = 0x19
	dirEntryMonth          = 0x1A
	dirEntryDay            = 0x1B
	dirEntryHour           = 0x1C
	dirEntryMinute         = 0x1D
	dirEntryBlockCountLow  = 0x1E
	dirEntryBlockCountHigh = 0x1F

	dirEntrySize = 0x20

	// type byte decomposition
	dirEntryTypeMask   = 0x0F
	dirEntryMaskLocked = 0x40
	dirEntryMaskClosed = 0x80

	// shifted space, delimits the name from the trailing suffix text
	dirEntryNameShiftSpace = 0xA0

	// partition table rows
	dirEntryPartStartLow  = 0x03
	dirEntryPartStartHigh = 0x04
	dirEntryPartCountLow  = 0x1E
	dirEntryPartCountHigh = 0x1F

	headerNameLength = 16
	dirNameTotal     = 24
)

/*
	DirName is the raw name of a directory entry or header: up to 24 bytes,
	with the first shifted space marking the end of the name proper; bytes
	after it up to Length are retained as suffix text (CBM DOS stores
	appended text such as `",8,1"` there).
*/
type DirName struct {
	Text     [dirNameTotal]byte
	EndIndex int
	Length   int
}

/*
	Extract splits the raw name into its name and suffix parts, converting
	shifted spaces to plain spaces. Example: A{SHIFT-SPACE},8,1 yields the
	name `A` and the extra text `,8,1`.
*/
func (n *DirName) Extract() (name string, extra string) {

	buf := make([]byte, n.Length)
	copy(buf, n.Text[:n.Length])
	for ix, b := range buf {
		if b == dirEntryNameShiftSpace {
			buf[ix] = ' '
		}
	}

	name = strings.TrimRight(string(buf[:n.EndIndex]), "\x00")
	if n.EndIndex+1 < n.Length {
		extra = strings.TrimRight(string(buf[n.EndIndex+1:]), " \x00")
	}

	return name, extra
}

//
func (n *DirName) fill(raw []byte, length int) {
	copy(n.Text[:], raw)
	n.Length = length
	if p := bytes.IndexByte(n.Text[:dirEntryNameLength], dirEntryNameShiftSpace); p >= 0 {
		n.EndIndex = p
	} else {
		n.EndIndex = dirEntryNameLength
	}
}

// DirHeader carries the disk name and the free block total of the active
// volume.
type DirHeader struct {
	Name       DirName
	FreeBlocks int
	IsGeos     bool
}

/*
	DirHeader returns the header of the active volume, or nil when the
	active frame is a partition table, which has no header.
*/
func (im *Image) DirHeader() *DirHeader {

	s := im.top()

	if s.isPartitionTable {
		return nil
	}

	h := &DirHeader{
		FreeBlocks: im.BlocksFree(),
		IsGeos:     s.isGeos,
	}

	data := s.info.Data()
	end := s.infoOffsetDiskname + dirNameTotal
	if end > len(data) {
		end = len(data)
	}
	h.Name.fill(data[s.infoOffsetDiskname:end], dirNameTotal)
	h.Name.EndIndex = headerNameLength
	if p := bytes.IndexByte(h.Name.Text[:headerNameLength],
		dirEntryNameShiftSpace); p >= 0 {
		h.Name.EndIndex = p
	}

	return h
}

/*
	DirEntry is one enumerated directory entry. For GEOS VLIR files, the
	start block holds the record map, which in turn points to the record
	streams. For REL files, the side sector block points to the first side
	sector, or to the super side-sector on 1581 and CMD images.
*/
type DirEntry struct {
	Name DirName
	Type DirType

	Locked      bool
	Closed      bool
	HasDatetime bool
	IsGeos      bool
	GeosVLIR    bool

	StartBlock BlockAddress

	RelSideSector   BlockAddress
	RelRecordLength int

	BlockCount int

	Year   int
	Month  int
	Day    int
	Hour   int
	Minute int

	GeosInfoBlock BlockAddress
	GeosFiletype  GeosFiletype

	deleted bool
	image   *Image
}

// IsDeleted reports whether this entry is a scratched file, i.e. its raw
// type byte is zero.
func (e *DirEntry) IsDeleted() bool {
	return e.deleted
}

/*
	Dir enumerates the directory entries of the active volume, walking the
	directory chain with its own loop detector. Iterate with Next, then
	inspect Entry; enumeration ends when the chain terminates or the loop
	detector fires.

		dir, err := image.OpenDir()
		...
		defer dir.Close()
		for dir.Next() {
			e := dir.Entry()
			...
		}
*/
type Dir struct {
	image    *Image
	accessor *BlockAccessor
	offset   int
	loop     *Loop
	entry    DirEntry
	valid    bool
}

// OpenDir starts enumerating the directory at its first block.
func (im *Image) OpenDir() (*Dir, error) {

	accessor, err := im.NewAccessor(im.top().dir)
	if err != nil {
		return nil, err
	}

	d := &Dir{
		image:    im,
		accessor: accessor,
		loop:     im.NewLoop(),
	}

	if marked, err := d.loop.Mark(accessor.Block()); err != nil || marked {
		d.accessor.release()
	}

	return d, nil
}

// Next advances to the next non-empty directory entry; empty slots are
// skipped silently. It returns false when the directory is exhausted.
func (d *Dir) Next() bool {

	for {
		if !d.get() {
			d.valid = false
			return false
		}

		e := &d.entry

		// skip slots that were never used: CBM DOS semantics, scratched
		// entries keep their name and are delivered as deleted instead
		if e.Type == DirTypeDEL && !e.Locked && !e.Closed &&
			e.StartBlock.Track == 0 && e.Name.Text[0] == 0 {
			continue
		}

		d.valid = true
		return true
	}
}

// Entry returns the current entry; only valid after Next returned true.
func (d *Dir) Entry() *DirEntry {
	if !d.valid {
		return nil
	}
	return &d.entry
}

// Close releases the enumeration state.
func (d *Dir) Close() {
	if d.accessor != nil {
		d.accessor.release()
	}
	d.valid = false
}

//
func (d *Dir) get() bool {

	im := d.image
	s := im.top()

	if d.accessor.Data() == nil {
		return false
	}

	if d.offset >= s.bytesInBlock {
		if d.accessor.Follow() != nil {
			return false
		}
		d.offset -= s.bytesInBlock

		if marked, err := d.loop.Mark(d.accessor.Block()); err != nil || marked {
			return false
		}
	}

	data := d.accessor.Data()[d.offset:]
	typ := int(data[dirEntryTypeOffset])

	e := &d.entry
	*e = DirEntry{image: im, deleted: typ == 0}

	if s.isPartitionTable {
		d.getPartitionEntry(data, typ)
	} else {
		d.getFileEntry(data, typ)
	}

	e.Name.fill(data[dirEntryNameOffset:dirEntryNameOffset+dirEntryNameLength],
		dirEntryNameLength)

	d.offset += dirEntrySize

	return true
}

// getPartitionEntry decodes a partition table row: the type byte maps to a
// partition kind, the start block and block count are 16 bit values scaled
// by the 512 byte physical blocks of the CMD FD media.
func (d *Dir) getPartitionEntry(data []byte, typ int) {

	s := d.image.top()
	e := &d.entry

	e.Type = DirType(typ) + dirTypePartOffset
	e.Locked = false
	e.Closed = true

	lba := int(data[dirEntryPartStartLow]) | int(data[dirEntryPartStartHigh])<<8

	e.StartBlock = BlockAddress{LBA: lba*2 + 1}
	if initFromLBA(s, &e.StartBlock) != nil {
		e.StartBlock = blockUnused
	}

	e.BlockCount = (int(data[dirEntryPartCountLow]) |
		int(data[dirEntryPartCountHigh])<<8) * 2
}

//
func (d *Dir) getFileEntry(data []byte, typ int) {

	s := d.image.top()
	e := &d.entry

	e.Type = DirType(typ & dirEntryTypeMask)
	e.Locked = typ&dirEntryMaskLocked != 0
	e.Closed = typ&dirEntryMaskClosed != 0

	e.StartBlock = blockFromTS(s,
		int(data[dirEntryTrackOffset]), int(data[dirEntrySectorOffset]))

	// GEOS files reuse the REL offsets, so check for GEOS first
	if e.Type < DirTypeREL {
		filetype := data[dirEntryGeosFiletype]
		structure := data[dirEntryGeosStructure]

		if filetype != 0 || structure == 1 {
			e.IsGeos = true
			e.GeosFiletype = GeosFiletype(filetype)
			e.GeosVLIR = structure == 1
			e.GeosInfoBlock = blockFromTS(s,
				int(data[dirEntryGeosInfoTrack]),
				int(data[dirEntryGeosInfoSector]))
		}
	}

	if !e.IsGeos {
		e.RelSideSector = blockFromTS(s,
			int(data[dirEntrySSTrackOffset]),
			int(data[dirEntrySSSectorOffset]))
		e.RelRecordLength = int(data[dirEntryRelRecordLen])
	}

	e.BlockCount = int(data[dirEntryBlockCountLow]) |
		int(data[dirEntryBlockCountHigh])<<8

	d.getDatetime(data)
}

// getDatetime parses the date and time of an entry; all five fields zero
// means the entry carries none. The year obeys the 1983 pivot.
func (d *Dir) getDatetime(data []byte) {

	e := &d.entry

	if data[dirEntryYear] == 0 && data[dirEntryMonth] == 0 &&
		data[dirEntryDay] == 0 && data[dirEntryHour] == 0 &&
		data[dirEntryMinute] == 0 {
		return
	}

	e.HasDatetime = true

	year := int(data[dirEntryYear])
	if year > 83 {
		year += 1900
	} else {
		year += 2000
	}

	e.Year = year
	e.Month = int(data[dirEntryMonth])
	e.Day = int(data[dirEntryDay])
	e.Hour = int(data[dirEntryHour])
	e.Minute = int(data[dirEntryMinute])
}

// partitionData computes first block, last block and block count of the
// partition described by a directory entry.
func partitionData(e *DirEntry) (first, last BlockAddress, count int, err error) {

	im := e.image
	s := im.top()

	count = e.BlockCount

	lba := e.StartBlock.LBA + count - 1
	if lba >= s.lastBlock.LBA {
		return blockUnused, blockUnused, 0, fmt.Errorf(
			"partition exceeds the image")
	}

	last = BlockAddress{LBA: lba}
	if err := initFromLBA(s, &last); err != nil {
		return blockUnused, blockUnused, 0, err
	}

	return e.StartBlock, last, count, nil
}

/*
	Chdir makes the partition or subdirectory described by the given entry
	the active volume, pushing a new settings frame. It fails when the
	active format has no subdirectory support or the entry is not a
	partition that can be entered.
*/
func (im *Image) Chdir(e *DirEntry) error {

	top := im.top()

	if top.fct.chdir == nil {
		return fmt.Errorf("%s images have no subdirectory support", top.name)
	}

	frame := *top
	frame.fat = nil
	frame.info = nil

	im.stack = append(im.stack, &frame)

	if err := frame.fct.chdir(&frame, e); err != nil {
		im.stack = im.stack[:len(im.stack)-1]
		return err
	}

	return nil
}

// ChdirClose pops the active subdirectory frame, returning to the
// enclosing volume. Popping the root frame is an error.
func (im *Image) ChdirClose() error {

	if len(im.stack) < 2 {
		return fmt.Errorf("already at the root of the image")
	}

	im.stack = im.stack[:len(im.stack)-1]
	return nil
}

/*
	setSubpartitionShifted activates a CMD-style partition: the partition
	pretends to begin at block 1/0 (LBA 1), and block resolution adds a
	fixed byte offset into the raw buffer.
*/
func setSubpartitionShifted(s *settings, first BlockAddress) error {

	s.blockSubdirFirst = BlockAddress{Track: 1, LBA: 1}
	s.blockSubdirLast = s.image.global().lastBlock
	s.subdirDataOffset = 0

	offset, err := offsetOfBlock(s, first)
	if err != nil {
		return err
	}
	s.subdirDataOffset = offset

	return nil
}

/*
	setSubpartitionAbsolute activates a 1581-style partition, which keeps
	the addresses of the enclosing image. First and last are composed onto
	a possibly already active partition via LBA addition.
*/
func setSubpartitionAbsolute(s *settings, first, last BlockAddress) error {

	firstAdjusted := s.blockSubdirFirst
	lastAdjusted := s.blockSubdirFirst

	if err := addBlocks(s, &firstAdjusted, first); err != nil {
		return err
	}
	if err := addBlocks(s, &lastAdjusted, last); err != nil {
		return err
	}

	s.blockSubdirFirst = firstAdjusted
	s.blockSubdirLast = lastAdjusted

	return nil
}
