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
	"strings"

	log "github.com/sirupsen/logrus"
)

// imageFunctions is the per-format function table. A nil entry selects the
// generic behaviour, which assumes the same number of sectors on all tracks.
type imageFunctions struct {
	sectorsInTrack func(s *settings, track int) int
	tsToBlock      func(s *settings, b *BlockAddress) error
	lbaToBlock     func(s *settings, b *BlockAddress) error
	chdir          func(s *settings, e *DirEntry) error
	setBAM         func(s *settings) error
}

/*
	settings describes the currently active logical volume of an image. The
	root frame describes the image itself; every chdir into a partition or
	subdirectory pushes another frame, and the top of the stack is active.
*/
type settings struct {
	fct   imageFunctions
	image *Image

	imagetype ImageType
	name      string

	// accessor for the info block; on D64/D71/D40 this is also the BAM block
	info *BlockAccessor

	// derived FAT, built lazily by the validator
	fat *FAT

	infoOffsetDiskname int

	// address of the first directory block
	dir BlockAddress

	maxTracks    int
	maxSectors   int
	bytesInBlock int

	// the track(s) holding the directory, numerically sorted, unused
	// entries zero
	dirTracks [2]int

	lastBlock BlockAddress

	// true if REL files use a super side-sector (1581, CMD)
	hasSuperSideSector bool

	bam        []bamSelector
	bamCounter []bamSelector

	// byte offset into the raw buffer for CMD-style partitions
	subdirDataOffset int

	blockSubdirFirst BlockAddress
	blockSubdirLast  BlockAddress

	// subdirShifted: block addresses are relative to the partition start,
	// so the partition pretends to begin at 1/0; resolving adds
	// blockSubdirFirst.LBA - 1 (CMD FD style)
	subdirShifted bool

	// subdirAbsolute: the partition keeps the absolute addresses of the
	// enclosing image (1581 style); addresses are not range-checked against
	// the partition, and Advance runs on past its last block
	subdirAbsolute bool

	isPartitionTable bool

	isGeos     bool
	geosBorder BlockAddress

	// per-format private data
	sectorsPerTrack []int
	trackLBAStart   []int
}

/*
	Image is a parsed CBM disk image. It owns the raw byte buffer; block
	accessors, chains and the derived FAT borrow from it and must not be
	used after Close.
*/
type Image struct {
	stack    []*settings
	buffer   []byte
	errorMap []byte
	filename string

	report func(msg string)
}

//
func (im *Image) top() *settings {
	return im.stack[len(im.stack)-1]
}

//
func (im *Image) global() *settings {
	return im.stack[0]
}

// reportf routes a diagnostic through the image's reporter. The default
// reporter logs via logrus; the CLI installs one that prints to stdout.
func (im *Image) reportf(format string, a ...interface{}) {
	im.report(fmt.Sprintf(format, a...))
}

// SetReporter installs the sink for diagnostics emitted during validation
// and consistency checking.
func (im *Image) SetReporter(f func(msg string)) {
	if f != nil {
		im.report = f
	}
}

// sizeMapping relates an image type to its file size. Types can appear with
// and without a trailing error map of one byte per block.
type sizeMapping struct {
	name   string
	typ    ImageType
	size   int
	blocks int
}

//
var sizeMappings = []sizeMapping{
	{"D64", TypeD64, 174848, 683},
	{"D64_40", TypeD64_40Track, 174848 + 5*17*256, 683 + 5*17},
	{"D64_42", TypeD64_42Track, 174848 + 7*17*256, 683 + 7*17},
	{"D40", TypeD40, 174848 + 7*256, 683 + 7},
	{"D71", TypeD71, 174848 * 2, 683 * 2},
	{"D81", TypeD81, 819200, 3200},
	{"D80", TypeD80, 533248, 2083},
	{"D82", TypeD82, 533248 * 2, 2083 * 2},
	{"D1M", TypeD1M, 3240 * 256, 3240},
	{"D2M", TypeD2M, 3240 * 256 * 2, 3240 * 2},
	{"D4M", TypeD4M, 3240 * 256 * 4, 3240 * 4},
}

/*
	GuessType determines the image type from the buffer size alone. The
	second return is true when the size includes a trailing error map of one
	byte per block.

	Note that the 40 track D64 variants (SpeedDOS, Dolphin, Prologic) all
	share the same size; they can only be told apart via an explicit hint.
*/
func GuessType(size int) (ImageType, bool, error) {
	for _, m := range sizeMappings {
		if m.size == size {
			return m.typ, false, nil
		}
		if m.size+m.blocks == size {
			return m.typ, true, nil
		}
	}
	return TypeUnknown, false, fmt.Errorf(
		"size %d does not match any known image format", size)
}

// TypeByName resolves an image type name like "D64" or "d2m"; TypeUnknown
// for names it does not know.
func TypeByName(name string) ImageType {
	for _, m := range sizeMappings {
		if strings.EqualFold(m.name, name) {
			return m.typ
		}
	}
	switch strings.ToUpper(name) {
	case "D64_40_SPEEDDOS":
		return TypeD64_40TrackSpeedDOS
	case "D64_40_DOLPHIN":
		return TypeD64_40TrackDolphin
	case "D64_40_PROLOGIC":
		return TypeD64_40TrackPrologic
	}
	return TypeUnknown
}

//
func mappingForType(typ ImageType) *sizeMapping {
	for ix := range sizeMappings {
		if sizeMappings[ix].typ == typ {
			return &sizeMappings[ix]
		}
	}
	// the SpeedDOS/Dolphin/Prologic variants share the plain 40 track layout
	switch typ {
	case TypeD64_40TrackSpeedDOS, TypeD64_40TrackDolphin, TypeD64_40TrackPrologic:
		return mappingForType(TypeD64_40Track)
	}
	return nil
}

/*
	Open parses the raw bytes of a disk image. When hint is TypeUnknown, the
	format is guessed from the buffer size. The buffer is copied; the caller
	keeps ownership of its slice.
*/
func Open(buffer []byte, hint ImageType) (*Image, error) {

	if hint == TypeUnknown {
		var err error
		if hint, _, err = GuessType(len(buffer)); err != nil {
			return nil, err
		}
	}

	m := mappingForType(hint)
	if m == nil {
		return nil, fmt.Errorf("unsupported image type %d", hint)
	}

	var errorMap []byte

	switch len(buffer) {
	case m.size:
		// no error map
	case m.size + m.blocks:
		errorMap = make([]byte, m.blocks)
		copy(errorMap, buffer[m.size:])
	default:
		return nil, fmt.Errorf(
			"buffer size %d does not match %s image (want %d or %d)",
			len(buffer), m.name, m.size, m.size+m.blocks)
	}

	im := &Image{
		buffer:   make([]byte, m.size),
		errorMap: errorMap,
		report:   func(msg string) { log.Info(msg) },
	}
	copy(im.buffer, buffer)

	s := &settings{image: im, imagetype: hint}
	im.stack = []*settings{s}

	var err error

	switch hint {

	case TypeD40, TypeD64, TypeD64_40Track, TypeD64_40TrackSpeedDOS,
		TypeD64_40TrackDolphin, TypeD64_40TrackPrologic, TypeD64_42Track,
		TypeD71:
		err = initD40D64D71(s, hint)

	case TypeD81:
		err = initD81(s)

	case TypeD80, TypeD82:
		err = openD80D82(s, hint)

	case TypeD1M, TypeD2M, TypeD4M:
		err = openD1MD2MD4M(s, hint)

	default:
		err = fmt.Errorf("unsupported image type %d", hint)
	}

	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"type":   s.name,
		"tracks": s.maxTracks,
		"blocks": s.lastBlock.LBA,
	}).Debug("image opened")

	return im, nil
}

/*
	Close releases the image. All pushed subdirectory frames are unwound;
	accessors, chains and loop detectors derived from the image must not be
	used afterwards.
*/
func (im *Image) Close() {
	for im.ChdirClose() == nil {
	}
	im.stack = im.stack[:1]
	im.buffer = nil
	im.errorMap = nil
}

//
func (im *Image) SetFilename(name string) {
	im.filename = name
}

//
func (im *Image) Filename() string {
	return im.filename
}

// Raw returns the raw image bytes, without a trailing error map. The slice
// aliases the image buffer; treat it as read-only.
func (im *Image) Raw() []byte {
	return im.buffer
}

// ErrorMap returns the trailing error map, or nil if the image has none.
func (im *Image) ErrorMap() []byte {
	return im.errorMap
}

//
func (im *Image) Type() ImageType {
	return im.top().imagetype
}

//
func (im *Image) TypeName() string {
	return im.top().name
}

// MaxTrack returns the number of tracks of the active volume; tracks range
// from 1 to this value.
func (im *Image) MaxTrack() int {
	return im.top().maxTracks
}

// MaxSectors returns the maximum number of sectors on any track. Individual
// tracks may have fewer, see SectorsInTrack.
func (im *Image) MaxSectors() int {
	return im.top().maxSectors
}

//
func (im *Image) MaxLBA() int {
	return im.top().lastBlock.LBA
}

//
func (im *Image) BytesInBlock() int {
	return im.top().bytesInBlock
}

//
func (im *Image) SectorsInTrack(track int) int {
	return sectorsInTrack(im.top(), track)
}

//
func (im *Image) IsGeos() bool {
	return im.top().isGeos
}

//
func (im *Image) IsPartitionTable() bool {
	return im.top().isPartitionTable
}

// createLastBlock recomputes the address of the last block of the active
// volume, which defines MaxLBA.
func createLastBlock(s *settings) {
	track := s.maxTracks
	sector := sectorsInTrack(s, track)
	b := BlockAddress{Track: track, Sector: sector - 1}
	s.lastBlock = blockUnused
	if err := initFromTS(s, &b); err == nil {
		s.lastBlock = b
	}
}
