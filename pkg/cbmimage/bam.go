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
	"math/bits"
	"strings"
)

// bamMaskBytes bounds the number of bitmap bytes a single track can use
// (DNP tracks have 256 sectors = 32 bytes).
const bamMaskBytes = 0x20

// bamMask is the free-block bitmap of one track, little-endian: bit s of
// the combined mask gives the state of sector s, 1 = free.
type bamMask [bamMaskBytes]byte

//
func (m bamMask) countBits() int {
	count := 0
	for _, b := range m {
		count += bits.OnesCount8(b)
	}
	return count
}

//
func (m bamMask) String() string {

	last := len(m) - 1
	for last > 0 && m[last] == 0 {
		last--
	}

	var sb strings.Builder
	for ix := last; ix >= 0; ix-- {
		fmt.Fprintf(&sb, "%02X", m[ix])
		if ix%4 == 0 {
			sb.WriteByte(' ')
		}
	}
	return strings.TrimSpace(sb.String())
}

/*
	bamSelector describes where the BAM bytes for a range of tracks live on
	disk: the block holding them, the offset of the region within that
	block, the per-track stride, and the number of bitmap bytes per track.
	A selector with dataCount 0 locates the per-track free-block counter
	byte instead of the bitmap.

	CMD/DNP images store the BAM with reversed bit order: bit 0 corresponds
	to the numerically highest sector of the byte, not the lowest.
*/
type bamSelector struct {
	startTrack   int
	block        BlockAddress
	startOffset  int
	multiplier   int
	dataCount    int
	reverseOrder bool

	buf []byte
}

// initBAMSelectors completes the LBA of each selector's block address and
// binds the selector to the image bytes holding its region.
func initBAMSelectors(s *settings, selectors []bamSelector) error {
	for ix := range selectors {
		if err := initFromTS(s, &selectors[ix].block); err != nil {
			return err
		}
		buf, err := addressOfBlock(s, selectors[ix].block)
		if err != nil {
			return err
		}
		selectors[ix].buf = buf
	}
	return nil
}

// rightSelector finds the selector covering a track: the one with the
// largest startTrack not above it.
func rightSelector(s *settings, selectors []bamSelector, track int) int {

	if track < 1 || track > s.maxTracks || len(selectors) == 0 {
		return -1
	}

	number := 0
	for ; number < len(selectors)-1; number++ {
		if track < selectors[number+1].startTrack {
			break
		}
	}
	return number
}

//
func reverseBitOrder(input byte) byte {
	return bits.Reverse8(input)
}

//
func bamOfTrack(s *settings, track int) (bamMask, error) {

	var mask bamMask

	if len(s.bam) == 0 {
		return mask, fmt.Errorf("image has no BAM")
	}

	number := rightSelector(s, s.bam, track)
	if number < 0 {
		return mask, fmt.Errorf("no BAM selector for track %d", track)
	}

	sel := &s.bam[number]
	offset := sel.startOffset + (track-sel.startTrack)*sel.multiplier

	for ix := 0; ix < sel.dataCount; ix++ {
		b := sel.buf[offset+ix]
		if sel.reverseOrder {
			b = reverseBitOrder(b)
		}
		mask[ix] = b
	}

	return mask, nil
}

// bamCounterOfTrack returns the stored free-block count of a track, or,
// for images without stored counters (DNP), the popcount of the bitmap.
func bamCounterOfTrack(s *settings, track int) int {

	if s.bamCounter == nil {
		mask, err := bamOfTrack(s, track)
		if err != nil {
			return 0
		}
		return mask.countBits()
	}

	number := rightSelector(s, s.bamCounter, track)
	if number < 0 {
		return 0
	}

	sel := &s.bamCounter[number]
	offset := sel.startOffset + (track-sel.startTrack)*sel.multiplier

	return int(sel.buf[offset])
}

/*
	bamCheckReallyUnused reports whether a block still carries the
	freshly-formatted pattern: either all 256 bytes zero, or bytes 1..255
	all 0x01 with an arbitrary first byte. The second scheme is what the
	1541 leaves behind; the first byte is usually the GCR residue 0x4B, but
	not on the first track.
*/
func bamCheckReallyUnused(s *settings, block BlockAddress) bool {

	buf, err := addressOfBlock(s, block)
	if err != nil {
		return false
	}

	switch buf[2] {

	case 1:
		for ix := 1; ix < len(buf); ix++ {
			if buf[ix] != 1 {
				return false
			}
		}
		return true

	case 0:
		for ix := 0; ix < len(buf); ix++ {
			if buf[ix] != 0 {
				return false
			}
		}
		return true
	}

	return false
}

/*
	BAMState returns the usage state of a block according to the BAM:
	BAMUsed when the BAM bit is clear, BAMFree when set, and BAMReallyFree
	when additionally the block payload is in the freshly-formatted state.
*/
func (im *Image) BAMState(block BlockAddress) BAMState {

	s := im.top()

	mask, err := bamOfTrack(s, block.Track)
	if err != nil {
		return BAMUnknown
	}

	if mask[block.Sector/8]&(1<<uint(block.Sector%8)) == 0 {
		return BAMUsed
	}

	if bamCheckReallyUnused(s, block) {
		return BAMReallyFree
	}

	return BAMFree
}

// checkMaxBAMOfTrack reports bits set for sectors that do not exist on the
// track.
func checkMaxBAMOfTrack(s *settings, track int, mask bamMask) error {

	if track > s.maxTracks {
		s.image.reportf("Track %d: invalid.", track)
		return fmt.Errorf("track %d does not exist", track)
	}

	sectors := sectorsInTrack(s, track)
	remaining := sectors

	for ix := 0; ix < bamMaskBytes; ix++ {
		var local byte
		switch {
		case remaining >= 8:
			remaining -= 8
			continue
		case remaining == 0:
			local = 0xFF
		default:
			local = 0xFF << uint(remaining)
			remaining = 0
		}
		if mask[ix]&local != 0 {
			s.image.reportf(
				"Track %d: Bits marked which are not allowed, no. of sectors is %d.",
				track, sectors)
			s.image.reportf("%s", mask)
			return fmt.Errorf("track %d has BAM bits for nonexistent sectors",
				track)
		}
	}

	return nil
}

/*
	CheckBAMConsistency checks, for every track, that no bits are set for
	sectors outside the track, that a stored free-block counter matches the
	popcount of the bitmap, and that the counter does not exceed the number
	of sectors on the track. Findings are reported through the image
	reporter; a non-nil error is only returned when the BAM cannot be read
	at all.
*/
func (im *Image) CheckBAMConsistency() error {

	s := im.top()

	for track := 1; track <= s.maxTracks; track++ {

		mask, err := bamOfTrack(s, track)
		if err != nil {
			return err
		}

		counter := bamCounterOfTrack(s, track)
		sectors := sectorsInTrack(s, track)

		checkMaxBAMOfTrack(s, track, mask)

		count := mask.countBits()

		if counter > sectors {
			im.reportf(
				"Track %d: Number of free blocks is reported as %d, but no. of sectors is %d.",
				track, counter, sectors)
		}
		if count != counter {
			im.reportf("Track %d: Reported %d free blocks, but there are %d in %s.",
				track, counter, count, mask)
		}
	}

	return nil
}

// BlocksFree sums the per-track free-block counters over all tracks,
// skipping the directory track(s).
func (im *Image) BlocksFree() int {

	s := im.top()

	count := 0
	dirTrackIx := 0

	for track := 1; track <= s.maxTracks; track++ {
		if track == s.dirTracks[dirTrackIx] {
			dirTrackIx = (dirTrackIx + 1) % len(s.dirTracks)
			continue
		}
		count += bamCounterOfTrack(s, track)
	}
	return count
}

// FreeOnTrack returns the number of free blocks on a track according to
// the BAM.
func (im *Image) FreeOnTrack(track int) int {
	return bamCounterOfTrack(im.top(), track)
}
