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
func TestLoopDetector(t *testing.T) {

	im := emptyImage(t, TypeD64)
	loop := im.NewLoop()

	b, _ := im.BlockFromTS(10, 5)

	if marked, err := loop.Mark(b); err != nil || marked {
		t.Errorf("first mark gave marked=%v, err=%v", marked, err)
	}
	if marked, err := loop.Mark(b); err != nil || !marked {
		t.Errorf("second mark gave marked=%v, err=%v", marked, err)
	}
	if marked, err := loop.Check(b); err != nil || !marked {
		t.Errorf("check gave marked=%v, err=%v", marked, err)
	}

	other, _ := im.BlockFromTS(10, 6)
	if marked, err := loop.Check(other); err != nil || marked {
		t.Errorf("check of unmarked block gave marked=%v, err=%v", marked, err)
	}

	if _, err := loop.Mark(BlockAddress{LBA: 684}); err == nil {
		t.Error("marking an out-of-range block succeeded")
	}
}

//
func TestChainTermination(t *testing.T) {

	d := newTestD64(t)
	d.chainFile([][2]int{{17, 0}, {17, 1}, {17, 2}}, 0x40)
	im := d.im

	start, _ := im.BlockFromTS(17, 0)
	chain, err := im.NewChain(start)
	if err != nil {
		t.Fatalf("chain: %v", err)
	}

	var visited []BlockAddress
	for ; !chain.IsDone(); chain.Advance() {
		visited = append(visited, chain.Current())
	}

	if len(visited) != 3 {
		t.Fatalf("visited %d blocks, want 3", len(visited))
	}
	if visited[2].Sector != 2 {
		t.Errorf("last visited block is %v", visited[2])
	}
	if chain.IsLoop() {
		t.Error("chain reports a loop")
	}

	if used, err := chain.LastResult(); err != nil || used != 0x40 {
		t.Errorf("last result is %d, %v, want 0x40", used, err)
	}
}

//
func TestChainLoop(t *testing.T) {

	d := newTestD64(t)
	d.setLink(17, 0, 17, 1)
	d.setLink(17, 1, 17, 0)
	im := d.im

	start, _ := im.BlockFromTS(17, 0)
	chain, err := im.NewChain(start)
	if err != nil {
		t.Fatalf("chain: %v", err)
	}

	count := 0
	for ; !chain.IsDone(); chain.Advance() {
		if count++; count > 10 {
			t.Fatal("chain does not terminate")
		}
	}

	if !chain.IsLoop() {
		t.Error("loop not detected")
	}
	if !chain.IsDone() {
		t.Error("looped chain is not done")
	}
	if count != 2 {
		t.Errorf("visited %d blocks, want 2", count)
	}
}

// a degenerate terminator (0,0) counts as a full block of 256 bytes
func TestChainDegenerateTerminator(t *testing.T) {

	d := newTestD64(t)
	d.setLink(17, 0, 0, 0)
	im := d.im

	start, _ := im.BlockFromTS(17, 0)
	chain, _ := im.NewChain(start)

	if used, err := chain.LastResult(); err != nil || used != 256 {
		t.Errorf("last result is %d, %v, want 256", used, err)
	}
}

// a link to a block that does not exist is an error
func TestChainBadLink(t *testing.T) {

	d := newTestD64(t)
	d.setLink(17, 0, 36, 0)
	im := d.im

	start, _ := im.BlockFromTS(17, 0)
	chain, _ := im.NewChain(start)

	if _, err := chain.LastResult(); err == nil {
		t.Error("defective link not reported")
	}

	chain.Advance()
	if !chain.IsDone() {
		t.Error("chain with defective link is not done")
	}
}

//
func TestAccessorFollow(t *testing.T) {

	d := newTestD64(t)
	d.chainFile([][2]int{{5, 0}, {7, 3}}, 0x10)
	im := d.im

	a, err := im.NewAccessorTS(5, 0)
	if err != nil {
		t.Fatalf("accessor: %v", err)
	}

	if err := a.Follow(); err != nil {
		t.Fatalf("follow: %v", err)
	}
	if b := a.Block(); b.Track != 7 || b.Sector != 3 {
		t.Errorf("accessor is at %d/%d, want 7/3", b.Track, b.Sector)
	}

	if err := a.Follow(); err == nil {
		t.Error("follow past the chain end succeeded")
	}
}

//
func TestAccessorAdvance(t *testing.T) {

	im := emptyImage(t, TypeD64)

	a, _ := im.NewAccessorTS(1, 20)
	if err := a.Advance(); err != nil {
		t.Fatalf("advance: %v", err)
	}
	if b := a.Block(); b.Track != 2 || b.Sector != 0 {
		t.Errorf("accessor is at %d/%d, want 2/0", b.Track, b.Sector)
	}
}
