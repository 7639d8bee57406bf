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
)

/*
	Chain follows the per-block (next-track, next-sector) links from a start
	block until the terminator, carrying its own loop detector. Once a loop
	or the terminator is reached, the done state latches.
*/
type Chain struct {
	image *Image
	start BlockAddress

	accessor *BlockAccessor
	loop     *Loop

	done   bool
	looped bool
}

/*
	NewChain starts chain processing at the given block. The start block is
	read and marked in the loop detector immediately. A chain whose start is
	already a terminator is not done yet: LastResult describes that block,
	and the first Advance marks the chain done.
*/
func (im *Image) NewChain(start BlockAddress) (*Chain, error) {

	accessor, err := im.NewAccessor(start)
	if err != nil {
		return nil, err
	}

	c := &Chain{
		image:    im,
		start:    start,
		accessor: accessor,
		loop:     im.NewLoop(),
	}

	c.readBlock(start)

	return c, nil
}

// readBlock moves the chain to the given block, marking it in the loop
// detector.
func (c *Chain) readBlock(block BlockAddress) (int, error) {

	if marked, err := c.loop.Mark(block); err != nil {
		c.done = true
		return 0, err
	} else if marked {
		c.looped = true
		c.done = true
		return 0, fmt.Errorf("loop in chain starting at %d/%d",
			c.start.Track, c.start.Sector)
	}

	if err := c.accessor.SetTo(block); err != nil {
		c.done = true
		return 0, err
	}

	_, used, err := c.accessor.NextBlock()
	return used, err
}

/*
	Advance moves the chain to its successor block. The return value
	describes the new current block: used 0 when the block is full and the
	chain continues, 1..256 for the number of valid bytes when it is the
	last block. When the chain is already done, nothing happens.
*/
func (c *Chain) Advance() (used int, err error) {

	if c.done {
		return c.LastResult()
	}

	next, used, err := c.accessor.NextBlock()
	if err != nil {
		c.done = true
		return 0, err
	}
	if used != 0 {
		c.done = true
		return used, nil
	}

	return c.readBlock(next)
}

/*
	LastResult describes the current block: used 0 when it is full and the
	chain continues with a real successor, 1..256 for the number of valid
	bytes in the last block of the chain, or an error when the link is
	defective.
*/
func (c *Chain) LastResult() (int, error) {
	_, used, err := c.accessor.NextBlock()
	return used, err
}

// IsDone reports whether all blocks of the chain have been visited.
func (c *Chain) IsDone() bool {
	return c.done
}

// IsLoop reports whether the chain fell into a loop. A looped chain is also
// done.
func (c *Chain) IsLoop() bool {
	return c.looped
}

//
func (c *Chain) Start() BlockAddress {
	return c.start
}

//
func (c *Chain) Current() BlockAddress {
	return c.accessor.Block()
}

// Next returns the address of the successor of the current block, or the
// unused address if there is none.
func (c *Chain) Next() BlockAddress {
	next, _, err := c.accessor.NextBlock()
	if err != nil {
		return blockUnused
	}
	return next
}

// Data returns the bytes of the current block of the chain.
func (c *Chain) Data() []byte {
	return c.accessor.Data()
}
