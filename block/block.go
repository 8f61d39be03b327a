// Copyright (C) 2022 Sneller, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Package block implements the single-producer/single-consumer block
// pool: one ring of fixed-size buffers per parser, each buffer tagged
// Empty, Filled or Abandoned. The reader side only turns Empty blocks
// into Filled ones; the parser side only turns Filled blocks back
// into Empty ones; the tag itself is what keeps the two sides from
// ever observing the same block simultaneously.
package block

import (
	"sync/atomic"

	"github.com/onebrc/onebrc/internal/atomicext"
)

// Size is BLOCK_SIZE: the fixed byte width of every block. It is
// large enough to amortize per-block parsing overhead while still
// fitting comfortably in L2 cache.
const Size = 50_000

// DefaultPerRing is the recommended N_BLOCKS (spec.md §4.4: "≥ 2...
// recommended 3-5"). Two is the correctness floor: it guarantees a
// momentarily stalled side never starves the other of work.
const DefaultPerRing = 4

type state int32

const (
	stateEmpty state = iota
	stateFilled
	stateAbandoned
)

// Block is one fixed-size buffer plus its tri-state tag. Only the
// side currently permitted to touch Buf (per the tag) may do so;
// Buf itself carries no synchronization of its own.
type Block struct {
	Buf [Size]byte
	tag atomic.Int32
}

func (b *Block) load() state   { return state(b.tag.Load()) }
func (b *Block) store(s state) { b.tag.Store(int32(s)) }

// Ring is the ordered sequence of blocks belonging to one parser.
// Exactly one Ring exists per parser for the lifetime of a run.
type Ring struct {
	blocks []*Block
}

// NewRing allocates n blocks (n must be >= 2; see DefaultPerRing).
func NewRing(n int) *Ring {
	if n < 2 {
		panic("block: a ring needs at least two blocks")
	}
	r := &Ring{blocks: make([]*Block, n)}
	for i := range r.blocks {
		r.blocks[i] = &Block{}
	}
	return r
}

// Len returns the number of blocks in the ring.
func (r *Ring) Len() int { return len(r.blocks) }

// Abandon stamps every block in the ring Abandoned. This is a
// failure-recovery operation only: the coordinator calls it from a
// panic-recovery path (reader panicked -> abandon every ring so no
// parser spins forever waiting for a block that will never arrive;
// a parser panicked -> abandon its ring so the reader doesn't spin
// forever waiting for it to free blocks). It is never called on the
// ordinary successful-completion path, so a correctly operating run
// never observes an Abandoned block (spec.md §4.4/§7).
func (r *Ring) Abandon() {
	for _, b := range r.blocks {
		b.store(stateAbandoned)
	}
}

// Fillable invokes f once, in index order, for every block currently
// Empty, promoting each block to Filled once f returns. If f returns
// true, Fillable stops after that block — leaving any further Empty
// blocks in this ring untouched for a later sweep — and returns true
// itself; the reader uses this to stop mid-ring on EOF. It panics if
// it observes an Abandoned block: under correct operation this never
// happens (see Abandon).
func (r *Ring) Fillable(f func(buf *[Size]byte) (stop bool)) (stopped bool) {
	for _, b := range r.blocks {
		switch b.load() {
		case stateEmpty:
			stop := f(&b.Buf)
			b.store(stateFilled)
			if stop {
				return true
			}
		case stateAbandoned:
			panic("block: parser side of this ring was abandoned before the reader finished")
		}
	}
	return false
}

// Parseable invokes f once, in index order, for every block
// currently Filled, then demotes that block to Empty. It panics if
// it observes an Abandoned block (see Abandon).
func (r *Ring) Parseable(f func(buf *[Size]byte)) {
	for _, b := range r.blocks {
		switch b.load() {
		case stateFilled:
			f(&b.Buf)
			b.store(stateEmpty)
		case stateAbandoned:
			panic("block: reader side of this ring was abandoned before this parser finished")
		}
	}
}

// Idle hints to the processor that the calling goroutine is in a
// spin-wait loop (no block was available last sweep). Parser workers
// call this once per empty sweep; the reader never spins, so it has
// no need to call Idle.
func Idle() {
	atomicext.Pause()
}
