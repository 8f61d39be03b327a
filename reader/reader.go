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

// Package reader implements the single-threaded block filler: it
// pulls bytes out of an io.Reader and hands them off, round-robin,
// to every parser's block ring, trimming each full block at the
// last newline so every block a parser sees holds only whole
// records.
package reader

import (
	"bytes"
	"fmt"
	"io"

	"github.com/onebrc/onebrc/block"
)

// RemainderCap is the carry-over buffer's capacity: the longest tail
// of a block that can run past the last newline before the next
// block starts. Records are assumed to be well under this many bytes
// (spec.md §3, §6).
const RemainderCap = 50

// Run drives the reader to completion: it round-robins rings[0],
// rings[1], ..., rings[len(rings)-1], rings[0], ... indefinitely,
// filling every block currently available in each ring, until r
// reports EOF. Run is the only place in the pipeline that blocks —
// on r.Read — and returns exactly once, when the input is exhausted.
//
// Run panics (spec.md §7, input-shape violation) if a full block's
// final RemainderCap bytes contain no newline, and if r.Read returns
// a non-EOF error.
func Run(r io.Reader, rings []*block.Ring) {
	var remainder [RemainderCap]byte
	remainderLen := 0

	for {
		for _, ring := range rings {
			done := ring.Fillable(func(buf *[block.Size]byte) bool {
				start := remainderLen
				copy(buf[:start], remainder[:remainderLen])

				for start < block.Size {
					n, err := r.Read(buf[start:])
					start += n
					if err == io.EOF {
						break
					}
					if err != nil {
						panic(fmt.Errorf("reader: %w", err))
					}
					if n == 0 {
						break
					}
				}

				if start < block.Size {
					// The final line of the file may lack a
					// terminating '\n' (spec.md §6/§8 property 8).
					// Synthesize one so the parser's '\n'-delimited
					// scan still yields this last record instead of
					// silently dropping it.
					if start > 0 && buf[start-1] != '\n' {
						buf[start] = '\n'
						start++
					}
					zero(buf[start:])
					return true
				}

				window := buf[block.Size-RemainderCap:]
				nl := bytes.LastIndexByte(window[:], '\n')
				if nl < 0 {
					panic("reader: no newline in the final 50 bytes of a full block")
				}
				lastNL := block.Size - RemainderCap + nl
				remainderLen = copy(remainder[:], buf[lastNL+1:])
				zero(buf[lastNL+1:])
				return false
			})
			if done {
				return
			}
		}
	}
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
