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

// Package worker implements the parser side of the pipeline: a loop
// that busy-polls one block ring, parses every filled block into a
// private table, and stops one full sweep after it observes a
// cooperative stop signal.
package worker

import (
	"bytes"

	"github.com/onebrc/onebrc/block"
	"github.com/onebrc/onebrc/parse"
	"github.com/onebrc/onebrc/station"
	"github.com/onebrc/onebrc/table"
)

// InitialTableCapacity is the per-worker table's starting size
// (spec.md §6): station cardinality is typically in the hundreds to
// low thousands, so this avoids almost all resizes in practice.
const InitialTableCapacity = 512

// Run is a parser worker's full lifetime. It never blocks: between
// sweeps where ring had nothing available, it calls block.Idle to
// hint the processor that this is a spin-wait loop. Run returns once
// it has observed a stop signal on stop and performed exactly one
// further sweep, so it never loses a block the reader released
// between its last probe and the stop signal.
func Run(ring *block.Ring, stop <-chan struct{}) *table.Table {
	t := table.NewTable(InitialTableCapacity)
	finalPass := false

	for {
		found := false
		ring.Parseable(func(buf *[block.Size]byte) {
			found = true
			parseBlock(t, buf[:])
		})

		if finalPass {
			return t
		}

		select {
		case <-stop:
			finalPass = true
		default:
		}

		if !found && !finalPass {
			block.Idle()
		}
	}
}

// parseBlock splits buf on '\n' and folds each record into t. A
// trailing run of zero bytes (written by the reader past EOF) has no
// '\n' in it, so the scan for '\n' simply stops there without any
// special-casing.
func parseBlock(t *table.Table, buf []byte) {
	start := 0
	for {
		nl := bytes.IndexByte(buf[start:], '\n')
		if nl < 0 {
			return
		}
		rec := buf[start : start+nl]
		start += nl + 1
		if len(rec) == 0 {
			continue
		}

		name, scaled := parse.Line(rec)
		t.EntryRef(name).
			AndModify(func(a *station.Accumulator) { a.Observe(scaled) }).
			OrInsertWith(func() station.Accumulator { return station.NewAccumulator(scaled) })
	}
}
