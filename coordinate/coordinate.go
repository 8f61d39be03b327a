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

// Package coordinate wires the reader, the block pool and the
// parser workers together: it spawns the parsers, drives the reader
// on the calling goroutine, signals a one-shot stop once the reader
// returns, joins every parser, and merges their tables into one
// name-sorted result sequence.
package coordinate

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"unicode/utf8"

	"golang.org/x/exp/slices"

	"github.com/onebrc/onebrc/block"
	"github.com/onebrc/onebrc/reader"
	"github.com/onebrc/onebrc/station"
	"github.com/onebrc/onebrc/table"
	"github.com/onebrc/onebrc/worker"
)

// Result is one (station name, summary) pair in the emitted,
// name-sorted sequence.
type Result struct {
	Name    string
	Summary station.Accumulator
}

// Run spawns nParse parser goroutines (one block.Ring each), drives
// the reader to completion on the calling goroutine, joins every
// parser and merges their tables.
//
// Run panics — the core's uniform fatal-error mechanism, see
// spec.md §7 — if nParse < 1, if any parser goroutine panicked
// (the panic value is wrapped and re-raised after every parser has
// been joined), or if a merged station name is not valid UTF-8
// (Open Question (a): this implementation requires UTF-8).
func Run(r io.Reader, nParse int) []Result {
	if nParse < 1 {
		panic("coordinate: nParse must be at least 1")
	}

	rings := make([]*block.Ring, nParse)
	stops := make([]chan struct{}, nParse)
	tables := make([]*table.Table, nParse)
	panics := make([]any, nParse)

	var wg sync.WaitGroup
	wg.Add(nParse)
	for i := 0; i < nParse; i++ {
		rings[i] = block.NewRing(block.DefaultPerRing)
		stops[i] = make(chan struct{}, 1)
		go func(i int) {
			defer wg.Done()
			defer func() {
				if p := recover(); p != nil {
					panics[i] = p
					// Unstick the reader if it is still trying to
					// fill this ring: a dead parser would otherwise
					// never free another Empty block for it.
					rings[i].Abandon()
				}
			}()
			tables[i] = worker.Run(rings[i], stops[i])
		}(i)
	}

	runReader(r, rings)

	for _, s := range stops {
		s <- struct{}{}
	}
	wg.Wait()

	for i, p := range panics {
		if p != nil {
			panic(fmt.Errorf("coordinate: parser %d panicked: %v", i, p))
		}
	}

	return merge(tables)
}

// runReader drives the reader on the calling goroutine. If it
// panics (an input-shape violation, spec.md §7), every ring is
// abandoned first so no parser spins forever waiting on blocks that
// will never arrive, then the panic is re-raised.
func runReader(r io.Reader, rings []*block.Ring) {
	defer func() {
		if p := recover(); p != nil {
			for _, ring := range rings {
				ring.Abandon()
			}
			panic(p)
		}
	}()
	reader.Run(r, rings)
}

func merge(tables []*table.Table) []Result {
	merged := make(map[string]station.Accumulator, worker.InitialTableCapacity)
	for _, t := range tables {
		for _, pair := range t.Drain() {
			if !utf8.Valid(pair.Name) {
				panic(fmt.Errorf("coordinate: station name %q is not valid UTF-8", pair.Name))
			}
			name := string(pair.Name)
			if acc, ok := merged[name]; ok {
				acc.Merge(pair.Value)
				merged[name] = acc
			} else {
				merged[name] = pair.Value
			}
		}
	}

	results := make([]Result, 0, len(merged))
	for name, acc := range merged {
		results = append(results, Result{Name: name, Summary: acc})
	}
	slices.SortFunc(results, func(a, b Result) int {
		return strings.Compare(a.Name, b.Name)
	})
	return results
}

// Format renders results (already name-sorted, as returned by Run)
// as the single output line from spec.md §6:
// "{name1=min1/mean1/max1, name2=..., ...}\n".
func Format(results []Result) string {
	var b strings.Builder
	b.WriteByte('{')
	for i, res := range results {
		if i != 0 {
			b.WriteString(", ")
		}
		b.WriteString(res.Name)
		b.WriteByte('=')
		b.WriteString(res.Summary.String())
	}
	b.WriteString("}\n")
	return b.String()
}
