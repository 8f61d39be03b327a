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

// Package station holds the per-station running summary: the minimum,
// maximum, sum and count of a station's observed temperatures, all
// stored as integers scaled by 10 so a single decimal digit is exact.
package station

import "fmt"

// Accumulator is the running min/max/sum/count for one station.
// The zero value is not meaningful on its own; the first Observe
// on a freshly zeroed Accumulator must go through NewAccumulator
// or the caller must take care that min/max start at the first
// observed value (see table.Entry.OrInsertWith).
type Accumulator struct {
	Min, Max, Sum int32
	Count         uint32
}

// NewAccumulator returns an Accumulator representing a single
// observation of scaled.
func NewAccumulator(scaled int32) Accumulator {
	return Accumulator{Min: scaled, Max: scaled, Sum: scaled, Count: 1}
}

// Observe folds one more scaled temperature reading into a.
func (a *Accumulator) Observe(scaled int32) {
	if scaled > a.Max {
		a.Max = scaled
	} else if scaled < a.Min {
		a.Min = scaled
	}
	a.Sum += scaled
	a.Count++
}

// Merge commutatively folds other into a. Merge is safe to call
// with a and other owned by different goroutines as long as
// neither is concurrently mutated during the call.
func (a *Accumulator) Merge(other Accumulator) {
	if other.Min < a.Min {
		a.Min = other.Min
	}
	if other.Max > a.Max {
		a.Max = other.Max
	}
	a.Sum += other.Sum
	a.Count += other.Count
}

// String renders "min/mean/max", each with exactly one digit after
// the decimal point; mean is the arithmetic mean of the raw
// (unscaled) temperatures.
func (a Accumulator) String() string {
	return fmt.Sprintf("%.1f/%.1f/%.1f",
		float64(a.Min)/10,
		float64(a.Sum)/10/float64(a.Count),
		float64(a.Max)/10,
	)
}
