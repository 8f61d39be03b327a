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

package coordinate

import (
	"strings"
	"testing"
)

const sample = "Hamburg;12.0\n" +
	"Bulawayo;8.9\n" +
	"Palembang;38.8\n" +
	"Hamburg;13.0\n" +
	"St. John's;15.2\n" +
	"Bulawayo;9.1\n" +
	"Hamburg;-1.5\n"

// TestRunSingleWorker is scenario S1: a small input on a single
// parser produces the expected per-station summaries.
func TestRunSingleWorker(t *testing.T) {
	results := Run(strings.NewReader(sample), 1)
	want := map[string]string{
		"Hamburg":    "-1.5/7.8/13.0",
		"Bulawayo":   "8.9/9.0/9.1",
		"Palembang":  "38.8/38.8/38.8",
		"St. John's": "15.2/15.2/15.2",
	}
	if len(results) != len(want) {
		t.Fatalf("got %d stations, want %d: %+v", len(results), len(want), results)
	}
	for _, r := range results {
		w, ok := want[r.Name]
		if !ok {
			t.Fatalf("unexpected station %q", r.Name)
		}
		if r.Summary.String() != w {
			t.Errorf("%s: got %s, want %s", r.Name, r.Summary.String(), w)
		}
	}
}

// TestRunWorkerCountInvariance is spec.md §8 invariant: the aggregate
// result is identical regardless of how many parser goroutines
// process the stream (S4/S5).
func TestRunWorkerCountInvariance(t *testing.T) {
	var baseline string
	for _, n := range []int{1, 2, 3, 5, 8} {
		results := Run(strings.NewReader(sample), n)
		got := Format(results)
		if baseline == "" {
			baseline = got
			continue
		}
		if got != baseline {
			t.Errorf("nParse=%d produced %q, want %q", n, got, baseline)
		}
	}
}

// TestRunRepeatable checks determinism across repeated runs with the
// same worker count (S6): output ordering and values never vary.
func TestRunRepeatable(t *testing.T) {
	var first string
	for i := 0; i < 10; i++ {
		results := Run(strings.NewReader(sample), 4)
		got := Format(results)
		if i == 0 {
			first = got
			continue
		}
		if got != first {
			t.Fatalf("run %d diverged: got %q, want %q", i, got, first)
		}
	}
}

// TestRunResultsAreSorted is spec.md §6's output-ordering requirement:
// results are emitted in station-name sort order.
func TestRunResultsAreSorted(t *testing.T) {
	results := Run(strings.NewReader(sample), 3)
	for i := 1; i < len(results); i++ {
		if results[i-1].Name >= results[i].Name {
			t.Fatalf("results not sorted: %q >= %q", results[i-1].Name, results[i].Name)
		}
	}
}

// TestRunMinMeanMaxOrdering is spec.md §8 invariant 4: min <= mean <=
// max for every station, and count equals the number of observations.
func TestRunMinMeanMaxOrdering(t *testing.T) {
	results := Run(strings.NewReader(sample), 2)
	counts := map[string]uint32{
		"Hamburg": 3, "Bulawayo": 2, "Palembang": 1, "St. John's": 1,
	}
	for _, r := range results {
		s := r.Summary
		if s.Min > s.Max {
			t.Errorf("%s: min %d > max %d", r.Name, s.Min, s.Max)
		}
		if mean := float64(s.Sum) / float64(s.Count); mean < float64(s.Min) || mean > float64(s.Max) {
			t.Errorf("%s: mean %v outside [%d, %d]", r.Name, mean, s.Min, s.Max)
		}
		if s.Count != counts[r.Name] {
			t.Errorf("%s: count %d, want %d", r.Name, s.Count, counts[r.Name])
		}
	}
}

// TestRunSingleStationRepeated is scenario S2: one station repeated
// many times collapses into a single accumulated entry.
func TestRunSingleStationRepeated(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 500; i++ {
		b.WriteString("Only;10.0\n")
	}
	results := Run(strings.NewReader(b.String()), 4)
	if len(results) != 1 {
		t.Fatalf("got %d stations, want 1", len(results))
	}
	if results[0].Summary.Count != 500 {
		t.Errorf("count = %d, want 500", results[0].Summary.Count)
	}
	if results[0].Summary.String() != "10.0/10.0/10.0" {
		t.Errorf("summary = %s, want 10.0/10.0/10.0", results[0].Summary.String())
	}
}

// TestRunNegativeAndPositive is scenario S3: negative and positive
// readings for the same station average correctly.
func TestRunNegativeAndPositive(t *testing.T) {
	input := "X;-5.0\nX;5.0\n"
	results := Run(strings.NewReader(input), 1)
	if len(results) != 1 {
		t.Fatalf("got %d stations, want 1", len(results))
	}
	if results[0].Summary.String() != "-5.0/0.0/5.0" {
		t.Errorf("summary = %s, want -5.0/0.0/5.0", results[0].Summary.String())
	}
}

// TestRunNoTrailingNewlineEndToEnd is spec.md §8 property 8 exercised
// through the full pipeline.
func TestRunNoTrailingNewlineEndToEnd(t *testing.T) {
	withNL := Run(strings.NewReader("A;1.0\nB;2.0\n"), 2)
	withoutNL := Run(strings.NewReader("A;1.0\nB;2.0"), 2)
	if Format(withNL) != Format(withoutNL) {
		t.Fatalf("trailing newline changed the result: %q vs %q", Format(withNL), Format(withoutNL))
	}
}

// TestRunLargeCardinality pushes station cardinality well past the
// worker's initial table capacity to exercise table growth under the
// full pipeline (spec.md §4.2 grow path).
func TestRunLargeCardinality(t *testing.T) {
	var b strings.Builder
	n := 2000
	for i := 0; i < n; i++ {
		b.WriteString("Station")
		b.WriteString(itoa(i))
		b.WriteString(";1.0\n")
	}
	results := Run(strings.NewReader(b.String()), 6)
	if len(results) != n {
		t.Fatalf("got %d stations, want %d", len(results), n)
	}
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var digits []byte
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}

func TestRunPanicsOnInvalidWorkerCount(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("Run(0) did not panic")
		}
	}()
	Run(strings.NewReader(""), 0)
}

func TestFormatEmpty(t *testing.T) {
	if got := Format(nil); got != "{}\n" {
		t.Errorf("Format(nil) = %q, want %q", got, "{}\n")
	}
}
