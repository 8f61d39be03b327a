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

// Command onebrc aggregates min/mean/max temperatures per weather
// station out of a very large "station;temperature" file. It is the
// external collaborator around the core pipeline in
// github.com/onebrc/onebrc/coordinate: argument parsing, opening the
// input (transparently decompressing .gz), discovering the CPU
// count, and reporting fatal errors all live here, not in the core.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"

	"github.com/onebrc/onebrc/coordinate"
	"github.com/onebrc/onebrc/internal/config"
)

var (
	dashWorkers int
	dashConfig  string
	dashStats   bool
)

func init() {
	flag.IntVar(&dashWorkers, "workers", 0, "number of parser goroutines (default: runtime.NumCPU()-1)")
	flag.StringVar(&dashConfig, "config", "", "optional YAML configuration file (see internal/config.Config)")
	flag.BoolVar(&dashStats, "stats", false, "print elapsed time and throughput to stderr after the run")
}

func main() {
	flag.Usage = printHelp
	flag.Parse()

	// The core reports every fatal condition (spec.md §7: input-shape
	// and pool-discipline violations, parser panics) as a panic; the
	// CLI is the sole place that turns one into a process exit code.
	defer func() {
		if p := recover(); p != nil {
			exit(fmt.Errorf("%v", p))
		}
	}()

	path := "measurements.txt"
	if flag.NArg() > 0 {
		path = flag.Arg(0)
	}

	cfg := config.Default()
	if dashConfig != "" {
		var err error
		cfg, err = config.Load(dashConfig)
		if err != nil {
			exit(err)
		}
	}
	if dashStats {
		cfg.Verbose = true
	}

	nParse := dashWorkers
	if nParse == 0 {
		cores := runtime.NumCPU()
		if cores < 2 {
			exitf("this program expects at least two cores, and doesn't work single-threaded (found %d)", cores)
		}
		nParse = cores - 1
	}

	src, size, err := openInput(path)
	if err != nil {
		exit(err)
	}
	defer src.Close()

	runID := uuid.New()
	start := time.Now()

	results := coordinate.Run(src, nParse)

	out := bufio.NewWriterSize(os.Stdout, cfg.OutputBufferBytes)
	if _, err := out.WriteString(coordinate.Format(results)); err != nil {
		exit(err)
	}
	if err := out.Flush(); err != nil {
		exit(err)
	}

	if cfg.Verbose {
		printStats(runID, time.Since(start), size, len(results), nParse)
	}
}

// openInput opens path, transparently wrapping it in a gzip reader
// when the name ends in .gz (a CLI-layer convenience; the core never
// knows whether its io.Reader is compressed). size is the file's
// size on disk (for .gz input, the compressed size), used only for
// -stats throughput reporting.
func openInput(path string) (io.ReadCloser, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open %s: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, fmt.Errorf("stat %s: %w", path, err)
	}
	size := info.Size()

	if !strings.EqualFold(filepath.Ext(path), ".gz") {
		return f, size, nil
	}

	gz, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, 0, fmt.Errorf("open gzip %s: %w", path, err)
	}
	return gzipCloser{gz, f}, size, nil
}

// gzipCloser closes both the gzip stream and the underlying file.
type gzipCloser struct {
	*gzip.Reader
	f *os.File
}

func (g gzipCloser) Close() error {
	g.Reader.Close()
	return g.f.Close()
}

func printStats(runID uuid.UUID, elapsed time.Duration, bytesRead int64, stations, nParse int) {
	rate := float64(bytesRead) / elapsed.Seconds() / (1024 * 1024)
	fmt.Fprintf(os.Stderr, "run %s: %d parsers, %d stations, %s in %v (%.1f MiB/s)\n",
		runID, nParse, stations, formatSize(bytesRead), elapsed, rate)
}

func formatSize(size int64) string {
	switch {
	case size > 1024*1024*1024:
		return fmt.Sprintf("%.2f GiB", float64(size)/(1024*1024*1024))
	case size > 1024*1024:
		return fmt.Sprintf("%.2f MiB", float64(size)/(1024*1024))
	case size > 1024:
		return fmt.Sprintf("%.2f KiB", float64(size)/1024)
	default:
		return fmt.Sprintf("%d B", size)
	}
}

func exitf(f string, args ...any) {
	exit(fmt.Errorf(f, args...))
}

func exit(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}

func printHelp() {
	fmt.Fprintf(os.Stderr, "usage: onebrc [flags] [path]\n\n")
	fmt.Fprintf(os.Stderr, "aggregates min/mean/max temperature per station from path (default measurements.txt)\n\n")
	flag.PrintDefaults()
}
