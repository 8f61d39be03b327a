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

// Package parse turns one "NAME;TEMPERATURE" record into a borrowed
// name slice and a scaled-by-10 integer temperature, without
// allocating.
package parse

import "bytes"

// Line parses one record of the form "NAME;[-]D+.D" (rec must not
// contain a trailing newline). The returned name aliases rec; the
// caller must not hold onto it past the lifetime of the block that
// backs rec unless it is copied first (see table.Entry.OrInsertWith).
//
// Line locates the *last* ';' in rec, so station names may themselves
// contain ';' bytes. Behavior on malformed input is undefined: this
// is a documented non-goal, not a recoverable error (inputs are
// assumed well-formed ASCII).
func Line(rec []byte) (name []byte, scaled int32) {
	sep := bytes.LastIndexByte(rec, ';')
	name = rec[:sep]
	num := rec[sep+1:]

	neg := num[0] == '-'
	i := 0
	if neg {
		i = 1
	}

	var mag int32
	for num[i] != '.' {
		mag = mag*10 + int32(num[i]-'0')
		i++
	}
	i++ // skip '.'
	mag = mag*10 + int32(num[i]-'0')

	if neg {
		mag = -mag
	}
	return name, mag
}
