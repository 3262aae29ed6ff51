/*
 *	Copyright 2025 Jan Pfeifer
 *
 *	Licensed under the Apache License, Version 2.0 (the "License");
 *	you may not use this file except in compliance with the License.
 *	You may obtain a copy of the License at
 *
 *	http://www.apache.org/licenses/LICENSE-2.0
 *
 *	Unless required by applicable law or agreed to in writing, software
 *	distributed under the License is distributed on an "AS IS" BASIS,
 *	WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *	See the License for the specific language governing permissions and
 *	limitations under the License.
 */

// Package sparse defines the compressed storage layout a Sparse tensor axis
// must expose, and helpers to build and validate it.
//
// Each Sparse axis of a tensor is stored as one compressed Level: a pair of
// parallel arrays Pos and Coord. For an outer position p (the row index for
// CSR, or the previous level's entry position for deeper levels), the entries
// belonging to p occupy the half-open range [Pos[p], Pos[p+1]) of Coord, and
// Coord[idx] is the coordinate (the index value at this axis) of entry idx.
// The value array of the tensor is parallel to the innermost level's Coord,
// so the same idx that recovers the leaf coordinate also addresses the stored
// element.
//
// The layout is level-generic: a [Dense, Sparse] matrix (CSR) has one Level
// whose outer positions are the dense row indices; a [Sparse, Sparse] matrix
// (DCSR) has a root Level compressing the rows (outer extent 1) and a second
// Level keyed by the root level's entry positions.
//
// Invariants, enforced by Level.Check:
//   - Pos is non-decreasing, with len(Pos) == outer extent + 1;
//   - every coordinate is in [0, axis size);
//   - within one outer-position range, coordinates are strictly increasing,
//     so there are no duplicates and ranges can be merged by a linear walk.
package sparse

import (
	"fmt"

	"github.com/gomlx/sparselower/types/xslices"
	"github.com/pkg/errors"
)

// Level is the compressed storage of one Sparse tensor axis: position
// offsets and the coordinates they bound. See the package documentation for
// the layout contract.
type Level struct {
	Pos   []int
	Coord []int
}

// NumEntries returns the number of stored coordinates at this level.
func (l Level) NumEntries() int { return len(l.Coord) }

// OuterExtent returns the number of outer positions the level is keyed by.
func (l Level) OuterExtent() int { return len(l.Pos) - 1 }

// Range returns the half-open entry range [start, end) belonging to outer
// position p.
func (l Level) Range(p int) (start, end int) {
	return l.Pos[p], l.Pos[p+1]
}

// Check validates the level against the layout contract, for the given outer
// extent and axis size. It returns a descriptive error on the first
// violation found.
func (l Level) Check(outerExtent, axisSize int) error {
	if len(l.Pos) != outerExtent+1 {
		return errors.Errorf("sparse level has %d position offsets, want outer extent + 1 = %d", len(l.Pos), outerExtent+1)
	}
	if l.Pos[0] != 0 {
		return errors.Errorf("sparse level positions must start at 0, got %d", l.Pos[0])
	}
	for p := 0; p < outerExtent; p++ {
		if l.Pos[p+1] < l.Pos[p] {
			return errors.Errorf("sparse level positions must be non-decreasing, got Pos[%d]=%d > Pos[%d]=%d", p, l.Pos[p], p+1, l.Pos[p+1])
		}
	}
	if last := xslices.Last(l.Pos); last != len(l.Coord) {
		return errors.Errorf("sparse level has %d coordinates, but positions end at %d", len(l.Coord), last)
	}
	for p := 0; p < outerExtent; p++ {
		start, end := l.Range(p)
		for idx := start; idx < end; idx++ {
			coord := l.Coord[idx]
			if coord < 0 || coord >= axisSize {
				return errors.Errorf("coordinate %d at entry %d out of range [0, %d)", coord, idx, axisSize)
			}
			if idx > start && coord <= l.Coord[idx-1] {
				return errors.Errorf("coordinates within outer position %d must be strictly increasing, got %d after %d", p, coord, l.Coord[idx-1])
			}
		}
	}
	return nil
}

// String implements fmt.Stringer.
func (l Level) String() string {
	return fmt.Sprintf("Level{Pos: %v, Coord: %v}", l.Pos, l.Coord)
}
