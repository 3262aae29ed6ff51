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

package sparse

import (
	"github.com/gomlx/exceptions"
	"golang.org/x/exp/constraints"
)

// VectorFromDense compresses a dense vector into a single sparse level plus
// the value array of its non-zero elements.
func VectorFromDense[T constraints.Float](values []T) (Level, []T) {
	level := Level{Pos: []int{0, 0}}
	var stored []T
	for coord, v := range values {
		if v == 0 {
			continue
		}
		level.Coord = append(level.Coord, coord)
		stored = append(stored, v)
	}
	level.Pos[1] = len(level.Coord)
	return level, stored
}

// CSRFromDense compresses a dense matrix into CSR form: the sparse column
// level of a [Dense, Sparse] matrix, keyed by row index, plus the value
// array of its non-zero elements. It panics on ragged rows.
func CSRFromDense[T constraints.Float](rows [][]T) (Level, []T) {
	level := Level{Pos: make([]int, 1, len(rows)+1)}
	var stored []T
	for i, row := range rows {
		if len(row) != len(rows[0]) {
			exceptions.Panicf("sparse.CSRFromDense: row %d has %d columns, row 0 has %d", i, len(row), len(rows[0]))
		}
		for coord, v := range row {
			if v == 0 {
				continue
			}
			level.Coord = append(level.Coord, coord)
			stored = append(stored, v)
		}
		level.Pos = append(level.Pos, len(level.Coord))
	}
	return level, stored
}

// DCSRFromDense compresses a dense matrix into DCSR form, the storage of a
// [Sparse, Sparse] matrix: a root level compressing the non-empty rows (its
// single outer position is the whole matrix), a column level keyed by the
// root level's entry positions, and the value array. It panics on ragged
// rows.
func DCSRFromDense[T constraints.Float](rows [][]T) (rowLevel, colLevel Level, stored []T) {
	rowLevel = Level{Pos: []int{0, 0}}
	colLevel = Level{Pos: []int{0}}
	for i, row := range rows {
		if len(row) != len(rows[0]) {
			exceptions.Panicf("sparse.DCSRFromDense: row %d has %d columns, row 0 has %d", i, len(row), len(rows[0]))
		}
		empty := true
		for coord, v := range row {
			if v == 0 {
				continue
			}
			colLevel.Coord = append(colLevel.Coord, coord)
			stored = append(stored, v)
			empty = false
		}
		if empty {
			continue
		}
		rowLevel.Coord = append(rowLevel.Coord, i)
		colLevel.Pos = append(colLevel.Pos, len(colLevel.Coord))
	}
	rowLevel.Pos[1] = len(rowLevel.Coord)
	return
}
