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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheck(t *testing.T) {
	// CSR column level of the matrix
	// [0 1 2 0]
	// [0 3 4 5]
	// [0 0 0 6]
	level := Level{Pos: []int{0, 2, 5, 6}, Coord: []int{1, 2, 1, 2, 3, 3}}
	require.NoError(t, level.Check(3, 4))
	require.Equal(t, 6, level.NumEntries())
	require.Equal(t, 3, level.OuterExtent())

	start, end := level.Range(1)
	assert.Equal(t, 2, start)
	assert.Equal(t, 5, end)

	// Empty ranges are valid.
	require.NoError(t, Level{Pos: []int{0, 0, 0}}.Check(2, 4))

	badLen := Level{Pos: []int{0, 2}, Coord: []int{1, 2}}
	require.Error(t, badLen.Check(3, 4))

	decreasing := Level{Pos: []int{0, 2, 1}, Coord: []int{1, 2}}
	require.Error(t, decreasing.Check(2, 4))

	danglingCoords := Level{Pos: []int{0, 1}, Coord: []int{1, 2}}
	require.Error(t, danglingCoords.Check(1, 4))

	outOfRange := Level{Pos: []int{0, 1}, Coord: []int{4}}
	require.Error(t, outOfRange.Check(1, 4))

	duplicate := Level{Pos: []int{0, 2}, Coord: []int{1, 1}}
	require.Error(t, duplicate.Check(1, 4))

	unsorted := Level{Pos: []int{0, 2}, Coord: []int{2, 1}}
	require.Error(t, unsorted.Check(1, 4))
}

func TestCSRFromDense(t *testing.T) {
	matrix := [][]float32{
		{0, 1, 2, 0},
		{0, 3, 4, 5},
		{0, 0, 0, 6},
	}
	level, values := CSRFromDense(matrix)
	require.NoError(t, level.Check(3, 4))
	assert.Equal(t, []int{0, 2, 5, 6}, level.Pos)
	assert.Equal(t, []int{1, 2, 1, 2, 3, 3}, level.Coord)
	assert.Equal(t, []float32{1, 2, 3, 4, 5, 6}, values)

	require.Panics(t, func() {
		CSRFromDense([][]float32{{1, 2}, {3}})
	})
}

func TestDCSRFromDense(t *testing.T) {
	matrix := [][]float64{
		{5, 1, 0, 0, 0},
		{7, 3, 0, 0, 0},
		{0, 0, 0, 0, 0},
		{8, 0, 0, 4, 9},
	}
	rowLevel, colLevel, values := DCSRFromDense(matrix)
	require.NoError(t, rowLevel.Check(1, 4))
	assert.Equal(t, []int{0, 3}, rowLevel.Pos)
	assert.Equal(t, []int{0, 1, 3}, rowLevel.Coord)

	// The column level is keyed by the row level's entry positions, not by
	// the dense row indices: the empty row contributes nothing.
	require.NoError(t, colLevel.Check(rowLevel.NumEntries(), 5))
	assert.Equal(t, []int{0, 2, 4, 7}, colLevel.Pos)
	assert.Equal(t, []int{0, 1, 0, 1, 0, 3, 4}, colLevel.Coord)
	assert.Equal(t, []float64{5, 1, 7, 3, 8, 4, 9}, values)
}

func TestVectorFromDense(t *testing.T) {
	level, values := VectorFromDense([]float32{0, 2, 0, 0, 5})
	require.NoError(t, level.Check(1, 5))
	assert.Equal(t, []int{0, 2}, level.Pos)
	assert.Equal(t, []int{1, 4}, level.Coord)
	assert.Equal(t, []float32{2, 5}, values)

	empty, emptyValues := VectorFromDense([]float64{0, 0})
	require.NoError(t, empty.Check(1, 2))
	assert.Equal(t, 0, empty.NumEntries())
	assert.Empty(t, emptyValues)
}
