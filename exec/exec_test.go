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

package exec_test

import (
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/sparselower/compute"
	. "github.com/gomlx/sparselower/exec"
	"github.com/gomlx/sparselower/lower"
	"github.com/gomlx/sparselower/sparse"
	"github.com/gomlx/sparselower/types/formats"
	"github.com/gomlx/sparselower/types/shapes"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/x448/float16"
)

// spmv builds and lowers C[i] = sum_k(A[i, k] * B[k]) with A stored CSR, and
// returns the nest with the tensors to bind.
func spmv(t *testing.T, rows, cols int) (nest *lower.Nest, a, b, c *compute.Tensor) {
	a = must.M1(compute.Declare("A", shapes.Make(dtypes.Float32, rows, cols), formats.Make(formats.Dense, formats.Sparse)))
	b = must.M1(compute.Declare("B", shapes.Make(dtypes.Float32, cols), formats.DenseFormat(1)))
	c = must.M1(compute.Declare("C", shapes.Make(dtypes.Float32, rows), formats.DenseFormat(1)))
	i := compute.NewAxis("i", rows)
	k := compute.ReduceAxis("k", cols)
	def := must.M1(compute.Define(c, []*compute.Axis{i}, []*compute.Axis{k},
		compute.Mul(a.At(i, k), b.At(k))))
	nest = must.M1(lower.Lower(def))
	return
}

func TestCSRMatVec(t *testing.T) {
	matrix := [][]float32{
		{0, 1, 2, 0},
		{0, 3, 4, 5},
		{0, 0, 0, 6},
	}
	level, values := sparse.CSRFromDense(matrix)
	bValues := []float32{1, 2, 3, 4}

	nest, a, b, c := spmv(t, 3, 4)
	m := New(nest).
		Bind(a, Compressed(values, map[int]sparse.Level{1: level})).
		Bind(b, Dense(bValues)).
		Bind(c, DenseZeros(3))
	require.NoError(t, m.Run())

	// Dense reference: C[i] = sum_k A[i, k] * B[k] over the full space.
	ref := make([]float64, 3)
	for indices := range shapes.Make(dtypes.Float32, 3, 4).Iter() {
		i, k := indices[0], indices[1]
		ref[i] += float64(matrix[i][k]) * float64(bValues[k])
	}
	got := m.Output().Float64s()
	require.Len(t, got, 3)
	for i := range ref {
		assert.InDeltaf(t, ref[i], got[i], 1e-6, "row %d", i)
	}
	assert.Equal(t, []float64{8, 38, 24}, got)
}

func TestEmptyPositionRange(t *testing.T) {
	// Row 1 stores nothing: its accumulator must stay at the additive
	// identity.
	level := sparse.Level{Pos: []int{0, 2, 2, 3}, Coord: []int{0, 2, 1}}
	values := []float32{1, 2, 3}

	nest, a, b, c := spmv(t, 3, 4)
	m := New(nest).
		Bind(a, Compressed(values, map[int]sparse.Level{1: level})).
		Bind(b, Dense([]float32{10, 20, 30, 40})).
		Bind(c, DenseZeros(3))
	require.NoError(t, m.Run())
	got := m.Output().Float64s()
	assert.Equal(t, 0.0, got[1])
	assert.Equal(t, []float64{1*10 + 2*30, 0, 3 * 20}, got)
}

func TestDCSRMatVec(t *testing.T) {
	matrix := [][]float64{
		{5, 1, 0, 0, 0},
		{7, 3, 0, 0, 0},
		{0, 0, 0, 0, 0},
		{8, 0, 0, 4, 9},
	}
	rowLevel, colLevel, values := sparse.DCSRFromDense(matrix)

	a := must.M1(compute.Declare("A", shapes.Make(dtypes.Float64, 4, 5), formats.Make(formats.Sparse, formats.Sparse)))
	b := must.M1(compute.Declare("B", shapes.Make(dtypes.Float64, 5), formats.DenseFormat(1)))
	c := must.M1(compute.Declare("C", shapes.Make(dtypes.Float64, 4), formats.DenseFormat(1)))
	i := compute.NewAxis("i", 4)
	k := compute.ReduceAxis("k", 5)
	def := must.M1(compute.Define(c, []*compute.Axis{i}, []*compute.Axis{k},
		compute.Mul(a.At(i, k), b.At(k))))
	nest := must.M1(lower.Lower(def))

	bValues := []float64{1, 2, 3, 4, 5}
	m := New(nest).
		Bind(a, Compressed(values, map[int]sparse.Level{0: rowLevel, 1: colLevel})).
		Bind(b, Dense(bValues)).
		Bind(c, DenseZeros(4))
	require.NoError(t, m.Run())

	ref := make([]float64, 4)
	for row := range matrix {
		for col, v := range matrix[row] {
			ref[row] += v * bValues[col]
		}
	}
	assert.Equal(t, ref, m.Output().Float64s())
	assert.Equal(t, 0.0, m.Output().Float64s()[2], "empty row stays at the additive identity")
}

func TestMergedSparseDot(t *testing.T) {
	// a = [5 0 0 2 1], b = [0 3 0 4 0]: the only shared coordinate is 3.
	aLevel, aValues := sparse.VectorFromDense([]float64{5, 0, 0, 2, 1})
	bLevel, bValues := sparse.VectorFromDense([]float64{0, 3, 0, 4, 0})

	a := must.M1(compute.Declare("A", shapes.Make(dtypes.Float64, 5), formats.Make(formats.Sparse)))
	b := must.M1(compute.Declare("B", shapes.Make(dtypes.Float64, 5), formats.Make(formats.Sparse)))
	c := must.M1(compute.Declare("C", shapes.Scalar(dtypes.Float64), formats.DenseFormat(0)))
	k := compute.ReduceAxis("k", 5)
	def := must.M1(compute.Define(c, nil, []*compute.Axis{k},
		compute.Mul(a.At(k), b.At(k))))
	nest := must.M1(lower.Lower(def))

	m := New(nest).
		Bind(a, Compressed(aValues, map[int]sparse.Level{0: aLevel})).
		Bind(b, Compressed(bValues, map[int]sparse.Level{0: bLevel})).
		Bind(c, DenseZeros(1))
	require.NoError(t, m.Run())
	assert.Equal(t, []float64{2 * 4}, m.Output().Float64s())
}

func TestMergedSparseDisjoint(t *testing.T) {
	// No shared coordinate: nothing accumulates, nothing errors.
	aLevel, aValues := sparse.VectorFromDense([]float64{1, 0, 2, 0, 0})
	bLevel, bValues := sparse.VectorFromDense([]float64{0, 3, 0, 4, 0})

	a := must.M1(compute.Declare("A", shapes.Make(dtypes.Float64, 5), formats.Make(formats.Sparse)))
	b := must.M1(compute.Declare("B", shapes.Make(dtypes.Float64, 5), formats.Make(formats.Sparse)))
	c := must.M1(compute.Declare("C", shapes.Scalar(dtypes.Float64), formats.DenseFormat(0)))
	k := compute.ReduceAxis("k", 5)
	def := must.M1(compute.Define(c, nil, []*compute.Axis{k},
		compute.Mul(a.At(k), b.At(k))))
	nest := must.M1(lower.Lower(def))

	m := New(nest).
		Bind(a, Compressed(aValues, map[int]sparse.Level{0: aLevel})).
		Bind(b, Compressed(bValues, map[int]sparse.Level{0: bLevel})).
		Bind(c, DenseZeros(1))
	require.NoError(t, m.Run())
	assert.Equal(t, []float64{0}, m.Output().Float64s())
}

func TestSymbolicExtent(t *testing.T) {
	n := shapes.Symbol("n")
	b := must.M1(compute.Declare("B", shapes.MakeDims(dtypes.Float32, n), formats.DenseFormat(1)))
	c := must.M1(compute.Declare("C", shapes.MakeDims(dtypes.Float32, n), formats.DenseFormat(1)))
	i := compute.NewAxisDim("i", n)
	def := must.M1(compute.Define(c, []*compute.Axis{i}, nil, b.At(i)))
	nest := must.M1(lower.Lower(def))

	m := New(nest).
		Bind(b, Dense([]float32{1, 2, 3, 4})).
		Bind(c, DenseZeros(4))
	require.Error(t, m.Run(), "the symbolic size must be bound")

	m.BindSize("n", 4)
	require.NoError(t, m.Run())
	assert.Equal(t, []float64{1, 2, 3, 4}, m.Output().Float64s())
}

func TestBindingValidation(t *testing.T) {
	nest, a, b, c := spmv(t, 3, 4)
	level := sparse.Level{Pos: []int{0, 2, 5, 6}, Coord: []int{1, 2, 1, 2, 3, 3}}
	values := []float32{1, 2, 3, 4, 5, 6}

	// Missing binding.
	m := New(nest).
		Bind(b, Dense([]float32{1, 2, 3, 4})).
		Bind(c, DenseZeros(3))
	require.Error(t, m.Run())

	// Sparse axis without a compressed level.
	m = New(nest).
		Bind(a, Dense(make([]float32, 12))).
		Bind(b, Dense([]float32{1, 2, 3, 4})).
		Bind(c, DenseZeros(3))
	require.Error(t, m.Run())

	// Compressed level bound to a dense axis.
	m = New(nest).
		Bind(a, Compressed(values, map[int]sparse.Level{0: level, 1: level})).
		Bind(b, Dense([]float32{1, 2, 3, 4})).
		Bind(c, DenseZeros(3))
	require.Error(t, m.Run())

	// Value array length disagrees with the layout.
	m = New(nest).
		Bind(a, Compressed([]float32{1, 2, 3}, map[int]sparse.Level{1: level})).
		Bind(b, Dense([]float32{1, 2, 3, 4})).
		Bind(c, DenseZeros(3))
	require.Error(t, m.Run())

	// Malformed level: coordinates out of range for the axis size.
	bad := sparse.Level{Pos: []int{0, 2, 5, 6}, Coord: []int{1, 9, 1, 2, 3, 3}}
	m = New(nest).
		Bind(a, Compressed(values, map[int]sparse.Level{1: bad})).
		Bind(b, Dense([]float32{1, 2, 3, 4})).
		Bind(c, DenseZeros(3))
	require.Error(t, m.Run())
}

func TestStorageDTypes(t *testing.T) {
	f16 := []float16.Float16{
		float16.Fromfloat32(1.5),
		float16.Fromfloat32(-2),
		float16.Fromfloat32(0.25),
	}
	s := Dense(f16)
	assert.Equal(t, []float64{1.5, -2, 0.25}, s.Float64s())
	assert.Equal(t, f16, s.AsSlice(dtypes.Float16))
	assert.Equal(t, []float32{1.5, -2, 0.25}, s.AsSlice(dtypes.Float32))
	assert.Equal(t, []float64{1.5, -2, 0.25}, s.AsSlice(dtypes.Float64))
	require.Panics(t, func() { s.AsSlice(dtypes.Int32) })
	require.Panics(t, func() { Dense([]int{1, 2}) })
}
