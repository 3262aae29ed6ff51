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

package shapes

import (
	"slices"
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShape(t *testing.T) {
	invalidShape := Invalid()
	require.False(t, invalidShape.Ok())

	shape0 := Scalar(dtypes.Float64)
	require.True(t, shape0.Ok())
	require.True(t, shape0.IsScalar())
	require.Equal(t, 0, shape0.Rank())
	require.Equal(t, 1, shape0.Size())
	require.Equal(t, 8, int(shape0.Memory()))

	shape1 := Make(dtypes.Float32, 4, 3, 2)
	require.True(t, shape1.Ok())
	require.False(t, shape1.IsScalar())
	require.True(t, shape1.IsFullyDefined())
	require.Equal(t, 3, shape1.Rank())
	require.Equal(t, 4*3*2, shape1.Size())
	require.Equal(t, 4*4*3*2, int(shape1.Memory()))
	assert.Equal(t, "(Float32)[4 3 2]", shape1.String())
	assert.Equal(t, 2, shape1.Dim(-1).Size())
	assert.Equal(t, 4, shape1.Dim(0).Size())

	require.Panics(t, func() { Make(dtypes.Float32, 3, 0) })
	require.Panics(t, func() { shape1.Dim(3) })
}

func TestSymbolicDims(t *testing.T) {
	n := Symbol("n")
	require.True(t, n.IsSymbolic())
	require.Equal(t, "n", n.SymbolName())
	require.Panics(t, func() { n.Size() })
	require.Panics(t, func() { Symbol("") })

	shape := MakeDims(dtypes.Float32, Symbol("m"), FixedDim(4))
	require.True(t, shape.Ok())
	require.False(t, shape.IsFullyDefined())
	assert.Equal(t, "(Float32)[m 4]", shape.String())
	require.Panics(t, func() { shape.Size() })
	require.Panics(t, func() { MakeDims(dtypes.Float32, Dim{}) })
}

func TestEqualAndClone(t *testing.T) {
	a := Make(dtypes.Float64, 2, 3)
	b := Make(dtypes.Float64, 2, 3)
	require.True(t, a.Equal(b))
	require.False(t, a.Equal(Make(dtypes.Float32, 2, 3)))
	require.False(t, a.Equal(Make(dtypes.Float64, 3, 2)))
	require.False(t, a.Equal(MakeDims(dtypes.Float64, FixedDim(2), Symbol("n"))))
	require.True(t,
		MakeDims(dtypes.Float64, Symbol("n")).Equal(MakeDims(dtypes.Float64, Symbol("n"))))

	c := a.Clone()
	require.True(t, a.Equal(c))
	c.Dimensions[0] = FixedDim(7)
	require.Equal(t, 2, a.Dim(0).Size(), "Clone must not share dimensions")
}

func TestCheckRank(t *testing.T) {
	shape := Make(dtypes.Float32, 2, 3)
	require.NoError(t, shape.CheckRank(2))
	require.Error(t, shape.CheckRank(3))
	require.Panics(t, func() { shape.AssertRank(1) })
	require.NoError(t, CheckRank(shape, 2))
}

func TestIter(t *testing.T) {
	shape := Make(dtypes.Int32, 2, 3)
	var got [][]int
	for indices := range shape.Iter() {
		got = append(got, slices.Clone(indices))
	}
	want := [][]int{{0, 0}, {0, 1}, {0, 2}, {1, 0}, {1, 1}, {1, 2}}
	require.Equal(t, want, got)

	var scalarCount int
	for range Scalar(dtypes.Float32).Iter() {
		scalarCount++
	}
	require.Equal(t, 1, scalarCount)

	require.Panics(t, func() {
		MakeDims(dtypes.Float32, Symbol("n")).Iter()
	})
}
