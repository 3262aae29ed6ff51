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

// Package shapes defines Shape, its dimensions (Dim) and associated tools.
//
// Shape represents the rank, dimensions and DType of a tensor declaration.
// DType is the data type of the unit element, defined in
// github.com/gomlx/gopjrt/dtypes.
//
// Unlike a concrete tensor shape, a dimension here may be symbolic: an
// unbound size identified by name only, resolved by whoever executes the
// generated loops. Symbolic dimensions flow through loop-bound computation
// unevaluated.
//
// ## Glossary
//
//   - Rank: number of axes (dimensions) of a tensor.
//   - Axis: the index of one dimension of a multidimensional tensor.
//   - Dimension: the size of a tensor in one of its axes, fixed or symbolic.
//   - DType: the data type of the unit element in a tensor.
//
// Example: `shapes.Make(dtypes.Float32, 3, 4)` is a fixed 3x4 matrix shape;
// `shapes.MakeDims(dtypes.Float32, shapes.Symbol("m"), shapes.Symbol("n"))`
// is an mxn matrix shape whose sizes are only known at execution time.
package shapes

import (
	"fmt"
	"strings"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
)

// Dim is the size of one tensor axis: either a fixed size or a symbolic
// (unbound) size identified by name.
//
// The zero value is an invalid Dim; use FixedDim or Symbol.
type Dim struct {
	size   int
	symbol string
}

// FixedDim returns a Dim with the given fixed size. It panics for size <= 0.
func FixedDim(size int) Dim {
	if size <= 0 {
		exceptions.Panicf("shapes.FixedDim(%d): dimensions must be > 0", size)
	}
	return Dim{size: size}
}

// Symbol returns a symbolic Dim with the given name. It panics for an empty
// name.
func Symbol(name string) Dim {
	if name == "" {
		exceptions.Panicf("shapes.Symbol: empty symbol name")
	}
	return Dim{symbol: name}
}

// IsSymbolic returns whether the dimension is symbolic (unbound).
func (d Dim) IsSymbolic() bool { return d.symbol != "" }

// Ok returns whether the Dim was created with FixedDim or Symbol.
func (d Dim) Ok() bool { return d.symbol != "" || d.size > 0 }

// Size returns the fixed size. It panics for a symbolic dimension, check
// with IsSymbolic first.
func (d Dim) Size() int {
	if d.IsSymbolic() {
		exceptions.Panicf("Dim.Size called on symbolic dimension %q", d.symbol)
	}
	return d.size
}

// SymbolName returns the name of a symbolic dimension, or "" if fixed.
func (d Dim) SymbolName() string { return d.symbol }

// Equal compares two dimensions: fixed sizes by value, symbolic sizes by
// name. A fixed and a symbolic dimension are never equal.
func (d Dim) Equal(d2 Dim) bool { return d == d2 }

// String implements fmt.Stringer: the size for fixed dimensions, the symbol
// name otherwise.
func (d Dim) String() string {
	if d.IsSymbolic() {
		return d.symbol
	}
	return fmt.Sprintf("%d", d.size)
}

// Shape represents the shape of a tensor declaration: its DType and ordered
// dimensions, each fixed or symbolic.
//
// Use Make or MakeDims to create a new shape.
type Shape struct {
	DType      dtypes.DType
	Dimensions []Dim
}

// HasShape is an interface for objects that have an associated Shape.
type HasShape interface {
	Shape() Shape
}

// Make returns a Shape with the given fixed dimensions. It panics if any
// dimension is <= 0.
func Make(dtype dtypes.DType, dimensions ...int) Shape {
	s := Shape{DType: dtype, Dimensions: make([]Dim, len(dimensions))}
	for axis, size := range dimensions {
		if size <= 0 {
			exceptions.Panicf("shapes.Make(%s): cannot create a shape with an axis with dimension <= 0", dtype)
		}
		s.Dimensions[axis] = Dim{size: size}
	}
	return s
}

// MakeDims returns a Shape with the given dimensions, fixed or symbolic.
func MakeDims(dtype dtypes.DType, dimensions ...Dim) Shape {
	s := Shape{DType: dtype, Dimensions: make([]Dim, len(dimensions))}
	for axis, dim := range dimensions {
		if !dim.Ok() {
			exceptions.Panicf("shapes.MakeDims(%s): invalid dimension for axis %d", dtype, axis)
		}
		s.Dimensions[axis] = dim
	}
	return s
}

// Scalar returns a scalar Shape for the given dtype.
func Scalar(dtype dtypes.DType) Shape {
	return Shape{DType: dtype}
}

// Invalid returns an invalid shape.
//
// Invalid().Ok() == false.
func Invalid() Shape {
	return Shape{DType: dtypes.InvalidDType}
}

// Ok returns whether this is a valid Shape. A "zero" Shape{} is invalid.
func (s Shape) Ok() bool { return s.DType != dtypes.InvalidDType }

// Rank of the shape, that is, the number of dimensions.
func (s Shape) Rank() int { return len(s.Dimensions) }

// IsScalar returns whether the shape represents a scalar: no dimensions.
func (s Shape) IsScalar() bool { return s.Ok() && s.Rank() == 0 }

// Dim returns the dimension of the given axis. axis can take negative
// numbers, in which case it counts from the end -- so axis=-1 refers to the
// last axis. Like with slice indexing, it panics for an out-of-bounds axis.
func (s Shape) Dim(axis int) Dim {
	adjustedAxis := axis
	if adjustedAxis < 0 {
		adjustedAxis += s.Rank()
	}
	if adjustedAxis < 0 || adjustedAxis >= s.Rank() {
		exceptions.Panicf("Shape.Dim(%d) out-of-bounds for rank %d (shape=%s)", axis, s.Rank(), s)
	}
	return s.Dimensions[adjustedAxis]
}

// Shape returns a shallow copy of itself. It implements the HasShape
// interface.
func (s Shape) Shape() Shape { return s }

// IsFullyDefined returns whether every dimension is fixed.
func (s Shape) IsFullyDefined() bool {
	for _, dim := range s.Dimensions {
		if dim.IsSymbolic() {
			return false
		}
	}
	return true
}

// Size returns the number of elements of DType needed for this shape, the
// product of all dimensions. It panics if the shape is not fully defined.
func (s Shape) Size() (size int) {
	size = 1
	for _, dim := range s.Dimensions {
		size *= dim.Size()
	}
	return
}

// Memory returns the memory needed to store an array of the given shape, the
// same as the size in bytes. It panics if the shape is not fully defined.
func (s Shape) Memory() uintptr {
	return s.DType.Memory() * uintptr(s.Size())
}

// Equal compares two shapes for equality: dtype and dimensions are compared.
func (s Shape) Equal(s2 Shape) bool {
	if s.DType != s2.DType || s.Rank() != s2.Rank() {
		return false
	}
	for axis, dim := range s.Dimensions {
		if !dim.Equal(s2.Dimensions[axis]) {
			return false
		}
	}
	return true
}

// Clone returns a new deep copy of the shape.
func (s Shape) Clone() (s2 Shape) {
	s2.DType = s.DType
	s2.Dimensions = make([]Dim, len(s.Dimensions))
	copy(s2.Dimensions, s.Dimensions)
	return
}

// String implements fmt.Stringer, pretty-prints the shape.
func (s Shape) String() string {
	if s.Rank() == 0 {
		return fmt.Sprintf("(%s)", s.DType)
	}
	parts := make([]string, len(s.Dimensions))
	for axis, dim := range s.Dimensions {
		parts[axis] = dim.String()
	}
	return fmt.Sprintf("(%s)[%s]", s.DType, strings.Join(parts, " "))
}
