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

// Package compute declares symbolic tensors and the compute definitions over
// them that the lower package turns into loop nests.
//
// A Tensor associates a name, a shape and a per-axis storage format. It
// carries no data: concrete storage only appears when a lowered loop nest is
// executed (see the exec package). Axes are the loop variables of a compute
// definition, free or reduction, and expressions combine indexed tensor
// accesses with arithmetic operators:
//
//	a := must.M1(compute.Declare("A", shapes.Make(dtypes.Float32, 3, 4),
//		formats.Make(formats.Dense, formats.Sparse)))
//	b := must.M1(compute.Declare("B", shapes.Make(dtypes.Float32, 4),
//		formats.DenseFormat(1)))
//	c := must.M1(compute.Declare("C", shapes.Make(dtypes.Float32, 3),
//		formats.DenseFormat(1)))
//	i := compute.NewAxis("i", 3)
//	k := compute.ReduceAxis("k", 4)
//	def := must.M1(compute.Define(c, []*compute.Axis{i}, []*compute.Axis{k},
//		compute.Mul(a.At(i, k), b.At(k))))
package compute

import (
	"fmt"

	"github.com/gomlx/sparselower/types/formats"
	"github.com/gomlx/sparselower/types/shapes"
	"github.com/pkg/errors"
)

// ErrShapeFormatMismatch is returned by Declare when the shape and the format
// disagree on the number of axes. It wraps formats.ErrInvalidFormatLength,
// the same condition seen from the format's side.
var ErrShapeFormatMismatch = errors.Wrap(formats.ErrInvalidFormatLength,
	"shape and format disagree on the number of axes")

// Tensor is a symbolic tensor declaration: a name, a shape and the storage
// format of each axis. Tensors are immutable after Declare and carry no data.
type Tensor struct {
	name   string
	shape  shapes.Shape
	format formats.Format
}

// Declare binds a shape and a per-axis storage format under the given name.
//
// It returns ErrShapeFormatMismatch (wrapped with context) if the format does
// not describe exactly one level per shape axis.
func Declare(name string, shape shapes.Shape, format formats.Format) (*Tensor, error) {
	if name == "" {
		return nil, errors.New("compute.Declare: tensor name must not be empty")
	}
	if !shape.Ok() {
		return nil, errors.Errorf("compute.Declare(%q): invalid shape", name)
	}
	if shape.Rank() != format.Rank() {
		return nil, errors.Wrapf(ErrShapeFormatMismatch, "tensor %q: shape %s has rank %d, format %s has %d levels",
			name, shape, shape.Rank(), format, format.Rank())
	}
	return &Tensor{name: name, shape: shape.Clone(), format: format}, nil
}

// Name returns the tensor's declared name.
func (t *Tensor) Name() string { return t.name }

// Shape returns the tensor's shape. It implements shapes.HasShape.
func (t *Tensor) Shape() shapes.Shape { return t.shape }

// Format returns the tensor's per-axis storage format.
func (t *Tensor) Format() formats.Format { return t.format }

// Rank returns the tensor's rank.
func (t *Tensor) Rank() int { return t.shape.Rank() }

// String implements fmt.Stringer.
func (t *Tensor) String() string {
	return fmt.Sprintf("%s%s%s", t.name, t.shape, t.format)
}
