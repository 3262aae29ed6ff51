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

package compute

import (
	"fmt"
	"strings"

	"github.com/gomlx/sparselower/types/xslices"
	"github.com/pkg/errors"
)

// ErrRankAxisOutOfRange is returned by Define when a tensor access refers to
// more or fewer axes than the tensor's declared rank.
var ErrRankAxisOutOfRange = errors.New("axis reference out of range for tensor rank")

// ReduceOpType identifies the reduction operator of a compute definition.
// Reduction axes accumulate with ReduceSum, the additive reduction.
type ReduceOpType int8

const (
	// ReduceSum accumulates with addition, starting from 0.
	ReduceSum ReduceOpType = iota
)

// String implements fmt.Stringer.
func (op ReduceOpType) String() string { return "sum" }

// Definition is one compute statement: an output tensor indexed by the free
// axes, assigned the expression reduced over the reduction axes. Immutable
// after Define.
type Definition struct {
	output *Tensor
	free   []*Axis
	reduce []*Axis
	expr   Expr
}

// Define builds a compute definition `output[free...] = reduce(expr)`.
//
// The free axes index the output, one per output axis in order, so their
// extents must match the output dimensions. Every axis referenced in expr
// must be listed as free or reduction. Accesses whose arity disagrees with
// the accessed tensor's rank fail with ErrRankAxisOutOfRange.
func Define(output *Tensor, free, reduce []*Axis, expr Expr) (*Definition, error) {
	if output == nil || expr == nil {
		return nil, errors.New("compute.Define: output tensor and expression must not be nil")
	}
	if len(free) != output.Rank() {
		return nil, errors.Errorf("compute.Define: output %s has rank %d, got %d free axes",
			output, output.Rank(), len(free))
	}
	for pos, axis := range free {
		if axis.IsReduction() {
			return nil, errors.Errorf("compute.Define: reduction axis %q listed as free", axis.Name())
		}
		if dim := output.Shape().Dim(pos); !dim.Equal(axis.Extent()) {
			return nil, errors.Errorf("compute.Define: free axis %q has extent %s, output axis %d has dimension %s",
				axis.Name(), axis.Extent(), pos, dim)
		}
	}
	declared := make(map[*Axis]bool, len(free)+len(reduce))
	for _, axis := range free {
		declared[axis] = true
	}
	for _, axis := range reduce {
		if !axis.IsReduction() {
			return nil, errors.Errorf("compute.Define: free axis %q listed as reduction", axis.Name())
		}
		declared[axis] = true
	}

	var err error
	VisitAccesses(expr, func(a *Access) {
		if err != nil {
			return
		}
		if len(a.Axes()) != a.Tensor().Rank() {
			err = errors.Wrapf(ErrRankAxisOutOfRange, "access %s references %d axes, tensor %q has rank %d",
				a, len(a.Axes()), a.Tensor().Name(), a.Tensor().Rank())
			return
		}
		for pos, axis := range a.Axes() {
			if !declared[axis] {
				err = errors.Errorf("compute.Define: access %s uses undeclared axis %q", a, axis.Name())
				return
			}
			if dim := a.Tensor().Shape().Dim(pos); !dim.IsSymbolic() && !axis.Extent().IsSymbolic() &&
				dim.Size() < axis.Extent().Size() {
				err = errors.Errorf("compute.Define: axis %q has extent %s, larger than axis %d of tensor %q (%s)",
					axis.Name(), axis.Extent(), pos, a.Tensor().Name(), dim)
				return
			}
		}
	})
	if err != nil {
		return nil, err
	}

	return &Definition{
		output: output,
		free:   append([]*Axis(nil), free...),
		reduce: append([]*Axis(nil), reduce...),
		expr:   expr,
	}, nil
}

// Output returns the output tensor.
func (d *Definition) Output() *Tensor { return d.output }

// FreeAxes returns the free axes, outermost first, one per output axis.
func (d *Definition) FreeAxes() []*Axis { return append([]*Axis(nil), d.free...) }

// ReduceAxes returns the reduction axes.
func (d *Definition) ReduceAxes() []*Axis { return append([]*Axis(nil), d.reduce...) }

// Axes returns all iteration axes in default nesting order: free axes
// outermost, reduction axes innermost.
func (d *Definition) Axes() []*Axis {
	axes := make([]*Axis, 0, len(d.free)+len(d.reduce))
	axes = append(axes, d.free...)
	axes = append(axes, d.reduce...)
	return axes
}

// ReduceOp returns the reduction operator.
func (d *Definition) ReduceOp() ReduceOpType { return ReduceSum }

// Expr returns the expression tree.
func (d *Definition) Expr() Expr { return d.expr }

// Accesses returns every tensor access of the expression, depth-first, left
// to right.
func (d *Definition) Accesses() (accesses []*Access) {
	VisitAccesses(d.expr, func(a *Access) { accesses = append(accesses, a) })
	return
}

// String implements fmt.Stringer, e.g. "C[i] = sum_k(A[i, k] * B[k])".
func (d *Definition) String() string {
	target := d.output.Name()
	if len(d.free) > 0 {
		names := xslices.Map(d.free, func(axis *Axis) string { return axis.Name() })
		target = fmt.Sprintf("%s[%s]", target, strings.Join(names, ", "))
	}
	if len(d.reduce) == 0 {
		return fmt.Sprintf("%s = %s", target, d.expr)
	}
	reduceNames := xslices.Map(d.reduce, func(axis *Axis) string { return axis.Name() })
	return fmt.Sprintf("%s = %s_%s(%s)", target, d.ReduceOp(), strings.Join(reduceNames, "_"), d.expr)
}
