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
	"github.com/gomlx/exceptions"
	"github.com/gomlx/sparselower/types/shapes"
)

// Axis is one iteration variable of a compute definition, ranging over
// [0, extent). Free axes index the output; reduction axes are accumulated
// over. The same *Axis value is shared between the definition's axis lists
// and the tensor accesses that reference it.
type Axis struct {
	name      string
	extent    shapes.Dim
	reduction bool
}

// NewAxis returns a free axis with the given name and fixed extent.
func NewAxis(name string, extent int) *Axis {
	return NewAxisDim(name, shapes.FixedDim(extent))
}

// NewAxisDim returns a free axis with the given name and extent, fixed or
// symbolic.
func NewAxisDim(name string, extent shapes.Dim) *Axis {
	if name == "" {
		exceptions.Panicf("compute.NewAxisDim: axis name must not be empty")
	}
	if !extent.Ok() {
		exceptions.Panicf("compute.NewAxisDim(%q): invalid extent", name)
	}
	return &Axis{name: name, extent: extent}
}

// ReduceAxis returns a reduction axis with the given name and fixed extent.
func ReduceAxis(name string, extent int) *Axis {
	return ReduceAxisDim(name, shapes.FixedDim(extent))
}

// ReduceAxisDim returns a reduction axis with the given name and extent,
// fixed or symbolic.
func ReduceAxisDim(name string, extent shapes.Dim) *Axis {
	axis := NewAxisDim(name, extent)
	axis.reduction = true
	return axis
}

// Name returns the axis name, also the loop variable name in lowered nests.
func (a *Axis) Name() string { return a.name }

// Extent returns the axis extent.
func (a *Axis) Extent() shapes.Dim { return a.extent }

// IsReduction returns whether this is a reduction axis.
func (a *Axis) IsReduction() bool { return a.reduction }

// String implements fmt.Stringer.
func (a *Axis) String() string { return a.name }
