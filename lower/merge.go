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

package lower

import (
	"fmt"

	"github.com/gomlx/sparselower/compute"
	"github.com/gomlx/sparselower/types/formats"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// accessState tracks, for one tensor access, the address step of each tensor
// axis as the axes are planned outer to inner. A nil step means the axis has
// not been reached yet.
type accessState struct {
	access *compute.Access
	steps  []*AddrStep
}

// outerChain returns the address chain of the storage levels enclosing
// level. All of them must already be planned: a compressed level can only be
// walked once its enclosing position is resolved.
func (s *accessState) outerChain(level int) ([]AddrStep, error) {
	chain := make([]AddrStep, level)
	for ii := 0; ii < level; ii++ {
		if s.steps[ii] == nil {
			return nil, errors.Wrapf(ErrAxisOrderingConflict,
				"tensor %q: compressed axis %d (%q) is nested outside its enclosing axis %d (%q); storage levels must be visited outer to inner",
				s.access.Tensor().Name(), level, s.access.Axes()[level].Name(), ii, s.access.Axes()[ii].Name())
		}
		chain[ii] = *s.steps[ii]
	}
	return chain, nil
}

// contributor is one tensor axis of one access bound to the loop axis being
// planned.
type contributor struct {
	state *accessState
	level int
}

func (c contributor) tensor() *compute.Tensor { return c.state.access.Tensor() }

// planAxis decides how the given axis must be traversed, from the storage
// formats the referencing tensors contribute at it:
//
//   - no sparse contributor (all dense, or no contributor at all): a counting
//     loop over the axis extent;
//   - exactly one sparse contributor: a walk of that tensor's position range,
//     recovering the coordinate; dense contributors are indexed directly by
//     the recovered coordinate;
//   - two or more sparse contributors: a lock-step merge of all cursors,
//     executing the body only at coordinates present in all of them.
//
// It returns the loop frame (with an empty body) and records each
// contributor's address step for later expression lowering.
func (l *lowerer) planAxis(axis *compute.Axis) (*Frame, error) {
	var dense, sparse []contributor
	for _, state := range l.states {
		for level, ref := range state.access.Axes() {
			if ref != axis {
				continue
			}
			c := contributor{state: state, level: level}
			if c.tensor().Format().Level(level) == formats.Sparse {
				sparse = append(sparse, c)
			} else {
				dense = append(dense, c)
			}
		}
	}

	plan := AxisPlan{Axis: axis, Index: axis.Name(), Extent: axis.Extent()}
	switch len(sparse) {
	case 0:
		plan.Kind = PlainRange
	case 1:
		plan.Kind = SparsePositionWalk
	default:
		plan.Kind = MergedSparseWalk
	}

	// Dense contributors are O(1)-addressable by the axis index variable,
	// whether it is counted or recovered from a coordinate array.
	for _, c := range dense {
		c.state.steps[c.level] = &AddrStep{IndexVar: axis.Name(), Extent: c.tensor().Shape().Dim(c.level)}
	}
	for _, c := range sparse {
		outer, err := c.state.outerChain(c.level)
		if err != nil {
			return nil, err
		}
		w := &Walk{
			Tensor:   c.tensor(),
			Level:    c.level,
			PosVar:   fmt.Sprintf("%s%d_idx", c.tensor().Name(), c.level),
			CoordVar: axis.Name(),
			Outer:    outer,
		}
		if plan.Kind == MergedSparseWalk {
			w.CoordVar = axis.Name() + "_" + c.tensor().Name()
		}
		plan.Walks = append(plan.Walks, w)
		c.state.steps[c.level] = &AddrStep{PosVar: w.PosVar}
	}

	klog.V(2).Infof("lower: axis %q planned as %s (%d dense, %d sparse contributors)",
		axis.Name(), plan.Kind, len(dense), len(sparse))
	return &Frame{AxisPlan: plan}, nil
}

// checkMergeSemantics walks the expression and returns how many sparse
// contributors it holds at the given axis, rejecting combinations that would
// need union co-iteration: an addition-type operator whose both operands
// contribute sparse storage at the axis. Intersection (multiplication-type)
// co-iteration is the only merge this engine implements.
func checkMergeSemantics(e compute.Expr, axis *compute.Axis) (sparseCount int, err error) {
	switch node := e.(type) {
	case *compute.Access:
		for level, ref := range node.Axes() {
			if ref == axis && node.Tensor().Format().Level(level) == formats.Sparse {
				sparseCount++
			}
		}
		return sparseCount, nil
	case *compute.BinaryOp:
		lhsCount, err := checkMergeSemantics(node.Lhs(), axis)
		if err != nil {
			return 0, err
		}
		rhsCount, err := checkMergeSemantics(node.Rhs(), axis)
		if err != nil {
			return 0, err
		}
		if node.Op().IsAdditive() && lhsCount > 0 && rhsCount > 0 {
			return 0, errors.Wrapf(ErrUnsupportedSparseUnion,
				"axis %q: %s combines sparse operands through %q", axis.Name(), node, node.Op())
		}
		return lhsCount + rhsCount, nil
	}
	return 0, nil
}
