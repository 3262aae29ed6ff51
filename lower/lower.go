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

// Package lower turns a compute definition into a loop nest that visits only
// the logically meaningful index combinations of its operands.
//
// For each iteration axis, free axes outermost and reduction axes innermost,
// the storage formats of the tensors referencing the axis decide the loop:
// a counting loop when every contributor is Dense, a position-range walk
// recovering coordinates when exactly one is Sparse, and a lock-step
// intersection merge when several are Sparse. The result is a Nest of
// tagged frames plus the innermost accumulation statement, ready for a
// scheduling layer (or the exec package's interpreter) to consume:
//
//	def := must.M1(compute.Define(c, []*compute.Axis{i}, []*compute.Axis{k},
//		compute.Mul(a.At(i, k), b.At(k))))
//	nest := must.M1(lower.Lower(def))
//	fmt.Print(nest)
//
// Lowering is a pure function of the definition: it holds no shared state
// and may be called concurrently for independent definitions.
package lower

import (
	"github.com/gomlx/sparselower/compute"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

var (
	// ErrAxisOrderingConflict is returned when a requested nesting order
	// breaks the free-outermost/reduction-innermost constraint, or walks a
	// compressed storage level before its enclosing level is resolved.
	ErrAxisOrderingConflict = errors.New("axis nesting order violates iteration ordering constraints")

	// ErrUnsupportedMergeSemantics is returned when an expression requires
	// co-iteration semantics this engine does not implement.
	ErrUnsupportedMergeSemantics = errors.New("expression requires unsupported co-iteration semantics")

	// ErrUnsupportedSparseUnion is the union co-iteration case of
	// ErrUnsupportedMergeSemantics (which it wraps): adding sparse operands
	// at a shared axis would have to visit coordinates present in either
	// operand, and this engine only merges by intersection.
	ErrUnsupportedSparseUnion = errors.Wrap(ErrUnsupportedMergeSemantics,
		"union co-iteration across sparse operands")

	// ErrSparseOutput is returned when the output tensor itself has Sparse
	// axes: emitting the position/coordinate bookkeeping for a compressed
	// output is not implemented.
	ErrSparseOutput = errors.New("compressed (sparse) output formats are not supported")
)

type lowerer struct {
	def    *compute.Definition
	states []*accessState
}

// Lower lowers the definition with the default nesting order: free axes
// outermost, in output-axis order, then reduction axes innermost.
func Lower(def *compute.Definition) (*Nest, error) {
	if def == nil {
		return nil, errors.New("lower.Lower: nil definition")
	}
	return LowerWithOrder(def, def.Axes())
}

// LowerWithOrder lowers the definition with an explicit nesting order, which
// must list exactly the definition's axes, every free axis before every
// reduction axis.
//
// The returned Nest is a pure value: lowering the same definition twice
// yields structurally identical nests.
func LowerWithOrder(def *compute.Definition, order []*compute.Axis) (*Nest, error) {
	if def == nil {
		return nil, errors.New("lower.LowerWithOrder: nil definition")
	}
	if !def.Output().Format().IsAllDense() {
		return nil, errors.Wrapf(ErrSparseOutput, "output %s", def.Output())
	}
	if err := checkOrder(def, order); err != nil {
		return nil, err
	}
	for _, axis := range order {
		if _, err := checkMergeSemantics(def.Expr(), axis); err != nil {
			return nil, err
		}
	}

	l := &lowerer{def: def}
	for _, access := range def.Accesses() {
		l.states = append(l.states, &accessState{
			access: access,
			steps:  make([]*AddrStep, access.Tensor().Rank()),
		})
	}

	nest := &Nest{Def: def}
	cur := &nest.Body
	numFree := len(def.FreeAxes())
	reducing := len(def.ReduceAxes()) > 0
	for pos, axis := range order {
		if reducing && pos == numFree {
			// All free axes are open: initialize the accumulator once per
			// combination of their values, before the reduction loops.
			*cur = append(*cur, &Assign{Target: l.outputLoad(), Value: &Literal{}})
		}
		frame, err := l.planAxis(axis)
		if err != nil {
			return nil, err
		}
		*cur = append(*cur, frame)
		cur = &frame.Body
	}

	value, err := l.lowerExpr(def.Expr())
	if err != nil {
		return nil, err
	}
	*cur = append(*cur, &Assign{Target: l.outputLoad(), Value: value, Accumulate: reducing})
	klog.V(1).Infof("lower: %s lowered to %d-deep nest", def, len(order))
	return nest, nil
}

// checkOrder validates the requested nesting order against the definition.
func checkOrder(def *compute.Definition, order []*compute.Axis) error {
	axes := def.Axes()
	declared := make(map[*compute.Axis]bool, len(axes))
	for _, axis := range axes {
		declared[axis] = true
	}
	if len(order) != len(axes) {
		return errors.Wrapf(ErrAxisOrderingConflict, "order lists %d axes, definition %s has %d",
			len(order), def, len(axes))
	}
	seen := make(map[*compute.Axis]bool, len(order))
	var firstReduction *compute.Axis
	for _, axis := range order {
		if !declared[axis] {
			return errors.Wrapf(ErrAxisOrderingConflict, "axis %q is not an axis of definition %s",
				axis.Name(), def)
		}
		if seen[axis] {
			return errors.Wrapf(ErrAxisOrderingConflict, "axis %q listed twice", axis.Name())
		}
		seen[axis] = true
		if axis.IsReduction() {
			if firstReduction == nil {
				firstReduction = axis
			}
		} else if firstReduction != nil {
			return errors.Wrapf(ErrAxisOrderingConflict,
				"free axis %q nested inside reduction axis %q; free axes must be outermost",
				axis.Name(), firstReduction.Name())
		}
	}
	return nil
}

// outputLoad builds the output element address: the output is dense, indexed
// directly by the free axis variables.
func (l *lowerer) outputLoad() *Load {
	free := l.def.FreeAxes()
	output := l.def.Output()
	addr := make([]AddrStep, len(free))
	for pos, axis := range free {
		addr[pos] = AddrStep{IndexVar: axis.Name(), Extent: output.Shape().Dim(pos)}
	}
	return &Load{Tensor: output, Addr: addr}
}

// lowerExpr translates the expression tree into its addressed form, using
// the per-access steps recorded while planning the axes.
func (l *lowerer) lowerExpr(e compute.Expr) (Expr, error) {
	switch node := e.(type) {
	case *compute.Access:
		state := l.stateFor(node)
		addr := make([]AddrStep, len(state.steps))
		for level, step := range state.steps {
			if step == nil {
				return nil, errors.Errorf("lower: axis %d of access %s was never planned", level, node)
			}
			addr[level] = *step
		}
		return &Load{Tensor: node.Tensor(), Addr: addr}, nil
	case *compute.BinaryOp:
		lhs, err := l.lowerExpr(node.Lhs())
		if err != nil {
			return nil, err
		}
		rhs, err := l.lowerExpr(node.Rhs())
		if err != nil {
			return nil, err
		}
		return &Binary{Op: node.Op(), Lhs: lhs, Rhs: rhs}, nil
	}
	return nil, errors.Errorf("lower: unsupported expression node %T", e)
}

func (l *lowerer) stateFor(access *compute.Access) *accessState {
	for _, state := range l.states {
		if state.access == access {
			return state
		}
	}
	return nil
}
