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
	"strconv"
	"strings"

	"github.com/gomlx/sparselower/compute"
	"github.com/gomlx/sparselower/types/shapes"
	"github.com/gomlx/sparselower/types/xslices"
)

// PlanKind is how one loop nest axis is driven.
type PlanKind int8

const (
	// PlainRange is a counting loop from 0 to the axis extent.
	PlainRange PlanKind = iota

	// SparsePositionWalk walks one tensor's position range for the enclosing
	// index, recovering the axis coordinate from the coordinate array.
	SparsePositionWalk

	// MergedSparseWalk advances two or more sparse cursors in lock-step,
	// executing the body only at coordinates present in every participant
	// (intersection).
	MergedSparseWalk
)

// String implements fmt.Stringer.
func (k PlanKind) String() string {
	switch k {
	case PlainRange:
		return "PlainRange"
	case SparsePositionWalk:
		return "SparsePositionWalk"
	case MergedSparseWalk:
		return "MergedSparseWalk"
	}
	return "InvalidPlanKind"
}

// Walk is one sparse participant of a loop frame: the cursor over one
// compressed level of one tensor.
type Walk struct {
	// Tensor whose storage is walked, and the tensor axis (storage level)
	// being compressed.
	Tensor *compute.Tensor
	Level  int

	// PosVar is the entry cursor variable, ranging over the position-bounded
	// range of the level, e.g. "A1_idx".
	PosVar string

	// CoordVar is the recovered coordinate variable. For a single walk it is
	// the frame's index variable; in a merged walk each participant recovers
	// its own candidate coordinate.
	CoordVar string

	// Outer is the address chain resolving the enclosing storage position
	// that keys this level's position range. Empty at the root level.
	Outer []AddrStep
}

// PosArray returns the name of the walk's position array, e.g. "A1_pos".
func (w *Walk) PosArray() string {
	return fmt.Sprintf("%s%d_pos", w.Tensor.Name(), w.Level)
}

// CoordArray returns the name of the walk's coordinate array, e.g. "A1_crd".
func (w *Walk) CoordArray() string {
	return fmt.Sprintf("%s%d_crd", w.Tensor.Name(), w.Level)
}

// bounds returns the rendered lower and upper position bounds of the walk.
func (w *Walk) bounds() (lo, hi string) {
	outer := chainString(w.Outer)
	if len(w.Outer) == 0 {
		return w.PosArray() + "[0]", w.PosArray() + "[1]"
	}
	return fmt.Sprintf("%s[%s]", w.PosArray(), outer), fmt.Sprintf("%s[%s+1]", w.PosArray(), outer)
}

// AxisPlan is the merge decision for one axis: how the axis is traversed and
// through which synthesized variables.
type AxisPlan struct {
	Kind PlanKind

	// Axis is the logical iteration axis the plan drives.
	Axis *compute.Axis

	// Index is the logical index variable bound by the frame, visible to
	// inner frames and to the compute statement.
	Index string

	// Extent is the counting bound for PlainRange plans, fixed or symbolic.
	Extent shapes.Dim

	// Walks are the sparse participants: one for SparsePositionWalk, two or
	// more for MergedSparseWalk, none for PlainRange.
	Walks []*Walk
}

// Stmt is one statement of a lowered loop nest: a loop Frame or an Assign.
type Stmt interface {
	stmtNode()
	appendLines(sb *strings.Builder, indent string)
}

// Frame is one loop of the nest: an axis plan plus the loop body, which
// nests inner frames and the innermost compute statements in order.
//
// A MergedSparseWalk frame executes its body only at coordinates on which
// all cursors agree; consumers must preserve that semantics when
// transforming the nest.
type Frame struct {
	AxisPlan
	Body []Stmt
}

var _ Stmt = (*Frame)(nil)

func (f *Frame) stmtNode() {}

// String implements fmt.Stringer, rendering the frame and its body.
func (f *Frame) String() string {
	var sb strings.Builder
	f.appendLines(&sb, "")
	return sb.String()
}

func (f *Frame) appendLines(sb *strings.Builder, indent string) {
	inner := indent + "  "
	switch f.Kind {
	case PlainRange:
		fmt.Fprintf(sb, "%sfor (%s, 0, %s) {\n", indent, f.Index, f.Extent)
		for _, stmt := range f.Body {
			stmt.appendLines(sb, inner)
		}
		fmt.Fprintf(sb, "%s}\n", indent)
	case SparsePositionWalk:
		w := f.Walks[0]
		lo, hi := w.bounds()
		fmt.Fprintf(sb, "%sfor (%s, %s, %s) {\n", indent, w.PosVar, lo, hi)
		fmt.Fprintf(sb, "%s%s = %s[%s]\n", inner, w.CoordVar, w.CoordArray(), w.PosVar)
		for _, stmt := range f.Body {
			stmt.appendLines(sb, inner)
		}
		fmt.Fprintf(sb, "%s}\n", indent)
	case MergedSparseWalk:
		conds := make([]string, len(f.Walks))
		for ii, w := range f.Walks {
			lo, hi := w.bounds()
			fmt.Fprintf(sb, "%s%s = %s\n", indent, w.PosVar, lo)
			conds[ii] = fmt.Sprintf("%s < %s", w.PosVar, hi)
		}
		fmt.Fprintf(sb, "%swhile (%s) {\n", indent, strings.Join(conds, " && "))
		for _, w := range f.Walks {
			fmt.Fprintf(sb, "%s%s = %s[%s]\n", inner, w.CoordVar, w.CoordArray(), w.PosVar)
		}
		coords := xslices.Map(f.Walks, func(w *Walk) string { return w.CoordVar })
		fmt.Fprintf(sb, "%s%s = min(%s)\n", inner, f.Index, strings.Join(coords, ", "))
		matches := xslices.Map(f.Walks, func(w *Walk) string {
			return fmt.Sprintf("%s == %s", w.CoordVar, f.Index)
		})
		fmt.Fprintf(sb, "%sif (%s) {\n", inner, strings.Join(matches, " && "))
		for _, stmt := range f.Body {
			stmt.appendLines(sb, inner+"  ")
		}
		fmt.Fprintf(sb, "%s}\n", inner)
		for _, w := range f.Walks {
			fmt.Fprintf(sb, "%s%s += (%s == %s)\n", inner, w.PosVar, w.CoordVar, f.Index)
		}
		fmt.Fprintf(sb, "%s}\n", indent)
	}
}

// Assign is an innermost compute statement: plain assignment or accumulation
// into the target element.
type Assign struct {
	Target     *Load
	Value      Expr
	Accumulate bool
}

var _ Stmt = (*Assign)(nil)

func (a *Assign) stmtNode() {}

// String implements fmt.Stringer, e.g. "C[i] += A_val[A1_idx] * B[k]".
func (a *Assign) String() string {
	op := "="
	if a.Accumulate {
		op = "+="
	}
	return fmt.Sprintf("%s %s %s", loadString(a.Target), op, valueString(a.Value))
}

func (a *Assign) appendLines(sb *strings.Builder, indent string) {
	sb.WriteString(indent)
	sb.WriteString(a.String())
	sb.WriteString("\n")
}

// Expr is a value expression of the innermost compute statement, with all
// tensor accesses resolved to storage addresses.
type Expr interface {
	valueNode()
}

// Binary combines two value expressions with an arithmetic operator.
type Binary struct {
	Op       compute.BinaryOpType
	Lhs, Rhs Expr
}

func (*Binary) valueNode() {}

// Literal is a constant value, used for accumulator initialization.
type Literal struct {
	Value float64
}

func (*Literal) valueNode() {}

// AddrStep is one level of a storage address chain. A dense step extends the
// enclosing position row-major by its axis extent; a sparse step replaces
// the chain with the level's entry cursor, which already encodes all
// enclosing levels.
type AddrStep struct {
	// IndexVar and Extent, for a dense step.
	IndexVar string
	Extent   shapes.Dim

	// PosVar, for a sparse step.
	PosVar string
}

// IsSparse returns whether this is a sparse (position cursor) step.
func (s AddrStep) IsSparse() bool { return s.PosVar != "" }

// Load reads (or, as an Assign target, writes) one tensor element through
// its address chain, one step per tensor axis in storage order.
type Load struct {
	Tensor *compute.Tensor
	Addr   []AddrStep
}

func (*Load) valueNode() {}

// chainString renders an address chain, e.g. "A1_idx" or "(i) * 4 + k".
func chainString(steps []AddrStep) string {
	rendered := ""
	for _, step := range steps {
		if step.IsSparse() {
			rendered = step.PosVar
			continue
		}
		if rendered == "" {
			rendered = step.IndexVar
		} else {
			rendered = fmt.Sprintf("(%s) * %s + %s", rendered, step.Extent, step.IndexVar)
		}
	}
	if rendered == "" {
		rendered = "0"
	}
	return rendered
}

// loadString renders a load: plain indexing for all-dense tensors, value
// array indexing when compressed levels participate.
func loadString(l *Load) string {
	allDense := true
	for _, step := range l.Addr {
		if step.IsSparse() {
			allDense = false
			break
		}
	}
	if allDense {
		if len(l.Addr) == 0 {
			return l.Tensor.Name() + "[0]"
		}
		names := xslices.Map(l.Addr, func(step AddrStep) string { return step.IndexVar })
		return l.Tensor.Name() + "[" + strings.Join(names, ", ") + "]"
	}
	return fmt.Sprintf("%s_val[%s]", l.Tensor.Name(), chainString(l.Addr))
}

func valueString(e Expr) string {
	switch node := e.(type) {
	case *Literal:
		return strconv.FormatFloat(node.Value, 'g', -1, 64)
	case *Load:
		return loadString(node)
	case *Binary:
		return valueOperandString(node.Lhs) + " " + node.Op.String() + " " + valueOperandString(node.Rhs)
	}
	return "?"
}

func valueOperandString(e Expr) string {
	if _, isBinary := e.(*Binary); isBinary {
		return "(" + valueString(e) + ")"
	}
	return valueString(e)
}

// Nest is a lowered loop nest: the ordered loop frames and innermost compute
// statements of one compute definition. It is a pure value produced by Lower;
// executing it is the consumer's business (see the exec package for a
// reference interpreter).
type Nest struct {
	// Def is the compute definition the nest was lowered from.
	Def *compute.Definition

	// Body is the top-level statement sequence, usually a single outermost
	// Frame. For a scalar output it holds the accumulator initialization
	// followed by the reduction frames.
	Body []Stmt
}

// Frames returns the top-level loop frames of the nest.
func (n *Nest) Frames() (frames []*Frame) {
	for _, stmt := range n.Body {
		if frame, ok := stmt.(*Frame); ok {
			frames = append(frames, frame)
		}
	}
	return
}

// String renders the nest in loop pseudo-code:
//
//	for (i, 0, 3) {
//	  C[i] = 0
//	  for (A1_idx, A1_pos[i], A1_pos[i+1]) {
//	    k = A1_crd[A1_idx]
//	    C[i] += A_val[A1_idx] * B[k]
//	  }
//	}
func (n *Nest) String() string {
	var sb strings.Builder
	for _, stmt := range n.Body {
		stmt.appendLines(&sb, "")
	}
	return sb.String()
}
