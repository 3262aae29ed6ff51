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
	"strings"

	"github.com/gomlx/sparselower/types/xslices"
)

// Expr is a node of a compute expression tree: an indexed tensor access or
// an arithmetic combination of sub-expressions.
type Expr interface {
	String() string
	exprNode()
}

// Access is an indexed tensor access, e.g. A[i, k]: one axis reference per
// tensor axis, in axis order.
type Access struct {
	tensor *Tensor
	axes   []*Axis
}

var _ Expr = (*Access)(nil)

// At returns an access of the tensor indexed by the given axes, one per
// tensor axis in axis order. Arity against the tensor's rank is checked at
// Define time.
func (t *Tensor) At(axes ...*Axis) *Access {
	return &Access{tensor: t, axes: axes}
}

// Tensor returns the accessed tensor.
func (a *Access) Tensor() *Tensor { return a.tensor }

// Axes returns the axis references, one per tensor axis.
func (a *Access) Axes() []*Axis { return a.axes }

func (a *Access) exprNode() {}

// String implements fmt.Stringer, e.g. "A[i, k]".
func (a *Access) String() string {
	names := xslices.Map(a.axes, func(axis *Axis) string { return axis.Name() })
	return a.tensor.Name() + "[" + strings.Join(names, ", ") + "]"
}

// BinaryOpType identifies the arithmetic operator of a BinaryOp node.
type BinaryOpType int8

const (
	OpAdd BinaryOpType = iota
	OpSub
	OpMul
)

// String implements fmt.Stringer.
func (op BinaryOpType) String() string {
	switch op {
	case OpAdd:
		return "+"
	case OpSub:
		return "-"
	case OpMul:
		return "*"
	}
	return "?"
}

// IsAdditive returns whether the operator combines operands by addition or
// subtraction. Additive combination of sparse operands at a shared axis
// requires union co-iteration, which lowering rejects.
func (op BinaryOpType) IsAdditive() bool {
	return op == OpAdd || op == OpSub
}

// BinaryOp is an arithmetic combination of two sub-expressions.
type BinaryOp struct {
	op       BinaryOpType
	lhs, rhs Expr
}

var _ Expr = (*BinaryOp)(nil)

// Add returns the element-wise sum of the two expressions.
func Add(lhs, rhs Expr) *BinaryOp { return &BinaryOp{op: OpAdd, lhs: lhs, rhs: rhs} }

// Sub returns the element-wise difference of the two expressions.
func Sub(lhs, rhs Expr) *BinaryOp { return &BinaryOp{op: OpSub, lhs: lhs, rhs: rhs} }

// Mul returns the element-wise product of the two expressions.
func Mul(lhs, rhs Expr) *BinaryOp { return &BinaryOp{op: OpMul, lhs: lhs, rhs: rhs} }

// Op returns the arithmetic operator.
func (b *BinaryOp) Op() BinaryOpType { return b.op }

// Lhs returns the left operand.
func (b *BinaryOp) Lhs() Expr { return b.lhs }

// Rhs returns the right operand.
func (b *BinaryOp) Rhs() Expr { return b.rhs }

func (b *BinaryOp) exprNode() {}

// String implements fmt.Stringer, e.g. "A[i, k] * B[k]".
func (b *BinaryOp) String() string {
	return exprOperandString(b.lhs) + " " + b.op.String() + " " + exprOperandString(b.rhs)
}

// exprOperandString parenthesizes nested arithmetic nodes.
func exprOperandString(e Expr) string {
	if _, isBinary := e.(*BinaryOp); isBinary {
		return "(" + e.String() + ")"
	}
	return e.String()
}

// VisitAccesses calls the given function for every tensor access of the
// expression, depth-first, left to right.
func VisitAccesses(e Expr, fn func(a *Access)) {
	switch node := e.(type) {
	case *Access:
		fn(node)
	case *BinaryOp:
		VisitAccesses(node.lhs, fn)
		VisitAccesses(node.rhs, fn)
	}
}
