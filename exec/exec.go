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

// Package exec interprets lowered loop nests against concrete storage.
//
// It is a reference evaluator: it executes a lower.Nest exactly as written,
// one environment binding per loop variable, so tests (and callers
// debugging a lowering) can compare the result of the compressed iteration
// with a dense reference computation. It makes no attempt at being fast --
// production execution belongs to the scheduling/codegen layer consuming
// the nest.
//
//	m := exec.New(nest).
//		Bind(a, exec.Compressed(values, map[int]sparse.Level{1: level})).
//		Bind(b, exec.Dense(bValues)).
//		Bind(c, exec.DenseZeros(3))
//	err := m.Run()
package exec

import (
	"github.com/gomlx/sparselower/compute"
	"github.com/gomlx/sparselower/lower"
	"github.com/gomlx/sparselower/sparse"
	"github.com/gomlx/sparselower/types/formats"
	"github.com/gomlx/sparselower/types/shapes"
	"github.com/pkg/errors"
)

// Machine interprets one lowered nest. Bind storage for every tensor of the
// definition (including the output), then Run.
type Machine struct {
	nest     *lower.Nest
	storages map[*compute.Tensor]*Storage
	sizes    map[string]int
}

// New returns a Machine for the given nest.
func New(nest *lower.Nest) *Machine {
	return &Machine{
		nest:     nest,
		storages: make(map[*compute.Tensor]*Storage),
		sizes:    make(map[string]int),
	}
}

// Bind attaches storage to a tensor of the nest's definition. It returns the
// Machine for chaining.
func (m *Machine) Bind(t *compute.Tensor, s *Storage) *Machine {
	m.storages[t] = s
	return m
}

// BindSize resolves a symbolic dimension to a concrete size. It returns the
// Machine for chaining.
func (m *Machine) BindSize(symbol string, size int) *Machine {
	m.sizes[symbol] = size
	return m
}

// Output returns the storage bound to the output tensor.
func (m *Machine) Output() *Storage {
	return m.storages[m.nest.Def.Output()]
}

// Run validates the bound storage against each tensor's shape and format,
// then interprets the nest. The output tensor's storage is updated in place.
func (m *Machine) Run() error {
	def := m.nest.Def
	tensors := []*compute.Tensor{def.Output()}
	for _, access := range def.Accesses() {
		tensors = append(tensors, access.Tensor())
	}
	validated := make(map[*compute.Tensor]bool, len(tensors))
	for _, t := range tensors {
		if validated[t] {
			continue
		}
		validated[t] = true
		s := m.storages[t]
		if s == nil {
			return errors.Errorf("exec: no storage bound for tensor %s", t)
		}
		if err := m.validateStorage(t, s); err != nil {
			return errors.WithMessagef(err, "exec: storage bound for tensor %s", t)
		}
	}
	return m.runStmts(m.nest.Body, make(map[string]int))
}

// validateStorage walks the tensor's storage levels outer to inner,
// enforcing the compressed layout contract and the value array length.
func (m *Machine) validateStorage(t *compute.Tensor, s *Storage) error {
	outer := 1
	for axis := 0; axis < t.Rank(); axis++ {
		dim, err := m.dimValue(t.Shape().Dim(axis))
		if err != nil {
			return err
		}
		if t.Format().Level(axis) == formats.Sparse {
			level, ok := s.Level(axis)
			if !ok {
				return errors.Errorf("axis %d is Sparse but no compressed level is bound", axis)
			}
			if err := level.Check(outer, dim); err != nil {
				return errors.WithMessagef(err, "compressed level of axis %d", axis)
			}
			outer = level.NumEntries()
		} else {
			if _, ok := s.Level(axis); ok {
				return errors.Errorf("axis %d is Dense but a compressed level is bound", axis)
			}
			outer *= dim
		}
	}
	if len(s.values) != outer {
		return errors.Errorf("value array has %d elements, layout requires %d", len(s.values), outer)
	}
	return nil
}

func (m *Machine) runStmts(stmts []lower.Stmt, env map[string]int) error {
	for _, stmt := range stmts {
		switch node := stmt.(type) {
		case *lower.Frame:
			if err := m.runFrame(node, env); err != nil {
				return err
			}
		case *lower.Assign:
			addr, err := m.evalChain(node.Target.Addr, env)
			if err != nil {
				return err
			}
			value, err := m.evalValue(node.Value, env)
			if err != nil {
				return err
			}
			values := m.storages[node.Target.Tensor].values
			if node.Accumulate {
				values[addr] += value
			} else {
				values[addr] = value
			}
		default:
			return errors.Errorf("exec: unsupported statement %T", stmt)
		}
	}
	return nil
}

func (m *Machine) runFrame(f *lower.Frame, env map[string]int) error {
	switch f.Kind {
	case lower.PlainRange:
		extent, err := m.dimValue(f.Extent)
		if err != nil {
			return err
		}
		for v := 0; v < extent; v++ {
			env[f.Index] = v
			if err := m.runStmts(f.Body, env); err != nil {
				return err
			}
		}
		return nil

	case lower.SparsePositionWalk:
		w := f.Walks[0]
		level, p, err := m.walkRange(w, env)
		if err != nil {
			return err
		}
		start, end := level.Range(p)
		for idx := start; idx < end; idx++ {
			env[w.PosVar] = idx
			env[w.CoordVar] = level.Coord[idx]
			if err := m.runStmts(f.Body, env); err != nil {
				return err
			}
		}
		return nil

	case lower.MergedSparseWalk:
		numWalks := len(f.Walks)
		levels := make([]sparse.Level, numWalks)
		cursors := make([]int, numWalks)
		ends := make([]int, numWalks)
		for ii, w := range f.Walks {
			level, p, err := m.walkRange(w, env)
			if err != nil {
				return err
			}
			levels[ii] = level
			cursors[ii], ends[ii] = level.Range(p)
		}
		for {
			// Intersection: stop as soon as any cursor is exhausted.
			exhausted := false
			for ii := range cursors {
				if cursors[ii] >= ends[ii] {
					exhausted = true
					break
				}
			}
			if exhausted {
				return nil
			}
			minCoord := levels[0].Coord[cursors[0]]
			match := true
			for ii := 1; ii < numWalks; ii++ {
				coord := levels[ii].Coord[cursors[ii]]
				if coord != minCoord {
					match = false
					if coord < minCoord {
						minCoord = coord
					}
				}
			}
			if match {
				env[f.Index] = minCoord
				for ii, w := range f.Walks {
					env[w.PosVar] = cursors[ii]
					env[w.CoordVar] = minCoord
				}
				if err := m.runStmts(f.Body, env); err != nil {
					return err
				}
			}
			// Advance every cursor holding the minimum coordinate.
			for ii := range cursors {
				if levels[ii].Coord[cursors[ii]] == minCoord {
					cursors[ii]++
				}
			}
		}
	}
	return errors.Errorf("exec: unsupported plan kind %s", f.Kind)
}

// walkRange resolves the walk's level and its enclosing storage position.
func (m *Machine) walkRange(w *lower.Walk, env map[string]int) (sparse.Level, int, error) {
	storage := m.storages[w.Tensor]
	level, ok := storage.Level(w.Level)
	if !ok {
		return sparse.Level{}, 0, errors.Errorf("exec: tensor %q has no compressed level for axis %d", w.Tensor.Name(), w.Level)
	}
	p, err := m.evalChain(w.Outer, env)
	if err != nil {
		return sparse.Level{}, 0, err
	}
	return level, p, nil
}

// evalChain resolves a storage address chain: dense steps extend the
// position row-major, sparse steps substitute the cursor variable.
func (m *Machine) evalChain(steps []lower.AddrStep, env map[string]int) (int, error) {
	p := 0
	for _, step := range steps {
		if step.IsSparse() {
			cursor, ok := env[step.PosVar]
			if !ok {
				return 0, errors.Errorf("exec: cursor variable %q is unbound", step.PosVar)
			}
			p = cursor
			continue
		}
		extent, err := m.dimValue(step.Extent)
		if err != nil {
			return 0, err
		}
		index, ok := env[step.IndexVar]
		if !ok {
			return 0, errors.Errorf("exec: index variable %q is unbound", step.IndexVar)
		}
		p = p*extent + index
	}
	return p, nil
}

func (m *Machine) evalValue(e lower.Expr, env map[string]int) (float64, error) {
	switch node := e.(type) {
	case *lower.Literal:
		return node.Value, nil
	case *lower.Load:
		addr, err := m.evalChain(node.Addr, env)
		if err != nil {
			return 0, err
		}
		return m.storages[node.Tensor].values[addr], nil
	case *lower.Binary:
		lhs, err := m.evalValue(node.Lhs, env)
		if err != nil {
			return 0, err
		}
		rhs, err := m.evalValue(node.Rhs, env)
		if err != nil {
			return 0, err
		}
		switch node.Op {
		case compute.OpAdd:
			return lhs + rhs, nil
		case compute.OpSub:
			return lhs - rhs, nil
		case compute.OpMul:
			return lhs * rhs, nil
		}
	}
	return 0, errors.Errorf("exec: unsupported value expression %T", e)
}

func (m *Machine) dimValue(dim shapes.Dim) (int, error) {
	if !dim.IsSymbolic() {
		return dim.Size(), nil
	}
	size, ok := m.sizes[dim.SymbolName()]
	if !ok {
		return 0, errors.Errorf("exec: symbolic dimension %q is unbound, use BindSize", dim.SymbolName())
	}
	return size, nil
}
