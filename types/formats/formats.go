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

// Package formats defines the per-axis storage format of a tensor.
//
// Each axis of a tensor is stored at one LevelFormat: Dense, meaning every
// coordinate of the axis is materialized, or Sparse, meaning only the present
// coordinates are stored through position/coordinate arrays (see the sparse
// package for the storage layout).
//
// A Format is an ordered sequence of LevelFormat values, one per axis, in the
// same order as the tensor's declared shape dimensions. Formats are immutable
// value types, comparable by structural equality:
//
//	csr := formats.Make(formats.Dense, formats.Sparse)
//	vec := formats.DenseFormat(1)
package formats

import (
	"strings"

	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
)

// LevelFormat is the storage discipline of one tensor axis.
type LevelFormat int8

const (
	// Dense axes materialize every coordinate in [0, dim).
	Dense LevelFormat = iota

	// Sparse axes store only the present coordinates, through a pair of
	// position and coordinate arrays.
	Sparse
)

// String implements fmt.Stringer.
func (l LevelFormat) String() string {
	switch l {
	case Dense:
		return "Dense"
	case Sparse:
		return "Sparse"
	}
	return "InvalidLevelFormat"
}

// ErrInvalidFormatLength is returned by Format.CheckRank when a format is
// bound to a tensor of a different rank.
var ErrInvalidFormatLength = errors.New("format length does not match tensor rank")

// Format is an ordered sequence of per-axis level formats.
//
// The zero value is the format of a scalar (rank 0). Use Make or DenseFormat
// to build formats for higher ranks.
type Format struct {
	levels []LevelFormat
}

// Make returns a Format with the given per-axis levels, one per axis in
// declaration order. It panics on level values outside {Dense, Sparse}.
func Make(levels ...LevelFormat) Format {
	for axis, level := range levels {
		if level != Dense && level != Sparse {
			exceptions.Panicf("formats.Make: invalid level format %d for axis %d", level, axis)
		}
	}
	f := Format{levels: make([]LevelFormat, len(levels))}
	copy(f.levels, levels)
	return f
}

// DenseFormat returns a Format of the given rank with every axis Dense.
// This is the common case for operands without compressed storage.
func DenseFormat(rank int) Format {
	if rank < 0 {
		exceptions.Panicf("formats.DenseFormat: negative rank %d", rank)
	}
	return Format{levels: make([]LevelFormat, rank)}
}

// Rank returns the number of axes the format describes.
func (f Format) Rank() int { return len(f.levels) }

// Level returns the format of the given axis. Like slice indexing, it panics
// for an out-of-bounds axis.
func (f Format) Level(axis int) LevelFormat {
	if axis < 0 || axis >= f.Rank() {
		exceptions.Panicf("Format.Level(%d) out-of-bounds for rank %d (format=%s)", axis, f.Rank(), f)
	}
	return f.levels[axis]
}

// Levels returns a copy of the per-axis levels.
func (f Format) Levels() []LevelFormat {
	levels := make([]LevelFormat, len(f.levels))
	copy(levels, f.levels)
	return levels
}

// IsAllDense returns whether every axis is Dense.
func (f Format) IsAllDense() bool {
	for _, level := range f.levels {
		if level != Dense {
			return false
		}
	}
	return true
}

// NumSparse returns the number of Sparse axes.
func (f Format) NumSparse() (count int) {
	for _, level := range f.levels {
		if level == Sparse {
			count++
		}
	}
	return
}

// Equal compares two formats for structural equality.
func (f Format) Equal(f2 Format) bool {
	if f.Rank() != f2.Rank() {
		return false
	}
	for axis, level := range f.levels {
		if level != f2.levels[axis] {
			return false
		}
	}
	return true
}

// CheckRank returns ErrInvalidFormatLength (wrapped with context) if the
// format does not describe exactly rank axes.
func (f Format) CheckRank(rank int) error {
	if f.Rank() != rank {
		return errors.Wrapf(ErrInvalidFormatLength, "format %s has %d levels, tensor has rank %d", f, f.Rank(), rank)
	}
	return nil
}

// String implements fmt.Stringer, e.g. "[Dense, Sparse]".
func (f Format) String() string {
	parts := make([]string, len(f.levels))
	for axis, level := range f.levels {
		parts[axis] = level.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
