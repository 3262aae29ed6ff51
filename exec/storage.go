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

package exec

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/sparselower/sparse"
	"github.com/x448/float16"
)

// Storage is the concrete storage of one tensor during interpretation: the
// value array, plus one compressed level per Sparse axis. Values are held as
// float64 internally regardless of the tensor's declared DType; use AsSlice
// to convert back.
type Storage struct {
	levels map[int]sparse.Level
	values []float64
}

// Dense returns the storage of an all-Dense tensor: a flat row-major value
// array. data must be a []float32, []float64 or []float16.Float16 slice, it
// panics on other types.
func Dense(data any) *Storage {
	return &Storage{values: toFloat64s(data)}
}

// DenseZeros returns an all-Dense storage of the given total size, filled
// with zeros. The usual choice for output tensors.
func DenseZeros(size int) *Storage {
	return &Storage{values: make([]float64, size)}
}

// Compressed returns the storage of a tensor with Sparse axes: the stored
// (non-zero) values plus the compressed level of each Sparse axis, keyed by
// axis. data follows the same conventions as Dense.
func Compressed(data any, levels map[int]sparse.Level) *Storage {
	s := &Storage{values: toFloat64s(data), levels: make(map[int]sparse.Level, len(levels))}
	for axis, level := range levels {
		s.levels[axis] = level
	}
	return s
}

// Level returns the compressed level bound to the given axis, if any.
func (s *Storage) Level(axis int) (sparse.Level, bool) {
	level, ok := s.levels[axis]
	return level, ok
}

// Float64s returns the backing value array. For an output tensor it holds
// the computed results after Machine.Run.
func (s *Storage) Float64s() []float64 { return s.values }

// AsSlice returns the values converted to the given DType: a []float64,
// []float32 or []float16.Float16 slice. It panics on other dtypes.
func (s *Storage) AsSlice(dtype dtypes.DType) any {
	switch dtype {
	case dtypes.Float64:
		out := make([]float64, len(s.values))
		copy(out, s.values)
		return out
	case dtypes.Float32:
		out := make([]float32, len(s.values))
		for ii, v := range s.values {
			out[ii] = float32(v)
		}
		return out
	case dtypes.Float16:
		out := make([]float16.Float16, len(s.values))
		for ii, v := range s.values {
			out[ii] = float16.Fromfloat32(float32(v))
		}
		return out
	}
	exceptions.Panicf("exec: unsupported dtype %s for AsSlice", dtype)
	return nil
}

func toFloat64s(data any) []float64 {
	switch values := data.(type) {
	case []float64:
		out := make([]float64, len(values))
		copy(out, values)
		return out
	case []float32:
		out := make([]float64, len(values))
		for ii, v := range values {
			out[ii] = float64(v)
		}
		return out
	case []float16.Float16:
		out := make([]float64, len(values))
		for ii, v := range values {
			out[ii] = float64(v.Float32())
		}
		return out
	}
	exceptions.Panicf("exec: unsupported value slice type %T", data)
	return nil
}
