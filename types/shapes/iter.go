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

package shapes

import (
	"iter"

	"github.com/gomlx/exceptions"
)

// Iter returns an iterator over all index combinations of the shape, in
// row-major order (the last axis varies fastest). The yielded slice is reused
// across iterations; clone it if it needs to outlive the loop body.
//
// It panics if the shape is not fully defined, since symbolic dimensions have
// no extent to count to.
func (s Shape) Iter() iter.Seq[[]int] {
	if !s.IsFullyDefined() {
		exceptions.Panicf("Shape.Iter: shape %s has symbolic dimensions", s)
	}
	return func(yield func([]int) bool) {
		rank := s.Rank()
		if rank == 0 {
			_ = yield(make([]int, 0))
			return
		}
		indices := make([]int, rank)
		for {
			if !yield(indices) {
				return
			}

			// Increment indices to the next combination, row-major: the last
			// index changes fastest, overflow carries over to the axis before.
			axis := rank - 1
			for ; axis >= 0; axis-- {
				indices[axis]++
				if indices[axis] < s.Dimensions[axis].Size() {
					break
				}
				indices[axis] = 0
			}
			if axis < 0 {
				// The first axis also overflowed: iteration is complete.
				break
			}
		}
	}
}
