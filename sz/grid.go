package sz

import (
	"fmt"
	"math/bits"
	"strconv"
	"strings"
)

// MaxDims is the largest dimensionality handled by the compressor.
const MaxDims = 4

// Dims is the shape of a row-major grid, slowest-varying axis first.
// The last axis is contiguous in memory.
type Dims []int

// NewDims returns a copy of the given extents after checking each is positive.
func NewDims(extents []int) (Dims, error) {
	if len(extents) == 0 {
		return nil, fmt.Errorf("grid must have at least one dimension")
	}
	d := make(Dims, len(extents))
	for i, n := range extents {
		if n < 1 {
			return nil, fmt.Errorf("extent %d along axis %d must be positive", n, i)
		}
		d[i] = n
	}
	return d, nil
}

// StringToDims parses a string like "100x500x500" into Dims.
func StringToDims(str, separator string) (Dims, error) {
	elems := strings.Split(str, separator)
	extents := make([]int, len(elems))
	for i, elem := range elems {
		n, err := strconv.Atoi(strings.TrimSpace(elem))
		if err != nil {
			return nil, fmt.Errorf("can't parse extent %q in %q: %v", elem, str, err)
		}
		extents[i] = n
	}
	return NewDims(extents)
}

func (d Dims) NumDims() int {
	return len(d)
}

// NumElements returns the product of all extents.
func (d Dims) NumElements() int {
	if len(d) == 0 {
		return 0
	}
	n := 1
	for _, extent := range d {
		n *= extent
	}
	return n
}

// Offsets returns the row-major strides of the grid: offset[N-1] = 1 and
// offset[i] = offset[i+1] * d[i+1].
func (d Dims) Offsets() []int {
	offsets := make([]int, len(d))
	if len(d) == 0 {
		return offsets
	}
	offsets[len(d)-1] = 1
	for i := len(d) - 2; i >= 0; i-- {
		offsets[i] = offsets[i+1] * d[i+1]
	}
	return offsets
}

// Index returns the linear offset of a coordinate given the grid offsets.
func Index(coord, offsets []int) int {
	var idx int
	for i, c := range coord {
		idx += c * offsets[i]
	}
	return idx
}

// Levels returns ceil(log2(max extent)), the number of multi-resolution levels
// needed so the coarsest stride spans the largest axis.
func (d Dims) Levels() int {
	var levels int
	for _, extent := range d {
		if l := bits.Len(uint(extent - 1)); l > levels {
			levels = l
		}
	}
	return levels
}

// Equals returns true if both grids have the same extents.
func (d Dims) Equals(d2 Dims) bool {
	if len(d) != len(d2) {
		return false
	}
	for i := range d {
		if d[i] != d2[i] {
			return false
		}
	}
	return true
}

func (d Dims) String() string {
	s := make([]string, len(d))
	for i, extent := range d {
		s[i] = strconv.Itoa(extent)
	}
	return strings.Join(s, "x")
}

// BlockRange iterates over the origins of blocks of a fixed size that tile a grid,
// in row-major order with the last axis varying fastest.
type BlockRange struct {
	dims Dims
	size int
	cur  []int
	done bool
}

// NewBlockRange returns a BlockRange for blocks of the given size along every axis.
func NewBlockRange(dims Dims, size int) *BlockRange {
	if size < 1 {
		size = 1
	}
	return &BlockRange{
		dims: dims,
		size: size,
		cur:  make([]int, len(dims)),
		done: len(dims) == 0,
	}
}

// Next returns the origin of the next block or false when all blocks were visited.
// The returned slice is only valid until the following call.
func (r *BlockRange) Next() ([]int, bool) {
	if r.done {
		return nil, false
	}
	origin := r.cur
	next := make([]int, len(r.cur))
	copy(next, r.cur)
	r.done = true
	for i := len(next) - 1; i >= 0; i-- {
		next[i] += r.size
		if next[i] < r.dims[i] {
			r.done = false
			break
		}
		next[i] = 0
	}
	r.cur = next
	return origin, true
}

// BlockEnd returns the last coordinate covered by a block starting at begin, i.e.,
// begin + span along each axis clamped to the grid boundary.
func (d Dims) BlockEnd(begin []int, span int) []int {
	end := make([]int, len(begin))
	for i := range begin {
		end[i] = begin[i] + span
		if end[i] > d[i]-1 {
			end[i] = d[i] - 1
		}
	}
	return end
}
