/*
	Package quantizer maps the residual between a value and its prediction onto an
	integer code such that the value rebuilt from the prediction and the code is within
	an absolute error bound.  Values that can't be represented that way are kept
	verbatim and signalled with code 0.
*/
package quantizer

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"golang.org/x/exp/constraints"
)

// DefaultRadius is half the number of quantization intervals.
const DefaultRadius = 32768

// stateTag marks serialized linear quantizer state.
const stateTag uint8 = 0x02

// unpredictable values are read back in chunks of this many elements.
const readChunk = 4096

// ErrCorrupted is returned when serialized state or a code is invalid.
var ErrCorrupted = errors.New("quantizer: corrupted state or code")

// Linear is a uniform quantizer with bin width 2*eb centered on the prediction.
type Linear[T constraints.Float] struct {
	eb           float64
	ebReciprocal float64
	radius       int

	unpred []T
	index  int // next unpredictable value during recovery
}

// NewLinear returns a quantizer for the given error bound and radius.  A radius < 1
// selects DefaultRadius.
func NewLinear[T constraints.Float](eb float64, radius int) *Linear[T] {
	if radius < 1 {
		radius = DefaultRadius
	}
	q := &Linear[T]{radius: radius}
	q.SetEB(eb)
	return q
}

// SetEB changes the active error bound.
func (q *Linear[T]) SetEB(eb float64) {
	q.eb = eb
	q.ebReciprocal = 1 / eb
}

// EB returns the active error bound.
func (q *Linear[T]) EB() float64 {
	return q.eb
}

// Radius returns half the number of quantization intervals.
func (q *Linear[T]) Radius() int {
	return q.radius
}

// NumUnpredictable returns how many values are stored verbatim.
func (q *Linear[T]) NumUnpredictable() int {
	return len(q.unpred)
}

// reconstruct is shared by quantization and recovery so both sides round identically.
func (q *Linear[T]) reconstruct(pred T, half int) T {
	step := float64(float64(2*half) * q.eb)
	return T(float64(pred) + step)
}

// QuantizeAndOverwrite returns the code for *v given pred and replaces *v with the
// value that recovery will produce.  Code 0 stores *v verbatim.
func (q *Linear[T]) QuantizeAndOverwrite(v *T, pred T) int {
	diff := float64(*v) - float64(pred)
	qf := math.Abs(diff)*q.ebReciprocal + 1
	if !(qf < float64(2*q.radius)) {
		q.unpred = append(q.unpred, *v)
		return 0
	}
	half := int(qf) >> 1
	if diff < 0 {
		half = -half
	}
	rec := q.reconstruct(pred, half)
	if math.Abs(float64(rec)-float64(*v)) > q.eb {
		q.unpred = append(q.unpred, *v)
		return 0
	}
	*v = rec
	return q.radius + half
}

// Recover returns the value encoded by code relative to pred.
func (q *Linear[T]) Recover(pred T, code int) (T, error) {
	if code == 0 {
		if q.index >= len(q.unpred) {
			return 0, fmt.Errorf("%w: only %d unpredictable values stored", ErrCorrupted, len(q.unpred))
		}
		v := q.unpred[q.index]
		q.index++
		return v, nil
	}
	if code < 0 || code >= 2*q.radius {
		return 0, fmt.Errorf("%w: code %d outside [0, %d)", ErrCorrupted, code, 2*q.radius)
	}
	return q.reconstruct(pred, code-q.radius), nil
}

// Save writes the error bound, radius and unpredictable values.
func (q *Linear[T]) Save(w io.Writer) error {
	hdr := struct {
		Tag     uint8
		EB      float64
		Radius  int32
		NUnpred uint64
	}{stateTag, q.eb, int32(q.radius), uint64(len(q.unpred))}
	if err := binary.Write(w, binary.LittleEndian, hdr); err != nil {
		return err
	}
	if len(q.unpred) == 0 {
		return nil
	}
	return binary.Write(w, binary.LittleEndian, q.unpred)
}

// Load reads state written by Save and prepares for recovery.
func (q *Linear[T]) Load(r io.Reader) error {
	var hdr struct {
		Tag     uint8
		EB      float64
		Radius  int32
		NUnpred uint64
	}
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return fmt.Errorf("%w: %v", ErrCorrupted, err)
	}
	if hdr.Tag != stateTag {
		return fmt.Errorf("%w: unexpected tag 0x%02x", ErrCorrupted, hdr.Tag)
	}
	if hdr.Radius < 1 {
		return fmt.Errorf("%w: radius %d", ErrCorrupted, hdr.Radius)
	}
	q.SetEB(hdr.EB)
	q.radius = int(hdr.Radius)
	q.unpred = q.unpred[:0]
	q.index = 0
	remaining := hdr.NUnpred
	for remaining > 0 {
		n := remaining
		if n > readChunk {
			n = readChunk
		}
		chunk := make([]T, n)
		if err := binary.Read(r, binary.LittleEndian, chunk); err != nil {
			return fmt.Errorf("%w: reading unpredictable values: %v", ErrCorrupted, err)
		}
		q.unpred = append(q.unpred, chunk...)
		remaining -= n
	}
	return nil
}

// PostCompress releases state kept during compression.
func (q *Linear[T]) PostCompress() {
	q.unpred = nil
}

// PostDecompress releases state kept during decompression.
func (q *Linear[T]) PostDecompress() {
	q.unpred = nil
	q.index = 0
}
