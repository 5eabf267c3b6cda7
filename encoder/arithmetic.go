package encoder

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"math/bits"
	"sort"
)

// Carry-less range coder over a 56-bit window: bytes leave from bits 48..55 and
// the range is renormalized whenever it drops below 2^40.
const (
	rangeTop    = uint64(1) << 48
	rangeBottom = uint64(1)<<40 - 1
	rangeMin    = rangeBottom + 1
	rangeMask   = uint64(0x00FFFFFFFFFFFFFF)
	rangeFlush  = 7
)

// Frequency model limits.  Every symbol starts with a count of 1 and gains
// modelIncrement each time it is coded; counts are halved once their total
// passes modelMaxTotal.
const (
	modelIncrement  = 32
	modelMaxTotal   = 1 << 22
	maxArithSymbols = modelMaxTotal / 2

	// most range coder bytes a single symbol can produce
	maxSymbolBytes = 16
)

// Arithmetic is an adaptive arithmetic coder over non-negative integer codes.
// Its saved state is only the alphabet; symbol frequencies are learned while
// coding, identically on both sides.
type Arithmetic struct {
	symbols []int       // sorted alphabet
	index   map[int]int // symbol -> position in symbols
}

func NewArithmetic() *Arithmetic {
	return &Arithmetic{}
}

// PreprocessEncode collects the alphabet of the codes.
func (a *Arithmetic) PreprocessEncode(codes []int, alphabetSize int) error {
	seen := make(map[int]struct{}, alphabetSize/8)
	for _, c := range codes {
		if c < 0 || uint64(c) > math.MaxUint32 {
			return fmt.Errorf("arithmetic encoder can't code symbol %d", c)
		}
		seen[c] = struct{}{}
	}
	if len(seen) > maxArithSymbols {
		return fmt.Errorf("%d distinct symbols exceed arithmetic coder limit of %d", len(seen), maxArithSymbols)
	}
	symbols := make([]int, 0, len(seen))
	for symbol := range seen {
		symbols = append(symbols, symbol)
	}
	sort.Ints(symbols)
	a.setSymbols(symbols)
	return nil
}

func (a *Arithmetic) setSymbols(symbols []int) {
	a.symbols = symbols
	a.index = make(map[int]int, len(symbols))
	for i, symbol := range symbols {
		a.index[symbol] = i
	}
}

// Save writes the number of symbols followed by the sorted symbols as uint32.
func (a *Arithmetic) Save(w io.Writer) error {
	buf := make([]byte, 4+4*len(a.symbols))
	binary.LittleEndian.PutUint32(buf, uint32(len(a.symbols)))
	for i, symbol := range a.symbols {
		binary.LittleEndian.PutUint32(buf[4+4*i:], uint32(symbol))
	}
	_, err := w.Write(buf)
	return err
}

// Encode writes the number of coded bytes followed by the range coder output.
func (a *Arithmetic) Encode(codes []int, w io.Writer) error {
	model := newFrequencyModel(len(a.symbols))
	rc := rangeEncoder{rng: rangeTop<<8 - 1}
	for _, c := range codes {
		i, found := a.index[c]
		if !found {
			return fmt.Errorf("symbol %d was not seen by PreprocessEncode", c)
		}
		rc.encode(model.cumulative(i), model.freq[i], model.total)
		model.update(i)
	}
	data := rc.finish()
	if err := binary.Write(w, binary.LittleEndian, uint64(len(data))); err != nil {
		return err
	}
	_, err := w.Write(data)
	return err
}

func (a *Arithmetic) PostprocessEncode() {
	a.index = nil
}

// Load reads the alphabet written by Save.
func (a *Arithmetic) Load(r io.Reader) error {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return fmt.Errorf("%w: %v", ErrCorrupted, err)
	}
	if n > maxArithSymbols {
		return fmt.Errorf("%w: %d symbols in arithmetic coder table", ErrCorrupted, n)
	}
	buf := make([]byte, 4*int(n))
	if _, err := io.ReadFull(r, buf); err != nil {
		return fmt.Errorf("%w: arithmetic coder table: %v", ErrCorrupted, err)
	}
	symbols := make([]int, n)
	for i := range symbols {
		symbols[i] = int(binary.LittleEndian.Uint32(buf[4*i:]))
		if i > 0 && symbols[i] <= symbols[i-1] {
			return fmt.Errorf("%w: arithmetic coder symbols out of order", ErrCorrupted)
		}
	}
	a.setSymbols(symbols)
	return nil
}

// Decode reads count symbols from a stream written by Encode.
func (a *Arithmetic) Decode(r io.Reader, count int) ([]int, error) {
	var nbytes uint64
	if err := binary.Read(r, binary.LittleEndian, &nbytes); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupted, err)
	}
	if count < 0 || nbytes > maxSymbolBytes*uint64(count)+rangeFlush {
		return nil, fmt.Errorf("%w: %d bytes for %d codes", ErrCorrupted, nbytes, count)
	}
	if count > 0 && len(a.symbols) == 0 {
		return nil, fmt.Errorf("%w: no arithmetic coder table for %d codes", ErrCorrupted, count)
	}
	data := make([]byte, nbytes)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, fmt.Errorf("%w: reading %d bytes: %v", ErrCorrupted, nbytes, err)
	}

	codes := make([]int, count)
	if count == 0 {
		return codes, nil
	}
	model := newFrequencyModel(len(a.symbols))
	rd, err := newRangeDecoder(data)
	if err != nil {
		return nil, err
	}
	for i := range codes {
		target, err := rd.target(model.total)
		if err != nil {
			return nil, fmt.Errorf("%w: code %d", err, i)
		}
		s, low := model.find(target)
		if err := rd.consume(low, model.freq[s]); err != nil {
			return nil, fmt.Errorf("%w: code %d", err, i)
		}
		codes[i] = a.symbols[s]
		model.update(s)
	}
	return codes, nil
}

func (a *Arithmetic) PostprocessDecode() {
	a.symbols = nil
	a.index = nil
}

// frequencyModel keeps adaptive symbol counts in a Fenwick tree so cumulative
// counts and lookups are logarithmic in the alphabet size.
type frequencyModel struct {
	freq  []uint64
	tree  []uint64 // 1-based Fenwick tree over freq
	total uint64
	step  int // largest power of two <= len(freq)
}

func newFrequencyModel(n int) *frequencyModel {
	m := &frequencyModel{
		freq: make([]uint64, n),
		tree: make([]uint64, n+1),
	}
	if n > 0 {
		m.step = 1 << (bits.Len(uint(n)) - 1)
	}
	for i := range m.freq {
		m.freq[i] = 1
	}
	m.rebuild()
	return m
}

func (m *frequencyModel) rebuild() {
	n := len(m.freq)
	m.total = 0
	for i, f := range m.freq {
		m.tree[i+1] = f
		m.total += f
	}
	for i := 1; i <= n; i++ {
		if j := i + (i & -i); j <= n {
			m.tree[j] += m.tree[i]
		}
	}
}

// cumulative returns the summed counts of symbols before position i.
func (m *frequencyModel) cumulative(i int) uint64 {
	var sum uint64
	for j := i; j > 0; j -= j & -j {
		sum += m.tree[j]
	}
	return sum
}

// find returns the position whose cumulative interval holds target, along with
// the interval's lower end.  target must be below the total.
func (m *frequencyModel) find(target uint64) (int, uint64) {
	pos := 0
	rem := target
	for step := m.step; step > 0; step >>= 1 {
		if next := pos + step; next <= len(m.freq) && m.tree[next] <= rem {
			pos = next
			rem -= m.tree[next]
		}
	}
	return pos, target - rem
}

func (m *frequencyModel) update(i int) {
	m.freq[i] += modelIncrement
	m.total += modelIncrement
	for j := i + 1; j <= len(m.freq); j += j & -j {
		m.tree[j] += modelIncrement
	}
	if m.total > modelMaxTotal {
		for k, f := range m.freq {
			m.freq[k] = (f + 1) / 2
		}
		m.rebuild()
	}
}

type rangeEncoder struct {
	low uint64
	rng uint64
	out []byte
}

func (e *rangeEncoder) encode(low, freq, total uint64) {
	e.rng /= total
	e.low += low * e.rng
	e.rng *= freq
	for {
		check := (e.low ^ (e.low + e.rng)) & rangeMask
		if check >= rangeTop && e.rng >= rangeMin {
			break
		}
		if check >= rangeTop {
			e.rng = -e.low & rangeMask & rangeBottom
		}
		e.out = append(e.out, byte(e.low>>48))
		e.rng <<= 8
		e.low <<= 8
	}
}

func (e *rangeEncoder) finish() []byte {
	for i := 0; i < rangeFlush; i++ {
		e.out = append(e.out, byte(e.low>>48))
		e.low <<= 8
	}
	return e.out
}

type rangeDecoder struct {
	low  uint64
	rng  uint64
	code uint64
	data []byte
	pos  int
}

func newRangeDecoder(data []byte) (*rangeDecoder, error) {
	d := &rangeDecoder{rng: rangeTop<<8 - 1, data: data}
	for i := 0; i < rangeFlush; i++ {
		b, err := d.next()
		if err != nil {
			return nil, err
		}
		d.code = d.code<<8 | uint64(b)
	}
	return d, nil
}

func (d *rangeDecoder) next() (byte, error) {
	if d.pos >= len(d.data) {
		return 0, fmt.Errorf("%w: range coder stream ended", ErrCorrupted)
	}
	b := d.data[d.pos]
	d.pos++
	return b, nil
}

// target scales the range to total and returns the cumulative count the next
// symbol's interval must hold.
func (d *rangeDecoder) target(total uint64) (uint64, error) {
	d.rng /= total
	t := (d.code - d.low) / d.rng
	if t >= total {
		return 0, fmt.Errorf("%w: range coder state out of bounds", ErrCorrupted)
	}
	return t, nil
}

func (d *rangeDecoder) consume(low, freq uint64) error {
	d.low += low * d.rng
	d.rng *= freq
	for {
		check := (d.low ^ (d.low + d.rng)) & rangeMask
		if check >= rangeTop && d.rng >= rangeMin {
			return nil
		}
		if check >= rangeTop {
			d.rng = -d.low & rangeMask & rangeBottom
		}
		b, err := d.next()
		if err != nil {
			return err
		}
		d.code = d.code<<8 | uint64(b)
		d.rng <<= 8
		d.low <<= 8
	}
}
