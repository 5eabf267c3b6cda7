package encoder

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math/rand"
	"testing"
)

func checkCodes(t *testing.T, name string, expected, got []int) {
	t.Helper()
	if len(got) != len(expected) {
		t.Fatalf("%s: expected %d codes, got %d", name, len(expected), len(got))
	}
	for i := range expected {
		if got[i] != expected[i] {
			t.Fatalf("%s: code %d is %d, expected %d", name, i, got[i], expected[i])
		}
	}
}

func TestArithmeticRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(5))

	wide := make([]int, 50000)
	for i := range wide {
		wide[i] = rng.Intn(5000) * 7
	}
	// long enough that the symbol counts get rescaled several times
	long := make([]int, 300000)
	for i := range long {
		long[i] = 32768
		if rng.Intn(50) == 0 {
			long[i] = 32768 + rng.Intn(9) - 4
		}
	}
	tests := map[string][]int{
		"skewed": skewedCodes(20000),
		"wide":   wide,
		"long":   long,
		"single": {9, 9, 9, 9, 9, 9, 9},
		"one":    {65535},
		"empty":  nil,
	}
	for name, codes := range tests {
		checkCodes(t, name, codes, roundTrip(t, "arithmetic", codes))
	}
}

func TestArithmeticCompresses(t *testing.T) {
	codes := skewedCodes(20000)
	a := NewArithmetic()
	if err := a.PreprocessEncode(codes, 0); err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := a.Encode(codes, &buf); err != nil {
		t.Fatal(err)
	}
	if buf.Len() > len(codes)*5/8 {
		t.Errorf("expected fewer than 5 bits per skewed code, got %d bytes for %d codes", buf.Len(), len(codes))
	}

	constant := make([]int, 100000)
	buf.Reset()
	a.PreprocessEncode(constant, 0)
	if err := a.Encode(constant, &buf); err != nil {
		t.Fatal(err)
	}
	if buf.Len() > 64 {
		t.Errorf("expected a single-symbol stream to take a few bytes, got %d", buf.Len())
	}
}

func TestFrequencyModel(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	m := newFrequencyModel(37)
	check := func() {
		var sum uint64
		for i, f := range m.freq {
			if got := m.cumulative(i); got != sum {
				t.Fatalf("cumulative(%d) = %d, expected %d", i, got, sum)
			}
			if s, low := m.find(sum); s != i || low != sum {
				t.Fatalf("find(%d) = (%d, %d), expected (%d, %d)", sum, s, low, i, sum)
			}
			if s, _ := m.find(sum + f - 1); s != i {
				t.Fatalf("find(%d) = %d, expected %d", sum+f-1, s, i)
			}
			sum += f
		}
		if sum != m.total {
			t.Fatalf("total %d, expected %d", m.total, sum)
		}
		if m.total > modelMaxTotal {
			t.Fatalf("total %d exceeds %d", m.total, modelMaxTotal)
		}
	}
	check()
	for i := 0; i < 300000; i++ {
		m.update(rng.Intn(len(m.freq)) * rng.Intn(2))
		if i%25000 == 0 {
			check()
		}
	}
	check()
}

func TestArithmeticErrors(t *testing.T) {
	a := NewArithmetic()
	if err := a.PreprocessEncode([]int{3, -1}, 0); err == nil {
		t.Errorf("expected error for negative symbol")
	}
	if err := a.PreprocessEncode([]int{1, 2}, 0); err != nil {
		t.Fatal(err)
	}
	if err := a.Encode([]int{1, 5}, &bytes.Buffer{}); err == nil {
		t.Errorf("expected error encoding unseen symbol")
	}

	codes := skewedCodes(2000)
	a = NewArithmetic()
	if err := a.PreprocessEncode(codes, 0); err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	a.Save(&buf)
	a.Encode(codes, &buf)
	full := buf.Bytes()
	tableLen := 4 + 4*len(a.symbols)

	decode := func(b []byte) error {
		dec := NewArithmetic()
		r := bytes.NewReader(b)
		if err := dec.Load(r); err != nil {
			return err
		}
		_, err := dec.Decode(r, len(codes))
		return err
	}
	for _, cut := range []int{2, tableLen - 1, tableLen + 4, len(full) - 1} {
		if err := decode(full[:cut]); !errors.Is(err, ErrCorrupted) {
			t.Errorf("expected ErrCorrupted for stream cut at %d bytes, got %v", cut, err)
		}
	}

	for _, nbytes := range []uint64{^uint64(0), 1 << 40, maxSymbolBytes*uint64(len(codes)) + rangeFlush + 1} {
		corrupted := append([]byte{}, full...)
		binary.LittleEndian.PutUint64(corrupted[tableLen:], nbytes)
		if err := decode(corrupted); !errors.Is(err, ErrCorrupted) {
			t.Errorf("expected ErrCorrupted for stored byte count %d, got %v", nbytes, err)
		}
	}

	unordered := []byte{2, 0, 0, 0, 5, 0, 0, 0, 5, 0, 0, 0}
	if err := NewArithmetic().Load(bytes.NewReader(unordered)); !errors.Is(err, ErrCorrupted) {
		t.Errorf("expected ErrCorrupted for repeated symbol, got %v", err)
	}
	huge := []byte{0xff, 0xff, 0xff, 0xff}
	if err := NewArithmetic().Load(bytes.NewReader(huge)); !errors.Is(err, ErrCorrupted) {
		t.Errorf("expected ErrCorrupted for oversized table, got %v", err)
	}
	if _, err := NewArithmetic().Decode(bytes.NewReader(make([]byte, 8)), 3); !errors.Is(err, ErrCorrupted) {
		t.Errorf("expected ErrCorrupted decoding without a table, got %v", err)
	}
}
