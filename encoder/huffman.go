package encoder

import (
	"container/heap"
	"encoding/binary"
	"fmt"
	"io"
	"sort"
)

// maxCodeLength is the longest canonical code we accept.  Reaching it needs symbol
// counts growing like the Fibonacci sequence, far beyond any realistic grid.
const maxCodeLength = 63

// huffmanNode is used for building the Huffman tree
type huffmanNode struct {
	symbol int
	count  uint64
	left   *huffmanNode
	right  *huffmanNode
}

type huffmanHeap []*huffmanNode

func (h huffmanHeap) Len() int { return len(h) }

// Less orders by count then by symbol so the tree only depends on the frequencies.
func (h huffmanHeap) Less(i, j int) bool {
	if h[i].count != h[j].count {
		return h[i].count < h[j].count
	}
	return h[i].symbol < h[j].symbol
}

func (h huffmanHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *huffmanHeap) Push(x any) {
	*h = append(*h, x.(*huffmanNode))
}

func (h *huffmanHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// symbolCode is a canonical code for one symbol.
type symbolCode struct {
	symbol int
	length int
	code   uint64
}

// Huffman is a canonical Huffman coder over non-negative integer codes.
type Huffman struct {
	codes map[int]symbolCode // symbol -> code, for encoding

	// decoding tables: symbols sorted by (length, symbol)
	sorted    []int
	firstCode []uint64
	offset    []int
	count     []int
	maxLen    int
}

func NewHuffman() *Huffman {
	return &Huffman{}
}

// PreprocessEncode builds the code table from the code frequencies.
func (h *Huffman) PreprocessEncode(codes []int, alphabetSize int) error {
	freqs := make(map[int]uint64, alphabetSize/8)
	for _, c := range codes {
		if c < 0 {
			return fmt.Errorf("huffman encoder can't code negative symbol %d", c)
		}
		freqs[c]++
	}
	lengths, err := codeLengths(freqs)
	if err != nil {
		return err
	}
	h.setLengths(lengths)
	return nil
}

// codeLengths returns the Huffman code length of each symbol.
func codeLengths(freqs map[int]uint64) (map[int]int, error) {
	lengths := make(map[int]int, len(freqs))
	if len(freqs) == 0 {
		return lengths, nil
	}
	nodes := make(huffmanHeap, 0, len(freqs))
	for symbol, count := range freqs {
		nodes = append(nodes, &huffmanNode{symbol: symbol, count: count})
	}
	if len(nodes) == 1 {
		lengths[nodes[0].symbol] = 1
		return lengths, nil
	}
	heap.Init(&nodes)
	for nodes.Len() > 1 {
		left := heap.Pop(&nodes).(*huffmanNode)
		right := heap.Pop(&nodes).(*huffmanNode)
		parent := &huffmanNode{
			symbol: min(left.symbol, right.symbol),
			count:  left.count + right.count,
			left:   left,
			right:  right,
		}
		heap.Push(&nodes, parent)
	}
	var walk func(node *huffmanNode, depth int)
	walk = func(node *huffmanNode, depth int) {
		if node.left == nil && node.right == nil {
			lengths[node.symbol] = depth
			return
		}
		walk(node.left, depth+1)
		walk(node.right, depth+1)
	}
	walk(nodes[0], 0)
	for symbol, length := range lengths {
		if length > maxCodeLength {
			return nil, fmt.Errorf("huffman code for symbol %d needs %d bits", symbol, length)
		}
	}
	return lengths, nil
}

// setLengths assigns canonical codes and builds the decoding tables.
func (h *Huffman) setLengths(lengths map[int]int) {
	symbols := make([]symbolCode, 0, len(lengths))
	h.maxLen = 0
	for symbol, length := range lengths {
		symbols = append(symbols, symbolCode{symbol: symbol, length: length})
		if length > h.maxLen {
			h.maxLen = length
		}
	}
	sort.Slice(symbols, func(i, j int) bool {
		if symbols[i].length != symbols[j].length {
			return symbols[i].length < symbols[j].length
		}
		return symbols[i].symbol < symbols[j].symbol
	})

	h.count = make([]int, h.maxLen+1)
	for _, s := range symbols {
		h.count[s.length]++
	}
	h.firstCode = make([]uint64, h.maxLen+1)
	h.offset = make([]int, h.maxLen+1)
	var code uint64
	var offset int
	for length := 1; length <= h.maxLen; length++ {
		code = (code + uint64(h.count[length-1])) << 1
		h.firstCode[length] = code
		h.offset[length] = offset
		offset += h.count[length]
	}

	h.codes = make(map[int]symbolCode, len(symbols))
	h.sorted = make([]int, len(symbols))
	next := make([]uint64, h.maxLen+1)
	copy(next, h.firstCode)
	for i, s := range symbols {
		s.code = next[s.length]
		next[s.length]++
		h.codes[s.symbol] = s
		h.sorted[i] = s.symbol
	}
}

// Save writes the number of symbols followed by (symbol, length) pairs.
func (h *Huffman) Save(w io.Writer) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(h.sorted))); err != nil {
		return err
	}
	buf := make([]byte, 5*len(h.sorted))
	for i, symbol := range h.sorted {
		binary.LittleEndian.PutUint32(buf[5*i:], uint32(symbol))
		buf[5*i+4] = uint8(h.codes[symbol].length)
	}
	_, err := w.Write(buf)
	return err
}

// Encode writes the number of bits followed by the MSB-first bit stream.
func (h *Huffman) Encode(codes []int, w io.Writer) error {
	var bw bitWriter
	for _, c := range codes {
		sc, found := h.codes[c]
		if !found {
			return fmt.Errorf("symbol %d was not seen by PreprocessEncode", c)
		}
		bw.writeBits(sc.code, sc.length)
	}
	nbits, data := bw.finish()
	if err := binary.Write(w, binary.LittleEndian, nbits); err != nil {
		return err
	}
	_, err := w.Write(data)
	return err
}

func (h *Huffman) PostprocessEncode() {
	h.codes = nil
}

// Load reads the code lengths written by Save.
func (h *Huffman) Load(r io.Reader) error {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return fmt.Errorf("%w: %v", ErrCorrupted, err)
	}
	lengths := make(map[int]int)
	var entry [5]byte
	for i := uint32(0); i < n; i++ {
		if _, err := io.ReadFull(r, entry[:]); err != nil {
			return fmt.Errorf("%w: huffman table entry %d: %v", ErrCorrupted, i, err)
		}
		symbol := int(binary.LittleEndian.Uint32(entry[:4]))
		length := int(entry[4])
		if length < 1 || length > maxCodeLength {
			return fmt.Errorf("%w: code length %d for symbol %d", ErrCorrupted, length, symbol)
		}
		lengths[symbol] = length
	}
	h.setLengths(lengths)
	return nil
}

// Decode reads count symbols from a stream written by Encode.
func (h *Huffman) Decode(r io.Reader, count int) ([]int, error) {
	var nbits uint64
	if err := binary.Read(r, binary.LittleEndian, &nbits); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupted, err)
	}
	if count < 0 || nbits > uint64(count)*uint64(h.maxLen) {
		return nil, fmt.Errorf("%w: %d bits can't hold %d codes of at most %d bits", ErrCorrupted, nbits, count, h.maxLen)
	}
	data := make([]byte, (nbits+7)/8)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, fmt.Errorf("%w: reading %d bits: %v", ErrCorrupted, nbits, err)
	}
	if count > 0 && len(h.sorted) == 0 {
		return nil, fmt.Errorf("%w: no huffman table for %d codes", ErrCorrupted, count)
	}
	br := bitReader{data: data, nbits: nbits}
	codes := make([]int, count)
	for i := range codes {
		var code uint64
		length := 0
		for {
			bit, ok := br.readBit()
			if !ok {
				return nil, fmt.Errorf("%w: stream ended after %d of %d codes", ErrCorrupted, i, count)
			}
			code = code<<1 | bit
			length++
			if length > h.maxLen {
				return nil, fmt.Errorf("%w: invalid code at symbol %d", ErrCorrupted, i)
			}
			if h.count[length] > 0 && code >= h.firstCode[length] &&
				code-h.firstCode[length] < uint64(h.count[length]) {
				codes[i] = h.sorted[h.offset[length]+int(code-h.firstCode[length])]
				break
			}
		}
	}
	return codes, nil
}

func (h *Huffman) PostprocessDecode() {
	h.sorted = nil
	h.firstCode = nil
	h.offset = nil
	h.count = nil
	h.maxLen = 0
}

// bitWriter accumulates MSB-first bits.
type bitWriter struct {
	data  []byte
	acc   uint64
	nacc  int
	nbits uint64
}

func (bw *bitWriter) writeBits(code uint64, length int) {
	for length > 32 {
		length -= 32
		bw.writeBits(code>>uint(length), 32)
		code &= (1 << uint(length)) - 1
	}
	bw.acc = bw.acc<<uint(length) | code
	bw.nacc += length
	bw.nbits += uint64(length)
	for bw.nacc >= 8 {
		bw.nacc -= 8
		bw.data = append(bw.data, byte(bw.acc>>uint(bw.nacc)))
	}
	bw.acc &= (1 << uint(bw.nacc)) - 1
}

func (bw *bitWriter) finish() (uint64, []byte) {
	if bw.nacc > 0 {
		bw.data = append(bw.data, byte(bw.acc<<uint(8-bw.nacc)))
		bw.acc, bw.nacc = 0, 0
	}
	return bw.nbits, bw.data
}

// bitReader reads MSB-first bits.
type bitReader struct {
	data  []byte
	nbits uint64
	pos   uint64
}

func (br *bitReader) readBit() (uint64, bool) {
	if br.pos >= br.nbits {
		return 0, false
	}
	b := br.data[br.pos>>3]
	bit := uint64(b>>(7-uint(br.pos&7))) & 1
	br.pos++
	return bit, true
}
