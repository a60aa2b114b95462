package codec

import (
	"fmt"
	"sort"
)

const (
	// MaxDictionarySymbols bounds the distinct values one dictionary can
	// describe. Streams declaring more are rejected.
	MaxDictionarySymbols = 1 << 20
	// MaxCodeLength bounds canonical code lengths. Optimal assignments
	// deeper than the cap are rebalanced during construction.
	MaxCodeLength = 32
)

// Dictionary maps symbols to canonical prefix-free codes. Codes are fully
// determined by the per-symbol code lengths: symbols ranked by
// (length, value) receive consecutive codes within each length. The
// serialized form therefore carries only symbols and lengths, and both
// sides rebuild identical codes.
type Dictionary struct {
	Symbols []int64 // distinct values, ascending
	Lengths []uint8 // code length per symbol, parallel to Symbols

	codes     []uint64
	index     map[int64]int32
	ranked    []int32 // symbol positions ordered by (length, value)
	maxLen    uint8
	counts    [MaxCodeLength + 1]int32
	firstCode [MaxCodeLength + 1]uint64
	firstRank [MaxCodeLength + 1]int32
}

// NewDictionary builds a canonical dictionary from a histogram. Every
// value with a nonzero count receives a code.
func NewDictionary(h *Histogram) (*Dictionary, error) {
	if h == nil || h.Distinct() == 0 {
		return nil, ErrEmptyInput
	}
	if h.Distinct() > MaxDictionarySymbols {
		return nil, fmt.Errorf("%w: %d distinct symbols, limit %d",
			ErrDictionaryTooLarge, h.Distinct(), MaxDictionarySymbols)
	}

	syms := h.Symbols()
	d := &Dictionary{
		Symbols: syms,
		Lengths: make([]uint8, len(syms)),
	}

	if len(syms) == 1 {
		d.Lengths[0] = 1
	} else {
		depths := huffmanDepths(syms, h)
		limitDepths(depths, MaxCodeLength)
		for i, dep := range depths {
			d.Lengths[i] = uint8(dep)
		}
	}

	if err := d.build(); err != nil {
		return nil, err
	}
	return d, nil
}

// NewDictionaryFromLengths rebuilds a dictionary from its serialized parts.
// Symbols must be strictly ascending; lengths must describe a feasible
// prefix-free code.
func NewDictionaryFromLengths(symbols []int64, lengths []uint8) (*Dictionary, error) {
	if len(symbols) == 0 {
		return nil, ErrEmptyInput
	}
	if len(symbols) != len(lengths) {
		return nil, fmt.Errorf("%w: %d symbols, %d lengths", ErrCorruptStream, len(symbols), len(lengths))
	}
	if len(symbols) > MaxDictionarySymbols {
		return nil, ErrDictionaryTooLarge
	}
	for i := 1; i < len(symbols); i++ {
		if symbols[i] <= symbols[i-1] {
			return nil, fmt.Errorf("%w: symbols not ascending", ErrCorruptStream)
		}
	}
	d := &Dictionary{Symbols: symbols, Lengths: lengths}
	if err := d.build(); err != nil {
		return nil, err
	}
	return d, nil
}

// huffmanDepths computes optimal code depths with the two-queue method.
// Leaves are processed in (count, value) order, so equal inputs always
// produce equal depths.
func huffmanDepths(syms []int64, h *Histogram) []int32 {
	type node struct {
		weight      int64
		left, right int32
	}

	n := len(syms)
	// Leaf order: ascending count, ties by ascending value
	leafOrder := make([]int32, n)
	for i := range leafOrder {
		leafOrder[i] = int32(i)
	}
	sort.SliceStable(leafOrder, func(a, b int) bool {
		ca, cb := h.Count(syms[leafOrder[a]]), h.Count(syms[leafOrder[b]])
		if ca != cb {
			return ca < cb
		}
		return syms[leafOrder[a]] < syms[leafOrder[b]]
	})

	nodes := make([]node, n, 2*n-1)
	for i, pos := range leafOrder {
		nodes[i] = node{weight: h.Count(syms[pos]), left: -1, right: -1}
	}

	// Two FIFO queues: pending leaves and newly made internal nodes, each
	// already in ascending weight order
	var leafHead, innerHead int
	inner := make([]int32, 0, n-1)

	pop := func() int32 {
		// Prefer the leaf queue on ties for determinism
		if leafHead < n && (innerHead >= len(inner) || nodes[leafHead].weight <= nodes[inner[innerHead]].weight) {
			leafHead++
			return int32(leafHead - 1)
		}
		innerHead++
		return inner[innerHead-1]
	}

	for i := 0; i < n-1; i++ {
		a := pop()
		b := pop()
		nodes = append(nodes, node{weight: nodes[a].weight + nodes[b].weight, left: a, right: b})
		inner = append(inner, int32(len(nodes)-1))
	}

	// Walk the tree; leaf depth = code length
	depths := make([]int32, n)
	type item struct {
		id    int32
		depth int32
	}
	stack := []item{{int32(len(nodes) - 1), 0}}
	for len(stack) > 0 {
		it := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		nd := nodes[it.id]
		if nd.left < 0 {
			depths[leafOrder[it.id]] = it.depth
			continue
		}
		stack = append(stack, item{nd.left, it.depth + 1}, item{nd.right, it.depth + 1})
	}
	return depths
}

// limitDepths caps code depths at max while keeping the Kraft sum feasible.
// Whenever clamping overshoots, the deepest symbols still under the cap are
// pushed one level down until the code space fits again.
func limitDepths(depths []int32, max int32) {
	over := false
	for _, d := range depths {
		if d > max {
			over = true
			break
		}
	}
	if !over {
		return
	}

	var kraft uint64
	for i, d := range depths {
		if d > max {
			depths[i] = max
			d = max
		}
		kraft += uint64(1) << uint(max-d)
	}
	limit := uint64(1) << uint(max)

	for l := max - 1; l >= 1 && kraft > limit; l-- {
		for i := range depths {
			if kraft <= limit {
				break
			}
			if depths[i] == l {
				depths[i] = l + 1
				kraft -= uint64(1) << uint(max-l-1)
			}
		}
	}
}

// build derives canonical codes and decode tables from Symbols/Lengths.
func (d *Dictionary) build() error {
	d.counts = [MaxCodeLength + 1]int32{}
	d.maxLen = 0
	for _, l := range d.Lengths {
		if l < 1 || l > MaxCodeLength {
			return fmt.Errorf("%w: code length %d out of range", ErrCorruptStream, l)
		}
		d.counts[l]++
		if l > d.maxLen {
			d.maxLen = l
		}
	}

	// Kraft inequality: the lengths must fit the prefix-free code space
	var kraft uint64
	for l := uint8(1); l <= d.maxLen; l++ {
		kraft += uint64(d.counts[l]) << uint(MaxCodeLength-l)
	}
	if kraft > uint64(1)<<MaxCodeLength {
		return fmt.Errorf("%w: code lengths overfill the code space", ErrCorruptStream)
	}

	d.ranked = make([]int32, len(d.Symbols))
	for i := range d.ranked {
		d.ranked[i] = int32(i)
	}
	sort.Slice(d.ranked, func(a, b int) bool {
		ra, rb := d.ranked[a], d.ranked[b]
		if d.Lengths[ra] != d.Lengths[rb] {
			return d.Lengths[ra] < d.Lengths[rb]
		}
		return d.Symbols[ra] < d.Symbols[rb]
	})

	var code uint64
	var rank int32
	for l := uint8(1); l <= d.maxLen; l++ {
		d.firstCode[l] = code
		d.firstRank[l] = rank
		code = (code + uint64(d.counts[l])) << 1
		rank += d.counts[l]
	}

	d.codes = make([]uint64, len(d.Symbols))
	d.index = make(map[int64]int32, len(d.Symbols))
	perLen := [MaxCodeLength + 1]uint64{}
	for _, pos := range d.ranked {
		l := d.Lengths[pos]
		d.codes[pos] = d.firstCode[l] + perLen[l]
		perLen[l]++
		d.index[d.Symbols[pos]] = pos
	}
	return nil
}

// Code returns the canonical code and length for a symbol.
func (d *Dictionary) Code(v int64) (code uint64, length uint8, ok bool) {
	pos, ok := d.index[v]
	if !ok {
		return 0, 0, false
	}
	return d.codes[pos], d.Lengths[pos], true
}

// MaxLength returns the longest code length in use.
func (d *Dictionary) MaxLength() uint8 {
	return d.maxLen
}

// appendCode writes the code for v to the bit stream.
func (d *Dictionary) appendCode(w *bitWriter, v int64) error {
	pos, ok := d.index[v]
	if !ok {
		return fmt.Errorf("symbol %d not in dictionary", v)
	}
	w.WriteBits(d.codes[pos], uint(d.Lengths[pos]))
	return nil
}

// decodeSymbol reads one canonical code from the bit stream.
func (d *Dictionary) decodeSymbol(r *bitReader) (int64, error) {
	var code uint64
	for l := uint8(1); l <= d.maxLen; l++ {
		b, err := r.ReadBit()
		if err != nil {
			return 0, err
		}
		code = code<<1 | uint64(b)
		if d.counts[l] > 0 && code >= d.firstCode[l] && code-d.firstCode[l] < uint64(d.counts[l]) {
			pos := d.ranked[d.firstRank[l]+int32(code-d.firstCode[l])]
			return d.Symbols[pos], nil
		}
	}
	return 0, fmt.Errorf("%w: bit pattern matches no code", ErrCorruptStream)
}
