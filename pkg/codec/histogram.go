package codec

import "sort"

// Histogram counts occurrences of each distinct value in an integer
// sequence. It feeds dictionary construction but is also usable on its own
// for inspecting value distributions.
type Histogram struct {
	counts map[int64]int64
	total  int64
}

// NewHistogram creates an empty histogram
func NewHistogram() *Histogram {
	return &Histogram{counts: make(map[int64]int64)}
}

// BuildHistogram counts all values in one pass
func BuildHistogram(values []int64) *Histogram {
	h := &Histogram{counts: make(map[int64]int64, 64)}
	h.Add(values...)
	return h
}

// Add records occurrences of the given values
func (h *Histogram) Add(values ...int64) {
	for _, v := range values {
		h.counts[v]++
	}
	h.total += int64(len(values))
}

// Count returns how many times v was recorded
func (h *Histogram) Count(v int64) int64 {
	return h.counts[v]
}

// Distinct returns the number of distinct values recorded
func (h *Histogram) Distinct() int {
	return len(h.counts)
}

// Total returns the total number of values recorded
func (h *Histogram) Total() int64 {
	return h.total
}

// Symbols returns the distinct values in ascending order
func (h *Histogram) Symbols() []int64 {
	syms := make([]int64, 0, len(h.counts))
	for v := range h.counts {
		syms = append(syms, v)
	}
	sort.Slice(syms, func(i, j int) bool { return syms[i] < syms[j] })
	return syms
}
