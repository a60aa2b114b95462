package codec

import (
	"testing"
)

func TestHistogramCounts(t *testing.T) {
	h := BuildHistogram([]int64{3, -1, 3, 3, 0, -1})

	if got := h.Count(3); got != 3 {
		t.Errorf("Count(3) = %d, want 3", got)
	}
	if got := h.Count(-1); got != 2 {
		t.Errorf("Count(-1) = %d, want 2", got)
	}
	if got := h.Count(0); got != 1 {
		t.Errorf("Count(0) = %d, want 1", got)
	}
	if got := h.Count(99); got != 0 {
		t.Errorf("Count(99) = %d, want 0", got)
	}
	if got := h.Distinct(); got != 3 {
		t.Errorf("Distinct() = %d, want 3", got)
	}
	if got := h.Total(); got != 6 {
		t.Errorf("Total() = %d, want 6", got)
	}
}

func TestHistogramSymbolsAscending(t *testing.T) {
	h := BuildHistogram([]int64{5, -10, 0, 5, 100, -10})
	syms := h.Symbols()

	want := []int64{-10, 0, 5, 100}
	if len(syms) != len(want) {
		t.Fatalf("Symbols() len = %d, want %d", len(syms), len(want))
	}
	for i := range want {
		if syms[i] != want[i] {
			t.Errorf("Symbols()[%d] = %d, want %d", i, syms[i], want[i])
		}
	}
}

func TestHistogramIncrementalAdd(t *testing.T) {
	h := NewHistogram()
	h.Add(1, 2)
	h.Add(2)

	if got := h.Count(2); got != 2 {
		t.Errorf("Count(2) = %d, want 2", got)
	}
	if got := h.Total(); got != 3 {
		t.Errorf("Total() = %d, want 3", got)
	}
}

func TestHistogramEmpty(t *testing.T) {
	h := NewHistogram()
	if h.Distinct() != 0 || h.Total() != 0 {
		t.Error("empty histogram should report zero distinct and total")
	}
	if len(h.Symbols()) != 0 {
		t.Error("empty histogram should have no symbols")
	}
}
