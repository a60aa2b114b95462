package codec

import (
	"testing"
)

func TestBitStreamRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		values []uint64
		widths []uint
	}{
		{"single bit", []uint64{1}, []uint{1}},
		{"byte aligned", []uint64{0xAB, 0xCD}, []uint{8, 8}},
		{"unaligned", []uint64{5, 1023, 0, 7}, []uint{3, 10, 1, 3}},
		{"full width", []uint64{^uint64(0), 42}, []uint{64, 64}},
		{"mixed", []uint64{1, 2, 3, 4, 5}, []uint{1, 2, 3, 13, 29}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := newBitWriter(16)
			for i, v := range tt.values {
				w.WriteBits(v, tt.widths[i])
			}
			r := newBitReader(w.Bytes())
			for i, want := range tt.values {
				got, err := r.ReadBits(tt.widths[i])
				if err != nil {
					t.Fatalf("ReadBits(%d) error: %v", tt.widths[i], err)
				}
				if got != want {
					t.Errorf("value %d = %d, want %d", i, got, want)
				}
			}
		})
	}
}

func TestBitWriterPadsFinalByte(t *testing.T) {
	w := newBitWriter(4)
	w.WriteBits(0b101, 3)
	got := w.Bytes()
	if len(got) != 1 {
		t.Fatalf("expected 1 byte, got %d", len(got))
	}
	// Three bits then zero padding
	if got[0] != 0b10100000 {
		t.Errorf("byte = %08b, want 10100000", got[0])
	}
}

func TestBitWriterBitLen(t *testing.T) {
	w := newBitWriter(4)
	if w.BitLen() != 0 {
		t.Errorf("empty writer BitLen = %d", w.BitLen())
	}
	w.WriteBits(0, 11)
	if w.BitLen() != 11 {
		t.Errorf("BitLen = %d, want 11", w.BitLen())
	}
}

func TestBitReaderShortStream(t *testing.T) {
	r := newBitReader([]byte{0xFF})
	if _, err := r.ReadBits(8); err != nil {
		t.Fatalf("first byte should read: %v", err)
	}
	if _, err := r.ReadBits(1); err != ErrShortStream {
		t.Errorf("expected ErrShortStream, got %v", err)
	}
}

func TestBitReaderMSBFirst(t *testing.T) {
	r := newBitReader([]byte{0b11010010})
	expected := []byte{1, 1, 0, 1, 0, 0, 1, 0}
	for i, want := range expected {
		got, err := r.ReadBit()
		if err != nil {
			t.Fatalf("ReadBit %d error: %v", i, err)
		}
		if got != want {
			t.Errorf("bit %d = %d, want %d", i, got, want)
		}
	}
}
