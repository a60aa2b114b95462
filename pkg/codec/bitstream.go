package codec

// MSB-first bit packing over a byte slice. The writer fills bytes from the
// high bit down; the reader consumes them the same way, so streams are
// byte-order neutral.

type bitWriter struct {
	buf   []byte
	cur   byte
	nbits uint
}

func newBitWriter(sizeHint int) *bitWriter {
	return &bitWriter{buf: make([]byte, 0, sizeHint)}
}

// WriteBits appends the low n bits of v, most significant first. n must be
// at most 64.
func (w *bitWriter) WriteBits(v uint64, n uint) {
	for n > 0 {
		// Fill the current byte in one step where possible
		take := 8 - w.nbits
		if take > n {
			take = n
		}
		chunk := byte(v >> (n - take) & (1<<take - 1))
		w.cur = w.cur<<take | chunk
		w.nbits += take
		n -= take
		if w.nbits == 8 {
			w.buf = append(w.buf, w.cur)
			w.cur, w.nbits = 0, 0
		}
	}
}

// Bytes flushes any partial byte (zero padded) and returns the stream.
func (w *bitWriter) Bytes() []byte {
	if w.nbits > 0 {
		w.buf = append(w.buf, w.cur<<(8-w.nbits))
		w.cur, w.nbits = 0, 0
	}
	return w.buf
}

// BitLen returns the number of bits written so far.
func (w *bitWriter) BitLen() int {
	return len(w.buf)*8 + int(w.nbits)
}

type bitReader struct {
	buf   []byte
	pos   int
	cur   byte
	nbits uint
}

func newBitReader(buf []byte) *bitReader {
	return &bitReader{buf: buf}
}

// ReadBit returns the next bit, or ErrShortStream past the end.
func (r *bitReader) ReadBit() (byte, error) {
	if r.nbits == 0 {
		if r.pos >= len(r.buf) {
			return 0, ErrShortStream
		}
		r.cur = r.buf[r.pos]
		r.pos++
		r.nbits = 8
	}
	r.nbits--
	return r.cur >> r.nbits & 1, nil
}

// ReadBits returns the next n bits, most significant first. n must be at
// most 64.
func (r *bitReader) ReadBits(n uint) (uint64, error) {
	var v uint64
	for n > 0 {
		if r.nbits == 0 {
			if r.pos >= len(r.buf) {
				return 0, ErrShortStream
			}
			r.cur = r.buf[r.pos]
			r.pos++
			r.nbits = 8
		}
		take := r.nbits
		if take > n {
			take = n
		}
		r.nbits -= take
		chunk := uint64(r.cur >> r.nbits & (1<<take - 1))
		v = v<<take | chunk
		n -= take
	}
	return v, nil
}
