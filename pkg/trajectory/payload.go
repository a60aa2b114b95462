package trajectory

import (
	"encoding/binary"
	"fmt"

	"github.com/jbarnoud/tng/pkg/block"
)

func appendI64(buf []byte, order binary.ByteOrder, v int64) []byte {
	var u [8]byte
	order.PutUint64(u[:], uint64(v))
	return append(buf, u[:]...)
}

// appendStr appends a NUL-terminated string. Callers validate length and
// interior NULs before serialization.
func appendStr(buf []byte, s string) []byte {
	buf = append(buf, s...)
	return append(buf, 0)
}

// payloadReader walks a structural block payload field by field. The
// first malformed field sticks as the reader's error and every later
// accessor returns a zero value, so parse functions check err once.
type payloadReader struct {
	data  []byte
	off   int
	order binary.ByteOrder
	err   error
}

func (p *payloadReader) i64() int64 {
	if p.err != nil {
		return 0
	}
	if p.off+8 > len(p.data) {
		p.err = fmt.Errorf("%w: truncated at byte %d", ErrCorruptHeader, p.off)
		return 0
	}
	v := int64(p.order.Uint64(p.data[p.off : p.off+8]))
	p.off += 8
	return v
}

func (p *payloadReader) str() string {
	if p.err != nil {
		return ""
	}
	limit := p.off + block.MaxNameLen + 1
	if limit > len(p.data) {
		limit = len(p.data)
	}
	for i := p.off; i < limit; i++ {
		if p.data[i] == 0 {
			s := string(p.data[p.off:i])
			p.off = i + 1
			return s
		}
	}
	p.err = fmt.Errorf("%w: unterminated string at byte %d", ErrCorruptHeader, p.off)
	return ""
}

// count reads a non-negative element count and bounds it, so a corrupt
// field cannot drive an absurd allocation.
func (p *payloadReader) count(what string, max int64) int64 {
	n := p.i64()
	if p.err != nil {
		return 0
	}
	if n < 0 || n > max {
		p.err = fmt.Errorf("%w: %d %s", ErrCorruptHeader, n, what)
		return 0
	}
	return n
}

func (p *payloadReader) done() error {
	if p.err != nil {
		return p.err
	}
	if p.off != len(p.data) {
		return fmt.Errorf("%w: %d trailing bytes", ErrCorruptHeader, len(p.data)-p.off)
	}
	return nil
}
