// Package block reads and writes the self-describing on-disk blocks every
// trajectory file is made of. A block is a tagged, length-prefixed,
// optionally MD5-digested byte region; all multi-byte integers use the
// file-wide byte order established by the first block.
package block

import (
	"bytes"
	"crypto/md5"
	"encoding/binary"
	"io"
	"strings"

	"github.com/jbarnoud/tng/pkg/logging"
	"github.com/jbarnoud/tng/pkg/status"
)

// Marshal serializes the block, filling in b.Length and, under HashUse,
// b.Digest. Under HashSkip the digest field is zeroed.
func Marshal(b *Block, order binary.ByteOrder, mode HashMode) ([]byte, error) {
	const op = "block.marshal"
	if len(b.Name) > MaxNameLen {
		return nil, status.Failuref(op, ErrNameLength, "name is %d bytes", len(b.Name))
	}
	if strings.IndexByte(b.Name, 0) >= 0 {
		return nil, status.Failuref(op, ErrNameLength, "name contains NUL")
	}
	b.Length = b.Size() + int64(len(b.Payload))
	if b.Length > MaxBlockLen {
		return nil, status.Failuref(op, ErrBlockLength, "%d bytes exceeds the block limit", b.Length)
	}
	if mode == HashUse {
		b.Digest = md5.Sum(b.Payload)
	} else {
		b.Digest = [DigestLen]byte{}
	}

	buf := make([]byte, 0, b.Length)
	var u64 [8]byte

	// Length
	order.PutUint64(u64[:], uint64(b.Length))
	buf = append(buf, u64[:]...)

	// Kind
	order.PutUint64(u64[:], uint64(b.Kind))
	buf = append(buf, u64[:]...)

	// Dependency
	buf = append(buf, b.Dependency)

	// Name, NUL terminated
	buf = append(buf, b.Name...)
	buf = append(buf, 0)

	// Digest
	buf = append(buf, b.Digest[:]...)

	// Payload
	buf = append(buf, b.Payload...)

	return buf, nil
}

// Write serializes the block to w and returns the bytes written. I/O
// failure is Critical: the stream position is no longer trustworthy.
func Write(w io.Writer, b *Block, order binary.ByteOrder, mode HashMode) (int64, error) {
	buf, err := Marshal(b, order, mode)
	if err != nil {
		return 0, err
	}
	n, err := w.Write(buf)
	if err != nil {
		return int64(n), status.Wrap(status.Critical, "block.write", nil, err)
	}
	return int64(n), nil
}

// Read deserializes one block from r. io.EOF before the first byte means
// a clean end of data. A declared length that the stream cannot honor is
// Critical; a digest mismatch under HashUse is Recoverable and the block
// is still returned so the caller can decide.
func Read(r io.Reader, order binary.ByteOrder, mode HashMode) (*Block, error) {
	const op = "block.read"

	var fixed [fixedHeadLen]byte
	if _, err := io.ReadFull(r, fixed[:]); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, status.Criticalf(op, ErrShortRead, "block header: %v", err)
	}
	length := int64(order.Uint64(fixed[0:8]))
	kind := Kind(order.Uint64(fixed[8:16]))
	dep := fixed[16]

	if length < minBlockLen || length > MaxBlockLen {
		return nil, status.Criticalf(op, ErrBlockLength, "declared length %d", length)
	}
	rest := make([]byte, length-fixedHeadLen)
	if _, err := io.ReadFull(r, rest); err != nil {
		return nil, status.Criticalf(op, ErrShortRead, "declared %d bytes: %v", length, err)
	}

	// Name
	limit := len(rest)
	if limit > MaxNameLen+1 {
		limit = MaxNameLen + 1
	}
	nul := bytes.IndexByte(rest[:limit], 0)
	if nul < 0 {
		return nil, status.Criticalf(op, ErrNameLength, "no terminator within %d bytes", MaxNameLen)
	}
	name := string(rest[:nul])
	rest = rest[nul+1:]

	// Digest
	if len(rest) < DigestLen {
		return nil, status.Criticalf(op, ErrBlockLength, "declared length %d leaves no room for a digest", length)
	}
	var digest [DigestLen]byte
	copy(digest[:], rest[:DigestLen])

	b := &Block{
		Header: Header{
			Length:     length,
			Kind:       kind,
			Dependency: dep,
			Name:       name,
			Digest:     digest,
		},
		Payload: rest[DigestLen:],
	}

	if mode == HashUse {
		if !b.DigestRecorded() {
			logging.Warn("block digest not recorded, skipping verification",
				logging.BlockKind(int64(kind)), logging.BlockName(name))
		} else if md5.Sum(b.Payload) != digest {
			return b, status.Failuref(op, ErrDigestMismatch, "block %s (%d payload bytes)", kind, len(b.Payload))
		}
	}
	return b, nil
}

// ReadHeader deserializes one header and discards the payload, leaving r
// positioned at the next block. Used for lazy directory scans.
func ReadHeader(r io.Reader, order binary.ByteOrder) (*Header, error) {
	const op = "block.read_header"

	var fixed [fixedHeadLen]byte
	if _, err := io.ReadFull(r, fixed[:]); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, status.Criticalf(op, ErrShortRead, "block header: %v", err)
	}
	h := &Header{
		Length:     int64(order.Uint64(fixed[0:8])),
		Kind:       Kind(order.Uint64(fixed[8:16])),
		Dependency: fixed[16],
	}
	if h.Length < minBlockLen || h.Length > MaxBlockLen {
		return nil, status.Criticalf(op, ErrBlockLength, "declared length %d", h.Length)
	}

	name, err := readName(r)
	if err != nil {
		return nil, status.Wrap(status.Critical, op, nil, err)
	}
	h.Name = name
	if _, err := io.ReadFull(r, h.Digest[:]); err != nil {
		return nil, status.Criticalf(op, ErrShortRead, "digest: %v", err)
	}

	payload := h.PayloadLen()
	if payload < 0 {
		return nil, status.Criticalf(op, ErrBlockLength, "declared length %d below header size", h.Length)
	}
	if _, err := io.CopyN(io.Discard, r, payload); err != nil {
		return nil, status.Criticalf(op, ErrShortRead, "skipping %d payload bytes: %v", payload, err)
	}
	return h, nil
}

// readName consumes bytes up to and including the NUL terminator.
func readName(r io.Reader) (string, error) {
	var name []byte
	var one [1]byte
	for i := 0; i <= MaxNameLen; i++ {
		if _, err := io.ReadFull(r, one[:]); err != nil {
			return "", ErrShortRead
		}
		if one[0] == 0 {
			return string(name), nil
		}
		name = append(name, one[0])
	}
	return "", ErrNameLength
}

// ReadAt reads the block starting at an absolute file position.
func ReadAt(rs io.ReadSeeker, pos int64, order binary.ByteOrder, mode HashMode) (*Block, error) {
	if _, err := rs.Seek(pos, io.SeekStart); err != nil {
		return nil, status.Wrap(status.Critical, "block.read_at", nil, err)
	}
	return Read(rs, order, mode)
}

// WriteAt rewrites a block at an absolute file position and returns the
// bytes written. The digest is recomputed under HashUse, so patching a
// block keeps its recorded digest true.
func WriteAt(ws io.WriteSeeker, pos int64, b *Block, order binary.ByteOrder, mode HashMode) (int64, error) {
	if _, err := ws.Seek(pos, io.SeekStart); err != nil {
		return 0, status.Wrap(status.Critical, "block.write_at", nil, err)
	}
	return Write(ws, b, order, mode)
}

// DetectOrder identifies the file's byte order from its first 16 bytes.
// The first block of every file is general info, so its kind field read
// under the wrong order shows up byte-swapped.
func DetectOrder(head []byte) (binary.ByteOrder, error) {
	const op = "block.detect_order"
	if len(head) < 16 {
		return nil, status.Criticalf(op, ErrShortRead, "need 16 bytes, got %d", len(head))
	}
	if Kind(binary.BigEndian.Uint64(head[8:16])) == KindGeneralInfo {
		return binary.BigEndian, nil
	}
	if Kind(binary.LittleEndian.Uint64(head[8:16])) == KindGeneralInfo {
		return binary.LittleEndian, nil
	}
	return nil, status.Criticalf(op, ErrByteOrder,
		"first block kind %#x is not general info in either order", binary.BigEndian.Uint64(head[8:16]))
}
