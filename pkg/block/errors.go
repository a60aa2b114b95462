package block

import "errors"

var (
	// ErrBlockLength reports a declared block length below the header
	// minimum or above MaxBlockLen.
	ErrBlockLength = errors.New("block length out of range")

	// ErrShortRead reports fewer bytes on the stream than the block
	// header declared.
	ErrShortRead = errors.New("truncated block")

	// ErrNameLength reports a block name with no terminator within
	// MaxNameLen bytes, or an interior NUL on write.
	ErrNameLength = errors.New("invalid block name")

	// ErrDigestMismatch reports a payload that does not hash to the
	// recorded digest. The payload is still returned to the caller.
	ErrDigestMismatch = errors.New("payload digest mismatch")

	// ErrByteOrder reports a first block whose kind field is not the
	// general info id under either byte order.
	ErrByteOrder = errors.New("unrecognized byte order")
)
