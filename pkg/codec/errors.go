package codec

import "errors"

// Common sentinel errors
var (
	ErrEmptyInput         = errors.New("empty input")
	ErrDictionaryTooLarge = errors.New("dictionary too large")
	ErrUnknownAlgorithm   = errors.New("unknown codec algorithm")
	ErrNotApplicable      = errors.New("algorithm not applicable to input")
	ErrShortStream        = errors.New("encoded stream truncated")
	ErrCorruptStream      = errors.New("encoded stream corrupt")
	ErrNotQuantizable     = errors.New("value not representable at this precision")
)
