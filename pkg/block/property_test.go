package block

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestBlockInvariants verifies properties that must hold for any block:
// serialization round-trips bit-exactly under both byte orders, and the
// declared length always matches the serialized size.
func TestBlockInvariants(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping property-based test in short mode")
	}

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	orders := []binary.ByteOrder{binary.BigEndian, binary.LittleEndian}

	// Property 1: any kind, name and payload round-trip bit-exactly
	properties.Property("blocks round trip", prop.ForAll(
		func(kind int64, name string, payload []byte) bool {
			if len(name) > MaxNameLen {
				name = name[:MaxNameLen]
			}
			for _, order := range orders {
				in := &Block{
					Header: Header{
						Kind:       Kind(kind),
						Dependency: DefaultDependency(Kind(kind)),
						Name:       name,
					},
					Payload: payload,
				}
				var buf bytes.Buffer
				if _, err := Write(&buf, in, order, HashUse); err != nil {
					return false
				}
				out, err := Read(&buf, order, HashUse)
				if err != nil {
					return false
				}
				if out.Kind != in.Kind || out.Name != name || out.Dependency != in.Dependency {
					return false
				}
				if !bytes.Equal(out.Payload, payload) {
					return false
				}
			}
			return true
		},
		gen.Int64(),
		gen.AlphaString(),
		gen.SliceOf(gen.UInt8()),
	))

	// Property 2: the declared length equals the bytes on the wire
	properties.Property("declared length is byte accurate", prop.ForAll(
		func(payload []byte) bool {
			in := New(KindPositions, payload)
			wire, err := Marshal(in, binary.BigEndian, HashUse)
			if err != nil {
				return false
			}
			return in.Length == int64(len(wire))
		},
		gen.SliceOf(gen.UInt8()),
	))

	// Property 3: flipping any payload byte is caught by the digest
	properties.Property("digest catches payload corruption", prop.ForAll(
		func(payload []byte, at uint16) bool {
			if len(payload) == 0 {
				return true
			}
			wire, err := Marshal(New(KindForces, payload), binary.BigEndian, HashUse)
			if err != nil {
				return false
			}
			i := len(wire) - 1 - int(at)%len(payload)
			wire[i] ^= 0xFF
			_, err = Read(bytes.NewReader(wire), binary.BigEndian, HashUse)
			return err != nil
		},
		gen.SliceOf(gen.UInt8()),
		gen.UInt16(),
	))

	properties.TestingRun(t)
}
