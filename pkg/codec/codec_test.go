package codec

import (
	"errors"
	"testing"

	"github.com/jbarnoud/tng/pkg/status"
)

func assertRoundTrip(t *testing.T, values []int64, alg Algorithm, frameStride int) *Encoded {
	t.Helper()
	e, err := Encode(values, alg, frameStride)
	if err != nil {
		t.Fatalf("Encode(%v): %v", alg, err)
	}
	got, err := e.Decode()
	if err != nil {
		t.Fatalf("Decode(%v): %v", alg, err)
	}
	if len(got) != len(values) {
		t.Fatalf("decoded %d values, want %d", len(got), len(values))
	}
	for i := range values {
		if got[i] != values[i] {
			t.Fatalf("value %d = %d, want %d (algorithm %v)", i, got[i], values[i], alg)
		}
	}
	return e
}

func TestEncodeFixedWidthRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		values []int64
	}{
		{"positive range", []int64{5, 9, 7, 6, 9, 5}},
		{"negative range", []int64{-100, -90, -95, -91}},
		{"mixed signs", []int64{-3, 0, 3, -2, 1}},
		{"single value", []int64{12345}},
		{"all equal", []int64{7, 7, 7, 7, 7, 7, 7}},
		{"extreme span", []int64{-(1 << 62), 1 << 62}},
		{"29 bit coordinates", []int64{-536870911, 536870911, 0, 42}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertRoundTrip(t, tt.values, AlgoFixedWidth, 0)
		})
	}
}

func TestEncodeFixedWidthAllEqualIsTiny(t *testing.T) {
	values := make([]int64, 10000)
	for i := range values {
		values[i] = 31337
	}
	e := assertRoundTrip(t, values, AlgoFixedWidth, 0)
	// Width zero: header and metadata only, no payload bits
	if e.Len() > 16 {
		t.Errorf("constant sequence encoded to %d bytes", e.Len())
	}
}

func TestEncodeDictionaryRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		values []int64
	}{
		{"skewed", []int64{1, 1, 1, 1, 1, 2, 2, 3, 1, 1, 2, 1}},
		{"single symbol", []int64{-4, -4, -4, -4}},
		{"two symbols", []int64{8, 9, 8, 9, 9, 9}},
		{"wide values", []int64{1 << 40, -(1 << 40), 1 << 40, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertRoundTrip(t, tt.values, AlgoDictionary, 0)
		})
	}
}

func TestEncodeTripleDeltaRoundTrip(t *testing.T) {
	// Coordinates of neighboring particles drift slowly per component
	values := []int64{
		1000, 2000, 3000,
		1003, 1998, 3001,
		1007, 1995, 3004,
		1009, 1991, 3007,
	}
	assertRoundTrip(t, values, AlgoTripleDelta, 0)
}

func TestEncodeTripleDeltaApplicability(t *testing.T) {
	if _, err := Encode([]int64{1, 2, 3, 4}, AlgoTripleDelta, 0); !errors.Is(err, ErrNotApplicable) {
		t.Errorf("non multiple of 3: got %v", err)
	}
	if _, err := Encode([]int64{1, 2, 3}, AlgoTripleDelta, 0); !errors.Is(err, ErrNotApplicable) {
		t.Errorf("single triple: got %v", err)
	}
}

func TestEncodeFrameDeltaRoundTrip(t *testing.T) {
	// Two values per frame over five frames, smooth in time
	values := []int64{
		100, -500,
		101, -502,
		103, -505,
		104, -505,
		106, -508,
	}
	assertRoundTrip(t, values, AlgoFrameDelta, 2)
}

func TestEncodeFrameDeltaApplicability(t *testing.T) {
	values := []int64{1, 2, 3, 4}
	if _, err := Encode(values, AlgoFrameDelta, 0); !errors.Is(err, ErrNotApplicable) {
		t.Errorf("stride 0: got %v", err)
	}
	if _, err := Encode(values, AlgoFrameDelta, 4); !errors.Is(err, ErrNotApplicable) {
		t.Errorf("stride = len: got %v", err)
	}
}

func TestEncodeEmptyInput(t *testing.T) {
	for _, alg := range []Algorithm{AlgoFixedWidth, AlgoDictionary, AlgoTripleDelta, AlgoFrameDelta, AlgoBest} {
		if _, err := Encode(nil, alg, 3); !errors.Is(err, ErrEmptyInput) {
			t.Errorf("%v: expected ErrEmptyInput, got %v", alg, err)
		}
	}
}

func TestEncodeUnknownAlgorithm(t *testing.T) {
	if _, err := Encode([]int64{1}, Algorithm(77), 0); !errors.Is(err, ErrUnknownAlgorithm) {
		t.Errorf("expected ErrUnknownAlgorithm, got %v", err)
	}
}

func TestEncodeBestNeverLarger(t *testing.T) {
	inputs := [][]int64{
		{9, 9, 9, 9, 9, 9, 9, 9, 9},
		{1000, 2000, 3000, 1001, 2001, 3001, 1002, 2002, 3002},
		{-5, 80, -5, 80, -5, 80},
		{1 << 40, 3, -9, 1 << 39, 12, 0},
	}
	for _, values := range inputs {
		best, err := Encode(values, AlgoBest, 3)
		if err != nil {
			t.Fatalf("Encode(best): %v", err)
		}
		for _, alg := range []Algorithm{AlgoFixedWidth, AlgoDictionary, AlgoTripleDelta, AlgoFrameDelta} {
			e, err := Encode(values, alg, 3)
			if err != nil {
				continue
			}
			if best.Len() > e.Len() {
				t.Errorf("best (%v, %d bytes) larger than %v (%d bytes) for %v",
					best.Alg, best.Len(), alg, e.Len(), values)
			}
		}
		got, err := best.Decode()
		if err != nil {
			t.Fatalf("Decode(best): %v", err)
		}
		for i := range values {
			if got[i] != values[i] {
				t.Fatalf("best round trip mismatch at %d", i)
			}
		}
	}
}

func TestEncodeBestTieTakesLowestID(t *testing.T) {
	// A single repeated value: fixed width packs to width 0 and nothing
	// can beat it, so the winner must be the lowest id even if another
	// algorithm matches its size.
	values := []int64{4, 4, 4, 4, 4, 4}
	best, err := Encode(values, AlgoBest, 2)
	if err != nil {
		t.Fatalf("Encode(best): %v", err)
	}
	if best.Alg != AlgoFixedWidth {
		t.Errorf("winner = %v, want fixed-width", best.Alg)
	}
}

func TestDecodeRejectsMalformedStreams(t *testing.T) {
	valid, err := Encode([]int64{5, 6, 7, 8}, AlgoFixedWidth, 0)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	wire := valid.Bytes()

	tests := []struct {
		name string
		data []byte
		kind error
	}{
		{"empty", nil, ErrShortStream},
		{"one byte", []byte{0}, ErrShortStream},
		{"unknown algorithm", append([]byte{99}, wire[1:]...), ErrUnknownAlgorithm},
		{"truncated payload", wire[:len(wire)-1], ErrShortStream},
		{"trailing bytes", append(append([]byte{}, wire...), 0xAA), ErrCorruptStream},
		{"zero count", []byte{byte(AlgoFixedWidth), 0x00, 0x00}, ErrCorruptStream},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.data)
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.Is(err, tt.kind) {
				t.Errorf("error = %v, want kind %v", err, tt.kind)
			}
			if !status.IsRecoverable(err) {
				t.Errorf("decode errors must be recoverable, got %v", err)
			}
		})
	}
}

func TestDecodeDictionaryTruncatedBitstream(t *testing.T) {
	values := []int64{1, 2, 3, 1, 2, 3, 1, 1, 1, 2, 2, 3}
	e, err := Encode(values, AlgoDictionary, 0)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	wire := e.Bytes()
	if _, err := Decode(wire[:len(wire)-1]); !errors.Is(err, ErrShortStream) {
		t.Errorf("expected ErrShortStream, got %v", err)
	}
}

func TestUnmarshalHeader(t *testing.T) {
	e, err := Encode([]int64{10, 20, 30}, AlgoDictionary, 0)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	u, err := Unmarshal(e.Bytes())
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if u.Alg != AlgoDictionary || u.Count != 3 {
		t.Errorf("header = %v/%d, want dictionary/3", u.Alg, u.Count)
	}
}

func TestAlgorithmString(t *testing.T) {
	tests := []struct {
		alg  Algorithm
		want string
	}{
		{AlgoFixedWidth, "fixed-width"},
		{AlgoDictionary, "dictionary"},
		{AlgoTripleDelta, "triple-delta"},
		{AlgoFrameDelta, "frame-delta"},
		{AlgoBest, "best"},
		{Algorithm(9), "algorithm(9)"},
	}
	for _, tt := range tests {
		if got := tt.alg.String(); got != tt.want {
			t.Errorf("%d.String() = %q, want %q", tt.alg, got, tt.want)
		}
	}
}

func BenchmarkEncodeBest(b *testing.B) {
	values := make([]int64, 3000)
	for i := range values {
		values[i] = int64(i%100) * 7
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Encode(values, AlgoBest, 3); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkDecodeDictionary(b *testing.B) {
	values := make([]int64, 3000)
	for i := range values {
		values[i] = int64(i % 32)
	}
	e, err := Encode(values, AlgoDictionary, 0)
	if err != nil {
		b.Fatal(err)
	}
	wire := e.Bytes()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Decode(wire); err != nil {
			b.Fatal(err)
		}
	}
}
