package main

import (
	"bytes"
	"encoding/binary"
	"flag"
	"fmt"
	"math"
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"

	"github.com/jbarnoud/tng/pkg/codec"
)

func main() {
	particles := flag.Int("particles", 10000, "Number of particles")
	frames := flag.Int("frames", 10, "Number of frames")
	precision := flag.Float64("precision", 0.001, "Quantizer step in nm")
	algorithms := flag.String("algorithms", "all",
		"Comma-separated list: fixed-width,dictionary,triple-delta,frame-delta,best")
	flag.Parse()

	algs, err := parseAlgorithms(*algorithms)
	if err != nil {
		fmt.Fprintf(os.Stderr, "tng-bench-codec: %v\n", err)
		os.Exit(2)
	}

	nValues := *particles * 3 * *frames
	rawBytes := nValues * 4

	fmt.Printf("🧬 Coordinate Codec Benchmark\n")
	fmt.Printf("=============================\n\n")
	fmt.Printf("Configuration:\n")
	fmt.Printf("  Particles:   %d\n", *particles)
	fmt.Printf("  Frames:      %d\n", *frames)
	fmt.Printf("  Precision:   %g nm\n", *precision)
	fmt.Printf("  Values:      %d (%.2f MB raw float32)\n\n", nValues, mb(rawBytes))

	// Generate a jittered lattice drifting frame over frame, the shape
	// real solvent coordinates take.
	fmt.Printf("🔨 Generating jittered lattice trajectory...\n")
	coords := jitteredLattice(*particles, *frames)

	q, err := codec.NewQuantizer(*precision)
	if err != nil {
		fmt.Fprintf(os.Stderr, "tng-bench-codec: %v\n", err)
		os.Exit(2)
	}
	ints, err := q.QuantizeFloat32(coords)
	if err != nil {
		fmt.Fprintf(os.Stderr, "tng-bench-codec: %v\n", err)
		os.Exit(2)
	}
	fmt.Printf("   Quantized %d coordinates onto the %g grid\n\n", len(ints), *precision)

	frameStride := *particles * 3

	fmt.Printf("📊 Results\n")
	fmt.Printf("  %-14s %12s %8s %12s %12s  %s\n",
		"ALGORITHM", "SIZE", "RATIO", "ENCODE", "DECODE", "CHECK")

	var bestRatio float64
	var bestName string
	printRow := func(res *benchResult) {
		fmt.Printf("  %-14s %9.2f MB %7.2fx %9.0f MB/s %9.0f MB/s  %s\n",
			res.label, mb(res.encodedBytes), res.ratio,
			mb(rawBytes)/res.encodeTime.Seconds(),
			mb(rawBytes)/res.decodeTime.Seconds(),
			res.check)
		if res.ratio > bestRatio {
			bestRatio = res.ratio
			bestName = res.label
		}
	}
	for _, alg := range algs {
		res, err := benchAlgorithm(ints, alg, frameStride, rawBytes)
		if err != nil {
			fmt.Printf("  %-14s %s\n", alg, err)
			continue
		}
		printRow(res)
	}

	// The byte codecs compress the unquantized float32 bytes, the form
	// snappy and zstd data blocks store them in.
	for _, res := range benchByteCodecs(float32Bytes(coords), rawBytes) {
		printRow(res)
	}

	fmt.Printf("\n📊 Summary\n")
	fmt.Printf("=============================\n")
	switch {
	case bestRatio >= 5.0:
		fmt.Printf("✅ Excellent! %s reaches %.2fx over raw float32\n", bestName, bestRatio)
	case bestRatio >= 2.0:
		fmt.Printf("⚡ Good! %s reaches %.2fx over raw float32\n", bestName, bestRatio)
	default:
		fmt.Printf("💡 Modest compression (%.2fx) - try a coarser precision\n", bestRatio)
	}
}

type benchResult struct {
	label        string
	encodedBytes int
	ratio        float64
	encodeTime   time.Duration
	decodeTime   time.Duration
	check        string
}

func benchAlgorithm(ints []int64, alg codec.Algorithm, frameStride, rawBytes int) (*benchResult, error) {
	start := time.Now()
	e, err := codec.Encode(ints, alg, frameStride)
	if err != nil {
		return nil, err
	}
	encodeTime := time.Since(start)

	start = time.Now()
	decoded, err := e.Decode()
	if err != nil {
		return nil, err
	}
	decodeTime := time.Since(start)

	check := "✓ lossless"
	if len(decoded) != len(ints) {
		check = "✗ length mismatch"
	} else {
		for i := range ints {
			if decoded[i] != ints[i] {
				check = fmt.Sprintf("✗ value %d differs", i)
				break
			}
		}
	}

	label := alg.String()
	if alg == codec.AlgoBest {
		label = fmt.Sprintf("best→%s", e.Alg)
	}
	return &benchResult{
		label:        label,
		encodedBytes: e.Len(),
		ratio:        float64(rawBytes) / float64(e.Len()),
		encodeTime:   encodeTime,
		decodeTime:   decodeTime,
		check:        check,
	}, nil
}

// benchByteCodecs runs snappy and zstd over the raw value bytes the way
// the data block writer does.
func benchByteCodecs(raw []byte, rawBytes int) []*benchResult {
	zw, err := zstd.NewWriter(nil, zstd.WithEncoderConcurrency(1))
	if err != nil {
		fmt.Fprintf(os.Stderr, "tng-bench-codec: %v\n", err)
		os.Exit(2)
	}
	zr, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	if err != nil {
		fmt.Fprintf(os.Stderr, "tng-bench-codec: %v\n", err)
		os.Exit(2)
	}

	codecs := []struct {
		name   string
		encode func([]byte) []byte
		decode func([]byte) ([]byte, error)
	}{
		{"snappy", func(b []byte) []byte { return snappy.Encode(nil, b) },
			func(b []byte) ([]byte, error) { return snappy.Decode(nil, b) }},
		{"zstd", func(b []byte) []byte { return zw.EncodeAll(b, nil) },
			func(b []byte) ([]byte, error) { return zr.DecodeAll(b, nil) }},
	}

	var out []*benchResult
	for _, bc := range codecs {
		start := time.Now()
		enc := bc.encode(raw)
		encodeTime := time.Since(start)

		start = time.Now()
		dec, err := bc.decode(enc)
		decodeTime := time.Since(start)

		check := "✓ lossless"
		switch {
		case err != nil:
			check = fmt.Sprintf("✗ %v", err)
		case !bytes.Equal(dec, raw):
			check = "✗ bytes differ"
		}
		out = append(out, &benchResult{
			label:        bc.name,
			encodedBytes: len(enc),
			ratio:        float64(rawBytes) / float64(len(enc)),
			encodeTime:   encodeTime,
			decodeTime:   decodeTime,
			check:        check,
		})
	}
	return out
}

func float32Bytes(vals []float32) []byte {
	out := make([]byte, len(vals)*4)
	for i, v := range vals {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
	}
	return out
}

// jitteredLattice places particles on a cubic lattice, then random-walks
// them frame over frame with thermal-scale displacements.
func jitteredLattice(particles, frames int) []float32 {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	side := int(math.Ceil(math.Cbrt(float64(particles))))
	const spacing = 0.31 // nm, waterlike density

	cur := make([]float32, particles*3)
	for p := 0; p < particles; p++ {
		cur[p*3+0] = float32(p%side) * spacing
		cur[p*3+1] = float32((p/side)%side) * spacing
		cur[p*3+2] = float32(p/(side*side)) * spacing
	}
	for i := range cur {
		cur[i] += float32(rng.NormFloat64()) * 0.05
	}

	out := make([]float32, 0, frames*particles*3)
	for f := 0; f < frames; f++ {
		out = append(out, cur...)
		for i := range cur {
			cur[i] += float32(rng.NormFloat64()) * 0.02
		}
	}
	return out
}

func parseAlgorithms(s string) ([]codec.Algorithm, error) {
	if s == "all" {
		return []codec.Algorithm{
			codec.AlgoFixedWidth, codec.AlgoDictionary,
			codec.AlgoTripleDelta, codec.AlgoFrameDelta, codec.AlgoBest,
		}, nil
	}
	var algs []codec.Algorithm
	for _, name := range strings.Split(s, ",") {
		switch strings.TrimSpace(name) {
		case "fixed-width":
			algs = append(algs, codec.AlgoFixedWidth)
		case "dictionary":
			algs = append(algs, codec.AlgoDictionary)
		case "triple-delta":
			algs = append(algs, codec.AlgoTripleDelta)
		case "frame-delta":
			algs = append(algs, codec.AlgoFrameDelta)
		case "best":
			algs = append(algs, codec.AlgoBest)
		default:
			return nil, fmt.Errorf("unknown algorithm %q", name)
		}
	}
	return algs, nil
}

func mb(n int) float64 {
	return float64(n) / (1024 * 1024)
}
