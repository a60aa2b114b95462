package trajectory

import (
	"errors"
	"io"
	"testing"

	"github.com/jbarnoud/tng/pkg/frameset"
)

// writeBareSets appends n empty frame sets of ten frames each and
// returns their file positions.
func writeBareSets(t *testing.T, c *Container, n int) []int64 {
	t.Helper()
	positions := make([]int64, 0, n)
	for i := 0; i < n; i++ {
		if _, err := c.NewFrameSet(int64(i)*10, 10); err != nil {
			t.Fatalf("NewFrameSet(%d): %v", i*10, err)
		}
		if err := c.WriteFrameSet(); err != nil {
			t.Fatalf("WriteFrameSet(%d): %v", i, err)
		}
		positions = append(positions, c.CurrentFrameSet().Pos)
	}
	return positions
}

// With MediumStride 3 and LongStride 6, eight granules anchor the
// medium chain at 0, 3, 6 and the long chain at 0, 6.
func TestGranuleChains(t *testing.T) {
	path := testPath(t)
	w := mustCreate(t, path, quietConfig())
	pos := writeBareSets(t, w, 8)
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	r := mustOpen(t, path, quietConfig())
	sets := make([]*frameset.FrameSet, 0, 8)
	for {
		err := r.ReadNextFrameSet()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("ReadNextFrameSet: %v", err)
		}
		sets = append(sets, r.CurrentFrameSet())
	}
	if len(sets) != 8 {
		t.Fatalf("granules = %d, want 8", len(sets))
	}

	for i, fs := range sets {
		if fs.Pos != pos[i] {
			t.Errorf("granule %d at %d, want %d", i, fs.Pos, pos[i])
		}
		if fs.FirstFrame != int64(i)*10 || fs.NFrames != 10 {
			t.Errorf("granule %d frames = %d+%d", i, fs.FirstFrame, fs.NFrames)
		}
	}

	links := []struct {
		idx                    int
		next, prev             int64
		mediumNext, mediumPrev int64
		longNext, longPrev     int64
	}{
		{0, pos[1], frameset.NilPos, pos[3], frameset.NilPos, pos[6], frameset.NilPos},
		{1, pos[2], pos[0], frameset.NilPos, pos[0], frameset.NilPos, pos[0]},
		{3, pos[4], pos[2], pos[6], pos[0], frameset.NilPos, pos[0]},
		{5, pos[6], pos[4], frameset.NilPos, pos[3], frameset.NilPos, pos[0]},
		{6, pos[7], pos[5], frameset.NilPos, pos[3], frameset.NilPos, pos[0]},
		{7, frameset.NilPos, pos[6], frameset.NilPos, pos[6], frameset.NilPos, pos[6]},
	}
	for _, want := range links {
		fs := sets[want.idx]
		got := [6]int64{fs.Next, fs.Prev, fs.MediumNext, fs.MediumPrev, fs.LongNext, fs.LongPrev}
		exp := [6]int64{want.next, want.prev, want.mediumNext, want.mediumPrev, want.longNext, want.longPrev}
		if got != exp {
			t.Errorf("granule %d links = %v, want %v", want.idx, got, exp)
		}
	}
}

func TestForwardBackwardWalk(t *testing.T) {
	path := testPath(t)
	w := mustCreate(t, path, quietConfig())
	writeBareSets(t, w, 5)
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	r := mustOpen(t, path, quietConfig())

	// Stepping back needs a position first.
	if err := r.ReadPrevFrameSet(); !errors.Is(err, ErrNoFrameSet) {
		t.Errorf("ReadPrevFrameSet without a position: %v", err)
	}

	var first []int64
	for {
		err := r.ReadNextFrameSet()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("forward walk: %v", err)
		}
		first = append(first, r.CurrentFrameSet().FirstFrame)
	}
	want := []int64{0, 10, 20, 30, 40}
	if len(first) != len(want) {
		t.Fatalf("forward walk hit %d granules", len(first))
	}
	for i := range want {
		if first[i] != want[i] {
			t.Errorf("forward step %d = frame %d, want %d", i, first[i], want[i])
		}
	}

	// Walking past the end leaves the last granule active.
	if r.CurrentFrameSet().FirstFrame != 40 {
		t.Fatalf("active set at frame %d after EOF", r.CurrentFrameSet().FirstFrame)
	}

	for i := len(want) - 2; i >= 0; i-- {
		if err := r.ReadPrevFrameSet(); err != nil {
			t.Fatalf("backward walk: %v", err)
		}
		if got := r.CurrentFrameSet().FirstFrame; got != want[i] {
			t.Errorf("backward step to frame %d, want %d", got, want[i])
		}
	}
	if err := r.ReadPrevFrameSet(); err != io.EOF {
		t.Errorf("stepping before the first granule = %v, want io.EOF", err)
	}
}

func TestFrameSetOfFrame(t *testing.T) {
	path := testPath(t)
	w := mustCreate(t, path, quietConfig())
	writeBareSets(t, w, 8)
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	r := mustOpen(t, path, quietConfig())

	// Fresh reader: the descent starts at the first granule and rides
	// the long chain.
	if err := r.FrameSetOfFrame(65); err != nil {
		t.Fatalf("FrameSetOfFrame(65): %v", err)
	}
	if got := r.CurrentFrameSet().FirstFrame; got != 60 {
		t.Errorf("landed at frame %d, want 60", got)
	}

	// A frame behind the active set restarts from the head and takes
	// the medium chain.
	if err := r.FrameSetOfFrame(35); err != nil {
		t.Fatalf("FrameSetOfFrame(35): %v", err)
	}
	if got := r.CurrentFrameSet().FirstFrame; got != 30 {
		t.Errorf("landed at frame %d, want 30", got)
	}

	// The last granule is reached through the unit chain.
	if err := r.FrameSetOfFrame(79); err != nil {
		t.Fatalf("FrameSetOfFrame(79): %v", err)
	}
	if got := r.CurrentFrameSet().FirstFrame; got != 70 {
		t.Errorf("landed at frame %d, want 70", got)
	}

	// Frame bounds outside the stored data.
	if err := r.FrameSetOfFrame(80); !errors.Is(err, ErrFrameRange) {
		t.Errorf("FrameSetOfFrame(80): %v", err)
	}
	if err := r.FrameSetOfFrame(-1); !errors.Is(err, ErrFrameRange) {
		t.Errorf("FrameSetOfFrame(-1): %v", err)
	}
}

func TestFrameSetOfFrameGap(t *testing.T) {
	path := testPath(t)
	w := mustCreate(t, path, quietConfig())
	if _, err := w.NewFrameSet(0, 10); err != nil {
		t.Fatal(err)
	}
	if err := w.WriteFrameSet(); err != nil {
		t.Fatal(err)
	}
	// Frames 10-19 are skipped.
	if _, err := w.NewFrameSet(20, 10); err != nil {
		t.Fatal(err)
	}
	if err := w.WriteFrameSet(); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	r := mustOpen(t, path, quietConfig())
	if err := r.FrameSetOfFrame(15); !errors.Is(err, ErrFrameRange) {
		t.Errorf("frame in the gap: %v", err)
	}
	if err := r.FrameSetOfFrame(25); err != nil {
		t.Errorf("frame past the gap: %v", err)
	}
}

func TestReadFrameSetAt(t *testing.T) {
	path := testPath(t)
	w := mustCreate(t, path, quietConfig())
	pos := writeBareSets(t, w, 3)
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	r := mustOpen(t, path, quietConfig())
	if err := r.ReadFrameSetAt(pos[1]); err != nil {
		t.Fatalf("ReadFrameSetAt: %v", err)
	}
	if got := r.CurrentFrameSet().FirstFrame; got != 10 {
		t.Errorf("granule at frame %d, want 10", got)
	}
	if err := r.ReadFrameSetAt(0); !errors.Is(err, ErrFrameRange) {
		t.Errorf("position inside the headers: %v", err)
	}
}

func TestWriteFrameSetGates(t *testing.T) {
	path := testPath(t)
	w := mustCreate(t, path, quietConfig())

	if err := w.WriteFrameSet(); !errors.Is(err, ErrNoFrameSet) {
		t.Errorf("write with no active set: %v", err)
	}
	if _, err := w.NewFrameSet(0, 10); err != nil {
		t.Fatal(err)
	}
	if err := w.WriteFrameSet(); err != nil {
		t.Fatal(err)
	}
	if err := w.WriteFrameSet(); !errors.Is(err, ErrNoFrameSet) {
		t.Errorf("double write: %v", err)
	}
}

// Close flushes a frame set that was filled but never written.
func TestCloseFlushesPendingSet(t *testing.T) {
	path := testPath(t)
	w := mustCreate(t, path, quietConfig())
	if err := w.SetParticleCount(3); err != nil {
		t.Fatal(err)
	}
	fs, err := w.NewFrameSet(0, 10)
	if err != nil {
		t.Fatal(err)
	}
	box := make([]float64, fs.NFrames*9)
	for i := range box {
		box[i] = 1.5
	}
	if err := w.SetBoxShape(box); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	r := mustOpen(t, path, quietConfig())
	if r.NumFrameSets() != 1 || r.NumFrames() != 10 {
		t.Fatalf("counters = %d sets, %d frames", r.NumFrameSets(), r.NumFrames())
	}
	if err := r.ReadNextFrameSet(); err != nil {
		t.Fatal(err)
	}
	got, err := r.BoxShape()
	if err != nil {
		t.Fatalf("BoxShape: %v", err)
	}
	if len(got.Doubles) != 90 || got.Doubles[0] != 1.5 {
		t.Errorf("box = %d values, first %v", len(got.Doubles), got.Doubles[0])
	}
}
