package main

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/jbarnoud/tng/pkg/block"
	"github.com/jbarnoud/tng/pkg/trajectory"
)

func main() {
	fmt.Println("🧬 TNG Trajectory Container - Demo")

	path := "./data/demo.tng"
	if len(os.Args) > 1 {
		path = os.Args[1]
	} else if err := os.MkdirAll("./data", 0o755); err != nil {
		log.Fatalf("Failed to create data dir: %v", err)
	}

	cfg := trajectory.DefaultConfig()
	cfg.FramesPerFrameSet = 10
	cfg.MediumStride = 2
	cfg.LongStride = 4

	// Write a short water-box trajectory
	fmt.Println("\n📝 Writing a trajectory...")

	w, err := trajectory.Create(path, cfg)
	if err != nil {
		log.Fatalf("Failed to create trajectory: %v", err)
	}

	w.SetProgramName("tng-demo", false)
	w.SetForcefieldName("tip3p")
	fmt.Printf("  Created %s (ID: %s)\n", path, w.TrajectoryID())

	// Declare the system: 100 water molecules
	water, err := w.AddMolecule("Water", 100)
	if err != nil {
		log.Fatalf("Failed to add molecule: %v", err)
	}
	chain, _ := water.AddChain("W")
	res, _ := chain.AddResidue("HOH")
	o, _ := res.AddAtom("OW", "O")
	h1, _ := res.AddAtom("HW1", "H")
	h2, _ := res.AddAtom("HW2", "H")
	water.AddBond(o.ID, h1.ID)
	water.AddBond(o.ID, h2.ID)

	nParticles := w.NumParticles()
	fmt.Printf("  Declared 100 waters (%d particles)\n", nParticles)

	// Stream four frame sets of ten frames each
	for set := int64(0); set < 4; set++ {
		first := set * 10
		if _, err := w.NewFrameSet(first, 10); err != nil {
			log.Fatalf("Failed to open frame set: %v", err)
		}

		box := make([]float64, 10*9)
		pos := make([]float32, 10*nParticles*3)
		for f := int64(0); f < 10; f++ {
			side := 2.5 + float64(first+f)*0.001
			box[f*9+0], box[f*9+4], box[f*9+8] = side, side, side
			for i := int64(0); i < nParticles*3; i++ {
				pos[f*nParticles*3+i] = float32(first+f)*0.1 + float32(i%23)*0.03
			}
		}
		if err := w.SetBoxShape(box); err != nil {
			log.Fatalf("Failed to set box: %v", err)
		}
		if err := w.SetPositions(pos); err != nil {
			log.Fatalf("Failed to set positions: %v", err)
		}
		if err := w.WriteFrameSet(); err != nil {
			log.Fatalf("Failed to write frame set: %v", err)
		}
		fmt.Printf("  Wrote frames %d-%d\n", first, first+9)
	}

	if err := w.Close(); err != nil {
		log.Fatalf("Failed to close: %v", err)
	}
	st, _ := os.Stat(path)
	fmt.Printf("  ✅ Closed %s (%d bytes)\n", path, st.Size())

	// Read it back
	fmt.Println("\n📖 Reading it back...")

	r, err := trajectory.Open(path, trajectory.DefaultConfig())
	if err != nil {
		log.Fatalf("Failed to open trajectory: %v", err)
	}
	defer r.Close()

	fmt.Printf("  Program:    %s\n", r.ProgramName(true))
	fmt.Printf("  Forcefield: %s\n", r.ForcefieldName())
	fmt.Printf("  Frames:     %d in %d frame sets\n", r.NumFrames(), r.NumFrameSets())
	fmt.Printf("  Particles:  %d\n", r.NumParticles())

	// Sequential walk
	fmt.Println("\n🚶 Walking the frame sets...")
	for {
		err := r.ReadNextFrameSet()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Fatalf("Walk failed: %v", err)
		}
		fs := r.CurrentFrameSet()
		fmt.Printf("  Frame set at %d: frames %d-%d, %d blocks\n",
			fs.Pos, fs.FirstFrame, fs.FirstFrame+fs.NFrames-1, len(fs.TOC))
	}

	// Random access: jump straight to frame 27
	fmt.Println("\n🎯 Random access: frame 27...")
	if err := r.FrameSetOfFrame(27); err != nil {
		log.Fatalf("Seek failed: %v", err)
	}
	pos, err := r.Positions()
	if err != nil {
		log.Fatalf("Failed to load positions: %v", err)
	}
	idx := (27 - r.CurrentFrameSet().FirstFrame) * nParticles * 3
	fmt.Printf("  First coordinate of frame 27: %.3f\n", pos.Floats[idx])

	// Interval retrieval across frame set boundaries
	fmt.Println("\n📐 Box diagonal over frames 15-24...")
	box, err := r.DataInterval(block.KindBoxShape, 15, 24)
	if err != nil {
		log.Fatalf("Failed to read interval: %v", err)
	}
	for f := int64(0); f < box.NFrames; f++ {
		fmt.Printf("  frame %2d: %.3f nm\n", box.FirstFrame+f, box.Doubles[f*9])
	}

	fmt.Println("\n✨ Demo complete!")
}
