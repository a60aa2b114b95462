package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jbarnoud/tng/pkg/block"
	"github.com/jbarnoud/tng/pkg/trajectory"
)

type blockReport struct {
	Offset         int64  `json:"offset"`
	Kind           int64  `json:"kind"`
	Label          string `json:"label"`
	Name           string `json:"name"`
	Length         int64  `json:"length"`
	ParticleData   bool   `json:"particle_data"`
	DigestRecorded bool   `json:"digest_recorded"`
	DigestOK       *bool  `json:"digest_ok,omitempty"`
}

type frameSetReport struct {
	Pos        int64    `json:"pos"`
	FirstFrame int64    `json:"first_frame"`
	NFrames    int64    `json:"n_frames"`
	Kinds      []string `json:"kinds"`
}

type report struct {
	Path          string           `json:"path"`
	ByteOrder     string           `json:"byte_order"`
	FormatVersion int64            `json:"format_version"`
	Created       string           `json:"created"`
	Program       string           `json:"program"`
	User          string           `json:"user"`
	Computer      string           `json:"computer"`
	Forcefield    string           `json:"forcefield,omitempty"`
	TrajectoryID  string           `json:"trajectory_id"`
	NumFrames     int64            `json:"num_frames"`
	NumFrameSets  int64            `json:"num_frame_sets"`
	NumParticles  int64            `json:"num_particles"`
	NumMolecules  int64            `json:"num_molecules"`
	MediumStride  int64            `json:"medium_stride"`
	LongStride    int64            `json:"long_stride"`
	FrameSets     []frameSetReport `json:"frame_sets,omitempty"`
	Blocks        []blockReport    `json:"blocks,omitempty"`
	BadDigests    int              `json:"bad_digests"`
}

func main() {
	file := flag.String("file", "", "Trajectory file to inspect")
	verify := flag.Bool("verify", false, "Recompute and check every payload digest")
	blocks := flag.Bool("blocks", false, "List every block in the file")
	jsonOut := flag.Bool("json", false, "Emit the report as JSON")
	flag.Parse()

	if *file == "" {
		fmt.Fprintln(os.Stderr, "Usage: tng-inspect -file trajectory.tng [-verify] [-blocks] [-json]")
		os.Exit(2)
	}

	rep, err := buildReport(*file, *verify, *blocks || *verify)
	if err != nil {
		fmt.Fprintf(os.Stderr, "tng-inspect: %v\n", err)
		os.Exit(2)
	}

	if *jsonOut {
		out, err := json.MarshalIndent(rep, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "tng-inspect: %v\n", err)
			os.Exit(2)
		}
		fmt.Println(string(out))
	} else {
		printReport(rep, *verify, *blocks)
	}

	if rep.BadDigests > 0 {
		os.Exit(1)
	}
}

func buildReport(path string, verify, scanBlocks bool) (*report, error) {
	c, err := trajectory.Open(path, trajectory.DefaultConfig())
	if err != nil {
		return nil, err
	}
	defer c.Close()

	info := c.Info()
	rep := &report{
		Path:          path,
		ByteOrder:     c.ByteOrder(),
		FormatVersion: info.FormatVersion,
		Created:       time.Unix(info.CreationTime, 0).UTC().Format(time.RFC3339),
		Program:       c.ProgramName(true),
		User:          c.UserName(true),
		Computer:      c.ComputerName(true),
		Forcefield:    c.ForcefieldName(),
		TrajectoryID:  c.TrajectoryID(),
		NumFrames:     c.NumFrames(),
		NumFrameSets:  c.NumFrameSets(),
		NumParticles:  c.NumParticles(),
		NumMolecules:  c.NumMolecules(),
		MediumStride:  c.MediumStride(),
		LongStride:    c.LongStride(),
	}

	// Walk the granule chain for the frame set directory.
	for {
		err := c.ReadNextFrameSet()
		if err == io.EOF {
			break
		}
		if err != nil {
			if errors.Is(err, block.ErrDigestMismatch) {
				rep.BadDigests++
			} else {
				return nil, err
			}
		}
		fs := c.CurrentFrameSet()
		fsr := frameSetReport{Pos: fs.Pos, FirstFrame: fs.FirstFrame, NFrames: fs.NFrames}
		seen := map[block.Kind]bool{}
		for _, e := range fs.TOC {
			if seen[e.Kind] {
				continue
			}
			seen[e.Kind] = true
			fsr.Kinds = append(fsr.Kinds, c.BlockName(e.Kind))
		}
		rep.FrameSets = append(rep.FrameSets, fsr)
	}

	if scanBlocks {
		list, bad, err := scanFile(path, verify)
		if err != nil {
			return nil, err
		}
		rep.Blocks = list
		if verify {
			// The raw scan checks every payload, not just granule headers.
			rep.BadDigests = bad
		}
	}
	return rep, nil
}

// scanFile walks the raw block sequence from the top of the file. With
// verify on it reads every payload and recomputes the digest; otherwise
// headers are enough.
func scanFile(path string, verify bool) ([]blockReport, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	head := make([]byte, 16)
	if _, err := io.ReadFull(f, head); err != nil {
		return nil, 0, fmt.Errorf("read leading header: %w", err)
	}
	order, err := block.DetectOrder(head)
	if err != nil {
		return nil, 0, err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, 0, err
	}

	var list []blockReport
	bad := 0
	for {
		pos, err := f.Seek(0, io.SeekCurrent)
		if err != nil {
			return nil, 0, err
		}

		var h *block.Header
		var digestOK *bool
		if verify {
			blk, err := block.Read(f, order, block.HashUse)
			if err == io.EOF {
				break
			}
			if err != nil {
				if !errors.Is(err, block.ErrDigestMismatch) {
					return nil, 0, fmt.Errorf("block at %d: %w", pos, err)
				}
				bad++
				v := false
				digestOK = &v
			} else if blk.DigestRecorded() {
				v := true
				digestOK = &v
			}
			h = &blk.Header
		} else {
			h, err = block.ReadHeader(f, order)
			if err == io.EOF {
				break
			}
			if err != nil {
				return nil, 0, fmt.Errorf("block at %d: %w", pos, err)
			}
		}

		list = append(list, blockReport{
			Offset:         pos,
			Kind:           int64(h.Kind),
			Label:          h.Kind.String(),
			Name:           h.Name,
			Length:         h.Length,
			ParticleData:   h.Dependency&block.DepParticle != 0,
			DigestRecorded: h.DigestRecorded(),
			DigestOK:       digestOK,
		})
	}
	return list, bad, nil
}

func printReport(rep *report, verify, listBlocks bool) {
	fmt.Printf("🔬 TNG Trajectory Inspector\n")
	fmt.Printf("===========================\n\n")
	fmt.Printf("File:          %s\n", rep.Path)
	fmt.Printf("Byte order:    %s endian\n", rep.ByteOrder)
	fmt.Printf("Format:        version %d\n", rep.FormatVersion)
	fmt.Printf("Created:       %s\n", rep.Created)
	fmt.Printf("Program:       %s\n", orDash(rep.Program))
	fmt.Printf("User:          %s\n", orDash(rep.User))
	fmt.Printf("Computer:      %s\n", orDash(rep.Computer))
	if rep.Forcefield != "" {
		fmt.Printf("Forcefield:    %s\n", rep.Forcefield)
	}
	fmt.Printf("Trajectory ID: %s\n\n", rep.TrajectoryID)

	fmt.Printf("📊 Contents\n")
	fmt.Printf("  Frames:      %d\n", rep.NumFrames)
	fmt.Printf("  Frame sets:  %d\n", rep.NumFrameSets)
	fmt.Printf("  Particles:   %d\n", rep.NumParticles)
	fmt.Printf("  Molecules:   %d\n", rep.NumMolecules)
	fmt.Printf("  Skip chains: medium every %d, long every %d\n\n", rep.MediumStride, rep.LongStride)

	if len(rep.FrameSets) > 0 {
		fmt.Printf("🎞️  Frame sets\n")
		for _, fs := range rep.FrameSets {
			fmt.Printf("  @%-10d frames %d-%d", fs.Pos, fs.FirstFrame, fs.FirstFrame+fs.NFrames-1)
			for i, k := range fs.Kinds {
				if i == 0 {
					fmt.Printf("  [%s", k)
				} else {
					fmt.Printf(", %s", k)
				}
			}
			if len(fs.Kinds) > 0 {
				fmt.Printf("]")
			}
			fmt.Println()
		}
		fmt.Println()
	}

	if listBlocks && len(rep.Blocks) > 0 {
		fmt.Printf("📦 Blocks\n")
		fmt.Printf("  %-10s %-8s %-24s %10s  %s\n", "OFFSET", "KIND", "NAME", "LENGTH", "DIGEST")
		for _, b := range rep.Blocks {
			digest := "-"
			switch {
			case b.DigestOK != nil && *b.DigestOK:
				digest = "ok"
			case b.DigestOK != nil:
				digest = "MISMATCH"
			case b.DigestRecorded:
				digest = "recorded"
			}
			fmt.Printf("  %-10d %-8d %-24s %10d  %s\n", b.Offset, b.Kind, b.Name, b.Length, digest)
		}
		fmt.Println()
	}

	if verify {
		if rep.BadDigests == 0 {
			fmt.Printf("✅ Integrity: every recorded digest matches\n")
		} else {
			fmt.Printf("❌ Integrity: %d block(s) failed digest verification\n", rep.BadDigests)
		}
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
