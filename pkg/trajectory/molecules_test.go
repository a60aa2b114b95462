package trajectory

import (
	"encoding/binary"
	"errors"
	"strings"
	"testing"
)

func builderContainer(t *testing.T) *Container {
	t.Helper()
	return mustCreate(t, testPath(t), quietConfig())
}

func TestMoleculeBuilder(t *testing.T) {
	c := builderContainer(t)

	mol, err := c.AddMolecule("protein", 1)
	if err != nil {
		t.Fatalf("AddMolecule: %v", err)
	}
	chain, err := mol.AddChain("A")
	if err != nil {
		t.Fatalf("AddChain: %v", err)
	}
	res1, err := chain.AddResidue("ALA")
	if err != nil {
		t.Fatalf("AddResidue: %v", err)
	}
	res2, err := chain.AddResidue("GLY")
	if err != nil {
		t.Fatalf("AddResidue: %v", err)
	}

	// Atom ids number across residues within one molecule copy.
	a0, err := res1.AddAtom("CA", "C")
	if err != nil {
		t.Fatal(err)
	}
	a1, err := res1.AddAtom("CB", "C")
	if err != nil {
		t.Fatal(err)
	}
	a2, err := res2.AddAtom("CA", "C")
	if err != nil {
		t.Fatal(err)
	}
	if a0.ID != 0 || a1.ID != 1 || a2.ID != 2 {
		t.Errorf("atom ids = %d/%d/%d", a0.ID, a1.ID, a2.ID)
	}

	if err := mol.AddBond(a0.ID, a2.ID); err != nil {
		t.Fatalf("AddBond: %v", err)
	}
	if c.NumParticles() != 3 {
		t.Errorf("particles = %d", c.NumParticles())
	}

	// Copy count multiplies the particle count.
	if err := mol.SetCount(5); err != nil {
		t.Fatalf("SetCount: %v", err)
	}
	if mol.Count() != 5 || c.NumParticles() != 15 {
		t.Errorf("count = %d, particles = %d", mol.Count(), c.NumParticles())
	}

	// A second molecule keeps its own id sequence.
	if _, err := c.AddMolecule("water", 100); err != nil {
		t.Fatal(err)
	}
	if c.Molecules()[1].ID != 2 {
		t.Errorf("second molecule id = %d", c.Molecules()[1].ID)
	}
	if c.NumMolecules() != 2 {
		t.Errorf("molecule types = %d", c.NumMolecules())
	}
}

func TestMoleculeBuilderRejects(t *testing.T) {
	c := builderContainer(t)

	if _, err := c.AddMolecule("ghost", 0); !errors.Is(err, ErrMolecule) {
		t.Errorf("zero copies: %v", err)
	}
	if _, err := c.AddMolecule(strings.Repeat("x", 2000), 1); !errors.Is(err, ErrMolecule) {
		t.Errorf("over-long name: %v", err)
	}
	if _, err := c.AddMolecule("nul\x00name", 1); !errors.Is(err, ErrMolecule) {
		t.Errorf("NUL in name: %v", err)
	}

	mol, err := c.AddMolecule("dimer", 1)
	if err != nil {
		t.Fatal(err)
	}
	chain, _ := mol.AddChain("A")
	res, _ := chain.AddResidue("R")
	if _, err := res.AddAtom("X", "X"); err != nil {
		t.Fatal(err)
	}
	if _, err := res.AddAtom("Y", "Y"); err != nil {
		t.Fatal(err)
	}

	if err := mol.AddBond(0, 2); !errors.Is(err, ErrMolecule) {
		t.Errorf("bond past the atoms: %v", err)
	}
	if err := mol.AddBond(1, 1); !errors.Is(err, ErrMolecule) {
		t.Errorf("self bond: %v", err)
	}
	if err := mol.SetCount(-3); !errors.Is(err, ErrMolecule) {
		t.Errorf("negative count: %v", err)
	}
}

func TestMoleculesPayloadRoundTrip(t *testing.T) {
	c := builderContainer(t)
	addWater(t, c, 4)
	mol, err := c.AddMolecule("ion", 12)
	if err != nil {
		t.Fatal(err)
	}
	chain, _ := mol.AddChain("I")
	res, _ := chain.AddResidue("NA")
	if _, err := res.AddAtom("NA", "Na"); err != nil {
		t.Fatal(err)
	}

	for _, order := range []binary.ByteOrder{binary.BigEndian, binary.LittleEndian} {
		payload := appendMoleculesPayload(c.molecules, order)
		got, err := parseMoleculesPayload(payload, order)
		if err != nil {
			t.Fatalf("%v: parse: %v", order, err)
		}
		if len(got) != 2 || got[0].Name != "water" || got[1].Name != "ion" {
			t.Fatalf("%v: molecules = %+v", order, got)
		}
		if got[0].Count != 4 || len(got[0].Bonds) != 2 || got[1].Count != 12 {
			t.Errorf("%v: counts survived badly", order)
		}
		atoms := got[0].Chains[0].Residues[0].Atoms
		if len(atoms) != 3 || atoms[1].Name != "H1" || atoms[1].Type != "H" {
			t.Errorf("%v: atoms = %+v", order, atoms)
		}
	}
}

func TestMoleculesPayloadRejectsCorrupt(t *testing.T) {
	c := builderContainer(t)
	addWater(t, c, 2)
	payload := appendMoleculesPayload(c.molecules, binary.BigEndian)

	if _, err := parseMoleculesPayload(payload[:len(payload)-4], binary.BigEndian); !errors.Is(err, ErrCorruptHeader) {
		t.Errorf("truncated payload: %v", err)
	}

	// A corrupt leading count claims more molecules than the payload
	// could hold.
	bad := make([]byte, len(payload))
	copy(bad, payload)
	binary.BigEndian.PutUint64(bad[:8], 1<<40)
	if _, err := parseMoleculesPayload(bad, binary.BigEndian); !errors.Is(err, ErrCorruptHeader) {
		t.Errorf("absurd count: %v", err)
	}
}

func TestTrajectoryIDsPayloadRoundTrip(t *testing.T) {
	names := standardNames()
	names[10100] = "DIPOLE MOMENT"

	payload := appendTrajectoryIDsPayload(names, binary.LittleEndian)
	got, err := parseTrajectoryIDsPayload(payload, binary.LittleEndian)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(got) != len(names) {
		t.Fatalf("entries = %d, want %d", len(got), len(names))
	}
	if got[10100] != "DIPOLE MOMENT" {
		t.Errorf("custom kind name = %q", got[10100])
	}
}
