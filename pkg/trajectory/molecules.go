package trajectory

import (
	"encoding/binary"
	"sort"
	"strings"

	"github.com/jbarnoud/tng/pkg/block"
	"github.com/jbarnoud/tng/pkg/status"
)

// The molecule system is a containment tree held in plain slices: the
// container owns the molecules, each molecule its chains, and so on
// down to atoms. Builder refs address nodes by index instead of
// pointer, so appending children never invalidates an earlier ref.

// Atom is one atom of a molecule. IDs are zero based and local to one
// molecule copy, assigned in insertion order across all residues.
type Atom struct {
	ID   int64
	Name string
	Type string
}

// Residue groups the atoms of one residue.
type Residue struct {
	ID    int64
	Name  string
	Atoms []Atom
}

// Chain groups the residues of one chain.
type Chain struct {
	ID       int64
	Name     string
	Residues []Residue
}

// Bond connects two atoms of the same molecule copy by their local IDs.
type Bond struct {
	From int64
	To   int64
}

// Molecule describes one molecule type and how many copies of it the
// system contains.
type Molecule struct {
	ID     int64
	Name   string
	Count  int64
	Chains []Chain
	Bonds  []Bond
}

// atomsPerCopy counts the atoms of one copy of the molecule.
func (m *Molecule) atomsPerCopy() int64 {
	var n int64
	for ci := range m.Chains {
		for ri := range m.Chains[ci].Residues {
			n += int64(len(m.Chains[ci].Residues[ri].Atoms))
		}
	}
	return n
}

// MoleculeRef addresses one molecule of a container's system.
type MoleculeRef struct {
	c   *Container
	idx int
}

// ChainRef addresses one chain of a molecule.
type ChainRef struct {
	c        *Container
	mol, idx int
}

// ResidueRef addresses one residue of a chain.
type ResidueRef struct {
	c               *Container
	mol, chain, idx int
}

// AtomRef is the handle AddAtom returns. ID is the atom's local number
// within one molecule copy, the number AddBond and particle mappings
// speak in.
type AtomRef struct {
	ID   int64
	Name string
	Type string
}

// checkEdit gates every structural edit of the molecule system.
func (c *Container) checkEdit(op string) error {
	if c.closed {
		return status.Failuref(op, ErrClosed, "container closed")
	}
	if !c.writable {
		return status.Failuref(op, ErrReadOnly, "opened for reading")
	}
	if c.frozen {
		return status.Failuref(op, ErrFrozen, "molecule system freezes once the first frame set is written")
	}
	return nil
}

func checkSystemName(op, name string) error {
	if len(name) > block.MaxNameLen {
		return status.Failuref(op, ErrMolecule, "name is %d bytes, the cap is %d", len(name), block.MaxNameLen)
	}
	if strings.IndexByte(name, 0) >= 0 {
		return status.Failuref(op, ErrMolecule, "name contains NUL")
	}
	return nil
}

// AddMolecule appends a molecule type with the given copy count. IDs are
// assigned sequentially from 1.
func (c *Container) AddMolecule(name string, count int64) (*MoleculeRef, error) {
	const op = "trajectory.add_molecule"
	if err := c.checkEdit(op); err != nil {
		return nil, err
	}
	if err := checkSystemName(op, name); err != nil {
		return nil, err
	}
	if count < 1 {
		return nil, status.Failuref(op, ErrMolecule, "copy count %d", count)
	}
	c.molecules = append(c.molecules, Molecule{
		ID:    int64(len(c.molecules)) + 1,
		Name:  name,
		Count: count,
	})
	return &MoleculeRef{c: c, idx: len(c.molecules) - 1}, nil
}

// SetCount changes the molecule's copy count.
func (m *MoleculeRef) SetCount(count int64) error {
	const op = "trajectory.set_molecule_count"
	if err := m.c.checkEdit(op); err != nil {
		return err
	}
	if count < 1 {
		return status.Failuref(op, ErrMolecule, "copy count %d", count)
	}
	m.c.molecules[m.idx].Count = count
	return nil
}

// Count returns the molecule's copy count.
func (m *MoleculeRef) Count() int64 {
	return m.c.molecules[m.idx].Count
}

// AddChain appends a chain to the molecule.
func (m *MoleculeRef) AddChain(name string) (*ChainRef, error) {
	const op = "trajectory.add_chain"
	if err := m.c.checkEdit(op); err != nil {
		return nil, err
	}
	if err := checkSystemName(op, name); err != nil {
		return nil, err
	}
	mol := &m.c.molecules[m.idx]
	mol.Chains = append(mol.Chains, Chain{
		ID:   int64(len(mol.Chains)) + 1,
		Name: name,
	})
	return &ChainRef{c: m.c, mol: m.idx, idx: len(mol.Chains) - 1}, nil
}

// AddResidue appends a residue to the chain.
func (ch *ChainRef) AddResidue(name string) (*ResidueRef, error) {
	const op = "trajectory.add_residue"
	if err := ch.c.checkEdit(op); err != nil {
		return nil, err
	}
	if err := checkSystemName(op, name); err != nil {
		return nil, err
	}
	chain := &ch.c.molecules[ch.mol].Chains[ch.idx]
	chain.Residues = append(chain.Residues, Residue{
		ID:   int64(len(chain.Residues)) + 1,
		Name: name,
	})
	return &ResidueRef{c: ch.c, mol: ch.mol, chain: ch.idx, idx: len(chain.Residues) - 1}, nil
}

// AddAtom appends an atom to the residue and returns its handle. The
// assigned ID numbers atoms across the whole molecule copy, so two
// residues never share an ID.
func (r *ResidueRef) AddAtom(name, atomType string) (AtomRef, error) {
	const op = "trajectory.add_atom"
	if err := r.c.checkEdit(op); err != nil {
		return AtomRef{}, err
	}
	if err := checkSystemName(op, name); err != nil {
		return AtomRef{}, err
	}
	if err := checkSystemName(op, atomType); err != nil {
		return AtomRef{}, err
	}
	mol := &r.c.molecules[r.mol]
	atom := Atom{ID: mol.atomsPerCopy(), Name: name, Type: atomType}
	res := &mol.Chains[r.chain].Residues[r.idx]
	res.Atoms = append(res.Atoms, atom)
	return AtomRef{ID: atom.ID, Name: name, Type: atomType}, nil
}

// AddBond records a bond between two atoms of the molecule, by their
// local IDs. Both endpoints must already exist.
func (m *MoleculeRef) AddBond(from, to int64) error {
	const op = "trajectory.add_bond"
	if err := m.c.checkEdit(op); err != nil {
		return err
	}
	mol := &m.c.molecules[m.idx]
	atoms := mol.atomsPerCopy()
	if from < 0 || from >= atoms || to < 0 || to >= atoms {
		return status.Failuref(op, ErrMolecule,
			"bond %d-%d outside the molecule's %d atoms", from, to, atoms)
	}
	if from == to {
		return status.Failuref(op, ErrMolecule, "bond %d-%d joins an atom to itself", from, to)
	}
	mol.Bonds = append(mol.Bonds, Bond{From: from, To: to})
	return nil
}

// Molecules returns the molecule system. The returned slice is the
// container's own; treat it as read only.
func (c *Container) Molecules() []Molecule {
	return c.molecules
}

// NumMolecules returns the number of molecule types in the system.
func (c *Container) NumMolecules() int64 {
	return int64(len(c.molecules))
}

// moleculeParticles sums copy count times atoms per copy over the system.
func (c *Container) moleculeParticles() int64 {
	var n int64
	for i := range c.molecules {
		n += c.molecules[i].Count * c.molecules[i].atomsPerCopy()
	}
	return n
}

// Molecules block payload.
//
// Format: [NMolecules:8] then per molecule
//   [ID:8][Name:NUL][Count:8]
//   [NChains:8]  per chain   [ID:8][Name:NUL]
//   [NResidues:8] per residue [ID:8][Name:NUL]
//   [NAtoms:8]   per atom    [ID:8][Name:NUL][Type:NUL]
//   [NBonds:8]   per bond    [From:8][To:8]
func appendMoleculesPayload(mols []Molecule, order binary.ByteOrder) []byte {
	buf := make([]byte, 0, 256)
	buf = appendI64(buf, order, int64(len(mols)))
	for mi := range mols {
		mol := &mols[mi]
		buf = appendI64(buf, order, mol.ID)
		buf = appendStr(buf, mol.Name)
		buf = appendI64(buf, order, mol.Count)
		buf = appendI64(buf, order, int64(len(mol.Chains)))
		for ci := range mol.Chains {
			chain := &mol.Chains[ci]
			buf = appendI64(buf, order, chain.ID)
			buf = appendStr(buf, chain.Name)
			buf = appendI64(buf, order, int64(len(chain.Residues)))
			for ri := range chain.Residues {
				res := &chain.Residues[ri]
				buf = appendI64(buf, order, res.ID)
				buf = appendStr(buf, res.Name)
				buf = appendI64(buf, order, int64(len(res.Atoms)))
				for ai := range res.Atoms {
					atom := &res.Atoms[ai]
					buf = appendI64(buf, order, atom.ID)
					buf = appendStr(buf, atom.Name)
					buf = appendStr(buf, atom.Type)
				}
			}
		}
		buf = appendI64(buf, order, int64(len(mol.Bonds)))
		for bi := range mol.Bonds {
			buf = appendI64(buf, order, mol.Bonds[bi].From)
			buf = appendI64(buf, order, mol.Bonds[bi].To)
		}
	}
	return buf
}

func parseMoleculesPayload(data []byte, order binary.ByteOrder) ([]Molecule, error) {
	p := &payloadReader{data: data, order: order}
	// Every element costs several bytes on disk, so the payload length
	// itself bounds any honest count.
	max := int64(len(data))

	nMols := p.count("molecules", max)
	mols := make([]Molecule, 0, nMols)
	for mi := int64(0); mi < nMols && p.err == nil; mi++ {
		mol := Molecule{
			ID:    p.i64(),
			Name:  p.str(),
			Count: p.i64(),
		}
		nChains := p.count("chains", max)
		mol.Chains = make([]Chain, 0, nChains)
		for ci := int64(0); ci < nChains && p.err == nil; ci++ {
			chain := Chain{ID: p.i64(), Name: p.str()}
			nRes := p.count("residues", max)
			chain.Residues = make([]Residue, 0, nRes)
			for ri := int64(0); ri < nRes && p.err == nil; ri++ {
				res := Residue{ID: p.i64(), Name: p.str()}
				nAtoms := p.count("atoms", max)
				res.Atoms = make([]Atom, 0, nAtoms)
				for ai := int64(0); ai < nAtoms && p.err == nil; ai++ {
					res.Atoms = append(res.Atoms, Atom{
						ID:   p.i64(),
						Name: p.str(),
						Type: p.str(),
					})
				}
				chain.Residues = append(chain.Residues, res)
			}
			mol.Chains = append(mol.Chains, chain)
		}
		nBonds := p.count("bonds", max)
		mol.Bonds = make([]Bond, 0, nBonds)
		for bi := int64(0); bi < nBonds && p.err == nil; bi++ {
			mol.Bonds = append(mol.Bonds, Bond{From: p.i64(), To: p.i64()})
		}
		mols = append(mols, mol)
	}
	if err := p.done(); err != nil {
		return nil, status.Criticalf("trajectory.read_molecules", ErrCorruptHeader, "%v", err)
	}
	for mi := range mols {
		mol := &mols[mi]
		if mol.Count < 1 {
			return nil, status.Criticalf("trajectory.read_molecules", ErrCorruptHeader,
				"molecule %q copy count %d", mol.Name, mol.Count)
		}
		atoms := mol.atomsPerCopy()
		for bi := range mol.Bonds {
			b := mol.Bonds[bi]
			if b.From < 0 || b.From >= atoms || b.To < 0 || b.To >= atoms {
				return nil, status.Criticalf("trajectory.read_molecules", ErrCorruptHeader,
					"molecule %q bond %d-%d outside %d atoms", mol.Name, b.From, b.To, atoms)
			}
		}
	}
	return mols, nil
}

// Trajectory IDs block payload: the kinds the writer emits, with their
// names, so a reader can label kinds it does not know.
//
// Format: [NEntries:8] then per entry [Kind:8][Name:NUL]
func appendTrajectoryIDsPayload(names map[block.Kind]string, order binary.ByteOrder) []byte {
	kinds := make([]block.Kind, 0, len(names))
	for k := range names {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })

	buf := make([]byte, 0, 64)
	buf = appendI64(buf, order, int64(len(kinds)))
	for _, k := range kinds {
		buf = appendI64(buf, order, int64(k))
		buf = appendStr(buf, names[k])
	}
	return buf
}

func parseTrajectoryIDsPayload(data []byte, order binary.ByteOrder) (map[block.Kind]string, error) {
	p := &payloadReader{data: data, order: order}
	n := p.count("trajectory ids", int64(len(data)))
	names := make(map[block.Kind]string, n)
	for i := int64(0); i < n && p.err == nil; i++ {
		k := block.Kind(p.i64())
		names[k] = p.str()
	}
	if err := p.done(); err != nil {
		return nil, status.Criticalf("trajectory.read_ids", ErrCorruptHeader, "%v", err)
	}
	return names, nil
}

// BlockName returns the human name recorded for a data block kind,
// falling back to the kind's conventional name.
func (c *Container) BlockName(kind block.Kind) string {
	if name, ok := c.blockNames[kind]; ok && name != "" {
		return name
	}
	return kind.DefaultName()
}
