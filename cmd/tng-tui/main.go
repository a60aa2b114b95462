package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jbarnoud/tng/pkg/block"
	"github.com/jbarnoud/tng/pkg/status"
	"github.com/jbarnoud/tng/pkg/trajectory"
)

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#00FFAA")).
			MarginLeft(2).
			MarginTop(1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#00FFFF")).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#00FFFF")).
			Padding(0, 1)

	activeTabStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(lipgloss.Color("#00AA88")).
			Padding(0, 2)

	inactiveTabStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#666666")).
				Padding(0, 2)

	contentStyle = lipgloss.NewStyle().
			MarginLeft(2).
			MarginTop(1)

	statsBoxStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#00FF00")).
			Padding(1, 2).
			MarginRight(2)

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFAA00")).
			Bold(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			MarginTop(1).
			MarginLeft(2)
)

type view int

const (
	overviewView view = iota
	frameSetsView
	blocksView
	moleculesView
)

const viewCount = 4

type keyMap struct {
	Tab      key.Binding
	ShiftTab key.Binding
	Enter    key.Binding
	Quit     key.Binding
	Up       key.Binding
	Down     key.Binding
}

var keys = keyMap{
	Tab: key.NewBinding(
		key.WithKeys("tab"),
		key.WithHelp("tab", "next view"),
	),
	ShiftTab: key.NewBinding(
		key.WithKeys("shift+tab"),
		key.WithHelp("shift+tab", "prev view"),
	),
	Enter: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "open frame set"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
	Up: key.NewBinding(
		key.WithKeys("up", "k"),
		key.WithHelp("↑/k", "up"),
	),
	Down: key.NewBinding(
		key.WithKeys("down", "j"),
		key.WithHelp("↓/j", "down"),
	),
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Tab, k.Enter, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Tab, k.ShiftTab, k.Enter},
		{k.Up, k.Down},
		{k.Quit},
	}
}

// tocRow is one block of a frame set's directory.
type tocRow struct {
	Kind   block.Kind
	Name   string
	Offset int64
	Length int64
}

// frameSetInfo is everything the browser shows about one granule.
type frameSetInfo struct {
	Pos        int64
	FirstFrame int64
	NFrames    int64
	Blocks     []tocRow
	DigestBad  bool
}

// fileInfo is the static snapshot the TUI browses; the file is closed
// before the program starts.
type fileInfo struct {
	Path       string
	Order      string
	Created    time.Time
	Program    string
	User       string
	Computer   string
	Forcefield string
	ID         string
	NumFrames  int64
	Particles  int64
	Medium     int64
	Long       int64
	Molecules  []trajectory.Molecule
	FrameSets  []frameSetInfo
	BadDigests int
}

type moleculeItem struct {
	mol trajectory.Molecule
}

func (i moleculeItem) Title() string {
	return fmt.Sprintf("%s ×%d", i.mol.Name, i.mol.Count)
}

func (i moleculeItem) Description() string {
	atoms, residues, bonds := int64(0), 0, len(i.mol.Bonds)
	for _, ch := range i.mol.Chains {
		residues += len(ch.Residues)
		for _, r := range ch.Residues {
			atoms += int64(len(r.Atoms))
		}
	}
	return fmt.Sprintf("%d chains, %d residues, %d atoms, %d bonds per copy → %d particles",
		len(i.mol.Chains), residues, atoms, bonds, atoms*i.mol.Count)
}

func (i moleculeItem) FilterValue() string { return i.mol.Name }

type model struct {
	info          fileInfo
	currentView   view
	frameSetTable table.Model
	blockTable    table.Model
	moleculeList  list.Model
	help          help.Model
	keys          keyMap
	width         int
	height        int
	selectedSet   int
}

func initialModel(info fileInfo) model {
	fsColumns := []table.Column{
		{Title: "#", Width: 5},
		{Title: "Offset", Width: 12},
		{Title: "Frames", Width: 16},
		{Title: "Blocks", Width: 8},
		{Title: "Digest", Width: 10},
	}
	fsRows := make([]table.Row, len(info.FrameSets))
	for i, fs := range info.FrameSets {
		digest := "ok"
		if fs.DigestBad {
			digest = "MISMATCH"
		}
		fsRows[i] = table.Row{
			fmt.Sprintf("%d", i),
			fmt.Sprintf("%d", fs.Pos),
			fmt.Sprintf("%d-%d", fs.FirstFrame, fs.FirstFrame+fs.NFrames-1),
			fmt.Sprintf("%d", len(fs.Blocks)),
			digest,
		}
	}
	fsTable := table.New(
		table.WithColumns(fsColumns),
		table.WithRows(fsRows),
		table.WithFocused(true),
		table.WithHeight(12),
	)

	blockColumns := []table.Column{
		{Title: "Kind", Width: 8},
		{Title: "Name", Width: 30},
		{Title: "Offset", Width: 10},
		{Title: "Length", Width: 12},
	}
	blockTable := table.New(
		table.WithColumns(blockColumns),
		table.WithHeight(12),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("#00FFFF")).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("#FFFFFF")).
		Background(lipgloss.Color("#00AA88")).
		Bold(false)
	fsTable.SetStyles(s)
	blockTable.SetStyles(s)

	items := make([]list.Item, len(info.Molecules))
	for i, mol := range info.Molecules {
		items[i] = moleculeItem{mol: mol}
	}
	molList := list.New(items, list.NewDefaultDelegate(), 60, 14)
	molList.Title = "Molecular system"
	molList.SetShowStatusBar(false)
	molList.SetShowHelp(false)

	m := model{
		info:          info,
		currentView:   overviewView,
		frameSetTable: fsTable,
		blockTable:    blockTable,
		moleculeList:  molList,
		help:          help.New(),
		keys:          keys,
	}
	m.loadBlockTable(0)
	return m
}

func (m *model) loadBlockTable(setIdx int) {
	if setIdx < 0 || setIdx >= len(m.info.FrameSets) {
		m.blockTable.SetRows(nil)
		return
	}
	m.selectedSet = setIdx
	fs := m.info.FrameSets[setIdx]
	rows := make([]table.Row, len(fs.Blocks))
	for i, b := range fs.Blocks {
		rows[i] = table.Row{
			fmt.Sprintf("%d", b.Kind),
			b.Name,
			fmt.Sprintf("+%d", b.Offset),
			fmt.Sprintf("%d", b.Length),
		}
	}
	m.blockTable.SetRows(rows)
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.moleculeList.SetSize(msg.Width-8, msg.Height-12)

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit

		case key.Matches(msg, m.keys.Tab):
			m.currentView = (m.currentView + 1) % viewCount

		case key.Matches(msg, m.keys.ShiftTab):
			if m.currentView == 0 {
				m.currentView = viewCount - 1
			} else {
				m.currentView--
			}

		case key.Matches(msg, m.keys.Enter):
			if m.currentView == frameSetsView {
				m.loadBlockTable(m.frameSetTable.Cursor())
				m.currentView = blocksView
			}
		}
	}

	switch m.currentView {
	case frameSetsView:
		m.frameSetTable, cmd = m.frameSetTable.Update(msg)
		cmds = append(cmds, cmd)
	case blocksView:
		m.blockTable, cmd = m.blockTable.Update(msg)
		cmds = append(cmds, cmd)
	case moleculesView:
		m.moleculeList, cmd = m.moleculeList.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m model) View() string {
	if m.width == 0 {
		return "Initializing..."
	}

	var s strings.Builder

	s.WriteString(titleStyle.Render("🧬 TNG Trajectory Browser"))
	s.WriteString("\n\n")
	s.WriteString(m.renderTabs())
	s.WriteString("\n\n")

	switch m.currentView {
	case overviewView:
		s.WriteString(m.renderOverview())
	case frameSetsView:
		s.WriteString(m.renderFrameSets())
	case blocksView:
		s.WriteString(m.renderBlocks())
	case moleculesView:
		s.WriteString(m.renderMolecules())
	}

	if m.info.BadDigests > 0 {
		s.WriteString("\n\n")
		s.WriteString(warnStyle.Render(
			fmt.Sprintf("⚠ %d block(s) failed digest verification", m.info.BadDigests)))
	}

	s.WriteString("\n\n")
	s.WriteString(helpStyle.Render(m.help.ShortHelpView(m.keys.ShortHelp())))

	return s.String()
}

func (m model) renderTabs() string {
	tabs := []string{"Overview", "Frame Sets", "Blocks", "Molecules"}
	var renderedTabs []string

	for i, tab := range tabs {
		if view(i) == m.currentView {
			renderedTabs = append(renderedTabs, activeTabStyle.Render(tab))
		} else {
			renderedTabs = append(renderedTabs, inactiveTabStyle.Render(tab))
		}
	}

	return lipgloss.JoinHorizontal(lipgloss.Top, renderedTabs...)
}

func (m model) renderOverview() string {
	info := m.info

	fileContent := fmt.Sprintf(`📁 File
━━━━━━━━━━━━━━━
Path:       %s
Byte order: %s endian
Created:    %s
Program:    %s
User:       %s
Computer:   %s
Forcefield: %s
ID:         %s`,
		info.Path,
		info.Order,
		info.Created.UTC().Format("2006-01-02 15:04:05"),
		orDash(info.Program),
		orDash(info.User),
		orDash(info.Computer),
		orDash(info.Forcefield),
		info.ID,
	)

	contents := fmt.Sprintf(`📊 Contents
━━━━━━━━━━━━━━━
Frames:      %d
Frame sets:  %d
Particles:   %d
Molecules:   %d

🔗 Skip chains
━━━━━━━━━━━━━━━
Medium: every %d sets
Long:   every %d sets`,
		info.NumFrames,
		len(info.FrameSets),
		info.Particles,
		len(info.Molecules),
		info.Medium,
		info.Long,
	)

	fileBox := statsBoxStyle.Render(fileContent)
	contentsBox := statsBoxStyle.Render(contents)

	return contentStyle.Render(
		lipgloss.JoinHorizontal(lipgloss.Top, fileBox, contentsBox),
	)
}

func (m model) renderFrameSets() string {
	var s strings.Builder

	s.WriteString(headerStyle.Render("Frame Set Chain"))
	s.WriteString("\n\n")
	s.WriteString(m.frameSetTable.View())
	s.WriteString("\n\n")
	s.WriteString(helpStyle.Render("Navigate with ↑/↓ • Enter opens the block directory"))

	return contentStyle.Render(s.String())
}

func (m model) renderBlocks() string {
	var s strings.Builder

	title := "Block Directory"
	if m.selectedSet < len(m.info.FrameSets) {
		fs := m.info.FrameSets[m.selectedSet]
		title = fmt.Sprintf("Block Directory — frame set %d (frames %d-%d)",
			m.selectedSet, fs.FirstFrame, fs.FirstFrame+fs.NFrames-1)
	}
	s.WriteString(headerStyle.Render(title))
	s.WriteString("\n\n")
	s.WriteString(m.blockTable.View())
	s.WriteString("\n\n")
	s.WriteString(helpStyle.Render("Offsets are relative to the frame set block"))

	return contentStyle.Render(s.String())
}

func (m model) renderMolecules() string {
	if len(m.info.Molecules) == 0 {
		return contentStyle.Render(helpStyle.Render("No molecule topology stored in this file"))
	}
	return contentStyle.Render(m.moleculeList.View())
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// collect opens the trajectory, walks every frame set, and closes it;
// the TUI then browses the snapshot without touching the file again.
func collect(path string) (fileInfo, error) {
	c, err := trajectory.OpenMapped(path, trajectory.DefaultConfig())
	if err != nil {
		return fileInfo{}, err
	}
	defer c.Close()

	raw := c.Info()
	info := fileInfo{
		Path:       path,
		Order:      c.ByteOrder(),
		Created:    time.Unix(raw.CreationTime, 0),
		Program:    c.ProgramName(true),
		User:       c.UserName(true),
		Computer:   c.ComputerName(true),
		Forcefield: c.ForcefieldName(),
		ID:         c.TrajectoryID(),
		NumFrames:  c.NumFrames(),
		Particles:  c.NumParticles(),
		Medium:     c.MediumStride(),
		Long:       c.LongStride(),
		Molecules:  c.Molecules(),
	}

	for {
		err := c.ReadNextFrameSet()
		if err == io.EOF {
			break
		}
		bad := false
		if err != nil {
			if !status.IsRecoverable(err) {
				return fileInfo{}, err
			}
			bad = true
			info.BadDigests++
		}
		fs := c.CurrentFrameSet()
		fsi := frameSetInfo{
			Pos:        fs.Pos,
			FirstFrame: fs.FirstFrame,
			NFrames:    fs.NFrames,
			DigestBad:  bad,
		}
		for _, e := range fs.TOC {
			fsi.Blocks = append(fsi.Blocks, tocRow{
				Kind:   e.Kind,
				Name:   c.BlockName(e.Kind),
				Offset: e.Offset,
				Length: e.Length,
			})
		}
		info.FrameSets = append(info.FrameSets, fsi)
	}
	return info, nil
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "Usage: tng-tui trajectory.tng")
		os.Exit(2)
	}

	info, err := collect(os.Args[1])
	if err != nil {
		log.Fatalf("Failed to open trajectory: %v", err)
	}

	p := tea.NewProgram(initialModel(info), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		log.Fatalf("Error running program: %v", err)
	}
}
