package cmd

import (
	"fmt"
	"os"
	"sort"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	threatmodelapp "github.com/khanhnv2901/seca-suite/internal/application/threatmodel"
	"github.com/khanhnv2901/seca-suite/internal/domain/diagram"
)

const (
	moveStep     = 20.0
	moveStepFast = 100.0
	mapRows      = 16
	maxMapCols   = 96
	maxNotices   = 3
	listWindow   = 10
)

const editorHelp = `Keys:
  tab/shift+tab  select component     arrows, hjkl  move (shift: faster)
  a  add component      c  connect from selection     e  rename
  s  cycle sensitivity  d  delete component           [ ]  pick connection
  x  delete connection  o  auto layout                w  save
  esc cancel            ?  help                       q  quit`

var threatEditCmd = &cobra.Command{
	Use:   "edit <diagram-id>",
	Short: "Open the terminal diagram editor",
	Long:  editorHelp,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := args[0]
		if err := validateDiagramID(id); err != nil {
			return err
		}
		if !isTerminal(os.Stdout) {
			return &InputError{Reason: "the editor needs a terminal"}
		}
		svc, err := threatService(cmd)
		if err != nil {
			return err
		}
		ctx := commandContext(cmd)
		m := newEditorModel(func(sess *threatmodelapp.Session) error { return svc.Save(ctx, sess) })
		sess, err := svc.Open(ctx, id, m)
		if err != nil {
			return diagramError(id, err)
		}
		m.attach(sess)

		if _, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run(); err != nil {
			return fmt.Errorf("editor failed: %w", err)
		}
		if sess.Dirty() {
			fmt.Fprintf(cmd.ErrOrStderr(), "%s unsaved changes to %s were discarded\n", colorWarn("⚠"), id)
		}
		return nil
	},
}

type editorMode int

const (
	modeNormal editorMode = iota
	modePalette
	modeConnect
	modeProtocol
	modeCustomProtocol
	modeRename
	modeConfirm
	modeQuit
)

var (
	tuiTitleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4"))
	tuiBoxStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#555555"))
	tuiSelectedStyle = lipgloss.NewStyle().Reverse(true).Bold(true)
	tuiDimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	tuiWarnStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFB000"))
	tuiOKStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575"))
	tuiAccentStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#00A6ED"))
)

// editorModel drives a diagram Session from the keyboard. Destructive actions
// are confirmed in the UI before they are dispatched, so the model is also the
// session's Confirmer.
type editorModel struct {
	sess *threatmodelapp.Session
	save func(*threatmodelapp.Session) error

	mode     editorMode
	palette  int
	protocol int
	flow     int
	anchor   diagram.Anchor
	input    string
	help     bool

	confirmLabel string
	onConfirm    func()
	approved     bool

	notices []diagram.Notice
	width   int
}

func newEditorModel(save func(*threatmodelapp.Session) error) *editorModel {
	return &editorModel{save: save, anchor: diagram.AnchorRight, flow: -1}
}

func (m *editorModel) attach(sess *threatmodelapp.Session) { m.sess = sess }

// Confirm implements diagram.Confirmer.
func (m *editorModel) Confirm(string) bool { return m.approved }

func (m *editorModel) Init() tea.Cmd { return nil }

func (m *editorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		switch m.mode {
		case modePalette:
			return m.updatePalette(msg)
		case modeConnect:
			return m.updateConnect(msg)
		case modeProtocol:
			return m.updateProtocol(msg)
		case modeCustomProtocol, modeRename:
			return m.updateInput(msg)
		case modeConfirm:
			return m.updateConfirm(msg)
		case modeQuit:
			return m.updateQuit(msg)
		}
		return m.updateNormal(msg)
	}
	return m, nil
}

func (m *editorModel) updateNormal(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		if m.sess.Dirty() {
			m.mode = modeQuit
			return m, nil
		}
		return m, tea.Quit
	case "?":
		m.help = !m.help
	case "tab":
		m.cycleSelection(1)
	case "shift+tab":
		m.cycleSelection(-1)
	case "left", "h":
		m.move(-moveStep, 0)
	case "right", "l":
		m.move(moveStep, 0)
	case "up", "k":
		m.move(0, -moveStep)
	case "down", "j":
		m.move(0, moveStep)
	case "shift+left", "H":
		m.move(-moveStepFast, 0)
	case "shift+right", "L":
		m.move(moveStepFast, 0)
	case "shift+up", "K":
		m.move(0, -moveStepFast)
	case "shift+down", "J":
		m.move(0, moveStepFast)
	case "a":
		m.mode = modePalette
	case "c":
		m.startConnect()
	case "e":
		if c, ok := m.selected(); ok {
			m.input = c.Name
			m.mode = modeRename
		} else {
			m.warn("No component selected")
		}
	case "s":
		m.cycleSensitivity()
	case "d", "delete":
		if c, ok := m.selected(); ok {
			m.ask(fmt.Sprintf("Delete %q and its connections?", c.Name), func() {
				m.dispatch(diagram.DeleteSelected{})
			})
		} else {
			m.warn("No component selected")
		}
	case "]":
		m.cycleFlow(1)
	case "[":
		m.cycleFlow(-1)
	case "x":
		if f, ok := m.selectedFlow(); ok {
			m.ask(fmt.Sprintf("Delete %s connection %s?", f.Protocol, f.ID), func() {
				m.dispatch(diagram.DeleteConnection{ConnectionID: f.ID})
				m.flow = -1
			})
		} else {
			m.warn("No connection selected (use [ and ])")
		}
	case "o":
		m.dispatch(diagram.RunAutoLayout{})
	case "w", "ctrl+s":
		m.saveNow()
	case "esc":
		m.dispatch(diagram.ClickCanvas{})
	}
	return m, nil
}

func (m *editorModel) updatePalette(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	kinds := diagram.ComponentKinds()
	switch msg.String() {
	case "up", "k":
		m.palette = (m.palette - 1 + len(kinds)) % len(kinds)
	case "down", "j":
		m.palette = (m.palette + 1) % len(kinds)
	case "enter":
		kind := kinds[m.palette]
		c := m.canvas().Center()
		out := m.dispatch(diagram.AddComponent{Type: kind.Type, X: c.X - diagram.NodeWidth/2, Y: c.Y - diagram.NodeHeight/2})
		if out.Created != "" {
			m.dispatch(diagram.Select{ComponentID: out.Created})
		}
		m.mode = modeNormal
	case "esc":
		m.mode = modeNormal
	}
	return m, nil
}

func (m *editorModel) startConnect() {
	c, ok := m.selected()
	if !ok {
		m.warn("Select the source component first")
		return
	}
	out := m.dispatch(diagram.ClickAnchor{ComponentID: c.ID, Anchor: m.anchor})
	if out.State == diagram.StateConnecting {
		m.mode = modeConnect
		m.anchor = diagram.AnchorLeft
	}
}

func (m *editorModel) updateConnect(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "tab":
		m.cycleSelection(1)
	case "shift+tab":
		m.cycleSelection(-1)
	case "1":
		m.anchor = diagram.AnchorTop
	case "2":
		m.anchor = diagram.AnchorRight
	case "3":
		m.anchor = diagram.AnchorBottom
	case "4":
		m.anchor = diagram.AnchorLeft
	case "enter":
		c, ok := m.selected()
		if !ok {
			return m, nil
		}
		out := m.dispatch(diagram.ClickAnchor{ComponentID: c.ID, Anchor: m.anchor})
		m.anchor = diagram.AnchorRight
		if out.Prompt != nil {
			m.protocol = 0
			m.mode = modeProtocol
		} else {
			m.mode = modeNormal
		}
	case "esc":
		m.dispatch(diagram.ClickCanvas{})
		m.anchor = diagram.AnchorRight
		m.mode = modeNormal
	}
	return m, nil
}

func (m *editorModel) updateProtocol(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	prompt := m.sess.Editor().PendingPrompt()
	if prompt == nil {
		m.mode = modeNormal
		return m, nil
	}
	n := len(prompt.Options)
	switch msg.String() {
	case "up", "k":
		m.protocol = (m.protocol - 1 + n) % n
	case "down", "j":
		m.protocol = (m.protocol + 1) % n
	case "enter":
		choice := prompt.Options[m.protocol]
		if choice == diagram.CustomProtocol {
			m.input = ""
			m.mode = modeCustomProtocol
			return m, nil
		}
		m.dispatch(diagram.ChooseProtocol{Protocol: choice})
		m.mode = modeNormal
	case "esc":
		m.dispatch(diagram.CancelProtocol{})
		m.mode = modeNormal
	}
	return m, nil
}

func (m *editorModel) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		if m.mode == modeCustomProtocol {
			out := m.dispatch(diagram.ChooseProtocol{Protocol: diagram.CustomProtocol, Custom: m.input})
			if out.Prompt == nil {
				m.mode = modeNormal
			}
			return m, nil
		}
		if c, ok := m.selected(); ok {
			m.dispatch(diagram.EditComponent{ComponentID: c.ID, Name: m.input, Sensitivity: c.Sensitivity, Description: c.Description})
		}
		m.mode = modeNormal
	case tea.KeyEsc:
		if m.mode == modeCustomProtocol {
			m.mode = modeProtocol
		} else {
			m.mode = modeNormal
		}
	case tea.KeyBackspace:
		if r := []rune(m.input); len(r) > 0 {
			m.input = string(r[:len(r)-1])
		}
	case tea.KeySpace:
		m.input += " "
	case tea.KeyRunes:
		m.input += string(msg.Runes)
	}
	return m, nil
}

func (m *editorModel) ask(label string, fn func()) {
	m.confirmLabel = label
	m.onConfirm = fn
	m.mode = modeConfirm
}

func (m *editorModel) updateConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "Y":
		m.approved = true
		m.onConfirm()
		m.approved = false
		m.mode = modeNormal
	case "n", "N", "esc":
		m.mode = modeNormal
	}
	return m, nil
}

func (m *editorModel) updateQuit(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "Y":
		if m.saveNow() {
			return m, tea.Quit
		}
		m.mode = modeNormal
	case "n", "N":
		return m, tea.Quit
	case "esc":
		m.mode = modeNormal
	}
	return m, nil
}

// dispatch forwards an action and keeps the latest notices.
func (m *editorModel) dispatch(a diagram.Action) diagram.Outcome {
	out := m.sess.Dispatch(a)
	for _, n := range out.Notices {
		m.notify(n)
	}
	return out
}

func (m *editorModel) notify(n diagram.Notice) {
	m.notices = append(m.notices, n)
	if len(m.notices) > maxNotices {
		m.notices = m.notices[len(m.notices)-maxNotices:]
	}
}

func (m *editorModel) warn(msg string) {
	m.notify(diagram.Notice{Level: diagram.NoticeWarning, Message: msg})
}

func (m *editorModel) saveNow() bool {
	if err := m.save(m.sess); err != nil {
		m.notify(diagram.Notice{Level: diagram.NoticeError, Message: err.Error()})
		return false
	}
	m.notify(diagram.Notice{Level: diagram.NoticeSuccess, Message: "Saved " + m.sess.ID()})
	return true
}

func (m *editorModel) canvas() diagram.Canvas {
	return m.sess.Editor().Model().Graph.Canvas()
}

func (m *editorModel) components() []diagram.Component {
	return m.sess.Editor().Model().Graph.Components()
}

func (m *editorModel) selected() (diagram.Component, bool) {
	id := m.sess.Editor().Selected()
	if id == "" {
		return diagram.Component{}, false
	}
	return m.sess.Editor().Model().Graph.Component(id)
}

func (m *editorModel) cycleSelection(step int) {
	comps := m.components()
	if len(comps) == 0 {
		return
	}
	idx := -1
	cur := m.sess.Editor().Selected()
	for i, c := range comps {
		if c.ID == cur {
			idx = i
			break
		}
	}
	if idx < 0 && step < 0 {
		idx = 0
	}
	next := (idx + step + len(comps)) % len(comps)
	m.dispatch(diagram.Select{ComponentID: comps[next].ID})
}

func (m *editorModel) cycleFlow(step int) {
	flows := m.sess.Editor().Model().Graph.Connections()
	if len(flows) == 0 {
		m.flow = -1
		return
	}
	if m.flow < 0 && step < 0 {
		m.flow = 0
	}
	m.flow = (m.flow + step + len(flows)) % len(flows)
}

func (m *editorModel) selectedFlow() (diagram.Connection, bool) {
	flows := m.sess.Editor().Model().Graph.Connections()
	if m.flow < 0 || m.flow >= len(flows) {
		return diagram.Connection{}, false
	}
	return flows[m.flow], true
}

// move drags the selected component by (dx, dy) grabbing its top-left corner.
func (m *editorModel) move(dx, dy float64) {
	c, ok := m.selected()
	if !ok {
		m.warn("No component selected")
		return
	}
	m.dispatch(diagram.PointerDown{ComponentID: c.ID, X: c.Position.X, Y: c.Position.Y})
	m.dispatch(diagram.PointerMove{X: c.Position.X + dx, Y: c.Position.Y + dy})
	m.dispatch(diagram.PointerUp{})
}

func (m *editorModel) cycleSensitivity() {
	c, ok := m.selected()
	if !ok {
		m.warn("No component selected")
		return
	}
	next := map[diagram.Sensitivity]diagram.Sensitivity{
		diagram.SensitivityLow:    diagram.SensitivityMedium,
		diagram.SensitivityMedium: diagram.SensitivityHigh,
		diagram.SensitivityHigh:   diagram.SensitivityLow,
	}[c.Sensitivity]
	if next == "" {
		next = diagram.SensitivityMedium
	}
	m.dispatch(diagram.EditComponent{ComponentID: c.ID, Name: c.Name, Sensitivity: next, Description: c.Description})
}

func (m *editorModel) View() string {
	var b strings.Builder
	data := m.sess.Snapshot()

	dirty := ""
	if m.sess.Dirty() {
		dirty = tuiWarnStyle.Render(" [modified]")
	}
	fmt.Fprintf(&b, "%s %s%s  %s\n",
		tuiTitleStyle.Render(data.Name), tuiDimStyle.Render("("+m.sess.ID()+")"), dirty,
		tuiDimStyle.Render(m.sess.Editor().State().String()))

	b.WriteString(tuiBoxStyle.Render(m.renderMap(data.Components)))
	b.WriteString("\n")
	b.WriteString(m.renderFlows(data))

	switch m.mode {
	case modePalette:
		b.WriteString(m.renderPalette())
	case modeProtocol:
		b.WriteString(m.renderProtocols())
	case modeCustomProtocol:
		fmt.Fprintf(&b, "\nProtocol: %s█\n", m.input)
	case modeRename:
		fmt.Fprintf(&b, "\nName: %s█\n", m.input)
	case modeConfirm:
		fmt.Fprintf(&b, "\n%s %s\n", tuiWarnStyle.Render(m.confirmLabel), tuiDimStyle.Render("(y/n)"))
	case modeQuit:
		fmt.Fprintf(&b, "\n%s %s\n", tuiWarnStyle.Render("Save changes before quitting?"), tuiDimStyle.Render("(y/n, esc to stay)"))
	case modeConnect:
		fmt.Fprintf(&b, "\n%s destination with tab, anchor %s (1-4), enter to connect, esc to cancel\n",
			tuiAccentStyle.Render("Connecting:"), m.anchor)
	}

	b.WriteString("\n")
	for _, n := range m.notices {
		b.WriteString(renderNotice(n))
		b.WriteString("\n")
	}
	if m.help {
		b.WriteString(tuiDimStyle.Render(editorHelp))
	} else {
		b.WriteString(tuiDimStyle.Render("a add  c connect  e rename  s sensitivity  d delete  o layout  w save  ? help  q quit"))
	}
	b.WriteString("\n")
	return b.String()
}

type placement struct {
	col      int
	label    string
	selected bool
}

// renderMap scales component positions onto a character grid.
func (m *editorModel) renderMap(comps []diagram.Component) string {
	cols := maxMapCols
	if m.width > 0 && m.width-4 < cols {
		cols = m.width - 4
	}
	if cols < 20 {
		cols = 20
	}
	canvas := m.canvas()
	selected := m.sess.Editor().Selected()

	rows := make([][]placement, mapRows)
	for _, c := range comps {
		pos, _ := m.sess.Editor().PositionOf(c.ID)
		row := scale(pos.Y, canvas.Height, mapRows)
		col := scale(pos.X, canvas.Width, cols)
		kind, _ := diagram.LookupComponentKind(c.Type)
		label := truncate(kind.Glyph+" "+c.Name, 18)
		if c.Sensitivity == diagram.SensitivityHigh {
			label += "!"
		}
		rows[row] = append(rows[row], placement{col: col, label: "[" + label + "]", selected: c.ID == selected})
	}

	lines := make([]string, mapRows)
	for i, ps := range rows {
		sort.Slice(ps, func(a, b int) bool { return ps[a].col < ps[b].col })
		var line strings.Builder
		used := 0
		for _, p := range ps {
			if p.col > used {
				line.WriteString(strings.Repeat(" ", p.col-used))
				used = p.col
			}
			if p.selected {
				line.WriteString(tuiSelectedStyle.Render(p.label))
			} else {
				line.WriteString(p.label)
			}
			used += len([]rune(p.label)) + 1
			line.WriteString(" ")
		}
		if used < cols {
			line.WriteString(strings.Repeat(" ", cols-used))
		}
		lines[i] = line.String()
	}
	return strings.Join(lines, "\n")
}

func (m *editorModel) renderFlows(data diagram.SystemData) string {
	if len(data.DataFlows) == 0 {
		return tuiDimStyle.Render("No data flows yet (select a component and press c)") + "\n"
	}
	names := make(map[string]string, len(data.Components))
	for _, c := range data.Components {
		names[c.ID] = c.Name
	}
	var b strings.Builder
	for i, f := range data.DataFlows {
		line := fmt.Sprintf("%s → %s  %s (%s)", names[f.SourceID], names[f.DestinationID], f.Protocol, f.DataType)
		if !diagram.IsEncrypted(f.Protocol) {
			line = tuiWarnStyle.Render(line)
		}
		marker := "  "
		if i == m.flow {
			marker = tuiAccentStyle.Render("▶ ")
		}
		b.WriteString(marker + line + "\n")
	}
	return b.String()
}

func (m *editorModel) renderPalette() string {
	kinds := diagram.ComponentKinds()
	var b strings.Builder
	b.WriteString("\n" + tuiAccentStyle.Render("Add component") + " " + tuiDimStyle.Render("(↑/↓, enter, esc)") + "\n")
	start, end := window(m.palette, len(kinds))
	for i := start; i < end; i++ {
		k := kinds[i]
		line := fmt.Sprintf("%-5s %-26s %s", k.Glyph, k.Label, tuiDimStyle.Render(k.Group))
		if i == m.palette {
			line = tuiSelectedStyle.Render(line)
		}
		b.WriteString("  " + line + "\n")
	}
	return b.String()
}

func (m *editorModel) renderProtocols() string {
	prompt := m.sess.Editor().PendingPrompt()
	if prompt == nil {
		return ""
	}
	graph := m.sess.Editor().Model().Graph
	src, _ := graph.Component(prompt.SourceID)
	dst, _ := graph.Component(prompt.DestinationID)

	var b strings.Builder
	fmt.Fprintf(&b, "\n%s %s → %s %s\n", tuiAccentStyle.Render("Protocol for"), src.Name, dst.Name, tuiDimStyle.Render("(↑/↓, enter, esc)"))
	start, end := window(m.protocol, len(prompt.Options))
	for i := start; i < end; i++ {
		line := prompt.Options[i]
		if line != diagram.CustomProtocol {
			line = fmt.Sprintf("%-12s %s", line, tuiDimStyle.Render(diagram.DataTypeFor(line)))
		}
		if i == m.protocol {
			line = tuiSelectedStyle.Render(line)
		}
		b.WriteString("  " + line + "\n")
	}
	return b.String()
}

func renderNotice(n diagram.Notice) string {
	switch n.Level {
	case diagram.NoticeSuccess:
		return tuiOKStyle.Render("✓ " + n.Message)
	case diagram.NoticeWarning, diagram.NoticeError:
		return tuiWarnStyle.Render("⚠ " + n.Message)
	}
	return tuiAccentStyle.Render("ℹ " + n.Message)
}

func scale(v, span float64, cells int) int {
	if span <= 0 {
		return 0
	}
	i := int(v / span * float64(cells))
	if i < 0 {
		return 0
	}
	if i >= cells {
		return cells - 1
	}
	return i
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// window returns the visible slice of a list around the cursor.
func window(cursor, n int) (int, int) {
	start := cursor - listWindow/2
	if start < 0 {
		start = 0
	}
	end := start + listWindow
	if end > n {
		end = n
		start = end - listWindow
		if start < 0 {
			start = 0
		}
	}
	return start, end
}

func init() {
	threatCmd.AddCommand(threatEditCmd)
}
