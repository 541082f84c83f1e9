package viz

import (
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/san-kum/nsflow/internal/config"
)

var (
	cyan  = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	white = lipgloss.NewStyle().Foreground(lipgloss.Color("255"))
	dim   = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
	green = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
)

const (
	stateMenu = iota
	stateConfig
)

type presetItem struct {
	kind, name string
}

// param is one editable number of the chosen preset.
type param struct {
	name string
	get  func(c *config.Config) float64
	set  func(c *config.Config, v float64)
}

var params = []param{
	{"viscosity", func(c *config.Config) float64 { return c.Viscosity }, func(c *config.Config, v float64) { c.Viscosity = v }},
	{"cells", func(c *config.Config) float64 { return float64(c.Grid.N[0]) }, func(c *config.Config, v float64) {
		for a := range c.Grid.N {
			c.Grid.N[a] = int(v)
		}
	}},
	{"tend", func(c *config.Config) float64 { return c.Time.TEnd }, func(c *config.Config, v float64) { c.Time.TEnd = v }},
	{"dt", func(c *config.Config) float64 { return c.Time.Dt }, func(c *config.Config, v float64) { c.Time.Dt = v }},
	{"cfl", func(c *config.Config) float64 { return c.Time.CFL }, func(c *config.Config, v float64) { c.Time.CFL = v }},
	{"lid", func(c *config.Config) float64 { return c.Lid.Velocity }, func(c *config.Config, v float64) { c.Lid.Velocity = v }},
}

type picker struct {
	state, cursor int
	items         []presetItem
	cfg           *config.Config
	paramCursor   int
	editing       bool
	editBuf       string
	err           error
	chosen        bool
}

func newPicker() picker {
	var items []presetItem
	for _, kind := range config.Cases() {
		for _, name := range config.ListPresets(kind) {
			items = append(items, presetItem{kind, name})
		}
	}
	return picker{items: items}
}

func (m picker) Init() tea.Cmd { return nil }

func (m picker) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	if key.String() == "ctrl+c" {
		return m, tea.Quit
	}
	if m.state == stateMenu {
		return m.menuKey(key)
	}
	return m.configKey(key)
}

func (m picker) menuKey(msg tea.KeyMsg) (picker, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.items)-1 {
			m.cursor++
		}
	case "enter", " ":
		it := m.items[m.cursor]
		m.cfg = config.GetPreset(it.kind, it.name)
		m.state, m.paramCursor, m.err = stateConfig, 0, nil
	}
	return m, nil
}

func (m picker) configKey(msg tea.KeyMsg) (picker, tea.Cmd) {
	p := params[m.paramCursor]
	if m.editing {
		switch msg.String() {
		case "enter":
			if v, err := strconv.ParseFloat(m.editBuf, 64); err == nil {
				p.set(m.cfg, v)
			}
			m.editing, m.editBuf = false, ""
		case "esc":
			m.editing, m.editBuf = false, ""
		case "backspace":
			if len(m.editBuf) > 0 {
				m.editBuf = m.editBuf[:len(m.editBuf)-1]
			}
		default:
			if s := msg.String(); len(s) == 1 && strings.ContainsAny(s, "0123456789.-e") {
				m.editBuf += s
			}
		}
		return m, nil
	}
	switch msg.String() {
	case "q", "esc":
		m.state = stateMenu
	case "up", "k":
		if m.paramCursor > 0 {
			m.paramCursor--
		}
	case "down", "j":
		if m.paramCursor < len(params)-1 {
			m.paramCursor++
		}
	case "enter", " ":
		m.editing, m.editBuf = true, strconv.FormatFloat(p.get(m.cfg), 'g', -1, 64)
	case "s":
		if m.err = m.cfg.Validate(); m.err != nil {
			return m, nil
		}
		m.chosen = true
		return m, tea.Quit
	}
	return m, nil
}

func (m picker) View() string {
	var b strings.Builder
	b.WriteString(cyan.Bold(true).Render("nsflow") + dim.Render("  choose a flow") + "\n\n")
	if m.state == stateMenu {
		for i, it := range m.items {
			cfg := config.GetPreset(it.kind, it.name)
			line := fmt.Sprintf("%-10s %-14s", it.kind, it.name)
			info := fmt.Sprintf("%v ν=%g %s", cfg.Grid.N, cfg.Viscosity, cfg.Method.Name)
			if i == m.cursor {
				b.WriteString(green.Render("▸ "+line) + " " + dim.Render(info) + "\n")
			} else {
				b.WriteString("  " + white.Render(line) + " " + dim.Render(info) + "\n")
			}
		}
		b.WriteString("\n" + helpStyle.Render("↑/↓ move · enter select · q quit"))
		return b.String()
	}

	for i, p := range params {
		val := strconv.FormatFloat(p.get(m.cfg), 'g', 6, 64)
		if m.editing && i == m.paramCursor {
			val = m.editBuf + "▏"
		}
		line := fmt.Sprintf("%-10s %s", p.name, val)
		if i == m.paramCursor {
			b.WriteString(green.Render("▸ "+line) + "\n")
		} else {
			b.WriteString("  " + white.Render(line) + "\n")
		}
	}
	if m.err != nil {
		b.WriteString("\n" + lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Render(m.err.Error()) + "\n")
	}
	b.WriteString("\n" + helpStyle.Render("enter edit · s start · esc back"))
	return b.String()
}

// Pick shows the preset menu and returns the edited configuration, or nil
// when the user quit.
func Pick() (*config.Config, error) {
	final, err := tea.NewProgram(newPicker()).Run()
	if err != nil {
		return nil, err
	}
	m := final.(picker)
	if !m.chosen {
		return nil, nil
	}
	return m.cfg, nil
}
