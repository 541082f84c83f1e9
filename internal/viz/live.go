package viz

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/nsflow/internal/analysis"
	"github.com/san-kum/nsflow/internal/grid"
	"github.com/san-kum/nsflow/internal/sim"
)

const historyCapacity = 600

type View int

const (
	ViewVorticity View = iota
	ViewSpeed
	ViewPressure
	ViewU
	ViewV
	ViewArrows
	numViews
)

func (v View) String() string {
	return [...]string{"vorticity", "speed", "pressure", "u", "v", "arrows"}[v]
}

type FrameMsg Frame

// DoneMsg reports the end of the background run.
type DoneMsg struct {
	Result *sim.Result
	Err    error
}

type Model struct {
	title    string
	frames   <-chan Frame
	tEnd     float64
	theme    Theme
	view     View
	frame    Frame
	have     bool
	energy   []float64
	div      []float64
	paused   bool
	waiting  bool
	finished bool
	result   *sim.Result
	err      error
	showHelp bool
	width    int
	height   int
}

// NewModel starts waiting because Init issues the first read.
func NewModel(title string, frames <-chan Frame, tEnd float64, th Theme) Model {
	return Model{
		title:   title,
		frames:  frames,
		tEnd:    tEnd,
		theme:   th,
		waiting: true,
		energy:  make([]float64, 0, historyCapacity),
		div:     make([]float64, 0, historyCapacity),
		width:   120,
		height:  32,
	}
}

func waitFrame(ch <-chan Frame) tea.Cmd {
	return func() tea.Msg {
		f, ok := <-ch
		if !ok {
			return nil
		}
		return FrameMsg(f)
	}
}

func (m Model) Init() tea.Cmd {
	return waitFrame(m.frames)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case " ":
			m.paused = !m.paused
			if !m.paused && !m.waiting && !m.finished {
				m.waiting = true
				return m, waitFrame(m.frames)
			}
		case "v":
			m.view = m.nextView()
		case "t":
			m.theme = nextTheme(m.theme)
		case "?":
			m.showHelp = !m.showHelp
		}
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
	case FrameMsg:
		m.waiting = false
		m.frame, m.have = Frame(msg), true
		m.energy = push(m.energy, msg.Energy)
		m.div = push(m.div, msg.Divergence)
		if !m.paused {
			m.waiting = true
			return m, waitFrame(m.frames)
		}
	case DoneMsg:
		m.finished = true
		m.result, m.err = msg.Result, msg.Err
	}
	return m, nil
}

func (m Model) nextView() View {
	v := m.view
	for {
		v = (v + 1) % numViews
		if v != ViewVorticity || (m.have && m.frame.Fields.Vorticity != nil) {
			return v
		}
	}
}

func push(xs []float64, v float64) []float64 {
	if len(xs) == historyCapacity {
		copy(xs, xs[1:])
		xs = xs[:len(xs)-1]
	}
	return append(xs, v)
}

func (m Model) View() string {
	header := lipgloss.NewStyle().Bold(true).Foreground(m.theme.Primary).Render(m.title)
	if !m.have {
		return header + "\n\nwaiting for the first frame..."
	}
	cols := min(max(m.width-52, 20), 120)
	lines := min(max(m.height-6, 8), 48)

	field := m.renderField(cols, lines)
	body := lipgloss.JoinHorizontal(lipgloss.Top, field, panelStyle.Render(m.renderStats()))
	out := header + "  " + helpStyle.Render(m.view.String()) + "\n\n" + body
	if m.showHelp {
		out += "\n\n" + helpStyle.Render("space pause · v field · t theme · q quit")
	}
	return out
}

func (m Model) renderField(cols, lines int) string {
	f := m.frame.Fields
	rows := func(x []float64) [][]float64 { return midSlice(f.Shape, x) }
	switch m.view {
	case ViewVorticity:
		if f.Vorticity != nil {
			return Heatmap(rows(f.Vorticity), cols, lines, m.theme, true)
		}
	case ViewSpeed:
		return Heatmap(rows(f.Speed), cols, lines, m.theme, false)
	case ViewPressure:
		if f.Pressure != nil {
			return Heatmap(rows(f.Pressure), cols, lines, m.theme, false)
		}
	case ViewU:
		return Heatmap(rows(f.Velocity[0]), cols, lines, m.theme, true)
	case ViewV:
		return Heatmap(rows(f.Velocity[1]), cols, lines, m.theme, true)
	case ViewArrows:
		return Arrows(rows(f.Velocity[0]), rows(f.Velocity[1]), cols, lines, max(f.Shape[0]/16, 1))
	}
	return Heatmap(rows(f.Speed), cols, lines, m.theme, false)
}

// midSlice returns the rows of a 2D field, or of the middle z plane of a
// 3D one.
func midSlice(shape []int, field []float64) [][]float64 {
	nx, ny := shape[0], shape[1]
	off := 0
	if len(shape) == 3 {
		off = shape[2] / 2 * nx * ny
	}
	return analysis.Rows(shape[:2], field[off:off+nx*ny])
}

func (m Model) renderStats() string {
	fr := m.frame
	var b strings.Builder
	status := "running"
	switch {
	case m.finished && m.err != nil && !errors.Is(m.err, context.Canceled):
		status = "failed"
	case m.finished:
		status = "finished"
	case m.paused:
		status = "paused"
	}
	b.WriteString(statLine("status", status) + "\n")
	b.WriteString(statLine("step", fmt.Sprintf("%d", fr.Step)) + "\n")
	b.WriteString(statLine("t", fmt.Sprintf("%.4f / %.4g", fr.T, m.tEnd)) + "\n")
	b.WriteString(statLine("dt", fmt.Sprintf("%.3e", fr.Dt)) + "\n")
	b.WriteString(statLine("energy", fmt.Sprintf("%.6e", fr.Energy)) + "\n")
	b.WriteString(statLine("divergence", fmt.Sprintf("%.2e", fr.Divergence)) + "\n")
	if m.tEnd > 0 {
		b.WriteString("\n" + ProgressBar(fr.T/m.tEnd, 30, m.theme) + "\n")
	}
	if len(m.energy) > 1 {
		b.WriteString("\n" + asciigraph.Plot(m.energy,
			asciigraph.Height(8),
			asciigraph.Width(30),
			asciigraph.Caption("kinetic energy"),
		) + "\n")
	}
	b.WriteString("\n" + helpStyle.Render("div ") + Sparkline(m.div, 30) + "\n")
	if m.result != nil {
		b.WriteString("\n" + statLine("shortfalls", fmt.Sprintf("%d", m.result.Shortfalls)) + "\n")
	}
	if m.err != nil && !errors.Is(m.err, context.Canceled) {
		b.WriteString("\n" + lipgloss.NewStyle().Foreground(m.theme.Warning).Render(m.err.Error()) + "\n")
	}
	return b.String()
}

type Options struct {
	Title string
	Theme string
	Every int
}

// Live runs s in the background and shows it until the user quits. Quitting
// cancels the run; the partial result is returned without error.
func Live(ctx context.Context, s *sim.Simulator, ops *grid.Operators, V0 []float64, cfg sim.Config, opts Options) (*sim.Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	feed := NewFeed(ctx, ops, opts.Every)
	s.AddProcessor(feed)
	model := NewModel(opts.Title, feed.Frames(), cfg.TEnd, GetTheme(opts.Theme))
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	done := make(chan DoneMsg, 1)
	go func() {
		res, err := s.Run(ctx, V0, nil, 0, cfg)
		done <- DoneMsg{Result: res, Err: err}
		p.Send(DoneMsg{Result: res, Err: err})
	}()

	_, uiErr := p.Run()
	cancel()
	out := <-done
	if uiErr != nil && !errors.Is(uiErr, tea.ErrProgramKilled) {
		return out.Result, uiErr
	}
	if errors.Is(out.Err, context.Canceled) {
		return out.Result, nil
	}
	return out.Result, out.Err
}
