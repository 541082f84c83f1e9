package viz

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/nsflow/internal/analysis"
	"github.com/san-kum/nsflow/internal/config"
	"github.com/san-kum/nsflow/internal/experiment"
)

func TestCanvas(t *testing.T) {
	c := NewCanvas(2, 1)
	assert.Equal(t, "⠀⠀", c.String())

	c.Set(0, 0)
	c.Set(3, 3)
	c.Set(-1, 0)
	c.Set(4, 0)
	assert.Equal(t, "⠁⢀", c.String())

	c.Clear()
	c.DrawLine(0, 0, 3, 0)
	assert.Equal(t, "⠉⠉", c.String())
}

func TestArrowStaysOnCanvas(t *testing.T) {
	c := NewCanvas(10, 5)
	c.Arrow(2, 10, 12, -4)
	lit := 0
	for _, row := range c.Grid {
		for _, r := range row {
			if r != brailleBlank {
				lit++
			}
		}
	}
	assert.Greater(t, lit, 4)
	assert.Len(t, strings.Split(c.String(), "\n"), 5)
}

func TestThemeColor(t *testing.T) {
	th := ThemeCoolWarm
	assert.Equal(t, th.Low, th.Color(-1))
	assert.Equal(t, th.Low, th.Color(0))
	assert.Equal(t, th.High, th.Color(1))
	assert.Equal(t, th.Mid, th.Color(0.5))
	assert.Equal(t, lipgloss.Color("#808080"), lerpColor("#000000", "#ffffff", 0.5))

	assert.Equal(t, ThemeRetroGreen.Name, nextTheme(ThemeCoolWarm).Name)
	assert.Equal(t, ThemeCoolWarm.Name, GetTheme("missing").Name)
	assert.Equal(t, []string{"coolwarm", "retro", "sunset"}, ThemeNames())
}

func TestHeatmapSize(t *testing.T) {
	rows := [][]float64{{-1, 0, 1}, {2, 3, 4}}
	out := Heatmap(rows, 12, 4, ThemeCoolWarm, true)
	lines := strings.Split(out, "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, 48, strings.Count(out, "▀"))
	assert.Empty(t, Heatmap(nil, 10, 10, ThemeCoolWarm, false))

	flat := newScale([][]float64{{2, 2}}, false)
	assert.Equal(t, 0.5, flat.at(2))
	signed := newScale(rows, true)
	assert.Equal(t, 0.5, signed.at(0))
	assert.Equal(t, 1.0, signed.at(4))
}

func TestArrows(t *testing.T) {
	u := [][]float64{{1, 1}, {1, 1}}
	v := [][]float64{{0, 0}, {0, 0}}
	out := Arrows(u, v, 8, 4, 1)
	assert.Len(t, strings.Split(out, "\n"), 4)
	assert.NotEqual(t, strings.Repeat("⠀", 8), strings.Split(out, "\n")[1])

	still := Arrows(v, v, 4, 2, 1)
	assert.Equal(t, "⠀⠀⠀⠀\n⠀⠀⠀⠀", still)
}

func TestSparkline(t *testing.T) {
	assert.Equal(t, "───", Sparkline(nil, 3))
	s := Sparkline([]float64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, 4)
	assert.Equal(t, 4, utf8.RuneCountInString(s))
	assert.True(t, strings.HasSuffix(s, "█"))
}

func TestMidSlice(t *testing.T) {
	field := make([]float64, 2*2*3)
	for i := range field {
		field[i] = float64(i)
	}
	rows := midSlice([]int{2, 2, 3}, field)
	assert.Equal(t, [][]float64{{4, 5}, {6, 7}}, rows)
}

func TestFeedDeliversEveryFrame(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Grid.N = []int{6, 6}
	cfg.Time = config.TimeConfig{TEnd: 0.04, Dt: 0.01}
	exp, err := experiment.New(cfg, experiment.NewRegistry(), nil)
	require.NoError(t, err)

	feed := NewFeed(context.Background(), exp.Operators(), 1)
	exp.AddProcessor(feed)

	var frames []Frame
	done := make(chan struct{})
	go func() {
		for f := range feed.Frames() {
			frames = append(frames, f)
		}
		close(done)
	}()

	_, err = exp.Run(context.Background())
	require.NoError(t, err)
	<-done

	require.Len(t, frames, 5)
	assert.Equal(t, 0, frames[0].Step)
	assert.Equal(t, 4, frames[4].Step)
	assert.Less(t, frames[4].Divergence, 1e-10)
	assert.Greater(t, frames[4].Energy, 0.0)
	assert.NotNil(t, frames[4].Fields.Vorticity)
}

func TestFeedStopsOnCancel(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Grid.N = []int{6, 6}
	exp, err := experiment.New(cfg, experiment.NewRegistry(), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	feed := NewFeed(ctx, exp.Operators(), 1)
	exp.AddProcessor(feed)

	_, err = exp.Run(context.Background())
	assert.ErrorIs(t, err, context.Canceled)
	_, open := <-feed.Frames()
	assert.False(t, open)
}

func testFrame() Frame {
	ops, _ := experiment.Operators(func() *config.Config {
		c := config.DefaultConfig()
		c.Grid.N = []int{4, 4}
		return c
	}())
	V := make([]float64, ops.NV)
	return Frame{Step: 3, T: 0.3, Dt: 0.1, Energy: 1, Fields: analysis.CellFields(ops, V, make([]float64, ops.Np))}
}

func TestModelPauseStopsReading(t *testing.T) {
	frames := make(chan Frame)
	m := NewModel("cavity", frames, 1, ThemeCoolWarm)
	assert.Contains(t, m.View(), "waiting")

	next, cmd := m.Update(FrameMsg(testFrame()))
	m = next.(Model)
	assert.NotNil(t, cmd)
	assert.True(t, m.have)
	assert.Len(t, m.energy, 1)

	next, cmd = m.Update(tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}})
	m = next.(Model)
	assert.True(t, m.paused)
	assert.Nil(t, cmd)

	next, cmd = m.Update(FrameMsg(testFrame()))
	m = next.(Model)
	assert.Nil(t, cmd)
	assert.False(t, m.waiting)
	assert.Contains(t, m.View(), "paused")

	next, cmd = m.Update(tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}})
	m = next.(Model)
	assert.False(t, m.paused)
	assert.NotNil(t, cmd)
}

func TestModelCyclesViews(t *testing.T) {
	m := NewModel("cavity", nil, 1, ThemeCoolWarm)
	next, _ := m.Update(FrameMsg(testFrame()))
	m = next.(Model)

	seen := map[View]bool{}
	for i := 0; i < int(numViews); i++ {
		next, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'v'}})
		m = next.(Model)
		seen[m.view] = true
		assert.NotEmpty(t, m.View())
	}
	assert.Len(t, seen, int(numViews))

	next, _ = m.Update(DoneMsg{})
	m = next.(Model)
	assert.Contains(t, m.View(), "finished")
}
