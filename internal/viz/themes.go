package viz

import "github.com/charmbracelet/lipgloss"

// Theme is the panel colors plus a three-point field palette. Signed fields
// map Low..Mid..High symmetrically about zero.
type Theme struct {
	Name    string
	Primary lipgloss.Color
	Accent  lipgloss.Color
	Text    lipgloss.Color
	Muted   lipgloss.Color
	Warning lipgloss.Color
	Low     lipgloss.Color
	Mid     lipgloss.Color
	High    lipgloss.Color
}

var (
	ThemeCoolWarm = Theme{
		Name:    "coolwarm",
		Primary: lipgloss.Color("#00a8cc"),
		Accent:  lipgloss.Color("#ffd700"),
		Text:    lipgloss.Color("#e0f0ff"),
		Muted:   lipgloss.Color("#4488aa"),
		Warning: lipgloss.Color("#ff4444"),
		Low:     lipgloss.Color("#3b4cc0"),
		Mid:     lipgloss.Color("#dddddd"),
		High:    lipgloss.Color("#b40426"),
	}

	ThemeRetroGreen = Theme{
		Name:    "retro",
		Primary: lipgloss.Color("#00ff00"),
		Accent:  lipgloss.Color("#88ff88"),
		Text:    lipgloss.Color("#00ff00"),
		Muted:   lipgloss.Color("#005500"),
		Warning: lipgloss.Color("#ffff00"),
		Low:     lipgloss.Color("#001100"),
		Mid:     lipgloss.Color("#00aa00"),
		High:    lipgloss.Color("#ccffcc"),
	}

	ThemeSunset = Theme{
		Name:    "sunset",
		Primary: lipgloss.Color("#ff6b6b"),
		Accent:  lipgloss.Color("#feca57"),
		Text:    lipgloss.Color("#fff5f5"),
		Muted:   lipgloss.Color("#8b6b8c"),
		Warning: lipgloss.Color("#ff4757"),
		Low:     lipgloss.Color("#2d1b2e"),
		Mid:     lipgloss.Color("#ff6b6b"),
		High:    lipgloss.Color("#feca57"),
	}

	Themes = []Theme{ThemeCoolWarm, ThemeRetroGreen, ThemeSunset}
)

// GetTheme returns a theme by name, falling back to the first theme.
func GetTheme(name string) Theme {
	for _, t := range Themes {
		if t.Name == name {
			return t
		}
	}
	return Themes[0]
}

func ThemeNames() []string {
	names := make([]string, len(Themes))
	for i, t := range Themes {
		names[i] = t.Name
	}
	return names
}

func nextTheme(cur Theme) Theme {
	for i, t := range Themes {
		if t.Name == cur.Name {
			return Themes[(i+1)%len(Themes)]
		}
	}
	return Themes[0]
}

// Color maps s in [0, 1] onto the palette.
func (t Theme) Color(s float64) lipgloss.Color {
	switch {
	case s <= 0:
		return t.Low
	case s >= 1:
		return t.High
	case s < 0.5:
		return lerpColor(t.Low, t.Mid, 2*s)
	}
	return lerpColor(t.Mid, t.High, 2*s-1)
}
