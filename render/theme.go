package render

import (
	"fmt"
	"strings"

	"github.com/TFMV/topograph/view"
)

// Theme maps the semantic state of a frame to colors. Frames carry no
// colors themselves, so one frame can be drawn in any theme.
type Theme struct {
	Name       string `json:"name"`
	Background string `json:"background"`
	Label      string `json:"label"`
	// LevelColors colors nodes by depth; deeper levels reuse the last entry
	LevelColors   []string `json:"levelColors"`
	Focal         string   `json:"focal"`
	Highlight     string   `json:"highlight"`
	Dimmed        string   `json:"dimmed"`
	Edge          string   `json:"edge"`
	EdgeHighlight string   `json:"edgeHighlight"`
	EdgeDimmed    string   `json:"edgeDimmed"`
	Outline       string   `json:"outline"`
}

// LightTheme is the default theme
func LightTheme() Theme {
	return Theme{
		Name:       "light",
		Background: "#f8f8f8",
		Label:      "#333333",
		LevelColors: []string{
			"#4285F4", // blue
			"#34A853", // green
			"#FBBC05", // yellow
			"#673AB7", // purple
		},
		Focal:         "#EA4335",
		Highlight:     "#FF5722",
		Dimmed:        "#CFD8DC",
		Edge:          "#888888",
		EdgeHighlight: "#EA4335",
		EdgeDimmed:    "#E0E0E0",
		Outline:       "rgba(0,0,0,0.3)",
	}
}

// DarkTheme is a high contrast theme on a dark background
func DarkTheme() Theme {
	return Theme{
		Name:       "dark",
		Background: "#212121",
		Label:      "#EEEEEE",
		LevelColors: []string{
			"#2979FF",
			"#00E676",
			"#FF6D00",
			"#651FFF",
		},
		Focal:         "#F50057",
		Highlight:     "#C6FF00",
		Dimmed:        "#424242",
		Edge:          "#9E9E9E",
		EdgeHighlight: "#00BFA5",
		EdgeDimmed:    "#333333",
		Outline:       "rgba(255,255,255,0.3)",
	}
}

// ThemeByName returns a theme by name. An empty name gives the light theme.
func ThemeByName(name string) (Theme, error) {
	switch strings.ToLower(name) {
	case "", "light", "default":
		return LightTheme(), nil
	case "dark":
		return DarkTheme(), nil
	default:
		return Theme{}, fmt.Errorf("unknown theme: %s", name)
	}
}

// NodeColor returns the fill color of a node in the frame
func (t Theme) NodeColor(f view.Frame, n view.FrameNode) string {
	switch {
	case n.Focal:
		return t.Focal
	case f.Dimmed(n):
		return t.Dimmed
	case n.Highlighted:
		return t.Highlight
	}
	if len(t.LevelColors) == 0 {
		return t.Highlight
	}
	lv := n.Level
	if lv < 0 {
		lv = 0
	}
	if lv >= len(t.LevelColors) {
		lv = len(t.LevelColors) - 1
	}
	return t.LevelColors[lv]
}

// EdgeColor returns the stroke color of an edge in the frame
func (t Theme) EdgeColor(f view.Frame, e view.FrameEdge) string {
	switch {
	case e.Highlighted:
		return t.EdgeHighlight
	case f.Focus != "":
		return t.EdgeDimmed
	default:
		return t.Edge
	}
}
