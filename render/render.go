// Package render draws view frames in static and interactive formats. All
// colors come from the Theme passed in the options.
package render

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/TFMV/topograph/view"
)

// OutputOptions defines rendering configuration options
type OutputOptions struct {
	Format     string  // Output format (svg, ascii, json, dot, html)
	Theme      Theme   // Colors for node and edge states
	FontSize   float64 // Font size for labels
	ShowLabels bool    // Show node labels
	Timestamp  bool    // Include timestamp in the output
	Title      string  // Document title
	LiveURL    string  // Websocket URL for live updates (html only)
}

// Renderer interface defines methods that all rendering backends must implement
type Renderer interface {
	// Render draws the frame using the provided options
	Render(frame view.Frame, options *OutputOptions) ([]byte, error)

	// Name returns the name of the renderer
	Name() string

	// Description returns a description of the renderer
	Description() string
}

// NewDefaultOptions creates a default set of output options
func NewDefaultOptions(format string) *OutputOptions {
	return &OutputOptions{
		Format:     format,
		Theme:      LightTheme(),
		FontSize:   10.0,
		ShowLabels: true,
		Timestamp:  false,
		Title:      "Topograph",
	}
}

// Formats lists the supported output formats
func Formats() []string {
	return []string{"svg", "ascii", "json", "dot", "html"}
}

// GetRenderer returns the appropriate renderer based on format
func GetRenderer(format string) (Renderer, error) {
	switch strings.ToLower(format) {
	case "svg":
		return &SVGRenderer{}, nil
	case "ascii", "txt":
		return &ASCIIRenderer{}, nil
	case "json":
		return &JSONRenderer{}, nil
	case "dot":
		return &DOTRenderer{}, nil
	case "html":
		return &HTMLRenderer{}, nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}

// Generate renders a frame with default options for the format
func Generate(frame view.Frame, format string) ([]byte, error) {
	return GenerateWithOptions(frame, NewDefaultOptions(format))
}

// GenerateWithOptions renders a frame with specific output options
func GenerateWithOptions(frame view.Frame, options *OutputOptions) ([]byte, error) {
	renderer, err := GetRenderer(options.Format)
	if err != nil {
		return nil, err
	}
	return renderer.Render(frame, options)
}

// SVGRenderer outputs SVG format
type SVGRenderer struct{}

// Name returns the name of the renderer
func (r *SVGRenderer) Name() string {
	return "SVG Renderer"
}

// Description returns a description of the renderer
func (r *SVGRenderer) Description() string {
	return "Renders frames as Scalable Vector Graphics (SVG)"
}

// Render creates an SVG representation of the frame
func (r *SVGRenderer) Render(frame view.Frame, options *OutputOptions) ([]byte, error) {
	var buf bytes.Buffer
	theme := options.Theme

	fmt.Fprintf(&buf, `<?xml version="1.0" encoding="UTF-8" standalone="no"?>
<svg width="%g" height="%g" viewBox="0 0 %g %g" xmlns="http://www.w3.org/2000/svg">
<rect width="100%%" height="100%%" fill="%s"/>
`, frame.Width, frame.Height, frame.Width, frame.Height, theme.Background)

	idx := frame.Index()

	// highlighted edges are drawn last so they stay on top
	for _, pass := range []bool{false, true} {
		for _, e := range frame.Edges {
			if e.Highlighted != pass {
				continue
			}
			src, ok1 := idx[e.Source]
			dst, ok2 := idx[e.Target]
			if !ok1 || !ok2 {
				continue
			}
			width := 1.0
			if e.Highlighted {
				width = 2.0
			}
			fmt.Fprintf(&buf, `<line x1="%.2f" y1="%.2f" x2="%.2f" y2="%.2f" stroke="%s" stroke-width="%g" data-edge="%d"/>
`, src.X, src.Y, dst.X, dst.Y, theme.EdgeColor(frame, e), width, e.Index)
		}
	}

	for _, n := range frame.Nodes {
		fmt.Fprintf(&buf, `<circle cx="%.2f" cy="%.2f" r="%g" fill="%s" stroke="%s" stroke-width="0.5" data-id="%s"/>
`, n.X, n.Y, n.Radius, theme.NodeColor(frame, n), theme.Outline, html.EscapeString(n.ID))

		if options.ShowLabels && n.Label != "" {
			labelY := n.Y + n.Radius + options.FontSize + 2 // below the node
			fmt.Fprintf(&buf, `<text x="%.2f" y="%.2f" font-family="sans-serif" font-size="%g" fill="%s" text-anchor="middle">%s</text>
`, n.X, labelY, options.FontSize, theme.Label, html.EscapeString(n.Label))
		}
	}

	if options.Timestamp {
		fmt.Fprintf(&buf, `<text x="5" y="%g" font-family="sans-serif" font-size="8" fill="#808080">%s</text>
`, frame.Height-5, time.Now().Format("2006-01-02 15:04:05"))
	}

	buf.WriteString("</svg>\n")
	return buf.Bytes(), nil
}

// ASCIIRenderer outputs ASCII art format
type ASCIIRenderer struct{}

// Name returns the name of the renderer
func (r *ASCIIRenderer) Name() string {
	return "ASCII Renderer"
}

// Description returns a description of the renderer
func (r *ASCIIRenderer) Description() string {
	return "Renders frames as ASCII art for terminal output"
}

// node symbols by depth; the focal node is drawn as '*'
var levelSymbols = []rune{'@', 'O', 'o'}

const (
	edgeRune          = '.'
	highlightEdgeRune = '+'
	focalRune         = '*'
	dimmedRune        = 'x'
)

func isNodeRune(c rune) bool {
	switch c {
	case '@', 'O', 'o', focalRune, dimmedRune:
		return true
	}
	return false
}

// Render creates an ASCII representation of the frame
func (r *ASCIIRenderer) Render(frame view.Frame, options *OutputOptions) ([]byte, error) {
	// scale down, with a taller cell for the terminal aspect ratio
	width := max(int(frame.Width/10), 40)
	height := max(int(frame.Height/20), 20)

	grid := make([][]rune, height)
	for i := range grid {
		grid[i] = make([]rune, width)
		for j := range grid[i] {
			grid[i][j] = ' '
		}
	}

	for i := 0; i < width; i++ {
		grid[0][i] = '-'
		grid[height-1][i] = '-'
	}
	for i := 0; i < height; i++ {
		grid[i][0] = '|'
		grid[i][width-1] = '|'
	}
	grid[0][0] = '+'
	grid[0][width-1] = '+'
	grid[height-1][0] = '+'
	grid[height-1][width-1] = '+'

	cell := func(x, y float64) (int, int) {
		cx := int(x*float64(width-2)/frame.Width) + 1
		cy := int(y*float64(height-2)/frame.Height) + 1
		return clamp(cx, 1, width-2), clamp(cy, 1, height-2)
	}

	idx := frame.Index()
	for _, e := range frame.Edges {
		src, ok1 := idx[e.Source]
		dst, ok2 := idx[e.Target]
		if !ok1 || !ok2 {
			continue
		}
		x1, y1 := cell(src.X, src.Y)
		x2, y2 := cell(dst.X, dst.Y)
		r := edgeRune
		if e.Highlighted {
			r = highlightEdgeRune
		}
		drawLine(grid, x1, y1, x2, y2, r)
	}

	for _, n := range frame.Nodes {
		x, y := cell(n.X, n.Y)

		symbol := levelSymbols[clamp(n.Level, 0, len(levelSymbols)-1)]
		switch {
		case n.Focal:
			symbol = focalRune
		case frame.Dimmed(n):
			symbol = dimmedRune
		}
		grid[y][x] = symbol

		if options.ShowLabels && n.Label != "" && y+1 < height-1 {
			label := []rune(n.Label)
			for i := 0; i < len(label) && x+i < width-1; i++ {
				if !isNodeRune(grid[y+1][x+i]) {
					grid[y+1][x+i] = label[i]
				}
			}
		}
	}

	title := []rune(options.Title)
	if len(title) < width-4 && height > 3 {
		for i, c := range title {
			grid[1][i+2] = c
		}
	}

	if options.Timestamp && height > 4 {
		timeStr := time.Now().Format("2006-01-02 15:04")
		if len(timeStr) < width-4 {
			for i, c := range timeStr {
				grid[height-2][i+2] = c
			}
		}
	}

	var result strings.Builder
	for _, row := range grid {
		result.WriteString(string(row))
		result.WriteRune('\n')
	}
	return []byte(result.String()), nil
}

// JSONRenderer outputs raw JSON format
type JSONRenderer struct{}

// Name returns the name of the renderer
func (r *JSONRenderer) Name() string {
	return "JSON Renderer"
}

// Description returns a description of the renderer
func (r *JSONRenderer) Description() string {
	return "Renders frames as JSON for machine consumption or custom drawing"
}

type jsonNode struct {
	view.FrameNode
	Color string `json:"color"`
}

type jsonEdge struct {
	view.FrameEdge
	Color string `json:"color"`
}

type jsonFrame struct {
	Nodes    []jsonNode     `json:"nodes"`
	Edges    []jsonEdge     `json:"edges"`
	Metadata map[string]any `json:"metadata"`
}

// Render creates a JSON representation of the frame with theme colors
func (r *JSONRenderer) Render(frame view.Frame, options *OutputOptions) ([]byte, error) {
	out := jsonFrame{
		Nodes: make([]jsonNode, 0, len(frame.Nodes)),
		Edges: make([]jsonEdge, 0, len(frame.Edges)),
		Metadata: map[string]any{
			"kind":       frame.Kind,
			"seq":        frame.Seq,
			"width":      frame.Width,
			"height":     frame.Height,
			"focus":      frame.Focus,
			"theme":      options.Theme.Name,
			"background": options.Theme.Background,
			"nodeCount":  len(frame.Nodes),
			"edgeCount":  len(frame.Edges),
		},
	}
	if options.Timestamp {
		out.Metadata["timestamp"] = time.Now().Format(time.RFC3339)
	}

	for _, n := range frame.Nodes {
		out.Nodes = append(out.Nodes, jsonNode{FrameNode: n, Color: options.Theme.NodeColor(frame, n)})
	}
	for _, e := range frame.Edges {
		out.Edges = append(out.Edges, jsonEdge{FrameEdge: e, Color: options.Theme.EdgeColor(frame, e)})
	}

	return json.MarshalIndent(out, "", "  ")
}

// DOTRenderer outputs Graphviz DOT format
type DOTRenderer struct{}

// Name returns the name of the renderer
func (r *DOTRenderer) Name() string {
	return "DOT Renderer"
}

// Description returns a description of the renderer
func (r *DOTRenderer) Description() string {
	return "Renders frames in Graphviz DOT format with pinned positions"
}

// Render creates a DOT representation of the frame. Positions are given in
// inches so neato -n reproduces the layout.
func (r *DOTRenderer) Render(frame view.Frame, options *OutputOptions) ([]byte, error) {
	var buf bytes.Buffer
	theme := options.Theme

	buf.WriteString("digraph G {\n")
	fmt.Fprintf(&buf, "  graph [bgcolor=%q, size=\"%g,%g\"];\n",
		theme.Background, frame.Width/72.0, frame.Height/72.0)
	fmt.Fprintf(&buf, "  node [shape=circle, style=filled, fontname=\"Arial\", fontsize=%g, fontcolor=%q];\n",
		options.FontSize, theme.Label)

	for _, n := range frame.Nodes {
		label := n.Label
		if label == "" {
			label = n.ID
		}
		// DOT has y growing upwards
		fmt.Fprintf(&buf, "  %s [label=%s, fillcolor=%q, width=%g, pos=\"%.2f,%.2f!\"];\n",
			dotID(n.ID), dotID(label), theme.NodeColor(frame, n), 2*n.Radius/72.0, n.X/72.0, (frame.Height-n.Y)/72.0)
	}

	for _, e := range frame.Edges {
		style := "solid"
		if e.Highlighted {
			style = "bold"
		}
		fmt.Fprintf(&buf, "  %s -> %s [color=%q, style=%s];\n",
			dotID(e.Source), dotID(e.Target), theme.EdgeColor(frame, e), style)
	}

	buf.WriteString("}\n")
	return buf.Bytes(), nil
}

// dotID quotes an identifier for DOT
func dotID(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}

// Clamp a value between lo and hi
func clamp(val, lo, hi int) int {
	if val < lo {
		return lo
	}
	if val > hi {
		return hi
	}
	return val
}

// Draw a line on the ASCII grid using Bresenham's algorithm
func drawLine(grid [][]rune, x1, y1, x2, y2 int, r rune) {
	dx := abs(x2 - x1)
	dy := -abs(y2 - y1)
	sx := 1
	if x1 >= x2 {
		sx = -1
	}
	sy := 1
	if y1 >= y2 {
		sy = -1
	}
	err := dx + dy

	for {
		if y1 >= 0 && y1 < len(grid) && x1 >= 0 && x1 < len(grid[y1]) {
			// highlighted edges win over plain ones
			if c := grid[y1][x1]; c == ' ' || c == edgeRune {
				grid[y1][x1] = r
			}
		}

		if x1 == x2 && y1 == y2 {
			break
		}

		e2 := 2 * err
		if e2 >= dy {
			if x1 == x2 {
				break
			}
			err += dy
			x1 += sx
		}
		if e2 <= dx {
			if y1 == y2 {
				break
			}
			err += dx
			y1 += sy
		}
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
