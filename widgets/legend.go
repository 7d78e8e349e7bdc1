package widgets

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"go-infill/theme"
)

var sparkLevels = []rune("▁▂▃▄▅▆▇█")

// RenderSwatch renders a single colored block
func RenderSwatch(color lipgloss.Color) string {
	return lipgloss.NewStyle().Foreground(color).Render("■")
}

// RenderVelocityLegend shows the velocity colour scale: "pp ■ ■ ■ ... ff"
func RenderVelocityLegend(th *theme.Theme, swatches int) string {
	if swatches < 2 {
		swatches = 2
	}
	var out strings.Builder
	out.WriteString("pp ")
	for i := 0; i < swatches; i++ {
		v := 1 + i*126/(swatches-1)
		out.WriteString(RenderSwatch(th.Velocity(uint8(v))))
		out.WriteString(" ")
	}
	out.WriteString("ff")
	return out.String()
}

// Sparkline maps values onto block heights between their min and max.
// A flat series renders at mid height.
func Sparkline(values []float64) string {
	if len(values) == 0 {
		return ""
	}
	lo, hi := values[0], values[0]
	for _, v := range values {
		lo, hi = min(lo, v), max(hi, v)
	}

	var out strings.Builder
	for _, v := range values {
		level := len(sparkLevels) / 2
		if hi > lo {
			level = int((v - lo) / (hi - lo) * float64(len(sparkLevels)-1))
		}
		out.WriteRune(sparkLevels[level])
	}
	return out.String()
}

// RenderSeries renders "label  ▁▃▅█  first -> last"
func RenderSeries(label string, values []float64) string {
	if len(values) == 0 {
		return fmt.Sprintf("%-12s -", label)
	}
	return fmt.Sprintf("%-12s %s  %g -> %g", label, Sparkline(values), values[0], values[len(values)-1])
}

// RenderKeyHelp formats key bindings in a friendly way
func RenderKeyHelp(sections []KeySection) string {
	var lines []string
	for _, sec := range sections {
		if sec.Title != "" {
			lines = append(lines, sec.Title)
		}
		for _, k := range sec.Keys {
			lines = append(lines, fmt.Sprintf("  %-12s %s", k.Key, k.Desc))
		}
	}
	return strings.Join(lines, "\n")
}

// KeySection groups related key bindings
type KeySection struct {
	Title string
	Keys  []KeyBinding
}

// KeyBinding is a single key and its description
type KeyBinding struct {
	Key  string
	Desc string
}
