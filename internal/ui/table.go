package ui

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/f451labs/telemetry/internal/compute"
)

const (
	// BlankValue is shown for missing readings.
	BlankValue = "--"
	// ErrorValue is shown when the current reading is out of range.
	ErrorValue = "Error"

	labelWidth   = 12
	currentWidth = 16
	// Four borders plus one space of padding on each side of three cells.
	tableChrome = 4 + 6
)

var numbers = message.NewPrinter(language.English)

// TableOptions control how Table lays out rows.
type TableOptions struct {
	// LabelsOnly renders labels with blank values and no history.
	LabelsOnly bool

	// Width is the total table width. Values below the fixed column widths
	// leave no room for history.
	Width int

	Palette compute.TriPalette
}

// Table renders rows as a boxed Description | Current | History table in
// the order given by types. Types without a row are skipped.
func Table(rows map[string]compute.Row, types []string, opts TableOptions) string {
	if opts.Palette == (compute.TriPalette{}) {
		opts.Palette = compute.DefaultTriPalette()
	}
	histWidth := max(opts.Width-labelWidth-currentWidth-tableChrome, 0)
	widths := [3]int{labelWidth, currentWidth, histWidth}

	var b strings.Builder
	b.WriteString(rule('╒', '═', '╤', '╕', widths))
	b.WriteString(line(widths,
		fit("Description", labelWidth, alignCenter),
		fit("Current", currentWidth, alignCenter),
		fit("History", histWidth, alignCenter)))
	b.WriteString(rule('╞', '═', '╪', '╡', widths))

	var n int
	for _, name := range types {
		r, ok := rows[name]
		if !ok {
			continue
		}
		if n > 0 {
			b.WriteString(rule('├', '─', '┼', '┤', widths))
		}
		n++
		b.WriteString(line(widths,
			fit(r.Label, labelWidth, alignLeft),
			fit(CurrentValue(r, opts.LabelsOnly), currentWidth, alignLeft),
			fit(history(r, histWidth, opts), histWidth, alignCenter)))
	}
	if n == 0 {
		b.WriteString(line(widths, fit("", labelWidth, alignLeft), fit("", currentWidth, alignLeft), fit("", histWidth, alignLeft)))
	}
	b.WriteString(rule('└', '─', '┴', '┘', widths))
	return b.String()
}

// CurrentValue formats the current column: trend arrow, value right-aligned
// in eight columns with thousands separators, and unit.
func CurrentValue(r compute.Row, labelsOnly bool) string {
	switch {
	case labelsOnly || (!r.Current.Present && r.CurrentOK):
		return paint(compute.DefaultColor, strings.TrimRight(numbers.Sprintf("  %8s %s", BlankValue, r.Unit), " "))
	case !r.CurrentOK:
		return paint(r.CurrentColor(), numbers.Sprintf("  %8s", ErrorValue))
	default:
		s := numbers.Sprintf("%s %8.2f %s", r.Trend.Arrow(), r.Current.Value, r.Unit)
		return paint(r.CurrentColor(), strings.TrimRight(s, " "))
	}
}

func history(r compute.Row, w int, opts TableOptions) string {
	if opts.LabelsOnly || len(r.Graph) == 0 || w == 0 {
		return ""
	}
	g := r.Graph
	if len(g) > w {
		g = g[len(g)-w:]
	}
	return Sparkline(g, r.Min, r.Max, r.Emphasis, opts.Palette)
}

func rule(left, fill, mid, right rune, widths [3]int) string {
	var b strings.Builder
	b.WriteRune(left)
	for i, w := range widths {
		if i > 0 {
			b.WriteRune(mid)
		}
		b.WriteString(strings.Repeat(string(fill), w+2))
	}
	b.WriteRune(right)
	b.WriteByte('\n')
	return b.String()
}

func line(widths [3]int, cells ...string) string {
	var b strings.Builder
	b.WriteString("│")
	for i, c := range cells {
		if i > 0 {
			b.WriteString("│")
		}
		b.WriteString(" " + fit(c, widths[i], alignLeft) + " ")
	}
	b.WriteString("│\n")
	return b.String()
}
