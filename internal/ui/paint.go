package ui

import (
	"regexp"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"
)

// Terminal color names understood by paint. Unknown names print uncolored.
var attrs = map[string]color.Attribute{
	"black":         color.FgBlack,
	"red":           color.FgRed,
	"green":         color.FgGreen,
	"yellow":        color.FgYellow,
	"blue":          color.FgBlue,
	"magenta":       color.FgMagenta,
	"cyan":          color.FgCyan,
	"white":         color.FgWhite,
	"grey":          color.FgHiBlack,
	"gray":          color.FgHiBlack,
	"dark_grey":     color.FgHiBlack,
	"light_red":     color.FgHiRed,
	"light_green":   color.FgHiGreen,
	"light_yellow":  color.FgHiYellow,
	"light_blue":    color.FgHiBlue,
	"light_magenta": color.FgHiMagenta,
	"light_cyan":    color.FgHiCyan,
	"light_grey":    color.FgWhite,
}

func paint(name, s string) string {
	a, ok := attrs[name]
	if !ok || s == "" {
		return s
	}
	return color.New(a).Sprint(s)
}

var ansiRe = regexp.MustCompile(`\x1b\[[0-9;]*m`)

// width is the display width of s ignoring color escapes.
func width(s string) int {
	return runewidth.StringWidth(ansiRe.ReplaceAllString(s, ""))
}

type align int

const (
	alignLeft align = iota
	alignCenter
	alignRight
)

// fit pads or crops s to exactly w columns. Colored strings are only padded,
// never cropped, so callers size them beforehand.
func fit(s string, w int, a align) string {
	sw := width(s)
	if sw > w {
		if ansiRe.MatchString(s) {
			return s
		}
		return runewidth.Truncate(s, w, "")
	}
	gap := w - sw
	switch a {
	case alignRight:
		return strings.Repeat(" ", gap) + s
	case alignCenter:
		left := gap / 2
		return strings.Repeat(" ", left) + s + strings.Repeat(" ", gap-left)
	default:
		return s + strings.Repeat(" ", gap)
	}
}
