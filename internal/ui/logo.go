package ui

import (
	"strings"

	figure "github.com/common-nighthawk/go-figure"
	"github.com/mattn/go-runewidth"
)

// LogoFont is the figlet font used for the banner.
const LogoFont = "slant"

// MakeLogo renders name as a multi-line banner with version tagged under its
// right edge. When the banner does not fit in width, fallback is returned.
// With center set every line is centered within width.
func MakeLogo(width int, name, version, fallback string, center bool) string {
	lines := figure.NewFigure(name, LogoFont, false).Slicify()
	if len(lines) == 0 {
		return fallback
	}
	logoWidth := 0
	for _, l := range lines {
		logoWidth = max(logoWidth, runewidth.StringWidth(l))
	}
	if logoWidth >= width {
		return fallback
	}

	if version != "" {
		// Right-align the version with the last stroke of the bottom row.
		last := lines[len(lines)-1]
		end := strings.LastIndex(last, "/") + 1
		if end < len(version) {
			end = logoWidth
		}
		lines = append(lines, strings.Repeat(" ", max(end-len(version), 0))+version)
	}

	if center {
		pad := strings.Repeat(" ", (width-logoWidth)/2)
		for i, l := range lines {
			lines[i] = strings.TrimRight(pad+l, " ")
		}
	}
	return strings.Join(lines, "\n")
}

// Logo holds the rendered banner and its plain-text alternative.
type Logo struct {
	Render string
	Plain  string
}

// NewLogo renders name for width, falling back to "name - vX" when the
// banner does not fit.
func NewLogo(width int, name, version string) Logo {
	plain := name
	if version != "" {
		plain += " - v" + version
	}
	ver := ""
	if version != "" {
		ver = "v" + version
	}
	return Logo{Render: MakeLogo(width, name, ver, "", true), Plain: plain}
}

// Rows is the number of lines the logo occupies, at least one.
func (l Logo) Rows() int {
	if l.Render == "" {
		return 1
	}
	return max(strings.Count(l.Render, "\n")+1, 1)
}

func (l Logo) String() string {
	if l.Render == "" {
		return l.Plain
	}
	return l.Render
}
