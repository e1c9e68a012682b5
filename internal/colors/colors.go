package colors

import (
	"fmt"
	"sort"
	"strings"

	"github.com/f451labs/telemetry/internal/compute"
)

// RGB is an 8-bit per channel color.
type RGB struct {
	R, G, B uint8
}

func (c RGB) String() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// Named maps color names to RGB values. Names used by the terminal palette
// (red, grey, light_blue, ...) are always present, with both spellings where
// terminals and web colors disagree.
var Named = map[string]RGB{
	"aqua":          {0, 255, 255},
	"black":         {0, 0, 0},
	"blue":          {0, 0, 255},
	"brown":         {165, 42, 42},
	"carrot":        {237, 145, 33},
	"coral":         {255, 127, 80},
	"crimson":       {220, 20, 60},
	"cyan":          {0, 255, 255},
	"darkgray":      {169, 169, 169},
	"dark_gray":     {169, 169, 169},
	"dark_grey":     {169, 169, 169},
	"darkgreen":     {0, 100, 0},
	"darkorange":    {255, 140, 0},
	"deepskyblue":   {0, 191, 255},
	"dodgerblue":    {30, 144, 255},
	"firebrick":     {178, 34, 34},
	"forestgreen":   {34, 139, 34},
	"gold":          {255, 215, 0},
	"gray":          {128, 128, 128},
	"grey":          {128, 128, 128},
	"green":         {0, 128, 0},
	"hotpink":       {255, 105, 180},
	"indigo":        {75, 0, 130},
	"khaki":         {240, 230, 140},
	"lavender":      {230, 230, 250},
	"lightblue":     {173, 216, 230},
	"light_blue":    {173, 216, 230},
	"lightcyan":     {224, 255, 255},
	"light_cyan":    {224, 255, 255},
	"light_green":   {144, 238, 144},
	"lightgrey":     {211, 211, 211},
	"light_grey":    {211, 211, 211},
	"light_magenta": {241, 178, 220},
	"light_red":     {255, 114, 118},
	"lightyellow":   {255, 255, 224},
	"light_yellow":  {255, 255, 224},
	"limegreen":     {50, 205, 50},
	"magenta":       {255, 0, 255},
	"maroon":        {128, 0, 0},
	"navy":          {0, 0, 128},
	"olive":         {128, 128, 0},
	"orange":        {255, 128, 0},
	"orangered":     {255, 69, 0},
	"pink":          {255, 192, 203},
	"purple":        {128, 0, 128},
	"red":           {255, 0, 0},
	"royalblue":     {65, 105, 225},
	"salmon":        {250, 128, 114},
	"silver":        {192, 192, 192},
	"skyblue":       {135, 206, 235},
	"springgreen":   {0, 255, 127},
	"steelblue":     {70, 130, 180},
	"teal":          {0, 128, 128},
	"tomato":        {255, 99, 71},
	"turquoise":     {64, 224, 208},
	"violet":        {238, 130, 238},
	"white":         {255, 255, 255},
	"yellow":        {255, 255, 0},
	"yellowgreen":   {154, 205, 50},
}

// Lookup returns the RGB value of a named color, case-insensitively.
func Lookup(name string) (RGB, bool) {
	c, ok := Named[strings.ToLower(strings.TrimSpace(name))]
	return c, ok
}

// Names returns all known color names, sorted.
func Names() []string {
	out := make([]string, 0, len(Named))
	for n := range Named {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// TriRGB is the low/normal/high palette as RGB values.
type TriRGB struct {
	Low, Normal, High RGB
}

// TriColors picks the low, normal and high colors (entries 0, 2 and 4) from
// a five-color map. A nil map uses compute.ColorMap.
func TriColors(custom []string) (compute.TriPalette, error) {
	m, err := colorMap(custom)
	if err != nil {
		return compute.TriPalette{}, err
	}
	return compute.TriPalette{Low: m[0], Normal: m[2], High: m[4]}, nil
}

// TriColorsRGB is TriColors resolved through Named.
func TriColorsRGB(custom []string) (TriRGB, error) {
	p, err := TriColors(custom)
	if err != nil {
		return TriRGB{}, err
	}
	var out TriRGB
	for _, it := range []struct {
		name string
		dst  *RGB
	}{{p.Low, &out.Low}, {p.Normal, &out.Normal}, {p.High, &out.High}} {
		c, ok := Lookup(it.name)
		if !ok {
			return TriRGB{}, &compute.ConfigError{Field: "colors", Reason: fmt.Sprintf("unknown color %q", it.name)}
		}
		*it.dst = c
	}
	return out, nil
}

func colorMap(custom []string) ([5]string, error) {
	if custom == nil {
		return compute.ColorMap, nil
	}
	var m [5]string
	if len(custom) != len(m) {
		return m, &compute.ConfigError{Field: "colors", Reason: fmt.Sprintf("need %d colors, got %d", len(m), len(custom))}
	}
	copy(m[:], custom)
	return m, nil
}
