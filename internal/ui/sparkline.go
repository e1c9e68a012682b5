package ui

import (
	"math"
	"strings"

	"github.com/f451labs/telemetry/internal/colors"
	"github.com/f451labs/telemetry/internal/compute"
)

// Blocks are the eight sparkline levels, lowest first.
var Blocks = []rune("▁▂▃▄▅▆▇█")

// Sparkline draws one block per value scaled between lo and hi. Values
// outside the range are clamped. When emph is non-empty each block is
// colored by emph.Match, which lets the last matching rule win, looked up in
// palette.
//
// An absent bound falls back to the extreme of values.
func Sparkline(values []float64, lo, hi compute.Reading, emph compute.EmphasisMap, palette compute.TriPalette) string {
	if len(values) == 0 {
		return ""
	}
	dataLo, dataHi := values[0], values[0]
	for _, v := range values[1:] {
		dataLo = math.Min(dataLo, v)
		dataHi = math.Max(dataHi, v)
	}
	if !lo.Present {
		lo = compute.Val(dataLo)
	}
	if !hi.Present {
		hi = compute.Val(dataHi)
	}
	if lo.Value > hi.Value {
		lo, hi = hi, lo
	}

	top := float64(len(Blocks) - 1)
	var b strings.Builder
	for _, v := range values {
		pos, err := colors.NumToRange(compute.Val(v), [2]float64{lo.Value, hi.Value}, [2]float64{0, top}, true)
		idx := 0
		if err == nil && pos.Present {
			idx = int(math.Round(pos.Value))
		}
		ch := string(Blocks[idx])
		if sev, ok := emph.Match(v); ok {
			ch = paint(palette.Color(sev), ch)
		}
		b.WriteString(ch)
	}
	return b.String()
}
