package colors

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/f451labs/telemetry/internal/compute"
)

// NumToRange maps num from the in range onto the out range.
//
// With force set, an absent num becomes in[0] and an out-of-range num is
// clamped into in. Without it both yield an absent result. The result is
// always clamped to out. Equal bounds are treated as a span of 1.
func NumToRange(num compute.Reading, in, out [2]float64, force bool) (compute.Reading, error) {
	if in[0] > in[1] {
		return compute.Absent, &compute.ConfigError{Field: "input range", Reason: fmt.Sprintf("min %g > max %g", in[0], in[1])}
	}
	if out[0] > out[1] {
		return compute.Absent, &compute.ConfigError{Field: "output range", Reason: fmt.Sprintf("min %g > max %g", out[0], out[1])}
	}

	v := num.Value
	switch {
	case !num.Present:
		if !force {
			return compute.Absent, nil
		}
		v = in[0]
	case v < in[0] || v > in[1]:
		if !force {
			return compute.Absent, nil
		}
		v = min(max(v, in[0]), in[1])
	}

	spanIn := in[1] - in[0]
	if spanIn == 0 {
		spanIn = 1
	}
	spanOut := out[1] - out[0]
	if spanOut == 0 {
		spanOut = 1
	}
	r := out[0] + (v-in[0])/spanIn*spanOut
	return compute.Val(min(max(r, out[0]), out[1])), nil
}

// ConvertToRGB maps num onto a series of adjacent linear gradients between
// the given colors. num is clamped to [inMin, inMax].
func ConvertToRGB(num, inMin, inMax float64, palette []RGB) (RGB, error) {
	if len(palette) == 0 {
		return RGB{}, &compute.ConfigError{Field: "palette", Reason: "no colors"}
	}
	if inMin > inMax {
		return RGB{}, &compute.ConfigError{Field: "input range", Reason: fmt.Sprintf("min %g > max %g", inMin, inMax)}
	}
	if len(palette) == 1 || inMin == inMax {
		return palette[0], nil
	}

	num = min(max(num, inMin), inMax)
	pos := (num - inMin) / (inMax - inMin) * float64(len(palette)-1)
	i := int(math.Floor(pos))
	f := pos - float64(i)
	if i >= len(palette)-1 {
		return palette[len(palette)-1], nil
	}
	if f < 1e-12 {
		return palette[i], nil
	}
	a, b := palette[i], palette[i+1]
	lerp := func(x, y uint8) uint8 {
		return uint8(float64(x) + f*(float64(y)-float64(x)))
	}
	return RGB{lerp(a.R, b.R), lerp(a.G, b.G), lerp(a.B, b.B)}, nil
}

// ToBool interprets common on/off spellings. Strings are true for
// on|true|yes (any case), numbers for any value whose integer part is
// non-zero. Everything else is false.
func ToBool(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case int:
		return x != 0
	case int64:
		return x != 0
	case uint64:
		return x != 0
	case float64:
		return math.Trunc(x) != 0
	case string:
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "on", "true", "yes":
			return true
		}
		// Numeric strings follow the number rule.
		if f, err := strconv.ParseFloat(strings.TrimSpace(x), 64); err == nil {
			return math.Trunc(f) != 0
		}
		return false
	default:
		return false
	}
}
