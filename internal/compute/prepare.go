package compute

import "fmt"

// Layout constants that control how much history fits in a table row.
const (
	DefaultConsoleWidth = 80
	MaxGraphWidth       = 40
)

// Series is the raw input for one data type.
type Series struct {
	// Window holds samples oldest first.
	Window []Reading
	Valid  ValidRange
	Limits LimitSet
	Label  string
	Unit   string
}

// Options tunes Prepare. The zero value uses the defaults.
type Options struct {
	// DeltaFactor is the trend tolerance. nil means DefaultDeltaFactor; a
	// pointer to 0 marks any change as a trend.
	DeltaFactor *float64

	// LabelsOnly skips all computation and returns rows carrying only the
	// label and unit, for drawing an empty table before data arrives.
	LabelsOnly bool

	// ConsoleWidth decides how many samples are graphed. 0 means
	// DefaultConsoleWidth.
	ConsoleWidth int
}

func (o Options) deltaFactor() float64 {
	if o.DeltaFactor == nil {
		return DefaultDeltaFactor
	}
	return *o.DeltaFactor
}

// GraphWidth is the number of trailing samples shown for a console width:
// half the width, capped at MaxGraphWidth and never below one.
func (o Options) GraphWidth() int {
	w := o.ConsoleWidth
	if w <= 0 {
		w = DefaultConsoleWidth
	}
	gw := min(w/2, MaxGraphWidth)
	return max(gw, 1)
}

// Row is the display-ready view of one data type. Rows are rebuilt on every
// refresh and never stored.
type Row struct {
	Name  string `json:"name"`
	Label string `json:"label"`
	Unit  string `json:"unit"`

	// Graph is the plotted slice with missing and invalid samples set to 0.
	Graph []float64 `json:"graph"`

	// Min and Max span the valid samples of the slice; absent when none.
	Min Reading `json:"min"`
	Max Reading `json:"max"`

	// Current is the latest sample, absent when it is missing or invalid.
	Current Reading `json:"current"`

	// CurrentOK is false only when the latest sample is present but out of
	// range.
	CurrentOK bool `json:"current_ok"`

	Trend    Trend       `json:"trend"`
	Severity Severity    `json:"severity"`
	Emphasis EmphasisMap `json:"emphasis,omitempty"`
}

// CurrentColor returns the color used to print the current value.
func (r Row) CurrentColor() string {
	if !r.CurrentOK {
		return ColorMap[0]
	}
	return r.Severity.Color()
}

// Prepare builds a Row for every name in types that has an entry in series.
// Names without a series are skipped. A malformed range or limit set yields a
// *ConfigError naming the data type.
func Prepare(series map[string]Series, types []string, opts Options) (map[string]Row, error) {
	out := make(map[string]Row, len(types))
	for _, name := range types {
		s, ok := series[name]
		if !ok {
			continue
		}
		row, err := PrepareOne(name, s, opts)
		if err != nil {
			return nil, err
		}
		out[name] = row
	}
	return out, nil
}

// PrepareOne builds the Row for a single series.
func PrepareOne(name string, s Series, opts Options) (Row, error) {
	row := Row{
		Name:      name,
		Label:     s.Label,
		Unit:      s.Unit,
		Graph:     []float64{},
		CurrentOK: true,
	}
	if err := s.Limits.Validate(); err != nil {
		return Row{}, wrapConfig(name, err)
	}
	if opts.LabelsOnly {
		// Validate the range too so label-only previews fail the same way.
		if err := s.Valid.Validate(); err != nil {
			return Row{}, wrapConfig(name, err)
		}
		return row, nil
	}

	slice := s.Window
	if gw := opts.GraphWidth(); len(slice) > gw {
		slice = slice[len(slice)-gw:]
	}
	classified, err := ClassifyWindow(slice, s.Valid)
	if err != nil {
		return Row{}, wrapConfig(name, err)
	}

	row.Graph = GraphValues(classified)
	row.Min, row.Max = MinMax(CleanValues(classified))
	row.Emphasis = Emphasis(s.Limits)

	n := len(classified)
	if n == 0 {
		return row, nil
	}
	last := classified[n-1]
	row.Current = cleaned(last)
	row.CurrentOK = last.Status != StatusInvalid

	previous := Absent
	if n > 1 {
		previous = cleaned(classified[n-2])
	}
	row.Trend = Delta(row.Current, previous, opts.deltaFactor())

	if row.Current.Present {
		row.Severity = Bucket(row.Current.Value, s.Limits)
	}
	return row, nil
}

func cleaned(c Classified) Reading {
	if c.Status != StatusValid {
		return Absent
	}
	return c.Reading
}

func wrapConfig(name string, err error) error {
	if ce, ok := err.(*ConfigError); ok {
		return &ConfigError{Field: fmt.Sprintf("%s %s", name, ce.Field), Reason: ce.Reason}
	}
	return err
}
