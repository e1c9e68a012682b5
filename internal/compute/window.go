package compute

// Status describes how a single window entry was classified.
type Status int

const (
	StatusValid Status = iota
	StatusMissing
	StatusInvalid
)

func (s Status) String() string {
	switch s {
	case StatusValid:
		return "valid"
	case StatusMissing:
		return "missing"
	case StatusInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// Classified pairs a window entry with its status.
type Classified struct {
	Reading Reading
	Status  Status
}

// IsValid reports whether v lies inside r. Only the bounds that are present
// constrain the value; a fully unbounded range accepts everything.
func IsValid(v float64, r ValidRange) bool {
	if r.Min.Present && v < r.Min.Value {
		return false
	}
	if r.Max.Present && v > r.Max.Value {
		return false
	}
	return true
}

// ClassifyWindow labels every entry of window as valid, missing or invalid.
// The result has the same length and order as window, which is not modified.
// The only error is a *ConfigError for a malformed range.
func ClassifyWindow(window []Reading, r ValidRange) ([]Classified, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	out := make([]Classified, len(window))
	for i, rd := range window {
		out[i] = classify(rd, r)
	}
	return out, nil
}

func classify(rd Reading, r ValidRange) Classified {
	switch {
	case !rd.Present:
		return Classified{Reading: rd, Status: StatusMissing}
	case !IsValid(rd.Value, r):
		return Classified{Reading: rd, Status: StatusInvalid}
	default:
		return Classified{Reading: rd, Status: StatusValid}
	}
}

// CleanValues returns the valid values of c in order. Missing and invalid
// entries are dropped.
func CleanValues(c []Classified) []float64 {
	out := make([]float64, 0, len(c))
	for _, e := range c {
		if e.Status == StatusValid {
			out = append(out, e.Reading.Value)
		}
	}
	return out
}

// MinMax returns the smallest and largest of values, or two absent readings
// when values is empty.
func MinMax(values []float64) (Reading, Reading) {
	if len(values) == 0 {
		return Absent, Absent
	}
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return Val(lo), Val(hi)
}

// GraphValues returns a plottable series of the same length as c where
// missing and invalid entries become 0.
func GraphValues(c []Classified) []float64 {
	out := make([]float64, len(c))
	for i, e := range c {
		if e.Status == StatusValid {
			out[i] = e.Reading.Value
		}
	}
	return out
}
