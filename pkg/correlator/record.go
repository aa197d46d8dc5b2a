package correlator

import "math"

// Series is an immutable sequence of real or complex correlator values, one
// per Euclidean time slice. The zero value is an empty real series.
type Series struct {
	re []float64
	im []float64 // nil for real-valued series
}

// Real creates a real-valued series. The input is copied.
func Real(values []float64) Series {
	return Series{re: cloneFloats(values)}
}

// Complex creates a complex-valued series. The input is copied.
func Complex(values []complex128) Series {
	s := Series{
		re: make([]float64, len(values)),
		im: make([]float64, len(values)),
	}
	for i, v := range values {
		s.re[i] = real(v)
		s.im[i] = imag(v)
	}
	return s
}

// Len returns the number of time slices.
func (s Series) Len() int {
	return len(s.re)
}

// IsComplex reports whether the series carries imaginary parts.
func (s Series) IsComplex() bool {
	return s.im != nil
}

// At returns the value at time slice t.
func (s Series) At(t int) complex128 {
	if s.im == nil {
		return complex(s.re[t], 0)
	}
	return complex(s.re[t], s.im[t])
}

// RealParts returns a copy of the real parts.
func (s Series) RealParts() []float64 {
	return cloneFloats(s.re)
}

// ImagParts returns a copy of the imaginary parts; zeros for a real series.
func (s Series) ImagParts() []float64 {
	if s.im == nil {
		return make([]float64, len(s.re))
	}
	return cloneFloats(s.im)
}

// Values returns a copy of the series as complex numbers.
func (s Series) Values() []complex128 {
	out := make([]complex128, len(s.re))
	for i := range out {
		out[i] = s.At(i)
	}
	return out
}

// Equal reports whether both series hold the same values and kind.
func (s Series) Equal(other Series) bool {
	if s.Len() != other.Len() || s.IsComplex() != other.IsComplex() {
		return false
	}
	for i := range s.re {
		if s.re[i] != other.re[i] {
			return false
		}
		if s.im != nil && s.im[i] != other.im[i] {
			return false
		}
	}
	return true
}

func (s Series) clone() Series {
	c := Series{re: cloneFloats(s.re)}
	if s.im != nil {
		c.im = cloneFloats(s.im)
	}
	return c
}

func cloneFloats(v []float64) []float64 {
	out := make([]float64, len(v))
	copy(out, v)
	return out
}

// Record is a single correlator measurement and its provenance.
// Records are values; the Series inside is never mutated after construction.
type Record struct {
	StreamName     string
	CfgIndex       int
	SourceType     string
	ConnectionType string
	Channel        string
	ValenceMass    float64 // NaN when the input does not state it
	Correlator     Series
}

// Key identifies one measurement within a selection.
type Key struct {
	StreamName string
	CfgIndex   int
}

// Key returns the (stream, configuration) pair of the record.
func (r Record) Key() Key {
	return Key{StreamName: r.StreamName, CfgIndex: r.CfgIndex}
}

// sameMass compares valence masses, treating two unknown (NaN) masses as equal.
func sameMass(a, b float64) bool {
	if math.IsNaN(a) || math.IsNaN(b) {
		return math.IsNaN(a) && math.IsNaN(b)
	}
	return a == b
}

// massKey maps a valence mass to a comparable key with every NaN collapsed.
func massKey(m float64) uint64 {
	switch {
	case math.IsNaN(m):
		return math.Float64bits(math.NaN())
	case m == 0:
		return 0
	}
	return math.Float64bits(m)
}
