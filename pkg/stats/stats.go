// Package stats hands correlator samples to an external statistics library.
//
// Resampling, error propagation and fitting live behind the Collaborator
// and Observable interfaces; this package only arranges the samples they
// consume and names the models they fit.
package stats

import (
	"gonum.org/v1/gonum/mat"

	"github.com/edbennett/meson-analysis/pkg/correlator"
	merrors "github.com/edbennett/meson-analysis/pkg/errors"
)

// Part selects which component of the correlator is sampled.
type Part int

const (
	RealPart Part = iota
	ImagPart
)

// Symmetry asks the collaborator to fold the correlator about NT/2.
type Symmetry int

const (
	NoSymmetry Symmetry = iota
	Symmetric
	Antisymmetric
)

func (s Symmetry) String() string {
	switch s {
	case Symmetric:
		return "symmetric"
	case Antisymmetric:
		return "antisymmetric"
	default:
		return "none"
	}
}

// StreamSamples holds the measurements of one Monte Carlo stream.
type StreamSamples struct {
	Name       string
	CfgIndices []int
	// Data has one row per configuration and one column per time slice.
	Data *mat.Dense
}

// Samples is the input of a Collaborator: N independent streams, each
// contributing M_i samples of a length NT vector.
type Samples struct {
	NT      int
	Streams []StreamSamples

	Symmetry             Symmetry
	EnforcePositiveStart bool
	Tag                  string
}

// Range is an inclusive range of time slices.
type Range struct {
	Start, End int
}

// Model is a parametric fit form f(params, t).
type Model func(params []float64, t float64) float64

// Observable is a resampled correlator with propagated errors.
type Observable interface {
	Add(other Observable) (Observable, error)
	Scale(factor float64) Observable
	Div(other Observable) (Observable, error)
	Deriv() (Observable, error)
	Fit(model Model, plateau Range) ([]float64, error)
}

// Collaborator turns samples into an Observable.
type Collaborator interface {
	Observe(samples *Samples) (Observable, error)
}

// GatherOption adjusts the Samples built by Gather.
type GatherOption func(*Samples)

// WithSymmetry sets the folding requested of the collaborator.
func WithSymmetry(s Symmetry) GatherOption {
	return func(x *Samples) { x.Symmetry = s }
}

// WithTag labels the samples.
func WithTag(tag string) GatherOption {
	return func(x *Samples) { x.Tag = tag }
}

// WithoutPositiveStart leaves the sign of the correlator alone.
func WithoutPositiveStart() GatherOption {
	return func(x *Samples) { x.EnforcePositiveStart = false }
}

// Gather selects correlators from e and arranges them per stream, streams
// sorted by name and configurations in ensemble order.
func Gather(e *correlator.Ensemble, criteria correlator.Criteria, part Part, opts ...GatherOption) (*Samples, error) {
	sel, err := e.Get(criteria)
	if err != nil {
		return nil, err
	}
	if sel.Len() == 0 {
		return nil, merrors.Ingestion(merrors.ErrEmptySelection, "criteria matched no correlators")
	}
	nt, err := e.NT()
	if err != nil {
		return nil, err
	}

	samples := &Samples{NT: nt, EnforcePositiveStart: true}
	for _, opt := range opts {
		opt(samples)
	}

	byStream := make(map[string]*StreamSamples)
	flat := make(map[string][]float64)
	for i := 0; i < sel.Len(); i++ {
		key, series := sel.At(i)
		s, ok := byStream[key.StreamName]
		if !ok {
			s = &StreamSamples{Name: key.StreamName}
			byStream[key.StreamName] = s
		}
		s.CfgIndices = append(s.CfgIndices, key.CfgIndex)
		if part == ImagPart {
			flat[key.StreamName] = append(flat[key.StreamName], series.ImagParts()...)
		} else {
			flat[key.StreamName] = append(flat[key.StreamName], series.RealParts()...)
		}
	}

	for _, name := range sel.Streams() {
		s := byStream[name]
		s.Data = mat.NewDense(len(s.CfgIndices), nt, flat[name])
		samples.Streams = append(samples.Streams, *s)
	}
	return samples, nil
}

// Observe gathers samples from e and passes them to c.
func Observe(c Collaborator, e *correlator.Ensemble, criteria correlator.Criteria, part Part, opts ...GatherOption) (Observable, error) {
	samples, err := Gather(e, criteria, part, opts...)
	if err != nil {
		return nil, err
	}
	return c.Observe(samples)
}
