package stats

import (
	"math"

	merrors "github.com/edbennett/meson-analysis/pkg/errors"
)

// Fit form names accepted by ModelFor.
const (
	FormPseudoscalar      = "ps"
	FormPseudoscalarAxial = "ps_av"
	FormVector            = "v"
)

// PseudoscalarModel is A^2/m (e^{-mt} + e^{-m(NT-t)}) with params
// (m, f, A).
func PseudoscalarModel(nt int) Model {
	return func(p []float64, t float64) float64 {
		mass, amplitude := p[0], p[2]
		return amplitude * amplitude / mass * cosh(mass, t, nt)
	}
}

// PseudoscalarAxialModel is A f (e^{-mt} - e^{-m(NT-t)}) with params
// (m, f, A).
func PseudoscalarAxialModel(nt int) Model {
	return func(p []float64, t float64) float64 {
		mass, decayConst, amplitude := p[0], p[1], p[2]
		return amplitude * decayConst * sinh(mass, t, nt)
	}
}

// VectorModel is f^2 m (e^{-mt} + e^{-m(NT-t)}) with params (m, f).
func VectorModel(nt int) Model {
	return func(p []float64, t float64) float64 {
		mass, decayConst := p[0], p[1]
		return decayConst * decayConst * mass * cosh(mass, t, nt)
	}
}

// ModelFor returns the named fit form for a lattice of time extent nt.
func ModelFor(form string, nt int) (Model, error) {
	switch form {
	case FormPseudoscalar:
		return PseudoscalarModel(nt), nil
	case FormPseudoscalarAxial:
		return PseudoscalarAxialModel(nt), nil
	case FormVector:
		return VectorModel(nt), nil
	}
	return nil, merrors.Configf(merrors.ErrConfigInvalid, "unknown fit form %q", form).
		WithContext("form", form)
}

func cosh(mass, t float64, nt int) float64 {
	return math.Exp(-mass*t) + math.Exp(-mass*(float64(nt)-t))
}

func sinh(mass, t float64, nt int) float64 {
	return math.Exp(-mass*t) - math.Exp(-mass*(float64(nt)-t))
}
