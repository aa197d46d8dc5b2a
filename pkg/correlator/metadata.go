package correlator

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	merrors "github.com/edbennett/meson-analysis/pkg/errors"
)

// Value is an optional metadata field.
// The first value written wins; a later, different value is reported as a
// conflict and discarded.
type Value[T comparable] struct {
	value T
	set   bool
}

// Of returns a Value that is already set to v.
func Of[T comparable](v T) Value[T] {
	return Value[T]{value: v, set: true}
}

// Get returns the value and whether it has been set.
func (x Value[T]) Get() (T, bool) {
	return x.value, x.set
}

// IsSet reports whether a value has been recorded.
func (x Value[T]) IsSet() bool {
	return x.set
}

// Merge records v if the field is unset. If the field already holds a
// different value the first one is kept and a METADATA_CONFLICT diagnostic
// naming the field is returned.
func (x *Value[T]) Merge(name string, v T) error {
	if !x.set {
		x.value, x.set = v, true
		return nil
	}
	if sameValue(x.value, v) {
		return nil
	}
	return merrors.DataQualityf(merrors.ErrMetadataConflict,
		"%s values are not consistent: keeping %v, ignoring %v", name, x.value, v).
		WithContext("field", name)
}

// sameValue is ==, except that two NaN floats are equal.
func sameValue[T comparable](a, b T) bool {
	if a == b {
		return true
	}
	if fa, ok := any(a).(float64); ok {
		fb := any(b).(float64)
		return math.IsNaN(fa) && math.IsNaN(fb)
	}
	return false
}

func (x *Value[T]) mergeFrom(name string, other Value[T]) error {
	if !other.set {
		return nil
	}
	return x.Merge(name, other.value)
}

func (x Value[T]) String() string {
	if !x.set {
		return "<unset>"
	}
	return fmt.Sprint(x.value)
}

// Metadata is the run-level description of an ensemble, accumulated while
// parsing. Every field follows the first-write-wins rule of Value.
type Metadata struct {
	NT Value[int]
	NX Value[int]
	NY Value[int]
	NZ Value[int]

	// Valence sector
	Nc                    Value[int]
	GroupFamily           Value[string]
	ValenceRepresentation Value[string]
	ValenceMasses         []float64 // ordered, deduplicated

	// Dynamical sector, from configuration filenames
	DynamicalRepresentation Value[string]
	Nf                      Value[int]
	Beta                    Value[float64]
	DynamicalMass           Value[float64]

	// FermionMass is the valence mass for readers whose inputs omit it.
	FermionMass Value[float64]

	// Extra holds free-form caller annotations.
	Extra map[string]string
}

// AddValenceMass appends m to ValenceMasses unless already present.
// It reports whether the mass was new.
func (m *Metadata) AddValenceMass(mass float64) bool {
	for _, existing := range m.ValenceMasses {
		if sameMass(existing, mass) {
			return false
		}
	}
	m.ValenceMasses = append(m.ValenceMasses, mass)
	return true
}

// SetExtra records a free-form annotation under the same first-write-wins rule.
func (m *Metadata) SetExtra(key, value string) error {
	if m.Extra == nil {
		m.Extra = make(map[string]string)
	}
	if existing, ok := m.Extra[key]; ok {
		if existing == value {
			return nil
		}
		return merrors.DataQualityf(merrors.ErrMetadataConflict,
			"%s values are not consistent: keeping %s, ignoring %s", key, existing, value).
			WithContext("field", key)
	}
	m.Extra[key] = value
	return nil
}

// Merge folds other into m field by field and returns one diagnostic per
// conflicting field. Fields unset in other are left alone.
func (m *Metadata) Merge(other Metadata) []error {
	var conflicts []error
	keep := func(err error) {
		if err != nil {
			conflicts = append(conflicts, err)
		}
	}

	keep(m.NT.mergeFrom("NT", other.NT))
	keep(m.NX.mergeFrom("NX", other.NX))
	keep(m.NY.mergeFrom("NY", other.NY))
	keep(m.NZ.mergeFrom("NZ", other.NZ))
	keep(m.Nc.mergeFrom("Nc", other.Nc))
	keep(m.GroupFamily.mergeFrom("group_family", other.GroupFamily))
	keep(m.ValenceRepresentation.mergeFrom("valence_representation", other.ValenceRepresentation))
	keep(m.DynamicalRepresentation.mergeFrom("dynamical_representation", other.DynamicalRepresentation))
	keep(m.Nf.mergeFrom("Nf", other.Nf))
	keep(m.Beta.mergeFrom("beta", other.Beta))
	keep(m.DynamicalMass.mergeFrom("dynamical_mass", other.DynamicalMass))
	keep(m.FermionMass.mergeFrom("fermion_mass", other.FermionMass))

	for _, mass := range other.ValenceMasses {
		m.AddValenceMass(mass)
	}

	keys := make([]string, 0, len(other.Extra))
	for k := range other.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		keep(m.SetExtra(k, other.Extra[k]))
	}

	return conflicts
}

// Clone returns a deep copy.
func (m Metadata) Clone() Metadata {
	c := m
	if m.ValenceMasses != nil {
		c.ValenceMasses = append([]float64(nil), m.ValenceMasses...)
	}
	if m.Extra != nil {
		c.Extra = make(map[string]string, len(m.Extra))
		for k, v := range m.Extra {
			c.Extra[k] = v
		}
	}
	return c
}

// Params flattens every set field into strings, for hashing and display.
func (m Metadata) Params() map[string]string {
	out := make(map[string]string)
	putInt := func(name string, v Value[int]) {
		if x, ok := v.Get(); ok {
			out[name] = strconv.Itoa(x)
		}
	}
	putFloat := func(name string, v Value[float64]) {
		if x, ok := v.Get(); ok {
			out[name] = strconv.FormatFloat(x, 'g', -1, 64)
		}
	}
	putString := func(name string, v Value[string]) {
		if x, ok := v.Get(); ok {
			out[name] = x
		}
	}

	putInt("NT", m.NT)
	putInt("NX", m.NX)
	putInt("NY", m.NY)
	putInt("NZ", m.NZ)
	putInt("Nc", m.Nc)
	putString("group_family", m.GroupFamily)
	putString("valence_representation", m.ValenceRepresentation)
	putString("dynamical_representation", m.DynamicalRepresentation)
	putInt("Nf", m.Nf)
	putFloat("beta", m.Beta)
	putFloat("dynamical_mass", m.DynamicalMass)
	putFloat("fermion_mass", m.FermionMass)
	for i, mass := range m.ValenceMasses {
		out[fmt.Sprintf("valence_masses[%d]", i)] = strconv.FormatFloat(mass, 'g', -1, 64)
	}
	for k, v := range m.Extra {
		out["extra."+k] = v
	}
	return out
}
