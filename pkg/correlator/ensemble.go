package correlator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"

	merrors "github.com/edbennett/meson-analysis/pkg/errors"
)

// Ensemble is a frozen correlator collection. It is immutable, and so safe
// to share between goroutines.
type Ensemble struct {
	id      string
	source  string
	logger  logrus.FieldLogger
	records []Record
	meta    Metadata
}

// ID returns the collection identifier.
func (e *Ensemble) ID() string { return e.id }

// Source returns the input the collection was built from.
func (e *Ensemble) Source() string { return e.source }

// Len returns the number of records.
func (e *Ensemble) Len() int { return len(e.records) }

// Metadata returns a copy of the run metadata.
func (e *Ensemble) Metadata() Metadata { return e.meta.Clone() }

// Records returns the records in sorted order.
func (e *Ensemble) Records() []Record {
	out := make([]Record, len(e.records))
	copy(out, e.records)
	return out
}

// NT returns the correlator length shared by every record.
func (e *Ensemble) NT() (int, error) {
	if len(e.records) == 0 {
		return 0, merrors.Ingestion(merrors.ErrEmptyCollection, "collection has no records").
			WithContext("source", e.source)
	}
	return e.records[0].Correlator.Len(), nil
}

// Channels returns the distinct channel names, sorted.
func (e *Ensemble) Channels() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, r := range e.records {
		if _, ok := seen[r.Channel]; !ok {
			seen[r.Channel] = struct{}{}
			out = append(out, r.Channel)
		}
	}
	sort.Strings(out)
	return out
}

// Get selects the records equal to every criterion. The selection must
// resolve to a single source type, connection type, channel and valence
// mass, else it fails with AMBIGUOUS_SELECTION.
func (e *Ensemble) Get(criteria Criteria) (*Selection, error) {
	subset, err := e.filter(criteria)
	if err != nil {
		return nil, err
	}

	sel := &Selection{
		keys:   make([]Key, len(subset)),
		series: make([]Series, len(subset)),
	}
	for i, r := range subset {
		sel.keys[i] = r.Key()
		sel.series[i] = r.Correlator
	}
	return sel, nil
}

func (e *Ensemble) filter(criteria Criteria) ([]Record, error) {
	if err := criteria.validate(); err != nil {
		return nil, err
	}
	var subset []Record
	for _, r := range e.records {
		if criteria.matches(r) {
			subset = append(subset, r)
		}
	}
	if err := checkUnambiguous(subset); err != nil {
		return nil, err
	}
	return subset, nil
}

// GetArray returns the selection as a dense matrix with one row per
// correlator, ordered as Get orders them. Complex data fails with
// COMPLEX_DATA; use GetComplexArray.
func (e *Ensemble) GetArray(criteria Criteria) (*mat.Dense, error) {
	sel, err := e.Get(criteria)
	if err != nil {
		return nil, err
	}
	if sel.Len() == 0 {
		return nil, merrors.Ingestion(merrors.ErrEmptySelection, "no correlators match the criteria")
	}

	nt := sel.series[0].Len()
	data := make([]float64, 0, sel.Len()*nt)
	for _, s := range sel.series {
		if s.IsComplex() {
			return nil, merrors.Ingestion(merrors.ErrComplexData, "selection holds complex correlators")
		}
		data = append(data, s.re...)
	}
	return mat.NewDense(sel.Len(), nt, data), nil
}

// GetComplexArray returns the selection as a dense complex matrix with one
// row per correlator. Real series get zero imaginary parts.
func (e *Ensemble) GetComplexArray(criteria Criteria) (*mat.CDense, error) {
	sel, err := e.Get(criteria)
	if err != nil {
		return nil, err
	}
	if sel.Len() == 0 {
		return nil, merrors.Ingestion(merrors.ErrEmptySelection, "no correlators match the criteria")
	}

	nt := sel.series[0].Len()
	data := make([]complex128, 0, sel.Len()*nt)
	for _, s := range sel.series {
		data = append(data, s.Values()...)
	}
	return mat.NewCDense(sel.Len(), nt, data), nil
}

type groupKey struct {
	sourceType     string
	connectionType string
	channel        string
	mass           uint64
}

// Check reports every way in which metadata and data disagree: the declared
// NT against the correlator length, and unequal observation counts across
// (source type, connection type, channel, valence mass) groups. It returns
// nil for a consistent ensemble.
func (e *Ensemble) Check() error {
	nt, err := e.NT()
	if err != nil {
		return err
	}

	var result *multierror.Error
	if declared, ok := e.meta.NT.Get(); !ok {
		result = multierror.Append(result, merrors.DataQualityf(merrors.ErrNTMismatch,
			"lattice temporal size is not declared; correlators have %d elements", nt))
	} else if declared != nt {
		result = multierror.Append(result, merrors.DataQualityf(merrors.ErrNTMismatch,
			"number of correlator elements (%d) doesn't match lattice temporal size (%d)", nt, declared))
	}

	counts := make(map[groupKey]int)
	var order []groupKey
	for _, r := range e.records {
		k := groupKey{r.SourceType, r.ConnectionType, r.Channel, massKey(r.ValenceMass)}
		if counts[k] == 0 {
			order = append(order, k)
		}
		counts[k]++
	}
	lo, hi := counts[order[0]], counts[order[0]]
	for _, k := range order[1:] {
		lo, hi = min(lo, counts[k]), max(hi, counts[k])
	}
	if lo != hi {
		parts := make([]string, 0, len(order))
		for _, k := range order {
			parts = append(parts, fmt.Sprintf("%s/%s/%s=%d", k.sourceType, k.connectionType, k.channel, counts[k]))
		}
		result = multierror.Append(result, merrors.DataQualityf(merrors.ErrUnequalCounts,
			"different numbers of observations for different channels (%d to %d); statistics may be funky", lo, hi).
			WithContext("counts", strings.Join(parts, " ")))
	}

	return result.ErrorOrNil()
}

// IsConsistent runs Check and logs each problem found. It never fails.
func (e *Ensemble) IsConsistent() bool {
	err := e.Check()
	if err == nil {
		return true
	}

	logger := e.logger.WithField("ensemble_id", e.id).WithField("source", e.source)
	problems := []error{err}
	if me, ok := err.(*multierror.Error); ok {
		problems = me.Errors
	}
	for _, p := range problems {
		entry := logger
		if me, ok := merrors.AsMesonError(p); ok {
			entry = entry.WithField("code", me.Code)
		}
		entry.Info(p.Error())
	}
	return false
}
