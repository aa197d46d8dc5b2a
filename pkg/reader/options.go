// Package reader parses correlator data from the output of lattice simulation
// codes into correlator ensembles.
//
// Three formats are supported: Hirep text logs, Hadrons XML directories and
// Flexlatsim text logs. Each parser is a line or element state machine that
// appends records to a correlator.Builder and freezes it at the end of input.
// Structural problems abort the parse with an error; data-quality problems
// are logged with a "code" field and ingestion continues.
package reader

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/edbennett/meson-analysis/pkg/correlator"
	merrors "github.com/edbennett/meson-analysis/pkg/errors"
	"github.com/edbennett/meson-analysis/pkg/metrics"
)

// Format names.
const (
	FormatHirep      = "hirep"
	FormatHadrons    = "hadrons"
	FormatFlexlatsim = "flexlatsim"
)

// DefaultHadronsStream is the stream name given to Hadrons records when the
// caller doesn't set one.
const DefaultHadronsStream = "run1"

// Options are the per-read parameters shared by every format.
type Options struct {
	// StreamName labels records from formats that don't encode a stream.
	// Hirep takes the stream from configuration filenames and ignores it.
	StreamName string

	// ValenceMass is required by Flexlatsim, whose logs don't record it.
	ValenceMass *float64

	// Metadata is merged into the collection before parsing. For Hadrons,
	// FermionMass supplies the valence mass of pt_ll records.
	Metadata correlator.Metadata

	Logger  logrus.FieldLogger
	Metrics *metrics.Metrics
}

// Mass returns a pointer to m, for Options.ValenceMass.
func Mass(m float64) *float64 {
	return &m
}

func (o Options) logger() logrus.FieldLogger {
	if o.Logger == nil {
		return logrus.StandardLogger()
	}
	return o.Logger
}

// diagnostics reports non-fatal problems for one input.
type diagnostics struct {
	format  string
	source  string
	logger  logrus.FieldLogger
	metrics *metrics.Metrics
}

func newDiagnostics(format, source string, opts Options) *diagnostics {
	return &diagnostics{
		format:  format,
		source:  source,
		logger:  opts.logger(),
		metrics: opts.Metrics,
	}
}

// warn logs a data-quality problem found at line (0 when not line based).
func (d *diagnostics) warn(err error, line int) {
	code := "UNKNOWN"
	if me, ok := merrors.AsMesonError(err); ok {
		code = me.Code
	}
	entry := d.logger.WithFields(logrus.Fields{
		"code":   code,
		"format": d.format,
		"file":   d.source,
	})
	if line > 0 {
		entry = entry.WithField("line", line)
	}
	entry.Warn(err.Error())
	d.metrics.Warning(d.format, code)
}

func (d *diagnostics) appended() {
	d.metrics.RecordAppended(d.format)
}

func newBuilder(format, source string, opts Options) *correlator.Builder {
	logger := opts.logger().WithField("format", format)
	b := correlator.NewBuilder(source, correlator.WithLogger(logger))
	b.MergeMetadata(opts.Metadata)
	return b
}

// finish freezes b and checks the result for consistency. Inconsistency is
// logged, never returned.
func finish(b *correlator.Builder, d *diagnostics, start time.Time) (*correlator.Ensemble, error) {
	e, err := b.Freeze()
	if err != nil {
		return nil, err
	}
	if !e.IsConsistent() {
		d.logger.WithFields(logrus.Fields{
			"format":      d.format,
			"file":        d.source,
			"ensemble_id": e.ID(),
		}).Warn("correlator is not self-consistent")
	}
	d.metrics.ObserveParse(d.format, start)
	d.logger.WithFields(logrus.Fields{
		"format":  d.format,
		"file":    d.source,
		"records": e.Len(),
	}).Debug("ingested correlators")
	return e, nil
}
