package correlator

import (
	"sort"
	"strconv"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	merrors "github.com/edbennett/meson-analysis/pkg/errors"
)

// Builder is an open correlator collection. It accepts records until Freeze
// converts it into an Ensemble.
//
// A Builder is not safe for concurrent use.
type Builder struct {
	id      string
	source  string
	logger  logrus.FieldLogger
	records []Record
	meta    Metadata
	frozen  bool
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithLogger sets the logger used for diagnostics by the builder and the
// ensemble it freezes into.
func WithLogger(logger logrus.FieldLogger) BuilderOption {
	return func(b *Builder) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithMetadata seeds the builder's metadata.
func WithMetadata(meta Metadata) BuilderOption {
	return func(b *Builder) {
		b.meta = meta.Clone()
	}
}

// NewBuilder creates an empty, open collection. source names the input the
// records come from (a file or directory) and is kept for diagnostics.
func NewBuilder(source string, opts ...BuilderOption) *Builder {
	b := &Builder{
		id:     uuid.New().String(),
		source: source,
		logger: logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// ID returns the collection identifier, shared with the frozen Ensemble.
func (b *Builder) ID() string { return b.id }

// Source returns the input name given to NewBuilder.
func (b *Builder) Source() string { return b.source }

// Len returns the number of records appended so far.
func (b *Builder) Len() int { return len(b.records) }

// Frozen reports whether Freeze has been called.
func (b *Builder) Frozen() bool { return b.frozen }

// Metadata returns the metadata being accumulated. Readers update it in place.
func (b *Builder) Metadata() *Metadata { return &b.meta }

// Logger returns the builder's logger with the collection identifier attached.
func (b *Builder) Logger() logrus.FieldLogger {
	return b.logger.WithField("ensemble_id", b.id)
}

// Append adds a record. The correlator is copied, so later changes by the
// caller are never observed. Empty correlators are rejected.
func (b *Builder) Append(r Record) error {
	if b.frozen {
		return merrors.Ingestion(merrors.ErrFrozen, "can't append to a frozen collection").
			WithContext("source", b.source)
	}
	if r.Correlator.Len() == 0 {
		return merrors.Ingestion(merrors.ErrLengthMismatch, "correlation function has no time slices").
			WithContext("stream", r.StreamName).
			WithContext("cfg_index", strconv.Itoa(r.CfgIndex)).
			WithContext("channel", r.Channel)
	}
	if len(b.records) > 0 {
		if want, got := b.records[0].Correlator.Len(), r.Correlator.Len(); got != want {
			return merrors.Ingestionf(merrors.ErrLengthMismatch,
				"correlation function lengths don't match: expected %d, got %d", want, got).
				WithContext("stream", r.StreamName).
				WithContext("cfg_index", strconv.Itoa(r.CfgIndex)).
				WithContext("channel", r.Channel)
		}
	}

	r.Correlator = r.Correlator.clone()
	b.records = append(b.records, r)
	return nil
}

// NT returns the correlator length established by the first record.
func (b *Builder) NT() (int, error) {
	if len(b.records) == 0 {
		return 0, merrors.Ingestion(merrors.ErrEmptyCollection, "collection has no records").
			WithContext("source", b.source)
	}
	return b.records[0].Correlator.Len(), nil
}

// Records returns the records appended so far, in append order.
func (b *Builder) Records() []Record {
	out := make([]Record, len(b.records))
	copy(out, b.records)
	return out
}

// MergeMetadata folds meta into the builder's metadata and logs each conflict.
func (b *Builder) MergeMetadata(meta Metadata) {
	for _, err := range b.meta.Merge(meta) {
		b.Logger().WithField("code", merrors.ErrMetadataConflict).Warn(err.Error())
	}
}

// Freeze converts the builder into an immutable Ensemble, sorted by stream,
// configuration index, source type and connection type. The builder accepts
// no further records. Freezing twice fails with ALREADY_FROZEN.
func (b *Builder) Freeze() (*Ensemble, error) {
	if b.frozen {
		return nil, merrors.Ingestion(merrors.ErrAlreadyFrozen, "collection is already frozen").
			WithContext("source", b.source)
	}
	b.frozen = true

	records := b.records
	b.records = nil
	sort.SliceStable(records, func(i, j int) bool {
		a, c := records[i], records[j]
		if a.StreamName != c.StreamName {
			return a.StreamName < c.StreamName
		}
		if a.CfgIndex != c.CfgIndex {
			return a.CfgIndex < c.CfgIndex
		}
		if a.SourceType != c.SourceType {
			return a.SourceType < c.SourceType
		}
		return a.ConnectionType < c.ConnectionType
	})

	return &Ensemble{
		id:      b.id,
		source:  b.source,
		logger:  b.logger,
		records: records,
		meta:    b.meta.Clone(),
	}, nil
}
