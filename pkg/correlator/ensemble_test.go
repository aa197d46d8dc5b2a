package correlator

import (
	"math"
	"testing"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	merrors "github.com/edbennett/meson-analysis/pkg/errors"
)

func freeze(t *testing.T, meta Metadata, records ...Record) *Ensemble {
	t.Helper()
	b := NewBuilder("test", WithLogger(nullLogger()), WithMetadata(meta))
	for _, r := range records {
		require.NoError(t, b.Append(r))
	}
	e, err := b.Freeze()
	require.NoError(t, err)
	return e
}

func TestEnsembleGetRoundTrip(t *testing.T) {
	records := []Record{
		rec("a", 1, "g5", 0.1, 1.5, 2.5, 3.5),
		rec("a", 1, "gk", 0.1, 4, 5, 6),
		rec("a", 2, "g5", 0.1, 7, 8, 9),
		rec("b", 1, "g5", 0.2, 10, 11, 12),
	}
	e := freeze(t, Metadata{NT: Of(3)}, records...)

	for _, r := range records {
		sel, err := e.Get(Criteria{
			FieldStreamName:     r.StreamName,
			FieldCfgIndex:       r.CfgIndex,
			FieldSourceType:     r.SourceType,
			FieldConnectionType: r.ConnectionType,
			FieldChannel:        r.Channel,
			FieldValenceMass:    r.ValenceMass,
		})
		require.NoError(t, err)
		require.Equal(t, 1, sel.Len())

		key, series := sel.At(0)
		assert.Equal(t, r.Key(), key)
		assert.True(t, r.Correlator.Equal(series))
	}
}

func TestEnsembleGet(t *testing.T) {
	e := freeze(t, Metadata{NT: Of(2)},
		rec("b", 3, "g5", 0.1, 1, 2),
		rec("a", 2, "g5", 0.1, 3, 4),
		rec("a", 1, "g5", 0.1, 5, 6),
		rec("a", 1, "gk", 0.1, 7, 8),
	)

	t.Run("keys follow the frozen order", func(t *testing.T) {
		sel, err := e.Get(Criteria{FieldChannel: "g5"})
		require.NoError(t, err)
		assert.Equal(t, []Key{{"a", 1}, {"a", 2}, {"b", 3}}, sel.Keys())
		assert.Equal(t, []string{"a", "b"}, sel.Streams())

		s, ok := sel.Lookup(Key{"a", 2})
		require.True(t, ok)
		assert.Equal(t, []float64{3, 4}, s.RealParts())

		_, ok = sel.Lookup(Key{"c", 1})
		assert.False(t, ok)
	})

	t.Run("two channels is ambiguous", func(t *testing.T) {
		_, err := e.Get(Criteria{FieldStreamName: "a"})
		require.Error(t, err)
		assert.True(t, merrors.IsCode(err, merrors.ErrAmbiguousSelection))
		me, _ := merrors.AsMesonError(err)
		assert.Equal(t, "channel", me.Context["field"])
	})

	t.Run("no criteria over several channels is ambiguous", func(t *testing.T) {
		_, err := e.Get(Criteria{})
		assert.True(t, merrors.IsCode(err, merrors.ErrAmbiguousSelection))
	})

	t.Run("no match is an empty selection", func(t *testing.T) {
		sel, err := e.Get(Criteria{FieldChannel: "id"})
		require.NoError(t, err)
		assert.Equal(t, 0, sel.Len())
	})

	t.Run("invalid criteria", func(t *testing.T) {
		_, err := e.Get(Criteria{"colour": "red"})
		assert.True(t, merrors.IsCode(err, merrors.ErrInvalidCriteria))

		_, err = e.Get(Criteria{FieldCfgIndex: "1"})
		assert.True(t, merrors.IsCode(err, merrors.ErrInvalidCriteria))

		_, err = e.Get(Criteria{FieldValenceMass: 1})
		assert.True(t, merrors.IsCode(err, merrors.ErrInvalidCriteria))
	})
}

func TestEnsembleGetDistinctMasses(t *testing.T) {
	e := freeze(t, Metadata{},
		rec("a", 1, "g5", 0.1, 1),
		rec("a", 1, "g5", 0.2, 2),
		rec("a", 2, "g5", math.NaN(), 3),
		rec("a", 3, "g5", math.NaN(), 4),
	)

	_, err := e.Get(Criteria{FieldChannel: "g5"})
	assert.True(t, merrors.IsCode(err, merrors.ErrAmbiguousSelection))

	sel, err := e.Get(Criteria{FieldValenceMass: 0.2})
	require.NoError(t, err)
	assert.Equal(t, 1, sel.Len())

	sel, err = e.Get(Criteria{FieldValenceMass: math.NaN()})
	require.NoError(t, err)
	assert.Equal(t, []Key{{"a", 2}, {"a", 3}}, sel.Keys(), "unknown masses group together")
}

func TestEnsembleGetArray(t *testing.T) {
	e := freeze(t, Metadata{NT: Of(3)},
		rec("b", 1, "g5", 0.1, 7, 8, 9),
		rec("a", 1, "g5", 0.1, 1, 2, 3),
		rec("a", 2, "g5", 0.1, 4, 5, 6),
	)

	m, err := e.GetArray(Criteria{FieldChannel: "g5"})
	require.NoError(t, err)
	r, c := m.Dims()
	assert.Equal(t, 3, r)
	assert.Equal(t, 3, c)
	assert.Equal(t, []float64{4, 5, 6}, m.RawRowView(1))
	assert.Equal(t, 9.0, m.At(2, 2))

	_, err = e.GetArray(Criteria{FieldChannel: "none"})
	assert.True(t, merrors.IsCode(err, merrors.ErrEmptySelection))

	cm, err := e.GetComplexArray(Criteria{FieldChannel: "g5"})
	require.NoError(t, err)
	assert.Equal(t, complex(5, 0), cm.At(1, 1))
}

func TestEnsembleGetArrayComplex(t *testing.T) {
	e := freeze(t, Metadata{NT: Of(2)},
		Record{StreamName: "run1", CfgIndex: 1, Channel: "PP", Correlator: Complex([]complex128{1 + 2i, 3 - 4i})},
	)

	_, err := e.GetArray(Criteria{FieldChannel: "PP"})
	assert.True(t, merrors.IsCode(err, merrors.ErrComplexData))

	cm, err := e.GetComplexArray(Criteria{FieldChannel: "PP"})
	require.NoError(t, err)
	assert.Equal(t, 3-4i, cm.At(0, 1))
}

func TestEnsembleCheck(t *testing.T) {
	t.Run("consistent", func(t *testing.T) {
		e := freeze(t, Metadata{NT: Of(2)},
			rec("a", 1, "g5", 0.1, 1, 2),
			rec("a", 1, "gk", 0.1, 1, 2),
			rec("a", 2, "g5", 0.1, 1, 2),
			rec("a", 2, "gk", 0.1, 1, 2),
		)
		assert.NoError(t, e.Check())
		assert.True(t, e.IsConsistent())
		assert.True(t, e.IsConsistent(), "repeatable")
	})

	t.Run("declared NT differs", func(t *testing.T) {
		e := freeze(t, Metadata{NT: Of(4)}, rec("a", 1, "g5", 0.1, 1, 2))
		err := e.Check()
		assert.True(t, merrors.IsCode(err, merrors.ErrNTMismatch))
	})

	t.Run("NT never declared", func(t *testing.T) {
		e := freeze(t, Metadata{}, rec("a", 1, "g5", 0.1, 1, 2))
		assert.True(t, merrors.IsCode(e.Check(), merrors.ErrNTMismatch))
	})

	t.Run("unequal counts", func(t *testing.T) {
		e := freeze(t, Metadata{NT: Of(2)},
			rec("a", 1, "g5", 0.1, 1, 2),
			rec("a", 1, "gk", 0.1, 1, 2),
			rec("a", 2, "g5", 0.1, 1, 2),
		)
		err := e.Check()
		assert.True(t, merrors.IsCode(err, merrors.ErrUnequalCounts))
	})

	t.Run("both problems reported", func(t *testing.T) {
		e := freeze(t, Metadata{NT: Of(3)},
			rec("a", 1, "g5", 0.1, 1, 2),
			rec("a", 1, "gk", 0.1, 1, 2),
			rec("a", 2, "g5", 0.1, 1, 2),
		)
		err := e.Check()
		merr, ok := err.(*multierror.Error)
		require.True(t, ok)
		assert.Len(t, merr.Errors, 2)
	})

	t.Run("empty ensemble", func(t *testing.T) {
		e := freeze(t, Metadata{NT: Of(3)})
		assert.True(t, merrors.IsCode(e.Check(), merrors.ErrEmptyCollection))
		assert.False(t, e.IsConsistent())
	})
}

func TestEnsembleIsConsistentLogs(t *testing.T) {
	logger, hook := test.NewNullLogger()
	b := NewBuilder("out.log", WithLogger(logger), WithMetadata(Metadata{NT: Of(4)}))
	require.NoError(t, b.Append(rec("a", 1, "g5", 0.1, 1, 2)))
	e, err := b.Freeze()
	require.NoError(t, err)

	assert.False(t, e.IsConsistent())
	require.Len(t, hook.AllEntries(), 1)
	assert.Equal(t, merrors.ErrNTMismatch, hook.LastEntry().Data["code"])
	assert.Equal(t, "out.log", hook.LastEntry().Data["source"])
}

func TestEnsembleChannels(t *testing.T) {
	e := freeze(t, Metadata{},
		rec("a", 1, "gk", 0.1, 1),
		rec("a", 1, "g5", 0.1, 1),
		rec("a", 2, "gk", 0.1, 1),
	)
	assert.Equal(t, []string{"g5", "gk"}, e.Channels())
}

func TestMerge(t *testing.T) {
	logger, hook := test.NewNullLogger()
	first := freeze(t, Metadata{NT: Of(2), Beta: Of(2.0)}, rec("a", 1, "g5", 0.1, 1, 2))
	second := freeze(t, Metadata{NT: Of(2), Beta: Of(2.1)}, rec("b", 1, "g5", 0.1, 3, 4))

	b, err := Merge("combined", []*Ensemble{first, nil, second}, WithLogger(logger))
	require.NoError(t, err)
	assert.Equal(t, 2, b.Len())
	beta, _ := b.Metadata().Beta.Get()
	assert.Equal(t, 2.0, beta)
	assert.Len(t, hook.AllEntries(), 1, "beta conflict logged")

	short := freeze(t, Metadata{}, rec("c", 1, "g5", 0.1, 1))
	_, err = Merge("combined", []*Ensemble{first, short})
	assert.True(t, merrors.IsCode(err, merrors.ErrLengthMismatch))
}
