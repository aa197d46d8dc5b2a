package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edbennett/meson-analysis/pkg/correlator"
	merrors "github.com/edbennett/meson-analysis/pkg/errors"
	"github.com/edbennett/meson-analysis/pkg/metrics"
	"github.com/edbennett/meson-analysis/pkg/reader"
)

// countingLoader builds a one-record ensemble per call and counts calls.
type countingLoader struct {
	calls int
	err   error
}

func (l *countingLoader) Read(format, path string, opts reader.Options) (*correlator.Ensemble, error) {
	l.calls++
	if l.err != nil {
		return nil, l.err
	}
	b := correlator.NewBuilder(path)
	if err := b.Append(correlator.Record{StreamName: "a", Channel: "g5", Correlator: correlator.Real([]float64{1})}); err != nil {
		return nil, err
	}
	return b.Freeze()
}

func tempInput(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newTestCache(t *testing.T, loader Loader, capacity int) (*Cache, *metrics.Metrics) {
	t.Helper()
	logger, _ := test.NewNullLogger()
	m := metrics.New(nil)
	c, err := New(loader, capacity, WithLogger(logger), WithMetrics(m))
	require.NoError(t, err)
	return c, m
}

func TestCacheHitAndMiss(t *testing.T) {
	loader := &countingLoader{}
	c, m := newTestCache(t, loader, 4)
	path := tempInput(t, "out.log", "data")

	first, err := c.Read(reader.FormatHirep, path, reader.Options{})
	require.NoError(t, err)
	second, err := c.Read(reader.FormatHirep, path, reader.Options{})
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, loader.calls)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheRequests.WithLabelValues(metrics.CacheHit)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheRequests.WithLabelValues(metrics.CacheMiss)))
}

func TestCacheKeyedOnParameters(t *testing.T) {
	loader := &countingLoader{}
	c, _ := newTestCache(t, loader, 4)
	path := tempInput(t, "flex.log", "data")

	_, err := c.Read(reader.FormatFlexlatsim, path, reader.Options{ValenceMass: reader.Mass(0.1)})
	require.NoError(t, err)
	_, err = c.Read(reader.FormatFlexlatsim, path, reader.Options{ValenceMass: reader.Mass(0.2)})
	require.NoError(t, err)
	_, err = c.Read(reader.FormatHirep, path, reader.Options{ValenceMass: reader.Mass(0.1)})
	require.NoError(t, err)
	_, err = c.Read(reader.FormatFlexlatsim, path, reader.Options{ValenceMass: reader.Mass(0.1)})
	require.NoError(t, err)

	assert.Equal(t, 3, loader.calls)
	assert.Equal(t, 3, c.Len())
}

func TestCacheCanonicalPath(t *testing.T) {
	loader := &countingLoader{}
	c, _ := newTestCache(t, loader, 4)
	path := tempInput(t, "out.log", "data")
	dir, name := filepath.Split(path)

	_, err := c.Read(reader.FormatHirep, path, reader.Options{})
	require.NoError(t, err)
	_, err = c.Read(reader.FormatHirep, filepath.Join(dir, ".", "..", filepath.Base(dir), name), reader.Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, loader.calls)
}

func TestCacheChangedInputIsReparsed(t *testing.T) {
	loader := &countingLoader{}
	c, _ := newTestCache(t, loader, 4)
	path := tempInput(t, "out.log", "data")

	_, err := c.Read(reader.FormatHirep, path, reader.Options{})
	require.NoError(t, err)

	later := time.Now().Add(time.Hour)
	require.NoError(t, os.WriteFile(path, []byte("more data"), 0o644))
	require.NoError(t, os.Chtimes(path, later, later))

	_, err = c.Read(reader.FormatHirep, path, reader.Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, loader.calls)
}

func TestCacheEviction(t *testing.T) {
	loader := &countingLoader{}
	c, _ := newTestCache(t, loader, 2)
	a := tempInput(t, "a.log", "a")
	b := tempInput(t, "b.log", "b")
	d := tempInput(t, "d.log", "d")

	for _, path := range []string{a, b, d} {
		_, err := c.Read(reader.FormatHirep, path, reader.Options{})
		require.NoError(t, err)
	}
	assert.Equal(t, 2, c.Len())

	_, err := c.Read(reader.FormatHirep, a, reader.Options{})
	require.NoError(t, err)
	assert.Equal(t, 4, loader.calls, "least recently used entry was evicted")
}

func TestCacheInvalidateAndPurge(t *testing.T) {
	loader := &countingLoader{}
	c, _ := newTestCache(t, loader, 4)
	a := tempInput(t, "a.log", "a")
	b := tempInput(t, "b.log", "b")

	for _, opts := range []reader.Options{{}, {StreamName: "x"}} {
		_, err := c.Read(reader.FormatHirep, a, opts)
		require.NoError(t, err)
	}
	_, err := c.Read(reader.FormatHirep, b, reader.Options{})
	require.NoError(t, err)

	assert.Equal(t, 2, c.Invalidate(a))
	assert.Equal(t, 1, c.Len())
	assert.Equal(t, 0, c.Invalidate(filepath.Join(t.TempDir(), "missing")))

	c.Purge()
	assert.Equal(t, 0, c.Len())
}

func TestCacheErrors(t *testing.T) {
	t.Run("failed parse is not cached", func(t *testing.T) {
		loader := &countingLoader{err: merrors.Structural(merrors.ErrMalformedLine, "bad")}
		c, _ := newTestCache(t, loader, 2)
		path := tempInput(t, "out.log", "data")

		for i := 0; i < 2; i++ {
			_, err := c.Read(reader.FormatHirep, path, reader.Options{})
			assert.True(t, merrors.IsCode(err, merrors.ErrMalformedLine))
		}
		assert.Equal(t, 2, loader.calls)
		assert.Equal(t, 0, c.Len())
	})

	t.Run("missing input", func(t *testing.T) {
		loader := &countingLoader{}
		c, _ := newTestCache(t, loader, 2)
		_, err := c.Read(reader.FormatHirep, filepath.Join(t.TempDir(), "missing"), reader.Options{})
		assert.True(t, merrors.IsCode(err, merrors.ErrInputUnreadable))
		assert.Equal(t, 0, loader.calls)
	})

	t.Run("capacity must be positive", func(t *testing.T) {
		_, err := New(&countingLoader{}, 0)
		assert.True(t, merrors.IsCode(err, merrors.ErrConfigInvalid))
	})
}

func TestCacheWithRegistry(t *testing.T) {
	logger, _ := test.NewNullLogger()
	c, err := New(reader.Default(), 2, WithLogger(logger))
	require.NoError(t, err)

	path := tempInput(t, "out_corr", `[GEOMETRY][0]Global size is 2x2x2x2
[IO][0]Configuration [run1_2x2x2x2nc2b2.0m-0.5n1] read
[MAIN][0]conf #0 mass=-0.5 TRIPLET g5= 1 2
`)
	e, err := c.Read(reader.FormatHirep, path, reader.Options{Logger: logger})
	require.NoError(t, err)
	assert.Equal(t, 1, e.Len())
}
