package cache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edbennett/meson-analysis/pkg/correlator"
	"github.com/edbennett/meson-analysis/pkg/reader"
)

func TestHashParamsDeterministic(t *testing.T) {
	a := hashParams(map[string]string{"b": "2", "a": "1"})
	b := hashParams(map[string]string{"a": "1", "b": "2"})
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
	assert.NotEqual(t, a, hashParams(map[string]string{"a": "1", "b": "3"}))
}

func TestOptionParams(t *testing.T) {
	opts := reader.Options{
		StreamName:  "s",
		ValenceMass: reader.Mass(0.25),
		Metadata:    correlator.Metadata{FermionMass: correlator.Of(0.1)},
	}
	assert.Equal(t, map[string]string{
		"stream_name":           "s",
		"valence_mass":          "0.25",
		"metadata.fermion_mass": "0.1",
	}, optionParams(opts))
}

func TestNewKeyDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "mres.1.xml"), []byte("<a/>"), 0o644))

	first, err := NewKey(reader.FormatHadrons, dir, reader.Options{})
	require.NoError(t, err)
	assert.Contains(t, first.Stamp, "dir-")
	assert.Contains(t, first.String(), "hadrons:")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "mres.2.xml"), []byte("<a/>"), 0o644))
	second, err := NewKey(reader.FormatHadrons, dir, reader.Options{})
	require.NoError(t, err)
	assert.NotEqual(t, first, second, "a new document changes the key")
	assert.Equal(t, first.Path, second.Path)
}
