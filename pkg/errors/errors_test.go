package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	me := New("TEST_ERROR", CategoryIngestion, "test message")

	assert.Equal(t, "TEST_ERROR", me.Code)
	assert.Equal(t, CategoryIngestion, me.Category)
	assert.Equal(t, "test message", me.Message)
	assert.NotNil(t, me.Context)
	assert.Nil(t, me.Cause)
	assert.Nil(t, me.Suggestions)
}

func TestMesonError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *MesonError
		expected string
	}{
		{
			name:     "without cause",
			err:      New(ErrFrozen, CategoryIngestion, "collection is frozen"),
			expected: "FROZEN: collection is frozen",
		},
		{
			name:     "with cause",
			err:      New(ErrInputUnreadable, CategoryIO, "cannot read input").WithCause(fmt.Errorf("permission denied")),
			expected: "INPUT_UNREADABLE: cannot read input: permission denied",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestMesonError_ChainInspection(t *testing.T) {
	base := Structuralf(ErrTimeIndexOutOfSequence, "expected %d, got %d", 1, 2)

	t.Run("pkg/errors wrap keeps the code reachable", func(t *testing.T) {
		wrapped := pkgerrors.Wrapf(base, "log.txt:%d", 12)
		assert.True(t, IsCode(wrapped, ErrTimeIndexOutOfSequence))
		assert.True(t, IsCategory(wrapped, CategoryStructural))
		assert.False(t, IsCode(wrapped, ErrFrozen))
	})

	t.Run("errors.Is matches by code", func(t *testing.T) {
		wrapped := fmt.Errorf("parse: %w", base)
		assert.True(t, stderrors.Is(wrapped, New(ErrTimeIndexOutOfSequence, CategoryInternal, "")))
		assert.False(t, stderrors.Is(wrapped, New(ErrUnknownChannel, CategoryStructural, "")))
	})

	t.Run("plain errors are not meson errors", func(t *testing.T) {
		_, ok := AsMesonError(fmt.Errorf("boom"))
		assert.False(t, ok)
		_, ok = AsMesonError(nil)
		assert.False(t, ok)
	})
}

func TestContextString(t *testing.T) {
	me := New(ErrMalformedLine, CategoryStructural, "bad line").
		WithContext("line", "7").
		WithContext("file", "out.log")

	assert.Equal(t, `file="out.log", line="7"`, me.ContextString())
	assert.Empty(t, New("X", CategoryInternal, "").ContextString())
}

func TestConstructorsAttachSuggestions(t *testing.T) {
	me := Ingestion(ErrAmbiguousSelection, "multiple channels")
	require.True(t, me.HasSuggestions())
	assert.Equal(t, Suggestions(ErrAmbiguousSelection), me.Suggestions)

	dq := DataQuality(ErrDuplicateData, "seen twice")
	assert.False(t, dq.HasSuggestions())
	assert.Equal(t, CategoryDataQuality, dq.Category)
}

func TestSuggestionsReturnsCopy(t *testing.T) {
	s := Suggestions(ErrUnknownFormat)
	require.NotEmpty(t, s)
	s[0] = "changed"
	assert.NotEqual(t, "changed", Suggestions(ErrUnknownFormat)[0])
	assert.Nil(t, Suggestions("NO_SUCH_CODE"))
}

func TestSprint(t *testing.T) {
	me := Structural(ErrUnknownChannel, "unknown raw channel").
		WithContext("channel", "weird")

	out := Sprint(pkgerrors.Wrap(me, "flexlatsim"))
	assert.Contains(t, out, "ERROR [UNKNOWN_CHANNEL]: unknown raw channel")
	assert.Contains(t, out, "  channel: weird")
	assert.Contains(t, out, "→ Add the raw label")
	assert.NotContains(t, out, colorReset)

	assert.Equal(t, "Error: plain", Sprint(fmt.Errorf("plain")))
	assert.Empty(t, Sprint(nil))
}
