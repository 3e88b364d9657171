package duration

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBareSeconds(t *testing.T) {
	d, err := Parse("30")
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, d)
}

func TestParseFractionalBareSeconds(t *testing.T) {
	d, err := Parse("1.5")
	require.NoError(t, err)
	assert.Equal(t, 1500*time.Millisecond, d)
}

func TestParseUnitSuffix(t *testing.T) {
	cases := map[string]time.Duration{
		"500ms": 500 * time.Millisecond,
		"30s":   30 * time.Second,
		"5m":    5 * time.Minute,
		"2h":    2 * time.Hour,
	}
	for in, want := range cases {
		d, err := Parse(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, d, in)
	}
}

func TestParseCombinedUnits(t *testing.T) {
	d, err := Parse("1h30m500ms")
	require.NoError(t, err)
	assert.Equal(t, time.Hour+30*time.Minute+500*time.Millisecond, d)
}

func TestParseTrimsWhitespace(t *testing.T) {
	d, err := Parse("  30s  ")
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, d)
}

func TestParseEmptyIsError(t *testing.T) {
	_, err := Parse("")
	assert.Error(t, err)
	_, err = Parse("   ")
	assert.Error(t, err)
}

func TestParseNegativeIsError(t *testing.T) {
	_, err := Parse("-5s")
	assert.Error(t, err)
}

func TestParseUnknownUnitIsError(t *testing.T) {
	_, err := Parse("5x")
	assert.Error(t, err)
}

func TestParseInvalidIsError(t *testing.T) {
	_, err := Parse("abc")
	assert.Error(t, err)
}

func TestFormatParseRoundTrip(t *testing.T) {
	cases := []time.Duration{
		30 * time.Second,
		500 * time.Millisecond,
		time.Hour + 30*time.Minute + 500*time.Millisecond,
		2 * time.Hour,
	}
	for _, d := range cases {
		formatted := Format(d)
		parsed, err := Parse(formatted)
		require.NoError(t, err, formatted)
		assert.Equal(t, d, parsed, formatted)
	}
}

func TestFormatZero(t *testing.T) {
	assert.Equal(t, "0s", Format(0))
}
