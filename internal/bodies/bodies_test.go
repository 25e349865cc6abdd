package bodies

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup(t *testing.T) {
	testCases := []struct {
		name   string
		input  string
		wantID string
		wantOK bool
	}{
		{"lower case", "mars", "499", true},
		{"mixed case", "Earth", "399", true},
		{"padded", "  Neptune ", "899", true},
		{"dwarf planet", "pluto", "", false},
		{"moon", "phobos", "", false},
		{"empty", "", "", false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			b, ok := Lookup(tc.input)
			assert.Equal(t, tc.wantOK, ok)
			if tc.wantOK {
				require.NotNil(t, b)
				assert.Equal(t, tc.wantID, b.HorizonsID)
				assert.Equal(t, Normalize(tc.input), b.Name)
			}
		})
	}
}

func TestNames(t *testing.T) {
	got := Names()
	assert.Equal(t, []string{
		"mercury", "venus", "earth", "mars", "jupiter", "saturn", "uranus", "neptune",
	}, got)

	// Callers get their own copy
	got[0] = "vulcan"
	assert.Equal(t, "mercury", Names()[0])
}

func TestEveryNameHasBody(t *testing.T) {
	for _, name := range Names() {
		b, ok := Lookup(name)
		require.True(t, ok, name)
		assert.NotEmpty(t, b.HorizonsID)
		assert.Greater(t, b.Elements.A, 0.0)
		assert.Less(t, b.Elements.E, 1.0)
	}
}
