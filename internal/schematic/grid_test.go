package schematic

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const example = `467..114..
...*......
..35..633.
......#...
617*......
.....+.58.
..592.....
......755.
...$.*....
.664.598..`

func mustParse(t *testing.T, s string) *Grid {
	t.Helper()
	g, err := Parse(strings.NewReader(s))
	require.NoError(t, err)
	return g
}

func TestClassify(t *testing.T) {
	tests := []struct {
		ch   byte
		want Class
	}{
		{'0', Digit},
		{'9', Digit},
		{'.', Blank},
		{'*', Symbol},
		{'#', Symbol},
		{'$', Symbol},
		{'a', Symbol},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.ch), "Classify(%q)", tt.ch)
	}
}

func TestNewRejectsMalformedInput(t *testing.T) {
	tests := []struct {
		name  string
		lines []string
	}{
		{"no rows", nil},
		{"empty row", []string{""}},
		{"ragged", []string{"....", "..."}},
		{"short last row", []string{"123.", "...*", ".."}},
		{"space", []string{". .."}},
		{"tab", []string{".\t.."}},
		{"non ascii", []string{".é."}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := New(tt.lines)
			require.ErrorIs(t, err, ErrMalformedInput)
			assert.Nil(t, g)
		})
	}
}

func TestNewRejectsOversizedNumber(t *testing.T) {
	g, err := New([]string{"99999999999999999999*1"})
	require.ErrorIs(t, err, ErrOverflow)
	assert.Nil(t, g)
}

func TestParseLineTooLong(t *testing.T) {
	_, err := Parse(strings.NewReader(strings.Repeat(".", maxLineBytes+1) + "\n"))
	require.ErrorIs(t, err, ErrMalformedInput)
}

func TestParse(t *testing.T) {
	g := mustParse(t, example+"\n")
	assert.Equal(t, 10, g.Height())
	assert.Equal(t, 10, g.Width())
	assert.Equal(t, "..35..633.", g.Row(2))
	assert.Equal(t, example, g.String())

	crlf := mustParse(t, "1.\r\n.*\r\n")
	assert.Equal(t, []string{"1.", ".*"}, crlf.Lines())
}

func TestParseBlankLineIsRagged(t *testing.T) {
	_, err := Parse(strings.NewReader("12.\n\n..*\n"))
	require.ErrorIs(t, err, ErrMalformedInput)
}

func TestAt(t *testing.T) {
	g := mustParse(t, example)

	ch, err := g.At(0, 0)
	require.NoError(t, err)
	assert.Equal(t, byte('4'), ch)

	ch, err = g.At(9, 9)
	require.NoError(t, err)
	assert.Equal(t, byte('.'), ch)

	for _, rc := range [][2]int{{-1, 0}, {0, -1}, {10, 0}, {0, 10}} {
		_, err := g.At(rc[0], rc[1])
		assert.ErrorIs(t, err, ErrOutOfBounds, "At(%d, %d)", rc[0], rc[1])
	}
}

func TestZeroGrid(t *testing.T) {
	var g *Grid
	assert.Equal(t, 0, g.Height())
	assert.Equal(t, 0, g.Width())
	assert.Empty(t, g.String())
	_, err := g.At(0, 0)
	assert.ErrorIs(t, err, ErrOutOfBounds)

	parts, gears := sums(t, g)
	assert.Equal(t, 0, parts)
	assert.Equal(t, 0, gears)
	assert.Empty(t, g.RunsTouching(0, 0))
}
