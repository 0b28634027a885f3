package cave

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePos(t *testing.T) {
	p, err := ParsePos("59, 10")
	require.NoError(t, err)
	assert.Equal(t, Pos{X: 59, Y: 10}, p)

	for _, bad := range []string{"", "59", "a,1", "1,b", "1;2"} {
		_, err := ParsePos(bad)
		assert.ErrorIs(t, err, ErrBadCoordinate, "input %q", bad)
	}
}

func TestLoadPathsSample(t *testing.T) {
	paths, err := LoadPaths("testdata/sample.txt", ParseOptions{})
	require.NoError(t, err)
	require.Len(t, paths, 2)
	assert.Len(t, paths[0], 3)
	assert.Equal(t, 502, paths[1][2].X)
}

func TestReadPathsSkipsBlankLines(t *testing.T) {
	in := "\n498,4 -> 498,6\n\n   \n503,4 -> 502,4\n"
	paths, err := ReadPaths(strings.NewReader(in), ParseOptions{})
	require.NoError(t, err)
	assert.Len(t, paths, 2)
}

func TestReadPathsErrors(t *testing.T) {
	cases := []struct {
		name string
		in   string
		line int
		want error
	}{
		{"bad number", "1,1 -> 1,x", 1, ErrBadCoordinate},
		{"missing arrow", "1,1\n", 1, ErrShortPath},
		{"diagonal", "498,4 -> 498,6\n0,0 -> 2,2", 2, ErrDiagonalSegment},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ReadPaths(strings.NewReader(tc.in), ParseOptions{})
			require.ErrorIs(t, err, tc.want)
			var pe *ParseError
			require.True(t, errors.As(err, &pe))
			assert.Equal(t, tc.line, pe.Line)
		})
	}

	_, err := ReadPaths(strings.NewReader("\n\n"), ParseOptions{})
	assert.ErrorIs(t, err, ErrNoPaths)
}

func TestParsePathAllowDiagonal(t *testing.T) {
	path, err := ParsePath("0,0 -> 2,2", ParseOptions{AllowDiagonal: true})
	require.NoError(t, err)
	assert.Equal(t, []Pos{{0, 0}, {2, 2}}, path)
}
