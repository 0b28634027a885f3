package cave

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

var (
	ErrBadCoordinate   = errors.New("bad coordinate")
	ErrShortPath       = errors.New("rock path needs at least two vertices")
	ErrDiagonalSegment = errors.New("diagonal rock segment")
	ErrNoPaths         = errors.New("no rock paths in input")
)

// ParseError reports the input line a rock path failed on.
type ParseError struct {
	Line int
	Text string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d %q: %v", e.Line, e.Text, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

type ParseOptions struct {
	// AllowDiagonal accepts segments whose endpoints differ in both axes.
	// DrawRock marks only the endpoints of such segments.
	AllowDiagonal bool
}

// ParsePos parses "x,y". Whitespace around either number is ignored.
func ParsePos(s string) (Pos, error) {
	xs, ys, ok := strings.Cut(s, ",")
	if !ok {
		return Pos{}, fmt.Errorf("%w: %q", ErrBadCoordinate, s)
	}
	x, err := strconv.Atoi(strings.TrimSpace(xs))
	if err != nil {
		return Pos{}, fmt.Errorf("%w: %q", ErrBadCoordinate, s)
	}
	y, err := strconv.Atoi(strings.TrimSpace(ys))
	if err != nil {
		return Pos{}, fmt.Errorf("%w: %q", ErrBadCoordinate, s)
	}
	return Pos{X: x, Y: y}, nil
}

// ParsePath parses one "x1,y1 -> x2,y2 -> ..." line.
func ParsePath(line string, opts ParseOptions) ([]Pos, error) {
	parts := strings.Split(line, "->")
	if len(parts) < 2 {
		return nil, ErrShortPath
	}
	path := make([]Pos, 0, len(parts))
	for _, part := range parts {
		p, err := ParsePos(part)
		if err != nil {
			return nil, err
		}
		path = append(path, p)
	}
	if !opts.AllowDiagonal {
		for i := 1; i < len(path); i++ {
			a, b := path[i-1], path[i]
			if a.X != b.X && a.Y != b.Y {
				return nil, fmt.Errorf("%w: %v -> %v", ErrDiagonalSegment, a, b)
			}
		}
	}
	return path, nil
}

// ReadPaths parses every non-blank line of r as a rock path.
func ReadPaths(r io.Reader, opts ParseOptions) ([][]Pos, error) {
	var paths [][]Pos
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	n := 0
	for sc.Scan() {
		n++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		path, err := ParsePath(text, opts)
		if err != nil {
			return nil, &ParseError{Line: n, Text: text, Err: err}
		}
		paths = append(paths, path)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, ErrNoPaths
	}
	return paths, nil
}

// LoadPaths reads rock paths from a file.
func LoadPaths(name string, opts ParseOptions) ([][]Pos, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	paths, err := ReadPaths(f, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return paths, nil
}
