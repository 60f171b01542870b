// Package calibration recovers calibration values from document lines. A
// line's value is its first digit followed by its last digit.
package calibration

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrNoDigits is returned for a line that contains no digit.
var ErrNoDigits = errors.New("no digit in line")

// Mode selects which tokens count as digits.
type Mode int

const (
	// Digits counts only the characters '0' to '9'.
	Digits Mode = iota
	// Words also counts the spelled digits "one" to "nine".
	Words
)

var digitWords = [...]string{"one", "two", "three", "four", "five", "six", "seven", "eight", "nine"}

// digitAt returns the digit starting at s[i], if any. Spelled digits may
// overlap, so "eightwo" has a digit at 0 and another at 4.
func digitAt(s string, i int, mode Mode) (int, bool) {
	if ch := s[i]; ch >= '0' && ch <= '9' {
		return int(ch - '0'), true
	}
	if mode != Words {
		return 0, false
	}
	for d, w := range digitWords {
		if strings.HasPrefix(s[i:], w) {
			return d + 1, true
		}
	}
	return 0, false
}

// DigitsOf returns every digit of line in order of position.
func DigitsOf(line string, mode Mode) []int {
	var out []int
	for i := 0; i < len(line); i++ {
		if d, ok := digitAt(line, i, mode); ok {
			out = append(out, d)
		}
	}
	return out
}

// Value returns the two-digit calibration value of line.
func Value(line string, mode Mode) (int, error) {
	digits := DigitsOf(line, mode)
	if len(digits) == 0 {
		return 0, fmt.Errorf("%w: %q", ErrNoDigits, line)
	}
	return digits[0]*10 + digits[len(digits)-1], nil
}

// Sum adds the calibration values of lines. Empty lines are skipped.
func Sum(lines []string, mode Mode) (int, error) {
	total := 0
	for i, line := range lines {
		if line == "" {
			continue
		}
		v, err := Value(line, mode)
		if err != nil {
			return 0, fmt.Errorf("line %d: %w", i+1, err)
		}
		total += v
	}
	return total, nil
}

// SumReader reads one line per calibration entry from r.
func SumReader(r io.Reader, mode Mode) (int, error) {
	var lines []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		lines = append(lines, strings.TrimSpace(sc.Text()))
	}
	if err := sc.Err(); err != nil {
		return 0, fmt.Errorf("read calibration document: %w", err)
	}
	return Sum(lines, mode)
}
