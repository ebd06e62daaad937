package server

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// parseInt parses one line of user input as a signed decimal integer.
func parseInt(line string) (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(line), 10, 64)
}

// parseASCII parses one line of user input as a single ASCII character.
// Accepted forms are a literal character or a \xNN hex escape. An empty
// line is a newline.
func parseASCII(line string) (byte, error) {
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return '\n', nil
	}
	if len(line) == 4 && (strings.HasPrefix(line, `\x`) || strings.HasPrefix(line, `\X`)) {
		v, err := strconv.ParseUint(line[2:], 16, 8)
		if err != nil {
			return 0, fmt.Errorf("bad hex escape %q", line)
		}
		if v > 127 {
			return 0, fmt.Errorf("value 0x%02x is not ASCII", v)
		}
		return byte(v), nil
	}
	if len(line) > 1 {
		trimmed := strings.TrimSpace(line)
		if len(trimmed) != 1 {
			return 0, errors.New("expected a single character")
		}
		line = trimmed
	}
	if line[0] > 127 {
		return 0, fmt.Errorf("%q is not ASCII", line)
	}
	return line[0], nil
}
