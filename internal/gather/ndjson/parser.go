package ndjson

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"replaychart/internal/domain"
)

// ErrMissingHeader is reported for a line without an "hd" object.
var ErrMissingHeader = errors.New("missing hd header")

// ParseLines decodes every non-blank line of data as one RawBar. Good lines
// go to emit, bad ones to reject; neither stops the scan. lineNo is the
// 1-based position in data. Returns the number of non-blank lines.
func ParseLines(data []byte, emit func(lineNo int, bar domain.RawBar), reject func(lineNo int, line string, err error)) int {
	count := 0
	for i, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		count++

		bar, err := ParseLine([]byte(line))
		if err != nil {
			reject(i+1, line, err)
			continue
		}
		emit(i+1, bar)
	}
	return count
}

// ParseLine decodes a single JSON object. Anything other than an object
// carrying an hd header is an error.
func ParseLine(line []byte) (domain.RawBar, error) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 || line[0] != '{' {
		return domain.RawBar{}, fmt.Errorf("not a JSON object")
	}

	var bar domain.RawBar
	if err := json.Unmarshal(line, &bar); err != nil {
		return domain.RawBar{}, fmt.Errorf("decoding line: %w", err)
	}
	if bar.Hd == nil {
		return domain.RawBar{}, ErrMissingHeader
	}
	return bar, nil
}
