package station

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

// ErrMalformed is returned for a line whose duration is not a positive
// integer number of seconds.
var ErrMalformed = errors.New("malformed command line")

// Request is one parsed command line.
type Request struct {
	Line     string
	Code     string
	Duration time.Duration // zero when the line carries none
}

// ParseLine splits a "CODE" or "CODE:SECONDS" line. Surrounding whitespace
// is ignored.
func ParseLine(line string) (Request, error) {
	line = strings.TrimSpace(line)
	req := Request{Line: line}

	code, secs, hasDuration := strings.Cut(line, ":")
	req.Code = strings.TrimSpace(code)
	if req.Code == "" {
		return req, ErrMalformed
	}
	if !hasDuration {
		return req, nil
	}

	n, err := strconv.Atoi(strings.TrimSpace(secs))
	if err != nil || n <= 0 {
		return req, ErrMalformed
	}
	req.Duration = time.Duration(n) * time.Second
	return req, nil
}

// Response tags that are not part of the command table.
const (
	TagUnknown    = "UNKNOWN_CODE"
	TagBadRequest = "BAD_REQUEST"
	TagReady      = "Pi ready"
)

// Respond formats a response line, truncating output to limit bytes. The
// line is plain ASCII: line breaks become spaces and anything else outside
// ASCII becomes '?'.
func Respond(tag, output string, limit int) string {
	output = strings.Map(asciiOnly, output)
	if limit > 0 && len(output) > limit {
		output = output[:limit]
	}
	return tag + ":" + output
}

func asciiOnly(r rune) rune {
	switch {
	case r == '\n' || r == '\r' || r == '\t':
		return ' '
	case r >= 0x80:
		return '?'
	}
	return r
}
