package at

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// Response is the base classification of a complete response buffer. It
// references the accumulated bytes instead of copying them.
type Response struct {
	raw []byte

	// Terminated reports that a final result line was found.
	Terminated bool
	// Success reports that the final result line was OK.
	Success bool
	// Final is the final result line, e.g. "OK", "ERROR", "+CME ERROR: 10".
	Final string
	// Code is the numeric +CME/+CMS error code, valid when HasCode is set.
	Code    int
	HasCode bool

	dataStart, dataEnd int
	hasData            bool
}

// Classify splits buf into its final result and its first structured data
// line. It fails with ErrMalformedResponse when buf carries no final result.
func Classify(buf []byte) (Response, error) {
	r := Response{raw: buf}
	scanLines(buf, func(l line) bool {
		if !l.complete {
			return true
		}
		text := string(l.text)
		switch LineType(text) {
		case TypeFinal:
			if !r.Terminated {
				r.Terminated = true
				r.Final = text
				r.Success = text == OK
				r.Code, r.HasCode = errorCode(text)
			}
		case TypeData:
			if !r.hasData && strings.HasPrefix(text, "+") {
				r.hasData = true
				r.dataStart = l.start
				r.dataEnd = l.start + len(l.text)
			}
		}
		return true
	})
	if !r.Terminated {
		return r, fmt.Errorf("%w: no final result in %q", ErrMalformedResponse, buf)
	}
	return r, nil
}

// errorCode extracts the numeric code of a +CME ERROR / +CMS ERROR line.
// Verbose (textual) error reports have no code.
func errorCode(final string) (int, bool) {
	var rest string
	switch {
	case strings.HasPrefix(final, CmeError):
		rest = final[len(CmeError):]
	case strings.HasPrefix(final, CmsError):
		rest = final[len(CmsError):]
	default:
		return 0, false
	}
	code, err := strconv.Atoi(strings.TrimSpace(rest))
	if err != nil {
		return 0, false
	}
	return code, true
}

// Raw returns the classified buffer.
func (r Response) Raw() []byte {
	return r.raw
}

// Data returns the first structured data line, if any.
func (r Response) Data() (string, bool) {
	if !r.hasData {
		return "", false
	}
	return string(r.raw[r.dataStart:r.dataEnd]), true
}

// Payload returns the text after prefix (e.g. "+CSQ:") of the first data line
// starting with it, with surrounding blanks trimmed.
func (r Response) Payload(prefix string) (string, bool) {
	p := r.Payloads(prefix)
	if len(p) == 0 {
		return "", false
	}
	return p[0], true
}

// Payloads returns the payload of every data line starting with prefix, in
// arrival order. Multi-line replies such as AT+CGDCONT? use it.
func (r Response) Payloads(prefix string) []string {
	if prefix == "" {
		return nil
	}
	var out []string
	scanLines(r.raw, func(l line) bool {
		if l.complete && bytes.HasPrefix(l.text, []byte(prefix)) {
			out = append(out, strings.TrimSpace(string(l.text[len(prefix):])))
		}
		return true
	})
	return out
}
