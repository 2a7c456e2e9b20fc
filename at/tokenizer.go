package at

import (
	"bufio"
	"bytes"
	"strings"
)

// Splitter is used for tokenizing AT command modem responses. It uses
// the signature of bufio.SplitFunc so it can be directly used with bufio.Scanner.
//
// It splits the input by CRLF line endings and also
// recognizes the data input prompt ("> ").
//
// Command echo is not stripped: with echo enabled the echoed command shows up
// as an ordinary data token and is ignored by the classifiers.
//
// The atEOF parameter indicates whether any more data will be available.
// When true, any remaining data is returned as the final token.
func Splitter(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}

	// 1. Match data prompt
	if bytes.HasPrefix(data, []byte(Prompt)) {
		return len(Prompt), data[0:len(Prompt)], nil
	}

	// 2. Match standard line ending with CRLF
	if i := bytes.Index(data, []byte(CRLF)); i >= 0 {
		return i + len(CRLF), data[0:i], nil
	}

	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

var _ bufio.SplitFunc = Splitter

// line is one token produced by Splitter together with its position in the
// scanned buffer.
type line struct {
	text     []byte
	start    int
	complete bool
}

// scanLines walks buf with Splitter and calls fn for every token. Tokens that
// are not terminated by CRLF (or are not a prompt) are reported with
// complete=false. Iteration stops when fn returns false.
func scanLines(buf []byte, fn func(l line) bool) {
	off := 0
	for off < len(buf) {
		adv, tok, _ := Splitter(buf[off:], false)
		complete := true
		if adv == 0 {
			adv, tok, _ = Splitter(buf[off:], true)
			complete = false
		}
		if !fn(line{text: tok, start: off, complete: complete}) {
			return
		}
		off += adv
	}
}

// IsFinal reports whether line is a final result code: OK, ERROR, a call
// failure such as NO CARRIER, or a +CME/+CMS error report.
func IsFinal(line string) bool {
	switch line {
	case OK, ERROR, NoCarrier, NoDialtone, Busy, NoAnswer:
		return true
	}
	return strings.HasPrefix(line, CmeError) || strings.HasPrefix(line, CmsError)
}

// LineType identifies the nature of a single modem output line.
func LineType(line string) ResponseType {
	if line == Prompt {
		return TypePrompt
	}

	if IsFinal(line) {
		return TypeFinal
	}

	switch {
	case strings.HasPrefix(line, UrcNewMsg),
		strings.HasPrefix(line, UrcMessageReport),
		strings.HasPrefix(line, UrcMQTTStatus),
		strings.HasPrefix(line, UrcMQTTRecv),
		strings.HasPrefix(line, UrcIndication),
		line == UrcCall, line == UrcReady:
		return TypeURC
	default:
		return TypeData
	}
}

// URCs returns every complete unsolicited result line contained in buf.
func URCs(buf []byte) []string {
	var out []string
	scanLines(buf, func(l line) bool {
		if l.complete && LineType(string(l.text)) == TypeURC {
			out = append(out, string(l.text))
		}
		return true
	})
	return out
}
