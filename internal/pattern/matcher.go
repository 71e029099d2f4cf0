// Package pattern extracts company identifiers from document file names.
package pattern

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// DefaultPattern matches a company name followed by "___" or by the .pdf
// suffix, e.g. "Acme___Q1.pdf" or "Acme.pdf".
const DefaultPattern = `^([\p{L}0-9\s]+?)(?:___|\.pdf$)`

// ErrNoCaptureGroup is returned for patterns without a capture group.
var ErrNoCaptureGroup = errors.New("pattern must contain a capture group for the company name")

// Matcher extracts the first capture group of an anchored regular expression.
type Matcher struct {
	re     *regexp.Regexp
	source string
}

// Compile validates pattern and returns a Matcher. The expression is
// anchored at the start of the file name whether or not it begins with ^.
func Compile(pattern string) (*Matcher, error) {
	if strings.TrimSpace(pattern) == "" {
		return nil, errors.New("pattern is empty")
	}

	// The bare pattern must parse on its own so that a stray ")" cannot
	// close the anchoring group and splice an unanchored alternative in.
	if _, err := regexp.Compile(pattern); err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}
	re, err := regexp.Compile(`^(?:` + pattern + `)`)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}
	if re.NumSubexp() < 1 {
		return nil, ErrNoCaptureGroup
	}

	return &Matcher{re: re, source: pattern}, nil
}

// MustCompile is like Compile but panics on error. Use only with constants.
func MustCompile(pattern string) *Matcher {
	m, err := Compile(pattern)
	if err != nil {
		panic(err)
	}
	return m
}

// String returns the pattern as configured.
func (m *Matcher) String() string {
	return m.source
}

// Extract returns the trimmed company identifier captured from filename.
// The name is normalized to NFC first so that decomposed names (as written
// by macOS) match composed company names.
func (m *Matcher) Extract(filename string) (string, bool) {
	match := m.re.FindStringSubmatch(norm.NFC.String(filename))
	if match == nil {
		return "", false
	}

	company := strings.TrimSpace(match[1])
	if company == "" {
		return "", false
	}
	return company, true
}

// Extract compiles pattern and extracts the identifier from filename. An
// invalid pattern never panics; it simply does not match.
func Extract(filename, pattern string) (string, bool) {
	m, err := Compile(pattern)
	if err != nil {
		return "", false
	}
	return m.Extract(filename)
}
