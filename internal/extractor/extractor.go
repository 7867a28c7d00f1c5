// Package extractor pulls single values out of response bodies, either by
// JSON path or by regular expression.
package extractor

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrNoRule is returned by New when neither a JSON path nor a regex is set.
var ErrNoRule = errors.New("extractor: json path or regex is required")

// Extractor is one compiled extraction rule. A JSON path takes precedence
// over the regex when both are set.
type Extractor struct {
	Name     string
	JSONPath string
	Regex    string

	re *regexp.Regexp
}

// New compiles an extraction rule.
func New(name, jsonPath, pattern string) (Extractor, error) {
	e := Extractor{Name: name, JSONPath: strings.TrimSpace(jsonPath), Regex: pattern}
	if e.JSONPath == "" && pattern == "" {
		return Extractor{}, ErrNoRule
	}
	if e.JSONPath == "" {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return Extractor{}, fmt.Errorf("extractor %s: %w", name, err)
		}
		e.re = re
	}
	return e, nil
}

// MustNew is New for rules fixed at compile time.
func MustNew(name, jsonPath, pattern string) Extractor {
	e, err := New(name, jsonPath, pattern)
	if err != nil {
		panic(err)
	}
	return e
}

// Extract returns the extracted value and whether the rule matched. Empty
// values count as no match.
func (e Extractor) Extract(body []byte) (string, bool) {
	var v string
	switch {
	case e.JSONPath != "":
		v = findJSONPath(body, e.JSONPath)
	case e.re != nil:
		v = findRegex(body, e.re)
	}
	return v, v != ""
}
