package extractor

import (
	"regexp"
)

// findRegex returns the first capture group of the first match, or the
// whole match when the pattern has no groups.
func findRegex(body []byte, re *regexp.Regexp) string {
	match := re.FindSubmatch(body)
	if match == nil {
		return ""
	}
	if len(match) > 1 {
		return string(match[1])
	}
	return string(match[0])
}
