package feeder

import (
	"strings"
)

// SubstitutePlaceholders replaces each {{field}} in template with the
// record's value. Spaces inside the braces are ignored and unknown fields
// are left as written.
func SubstitutePlaceholders(template string, record Record) string {
	if !strings.Contains(template, "{{") {
		return template
	}
	var b strings.Builder
	b.Grow(len(template))
	rest := template
	for {
		open := strings.Index(rest, "{{")
		if open < 0 {
			b.WriteString(rest)
			break
		}
		end := strings.Index(rest[open+2:], "}}")
		if end < 0 {
			b.WriteString(rest)
			break
		}
		end += open + 2
		b.WriteString(rest[:open])
		key := strings.TrimSpace(rest[open+2 : end])
		if v, ok := record[key]; ok {
			b.WriteString(v)
		} else {
			b.WriteString(rest[open : end+2])
		}
		rest = rest[end+2:]
	}
	return b.String()
}
