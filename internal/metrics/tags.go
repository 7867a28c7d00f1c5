package metrics

import (
	"fmt"
	"sort"
	"strings"
)

// Tag is a key:value qualifier appended to a series name.
type Tag struct {
	Key   string
	Value string
}

// Tagged returns the canonical series name for base qualified by tags.
// Tags are rendered sorted by key so equivalent names compare equal.
func Tagged(base string, tags ...Tag) string {
	if len(tags) == 0 {
		return base
	}
	sorted := append([]Tag(nil), tags...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Key < sorted[j].Key })
	parts := make([]string, len(sorted))
	for i, t := range sorted {
		parts[i] = t.Key + ":" + t.Value
	}
	return base + "{" + strings.Join(parts, ",") + "}"
}

// ParseName splits a possibly tagged series name into base and tags.
func ParseName(name string) (string, []Tag, error) {
	name = strings.TrimSpace(name)
	open := strings.IndexByte(name, '{')
	if open == -1 {
		if strings.ContainsRune(name, '}') {
			return "", nil, fmt.Errorf("unbalanced tag braces in %q", name)
		}
		return name, nil, nil
	}
	if !strings.HasSuffix(name, "}") {
		return "", nil, fmt.Errorf("unbalanced tag braces in %q", name)
	}
	base := name[:open]
	body := name[open+1 : len(name)-1]
	if base == "" {
		return "", nil, fmt.Errorf("missing series name in %q", name)
	}
	var tags []Tag
	for _, part := range strings.Split(body, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), ":")
		key, value = strings.TrimSpace(key), strings.TrimSpace(value)
		if !ok || key == "" || value == "" {
			return "", nil, fmt.Errorf("invalid tag %q in %q", part, name)
		}
		tags = append(tags, Tag{Key: key, Value: value})
	}
	return base, tags, nil
}

// Canonical normalises a tagged name so tag order does not matter.
func Canonical(name string) (string, error) {
	base, tags, err := ParseName(name)
	if err != nil {
		return "", err
	}
	return Tagged(base, tags...), nil
}
