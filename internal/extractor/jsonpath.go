package extractor

import (
	"github.com/tidwall/gjson"
)

// findJSONPath evaluates path with gjson. A leading "$." is stripped and a
// bare "$" selects the whole document.
func findJSONPath(body []byte, path string) string {
	switch {
	case path == "$":
		path = "@this"
	case len(path) > 1 && path[0] == '$' && path[1] == '.':
		path = path[2:]
	}
	if !gjson.ValidBytes(body) {
		return ""
	}
	result := gjson.GetBytes(body, path)
	if !result.Exists() {
		return ""
	}
	return result.String()
}
