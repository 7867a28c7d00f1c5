package metrics

import (
	"sort"
	"strconv"
)

// StatusSeries is the base name of the per-kind status code counters.
const StatusSeries = "http_status"

// StatusName returns the counter name for a response of kind with code.
// A zero code means no response was received.
func StatusName(kind string, code int) string {
	label := "none"
	if code > 0 {
		label = strconv.Itoa(code)
	}
	return Tagged(StatusSeries, Tag{Key: "kind", Value: kind}, Tag{Key: "code", Value: label})
}

// StatusBucket is the response count for one request kind and status code.
type StatusBucket struct {
	Kind  string `json:"kind"`
	Code  string `json:"code"`
	Count int64  `json:"count"`
}

// StatusBuckets extracts the http_status counters from snap.
func StatusBuckets(snap Snapshot) []StatusBucket {
	nested := make(map[string]map[string]int64)
	for name, s := range snap.Series {
		if s.Kind != KindCounter {
			continue
		}
		base, tags, err := ParseName(name)
		if err != nil || base != StatusSeries {
			continue
		}
		var kind, code string
		for _, t := range tags {
			switch t.Key {
			case "kind":
				kind = t.Value
			case "code":
				code = t.Value
			}
		}
		if nested[kind] == nil {
			nested[kind] = make(map[string]int64)
		}
		nested[kind][code] += s.Count
	}
	return FlattenStatusBuckets(nested)
}

// FlattenStatusBuckets converts a nested kind->status map into a sorted slice of StatusBucket rows.
// Rows are sorted by descending count, then by kind/code for stability.
func FlattenStatusBuckets(buckets map[string]map[string]int64) []StatusBucket {
	if len(buckets) == 0 {
		return nil
	}
	rows := make([]StatusBucket, 0)
	for kind, codes := range buckets {
		for code, count := range codes {
			rows = append(rows, StatusBucket{Kind: kind, Code: code, Count: count})
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Count == rows[j].Count {
			if rows[i].Kind == rows[j].Kind {
				return rows[i].Code < rows[j].Code
			}
			return rows[i].Kind < rows[j].Kind
		}
		return rows[i].Count > rows[j].Count
	})
	return rows
}
