package feeder

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// JSONFeeder serves the objects of a JSON array. Values of any JSON type are
// rendered as strings.
type JSONFeeder struct {
	records
}

func NewJSONFeeder(path string) (*JSONFeeder, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open JSON file: %w", err)
	}
	defer file.Close()

	var raw []map[string]interface{}
	dec := json.NewDecoder(file)
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode JSON: %w", err)
	}
	if len(raw) == 0 {
		return nil, errors.New("JSON file contains empty array")
	}

	f := &JSONFeeder{}
	f.rows = make([]Record, 0, len(raw))
	for i, obj := range raw {
		if len(obj) == 0 {
			return nil, fmt.Errorf("record %d is empty", i)
		}
		rec := make(Record, len(obj))
		for key, value := range obj {
			rec[key] = fmt.Sprint(value)
		}
		f.rows = append(f.rows, rec)
	}
	return f, nil
}
