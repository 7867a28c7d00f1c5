package output

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"

	"github.com/torosent/shortfire/internal/engine"
)

// ResultsFileName is the summary file name for s.
func ResultsFileName(s *engine.Summary) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '-'
		}
	}, s.Scenario)
	if name == "" {
		name = "run"
	}
	return fmt.Sprintf("%s-%s-summary.json", name, strings.ToLower(s.RunID))
}

// WriteResults writes the JSON summary into dir and returns its path. The
// directory is locked while writing so concurrent runs sharing a results
// directory never interleave partial files.
func WriteResults(dir string, s *engine.Summary) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("results dir: %w", err)
	}

	lock := flock.New(filepath.Join(dir, ".shortfire.lock"))
	if err := lock.Lock(); err != nil {
		return "", fmt.Errorf("lock results dir: %w", err)
	}
	defer lock.Unlock()

	path := filepath.Join(dir, ResultsFileName(s))
	tmp, err := os.CreateTemp(dir, ".summary-*.json")
	if err != nil {
		return "", fmt.Errorf("write results: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := PrintJSONReport(tmp, s); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write results: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("write results: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("write results: %w", err)
	}
	return path, nil
}
