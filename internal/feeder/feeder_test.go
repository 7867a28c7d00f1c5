package feeder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func TestCSVFeederReadsInOrder(t *testing.T) {
	path := writeFile(t, "codes.csv", `short_code, long_url
# exported from a previous run
abc1,https://example.com/1
abc2,https://example.com/2
abc3,https://example.com/3`)

	f, err := NewCSVFeeder(path)
	if err != nil {
		t.Fatalf("NewCSVFeeder() error = %v", err)
	}
	defer f.Close()

	if f.Len() != 3 {
		t.Errorf("Len() = %d, want 3", f.Len())
	}
	ctx := context.Background()
	for i := 1; i <= 3; i++ {
		rec, err := f.Next(ctx)
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		if want := fmt.Sprintf("abc%d", i); rec["short_code"] != want {
			t.Errorf("record %d short_code = %q, want %q", i, rec["short_code"], want)
		}
	}
	if _, err := f.Next(ctx); !errors.Is(err, ErrExhausted) {
		t.Errorf("Next() after last = %v, want ErrExhausted", err)
	}
}

func TestJSONFeederStringifiesValues(t *testing.T) {
	path := writeFile(t, "codes.json", `[
  {"short_code": "j1", "visits": 12},
  {"short_code": "j2", "visits": 1.5, "archived": true}
]`)

	f, err := NewJSONFeeder(path)
	if err != nil {
		t.Fatalf("NewJSONFeeder() error = %v", err)
	}
	ctx := context.Background()
	first, _ := f.Next(ctx)
	second, _ := f.Next(ctx)
	if first["visits"] != "12" || second["visits"] != "1.5" || second["archived"] != "true" {
		t.Errorf("records = %v, %v", first, second)
	}
}

func TestOpenInfersType(t *testing.T) {
	csvPath := writeFile(t, "seed.CSV", "short_code\nx\n")
	f, err := Open(csvPath, "")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if _, ok := f.(*CSVFeeder); !ok {
		t.Errorf("Open() = %T, want *CSVFeeder", f)
	}

	if _, err := Open(csvPath, "xml"); err == nil {
		t.Error("Open() accepted an unsupported type")
	}
}

func TestColumn(t *testing.T) {
	path := writeFile(t, "codes.csv", "short_code,note\nc1,a\n ,blank\nc2,b\n")
	f, err := NewCSVFeeder(path)
	if err != nil {
		t.Fatalf("NewCSVFeeder() error = %v", err)
	}
	codes, err := Column(context.Background(), f, "short_code")
	if err != nil {
		t.Fatalf("Column() error = %v", err)
	}
	if len(codes) != 2 || codes[0] != "c1" || codes[1] != "c2" {
		t.Errorf("Column() = %v, want [c1 c2]", codes)
	}

	f2, _ := NewCSVFeeder(path)
	if _, err := Column(context.Background(), f2, "code"); !errors.Is(err, ErrMissingColumn) {
		t.Errorf("Column() error = %v, want ErrMissingColumn", err)
	}
}

func TestFeederConcurrentAccess(t *testing.T) {
	content := "short_code\n"
	for i := 0; i < 100; i++ {
		content += fmt.Sprintf("code%d\n", i)
	}
	f, err := NewCSVFeeder(writeFile(t, "many.csv", content))
	if err != nil {
		t.Fatalf("NewCSVFeeder() error = %v", err)
	}

	var (
		mu   sync.Mutex
		seen = map[string]int{}
		wg   sync.WaitGroup
	)
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				rec, err := f.Next(context.Background())
				if err != nil {
					return
				}
				mu.Lock()
				seen[rec["short_code"]]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(seen) != 100 {
		t.Fatalf("read %d distinct records, want 100", len(seen))
	}
	for code, n := range seen {
		if n != 1 {
			t.Errorf("%s read %d times", code, n)
		}
	}
}

func TestFeederErrors(t *testing.T) {
	if _, err := NewCSVFeeder(filepath.Join(t.TempDir(), "missing.csv")); err == nil {
		t.Error("NewCSVFeeder() accepted a missing file")
	}
	if _, err := NewCSVFeeder(writeFile(t, "header.csv", "short_code\n")); err == nil {
		t.Error("NewCSVFeeder() accepted a header-only file")
	}
	if _, err := NewCSVFeeder(writeFile(t, "ragged.csv", "a,b\n1\n")); err == nil {
		t.Error("NewCSVFeeder() accepted a ragged row")
	}
	if _, err := NewJSONFeeder(writeFile(t, "bad.json", "{not json")); err == nil {
		t.Error("NewJSONFeeder() accepted invalid JSON")
	}
	if _, err := NewJSONFeeder(writeFile(t, "empty.json", "[]")); err == nil {
		t.Error("NewJSONFeeder() accepted an empty array")
	}
}

func TestFeederContextCancellation(t *testing.T) {
	f, err := NewCSVFeeder(writeFile(t, "c.csv", "short_code\nx\n"))
	if err != nil {
		t.Fatalf("NewCSVFeeder() error = %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := f.Next(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Next() error = %v, want context.Canceled", err)
	}
}

func TestSubstitutePlaceholders(t *testing.T) {
	rec := Record{"run": "01J", "index": "7", "empty": ""}
	tests := []struct {
		template string
		want     string
	}{
		{"https://example.com/{{run}}/{{index}}", "https://example.com/01J/7"},
		{"{{ index }}-{{index}}", "7-7"},
		{"keep {{unknown}} as is", "keep {{unknown}} as is"},
		{"x{{empty}}y", "xy"},
		{"unterminated {{run", "unterminated {{run"},
		{"no placeholders", "no placeholders"},
	}
	for _, tt := range tests {
		if got := SubstitutePlaceholders(tt.template, rec); got != tt.want {
			t.Errorf("SubstitutePlaceholders(%q) = %q, want %q", tt.template, got, tt.want)
		}
	}
}
