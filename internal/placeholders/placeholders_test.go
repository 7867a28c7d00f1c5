package placeholders

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/torosent/shortfire/internal/population"
)

func TestRenderLookupOrder(t *testing.T) {
	r := New(map[string]string{"run": "01run", "scenario": "baseline"}, population.NewRNG(1))

	got := r.Render("https://example.com/{{scenario}}/test-{{index}}-{{run}}", map[string]string{"index": "4"})
	assert.Equal(t, "https://example.com/baseline/test-4-01run", got)

	got = r.Render("{{run}}", map[string]string{"run": "override"})
	assert.Equal(t, "override", got)

	assert.Equal(t, "keep {{nope}}", r.Render("keep {{nope}}", nil))
	assert.Equal(t, "plain", r.Render("plain", nil))
}

func TestRenderSeq(t *testing.T) {
	r := New(nil, nil)
	assert.Equal(t, "Viral Content 1", r.Render("Viral Content {{seq}}", nil))
	assert.Equal(t, "Viral Content 2", r.Render("Viral Content {{ seq }}", nil))
	assert.Equal(t, "no counter", r.Render("no counter", nil))
	assert.Equal(t, int64(2), r.Seq())
}

func TestRenderULIDIsUniqueAndLowercase(t *testing.T) {
	r := New(nil, nil)
	seen := map[string]bool{}
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				v := r.Render("{{ulid}}", nil)
				mu.Lock()
				seen[v] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Len(t, seen, 400)
	for v := range seen {
		assert.Len(t, v, 26)
		assert.Equal(t, strings.ToLower(v), v)
	}
}

func TestRenderTimestampAndRand(t *testing.T) {
	r := New(nil, population.NewRNG(5))
	r.now = func() time.Time { return time.UnixMilli(1700000000123) }

	assert.Equal(t, "t-1700000000123", r.Render("t-{{ts}}", nil))

	got := r.Render("{{rand}}", nil)
	assert.NotEqual(t, "{{rand}}", got)
	assert.NotEmpty(t, got)

	assert.Equal(t, "0", New(nil, nil).Render("{{rand}}", nil))
}
