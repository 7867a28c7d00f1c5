// Package placeholders renders the URL, slug and title templates used when
// creating short URLs.
//
// A template references values as {{name}}. Lookups resolve, in order, the
// per-call record, the run-wide variables and then the built-ins:
//
//	{{ulid}}  a fresh lowercase ULID
//	{{seq}}   a per-renderer counter starting at 1
//	{{ts}}    the current Unix time in milliseconds
//	{{rand}}  a random integer in [0, 1000000)
//
// Unknown names are left in place.
package placeholders

import (
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/torosent/shortfire/internal/feeder"
	"github.com/torosent/shortfire/internal/population"
)

// Renderer expands templates. It is safe for concurrent use.
type Renderer struct {
	vars feeder.Record
	rng  population.RNG
	seq  atomic.Int64
	now  func() time.Time
}

// New returns a renderer over the run-wide vars. rng backs {{rand}}; a nil
// rng renders {{rand}} as 0.
func New(vars map[string]string, rng population.RNG) *Renderer {
	copied := make(feeder.Record, len(vars))
	for k, v := range vars {
		copied[k] = v
	}
	return &Renderer{vars: copied, rng: rng, now: time.Now}
}

// Render expands template using record for per-call values.
func (r *Renderer) Render(template string, record map[string]string) string {
	if !strings.Contains(template, "{{") {
		return template
	}
	values := make(feeder.Record, len(r.vars)+len(record)+4)
	for k, v := range r.vars {
		values[k] = v
	}
	for k, v := range record {
		values[k] = v
	}
	r.addBuiltins(template, values)
	return feeder.SubstitutePlaceholders(template, values)
}

// Seq returns the last sequence number handed out.
func (r *Renderer) Seq() int64 {
	return r.seq.Load()
}

// addBuiltins fills only the built-ins the template mentions, so {{seq}}
// advances once per rendered template that uses it.
func (r *Renderer) addBuiltins(template string, values feeder.Record) {
	if mentions(template, "ulid") {
		if _, ok := values["ulid"]; !ok {
			values["ulid"] = strings.ToLower(ulid.Make().String())
		}
	}
	if mentions(template, "seq") {
		if _, ok := values["seq"]; !ok {
			values["seq"] = strconv.FormatInt(r.seq.Add(1), 10)
		}
	}
	if mentions(template, "ts") {
		if _, ok := values["ts"]; !ok {
			values["ts"] = strconv.FormatInt(r.now().UnixMilli(), 10)
		}
	}
	if mentions(template, "rand") {
		if _, ok := values["rand"]; !ok {
			n := 0
			if r.rng != nil {
				n = r.rng.Intn(1_000_000)
			}
			values["rand"] = strconv.Itoa(n)
		}
	}
}

func mentions(template, name string) bool {
	return strings.Contains(template, "{{"+name+"}}") || strings.Contains(template, "{{ "+name+" }}")
}
