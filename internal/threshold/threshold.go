package threshold

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/torosent/shortfire/internal/metrics"
)

// Severity decides how a failed threshold affects the overall verdict.
type Severity string

const (
	SeverityFail Severity = "fail"
	SeverityWarn Severity = "warn"
)

// Verdict is the overall or per-rule outcome.
type Verdict string

const (
	VerdictPass Verdict = "pass"
	VerdictWarn Verdict = "warn"
	VerdictFail Verdict = "fail"
)

// Threshold represents a performance assertion that can pass or fail.
type Threshold struct {
	Metric    string   `json:"metric"`    // canonical series name, tags included
	Aggregate string   `json:"aggregate"` // p95, avg, rate, count, ...
	Operator  string   `json:"operator"`  // <, <=, >, >=, ==
	Value     float64  `json:"value"`
	Severity  Severity `json:"severity"`
	Raw       string   `json:"raw"` // original string for display
}

// Result represents the outcome of evaluating a threshold.
type Result struct {
	Threshold Threshold `json:"threshold"`
	Actual    float64   `json:"actual"`
	// Observed is false when no value could be read: missing series,
	// undefined rate, or an aggregate the series kind does not support.
	Observed bool   `json:"observed"`
	Pass     bool   `json:"pass"`
	Message  string `json:"message"`
}

// Report is the verdict for one run.
type Report struct {
	Results []Result `json:"results"`
	Overall Verdict  `json:"overall"`
}

// Failed returns the results that did not pass.
func (r Report) Failed() []Result {
	var out []Result
	for _, res := range r.Results {
		if !res.Pass {
			out = append(out, res)
		}
	}
	return out
}

// Evaluator evaluates thresholds against an aggregated snapshot.
type Evaluator struct {
	thresholds []Threshold
}

// NewEvaluator creates a new threshold evaluator.
func NewEvaluator(thresholds []Threshold) *Evaluator {
	return &Evaluator{thresholds: thresholds}
}

// Evaluate checks every threshold independently. It never fails: problems
// reading a value become failed results.
func (e *Evaluator) Evaluate(snap metrics.Snapshot) Report {
	report := Report{Overall: VerdictPass}
	if e == nil {
		return report
	}
	report.Results = make([]Result, 0, len(e.thresholds))
	for _, t := range e.thresholds {
		res := evaluateOne(t, snap)
		report.Results = append(report.Results, res)
		if !res.Pass {
			report.Overall = combine(report.Overall, t.Severity)
		}
	}
	return report
}

// combine folds a failed threshold of severity s into v.
func combine(v Verdict, s Severity) Verdict {
	if s == SeverityWarn {
		if v == VerdictPass {
			return VerdictWarn
		}
		return v
	}
	return VerdictFail
}

func evaluateOne(t Threshold, snap metrics.Snapshot) Result {
	actual, err := extractValue(t, snap)
	if err != nil {
		return Result{
			Threshold: t,
			Pass:      false,
			Message:   fmt.Sprintf("✗ %s: %v", t.Raw, err),
		}
	}

	pass := compareValues(actual, t.Operator, t.Value)
	status := "✓"
	if !pass {
		status = "✗"
	}
	return Result{
		Threshold: t,
		Actual:    actual,
		Observed:  true,
		Pass:      pass,
		Message:   fmt.Sprintf("%s %s: %.2f %s %.2f", status, t.Raw, actual, t.Operator, t.Value),
	}
}

var (
	errMissingSeries = errors.New("series was never recorded")
	errUndefinedRate = errors.New("rate is undefined (no samples)")
	errNoSamples     = errors.New("trend has no samples")
)

func extractValue(t Threshold, snap metrics.Snapshot) (float64, error) {
	s, ok := snap.Lookup(t.Metric)
	if !ok {
		return 0, errMissingSeries
	}
	switch s.Kind {
	case metrics.KindCounter:
		switch t.Aggregate {
		case "count":
			return float64(s.Count), nil
		case "rate":
			v, ok := snap.PerSecond(t.Metric)
			if !ok {
				return 0, errors.New("run duration unknown")
			}
			return v, nil
		}
	case metrics.KindRate:
		switch t.Aggregate {
		case "rate":
			if !s.RateDefined {
				return 0, errUndefinedRate
			}
			return s.Rate, nil
		case "count":
			return float64(s.Count), nil
		}
	case metrics.KindTrend:
		if t.Aggregate == "count" {
			return float64(s.Count), nil
		}
		if s.Count == 0 {
			return 0, errNoSamples
		}
		switch t.Aggregate {
		case "avg":
			return s.Mean, nil
		case "min":
			return s.Min, nil
		case "max":
			return s.Max, nil
		case "med":
			v, _ := s.Percentile(50)
			return v, nil
		}
		if p, ok := percentileOf(t.Aggregate); ok {
			v, _ := s.Percentile(p)
			return v, nil
		}
	}
	return 0, fmt.Errorf("aggregate %q not supported for %s series", t.Aggregate, s.Kind)
}

var thresholdPattern = regexp.MustCompile(
	`^([a-z_][a-z0-9_]*(?:\{[^{}]*\})?)\s*:\s*([a-z]+(?:\(\d+(?:\.\d+)?\)|\d+(?:\.\d+)?)?)\s*(<=|>=|==|!=|<|>)\s*(-?\d+(?:\.\d+)?|-?\.\d+)\s*(?:\[(fail|warn)\])?$`)

var percentilePattern = regexp.MustCompile(`^p\(?(\d+(?:\.\d+)?)\)?$`)

// Parse parses a threshold string into a Threshold struct.
// Supported formats:
//   - "http_req_duration:p95 < 500"                  (percentile, ms)
//   - "http_req_duration{type:redirect}:p(99) < 1000" (tagged series, k6 percentile form)
//   - "http_req_failed:rate < 0.01"                   (rate series ratio)
//   - "http_reqs:rate > 50"                           (counter per second)
//   - "cache_hit_rate:rate > 0.6 [warn]"              (warn severity; fail is the default)
func Parse(s string) (Threshold, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Threshold{}, fmt.Errorf("empty threshold string")
	}

	matches := thresholdPattern.FindStringSubmatch(s)
	if matches == nil {
		return Threshold{}, fmt.Errorf("invalid threshold format: %q (expected format: metric:aggregate operator value, e.g., 'http_req_duration:p95 < 500')", s)
	}

	metric, err := metrics.Canonical(matches[1])
	if err != nil {
		return Threshold{}, fmt.Errorf("invalid metric %q: %w", matches[1], err)
	}
	aggregate := normalizeAggregate(matches[2])
	operator := matches[3]

	value, err := strconv.ParseFloat(matches[4], 64)
	if err != nil {
		return Threshold{}, fmt.Errorf("invalid threshold value %q: %v", matches[4], err)
	}

	if !isValidAggregate(aggregate) {
		return Threshold{}, fmt.Errorf("unsupported aggregate: %q (supported: p<N>, med, avg, min, max, rate, count)", matches[2])
	}
	if !isValidOperator(operator) {
		return Threshold{}, fmt.Errorf("unsupported operator: %q (supported: <, <=, >, >=, ==)", operator)
	}

	severity := SeverityFail
	if matches[5] == string(SeverityWarn) {
		severity = SeverityWarn
	}

	return Threshold{
		Metric:    metric,
		Aggregate: aggregate,
		Operator:  operator,
		Value:     value,
		Severity:  severity,
		Raw:       s,
	}, nil
}

// ParseMultiple parses multiple threshold strings.
func ParseMultiple(thresholds []string) ([]Threshold, error) {
	if len(thresholds) == 0 {
		return nil, nil
	}

	result := make([]Threshold, 0, len(thresholds))
	var errs []error
	for i, s := range thresholds {
		t, err := Parse(s)
		if err != nil {
			errs = append(errs, fmt.Errorf("threshold[%d]: %w", i, err))
			continue
		}
		result = append(result, t)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return result, nil
}

// normalizeAggregate maps "p(95)" to "p95" and "mean" to "avg".
func normalizeAggregate(a string) string {
	if p, ok := percentileOf(a); ok {
		return "p" + strconv.FormatFloat(p, 'f', -1, 64)
	}
	if a == "mean" {
		return "avg"
	}
	return a
}

func percentileOf(aggregate string) (float64, bool) {
	m := percentilePattern.FindStringSubmatch(aggregate)
	if m == nil {
		return 0, false
	}
	p, err := strconv.ParseFloat(m[1], 64)
	if err != nil || p < 0 || p > 100 {
		return 0, false
	}
	return p, true
}

func isValidAggregate(aggregate string) bool {
	switch aggregate {
	case "med", "avg", "min", "max", "rate", "count":
		return true
	}
	_, ok := percentileOf(aggregate)
	return ok
}

func isValidOperator(operator string) bool {
	valid := []string{"<", "<=", ">", ">=", "=="}
	for _, v := range valid {
		if operator == v {
			return true
		}
	}
	return false
}

func compareValues(actual float64, operator string, expected float64) bool {
	// Handle floating point comparison with small epsilon
	epsilon := 1e-9

	switch operator {
	case "<":
		return actual < expected
	case "<=":
		return actual <= expected || math.Abs(actual-expected) < epsilon
	case ">":
		return actual > expected
	case ">=":
		return actual >= expected || math.Abs(actual-expected) < epsilon
	case "==":
		return math.Abs(actual-expected) < epsilon
	default:
		return false
	}
}
