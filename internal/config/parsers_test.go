package config

import (
	"testing"
	"time"
)

func TestAsString(t *testing.T) {
	tests := []struct {
		input interface{}
		want  string
	}{
		{"hello", "hello"},
		{123, "123"},
		{true, "true"},
		{nil, ""},
		{[]byte("bytes"), "bytes"},
	}

	for _, tt := range tests {
		got, err := asString(tt.input)
		if err != nil {
			t.Errorf("asString(%v) error = %v", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("asString(%v) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestAsInt64(t *testing.T) {
	tests := []struct {
		input interface{}
		want  int64
	}{
		{123, 123},
		{"456", 456},
		{int64(789), 789},
		{float64(10.0), 10},
		{nil, 0},
	}

	for _, tt := range tests {
		got, err := asInt64(tt.input)
		if err != nil {
			t.Errorf("asInt64(%v) error = %v", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("asInt64(%v) = %d, want %d", tt.input, got, tt.want)
		}
	}
}

func TestAsDuration(t *testing.T) {
	tests := []struct {
		input interface{}
		want  time.Duration
	}{
		{"75ms", 75 * time.Millisecond},
		{"2m", 2 * time.Minute},
		{"1.5", 1500 * time.Millisecond},
		{30, 30 * time.Second},
		{0.25, 250 * time.Millisecond},
		{time.Second, time.Second},
		{nil, 0},
	}

	for _, tt := range tests {
		got, err := asDuration(tt.input)
		if err != nil {
			t.Errorf("asDuration(%v) error = %v", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("asDuration(%v) = %v, want %v", tt.input, got, tt.want)
		}
	}

	if _, err := asDuration("soon"); err == nil {
		t.Error("asDuration(\"soon\") expected error")
	}
}

func TestAsStringSlice(t *testing.T) {
	got, err := asStringSlice("a:p95 < 1, b:avg < 2")
	if err != nil {
		t.Fatalf("asStringSlice error = %v", err)
	}
	if len(got) != 2 || got[0] != "a:p95 < 1" || got[1] != "b:avg < 2" {
		t.Errorf("asStringSlice = %q", got)
	}

	got, err = asStringSlice([]interface{}{"x", 1})
	if err != nil {
		t.Fatalf("asStringSlice error = %v", err)
	}
	if len(got) != 2 || got[1] != "1" {
		t.Errorf("asStringSlice = %q", got)
	}
}

func TestLookupSettingLowercasesKeys(t *testing.T) {
	settings := map[string]interface{}{"baseurl": "http://x"}
	got, ok := lookupSetting(settings, "base_url", "baseURL")
	if !ok || got != "http://x" {
		t.Errorf("lookupSetting = %v, %v", got, ok)
	}
}
