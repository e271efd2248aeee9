package main

import (
	"testing"
	"time"
)

func TestGetenvDefault(t *testing.T) {
	t.Setenv("POA_TEST_KEY", "")
	if got := getenvDefault("POA_TEST_KEY", "fallback"); got != "fallback" {
		t.Fatalf("expected fallback, got %q", got)
	}

	t.Setenv("POA_TEST_KEY", "value")
	if got := getenvDefault("POA_TEST_KEY", "fallback"); got != "value" {
		t.Fatalf("expected value, got %q", got)
	}
}

func TestDurationDefault(t *testing.T) {
	t.Setenv("POA_TEST_DUR", "")
	if got := durationDefault("POA_TEST_DUR", time.Minute); got != time.Minute {
		t.Fatalf("expected default, got %s", got)
	}

	t.Setenv("POA_TEST_DUR", "90s")
	if got := durationDefault("POA_TEST_DUR", time.Minute); got != 90*time.Second {
		t.Fatalf("expected 90s, got %s", got)
	}

	t.Setenv("POA_TEST_DUR", "nonsense")
	if got := durationDefault("POA_TEST_DUR", time.Minute); got != time.Minute {
		t.Fatalf("expected default on parse error, got %s", got)
	}
}
