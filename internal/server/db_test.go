package server

import "testing"

func TestOpenDBEmptyDSN(t *testing.T) {
	if _, err := OpenDB(""); err == nil {
		t.Fatalf("expected error for empty DSN")
	}
}
