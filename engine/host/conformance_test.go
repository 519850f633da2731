package host

import (
	"errors"
	"testing"

	"github.com/Carmen-Shannon/oxy-ref/engine/refapi"
	"github.com/Carmen-Shannon/oxy-ref/engine/renderer"
)

func TestConformSoftwareRenderer(t *testing.T) {
	h := newTestHost(t)
	results := Conform(h, ConformanceChecks)
	if len(results) != len(ConformanceChecks) {
		t.Fatalf("got %d results, want %d", len(results), len(ConformanceChecks))
	}
	for _, res := range results {
		if !res.Passed {
			t.Errorf("%s: failed with %v (%d violations)", res.Name, res.Err, res.Violations)
		}
	}
}

func TestConformReportsFailures(t *testing.T) {
	h := newTestHost(t)
	checks := []Check{
		{Name: "succeeds but should violate", Run: func(renderer.RefInterface) error { return nil }, Want: refapi.ErrProtocolViolation},
		{Name: "fails", Run: func(renderer.RefInterface) error { return errors.New("broken") }},
		{Name: "violation without a record", Run: func(renderer.RefInterface) error { return refapi.ErrProtocolViolation }, Want: refapi.ErrProtocolViolation},
	}
	for _, res := range Conform(h, checks) {
		if res.Passed {
			t.Errorf("%s: expected the check to fail", res.Name)
		}
	}
}
