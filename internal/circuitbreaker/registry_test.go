package circuitbreaker

import (
	"testing"
	"time"
)

// TestRegistry_For tests lazy per-upstream breaker creation.
func TestRegistry_For(t *testing.T) {
	r := NewRegistry(3, 1, time.Second)

	a := r.For("volcengine-speech")
	b := r.For("volcengine-speech")
	if a != b {
		t.Error("For() returned different breakers for the same upstream")
	}

	c := r.For("openai")
	if a == c {
		t.Error("For() returned the same breaker for different upstreams")
	}
}

// TestRegistry_States tests state reporting after failures trip one breaker.
func TestRegistry_States(t *testing.T) {
	r := NewRegistry(2, 1, time.Minute)

	cb := r.For("openai")
	cb.RecordFailure()
	cb.RecordFailure()
	r.For("volcengine-speech")

	states := r.States()
	if states["openai"] != "open" {
		t.Errorf("openai state = %v, want open", states["openai"])
	}
	if states["volcengine-speech"] != "closed" {
		t.Errorf("volcengine-speech state = %v, want closed", states["volcengine-speech"])
	}
}
