package ratelimit

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestLimiter_AdmitWithinWindow(t *testing.T) {
	l := New(Config{Window: time.Second, MaxRequests: 3})
	defer l.Stop()

	for i := 1; i <= 3; i++ {
		res := l.Admit("c1")
		if !res.Allowed {
			t.Fatalf("request %d should be admitted", i)
		}
		if res.Remaining != 3-i {
			t.Errorf("request %d: expected remaining %d, got %d", i, 3-i, res.Remaining)
		}
	}

	res := l.Admit("c1")
	if res.Allowed {
		t.Error("4th request in window should be denied")
	}
	if res.Remaining != 0 {
		t.Errorf("expected remaining 0 on denial, got %d", res.Remaining)
	}
	if res.RetryAfter < time.Second {
		t.Errorf("expected retry-after rounded up to at least 1s, got %v", res.RetryAfter)
	}
}

func TestLimiter_ResetAtNotBeforeWindowEnd(t *testing.T) {
	l := New(Config{Window: time.Minute, MaxRequests: 10})
	defer l.Stop()

	start := time.Now()
	var res Result
	for i := 0; i < 11; i++ {
		res = l.Admit("c1")
	}
	if res.Allowed {
		t.Fatal("11th request should be denied")
	}
	if res.ResetAt.Before(start.Add(time.Minute)) {
		t.Errorf("resetAt %v is earlier than the window end", res.ResetAt)
	}
}

func TestLimiter_WindowReset(t *testing.T) {
	l := New(Config{Window: 30 * time.Millisecond, MaxRequests: 1})
	defer l.Stop()

	if !l.Admit("c1").Allowed {
		t.Fatal("first request should be admitted")
	}
	if l.Admit("c1").Allowed {
		t.Fatal("second request in window should be denied")
	}

	time.Sleep(40 * time.Millisecond)

	res := l.Admit("c1")
	if !res.Allowed {
		t.Error("request after window elapsed should be admitted")
	}
	if res.Remaining != 0 {
		t.Errorf("expected count reset to 1 (remaining 0 for limit 1), got remaining %d", res.Remaining)
	}
}

func TestLimiter_IndependentClients(t *testing.T) {
	l := New(Config{Window: time.Minute, MaxRequests: 1})
	defer l.Stop()

	if !l.Admit("c1").Allowed {
		t.Error("c1 first request should be admitted")
	}
	if !l.Admit("c2").Allowed {
		t.Error("c2 should not share c1's window")
	}
	if l.Admit("c1").Allowed {
		t.Error("c1 second request should be denied")
	}
}

func TestLimiter_SweepRemovesIdleClients(t *testing.T) {
	l := New(Config{Window: 20 * time.Millisecond, MaxRequests: 5})
	defer l.Stop()

	l.Admit("idle")
	// The window must be expired for a full extra window before the sweep
	// removes it.
	time.Sleep(70 * time.Millisecond)

	if st := l.Stats(); st.TotalClients != 0 {
		t.Errorf("expected idle client swept away, total=%d", st.TotalClients)
	}
}

func TestLimiter_Stats(t *testing.T) {
	l := New(Config{Window: time.Minute, MaxRequests: 100})
	defer l.Stop()

	for i := 0; i < 15; i++ {
		l.Admit(fmt.Sprintf("192.0.2.%d", i))
	}
	l.Admit("192.0.2.1")
	l.Admit("192.0.2.1")

	st := l.Stats()
	if st.TotalClients != 15 {
		t.Errorf("expected 15 clients, got %d", st.TotalClients)
	}
	if st.ActiveClients != 15 {
		t.Errorf("expected 15 active clients, got %d", st.ActiveClients)
	}
	if len(st.TopClients) != 10 {
		t.Fatalf("expected top list capped at 10, got %d", len(st.TopClients))
	}
	top := st.TopClients[0]
	if top.Count != 3 {
		t.Errorf("expected most active client count 3, got %d", top.Count)
	}
	if top.ClientID != "192.0.2.****" {
		t.Errorf("expected masked client id, got %q", top.ClientID)
	}
}

func TestMaskClientID(t *testing.T) {
	if got := MaskClientID("203.0.113.44"); got != "203.0.11****" {
		t.Errorf("unexpected mask: %q", got)
	}
	if got := MaskClientID("c1"); got != "c1****" {
		t.Errorf("short ids keep full prefix: %q", got)
	}
}

func TestLimiter_Concurrent(t *testing.T) {
	l := New(Config{Window: time.Minute, MaxRequests: 1000})
	defer l.Stop()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Admit("shared")
		}()
	}
	wg.Wait()

	res := l.Admit("shared")
	if res.Remaining != 1000-101 {
		t.Errorf("expected remaining %d after 101 admits, got %d", 1000-101, res.Remaining)
	}
}
