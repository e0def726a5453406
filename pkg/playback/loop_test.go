package playback

import (
	"sync/atomic"
	"testing"
)

func TestLoopRunsInOrder(t *testing.T) {
	l := NewLoop()
	defer l.Stop()

	var got []int
	for i := 0; i < 100; i++ {
		i := i
		l.Post(func() { got = append(got, i) })
	}
	l.Call(func() {})

	for i, v := range got {
		if v != i {
			t.Fatalf("got[%d] = %d, want %d", i, v, i)
		}
	}
	if len(got) != 100 {
		t.Errorf("ran %d closures, want 100", len(got))
	}
}

func TestLoopPostFromInside(t *testing.T) {
	l := NewLoop()
	defer l.Stop()

	var n atomic.Int32
	l.Post(func() {
		l.Post(func() { n.Add(1) })
	})
	l.Call(func() {})
	l.Call(func() {})
	if n.Load() != 1 {
		t.Errorf("nested post ran %d times, want 1", n.Load())
	}
}

func TestLoopStopDrainsQueue(t *testing.T) {
	l := NewLoop()
	var n atomic.Int32
	for i := 0; i < 10; i++ {
		l.Post(func() { n.Add(1) })
	}
	l.Stop()

	if n.Load() != 10 {
		t.Errorf("ran %d closures before stop, want 10", n.Load())
	}
	if l.Post(func() {}) {
		t.Errorf("Post after Stop = true, want false")
	}
	if l.Call(func() {}) {
		t.Errorf("Call after Stop = true, want false")
	}
	l.Stop()
}

func TestSessionTransitions(t *testing.T) {
	tests := []struct {
		from, to SessionState
		ok       bool
	}{
		{StateEmpty, StatePreparing, true},
		{StateEmpty, StateActive, false},
		{StatePreparing, StateReady, true},
		{StatePreparing, StateActive, false},
		{StateReady, StateActive, true},
		{StateActive, StatePaused, true},
		{StatePaused, StateActive, true},
		{StatePaused, StateReady, false},
		{StateDisabled, StatePreparing, true},
		{StateDisabled, StateActive, false},
		{StateActive, StateDisabled, true},
	}
	for _, tt := range tests {
		if got := tt.from.canTransition(tt.to); got != tt.ok {
			t.Errorf("%s -> %s = %v, want %v", tt.from, tt.to, got, tt.ok)
		}
	}
}

func TestParseChannel(t *testing.T) {
	for in, want := range map[string]ChannelID{"near": Near, "EARPIECE": Near, "far": Far, " speaker ": Far} {
		got, err := ParseChannel(in)
		if err != nil || got != want {
			t.Errorf("ParseChannel(%q) = %v, %v, want %v", in, got, err, want)
		}
	}
	if _, err := ParseChannel("sub"); err == nil {
		t.Errorf("ParseChannel(%q) succeeded, want error", "sub")
	}
}
