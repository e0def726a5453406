package audioengine

import (
	"errors"
	"math"
	"testing"
)

type sinkRecorder struct {
	left, right float64
	calls       int
	err         error
}

func (s *sinkRecorder) SetChannelGains(l, r float64) error {
	s.calls++
	s.left, s.right = l, r
	return s.err
}

func TestDbToLinear(t *testing.T) {
	tests := []struct {
		db   float64
		want float64
	}{
		{0, 1},
		{-20, 0.1},
		{20, 10},
		{-6, 0.501187},
	}
	for _, tt := range tests {
		if got := DbToLinear(tt.db); math.Abs(got-tt.want) > 1e-5 {
			t.Errorf("DbToLinear(%v) = %v, want %v", tt.db, got, tt.want)
		}
	}
}

func TestClampAmplitude(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{0.5, 0.5},
		{-1, 0},
		{3.98, 1},
		{math.NaN(), 0},
		{math.Inf(1), 1},
	}
	for _, tt := range tests {
		if got := ClampAmplitude(tt.in, 0, 1); got != tt.want {
			t.Errorf("ClampAmplitude(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestGainStageRoutesAndClamps(t *testing.T) {
	g := NewGainStage(RouteRight)
	if err := g.SetGainDb(-20); err != nil {
		t.Fatalf("SetGainDb unattached: %v", err)
	}

	sink := &sinkRecorder{}
	if err := g.Attach(sink); err != nil {
		t.Fatalf("Attach: %v", err)
	}
	if sink.left != 0 || math.Abs(sink.right-0.1) > 1e-9 {
		t.Errorf("gains = (%v, %v), want (0, 0.1)", sink.left, sink.right)
	}

	g.SetGainDb(40)
	if sink.right != 1 {
		t.Errorf("right = %v, want clamped to 1", sink.right)
	}

	g.SetRoute(RouteBoth)
	if sink.left != 1 || sink.right != 1 {
		t.Errorf("gains = (%v, %v), want (1, 1)", sink.left, sink.right)
	}

	g.Detach()
	calls := sink.calls
	g.SetGainDb(0)
	if sink.calls != calls {
		t.Errorf("detached stage pushed to sink")
	}
	if g.GainDb() != 0 {
		t.Errorf("GainDb = %v, want 0", g.GainDb())
	}
}

func TestGainStageSinkError(t *testing.T) {
	boom := errors.New("no volume control")
	g := NewGainStage(RouteLeft)
	if err := g.Attach(&sinkRecorder{err: boom}); !errors.Is(err, boom) {
		t.Errorf("Attach = %v, want %v", err, boom)
	}
}

func TestParseRoute(t *testing.T) {
	for in, want := range map[string]Route{"left": RouteLeft, "RIGHT": RouteRight, "both": RouteBoth} {
		got, err := ParseRoute(in)
		if err != nil || got != want {
			t.Errorf("ParseRoute(%q) = %v, %v, want %v", in, got, err, want)
		}
	}
	if _, err := ParseRoute("center"); err == nil {
		t.Errorf("ParseRoute(%q) succeeded, want error", "center")
	}
}

func TestStereoGainStreamer(t *testing.T) {
	src := &constStreamer{v: 0.8}
	g := NewStereoGain(src)
	g.SetChannelGains(0.5, 2)

	buf := make([][2]float64, 4)
	n, ok := g.Stream(buf)
	if n != 4 || !ok {
		t.Fatalf("Stream = %d, %v", n, ok)
	}
	if math.Abs(buf[0][0]-0.4) > 1e-12 || buf[0][1] != 1 {
		t.Errorf("sample = %v, want [0.4 1]", buf[0])
	}
}

type constStreamer struct{ v float64 }

func (c *constStreamer) Stream(samples [][2]float64) (int, bool) {
	for i := range samples {
		samples[i] = [2]float64{c.v, c.v}
	}
	return len(samples), true
}

func (c *constStreamer) Err() error { return nil }
