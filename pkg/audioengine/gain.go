package audioengine

import (
	"fmt"
	"math"
	"strings"
)

// Route selects which physical output channels a gain is pushed to.
type Route int

const (
	RouteBoth Route = iota
	RouteLeft
	RouteRight
)

func (r Route) String() string {
	switch r {
	case RouteLeft:
		return "left"
	case RouteRight:
		return "right"
	default:
		return "both"
	}
}

// ParseRoute accepts "left", "right" or "both".
func ParseRoute(s string) (Route, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "both", "":
		return RouteBoth, nil
	case "left", "l":
		return RouteLeft, nil
	case "right", "r":
		return RouteRight, nil
	}
	return RouteBoth, fmt.Errorf("invalid route %q (must be left, right or both)", s)
}

// Split returns the (left, right) pair for a linear amplitude.
func (r Route) Split(amp float64) (float64, float64) {
	switch r {
	case RouteLeft:
		return amp, 0
	case RouteRight:
		return 0, amp
	default:
		return amp, amp
	}
}

// GainSink is anything that accepts per-physical-channel amplitudes.
type GainSink interface {
	SetChannelGains(left, right float64) error
}

// DbToLinear converts a decibel value to a linear amplitude multiplier.
func DbToLinear(db float64) float64 {
	return math.Pow(10, db/20)
}

// ClampAmplitude limits v to [lo, hi]. NaN maps to lo.
func ClampAmplitude(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// GainStage stores a channel's gain in dB and pushes the clamped linear
// value to the attached sink. Unbounded dB input is accepted.
type GainStage struct {
	db    float64
	route Route
	lo    float64
	hi    float64
	sink  GainSink
}

func NewGainStage(route Route) *GainStage {
	return &GainStage{route: route, lo: 0, hi: 1}
}

// SetRange overrides the sink's valid amplitude range (default [0,1]).
func (g *GainStage) SetRange(lo, hi float64) {
	if hi < lo {
		lo, hi = hi, lo
	}
	g.lo, g.hi = lo, hi
}

func (g *GainStage) SetRoute(r Route) error {
	g.route = r
	return g.push()
}

func (g *GainStage) Route() Route { return g.route }

func (g *GainStage) GainDb() float64 { return g.db }

// Linear is the clamped amplitude that is handed to the sink.
func (g *GainStage) Linear() float64 {
	return ClampAmplitude(DbToLinear(g.db), g.lo, g.hi)
}

// SetGainDb stores db and, if a sink is attached, pushes the new value.
func (g *GainStage) SetGainDb(db float64) error {
	g.db = db
	return g.push()
}

// Attach binds a sink and applies the stored gain to it right away.
func (g *GainStage) Attach(sink GainSink) error {
	g.sink = sink
	return g.push()
}

func (g *GainStage) Detach() { g.sink = nil }

func (g *GainStage) Attached() bool { return g.sink != nil }

func (g *GainStage) push() error {
	if g.sink == nil {
		return nil
	}
	l, r := g.route.Split(g.Linear())
	return g.sink.SetChannelGains(l, r)
}
