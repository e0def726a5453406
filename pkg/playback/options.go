package playback

import (
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"duet/pkg/spec"
)

type options struct {
	clock    clock.Clock
	logger   *zap.Logger
	near     ChannelConfig
	far      ChannelConfig
	offsetMs int
	debounce time.Duration
	interval time.Duration
	link     bool
	sinks    []Sink
}

func defaultOptions() options {
	return options{
		clock:    clock.New(),
		logger:   zap.NewNop(),
		near:     DefaultNear(),
		far:      DefaultFar(),
		debounce: spec.CompletionDebounceMs * time.Millisecond,
		interval: spec.SnapshotIntervalMs * time.Millisecond,
	}
}

type Option func(*options)

// WithClock replaces the wall clock used for deferred starts, the
// completion window and snapshot ticks.
func WithClock(c clock.Clock) Option {
	return func(o *options) { o.clock = c }
}

func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func WithChannelConfig(ch ChannelID, cfg ChannelConfig) Option {
	return func(o *options) {
		if ch == Far {
			o.far = cfg
		} else {
			o.near = cfg
		}
	}
}

func WithSyncOffset(ms int) Option {
	return func(o *options) { o.offsetMs = ms }
}

// WithDebounce sets the completion window. Completions closer together
// than d count once.
func WithDebounce(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.debounce = d
		}
	}
}

// WithSnapshotInterval sets the periodic snapshot rate while playing.
// Zero disables periodic snapshots.
func WithSnapshotInterval(d time.Duration) Option {
	return func(o *options) { o.interval = d }
}

// WithFilterLink mirrors cutoff changes from one channel to the other.
func WithFilterLink(on bool) Option {
	return func(o *options) { o.link = on }
}

func WithSink(s Sink) Option {
	return func(o *options) { o.sinks = append(o.sinks, s) }
}
