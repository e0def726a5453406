package playback

import (
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"

	"duet/pkg/audioengine"
)

// ChannelStatus is a read-only view of one channel.
type ChannelStatus struct {
	Channel      string    `json:"channel"`
	State        string    `json:"state"`
	Enabled      bool      `json:"enabled"`
	GainDb       float64   `json:"gain_db"`
	CutoffHz     int       `json:"cutoff_hz"`
	Filter       string    `json:"filter"`
	Route        string    `json:"route"`
	PositionMs   int       `json:"position_ms"`
	StartPending bool      `json:"start_pending,omitempty"`
	BandLevels   []float64 `json:"band_levels,omitempty"`
}

// Status extends Snapshot with engine and channel detail.
type Status struct {
	Snapshot
	State      string          `json:"state"`
	Tracks     int             `json:"tracks"`
	OffsetMs   int             `json:"offset_ms"`
	FilterLink bool            `json:"filter_link"`
	Channels   []ChannelStatus `json:"channels"`
}

// Engine is the playlist and transport façade. Commands are queued onto the
// engine loop and return immediately; queries wait for the loop.
type Engine struct {
	loop   *Loop
	log    *zap.Logger
	sync   *SyncController
	events *EventPort

	tracks []Track
	index  int
	// prev is the index before the current load, restored if it fails
	prev   int
	state  EngineState
	link   bool

	closed atomic.Bool
}

func New(opener Opener, opts ...Option) *Engine {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	loop := NewLoop()
	e := &Engine{
		loop:  loop,
		log:   o.logger,
		index: -1,
		prev:  -1,
		link:  o.link,
	}
	near := newChannelSession(Near, o.near, opener, o.clock, loop, o.logger)
	far := newChannelSession(Far, o.far, opener, o.clock, loop, o.logger)
	e.sync = newSyncController(near, far, o.offsetMs, o.debounce, o.clock, loop, o.logger)
	e.sync.onStarted = e.handleStarted
	e.sync.onHeld = e.handleHeld
	e.sync.onAdvance = e.handleAdvance
	e.sync.onFailed = e.handleLoadFailed

	e.events = newEventPort(o.clock, loop, o.interval, e.snapshot, o.logger)
	for _, s := range o.sinks {
		e.events.Subscribe(s)
	}
	return e
}

func (e *Engine) post(name string, fn func()) {
	if !e.loop.Post(fn) {
		e.log.Debug("command after close ignored", zap.String("command", name))
	}
}

// Subscribe adds an event sink and returns its removal function.
func (e *Engine) Subscribe(s Sink) func() {
	return e.events.Subscribe(s)
}

// LoadPlaylist replaces the playlist and stops playback.
func (e *Engine) LoadPlaylist(tracks []Track) {
	cp := append([]Track(nil), tracks...)
	e.post("load", func() {
		e.sync.Unload()
		e.tracks = cp
		e.index = -1
		e.prev = -1
		e.setState(EngineIdle)
		e.log.Info("playlist loaded", zap.Int("tracks", len(cp)))
		e.events.Emit(EventPlaylist, nil)
	})
}

func (e *Engine) PlayAt(i int) {
	e.post("play", func() { e.playAt(i) })
}

func (e *Engine) TogglePlayPause() {
	e.post("toggle", func() {
		switch e.state {
		case EnginePlaying:
			e.pause()
		case EnginePaused:
			e.resume()
		case EngineLoading:
			if e.sync.autoplay {
				e.sync.Pause()
			} else {
				e.sync.Resume()
			}
			e.events.Emit(EventStatus, nil)
		}
	})
}

func (e *Engine) Pause() {
	e.post("pause", func() {
		if e.state == EngineLoading {
			e.sync.Pause()
			return
		}
		if e.state == EnginePlaying {
			e.pause()
		}
	})
}

// Play resumes a paused track, releases a held load, or starts the playlist
// from the current (or first) track when idle.
func (e *Engine) Play() {
	e.post("play", func() {
		switch e.state {
		case EngineLoading:
			e.sync.Resume()
		case EnginePaused:
			e.resume()
		case EngineIdle:
			if len(e.tracks) > 0 {
				e.playAt(max(e.index, 0))
			}
		}
	})
}

func (e *Engine) Next() { e.post("next", e.next) }

func (e *Engine) Prev() {
	e.post("prev", func() {
		n := len(e.tracks)
		if n == 0 {
			return
		}
		i := n - 1
		if e.index >= 0 {
			i = (e.index - 1 + n) % n
		}
		e.playAt(i)
	})
}

func (e *Engine) Seek(ms int) {
	e.post("seek", func() {
		if e.state == EngineIdle {
			return
		}
		if err := e.sync.Seek(ms); err != nil {
			e.log.Debug("seek adjusted", zap.Error(err))
		}
		e.events.Emit(EventStatus, nil)
	})
}

func (e *Engine) SetSyncOffset(ms int) {
	e.post("offset", func() {
		e.sync.SetSyncOffset(ms)
		e.log.Debug("sync offset", zap.Int("offset_ms", ms))
	})
}

func (e *Engine) SetChannelEnabled(ch ChannelID, enabled bool) {
	e.post("enable", func() {
		if err := e.sync.SetChannelEnabled(ch, enabled); err != nil {
			e.log.Warn("channel enable failed", zap.Error(err))
		}
	})
}

func (e *Engine) SetGainDb(ch ChannelID, db float64) {
	e.post("gain", func() {
		if err := e.sync.SetGainDb(ch, db); err != nil {
			e.log.Warn("gain not applied", zap.Error(err))
		}
	})
}

// SetFilterCutoff updates one channel's cutoff, and the other's too while
// the filters are linked.
func (e *Engine) SetFilterCutoff(ch ChannelID, hz int) {
	e.post("cutoff", func() {
		targets := []ChannelID{ch}
		if e.link {
			targets = []ChannelID{Near, Far}
		}
		for _, t := range targets {
			kind := e.sync.Session(t).Config().Kind
			if err := e.sync.SetFilter(t, hz, kind); err != nil {
				e.log.Warn("filter not applied", zap.Error(err))
			}
		}
	})
}

func (e *Engine) SetFilterKind(ch ChannelID, kind audioengine.FilterKind) {
	e.post("filter", func() {
		hz := e.sync.Session(ch).Config().CutoffHz
		if err := e.sync.SetFilter(ch, hz, kind); err != nil {
			e.log.Warn("filter not applied", zap.Error(err))
		}
	})
}

func (e *Engine) SetRoute(ch ChannelID, r audioengine.Route) {
	e.post("route", func() {
		if err := e.sync.SetRoute(ch, r); err != nil {
			e.log.Warn("route not applied", zap.Error(err))
		}
	})
}

func (e *Engine) SetFilterLink(on bool) {
	e.post("link", func() { e.link = on })
}

// Snapshot returns the current public view.
func (e *Engine) Snapshot() (Snapshot, error) {
	var snap Snapshot
	if !e.loop.Call(func() { snap = e.snapshot() }) {
		return Snapshot{}, ErrClosed
	}
	return snap, nil
}

func (e *Engine) Status() (Status, error) {
	var st Status
	ok := e.loop.Call(func() {
		st = Status{
			Snapshot:   e.snapshot(),
			State:      e.state.String(),
			Tracks:     len(e.tracks),
			OffsetMs:   e.sync.State().OffsetMs,
			FilterLink: e.link,
		}
		for _, s := range e.sync.sessions() {
			cfg := s.Config()
			st.Channels = append(st.Channels, ChannelStatus{
				Channel:      s.ID().String(),
				State:        s.State().String(),
				Enabled:      cfg.Enabled,
				GainDb:       cfg.GainDb,
				CutoffHz:     cfg.CutoffHz,
				Filter:       cfg.Kind.String(),
				Route:        cfg.Route.String(),
				PositionMs:   s.PositionMs(),
				StartPending: s.StartPending(),
				BandLevels:   s.GateLevels(),
			})
		}
	})
	if !ok {
		return Status{}, ErrClosed
	}
	return st, nil
}

func (e *Engine) Playlist() ([]Track, error) {
	var out []Track
	if !e.loop.Call(func() { out = append([]Track(nil), e.tracks...) }) {
		return nil, ErrClosed
	}
	return out, nil
}

// Close releases both channels, stops timers and flushes pending events.
func (e *Engine) Close() error {
	if e.closed.Swap(true) {
		return nil
	}
	e.loop.Call(func() {
		e.sync.Close()
		e.events.stopTicker()
		e.state = EngineIdle
		e.events.Emit(EventStopped, nil)
	})
	e.loop.Stop()
	e.events.Close()
	return nil
}

func (e *Engine) snapshot() Snapshot {
	st := e.sync.State()
	snap := Snapshot{
		Playing:      st.Playing,
		CurrentIndex: st.CurrentIndex,
	}
	if e.sync.Track() != nil {
		snap.PositionMs = e.sync.PositionMs()
		snap.DurationMs = e.sync.DurationMs()
	}
	return snap
}

func (e *Engine) setState(s EngineState) {
	if e.state == s {
		return
	}
	e.log.Debug("engine state", zap.Stringer("from", e.state), zap.Stringer("to", s))
	e.state = s
	if s == EnginePlaying {
		e.events.startTicker()
	} else {
		e.events.stopTicker()
	}
}

func (e *Engine) playAt(i int) {
	if i < 0 || i >= len(e.tracks) {
		e.log.Warn("play index out of range", zap.Int("index", i), zap.Int("tracks", len(e.tracks)))
		return
	}
	prev := e.index
	e.index = i
	e.setState(EngineLoading)
	t := e.tracks[i]
	if err := e.sync.LoadTrack(i, t, true); err != nil {
		e.failLoad(t.ID, prev, err)
		return
	}
	e.prev = prev
	e.log.Info("track loading", zap.Int("index", i), zap.String("title", t.Title))
	e.events.Emit(EventTrackChanged, nil)
}

// failLoad returns to Idle on the index that was current before the load.
// The failed track is not retried.
func (e *Engine) failLoad(id string, prev int, err error) {
	e.log.Error("track load failed", zap.String("track", id), zap.Error(err))
	e.index = prev
	e.sync.SetIndex(prev)
	e.setState(EngineIdle)
	e.events.Emit(EventLoadFailed, fmt.Errorf("load %q: %w", id, err))
}

func (e *Engine) next() {
	n := len(e.tracks)
	if n == 0 {
		return
	}
	e.playAt((e.index + 1) % n)
}

func (e *Engine) pause() {
	e.sync.Pause()
	e.setState(EnginePaused)
	e.events.Emit(EventStatus, nil)
}

func (e *Engine) resume() {
	e.sync.Resume()
}

func (e *Engine) handleStarted() {
	e.setState(EnginePlaying)
	e.events.Emit(EventStatus, nil)
}

func (e *Engine) handleHeld() {
	e.setState(EnginePaused)
	e.events.Emit(EventStatus, nil)
}

// handleLoadFailed runs when a source passed open but failed to decode.
// The sync controller has already released both channels.
func (e *Engine) handleLoadFailed(err error) {
	id := ""
	if e.index >= 0 && e.index < len(e.tracks) {
		id = e.tracks[e.index].ID
	}
	e.failLoad(id, e.prev, err)
}

func (e *Engine) handleAdvance() {
	e.log.Debug("auto advance", zap.Int("from", e.index))
	e.next()
}
