package playback

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"duet/pkg/audioengine"
)

// SyncState is the controller's view of the shared transport.
type SyncState struct {
	CurrentIndex        int
	Playing             bool
	OffsetMs            int
	LastKnownPositionMs int
}

// StartDelays converts a sync offset into per-channel start delays.
// A positive offset holds the near channel back, a negative one the far.
func StartDelays(offsetMs int) (nearMs, farMs int) {
	return max(0, offsetMs), max(0, -offsetMs)
}

// SyncController drives both channel sessions as one transport: the
// dual-ready gate, offset-aware starts, realignment and debounced
// completion. It runs on the engine loop.
type SyncController struct {
	near, far *ChannelSession
	state     SyncState
	track     *Track

	// gating is true between LoadTrack and the synchronized start.
	gating   bool
	autoplay bool
	ready    atomic.Int32

	window        time.Duration
	debounce      *clock.Timer
	debounceToken uint64

	clk  clock.Clock
	loop *Loop
	log  *zap.Logger

	onStarted func()
	onHeld    func()
	onAdvance func()
	onFailed  func(error)
}

func newSyncController(near, far *ChannelSession, offsetMs int, window time.Duration, clk clock.Clock, loop *Loop, log *zap.Logger) *SyncController {
	c := &SyncController{
		near:   near,
		far:    far,
		state:  SyncState{CurrentIndex: -1, OffsetMs: offsetMs},
		window: window,
		clk:    clk,
		loop:   loop,
		log:    log,
	}
	for _, s := range c.sessions() {
		s.onReady = c.handleReady
		s.onCompleted = c.handleCompleted
		s.onFailed = c.handleFailed
	}
	return c
}

func (c *SyncController) sessions() [2]*ChannelSession {
	return [2]*ChannelSession{c.near, c.far}
}

func (c *SyncController) Session(ch ChannelID) *ChannelSession {
	if ch == Far {
		return c.far
	}
	return c.near
}

func (c *SyncController) State() SyncState { return c.state }

func (c *SyncController) Track() *Track { return c.track }

func (c *SyncController) enabledCount() int {
	n := 0
	for _, s := range c.sessions() {
		if s.Enabled() {
			n++
		}
	}
	return n
}

// LoadTrack binds track to every enabled session and arms the dual-ready
// gate. With autoplay the synchronized start follows the gate; without it
// both sessions are left Ready.
func (c *SyncController) LoadTrack(index int, track Track, autoplay bool) error {
	c.cancelDebounce()
	c.track = &track
	c.state.CurrentIndex = index
	c.state.Playing = false
	c.state.LastKnownPositionMs = 0
	c.ready.Store(0)
	c.gating = true
	c.autoplay = autoplay

	var errs []error
	for _, s := range c.sessions() {
		if err := s.Bind(c.track, 0); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		c.Unload()
		return errors.Join(errs...)
	}
	if c.enabledCount() == 0 {
		c.log.Info("track loaded with both channels disabled", zap.String("track", track.ID))
	}
	return nil
}

// Unload releases both pipelines and clears the transport.
func (c *SyncController) Unload() {
	c.cancelDebounce()
	for _, s := range c.sessions() {
		s.Bind(nil, 0)
	}
	c.track = nil
	c.gating = false
	c.autoplay = false
	c.ready.Store(0)
	c.state.Playing = false
	c.state.CurrentIndex = -1
	c.state.LastKnownPositionMs = 0
}

// SetIndex overrides the reported playlist index without touching sessions.
func (c *SyncController) SetIndex(i int) { c.state.CurrentIndex = i }

func (c *SyncController) handleReady(ch ChannelID) {
	if c.gating {
		c.ready.Add(1)
		c.checkGate()
		return
	}
	if !c.state.Playing {
		return
	}
	// re-enabled mid-track: join at the live position
	s := c.Session(ch)
	pos := c.refreshPosition()
	if err := s.Seek(pos); err != nil {
		c.log.Warn("rejoin seek failed", zap.Error(err))
	}
	if err := s.Start(0); err != nil {
		c.log.Warn("rejoin start failed", zap.Error(err))
	}
}

// handleFailed aborts the load when a channel's source fails while the gate
// is armed. A channel re-enabled mid-track just stays silent.
func (c *SyncController) handleFailed(ch ChannelID, err error) {
	if c.track == nil {
		return
	}
	if !c.gating {
		c.log.Warn("channel rejoin failed", zap.Stringer("channel", ch), zap.Error(err))
		return
	}
	c.Unload()
	if c.onFailed != nil {
		c.onFailed(err)
	}
}

func (c *SyncController) checkGate() {
	if !c.gating {
		return
	}
	n := c.enabledCount()
	if n == 0 || int(c.ready.Load()) < n {
		return
	}
	c.gating = false
	if !c.autoplay {
		c.log.Debug("channels ready, holding")
		if c.onHeld != nil {
			c.onHeld()
		}
		return
	}
	c.startAll()
}

// startAll starts every enabled Ready or Paused session with its offset delay.
func (c *SyncController) startAll() {
	nearDelay, farDelay := StartDelays(c.state.OffsetMs)
	delays := [2]int{nearDelay, farDelay}
	for i, s := range c.sessions() {
		if !s.Enabled() {
			continue
		}
		if st := s.State(); st != StateReady && st != StatePaused {
			continue
		}
		if err := s.Start(delays[i]); err != nil {
			c.log.Warn("channel start failed", zap.Error(err))
		}
	}
	c.state.Playing = true
	c.log.Debug("synchronized start",
		zap.Int("offset_ms", c.state.OffsetMs),
		zap.Int("position_ms", c.state.LastKnownPositionMs))
	if c.onStarted != nil {
		c.onStarted()
	}
}

func (c *SyncController) pauseAll() {
	for _, s := range c.sessions() {
		if err := s.Pause(); err != nil {
			c.log.Warn("channel pause failed", zap.Error(err))
		}
	}
}

func (c *SyncController) seekAll(ms int) {
	for _, s := range c.sessions() {
		if !s.State().Live() {
			continue
		}
		if err := s.Seek(ms); err != nil {
			c.log.Warn("channel seek failed", zap.Error(err))
		}
	}
}

// realign restarts both channels from pos with the current offset.
func (c *SyncController) realign(pos int) {
	c.pauseAll()
	c.seekAll(pos)
	c.startAll()
}

// Pause stops both channels. During the gate it only cancels autoplay.
func (c *SyncController) Pause() {
	c.cancelDebounce()
	if c.gating {
		c.autoplay = false
		return
	}
	if !c.state.Playing {
		return
	}
	c.pauseAll()
	c.refreshPosition()
	c.state.Playing = false
}

// Resume realigns at the authoritative position so a drifted pair starts
// back in step.
func (c *SyncController) Resume() {
	if c.track == nil {
		return
	}
	if c.gating {
		c.autoplay = true
		return
	}
	if c.state.Playing {
		return
	}
	c.realign(c.refreshPosition())
}

// Seek clamps ms to the track and moves both channels there.
func (c *SyncController) Seek(ms int) error {
	if c.track == nil {
		return fmt.Errorf("%w: seek without a track", ErrInvalidCommand)
	}
	clamped := max(0, ms)
	if d := c.DurationMs(); d > 0 && clamped > d {
		clamped = d
	}
	c.cancelDebounce()
	c.state.LastKnownPositionMs = clamped
	if c.state.Playing {
		c.realign(clamped)
	} else {
		c.seekAll(clamped)
	}
	if clamped != ms {
		return fmt.Errorf("%w: seek %d clamped to %d", ErrInvalidCommand, ms, clamped)
	}
	return nil
}

// SetSyncOffset stores the offset; while playing both channels are paused,
// realigned at the captured position and restarted with the new delays.
func (c *SyncController) SetSyncOffset(ms int) {
	if ms == c.state.OffsetMs {
		return
	}
	if !c.state.Playing {
		c.state.OffsetMs = ms
		return
	}
	c.cancelDebounce()
	c.pauseAll()
	pos := c.refreshPosition()
	c.state.OffsetMs = ms
	c.seekAll(pos)
	c.startAll()
}

// SetChannelEnabled toggles one channel. A disabled channel releases its
// pipeline; an enabled one re-opens at the authoritative position and joins
// playback once ready.
func (c *SyncController) SetChannelEnabled(ch ChannelID, enabled bool) error {
	s := c.Session(ch)
	if enabled == s.Enabled() {
		return nil
	}
	pos := c.refreshPosition()
	if !enabled {
		counted := c.gating && s.State() == StateReady
		s.SetEnabled(false, pos)
		if counted {
			c.ready.Add(-1)
		}
		c.checkGate()
		return nil
	}
	return s.SetEnabled(true, pos)
}

func (c *SyncController) SetGainDb(ch ChannelID, db float64) error {
	return c.Session(ch).SetGainDb(db)
}

func (c *SyncController) SetFilter(ch ChannelID, cutoffHz int, kind audioengine.FilterKind) error {
	return c.Session(ch).SetFilter(cutoffHz, kind)
}

func (c *SyncController) SetRoute(ch ChannelID, r audioengine.Route) error {
	return c.Session(ch).SetRoute(r)
}

// authority is the position source: near when positioned, else far.
func (c *SyncController) authority() *ChannelSession {
	for _, s := range c.sessions() {
		if s.State().Positioned() {
			return s
		}
	}
	return nil
}

// refreshPosition folds the authority's position into LastKnownPositionMs,
// which only moves forward outside of seeks and loads.
func (c *SyncController) refreshPosition() int {
	if src := c.authority(); src != nil {
		if p := src.PositionMs(); p > c.state.LastKnownPositionMs {
			c.state.LastKnownPositionMs = p
		}
	}
	return c.state.LastKnownPositionMs
}

func (c *SyncController) PositionMs() int { return c.refreshPosition() }

func (c *SyncController) DurationMs() int {
	if src := c.authority(); src != nil {
		if d := src.DurationMs(); d > 0 {
			return d
		}
	}
	for _, s := range c.sessions() {
		if d := s.DurationMs(); d > 0 {
			return d
		}
	}
	if c.track != nil {
		return c.track.DurationMs
	}
	return 0
}

func (c *SyncController) handleCompleted(ch ChannelID) {
	if !c.state.Playing {
		return
	}
	c.log.Debug("channel completed", zap.Stringer("channel", ch))
	c.armDebounce()
}

// armDebounce restarts the completion window. Completions arriving inside
// the window collapse into one check.
func (c *SyncController) armDebounce() {
	c.cancelDebounce()
	tok := c.debounceToken
	c.debounce = c.clk.AfterFunc(c.window, func() {
		c.loop.Post(func() {
			if tok != c.debounceToken || c.debounce == nil {
				return
			}
			c.debounce = nil
			c.checkFinished()
		})
	})
}

func (c *SyncController) cancelDebounce() {
	if c.debounce != nil {
		c.debounce.Stop()
		c.debounce = nil
	}
	c.debounceToken++
}

// checkFinished advances only when no enabled channel is still producing.
func (c *SyncController) checkFinished() {
	if !c.state.Playing {
		return
	}
	for _, s := range c.sessions() {
		if s.Enabled() && (s.State() == StateActive || s.StartPending()) {
			return
		}
	}
	c.refreshPosition()
	c.state.Playing = false
	c.log.Debug("track finished", zap.Int("index", c.state.CurrentIndex))
	if c.onAdvance != nil {
		c.onAdvance()
	}
}

// Close cancels pending timers and releases both sessions.
func (c *SyncController) Close() {
	c.cancelDebounce()
	for _, s := range c.sessions() {
		s.Release()
	}
	c.track = nil
	c.gating = false
	c.state.Playing = false
}
