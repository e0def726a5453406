package playback

import (
	"errors"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"duet/pkg/audioengine"
)

// ChannelSession owns one decode/render pipeline, its gain stage and its
// spectral gate. Every method runs on the engine loop.
type ChannelSession struct {
	id    ChannelID
	cfg   ChannelConfig
	state SessionState
	track *Track

	dec  Decoder
	gain *audioengine.GainStage
	gate *audioengine.SpectralGate

	// gen changes on every bind and teardown; callbacks carrying an older
	// value belong to a released decoder.
	gen         uint64
	pendingSeek int

	startTimer *clock.Timer
	startToken uint64

	opener Opener
	clk    clock.Clock
	loop   *Loop
	log    *zap.Logger

	onReady     func(ChannelID)
	onCompleted func(ChannelID)
	onFailed    func(ChannelID, error)
}

func newChannelSession(id ChannelID, cfg ChannelConfig, opener Opener, clk clock.Clock, loop *Loop, log *zap.Logger) *ChannelSession {
	gain := audioengine.NewGainStage(cfg.Route)
	gain.SetGainDb(cfg.GainDb)
	s := &ChannelSession{
		id:     id,
		cfg:    cfg,
		gain:   gain,
		opener: opener,
		clk:    clk,
		loop:   loop,
		log:    log.With(zap.String("channel", id.String())),
	}
	if !cfg.Enabled {
		s.state = StateDisabled
	}
	return s
}

type sessionListener struct {
	s   *ChannelSession
	gen uint64
}

func (l sessionListener) Prepared() {
	l.s.loop.Post(func() { l.s.handlePrepared(l.gen) })
}

func (l sessionListener) Completed() {
	l.s.loop.Post(func() { l.s.handleCompleted(l.gen) })
}

func (l sessionListener) Failed(err error) {
	l.s.loop.Post(func() { l.s.handleFailed(l.gen, err) })
}

func (s *ChannelSession) ID() ChannelID         { return s.id }
func (s *ChannelSession) State() SessionState   { return s.state }
func (s *ChannelSession) Config() ChannelConfig { return s.cfg }
func (s *ChannelSession) Enabled() bool         { return s.cfg.Enabled }

// StartPending reports a deferred start that has not fired yet.
func (s *ChannelSession) StartPending() bool { return s.startTimer != nil }

// Bind tears down the current pipeline and opens a new one for track,
// positioned at startMs once prepared. A nil track unbinds.
func (s *ChannelSession) Bind(track *Track, startMs int) error {
	s.teardown()
	s.track = track
	if !s.cfg.Enabled {
		s.moveTo(StateDisabled)
		return nil
	}
	if track == nil {
		s.moveTo(StateEmpty)
		return nil
	}
	return s.open(startMs)
}

func (s *ChannelSession) open(startMs int) error {
	s.gen++
	dec, err := s.opener.Open(s.track.ID, sessionListener{s: s, gen: s.gen})
	if err != nil {
		s.moveTo(StateEmpty)
		if !errors.Is(err, ErrSourceUnavailable) {
			err = fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
		}
		return &ChannelError{Channel: s.id, Op: "open", Err: err}
	}
	s.dec = dec
	s.pendingSeek = startMs
	s.moveTo(StatePreparing)
	s.log.Debug("decoder opening", zap.String("source", s.track.ID), zap.Int("start_ms", startMs))
	return nil
}

func (s *ChannelSession) handlePrepared(gen uint64) {
	if gen != s.gen || s.state != StatePreparing {
		return
	}
	s.moveTo(StateReady)
	// gain and gate go on before readiness is reported so the first
	// sample is already shaped
	s.applyConfig()
	if s.pendingSeek > 0 {
		if err := s.dec.SeekTo(s.pendingSeek); err != nil {
			s.log.Warn("initial seek failed", zap.Int("position_ms", s.pendingSeek), zap.Error(err))
		}
	}
	s.pendingSeek = 0
	s.log.Debug("decoder ready", zap.Int("duration_ms", s.dec.DurationMs()))
	if s.onReady != nil {
		s.onReady(s.id)
	}
}

func (s *ChannelSession) applyConfig() {
	if err := s.gain.Attach(s.dec); err != nil {
		s.log.Warn("gain unavailable, playing unadjusted",
			zap.Error(&ChannelError{Channel: s.id, Op: "gain", Err: wrapEffect(err)}))
	}

	bank, err := s.dec.Bands()
	if err != nil {
		s.gate = nil
		s.log.Warn("spectral bands unavailable, playing unfiltered",
			zap.Error(&ChannelError{Channel: s.id, Op: "bands", Err: wrapEffect(err)}))
		return
	}
	s.gate = audioengine.NewSpectralGate(bank)
	if err := s.gate.ApplyCutoff(s.cfg.CutoffHz, s.cfg.Kind); err != nil {
		s.log.Warn("spectral gate partially applied", zap.Error(wrapEffect(err)))
	}
}

func wrapEffect(err error) error {
	if errors.Is(err, ErrEffectUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrEffectUnavailable, err)
}

func (s *ChannelSession) handleCompleted(gen uint64) {
	if gen != s.gen || s.state != StateActive {
		return
	}
	// the sink keeps pulling silence until paused, and a later seek would
	// make it audible again
	if err := s.dec.Pause(); err != nil {
		s.log.Warn("pause at end of stream failed", zap.Error(err))
	}
	s.moveTo(StatePaused)
	s.log.Debug("end of stream")
	if s.onCompleted != nil {
		s.onCompleted(s.id)
	}
}

// handleFailed drops a pipeline whose source failed to decode and returns
// the session to Empty.
func (s *ChannelSession) handleFailed(gen uint64, err error) {
	if gen != s.gen || s.state != StatePreparing {
		return
	}
	s.teardown()
	s.moveTo(StateEmpty)
	if !errors.Is(err, ErrSourceUnavailable) {
		err = fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	cerr := &ChannelError{Channel: s.id, Op: "prepare", Err: err}
	s.log.Warn("source failed to decode", zap.Error(cerr))
	if s.onFailed != nil {
		s.onFailed(s.id, cerr)
	}
}

// Start begins playback after delayMs. A zero delay starts immediately;
// otherwise the start is deferred and can be cancelled by Pause or teardown.
func (s *ChannelSession) Start(delayMs int) error {
	if s.state != StateReady && s.state != StatePaused {
		return fmt.Errorf("%w: start from %s", ErrInvalidCommand, s.state)
	}
	s.cancelStart()
	if delayMs <= 0 {
		return s.startNow()
	}

	tok, gen := s.startToken, s.gen
	s.startTimer = s.clk.AfterFunc(time.Duration(delayMs)*time.Millisecond, func() {
		s.loop.Post(func() {
			if s.gen != gen || s.startToken != tok || s.startTimer == nil {
				return
			}
			s.startTimer = nil
			if err := s.startNow(); err != nil {
				s.log.Warn("deferred start failed", zap.Error(err))
			}
		})
	})
	s.log.Debug("start scheduled", zap.Int("delay_ms", delayMs))
	return nil
}

func (s *ChannelSession) startNow() error {
	if s.state != StateReady && s.state != StatePaused {
		return fmt.Errorf("%w: start from %s", ErrInvalidCommand, s.state)
	}
	if err := s.dec.Start(); err != nil {
		return &ChannelError{Channel: s.id, Op: "start", Err: err}
	}
	s.moveTo(StateActive)
	return nil
}

func (s *ChannelSession) cancelStart() {
	if s.startTimer != nil {
		s.startTimer.Stop()
		s.startTimer = nil
	}
	s.startToken++
}

// Pause stops the sink. Any deferred start is cancelled even when the
// session is not Active.
func (s *ChannelSession) Pause() error {
	s.cancelStart()
	if s.state != StateActive {
		return nil
	}
	if err := s.dec.Pause(); err != nil {
		return &ChannelError{Channel: s.id, Op: "pause", Err: err}
	}
	s.moveTo(StatePaused)
	return nil
}

// Seek repositions without changing the lifecycle state. While preparing,
// the position is applied once the decoder is ready.
func (s *ChannelSession) Seek(ms int) error {
	switch s.state {
	case StateReady, StateActive, StatePaused:
		if err := s.dec.SeekTo(ms); err != nil {
			return &ChannelError{Channel: s.id, Op: "seek", Err: err}
		}
		return nil
	case StatePreparing:
		s.pendingSeek = ms
		return nil
	}
	return fmt.Errorf("%w: seek in %s", ErrInvalidCommand, s.state)
}

// SetEnabled switches the channel. Disabling releases the pipeline but keeps
// the config; enabling re-opens the bound track at positionMs.
func (s *ChannelSession) SetEnabled(enabled bool, positionMs int) error {
	if !enabled {
		s.cfg.Enabled = false
		if s.state == StateEmpty {
			return nil
		}
		s.teardown()
		s.moveTo(StateDisabled)
		return nil
	}

	s.cfg.Enabled = true
	if s.state != StateDisabled {
		return nil
	}
	if s.track == nil {
		s.moveTo(StateEmpty)
		return nil
	}
	return s.open(positionMs)
}

func (s *ChannelSession) SetGainDb(db float64) error {
	s.cfg.GainDb = db
	if err := s.gain.SetGainDb(db); err != nil {
		return &ChannelError{Channel: s.id, Op: "gain", Err: wrapEffect(err)}
	}
	return nil
}

func (s *ChannelSession) SetRoute(r audioengine.Route) error {
	s.cfg.Route = r
	if err := s.gain.SetRoute(r); err != nil {
		return &ChannelError{Channel: s.id, Op: "route", Err: wrapEffect(err)}
	}
	return nil
}

// SetFilter stores the cutoff and recomputes the gate if one is live.
func (s *ChannelSession) SetFilter(cutoffHz int, kind audioengine.FilterKind) error {
	s.cfg.CutoffHz = cutoffHz
	s.cfg.Kind = kind
	if s.gate == nil {
		return nil
	}
	if err := s.gate.ApplyCutoff(cutoffHz, kind); err != nil {
		return &ChannelError{Channel: s.id, Op: "filter", Err: wrapEffect(err)}
	}
	return nil
}

// GateLevels returns the live band levels, nil without a gate.
func (s *ChannelSession) GateLevels() []float64 {
	if s.gate == nil {
		return nil
	}
	return s.gate.Levels()
}

func (s *ChannelSession) PositionMs() int {
	if s.dec == nil || !s.state.Live() || s.state == StatePreparing {
		return 0
	}
	return s.dec.PositionMs()
}

func (s *ChannelSession) DurationMs() int {
	if s.dec == nil || !s.state.Live() || s.state == StatePreparing {
		return 0
	}
	return s.dec.DurationMs()
}

// Release tears the session down for good; the config survives.
func (s *ChannelSession) Release() {
	s.teardown()
	s.track = nil
	if s.cfg.Enabled {
		s.moveTo(StateEmpty)
	} else {
		s.moveTo(StateDisabled)
	}
}

// teardown cancels deferred work and releases the decoder synchronously.
func (s *ChannelSession) teardown() {
	s.cancelStart()
	s.gen++
	s.pendingSeek = 0
	s.gate = nil
	s.gain.Detach()
	if s.dec == nil {
		return
	}
	if err := s.dec.Release(); err != nil {
		s.log.Warn("decoder release failed", zap.Error(err))
	}
	s.dec = nil
}

func (s *ChannelSession) moveTo(to SessionState) {
	if s.state == to && to != StatePreparing {
		return
	}
	if !s.state.canTransition(to) {
		s.log.Warn("session transition rejected", zap.Error(&transitionError{from: s.state, to: to}))
		return
	}
	s.log.Debug("session state", zap.Stringer("from", s.state), zap.Stringer("to", to))
	s.state = to
}
