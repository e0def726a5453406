// Package backend renders playback channels through the beep speaker.
//
//	[pcmSource] -> [EQBank] -> [StereoGain] -> [Ctrl] -> [Mixer] -> speaker
package backend

import (
	"fmt"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/speaker"
	"go.uber.org/zap"

	"duet/pkg/audioengine"
	"duet/pkg/playback"
)

// Locker serializes access to streamers the speaker is pulling from.
type Locker interface {
	Lock()
	Unlock()
}

type speakerLocker struct{}

func (speakerLocker) Lock()   { speaker.Lock() }
func (speakerLocker) Unlock() { speaker.Unlock() }

type Config struct {
	SampleRate int
	BufferMs   int
	Passphrase string
}

// Output owns the shared mixer. Every pipeline it opens plays into it.
type Output struct {
	rate       beep.SampleRate
	mixer      *beep.Mixer
	lock       Locker
	passphrase string
	log        *zap.Logger
	speaker    bool

	wg sync.WaitGroup
}

var speakerOnce sync.Once

// NewOutput initializes the speaker once and starts playing the mixer.
func NewOutput(cfg Config, log *zap.Logger) (*Output, error) {
	rate := beep.SampleRate(cfg.SampleRate)
	if rate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %d", cfg.SampleRate)
	}
	buffer := time.Duration(cfg.BufferMs) * time.Millisecond
	if buffer <= 0 {
		buffer = 100 * time.Millisecond
	}

	var err error
	speakerOnce.Do(func() {
		err = speaker.Init(rate, rate.N(buffer))
	})
	if err != nil {
		return nil, fmt.Errorf("speaker init: %w", err)
	}

	o := newOutput(rate, speakerLocker{}, cfg.Passphrase, log)
	o.speaker = true
	speaker.Play(o.mixer)
	log.Info("audio output ready", zap.Int("sample_rate", int(rate)), zap.Duration("buffer", buffer))
	return o, nil
}

func newOutput(rate beep.SampleRate, lock Locker, passphrase string, log *zap.Logger) *Output {
	if log == nil {
		log = zap.NewNop()
	}
	return &Output{
		rate:       rate,
		mixer:      &beep.Mixer{},
		lock:       lock,
		passphrase: passphrase,
		log:        log,
	}
}

func (o *Output) SampleRate() beep.SampleRate { return o.rate }

// Open checks the source synchronously and decodes it in the background.
// The listener is told Prepared once the pipeline can start, or Failed if
// the full decode breaks after the check passed.
func (o *Output) Open(sourceID string, l playback.Listener) (playback.Decoder, error) {
	if !Supported(sourceID) {
		return nil, fmt.Errorf("%w: %w: %s", playback.ErrSourceUnavailable, ErrUnsupported, sourceID)
	}
	if err := checkSource(sourceID, o.passphrase); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", playback.ErrSourceUnavailable, sourceID, err)
	}

	p := &Pipeline{out: o, id: sourceID, l: l}
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		p.prepare()
	}()
	return p, nil
}

// Wait blocks until every background decode has finished.
func (o *Output) Wait() { o.wg.Wait() }

// Close stops the speaker. Pipelines must be released first.
func (o *Output) Close() error {
	o.wg.Wait()
	o.lock.Lock()
	o.mixer.Clear()
	o.lock.Unlock()
	if o.speaker {
		speaker.Clear()
	}
	return nil
}

// Pipeline is one decoded source wired into the mixer. It implements
// playback.Decoder.
type Pipeline struct {
	out *Output
	id  string
	l   playback.Listener

	// guarded by out.lock
	src      *pcmSource
	eq       *audioengine.EQBank
	gain     *audioengine.StereoGain
	ctrl     *beep.Ctrl
	added    bool
	released bool
}

func (p *Pipeline) prepare() {
	pcm, err := DecodeFile(p.id, p.out.rate, p.out.passphrase)
	if err != nil {
		p.out.log.Error("decode failed", zap.String("source", p.id), zap.Error(err))
		p.l.Failed(fmt.Errorf("%w: %w", playback.ErrSourceUnavailable, err))
		return
	}

	src := &pcmSource{data: pcm, onEnd: p.l.Completed}
	eq := audioengine.NewEQBank(p.out.rate, audioengine.EQFreqs)
	gain := audioengine.NewStereoGain(eq.Wrap(src))
	ctrl := &beep.Ctrl{Streamer: gain, Paused: true}

	p.out.lock.Lock()
	if p.released {
		p.out.lock.Unlock()
		return
	}
	p.src, p.eq, p.gain, p.ctrl = src, eq, gain, ctrl
	p.out.lock.Unlock()

	p.out.log.Debug("source decoded", zap.String("source", p.id), zap.Int("frames", len(pcm)))
	p.l.Prepared()
}

func (p *Pipeline) Start() error {
	p.out.lock.Lock()
	defer p.out.lock.Unlock()
	if p.ctrl == nil || p.released {
		return fmt.Errorf("pipeline not ready")
	}
	p.ctrl.Paused = false
	if !p.added {
		p.out.mixer.Add(p.ctrl)
		p.added = true
	}
	return nil
}

func (p *Pipeline) Pause() error {
	p.out.lock.Lock()
	defer p.out.lock.Unlock()
	if p.ctrl != nil {
		p.ctrl.Paused = true
	}
	return nil
}

func (p *Pipeline) SeekTo(ms int) error {
	p.out.lock.Lock()
	defer p.out.lock.Unlock()
	if p.src == nil {
		return fmt.Errorf("pipeline not ready")
	}
	p.src.seek(p.out.rate.N(time.Duration(ms) * time.Millisecond))
	return nil
}

func (p *Pipeline) PositionMs() int {
	p.out.lock.Lock()
	defer p.out.lock.Unlock()
	if p.src == nil {
		return 0
	}
	return int(p.out.rate.D(p.src.pos) / time.Millisecond)
}

func (p *Pipeline) DurationMs() int {
	p.out.lock.Lock()
	defer p.out.lock.Unlock()
	if p.src == nil {
		return 0
	}
	return int(p.out.rate.D(len(p.src.data)) / time.Millisecond)
}

func (p *Pipeline) SetChannelGains(left, right float64) error {
	p.out.lock.Lock()
	g := p.gain
	p.out.lock.Unlock()
	if g == nil {
		return fmt.Errorf("pipeline not ready")
	}
	return g.SetChannelGains(left, right)
}

func (p *Pipeline) Bands() (audioengine.BandBank, error) {
	p.out.lock.Lock()
	defer p.out.lock.Unlock()
	if p.eq == nil {
		return nil, fmt.Errorf("%w: pipeline not ready", playback.ErrEffectUnavailable)
	}
	return p.eq, nil
}

// Release detaches the pipeline from the mixer; the mixer drops it on the
// next pull.
func (p *Pipeline) Release() error {
	p.out.lock.Lock()
	defer p.out.lock.Unlock()
	p.released = true
	if p.ctrl != nil {
		p.ctrl.Streamer = nil
	}
	return nil
}

// pcmSource plays a decoded buffer. At the end it reports completion once
// and keeps producing silence so a later seek can resume it. Every seek
// re-arms the report, including a seek to the very end.
type pcmSource struct {
	data  [][2]float64
	pos   int
	ended bool
	onEnd func()
}

func (s *pcmSource) Stream(samples [][2]float64) (int, bool) {
	n := 0
	if s.pos < len(s.data) {
		n = copy(samples, s.data[s.pos:])
		s.pos += n
	}
	for i := n; i < len(samples); i++ {
		samples[i] = [2]float64{}
	}
	if s.pos >= len(s.data) && !s.ended {
		s.ended = true
		if s.onEnd != nil {
			go s.onEnd()
		}
	}
	return len(samples), true
}

func (s *pcmSource) Err() error { return nil }

func (s *pcmSource) seek(frame int) {
	s.pos = max(0, min(frame, len(s.data)))
	s.ended = false
}
