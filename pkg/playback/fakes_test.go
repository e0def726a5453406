package playback

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap/zaptest"

	"duet/pkg/audioengine"
)

type fakeBank struct {
	mu      sync.Mutex
	centers []float64
	levels  []float64
}

func newFakeBank() *fakeBank {
	c := append([]float64(nil), audioengine.EQFreqs...)
	return &fakeBank{centers: c, levels: make([]float64, len(c))}
}

func (b *fakeBank) NumBands() int                  { return len(b.centers) }
func (b *fakeBank) CenterFreq(i int) float64       { return b.centers[i] }
func (b *fakeBank) LevelRange() (float64, float64) { return -15, 15 }

func (b *fakeBank) SetBandLevel(i int, db float64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.levels[i] = db
	return nil
}

func (b *fakeBank) Levels() []float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]float64(nil), b.levels...)
}

type fakeDecoder struct {
	mu       sync.Mutex
	id       string
	l        Listener
	bank     *fakeBank
	noBands  bool
	starts   int
	pauses   int
	playing  bool
	pos      int
	dur      int
	left     float64
	right    float64
	gainSet  bool
	released bool
}

func (d *fakeDecoder) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.starts++
	d.playing = true
	return nil
}

func (d *fakeDecoder) Pause() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pauses++
	d.playing = false
	return nil
}

func (d *fakeDecoder) SeekTo(ms int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pos = ms
	return nil
}

func (d *fakeDecoder) PositionMs() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pos
}

func (d *fakeDecoder) DurationMs() int { return d.dur }

func (d *fakeDecoder) SetChannelGains(l, r float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.left, d.right, d.gainSet = l, r, true
	return nil
}

func (d *fakeDecoder) Bands() (audioengine.BandBank, error) {
	if d.noBands {
		return nil, fmt.Errorf("%w: no equalizer", ErrEffectUnavailable)
	}
	return d.bank, nil
}

func (d *fakeDecoder) Release() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.released = true
	d.playing = false
	return nil
}

func (d *fakeDecoder) Playing() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.playing
}

func (d *fakeDecoder) Starts() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.starts
}

func (d *fakeDecoder) Released() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.released
}

func (d *fakeDecoder) Gains() (float64, float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.left, d.right
}

func (d *fakeDecoder) SetPosition(ms int) {
	d.mu.Lock()
	d.pos = ms
	d.mu.Unlock()
}

// Complete simulates the end of the stream. Like the real sink it keeps
// running until paused.
func (d *fakeDecoder) Complete() {
	d.mu.Lock()
	d.pos = d.dur
	d.mu.Unlock()
	d.l.Completed()
}

// Fail simulates a decode error found after Open succeeded.
func (d *fakeDecoder) Fail(err error) {
	d.l.Failed(err)
}

type fakeOpener struct {
	mu       sync.Mutex
	dur      int
	manual   bool
	noBands  bool
	fail     map[string]bool
	decoders []*fakeDecoder
}

func newFakeOpener() *fakeOpener {
	return &fakeOpener{dur: 10000, fail: map[string]bool{}}
}

func (o *fakeOpener) Open(id string, l Listener) (Decoder, error) {
	o.mu.Lock()
	if o.fail[id] {
		o.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrSourceUnavailable, id)
	}
	d := &fakeDecoder{id: id, l: l, dur: o.dur, bank: newFakeBank(), noBands: o.noBands}
	o.decoders = append(o.decoders, d)
	manual := o.manual
	o.mu.Unlock()

	if !manual {
		l.Prepared()
	}
	return d, nil
}

func (o *fakeOpener) Count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.decoders)
}

// Decoder returns the i-th opened decoder.
func (o *fakeOpener) Decoder(t *testing.T, i int) *fakeDecoder {
	t.Helper()
	o.mu.Lock()
	defer o.mu.Unlock()
	if i >= len(o.decoders) {
		t.Fatalf("decoder %d not opened, have %d", i, len(o.decoders))
	}
	return o.decoders[i]
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Publish(ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) Has(t EventType) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ev := range r.events {
		if ev.Type == t {
			return true
		}
	}
	return false
}

func (r *recorder) Last(t EventType) (Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].Type == t {
			return r.events[i], true
		}
	}
	return Event{}, false
}

func testTracks(n int) []Track {
	out := make([]Track, n)
	for i := range out {
		out[i] = Track{ID: fmt.Sprintf("t%d", i), Title: fmt.Sprintf("Track %d", i), DurationMs: 10000}
	}
	return out
}

func newTestEngine(t *testing.T, o *fakeOpener, opts ...Option) (*Engine, *clock.Mock, *recorder) {
	t.Helper()
	mock := clock.NewMock()
	rec := &recorder{}
	base := []Option{
		WithClock(mock),
		WithLogger(zaptest.NewLogger(t)),
		WithSink(rec),
		WithSnapshotInterval(0),
	}
	e := New(o, append(base, opts...)...)
	t.Cleanup(func() { e.Close() })
	return e, mock, rec
}

// settle runs the loop until no posted work remains, including work posted
// by the work it ran.
func settle(t *testing.T, e *Engine) {
	t.Helper()
	for i := 0; i < 100; i++ {
		var n int
		if !e.loop.Call(func() { n = e.loop.pending() }) {
			t.Fatalf("engine loop stopped")
		}
		if n == 0 {
			return
		}
	}
	t.Fatalf("engine loop never went idle")
}

func (l *Loop) pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

// advance moves the mock clock and gives timer goroutines a moment to post
// back to the loop.
func advance(t *testing.T, e *Engine, mock *clock.Mock, d time.Duration) {
	t.Helper()
	mock.Add(d)
	time.Sleep(10 * time.Millisecond)
	settle(t, e)
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func sessionState(e *Engine, ch ChannelID) SessionState {
	var st SessionState
	e.loop.Call(func() { st = e.sync.Session(ch).State() })
	return st
}

func mustSnapshot(t *testing.T, e *Engine) Snapshot {
	t.Helper()
	snap, err := e.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	return snap
}
