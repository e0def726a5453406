package playback

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

// Snapshot is the public read-only view published to observers.
type Snapshot struct {
	Playing      bool `json:"playing"`
	CurrentIndex int  `json:"current_index"`
	PositionMs   int  `json:"position_ms"`
	DurationMs   int  `json:"duration_ms"`
}

type EventType string

const (
	EventStatus       EventType = "STATUS"
	EventTick         EventType = "TICK"
	EventTrackChanged EventType = "TRACK_CHANGED"
	EventLoadFailed   EventType = "LOAD_FAILED"
	EventPlaylist     EventType = "PLAYLIST"
	EventStopped      EventType = "STOPPED"
)

type Event struct {
	Type EventType `json:"type"`
	At   time.Time `json:"at"`
	Snapshot
	Error string `json:"error,omitempty"`
}

// Sink receives events on the dispatcher goroutine. Publish must not block
// for long; a slow sink delays every other sink.
type Sink interface {
	Publish(Event)
}

type SinkFunc func(Event)

func (f SinkFunc) Publish(ev Event) { f(ev) }

const eventBuffer = 64

// EventPort fans snapshots out to sinks. Emission happens on the engine loop;
// delivery happens on a dispatcher goroutine so sinks never block the loop.
type EventPort struct {
	clk      clock.Clock
	loop     *Loop
	interval time.Duration
	snapshot func() Snapshot
	log      *zap.Logger

	mu     sync.Mutex
	sinks  map[int]Sink
	nextID int

	out  chan Event
	done chan struct{}

	tickStop chan struct{}
}

func newEventPort(clk clock.Clock, loop *Loop, interval time.Duration, snapshot func() Snapshot, log *zap.Logger) *EventPort {
	p := &EventPort{
		clk:      clk,
		loop:     loop,
		interval: interval,
		snapshot: snapshot,
		log:      log,
		sinks:    make(map[int]Sink),
		out:      make(chan Event, eventBuffer),
		done:     make(chan struct{}),
	}
	go p.dispatch()
	return p
}

// Subscribe registers s and returns a function that removes it.
func (p *EventPort) Subscribe(s Sink) func() {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.sinks[id] = s
	p.mu.Unlock()
	return func() {
		p.mu.Lock()
		delete(p.sinks, id)
		p.mu.Unlock()
	}
}

// Emit publishes the current snapshot. Loop only.
func (p *EventPort) Emit(t EventType, err error) {
	ev := Event{Type: t, At: p.clk.Now(), Snapshot: p.snapshot()}
	if err != nil {
		ev.Error = err.Error()
	}
	select {
	case p.out <- ev:
	default:
		p.log.Warn("event dropped, sinks are behind", zap.String("type", string(t)))
	}
}

// startTicker begins periodic snapshots. Loop only.
func (p *EventPort) startTicker() {
	if p.tickStop != nil || p.interval <= 0 {
		return
	}
	stop := make(chan struct{})
	p.tickStop = stop
	t := p.clk.Ticker(p.interval)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-t.C:
				p.loop.Post(func() {
					if p.tickStop == stop {
						p.Emit(EventTick, nil)
					}
				})
			case <-stop:
				return
			}
		}
	}()
}

// stopTicker ends periodic snapshots. Loop only.
func (p *EventPort) stopTicker() {
	if p.tickStop == nil {
		return
	}
	close(p.tickStop)
	p.tickStop = nil
}

func (p *EventPort) dispatch() {
	defer close(p.done)
	for ev := range p.out {
		p.mu.Lock()
		sinks := make([]Sink, 0, len(p.sinks))
		for _, s := range p.sinks {
			sinks = append(sinks, s)
		}
		p.mu.Unlock()
		for _, s := range sinks {
			s.Publish(ev)
		}
	}
}

// Close flushes queued events. Emit must not be called afterwards.
func (p *EventPort) Close() {
	close(p.out)
	<-p.done
}
