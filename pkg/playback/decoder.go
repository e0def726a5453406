package playback

import "duet/pkg/audioengine"

// Listener receives a decoder's asynchronous notifications. Implementations
// may call these from any goroutine, including from inside Open.
type Listener interface {
	Prepared()
	Completed()
	// Failed reports a source that passed Open but could not be decoded.
	// No Prepared follows.
	Failed(err error)
}

// Opener is the source/decoder capability. Open must fail with an error
// wrapping ErrSourceUnavailable when the source cannot be opened, and must
// not block on decoding: readiness is reported through Listener.Prepared.
type Opener interface {
	Open(sourceID string, l Listener) (Decoder, error)
}

// Decoder is one decode/render pipeline bound to a single sink.
type Decoder interface {
	Start() error
	Pause() error
	SeekTo(ms int) error
	PositionMs() int
	DurationMs() int
	SetChannelGains(left, right float64) error
	// Bands returns the spectral-band capability, or an error wrapping
	// ErrEffectUnavailable when the pipeline has none.
	Bands() (audioengine.BandBank, error)
	// Release frees the pipeline. Notifications racing with Release are
	// dropped by the owning session.
	Release() error
}
