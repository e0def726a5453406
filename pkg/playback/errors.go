package playback

import (
	"errors"
	"fmt"
)

var (
	// ErrSourceUnavailable means the track could not be opened. The load is
	// aborted and not retried.
	ErrSourceUnavailable = errors.New("source unavailable")
	// ErrEffectUnavailable means a gain or spectral capability is missing on a
	// decoder. The channel keeps playing unadjusted.
	ErrEffectUnavailable = errors.New("effect unavailable")
	// ErrInvalidCommand covers commands that are clamped or ignored.
	ErrInvalidCommand = errors.New("invalid command")
	// ErrClosed is returned by queries on a closed engine.
	ErrClosed = errors.New("engine closed")
)

// ChannelError scopes a failure to one channel.
type ChannelError struct {
	Channel ChannelID
	Op      string
	Err     error
}

func (e *ChannelError) Error() string {
	return fmt.Sprintf("%s channel: %s: %v", e.Channel, e.Op, e.Err)
}

func (e *ChannelError) Unwrap() error {
	return e.Err
}
