/*
 * Copyright (c) 2025 Hardiyanto Y -Ebiet.
 * This software is part of the duet project.
 * This code is provided "as is", without warranty of any kind.
 */

package spec

const (
	// === IDENTITY & VERSIONING ===
	Version   = "1.0.0"
	AppName   = "duet"
	UserAgent = AppName + "/" + Version

	// === MAGIC NUMBERS ===
	TrackMagic = "DUETTRK1"

	// === ENGINE SPECS ===
	SampleRate = 48000
	Channels   = 2
	FrameSize  = 20 // ms per opus frame

	// Window used to absorb inter-channel finish jitter before advancing.
	CompletionDebounceMs = 200
	SnapshotIntervalMs   = 1000

	// Spectral gate defaults.
	DefaultNearCutoffHz = 50
	DefaultFarCutoffHz  = 15000

	// === TLV TAGS ===
	Title     = "TITL"
	Artist    = "ARTS"
	Duration  = "DURN" // uint32 milliseconds
	Artwork   = "ARTW"
	Salt      = "SALT"
	Encrypted = "ENCR"
	AudioData = "AUDI"
)
