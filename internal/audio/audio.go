// Package audio plays the canary's sound cues.
// The real implementation drives an Adafruit Audio FX Sound Board over UART.
package audio

import (
	"errors"
	"fmt"
)

// Track is a sound board track index.
type Track int

// Tracks as loaded on the sound board.
const (
	TrackYawn        Track = 0
	TrackStuffy      Track = 1
	TrackOpenWindow  Track = 2
	TrackPassOut     Track = 3
	TrackThatsBetter Track = 4
	TrackDead        Track = 5
)

func (t Track) String() string {
	switch t {
	case TrackYawn:
		return "yawn"
	case TrackStuffy:
		return "stuffy"
	case TrackOpenWindow:
		return "open window"
	case TrackPassOut:
		return "pass out"
	case TrackThatsBetter:
		return "that's better"
	case TrackDead:
		return "dead"
	default:
		return fmt.Sprintf("track %d", int(t))
	}
}

var (
	// ErrNoResponse means the board did not answer before the read timeout.
	ErrNoResponse = errors.New("audio: no response from sound board")
	// ErrTrackRejected means the board answered but did not start playing.
	ErrTrackRejected = errors.New("audio: track rejected")
)

// Player plays a cue. A muted cue is accepted but produces no sound.
type Player interface {
	Play(track Track, muted bool) error
	Close() error
}

// Silent is the Player for a canary with no sound board fitted.
type Silent struct{}

func (Silent) Play(Track, bool) error { return nil }
func (Silent) Close() error           { return nil }
