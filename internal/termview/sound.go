package termview

import (
	"fmt"
	"sync"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/effects"
	"github.com/gopxl/beep/generators"
	"github.com/gopxl/beep/speaker"
)

const sampleRate = beep.SampleRate(44100)

// threnodyNotes is the descending dirge played when a named battle is lost.
var threnodyNotes = []struct {
	freq float64
	dur  time.Duration
}{
	{392.00, 400 * time.Millisecond}, // G4
	{349.23, 400 * time.Millisecond}, // F4
	{311.13, 400 * time.Millisecond}, // Eb4
	{261.63, 900 * time.Millisecond}, // C4
}

// Speaker plays the threnody through the system audio device.
type Speaker struct {
	mu          sync.Mutex
	initialized bool
}

// NewSpeaker opens the audio device.
func NewSpeaker() (*Speaker, error) {
	if err := speaker.Init(sampleRate, sampleRate.N(time.Second/10)); err != nil {
		return nil, fmt.Errorf("audio init: %w", err)
	}
	return &Speaker{initialized: true}, nil
}

// dirge builds the threnody streamer.
func dirge(sr beep.SampleRate) (beep.Streamer, error) {
	parts := make([]beep.Streamer, 0, len(threnodyNotes))
	for _, n := range threnodyNotes {
		tone, err := generators.SineTone(sr, n.freq)
		if err != nil {
			return nil, fmt.Errorf("tone %.2f Hz: %w", n.freq, err)
		}
		parts = append(parts, beep.Take(sr.N(n.dur), tone))
	}
	return &effects.Volume{Streamer: beep.Seq(parts...), Base: 2, Volume: -3}, nil
}

// PlayThrenody queues the dirge.
func (s *Speaker) PlayThrenody() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return
	}
	st, err := dirge(sampleRate)
	if err != nil {
		return
	}
	speaker.Play(st)
}

// Close stops playback and releases the device.
func (s *Speaker) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return
	}
	speaker.Clear()
	speaker.Close()
	s.initialized = false
}
