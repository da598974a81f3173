package console

import (
	"io"
	"log"
	"time"
)

// Sound plays named effects and music. Implementations must not block the
// simulation loop.
type Sound interface {
	Play(name string, volume float64, loop bool)
	Stop(name string)
	PlayMusic(name string, loop bool)
	StopMusic()
	SetVolume(volume float64)
}

// LogSound is a Sound that only logs. It is used when no audio backend is
// attached; external players follow the mirrored play_sound events instead.
type LogSound struct {
	logger *log.Logger
}

// NewLogSound creates a LogSound writing to logger.
func NewLogSound(logger *log.Logger) *LogSound {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &LogSound{logger: logger}
}

func (s *LogSound) Play(name string, volume float64, loop bool) {
	s.logger.Printf("sound: play %s (volume %.2f, loop %t)", name, volume, loop)
}

func (s *LogSound) Stop(name string) { s.logger.Printf("sound: stop %s", name) }

func (s *LogSound) PlayMusic(name string, loop bool) {
	s.logger.Printf("sound: music %s (loop %t)", name, loop)
}

func (s *LogSound) StopMusic() { s.logger.Printf("sound: music stopped") }

func (s *LogSound) SetVolume(volume float64) { s.logger.Printf("sound: volume %.2f", volume) }

// RecordingSound records every call. For tests.
type RecordingSound struct {
	Played  []string
	Stopped []string
	Music   []string
	Volume  float64
}

func (s *RecordingSound) Play(name string, volume float64, loop bool) {
	s.Played = append(s.Played, name)
}

func (s *RecordingSound) Stop(name string) { s.Stopped = append(s.Stopped, name) }

func (s *RecordingSound) PlayMusic(name string, loop bool) { s.Music = append(s.Music, name) }

func (s *RecordingSound) StopMusic() { s.Music = append(s.Music, "") }

func (s *RecordingSound) SetVolume(volume float64) { s.Volume = volume }

// Has reports whether name was played.
func (s *RecordingSound) Has(name string) bool {
	for _, p := range s.Played {
		if p == name {
			return true
		}
	}
	return false
}

// SoundTable maps sound names to their playing time.
type SoundTable map[string]time.Duration

// Length reports the playing time of name.
func (t SoundTable) Length(name string) (time.Duration, bool) {
	d, ok := t[name]
	return d, ok
}
