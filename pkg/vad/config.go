package vad

import "fmt"

// Version identifies the engine and the acoustic model generation it wraps.
const Version = "1.0.0-silero-v5"

// Config holds the detector configuration. It is immutable once a
// Detector has been created from it.
type Config struct {
	// SampleRate is the rate of the input audio. Supported values are
	// 8000 and 16000.
	SampleRate int

	// Threshold is the speech probability at or above which a frame counts
	// as speech. Zero selects the default of 0.5.
	Threshold float32

	// MinSpeechMs is the minimum duration of an emitted speech segment.
	// Zero selects the default of 250 ms.
	MinSpeechMs int

	// MinSilenceMs is the silence duration that closes a speech segment.
	// Zero selects the default of 100 ms.
	MinSilenceMs int

	// SpeechPadMs expands emitted streaming segments at both ends.
	// Zero selects the default of 30 ms.
	SpeechPadMs int

	// MaxSpeechS caps the duration of a single segment; longer speech is
	// split at the last confirmed silence. Zero selects the default of 30 s.
	MaxSpeechS int
}

const (
	defaultThreshold    = 0.5
	defaultMinSpeechMs  = 250
	defaultMinSilenceMs = 100
	defaultSpeechPadMs  = 30
	defaultMaxSpeechS   = 30

	// silenceAtMaxSpeechMs is the fixed silence run length that records a
	// split checkpoint while a segment approaches the max-speech cap.
	silenceAtMaxSpeechMs = 98

	// hysteresisGap is subtracted from Threshold to form the close
	// threshold, suppressing rapid toggling around the boundary.
	hysteresisGap = 0.15
)

// withDefaults returns a copy of c with zero fields replaced by defaults.
func (c Config) withDefaults() Config {
	if c.Threshold == 0 {
		c.Threshold = defaultThreshold
	}
	if c.MinSpeechMs == 0 {
		c.MinSpeechMs = defaultMinSpeechMs
	}
	if c.MinSilenceMs == 0 {
		c.MinSilenceMs = defaultMinSilenceMs
	}
	if c.SpeechPadMs == 0 {
		c.SpeechPadMs = defaultSpeechPadMs
	}
	if c.MaxSpeechS == 0 {
		c.MaxSpeechS = defaultMaxSpeechS
	}
	return c
}

// IsValid validates the configuration after defaulting.
func (c Config) IsValid() error {
	if c.SampleRate != 8000 && c.SampleRate != 16000 {
		return fmt.Errorf("invalid SampleRate: valid values are 8000 and 16000")
	}
	if c.Threshold < 0 || c.Threshold > 1 {
		return fmt.Errorf("invalid Threshold: should be in range [0, 1]")
	}
	if c.MinSpeechMs < 0 {
		return fmt.Errorf("invalid MinSpeechMs: should be a positive number")
	}
	if c.MinSilenceMs < 0 {
		return fmt.Errorf("invalid MinSilenceMs: should be a positive number")
	}
	if c.SpeechPadMs < 0 {
		return fmt.Errorf("invalid SpeechPadMs: should be a positive number")
	}
	if c.MaxSpeechS < 0 {
		return fmt.Errorf("invalid MaxSpeechS: should be a positive number")
	}
	return nil
}

// windowSize returns the model window for the configured rate: 512 samples
// at 16 kHz, 256 at 8 kHz.
func (c Config) windowSize() int {
	if c.SampleRate == 8000 {
		return 256
	}
	return 512
}

func (c Config) minSpeechSamples() uint64 {
	return uint64(c.SampleRate) * uint64(c.MinSpeechMs) / 1000
}

func (c Config) minSilenceSamples() uint64 {
	return uint64(c.SampleRate) * uint64(c.MinSilenceMs) / 1000
}

func (c Config) speechPadSamples() uint64 {
	return uint64(c.SampleRate) * uint64(c.SpeechPadMs) / 1000
}

func (c Config) silenceAtMaxSpeechSamples() uint64 {
	return uint64(c.SampleRate) * silenceAtMaxSpeechMs / 1000
}

// maxSpeechSamples is the segment length cap in samples, leaving room for
// one window and the pad at both ends.
func (c Config) maxSpeechSamples() uint64 {
	return uint64(c.SampleRate)*uint64(c.MaxSpeechS) - uint64(c.windowSize()) - 2*c.speechPadSamples()
}
