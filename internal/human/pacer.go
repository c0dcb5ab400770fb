// Package human produces randomized, human-plausible timing for
// keystrokes and UI actions so the target site never observes a fixed
// automation cadence. The contract is "looks human", not an exact delay.
package human

import (
	"math/rand"
	"time"

	"webchat-bridge/internal/config"
)

type Pacer struct {
	typingMin time.Duration
	typingMax time.Duration

	wordPauseProbability float64
	wordPauseMin         time.Duration
	wordPauseMax         time.Duration

	actionMin time.Duration
	actionMax time.Duration
}

func NewPacer(conf *config.HumanConfig) *Pacer {
	return &Pacer{
		typingMin:            time.Duration(conf.TypingMinDelay) * time.Millisecond,
		typingMax:            time.Duration(conf.TypingMaxDelay) * time.Millisecond,
		wordPauseProbability: conf.WordPauseProbability,
		wordPauseMin:         time.Duration(conf.WordPauseMin) * time.Millisecond,
		wordPauseMax:         time.Duration(conf.WordPauseMax) * time.Millisecond,
		actionMin:            time.Duration(conf.ActionDelayMin) * time.Millisecond,
		actionMax:            time.Duration(conf.ActionDelayMax) * time.Millisecond,
	}
}

// KeystrokeDelay is the delay before the next typed character.
func (p *Pacer) KeystrokeDelay() time.Duration {
	return between(p.typingMin, p.typingMax)
}

// WordPause reports whether an extra pause follows a word-boundary
// character, and its duration when it does.
func (p *Pacer) WordPause() (time.Duration, bool) {
	if rand.Float64() >= p.wordPauseProbability {
		return 0, false
	}

	return between(p.wordPauseMin, p.wordPauseMax), true
}

// ActionDelay separates discrete UI actions such as click and submit.
func (p *Pacer) ActionDelay() time.Duration {
	return between(p.actionMin, p.actionMax)
}

// Between draws a delay from an arbitrary range, for one-off waits that
// have no dedicated config knob.
func (p *Pacer) Between(min, max time.Duration) time.Duration {
	return between(min, max)
}

func between(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}

	return min + time.Duration(rand.Int63n(int64(max-min)))
}
