package tts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/priyabot/priya/pkg/priya/metrics"
)

// Cascade tries each tier in order and returns the first clip produced.
type Cascade struct {
	tiers  []Synthesizer
	logger *slog.Logger
}

// NewCascade builds a cascade; nil tiers are ignored.
func NewCascade(logger *slog.Logger, tiers ...Synthesizer) *Cascade {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Cascade{logger: logger.With("component", "tts-cascade")}
	for _, t := range tiers {
		if t != nil {
			c.tiers = append(c.tiers, t)
		}
	}
	return c
}

// Synthesize returns audio from the first tier that succeeds, or nil when
// every tier failed. It never panics and never returns an error.
func (c *Cascade) Synthesize(ctx context.Context, text string, voice Voice) *Audio {
	for _, tier := range c.tiers {
		audio, err := c.try(ctx, tier, text, voice)
		switch {
		case err == nil && audio != nil && len(audio.Data) > 0:
			metrics.SpeechTier.WithLabelValues(tier.Name(), "success").Inc()
			return audio
		case errors.Is(err, ErrSkipped):
			metrics.SpeechTier.WithLabelValues(tier.Name(), "skipped").Inc()
			continue
		case err == nil:
			err = fmt.Errorf("%s returned no audio", tier.Name())
		}
		metrics.SpeechTier.WithLabelValues(tier.Name(), "failure").Inc()
		c.logger.Warn("speech tier failed, falling through", "tier", tier.Name(), "error", err)
	}
	c.logger.Warn("no speech produced")
	return nil
}

func (c *Cascade) try(ctx context.Context, tier Synthesizer, text string, voice Voice) (audio *Audio, err error) {
	defer func() {
		if r := recover(); r != nil {
			audio = nil
			err = fmt.Errorf("panic in %s: %v", tier.Name(), r)
		}
	}()
	return tier.Synthesize(ctx, text, voice)
}
