// Copyright 2024-2026 Aiku AI

package relay

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	DefaultMinRotationSeconds = 3600
	DefaultMaxRotationSeconds = 21600
	MinRotationFloorSeconds   = 10
)

// waitFunc blocks for d or until ctx is done, reporting whether the full
// duration elapsed.
type waitFunc func(ctx context.Context, d time.Duration) bool

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// RotatorOptions configures a Rotator.
type RotatorOptions struct {
	Texts []string
	Kinds []string
	// DefaultText and DefaultKind are used when the candidate lists are empty.
	DefaultText string
	DefaultKind string
	MinSeconds  int
	MaxSeconds  int
}

// RotatorOptionsFromConfig derives rotator options from the appearance config.
func RotatorOptionsFromConfig(cfg AppearanceConfig) RotatorOptions {
	return RotatorOptions{
		Texts:       cfg.RandomStatusTexts,
		Kinds:       cfg.RandomActivityTypes,
		DefaultText: cfg.StatusText,
		DefaultKind: cfg.ActivityType,
		MinSeconds:  cfg.MinIntervalSeconds,
		MaxSeconds:  cfg.MaxIntervalSeconds,
	}
}

// NormalizeInterval applies defaults to unset bounds, swaps inverted bounds
// and floors both at MinRotationFloorSeconds.
func NormalizeInterval(minSec, maxSec int) (int, int) {
	if minSec == 0 {
		minSec = DefaultMinRotationSeconds
	}
	if maxSec == 0 {
		maxSec = DefaultMaxRotationSeconds
	}
	if minSec > maxSec {
		minSec, maxSec = maxSec, minSec
	}
	return max(minSec, MinRotationFloorSeconds), max(maxSec, MinRotationFloorSeconds)
}

// Rotator periodically applies a random presence. At most one rotation loop
// runs per Rotator.
type Rotator struct {
	platform Platform
	texts    []string
	kinds    []string
	minSec   int
	maxSec   int
	picker   Picker
	wait     waitFunc
	log      zerolog.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewRotator(platform Platform, opts RotatorOptions, picker Picker, log zerolog.Logger) *Rotator {
	if picker == nil {
		picker = DefaultPicker
	}
	texts := opts.Texts
	if len(texts) == 0 {
		texts = []string{opts.DefaultText}
	}
	kinds := opts.Kinds
	if len(kinds) == 0 {
		kinds = []string{opts.DefaultKind}
	}
	minSec, maxSec := NormalizeInterval(opts.MinSeconds, opts.MaxSeconds)
	return &Rotator{
		platform: platform,
		texts:    texts,
		kinds:    kinds,
		minSec:   minSec,
		maxSec:   maxSec,
		picker:   picker,
		wait:     sleepCtx,
		log:      log.With().Str("component", "presence_rotator").Logger(),
	}
}

// Start launches the rotation loop in the background. It returns false
// without doing anything if a loop is already running.
func (r *Rotator) Start(ctx context.Context) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return false
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	r.running = true
	r.cancel = cancel
	r.done = done
	go func() {
		defer close(done)
		defer func() {
			r.mu.Lock()
			r.running = false
			r.mu.Unlock()
		}()
		r.run(ctx)
	}()
	r.log.Info().
		Int("min_interval_seconds", r.minSec).
		Int("max_interval_seconds", r.maxSec).
		Int("texts", len(r.texts)).
		Int("kinds", len(r.kinds)).
		Msg("Started presence rotation")
	return true
}

// Running reports whether the rotation loop is active.
func (r *Rotator) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// Stop cancels the rotation loop and waits for it to exit.
func (r *Rotator) Stop() {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (r *Rotator) run(ctx context.Context) {
	for {
		r.tick(ctx)
		if !r.wait(ctx, r.nextInterval()) {
			r.log.Debug().Msg("Presence rotation stopped")
			return
		}
	}
}

// tick applies one random presence. Failures are logged and never stop the loop.
func (r *Rotator) tick(ctx context.Context) {
	text := r.texts[r.picker.IntN(len(r.texts))]
	kind := r.kinds[r.picker.IntN(len(r.kinds))]
	err := r.platform.UpdatePresence(ctx, BuildPresence(kind, text))
	metrics().presenceUpdates.WithLabelValues(resultLabel(err)).Inc()
	if err != nil {
		r.log.Warn().Err(err).Str("status_text", text).Str("activity_type", kind).Msg("Failed to rotate presence")
		return
	}
	r.log.Debug().Str("status_text", text).Str("activity_type", kind).Msg("Rotated presence")
}

func (r *Rotator) nextInterval() time.Duration {
	secs := r.minSec + r.picker.IntN(r.maxSec-r.minSec+1)
	return time.Duration(secs) * time.Second
}
