package ml

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"placement-predictor/internal/artifact"
)

// State is the lifecycle of the artifact cache.
type State int32

const (
	StateUninitialized State = iota
	StateReady
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateReady:
		return "ready"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// ArtifactCache loads the artifact bundle once and then serves the same
// instance to every caller. A failed load is not remembered; the next call
// tries again.
type ArtifactCache struct {
	loader  Loader
	metrics MetricsInterface
	bundle  atomic.Pointer[artifact.Bundle]
	group   singleflight.Group
	now     func() time.Time
}

// NewArtifactCache wraps loader. metrics may be nil.
func NewArtifactCache(loader Loader, metrics MetricsInterface) *ArtifactCache {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &ArtifactCache{loader: loader, metrics: metrics, now: time.Now}
}

// State reports whether a bundle has been loaded.
func (c *ArtifactCache) State() State {
	if c.bundle.Load() != nil {
		return StateReady
	}
	return StateUninitialized
}

// Bundle returns the cached bundle without loading.
func (c *ArtifactCache) Bundle() *artifact.Bundle {
	return c.bundle.Load()
}

// GetOrLoad returns the cached bundle, loading it on first use. Concurrent
// first callers share a single load.
func (c *ArtifactCache) GetOrLoad(ctx context.Context) (*artifact.Bundle, error) {
	if b := c.bundle.Load(); b != nil {
		return b, nil
	}

	ch := c.group.DoChan("bundle", func() (any, error) {
		if b := c.bundle.Load(); b != nil {
			return b, nil
		}
		// Followers share this load, so one caller's cancellation must not
		// fail the rest.
		return c.load(context.WithoutCancel(ctx))
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*artifact.Bundle), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *ArtifactCache) load(ctx context.Context) (*artifact.Bundle, error) {
	start := c.now()
	b, err := c.loader.Load(ctx)
	elapsed := c.now().Sub(start)
	if err != nil {
		c.metrics.ArtifactLoadFailuresInc(FailureReason(err))
		log.Error().Err(err).Dur("elapsed", elapsed).Msg("failed to load artifact bundle")
		return nil, fmt.Errorf("load artifacts: %w", err)
	}

	c.metrics.ArtifactLoadObserve(elapsed.Seconds())
	if created := b.Manifest.CreatedAt; !created.IsZero() {
		c.metrics.ModelAgeSet(c.now().Sub(created).Seconds())
	}

	c.bundle.Store(b)

	log.Info().
		Str("run", b.Manifest.RunID).
		Str("classifier", b.Manifest.ClassifierKind).
		Int("features", len(b.Schema)).
		Dur("elapsed", elapsed).
		Msg("artifact bundle loaded")

	return b, nil
}
