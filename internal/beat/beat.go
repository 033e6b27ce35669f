// Package beat drives periodic heartbeats for a set of registered nodes.
// The SDK core deliberately runs no background loops; this is the
// caller-side scheduler that fills that gap for the CLI and for node
// agents embedding the client.
package beat

import (
	"context"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xflash-panda/panel-client-go/pkg/panel"
)

// Config holds heartbeat runner configuration.
type Config struct {
	Interval      time.Duration
	BeatTimeout   time.Duration
	FailThreshold int

	// RequestsPerSecond paces heartbeats across targets so a large fleet
	// does not burst the panel every tick. Zero disables pacing.
	RequestsPerSecond float64
}

// Beater sends one heartbeat. *panel.Client satisfies it.
type Beater interface {
	Heartbeat(ctx context.Context, nodeType panel.NodeType, registerID string) error
}

// Target identifies one registration to keep alive.
type Target struct {
	NodeType   panel.NodeType
	RegisterID string
}

// ResultFunc is an optional callback invoked after every heartbeat attempt.
type ResultFunc func(target Target, err error)

// Runner sends heartbeats for every target on a fixed interval and tracks
// consecutive failures per target.
type Runner struct {
	beater  Beater
	targets []Target
	limiter *rate.Limiter
	logger  *zap.Logger
	cfg     Config

	mu         sync.Mutex
	failCounts map[Target]int

	onResult ResultFunc
}

// New creates a Runner for the given targets.
func New(beater Beater, targets []Target, cfg Config, logger *zap.Logger) *Runner {
	if cfg.Interval == 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.BeatTimeout == 0 {
		cfg.BeatTimeout = 10 * time.Second
	}
	if cfg.FailThreshold == 0 {
		cfg.FailThreshold = 3
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	r := &Runner{
		beater:     beater,
		targets:    targets,
		logger:     logger,
		cfg:        cfg,
		failCounts: make(map[Target]int),
	}
	if cfg.RequestsPerSecond > 0 {
		r.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return r
}

// SetResultFunc configures the per-attempt callback.
func (r *Runner) SetResultFunc(fn ResultFunc) {
	r.onResult = fn
}

// Start runs the heartbeat loop until quit is signalled. One round fires
// immediately so a fresh registration is confirmed alive without waiting a
// full interval.
func (r *Runner) Start(quit <-chan os.Signal) {
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	r.beatRound()
	for {
		select {
		case <-ticker.C:
			r.beatRound()
		case <-quit:
			return
		}
	}
}

func (r *Runner) beatRound() {
	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.Interval)
	defer cancel()
	r.BeatAll(ctx)
}

// BeatAll sends one heartbeat per target, sequentially and paced by the
// configured limiter.
func (r *Runner) BeatAll(ctx context.Context) {
	for _, target := range r.targets {
		if r.limiter != nil {
			if err := r.limiter.Wait(ctx); err != nil {
				return
			}
		}

		beatCtx, cancel := context.WithTimeout(ctx, r.cfg.BeatTimeout)
		err := r.beater.Heartbeat(beatCtx, target.NodeType, target.RegisterID)
		cancel()

		if r.onResult != nil {
			r.onResult(target, err)
		}
		r.record(target, err)
	}
}

// record updates the failure count and logs threshold transitions.
func (r *Runner) record(target Target, err error) {
	r.mu.Lock()
	prev := r.failCounts[target]
	if err == nil {
		r.failCounts[target] = 0
	} else {
		r.failCounts[target]++
	}
	count := r.failCounts[target]
	r.mu.Unlock()

	switch {
	case err == nil && prev >= r.cfg.FailThreshold:
		r.logger.Info("heartbeat recovered",
			zap.String("node_type", string(target.NodeType)),
			zap.String("register_id", target.RegisterID),
		)
	case err != nil && count == r.cfg.FailThreshold:
		r.logger.Warn("heartbeat failing",
			zap.String("node_type", string(target.NodeType)),
			zap.String("register_id", target.RegisterID),
			zap.Int("fail_count", count),
			zap.Error(err),
		)
	case err != nil:
		r.logger.Debug("heartbeat failed",
			zap.String("node_type", string(target.NodeType)),
			zap.String("register_id", target.RegisterID),
			zap.Error(err),
		)
	}
}

// FailCount returns the consecutive failures recorded for target.
func (r *Runner) FailCount(target Target) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.failCounts[target]
}
