package janitor

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/talking-avatar/domain/repositories"
)

const (
	defaultInterval = 10 * time.Minute
	defaultTTL      = 30 * time.Minute
	sweepTimeout    = time.Minute
)

// Config controls how often abandoned artifacts are swept
type Config struct {
	Interval time.Duration
	// TTL is how long a namespace may live before it counts as abandoned
	TTL time.Duration
}

// ArtifactCleanupService removes request namespaces left behind by crashed or
// cancelled requests
type ArtifactCleanupService struct {
	sweeper  repositories.ArtifactSweeper
	interval time.Duration
	ttl      time.Duration
	now      func() time.Time
	logger   *zap.Logger

	stopChan chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewArtifactCleanupService creates a new artifact cleanup service
func NewArtifactCleanupService(sweeper repositories.ArtifactSweeper, config Config, logger *zap.Logger) *ArtifactCleanupService {
	if config.Interval <= 0 {
		config.Interval = defaultInterval
		logger.Info("Using default sweep interval", zap.Duration("interval", config.Interval))
	}
	if config.TTL <= 0 {
		config.TTL = defaultTTL
		logger.Info("Using default artifact TTL", zap.Duration("ttl", config.TTL))
	}

	return &ArtifactCleanupService{
		sweeper:  sweeper,
		interval: config.Interval,
		ttl:      config.TTL,
		now:      time.Now,
		logger:   logger,
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start begins the background cleanup process
func (s *ArtifactCleanupService) Start() {
	go s.cleanupLoop()
	s.logger.Info("Artifact cleanup service started",
		zap.Duration("interval", s.interval),
		zap.Duration("ttl", s.ttl))
}

// Stop gracefully stops the cleanup service and waits for a running sweep
func (s *ArtifactCleanupService) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
		<-s.done
		s.logger.Info("Artifact cleanup service stopped")
	})
}

// cleanupLoop runs the cleanup process periodically
func (s *ArtifactCleanupService) cleanupLoop() {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// leftovers from a previous run go first
	s.RunCleanup()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.RunCleanup()
		}
	}
}

// RunCleanup performs a single sweep and reports how many namespaces went
func (s *ArtifactCleanupService) RunCleanup() int {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	removed, err := s.sweeper.Sweep(ctx, s.now().Add(-s.ttl))
	if err != nil {
		s.logger.Error("Failed to sweep artifacts", zap.Int("removed", removed), zap.Error(err))
		return removed
	}

	if removed > 0 {
		s.logger.Info("Swept abandoned artifacts", zap.Int("removed", removed))
	}
	return removed
}
