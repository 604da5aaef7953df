package iterator

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vigneswara-propelo/harness-core-sub203/pkg/logger"
)

// DefaultMaintenanceKey is the Redis key holding the cluster-wide maintenance flag.
const DefaultMaintenanceKey = "iterator:maintenance"

// MaintenanceSync mirrors a Redis key into a local Maintenance switch so that every process of
// a deployment pauses together. A missing key means running.
type MaintenanceSync struct {
	client   redis.Cmdable
	key      string
	interval time.Duration
	target   *Maintenance
	logger   *slog.Logger
}

// NewMaintenanceSync creates a sync polling key every interval.
func NewMaintenanceSync(client redis.Cmdable, key string, interval time.Duration, target *Maintenance, log *slog.Logger) *MaintenanceSync {
	if key == "" {
		key = DefaultMaintenanceKey
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &MaintenanceSync{
		client:   client,
		key:      key,
		interval: interval,
		target:   target,
		logger:   log.With(logger.Component("maintenance")),
	}
}

// Set writes the cluster-wide flag and applies it locally.
func (s *MaintenanceSync) Set(ctx context.Context, paused bool) error {
	if err := s.client.Set(ctx, s.key, strconv.FormatBool(paused), 0).Err(); err != nil {
		return err
	}
	s.apply(paused)
	return nil
}

// Paused reports the locally applied state.
func (s *MaintenanceSync) Paused() bool { return s.target.Paused() }

// Poll reads the flag once and applies it.
func (s *MaintenanceSync) Poll(ctx context.Context) error {
	val, err := s.client.Get(ctx, s.key).Result()
	if errors.Is(err, redis.Nil) {
		s.apply(false)
		return nil
	}
	if err != nil {
		return err
	}
	paused, err := strconv.ParseBool(val)
	if err != nil {
		s.logger.Warn("ignoring malformed maintenance flag", slog.String("value", val))
		return nil
	}
	s.apply(paused)
	return nil
}

// Run polls until ctx is cancelled. Read failures keep the last known state.
func (s *MaintenanceSync) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if err := s.Poll(ctx); err != nil && ctx.Err() == nil {
			s.logger.Warn("failed to read maintenance flag", logger.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *MaintenanceSync) apply(paused bool) {
	if s.target.Set(paused) {
		s.logger.Info("maintenance flag changed", slog.Bool("paused", paused))
	}
}
