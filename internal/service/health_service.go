package service

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Pinger is anything that can verify its connection, such as *sqlx.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

// PingContext implements Pinger.
func (f PingFunc) PingContext(ctx context.Context) error { return f(ctx) }

// DependencyStatus is the probe result for one backing service.
type DependencyStatus struct {
	Name      string `json:"name"`
	Healthy   bool   `json:"healthy"`
	LatencyMS int64  `json:"latencyMs"`
	Error     string `json:"error,omitempty"`
}

// ProbeResult aggregates dependency checks for the readiness endpoint.
type ProbeResult struct {
	Ready        bool               `json:"ready"`
	Dependencies []DependencyStatus `json:"dependencies"`
	ObservedAt   time.Time          `json:"observedAt"`
}

// HealthService probes the record store and cache.
type HealthService struct {
	targets []namedPinger
	timeout time.Duration
	logger  *zap.Logger
}

type namedPinger struct {
	name   string
	pinger Pinger
}

// NewHealthService constructs the service. A nil pinger is skipped.
func NewHealthService(db Pinger, redis Pinger, timeout time.Duration, logger *zap.Logger) *HealthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	svc := &HealthService{timeout: timeout, logger: logger}
	if db != nil {
		svc.targets = append(svc.targets, namedPinger{name: "postgres", pinger: db})
	}
	if redis != nil {
		svc.targets = append(svc.targets, namedPinger{name: "redis", pinger: redis})
	}
	return svc
}

// Probe pings every dependency concurrently.
func (s *HealthService) Probe(ctx context.Context) ProbeResult {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	statuses := make([]DependencyStatus, len(s.targets))
	group, groupCtx := errgroup.WithContext(ctx)
	for i, target := range s.targets {
		i, target := i, target
		group.Go(func() error {
			start := time.Now()
			err := target.pinger.PingContext(groupCtx)
			statuses[i] = DependencyStatus{
				Name:      target.name,
				Healthy:   err == nil,
				LatencyMS: time.Since(start).Milliseconds(),
			}
			if err != nil {
				statuses[i].Error = err.Error()
				s.logger.Warn("dependency probe failed", zap.String("dependency", target.name), zap.Error(err))
			}
			return nil
		})
	}
	_ = group.Wait()

	result := ProbeResult{Ready: true, Dependencies: statuses, ObservedAt: time.Now().UTC()}
	for _, status := range statuses {
		if !status.Healthy {
			result.Ready = false
		}
	}
	return result
}
