// Package agent announces a running unitlens instance to the registry.
package agent

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"unitlens/pkg/coordination"
	"unitlens/pkg/hostinfo"
	"unitlens/pkg/metrics"
	"unitlens/pkg/resilience"
)

const withdrawTimeout = 3 * time.Second

// Config holds agent settings.
type Config struct {
	ID       string // defaults to <hostname>-<8 hex>
	Address  string
	Version  string
	Interval time.Duration
	TTL      time.Duration
	Breaker  resilience.CircuitBreakerConfig
}

// Agent keeps this instance's registry entry alive.
type Agent struct {
	registry coordination.Registry
	breaker  *resilience.CircuitBreaker
	log      *zap.Logger
	interval time.Duration
	ttl      time.Duration
	hostInfo func(ctx context.Context) (*hostinfo.Info, error)

	mu   sync.Mutex
	self coordination.Agent
}

// New creates an agent. Interval must be shorter than TTL.
func New(cfg Config, registry coordination.Registry, log *zap.Logger) (*Agent, error) {
	if cfg.Interval <= 0 || cfg.TTL <= cfg.Interval {
		return nil, fmt.Errorf("heartbeat interval %s must be positive and shorter than ttl %s", cfg.Interval, cfg.TTL)
	}
	if log == nil {
		log = zap.NewNop()
	}

	id := cfg.ID
	if id == "" {
		hostname, _ := os.Hostname()
		id = fmt.Sprintf("%s-%s", hostname, uuid.New().String()[:8])
	}

	breakerCfg := cfg.Breaker
	if breakerCfg.FailureThreshold <= 0 {
		breakerCfg = resilience.DefaultCircuitBreakerConfig()
	}
	breakerCfg.OnStateChange = func(name string, from, to resilience.CircuitState) {
		metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
		log.Warn("registry circuit changed state",
			zap.String("breaker", name),
			zap.Stringer("from", from),
			zap.Stringer("to", to),
		)
	}

	return &Agent{
		registry: registry,
		breaker:  resilience.NewCircuitBreaker("registry", breakerCfg),
		log:      log.With(zap.String("agent_id", id)),
		interval: cfg.Interval,
		ttl:      cfg.TTL,
		hostInfo: hostinfo.Collect,
		self: coordination.Agent{
			ID:        id,
			Address:   cfg.Address,
			Version:   cfg.Version,
			StartedAt: time.Now().UTC(),
		},
	}, nil
}

// ID returns the registry ID of this agent.
func (a *Agent) ID() string {
	return a.self.ID
}

// Run announces immediately and then every interval until ctx is done,
// after which the entry is withdrawn.
func (a *Agent) Run(ctx context.Context) {
	a.log.Info("agent starting", zap.Duration("interval", a.interval), zap.Duration("ttl", a.ttl))

	if err := a.Heartbeat(ctx); err != nil {
		a.log.Warn("heartbeat failed", zap.Error(err))
	}

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.withdraw()
			return
		case <-ticker.C:
			if err := a.Heartbeat(ctx); err != nil && ctx.Err() == nil {
				a.log.Warn("heartbeat failed", zap.Error(err))
			}
		}
	}
}

// Heartbeat refreshes host facts and announces once.
func (a *Agent) Heartbeat(ctx context.Context) error {
	snapshot := a.refresh(ctx)

	err := a.breaker.Execute(ctx, func(ctx context.Context) error {
		return a.registry.Announce(ctx, snapshot, a.ttl)
	})
	if err != nil {
		metrics.HeartbeatFailures.Inc()
		return fmt.Errorf("failed to announce agent: %w", err)
	}

	metrics.HeartbeatsSent.Inc()
	a.log.Debug("heartbeat sent")
	return nil
}

func (a *Agent) refresh(ctx context.Context) coordination.Agent {
	info, err := a.hostInfo(ctx)
	if err != nil {
		a.log.Debug("host info unavailable", zap.Error(err))
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if info != nil {
		a.self.Host = info
	}
	a.self.LastHeartbeat = time.Now().UTC()
	return a.self
}

func (a *Agent) withdraw() {
	ctx, cancel := context.WithTimeout(context.Background(), withdrawTimeout)
	defer cancel()
	if err := a.registry.Withdraw(ctx, a.self.ID); err != nil {
		a.log.Warn("failed to withdraw agent", zap.Error(err))
		return
	}
	a.log.Info("agent withdrawn")
}
