package coordination

import (
	"context"
	"errors"
	"time"

	"unitlens/pkg/hostinfo"
)

// ErrInvalidTTL is returned for announcements with a TTL under one second.
var ErrInvalidTTL = errors.New("ttl must be at least one second")

// Agent describes one running unitlens instance.
type Agent struct {
	ID            string         `json:"id"`
	Address       string         `json:"address,omitempty"`
	Version       string         `json:"version,omitempty"`
	StartedAt     time.Time      `json:"started_at"`
	LastHeartbeat time.Time      `json:"last_heartbeat"`
	Host          *hostinfo.Info `json:"host,omitempty"`
}

// Registry tracks live agents. Entries disappear when their owner stops
// announcing for longer than the TTL.
type Registry interface {
	// Announce creates or refreshes the agent's entry.
	Announce(ctx context.Context, agent Agent, ttl time.Duration) error

	// Withdraw removes the agent's entry immediately.
	Withdraw(ctx context.Context, id string) error

	// ListAgents returns every live agent, ordered by ID.
	ListAgents(ctx context.Context) ([]Agent, error)

	// Close terminates the registry connection.
	Close() error
}
