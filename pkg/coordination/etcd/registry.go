package etcd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"go.etcd.io/etcd/api/v3/v3rpc/rpctypes"
	clientv3 "go.etcd.io/etcd/client/v3"

	"unitlens/pkg/coordination"
)

// DefaultPrefix is the key prefix agents are stored under.
const DefaultPrefix = "/unitlens/agents/"

// EtcdRegistry stores one leased key per agent. The lease is reused across
// announcements and re-granted when etcd has forgotten it.
type EtcdRegistry struct {
	client *clientv3.Client
	prefix string

	mu     sync.Mutex
	leases map[string]clientv3.LeaseID
}

// NewEtcdRegistry connects to etcd.
func NewEtcdRegistry(endpoints []string, dialTimeout time.Duration) (*EtcdRegistry, error) {
	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: dialTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to etcd: %w", err)
	}
	return NewEtcdRegistryFromClient(cli, DefaultPrefix), nil
}

// NewEtcdRegistryFromClient wraps an existing client.
func NewEtcdRegistryFromClient(cli *clientv3.Client, prefix string) *EtcdRegistry {
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &EtcdRegistry{
		client: cli,
		prefix: prefix,
		leases: make(map[string]clientv3.LeaseID),
	}
}

// Ping checks that an etcd member answers.
func (r *EtcdRegistry) Ping(ctx context.Context) error {
	_, err := r.client.Get(ctx, r.prefix, clientv3.WithPrefix(), clientv3.WithCountOnly())
	if err != nil {
		return fmt.Errorf("etcd unreachable: %w", err)
	}
	return nil
}

func (r *EtcdRegistry) keyFor(id string) string {
	return r.prefix + id
}

// Announce refreshes the agent's lease and rewrites its entry.
func (r *EtcdRegistry) Announce(ctx context.Context, agent coordination.Agent, ttl time.Duration) error {
	if agent.ID == "" {
		return errors.New("agent id is required")
	}
	if ttl < time.Second {
		return coordination.ErrInvalidTTL
	}

	leaseID, err := r.lease(ctx, agent.ID, ttl)
	if err != nil {
		return err
	}

	value, err := json.Marshal(agent)
	if err != nil {
		return fmt.Errorf("failed to encode agent: %w", err)
	}

	if _, err := r.client.Put(ctx, r.keyFor(agent.ID), string(value), clientv3.WithLease(leaseID)); err != nil {
		return fmt.Errorf("failed to put agent key: %w", err)
	}
	return nil
}

// lease returns a live lease for id, granting a new one if needed.
func (r *EtcdRegistry) lease(ctx context.Context, id string, ttl time.Duration) (clientv3.LeaseID, error) {
	r.mu.Lock()
	leaseID, ok := r.leases[id]
	r.mu.Unlock()

	if ok {
		_, err := r.client.KeepAliveOnce(ctx, leaseID)
		if err == nil {
			return leaseID, nil
		}
		if !errors.Is(err, rpctypes.ErrLeaseNotFound) {
			return 0, fmt.Errorf("failed to refresh lease: %w", err)
		}
	}

	resp, err := r.client.Grant(ctx, int64(math.Ceil(ttl.Seconds())))
	if err != nil {
		return 0, fmt.Errorf("failed to grant lease: %w", err)
	}

	r.mu.Lock()
	r.leases[id] = resp.ID
	r.mu.Unlock()
	return resp.ID, nil
}

// Withdraw revokes the agent's lease, which deletes its key.
func (r *EtcdRegistry) Withdraw(ctx context.Context, id string) error {
	r.mu.Lock()
	leaseID, ok := r.leases[id]
	delete(r.leases, id)
	r.mu.Unlock()

	if ok {
		if _, err := r.client.Revoke(ctx, leaseID); err != nil && !errors.Is(err, rpctypes.ErrLeaseNotFound) {
			return fmt.Errorf("failed to revoke lease: %w", err)
		}
		return nil
	}

	if _, err := r.client.Delete(ctx, r.keyFor(id)); err != nil {
		return fmt.Errorf("failed to delete agent key: %w", err)
	}
	return nil
}

// ListAgents returns every agent under the prefix.
func (r *EtcdRegistry) ListAgents(ctx context.Context) ([]coordination.Agent, error) {
	resp, err := r.client.Get(ctx, r.prefix, clientv3.WithPrefix())
	if err != nil {
		return nil, fmt.Errorf("failed to list agents: %w", err)
	}

	agents := make([]coordination.Agent, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		agent, err := decodeAgent(r.prefix, kv.Key, kv.Value)
		if err != nil {
			continue
		}
		agents = append(agents, agent)
	}
	sort.Slice(agents, func(i, j int) bool { return agents[i].ID < agents[j].ID })
	return agents, nil
}

// decodeAgent parses an entry. The key is authoritative for the ID.
func decodeAgent(prefix string, key, value []byte) (coordination.Agent, error) {
	var agent coordination.Agent
	id := strings.TrimPrefix(string(key), prefix)
	if id == "" || strings.Contains(id, "/") {
		return agent, fmt.Errorf("unexpected agent key %q", key)
	}
	if err := json.Unmarshal(value, &agent); err != nil {
		return agent, fmt.Errorf("malformed agent entry %q: %w", key, err)
	}
	agent.ID = id
	return agent, nil
}

// Close terminates the etcd client.
func (r *EtcdRegistry) Close() error {
	return r.client.Close()
}
