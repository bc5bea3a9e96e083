package etcd

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	clientv3 "go.etcd.io/etcd/client/v3"

	"unitlens/pkg/coordination"
	"unitlens/pkg/hostinfo"
)

func TestDecodeAgent(t *testing.T) {
	agent, err := decodeAgent(DefaultPrefix,
		[]byte(DefaultPrefix+"node-1"),
		[]byte(`{"id":"spoofed","address":"10.0.0.1:8080","host":{"hostname":"node-1","os":"linux","cpus":2}}`))
	require.NoError(t, err)
	assert.Equal(t, "node-1", agent.ID)
	assert.Equal(t, "10.0.0.1:8080", agent.Address)
	require.NotNil(t, agent.Host)
	assert.Equal(t, 2, agent.Host.CPUs)

	_, err = decodeAgent(DefaultPrefix, []byte(DefaultPrefix+"a/b"), []byte(`{}`))
	assert.Error(t, err)

	_, err = decodeAgent(DefaultPrefix, []byte(DefaultPrefix+"node-2"), []byte(`not json`))
	assert.ErrorContains(t, err, "malformed agent entry")
}

func TestNewEtcdRegistryFromClient_NormalizesPrefix(t *testing.T) {
	r := NewEtcdRegistryFromClient(nil, "/custom")
	assert.Equal(t, "/custom/x", r.keyFor("x"))
}

func TestAnnounce_RejectsBadInput(t *testing.T) {
	r := NewEtcdRegistryFromClient(nil, DefaultPrefix)

	assert.ErrorContains(t, r.Announce(context.Background(), coordination.Agent{}, time.Minute), "agent id")
	assert.ErrorIs(t, r.Announce(context.Background(), coordination.Agent{ID: "a"}, 500*time.Millisecond), coordination.ErrInvalidTTL)
}

// The tests below need a live etcd; set TEST_ETCD_ENDPOINTS to run them.

func liveRegistry(t *testing.T) *EtcdRegistry {
	t.Helper()
	endpoints := os.Getenv("TEST_ETCD_ENDPOINTS")
	if endpoints == "" {
		t.Skip("TEST_ETCD_ENDPOINTS not set")
	}

	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   strings.Split(endpoints, ","),
		DialTimeout: 2 * time.Second,
	})
	require.NoError(t, err)

	prefix := "/unitlens-test/" + uuid.NewString() + "/"
	r := NewEtcdRegistryFromClient(cli, prefix)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := r.Ping(ctx); err != nil {
		_ = cli.Close()
		t.Skipf("etcd unavailable: %v", err)
	}

	t.Cleanup(func() {
		_, _ = cli.Delete(context.Background(), prefix, clientv3.WithPrefix())
		_ = r.Close()
	})
	return r
}

func TestLive_AnnounceListWithdraw(t *testing.T) {
	r := liveRegistry(t)
	ctx := context.Background()

	agent := coordination.Agent{
		ID:        "node-b",
		Address:   "10.0.0.2:8080",
		StartedAt: time.Now().UTC().Truncate(time.Second),
		Host:      &hostinfo.Info{Hostname: "b"},
	}
	require.NoError(t, r.Announce(ctx, agent, 10*time.Second))
	require.NoError(t, r.Announce(ctx, coordination.Agent{ID: "node-a"}, 10*time.Second))
	// Second announcement reuses the lease.
	require.NoError(t, r.Announce(ctx, agent, 10*time.Second))

	agents, err := r.ListAgents(ctx)
	require.NoError(t, err)
	require.Len(t, agents, 2)
	assert.Equal(t, "node-a", agents[0].ID)
	assert.Equal(t, "10.0.0.2:8080", agents[1].Address)

	require.NoError(t, r.Withdraw(ctx, "node-b"))
	agents, err = r.ListAgents(ctx)
	require.NoError(t, err)
	require.Len(t, agents, 1)
	assert.Equal(t, "node-a", agents[0].ID)
}

func TestLive_EntryExpiresWithLease(t *testing.T) {
	r := liveRegistry(t)
	ctx := context.Background()

	require.NoError(t, r.Announce(ctx, coordination.Agent{ID: "short"}, time.Second))
	assert.Eventually(t, func() bool {
		agents, err := r.ListAgents(ctx)
		return err == nil && len(agents) == 0
	}, 10*time.Second, 200*time.Millisecond)
}
