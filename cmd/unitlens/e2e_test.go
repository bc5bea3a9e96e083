package main

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"unitlens/pkg/testutil"
)

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return port
}

func httpGet(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

// TestServe_EndToEnd runs `unitlens serve` against stub tools, exercises
// every route, then shuts it down through context cancellation.
func TestServe_EndToEnd(t *testing.T) {
	port := freePort(t)
	t.Setenv("API_PORT", strconv.Itoa(port))
	t.Setenv("LOG_OUTPUT", filepath.Join(t.TempDir(), "serve.log"))
	t.Setenv("NOTIFY_SOCKET", "")
	t.Setenv("SYSTEMCTL_PATH", testutil.WriteStub(t, "systemctl", `
if [ "$1" = "status" ]; then
  echo "● $2"
  echo "   Active: failed" >&2
  exit 3
fi
echo "UNIT LOAD ACTIVE SUB"
echo "sshd.service loaded active running"`))
	t.Setenv("JOURNALCTL_PATH", testutil.WriteStub(t, "journalctl", testutil.ArgsEchoStub))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		root := newRootCmd()
		root.SetArgs([]string{"serve"})
		done <- root.ExecuteContext(ctx)
	}()

	base := "http://127.0.0.1:" + strconv.Itoa(port)
	require.Eventually(t, func() bool {
		resp, err := http.Get(base + "/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 50*time.Millisecond, "server never became healthy")

	code, body := httpGet(t, base+"/summary")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "sshd.service loaded active running")

	code, body = httpGet(t, base+"/status/sshd.service")
	assert.Equal(t, http.StatusBadGateway, code)
	assert.Equal(t, "● sshd.service\n   Active: failed\n", body)

	code, body = httpGet(t, base+"/logs/sshd.service?since=today")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "5\n[--no-pager]\n[--unit]\n[sshd.service]\n[--since]\n[today]\n", body)

	code, body = httpGet(t, base+"/health")
	assert.Equal(t, http.StatusOK, code)
	var health map[string]any
	require.NoError(t, json.Unmarshal([]byte(body), &health))
	assert.Equal(t, "healthy", health["status"])
	assert.Contains(t, health, "host")

	code, body = httpGet(t, base+"/metrics")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `unitlens_commands_total{outcome="command_failure",program="systemctl"}`)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("serve did not shut down")
	}
}
