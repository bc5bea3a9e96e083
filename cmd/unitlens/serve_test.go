package main

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"unitlens/pkg/testutil"
)

// listenNotify binds a datagram socket standing in for the service manager
// and points NOTIFY_SOCKET at it.
func listenNotify(t *testing.T) *net.UnixConn {
	t.Helper()
	dir, err := os.MkdirTemp("", "ul-notify")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(dir) })

	path := filepath.Join(dir, "notify.sock")
	conn, err := net.ListenUnixgram("unixgram", &net.UnixAddr{Name: path, Net: "unixgram"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	t.Setenv("NOTIFY_SOCKET", path)
	return conn
}

func readNotify(conn *net.UnixConn, wait time.Duration) (string, error) {
	buf := make([]byte, 256)
	if err := conn.SetReadDeadline(time.Now().Add(wait)); err != nil {
		return "", err
	}
	n, err := conn.Read(buf)
	if err != nil {
		return "", err
	}
	return string(buf[:n]), nil
}

func serveEnv(t *testing.T, port int) {
	t.Helper()
	t.Setenv("API_PORT", strconv.Itoa(port))
	t.Setenv("LOG_OUTPUT", filepath.Join(t.TempDir(), "serve.log"))
	t.Setenv("SYSTEMCTL_PATH", testutil.WriteStub(t, "systemctl", "echo ok"))
	t.Setenv("JOURNALCTL_PATH", testutil.WriteStub(t, "journalctl", "echo ok"))
}

func TestServe_BindFailureSendsNoReady(t *testing.T) {
	notify := listenNotify(t)

	busy, err := net.Listen("tcp", ":0")
	require.NoError(t, err)
	defer busy.Close()
	serveEnv(t, busy.Addr().(*net.TCPAddr).Port)

	root := newRootCmd()
	root.SetArgs([]string{"serve"})
	err = root.ExecuteContext(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "address already in use")

	msg, err := readNotify(notify, 300*time.Millisecond)
	var netErr net.Error
	require.True(t, errors.As(err, &netErr) && netErr.Timeout(), "unexpected notification %q", msg)
}

func TestServe_ReadyAfterBindThenStopping(t *testing.T) {
	notify := listenNotify(t)
	port := freePort(t)
	serveEnv(t, port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() {
		root := newRootCmd()
		root.SetArgs([]string{"serve"})
		done <- root.ExecuteContext(ctx)
	}()

	msg, err := readNotify(notify, 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "READY=1", msg)

	// The port is already accepting when READY arrives.
	conn, err := net.DialTimeout("tcp", "127.0.0.1:"+strconv.Itoa(port), time.Second)
	require.NoError(t, err)
	_ = conn.Close()

	cancel()
	msg, err = readNotify(notify, 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "STOPPING=1", msg)

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("serve did not shut down")
	}
}
