package runner

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeScript drops an executable /bin/sh script into a temp dir.
func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stub")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

func TestRun_Success(t *testing.T) {
	r := NewExecRunner(nil, 0)
	stub := writeScript(t, `printf 'unit-a loaded\nunit-b loaded\n'`)

	out, err := r.Run(context.Background(), Invocation{Program: stub})
	require.NoError(t, err)
	assert.Equal(t, "unit-a loaded\nunit-b loaded\n", out)
}

func TestRun_CombinesStdoutAndStderr(t *testing.T) {
	r := NewExecRunner(nil, 0)
	stub := writeScript(t, "echo to-stdout\necho to-stderr >&2")

	out, err := r.Run(context.Background(), Invocation{Program: stub})
	require.NoError(t, err)
	assert.Contains(t, out, "to-stdout\n")
	assert.Contains(t, out, "to-stderr\n")
}

func TestRun_NonZeroExit(t *testing.T) {
	r := NewExecRunner(nil, 0)
	stub := writeScript(t, "printf 'Unit nginx.service could not be found.'\nexit 3")

	out, err := r.Run(context.Background(), Invocation{Program: stub, Args: []string{"status", "nginx"}})
	require.Error(t, err)
	assert.Equal(t, KindCommand, KindOf(err))

	var cmdErr *CommandError
	require.True(t, errors.As(err, &cmdErr))
	assert.Equal(t, 3, cmdErr.ExitCode)
	assert.Empty(t, cmdErr.Signal)
	assert.Equal(t, "Unit nginx.service could not be found.", cmdErr.Output)
	assert.Equal(t, cmdErr.Output, out)
	assert.Equal(t, "3", cmdErr.Status())
	assert.Equal(t, []string{"status", "nginx"}, cmdErr.Args)
}

func TestRun_StderrOnlyFailureIsCaptured(t *testing.T) {
	r := NewExecRunner(nil, 0)
	stub := writeScript(t, "echo 'Failed to connect to bus' >&2\nexit 1")

	_, err := r.Run(context.Background(), Invocation{Program: stub})
	var cmdErr *CommandError
	require.True(t, errors.As(err, &cmdErr))
	assert.Equal(t, "Failed to connect to bus\n", cmdErr.Output)
}

func TestRun_Signaled(t *testing.T) {
	r := NewExecRunner(nil, 0)
	stub := writeScript(t, "echo dying\nkill -TERM $$")

	_, err := r.Run(context.Background(), Invocation{Program: stub})
	var cmdErr *CommandError
	require.True(t, errors.As(err, &cmdErr))
	assert.Equal(t, -1, cmdErr.ExitCode)
	assert.Equal(t, "SIGTERM", cmdErr.Signal)
	assert.Equal(t, "SIGTERM", cmdErr.Status())
	assert.Equal(t, "dying\n", cmdErr.Output)
}

func TestRun_BinaryNotFoundOnPath(t *testing.T) {
	r := NewExecRunner(nil, 0)

	_, err := r.Run(context.Background(), Invocation{Program: "nonexistent-binary-xyz-123"})
	require.Error(t, err)
	assert.Equal(t, KindIO, KindOf(err))
	assert.ErrorIs(t, err, exec.ErrNotFound)

	var ioErr *IOError
	require.True(t, errors.As(err, &ioErr))
	assert.Equal(t, OpSpawn, ioErr.Op)
	assert.Contains(t, err.Error(), "nonexistent-binary-xyz-123")
}

func TestRun_AbsolutePathMissing(t *testing.T) {
	r := NewExecRunner(nil, 0)
	missing := filepath.Join(t.TempDir(), "does-not-exist")

	_, err := r.Run(context.Background(), Invocation{Program: missing})
	assert.Equal(t, KindIO, KindOf(err))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestRun_PermissionDenied(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root bypasses execute permission checks")
	}
	r := NewExecRunner(nil, 0)
	path := filepath.Join(t.TempDir(), "not-executable")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\necho hi\n"), 0o644))

	_, err := r.Run(context.Background(), Invocation{Program: path})
	assert.Equal(t, KindIO, KindOf(err))
	assert.ErrorIs(t, err, os.ErrPermission)
}

func TestRun_EmptyProgram(t *testing.T) {
	r := NewExecRunner(nil, 0)

	_, err := r.Run(context.Background(), Invocation{})
	assert.Equal(t, KindIO, KindOf(err))
	assert.ErrorIs(t, err, ErrEmptyProgram)
}

func TestRun_InvalidUTF8IsDecodeError(t *testing.T) {
	r := NewExecRunner(nil, 0)
	stub := writeScript(t, `printf '\377\376'`)

	_, err := r.Run(context.Background(), Invocation{Program: stub})
	assert.Equal(t, KindIO, KindOf(err))
	assert.ErrorIs(t, err, ErrInvalidUTF8)

	var ioErr *IOError
	require.True(t, errors.As(err, &ioErr))
	assert.Equal(t, OpDecode, ioErr.Op)
}

func TestRun_Timeout(t *testing.T) {
	r := NewExecRunner(nil, 100*time.Millisecond)
	stub := writeScript(t, "sleep 5")

	start := time.Now()
	_, err := r.Run(context.Background(), Invocation{Program: stub})
	assert.Less(t, time.Since(start), 4*time.Second)
	assert.Equal(t, KindIO, KindOf(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	var ioErr *IOError
	require.True(t, errors.As(err, &ioErr))
	assert.Equal(t, OpTimeout, ioErr.Op)
	assert.False(t, IsCanceled(err))
}

func TestRun_CancelKillsProcessGroup(t *testing.T) {
	r := NewExecRunner(nil, 0)
	// The grandchild keeps the pipe open; killing only the direct child
	// would leave Wait blocked until WaitDelay.
	stub := writeScript(t, "sleep 30 &\nwait")

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := r.Run(ctx, Invocation{Program: stub})
	assert.Less(t, time.Since(start), DefaultWaitDelay)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRun_CallerCancelIsNotTimeout(t *testing.T) {
	r := NewExecRunner(nil, 0)
	stub := writeScript(t, "sleep 30")

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)

	_, err := r.Run(ctx, Invocation{Program: stub})
	assert.Equal(t, KindIO, KindOf(err))
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, IsCanceled(err))

	var ioErr *IOError
	require.True(t, errors.As(err, &ioErr))
	assert.Equal(t, OpCanceled, ioErr.Op)
}

func TestRun_ShellMetacharactersStayOpaque(t *testing.T) {
	r := NewExecRunner(nil, 0)
	dir := t.TempDir()
	marker := filepath.Join(dir, "pwned")
	stub := writeScript(t, `printf '%s\n' "$#"; for a in "$@"; do printf '[%s]\n' "$a"; done`)

	for _, unit := range []string{
		"; touch " + marker,
		"$(touch " + marker + ")",
		"`touch " + marker + "`",
		"x' && touch " + marker + " && echo '",
	} {
		out, err := r.Run(context.Background(), Invocation{Program: stub, Args: []string{"status", unit}})
		require.NoError(t, err)
		assert.Equal(t, "2\n[status]\n["+unit+"]\n", out)
	}

	_, err := os.Stat(marker)
	assert.True(t, os.IsNotExist(err), "metacharacters must not be executed")
}

func TestRun_IdenticalRequestsProduceIdenticalOutput(t *testing.T) {
	r := NewExecRunner(nil, 0)
	stub := writeScript(t, `echo "args: $*"`)
	inv := Invocation{Program: stub, Args: []string{"--no-pager", "--unit", "app"}}

	first, err := r.Run(context.Background(), inv)
	require.NoError(t, err)
	second, err := r.Run(context.Background(), inv)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestRun_DirAndEnv(t *testing.T) {
	r := NewExecRunner(nil, 0)
	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	stub := writeScript(t, `echo "$(pwd -P) $UNITLENS_TEST"`)

	out, err := r.Run(context.Background(), Invocation{Program: stub, Dir: dir, Env: []string{"UNITLENS_TEST=yes"}})
	require.NoError(t, err)
	assert.Equal(t, dir+" yes\n", out)
}

func TestInvocation_String(t *testing.T) {
	inv := Invocation{Program: "journalctl", Args: []string{"--unit", "my app", "--since", ""}}
	assert.Equal(t, `journalctl --unit "my app" --since ""`, inv.String())
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindUnknown, KindOf(nil))
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))
	assert.Equal(t, KindIO, KindOf(&IOError{Op: OpSpawn, Err: os.ErrNotExist}))
	assert.Equal(t, KindCommand, KindOf(&CommandError{ExitCode: 1}))
	assert.Equal(t, "command", KindCommand.String())
}
