package runner

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"unitlens/pkg/metrics"
)

// DefaultWaitDelay bounds how long Wait keeps reading inherited pipes after a
// cancelled child has been killed.
const DefaultWaitDelay = 5 * time.Second

// ExecRunner runs invocations directly with os/exec. Arguments are never
// interpreted by a shell.
type ExecRunner struct {
	// Timeout caps each run. Zero means no timeout.
	Timeout time.Duration
	// WaitDelay defaults to DefaultWaitDelay.
	WaitDelay time.Duration

	log *zap.Logger
}

// NewExecRunner creates a runner. A nil logger disables logging.
func NewExecRunner(log *zap.Logger, timeout time.Duration) *ExecRunner {
	if log == nil {
		log = zap.NewNop()
	}
	return &ExecRunner{
		Timeout:   timeout,
		WaitDelay: DefaultWaitDelay,
		log:       log,
	}
}

// Run spawns inv.Program with inv.Args, captures stdout and stderr through a
// single pipe, waits for exit and classifies the result.
func (r *ExecRunner) Run(ctx context.Context, inv Invocation) (string, error) {
	inv = inv.clone()
	if inv.Program == "" {
		return "", &IOError{Op: OpSpawn, Err: ErrEmptyProgram}
	}

	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	program := filepath.Base(inv.Program)
	ctx, span := otel.Tracer("unitlens/runner").Start(ctx, "runner.Run",
		trace.WithAttributes(
			attribute.String("process.executable.name", program),
			attribute.Int("process.args_count", len(inv.Args)),
		),
	)
	defer span.End()

	start := time.Now()
	out, err := r.run(ctx, inv)
	duration := time.Since(start)

	outcome := metrics.OutcomeSuccess
	switch KindOf(err) {
	case KindCommand:
		outcome = metrics.OutcomeCommandFailure
	case KindIO, KindUnknown:
		if IsCanceled(err) {
			outcome = metrics.OutcomeCanceled
		} else if err != nil {
			outcome = metrics.OutcomeIOFailure
		}
	}
	metrics.RecordCommand(program, outcome, duration.Seconds(), len(out))

	fields := []zap.Field{
		zap.String("command", inv.String()),
		zap.String("outcome", outcome),
		zap.Duration("duration", duration),
		zap.Int("output_bytes", len(out)),
	}
	var cmdErr *CommandError
	switch {
	case err == nil:
		r.log.Debug("command finished", fields...)
	case errors.As(err, &cmdErr):
		span.SetAttributes(attribute.String("process.exit.status", cmdErr.Status()))
		r.log.Debug("command failed", append(fields, zap.String("status", cmdErr.Status()))...)
	case IsCanceled(err):
		r.log.Debug("command canceled", fields...)
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.log.Warn("command could not be run", append(fields, zap.Error(err))...)
	}

	return out, err
}

func (r *ExecRunner) run(ctx context.Context, inv Invocation) (string, error) {
	cmd := exec.CommandContext(ctx, inv.Program, inv.Args...)
	cmd.Dir = inv.Dir
	if len(inv.Env) > 0 {
		cmd.Env = append(os.Environ(), inv.Env...)
	}

	// One writer for both streams: os/exec gives the child a single pipe, so
	// stdout and stderr interleave as the kernel delivers them.
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	// Own process group so cancellation reaches grandchildren too.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		err := unix.Kill(-cmd.Process.Pid, unix.SIGKILL)
		if errors.Is(err, unix.ESRCH) {
			return os.ErrProcessDone
		}
		return err
	}
	cmd.WaitDelay = r.WaitDelay
	if cmd.WaitDelay <= 0 {
		cmd.WaitDelay = DefaultWaitDelay
	}

	if err := cmd.Start(); err != nil {
		return "", &IOError{Op: OpSpawn, Program: inv.Program, Err: err}
	}

	metrics.CommandsRunning.Inc()
	waitErr := cmd.Wait()
	metrics.CommandsRunning.Dec()

	if waitErr != nil && ctx.Err() != nil {
		op := OpTimeout
		if errors.Is(ctx.Err(), context.Canceled) {
			op = OpCanceled
		}
		return "", &IOError{Op: op, Program: inv.Program, Err: ctx.Err()}
	}

	raw := buf.Bytes()
	if !utf8.Valid(raw) {
		return "", &IOError{Op: OpDecode, Program: inv.Program, Err: ErrInvalidUTF8}
	}
	out := string(raw)

	if waitErr == nil {
		return out, nil
	}

	var exitErr *exec.ExitError
	if !errors.As(waitErr, &exitErr) {
		// Pipe copy failures and WaitDelay expiry land here.
		return "", &IOError{Op: OpWait, Program: inv.Program, Err: waitErr}
	}

	cmdErr := &CommandError{
		Program:  inv.Program,
		Args:     inv.Args,
		ExitCode: exitErr.ExitCode(),
		Output:   out,
	}
	if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		cmdErr.ExitCode = -1
		cmdErr.Signal = unix.SignalName(ws.Signal())
		if cmdErr.Signal == "" {
			cmdErr.Signal = ws.Signal().String()
		}
	}
	return out, cmdErr
}
