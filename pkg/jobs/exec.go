package jobs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// maxCapture bounds the stdout/stderr kept per stage.
const maxCapture = 1 << 20

// ExecExecutor runs stages as OS processes.
type ExecExecutor struct {
	// WaitDelay bounds how long to wait for output pipes after the process
	// is killed on cancellation.
	WaitDelay time.Duration
}

// Run implements Executor. A context deadline is reported as a timeout.
func (e ExecExecutor) Run(ctx context.Context, st Stage) (string, string, error) {
	cmd := exec.CommandContext(ctx, st.Command, st.Args...)
	cmd.Dir = st.Dir
	if len(st.Env) > 0 {
		cmd.Env = append(os.Environ(), st.Env...)
	}
	cmd.WaitDelay = e.WaitDelay
	if cmd.WaitDelay == 0 {
		cmd.WaitDelay = 5 * time.Second
	}

	var stdout, stderr limitedBuffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	switch {
	case err == nil:
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		err = fmt.Errorf("%s timed out after %s", st.Name, st.Timeout)
	case ctx.Err() != nil:
		err = fmt.Errorf("%s canceled: %w", st.Name, ctx.Err())
	default:
		if tail := lastLine(stderr.String()); tail != "" {
			err = fmt.Errorf("%s failed: %w: %s", st.Name, err, tail)
		} else {
			err = fmt.Errorf("%s failed: %w", st.Name, err)
		}
	}
	return stdout.String(), stderr.String(), err
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[i+1:])
	}
	return s
}

// limitedBuffer keeps the first maxCapture bytes and discards the rest.
type limitedBuffer struct {
	buf bytes.Buffer
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	if room := maxCapture - b.buf.Len(); room > 0 {
		if len(p) > room {
			b.buf.Write(p[:room])
		} else {
			b.buf.Write(p)
		}
	}
	return len(p), nil
}

func (b *limitedBuffer) String() string { return b.buf.String() }
