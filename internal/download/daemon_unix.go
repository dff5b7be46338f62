//go:build unix

package download

import (
	"context"
	"net/http"
	"os"
	"os/exec"
	"strconv"
	"syscall"
	"time"
)

// daemonEnvSessionID names the environment variable the re-executed child
// reads its session ID from, since the detached process inherits no
// stdin/stdout/stderr to receive it on.
const daemonEnvSessionID = "FRAKTGO_DAEMON_SESSION_ID"
const daemonEnvURL = "FRAKTGO_DAEMON_URL"
const daemonEnvDestination = "FRAKTGO_DAEMON_DESTINATION"
const daemonEnvStateDir = "FRAKTGO_DAEMON_STATE_DIR"
const daemonEnvRateLimit = "FRAKTGO_DAEMON_RATE_LIMIT"

// RunDetached implements section 4.6(c): it starts one child process in a
// new session (setsid) with stdio redirected to /dev/null and runs the
// resumable flow there. The child is forked once, not twice. The parent
// monitors the state file until a terminal status appears.
//
// selfExe is the path to this program's own binary, re-invoked with
// -fraktgo-daemon-worker so the detached process re-enters this same Go
// binary instead of needing a separate helper executable.
func RunDetached(ctx context.Context, selfExe string, opts ResumableOptions) (Result, error) {
	if err := os.MkdirAll(opts.StateDir, 0755); err != nil {
		return Result{}, err
	}
	statePath := StatePath(opts.StateDir, opts.SessionID)
	_ = WriteState(statePath, State{Status: StatusDownloading, LastUpdate: time.Now()})

	devNull, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		return Result{}, err
	}
	defer devNull.Close()

	cmd := exec.Command(selfExe, "-fraktgo-daemon-worker")
	cmd.Env = append(os.Environ(),
		daemonEnvSessionID+"="+opts.SessionID,
		daemonEnvURL+"="+opts.URL,
		daemonEnvDestination+"="+opts.Destination,
		daemonEnvStateDir+"="+opts.StateDir,
		daemonEnvRateLimit+"="+strconv.FormatInt(opts.RateLimit, 10),
	)
	cmd.Stdin = devNull
	cmd.Stdout = devNull
	cmd.Stderr = devNull
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		return Result{}, err
	}
	// The detached child outlives this call; we don't Wait() on it, which
	// is what makes it a daemon rather than a subprocess we babysit.
	go func() { _ = cmd.Process.Release() }()

	return monitorStateFile(ctx, statePath, opts.Destination)
}

// RunDaemonWorker is the entry point a re-executed binary calls when
// started with -fraktgo-daemon-worker: it reads its download parameters
// from the environment (set by RunDetached) and runs the resumable flow
// in this now-detached process.
func RunDaemonWorker(ctx context.Context) error {
	rateLimit, _ := strconv.ParseInt(os.Getenv(daemonEnvRateLimit), 10, 64)
	opts := ResumableOptions{
		Client:      http.DefaultClient,
		URL:         os.Getenv(daemonEnvURL),
		Destination: os.Getenv(daemonEnvDestination),
		StateDir:    os.Getenv(daemonEnvStateDir),
		SessionID:   os.Getenv(daemonEnvSessionID),
		RateLimit:   rateLimit,
	}
	_, err := Run(ctx, opts)
	return err
}

func monitorStateFile(ctx context.Context, statePath, destination string) (Result, error) {
	ticker := time.NewTicker(stateWriteInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		case <-ticker.C:
			s, err := ReadState(statePath)
			if err != nil {
				continue
			}
			switch s.Status {
			case StatusCompleted:
				return Result{Path: destination, Bytes: s.BytesDownloaded}, nil
			case StatusFailed:
				return Result{Bytes: s.BytesDownloaded}, wrapIO("detached download", errString(s.Error))
			}
		}
	}
}

type stringError string

func (e stringError) Error() string { return string(e) }

func errString(s string) error {
	if s == "" {
		s = "unknown daemon failure"
	}
	return stringError(s)
}
