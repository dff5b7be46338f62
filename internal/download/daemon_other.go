//go:build !unix

package download

import "context"

// RunDetached is unavailable on non-Unix platforms (no fork/setsid); the
// portable engine falls back to the in-process resumable flow (section
// 4.6(b), "Resumable (portable, non-Unix)") instead of calling this.
func RunDetached(ctx context.Context, selfExe string, opts ResumableOptions) (Result, error) {
	return Run(ctx, opts)
}

// RunDaemonWorker has no detached-process entry point to serve on
// non-Unix platforms.
func RunDaemonWorker(ctx context.Context) error {
	return nil
}
