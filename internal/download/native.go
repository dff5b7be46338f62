package download

import (
	"context"
	"fmt"

	"github.com/nvm/fraktgo/internal/healthpoll"
)

// NativeJob is implemented by a platform-specific background task handle
// (Apple NSURLSessionDownloadTask, Android DownloadManager request) that
// the engine adapter creates before handing it to RunNative.
type NativeJob interface {
	// Poll queries the OS-managed job's current status, per section 4.6(a).
	Poll(ctx context.Context) (healthpoll.Result, error)
}

// RunNative drives the native OS-managed download lifecycle of section
// 4.6(a): the adapter has already created the background task; this polls
// it every ~500ms via the shared healthpoll.Poller until a terminal state,
// translating the terminal healthpoll.Status into a Result or error.
func RunNative(ctx context.Context, poller *healthpoll.Poller, sessionID, destination string, job NativeJob, progress func(transferred uint64, total *uint64)) (Result, error) {
	done := make(chan struct {
		res healthpoll.Result
	}, 1)

	poller.Register(sessionID,
		func(pctx context.Context) (healthpoll.Result, error) { return job.Poll(pctx) },
		func(bytesSoFar, total int64) {
			if progress == nil {
				return
			}
			var totalPtr *uint64
			if total > 0 {
				t := uint64(total)
				totalPtr = &t
			}
			progress(uint64(bytesSoFar), totalPtr)
		},
		func(_ string, result healthpoll.Result) {
			done <- struct {
				res healthpoll.Result
			}{res: result}
		},
	)

	select {
	case <-ctx.Done():
		poller.Unregister(sessionID)
		return Result{}, ctx.Err()
	case d := <-done:
		switch d.res.Status {
		case healthpoll.StatusSuccessful:
			return Result{Path: destination, Bytes: d.res.BytesSoFar}, nil
		case healthpoll.StatusCancelled:
			return Result{Bytes: d.res.BytesSoFar}, context.Canceled
		default:
			if d.res.Err != nil {
				return Result{Bytes: d.res.BytesSoFar}, d.res.Err
			}
			return Result{Bytes: d.res.BytesSoFar}, fmt.Errorf("native download job failed")
		}
	}
}
