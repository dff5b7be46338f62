package download

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/mxk/go-flowrate/flowrate"

	frakt "github.com/nvm/fraktgo"
	"github.com/nvm/fraktgo/internal/retry"
)

// stateWriteInterval caps state-file updates at 2 Hz during streaming,
// per SPEC_FULL.md section 4.6.
const stateWriteInterval = 500 * time.Millisecond

// Result is what a resumable (or native) download attempt produces.
type Result struct {
	Path  string
	Bytes int64
}

// ResumableOptions configures Run.
type ResumableOptions struct {
	Client      *http.Client
	URL         string
	Destination string
	StateDir    string
	SessionID   string
	Headers     *frakt.Header
	Progress    func(transferred uint64, total *uint64)
	// RateLimit caps the download at this many bytes per second; zero
	// means unlimited.
	RateLimit int64
}

// Run executes the resumable download flow of SPEC_FULL.md section 4.6(b):
// append to an existing partial destination via a Range request, retrying
// with exponential backoff (base 2s, max 5 attempts total) on connect/read
// failures, and maintaining a state file throughout.
func Run(ctx context.Context, opts ResumableOptions) (Result, error) {
	statePath := StatePath(opts.StateDir, opts.SessionID)
	if err := os.MkdirAll(opts.StateDir, 0755); err != nil {
		return Result{}, wrapIO("create state dir", err)
	}

	var result Result
	attempt := func() error {
		r, err := attemptOnce(ctx, opts, statePath)
		if err != nil {
			return err
		}
		result = r
		return nil
	}

	err := retry.RunResumable(ctx, attempt, func(err error, wait time.Duration) {
		_ = WriteState(statePath, State{Status: StatusDownloading, BytesDownloaded: result.Bytes, LastUpdate: time.Now(), Error: err.Error()})
	})
	if err != nil {
		_ = WriteState(statePath, State{Status: StatusFailed, BytesDownloaded: result.Bytes, LastUpdate: time.Now(), Error: err.Error()})
		return result, wrapNetwork(err)
	}

	_ = WriteState(statePath, State{Status: StatusCompleted, BytesDownloaded: result.Bytes, LastUpdate: time.Now()})
	return result, nil
}

func attemptOnce(ctx context.Context, opts ResumableOptions, statePath string) (Result, error) {
	startOffset, err := existingSize(opts.Destination)
	if err != nil {
		return Result{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, opts.URL, nil)
	if err != nil {
		return Result{}, err
	}
	if opts.Headers != nil {
		opts.Headers.Each(func(name, value string) { req.Header.Add(name, value) })
	}
	if startOffset > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", startOffset))
	}

	resp, err := opts.Client.Do(req)
	if err != nil {
		return Result{Bytes: startOffset}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusRequestedRangeNotSatisfiable && startOffset > 0 {
		return Result{Path: opts.Destination, Bytes: startOffset}, nil
	}
	if resp.StatusCode >= 400 {
		return Result{Bytes: startOffset}, fmt.Errorf("download: unexpected status %d", resp.StatusCode)
	}

	flags := os.O_CREATE | os.O_WRONLY
	writeOffset := int64(0)
	if resp.StatusCode == http.StatusPartialContent {
		flags |= os.O_APPEND
		writeOffset = startOffset
	} else {
		flags |= os.O_TRUNC
	}

	f, err := os.OpenFile(opts.Destination, flags, 0644)
	if err != nil {
		return Result{Bytes: startOffset}, err
	}
	defer f.Close()

	var total *uint64
	if resp.ContentLength > 0 {
		t := uint64(resp.ContentLength) + uint64(writeOffset)
		total = &t
	}

	var body io.Reader = resp.Body
	if opts.RateLimit > 0 {
		body = flowrate.NewReader(resp.Body, opts.RateLimit)
	}

	written := writeOffset
	lastWrite := time.Time{}
	buf := make([]byte, 32*1024)
	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			if _, werr := f.Write(buf[:n]); werr != nil {
				return Result{Bytes: written}, werr
			}
			written += int64(n)
			if opts.Progress != nil {
				opts.Progress(uint64(written), total)
			}
			if time.Since(lastWrite) >= stateWriteInterval {
				_ = WriteState(statePath, State{Status: StatusDownloading, BytesDownloaded: written, LastUpdate: time.Now()})
				lastWrite = time.Now()
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return Result{Bytes: written}, readErr
		}
	}

	return Result{Path: opts.Destination, Bytes: written}, nil
}

func existingSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func wrapIO(msg string, err error) error { return fmt.Errorf("%s: %w", msg, err) }
func wrapNetwork(err error) error        { return fmt.Errorf("download failed after retries: %w", err) }
