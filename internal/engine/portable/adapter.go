// Package portable implements the Portable Engine of SPEC_FULL.md section
// 4: net/http for request/response plumbing, github.com/gorilla/websocket
// for its WebSocket transport. It is the only engine this repository can
// exercise without a native platform toolchain (section 8).
package portable

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	frakt "github.com/nvm/fraktgo"
	"github.com/nvm/fraktgo/internal/corectx"
	"github.com/nvm/fraktgo/internal/cookiejar"
	"github.com/nvm/fraktgo/internal/diagnostics"
	"github.com/nvm/fraktgo/internal/download"
	"github.com/nvm/fraktgo/internal/events"
	"github.com/nvm/fraktgo/internal/progress"
	"github.com/nvm/fraktgo/internal/watchdog"
	"github.com/nvm/fraktgo/internal/websocket"
)

// bodyChannelCapacity is the bounded buffer size every pump goroutine
// writes into; section 3 recommends 32 as a typical default.
const bodyChannelCapacity = 32

// websocketDialAttempts bounds how many times WebSocketConnect retries
// the upgrade handshake (internal/retry.Backoff-driven) before giving up.
const websocketDialAttempts = 3

// Adapter implements frakt.Engine on top of net/http.
type Adapter struct {
	client     *http.Client
	session    *frakt.Session
	cookies    frakt.CookieJar
	eventBus   *events.Bus
	watchdog   *watchdog.Watchdog
	diagLogger *diagnostics.Logger
}

var _ frakt.Engine = (*Adapter)(nil)

// New builds a portable Adapter around session's timeout, redirect policy,
// and cookie policy. If session.DiagnosticsEnabled, outbound requests are
// wrapped with internal/diagnostics.Transport for wire-level logging.
func New(session *frakt.Session) *Adapter {
	if session == nil {
		session = frakt.DefaultSession()
	}

	jar := cookiejar.NewPortable(session.CookiePolicy)
	client := &http.Client{Timeout: 0} // per-request deadline applied via context instead

	wd := watchdog.New(2*time.Second, 30*time.Second)
	wd.Start()

	a := &Adapter{
		client:   client,
		session:  session,
		cookies:  jar,
		watchdog: wd,
	}

	if session.DiagnosticsEnabled {
		maxBodyLen := session.DiagnosticsMaxBodyLen
		if maxBodyLen <= 0 {
			maxBodyLen = 1 << 20
		}
		logger, err := diagnostics.NewLogger("portable-engine", session.DiagnosticsLogFile, maxBodyLen)
		if err != nil {
			session.Log().Error(err, "failed to open diagnostics log file; continuing without request logging")
		} else {
			a.diagLogger = logger
			client.Transport = diagnostics.NewTransport(nil, logger)
		}
	}

	return a
}

// SetEventBus wires the event bus this adapter and its watchdog publish
// request/connection lifecycle events to.
func (a *Adapter) SetEventBus(bus *events.Bus) {
	a.eventBus = bus
	a.watchdog.SetEventBus(bus)
}

// Kind reports EngineKindPortable.
func (a *Adapter) Kind() frakt.EngineKind { return frakt.EngineKindPortable }

// Close stops the adapter's background watchdog goroutine and, if
// diagnostics logging to a file was enabled, closes the log file.
func (a *Adapter) Close() {
	a.watchdog.Stop()
	if a.diagLogger != nil {
		_ = a.diagLogger.Close()
	}
}

// Execute dispatches req via net/http, returning once headers resolve; the
// returned Response's body streams independently via a pump goroutine.
func (a *Adapter) Execute(ctx context.Context, req *frakt.Request) (*frakt.Response, error) {
	log := a.session.Log()
	requestID := req.URL.String()

	if a.eventBus != nil {
		a.eventBus.Publish(events.NewRequestEvent(events.EventRequestStarting, requestID, map[string]interface{}{"url": req.URL.String()}))
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = a.session.DefaultTimeout
	}

	data, contentType, err := req.Body.Encode()
	if err != nil {
		return nil, err
	}

	operationCtx, cancel := context.WithTimeout(ctx, timeout)

	httpReq, err := http.NewRequestWithContext(operationCtx, string(req.Method), req.URL.String(), bytes.NewReader(data))
	if err != nil {
		cancel()
		return nil, wrapRequestErr(err)
	}
	req.Headers.Each(func(name, value string) { httpReq.Header.Add(name, value) })
	if httpReq.Header.Get("Content-Type") == "" && contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	if cookieHeader, cerr := a.cookies.CookiesForURL(req.URL.String()); cerr == nil && cookieHeader != "" {
		httpReq.Header.Set("Cookie", cookieHeader)
	}

	var redirectHeaders []*frakt.Header
	clientCopy := *a.client
	clientCopy.CheckRedirect = func(r *http.Request, via []*http.Request) error {
		redirectHeaders = append(redirectHeaders, headerFromHTTP(r.Response.Header))
		if a.session.Redirects == frakt.DontFollowRedirects {
			return http.ErrUseLastResponse
		}
		return nil
	}

	resp, err := clientCopy.Do(httpReq)
	if err != nil {
		defer cancel()
		if a.eventBus != nil {
			a.eventBus.Publish(events.NewRequestEvent(events.EventRequestError, requestID, map[string]interface{}{"error": err.Error()}))
		}
		return nil, classifyDoErr(operationCtx, err)
	}

	if a.eventBus != nil {
		a.eventBus.Publish(events.NewRequestEvent(events.EventRequestHeaders, requestID, map[string]interface{}{"status": resp.StatusCode}))
	}

	headers := headerFromHTTP(resp.Header)
	if perr := a.cookies.ProcessResponseHeaders(req.URL.String(), headers); perr != nil {
		log.V(1).Info("failed to process response cookies", "error", perr.Error())
	}

	cctx := corectx.New(bodyChannelCapacity, progress.Callback(req.ProgressCallback))
	if resp.ContentLength >= 0 {
		cctx.Progress.SetTotal(uint64(resp.ContentLength))
	}
	operationID := requestID
	a.watchdog.RegisterOperation(operationID, func(id string) {
		cancel()
		cctx.Cancel.Cancel()
	})

	go a.pump(operationCtx, cancel, resp, cctx, operationID, requestID)

	return frakt.NewResponse(resp.StatusCode, headers, req.URL.String(), redirectHeaders, cctx.Body), nil
}

// pump is the sole producer on cctx.Body, draining resp.Body chunk by
// chunk until EOF, a read error, or cancellation; it owns releasing the
// response body and the operation's context.
func (a *Adapter) pump(ctx context.Context, cancel context.CancelFunc, resp *http.Response, cctx *corectx.Context, operationID, requestID string) {
	defer cancel()
	defer resp.Body.Close()
	defer a.watchdog.UnregisterOperation(operationID)

	var transferred uint64
	buf := make([]byte, 8*1024)
	for {
		select {
		case <-cctx.Cancel.Done():
			cctx.Body.Fail(frakt.Cancelled)
			return
		default:
		}

		n, err := resp.Body.Read(buf)
		if n > 0 {
			chunk := append([]byte(nil), buf[:n]...)
			if serr := cctx.Body.Send(ctx, chunk); serr != nil {
				return
			}
			transferred += uint64(n)
			cctx.Progress.Add(uint64(n))
			a.watchdog.Heartbeat(operationID)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				cctx.Body.Close()
				if a.eventBus != nil {
					a.eventBus.Publish(events.NewRequestEvent(events.EventRequestCompleted, requestID, map[string]interface{}{"bytes": transferred}))
				}
				return
			}
			cctx.Body.Fail(classifyDoErr(ctx, err))
			return
		}
	}
}

func headerFromHTTP(h http.Header) *frakt.Header {
	out := frakt.NewHeader()
	for name, values := range h {
		for _, v := range values {
			out.Add(name, v)
		}
	}
	return out
}

func wrapRequestErr(err error) error {
	return &frakt.Error{Kind: frakt.ErrInternal, Message: "failed to build request", Cause: err}
}

func classifyDoErr(ctx context.Context, err error) error {
	if ctx.Err() == context.DeadlineExceeded {
		return frakt.Timeout
	}
	if ctx.Err() == context.Canceled {
		return frakt.Cancelled
	}
	return frakt.NetworkError(0, "request failed", err)
}

// ExecuteBackgroundDownload runs one of the three lifecycles from section
// 4.6. The portable engine has no native OS-managed download manager, so
// DownloadNative falls back to the resumable flow; DownloadDaemon forks a
// detached process on Unix and falls back to the in-process resumable flow
// elsewhere (see internal/download/daemon_other.go).
func (a *Adapter) ExecuteBackgroundDownload(ctx context.Context, req *frakt.DownloadRequest) (*frakt.DownloadResponse, error) {
	opts := download.ResumableOptions{
		Client:      a.client,
		URL:         req.URL,
		Destination: req.DestinationPath,
		StateDir:    a.session.StateDir,
		SessionID:   req.SessionID,
		Headers:     req.Headers,
		Progress:    req.Progress,
		RateLimit:   req.RateLimitBytesPerSecond,
	}

	var (
		result download.Result
		err    error
	)
	switch req.Kind {
	case frakt.DownloadDaemon:
		self, selfErr := os.Executable()
		if selfErr != nil {
			return nil, wrapRequestErr(selfErr)
		}
		result, err = download.RunDetached(ctx, self, opts)
	case frakt.DownloadResumable, frakt.DownloadNative:
		result, err = download.Run(ctx, opts)
	default:
		return nil, &frakt.Error{Kind: frakt.ErrInternal, Message: "unsupported download kind for the portable engine"}
	}

	if err != nil {
		return &frakt.DownloadResponse{BytesDownloaded: result.Bytes, Status: frakt.DownloadFailed, Err: err}, err
	}
	return &frakt.DownloadResponse{Path: result.Path, BytesDownloaded: result.Bytes, Status: frakt.DownloadCompleted}, nil
}

// WebSocketConnect upgrades to a WebSocket connection via
// github.com/gorilla/websocket, retrying the handshake with
// internal/retry's exponential backoff (see websocket.DialWithRetry) if
// the first attempts fail.
func (a *Adapter) WebSocketConnect(ctx context.Context, rawURL string, opts frakt.WebSocketOptions) (frakt.WebSocket, error) {
	if _, err := url.Parse(rawURL); err != nil {
		return nil, &frakt.Error{Kind: frakt.ErrInvalidURL, Message: "invalid websocket URL: " + rawURL}
	}

	conn, err := websocket.DialWithRetry(ctx, rawURL, opts, websocketDialAttempts)
	if err != nil {
		return nil, err
	}

	operationID := "ws:" + rawURL
	a.watchdog.RegisterOperation(operationID, func(id string) {
		_ = conn.Close(frakt.CloseAbnormal, "watchdog detected a stalled connection")
	})

	return conn, nil
}
