// Package winhttp implements the Windows/WinHTTP Engine of SPEC_FULL.md
// section 4: requests are dispatched through winhttp.dll via
// golang.org/x/sys/windows and syscall.NewLazyDLL/syscall.NewCallback,
// exactly the pattern demonstrated in docker-compose/cli/mobycli's
// job_windows.go (NewLazyDLL, NewProc, Call) applied to WinHTTP's
// status-callback API instead of Job Objects.
package winhttp

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"

	frakt "github.com/nvm/fraktgo"
	"github.com/nvm/fraktgo/internal/corectx"
	"github.com/nvm/fraktgo/internal/handleregistry"
	"github.com/nvm/fraktgo/internal/progress"
)

var (
	winhttpDLL = syscall.NewLazyDLL("winhttp.dll")

	procWinHttpOpen              = winhttpDLL.NewProc("WinHttpOpen")
	procWinHttpConnect           = winhttpDLL.NewProc("WinHttpConnect")
	procWinHttpOpenRequest       = winhttpDLL.NewProc("WinHttpOpenRequest")
	procWinHttpSetStatusCallback = winhttpDLL.NewProc("WinHttpSetStatusCallback")
	procWinHttpSendRequest       = winhttpDLL.NewProc("WinHttpSendRequest")
	procWinHttpReceiveResponse   = winhttpDLL.NewProc("WinHttpReceiveResponse")
	procWinHttpQueryHeaders      = winhttpDLL.NewProc("WinHttpQueryHeaders")
	procWinHttpReadData          = winhttpDLL.NewProc("WinHttpReadData")
	procWinHttpCloseHandle       = winhttpDLL.NewProc("WinHttpCloseHandle")
	procWinHttpAddRequestHeaders = winhttpDLL.NewProc("WinHttpAddRequestHeaders")
)

// WinHTTP status codes this adapter's callback cares about (from
// winhttp.h); only the subset the state machine below reacts to.
const (
	statusSendRequestComplete    = 0x00400000
	statusHeadersAvailable       = 0x00020000
	statusDataAvailable          = 0x00040000
	statusReadComplete           = 0x00080000
	statusRequestError           = 0x00200000
	statusSecureFailure          = 0x00010000
	wcCallbackFlagAllCompletions = 0x3FFFFFFF
)

// errorWinHTTPTimeout is ERROR_WINHTTP_TIMEOUT (winhttp.h): the
// WINHTTP_ASYNC_RESULT.dwError value section 4.5 maps to frakt.Timeout.
const errorWinHTTPTimeout = 12002

// whAsyncResult mirrors the WINHTTP_ASYNC_RESULT structure WinHTTP passes
// as the lpvStatusInformation payload of a
// WINHTTP_CALLBACK_STATUS_REQUEST_ERROR notification.
type whAsyncResult struct {
	dwResult uintptr
	dwError  uint32
}

const (
	accessTypeDefaultProxy = 0
	openRequestFlagSecure  = 0x00800000
	queryFlagStatusCode    = 19 // WINHTTP_QUERY_STATUS_CODE
	queryFlagRawHeaders    = 22 // WINHTTP_QUERY_RAW_HEADERS_CRLF
	queryFlagNumber        = 0x20000000
)

// pending is the per-request state a status-callback invocation (running
// on an internal WinHTTP worker thread) resumes via handle.
type pending struct {
	ctx       *corectx.Context
	requestID string
	hRequest  uintptr
	readBuf   []byte
}

var registry = handleregistry.New[*pending]()

var (
	hSessionOnce sync.Once
	hSession     uintptr
)

func ensureSession() uintptr {
	hSessionOnce.Do(func() {
		agent, _ := windows.UTF16PtrFromString("fraktgo/1.0")
		r, _, _ := procWinHttpOpen.Call(
			uintptr(unsafe.Pointer(agent)),
			uintptr(1), // WINHTTP_ACCESS_TYPE_NO_PROXY
			0, 0,
			0x10000000, // WINHTTP_FLAG_ASYNC: completions arrive via statusCallback
		)
		hSession = r
	})
	return hSession
}

// statusCallback is registered once via WinHttpSetStatusCallback and
// dispatches every WinHTTP notification to the pending request it
// pertains to, looked up by the registry handle that Execute passes to
// WinHttpSendRequest as the context value and WinHTTP hands back here.
func statusCallback(hInternet, context_ uintptr, status uint32, info uintptr, infoLen uint32) uintptr {
	handle := uint64(context_)
	p, ok := registry.Get(handle)
	if !ok {
		return 0
	}

	switch status {
	case statusSendRequestComplete:
		procWinHttpReceiveResponse.Call(p.hRequest, 0)

	case statusHeadersAvailable:
		statusCode := queryNumber(p.hRequest, queryFlagStatusCode)
		raw := queryString(p.hRequest, queryFlagRawHeaders)
		headers := parseRawHeaders(raw)
		if total, ok := contentLength(headers); ok {
			p.ctx.Progress.SetTotal(total)
		}
		p.ctx.PublishHeaders(corectx.Header{Status: statusCode, Headers: headers, URL: p.requestID})
		p.readBuf = make([]byte, 32*1024)
		procWinHttpReadData.Call(p.hRequest, uintptr(unsafe.Pointer(&p.readBuf[0])), uintptr(len(p.readBuf)), 0)

	case statusDataAvailable:
		// A non-zero *info here is the number of bytes ready; WinHTTP
		// still requires an explicit ReadData call to retrieve them, which
		// statusHeadersAvailable/statusReadComplete both issue.

	case statusReadComplete:
		n := int(infoLen)
		if n > 0 {
			chunk := append([]byte(nil), p.readBuf[:n]...)
			p.ctx.Progress.Add(uint64(n))
			_ = p.ctx.Body.Send(context.Background(), chunk)
			procWinHttpReadData.Call(p.hRequest, uintptr(unsafe.Pointer(&p.readBuf[0])), uintptr(len(p.readBuf)), 0)
		} else {
			p.ctx.Body.Close()
			registry.Release(handle)
			procWinHttpCloseHandle.Call(p.hRequest)
		}

	case statusRequestError:
		var result whAsyncResult
		if info != 0 {
			result = *(*whAsyncResult)(unsafe.Pointer(info))
		}
		err := classifyWinHTTPError(result.dwError)
		p.ctx.FailHeaders(err)
		p.ctx.Body.Fail(err)
		registry.Release(handle)
		procWinHttpCloseHandle.Call(p.hRequest)

	case statusSecureFailure:
		err := &frakt.Error{Kind: frakt.ErrTLS, Message: "winhttp secure connection failure", Code: int64(infoLen)}
		p.ctx.FailHeaders(err)
		p.ctx.Body.Fail(err)
		registry.Release(handle)
		procWinHttpCloseHandle.Call(p.hRequest)
	}
	return 0
}

var statusCallbackPtr = syscall.NewCallback(func(hInternet, context_ uintptr, status uint32, info uintptr, infoLen uint32) uintptr {
	return statusCallback(hInternet, context_, status, info, infoLen)
})

// Adapter implements frakt.Engine on top of winhttp.dll.
type Adapter struct {
	session *frakt.Session
}

var _ frakt.Engine = (*Adapter)(nil)

// New builds a WinHTTP Adapter, lazily opening the shared WinHTTP session
// handle on first use.
func New(session *frakt.Session) *Adapter {
	if session == nil {
		session = frakt.DefaultSession()
	}
	return &Adapter{session: session}
}

// Kind reports EngineKindWinHTTP.
func (a *Adapter) Kind() frakt.EngineKind { return frakt.EngineKindWinHTTP }

// Execute opens and sends a WinHTTP request, returning once the header
// event resolves via the async status callback.
func (a *Adapter) Execute(ctx context.Context, req *frakt.Request) (*frakt.Response, error) {
	data, contentType, err := req.Body.Encode()
	if err != nil {
		return nil, err
	}

	session := ensureSession()
	procWinHttpSetStatusCallback.Call(session, statusCallbackPtr, wcCallbackFlagAllCompletions, 0)

	host, port, secure := splitHostPort(req.URL)
	hostPtr, _ := windows.UTF16PtrFromString(host)
	hConnect, _, _ := procWinHttpConnect.Call(session, uintptr(unsafe.Pointer(hostPtr)), uintptr(port), 0)
	if hConnect == 0 {
		return nil, &frakt.Error{Kind: frakt.ErrNetwork, Message: "WinHttpConnect failed"}
	}

	var flags uintptr
	if secure {
		flags = openRequestFlagSecure
	}
	verbPtr, _ := windows.UTF16PtrFromString(string(req.Method))
	pathPtr, _ := windows.UTF16PtrFromString(req.URL.RequestURI())
	hRequest, _, _ := procWinHttpOpenRequest.Call(hConnect, uintptr(unsafe.Pointer(verbPtr)),
		uintptr(unsafe.Pointer(pathPtr)), 0, 0, 0, flags)
	if hRequest == 0 {
		return nil, &frakt.Error{Kind: frakt.ErrNetwork, Message: "WinHttpOpenRequest failed"}
	}

	addRequestHeaders(hRequest, req.Headers, contentType)

	cctx := corectx.New(32, progress.Callback(req.ProgressCallback))
	p := &pending{ctx: cctx, requestID: req.URL.String(), hRequest: hRequest}
	handle := registry.Register(p)
	cctx.SetNativeHandle(handle)

	var bodyPtr unsafe.Pointer
	if len(data) > 0 {
		bodyPtr = unsafe.Pointer(&data[0])
	}
	ok, _, _ := procWinHttpSendRequest.Call(hRequest, 0, 0, uintptr(bodyPtr), uintptr(len(data)), uintptr(len(data)), uintptr(handle))
	if ok == 0 {
		registry.Release(handle)
		return nil, &frakt.Error{Kind: frakt.ErrNetwork, Message: "WinHttpSendRequest failed"}
	}

	go func() {
		<-cctx.Cancel.Done()
		procWinHttpCloseHandle.Call(hRequest)
	}()

	hdr, err := cctx.AwaitHeaders(ctx)
	if err != nil {
		registry.Release(handle)
		return nil, err
	}

	headers, _ := hdr.Headers.(*frakt.Header)
	return frakt.NewResponse(hdr.Status, headers, req.URL.String(), nil, cctx.Body), nil
}

// ExecuteBackgroundDownload is not yet implemented for WinHTTP; a full
// build would drive the same status-callback state machine into a file
// handle instead of a bodychan.Channel.
func (a *Adapter) ExecuteBackgroundDownload(ctx context.Context, req *frakt.DownloadRequest) (*frakt.DownloadResponse, error) {
	return nil, &frakt.Error{Kind: frakt.ErrInternal, Message: "winhttp background downloads are not yet implemented"}
}

// WebSocketConnect is not yet implemented: WinHTTP does have a WebSocket
// API (WinHttpWebSocketXxx), left for a future revision.
func (a *Adapter) WebSocketConnect(ctx context.Context, rawURL string, opts frakt.WebSocketOptions) (frakt.WebSocket, error) {
	return nil, &frakt.Error{Kind: frakt.ErrInternal, Message: "winhttp websocket support is not yet implemented"}
}

func splitHostPort(u *url.URL) (host string, port int, secure bool) {
	secure = u.Scheme == "https"
	host = u.Hostname()
	if p := u.Port(); p != "" {
		port, _ = strconv.Atoi(p)
	} else if secure {
		port = 443
	} else {
		port = 80
	}
	return host, port, secure
}

func addRequestHeaders(hRequest uintptr, h *frakt.Header, inferredContentType string) {
	var sb strings.Builder
	h.Each(func(name, value string) {
		sb.WriteString(name)
		sb.WriteString(": ")
		sb.WriteString(value)
		sb.WriteString("\r\n")
	})
	if h.Get("Content-Type") == "" && inferredContentType != "" {
		sb.WriteString("Content-Type: ")
		sb.WriteString(inferredContentType)
		sb.WriteString("\r\n")
	}
	if sb.Len() == 0 {
		return
	}
	blob, _ := windows.UTF16PtrFromString(sb.String())
	procWinHttpAddRequestHeaders.Call(hRequest, uintptr(unsafe.Pointer(blob)), uintptr(sb.Len()), 0x20000000 /* WINHTTP_ADDREQ_FLAG_ADD */)
}

func queryNumber(hRequest uintptr, flag uint32) int {
	var value uint32
	size := uint32(unsafe.Sizeof(value))
	procWinHttpQueryHeaders.Call(hRequest, uintptr(flag|queryFlagNumber), 0,
		uintptr(unsafe.Pointer(&value)), uintptr(unsafe.Pointer(&size)), 0)
	return int(value)
}

func queryString(hRequest uintptr, flag uint32) string {
	var size uint32
	procWinHttpQueryHeaders.Call(hRequest, uintptr(flag), 0, 0, uintptr(unsafe.Pointer(&size)), 0)
	if size == 0 {
		return ""
	}
	buf := make([]uint16, size/2+1)
	procWinHttpQueryHeaders.Call(hRequest, uintptr(flag), 0,
		uintptr(unsafe.Pointer(&buf[0])), uintptr(unsafe.Pointer(&size)), 0)
	return windows.UTF16ToString(buf)
}

// classifyWinHTTPError maps a WINHTTP_ASYNC_RESULT.dwError value to a
// frakt.Error per section 4.5's taxonomy.
func classifyWinHTTPError(dwError uint32) *frakt.Error {
	if dwError == errorWinHTTPTimeout {
		return frakt.Timeout
	}
	return frakt.NetworkError(int64(dwError), "winhttp request failed", nil)
}

func contentLength(h *frakt.Header) (uint64, bool) {
	v := h.Get("Content-Length")
	if v == "" {
		return 0, false
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func parseRawHeaders(raw string) *frakt.Header {
	out := frakt.NewHeader()
	for _, line := range strings.Split(raw, "\r\n") {
		if line == "" || !strings.Contains(line, ":") {
			continue
		}
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		out.Add(strings.TrimSpace(name), strings.TrimSpace(value))
	}
	return out
}
