package frakt

import (
	"context"
	"time"
)

// EngineKind identifies which platform-native implementation backs an
// Engine, per section 2's component table.
type EngineKind int

const (
	EngineKindPortable EngineKind = iota
	EngineKindFoundation
	EngineKindCronet
	EngineKindWinHTTP
)

func (k EngineKind) String() string {
	switch k {
	case EngineKindPortable:
		return "portable"
	case EngineKindFoundation:
		return "foundation"
	case EngineKindCronet:
		return "cronet"
	case EngineKindWinHTTP:
		return "winhttp"
	default:
		return "unknown"
	}
}

// Engine is the contract every platform adapter implements, per section
// 4.1. Execute returns as soon as the header event resolves (or fails);
// the returned Response's body continues streaming independently.
//
// Guarantees every Engine implementation must uphold:
//  1. Body chunks are delivered in network-arrival order.
//  2. The sum of chunk lengths equals the final progress total on success.
//  3. Progress callback values are monotonically non-decreasing, and the
//     final value equals the total bytes received on success.
//  4. A terminal error is observed at most once on the body stream.
//  5. Cancellation yields either a clean early termination or
//     Err(ErrCancelled); never a hang.
//  6. Redirects are followed by default; RedirectHeaders captures the
//     Set-Cookie sequence across hops.
type Engine interface {
	Kind() EngineKind

	// Execute dispatches req and returns once headers have resolved, or
	// an error if the request failed before headers arrived.
	Execute(ctx context.Context, req *Request) (*Response, error)

	// ExecuteBackgroundDownload starts one of the three download
	// lifecycles from section 4.6, identified by req's DownloadKind.
	ExecuteBackgroundDownload(ctx context.Context, req *DownloadRequest) (*DownloadResponse, error)

	// WebSocketConnect upgrades to a WebSocket connection at url, failing
	// with ErrTimeout if the handshake does not complete within 30s
	// (section 4.7).
	WebSocketConnect(ctx context.Context, url string, opts WebSocketOptions) (WebSocket, error)
}

// DownloadKind selects among the three lifecycles of section 4.6.
type DownloadKind int

const (
	// DownloadNative delegates to the platform's own background-session
	// manager (Apple background URLSession, Android DownloadManager).
	DownloadNative DownloadKind = iota
	// DownloadResumable persists progress to a state file and retries
	// with Range requests and exponential backoff.
	DownloadResumable
	// DownloadDaemon runs the resumable flow in a detached, double-forked
	// process (Unix only).
	DownloadDaemon
)

// DownloadRequest parametrizes execute_background_download, per section
// 4.1 and 4.6.
type DownloadRequest struct {
	Kind            DownloadKind
	URL             string
	DestinationPath string
	SessionID       string // opaque reverse-DNS-style session identifier
	Headers         *Header
	Progress        ProgressCallback
	// RateLimitBytesPerSecond caps transfer speed for the resumable and
	// daemon lifecycles; zero means unlimited.
	RateLimitBytesPerSecond int64
}

// DownloadStatus is the terminal or in-progress state of a download task,
// mirroring the state file's `status` field (section 6).
type DownloadStatus int

const (
	DownloadDownloading DownloadStatus = iota
	DownloadCompleted
	DownloadFailed
	DownloadCancelled
)

// DownloadResponse is the terminal result of execute_background_download.
type DownloadResponse struct {
	Path            string
	BytesDownloaded int64
	Status          DownloadStatus
	Err             error
}

// WebSocketOptions configures a WebSocketConnect call.
type WebSocketOptions struct {
	Headers            *Header
	MaximumMessageSize int64         // 0 means no explicit limit beyond the engine's default
	HandshakeTimeout   time.Duration // 0 means the section 4.7 default of 30s
}

// MessageKind tags a WebSocket Message union.
type MessageKind int

const (
	MessageText MessageKind = iota
	MessageBinary
)

// Message is a WebSocket frame payload, per section 4.7.
type Message struct {
	Kind MessageKind
	Text string
	Data []byte
}

// TextMessage constructs a text Message.
func TextMessage(s string) Message { return Message{Kind: MessageText, Text: s} }

// BinaryMessage constructs a binary Message.
func BinaryMessage(b []byte) Message { return Message{Kind: MessageBinary, Data: b} }

// CloseCode is an RFC 6455 WebSocket close code.
type CloseCode int

const (
	CloseNormal           CloseCode = 1000
	CloseGoingAway        CloseCode = 1001
	CloseProtocolError    CloseCode = 1002
	CloseUnsupportedData  CloseCode = 1003
	CloseNoStatusReceived CloseCode = 1005
	CloseAbnormal         CloseCode = 1006
	CloseInvalidPayload   CloseCode = 1007
	ClosePolicyViolation  CloseCode = 1008
	CloseMessageTooBig    CloseCode = 1009
	CloseMandatoryExt     CloseCode = 1010
	CloseInternalErr      CloseCode = 1011
	CloseTLSHandshake     CloseCode = 1015
)

// WebSocket is the uniform interface both the Native and Portable
// WebSocket backends satisfy, per section 4.7.
type WebSocket interface {
	// Send transmits msg, failing with ErrWebSocketClosed if the
	// connection is already closed.
	Send(ctx context.Context, msg Message) error
	// Receive blocks for the next message. Control frames are handled
	// transparently; after a close frame is received, this and all
	// subsequent calls fail with ErrWebSocketClosed.
	Receive(ctx context.Context) (Message, error)
	// Close is idempotent; subsequent Send/Receive calls fail with
	// ErrWebSocketClosed.
	Close(code CloseCode, reason string) error
}
